package executor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/shaiso/Helix/internal/domain"
	"github.com/shaiso/Helix/internal/jobs"
	"github.com/shaiso/Helix/internal/recorder"
)

// fakeClock — детерминированное время: After немедленно "прокручивает"
// часы на запрошенную длительность.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) After(d time.Duration) <-chan time.Time {
	c.mu.Lock()
	c.now = c.now.Add(d)
	now := c.now
	c.mu.Unlock()
	ch := make(chan time.Time, 1)
	ch <- now
	return ch
}

// jobScript — сценарий одного job: polls опросов running, затем финал.
type jobScript struct {
	polls     int
	final     jobs.JobStatus
	statusErr error
	submitErr error
}

type fakeRun struct {
	script jobScript
	calls  int
}

// fakeClient — Client, раздающий сценарии по типу job в порядке submit.
// Типы без сценария немедленно завершаются типовым результатом.
type fakeClient struct {
	mu          sync.Mutex
	scripts     map[domain.NodeType][]jobScript
	runs        map[string]*fakeRun
	submits     []string
	cancelled   []string
	statusCalls int
	nextID      int
}

func newFakeClient() *fakeClient {
	return &fakeClient{
		scripts: make(map[domain.NodeType][]jobScript),
		runs:    make(map[string]*fakeRun),
	}
}

func (c *fakeClient) script(jobType domain.NodeType, s jobScript) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.scripts[jobType] = append(c.scripts[jobType], s)
}

func defaultResult(jobType domain.NodeType) map[string]any {
	switch jobType {
	case domain.NodeTypeStructureGen:
		return map[string]any{"pdb_url": "https://store/bb.pdb", "backbones": float64(2)}
	case domain.NodeTypeSequenceDesign:
		return map[string]any{"sequences": []any{"MKVLAA"}, "fasta_url": "https://store/seqs.fasta"}
	case domain.NodeTypePrediction:
		return map[string]any{"pdb_url": "https://store/pred.pdb", "mean_plddt": 91.0}
	default:
		return map[string]any{"complex_url": "https://store/complex.pdb", "affinity": -7.5}
	}
}

func (c *fakeClient) Submit(ctx context.Context, jobType domain.NodeType, payload any) (*jobs.SubmitAck, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := jobScript{final: jobs.JobStatus{
		State:  domain.JobStateCompleted,
		Result: defaultResult(jobType),
	}}
	if q := c.scripts[jobType]; len(q) > 0 {
		s = q[0]
		c.scripts[jobType] = q[1:]
	}
	if s.submitErr != nil {
		return nil, s.submitErr
	}

	c.nextID++
	id := fmt.Sprintf("job-%d", c.nextID)
	c.runs[id] = &fakeRun{script: s}
	c.submits = append(c.submits, string(jobType))

	return &jobs.SubmitAck{
		JobID:    id,
		State:    domain.JobStateQueued,
		Request:  &domain.CapturedRequest{Method: "POST", URL: "https://svc/" + string(jobType) + "/submit", Body: payload},
		Response: &domain.CapturedResponse{Status: 200},
	}, nil
}

func (c *fakeClient) Status(ctx context.Context, jobType domain.NodeType, jobID string) (*jobs.JobStatus, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.statusCalls++
	r, ok := c.runs[jobID]
	if !ok {
		return nil, fmt.Errorf("%w: %w", jobs.ErrRemotePoll, &jobs.StatusError{Code: 404})
	}
	if r.script.statusErr != nil {
		return nil, r.script.statusErr
	}
	r.calls++
	if r.calls <= r.script.polls {
		return &jobs.JobStatus{State: domain.JobStateRunning}, nil
	}
	final := r.script.final
	return &final, nil
}

func (c *fakeClient) Cancel(ctx context.Context, jobType domain.NodeType, jobID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cancelled = append(c.cancelled, jobID)
	return nil
}

func (c *fakeClient) submitCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.submits)
}

// chainPipeline строит input → structure-generation → sequence-design.
func chainPipeline(t *testing.T) *domain.Pipeline {
	t.Helper()
	p := domain.NewPipeline("chain", "user-1", time.Now())
	p.Nodes = []domain.Node{
		{ID: "in", Type: domain.NodeTypeInput, Label: "Target",
			Config: map[string]any{"pdb_id": "1ABC"}, Status: domain.NodeStatusIdle},
		{ID: "gen", Type: domain.NodeTypeStructureGen, Label: "Backbone",
			Config: map[string]any{"contig": "70-100"}, Status: domain.NodeStatusIdle},
		{ID: "des", Type: domain.NodeTypeSequenceDesign, Label: "Design",
			Config: map[string]any{}, Status: domain.NodeStatusIdle},
	}
	p.Edges = []domain.Edge{
		{Source: "in", Target: "gen"},
		{Source: "gen", Target: "des"},
	}
	return p
}

func newTestExecutor(client jobs.Client, clock jobs.Clock) *Executor {
	return New(Config{
		Client: client,
		Clock:  clock,
		Poller: jobs.NewPoller(jobs.PollerConfig{
			Client:   client,
			Clock:    clock,
			Interval: 5 * time.Second,
		}),
		Recorder: recorder.New(0),
	})
}

func TestExecutor_RunCompletesChain(t *testing.T) {
	client := newFakeClient()
	client.script(domain.NodeTypeStructureGen, jobScript{
		polls: 2,
		final: jobs.JobStatus{State: domain.JobStateCompleted, Result: defaultResult(domain.NodeTypeStructureGen)},
	})

	e := newTestExecutor(client, newFakeClock())
	p := chainPipeline(t)

	session, err := e.Run(context.Background(), p)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if session.Status != domain.SessionStatusCompleted {
		t.Errorf("expected completed session, got %s", session.Status)
	}
	if p.Status != domain.PipelineStatusCompleted {
		t.Errorf("expected completed pipeline, got %s", p.Status)
	}
	if len(session.Entries) != 3 {
		t.Fatalf("expected 3 log entries, got %d", len(session.Entries))
	}

	for _, id := range []string{"in", "gen", "des"} {
		node := p.Node(id)
		if node.Status != domain.NodeStatusSuccess {
			t.Errorf("node %s: expected success, got %s", id, node.Status)
		}
		if node.Result == nil || node.Result.Fingerprint == "" {
			t.Errorf("node %s: result with fingerprint must be stored", id)
		}
		entry := session.Entry(id)
		if entry.Status != domain.NodeStatusSuccess || entry.FinishedAt == nil {
			t.Errorf("node %s: entry not finalized: %+v", id, entry)
		}
	}

	// Input не порождает remote job
	if got := client.submitCount(); got != 2 {
		t.Errorf("expected 2 submits, got %d", got)
	}
	if entry := session.Entry("gen"); entry.Request == nil || entry.Response == nil {
		t.Error("remote node entry must carry captured request/response")
	}
}

func TestExecutor_ValidationAbortsBeforeAnyStateChange(t *testing.T) {
	client := newFakeClient()
	e := newTestExecutor(client, newFakeClock())

	p := chainPipeline(t)
	p.Node("gen").Config = map[string]any{} // нет обязательного contig

	_, err := e.Run(context.Background(), p)
	if !errors.Is(err, jobs.ErrInvalidConfig) {
		t.Fatalf("expected ErrInvalidConfig, got %v", err)
	}

	// Ни одно состояние не изменилось
	if p.Status != domain.PipelineStatusDraft {
		t.Errorf("pipeline must stay draft, got %s", p.Status)
	}
	for i := range p.Nodes {
		if p.Nodes[i].Status != domain.NodeStatusIdle {
			t.Errorf("node %s must stay idle, got %s", p.Nodes[i].ID, p.Nodes[i].Status)
		}
	}
	if client.submitCount() != 0 {
		t.Error("no remote calls on validation failure")
	}
	if e.Recorder().Current(p.ID) != nil || len(e.Recorder().History(p.ID)) != 0 {
		t.Error("no session must be created on validation failure")
	}
}

func TestExecutor_SkipOnResume(t *testing.T) {
	client := newFakeClient()
	e := newTestExecutor(client, newFakeClock())
	p := chainPipeline(t)

	if _, err := e.Run(context.Background(), p); err != nil {
		t.Fatalf("first run: %v", err)
	}
	firstSubmits := client.submitCount()

	session, err := e.Run(context.Background(), p)
	if err != nil {
		t.Fatalf("second run: %v", err)
	}

	// Все узлы success с неизменным config — ни одного нового submit
	if got := client.submitCount(); got != firstSubmits {
		t.Errorf("resume must skip completed nodes, submits %d → %d", firstSubmits, got)
	}
	if session.Status != domain.SessionStatusCompleted {
		t.Errorf("expected completed, got %s", session.Status)
	}
	if len(session.Entries) != 3 {
		t.Fatalf("skipped nodes still get log entries, got %d", len(session.Entries))
	}
	for _, entry := range session.Entries {
		if entry.Status != domain.NodeStatusSuccess {
			t.Errorf("entry %s: expected success, got %s", entry.NodeID, entry.Status)
		}
	}
}

func TestExecutor_ConfigChangeInvalidatesCachedResults(t *testing.T) {
	client := newFakeClient()
	e := newTestExecutor(client, newFakeClock())
	p := chainPipeline(t)

	if _, err := e.Run(context.Background(), p); err != nil {
		t.Fatalf("first run: %v", err)
	}
	firstSubmits := client.submitCount()

	// Изменение config узла gen инвалидирует gen и транзитивно des,
	// но не input
	p.Node("gen").Config["contig"] = "100-150"

	if _, err := e.Run(context.Background(), p); err != nil {
		t.Fatalf("second run: %v", err)
	}

	if got := client.submitCount() - firstSubmits; got != 2 {
		t.Errorf("expected gen and des resubmitted, got %d new submits", got)
	}
	if p.Node("in").Result == nil {
		t.Error("input result must survive downstream config change")
	}
}

func TestExecutor_NodeFailureStopsRunKeepsEarlierResults(t *testing.T) {
	client := newFakeClient()
	client.script(domain.NodeTypeStructureGen, jobScript{
		final: jobs.JobStatus{State: domain.JobStateError, Error: "contig out of range"},
	})

	e := newTestExecutor(client, newFakeClock())
	p := chainPipeline(t)

	session, err := e.Run(context.Background(), p)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if session.Status != domain.SessionStatusFailed {
		t.Errorf("expected failed session, got %s", session.Status)
	}
	if p.Status != domain.PipelineStatusFailed {
		t.Errorf("expected failed pipeline, got %s", p.Status)
	}

	if p.Node("in").Status != domain.NodeStatusSuccess {
		t.Error("earlier completed node must keep its result")
	}
	gen := p.Node("gen")
	if gen.Status != domain.NodeStatusError || gen.Error == "" {
		t.Errorf("failed node: %s / %q", gen.Status, gen.Error)
	}
	// Узел после упавшего не стартовал
	if p.Node("des").Status != domain.NodeStatusIdle {
		t.Errorf("downstream node must return to idle, got %s", p.Node("des").Status)
	}
	if entry := session.Entry("des"); entry.StartedAt != nil {
		t.Error("downstream node must not have started")
	}
	if entry := session.Entry("gen"); entry.Error == "" || entry.FinishedAt == nil {
		t.Error("failed node entry must carry error and finishedAt")
	}
}

func TestExecutor_TerminalPollErrorFailsNode(t *testing.T) {
	client := newFakeClient()
	client.script(domain.NodeTypeStructureGen, jobScript{
		statusErr: fmt.Errorf("%w: %w", jobs.ErrRemotePoll, &jobs.StatusError{Code: 404}),
	})

	e := newTestExecutor(client, newFakeClock())
	p := chainPipeline(t)

	session, err := e.Run(context.Background(), p)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if session.Status != domain.SessionStatusFailed {
		t.Errorf("expected failed, got %s", session.Status)
	}
	if p.Node("gen").Status != domain.NodeStatusError {
		t.Errorf("404 on poll must fail the node, got %s", p.Node("gen").Status)
	}
}

func TestExecutor_CeilingStopsRun(t *testing.T) {
	client := newFakeClient()
	// Job никогда не завершается; fakeClock прокручивает 5s за опрос,
	// потолок structure-generation исчерпывается за конечное число шагов
	client.script(domain.NodeTypeStructureGen, jobScript{polls: 1 << 20})

	e := newTestExecutor(client, newFakeClock())
	p := chainPipeline(t)

	session, err := e.Run(context.Background(), p)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if session.Status != domain.SessionStatusStopped {
		t.Errorf("ceiling must stop the session, got %s", session.Status)
	}
	if p.Status != domain.PipelineStatusDraft {
		t.Errorf("pipeline must return to draft, got %s", p.Status)
	}
	if p.Node("gen").Status != domain.NodeStatusIdle {
		t.Errorf("timed-out node returns to idle, got %s", p.Node("gen").Status)
	}
	if p.Node("in").Status != domain.NodeStatusSuccess {
		t.Error("completed input must keep its result")
	}
}

func TestExecutor_StopDuringRun(t *testing.T) {
	client := newFakeClient()
	client.script(domain.NodeTypeStructureGen, jobScript{polls: 1 << 20})

	clock := jobs.RealClock()
	e := New(Config{
		Client: client,
		Clock:  clock,
		Poller: jobs.NewPoller(jobs.PollerConfig{
			Client:   client,
			Clock:    clock,
			Interval: time.Millisecond,
		}),
		Recorder: recorder.New(0),
	})
	p := chainPipeline(t)

	session, err := e.Start(context.Background(), p)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Дожидаемся первого опроса, чтобы остановка пришлась на running узел
	waitFor(t, func() bool {
		client.mu.Lock()
		defer client.mu.Unlock()
		return client.statusCalls > 0
	})

	// Второй запуск поверх активного отклоняется
	if _, err := e.Run(context.Background(), p); !errors.Is(err, ErrRunActive) {
		t.Errorf("expected ErrRunActive, got %v", err)
	}

	if err := e.Stop(p.ID); err != nil {
		t.Fatalf("stop: %v", err)
	}
	waitFor(t, func() bool { return !e.IsRunning(p.ID) })

	history := e.Recorder().History(p.ID)
	if len(history) != 1 || history[0].ID != session.ID {
		t.Fatalf("stopped session must be sealed into history")
	}
	if history[0].Status != domain.SessionStatusStopped {
		t.Errorf("expected stopped, got %s", history[0].Status)
	}
	if p.Status != domain.PipelineStatusDraft {
		t.Errorf("stopped pipeline returns to draft, got %s", p.Status)
	}

	// Remote job отменён best-effort
	client.mu.Lock()
	cancelled := len(client.cancelled)
	client.mu.Unlock()
	if cancelled != 1 {
		t.Errorf("expected 1 cancel call, got %d", cancelled)
	}

	if err := e.Stop(p.ID); !errors.Is(err, ErrNoActiveRun) {
		t.Errorf("stop without active run: expected ErrNoActiveRun, got %v", err)
	}
}

func TestExecutor_ConcurrentSnapshotDuringRun(t *testing.T) {
	client := newFakeClient()
	client.script(domain.NodeTypeStructureGen, jobScript{polls: 1 << 20})

	clock := jobs.RealClock()
	e := New(Config{
		Client: client,
		Clock:  clock,
		Poller: jobs.NewPoller(jobs.PollerConfig{
			Client:   client,
			Clock:    clock,
			Interval: time.Millisecond,
		}),
		Recorder: recorder.New(0),
	})
	p := chainPipeline(t)

	if _, err := e.Start(context.Background(), p); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Читатели сериализуют живой pipeline и текущую session, пока
	// executor мутирует их в фоне. Guard и снимки recorder'а делают
	// это безопасным (проверяется под -race).
	stopReaders := make(chan struct{})
	var readers sync.WaitGroup
	for i := 0; i < 4; i++ {
		readers.Add(1)
		go func() {
			defer readers.Done()
			for {
				select {
				case <-stopReaders:
					return
				default:
				}
				g := e.Guard(p.ID)
				g.Lock()
				_, err := json.Marshal(p)
				g.Unlock()
				if err != nil {
					t.Errorf("marshal pipeline: %v", err)
					return
				}
				if s := e.Recorder().Current(p.ID); s != nil {
					if _, err := json.Marshal(s); err != nil {
						t.Errorf("marshal session: %v", err)
						return
					}
				}
			}
		}()
	}

	waitFor(t, func() bool {
		client.mu.Lock()
		defer client.mu.Unlock()
		return client.statusCalls > 3
	})

	if err := e.Stop(p.ID); err != nil {
		t.Fatalf("stop: %v", err)
	}
	waitFor(t, func() bool { return !e.IsRunning(p.ID) })
	close(stopReaders)
	readers.Wait()
}

func TestExecutor_CurrentSessionSnapshotIsDetached(t *testing.T) {
	client := newFakeClient()
	e := newTestExecutor(client, newFakeClock())
	p := chainPipeline(t)

	if _, err := e.Run(context.Background(), p); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	session, err := e.ExecuteNode(context.Background(), p, "des")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Возвращённая session — снимок на момент старта: дальнейшие
	// обновления журнала его не трогают
	before := session.Entries[0].Status
	waitFor(t, func() bool { return !e.IsRunning(p.ID) })
	if session.Entries[0].Status != before {
		t.Error("returned session snapshot must not change after the fact")
	}

	history := e.Recorder().History(p.ID)
	if len(history) == 0 || history[0].Entries[0].Status != domain.NodeStatusSuccess {
		t.Fatal("sealed session must carry the final node status")
	}
}

func TestExecutor_RemoteCancelledJobStopsRun(t *testing.T) {
	client := newFakeClient()
	client.script(domain.NodeTypeStructureGen, jobScript{
		polls: 1,
		final: jobs.JobStatus{State: domain.JobStateCancelled},
	})

	e := newTestExecutor(client, newFakeClock())
	p := chainPipeline(t)

	session, err := e.Run(context.Background(), p)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Отмена на сервисе — не ошибка: запуск останавливается,
	// pipeline остаётся редактируемым
	if session.Status != domain.SessionStatusStopped {
		t.Errorf("expected stopped session, got %s", session.Status)
	}
	if p.Status != domain.PipelineStatusDraft {
		t.Errorf("pipeline must return to draft, got %s", p.Status)
	}
	gen := p.Node("gen")
	if gen.Status != domain.NodeStatusIdle {
		t.Errorf("cancelled node returns to idle, got %s", gen.Status)
	}
	if gen.Error != "" {
		t.Errorf("cancellation must not set a node error, got %q", gen.Error)
	}
	if p.Node("in").Status != domain.NodeStatusSuccess {
		t.Error("completed input must keep its result")
	}
	// Узел после отменённого не стартовал
	if entry := session.Entry("des"); entry.StartedAt != nil {
		t.Error("downstream node must not have started")
	}
}

func TestExecutor_ExecuteNodeSingle(t *testing.T) {
	client := newFakeClient()
	e := newTestExecutor(client, newFakeClock())
	p := chainPipeline(t)

	if _, err := e.Run(context.Background(), p); err != nil {
		t.Fatalf("full run: %v", err)
	}
	before := client.submitCount()

	session, err := e.ExecuteNode(context.Background(), p, "des")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	waitFor(t, func() bool { return !e.IsRunning(p.ID) })

	if len(session.Entries) != 1 || session.Entries[0].NodeID != "des" {
		t.Fatalf("single-node session must log exactly that node: %+v", session.Entries)
	}
	// Узел перезапущен принудительно, несмотря на прежний success
	if got := client.submitCount() - before; got != 1 {
		t.Errorf("expected 1 resubmit, got %d", got)
	}
	if p.Node("des").Status != domain.NodeStatusSuccess {
		t.Errorf("rerun node: %s", p.Node("des").Status)
	}
	if p.Status != domain.PipelineStatusCompleted {
		t.Errorf("all nodes success, pipeline must be completed, got %s", p.Status)
	}
}

func TestExecutor_ExecuteNodeUnknown(t *testing.T) {
	e := newTestExecutor(newFakeClient(), newFakeClock())
	p := chainPipeline(t)

	if _, err := e.ExecuteNode(context.Background(), p, "ghost"); err == nil {
		t.Fatal("expected error for unknown node")
	}
}

// waitFor ждёт условие с таймаутом (для асинхронных запусков).
func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatal("condition not met within deadline")
}

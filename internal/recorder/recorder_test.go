package recorder

import (
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shaiso/Helix/internal/domain"
)

func buildPipeline(t *testing.T) *domain.Pipeline {
	t.Helper()
	p := domain.NewPipeline("test", "user-1", time.Now())
	p.Nodes = []domain.Node{
		{ID: "in", Type: domain.NodeTypeInput, Label: "Input", Status: domain.NodeStatusIdle},
		{ID: "gen", Type: domain.NodeTypeStructureGen, Label: "Gen", Status: domain.NodeStatusIdle},
		{ID: "des", Type: domain.NodeTypeSequenceDesign, Label: "Design", Status: domain.NodeStatusIdle},
	}
	return p
}

func TestRecorder_BeginPrepopulatesEntries(t *testing.T) {
	r := New(0)
	p := buildPipeline(t)
	p.Nodes[0].Status = domain.NodeStatusSuccess
	p.Nodes[0].Result = &domain.JobResult{Type: domain.NodeTypeInput, ArtifactURL: "https://store/in.pdb"}

	session, err := r.Begin(p, []string{"in", "gen", "des"}, time.Now())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(session.Entries) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(session.Entries))
	}
	// Уже завершённый узел записан как success сразу
	if session.Entries[0].Status != domain.NodeStatusSuccess {
		t.Errorf("skipped node must be pre-marked success, got %s", session.Entries[0].Status)
	}
	if session.Entries[0].Output == nil {
		t.Error("skipped node entry must carry its prior output")
	}
	if session.Entries[1].Status != domain.NodeStatusPending {
		t.Errorf("expected pending, got %s", session.Entries[1].Status)
	}
	if session.Status != domain.SessionStatusRunning {
		t.Errorf("new session must be running, got %s", session.Status)
	}
}

func TestRecorder_BeginRejectsSecondSession(t *testing.T) {
	r := New(0)
	p := buildPipeline(t)

	if _, err := r.Begin(p, []string{"in", "gen", "des"}, time.Now()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := r.Begin(p, []string{"in", "gen", "des"}, time.Now()); !errors.Is(err, ErrSessionActive) {
		t.Fatalf("expected ErrSessionActive, got %v", err)
	}
}

func TestRecorder_CompleteIsIdempotent(t *testing.T) {
	r := New(0)
	p := buildPipeline(t)
	start := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	if _, err := r.Begin(p, []string{"in", "gen", "des"}, start); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := r.MarkRunning(p.ID, "gen", map[string]any{"contig": "70-100"}, start); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	first := start.Add(10 * time.Second)
	if err := r.Complete(p.ID, "gen", Completion{
		Status: domain.NodeStatusSuccess,
		Output: map[string]any{"backbones": 4},
	}, first); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Повторный сигнал завершения не должен переписать тайминги
	if err := r.Complete(p.ID, "gen", Completion{
		Status: domain.NodeStatusError,
		Error:  "late duplicate",
	}, first.Add(time.Minute)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	entry := r.Current(p.ID).Entry("gen")
	if entry.Status != domain.NodeStatusSuccess {
		t.Errorf("duplicate completion must not change status, got %s", entry.Status)
	}
	if !entry.FinishedAt.Equal(first) {
		t.Errorf("finishedAt overwritten: %v", entry.FinishedAt)
	}
	if entry.DurationMs != 10000 {
		t.Errorf("duration: %d", entry.DurationMs)
	}
}

func TestRecorder_StatusUpdatePreservesCapturedExchange(t *testing.T) {
	r := New(0)
	p := buildPipeline(t)
	now := time.Now()

	if _, err := r.Begin(p, []string{"in", "gen", "des"}, now); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := r.MarkRunning(p.ID, "gen", nil, now); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	req := &domain.CapturedRequest{Method: "POST", URL: "https://svc/structure-generation/submit"}
	resp := &domain.CapturedResponse{Status: 200}
	if err := r.AttachExchange(p.ID, "gen", req, resp); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Обновления статуса не трогают зафиксированный обмен
	if err := r.SetStatus(p.ID, "gen", domain.NodeStatusRunning); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	entry := r.Current(p.ID).Entry("gen")
	if entry.Request == nil || entry.Request.URL != req.URL {
		t.Error("request lost on status update")
	}
	if entry.Response == nil || entry.Response.Status != 200 {
		t.Error("response lost on status update")
	}
}

func TestRecorder_CurrentReturnsDetachedSnapshot(t *testing.T) {
	r := New(0)
	p := buildPipeline(t)
	now := time.Now()

	if _, err := r.Begin(p, []string{"in", "gen", "des"}, now); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	snapshot := r.Current(p.ID)

	// Обновления журнала после снятия снимка его не трогают:
	// читатели могут сериализовать снимок параллельно с executor'ом
	if err := r.MarkRunning(p.ID, "gen", nil, now); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := r.Complete(p.ID, "gen", Completion{Status: domain.NodeStatusSuccess}, now.Add(time.Second)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if got := snapshot.Entry("gen").Status; got != domain.NodeStatusPending {
		t.Errorf("snapshot must be detached from later updates, got %s", got)
	}
	if got := r.Current(p.ID).Entry("gen").Status; got != domain.NodeStatusSuccess {
		t.Errorf("fresh snapshot must see the update, got %s", got)
	}
}

func TestRecorder_SealMovesToHistoryNewestFirst(t *testing.T) {
	r := New(0)
	p := buildPipeline(t)

	var sealed []uuid.UUID
	for i := 0; i < 3; i++ {
		s, err := r.Begin(p, []string{"in", "gen", "des"}, time.Now())
		if err != nil {
			t.Fatalf("run %d: %v", i, err)
		}
		if _, err := r.Seal(p.ID, domain.SessionStatusCompleted, time.Now()); err != nil {
			t.Fatalf("run %d: %v", i, err)
		}
		sealed = append(sealed, s.ID)
	}

	h := r.History(p.ID)
	if len(h) != 3 {
		t.Fatalf("expected 3 sessions, got %d", len(h))
	}
	// Новые сверху
	if h[0].ID != sealed[2] || h[2].ID != sealed[0] {
		t.Error("history must be newest-first")
	}
	if r.Current(p.ID) != nil {
		t.Error("sealed session must leave current slot")
	}
	if h[0].FinishedAt == nil {
		t.Error("sealed session must have finishedAt")
	}
}

func TestRecorder_HistoryBounded(t *testing.T) {
	r := New(2)
	p := buildPipeline(t)

	for i := 0; i < 5; i++ {
		if _, err := r.Begin(p, []string{"in"}, time.Now()); err != nil {
			t.Fatalf("run %d: %v", i, err)
		}
		if _, err := r.Seal(p.ID, domain.SessionStatusCompleted, time.Now()); err != nil {
			t.Fatalf("run %d: %v", i, err)
		}
	}

	if got := len(r.History(p.ID)); got != 2 {
		t.Errorf("history must be capped at 2, got %d", got)
	}
}

func TestRecorder_SealWithoutSession(t *testing.T) {
	r := New(0)
	if _, err := r.Seal(uuid.New(), domain.SessionStatusStopped, time.Now()); !errors.Is(err, ErrNoSession) {
		t.Fatalf("expected ErrNoSession, got %v", err)
	}
}

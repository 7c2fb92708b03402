package jobs

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/shaiso/Helix/internal/domain"
)

// fakeClock — детерминированное время: After немедленно "прокручивает"
// часы на запрошенную длительность.
type fakeClock struct {
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	return c.now
}

func (c *fakeClock) After(d time.Duration) <-chan time.Time {
	c.now = c.now.Add(d)
	ch := make(chan time.Time, 1)
	ch <- c.now
	return ch
}

// scriptedClient — Client, отвечающий по заранее заданному сценарию.
type scriptedClient struct {
	statuses []scriptedStatus
	calls    int
}

type scriptedStatus struct {
	status *JobStatus
	err    error
}

func (c *scriptedClient) Submit(ctx context.Context, jobType domain.NodeType, payload any) (*SubmitAck, error) {
	return &SubmitAck{JobID: "job-1", State: domain.JobStateQueued}, nil
}

func (c *scriptedClient) Status(ctx context.Context, jobType domain.NodeType, jobID string) (*JobStatus, error) {
	idx := c.calls
	if idx >= len(c.statuses) {
		idx = len(c.statuses) - 1
	}
	c.calls++
	s := c.statuses[idx]
	return s.status, s.err
}

func (c *scriptedClient) Cancel(ctx context.Context, jobType domain.NodeType, jobID string) error {
	return nil
}

func newTestPoller(client Client, clock Clock) *Poller {
	return NewPoller(PollerConfig{
		Client:   client,
		Clock:    clock,
		Interval: 5 * time.Second,
	})
}

func TestPoller_CompletedAfterPolls(t *testing.T) {
	client := &scriptedClient{statuses: []scriptedStatus{
		{status: &JobStatus{State: domain.JobStateRunning}},
		{status: &JobStatus{State: domain.JobStateRunning}},
		{status: &JobStatus{
			State:  domain.JobStateCompleted,
			Result: map[string]any{"pdb_url": "https://store/out.pdb"},
		}},
	}}

	poller := newTestPoller(client, newFakeClock())
	outcome, err := poller.Wait(context.Background(), PollRequest{
		Type:    domain.NodeTypePrediction,
		JobID:   "job-1",
		Ceiling: time.Hour,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if outcome.State != domain.JobStateCompleted {
		t.Errorf("expected completed, got %s", outcome.State)
	}
	if outcome.Result["pdb_url"] != "https://store/out.pdb" {
		t.Errorf("result not captured: %v", outcome.Result)
	}
	if client.calls != 3 {
		t.Errorf("expected 3 poll calls, got %d", client.calls)
	}
}

func TestPoller_TransientErrorsRetriedSilently(t *testing.T) {
	client := &scriptedClient{statuses: []scriptedStatus{
		{err: fmt.Errorf("%w: connection refused", ErrRemotePoll)},
		{err: fmt.Errorf("%w: %w", ErrRemotePoll, &StatusError{Code: 503})},
		{status: &JobStatus{State: domain.JobStateCompleted, Result: map[string]any{}}},
	}}

	poller := newTestPoller(client, newFakeClock())
	outcome, err := poller.Wait(context.Background(), PollRequest{
		Type:    domain.NodeTypeDocking,
		JobID:   "job-1",
		Ceiling: time.Hour,
	})
	if err != nil {
		t.Fatalf("transient errors must be retried, got %v", err)
	}
	if outcome.State != domain.JobStateCompleted {
		t.Errorf("expected completed, got %s", outcome.State)
	}
	if client.calls != 3 {
		t.Errorf("expected 3 calls, got %d", client.calls)
	}
}

func TestPoller_TerminalHTTPCodeStopsImmediately(t *testing.T) {
	client := &scriptedClient{statuses: []scriptedStatus{
		{err: fmt.Errorf("%w: %w", ErrRemotePoll, &StatusError{Code: 404})},
		{status: &JobStatus{State: domain.JobStateCompleted}},
	}}

	poller := newTestPoller(client, newFakeClock())
	_, err := poller.Wait(context.Background(), PollRequest{
		Type:    domain.NodeTypePrediction,
		JobID:   "job-1",
		Ceiling: time.Hour,
	})

	if !errors.Is(err, ErrRemotePoll) {
		t.Fatalf("expected ErrRemotePoll, got %v", err)
	}
	if client.calls != 1 {
		t.Errorf("404 must stop polling immediately, got %d calls", client.calls)
	}
}

func TestPoller_CeilingReportsStillRunning(t *testing.T) {
	client := &scriptedClient{statuses: []scriptedStatus{
		{status: &JobStatus{State: domain.JobStateRunning}},
	}}

	poller := newTestPoller(client, newFakeClock())
	outcome, err := poller.Wait(context.Background(), PollRequest{
		Type:    domain.NodeTypeStructureGen,
		JobID:   "job-1",
		Ceiling: time.Minute, // 12 опросов по 5s
	})

	if !errors.Is(err, ErrStillRunning) {
		t.Fatalf("expected ErrStillRunning, got %v", err)
	}
	// Последнее наблюдавшееся состояние сохраняется
	if outcome.State != domain.JobStateRunning {
		t.Errorf("expected last observed state running, got %s", outcome.State)
	}
}

func TestPoller_ProgressMonotone(t *testing.T) {
	// Сервер присылает убывающий прогресс — оценка не должна падать
	client := &scriptedClient{statuses: []scriptedStatus{
		{status: &JobStatus{State: domain.JobStateRunning, Progress: 0.5}},
		{status: &JobStatus{State: domain.JobStateRunning, Progress: 0.3}},
		{status: &JobStatus{State: domain.JobStateRunning, Progress: 0.4}},
		{status: &JobStatus{State: domain.JobStateCompleted, Result: map[string]any{}}},
	}}

	var observed []float64
	poller := newTestPoller(client, newFakeClock())
	_, err := poller.Wait(context.Background(), PollRequest{
		Type:     domain.NodeTypeSequenceDesign,
		JobID:    "job-1",
		Ceiling:  time.Hour,
		Expected: time.Minute,
		OnProgress: func(p float64) {
			observed = append(observed, p)
		},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	prev := 0.0
	for i, p := range observed {
		if p < prev {
			t.Errorf("progress decreased at %d: %v", i, observed)
		}
		prev = p
	}
	if len(observed) == 0 || observed[len(observed)-1] != 1 {
		t.Errorf("completed job should reach progress 1, got %v", observed)
	}
}

func TestPoller_ElapsedTimeEstimateWithoutServerProgress(t *testing.T) {
	client := &scriptedClient{statuses: []scriptedStatus{
		{status: &JobStatus{State: domain.JobStateRunning}},
		{status: &JobStatus{State: domain.JobStateRunning}},
		{status: &JobStatus{State: domain.JobStateRunning}},
		{status: &JobStatus{State: domain.JobStateCompleted, Result: map[string]any{}}},
	}}

	var observed []float64
	poller := newTestPoller(client, newFakeClock())
	_, err := poller.Wait(context.Background(), PollRequest{
		Type:     domain.NodeTypeDocking,
		JobID:    "job-1",
		Ceiling:  time.Hour,
		Expected: 20 * time.Second, // оценка растёт заметно между опросами
		OnProgress: func(p float64) {
			observed = append(observed, p)
		},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(observed) < 2 {
		t.Fatalf("expected elapsed-based progress updates, got %v", observed)
	}
}

func TestPoller_StopObservedAtPollBoundary(t *testing.T) {
	client := &scriptedClient{statuses: []scriptedStatus{
		{status: &JobStatus{State: domain.JobStateRunning}},
	}}

	stop := make(chan struct{})
	close(stop)

	poller := newTestPoller(client, newFakeClock())
	outcome, err := poller.Wait(context.Background(), PollRequest{
		Type:    domain.NodeTypePrediction,
		JobID:   "job-1",
		Ceiling: time.Hour,
		Stop:    stop,
	})

	if !errors.Is(err, ErrStopped) {
		t.Fatalf("expected ErrStopped, got %v", err)
	}
	// Первый опрос успел выполниться — состояние last observed
	if outcome.State != domain.JobStateRunning {
		t.Errorf("expected last observed running, got %s", outcome.State)
	}
	if client.calls != 1 {
		t.Errorf("stop must be observed at poll boundary, got %d calls", client.calls)
	}
}

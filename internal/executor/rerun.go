package executor

import (
	"context"
	"errors"
	"fmt"

	"github.com/shaiso/Helix/internal/domain"
	"github.com/shaiso/Helix/internal/engine"
	"github.com/shaiso/Helix/internal/jobs"
)

// ExecuteNode выполняет один узел вне полного прогона.
//
// Узел перезапускается принудительно, даже если он уже success.
// Upstream-узлы не выполняются: их сохранённые результаты используются
// как есть, отсутствие нужного результата — ошибка валидации.
// Создаётся отдельная session с единственной записью журнала.
func (e *Executor) ExecuteNode(ctx context.Context, p *domain.Pipeline, nodeID string) (*domain.ExecutionSession, error) {
	e.mu.Lock()
	if _, ok := e.runs[p.ID]; ok {
		e.mu.Unlock()
		return nil, fmt.Errorf("%w: %s", ErrRunActive, p.ID)
	}
	e.mu.Unlock()

	g := e.Guard(p.ID)
	g.Lock()
	node := p.Node(nodeID)
	if node == nil {
		g.Unlock()
		return nil, fmt.Errorf("%w: %s", engine.ErrNodeNotFound, nodeID)
	}
	if err := e.validateNode(p, node); err != nil {
		g.Unlock()
		return nil, err
	}

	node.Reset()

	now := e.clock.Now()
	session, err := e.recorder.Begin(p, []string{nodeID}, now)
	if err != nil {
		g.Unlock()
		return nil, err
	}

	node.Status = domain.NodeStatusPending
	p.Status = domain.PipelineStatusRunning
	p.Touch(now)
	g.Unlock()
	e.save(ctx, p)

	h := &runHandle{
		sessionID: session.ID,
		stop:      make(chan struct{}),
		done:      make(chan struct{}),
	}
	e.mu.Lock()
	e.runs[p.ID] = h
	e.mu.Unlock()

	if e.notifier != nil {
		e.notifier.PipelineStarted(p, session.ID)
	}

	go func() {
		defer close(h.done)
		bg := context.WithoutCancel(ctx)

		err := e.executeNode(bg, p, node, h.stop)

		now := e.clock.Now()
		var sessionStatus domain.SessionStatus
		g := e.Guard(p.ID)
		g.Lock()
		switch {
		case err == nil:
			sessionStatus = domain.SessionStatusCompleted
			e.settlePipelineStatus(p)
		case isStopLike(err):
			sessionStatus = domain.SessionStatusStopped
			p.Status = domain.PipelineStatusDraft
		default:
			sessionStatus = domain.SessionStatusFailed
			p.Status = domain.PipelineStatusFailed
		}
		p.Touch(now)
		g.Unlock()

		sealed, serr := e.recorder.Seal(p.ID, sessionStatus, now)
		if serr != nil {
			e.logger.Error("seal session", "pipeline_id", p.ID, "error", serr)
			sealed = session
		}
		e.save(bg, p)

		e.mu.Lock()
		delete(e.runs, p.ID)
		e.mu.Unlock()

		if e.notifier != nil {
			e.notifier.PipelineFinished(p, sealed)
		}
	}()

	return session, nil
}

// settlePipelineStatus выставляет статус pipeline после одиночного
// запуска узла: completed, если успешны все узлы, иначе draft.
func (e *Executor) settlePipelineStatus(p *domain.Pipeline) {
	for i := range p.Nodes {
		if p.Nodes[i].Status != domain.NodeStatusSuccess {
			p.Status = domain.PipelineStatusDraft
			return
		}
	}
	p.Status = domain.PipelineStatusCompleted
}

// isStopLike сообщает, что запуск завершился остановкой, а не ошибкой:
// остановка пользователем, исчерпание потолка опроса или отмена job
// на стороне сервиса.
func isStopLike(err error) bool {
	return errors.Is(err, jobs.ErrStopped) ||
		errors.Is(err, jobs.ErrStillRunning) ||
		errors.Is(err, jobs.ErrJobCancelled)
}

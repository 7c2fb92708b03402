package executor

import (
	"context"
	"errors"
	"fmt"

	"github.com/shaiso/Helix/internal/domain"
	"github.com/shaiso/Helix/internal/engine"
	"github.com/shaiso/Helix/internal/jobs"
	"github.com/shaiso/Helix/internal/recorder"
)

// rcsbDownloadURL — шаблон ссылки на структуру по PDB ID.
const rcsbDownloadURL = "https://files.rcsb.org/download/%s.pdb"

// validateNode проверяет конфигурацию узла до запуска.
// Input-узлы проверяются напрямую, остальные — своим адаптером.
func (e *Executor) validateNode(p *domain.Pipeline, node *domain.Node) error {
	if node.Type == domain.NodeTypeInput {
		if configString(node.Config, "file_url") == "" && configString(node.Config, "pdb_id") == "" {
			return engine.NewValidationError(node.ID, "config",
				"input node requires file_url or pdb_id", jobs.ErrInvalidConfig)
		}
		return nil
	}

	adapter, err := e.registry.Get(node.Type)
	if err != nil {
		return err
	}
	if err := adapter.Validate(node, e.upstreamNodes(p, node.ID)); err != nil {
		return engine.NewValidationError(node.ID, "config", err.Error(), err)
	}
	return nil
}

// executeNode выполняет один узел: pending → running → success|error.
//
// Возвращаемые ошибки:
//   - nil — узел успешен, результат сохранён в node.Result
//   - jobs.ErrStopped — остановлено пользователем, узел возвращён в idle
//   - jobs.ErrStillRunning — потолок ожидания исчерпан, узел в idle
//   - jobs.ErrJobCancelled — job отменён на сервисе, узел в idle
//   - прочее — узел переведён в error
func (e *Executor) executeNode(ctx context.Context, p *domain.Pipeline, node *domain.Node, stop <-chan struct{}) error {
	now := e.clock.Now()
	e.mutate(p, func() { node.Status = domain.NodeStatusRunning })
	if err := e.recorder.MarkRunning(p.ID, node.ID, cloneConfig(node.Config), now); err != nil {
		e.logger.Warn("mark running", "node_id", node.ID, "error", err)
	}
	e.save(ctx, p)

	if node.Type == domain.NodeTypeInput {
		return e.resolveInput(p, node)
	}

	adapter, err := e.registry.Get(node.Type)
	if err != nil {
		return e.failNode(p, node, err, nil)
	}

	payload, err := adapter.BuildRequest(node, e.upstreamNodes(p, node.ID))
	if err != nil {
		return e.failNode(p, node, err, nil)
	}

	ack, err := e.client.Submit(ctx, node.Type, payload)
	if err != nil {
		return e.failNode(p, node, err, nil)
	}
	if err := e.recorder.AttachExchange(p.ID, node.ID, ack.Request, ack.Response); err != nil {
		e.logger.Warn("attach exchange", "node_id", node.ID, "error", err)
	}
	e.logger.Info("job submitted",
		"pipeline_id", p.ID, "node_id", node.ID, "job_id", ack.JobID, "type", node.Type)

	outcome, err := e.poller.Wait(ctx, jobs.PollRequest{
		Type:     node.Type,
		JobID:    ack.JobID,
		Ceiling:  adapter.Ceiling(),
		Expected: adapter.Expected(),
		Stop:     stop,
	})

	switch {
	case errors.Is(err, jobs.ErrStopped):
		// Остановка пользователем: best-effort отмена remote job,
		// узел возвращается в idle без результата. Запись журнала
		// сохраняет последний наблюдавшийся статус.
		if cerr := e.client.Cancel(context.WithoutCancel(ctx), node.Type, ack.JobID); cerr != nil {
			e.logger.Warn("cancel job", "job_id", ack.JobID, "error", cerr)
		}
		e.mutate(p, node.Reset)
		return err

	case errors.Is(err, jobs.ErrStillRunning):
		// Потолок исчерпан: job остаётся на сервисе, но локальный
		// запуск останавливается. Узел отдаст результат при рестарте
		// уже новым job'ом.
		e.logger.Warn("job exceeded polling ceiling",
			"pipeline_id", p.ID, "node_id", node.ID, "job_id", ack.JobID)
		e.mutate(p, node.Reset)
		return err

	case err != nil:
		return e.failNode(p, node, err, nil)
	}

	switch outcome.State {
	case domain.JobStateCompleted:
		result, nerr := adapter.Normalize(ack.JobID, outcome.Result)
		if nerr != nil {
			return e.failNode(p, node, nerr, outcome.Response)
		}
		result.JobID = ack.JobID
		result.Fingerprint = e.fingerprint(p, node.ID)
		e.mutate(p, func() { node.MarkSuccess(result) })

		if rerr := e.recorder.Complete(p.ID, node.ID, recorder.Completion{
			Status:   domain.NodeStatusSuccess,
			Output:   result.Summary(),
			Response: outcome.Response,
		}, e.clock.Now()); rerr != nil {
			e.logger.Warn("complete entry", "node_id", node.ID, "error", rerr)
		}
		e.notifyNode(p, node.ID)
		return nil

	case domain.JobStateError:
		msg := outcome.Error
		if msg == "" {
			msg = "job failed on remote service"
		}
		return e.failNode(p, node, fmt.Errorf("%w: %s", jobs.ErrJobFailed, msg), outcome.Response)

	case domain.JobStateCancelled:
		// Отмена на стороне сервиса — не ошибка узла: как и при
		// остановке пользователем, узел возвращается в idle, запуск
		// завершается со статусом stopped. Журнал сохраняет последний
		// наблюдавшийся ответ сервиса.
		e.logger.Warn("job cancelled on remote service",
			"pipeline_id", p.ID, "node_id", node.ID, "job_id", ack.JobID)
		if rerr := e.recorder.Complete(p.ID, node.ID, recorder.Completion{
			Status:   domain.NodeStatusIdle,
			Response: outcome.Response,
		}, e.clock.Now()); rerr != nil {
			e.logger.Warn("complete entry", "node_id", node.ID, "error", rerr)
		}
		e.mutate(p, node.Reset)
		return fmt.Errorf("%w: %s", jobs.ErrJobCancelled, ack.JobID)

	default: // not_found
		return e.failNode(p, node, fmt.Errorf("%w: job not found on remote service", jobs.ErrJobFailed), outcome.Response)
	}
}

// resolveInput завершает input-узел без remote job: результат — ссылка
// на файл пользователя или на структуру из PDB.
func (e *Executor) resolveInput(p *domain.Pipeline, node *domain.Node) error {
	url := configString(node.Config, "file_url")
	if url == "" {
		url = fmt.Sprintf(rcsbDownloadURL, configString(node.Config, "pdb_id"))
	}

	result := &domain.JobResult{
		Type:        domain.NodeTypeInput,
		ArtifactURL: url,
		Format:      "pdb",
		Fingerprint: e.fingerprint(p, node.ID),
	}
	e.mutate(p, func() { node.MarkSuccess(result) })

	if err := e.recorder.Complete(p.ID, node.ID, recorder.Completion{
		Status: domain.NodeStatusSuccess,
		Output: result.Summary(),
	}, e.clock.Now()); err != nil {
		e.logger.Warn("complete entry", "node_id", node.ID, "error", err)
	}
	e.notifyNode(p, node.ID)
	return nil
}

// failNode переводит узел в error и фиксирует это в журнале.
func (e *Executor) failNode(p *domain.Pipeline, node *domain.Node, cause error, resp *domain.CapturedResponse) error {
	e.mutate(p, func() { node.MarkError(cause.Error()) })
	if err := e.recorder.Complete(p.ID, node.ID, recorder.Completion{
		Status:   domain.NodeStatusError,
		Error:    cause.Error(),
		Response: resp,
	}, e.clock.Now()); err != nil {
		e.logger.Warn("complete entry", "node_id", node.ID, "error", err)
	}
	e.notifyNode(p, node.ID)
	return cause
}

// notifyNode отправляет событие завершения узла, если есть notifier.
func (e *Executor) notifyNode(p *domain.Pipeline, nodeID string) {
	if e.notifier == nil {
		return
	}
	session := e.recorder.Current(p.ID)
	if session == nil {
		return
	}
	if entry := session.Entry(nodeID); entry != nil {
		e.notifier.NodeFinished(p, session.ID, entry)
	}
}

// upstreamNodes возвращает прямые зависимости узла в порядке добавления.
func (e *Executor) upstreamNodes(p *domain.Pipeline, nodeID string) []*domain.Node {
	ids := p.Upstream(nodeID)
	set := make(map[string]bool, len(ids))
	for _, id := range ids {
		set[id] = true
	}
	var nodes []*domain.Node
	for i := range p.Nodes {
		if set[p.Nodes[i].ID] {
			nodes = append(nodes, &p.Nodes[i])
		}
	}
	return nodes
}

func configString(m map[string]any, key string) string {
	if v, ok := m[key]; ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

func cloneConfig(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	cp := make(map[string]any, len(m))
	for k, v := range m {
		cp[k] = v
	}
	return cp
}

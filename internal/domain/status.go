package domain

// PipelineStatus — статус pipeline.
//
// Жизненный цикл:
//
//	draft → running → completed
//	               ↘ failed
//	(stop возвращает pipeline в draft)
type PipelineStatus string

const (
	// PipelineStatusDraft — pipeline редактируется, не выполняется.
	PipelineStatusDraft PipelineStatus = "draft"

	// PipelineStatusRunning — pipeline в процессе выполнения.
	PipelineStatusRunning PipelineStatus = "running"

	// PipelineStatusCompleted — последний запуск завершился успешно.
	PipelineStatusCompleted PipelineStatus = "completed"

	// PipelineStatusFailed — последний запуск завершился с ошибкой.
	PipelineStatusFailed PipelineStatus = "failed"
)

// NodeStatus — статус выполнения узла.
//
// Жизненный цикл:
//
//	idle → pending → running → success
//	                         ↘ error
type NodeStatus string

const (
	// NodeStatusIdle — узел ещё не участвовал в выполнении.
	NodeStatusIdle NodeStatus = "idle"

	// NodeStatusPending — узел ожидает своей очереди в текущем запуске.
	NodeStatusPending NodeStatus = "pending"

	// NodeStatusRunning — узел выполняется (remote job в процессе).
	NodeStatusRunning NodeStatus = "running"

	// NodeStatusSuccess — узел успешно завершён, результат сохранён.
	NodeStatusSuccess NodeStatus = "success"

	// NodeStatusError — узел завершился с ошибкой.
	NodeStatusError NodeStatus = "error"
)

// IsTerminal возвращает true, если статус финальный.
func (s NodeStatus) IsTerminal() bool {
	switch s {
	case NodeStatusSuccess, NodeStatusError:
		return true
	default:
		return false
	}
}

// SessionStatus — статус execution session.
//
// Жизненный цикл:
//
//	running → completed
//	        ↘ failed
//	        ↘ stopped (по запросу пользователя)
type SessionStatus string

const (
	// SessionStatusRunning — session в процессе выполнения.
	SessionStatusRunning SessionStatus = "running"

	// SessionStatusCompleted — все узлы завершились успешно.
	SessionStatusCompleted SessionStatus = "completed"

	// SessionStatusFailed — хотя бы один узел упал.
	SessionStatusFailed SessionStatus = "failed"

	// SessionStatusStopped — выполнение остановлено пользователем.
	SessionStatusStopped SessionStatus = "stopped"
)

// IsTerminal возвращает true, если session завершена.
func (s SessionStatus) IsTerminal() bool {
	return s != SessionStatusRunning
}

// JobState — состояние remote job на вычислительном сервисе.
//
// Job существует только на удалённом сервисе; его состояние
// отражается в Node/ExecutionLogEntry через polling.
type JobState string

const (
	// JobStateQueued — job принят и ждёт очереди на сервисе.
	JobStateQueued JobState = "queued"

	// JobStateRunning — job выполняется.
	JobStateRunning JobState = "running"

	// JobStateCompleted — job успешно завершён, результат доступен.
	JobStateCompleted JobState = "completed"

	// JobStateError — job упал на сервисе.
	JobStateError JobState = "error"

	// JobStateCancelled — job отменён.
	JobStateCancelled JobState = "cancelled"

	// JobStateNotFound — сервис не знает такой job.
	JobStateNotFound JobState = "not_found"
)

// IsTerminal возвращает true, если polling можно останавливать.
func (s JobState) IsTerminal() bool {
	switch s {
	case JobStateCompleted, JobStateError, JobStateCancelled, JobStateNotFound:
		return true
	default:
		return false
	}
}

package recorder

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shaiso/Helix/internal/domain"
)

// defaultHistoryCap — сколько завершённых sessions хранится на pipeline.
const defaultHistoryCap = 20

// Ошибки recorder.
var (
	// ErrSessionActive — у pipeline уже есть текущая session.
	ErrSessionActive = errors.New("execution session already active")

	// ErrNoSession — у pipeline нет текущей session.
	ErrNoSession = errors.New("no active execution session")
)

// Recorder ведёт execution sessions по pipelines.
//
// На pipeline — не больше одной изменяемой "текущей" session;
// завершённые запечатываются в историю (новые сверху, размер ограничен).
// Записи журнала создаются один раз при старте session и дальше
// только обновляются по месту. Единственный писатель — executor.
type Recorder struct {
	mu      sync.RWMutex
	current map[uuid.UUID]*domain.ExecutionSession
	history map[uuid.UUID][]*domain.ExecutionSession
	cap     int
}

// New создаёт Recorder. historyCap <= 0 означает значение по умолчанию (20).
func New(historyCap int) *Recorder {
	if historyCap <= 0 {
		historyCap = defaultHistoryCap
	}
	return &Recorder{
		current: make(map[uuid.UUID]*domain.ExecutionSession),
		history: make(map[uuid.UUID][]*domain.ExecutionSession),
		cap:     historyCap,
	}
}

// Begin создаёт текущую session для pipeline.
//
// Журнал пред-заполняется записью на каждый узел из order — включая
// узлы, которые будут пропущены как уже завершённые (они сразу
// записываются со статусом success), чтобы полный план запуска был
// виден немедленно. Возвращается снимок на момент создания.
func (r *Recorder) Begin(p *domain.Pipeline, order []string, now time.Time) (*domain.ExecutionSession, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if cur, ok := r.current[p.ID]; ok && !cur.IsFinished() {
		return nil, ErrSessionActive
	}

	session := &domain.ExecutionSession{
		ID:         uuid.New(),
		PipelineID: p.ID,
		Status:     domain.SessionStatusRunning,
		StartedAt:  now,
		Entries:    make([]domain.ExecutionLogEntry, 0, len(order)),
	}

	for _, nodeID := range order {
		node := p.Node(nodeID)
		if node == nil {
			continue
		}
		entry := domain.ExecutionLogEntry{
			NodeID: node.ID,
			Label:  node.Label,
			Type:   node.Type,
			Status: domain.NodeStatusPending,
		}
		if node.Status == domain.NodeStatusSuccess {
			// Узел будет пропущен (skip-on-resume)
			entry.Status = domain.NodeStatusSuccess
			if node.Result != nil {
				entry.Output = node.Result.Summary()
			}
		}
		session.Entries = append(session.Entries, entry)
	}

	r.current[p.ID] = session
	return session.Clone(), nil
}

// Current возвращает снимок текущей session pipeline (nil, если нет).
// Снимок нужен, потому что записи текущей session обновляются по месту
// параллельно с чтением; запечатанные sessions неизменяемы.
func (r *Recorder) Current(pipelineID uuid.UUID) *domain.ExecutionSession {
	r.mu.RLock()
	defer r.mu.RUnlock()
	session, ok := r.current[pipelineID]
	if !ok {
		return nil
	}
	return session.Clone()
}

// History возвращает завершённые sessions, новые сверху.
func (r *Recorder) History(pipelineID uuid.UUID) []*domain.ExecutionSession {
	r.mu.RLock()
	defer r.mu.RUnlock()

	h := r.history[pipelineID]
	out := make([]*domain.ExecutionSession, len(h))
	copy(out, h)
	return out
}

// SetHistory замещает историю pipeline (восстановление после reload
// из remote хранилища).
func (r *Recorder) SetHistory(pipelineID uuid.UUID, sessions []*domain.ExecutionSession) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if len(sessions) > r.cap {
		sessions = sessions[:r.cap]
	}
	r.history[pipelineID] = sessions
}

// MarkRunning переводит запись узла в running и фиксирует снимок входа.
func (r *Recorder) MarkRunning(pipelineID uuid.UUID, nodeID string, input map[string]any, now time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	entry, err := r.entry(pipelineID, nodeID)
	if err != nil {
		return err
	}

	entry.Status = domain.NodeStatusRunning
	if entry.StartedAt == nil {
		started := now
		entry.StartedAt = &started
	}
	if input != nil {
		entry.Input = input
	}
	return nil
}

// SetStatus обновляет только статус записи, сохраняя ранее
// зафиксированные request/response/output.
func (r *Recorder) SetStatus(pipelineID uuid.UUID, nodeID string, status domain.NodeStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	entry, err := r.entry(pipelineID, nodeID)
	if err != nil {
		return err
	}
	entry.Status = status
	return nil
}

// Completion — данные терминального перехода записи.
type Completion struct {
	// Status — success или error.
	Status domain.NodeStatus

	// Error — текст ошибки при Status == error.
	Error string

	// Output — снимок нормализованного результата.
	Output map[string]any

	// Request — зафиксированный запрос (nil — сохранить прежний).
	Request *domain.CapturedRequest

	// Response — зафиксированный ответ (nil — сохранить прежний).
	Response *domain.CapturedResponse
}

// Complete переводит запись узла в терминальный статус.
//
// Идемпотентно: если FinishedAt уже установлен, повторный сигнал
// не перезаписывает тайминги и статус.
func (r *Recorder) Complete(pipelineID uuid.UUID, nodeID string, c Completion, now time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	entry, err := r.entry(pipelineID, nodeID)
	if err != nil {
		return err
	}

	if entry.FinishedAt != nil {
		return nil
	}

	entry.Status = c.Status
	entry.Error = c.Error
	finished := now
	entry.FinishedAt = &finished
	if entry.StartedAt != nil {
		entry.DurationMs = finished.Sub(*entry.StartedAt).Milliseconds()
	}
	if c.Output != nil {
		entry.Output = c.Output
	}
	if c.Request != nil {
		entry.Request = c.Request
	}
	if c.Response != nil {
		entry.Response = c.Response
	}
	return nil
}

// AttachExchange фиксирует request/response узла, не меняя статус.
func (r *Recorder) AttachExchange(pipelineID uuid.UUID, nodeID string, req *domain.CapturedRequest, resp *domain.CapturedResponse) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	entry, err := r.entry(pipelineID, nodeID)
	if err != nil {
		return err
	}
	if req != nil {
		entry.Request = req
	}
	if resp != nil {
		entry.Response = resp
	}
	return nil
}

// Seal завершает текущую session и перемещает её в историю.
func (r *Recorder) Seal(pipelineID uuid.UUID, status domain.SessionStatus, now time.Time) (*domain.ExecutionSession, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	session, ok := r.current[pipelineID]
	if !ok {
		return nil, ErrNoSession
	}

	session.Status = status
	finished := now
	session.FinishedAt = &finished

	delete(r.current, pipelineID)

	h := append([]*domain.ExecutionSession{session}, r.history[pipelineID]...)
	if len(h) > r.cap {
		h = h[:r.cap]
	}
	r.history[pipelineID] = h

	return session, nil
}

// entry возвращает запись журнала; вызывается под mu.
func (r *Recorder) entry(pipelineID uuid.UUID, nodeID string) (*domain.ExecutionLogEntry, error) {
	session, ok := r.current[pipelineID]
	if !ok {
		return nil, ErrNoSession
	}
	entry := session.Entry(nodeID)
	if entry == nil {
		return nil, errors.New("no log entry for node " + nodeID)
	}
	return entry, nil
}

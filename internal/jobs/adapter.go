package jobs

import (
	"fmt"
	"time"

	"github.com/shaiso/Helix/internal/domain"
)

// Adapter — адаптер одного типа job.
//
// Адаптер отвечает за границу между свободным config узла и
// типизированным контрактом сервиса: валидация и сужение config
// в типизированный запрос перед submit, нормализация сырого
// результата в domain.JobResult после завершения.
type Adapter interface {
	// Type — тип узла, который обслуживает адаптер.
	Type() domain.NodeType

	// Validate проверяет config узла до любых remote вызовов.
	// upstream — узлы, от которых зависит node (их результаты могут
	// закрывать отсутствующие в config поля).
	Validate(node *domain.Node, upstream []*domain.Node) error

	// BuildRequest собирает типизированный payload для submit.
	// upstream содержит результаты завершённых зависимостей.
	BuildRequest(node *domain.Node, upstream []*domain.Node) (any, error)

	// Normalize приводит сырой результат сервиса к JobResult.
	Normalize(jobID string, raw map[string]any) (*domain.JobResult, error)

	// Ceiling — потолок ожидания job этого типа.
	Ceiling() time.Duration

	// Expected — типичная продолжительность, основа для оценки
	// прогресса, когда сервер не присылает свою.
	Expected() time.Duration
}

// Registry — реестр адаптеров по типу узла.
type Registry struct {
	adapters map[domain.NodeType]Adapter
}

// NewRegistry создаёт реестр с адаптерами по умолчанию.
//
// Регистрирует: structure-generation, sequence-design,
// structure-prediction, docking. Input-узлы не порождают remote job
// и обрабатываются executor'ом напрямую.
func NewRegistry() *Registry {
	r := &Registry{adapters: make(map[domain.NodeType]Adapter)}
	r.Register(&StructureGenAdapter{})
	r.Register(&SequenceDesignAdapter{})
	r.Register(&PredictionAdapter{})
	r.Register(&DockingAdapter{})
	return r
}

// Register добавляет адаптер.
func (r *Registry) Register(a Adapter) {
	r.adapters[a.Type()] = a
}

// Get возвращает адаптер для типа узла.
func (r *Registry) Get(nodeType domain.NodeType) (Adapter, error) {
	a, ok := r.adapters[nodeType]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownJobType, nodeType)
	}
	return a, nil
}

// --- Извлечение значений из config map ---

func getString(m map[string]any, key string) string {
	if v, ok := m[key]; ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

func getInt(m map[string]any, key string, defaultVal int) int {
	if v, ok := m[key]; ok {
		switch n := v.(type) {
		case float64:
			return int(n)
		case int:
			return n
		}
	}
	return defaultVal
}

func getFloat(m map[string]any, key string, defaultVal float64) float64 {
	if v, ok := m[key]; ok {
		switch n := v.(type) {
		case float64:
			return n
		case int:
			return float64(n)
		}
	}
	return defaultVal
}

package engine

import "errors"

// Ошибки структуры графа.
var (
	// ErrCyclicGraph — граф содержит цикл, выполнение невозможно.
	ErrCyclicGraph = errors.New("graph contains a cycle")

	// ErrEmptyNodeID — узел не имеет ID.
	ErrEmptyNodeID = errors.New("node has empty ID")

	// ErrDuplicateNodeID — узел с таким ID уже есть в pipeline.
	ErrDuplicateNodeID = errors.New("duplicate node ID")

	// ErrNodeNotFound — узел не найден в pipeline.
	ErrNodeNotFound = errors.New("node not found")

	// ErrUnknownNodeType — неизвестный тип узла.
	ErrUnknownNodeType = errors.New("unknown node type")

	// ErrSelfEdge — ребро из узла в самого себя.
	ErrSelfEdge = errors.New("self-edge is not allowed")

	// ErrEdgeEndpoint — ребро ссылается на несуществующий узел.
	ErrEdgeEndpoint = errors.New("edge references unknown node")

	// ErrPipelineRunning — структурные правки запрещены во время выполнения.
	ErrPipelineRunning = errors.New("pipeline is running")

	// ErrEmptyPipeline — pipeline не содержит узлов.
	ErrEmptyPipeline = errors.New("pipeline has no nodes")
)

// ValidationError — ошибка валидации с контекстом узла.
type ValidationError struct {
	NodeID  string // ID узла, где произошла ошибка
	Field   string // поле config, вызвавшее ошибку
	Message string // описание ошибки
	Err     error  // базовая ошибка
}

// Error реализует интерфейс error.
func (e *ValidationError) Error() string {
	if e.NodeID != "" {
		return "node " + e.NodeID + ": " + e.Message
	}
	return e.Message
}

// Unwrap возвращает базовую ошибку.
func (e *ValidationError) Unwrap() error {
	return e.Err
}

// NewValidationError создаёт новую ошибку валидации.
func NewValidationError(nodeID, field, message string, err error) *ValidationError {
	return &ValidationError{
		NodeID:  nodeID,
		Field:   field,
		Message: message,
		Err:     err,
	}
}

package domain

// Blueprint — предложенный граф от conversational-агента.
//
// Агент присылает blueprint целиком; пользователь принимает
// подмножество узлов. Из принятых узлов и рёбер между ними
// создаётся новый draft pipeline.
type Blueprint struct {
	// Name — предлагаемое имя pipeline.
	Name string `json:"name,omitempty"`

	// Nodes — предложенные узлы.
	Nodes []BlueprintNode `json:"nodes"`

	// Edges — предложенные рёбра.
	Edges []Edge `json:"edges,omitempty"`
}

// BlueprintNode — узел blueprint (без статуса выполнения).
type BlueprintNode struct {
	// ID — идентификатор узла внутри blueprint.
	ID string `json:"id"`

	// Type — тип вычислительного шага.
	Type NodeType `json:"type"`

	// Label — имя узла.
	Label string `json:"label,omitempty"`

	// Config — параметры шага.
	Config map[string]any `json:"config,omitempty"`
}

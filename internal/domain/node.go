package domain

// NodeType — тип вычислительного шага.
type NodeType string

const (
	// NodeTypeInput — входной узел: ссылка на файл или внешний идентификатор
	// (PDB ID, загруженная структура). Не порождает remote job.
	NodeTypeInput NodeType = "input"

	// NodeTypeStructureGen — генерация белкового каркаса (backbone design).
	NodeTypeStructureGen NodeType = "structure-generation"

	// NodeTypeSequenceDesign — подбор аминокислотной последовательности
	// под заданный каркас.
	NodeTypeSequenceDesign NodeType = "sequence-design"

	// NodeTypePrediction — предсказание 3D-структуры по последовательности.
	NodeTypePrediction NodeType = "structure-prediction"

	// NodeTypeDocking — докинг лиганда или белок-белковый докинг.
	NodeTypeDocking NodeType = "docking"
)

// KnownNodeTypes — все поддерживаемые типы узлов.
var KnownNodeTypes = []NodeType{
	NodeTypeInput,
	NodeTypeStructureGen,
	NodeTypeSequenceDesign,
	NodeTypePrediction,
	NodeTypeDocking,
}

// IsKnown возвращает true, если тип узла поддерживается.
func (t NodeType) IsKnown() bool {
	for _, known := range KnownNodeTypes {
		if t == known {
			return true
		}
	}
	return false
}

// Node — один шаг pipeline.
//
// Config — свободная map параметров, специфичных для типа узла.
// Движок не интерпретирует config, кроме проверок обязательных полей;
// типизация происходит в адаптерах remote job client.
type Node struct {
	// ID — уникальный идентификатор узла в рамках pipeline.
	ID string `json:"id"`

	// Type — тип вычислительного шага.
	Type NodeType `json:"type"`

	// Label — человекочитаемое имя узла.
	Label string `json:"label,omitempty"`

	// Config — параметры шага (зависят от типа).
	// Для input: file_url или pdb_id
	// Для structure-generation: contig, num_designs
	// Для sequence-design: structure_url, num_sequences, temperature
	// Для structure-prediction: sequence
	// Для docking: receptor_url, ligand
	Config map[string]any `json:"config,omitempty"`

	// Status — текущий статус узла.
	Status NodeStatus `json:"status"`

	// Error — текст ошибки, если Status == error.
	Error string `json:"error,omitempty"`

	// Result — нормализованный результат remote job.
	// Заполняется при переходе в success.
	Result *JobResult `json:"result,omitempty"`
}

// IsTerminal возвращает true, если узел в финальном статусе.
func (n *Node) IsTerminal() bool {
	return n.Status.IsTerminal()
}

// MarkError переводит узел в статус error с сообщением.
func (n *Node) MarkError(msg string) {
	n.Status = NodeStatusError
	n.Error = msg
}

// MarkSuccess переводит узел в статус success с результатом.
func (n *Node) MarkSuccess(result *JobResult) {
	n.Status = NodeStatusSuccess
	n.Error = ""
	n.Result = result
}

// Reset возвращает узел в idle, сбрасывая результат прошлых запусков.
func (n *Node) Reset() {
	n.Status = NodeStatusIdle
	n.Error = ""
	n.Result = nil
}

// Edge — ребро зависимости: Target зависит от выхода Source.
type Edge struct {
	// Source — ID узла-источника.
	Source string `json:"source"`

	// Target — ID зависимого узла.
	Target string `json:"target"`
}

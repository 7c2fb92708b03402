package executor

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"sort"

	"github.com/shaiso/Helix/internal/domain"
)

// fingerprintEntry — вклад одного узла в отпечаток.
type fingerprintEntry struct {
	ID     string         `json:"id"`
	Type   string         `json:"type"`
	Config map[string]any `json:"config"`
}

// fingerprint вычисляет отпечаток конфигурации узла вместе со всеми
// его транзитивными upstream-узлами.
//
// Отпечаток сохраняется в JobResult при успехе; несовпадение при
// следующем запуске означает, что вход узла изменился и кэшированный
// результат больше не действителен. Изменение config любого upstream
// транзитивно меняет отпечатки всех зависимых узлов.
func (e *Executor) fingerprint(p *domain.Pipeline, nodeID string) string {
	ids := transitiveUpstream(p, nodeID)
	ids = append(ids, nodeID)
	sort.Strings(ids)

	entries := make([]fingerprintEntry, 0, len(ids))
	for _, id := range ids {
		node := p.Node(id)
		if node == nil {
			continue
		}
		entries = append(entries, fingerprintEntry{
			ID:     node.ID,
			Type:   string(node.Type),
			Config: node.Config,
		})
	}

	// json.Marshal сортирует ключи map — кодирование детерминировано
	data, err := json.Marshal(entries)
	if err != nil {
		return ""
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// transitiveUpstream возвращает ID всех узлов, от которых (прямо или
// транзитивно) зависит узел nodeID.
func transitiveUpstream(p *domain.Pipeline, nodeID string) []string {
	seen := make(map[string]bool)
	var walk func(id string)
	walk = func(id string) {
		for _, dep := range p.Upstream(id) {
			if !seen[dep] {
				seen[dep] = true
				walk(dep)
			}
		}
	}
	walk(nodeID)

	ids := make([]string, 0, len(seen))
	for id := range seen {
		ids = append(ids, id)
	}
	return ids
}

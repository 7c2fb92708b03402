package engine

import (
	"github.com/shaiso/Helix/internal/domain"
)

// Sort выполняет топологическую сортировку узлов pipeline (алгоритм Кана).
//
// Возвращает ID узлов в порядке выполнения: для каждого ребра (s, t)
// s стоит раньше t. Узлы без оставшихся зависимостей упорядочиваются
// по порядку добавления в pipeline, поэтому результат воспроизводим
// между запусками одного и того же графа.
//
// Если граф содержит цикл, возвращает ErrCyclicGraph без частичного
// порядка. Сложность O(V+E).
func Sort(p *domain.Pipeline) ([]string, error) {
	n := len(p.Nodes)
	if n == 0 {
		return []string{}, nil
	}

	// Индекс добавления для tie-break
	index := make(map[string]int, n)
	for i := range p.Nodes {
		index[p.Nodes[i].ID] = i
	}

	inDegree := make(map[string]int, n)
	dependents := make(map[string][]string, n)
	for _, e := range p.Edges {
		inDegree[e.Target]++
		dependents[e.Source] = append(dependents[e.Source], e.Target)
	}

	// Очередь узлов без зависимостей, в порядке добавления
	queue := make([]string, 0, n)
	for i := range p.Nodes {
		if inDegree[p.Nodes[i].ID] == 0 {
			queue = append(queue, p.Nodes[i].ID)
		}
	}

	order := make([]string, 0, n)
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		order = append(order, id)

		// Освободившиеся зависимые добавляем по порядку добавления,
		// чтобы порядок оставался детерминированным
		var ready []string
		for _, dep := range dependents[id] {
			inDegree[dep]--
			if inDegree[dep] == 0 {
				ready = append(ready, dep)
			}
		}
		insertByIndex(ready, index)
		queue = append(queue, ready...)
	}

	if len(order) != n {
		return nil, ErrCyclicGraph
	}
	return order, nil
}

// insertByIndex сортирует срез ID по индексу добавления (insertion sort,
// срезы здесь короткие).
func insertByIndex(ids []string, index map[string]int) {
	for i := 1; i < len(ids); i++ {
		for j := i; j > 0 && index[ids[j]] < index[ids[j-1]]; j-- {
			ids[j], ids[j-1] = ids[j-1], ids[j]
		}
	}
}

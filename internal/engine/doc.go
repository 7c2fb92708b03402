// Package engine содержит модель графа и топологическую сортировку.
//
// Включает:
//   - graph.go     — операции редактирования pipeline (узлы, рёбра)
//   - sort.go      — топологическая сортировка (алгоритм Кана)
//   - blueprint.go — создание pipeline из blueprint агента
//
// Engine отвечает за структурную целостность графа: уникальность
// узлов, корректность рёбер и отсутствие циклов. Выполнением
// занимается пакет executor.
package engine

package memory

import (
	"sort"
	"time"
)

// page aplica offset/limit sobre un slice ya ordenado. limit <= 0 = sin límite.
func page[T any](items []T, offset, limit int) []T {
	if offset < 0 {
		offset = 0
	}
	if offset >= len(items) {
		return []T{}
	}
	items = items[offset:]
	if limit > 0 && limit < len(items) {
		items = items[:limit]
	}
	return items
}

// newestFirst ordena por created_at desc; ID desempata para salida estable.
func newestFirst[T any](items []T, createdAt func(T) time.Time, id func(T) string) {
	sort.SliceStable(items, func(i, j int) bool {
		ti, tj := createdAt(items[i]), createdAt(items[j])
		if !ti.Equal(tj) {
			return ti.After(tj)
		}
		return id(items[i]) > id(items[j])
	})
}

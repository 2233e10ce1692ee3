package services

import (
	"context"
	"slices"
	"strings"
	"sync"
)

const maxSearchHistory = 20

// SearchHistory keeps recent search queries, most recent last.
type SearchHistory struct {
	store SearchHistoryStore

	mu      sync.Mutex
	entries []string
}

func NewSearchHistory(store SearchHistoryStore) *SearchHistory {
	return &SearchHistory{store: store}
}

func (h *SearchHistory) Load(ctx context.Context) error {
	entries, err := h.store.GetSearchHistory(ctx)
	if err != nil {
		return err
	}
	h.mu.Lock()
	h.entries = entries
	h.mu.Unlock()
	return nil
}

// Add moves query to the end of the history. Blank queries are ignored.
func (h *SearchHistory) Add(ctx context.Context, query string) error {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil
	}
	return h.update(ctx, func(entries []string) []string {
		entries = slices.DeleteFunc(entries, func(e string) bool { return e == query })
		entries = append(entries, query)
		if len(entries) > maxSearchHistory {
			entries = entries[len(entries)-maxSearchHistory:]
		}
		return entries
	})
}

func (h *SearchHistory) Remove(ctx context.Context, query string) error {
	return h.update(ctx, func(entries []string) []string {
		return slices.DeleteFunc(entries, func(e string) bool { return e == query })
	})
}

func (h *SearchHistory) Clear(ctx context.Context) error {
	return h.update(ctx, func([]string) []string { return nil })
}

func (h *SearchHistory) Entries() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return slices.Clone(h.entries)
}

func (h *SearchHistory) update(ctx context.Context, fn func([]string) []string) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	entries := fn(slices.Clone(h.entries))
	if err := h.store.SaveSearchHistory(ctx, entries); err != nil {
		return err
	}
	h.entries = entries
	return nil
}

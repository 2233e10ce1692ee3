package chapters

import (
	"maps"

	"github.com/kerbaras/mangafeed/pkg/data"
)

// ProgressIndex holds the reading history of one manga keyed by chapter key.
// It is not safe for concurrent use; the owner serializes access.
type ProgressIndex struct {
	entries map[string]data.HistoryEntry
}

func NewProgressIndex(history map[string]data.HistoryEntry) *ProgressIndex {
	entries := make(map[string]data.HistoryEntry, len(history))
	maps.Copy(entries, history)
	return &ProgressIndex{entries: entries}
}

// Get reports the entry for key and whether the chapter was ever opened.
func (p *ProgressIndex) Get(key string) (data.HistoryEntry, bool) {
	e, ok := p.entries[key]
	return e, ok
}

func (p *ProgressIndex) IsCompleted(key string) bool {
	return p.entries[key].Page == data.PageCompleted
}

// MarkCompleted records the chapters as fully read at ts.
func (p *ProgressIndex) MarkCompleted(keys []string, ts int64) {
	for _, key := range keys {
		p.entries[key] = data.HistoryEntry{Page: data.PageCompleted, Timestamp: ts}
	}
}

// SetProgress records an in-progress read. It returns false and leaves the
// entry alone when the chapter is already completed.
func (p *ProgressIndex) SetProgress(key string, page int, ts int64) bool {
	if p.IsCompleted(key) {
		return false
	}
	p.entries[key] = data.HistoryEntry{Page: page, Timestamp: ts}
	return true
}

func (p *ProgressIndex) Clear(keys []string) {
	for _, key := range keys {
		delete(p.entries, key)
	}
}

func (p *ProgressIndex) ClearAll() {
	clear(p.entries)
}

// Replace swaps in a freshly loaded history.
func (p *ProgressIndex) Replace(history map[string]data.HistoryEntry) {
	p.ClearAll()
	maps.Copy(p.entries, history)
}

// MostRecent returns the key of the entry with the greatest positive
// timestamp. Ties are broken by key so the result is deterministic.
func (p *ProgressIndex) MostRecent() (string, data.HistoryEntry, bool) {
	var (
		bestKey string
		best    data.HistoryEntry
		found   bool
	)
	for key, e := range p.entries {
		if e.Timestamp <= 0 {
			continue
		}
		if !found || e.Timestamp > best.Timestamp || (e.Timestamp == best.Timestamp && key < bestKey) {
			bestKey, best, found = key, e, true
		}
	}
	return bestKey, best, found
}

func (p *ProgressIndex) Len() int {
	return len(p.entries)
}

// Snapshot returns a copy of the entries.
func (p *ProgressIndex) Snapshot() map[string]data.HistoryEntry {
	return maps.Clone(p.entries)
}

// Completed is a Predicate backed by the index.
func (p *ProgressIndex) Completed(ch data.Chapter) bool {
	return p.IsCompleted(ch.Key)
}

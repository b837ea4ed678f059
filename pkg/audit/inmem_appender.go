package audit

import (
	"context"
	"sync"
)

// InMemoryAppender keeps audit entries in memory. It backs the dev binary
// and lets tests assert on recorded events.
type InMemoryAppender struct {
	entries []Entry
	mutex   sync.RWMutex
}

// NewInMemoryAppender creates a new in-memory audit appender.
func NewInMemoryAppender() *InMemoryAppender {
	return &InMemoryAppender{}
}

func (a *InMemoryAppender) Append(ctx context.Context, entry Entry) error {
	a.mutex.Lock()
	defer a.mutex.Unlock()
	a.entries = append(a.entries, entry)
	return nil
}

// Entries returns a copy of all recorded entries.
func (a *InMemoryAppender) Entries() []Entry {
	a.mutex.RLock()
	defer a.mutex.RUnlock()
	out := make([]Entry, len(a.entries))
	copy(out, a.entries)
	return out
}

// ByAction returns all recorded entries with the given action.
func (a *InMemoryAppender) ByAction(action Action) []Entry {
	a.mutex.RLock()
	defer a.mutex.RUnlock()
	var out []Entry
	for _, e := range a.entries {
		if e.Action == action {
			out = append(out, e)
		}
	}
	return out
}

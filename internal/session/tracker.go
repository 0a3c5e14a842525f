package session

import (
	"path/filepath"
	"sort"
	"sync"
)

// Tracker remembers which file names were processed successfully.
// Identity is the base name only; content is never inspected.
type Tracker struct {
	mu   sync.RWMutex
	seen map[string]struct{}
}

func NewTracker() *Tracker {
	return &Tracker{seen: make(map[string]struct{})}
}

func key(name string) string { return filepath.Base(name) }

func (t *Tracker) Seen(name string) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	_, ok := t.seen[key(name)]
	return ok
}

func (t *Tracker) Mark(name string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.seen[key(name)] = struct{}{}
}

func (t *Tracker) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.seen)
}

// Names returns the processed names in lexical order.
func (t *Tracker) Names() []string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]string, 0, len(t.seen))
	for n := range t.seen {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

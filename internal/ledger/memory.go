package ledger

import (
	"context"
	"sync"
	"time"
)

// Memory is a process-local ledger. It is lost on restart, so it suits tests
// and dry runs.
type Memory struct {
	mu   sync.Mutex
	seen map[string]time.Time
	now  func() time.Time
}

func NewMemory() *Memory {
	return &Memory{seen: make(map[string]time.Time), now: time.Now}
}

// CheckAndMark records fp and reports whether it was absent before.
func (m *Memory) CheckAndMark(_ context.Context, fp string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.seen[fp]; ok {
		return false, nil
	}
	m.seen[fp] = m.now()
	return true, nil
}

func (m *Memory) Unmark(_ context.Context, fp string) error {
	m.mu.Lock()
	delete(m.seen, fp)
	m.mu.Unlock()
	return nil
}

func (m *Memory) Len(_ context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.seen), nil
}

// Prune forgets fingerprints first seen before olderThan.
func (m *Memory) Prune(_ context.Context, olderThan time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var n int64
	for fp, at := range m.seen {
		if at.Before(olderThan) {
			delete(m.seen, fp)
			n++
		}
	}
	return n, nil
}

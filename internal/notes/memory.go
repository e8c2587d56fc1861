package notes

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// Memory is an in-process Store.
type Memory struct {
	mu        sync.Mutex
	seq       int
	bySession map[string][]Note
	now       func() time.Time
}

// NewMemory returns an empty Memory store.
func NewMemory() *Memory {
	return &Memory{bySession: make(map[string][]Note), now: time.Now}
}

func (m *Memory) List(_ context.Context, sessionID string) ([]Note, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := append([]Note(nil), m.bySession[sessionID]...)
	Sort(out)
	return out, nil
}

func (m *Memory) Add(_ context.Context, n Note) (Note, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.seq++
	n.ID = fmt.Sprintf("n%d", m.seq)
	if n.Created.IsZero() {
		n.Created = m.now()
	}
	m.bySession[n.SessionID] = append(m.bySession[n.SessionID], n)
	return n, nil
}

func (m *Memory) Delete(_ context.Context, sessionID, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	list := m.bySession[sessionID]
	for i, n := range list {
		if n.ID == id {
			m.bySession[sessionID] = append(list[:i:i], list[i+1:]...)
			return nil
		}
	}
	return ErrNotFound
}

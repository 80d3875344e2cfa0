package sequence

import (
	"context"
	"sync"
)

// Memory is a process-local sequencer for tests and single-node tooling.
type Memory struct {
	mu       sync.Mutex
	counters map[DocumentType]int64
}

// NewMemory returns an empty in-memory sequencer.
func NewMemory() *Memory {
	return &Memory{counters: make(map[DocumentType]int64)}
}

// Next implements Sequencer.
func (m *Memory) Next(ctx context.Context, t DocumentType) (int64, error) {
	if err := checkType(t); err != nil {
		return 0, err
	}
	if err := ctx.Err(); err != nil {
		return 0, unavailable(t, err)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.counters[t]++
	return m.counters[t], nil
}

// Peek implements Sequencer.
func (m *Memory) Peek(_ context.Context, t DocumentType) (int64, error) {
	if err := checkType(t); err != nil {
		return 0, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.counters[t], nil
}

// Restore resets t to n. Used to roll back numbers issued inside an aborted
// in-memory transaction.
func (m *Memory) Restore(t DocumentType, n int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.counters[t] = n
}

package transcripts

import (
	"context"
	"sync"
)

type (
	// Slot is a single named entry in a key/value storage.
	Slot interface {
		// Read returns ok=false when nothing has been written yet.
		Read(ctx context.Context) (data []byte, ok bool, err error)
		Write(ctx context.Context, data []byte) error
		Remove(ctx context.Context) error
	}

	// MemSlot is an in-memory Slot. The Fail* fields let tests inject storage
	// failures.
	MemSlot struct {
		mu      sync.Mutex
		data    []byte
		present bool

		FailRead   error
		FailWrite  error
		FailRemove error
	}
)

var _ Slot = (*MemSlot)(nil)

// NewMemSlot returns an empty MemSlot.
func NewMemSlot() *MemSlot {
	return &MemSlot{}
}

func (m *MemSlot) Read(_ context.Context) ([]byte, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.FailRead != nil {
		return nil, false, m.FailRead
	}
	if !m.present {
		return nil, false, nil
	}
	out := make([]byte, len(m.data))
	copy(out, m.data)
	return out, true, nil
}

func (m *MemSlot) Write(_ context.Context, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.FailWrite != nil {
		return m.FailWrite
	}
	m.data = make([]byte, len(data))
	copy(m.data, data)
	m.present = true
	return nil
}

func (m *MemSlot) Remove(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.FailRemove != nil {
		return m.FailRemove
	}
	m.data = nil
	m.present = false
	return nil
}

// Set replaces the raw slot contents, bypassing FailWrite.
func (m *MemSlot) Set(data []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data = data
	m.present = true
}

package session

import (
	"context"
	"errors"
	"sync"
)

// DefaultKey is the fixed record name the web client used for the signed-in user.
const DefaultKey = "currentUser"

// ErrNotFound is returned by a [Persister] when no record exists.
var ErrNotFound = errors.New("session record not found")

// Persister is the client's durable key-value store, scoped to a single record.
//
// Load returns [ErrNotFound] when nothing is stored. Delete is idempotent.
type Persister interface {
	Load(ctx context.Context) ([]byte, error)
	Save(ctx context.Context, data []byte) error
	Delete(ctx context.Context) error
}

// MemoryPersister keeps the record in process memory. It is useful for tests and
// for clients that must not touch disk.
type MemoryPersister struct {
	mu   sync.Mutex
	data []byte
}

// NewMemoryPersister returns an empty in-memory persister.
func NewMemoryPersister() *MemoryPersister {
	return &MemoryPersister{}
}

func (m *MemoryPersister) Load(context.Context) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.data == nil {
		return nil, ErrNotFound
	}
	out := make([]byte, len(m.data))
	copy(out, m.data)
	return out, nil
}

func (m *MemoryPersister) Save(_ context.Context, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data = append([]byte(nil), data...)
	return nil
}

func (m *MemoryPersister) Delete(context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data = nil
	return nil
}

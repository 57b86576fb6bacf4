package cart

import (
	"context"
	"sync"
)

// Store keeps a cart alive across requests of one browsing session.
// Load returns an empty cart for an unknown session.
type Store interface {
	Load(ctx context.Context, session string) (*Cart, error)
	Save(ctx context.Context, session string, c *Cart) error
	Delete(ctx context.Context, session string) error
}

// MemoryStore is a process-local Store.
type MemoryStore struct {
	mu    sync.Mutex
	carts map[string][]byte
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{carts: make(map[string][]byte)}
}

func (s *MemoryStore) Load(_ context.Context, session string) (*Cart, error) {
	s.mu.Lock()
	raw, ok := s.carts[session]
	s.mu.Unlock()

	c := New()
	if !ok {
		return c, nil
	}
	if err := c.UnmarshalJSON(raw); err != nil {
		return nil, err
	}
	return c, nil
}

func (s *MemoryStore) Save(_ context.Context, session string, c *Cart) error {
	raw, err := c.MarshalJSON()
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.carts[session] = raw
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) Delete(_ context.Context, session string) error {
	s.mu.Lock()
	delete(s.carts, session)
	s.mu.Unlock()
	return nil
}

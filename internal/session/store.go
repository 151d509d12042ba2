package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/luxwatch/storefront/internal/identity"
)

// DefaultKey is the well-known key the current session snapshot lives under.
const DefaultKey = "user"

// Store durably mirrors the authenticated identity so it can be restored after a restart.
type Store interface {
	Save(ctx context.Context, id identity.Identity) error
	// Load returns nil when nothing is stored or the stored value is unreadable.
	Load(ctx context.Context) (*identity.Identity, error)
	Clear(ctx context.Context) error
}

var errCorrupt = errors.New("corrupt session snapshot")

func encode(id identity.Identity) ([]byte, error) {
	if err := id.Validate(); err != nil {
		return nil, fmt.Errorf("refusing to persist identity: %w", err)
	}
	return json.Marshal(id)
}

func decode(raw []byte) (*identity.Identity, error) {
	var id identity.Identity
	if err := json.Unmarshal(raw, &id); err != nil {
		return nil, fmt.Errorf("%w: %v", errCorrupt, err)
	}
	if err := id.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", errCorrupt, err)
	}
	return &id, nil
}

// MemoryStore keeps the snapshot in process memory. It does not survive restarts
// and is meant for tests and local runs without Redis.
type MemoryStore struct {
	mu  sync.RWMutex
	raw []byte
}

// NewMemoryStore builds an empty in-memory session store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) Save(_ context.Context, id identity.Identity) error {
	raw, err := encode(id)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.raw = raw
	return nil
}

func (s *MemoryStore) Load(_ context.Context) (*identity.Identity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.raw == nil {
		return nil, nil
	}
	id, err := decode(s.raw)
	if err != nil {
		s.raw = nil
		return nil, nil
	}
	return id, nil
}

func (s *MemoryStore) Clear(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.raw = nil
	return nil
}

// Put stores raw bytes verbatim, bypassing encoding. Tests use it to plant corrupt snapshots.
func (s *MemoryStore) Put(raw []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.raw = append([]byte(nil), raw...)
}

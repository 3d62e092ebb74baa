package session

import (
	"context"
	"encoding/json"
	"sync"
)

// MemoryStore is an in-process Store for tests and single-node development
// without Redis.
type MemoryStore struct {
	mu       sync.Mutex
	sessions map[string][]byte
	pendings map[string]*PendingCheckout
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		sessions: make(map[string][]byte),
		pendings: make(map[string]*PendingCheckout),
	}
}

func (m *MemoryStore) Load(_ context.Context, id string) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	raw, ok := m.sessions[id]
	if !ok {
		return &Session{ID: id}, nil
	}
	var sess Session
	if err := json.Unmarshal(raw, &sess); err != nil {
		return &Session{ID: id}, nil
	}
	sess.ID = id
	return &sess, nil
}

func (m *MemoryStore) Save(_ context.Context, sess *Session) error {
	raw, err := json.Marshal(sess)
	if err != nil {
		return err
	}
	m.mu.Lock()
	m.sessions[sess.ID] = raw
	m.mu.Unlock()
	return nil
}

func (m *MemoryStore) StagePending(_ context.Context, pending *PendingCheckout) error {
	m.mu.Lock()
	m.pendings[pending.Token] = pending
	m.mu.Unlock()
	return nil
}

func (m *MemoryStore) Pending(_ context.Context, token string) (*PendingCheckout, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.pendingLocked(token, false)
}

func (m *MemoryStore) TakePending(_ context.Context, token string) (*PendingCheckout, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.pendingLocked(token, true)
}

func (m *MemoryStore) pendingLocked(token string, consume bool) (*PendingCheckout, error) {
	pending, ok := m.pendings[token]
	if !ok || pending.Expired() {
		delete(m.pendings, token)
		return nil, ErrPendingNotFound
	}
	if consume {
		delete(m.pendings, token)
	}
	return pending, nil
}

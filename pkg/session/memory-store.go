package session

import (
	"context"
	"sync"
	"time"

	"github.com/birddigital/voice-session-gateway/pkg/directory"
)

// MemoryStore is a process-local Store. The map lock guards membership only;
// each entry carries its own mutex so different calls never contend.
type MemoryStore struct {
	sessions map[string]*entry
	mu       sync.RWMutex

	now func() time.Time
}

type entry struct {
	sess CallSession
	mu   sync.Mutex
}

// NewMemoryStore creates an empty in-memory session store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		sessions: make(map[string]*entry),
		now:      time.Now,
	}
}

func (s *MemoryStore) getOrCreateEntry(callID string) (*entry, bool) {
	s.mu.RLock()
	e, ok := s.sessions[callID]
	s.mu.RUnlock()
	if ok {
		return e, false
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// Re-check under the write lock
	if e, ok := s.sessions[callID]; ok {
		return e, false
	}

	now := s.now()
	e = &entry{sess: CallSession{
		CallID:    callID,
		State:     StateNew,
		CreatedAt: now,
		UpdatedAt: now,
	}}
	s.sessions[callID] = e
	return e, true
}

// update runs fn with the entry locked, creating the session if needed
func (s *MemoryStore) update(callID string, fn func(sess *CallSession) bool) {
	e, _ := s.getOrCreateEntry(callID)
	e.mu.Lock()
	defer e.mu.Unlock()
	if fn(&e.sess) {
		e.sess.UpdatedAt = s.now()
	}
}

// GetOrCreate returns a copy of the session
func (s *MemoryStore) GetOrCreate(ctx context.Context, callID string) (CallSession, bool, error) {
	e, created := s.getOrCreateEntry(callID)
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.sess, created, nil
}

// MarkGreetingIssued flips the greeting flag once
func (s *MemoryStore) MarkGreetingIssued(ctx context.Context, callID string) (bool, error) {
	var transitioned bool
	s.update(callID, func(sess *CallSession) bool {
		if sess.GreetingIssued {
			return false
		}
		sess.GreetingIssued = true
		transitioned = true
		return true
	})
	return transitioned, nil
}

// SetCallerPhone keeps the first non-empty phone
func (s *MemoryStore) SetCallerPhone(ctx context.Context, callID, phone string) error {
	if phone == "" {
		return nil
	}
	s.update(callID, func(sess *CallSession) bool {
		if sess.CallerPhone != "" {
			return false
		}
		sess.CallerPhone = phone
		return true
	})
	return nil
}

// SetCustomer keeps the first resolved customer
func (s *MemoryStore) SetCustomer(ctx context.Context, callID string, customer *directory.Customer) error {
	if customer == nil {
		return nil
	}
	c := *customer
	s.update(callID, func(sess *CallSession) bool {
		if sess.Customer != nil {
			return false
		}
		sess.Customer = &c
		return true
	})
	return nil
}

// SetState records the call state
func (s *MemoryStore) SetState(ctx context.Context, callID string, state CallState) error {
	s.update(callID, func(sess *CallSession) bool {
		if sess.State == state {
			return false
		}
		sess.State = state
		return true
	})
	return nil
}

// IncrementNoInput bumps the no-input counter
func (s *MemoryStore) IncrementNoInput(ctx context.Context, callID string) (int, error) {
	var n int
	s.update(callID, func(sess *CallSession) bool {
		sess.NoInputCount++
		n = sess.NoInputCount
		return true
	})
	return n, nil
}

// Evict removes the session if present
func (s *MemoryStore) Evict(ctx context.Context, callID string) error {
	s.mu.Lock()
	delete(s.sessions, callID)
	s.mu.Unlock()
	return nil
}

// Count returns the number of live sessions
func (s *MemoryStore) Count(ctx context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions), nil
}

// Sweep evicts sessions idle for longer than maxAge and returns how many were removed
func (s *MemoryStore) Sweep(ctx context.Context, maxAge time.Duration) (int, error) {
	cutoff := s.now().Add(-maxAge)

	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for id, e := range s.sessions {
		e.mu.Lock()
		idle := e.sess.UpdatedAt.Before(cutoff)
		e.mu.Unlock()
		if idle {
			delete(s.sessions, id)
			removed++
		}
	}
	return removed, nil
}

package idempotency

import (
	"context"
	"sync"
	"time"
)

type memoryRecord struct {
	fingerprint string
	completed   bool
	response    Response
	expiresAt   time.Time
}

// MemoryStore keeps keys in process memory. Expired keys are dropped on access.
type MemoryStore struct {
	mu      sync.Mutex
	records map[string]memoryRecord
}

// NewMemoryStore constructs an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: make(map[string]memoryRecord)}
}

// Reserve implements Store.
func (s *MemoryStore) Reserve(_ context.Context, key, fingerprint string, now time.Time, ttl time.Duration) (Reservation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := documentID(key)
	record, ok := s.records[id]
	if !ok || !now.Before(record.expiresAt) {
		s.records[id] = memoryRecord{fingerprint: fingerprint, expiresAt: now.Add(ttl)}
		return Reservation{State: StateNew}, nil
	}
	if record.fingerprint != fingerprint {
		return Reservation{}, ErrFingerprintMismatch
	}
	if record.completed {
		return Reservation{State: StateCompleted, Response: record.response}, nil
	}
	return Reservation{State: StateInFlight}, nil
}

// Complete implements Store.
func (s *MemoryStore) Complete(_ context.Context, key, fingerprint string, resp Response, now time.Time, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := documentID(key)
	if record, ok := s.records[id]; ok && record.fingerprint != fingerprint {
		return ErrFingerprintMismatch
	}
	resp.Body = append([]byte(nil), resp.Body...)
	s.records[id] = memoryRecord{fingerprint: fingerprint, completed: true, response: resp, expiresAt: now.Add(ttl)}
	return nil
}

// Release implements Store.
func (s *MemoryStore) Release(_ context.Context, key string) error {
	s.mu.Lock()
	delete(s.records, documentID(key))
	s.mu.Unlock()
	return nil
}

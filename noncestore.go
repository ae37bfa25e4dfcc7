package x402

import (
	"context"
	"sync"
	"time"
)

// NonceStore is the replay-protection ledger. A recorded nonce means the
// corresponding payment proof has been consumed and must not be honored
// again.
type NonceStore interface {
	// Consume atomically records the nonce with the given TTL. It returns
	// true if the nonce was fresh and is now consumed, false if it had
	// already been recorded (a replay). The check and the record are a
	// single operation: two concurrent calls with the same nonce see
	// exactly one true result.
	Consume(ctx context.Context, nonce string, ttl time.Duration) (bool, error)
}

// MemoryNonceStore is an in-process NonceStore with TTL-based expiry.
type MemoryNonceStore struct {
	mu     sync.Mutex
	expiry map[string]time.Time
	clock  func() time.Time
}

// NewMemoryNonceStore creates an empty in-memory nonce store.
func NewMemoryNonceStore() *MemoryNonceStore {
	return &MemoryNonceStore{
		expiry: make(map[string]time.Time),
		clock:  time.Now,
	}
}

// Consume implements NonceStore.
func (s *MemoryNonceStore) Consume(_ context.Context, nonce string, ttl time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.clock()
	if exp, ok := s.expiry[nonce]; ok && now.Before(exp) {
		return false, nil
	}

	s.expiry[nonce] = now.Add(ttl)
	s.cleanupLocked(now)
	return true, nil
}

// Len returns the number of live nonce records.
func (s *MemoryNonceStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.clock()
	n := 0
	for _, exp := range s.expiry {
		if now.Before(exp) {
			n++
		}
	}
	return n
}

// cleanupLocked drops expired records. Must be called with the lock held.
func (s *MemoryNonceStore) cleanupLocked(now time.Time) {
	for nonce, exp := range s.expiry {
		if !now.Before(exp) {
			delete(s.expiry, nonce)
		}
	}
}

package memory

import (
	"context"
	"sync"
	"time"

	"classquiz-service/internal/app"
)

// CodeStore keeps one-time attempt codes in a process-local map with
// explicit expiry and single-consumption delete. Good enough for a single
// instance; multi-instance deployments should use the redis variant.
type CodeStore struct {
	clock func() time.Time

	mu    sync.Mutex
	codes map[string]codeEntry
}

type codeEntry struct {
	grant     app.AttemptGrant
	expiresAt time.Time
}

func NewCodeStore() *CodeStore {
	return NewCodeStoreWithClock(time.Now)
}

// NewCodeStoreWithClock allows deterministic expiry in tests.
func NewCodeStoreWithClock(clock func() time.Time) *CodeStore {
	return &CodeStore{
		clock: clock,
		codes: make(map[string]codeEntry),
	}
}

func (s *CodeStore) Put(_ context.Context, code string, grant app.AttemptGrant, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.codes[code] = codeEntry{grant: grant, expiresAt: s.clock().Add(ttl)}
	s.sweepLocked()
	return nil
}

// Consume removes the code and returns its grant. A code is usable exactly
// once; expired or unknown codes report ok=false.
func (s *CodeStore) Consume(_ context.Context, code string) (app.AttemptGrant, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.codes[code]
	if !ok {
		return app.AttemptGrant{}, false, nil
	}
	delete(s.codes, code)
	if s.clock().After(entry.expiresAt) {
		return app.AttemptGrant{}, false, nil
	}
	return entry.grant, true, nil
}

func (s *CodeStore) sweepLocked() {
	now := s.clock()
	for code, entry := range s.codes {
		if now.After(entry.expiresAt) {
			delete(s.codes, code)
		}
	}
}

package store

import (
	"sync"
	"time"

	"clinicsite/internal/util"
)

// sessionTokenBytes is 128 bits of entropy per token.
const sessionTokenBytes = 16

// MemorySessions maps tokens to their last-use time. Expired tokens are only
// removed when presented again; there is no sweeper.
type MemorySessions struct {
	mu   sync.Mutex
	ttl  time.Duration
	now  func() time.Time
	sess map[string]time.Time
}

// NewMemorySessions builds an empty registry with sliding expiry ttl.
func NewMemorySessions(ttl time.Duration) *MemorySessions {
	return &MemorySessions{
		ttl:  ttl,
		now:  time.Now,
		sess: make(map[string]time.Time),
	}
}

// NewSession issues a random hex token stamped with the current time.
func (m *MemorySessions) NewSession() (string, error) {
	token, err := util.RandomHex(sessionTokenBytes)
	if err != nil {
		return "", err
	}
	m.mu.Lock()
	m.sess[token] = m.now()
	m.mu.Unlock()
	return token, nil
}

// Authenticate refreshes a live token or deletes an expired one.
func (m *MemorySessions) Authenticate(token string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	last, ok := m.sess[token]
	if !ok {
		return false, nil
	}
	now := m.now()
	if now.Sub(last) > m.ttl {
		delete(m.sess, token)
		return false, nil
	}
	m.sess[token] = now
	return true, nil
}

// Len reports how many sessions are held, expired ones included.
func (m *MemorySessions) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sess)
}

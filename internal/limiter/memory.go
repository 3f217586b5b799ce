package limiter

import (
	"context"
	"sync"
	"time"
)

type attempt struct {
	fails        int
	lastFailure  time.Time
	blockedUntil time.Time
}

// Memory is a process-local limiter used with the in-memory store.
type Memory struct {
	mu     sync.Mutex
	policy Policy
	now    func() time.Time
	state  map[string]*attempt
}

// NewMemory constructs a Memory limiter.
func NewMemory(p Policy) *Memory {
	return &Memory{policy: p.normalized(), now: time.Now, state: map[string]*attempt{}}
}

func key(username string, ipHash []byte) string { return username + "\x00" + string(ipHash) }

func (m *Memory) Allow(_ context.Context, username string, ipHash []byte) (bool, time.Duration, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.state[key(username, ipHash)]
	if !ok {
		return true, 0, nil
	}
	if now := m.now(); a.blockedUntil.After(now) {
		return false, a.blockedUntil.Sub(now), nil
	}
	return true, 0, nil
}

func (m *Memory) Success(_ context.Context, username string, ipHash []byte) error {
	m.mu.Lock()
	delete(m.state, key(username, ipHash))
	m.mu.Unlock()
	return nil
}

func (m *Memory) Failure(_ context.Context, username string, ipHash []byte) (bool, time.Duration, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now()
	k := key(username, ipHash)
	a, ok := m.state[k]
	if !ok {
		a = &attempt{}
		m.state[k] = a
	}
	if now.Sub(a.lastFailure) > m.policy.Window {
		a.fails = 0
	}
	a.fails++
	a.lastFailure = now
	if a.fails < m.policy.MaxFails {
		return false, 0, nil
	}
	a.blockedUntil = now.Add(m.policy.BlockFor)
	return true, m.policy.BlockFor, nil
}

// Package sessions serializes work per conversation. Messages from the same
// sender must be handled one at a time, in arrival order; different senders
// proceed in parallel.
package sessions

import "sync"

// Manager hands out one lock per conversation key. Locks are created on
// first use and kept for the process lifetime; the per-key footprint is one
// mutex, so a busy shop stays in the kilobytes.
type Manager struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func NewManager() *Manager {
	return &Manager{locks: make(map[string]*sync.Mutex)}
}

func (m *Manager) lock(key string) *sync.Mutex {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.locks[key]
	if !ok {
		l = &sync.Mutex{}
		m.locks[key] = l
	}
	return l
}

// Do runs fn while holding the conversation's lock.
func (m *Manager) Do(key string, fn func()) {
	l := m.lock(key)
	l.Lock()
	defer l.Unlock()
	fn()
}

// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package sessions

import (
	"context"
	"sync"
	"time"
)

// entry wraps a value with its expiry for TTL tracking.
type entry struct {
	value     string
	expiresAt time.Time
}

// MemoryStore is a thread-safe in-memory session store suitable for
// single-instance deployments and tests. Expired entries are dropped lazily
// on read and swept on write.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]map[string]entry
	ttl      time.Duration
	now      func() time.Time
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore creates a MemoryStore with the given entry TTL.
// A zero TTL takes DefaultTTL.
func NewMemoryStore(ttl time.Duration) *MemoryStore {
	if ttl == 0 {
		ttl = DefaultTTL
	}
	return &MemoryStore{
		sessions: make(map[string]map[string]entry),
		ttl:      ttl,
		now:      time.Now,
	}
}

// Get returns the value stored under key for the session.
func (m *MemoryStore) Get(_ context.Context, sessionID, key string) (string, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	session, ok := m.sessions[sessionID]
	if !ok {
		return "", false, nil
	}
	e, ok := session[key]
	if !ok || m.now().After(e.expiresAt) {
		return "", false, nil
	}

	return e.value, true, nil
}

// Set stores a value under key for the session.
func (m *MemoryStore) Set(_ context.Context, sessionID, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.sweepLocked()

	session, ok := m.sessions[sessionID]
	if !ok {
		session = make(map[string]entry)
		m.sessions[sessionID] = session
	}
	session[key] = entry{value: value, expiresAt: m.now().Add(m.ttl)}

	return nil
}

// Forget removes key from the session.
func (m *MemoryStore) Forget(_ context.Context, sessionID, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if session, ok := m.sessions[sessionID]; ok {
		delete(session, key)
		if len(session) == 0 {
			delete(m.sessions, sessionID)
		}
	}

	return nil
}

// sweepLocked drops expired entries. Caller holds the write lock.
func (m *MemoryStore) sweepLocked() {
	now := m.now()
	for sessionID, session := range m.sessions {
		for key, e := range session {
			if now.After(e.expiresAt) {
				delete(session, key)
			}
		}
		if len(session) == 0 {
			delete(m.sessions, sessionID)
		}
	}
}

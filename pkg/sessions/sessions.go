// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package sessions provides the per-user-agent key/value storage the consent
// flow parks its state in. Two backends are available: an in-memory store
// for single-instance deployments and a Redis store for distributed ones.
package sessions

import (
	"context"
	"time"
)

// DefaultTTL bounds how long session entries live without being rewritten.
const DefaultTTL = 30 * time.Minute

// Store persists keyed values per session.
type Store interface {
	// Get returns the value stored under key for the session, and whether
	// it was present.
	Get(ctx context.Context, sessionID, key string) (string, bool, error)

	// Set stores a value under key for the session.
	Set(ctx context.Context, sessionID, key, value string) error

	// Forget removes key from the session.
	Forget(ctx context.Context, sessionID, key string) error
}

// Session binds a Store to a single session ID. It implements the engine's
// session interface.
type Session struct {
	store Store
	id    string
}

// For returns the session view of store for the given session ID.
func For(store Store, sessionID string) *Session {
	return &Session{store: store, id: sessionID}
}

// Get returns the value stored under key.
func (s *Session) Get(ctx context.Context, key string) (string, bool, error) {
	return s.store.Get(ctx, s.id, key)
}

// Set stores a value under key.
func (s *Session) Set(ctx context.Context, key, value string) error {
	return s.store.Set(ctx, s.id, key, value)
}

// Forget removes key from the session.
func (s *Session) Forget(ctx context.Context, key string) error {
	return s.store.Forget(ctx, s.id, key)
}

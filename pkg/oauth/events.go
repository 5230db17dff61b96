// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package oauth

import "github.com/stacklok/oauthd/pkg/logger"

// EventType names a protocol event.
type EventType string

// Protocol events emitted by the grant engine.
const (
	EventCodeIssued     EventType = "CODE_ISSUED"
	EventTokenIssued    EventType = "TOKEN_ISSUED"
	EventTokenRefreshed EventType = "TOKEN_REFRESHED"
	EventTokenRevoked   EventType = "TOKEN_REVOKED"
)

// Event describes a protocol event. Identifier fields are record IDs, never
// secrets.
type Event struct {
	Type     EventType
	ClientID string
	UserID   string
	TokenID  string
}

// EmitFunc receives protocol events. Hooks run on their own goroutine and
// must not be relied on for protocol correctness.
type EmitFunc func(Event)

// emit dispatches an event to the configured hook without blocking the
// request. Hook panics are swallowed.
func (s *Server) emit(event Event) {
	if s.emitHook == nil {
		return
	}
	go func() {
		defer func() {
			if r := recover(); r != nil {
				logger.Errorw("event hook panicked", "event", string(event.Type), "panic", r)
			}
		}()
		s.emitHook(event)
	}()
}

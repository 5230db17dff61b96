// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package oauth

import (
	"context"
	"fmt"
	"strconv"

	"github.com/stacklok/oauthd/pkg/scopes"
	"github.com/stacklok/oauthd/pkg/storage"
)

// UserDirectory is the small slice of the user-account subsystem the server
// consumes. The user type is opaque to the protocol core.
type UserDirectory interface {
	// FindByID resolves a user by identifier. Implementations return
	// (nil, nil) when no such user exists.
	FindByID(ctx context.Context, id string) (any, error)

	// IdentifierOf returns the stable identifier of a user value obtained
	// from FindByID.
	IdentifierOf(user any) string
}

// ConsentRenderer is an optional capability of a UserDirectory. When
// implemented, the authorize endpoint delegates the consent screen to it
// instead of returning the default JSON consent payload.
type ConsentRenderer interface {
	RenderConsent(ctx context.Context, client storage.Client, requested []scopes.Scope) (*Response, error)
}

// Identifiable is one of the shapes ResolveUserID accepts for session users.
type Identifiable interface {
	ID() string
}

// ResolveUserID extracts a user identifier from the session user value.
// It accepts a string, an integer, a value implementing Identifiable, or a
// map with an "id" entry. Anything else is a host configuration error.
func ResolveUserID(user any) (string, error) {
	switch v := user.(type) {
	case nil:
		return "", fmt.Errorf("no authenticated user")
	case string:
		return v, nil
	case int:
		return strconv.Itoa(v), nil
	case int64:
		return strconv.FormatInt(v, 10), nil
	case float64:
		// JSON-decoded numeric identifiers arrive as float64.
		return strconv.FormatInt(int64(v), 10), nil
	case Identifiable:
		return v.ID(), nil
	case map[string]any:
		if id, ok := v["id"]; ok {
			return ResolveUserID(id)
		}
		return "", fmt.Errorf("user map has no id entry")
	default:
		return "", fmt.Errorf("cannot resolve user id from %T", user)
	}
}

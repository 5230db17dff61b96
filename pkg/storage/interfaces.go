// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package storage provides the persistence interfaces and record types for
// the OAuth authorization server. The store is a thin CRUD layer; it does not
// interpret semantic validity (expiry, revocation); that belongs to the
// credential lifecycle services in pkg/oauth.
package storage

import (
	"context"
	"time"
)

// ClientStore manages persisted OAuth clients.
type ClientStore interface {
	// CreateClient inserts a new client row.
	CreateClient(ctx context.Context, client Client) error
	// GetClient retrieves a client by ID regardless of revoked status;
	// callers check Revoked themselves.
	GetClient(ctx context.Context, id string) (Client, error)
	// ListClients returns all clients, newest first.
	ListClients(ctx context.Context) ([]Client, error)
	// RevokeClient sets revoked=true and bumps updated_at. Idempotent.
	RevokeClient(ctx context.Context, id string, at time.Time) error
	// DeleteClient hard-deletes the client and cascades to its tokens and
	// authorization codes. Used by tests and tooling only.
	DeleteClient(ctx context.Context, id string) error
}

// AuthCodeStore manages persisted authorization codes.
type AuthCodeStore interface {
	// CreateAuthCode inserts a new authorization code row.
	CreateAuthCode(ctx context.Context, code AuthCode) error
	// GetAuthCodeByHash retrieves a code by its hash, scoped to the client
	// it was issued to.
	GetAuthCodeByHash(ctx context.Context, clientID, codeHash string) (AuthCode, error)
	// MarkAuthCodeUsed conditionally sets used_at. It reports false when
	// the code was already consumed, which is the single-use enforcement
	// point under concurrent exchanges.
	MarkAuthCodeUsed(ctx context.Context, id string, at time.Time) (bool, error)
	// PruneAuthCodes deletes codes that are used or past expiry and
	// returns the number removed.
	PruneAuthCodes(ctx context.Context, now time.Time) (int64, error)
}

// TokenStore manages persisted tokens.
type TokenStore interface {
	// CreateToken inserts a new token row.
	CreateToken(ctx context.Context, token Token) error
	// GetToken retrieves a token by ID.
	GetToken(ctx context.Context, id string) (Token, error)
	// GetTokenByAccessHash retrieves a token by its access secret hash.
	GetTokenByAccessHash(ctx context.Context, hash string) (Token, error)
	// GetTokenByRefreshHash retrieves a token by its refresh secret hash.
	GetTokenByRefreshHash(ctx context.Context, hash string) (Token, error)
	// TouchTokenLastUsed updates last_used_at.
	TouchTokenLastUsed(ctx context.Context, id string, at time.Time) error
	// RevokeToken sets revoked_at. Idempotent; an already-set revoked_at
	// is never overwritten.
	RevokeToken(ctx context.Context, id string, at time.Time) error
	// RevokeTokensForUser bulk-revokes all non-revoked tokens of a user.
	RevokeTokensForUser(ctx context.Context, userID string, at time.Time) (int64, error)
	// RevokeTokensForUserClient bulk-revokes the user's non-revoked tokens
	// issued to a specific client.
	RevokeTokensForUserClient(ctx context.Context, userID, clientID string, at time.Time) (int64, error)
	// ListTokensForUser returns the user's non-revoked, non-expired tokens
	// newest first. clientID narrows the listing when non-empty.
	ListTokensForUser(ctx context.Context, userID, clientID string, now time.Time) ([]Token, error)
	// PruneTokens deletes tokens that are spent: access expired with no
	// refresh token, refresh expired, or revoked before revokedBefore.
	PruneTokens(ctx context.Context, now, revokedBefore time.Time) (int64, error)
}

// Store is the full persistence surface consumed by the server.
type Store interface {
	ClientStore
	AuthCodeStore
	TokenStore

	// Close releases any resources held by the store.
	Close() error
}

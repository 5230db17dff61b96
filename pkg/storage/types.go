// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package storage

import "time"

// Grant type names a client may be permitted to use.
const (
	GrantAuthorizationCode = "authorization_code"
	GrantClientCredentials = "client_credentials"
	GrantRefreshToken      = "refresh_token"
)

// Client is an application registered to obtain tokens.
type Client struct {
	// ID is an opaque UUID.
	ID string

	// Name is the human-readable display name.
	Name string

	// SecretHash is the SHA-256 hex hash of the client secret.
	// Nil exactly when the client is public.
	SecretHash *string

	// RedirectURIs are the registered redirect URIs. Matching against them
	// is byte-for-byte; no prefix or wildcard matching.
	RedirectURIs []string

	// Scopes is the per-client scope allow-list. Nil means any registered
	// scope is allowed.
	Scopes []string

	// GrantTypes are the grant types the client may use.
	GrantTypes []string

	// Confidential is true when the client holds a secret.
	Confidential bool

	// FirstParty clients skip the consent screen.
	FirstParty bool

	// Revoked clients are rejected by all protocol endpoints.
	Revoked bool

	CreatedAt time.Time
	UpdatedAt time.Time
}

// AllowsGrant reports whether the client is registered for the grant type.
func (c *Client) AllowsGrant(grant string) bool {
	for _, g := range c.GrantTypes {
		if g == grant {
			return true
		}
	}
	return false
}

// HasRedirectURI reports whether uri exactly matches a registered redirect URI.
func (c *Client) HasRedirectURI(uri string) bool {
	for _, registered := range c.RedirectURIs {
		if registered == uri {
			return true
		}
	}
	return false
}

// AuthCode is a single-use credential that authorizes a token exchange.
// The plaintext code never touches the store; CodeHash is its SHA-256 hex hash.
type AuthCode struct {
	ID       string
	ClientID string
	UserID   string

	// CodeHash is the SHA-256 hex hash of the code secret. Unique.
	CodeHash string

	// RedirectURI is the URI the code was bound to at issuance. The
	// consuming request must present the identical value.
	RedirectURI string

	Scopes []string

	// CodeChallenge and CodeChallengeMethod carry the PKCE binding when the
	// authorization request supplied one. Method is "S256" or "plain".
	CodeChallenge       *string
	CodeChallengeMethod *string

	ExpiresAt time.Time

	// UsedAt is set exactly once, when the code is consumed.
	UsedAt *time.Time

	CreatedAt time.Time
}

// Token is an access token with an optional refresh token; one row covers both.
type Token struct {
	ID string

	// UserID is nil for client_credentials tokens.
	UserID *string

	ClientID string

	// Name is set only on personal access tokens.
	Name *string

	Scopes []string

	// AccessHash is the SHA-256 hex hash of the access secret. Unique.
	AccessHash string

	// RefreshHash is the SHA-256 hex hash of the refresh secret, when one
	// was issued. Unique.
	RefreshHash *string

	ExpiresAt        time.Time
	RefreshExpiresAt *time.Time
	LastUsedAt       *time.Time
	RevokedAt        *time.Time
	CreatedAt        time.Time
}

// HasScope reports whether the token was granted the named scope.
func (t *Token) HasScope(scope string) bool {
	for _, s := range t.Scopes {
		if s == scope {
			return true
		}
	}
	return false
}

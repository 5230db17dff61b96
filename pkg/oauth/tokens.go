// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package oauth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/stacklok/oauthd/pkg/logger"
	"github.com/stacklok/oauthd/pkg/storage"
)

// TokenService implements the token credential lifecycle over the store.
type TokenService struct {
	store            storage.TokenStore
	accessLifetime   time.Duration
	refreshLifetime  time.Duration
	personalClientID string
	personalLifetime time.Duration
	now              func() time.Time
}

// TokenServiceConfig configures a TokenService.
type TokenServiceConfig struct {
	AccessLifetime  time.Duration
	RefreshLifetime time.Duration

	// PersonalClientID is the first-party client personal access tokens
	// are issued against. Empty disables personal tokens.
	PersonalClientID string
	PersonalLifetime time.Duration
}

// NewTokenService creates a TokenService.
func NewTokenService(store storage.TokenStore, cfg TokenServiceConfig, now func() time.Time) *TokenService {
	if now == nil {
		now = time.Now
	}
	return &TokenService{
		store:            store,
		accessLifetime:   cfg.AccessLifetime,
		refreshLifetime:  cfg.RefreshLifetime,
		personalClientID: cfg.PersonalClientID,
		personalLifetime: cfg.PersonalLifetime,
		now:              now,
	}
}

// IssueTokenParams configures token issuance.
type IssueTokenParams struct {
	// UserID is nil for client_credentials tokens.
	UserID *string

	ClientID string

	// Name is set only on personal access tokens.
	Name *string

	Scopes []string

	// WithRefresh requests a refresh token. One is issued only when the
	// token is bound to a user.
	WithRefresh bool

	// Lifetime overrides the configured access lifetime when non-zero.
	Lifetime time.Duration
}

// IssuedToken carries the plaintext secrets of a freshly issued token. The
// plaintexts exist only in this value; the store holds hashes.
type IssuedToken struct {
	AccessToken  string
	RefreshToken string
	Token        storage.Token
}

// Issue creates a token with a 40-byte random access secret and, when
// requested and user-bound, a 40-byte random refresh secret.
func (s *TokenService) Issue(ctx context.Context, params IssueTokenParams) (IssuedToken, error) {
	plainAccess, err := generateSecret(TokenSecretBytes)
	if err != nil {
		return IssuedToken{}, err
	}

	now := s.now()
	lifetime := params.Lifetime
	if lifetime == 0 {
		lifetime = s.accessLifetime
	}

	token := storage.Token{
		ID:         uuid.NewString(),
		UserID:     params.UserID,
		ClientID:   params.ClientID,
		Name:       params.Name,
		Scopes:     params.Scopes,
		AccessHash: hashSecret(plainAccess),
		ExpiresAt:  now.Add(lifetime),
		CreatedAt:  now,
	}
	if token.Scopes == nil {
		token.Scopes = []string{}
	}

	var plainRefresh string
	if params.WithRefresh && params.UserID != nil {
		plainRefresh, err = generateSecret(TokenSecretBytes)
		if err != nil {
			return IssuedToken{}, err
		}
		refreshHash := hashSecret(plainRefresh)
		refreshExpiry := now.Add(s.refreshLifetime)
		token.RefreshHash = &refreshHash
		token.RefreshExpiresAt = &refreshExpiry
	}

	if err := s.store.CreateToken(ctx, token); err != nil {
		return IssuedToken{}, fmt.Errorf("storing token: %w", err)
	}

	return IssuedToken{
		AccessToken:  plainAccess,
		RefreshToken: plainRefresh,
		Token:        token,
	}, nil
}

// Validate resolves a plaintext access token to its record. It returns
// (nil, nil) for unknown, revoked, or expired tokens. On success the
// last_used_at bump happens on a detached goroutine and never delays or
// fails the validation.
func (s *TokenService) Validate(ctx context.Context, plainAccess string) (*storage.Token, error) {
	token, err := s.store.GetTokenByAccessHash(ctx, hashSecret(plainAccess))
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("looking up token: %w", err)
	}

	now := s.now()
	if token.RevokedAt != nil {
		return nil, nil
	}
	if !now.Before(token.ExpiresAt) {
		return nil, nil
	}

	s.touchLastUsed(ctx, token.ID, now)
	return &token, nil
}

// ValidateRefresh resolves a plaintext refresh token to its record. It
// returns (nil, nil) for unknown, revoked, or refresh-expired tokens.
func (s *TokenService) ValidateRefresh(ctx context.Context, plainRefresh string) (*storage.Token, error) {
	token, err := s.store.GetTokenByRefreshHash(ctx, hashSecret(plainRefresh))
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("looking up refresh token: %w", err)
	}

	now := s.now()
	if token.RevokedAt != nil {
		return nil, nil
	}
	if token.RefreshExpiresAt == nil || !now.Before(*token.RefreshExpiresAt) {
		return nil, nil
	}

	return &token, nil
}

// touchLastUsed schedules the fire-and-forget last_used_at update.
func (s *TokenService) touchLastUsed(ctx context.Context, id string, at time.Time) {
	detached := context.WithoutCancel(ctx)
	go func() {
		if err := s.store.TouchTokenLastUsed(detached, id, at); err != nil {
			logger.Debugw("failed to update token last_used_at", "token_id", id, "error", err)
		}
	}()
}

// Revoke soft-revokes a token by id. Idempotent; revoked_at is never cleared
// or overwritten.
func (s *TokenService) Revoke(ctx context.Context, id string) error {
	return s.store.RevokeToken(ctx, id, s.now())
}

// RevokeAllForUser revokes every non-revoked token of the user.
func (s *TokenService) RevokeAllForUser(ctx context.Context, userID string) (int64, error) {
	return s.store.RevokeTokensForUser(ctx, userID, s.now())
}

// RevokeAllForUserClient revokes the user's non-revoked tokens for a client.
func (s *TokenService) RevokeAllForUserClient(ctx context.Context, userID, clientID string) (int64, error) {
	return s.store.RevokeTokensForUserClient(ctx, userID, clientID, s.now())
}

// AllForUser lists the user's live tokens, newest first.
func (s *TokenService) AllForUser(ctx context.Context, userID string) ([]storage.Token, error) {
	return s.store.ListTokensForUser(ctx, userID, "", s.now())
}

// PersonalTokensFor lists the user's live personal access tokens. The list
// is empty when no personal access client is configured.
func (s *TokenService) PersonalTokensFor(ctx context.Context, userID string) ([]storage.Token, error) {
	if s.personalClientID == "" {
		return nil, nil
	}
	return s.store.ListTokensForUser(ctx, userID, s.personalClientID, s.now())
}

// IssuePersonal creates a named personal access token for the user against
// the configured personal access client.
func (s *TokenService) IssuePersonal(ctx context.Context, userID, name string, scopeList []string) (IssuedToken, error) {
	if s.personalClientID == "" {
		return IssuedToken{}, fmt.Errorf("no personal access client configured")
	}
	return s.Issue(ctx, IssueTokenParams{
		UserID:   &userID,
		ClientID: s.personalClientID,
		Name:     &name,
		Scopes:   scopeList,
		Lifetime: s.personalLifetime,
	})
}

// GetByID retrieves a token record by id.
func (s *TokenService) GetByID(ctx context.Context, id string) (storage.Token, error) {
	return s.store.GetToken(ctx, id)
}

// Prune deletes spent tokens: access expired with no refresh token, refresh
// expired, or revoked more than revokedOlderThanDays ago.
func (s *TokenService) Prune(ctx context.Context, revokedOlderThanDays int) (int64, error) {
	now := s.now()
	revokedBefore := now.AddDate(0, 0, -revokedOlderThanDays)
	return s.store.PruneTokens(ctx, now, revokedBefore)
}

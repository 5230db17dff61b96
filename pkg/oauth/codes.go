// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package oauth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/stacklok/oauthd/pkg/storage"
)

// CodeService implements the authorization code lifecycle over the store.
type CodeService struct {
	store    storage.AuthCodeStore
	lifetime time.Duration
	now      func() time.Time
}

// NewCodeService creates a CodeService issuing codes with the given lifetime.
func NewCodeService(store storage.AuthCodeStore, lifetime time.Duration, now func() time.Time) *CodeService {
	if now == nil {
		now = time.Now
	}
	return &CodeService{store: store, lifetime: lifetime, now: now}
}

// IssueCodeParams configures authorization code issuance.
type IssueCodeParams struct {
	ClientID    string
	UserID      string
	RedirectURI string
	Scopes      []string

	// CodeChallenge and CodeChallengeMethod carry the PKCE binding.
	// Empty strings mean no PKCE.
	CodeChallenge       string
	CodeChallengeMethod string
}

// Issue generates a 40-byte random code secret and stores its hash. The
// plaintext is returned exactly once.
func (s *CodeService) Issue(ctx context.Context, params IssueCodeParams) (string, storage.AuthCode, error) {
	plain, err := generateSecret(TokenSecretBytes)
	if err != nil {
		return "", storage.AuthCode{}, err
	}

	now := s.now()
	code := storage.AuthCode{
		ID:          uuid.NewString(),
		ClientID:    params.ClientID,
		UserID:      params.UserID,
		CodeHash:    hashSecret(plain),
		RedirectURI: params.RedirectURI,
		Scopes:      params.Scopes,
		ExpiresAt:   now.Add(s.lifetime),
		CreatedAt:   now,
	}
	if params.CodeChallenge != "" {
		challenge := params.CodeChallenge
		method := params.CodeChallengeMethod
		if method == "" {
			method = PKCEMethodPlain
		}
		code.CodeChallenge = &challenge
		code.CodeChallengeMethod = &method
	}

	if err := s.store.CreateAuthCode(ctx, code); err != nil {
		return "", storage.AuthCode{}, fmt.Errorf("storing auth code: %w", err)
	}

	return plain, code, nil
}

// Consume exchanges a plaintext code for its record, enforcing single use.
// It returns (nil, nil) with no side effects when the code is absent,
// already used, expired, bound to a different redirect URI, or fails PKCE
// verification. Callers surface a generic invalid_grant; the reasons are
// deliberately not distinguished.
//
// The used_at mark is a conditional update: of two racing exchanges for the
// same code at most one observes the transition and wins.
func (s *CodeService) Consume(ctx context.Context, plain, clientID, redirectURI, codeVerifier string) (*storage.AuthCode, error) {
	code, err := s.store.GetAuthCodeByHash(ctx, clientID, hashSecret(plain))
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("looking up auth code: %w", err)
	}

	now := s.now()
	if code.UsedAt != nil {
		return nil, nil
	}
	if !now.Before(code.ExpiresAt) {
		return nil, nil
	}
	if code.RedirectURI != redirectURI {
		return nil, nil
	}
	if code.CodeChallenge != nil {
		method := PKCEMethodPlain
		if code.CodeChallengeMethod != nil {
			method = *code.CodeChallengeMethod
		}
		if !verifyPKCE(*code.CodeChallenge, method, codeVerifier) {
			return nil, nil
		}
	}

	won, err := s.store.MarkAuthCodeUsed(ctx, code.ID, now)
	if err != nil {
		return nil, fmt.Errorf("marking auth code used: %w", err)
	}
	if !won {
		// A concurrent exchange spent the code first.
		return nil, nil
	}

	code.UsedAt = &now
	return &code, nil
}

// Prune deletes used and expired codes, returning the count removed.
func (s *CodeService) Prune(ctx context.Context) (int64, error) {
	return s.store.PruneAuthCodes(ctx, s.now())
}

// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package oauth

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/stacklok/oauthd/pkg/storage"
)

// ClientService implements the client credential lifecycle over the store.
type ClientService struct {
	store storage.ClientStore
	now   func() time.Time
}

// NewClientService creates a ClientService.
func NewClientService(store storage.ClientStore, now func() time.Time) *ClientService {
	if now == nil {
		now = time.Now
	}
	return &ClientService{store: store, now: now}
}

// CreateClientInput configures client creation. Zero values take the
// defaults: confidential, not first-party, grant types
// [authorization_code, refresh_token].
type CreateClientInput struct {
	Name         string
	RedirectURIs []string

	// Scopes is the allow-list; nil permits any registered scope.
	Scopes []string

	// GrantTypes defaults to [authorization_code, refresh_token].
	GrantTypes []string

	// Public creates a client without a secret. Public clients must use
	// PKCE and may not use client_credentials.
	Public bool

	FirstParty bool
}

// Create allocates a client and, for confidential clients, a 32-byte random
// secret. The plaintext secret is returned exactly once; only its hash is
// stored.
func (s *ClientService) Create(ctx context.Context, input CreateClientInput) (storage.Client, string, error) {
	if input.Name == "" {
		return storage.Client{}, "", fmt.Errorf("client name is required")
	}

	grantTypes := input.GrantTypes
	if len(grantTypes) == 0 {
		grantTypes = []string{storage.GrantAuthorizationCode, storage.GrantRefreshToken}
	}

	client := storage.Client{
		ID:           uuid.NewString(),
		Name:         input.Name,
		RedirectURIs: input.RedirectURIs,
		Scopes:       input.Scopes,
		GrantTypes:   grantTypes,
		Confidential: !input.Public,
		FirstParty:   input.FirstParty,
		CreatedAt:    s.now(),
		UpdatedAt:    s.now(),
	}
	if client.RedirectURIs == nil {
		client.RedirectURIs = []string{}
	}

	if !client.Confidential && client.AllowsGrant(storage.GrantClientCredentials) {
		return storage.Client{}, "", fmt.Errorf("public clients may not use client_credentials")
	}
	if len(client.RedirectURIs) == 0 && client.AllowsGrant(storage.GrantAuthorizationCode) {
		return storage.Client{}, "", fmt.Errorf("authorization_code clients require at least one redirect URI")
	}

	var plainSecret string
	if client.Confidential {
		secret, err := generateSecret(ClientSecretBytes)
		if err != nil {
			return storage.Client{}, "", err
		}
		plainSecret = secret
		hash := hashSecret(secret)
		client.SecretHash = &hash
	}

	if err := s.store.CreateClient(ctx, client); err != nil {
		return storage.Client{}, "", fmt.Errorf("creating client: %w", err)
	}

	return client, plainSecret, nil
}

// Find returns the client regardless of revoked status; callers check the
// Revoked flag themselves.
func (s *ClientService) Find(ctx context.Context, id string) (storage.Client, error) {
	return s.store.GetClient(ctx, id)
}

// List returns all clients, newest first.
func (s *ClientService) List(ctx context.Context) ([]storage.Client, error) {
	return s.store.ListClients(ctx)
}

// VerifySecret compares a plaintext secret against the client's stored hash
// in constant time. Clients without a stored secret never verify.
func (*ClientService) VerifySecret(client *storage.Client, plain string) bool {
	if client.SecretHash == nil {
		return false
	}
	return secretMatchesHash(plain, *client.SecretHash)
}

// Revoke marks the client revoked. Idempotent.
func (s *ClientService) Revoke(ctx context.Context, id string) error {
	return s.store.RevokeClient(ctx, id, s.now())
}

// Destroy hard-deletes the client and cascades to its tokens and codes.
// Used by tests and tooling only.
func (s *ClientService) Destroy(ctx context.Context, id string) error {
	return s.store.DeleteClient(ctx, id)
}

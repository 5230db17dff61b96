// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package sqlite

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/stacklok/oauthd/pkg/storage"
)

// newTestStore opens a migrated in-memory store scoped to the test.
func newTestStore(t *testing.T) *Store {
	t.Helper()

	store, err := Open(context.Background(), ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	return store
}

// testTime returns a deterministic timestamp truncated to the stored
// millisecond precision.
func testTime() time.Time {
	return time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
}

func newTestAuthCode(clientID string) storage.AuthCode {
	return storage.AuthCode{
		ID:          uuid.NewString(),
		ClientID:    clientID,
		UserID:      "user-1",
		CodeHash:    "hash-" + uuid.NewString(),
		RedirectURI: "https://app.example.com/callback",
		Scopes:      []string{"read"},
		ExpiresAt:   testTime().Add(10 * time.Minute),
		CreatedAt:   testTime(),
	}
}

func newTestToken(clientID string) storage.Token {
	userID := "user-1"
	return storage.Token{
		ID:         uuid.NewString(),
		UserID:     &userID,
		ClientID:   clientID,
		Scopes:     []string{"read"},
		AccessHash: "access-" + uuid.NewString(),
		ExpiresAt:  testTime().Add(time.Hour),
		CreatedAt:  testTime(),
	}
}

func newTestClient() storage.Client {
	secret := "a" + uuid.NewString()
	return storage.Client{
		ID:           uuid.NewString(),
		Name:         "Test App",
		SecretHash:   &secret,
		RedirectURIs: []string{"https://app.example.com/callback"},
		GrantTypes:   []string{storage.GrantAuthorizationCode, storage.GrantRefreshToken},
		Confidential: true,
		CreatedAt:    testTime(),
		UpdatedAt:    testTime(),
	}
}

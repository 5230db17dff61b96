// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package oauth

import (
	"context"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"

	"github.com/stacklok/oauthd/pkg/storage"
)

func TestTokenDispatch(t *testing.T) {
	t.Parallel()
	ts := newTestServer(t)

	resp := ts.Token(context.Background(), &TokenRequest{})
	assert.Equal(t, CodeInvalidRequest, errorFromBody(t, resp))

	resp = ts.Token(context.Background(), &TokenRequest{GrantType: "password"})
	assert.Equal(t, CodeUnsupportedGrantType, errorFromBody(t, resp))
	assert.Equal(t, http.StatusBadRequest, resp.Status)
}

func TestAuthorizationCodeGrantWithPKCE(t *testing.T) {
	t.Parallel()
	ts := newTestServer(t)
	ctx := context.Background()

	public, _ := ts.createClient(t, func(in *CreateClientInput) {
		in.Public = true
	})

	verifier := "verifier-xyz"
	code := ts.authorizeCode(t, &AuthorizeRequest{
		ClientID:            public.ID,
		Scope:               "read write",
		State:               "st",
		CodeChallenge:       oauth2.S256ChallengeFromVerifier(verifier),
		CodeChallengeMethod: PKCEMethodS256,
	})

	resp := ts.Token(ctx, &TokenRequest{
		GrantType:    storage.GrantAuthorizationCode,
		Code:         code,
		RedirectURI:  testRedirectURI,
		ClientID:     public.ID,
		CodeVerifier: verifier,
	})

	envelope := tokenBody(t, resp)
	assert.Equal(t, "Bearer", envelope.TokenType)
	assert.Equal(t, "read write", envelope.Scope)
	assert.Equal(t, int64(3600), envelope.ExpiresIn)
	assert.Len(t, envelope.AccessToken, TokenSecretBytes*2)
	assert.NotEmpty(t, envelope.RefreshToken)

	// The token introspects as active and user-bound.
	intro := ts.Introspect(ctx, &IntrospectRequest{Token: envelope.AccessToken})
	result, ok := intro.Body.(introspection)
	require.True(t, ok)
	assert.True(t, result.Active)
	assert.Equal(t, "user-1", result.Sub)
	assert.Equal(t, public.ID, result.ClientID)
}

func TestAuthorizationCodeWrongVerifier(t *testing.T) {
	t.Parallel()
	ts := newTestServer(t)

	public, _ := ts.createClient(t, func(in *CreateClientInput) {
		in.Public = true
	})

	code := ts.authorizeCode(t, &AuthorizeRequest{
		ClientID:            public.ID,
		CodeChallenge:       oauth2.S256ChallengeFromVerifier("verifier-xyz"),
		CodeChallengeMethod: PKCEMethodS256,
	})

	resp := ts.Token(context.Background(), &TokenRequest{
		GrantType:    storage.GrantAuthorizationCode,
		Code:         code,
		RedirectURI:  testRedirectURI,
		ClientID:     public.ID,
		CodeVerifier: "wrong-verifier",
	})

	assert.Equal(t, CodeInvalidGrant, errorFromBody(t, resp))
}

func TestAuthorizationCodeReplayRejected(t *testing.T) {
	t.Parallel()
	ts := newTestServer(t)
	ctx := context.Background()

	client, secret := ts.createClient(t, nil)
	code := ts.authorizeCode(t, &AuthorizeRequest{ClientID: client.ID})

	req := &TokenRequest{
		GrantType:    storage.GrantAuthorizationCode,
		Code:         code,
		RedirectURI:  testRedirectURI,
		ClientID:     client.ID,
		ClientSecret: secret,
	}

	first := ts.Token(ctx, req)
	tokenBody(t, first)

	second := ts.Token(ctx, req)
	assert.Equal(t, CodeInvalidGrant, errorFromBody(t, second))
}

func TestAuthorizationCodeRedirectMismatch(t *testing.T) {
	t.Parallel()
	ts := newTestServer(t)

	client, secret := ts.createClient(t, func(in *CreateClientInput) {
		in.RedirectURIs = []string{testRedirectURI, "https://app.example.com/alt"}
	})
	code := ts.authorizeCode(t, &AuthorizeRequest{ClientID: client.ID})

	// Registered URI, but not the one the code was bound to.
	resp := ts.Token(context.Background(), &TokenRequest{
		GrantType:    storage.GrantAuthorizationCode,
		Code:         code,
		RedirectURI:  "https://app.example.com/alt",
		ClientID:     client.ID,
		ClientSecret: secret,
	})

	assert.Equal(t, CodeInvalidGrant, errorFromBody(t, resp))
}

func TestAuthorizationCodeExpiryBoundary(t *testing.T) {
	t.Parallel()
	ts := newTestServer(t)

	client, secret := ts.createClient(t, nil)
	code := ts.authorizeCode(t, &AuthorizeRequest{ClientID: client.ID})

	// Exactly at expiry the code is no longer eligible.
	ts.clock.Advance(ts.Config().AuthCodeLifetime())

	resp := ts.Token(context.Background(), &TokenRequest{
		GrantType:    storage.GrantAuthorizationCode,
		Code:         code,
		RedirectURI:  testRedirectURI,
		ClientID:     client.ID,
		ClientSecret: secret,
	})

	assert.Equal(t, CodeInvalidGrant, errorFromBody(t, resp))
}

func TestAuthorizationCodeClientAuthentication(t *testing.T) {
	t.Parallel()
	ts := newTestServer(t)

	client, _ := ts.createClient(t, nil)
	code := ts.authorizeCode(t, &AuthorizeRequest{ClientID: client.ID})

	base := TokenRequest{
		GrantType:   storage.GrantAuthorizationCode,
		Code:        code,
		RedirectURI: testRedirectURI,
		ClientID:    client.ID,
	}

	missing := base
	resp := ts.Token(context.Background(), &missing)
	assert.Equal(t, CodeInvalidClient, errorFromBody(t, resp))
	assert.Equal(t, http.StatusUnauthorized, resp.Status)

	wrong := base
	wrong.ClientSecret = "not-the-secret"
	resp = ts.Token(context.Background(), &wrong)
	assert.Equal(t, CodeInvalidClient, errorFromBody(t, resp))
}

func TestClientCredentialsGrant(t *testing.T) {
	t.Parallel()
	ts := newTestServer(t)
	ctx := context.Background()

	client, secret := ts.createClient(t, func(in *CreateClientInput) {
		in.GrantTypes = []string{storage.GrantClientCredentials}
		in.RedirectURIs = nil
	})

	resp := ts.Token(ctx, &TokenRequest{
		GrantType:    storage.GrantClientCredentials,
		ClientID:     client.ID,
		ClientSecret: secret,
		Scope:        "read",
	})

	envelope := tokenBody(t, resp)
	assert.Equal(t, "read", envelope.Scope)
	assert.Empty(t, envelope.RefreshToken, "client_credentials tokens never carry a refresh token")

	// Not bound to a user.
	intro := ts.Introspect(ctx, &IntrospectRequest{Token: envelope.AccessToken})
	result, ok := intro.Body.(introspection)
	require.True(t, ok)
	assert.True(t, result.Active)
	assert.Empty(t, result.Sub)
}

func TestClientCredentialsRejectsPublicClient(t *testing.T) {
	t.Parallel()
	ts := newTestServer(t)

	public, _ := ts.createClient(t, func(in *CreateClientInput) {
		in.Public = true
	})

	resp := ts.Token(context.Background(), &TokenRequest{
		GrantType:    storage.GrantClientCredentials,
		ClientID:     public.ID,
		ClientSecret: "anything",
	})

	assert.Equal(t, CodeInvalidClient, errorFromBody(t, resp))
	assert.Equal(t, http.StatusUnauthorized, resp.Status)
}

func TestClientCredentialsRequiresGrantRegistration(t *testing.T) {
	t.Parallel()
	ts := newTestServer(t)

	client, secret := ts.createClient(t, nil)

	resp := ts.Token(context.Background(), &TokenRequest{
		GrantType:    storage.GrantClientCredentials,
		ClientID:     client.ID,
		ClientSecret: secret,
	})

	assert.Equal(t, CodeInvalidGrant, errorFromBody(t, resp))
}

func TestRefreshTokenRotation(t *testing.T) {
	t.Parallel()
	ts := newTestServer(t)
	ctx := context.Background()

	client, secret := ts.createClient(t, nil)
	code := ts.authorizeCode(t, &AuthorizeRequest{ClientID: client.ID, Scope: "read write"})

	issued := tokenBody(t, ts.Token(ctx, &TokenRequest{
		GrantType:    storage.GrantAuthorizationCode,
		Code:         code,
		RedirectURI:  testRedirectURI,
		ClientID:     client.ID,
		ClientSecret: secret,
	}))
	require.NotEmpty(t, issued.RefreshToken)

	refreshed := tokenBody(t, ts.Token(ctx, &TokenRequest{
		GrantType:    storage.GrantRefreshToken,
		RefreshToken: issued.RefreshToken,
		ClientID:     client.ID,
		ClientSecret: secret,
	}))
	assert.NotEqual(t, issued.AccessToken, refreshed.AccessToken)
	assert.NotEqual(t, issued.RefreshToken, refreshed.RefreshToken)
	assert.Equal(t, "read write", refreshed.Scope)

	// The rotated-out refresh token is dead.
	replay := ts.Token(ctx, &TokenRequest{
		GrantType:    storage.GrantRefreshToken,
		RefreshToken: issued.RefreshToken,
		ClientID:     client.ID,
		ClientSecret: secret,
	})
	assert.Equal(t, CodeInvalidGrant, errorFromBody(t, replay))

	// So is the old access token.
	intro := ts.Introspect(ctx, &IntrospectRequest{Token: issued.AccessToken})
	result, ok := intro.Body.(introspection)
	require.True(t, ok)
	assert.False(t, result.Active)
}

func TestRefreshTokenScopeNarrowing(t *testing.T) {
	t.Parallel()
	ts := newTestServer(t)
	ctx := context.Background()

	client, secret := ts.createClient(t, nil)
	code := ts.authorizeCode(t, &AuthorizeRequest{ClientID: client.ID, Scope: "read write"})

	issued := tokenBody(t, ts.Token(ctx, &TokenRequest{
		GrantType:    storage.GrantAuthorizationCode,
		Code:         code,
		RedirectURI:  testRedirectURI,
		ClientID:     client.ID,
		ClientSecret: secret,
	}))

	narrowed := tokenBody(t, ts.Token(ctx, &TokenRequest{
		GrantType:    storage.GrantRefreshToken,
		RefreshToken: issued.RefreshToken,
		ClientID:     client.ID,
		ClientSecret: secret,
		Scope:        "read",
	}))
	assert.Equal(t, "read", narrowed.Scope)
}

func TestRefreshTokenScopeWideningRejected(t *testing.T) {
	t.Parallel()
	ts := newTestServer(t)
	ctx := context.Background()

	client, secret := ts.createClient(t, nil)
	code := ts.authorizeCode(t, &AuthorizeRequest{ClientID: client.ID, Scope: "read"})

	issued := tokenBody(t, ts.Token(ctx, &TokenRequest{
		GrantType:    storage.GrantAuthorizationCode,
		Code:         code,
		RedirectURI:  testRedirectURI,
		ClientID:     client.ID,
		ClientSecret: secret,
	}))

	resp := ts.Token(ctx, &TokenRequest{
		GrantType:    storage.GrantRefreshToken,
		RefreshToken: issued.RefreshToken,
		ClientID:     client.ID,
		ClientSecret: secret,
		Scope:        "read write",
	})

	assert.Equal(t, CodeInvalidRequest, errorFromBody(t, resp))
	body, ok := resp.Body.(errorBody)
	require.True(t, ok)
	assert.True(t, strings.Contains(body.ErrorDescription, "write"),
		"description should name the widened scope: %s", body.ErrorDescription)

	// A rejected widening does not rotate the token.
	again := tokenBody(t, ts.Token(ctx, &TokenRequest{
		GrantType:    storage.GrantRefreshToken,
		RefreshToken: issued.RefreshToken,
		ClientID:     client.ID,
		ClientSecret: secret,
	}))
	assert.NotEmpty(t, again.AccessToken)
}

func TestRefreshTokenWrongClient(t *testing.T) {
	t.Parallel()
	ts := newTestServer(t)
	ctx := context.Background()

	client, secret := ts.createClient(t, nil)
	other, otherSecret := ts.createClient(t, nil)

	code := ts.authorizeCode(t, &AuthorizeRequest{ClientID: client.ID})
	issued := tokenBody(t, ts.Token(ctx, &TokenRequest{
		GrantType:    storage.GrantAuthorizationCode,
		Code:         code,
		RedirectURI:  testRedirectURI,
		ClientID:     client.ID,
		ClientSecret: secret,
	}))

	resp := ts.Token(ctx, &TokenRequest{
		GrantType:    storage.GrantRefreshToken,
		RefreshToken: issued.RefreshToken,
		ClientID:     other.ID,
		ClientSecret: otherSecret,
	})

	assert.Equal(t, CodeInvalidGrant, errorFromBody(t, resp))
}

func TestRefreshTokenRevokedClient(t *testing.T) {
	t.Parallel()
	ts := newTestServer(t)
	ctx := context.Background()

	client, secret := ts.createClient(t, nil)
	code := ts.authorizeCode(t, &AuthorizeRequest{ClientID: client.ID})
	issued := tokenBody(t, ts.Token(ctx, &TokenRequest{
		GrantType:    storage.GrantAuthorizationCode,
		Code:         code,
		RedirectURI:  testRedirectURI,
		ClientID:     client.ID,
		ClientSecret: secret,
	}))

	require.NoError(t, ts.Clients().Revoke(ctx, client.ID))

	resp := ts.Token(ctx, &TokenRequest{
		GrantType:    storage.GrantRefreshToken,
		RefreshToken: issued.RefreshToken,
		ClientID:     client.ID,
		ClientSecret: secret,
	})

	assert.Equal(t, CodeInvalidClient, errorFromBody(t, resp))
}

func TestRefreshTokenExpired(t *testing.T) {
	t.Parallel()
	ts := newTestServer(t)
	ctx := context.Background()

	client, secret := ts.createClient(t, nil)
	code := ts.authorizeCode(t, &AuthorizeRequest{ClientID: client.ID})
	issued := tokenBody(t, ts.Token(ctx, &TokenRequest{
		GrantType:    storage.GrantAuthorizationCode,
		Code:         code,
		RedirectURI:  testRedirectURI,
		ClientID:     client.ID,
		ClientSecret: secret,
	}))

	ts.clock.Advance(ts.Config().RefreshTokenLifetime() + time.Minute)

	resp := ts.Token(ctx, &TokenRequest{
		GrantType:    storage.GrantRefreshToken,
		RefreshToken: issued.RefreshToken,
		ClientID:     client.ID,
		ClientSecret: secret,
	})

	assert.Equal(t, CodeInvalidGrant, errorFromBody(t, resp))
}

func TestTokenEmitsEvents(t *testing.T) {
	t.Parallel()

	events := make(chan Event, 8)
	ts := newTestServer(t, WithEmitter(func(e Event) { events <- e }))
	ctx := context.Background()

	client, secret := ts.createClient(t, func(in *CreateClientInput) {
		in.FirstParty = true
	})
	code := ts.authorizeCode(t, &AuthorizeRequest{ClientID: client.ID})

	tokenBody(t, ts.Token(ctx, &TokenRequest{
		GrantType:    storage.GrantAuthorizationCode,
		Code:         code,
		RedirectURI:  testRedirectURI,
		ClientID:     client.ID,
		ClientSecret: secret,
	}))

	seen := map[EventType]Event{}
	for len(seen) < 2 {
		select {
		case e := <-events:
			seen[e.Type] = e
		case <-time.After(5 * time.Second):
			t.Fatalf("timed out waiting for events, saw %v", seen)
		}
	}

	issued := seen[EventTokenIssued]
	assert.Equal(t, client.ID, issued.ClientID)
	assert.Equal(t, "user-1", issued.UserID)
	assert.NotEmpty(t, issued.TokenID)
	assert.Equal(t, client.ID, seen[EventCodeIssued].ClientID)
}

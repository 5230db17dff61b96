// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package oauth

import (
	"context"
	"net/http"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stacklok/oauthd/pkg/storage"
)

func TestAuthorizeReturnsConsentPayload(t *testing.T) {
	t.Parallel()
	ts := newTestServer(t)
	client, _ := ts.createClient(t, nil)

	resp := ts.Authorize(context.Background(), &AuthorizeRequest{
		ResponseType: "code",
		ClientID:     client.ID,
		RedirectURI:  testRedirectURI,
		Scope:        "read write",
		State:        "abc123",
		Session:      newFakeSession(),
		User:         "user-1",
	})

	require.Equal(t, http.StatusOK, resp.Status)
	payload, ok := resp.Body.(consentPayload)
	require.True(t, ok, "expected consent payload, got %T", resp.Body)
	assert.True(t, payload.AuthorizationRequired)
	assert.Equal(t, client.ID, payload.Client.ID)
	assert.Equal(t, "abc123", payload.State)
	require.Len(t, payload.Scopes, 2)
	assert.Equal(t, "read", payload.Scopes[0].Name)
	assert.Equal(t, "Read access", payload.Scopes[0].Description)
}

func TestAuthorizeFirstPartySkipsConsent(t *testing.T) {
	t.Parallel()
	ts := newTestServer(t)
	client, _ := ts.createClient(t, func(in *CreateClientInput) {
		in.FirstParty = true
	})

	resp := ts.Authorize(context.Background(), &AuthorizeRequest{
		ResponseType: "code",
		ClientID:     client.ID,
		RedirectURI:  testRedirectURI,
		State:        "xyz",
		Session:      newFakeSession(),
		User:         "user-1",
	})

	code := codeFromRedirect(t, resp)
	assert.NotEmpty(t, code)

	target, err := url.Parse(resp.RedirectURL)
	require.NoError(t, err)
	assert.Equal(t, "xyz", target.Query().Get("state"))
}

func TestAuthorizeValidationErrors(t *testing.T) {
	t.Parallel()
	ts := newTestServer(t)
	client, _ := ts.createClient(t, nil)

	revoked, _ := ts.createClient(t, nil)
	require.NoError(t, ts.Clients().Revoke(context.Background(), revoked.ID))

	machine, _ := ts.createClient(t, func(in *CreateClientInput) {
		in.GrantTypes = []string{storage.GrantClientCredentials}
		in.RedirectURIs = nil
	})

	tests := []struct {
		name     string
		req      AuthorizeRequest
		wantCode string
	}{
		{
			name:     "wrong response_type",
			req:      AuthorizeRequest{ResponseType: "token", ClientID: client.ID, RedirectURI: testRedirectURI},
			wantCode: CodeInvalidRequest,
		},
		{
			name:     "missing client_id",
			req:      AuthorizeRequest{ResponseType: "code", RedirectURI: testRedirectURI},
			wantCode: CodeInvalidRequest,
		},
		{
			name:     "unknown client",
			req:      AuthorizeRequest{ResponseType: "code", ClientID: "missing", RedirectURI: testRedirectURI},
			wantCode: CodeInvalidClient,
		},
		{
			name:     "revoked client",
			req:      AuthorizeRequest{ResponseType: "code", ClientID: revoked.ID, RedirectURI: testRedirectURI},
			wantCode: CodeInvalidClient,
		},
		{
			name:     "grant not allowed",
			req:      AuthorizeRequest{ResponseType: "code", ClientID: machine.ID, RedirectURI: testRedirectURI},
			wantCode: CodeInvalidRequest,
		},
		{
			name:     "unregistered redirect",
			req:      AuthorizeRequest{ResponseType: "code", ClientID: client.ID, RedirectURI: "https://evil.example.com/cb"},
			wantCode: CodeInvalidRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			tt.req.Session = newFakeSession()
			tt.req.User = "user-1"

			resp := ts.Authorize(context.Background(), &tt.req)

			// All of these fail before the redirect URI is trusted, so the
			// error arrives as JSON, never as a redirect.
			assert.Empty(t, resp.RedirectURL)
			assert.Equal(t, tt.wantCode, errorFromBody(t, resp))
		})
	}
}

func TestAuthorizeErrorsAfterRedirectValidationRedirect(t *testing.T) {
	t.Parallel()
	ts := newTestServer(t)

	public, _ := ts.createClient(t, func(in *CreateClientInput) {
		in.Public = true
	})
	client, _ := ts.createClient(t, nil)

	tests := []struct {
		name     string
		req      AuthorizeRequest
		wantCode string
	}{
		{
			name:     "public client without PKCE",
			req:      AuthorizeRequest{ClientID: public.ID, State: "s1"},
			wantCode: CodeInvalidRequest,
		},
		{
			name:     "bad challenge method",
			req:      AuthorizeRequest{ClientID: client.ID, CodeChallenge: "c", CodeChallengeMethod: "S512", State: "s2"},
			wantCode: CodeInvalidRequest,
		},
		{
			name:     "unknown scope",
			req:      AuthorizeRequest{ClientID: client.ID, Scope: "read admin", State: "s3"},
			wantCode: CodeInvalidScope,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			tt.req.ResponseType = "code"
			tt.req.RedirectURI = testRedirectURI
			tt.req.Session = newFakeSession()
			tt.req.User = "user-1"

			resp := ts.Authorize(context.Background(), &tt.req)

			assert.Equal(t, tt.wantCode, errorFromRedirect(t, resp))

			target, err := url.Parse(resp.RedirectURL)
			require.NoError(t, err)
			assert.Equal(t, tt.req.State, target.Query().Get("state"))
		})
	}
}

func TestAuthorizeScopeOutsideClientAllowList(t *testing.T) {
	t.Parallel()
	ts := newTestServer(t)
	client, _ := ts.createClient(t, func(in *CreateClientInput) {
		in.Scopes = []string{"read"}
	})

	resp := ts.Authorize(context.Background(), &AuthorizeRequest{
		ResponseType: "code",
		ClientID:     client.ID,
		RedirectURI:  testRedirectURI,
		Scope:        "write",
		Session:      newFakeSession(),
		User:         "user-1",
	})

	assert.Equal(t, CodeInvalidScope, errorFromRedirect(t, resp))
}

func TestAuthorizeWhitespaceScopeUsesDefaults(t *testing.T) {
	t.Parallel()
	ts := newTestServer(t)
	client, secret := ts.createClient(t, func(in *CreateClientInput) {
		in.FirstParty = true
	})

	session := newFakeSession()
	resp := ts.Authorize(context.Background(), &AuthorizeRequest{
		ResponseType: "code",
		ClientID:     client.ID,
		RedirectURI:  testRedirectURI,
		Scope:        "   ",
		Session:      session,
		User:         "user-1",
	})

	code := codeFromRedirect(t, resp)

	tokenResp := ts.Token(context.Background(), &TokenRequest{
		GrantType:    storage.GrantAuthorizationCode,
		Code:         code,
		RedirectURI:  testRedirectURI,
		ClientID:     client.ID,
		ClientSecret: secret,
	})
	envelope := tokenBody(t, tokenResp)
	assert.Equal(t, "read", envelope.Scope)
}

func TestApproveDeniedRedirectsAccessDenied(t *testing.T) {
	t.Parallel()
	ts := newTestServer(t)
	client, _ := ts.createClient(t, nil)
	ctx := context.Background()

	session := newFakeSession()
	resp := ts.Authorize(ctx, &AuthorizeRequest{
		ResponseType: "code",
		ClientID:     client.ID,
		RedirectURI:  testRedirectURI,
		State:        "denied-state",
		Session:      session,
		User:         "user-1",
	})
	require.Equal(t, http.StatusOK, resp.Status)

	resp = ts.Approve(ctx, &ApproveRequest{Approved: false, Session: session, User: "user-1"})

	assert.Equal(t, CodeAccessDenied, errorFromRedirect(t, resp))
	target, err := url.Parse(resp.RedirectURL)
	require.NoError(t, err)
	assert.Equal(t, "denied-state", target.Query().Get("state"))

	// The parked request is cleared even on denial.
	resp = ts.Approve(ctx, &ApproveRequest{Approved: true, Session: session, User: "user-1"})
	assert.Equal(t, CodeInvalidRequest, errorFromBody(t, resp))
}

func TestApproveWithoutPendingRequest(t *testing.T) {
	t.Parallel()
	ts := newTestServer(t)

	resp := ts.Approve(context.Background(), &ApproveRequest{
		Approved: true,
		Session:  newFakeSession(),
		User:     "user-1",
	})

	assert.Equal(t, CodeInvalidRequest, errorFromBody(t, resp))
}

// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package oauth

import (
	"context"
	"net/url"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/stacklok/oauthd/pkg/config"
	"github.com/stacklok/oauthd/pkg/storage"
	"github.com/stacklok/oauthd/pkg/storage/sqlite"
)

// testClock is a settable time source.
type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock() *testClock {
	return &testClock{now: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// fakeSession is an in-memory Session for driving the consent round trip.
type fakeSession struct {
	mu     sync.Mutex
	values map[string]string
}

func newFakeSession() *fakeSession {
	return &fakeSession{values: map[string]string{}}
}

func (f *fakeSession) Get(_ context.Context, key string) (string, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	value, ok := f.values[key]
	return value, ok, nil
}

func (f *fakeSession) Set(_ context.Context, key, value string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.values[key] = value
	return nil
}

func (f *fakeSession) Forget(_ context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.values, key)
	return nil
}

// testServer bundles the engine with its clock and store for tests.
type testServer struct {
	*Server
	clock *testClock
	store *sqlite.Store
}

func newTestServer(t *testing.T, opts ...Option) *testServer {
	t.Helper()

	store, err := sqlite.Open(context.Background(), ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	cfg := config.Default()
	cfg.Scopes = map[string]string{
		"read":  "Read access",
		"write": "Write access",
	}
	cfg.DefaultScopes = []string{"read"}

	clock := newTestClock()
	opts = append([]Option{WithClock(clock.Now)}, opts...)

	return &testServer{
		Server: New(cfg, store, opts...),
		clock:  clock,
		store:  store,
	}
}

const testRedirectURI = "https://app.example.com/callback"

// createClient registers a confidential authorization_code client and returns
// it with its plaintext secret.
func (ts *testServer) createClient(t *testing.T, mutate func(*CreateClientInput)) (storage.Client, string) {
	t.Helper()

	input := CreateClientInput{
		Name:         "Test App",
		RedirectURIs: []string{testRedirectURI},
	}
	if mutate != nil {
		mutate(&input)
	}

	client, secret, err := ts.Clients().Create(context.Background(), input)
	require.NoError(t, err)
	return client, secret
}

// authorizeCode runs the full authorize and consent flow for the client and
// returns the plaintext authorization code.
func (ts *testServer) authorizeCode(t *testing.T, req *AuthorizeRequest) string {
	t.Helper()

	ctx := context.Background()
	if req.ResponseType == "" {
		req.ResponseType = "code"
	}
	if req.RedirectURI == "" {
		req.RedirectURI = testRedirectURI
	}
	if req.Session == nil {
		req.Session = newFakeSession()
	}
	if req.User == nil {
		req.User = "user-1"
	}

	resp := ts.Authorize(ctx, req)
	if resp.RedirectURL == "" {
		// Consent was required; approve it.
		require.NotNil(t, resp.Body)
		resp = ts.Approve(ctx, &ApproveRequest{
			Approved: true,
			Session:  req.Session,
			User:     req.User,
		})
	}

	return codeFromRedirect(t, resp)
}

// codeFromRedirect extracts the code query parameter from a redirect response.
func codeFromRedirect(t *testing.T, resp *Response) string {
	t.Helper()

	require.NotEmpty(t, resp.RedirectURL, "expected a redirect response, got body %v", resp.Body)
	target, err := url.Parse(resp.RedirectURL)
	require.NoError(t, err)
	code := target.Query().Get("code")
	require.NotEmpty(t, code, "redirect carried no code: %s", resp.RedirectURL)
	return code
}

// errorFromBody extracts the error code from a JSON error response.
func errorFromBody(t *testing.T, resp *Response) string {
	t.Helper()

	body, ok := resp.Body.(errorBody)
	require.True(t, ok, "expected an error body, got %T", resp.Body)
	return body.Error
}

// errorFromRedirect extracts the error query parameter from a redirect.
func errorFromRedirect(t *testing.T, resp *Response) string {
	t.Helper()

	require.NotEmpty(t, resp.RedirectURL)
	target, err := url.Parse(resp.RedirectURL)
	require.NoError(t, err)
	return target.Query().Get("error")
}

// tokenBody asserts the response is a token envelope and returns it.
func tokenBody(t *testing.T, resp *Response) tokenEnvelope {
	t.Helper()

	envelope, ok := resp.Body.(tokenEnvelope)
	require.True(t, ok, "expected a token envelope, got %T: %v", resp.Body, resp.Body)
	return envelope
}

// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package bearer provides the middleware that admits API requests carrying a
// valid access token, and the scope enforcement layered on top of it.
package bearer

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/stacklok/oauthd/pkg/logger"
	"github.com/stacklok/oauthd/pkg/oauth"
	"github.com/stacklok/oauthd/pkg/storage"
)

const bearerPrefix = "Bearer "

// Context keys. Empty struct types prevent collisions with other packages'
// context values.
type (
	tokenContextKey  struct{}
	userContextKey   struct{}
	clientContextKey struct{}
)

// TokenFromContext returns the validated token attached by Middleware.
func TokenFromContext(ctx context.Context) (*storage.Token, bool) {
	token, ok := ctx.Value(tokenContextKey{}).(*storage.Token)
	return token, ok
}

// UserFromContext returns the resolved user attached by Middleware.
func UserFromContext(ctx context.Context) (any, bool) {
	user := ctx.Value(userContextKey{})
	return user, user != nil
}

// ClientFromContext returns the token's client attached by Middleware.
func ClientFromContext(ctx context.Context) (*storage.Client, bool) {
	client, ok := ctx.Value(clientContextKey{}).(*storage.Client)
	return client, ok
}

// Middleware validates the Authorization header as a bearer access token.
// On success the token, its client, and the resolved user (for user-bound
// tokens) are attached to the request context.
func Middleware(srv *oauth.Server, users oauth.UserDirectory) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			header := r.Header.Get("Authorization")
			if !strings.HasPrefix(header, bearerPrefix) {
				writeGuardError(w, http.StatusUnauthorized, "unauthenticated", "")
				return
			}

			token, err := srv.Tokens().Validate(ctx, strings.TrimPrefix(header, bearerPrefix))
			if err != nil {
				logger.Errorw("token validation failed", "error", err)
				writeGuardError(w, http.StatusUnauthorized, "invalid_token", "")
				return
			}
			if token == nil {
				writeGuardError(w, http.StatusUnauthorized, "invalid_token", "")
				return
			}

			if token.UserID != nil {
				if users == nil {
					writeGuardError(w, http.StatusUnauthorized, "invalid_token", "")
					return
				}
				user, err := users.FindByID(ctx, *token.UserID)
				if err != nil || user == nil {
					writeGuardError(w, http.StatusUnauthorized, "invalid_token", "")
					return
				}
				ctx = context.WithValue(ctx, userContextKey{}, user)
			}

			ctx = context.WithValue(ctx, tokenContextKey{}, token)

			if client, err := srv.Clients().Find(ctx, token.ClientID); err == nil {
				ctx = context.WithValue(ctx, clientContextKey{}, &client)
			} else if !errors.Is(err, storage.ErrNotFound) {
				logger.Warnw("failed to load token client", "client_id", token.ClientID, "error", err)
			}

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireScopes enforces that the previously attached token carries every
// required scope. Layered on top of Middleware.
func RequireScopes(required ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := TokenFromContext(r.Context())
			if !ok {
				writeGuardError(w, http.StatusUnauthorized, "unauthenticated", "")
				return
			}

			var missing []string
			for _, scope := range required {
				if !token.HasScope(scope) {
					missing = append(missing, scope)
				}
			}
			if len(missing) > 0 {
				writeGuardError(w, http.StatusForbidden, "insufficient_scope",
					"Missing required scopes: "+strings.Join(missing, ", "))
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func writeGuardError(w http.ResponseWriter, status int, code, description string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	body := map[string]string{"error": code}
	if description != "" {
		body["error_description"] = description
	}
	if err := json.NewEncoder(w).Encode(body); err != nil {
		logger.Debugw("failed to encode guard error", "error", err)
	}
}

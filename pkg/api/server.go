// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package api contains the HTTP surface of the authorization server. It
// parses requests into the engine's request structs, invokes the engine,
// and renders the returned response descriptions.
package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"github.com/stacklok/oauthd/pkg/logger"
	"github.com/stacklok/oauthd/pkg/oauth"
	"github.com/stacklok/oauthd/pkg/sessions"
)

const (
	middlewareTimeout = 60 * time.Second

	// sessionCookie carries the session ID for the consent round trip.
	sessionCookie = "oauthd_session"
)

// Authenticator supplies the session-authenticated user for browser-facing
// endpoints. The host owns login; the server only consumes the result.
type Authenticator interface {
	// UserFromRequest returns the authenticated user for the request, or
	// nil when the request carries no authenticated session.
	UserFromRequest(r *http.Request) any
}

// Server is the HTTP transport over the grant protocol engine.
type Server struct {
	engine   *oauth.Server
	sessions sessions.Store
	users    oauth.UserDirectory
	auth     Authenticator
}

// NewServer creates the HTTP transport. sessionStore backs the consent
// round trip; users and auth may be nil when the host wires no user
// subsystem, in which case the authorize and management endpoints reject
// all requests.
func NewServer(engine *oauth.Server, sessionStore sessions.Store, users oauth.UserDirectory, auth Authenticator) *Server {
	return &Server{
		engine:   engine,
		sessions: sessionStore,
		users:    users,
		auth:     auth,
	}
}

// Router builds the chi router with all endpoints mounted under the
// configured prefix.
func (s *Server) Router() http.Handler {
	cfg := s.engine.Config()

	r := chi.NewRouter()
	r.Use(
		middleware.RequestID,
		middleware.RealIP,
		middleware.Timeout(middlewareTimeout),
	)

	authorizeLimit := newLimiter(cfg.AuthorizeRateLimit)
	tokenLimit := newLimiter(cfg.TokenRateLimit)

	r.Route(cfg.Prefix, func(r chi.Router) {
		r.With(authorizeLimit.Handler).Get("/authorize", s.handleAuthorize)
		r.With(authorizeLimit.Handler).Post("/authorize", s.handleApprove)
		r.With(tokenLimit.Handler).Post("/token", s.handleToken)
		r.Post("/revoke", s.handleRevoke)
		r.Post("/introspect", s.handleIntrospect)

		r.Route("/clients", func(r chi.Router) {
			r.Use(s.requireSessionUser)
			r.Get("/", s.handleListClients)
			r.Post("/", s.handleCreateClient)
			r.Get("/{id}", s.handleGetClient)
			r.Delete("/{id}", s.handleDeleteClient)
		})

		r.Route("/personal-tokens", func(r chi.Router) {
			r.Use(s.requireSessionUser)
			r.Get("/", s.handleListPersonalTokens)
			r.Post("/", s.handleCreatePersonalToken)
			r.Delete("/{id}", s.handleDeletePersonalToken)
		})
	})

	return r
}

// render writes an engine response description to the wire.
func render(w http.ResponseWriter, r *http.Request, resp *oauth.Response) {
	if resp.RedirectURL != "" {
		http.Redirect(w, r, resp.RedirectURL, resp.Status)
		return
	}
	writeJSON(w, resp.Status, resp.Body)
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if body == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(body); err != nil {
		logger.Debugw("failed to encode response body", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, code, description string) {
	writeJSON(w, status, map[string]string{
		"error":             code,
		"error_description": description,
	})
}

// session returns the request's consent session, minting a session cookie
// when the user agent has none yet.
func (s *Server) session(w http.ResponseWriter, r *http.Request) *sessions.Session {
	if cookie, err := r.Cookie(sessionCookie); err == nil && cookie.Value != "" {
		return sessions.For(s.sessions, cookie.Value)
	}

	id := uuid.NewString()
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    id,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	return sessions.For(s.sessions, id)
}

// sessionUser resolves the authenticated session user, or nil.
func (s *Server) sessionUser(r *http.Request) any {
	if s.auth == nil {
		return nil
	}
	return s.auth.UserFromRequest(r)
}

// requireSessionUser guards the management endpoints.
func (s *Server) requireSessionUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.sessionUser(r) == nil {
			writeError(w, http.StatusUnauthorized, "unauthenticated", "session authentication required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package oauth

import (
	"time"

	"github.com/stacklok/oauthd/pkg/config"
	"github.com/stacklok/oauthd/pkg/scopes"
	"github.com/stacklok/oauthd/pkg/storage"
)

// Server is the grant protocol engine. It is stateless across requests;
// handlers invoke it with parsed parameters and receive a Response
// description back.
type Server struct {
	cfg      config.Config
	store    storage.Store
	registry *scopes.Registry
	clients  *ClientService
	codes    *CodeService
	tokens   *TokenService
	users    UserDirectory
	emitHook EmitFunc
	now      func() time.Time
}

// Option configures a Server.
type Option func(*Server)

// WithEmitter installs a protocol event hook.
func WithEmitter(emit EmitFunc) Option {
	return func(s *Server) { s.emitHook = emit }
}

// WithUserDirectory installs the user-account subsystem adapter.
func WithUserDirectory(users UserDirectory) Option {
	return func(s *Server) { s.users = users }
}

// WithClock overrides the time source. Tests only.
func WithClock(now func() time.Time) Option {
	return func(s *Server) { s.now = now }
}

// New creates a Server over the given store, with the scope registry
// populated from configuration.
func New(cfg config.Config, store storage.Store, opts ...Option) *Server {
	s := &Server{
		cfg:      cfg,
		store:    store,
		registry: scopes.NewRegistry(cfg.Scopes),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}

	s.clients = NewClientService(store, s.now)
	s.codes = NewCodeService(store, cfg.AuthCodeLifetime(), s.now)
	s.tokens = NewTokenService(store, TokenServiceConfig{
		AccessLifetime:   cfg.AccessTokenLifetime(),
		RefreshLifetime:  cfg.RefreshTokenLifetime(),
		PersonalClientID: cfg.PersonalAccessClient,
		PersonalLifetime: cfg.PersonalTokenLifetime(),
	}, s.now)

	return s
}

// Clients returns the client lifecycle service.
func (s *Server) Clients() *ClientService { return s.clients }

// Codes returns the authorization code lifecycle service.
func (s *Server) Codes() *CodeService { return s.codes }

// Tokens returns the token lifecycle service.
func (s *Server) Tokens() *TokenService { return s.tokens }

// Scopes returns the scope registry.
func (s *Server) Scopes() *scopes.Registry { return s.registry }

// Config returns the server configuration.
func (s *Server) Config() config.Config { return s.cfg }

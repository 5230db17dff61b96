// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package oauth

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/stacklok/oauthd/pkg/scopes"
	"github.com/stacklok/oauthd/pkg/storage"
)

// TokenRequest carries the parsed POST /token parameters. Field names
// follow RFC 6749.
type TokenRequest struct {
	GrantType    string
	Code         string
	RedirectURI  string
	ClientID     string
	ClientSecret string
	CodeVerifier string
	RefreshToken string
	Scope        string
}

// tokenEnvelope is the RFC 6749 §5.1 success response.
type tokenEnvelope struct {
	AccessToken  string `json:"access_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int64  `json:"expires_in"`
	Scope        string `json:"scope"`
	RefreshToken string `json:"refresh_token,omitempty"`
}

// Token handles POST /token, dispatching on grant_type.
func (s *Server) Token(ctx context.Context, req *TokenRequest) *Response {
	switch req.GrantType {
	case storage.GrantAuthorizationCode:
		return s.handleAuthorizationCode(ctx, req)
	case storage.GrantClientCredentials:
		return s.handleClientCredentials(ctx, req)
	case storage.GrantRefreshToken:
		return s.handleRefreshToken(ctx, req)
	case "":
		return errorResponse(ErrInvalidRequest("grant_type is required"))
	default:
		return errorResponse(ErrUnsupportedGrantType(req.GrantType))
	}
}

func (s *Server) handleAuthorizationCode(ctx context.Context, req *TokenRequest) *Response {
	if req.Code == "" || req.RedirectURI == "" || req.ClientID == "" {
		return errorResponse(ErrInvalidRequest("code, redirect_uri and client_id are required"))
	}

	client, perr := s.lookupClient(ctx, req.ClientID)
	if perr != nil {
		return errorResponse(perr)
	}
	if client.Confidential {
		if req.ClientSecret == "" {
			return errorResponse(ErrInvalidClient("client authentication required"))
		}
		if !s.clients.VerifySecret(client, req.ClientSecret) {
			return errorResponse(ErrInvalidClient("client authentication failed"))
		}
	}

	code, err := s.codes.Consume(ctx, req.Code, client.ID, req.RedirectURI, req.CodeVerifier)
	if err != nil {
		return errorResponse(err)
	}
	if code == nil {
		return errorResponse(ErrInvalidGrant("authorization code is invalid, expired, or already used"))
	}

	issued, err := s.tokens.Issue(ctx, IssueTokenParams{
		UserID:      &code.UserID,
		ClientID:    client.ID,
		Scopes:      code.Scopes,
		WithRefresh: client.AllowsGrant(storage.GrantRefreshToken),
	})
	if err != nil {
		return errorResponse(err)
	}

	s.emit(Event{Type: EventTokenIssued, ClientID: client.ID, UserID: code.UserID, TokenID: issued.Token.ID})
	return s.tokenResponse(issued)
}

func (s *Server) handleClientCredentials(ctx context.Context, req *TokenRequest) *Response {
	if req.ClientID == "" || req.ClientSecret == "" {
		return errorResponse(ErrInvalidRequest("client_id and client_secret are required"))
	}

	client, perr := s.lookupClient(ctx, req.ClientID)
	if perr != nil {
		return errorResponse(perr)
	}
	if !client.Confidential {
		return errorResponse(ErrInvalidClient("public clients may not use client_credentials"))
	}
	if !client.AllowsGrant(storage.GrantClientCredentials) {
		return errorResponse(ErrInvalidGrant("client is not registered for the client_credentials grant"))
	}
	if !s.clients.VerifySecret(client, req.ClientSecret) {
		return errorResponse(ErrInvalidClient("client authentication failed"))
	}

	effective, err := s.registry.Validate(parseScopeParam(req.Scope), client.Scopes, s.cfg.DefaultScopes)
	if err != nil {
		var verr *scopes.ValidationError
		if errors.As(err, &verr) {
			return errorResponse(ErrInvalidScope("unknown or disallowed scope: " + verr.Scope))
		}
		return errorResponse(err)
	}

	issued, err := s.tokens.Issue(ctx, IssueTokenParams{
		ClientID: client.ID,
		Scopes:   effective,
	})
	if err != nil {
		return errorResponse(err)
	}

	s.emit(Event{Type: EventTokenIssued, ClientID: client.ID, TokenID: issued.Token.ID})
	return s.tokenResponse(issued)
}

func (s *Server) handleRefreshToken(ctx context.Context, req *TokenRequest) *Response {
	if req.RefreshToken == "" || req.ClientID == "" {
		return errorResponse(ErrInvalidRequest("refresh_token and client_id are required"))
	}

	client, perr := s.lookupClient(ctx, req.ClientID)
	if perr != nil {
		return errorResponse(perr)
	}
	if client.Confidential {
		if req.ClientSecret == "" {
			return errorResponse(ErrInvalidClient("client authentication required"))
		}
		if !s.clients.VerifySecret(client, req.ClientSecret) {
			return errorResponse(ErrInvalidClient("client authentication failed"))
		}
	}

	old, err := s.tokens.ValidateRefresh(ctx, req.RefreshToken)
	if err != nil {
		return errorResponse(err)
	}
	if old == nil || old.ClientID != client.ID {
		return errorResponse(ErrInvalidGrant("refresh token is invalid, expired, or revoked"))
	}

	newScopes := old.Scopes
	if requested := parseScopeParam(req.Scope); len(requested) > 0 {
		var widened []string
		for _, name := range requested {
			if !old.HasScope(name) {
				widened = append(widened, name)
			}
		}
		if len(widened) > 0 {
			return errorResponse(ErrInvalidRequest(
				"requested scopes exceed the original grant: " + strings.Join(widened, " ")))
		}
		newScopes = requested
	}

	// Rotation: the old token is revoked before the new pair exists, so the
	// old refresh token cannot be replayed even if issuance fails below.
	if err := s.tokens.Revoke(ctx, old.ID); err != nil {
		return errorResponse(err)
	}

	issued, err := s.tokens.Issue(ctx, IssueTokenParams{
		UserID:      old.UserID,
		ClientID:    client.ID,
		Scopes:      newScopes,
		WithRefresh: true,
	})
	if err != nil {
		return errorResponse(err)
	}

	event := Event{Type: EventTokenRefreshed, ClientID: client.ID, TokenID: issued.Token.ID}
	if old.UserID != nil {
		event.UserID = *old.UserID
	}
	s.emit(event)
	return s.tokenResponse(issued)
}

// lookupClient resolves a client for the token endpoint, mapping absence and
// revocation to invalid_client.
func (s *Server) lookupClient(ctx context.Context, clientID string) (*storage.Client, *Error) {
	client, err := s.clients.Find(ctx, clientID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, ErrInvalidClient("unknown client")
		}
		return nil, ErrServerError("failed to load client")
	}
	if client.Revoked {
		return nil, ErrInvalidClient("client has been revoked")
	}
	return &client, nil
}

func (s *Server) tokenResponse(issued IssuedToken) *Response {
	return jsonResponse(http.StatusOK, tokenEnvelope{
		AccessToken:  issued.AccessToken,
		TokenType:    "Bearer",
		ExpiresIn:    int64(issued.Token.ExpiresAt.Sub(s.now()) / time.Second),
		Scope:        strings.Join(issued.Token.Scopes, " "),
		RefreshToken: issued.RefreshToken,
	})
}

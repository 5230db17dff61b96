// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package oauth

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/stacklok/oauthd/pkg/storage"
)

// RevokeRequest carries the parsed POST /revoke parameters (RFC 7009).
type RevokeRequest struct {
	Token        string
	ClientID     string
	ClientSecret string
}

// IntrospectRequest carries the parsed POST /introspect parameters (RFC 7662).
type IntrospectRequest struct {
	Token        string
	ClientID     string
	ClientSecret string
}

// introspection is the RFC 7662 §2.2 response.
type introspection struct {
	Active    bool   `json:"active"`
	Scope     string `json:"scope,omitempty"`
	ClientID  string `json:"client_id,omitempty"`
	TokenType string `json:"token_type,omitempty"`
	Exp       int64  `json:"exp,omitempty"`
	Iat       int64  `json:"iat,omitempty"`
	Sub       string `json:"sub,omitempty"`
}

// Revoke handles POST /revoke. Per RFC 7009 the response is 200 with an
// empty object whenever the token parameter was present, regardless of
// whether anything was revoked, so callers learn nothing about existence.
func (s *Server) Revoke(ctx context.Context, req *RevokeRequest) *Response {
	if req.Token == "" {
		return errorResponse(ErrInvalidRequest("token is required"))
	}

	if perr := s.authenticateOptionalClient(ctx, req.ClientID, req.ClientSecret); perr != nil {
		return errorResponse(perr)
	}

	if token, err := s.tokens.Validate(ctx, req.Token); err == nil && token != nil {
		if err := s.tokens.Revoke(ctx, token.ID); err == nil {
			s.emit(revokedEvent(token))
		}
		return jsonResponse(http.StatusOK, struct{}{})
	}

	if token, err := s.tokens.ValidateRefresh(ctx, req.Token); err == nil && token != nil {
		if err := s.tokens.Revoke(ctx, token.ID); err == nil {
			s.emit(revokedEvent(token))
		}
	}

	return jsonResponse(http.StatusOK, struct{}{})
}

// Introspect handles POST /introspect.
func (s *Server) Introspect(ctx context.Context, req *IntrospectRequest) *Response {
	if req.Token == "" {
		return errorResponse(ErrInvalidRequest("token is required"))
	}

	if perr := s.authenticateOptionalClient(ctx, req.ClientID, req.ClientSecret); perr != nil {
		return errorResponse(perr)
	}

	token, err := s.tokens.Validate(ctx, req.Token)
	if err != nil {
		return errorResponse(err)
	}
	if token == nil {
		return jsonResponse(http.StatusOK, introspection{Active: false})
	}

	result := introspection{
		Active:    true,
		Scope:     strings.Join(token.Scopes, " "),
		ClientID:  token.ClientID,
		TokenType: "Bearer",
		Exp:       token.ExpiresAt.Unix(),
		Iat:       token.CreatedAt.Unix(),
	}
	if token.UserID != nil {
		result.Sub = *token.UserID
	}

	return jsonResponse(http.StatusOK, result)
}

// authenticateOptionalClient applies the RFC 7009 §2.1 conditional client
// authentication shared by revoke and introspect: a supplied client_id must
// resolve to a live client, and the secret is verified only when one was
// supplied alongside it. A client id without a secret deliberately skips
// secret verification; the RFC permits unauthenticated revocation attempts.
func (s *Server) authenticateOptionalClient(ctx context.Context, clientID, clientSecret string) *Error {
	if clientID == "" {
		return nil
	}

	client, err := s.clients.Find(ctx, clientID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return ErrInvalidClient("unknown client")
		}
		return ErrServerError("failed to load client")
	}
	if client.Revoked {
		return ErrInvalidClient("client has been revoked")
	}

	if client.Confidential && clientSecret != "" {
		if !s.clients.VerifySecret(&client, clientSecret) {
			return ErrInvalidClient("client authentication failed")
		}
	}

	return nil
}

func revokedEvent(token *storage.Token) Event {
	event := Event{Type: EventTokenRevoked, ClientID: token.ClientID, TokenID: token.ID}
	if token.UserID != nil {
		event.UserID = *token.UserID
	}
	return event
}

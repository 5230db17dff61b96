// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/stacklok/oauthd/pkg/oauth"
	"github.com/stacklok/oauthd/pkg/storage"
)

// tokenView is the management API representation of a token. Hashes and
// plaintexts are absent; the plaintext appears only in the creation response.
type tokenView struct {
	ID         string     `json:"id"`
	Name       *string    `json:"name,omitempty"`
	ClientID   string     `json:"client_id"`
	Scopes     []string   `json:"scopes"`
	ExpiresAt  time.Time  `json:"expires_at"`
	LastUsedAt *time.Time `json:"last_used_at,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
}

func viewToken(t storage.Token) tokenView {
	return tokenView{
		ID:         t.ID,
		Name:       t.Name,
		ClientID:   t.ClientID,
		Scopes:     t.Scopes,
		ExpiresAt:  t.ExpiresAt,
		LastUsedAt: t.LastUsedAt,
		CreatedAt:  t.CreatedAt,
	}
}

func (s *Server) handleListPersonalTokens(w http.ResponseWriter, r *http.Request) {
	userID, ok := s.requestUserID(w, r)
	if !ok {
		return
	}

	tokens, err := s.engine.Tokens().PersonalTokensFor(r.Context(), userID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "server_error", "failed to list tokens")
		return
	}

	views := make([]tokenView, 0, len(tokens))
	for _, t := range tokens {
		views = append(views, viewToken(t))
	}
	writeJSON(w, http.StatusOK, views)
}

type createTokenBody struct {
	Name   string   `json:"name"`
	Scopes []string `json:"scopes"`
}

// handleCreatePersonalToken mints a named personal access token. The
// plaintext is returned exactly once.
func (s *Server) handleCreatePersonalToken(w http.ResponseWriter, r *http.Request) {
	userID, ok := s.requestUserID(w, r)
	if !ok {
		return
	}

	var body createTokenBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "malformed request body")
		return
	}
	if body.Name == "" {
		writeError(w, http.StatusUnprocessableEntity, "invalid_request", "token name is required")
		return
	}

	granted, err := s.engine.Scopes().Validate(body.Scopes, nil, s.engine.Config().DefaultScopes)
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, "invalid_scope", err.Error())
		return
	}

	issued, err := s.engine.Tokens().IssuePersonal(r.Context(), userID, body.Name, granted)
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, "invalid_request", err.Error())
		return
	}

	response := struct {
		tokenView
		AccessToken string `json:"access_token"`
	}{viewToken(issued.Token), issued.AccessToken}
	writeJSON(w, http.StatusCreated, response)
}

// handleDeletePersonalToken revokes one of the caller's tokens. Ownership is
// checked so a session user cannot revoke another user's token by id.
func (s *Server) handleDeletePersonalToken(w http.ResponseWriter, r *http.Request) {
	userID, ok := s.requestUserID(w, r)
	if !ok {
		return
	}

	token, err := s.engine.Tokens().GetByID(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			writeError(w, http.StatusNotFound, "not_found", "no such token")
			return
		}
		writeError(w, http.StatusInternalServerError, "server_error", "failed to load token")
		return
	}
	if token.UserID == nil || *token.UserID != userID {
		writeError(w, http.StatusNotFound, "not_found", "no such token")
		return
	}

	if err := s.engine.Tokens().Revoke(r.Context(), token.ID); err != nil {
		writeError(w, http.StatusInternalServerError, "server_error", "failed to revoke token")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{})
}

// requestUserID resolves the session user to an identifier, writing the error
// response itself when that fails.
func (s *Server) requestUserID(w http.ResponseWriter, r *http.Request) (string, bool) {
	userID, err := oauth.ResolveUserID(s.sessionUser(r))
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthenticated", "session authentication required")
		return "", false
	}
	return userID, true
}

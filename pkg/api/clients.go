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

// clientView is the management API representation of a client. Secret hashes
// never leave the server.
type clientView struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	RedirectURIs []string  `json:"redirect_uris"`
	Scopes       []string  `json:"scopes,omitempty"`
	GrantTypes   []string  `json:"grant_types"`
	Confidential bool      `json:"confidential"`
	FirstParty   bool      `json:"first_party"`
	Revoked      bool      `json:"revoked"`
	CreatedAt    time.Time `json:"created_at"`
}

func viewClient(c storage.Client) clientView {
	return clientView{
		ID:           c.ID,
		Name:         c.Name,
		RedirectURIs: c.RedirectURIs,
		Scopes:       c.Scopes,
		GrantTypes:   c.GrantTypes,
		Confidential: c.Confidential,
		FirstParty:   c.FirstParty,
		Revoked:      c.Revoked,
		CreatedAt:    c.CreatedAt,
	}
}

func (s *Server) handleListClients(w http.ResponseWriter, r *http.Request) {
	clients, err := s.engine.Clients().List(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "server_error", "failed to list clients")
		return
	}

	views := make([]clientView, 0, len(clients))
	for _, c := range clients {
		views = append(views, viewClient(c))
	}
	writeJSON(w, http.StatusOK, views)
}

type createClientBody struct {
	Name         string   `json:"name"`
	RedirectURIs []string `json:"redirect_uris"`
	Scopes       []string `json:"scopes"`
	GrantTypes   []string `json:"grant_types"`
	Public       bool     `json:"public"`
	FirstParty   bool     `json:"first_party"`
}

// handleCreateClient registers a client. The response includes the plaintext
// secret for confidential clients; it is never retrievable again.
func (s *Server) handleCreateClient(w http.ResponseWriter, r *http.Request) {
	var body createClientBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "malformed request body")
		return
	}

	for _, scope := range body.Scopes {
		if !s.engine.Scopes().Registered(scope) {
			writeError(w, http.StatusUnprocessableEntity, "invalid_scope", "unknown scope: "+scope)
			return
		}
	}

	client, secret, err := s.engine.Clients().Create(r.Context(), oauth.CreateClientInput{
		Name:         body.Name,
		RedirectURIs: body.RedirectURIs,
		Scopes:       body.Scopes,
		GrantTypes:   body.GrantTypes,
		Public:       body.Public,
		FirstParty:   body.FirstParty,
	})
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, "invalid_request", err.Error())
		return
	}

	response := struct {
		clientView
		Secret string `json:"secret,omitempty"`
	}{viewClient(client), secret}
	writeJSON(w, http.StatusCreated, response)
}

func (s *Server) handleGetClient(w http.ResponseWriter, r *http.Request) {
	client, err := s.engine.Clients().Find(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			writeError(w, http.StatusNotFound, "not_found", "no such client")
			return
		}
		writeError(w, http.StatusInternalServerError, "server_error", "failed to load client")
		return
	}
	writeJSON(w, http.StatusOK, viewClient(client))
}

// handleDeleteClient revokes the client. The protocol endpoints reject it
// from then on; already-issued access tokens run out their lifetime.
func (s *Server) handleDeleteClient(w http.ResponseWriter, r *http.Request) {
	err := s.engine.Clients().Revoke(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			writeError(w, http.StatusNotFound, "not_found", "no such client")
			return
		}
		writeError(w, http.StatusInternalServerError, "server_error", "failed to revoke client")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{})
}

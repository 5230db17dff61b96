// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/stacklok/oauthd/pkg/oauth"
)

// handleAuthorize serves GET {prefix}/authorize.
func (s *Server) handleAuthorize(w http.ResponseWriter, r *http.Request) {
	user := s.sessionUser(r)
	if user == nil {
		writeError(w, http.StatusUnauthorized, "unauthenticated", "session authentication required")
		return
	}

	query := r.URL.Query()
	resp := s.engine.Authorize(r.Context(), &oauth.AuthorizeRequest{
		ResponseType:        query.Get("response_type"),
		ClientID:            query.Get("client_id"),
		RedirectURI:         query.Get("redirect_uri"),
		Scope:               query.Get("scope"),
		State:               query.Get("state"),
		CodeChallenge:       query.Get("code_challenge"),
		CodeChallengeMethod: query.Get("code_challenge_method"),
		Session:             s.session(w, r),
		User:                user,
	})
	render(w, r, resp)
}

// handleApprove serves POST {prefix}/authorize, the consent decision.
func (s *Server) handleApprove(w http.ResponseWriter, r *http.Request) {
	user := s.sessionUser(r)
	if user == nil {
		writeError(w, http.StatusUnauthorized, "unauthenticated", "session authentication required")
		return
	}

	params, err := bodyParams(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "malformed request body")
		return
	}

	resp := s.engine.Approve(r.Context(), &oauth.ApproveRequest{
		Approved: parseBool(params["approved"]),
		Session:  s.session(w, r),
		User:     user,
	})
	render(w, r, resp)
}

// handleToken serves POST {prefix}/token.
func (s *Server) handleToken(w http.ResponseWriter, r *http.Request) {
	params, err := bodyParams(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "malformed request body")
		return
	}

	resp := s.engine.Token(r.Context(), &oauth.TokenRequest{
		GrantType:    params["grant_type"],
		Code:         params["code"],
		RedirectURI:  params["redirect_uri"],
		ClientID:     params["client_id"],
		ClientSecret: params["client_secret"],
		CodeVerifier: params["code_verifier"],
		RefreshToken: params["refresh_token"],
		Scope:        params["scope"],
	})
	render(w, r, resp)
}

// handleRevoke serves POST {prefix}/revoke.
func (s *Server) handleRevoke(w http.ResponseWriter, r *http.Request) {
	params, err := bodyParams(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "malformed request body")
		return
	}

	resp := s.engine.Revoke(r.Context(), &oauth.RevokeRequest{
		Token:        params["token"],
		ClientID:     params["client_id"],
		ClientSecret: params["client_secret"],
	})
	render(w, r, resp)
}

// handleIntrospect serves POST {prefix}/introspect.
func (s *Server) handleIntrospect(w http.ResponseWriter, r *http.Request) {
	params, err := bodyParams(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "malformed request body")
		return
	}

	resp := s.engine.Introspect(r.Context(), &oauth.IntrospectRequest{
		Token:        params["token"],
		ClientID:     params["client_id"],
		ClientSecret: params["client_secret"],
	})
	render(w, r, resp)
}

// bodyParams parses a JSON or form-encoded request body into a flat string
// map. Parameter names are the RFC 6749 wire names either way.
func bodyParams(r *http.Request) (map[string]string, error) {
	contentType := r.Header.Get("Content-Type")
	if strings.HasPrefix(contentType, "application/json") {
		var raw map[string]any
		if err := json.NewDecoder(r.Body).Decode(&raw); err != nil {
			return nil, fmt.Errorf("decoding JSON body: %w", err)
		}
		params := make(map[string]string, len(raw))
		for key, value := range raw {
			switch v := value.(type) {
			case string:
				params[key] = v
			case bool:
				params[key] = strconv.FormatBool(v)
			case float64:
				params[key] = strconv.FormatFloat(v, 'f', -1, 64)
			}
		}
		return params, nil
	}

	if err := r.ParseForm(); err != nil {
		return nil, fmt.Errorf("parsing form body: %w", err)
	}
	params := make(map[string]string, len(r.PostForm))
	for key := range r.PostForm {
		params[key] = r.PostForm.Get(key)
	}
	return params, nil
}

func parseBool(value string) bool {
	parsed, err := strconv.ParseBool(value)
	return err == nil && parsed
}

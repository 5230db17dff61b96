// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package oauth

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strings"

	"github.com/stacklok/oauthd/pkg/logger"
	"github.com/stacklok/oauthd/pkg/scopes"
	"github.com/stacklok/oauthd/pkg/storage"
)

// AuthorizeRequest carries the parsed GET /authorize parameters along with
// the host-supplied session and authenticated user.
type AuthorizeRequest struct {
	ResponseType        string
	ClientID            string
	RedirectURI         string
	Scope               string
	State               string
	CodeChallenge       string
	CodeChallengeMethod string

	Session Session
	User    any
}

// ApproveRequest carries the consent decision for POST /authorize.
type ApproveRequest struct {
	Approved bool

	Session Session
	User    any
}

// consentPayload is the default JSON consent response returned when the
// host supplies no consent renderer.
type consentPayload struct {
	AuthorizationRequired bool           `json:"authorization_required"`
	Client                consentClient  `json:"client"`
	Scopes                []scopes.Scope `json:"scopes"`
	State                 string         `json:"state,omitempty"`
}

type consentClient struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Authorize handles the authorization code issuance request.
//
// Validation order is load-bearing: the redirect URI is checked against the
// client registration before any error is delivered by redirect, and scopes
// are validated before the session write so malformed requests leave no
// state behind.
func (s *Server) Authorize(ctx context.Context, req *AuthorizeRequest) *Response {
	if req.ResponseType != "code" {
		return errorResponse(ErrInvalidRequest("response_type must be \"code\""))
	}
	if req.ClientID == "" {
		return errorResponse(ErrInvalidRequest("client_id is required"))
	}

	client, err := s.clients.Find(ctx, req.ClientID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return errorResponse(ErrInvalidClient("unknown client"))
		}
		return errorResponse(err)
	}
	if client.Revoked {
		return errorResponse(ErrInvalidClient("client has been revoked"))
	}
	if !client.AllowsGrant(storage.GrantAuthorizationCode) {
		return errorResponse(ErrInvalidRequest("client is not registered for the authorization_code grant"))
	}

	// Errors up to this point are never redirected: the redirect URI has
	// not yet been proven to belong to the client.
	if req.RedirectURI == "" || !client.HasRedirectURI(req.RedirectURI) {
		return errorResponse(ErrInvalidRequest("redirect_uri is not registered for this client"))
	}

	if !client.Confidential && req.CodeChallenge == "" {
		return errorRedirect(req.RedirectURI,
			ErrInvalidRequest("public clients must supply a PKCE code_challenge"), req.State)
	}

	challengeMethod := req.CodeChallengeMethod
	if req.CodeChallenge != "" {
		if challengeMethod == "" {
			challengeMethod = PKCEMethodPlain
		}
		if challengeMethod != PKCEMethodS256 && challengeMethod != PKCEMethodPlain {
			return errorRedirect(req.RedirectURI,
				ErrInvalidRequest("code_challenge_method must be S256 or plain"), req.State)
		}
	}

	effective, err := s.registry.Validate(parseScopeParam(req.Scope), client.Scopes, s.cfg.DefaultScopes)
	if err != nil {
		var verr *scopes.ValidationError
		if errors.As(err, &verr) {
			return errorRedirect(req.RedirectURI,
				ErrInvalidScope("unknown or disallowed scope: "+verr.Scope), req.State)
		}
		return errorResponse(err)
	}

	state := authRequestState{
		ClientID:            client.ID,
		RedirectURI:         req.RedirectURI,
		Scopes:              effective,
		State:               req.State,
		CodeChallenge:       req.CodeChallenge,
		CodeChallengeMethod: challengeMethod,
	}
	if err := saveAuthRequest(ctx, req.Session, state); err != nil {
		logger.Errorw("failed to persist authorization request", "error", err)
		return errorResponse(ErrServerError("failed to persist authorization request"))
	}

	if client.FirstParty {
		return s.issueCode(ctx, state, req.User)
	}

	described := s.registry.Describe(effective)
	if renderer, ok := s.users.(ConsentRenderer); ok {
		resp, err := renderer.RenderConsent(ctx, client, described)
		if err != nil {
			logger.Errorw("consent renderer failed", "client_id", client.ID, "error", err)
			return errorResponse(ErrServerError("failed to render consent"))
		}
		return resp
	}

	return jsonResponse(http.StatusOK, consentPayload{
		AuthorizationRequired: true,
		Client:                consentClient{ID: client.ID, Name: client.Name},
		Scopes:                described,
		State:                 req.State,
	})
}

// Approve resolves the consent decision parked by Authorize. The session
// state is cleared unconditionally, approved or not.
func (s *Server) Approve(ctx context.Context, req *ApproveRequest) *Response {
	state, err := loadAuthRequest(ctx, req.Session)
	if err != nil {
		logger.Errorw("failed to load authorization request", "error", err)
		return errorResponse(ErrServerError("failed to load authorization request"))
	}
	if state == nil {
		return errorResponse(ErrInvalidRequest("no authorization request in progress"))
	}

	if err := req.Session.Forget(ctx, sessionKeyAuthRequest); err != nil {
		logger.Warnw("failed to clear authorization request from session", "error", err)
	}

	if !req.Approved {
		return errorRedirect(state.RedirectURI,
			&Error{
				Code:        CodeAccessDenied,
				Status:      http.StatusForbidden,
				Description: "the resource owner denied the request",
			},
			state.State)
	}

	return s.issueCode(ctx, *state, req.User)
}

// issueCode creates an authorization code for the approved request and
// redirects back to the client.
func (s *Server) issueCode(ctx context.Context, state authRequestState, user any) *Response {
	userID, err := ResolveUserID(user)
	if err != nil {
		logger.Errorw("cannot resolve authenticated user", "error", err)
		return errorResponse(ErrServerError("cannot resolve authenticated user"))
	}

	plain, code, err := s.codes.Issue(ctx, IssueCodeParams{
		ClientID:            state.ClientID,
		UserID:              userID,
		RedirectURI:         state.RedirectURI,
		Scopes:              state.Scopes,
		CodeChallenge:       state.CodeChallenge,
		CodeChallengeMethod: state.CodeChallengeMethod,
	})
	if err != nil {
		return errorResponse(err)
	}

	target, err := url.Parse(state.RedirectURI)
	if err != nil {
		return errorResponse(ErrServerError("invalid redirect URI"))
	}
	query := target.Query()
	query.Set("code", plain)
	if state.State != "" {
		query.Set("state", state.State)
	}
	target.RawQuery = query.Encode()

	s.emit(Event{Type: EventCodeIssued, ClientID: code.ClientID, UserID: code.UserID})
	return redirectResponse(target.String())
}

// parseScopeParam splits the space-separated scope parameter. A value of
// only whitespace is treated as unspecified so defaults apply.
func parseScopeParam(scope string) []string {
	return strings.Fields(scope)
}

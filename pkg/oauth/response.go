// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package oauth

import (
	"net/http"
	"net/url"

	"github.com/stacklok/oauthd/pkg/logger"
)

// Response describes the HTTP response the transport layer should render.
// The engine never touches http.ResponseWriter directly; it returns either a
// JSON payload or a redirect target.
type Response struct {
	// Status is the HTTP status code.
	Status int

	// Body is the JSON payload when non-nil.
	Body any

	// RedirectURL is the Location target when non-empty. Status is 302.
	RedirectURL string
}

func jsonResponse(status int, body any) *Response {
	return &Response{Status: status, Body: body}
}

func redirectResponse(target string) *Response {
	return &Response{Status: http.StatusFound, RedirectURL: target}
}

// errorResponse renders a protocol error as the standard JSON envelope.
// Non-protocol errors are logged and collapsed into server_error so internal
// details never reach the wire.
func errorResponse(err error) *Response {
	perr, ok := err.(*Error)
	if !ok {
		logger.Errorw("unexpected protocol failure", "error", err)
		perr = ErrServerError("an unexpected error occurred")
	}
	return jsonResponse(perr.Status, errorBody{
		Error:            perr.Code,
		ErrorDescription: perr.Description,
	})
}

// errorRedirect encodes a protocol error as query parameters on a redirect
// URI, preserving state. Only callers holding an already-validated redirect
// URI may use this.
func errorRedirect(redirectURI string, perr *Error, state string) *Response {
	target, err := url.Parse(redirectURI)
	if err != nil {
		// The URI was validated against the client registration, so this
		// is unreachable in practice.
		return errorResponse(ErrServerError("invalid redirect URI"))
	}

	query := target.Query()
	query.Set("error", perr.Code)
	query.Set("error_description", perr.Description)
	if state != "" {
		query.Set("state", state)
	}
	target.RawQuery = query.Encode()

	return redirectResponse(target.String())
}

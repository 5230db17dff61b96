// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package oauth

import (
	"fmt"
	"net/http"
)

// Protocol error codes per RFC 6749 §5.2 and RFC 6749 §4.1.2.1.
const (
	CodeInvalidRequest       = "invalid_request"
	CodeInvalidClient        = "invalid_client"
	CodeInvalidGrant         = "invalid_grant"
	CodeInvalidScope         = "invalid_scope"
	CodeUnsupportedGrantType = "unsupported_grant_type"
	CodeAccessDenied         = "access_denied"
	CodeServerError          = "server_error"
)

// Error is a protocol-level failure rendered as the standard OAuth error
// envelope, or as redirect query parameters on the authorization flow.
type Error struct {
	// Code is the machine-readable error code.
	Code string

	// Status is the HTTP status the envelope is served with.
	Status int

	// Description is the human-readable error_description.
	Description string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Description)
}

// ErrInvalidRequest reports a missing or malformed parameter.
func ErrInvalidRequest(description string) *Error {
	return &Error{Code: CodeInvalidRequest, Status: http.StatusBadRequest, Description: description}
}

// ErrInvalidClient reports an unknown, revoked, or unauthenticated client.
func ErrInvalidClient(description string) *Error {
	return &Error{Code: CodeInvalidClient, Status: http.StatusUnauthorized, Description: description}
}

// ErrInvalidGrant reports an absent, expired, revoked, or mismatched
// authorization code or refresh token.
func ErrInvalidGrant(description string) *Error {
	return &Error{Code: CodeInvalidGrant, Status: http.StatusBadRequest, Description: description}
}

// ErrInvalidScope reports an unknown or disallowed scope.
func ErrInvalidScope(description string) *Error {
	return &Error{Code: CodeInvalidScope, Status: http.StatusBadRequest, Description: description}
}

// ErrUnsupportedGrantType reports a grant_type the server does not implement.
func ErrUnsupportedGrantType(grantType string) *Error {
	return &Error{
		Code:        CodeUnsupportedGrantType,
		Status:      http.StatusBadRequest,
		Description: fmt.Sprintf("unsupported grant type: %s", grantType),
	}
}

// ErrAccessDenied reports a user-denied consent.
func ErrAccessDenied(description string) *Error {
	return &Error{Code: CodeAccessDenied, Status: http.StatusForbidden, Description: description}
}

// ErrServerError is the escape hatch for unexpected failures.
func ErrServerError(description string) *Error {
	return &Error{Code: CodeServerError, Status: http.StatusInternalServerError, Description: description}
}

// errorBody is the JSON error envelope shared by all protocol endpoints.
type errorBody struct {
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description"`
}

// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package oauth

import (
	"context"
	"encoding/json"
	"fmt"
)

// sessionKeyAuthRequest is the session key the authorize flow parks the
// validated request under between the GET and the consent POST.
const sessionKeyAuthRequest = "_oauth2_auth_request"

// Session is the per-user-agent key/value store the host supplies for the
// consent round trip.
type Session interface {
	// Get returns the value stored under key, and whether it was present.
	Get(ctx context.Context, key string) (string, bool, error)

	// Set stores a value under key.
	Set(ctx context.Context, key, value string) error

	// Forget removes key from the session.
	Forget(ctx context.Context, key string) error
}

// authRequestState is the payload parked in the session between the
// authorization request and the consent decision. Six bounded string fields.
type authRequestState struct {
	ClientID            string   `json:"client_id"`
	RedirectURI         string   `json:"redirect_uri"`
	Scopes              []string `json:"scopes"`
	State               string   `json:"state"`
	CodeChallenge       string   `json:"code_challenge,omitempty"`
	CodeChallengeMethod string   `json:"code_challenge_method,omitempty"`
}

func saveAuthRequest(ctx context.Context, session Session, state authRequestState) error {
	payload, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("marshaling auth request state: %w", err)
	}
	return session.Set(ctx, sessionKeyAuthRequest, string(payload))
}

func loadAuthRequest(ctx context.Context, session Session) (*authRequestState, error) {
	payload, ok, err := session.Get(ctx, sessionKeyAuthRequest)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}

	var state authRequestState
	if err := json.Unmarshal([]byte(payload), &state); err != nil {
		return nil, fmt.Errorf("unmarshaling auth request state: %w", err)
	}
	return &state, nil
}

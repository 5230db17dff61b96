// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package oauth

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"fmt"

	"golang.org/x/oauth2"
)

// Secret byte lengths. Plain secrets are returned to the caller exactly once
// in hex; only SHA-256 hex hashes are persisted.
const (
	// ClientSecretBytes is the client secret length (64 hex chars).
	ClientSecretBytes = 32

	// TokenSecretBytes is the length of access, refresh, and authorization
	// code secrets (80 hex chars).
	TokenSecretBytes = 40
)

// PKCE challenge methods per RFC 7636.
const (
	PKCEMethodS256  = "S256"
	PKCEMethodPlain = "plain"
)

// generateSecret returns n cryptographically random bytes hex-encoded.
func generateSecret(n int) (string, error) {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("reading random bytes: %w", err)
	}
	return hex.EncodeToString(buf), nil
}

// hashSecret computes the SHA-256 hex hash under which a secret is persisted.
func hashSecret(plain string) string {
	sum := sha256.Sum256([]byte(plain))
	return hex.EncodeToString(sum[:])
}

// secretMatchesHash compares a plaintext secret against a stored hash in
// constant time.
func secretMatchesHash(plain, storedHash string) bool {
	computed := hashSecret(plain)
	return subtle.ConstantTimeCompare([]byte(computed), []byte(storedHash)) == 1
}

// verifyPKCE checks a code_verifier against the stored challenge.
// S256 compares BASE64URL(SHA-256(verifier)) per RFC 7636 §4.6; plain
// compares the verifier directly. Both comparisons are constant time.
func verifyPKCE(challenge, method, verifier string) bool {
	if verifier == "" {
		return false
	}

	switch method {
	case PKCEMethodS256:
		computed := oauth2.S256ChallengeFromVerifier(verifier)
		return subtle.ConstantTimeCompare([]byte(computed), []byte(challenge)) == 1
	case PKCEMethodPlain:
		return subtle.ConstantTimeCompare([]byte(verifier), []byte(challenge)) == 1
	default:
		return false
	}
}

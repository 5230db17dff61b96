// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package oauth implements the grant protocol engine and credential
// lifecycle of the authorization server.
//
// The engine covers RFC 6749 (authorization_code, client_credentials and
// refresh_token grants), RFC 7636 (PKCE), RFC 7009 (revocation) and
// RFC 7662 (introspection). Tokens are opaque: the plaintext secrets are
// returned to the caller exactly once and persisted only as SHA-256 hashes.
//
// The engine is transport-agnostic. HTTP handlers parse parameters into
// request structs ([AuthorizeRequest], [TokenRequest], ...), invoke the
// [Server], and render the returned [Response] description. The host
// supplies collaborators through small interfaces: [Session] for the
// consent round trip and [UserDirectory] for the user-account subsystem.
package oauth

// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/stacklok/oauthd/pkg/storage"
)

const tokenColumns = `id, user_id, client_id, name, scopes, token, refresh_token,
	expires_at, refresh_expires_at, last_used_at, revoked_at, created_at`

// CreateToken inserts a new token row.
func (s *Store) CreateToken(ctx context.Context, token storage.Token) error {
	scopesJSON, err := encodeStrings(token.Scopes)
	if err != nil {
		return fmt.Errorf("encoding scopes: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO oauth_tokens (
			id, user_id, client_id, name, scopes, token, refresh_token,
			expires_at, refresh_expires_at, last_used_at, revoked_at, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		token.ID,
		nullStringPtr(token.UserID),
		token.ClientID,
		nullStringPtr(token.Name),
		scopesJSON,
		token.AccessHash,
		nullStringPtr(token.RefreshHash),
		fmtTime(token.ExpiresAt),
		fmtTimePtr(token.RefreshExpiresAt),
		fmtTimePtr(token.LastUsedAt),
		fmtTimePtr(token.RevokedAt),
		fmtTime(token.CreatedAt),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return storage.ErrAlreadyExists
		}
		return fmt.Errorf("inserting token: %w", err)
	}

	return nil
}

// GetToken retrieves a token by ID.
func (s *Store) GetToken(ctx context.Context, id string) (storage.Token, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+tokenColumns+` FROM oauth_tokens WHERE id = ?`, id)
	return scanToken(row)
}

// GetTokenByAccessHash retrieves a token by its access secret hash.
func (s *Store) GetTokenByAccessHash(ctx context.Context, hash string) (storage.Token, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+tokenColumns+` FROM oauth_tokens WHERE token = ?`, hash)
	return scanToken(row)
}

// GetTokenByRefreshHash retrieves a token by its refresh secret hash.
func (s *Store) GetTokenByRefreshHash(ctx context.Context, hash string) (storage.Token, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+tokenColumns+` FROM oauth_tokens WHERE refresh_token = ?`, hash)
	return scanToken(row)
}

// TouchTokenLastUsed updates last_used_at.
func (s *Store) TouchTokenLastUsed(ctx context.Context, id string, at time.Time) error {
	if _, err := s.db.ExecContext(ctx,
		`UPDATE oauth_tokens SET last_used_at = ? WHERE id = ?`,
		fmtTime(at), id); err != nil {
		return fmt.Errorf("updating last_used_at: %w", err)
	}
	return nil
}

// RevokeToken sets revoked_at. An already-revoked token keeps its original
// revocation time, which makes the call idempotent.
func (s *Store) RevokeToken(ctx context.Context, id string, at time.Time) error {
	if _, err := s.db.ExecContext(ctx,
		`UPDATE oauth_tokens SET revoked_at = ? WHERE id = ? AND revoked_at IS NULL`,
		fmtTime(at), id); err != nil {
		return fmt.Errorf("revoking token: %w", err)
	}
	return nil
}

// RevokeTokensForUser bulk-revokes all non-revoked tokens of a user.
func (s *Store) RevokeTokensForUser(ctx context.Context, userID string, at time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE oauth_tokens SET revoked_at = ? WHERE user_id = ? AND revoked_at IS NULL`,
		fmtTime(at), userID)
	if err != nil {
		return 0, fmt.Errorf("revoking user tokens: %w", err)
	}
	return res.RowsAffected()
}

// RevokeTokensForUserClient bulk-revokes the user's non-revoked tokens issued
// to a specific client.
func (s *Store) RevokeTokensForUserClient(ctx context.Context, userID, clientID string, at time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE oauth_tokens SET revoked_at = ?
		WHERE user_id = ? AND client_id = ? AND revoked_at IS NULL`,
		fmtTime(at), userID, clientID)
	if err != nil {
		return 0, fmt.Errorf("revoking user client tokens: %w", err)
	}
	return res.RowsAffected()
}

// ListTokensForUser returns the user's non-revoked, non-expired tokens newest
// first. A non-empty clientID narrows the listing to that client.
func (s *Store) ListTokensForUser(ctx context.Context, userID, clientID string, now time.Time) ([]storage.Token, error) {
	query := `SELECT ` + tokenColumns + `
		FROM oauth_tokens
		WHERE user_id = ? AND revoked_at IS NULL AND expires_at > ?`
	args := []any{userID, fmtTime(now)}

	if clientID != "" {
		query += ` AND client_id = ?`
		args = append(args, clientID)
	}
	query += ` ORDER BY created_at DESC, id`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying tokens: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var tokens []storage.Token
	for rows.Next() {
		token, err := scanToken(rows)
		if err != nil {
			return nil, err
		}
		tokens = append(tokens, token)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating token rows: %w", err)
	}

	return tokens, nil
}

// PruneTokens deletes tokens that can never validate again: access expired
// with no refresh token, refresh expired, or revoked before revokedBefore.
func (s *Store) PruneTokens(ctx context.Context, now, revokedBefore time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `
		DELETE FROM oauth_tokens
		WHERE (expires_at < ? AND refresh_token IS NULL)
		   OR (refresh_expires_at IS NOT NULL AND refresh_expires_at < ?)
		   OR (revoked_at IS NOT NULL AND revoked_at < ?)`,
		fmtTime(now), fmtTime(now), fmtTime(revokedBefore))
	if err != nil {
		return 0, fmt.Errorf("pruning tokens: %w", err)
	}

	return res.RowsAffected()
}

func scanToken(sc scanner) (storage.Token, error) {
	var (
		token        storage.Token
		userID       sql.NullString
		name         sql.NullString
		scopes       sql.NullString
		refreshHash  sql.NullString
		expiresAtStr string
		refreshExp   sql.NullString
		lastUsedAt   sql.NullString
		revokedAt    sql.NullString
		createdAtStr string
	)

	err := sc.Scan(
		&token.ID, &userID, &token.ClientID, &name, &scopes,
		&token.AccessHash, &refreshHash, &expiresAtStr, &refreshExp,
		&lastUsedAt, &revokedAt, &createdAtStr,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return storage.Token{}, storage.ErrNotFound
		}
		return storage.Token{}, fmt.Errorf("scanning token row: %w", err)
	}

	token.UserID = ptrFromNull(userID)
	token.Name = ptrFromNull(name)
	token.RefreshHash = ptrFromNull(refreshHash)
	if token.Scopes, err = decodeStrings(scopes); err != nil {
		return storage.Token{}, fmt.Errorf("decoding scopes: %w", err)
	}
	if token.ExpiresAt, err = parseTime(expiresAtStr); err != nil {
		return storage.Token{}, err
	}
	if token.RefreshExpiresAt, err = parseTimePtr(refreshExp); err != nil {
		return storage.Token{}, err
	}
	if token.LastUsedAt, err = parseTimePtr(lastUsedAt); err != nil {
		return storage.Token{}, err
	}
	if token.RevokedAt, err = parseTimePtr(revokedAt); err != nil {
		return storage.Token{}, err
	}
	if token.CreatedAt, err = parseTime(createdAtStr); err != nil {
		return storage.Token{}, err
	}

	return token, nil
}

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

const codeColumns = `id, client_id, user_id, code, redirect_uri, scopes,
	code_challenge, code_challenge_method, expires_at, used_at, created_at`

// CreateAuthCode inserts a new authorization code row.
func (s *Store) CreateAuthCode(ctx context.Context, code storage.AuthCode) error {
	scopesJSON, err := encodeStrings(code.Scopes)
	if err != nil {
		return fmt.Errorf("encoding scopes: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO oauth_auth_codes (
			id, client_id, user_id, code, redirect_uri, scopes,
			code_challenge, code_challenge_method, expires_at, used_at, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		code.ID,
		code.ClientID,
		code.UserID,
		code.CodeHash,
		code.RedirectURI,
		scopesJSON,
		nullStringPtr(code.CodeChallenge),
		nullStringPtr(code.CodeChallengeMethod),
		fmtTime(code.ExpiresAt),
		fmtTimePtr(code.UsedAt),
		fmtTime(code.CreatedAt),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return storage.ErrAlreadyExists
		}
		return fmt.Errorf("inserting auth code: %w", err)
	}

	return nil
}

// GetAuthCodeByHash retrieves a code by hash, scoped to the issuing client.
func (s *Store) GetAuthCodeByHash(ctx context.Context, clientID, codeHash string) (storage.AuthCode, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+codeColumns+` FROM oauth_auth_codes WHERE client_id = ? AND code = ?`,
		clientID, codeHash)
	return scanAuthCode(row)
}

// MarkAuthCodeUsed conditionally sets used_at. The WHERE clause on used_at
// makes concurrent exchanges of the same code race on a single winner.
func (s *Store) MarkAuthCodeUsed(ctx context.Context, id string, at time.Time) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE oauth_auth_codes SET used_at = ? WHERE id = ? AND used_at IS NULL`,
		fmtTime(at), id)
	if err != nil {
		return false, fmt.Errorf("marking auth code used: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("checking rows affected: %w", err)
	}

	return affected > 0, nil
}

// PruneAuthCodes deletes codes that have been consumed or are past expiry.
func (s *Store) PruneAuthCodes(ctx context.Context, now time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM oauth_auth_codes WHERE used_at IS NOT NULL OR expires_at < ?`,
		fmtTime(now))
	if err != nil {
		return 0, fmt.Errorf("pruning auth codes: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("checking rows affected: %w", err)
	}

	return affected, nil
}

func scanAuthCode(sc scanner) (storage.AuthCode, error) {
	var (
		code         storage.AuthCode
		scopes       sql.NullString
		challenge    sql.NullString
		method       sql.NullString
		expiresAtStr string
		usedAt       sql.NullString
		createdAtStr string
	)

	err := sc.Scan(
		&code.ID, &code.ClientID, &code.UserID, &code.CodeHash,
		&code.RedirectURI, &scopes, &challenge, &method,
		&expiresAtStr, &usedAt, &createdAtStr,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return storage.AuthCode{}, storage.ErrNotFound
		}
		return storage.AuthCode{}, fmt.Errorf("scanning auth code row: %w", err)
	}

	if code.Scopes, err = decodeStrings(scopes); err != nil {
		return storage.AuthCode{}, fmt.Errorf("decoding scopes: %w", err)
	}
	code.CodeChallenge = ptrFromNull(challenge)
	code.CodeChallengeMethod = ptrFromNull(method)
	if code.ExpiresAt, err = parseTime(expiresAtStr); err != nil {
		return storage.AuthCode{}, err
	}
	if code.UsedAt, err = parseTimePtr(usedAt); err != nil {
		return storage.AuthCode{}, err
	}
	if code.CreatedAt, err = parseTime(createdAtStr); err != nil {
		return storage.AuthCode{}, err
	}

	return code, nil
}

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

// clientColumns is the SELECT column list shared by client queries.
const clientColumns = `id, name, secret, redirect_uris, scopes, grant_types,
	confidential, first_party, revoked, created_at, updated_at`

// CreateClient inserts a new client row.
func (s *Store) CreateClient(ctx context.Context, client storage.Client) error {
	redirectsJSON, err := encodeStrings(client.RedirectURIs)
	if err != nil {
		return fmt.Errorf("encoding redirect URIs: %w", err)
	}
	scopesJSON, err := encodeStrings(client.Scopes)
	if err != nil {
		return fmt.Errorf("encoding scopes: %w", err)
	}
	grantsJSON, err := encodeStrings(client.GrantTypes)
	if err != nil {
		return fmt.Errorf("encoding grant types: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO oauth_clients (
			id, name, secret, redirect_uris, scopes, grant_types,
			confidential, first_party, revoked, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		client.ID,
		client.Name,
		nullStringPtr(client.SecretHash),
		redirectsJSON,
		scopesJSON,
		grantsJSON,
		client.Confidential,
		client.FirstParty,
		client.Revoked,
		fmtTime(client.CreatedAt),
		fmtTime(client.UpdatedAt),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return storage.ErrAlreadyExists
		}
		return fmt.Errorf("inserting client: %w", err)
	}

	return nil
}

// GetClient retrieves a client by ID. Revoked clients are returned as-is;
// callers check the Revoked flag themselves.
func (s *Store) GetClient(ctx context.Context, id string) (storage.Client, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+clientColumns+` FROM oauth_clients WHERE id = ?`, id)
	return scanClient(row)
}

// ListClients returns all clients, newest first.
func (s *Store) ListClients(ctx context.Context) ([]storage.Client, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+clientColumns+` FROM oauth_clients ORDER BY created_at DESC, id`)
	if err != nil {
		return nil, fmt.Errorf("querying clients: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var clients []storage.Client
	for rows.Next() {
		client, err := scanClient(rows)
		if err != nil {
			return nil, err
		}
		clients = append(clients, client)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating client rows: %w", err)
	}

	return clients, nil
}

// RevokeClient sets revoked=true and bumps updated_at. Idempotent.
func (s *Store) RevokeClient(ctx context.Context, id string, at time.Time) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE oauth_clients SET revoked = 1, updated_at = ? WHERE id = ?`,
		fmtTime(at), id)
	if err != nil {
		return fmt.Errorf("revoking client: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking rows affected: %w", err)
	}
	if affected == 0 {
		return storage.ErrNotFound
	}

	return nil
}

// DeleteClient hard-deletes the client, its authorization codes, and its
// tokens, in that order, within a single transaction.
func (s *Store) DeleteClient(ctx context.Context, id string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer rollback(tx)

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM oauth_auth_codes WHERE client_id = ?`, id); err != nil {
		return fmt.Errorf("deleting auth codes: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		`DELETE FROM oauth_tokens WHERE client_id = ?`, id); err != nil {
		return fmt.Errorf("deleting tokens: %w", err)
	}

	res, err := tx.ExecContext(ctx, `DELETE FROM oauth_clients WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deleting client: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking rows affected: %w", err)
	}
	if affected == 0 {
		return storage.ErrNotFound
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}

	return nil
}

func scanClient(sc scanner) (storage.Client, error) {
	var (
		client       storage.Client
		secret       sql.NullString
		redirects    sql.NullString
		scopes       sql.NullString
		grants       sql.NullString
		createdAtStr string
		updatedAtStr string
	)

	err := sc.Scan(
		&client.ID, &client.Name, &secret, &redirects, &scopes, &grants,
		&client.Confidential, &client.FirstParty, &client.Revoked,
		&createdAtStr, &updatedAtStr,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return storage.Client{}, storage.ErrNotFound
		}
		return storage.Client{}, fmt.Errorf("scanning client row: %w", err)
	}

	client.SecretHash = ptrFromNull(secret)
	if client.RedirectURIs, err = decodeStrings(redirects); err != nil {
		return storage.Client{}, fmt.Errorf("decoding redirect URIs: %w", err)
	}
	if client.Scopes, err = decodeStrings(scopes); err != nil {
		return storage.Client{}, fmt.Errorf("decoding scopes: %w", err)
	}
	if client.GrantTypes, err = decodeStrings(grants); err != nil {
		return storage.Client{}, fmt.Errorf("decoding grant types: %w", err)
	}
	if client.CreatedAt, err = parseTime(createdAtStr); err != nil {
		return storage.Client{}, err
	}
	if client.UpdatedAt, err = parseTime(updatedAtStr); err != nil {
		return storage.Client{}, err
	}

	return client, nil
}

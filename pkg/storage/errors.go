// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package storage

import "errors"

var (
	// ErrNotFound is returned when a requested record does not exist.
	ErrNotFound = errors.New("record not found")

	// ErrAlreadyExists is returned when a record with the same unique key
	// already exists. For token and code hashes this doubles as the
	// collision guard; with 40 random bytes a collision is not recoverable
	// at runtime.
	ErrAlreadyExists = errors.New("record already exists")
)

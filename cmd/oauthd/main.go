// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package main is the entry point for the oauthd CLI.
package main

import (
	"os"

	"github.com/stacklok/oauthd/cmd/oauthd/app"
	"github.com/stacklok/oauthd/pkg/logger"
)

func main() {
	logger.Initialize()

	if err := app.NewRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package app

import (
	"fmt"

	"github.com/spf13/cobra"
)

var purgeDays int

var purgeCmd = &cobra.Command{
	Use:   "purge",
	Short: "Delete spent authorization codes and tokens",
	Long: `Delete used and expired authorization codes, expired tokens with no
usable refresh token, and tokens revoked more than the retention window ago.
Revocation itself is a soft delete; purge is the only hard delete.`,
	RunE: purgeCmdFunc,
}

func init() {
	purgeCmd.Flags().IntVar(&purgeDays, "days", 0,
		"Retention in days for revoked tokens (0 uses the configured value)")
}

func purgeCmdFunc(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	cfg, store, engine, err := openServer(ctx)
	if err != nil {
		return err
	}
	defer store.Close()

	days := purgeDays
	if days == 0 {
		days = cfg.PruneRevokedAfterDays
	}

	codes, err := engine.Codes().Prune(ctx)
	if err != nil {
		return fmt.Errorf("pruning authorization codes: %w", err)
	}
	tokens, err := engine.Tokens().Prune(ctx, days)
	if err != nil {
		return fmt.Errorf("pruning tokens: %w", err)
	}

	fmt.Printf("Purged %d authorization codes and %d tokens.\n", codes, tokens)

	return nil
}

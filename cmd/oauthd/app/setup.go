// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package app

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/stacklok/oauthd/pkg/oauth"
	"github.com/stacklok/oauthd/pkg/storage"
)

var setupCmd = &cobra.Command{
	Use:   "setup",
	Short: "Initialize the database and the personal access client",
	Long: `Run the database migrations and create the first-party client that
personal access tokens are issued against. Record the printed client id
as personal_access_client in the configuration.`,
	RunE: setupCmdFunc,
}

func setupCmdFunc(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	// Opening the store runs pending migrations.
	_, store, engine, err := openServer(ctx)
	if err != nil {
		return err
	}
	defer store.Close()

	client, _, err := engine.Clients().Create(ctx, oauth.CreateClientInput{
		Name:       "Personal Access Client",
		GrantTypes: []string{storage.GrantClientCredentials},
		FirstParty: true,
	})
	if err != nil {
		return fmt.Errorf("creating personal access client: %w", err)
	}

	fmt.Printf("Database initialized.\n")
	fmt.Printf("Personal access client id: %s\n", client.ID)
	fmt.Printf("Set personal_access_client to this id in the configuration.\n")

	return nil
}

// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package app

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/stacklok/oauthd/pkg/oauth"
	"github.com/stacklok/oauthd/pkg/storage"
)

var (
	clientName        string
	clientRedirects   []string
	clientScopes      []string
	clientPublic      bool
	clientFirstParty  bool
	clientCredentials bool
)

// newClientCommand creates the 'client' subcommand.
func newClientCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "client",
		Short: "Register an OAuth client",
		Long: `Register an OAuth client. Confidential clients receive a generated
secret, printed exactly once; only its hash is stored.`,
		RunE: clientCmdFunc,
	}

	cmd.Flags().StringVar(&clientName, "name", "", "Client display name (required)")
	cmd.Flags().StringSliceVar(&clientRedirects, "redirect", nil, "Redirect URI (repeatable)")
	cmd.Flags().StringSliceVar(&clientScopes, "scope", nil, "Allowed scope (repeatable; unset allows any registered scope)")
	cmd.Flags().BoolVar(&clientPublic, "public", false, "Create a public client (no secret, PKCE required)")
	cmd.Flags().BoolVar(&clientFirstParty, "first-party", false, "Skip the consent screen for this client")
	cmd.Flags().BoolVar(&clientCredentials, "credentials", false, "Permit the client_credentials grant")
	_ = cmd.MarkFlagRequired("name")

	return cmd
}

func clientCmdFunc(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	_, store, engine, err := openServer(ctx)
	if err != nil {
		return err
	}
	defer store.Close()

	// A credentials client with no redirect URIs is machine-only.
	var grantTypes []string
	if len(clientRedirects) > 0 || !clientCredentials {
		grantTypes = []string{storage.GrantAuthorizationCode, storage.GrantRefreshToken}
	}
	if clientCredentials {
		grantTypes = append(grantTypes, storage.GrantClientCredentials)
	}

	client, secret, err := engine.Clients().Create(ctx, oauth.CreateClientInput{
		Name:         clientName,
		RedirectURIs: clientRedirects,
		Scopes:       clientScopes,
		GrantTypes:   grantTypes,
		Public:       clientPublic,
		FirstParty:   clientFirstParty,
	})
	if err != nil {
		return fmt.Errorf("creating client: %w", err)
	}

	fmt.Printf("Client id:     %s\n", client.ID)
	if secret != "" {
		fmt.Printf("Client secret: %s\n", secret)
		fmt.Printf("Store the secret now; it is not retrievable later.\n")
	}

	return nil
}

// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package app provides the entry point for the oauthd command-line application.
package app

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/stacklok/oauthd/pkg/config"
	"github.com/stacklok/oauthd/pkg/oauth"
	"github.com/stacklok/oauthd/pkg/storage/sqlite"
)

var (
	configFile string
	v          = viper.New()
)

var rootCmd = &cobra.Command{
	Use:               "oauthd",
	DisableAutoGenTag: true,
	Short:             "oauthd is an OAuth 2.0 authorization server",
	Long: `oauthd is an OAuth 2.0 authorization server implementing the
authorization code grant with PKCE, client credentials, refresh token
rotation, token revocation (RFC 7009), and token introspection (RFC 7662).
Tokens are opaque random strings; only their SHA-256 hashes are stored.`,
	Run: func(cmd *cobra.Command, _ []string) {
		if err := cmd.Help(); err != nil {
			fmt.Println("Error displaying help:", err)
		}
	},
}

// NewRootCmd creates a new root command for the oauthd CLI.
func NewRootCmd() *cobra.Command {
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "Path to the configuration file")
	rootCmd.PersistentFlags().String("database", "oauthd.db", "Path to the SQLite database")

	_ = v.BindPFlag("database", rootCmd.PersistentFlags().Lookup("database"))
	v.SetEnvPrefix("OAUTHD")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(setupCmd)
	rootCmd.AddCommand(newClientCommand())
	rootCmd.AddCommand(purgeCmd)

	return rootCmd
}

// loadConfig reads the configuration file (when given) and unmarshals the
// effective configuration.
func loadConfig() (config.Config, error) {
	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return config.Config{}, fmt.Errorf("reading config file: %w", err)
		}
	}
	return config.Load(v)
}

// openServer loads configuration, opens the store, and builds the engine.
// The caller closes the returned store.
func openServer(ctx context.Context) (config.Config, *sqlite.Store, *oauth.Server, error) {
	cfg, err := loadConfig()
	if err != nil {
		return config.Config{}, nil, nil, err
	}

	store, err := sqlite.Open(ctx, cfg.Database)
	if err != nil {
		return config.Config{}, nil, nil, fmt.Errorf("opening database: %w", err)
	}

	return cfg, store, oauth.New(cfg, store), nil
}

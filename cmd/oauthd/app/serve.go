// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/stacklok/oauthd/pkg/api"
	"github.com/stacklok/oauthd/pkg/config"
	"github.com/stacklok/oauthd/pkg/logger"
	"github.com/stacklok/oauthd/pkg/sessions"
)

const shutdownTimeout = 10 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the authorization server",
	Long: `Start the HTTP authorization server. The protocol endpoints are mounted
under the configured prefix (default /oauth). The server shuts down
gracefully on SIGINT or SIGTERM.`,
	RunE: serveCmdFunc,
}

func init() {
	serveCmd.Flags().String("address", ":8080", "Listen address")
	_ = v.BindPFlag("address", serveCmd.Flags().Lookup("address"))
}

func serveCmdFunc(cmd *cobra.Command, _ []string) error {
	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	cfg, store, engine, err := openServer(ctx)
	if err != nil {
		return err
	}
	defer store.Close()

	sessionStore, err := newSessionStore(ctx, cfg.Sessions)
	if err != nil {
		return err
	}

	transport := api.NewServer(engine, sessionStore, nil, nil)
	server := &http.Server{
		Addr:              cfg.Address,
		Handler:           transport.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Infow("starting authorization server", "address", cfg.Address, "prefix", cfg.Prefix)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	case sig := <-sigCh:
		logger.Infow("shutting down", "signal", sig.String())
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutting down server: %w", err)
	}

	return nil
}

// newSessionStore builds the configured consent session store.
func newSessionStore(ctx context.Context, cfg config.Sessions) (sessions.Store, error) {
	switch cfg.Backend {
	case "", "memory":
		return sessions.NewMemoryStore(cfg.TTL()), nil
	case "redis":
		return sessions.NewRedisStore(ctx, sessions.RedisConfig{
			Addr: cfg.RedisAddr,
			TTL:  cfg.TTL(),
		})
	default:
		return nil, fmt.Errorf("unknown session backend %q", cfg.Backend)
	}
}

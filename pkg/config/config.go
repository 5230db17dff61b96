// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package config holds the oauthd configuration and its defaults.
package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Default lifetimes, expressed in minutes as they appear in configuration.
const (
	DefaultAccessTokenLifetimeMinutes    = 60
	DefaultRefreshTokenLifetimeMinutes   = 43_200  // 30 days
	DefaultAuthCodeLifetimeMinutes       = 10
	DefaultPersonalTokenLifetimeMinutes  = 525_600 // 1 year
	DefaultPruneRevokedAfterDays         = 7
	DefaultPrefix                        = "/oauth"
	DefaultAuthorizeRateLimitMax         = 30
	DefaultTokenRateLimitMax             = 20
	DefaultRateLimitWindowSeconds        = 60
)

// Sessions configures the consent session store.
type Sessions struct {
	// Backend selects the store: "memory" (default) or "redis".
	Backend string `mapstructure:"backend"`

	// RedisAddr is the Redis server address when Backend is "redis".
	RedisAddr string `mapstructure:"redis_addr"`

	// TTLMinutes bounds session entry lifetime. Zero takes the store default.
	TTLMinutes int `mapstructure:"ttl"`
}

// TTL returns the session TTL as a duration.
func (s *Sessions) TTL() time.Duration {
	return time.Duration(s.TTLMinutes) * time.Minute
}

// RateLimit bounds requests per window for a protocol endpoint.
type RateLimit struct {
	Max    int           `mapstructure:"max"`
	Window time.Duration `mapstructure:"-"`

	// WindowSeconds is the serialized form of Window.
	WindowSeconds int `mapstructure:"window_seconds"`
}

// Config is the full oauthd configuration.
type Config struct {
	// Address is the listen address for the HTTP server.
	Address string `mapstructure:"address"`

	// Database is the SQLite database path.
	Database string `mapstructure:"database"`

	// Prefix is the URL prefix all protocol endpoints share.
	Prefix string `mapstructure:"prefix"`

	// Lifetimes, in minutes.
	AccessTokenLifetimeMinutes   int `mapstructure:"access_token_lifetime"`
	RefreshTokenLifetimeMinutes  int `mapstructure:"refresh_token_lifetime"`
	AuthCodeLifetimeMinutes      int `mapstructure:"auth_code_lifetime"`
	PersonalTokenLifetimeMinutes int `mapstructure:"personal_access_token_lifetime"`

	// Scopes maps registered scope names to descriptions.
	Scopes map[string]string `mapstructure:"scopes"`

	// DefaultScopes substitute for an empty scope parameter.
	DefaultScopes []string `mapstructure:"default_scopes"`

	// PersonalAccessClient is the UUID of the first-party client personal
	// access tokens are issued against. Empty disables personal tokens.
	PersonalAccessClient string `mapstructure:"personal_access_client"`

	// PruneRevokedAfterDays controls how long revoked tokens are retained
	// before purge removes them.
	PruneRevokedAfterDays int `mapstructure:"prune_revoked_after_days"`

	// Sessions configures the consent session store.
	Sessions Sessions `mapstructure:"sessions"`

	// AuthorizeRateLimit and TokenRateLimit bound the protocol endpoints.
	AuthorizeRateLimit RateLimit `mapstructure:"authorize_rate_limit"`
	TokenRateLimit     RateLimit `mapstructure:"token_rate_limit"`
}

// AccessTokenLifetime returns the access token lifetime as a duration.
func (c Config) AccessTokenLifetime() time.Duration {
	return time.Duration(c.AccessTokenLifetimeMinutes) * time.Minute
}

// RefreshTokenLifetime returns the refresh token lifetime as a duration.
func (c Config) RefreshTokenLifetime() time.Duration {
	return time.Duration(c.RefreshTokenLifetimeMinutes) * time.Minute
}

// AuthCodeLifetime returns the authorization code lifetime as a duration.
func (c Config) AuthCodeLifetime() time.Duration {
	return time.Duration(c.AuthCodeLifetimeMinutes) * time.Minute
}

// PersonalTokenLifetime returns the personal access token lifetime as a duration.
func (c Config) PersonalTokenLifetime() time.Duration {
	return time.Duration(c.PersonalTokenLifetimeMinutes) * time.Minute
}

// Default returns the configuration defaults.
func Default() Config {
	return Config{
		Address:                      ":8080",
		Database:                     "oauthd.db",
		Prefix:                       DefaultPrefix,
		AccessTokenLifetimeMinutes:   DefaultAccessTokenLifetimeMinutes,
		RefreshTokenLifetimeMinutes:  DefaultRefreshTokenLifetimeMinutes,
		AuthCodeLifetimeMinutes:      DefaultAuthCodeLifetimeMinutes,
		PersonalTokenLifetimeMinutes: DefaultPersonalTokenLifetimeMinutes,
		Scopes:                       map[string]string{},
		DefaultScopes:                []string{},
		PruneRevokedAfterDays:        DefaultPruneRevokedAfterDays,
		Sessions:                     Sessions{Backend: "memory"},
		AuthorizeRateLimit: RateLimit{
			Max:           DefaultAuthorizeRateLimitMax,
			WindowSeconds: DefaultRateLimitWindowSeconds,
		},
		TokenRateLimit: RateLimit{
			Max:           DefaultTokenRateLimitMax,
			WindowSeconds: DefaultRateLimitWindowSeconds,
		},
	}
}

// SetDefaults registers the configuration defaults with viper so flag and
// file values overlay them.
func SetDefaults(v *viper.Viper) {
	defaults := Default()
	v.SetDefault("address", defaults.Address)
	v.SetDefault("database", defaults.Database)
	v.SetDefault("prefix", defaults.Prefix)
	v.SetDefault("access_token_lifetime", defaults.AccessTokenLifetimeMinutes)
	v.SetDefault("refresh_token_lifetime", defaults.RefreshTokenLifetimeMinutes)
	v.SetDefault("auth_code_lifetime", defaults.AuthCodeLifetimeMinutes)
	v.SetDefault("personal_access_token_lifetime", defaults.PersonalTokenLifetimeMinutes)
	v.SetDefault("prune_revoked_after_days", defaults.PruneRevokedAfterDays)
	v.SetDefault("sessions.backend", defaults.Sessions.Backend)
	v.SetDefault("authorize_rate_limit.max", defaults.AuthorizeRateLimit.Max)
	v.SetDefault("authorize_rate_limit.window_seconds", defaults.AuthorizeRateLimit.WindowSeconds)
	v.SetDefault("token_rate_limit.max", defaults.TokenRateLimit.Max)
	v.SetDefault("token_rate_limit.window_seconds", defaults.TokenRateLimit.WindowSeconds)
}

// Load reads the configuration from viper, applying defaults for unset keys.
func Load(v *viper.Viper) (Config, error) {
	SetDefaults(v)

	cfg := Default()
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshaling configuration: %w", err)
	}

	cfg.AuthorizeRateLimit.Window = time.Duration(cfg.AuthorizeRateLimit.WindowSeconds) * time.Second
	cfg.TokenRateLimit.Window = time.Duration(cfg.TokenRateLimit.WindowSeconds) * time.Second

	if cfg.Scopes == nil {
		cfg.Scopes = map[string]string{}
	}
	if cfg.DefaultScopes == nil {
		cfg.DefaultScopes = []string{}
	}

	return cfg, nil
}

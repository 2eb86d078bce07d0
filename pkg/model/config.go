// Package model holds the configuration types shared across the broker.
package model

import "time"

// Sender is the From address used on outgoing confirmation emails.
type Sender struct {
	Address string `json:"address" validate:"required,email"`
	Name    string `json:"name" validate:"required"`
}

// SMTP holds the relay the email loop dials to deliver confirmation
// codes. An ambient addition to spec.md §6's config key list: the spec's
// "sender" key is only the From header, not a dialable relay address.
type SMTP struct {
	Host     string `json:"host" validate:"required"`
	Port     int    `json:"port" validate:"required" default:"587"`
	Username string `json:"username"`
	Password string `json:"password"`
}

// Provider is one upstream OIDC provider, keyed by email domain in
// Config.Providers.
type Provider struct {
	Discovery string `json:"discovery" validate:"required,url"`
	ClientID  string `json:"client_id" validate:"required"`
	Secret    string `json:"secret" validate:"required"`
	Issuer    string `json:"issuer" validate:"required"`
}

// Log holds logging configuration.
type Log struct {
	FolderPath string `json:"folder_path"`
}

// Tracing holds optional OpenTelemetry exporter configuration. Left empty,
// spans are still created by an SDK tracer provider but never exported.
type Tracing struct {
	Addr    string `json:"addr"`
	Timeout int64  `json:"timeout" default:"10"`
}

// Config is the broker's full, immutable-at-runtime configuration. Each
// field's json tag names the config-file key it is read from; any key not
// represented here is rejected at load time.
type Config struct {
	BaseURL        string              `json:"base_url" validate:"required,url"`
	PrivateKeyFile string              `json:"private_key_file" validate:"required"`
	RedisURL       string              `json:"redis_url" validate:"required"`
	Sender         Sender              `json:"sender" validate:"required"`
	SMTP           SMTP                `json:"smtp" validate:"required"`
	ExpireKeys     int                 `json:"expire_keys" validate:"required,min=1"`
	TokenValidity  int                 `json:"token_validity" validate:"required,min=1"`
	Providers      map[string]Provider `json:"providers"`
	Production     bool                `json:"production"`
	Log            Log                 `json:"log"`
	Tracing        Tracing             `json:"tracing"`
	RequestTimeout int                 `json:"request_timeout" default:"10"`
	JWKSCacheTTL   int                 `json:"jwks_cache_ttl" default:"600"`
}

// ExpireKeysDuration is Config.ExpireKeys as a time.Duration.
func (c *Config) ExpireKeysDuration() time.Duration {
	return time.Duration(c.ExpireKeys) * time.Second
}

// TokenValidityDuration is Config.TokenValidity as a time.Duration.
func (c *Config) TokenValidityDuration() time.Duration {
	return time.Duration(c.TokenValidity) * time.Second
}

// RequestTimeoutDuration is Config.RequestTimeout as a time.Duration.
func (c *Config) RequestTimeoutDuration() time.Duration {
	return time.Duration(c.RequestTimeout) * time.Second
}

// JWKSCacheTTLDuration is Config.JWKSCacheTTL as a time.Duration.
func (c *Config) JWKSCacheTTLDuration() time.Duration {
	return time.Duration(c.JWKSCacheTTL) * time.Second
}

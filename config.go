package tokenlife

import (
	"errors"
	"time"
)

// Config carries every tunable of the engine. Zero values are filled in
// from defaults at Build time; Validate rejects combinations the engine
// cannot run with.
type Config struct {
	Token   TokenConfig
	Refresh RefreshConfig
	Session SessionConfig
	GC      GCConfig
	Audit   AuditConfig
	Metrics MetricsConfig
}

/*
====================================
TOKEN CONFIG
====================================
*/

// TokenConfig controls access token minting and verification.
type TokenConfig struct {
	SigningSecret []byte
	AccessTTL     time.Duration
	Issuer        string
	Audience      []string
	Leeway        time.Duration
	MaxFutureIAT  time.Duration
}

/*
====================================
REFRESH CONFIG
====================================
*/

// RefreshConfig controls refresh token lifetime and how long revoked or
// expired records are retained for reuse detection.
type RefreshConfig struct {
	TTL       time.Duration
	Retention time.Duration
}

/*
====================================
SESSION CONFIG
====================================
*/

// SessionConfig controls the session store namespace and absolute session
// lifetime.
type SessionConfig struct {
	RedisPrefix string
	Lifetime    time.Duration
}

/*
====================================
GC CONFIG
====================================
*/

// GCConfig controls the periodic sweep of expired refresh and session
// records.
type GCConfig struct {
	Enabled      bool
	Interval     time.Duration
	SweepTimeout time.Duration
}

/*
====================================
AUDIT CONFIG
====================================
*/

// AuditConfig controls the async audit event dispatcher.
type AuditConfig struct {
	Enabled    bool
	BufferSize int
	DropIfFull bool
}

/*
====================================
METRICS CONFIG
====================================
*/

// MetricsConfig controls the in-process metrics registry.
type MetricsConfig struct {
	Enabled                 bool
	EnableLatencyHistograms bool
}

func defaultConfig() Config {
	return Config{
		Token: TokenConfig{
			AccessTTL:    15 * time.Minute,
			Issuer:       "tokenlife",
			Leeway:       30 * time.Second,
			MaxFutureIAT: 10 * time.Minute,
		},
		Refresh: RefreshConfig{
			TTL:       7 * 24 * time.Hour,
			Retention: 30 * 24 * time.Hour,
		},
		Session: SessionConfig{
			RedisPrefix: "tl",
			Lifetime:    30 * 24 * time.Hour,
		},
		GC: GCConfig{
			Enabled:      true,
			Interval:     time.Hour,
			SweepTimeout: 30 * time.Second,
		},
		Audit: AuditConfig{
			Enabled:    false,
			BufferSize: 256,
			DropIfFull: true,
		},
		Metrics: MetricsConfig{
			Enabled:                 true,
			EnableLatencyHistograms: true,
		},
	}
}

func mergeConfig(cfg Config) Config {
	def := defaultConfig()

	if cfg.Token.AccessTTL == 0 {
		cfg.Token.AccessTTL = def.Token.AccessTTL
	}
	if cfg.Token.Issuer == "" {
		cfg.Token.Issuer = def.Token.Issuer
	}
	if cfg.Token.Leeway == 0 {
		cfg.Token.Leeway = def.Token.Leeway
	}
	if cfg.Token.MaxFutureIAT == 0 {
		cfg.Token.MaxFutureIAT = def.Token.MaxFutureIAT
	}
	if cfg.Refresh.TTL == 0 {
		cfg.Refresh.TTL = def.Refresh.TTL
	}
	if cfg.Refresh.Retention == 0 {
		cfg.Refresh.Retention = def.Refresh.Retention
	}
	if cfg.Session.RedisPrefix == "" {
		cfg.Session.RedisPrefix = def.Session.RedisPrefix
	}
	if cfg.Session.Lifetime == 0 {
		cfg.Session.Lifetime = def.Session.Lifetime
	}
	if cfg.GC.Interval == 0 {
		cfg.GC.Interval = def.GC.Interval
	}
	if cfg.GC.SweepTimeout == 0 {
		cfg.GC.SweepTimeout = def.GC.SweepTimeout
	}
	if cfg.Audit.BufferSize == 0 {
		cfg.Audit.BufferSize = def.Audit.BufferSize
	}

	return cfg
}

// Validate checks the merged configuration for combinations the engine
// refuses to run with.
func (c Config) Validate() error {
	if len(c.Token.SigningSecret) == 0 {
		return ErrSigningSecretMissing
	}
	if c.Token.AccessTTL <= 0 {
		return errors.New("access ttl must be positive")
	}
	if c.Token.AccessTTL > c.Refresh.TTL {
		return errors.New("access ttl exceeds refresh ttl")
	}
	if c.Refresh.TTL <= 0 {
		return errors.New("refresh ttl must be positive")
	}
	if c.Refresh.Retention < 0 {
		return errors.New("retention must not be negative")
	}
	if c.Session.Lifetime < c.Refresh.TTL {
		return errors.New("session lifetime shorter than refresh ttl")
	}
	if c.GC.Enabled && c.GC.Interval <= 0 {
		return errors.New("gc interval must be positive")
	}
	return nil
}

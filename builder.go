package tokenlife

import (
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/vaultis-io/tokenlife/jwt"
	"github.com/vaultis-io/tokenlife/store"
)

// Builder assembles an [Engine]. A Builder is single-use: Build returns an
// error on the second call.
type Builder struct {
	config Config

	redis        redis.UniversalClient
	userProvider UserProvider
	auditSink    AuditSink

	built bool
}

// New returns a Builder preloaded with defaults.
func New() *Builder {
	return &Builder{
		config: defaultConfig(),
	}
}

// WithConfig replaces the builder's configuration. Zero fields are filled
// in from defaults at Build time.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cfg
	return b
}

// WithRedis sets the Redis client backing the token and session stores.
// The client's lifetime is owned by the caller.
func (b *Builder) WithRedis(client redis.UniversalClient) *Builder {
	b.redis = client
	return b
}

// WithUserProvider sets the user lookup used when minting tokens.
func (b *Builder) WithUserProvider(up UserProvider) *Builder {
	b.userProvider = up
	return b
}

// WithAuditSink sets the audit sink and enables audit dispatch.
func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	b.config.Audit.Enabled = true
	return b
}

// WithMetricsEnabled toggles the in-process metrics registry.
func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

// WithLatencyHistograms toggles rotation latency histograms.
func (b *Builder) WithLatencyHistograms(enabled bool) *Builder {
	b.config.Metrics.EnableLatencyHistograms = enabled
	return b
}

// Build validates the configuration, wires the stores, and starts the
// audit dispatcher and garbage collector.
func (b *Builder) Build() (*Engine, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}

	if b.redis == nil {
		return nil, fmt.Errorf("%w: redis client required", ErrEngineNotReady)
	}
	if b.userProvider == nil {
		return nil, fmt.Errorf("%w: user provider required", ErrEngineNotReady)
	}

	cfg := mergeConfig(b.config)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	jwtMgr, err := jwt.NewManager(jwt.Config{
		Secret:       cfg.Token.SigningSecret,
		AccessTTL:    cfg.Token.AccessTTL,
		Issuer:       cfg.Token.Issuer,
		Audience:     cfg.Token.Audience,
		Leeway:       cfg.Token.Leeway,
		MaxFutureIAT: cfg.Token.MaxFutureIAT,
	})
	if err != nil {
		if errors.Is(err, jwt.ErrNoSecret) {
			return nil, ErrSigningSecretMissing
		}
		return nil, err
	}

	engine := &Engine{
		cfg:      cfg,
		jwtMgr:   jwtMgr,
		tokens:   store.NewTokenStore(b.redis, cfg.Session.RedisPrefix, cfg.Refresh.Retention),
		sessions: store.NewSessionStore(b.redis, cfg.Session.RedisPrefix),
		users:    b.userProvider,
		metrics:  NewMetrics(cfg.Metrics),
		audit:    newAuditDispatcher(cfg.Audit, b.auditSink),
	}
	engine.gc = newGCRunner(engine, cfg.GC)

	b.built = true

	return engine, nil
}

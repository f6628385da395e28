package main

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sellsadvisors/fleet/internal/adauth"
	"github.com/sellsadvisors/fleet/internal/cache"
	"github.com/sellsadvisors/fleet/internal/creativeprompt"
	"github.com/sellsadvisors/fleet/internal/model"
	"github.com/sellsadvisors/fleet/internal/resilience"
	"github.com/sellsadvisors/fleet/internal/store"
	"github.com/sellsadvisors/fleet/pkg/adplatform"
	"github.com/sellsadvisors/fleet/pkg/aicreative"
	"github.com/sellsadvisors/fleet/pkg/anthropic"
	"github.com/sellsadvisors/fleet/pkg/commerce"
	"github.com/sellsadvisors/fleet/pkg/objectstore"
)

// fleetEnv holds every initialized client a pipeline command might need.
// Individual commands pull out only the pieces they require.
type fleetEnv struct {
	Store       store.Store
	Cache       *cache.Cache
	AdPlatform  adplatform.Client
	AICreative  aicreative.Client
	ObjectStore objectstore.Client
	Tokens      *adauth.TokenSource
	Prompts     *creativeprompt.Writer
}

// Close releases resources held by the environment.
func (e *fleetEnv) Close() {
	if e.Cache != nil {
		_ = e.Cache.Close()
	}
	if e.Store != nil {
		_ = e.Store.Close()
	}
}

// initStore builds the configured store backend and runs its migrations.
func initStore(ctx context.Context) (store.Store, error) {
	var st store.Store
	var err error
	switch cfg.Store.Driver {
	case "sqlite":
		dsn := cfg.Store.DatabaseURL
		if dsn == "" {
			dsn = "fleet.db"
		}
		st, err = store.NewSQLiteStore(dsn)
	case "postgres":
		st, err = store.NewPostgresStore(ctx, cfg.Store.DatabaseURL, cfg.Store.MaxConns, cfg.Store.MinConns)
	default:
		return nil, eris.Errorf("unsupported store driver: %s", cfg.Store.Driver)
	}
	if err != nil {
		return nil, err
	}
	if err := st.Migrate(ctx); err != nil {
		_ = st.Close()
		return nil, eris.Wrap(err, "migrate store")
	}
	return st, nil
}

// initEnv builds the store plus every client the requested mode validates
// as required, per cfg.Validate(mode).
func initEnv(ctx context.Context, mode string) (*fleetEnv, error) {
	if err := cfg.Validate(mode); err != nil {
		return nil, err
	}

	st, err := initStore(ctx)
	if err != nil {
		return nil, err
	}

	env := &fleetEnv{Store: st}

	if cfg.Cache.RedisURL != "" {
		ttl := 300
		if cfg.Cache.TTLSeconds > 0 {
			ttl = cfg.Cache.TTLSeconds
		}
		c, err := cache.New(cfg.Cache.RedisURL, time.Duration(ttl)*time.Second)
		if err != nil {
			zap.L().Warn("cache unavailable, proceeding without it", zap.Error(err))
		} else {
			env.Cache = c
		}
	}

	cbCfg := resilience.FromCircuitConfig(cfg.Circuit.FailureThreshold, cfg.Circuit.ResetTimeoutSecs)
	cbCfg.OnStateChange = func(from, to resilience.CircuitState) {
		zap.L().Warn("circuit breaker state change", zap.String("from", from.String()), zap.String("to", to.String()))
	}

	if cfg.AdPlatform.BaseURL != "" {
		adClient := adplatform.NewClient(cfg.AdPlatform.BaseURL, cfg.AdPlatform.ClientID, cfg.AdPlatform.ClientSecret,
			adplatform.WithRateLimit(cfg.AdPlatform.RequestsPerSecond), adplatform.WithCircuitBreaker(cbCfg))
		env.AdPlatform = adClient
		env.Tokens = adauth.NewTokenSource(st, adplatform.NewRefresher(adClient))
	}

	if cfg.AICreative.BaseURL != "" {
		env.AICreative = aicreative.NewClient(cfg.AICreative.BaseURL, cfg.AICreative.Key, aicreative.WithCircuitBreaker(cbCfg))
	}

	if cfg.ObjectStore.BaseURL != "" {
		env.ObjectStore = objectstore.NewClient(cfg.ObjectStore.BaseURL, cfg.ObjectStore.Key, objectstore.WithCircuitBreaker(cbCfg))
	}

	if cfg.Anthropic.Key != "" {
		env.Prompts = creativeprompt.NewWriter(anthropic.NewClient(cfg.Anthropic.Key), cfg.Anthropic.Model)
	}

	return env, nil
}

// commerceFactory builds a tenant-scoped commerce client using the
// tenant's own shop hostname and access token.
func commerceFactory(tenant model.Tenant) commerce.Client {
	cbCfg := resilience.FromCircuitConfig(cfg.Circuit.FailureThreshold, cfg.Circuit.ResetTimeoutSecs)
	return commerce.NewClient(tenant.ShopHostname, tenant.AccessToken, cfg.Commerce.APIVersion,
		commerce.WithRateLimit(cfg.Commerce.RequestsPerSecond), commerce.WithCircuitBreaker(cbCfg))
}


package di

import (
	"context"
	"fmt"
	"time"

	"github.com/hyperterse/querygate/core/application/gateway"
	"github.com/hyperterse/querygate/core/application/services"
	"github.com/hyperterse/querygate/core/infrastructure/connectors"
	"github.com/hyperterse/querygate/core/infrastructure/logging"
	"github.com/hyperterse/querygate/core/infrastructure/translation"
	"github.com/hyperterse/querygate/core/infrastructure/transport/http/middleware"
	"github.com/hyperterse/querygate/core/parser"
)

// Container holds all dependencies
type Container struct {
	Config       *parser.Config
	Registry     *connectors.Registry
	Gateway      *gateway.Gateway
	Catalog      *parser.Catalog
	QueryService *services.QueryService
	// AskService is nil when no translator endpoint is configured
	AskService *services.AskService
	// RateLimiter is nil unless server.rate_limit is enabled
	RateLimiter *middleware.RedisRateLimiter
}

// NewContainer wires the gateway, catalog and services from cfg
func NewContainer(cfg *parser.Config) (*Container, error) {
	log := logging.New("di")

	registry := connectors.DefaultRegistry()
	gw := gateway.New(registry,
		gateway.WithConnectTimeout(cfg.Server.ConnectTimeout),
		gateway.WithExecuteTimeout(cfg.Server.ExecuteTimeout),
	)

	catalog, err := parser.NewCatalog(cfg)
	if err != nil {
		return nil, err
	}

	queries := services.NewQueryService(gw, catalog)

	c := &Container{
		Config:       cfg,
		Registry:     registry,
		Gateway:      gw,
		Catalog:      catalog,
		QueryService: queries,
	}

	if endpoint := cfg.Translator.Endpoint; endpoint != "" {
		opts := []translation.Option{}
		if cfg.Translator.APIKey != "" {
			opts = append(opts, translation.WithAPIKey(cfg.Translator.APIKey))
		}
		if cfg.Translator.Timeout > 0 {
			opts = append(opts, translation.WithTimeout(cfg.Translator.Timeout))
		}
		c.AskService = services.NewAskService(queries, translation.NewClient(endpoint, opts...))
		log.Debugf("Translator configured at %s", endpoint)
	}

	if rl := cfg.Server.RateLimit; rl.Enabled {
		limiter, err := middleware.NewRedisRateLimiterFromURL(rl.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("rate limiter: %w", err)
		}
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		if err := limiter.Ping(ctx); err != nil {
			// requests are still served; the limiter fails open
			log.Warnf("Redis unreachable at startup, rate limiting degraded: %v", err)
		}
		c.RateLimiter = limiter
	}

	log.Debugf("Container ready: %d data sources, engines %v", catalog.Len(), registry.Engines())
	return c, nil
}

// Close closes all resources
func (c *Container) Close() error {
	if c.RateLimiter != nil {
		return c.RateLimiter.Close()
	}
	return nil
}

package http

import (
	"context"

	"sfr_ops_backend/internal/events"
	"sfr_ops_backend/platform/config"
	"sfr_ops_backend/platform/logger"
	"sfr_ops_backend/platform/metrics"
)

// RouterConfig is the configuration the router reads.
type RouterConfig interface {
	config.HTTPConfig
	config.JWTConfig
}

// HealthChecker backs /api/health. *pgxpool.Pool satisfies it.
type HealthChecker interface {
	Ping(ctx context.Context) error
}

// App is what the composition root hands to the router. EventBus is shared
// with modules that subscribe at startup.
type App struct {
	Config   RouterConfig
	Logger   *logger.Logger
	Health   HealthChecker
	Metrics  *metrics.Registry
	EventBus events.Bus
	Modules  []Module
}

// Package sfr provides the servicing & fueling request bounded context module.
// This file wires the repository, lifecycle engine and HTTP handler together.
package sfr

import (
	"context"

	"sfr_ops_backend/internal/events"
	apphttp "sfr_ops_backend/internal/http"
	"sfr_ops_backend/internal/sfr/domain"
	"sfr_ops_backend/internal/sfr/handler"
	"sfr_ops_backend/internal/sfr/lifecycle"
	"sfr_ops_backend/internal/sfr/repository"
	"sfr_ops_backend/platform/apperr"
	"sfr_ops_backend/platform/config"
	"sfr_ops_backend/platform/logger"
	"sfr_ops_backend/platform/metrics"
	"sfr_ops_backend/platform/validator"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Module is the SFR bounded context module implementing http.Module.
type Module struct {
	handler *handler.Handler
	service *lifecycle.Service
	repo    *repository.Repository
	log     *logger.Logger
}

// NewModule creates the SFR module. Side-effect collaborators (outbox, status
// cache, timers) are wired afterwards through Service().
func NewModule(pool *pgxpool.Pool, val *validator.Validator, cfg config.LifecycleConfig, m *metrics.Registry, log *logger.Logger) *Module {
	rules := cfg.GetLifecycleRules()
	repo := repository.New(pool, rules.LockTimeout)

	orch := lifecycle.NewOrchestrator(repo, DomainRules(rules), m, log)
	svc := lifecycle.NewService(orch, repo, rules.NotificationCountdown, m, log)
	svc.SetActivityReader(repo)

	return &Module{
		handler: handler.New(svc, val),
		service: svc,
		repo:    repo,
		log:     log,
	}
}

// DomainRules maps the configured thresholds onto status derivation rules.
func DomainRules(r config.LifecycleRules) domain.Rules {
	return domain.Rules{
		RetrospectiveGrace: r.RetrospectiveGrace,
		DepartureGrace:     r.DepartureGrace,
		NASDLLocationType:  r.NASDLLocationType,
	}
}

// Name returns the module identifier.
func (m *Module) Name() string {
	return "sfr"
}

// Service returns the lifecycle service for external wiring.
func (m *Module) Service() *lifecycle.Service {
	return m.service
}

// Repository returns the SFR repository, used as the notification recipient resolver.
func (m *Module) Repository() *repository.Repository {
	return m.repo
}

// RegisterHandlers subscribes the module to status timer events.
func (m *Module) RegisterHandlers(bus events.Bus) {
	bus.Subscribe(events.SFRStatusTimerFired{}.EventName(), events.On(m.handleStatusTimer))
}

func (m *Module) handleStatusTimer(ctx context.Context, e events.SFRStatusTimerFired) error {
	return refreshOnTimer(ctx, m.service, m.log, e.RequestID)
}

type statusRefresher interface {
	RefreshStatus(ctx context.Context, requestID int64) (lifecycle.Result, error)
}

// refreshOnTimer re-derives the status of a request. A request deleted since
// the timer was scheduled is not an error.
func refreshOnTimer(ctx context.Context, svc statusRefresher, log *logger.Logger, requestID int64) error {
	res, err := svc.RefreshStatus(ctx, requestID)
	if apperr.Is(err, apperr.KindNotFound) {
		log.WithContext(ctx).Info("status timer for unknown request", "sfr_id", requestID)
		return nil
	}
	if err != nil {
		return err
	}
	if res.StatusChanged() {
		log.WithContext(ctx).Info("status changed on timer", "sfr_id", requestID,
			"from", res.Previous.String(), "to", res.Status.String())
	}
	return nil
}

// RegisterRoutes mounts SFR routes on the provided router context.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	// All SFR routes require authentication
	m.handler.RegisterRoutes(ctx.Protected.Group("/sfr"))
}

// Compile-time check that Module implements http.Module
var _ apphttp.Module = (*Module)(nil)

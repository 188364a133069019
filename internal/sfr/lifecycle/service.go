package lifecycle

import (
	"context"
	"slices"
	"time"

	"sfr_ops_backend/internal/events"
	"sfr_ops_backend/internal/sfr/domain"
	"sfr_ops_backend/internal/sfr/repository"
	"sfr_ops_backend/platform/logger"
	"sfr_ops_backend/platform/metrics"
)

// Outbox stores notifications for delayed, at-least-once delivery.
type Outbox interface {
	EnqueueNotification(ctx context.Context, evt events.SFRNotification, runAt time.Time) error
}

// StatusCache keeps the last derived status of a request. validUntil is the
// next instant the status may change with time; zero means never.
type StatusCache interface {
	Get(ctx context.Context, requestID int64, load func(context.Context) (domain.Status, time.Time, error)) (domain.Status, error)
	Set(ctx context.Context, requestID int64, status domain.Status, validUntil time.Time) error
	Invalidate(ctx context.Context, requestID int64) error
}

// TimerScheduler fires RefreshStatus at the ETA and ETD of a request.
// Scheduling an instant twice is a no-op.
type TimerScheduler interface {
	ScheduleStatusTimers(ctx context.Context, requestID int64, at []time.Time) error
	CancelStatusTimers(ctx context.Context, requestID int64, at []time.Time) error
}

// ActivityReader lists the activity log of a request, newest first.
type ActivityReader interface {
	ListActivity(ctx context.Context, requestID int64, limit int) ([]repository.ActivityLogEntry, error)
}

// Service runs orchestrator operations and performs the post-commit side
// effects: queueing notifications, refreshing the status cache and timers.
// Side-effect failures are logged and counted, never returned.
type Service struct {
	orch      *Orchestrator
	store     repository.Store
	outbox    Outbox
	cache     StatusCache
	timers    TimerScheduler
	activity  ActivityReader
	countdown time.Duration
	metrics   *metrics.Registry
	log       *logger.Logger
}

// NewService creates a service. countdown delays every notification so the
// worker never reads uncommitted data.
func NewService(orch *Orchestrator, store repository.Store, countdown time.Duration, m *metrics.Registry, log *logger.Logger) *Service {
	return &Service{
		orch:      orch,
		store:     store,
		countdown: countdown,
		metrics:   m,
		log:       log,
	}
}

// SetOutbox wires the notification outbox.
func (s *Service) SetOutbox(o Outbox) { s.outbox = o }

// SetStatusCache wires the status cache.
func (s *Service) SetStatusCache(c StatusCache) { s.cache = c }

// SetTimerScheduler wires the ETA/ETD timers.
func (s *Service) SetTimerScheduler(t TimerScheduler) { s.timers = t }

// SetActivityReader wires the activity log reader.
func (s *Service) SetActivityReader(r ActivityReader) { s.activity = r }

func (s *Service) Create(ctx context.Context, in CreateInput, actor domain.Actor, opts MutationOptions) (Result, error) {
	return s.done(ctx)(s.orch.Create(ctx, in, actor, opts))
}

func (s *Service) ApplyMutation(ctx context.Context, in MutationInput, actor domain.Actor, opts MutationOptions) (Result, error) {
	return s.done(ctx)(s.orch.ApplyMutation(ctx, in, actor, opts))
}

func (s *Service) Cancel(ctx context.Context, requestID int64, actor domain.Actor, opts MutationOptions) (Result, error) {
	return s.done(ctx)(s.orch.Cancel(ctx, requestID, actor, opts))
}

func (s *Service) ConfirmHandling(ctx context.Context, requestID int64, actor domain.Actor, opts MutationOptions) (Result, error) {
	return s.done(ctx)(s.orch.ConfirmHandling(ctx, requestID, actor, opts))
}

func (s *Service) SendReconfirmation(ctx context.Context, requestID int64, actor domain.Actor, automatic bool, opts MutationOptions) (Result, error) {
	return s.done(ctx)(s.orch.SendReconfirmation(ctx, requestID, actor, automatic, opts))
}

func (s *Service) ConfirmDepartureUpdate(ctx context.Context, requestID int64, actor domain.Actor, opts MutationOptions) (Result, error) {
	return s.done(ctx)(s.orch.ConfirmDepartureUpdate(ctx, requestID, actor, opts))
}

func (s *Service) UpdateFuelBooking(ctx context.Context, requestID int64, upd FuelUpdate, actor domain.Actor, opts MutationOptions) (Result, error) {
	return s.done(ctx)(s.orch.UpdateFuelBooking(ctx, requestID, upd, actor, opts))
}

func (s *Service) UpdateServiceConfirmation(ctx context.Context, requestID, bookingID int64, state domain.ServiceState, actor domain.Actor, opts MutationOptions) (Result, error) {
	return s.done(ctx)(s.orch.UpdateServiceConfirmation(ctx, requestID, bookingID, state, actor, opts))
}

func (s *Service) SetAOG(ctx context.Context, requestID int64, on bool, actor domain.Actor, opts MutationOptions) (Result, error) {
	return s.done(ctx)(s.orch.SetAOG(ctx, requestID, on, actor, opts))
}

func (s *Service) SetUnableToSupport(ctx context.Context, requestID int64, on bool, actor domain.Actor, opts MutationOptions) (Result, error) {
	return s.done(ctx)(s.orch.SetUnableToSupport(ctx, requestID, on, actor, opts))
}

// RefreshStatus drops the cached status and re-derives it. Timers call it at ETA and ETD.
func (s *Service) RefreshStatus(ctx context.Context, requestID int64) (Result, error) {
	if s.cache != nil {
		if err := s.cache.Invalidate(ctx, requestID); err != nil {
			s.log.WithContext(ctx).Warn("status cache invalidate failed", "sfr_id", requestID, "error", err)
		}
	}
	return s.done(ctx)(s.orch.RefreshStatus(ctx, requestID))
}

// Get loads a request for display.
func (s *Service) Get(ctx context.Context, requestID int64) (*domain.Request, error) {
	return s.store.GetRequest(ctx, requestID)
}

// Status returns the current derived status, served from the cache when possible.
func (s *Service) Status(ctx context.Context, requestID int64) (domain.Status, error) {
	load := func(ctx context.Context) (domain.Status, time.Time, error) {
		req, err := s.store.GetRequest(ctx, requestID)
		if err != nil {
			return domain.StatusError, time.Time{}, err
		}
		return domain.DeriveStatus(req, s.orch.now(), s.orch.rules), s.validUntil(req), nil
	}
	if s.cache == nil {
		status, _, err := load(ctx)
		return status, err
	}
	return s.cache.Get(ctx, requestID, load)
}

// Activity lists the activity log of a request.
func (s *Service) Activity(ctx context.Context, requestID int64, limit int) ([]repository.ActivityLogEntry, error) {
	if s.activity == nil {
		return nil, nil
	}
	if _, err := s.store.GetRequest(ctx, requestID); err != nil {
		return nil, err
	}
	return s.activity.ListActivity(ctx, requestID, limit)
}

// done returns a continuation that runs the post-commit side effects of a
// successful result and passes the result through.
func (s *Service) done(ctx context.Context) func(Result, error) (Result, error) {
	return func(res Result, err error) (Result, error) {
		if err != nil {
			return res, err
		}
		s.publish(ctx, res.Events)
		s.cacheStatus(ctx, res)
		s.scheduleTimers(ctx, res.Request, res.PreviousTransitions)
		return res, nil
	}
}

func (s *Service) publish(ctx context.Context, evts []events.SFRNotification) {
	if s.outbox == nil || len(evts) == 0 {
		return
	}
	runAt := s.orch.now().Add(s.countdown)
	for _, evt := range evts {
		err := s.outbox.EnqueueNotification(ctx, evt, runAt)
		s.metrics.ObserveEnqueue(string(evt.Kind), err)
		if err != nil {
			s.log.WithContext(ctx).NotificationEnqueueFailed(string(evt.Kind), evt.RequestID, err)
		}
	}
}

func (s *Service) cacheStatus(ctx context.Context, res Result) {
	if s.cache == nil || res.Request == nil {
		return
	}
	if err := s.cache.Set(ctx, res.Request.ID, res.Status, s.validUntil(res.Request)); err != nil {
		s.log.WithContext(ctx).Warn("status cache update failed", "sfr_id", res.Request.ID, "error", err)
	}
}

// validUntil is the earliest upcoming status transition of req.
func (s *Service) validUntil(req *domain.Request) time.Time {
	next := domain.NextTransitions(req, s.orch.now(), s.orch.rules)
	if len(next) == 0 {
		return time.Time{}
	}
	return slices.MinFunc(next, time.Time.Compare)
}

// scheduleTimers cancels the timers whose instant is no longer a transition of
// req before scheduling the current ones. A cancelled request keeps none.
func (s *Service) scheduleTimers(ctx context.Context, req *domain.Request, previous []time.Time) {
	if s.timers == nil || req == nil {
		return
	}
	log := s.log.WithContext(ctx)
	next := domain.NextTransitions(req, s.orch.now(), s.orch.rules)
	if req.Cancelled {
		if err := s.timers.CancelStatusTimers(ctx, req.ID, mergeInstants(previous, next)); err != nil {
			log.Warn("status timer cancel failed", "sfr_id", req.ID, "error", err)
		}
		return
	}
	if stale := droppedInstants(previous, next); len(stale) > 0 {
		if err := s.timers.CancelStatusTimers(ctx, req.ID, stale); err != nil {
			log.Warn("status timer cancel failed", "sfr_id", req.ID, "error", err)
		}
	}
	if err := s.timers.ScheduleStatusTimers(ctx, req.ID, next); err != nil {
		log.Warn("status timer scheduling failed", "sfr_id", req.ID, "error", err)
	}
}

// droppedInstants returns the instants of previous missing from next.
func droppedInstants(previous, next []time.Time) []time.Time {
	var out []time.Time
	for _, p := range previous {
		if !slices.ContainsFunc(next, p.Equal) {
			out = append(out, p)
		}
	}
	return out
}

func mergeInstants(a, b []time.Time) []time.Time {
	return append(slices.Clone(a), droppedInstants(b, a)...)
}

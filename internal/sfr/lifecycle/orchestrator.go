// Package lifecycle sequences every change to a servicing & fueling request:
// lock, apply, coordinate amendment sessions, persist, re-derive status, log
// activity and build the notification events for the caller to hand off.
package lifecycle

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"sfr_ops_backend/internal/events"
	"sfr_ops_backend/internal/sfr/domain"
	"sfr_ops_backend/internal/sfr/repository"
	"sfr_ops_backend/platform/apperr"
	"sfr_ops_backend/platform/logger"
	"sfr_ops_backend/platform/metrics"
)

// Orchestrator runs lifecycle operations. It is safe for concurrent use; the
// per-request row lock serialises work on one request.
type Orchestrator struct {
	store   repository.Store
	rules   domain.Rules
	metrics *metrics.Registry
	log     *logger.Logger
	now     func() time.Time
}

// NewOrchestrator creates an orchestrator. A nil metrics registry disables metrics.
func NewOrchestrator(store repository.Store, rules domain.Rules, m *metrics.Registry, log *logger.Logger) *Orchestrator {
	return &Orchestrator{
		store:   store,
		rules:   rules,
		metrics: m,
		log:     log,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// WithClock replaces the wall clock. Tests use it to pin "now".
func (o *Orchestrator) WithClock(now func() time.Time) *Orchestrator {
	o.now = now
	return o
}

// Rules returns the thresholds the orchestrator derives status with.
func (o *Orchestrator) Rules() domain.Rules { return o.rules }

// step is what an operation contributes on top of the shared sequence.
type step struct {
	// coordinate runs the amendment session coordinator on the diff.
	coordinate bool
	// readOnly skips persisting the aggregate; only status may change.
	readOnly bool
	activity []domain.ActivityEntry
	events   []events.SFRNotification
}

type stepFunc func(ctx context.Context, tx repository.Tx, req *domain.Request, now time.Time) (step, error)

// mutate is the shared sequence of every operation on an existing request.
func (o *Orchestrator) mutate(ctx context.Context, op string, requestID int64, actor domain.Actor, opts MutationOptions, fn stepFunc) (Result, error) {
	started := time.Now()
	defer o.metrics.ObserveMutation(op, started)

	var res Result
	err := o.store.WithRequestLock(ctx, requestID, func(tx repository.Tx) error {
		now := o.now()
		req, err := tx.LoadRequest(ctx, requestID)
		if err != nil {
			return err
		}
		previous := req.Status
		before := domain.CaptureSnapshot(req)
		timers := domain.NextTransitions(req, now, o.rules)

		st, err := fn(ctx, tx, req, now)
		if err != nil {
			return err
		}

		changes := domain.Diff(before, domain.CaptureSnapshot(req))
		outcome := domain.SessionUntouched
		if st.coordinate {
			outcome = domain.CoordinateAmendment(req, before, changes, actor.ID, now)
		}

		var dispatched *events.SFRNotification
		if opts.AutoReconfirm {
			if s := req.OpenSession(); s != nil && req.HandlingAgent != nil {
				evt := reconfirmationEvent(req, s, actor, now)
				dispatched = &evt
				s.Close(now)
				st.activity = append(st.activity, domain.NewActivity(req.ID, actor, now,
					fmt.Sprintf("Amendment sent to %s for re-confirmation (automatically)", req.HandlingAgent.Name)))
			}
		}

		fuelReset := false
		if !opts.RetainFuelOrder && changes.FuelRelevant(req.FuelRequired) {
			fuelReset = resetFuelOrder(req)
		}
		if opts.MarkReviewed {
			req.New = false
		}

		persisted := req
		if !st.readOnly {
			if err := domain.ValidateRequest(req); err != nil {
				return err
			}
			req.UpdatedAt = now
			if err := tx.SaveRequest(ctx, req); err != nil {
				return fmt.Errorf("save request: %w", err)
			}
			if persisted, err = tx.LoadRequest(ctx, requestID); err != nil {
				return fmt.Errorf("reload request: %w", err)
			}
		}

		status := domain.DeriveStatus(persisted, now, o.rules)
		if status != persisted.Status {
			if err := tx.UpdateStatus(ctx, requestID, status); err != nil {
				return fmt.Errorf("update status: %w", err)
			}
			persisted.Status = status
		}
		changes = domain.Diff(before, domain.CaptureSnapshot(persisted))

		o.checkInvariants(ctx, tx, persisted)

		entries := domain.ActivityFromChanges(requestID, changes, actor, now)
		entries = append(entries, st.activity...)
		if status != previous {
			entries = append(entries, domain.NewFieldActivity(requestID, actor, now, "status", previous.String(), status.String()))
		}
		if len(entries) > 0 {
			if err := tx.AppendActivity(ctx, entries); err != nil {
				return fmt.Errorf("append activity: %w", err)
			}
		}

		res = Result{
			Request:             persisted,
			Previous:            previous,
			Status:              status,
			Changes:             changes,
			Session:             outcome,
			PreviousTransitions: timers,
		}
		if !opts.SuppressNotifications {
			res.Events = o.buildEvents(persisted, st, changes, outcome, dispatched, fuelReset, previous, actor, now)
		}
		return nil
	})
	if err != nil {
		if apperr.Is(err, apperr.KindConflict) {
			o.metrics.ObserveLockConflict()
		}
		o.log.WithContext(ctx).Warn("sfr_mutation_failed",
			slog.String("operation", op),
			slog.Int64("sfr_id", requestID),
			slog.String("error", err.Error()),
		)
		return Result{}, err
	}

	o.logResult(ctx, op, actor, res)
	return res, nil
}

// buildEvents collects the notifications of one mutation in dispatch order.
func (o *Orchestrator) buildEvents(req *domain.Request, st step, changes domain.ChangeSet, outcome domain.SessionOutcome,
	dispatched *events.SFRNotification, fuelReset bool, previous domain.Status, actor domain.Actor, now time.Time) []events.SFRNotification {
	var out []events.SFRNotification
	if st.coordinate && !changes.IsEmpty() {
		out = append(out, amendmentEvent(req, changes, actor, now, events.AudienceStaff, events.AudienceClient))
	}
	if fuelReset {
		out = append(out, amendmentEvent(req, changes, actor, now, events.AudienceFuelTeam))
	}
	if outcome == domain.SessionOpened && dispatched == nil {
		if s := req.OpenSession(); s != nil {
			out = append(out, reconfirmationEvent(req, s, actor, now, events.AudienceStaff))
		}
	}
	if dispatched != nil {
		out = append(out, *dispatched)
	}
	out = append(out, st.events...)
	if req.Status != previous {
		out = append(out, statusChangedEvent(req, previous, actor, now))
	}
	return out
}

// resetFuelOrder drops the acted-upon fuel booking so the fuel team orders again.
func resetFuelOrder(req *domain.Request) bool {
	if req.Fuel == nil {
		return false
	}
	if req.FuelRequired == domain.FuelNone {
		req.Fuel = nil
		return true
	}
	req.Fuel = &domain.FuelBooking{}
	return true
}

// checkInvariants reports latent bugs. It never fails the mutation.
func (o *Orchestrator) checkInvariants(ctx context.Context, tx repository.Tx, req *domain.Request) {
	log := o.log.WithContext(ctx)
	if req.Status == domain.StatusError {
		log.InvariantViolation("status_error", req.ID, "no status rule matched")
		o.metrics.ObserveInvariantViolation("status_error")
	}
	n, err := tx.CountOpenSessions(ctx, req.ID)
	if err != nil {
		log.DatabaseError("count_open_sessions", err)
		return
	}
	if n > 1 {
		log.InvariantViolation("open_sessions", req.ID, fmt.Sprintf("%d open amendment sessions", n))
		o.metrics.ObserveInvariantViolation("open_sessions")
	}
}

func (o *Orchestrator) logResult(ctx context.Context, op string, actor domain.Actor, res Result) {
	fields := res.Changes.SortedFields()
	names := make([]string, len(fields))
	for i, f := range fields {
		names[i] = string(f)
	}
	attrs := []any{
		slog.String("operation", op),
		slog.Int64("sfr_id", res.Request.ID),
		slog.String("status", res.Status.String()),
		slog.Any("changed_fields", names),
		slog.Int("changed_services", len(res.Changes.Services)),
		slog.Int("events", len(res.Events)),
	}
	if actor.IsSystem() {
		attrs = append(attrs, slog.String("actor", actor.Name))
	} else {
		attrs = append(attrs, slog.Int64("actor_id", actor.ID))
	}
	o.log.WithContext(ctx).Info("sfr_mutation", attrs...)
	if res.StatusChanged() {
		o.metrics.ObserveTransition(res.Previous.String(), res.Status.String())
	}
}

// Create persists a new request. No amendment session logic runs and only the
// creation notification fires.
func (o *Orchestrator) Create(ctx context.Context, in CreateInput, actor domain.Actor, opts MutationOptions) (Result, error) {
	started := time.Now()
	defer o.metrics.ObserveMutation("create", started)

	var res Result
	err := o.store.WithTx(ctx, func(tx repository.Tx) error {
		now := o.now()
		req, err := o.buildRequest(ctx, tx, in, actor, now)
		if err != nil {
			return err
		}
		if err := domain.ValidateRequest(req); err != nil {
			return err
		}

		if err := tx.LockOrganisation(ctx, req.Organisation.ID); err != nil {
			return fmt.Errorf("lock organisation: %w", err)
		}
		dup, err := tx.HasOverlapping(ctx, req)
		if err != nil {
			return fmt.Errorf("check duplicates: %w", err)
		}
		if dup {
			return errDuplicate()
		}

		req.Status = domain.DeriveStatus(req, now, o.rules)
		id, err := tx.InsertRequest(ctx, req)
		if err != nil {
			return fmt.Errorf("insert request: %w", err)
		}
		req.ID = id

		o.checkInvariants(ctx, tx, req)
		if err := tx.AppendActivity(ctx, []domain.ActivityEntry{
			domain.NewActivity(id, actor, now, "Request created"),
		}); err != nil {
			return fmt.Errorf("append activity: %w", err)
		}

		res = Result{Request: req, Previous: req.Status, Status: req.Status}
		if !opts.SuppressNotifications {
			res.Events = []events.SFRNotification{createdEvent(req, actor, now)}
		}
		return nil
	})
	if err != nil {
		if apperr.Is(err, apperr.KindConflict) {
			o.metrics.ObserveLockConflict()
		}
		return Result{}, err
	}
	o.logResult(ctx, "create", actor, res)
	return res, nil
}

func (o *Orchestrator) buildRequest(ctx context.Context, tx repository.Tx, in CreateInput, actor domain.Actor, now time.Time) (*domain.Request, error) {
	org, err := tx.LookupOrganisation(ctx, in.OrganisationID)
	if err != nil {
		return nil, err
	}
	loc, err := tx.LookupLocation(ctx, in.LocationCode)
	if err != nil {
		return nil, err
	}

	req := &domain.Request{
		Callsign:     in.Callsign,
		TailNumber:   in.TailNumber,
		AircraftType: in.AircraftType,
		Organisation: org,
		Location:     loc,
		FuelRequired: in.FuelRequired,
		FuelQuantity: in.FuelQuantity,
		FuelUnit:     in.FuelUnit,
		New:          true,
		CreatedAt:    now,
		CreatedBy:    actor.ID,
		UpdatedAt:    now,
		Arrival:      in.Arrival,
		Departure:    in.Departure,
	}
	if req.FuelRequired == "" {
		req.FuelRequired = domain.FuelNone
	}
	req.Arrival.Direction = domain.DirectionArrival
	req.Departure.Direction = domain.DirectionDeparture
	req.Arrival.ScheduledAt = req.Arrival.ScheduledAt.UTC()
	req.Departure.ScheduledAt = req.Departure.ScheduledAt.UTC()

	if in.HandlingAgentID != nil {
		agent, err := tx.LookupHandlingAgent(ctx, *in.HandlingAgentID)
		if err != nil {
			return nil, err
		}
		req.HandlingAgent = &agent
	}

	ops := make([]domain.ServiceOp, len(in.Services))
	for i, op := range in.Services {
		if op.Action != "" && op.Action != domain.ServiceAdd {
			return nil, apperr.Validation("new requests can only add services")
		}
		op.Action = domain.ServiceAdd
		if op.ServiceName, err = tx.LookupService(ctx, op.ServiceID); err != nil {
			return nil, err
		}
		ops[i] = op
	}
	if err := (domain.Mutation{Services: ops}).Apply(req); err != nil {
		return nil, err
	}
	return req, nil
}

// ApplyMutation changes fields, movements and services of an existing request.
func (o *Orchestrator) ApplyMutation(ctx context.Context, in MutationInput, actor domain.Actor, opts MutationOptions) (Result, error) {
	if in.IsEmpty() && !opts.MarkReviewed {
		return Result{}, apperr.Validation("nothing to change")
	}
	return o.mutate(ctx, "apply_mutation", in.RequestID, actor, opts, func(ctx context.Context, tx repository.Tx, req *domain.Request, now time.Time) (step, error) {
		if req.Cancelled {
			return step{}, apperr.Conflict("cancelled requests cannot be changed")
		}
		m, err := o.resolveMutation(ctx, tx, in)
		if err != nil {
			return step{}, err
		}
		if err := m.Apply(req); err != nil {
			return step{}, err
		}
		if in.identityChange() {
			if err := tx.LockOrganisation(ctx, req.Organisation.ID); err != nil {
				return step{}, fmt.Errorf("lock organisation: %w", err)
			}
			dup, err := tx.HasOverlapping(ctx, req)
			if err != nil {
				return step{}, fmt.Errorf("check duplicates: %w", err)
			}
			if dup {
				return step{}, errDuplicate()
			}
		}
		return step{coordinate: !opts.IsInitialCreate}, nil
	})
}

// resolveMutation fills in the display labels of referenced rows.
func (o *Orchestrator) resolveMutation(ctx context.Context, tx repository.Tx, in MutationInput) (domain.Mutation, error) {
	m := domain.Mutation{
		Fields:    in.Fields,
		Arrival:   in.Arrival,
		Departure: in.Departure,
		Services:  make([]domain.ServiceOp, len(in.Services)),
	}
	if agent := in.Fields.HandlingAgent; agent != nil {
		resolved, err := tx.LookupHandlingAgent(ctx, agent.ID)
		if err != nil {
			return domain.Mutation{}, err
		}
		m.Fields.HandlingAgent = &resolved
	}
	for i, op := range in.Services {
		if op.ServiceName == "" {
			name, err := tx.LookupService(ctx, op.ServiceID)
			if err != nil {
				return domain.Mutation{}, err
			}
			op.ServiceName = name
		}
		m.Services[i] = op
	}
	return m, nil
}

// identityChange reports whether the duplicate-request rule must be re-checked.
func (in MutationInput) identityChange() bool {
	return in.Fields.Callsign != nil || in.Fields.TailNumber != nil ||
		(in.Arrival != nil && in.Arrival.ScheduledAt != nil) ||
		(in.Departure != nil && in.Departure.ScheduledAt != nil)
}

// RefreshStatus re-derives the status after an ETA/ETD timer fired.
func (o *Orchestrator) RefreshStatus(ctx context.Context, requestID int64) (Result, error) {
	return o.mutate(ctx, "refresh_status", requestID, domain.SystemActor("status-timer"), MutationOptions{},
		func(context.Context, repository.Tx, *domain.Request, time.Time) (step, error) {
			return step{readOnly: true}, nil
		})
}

func errDuplicate() error {
	return apperr.Validation("a request for this aircraft already covers these dates").
		WithDetails(map[string]string{"request": "duplicate"})
}

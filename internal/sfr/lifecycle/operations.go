package lifecycle

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"sfr_ops_backend/internal/events"
	"sfr_ops_backend/internal/sfr/domain"
	"sfr_ops_backend/internal/sfr/repository"
	"sfr_ops_backend/platform/apperr"
)

// Cancel cancels a request and closes any open amendment session.
func (o *Orchestrator) Cancel(ctx context.Context, requestID int64, actor domain.Actor, opts MutationOptions) (Result, error) {
	return o.mutate(ctx, "cancel", requestID, actor, opts, func(_ context.Context, _ repository.Tx, req *domain.Request, now time.Time) (step, error) {
		if req.Cancelled {
			return step{}, apperr.Conflict("request is already cancelled")
		}
		if err := domain.CheckCancelable(req, now, o.rules, opts.Privileged); err != nil {
			return step{}, err
		}
		evt := cancelledEvent(req, actor, now)
		req.Cancelled = true
		req.Session.Close(now)
		return step{
			activity: []domain.ActivityEntry{domain.NewActivity(req.ID, actor, now, "Request cancelled")},
			events:   []events.SFRNotification{evt},
		}, nil
	})
}

// ConfirmHandling records the ground handler's (re-)confirmation.
func (o *Orchestrator) ConfirmHandling(ctx context.Context, requestID int64, actor domain.Actor, opts MutationOptions) (Result, error) {
	return o.mutate(ctx, "confirm_handling", requestID, actor, opts, func(_ context.Context, _ repository.Tx, req *domain.Request, now time.Time) (step, error) {
		if req.Cancelled {
			return step{}, apperr.Conflict("cancelled requests cannot be confirmed")
		}
		if !domain.HandlingRequired(req, o.rules) {
			return step{}, apperr.Validation("ground handling is not required at this location")
		}
		if req.HandlingAgent == nil {
			return step{}, apperr.Validation("assign a handling agent before confirming handling")
		}
		req.HandlingConfirmed = true
		req.Amended = false
		req.AmendedCallsign = false
		req.New = false
		req.AwaitingDepartureUpdate = false
		req.Session.Close(now)
		return step{
			activity: []domain.ActivityEntry{domain.NewActivity(req.ID, actor, now,
				fmt.Sprintf("Ground handling confirmed by %s", req.HandlingAgent.Name))},
		}, nil
	})
}

// SendReconfirmation dispatches the open amendment session to the ground handler.
func (o *Orchestrator) SendReconfirmation(ctx context.Context, requestID int64, actor domain.Actor, automatic bool, opts MutationOptions) (Result, error) {
	return o.mutate(ctx, "send_reconfirmation", requestID, actor, opts, func(_ context.Context, _ repository.Tx, req *domain.Request, now time.Time) (step, error) {
		s := req.OpenSession()
		if s == nil {
			return step{}, apperr.Conflict("no amendment is waiting for re-confirmation")
		}
		if req.HandlingAgent == nil {
			return step{}, apperr.Validation("request has no handling agent to send the amendment to")
		}
		evt := reconfirmationEvent(req, s, actor, now)
		s.Close(now)

		how := "manually"
		if automatic {
			how = "automatically"
		}
		return step{
			activity: []domain.ActivityEntry{domain.NewActivity(req.ID, actor, now,
				fmt.Sprintf("Amendment sent to %s for re-confirmation (%s)", req.HandlingAgent.Name, how))},
			events: []events.SFRNotification{evt},
		}, nil
	})
}

// ConfirmDepartureUpdate clears the awaiting-departure-update flag once the
// handler acknowledged a post-arrival departure change.
func (o *Orchestrator) ConfirmDepartureUpdate(ctx context.Context, requestID int64, actor domain.Actor, opts MutationOptions) (Result, error) {
	return o.mutate(ctx, "confirm_departure_update", requestID, actor, opts, func(_ context.Context, _ repository.Tx, req *domain.Request, now time.Time) (step, error) {
		if !req.AwaitingDepartureUpdate {
			return step{}, apperr.Conflict("no departure update is awaiting confirmation")
		}
		req.AwaitingDepartureUpdate = false
		if s := req.OpenSession(); s != nil && s.DepartureOnly {
			s.Close(now)
		}
		return step{
			activity: []domain.ActivityEntry{domain.NewActivity(req.ID, actor, now, "Departure update confirmed by ground handler")},
		}, nil
	})
}

// UpdateFuelBooking creates or changes the fuel booking.
func (o *Orchestrator) UpdateFuelBooking(ctx context.Context, requestID int64, upd FuelUpdate, actor domain.Actor, opts MutationOptions) (Result, error) {
	return o.mutate(ctx, "update_fuel_booking", requestID, actor, opts, func(_ context.Context, _ repository.Tx, req *domain.Request, now time.Time) (step, error) {
		if req.Cancelled {
			return step{}, apperr.Conflict("cancelled requests cannot be changed")
		}
		if req.FuelRequired == domain.FuelNone {
			return step{}, apperr.Validation("request has no fuel requirement")
		}
		fb := domain.FuelBooking{}
		if req.Fuel != nil {
			fb = *req.Fuel
		}

		var activity []domain.ActivityEntry
		set := func(field string, dst *bool, v *bool) {
			if v == nil || *dst == *v {
				return
			}
			activity = append(activity, domain.NewFieldActivity(req.ID, actor, now, field,
				strconv.FormatBool(*dst), strconv.FormatBool(*v)))
			*dst = *v
		}
		set("fuel.confirmed", &fb.Confirmed, upd.Confirmed)
		set("fuel.dla_contracted", &fb.DLAContracted, upd.DLAContracted)
		set("fuel.release_attached", &fb.HasReleaseFile, upd.HasReleaseFile)

		fb.UpdatedAt = now
		req.Fuel = &fb
		return step{activity: activity}, nil
	})
}

// UpdateServiceConfirmation moves one service booking to a new confirmation state.
func (o *Orchestrator) UpdateServiceConfirmation(ctx context.Context, requestID, bookingID int64, state domain.ServiceState, actor domain.Actor, opts MutationOptions) (Result, error) {
	if !state.Valid() {
		return Result{}, apperr.Validation("unknown service state " + string(state))
	}
	return o.mutate(ctx, "update_service_confirmation", requestID, actor, opts, func(_ context.Context, _ repository.Tx, req *domain.Request, now time.Time) (step, error) {
		if req.Cancelled {
			return step{}, apperr.Conflict("cancelled requests cannot be changed")
		}
		i := req.FindServiceBooking(bookingID)
		if i < 0 {
			return step{}, apperr.NotFound("service booking not found")
		}
		booking := &req.Services[i]
		if booking.State == state {
			return step{}, nil
		}
		field := fmt.Sprintf("service.%s.%s", strings.ToLower(string(booking.Direction)), booking.ServiceName)
		entry := domain.NewFieldActivity(req.ID, actor, now, field, string(booking.State), string(state))
		booking.State = state
		return step{activity: []domain.ActivityEntry{entry}}, nil
	})
}

// SetAOG marks or clears the aircraft-on-ground flag.
func (o *Orchestrator) SetAOG(ctx context.Context, requestID int64, on bool, actor domain.Actor, opts MutationOptions) (Result, error) {
	return o.mutate(ctx, "set_aog", requestID, actor, opts, func(_ context.Context, _ repository.Tx, req *domain.Request, now time.Time) (step, error) {
		if err := domain.CheckAOGToggle(req, now, o.rules); err != nil {
			return step{}, err
		}
		return toggle(req, actor, now, "aog", &req.AOG, on), nil
	})
}

// SetUnableToSupport marks or clears the unable-to-support flag.
func (o *Orchestrator) SetUnableToSupport(ctx context.Context, requestID int64, on bool, actor domain.Actor, opts MutationOptions) (Result, error) {
	return o.mutate(ctx, "set_unable_to_support", requestID, actor, opts, func(_ context.Context, _ repository.Tx, req *domain.Request, now time.Time) (step, error) {
		if req.Cancelled {
			return step{}, apperr.Conflict("cancelled requests cannot be changed")
		}
		return toggle(req, actor, now, "unable_to_support", &req.UnableToSupport, on), nil
	})
}

func toggle(req *domain.Request, actor domain.Actor, now time.Time, field string, flag *bool, on bool) step {
	if *flag == on {
		return step{}
	}
	entry := domain.NewFieldActivity(req.ID, actor, now, field, strconv.FormatBool(*flag), strconv.FormatBool(on))
	*flag = on
	return step{activity: []domain.ActivityEntry{entry}}
}

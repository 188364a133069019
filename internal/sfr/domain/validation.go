package domain

import (
	"strings"
	"time"

	"sfr_ops_backend/platform/apperr"
)

// ValidateMovements enforces the ordering of the two legs. Departure must be
// strictly after arrival.
func ValidateMovements(arrival, departure Movement) error {
	if arrival.ScheduledAt.IsZero() || departure.ScheduledAt.IsZero() {
		return apperr.Validation("arrival and departure times are required")
	}
	if departure.ScheduledAt.Before(arrival.ScheduledAt) {
		return apperr.Validation("departure is earlier than arrival").
			WithDetails(map[string]string{"departure": "before_arrival"})
	}
	if departure.ScheduledAt.Equal(arrival.ScheduledAt) {
		return apperr.Validation("departure must be after arrival").
			WithDetails(map[string]string{"departure": "equals_arrival"})
	}
	for _, m := range []Movement{arrival, departure} {
		if m.CrewCount < 0 || m.PassengerCount < 0 {
			return apperr.Validation("crew and passenger counts must not be negative")
		}
		if !m.HasPassengers && m.PassengerCount > 0 {
			return apperr.Validation("passenger count given for a movement without passengers")
		}
	}
	return nil
}

// ValidateServiceDetail enforces free-text vs quantity exclusivity.
func ValidateServiceDetail(d ServiceDetail) error {
	if strings.TrimSpace(d.FreeText) != "" && d.Quantity != nil {
		return apperr.Validation("service detail takes either free text or a quantity, not both")
	}
	if d.Quantity != nil && *d.Quantity <= 0 {
		return apperr.Validation("service quantity must be positive")
	}
	if d.Quantity == nil && d.QuantityUnit != "" {
		return apperr.Validation("service quantity unit given without a quantity")
	}
	return nil
}

// ValidateFuel checks the fuel requirement block of a request.
func ValidateFuel(r *Request) error {
	if !r.FuelRequired.Valid() {
		return apperr.Validation("unknown fuel requirement")
	}
	if r.FuelRequired == FuelNone {
		if r.FuelQuantity != nil {
			return apperr.Validation("fuel quantity given without a fuel requirement")
		}
		return nil
	}
	if r.FuelQuantity != nil && *r.FuelQuantity <= 0 {
		return apperr.Validation("fuel quantity must be positive")
	}
	if r.FuelQuantity != nil && r.FuelUnit == "" {
		return apperr.Validation("fuel unit is required with a fuel quantity")
	}
	return nil
}

// ValidateRequest checks the whole aggregate before it is persisted.
func ValidateRequest(r *Request) error {
	if strings.TrimSpace(r.Callsign) == "" {
		return apperr.Validation("callsign is required")
	}
	if r.Organisation.ID == 0 {
		return apperr.Validation("organisation is required")
	}
	if err := ValidateMovements(r.Arrival, r.Departure); err != nil {
		return err
	}
	if err := ValidateFuel(r); err != nil {
		return err
	}
	for _, s := range r.Services {
		if err := ValidateServiceDetail(s.Detail); err != nil {
			return err
		}
	}
	return nil
}

// Overlaps reports whether two requests cover the same aircraft in an
// overlapping arrival/departure window. It is the duplicate-request rule.
func Overlaps(a, b *Request) bool {
	if a.Organisation.ID != b.Organisation.ID {
		return false
	}
	if !strings.EqualFold(a.Callsign, b.Callsign) || !strings.EqualFold(a.TailNumber, b.TailNumber) {
		return false
	}
	return a.Arrival.ScheduledAt.Before(b.Departure.ScheduledAt) &&
		b.Arrival.ScheduledAt.Before(a.Departure.ScheduledAt)
}

var cancelableStatuses = map[Status]bool{
	StatusNew:                true,
	StatusInProcess:          true,
	StatusConfirmed:          true,
	StatusTailNumberTBC:      true,
	StatusServiceUnavailable: true,
	StatusAmended:            true,
	StatusAmendedCallsign:    true,
	StatusUnableToSupport:    true,
}

// CheckCancelable returns a conflict error when r may not be cancelled now.
// A completed request stays cancelable for privileged callers during the
// departure grace window.
func CheckCancelable(r *Request, now time.Time, rules Rules, privileged bool) error {
	status := DeriveStatus(r, now, rules)
	if cancelableStatuses[status] {
		return nil
	}
	if status == StatusCompleted && privileged && DepartureInGrace(r, now, rules) {
		return nil
	}
	return apperr.Conflict("request cannot be cancelled in status " + status.String()).
		WithDetails(map[string]string{"status": status.String()})
}

// CheckAOGToggle returns a conflict error once the departure grace window is over.
func CheckAOGToggle(r *Request, now time.Time, rules Rules) error {
	if r.Cancelled {
		return apperr.Conflict("cancelled requests cannot be marked AOG")
	}
	if !DepartureInGrace(r, now, rules) {
		return apperr.Conflict("AOG can only be changed until the departure grace window ends")
	}
	return nil
}

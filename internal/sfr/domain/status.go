package domain

import "time"

// Status is the single derived status code of a request.
type Status int

const (
	StatusError Status = iota
	StatusNew
	StatusInProcess
	StatusConfirmed
	StatusCompleted
	StatusCancelled
	StatusExpired
	StatusAmended
	StatusAmendedCallsign
	StatusTailNumberTBC
	StatusServiceUnavailable
	StatusUnableToSupport
	StatusAOG
)

var statusLabels = map[Status]string{
	StatusError:              "Error",
	StatusNew:                "New",
	StatusInProcess:          "In Process",
	StatusConfirmed:          "Confirmed",
	StatusCompleted:          "Completed",
	StatusCancelled:          "Cancelled",
	StatusExpired:            "Expired",
	StatusAmended:            "Amended",
	StatusAmendedCallsign:    "Amended Callsign",
	StatusTailNumberTBC:      "Tail Number TBC",
	StatusServiceUnavailable: "Service Unavailable",
	StatusUnableToSupport:    "Unable to Support",
	StatusAOG:                "AOG",
}

func (s Status) String() string {
	if label, ok := statusLabels[s]; ok {
		return label
	}
	return statusLabels[StatusError]
}

// Rules are the business thresholds status derivation depends on.
type Rules struct {
	RetrospectiveGrace time.Duration
	DepartureGrace     time.Duration
	NASDLLocationType  int
}

// DefaultRules returns the production thresholds.
func DefaultRules() Rules {
	return Rules{
		RetrospectiveGrace: 5 * time.Minute,
		DepartureGrace:     4 * time.Hour,
		NASDLLocationType:  8,
	}
}

// FuelConfirmed reports whether the fuel side of the request needs no further action.
func FuelConfirmed(r *Request) bool {
	if r.FuelRequired == FuelNone || r.FuelRequired == "" {
		return true
	}
	f := r.Fuel
	return f != nil && f.Confirmed && (f.DLAContracted || f.HasReleaseFile)
}

// DepartureOnlyWindow reports whether only departure-side services count, which
// is the case while a post-arrival departure amendment is unresolved.
func DepartureOnlyWindow(r *Request) bool {
	if r.AwaitingDepartureUpdate {
		return true
	}
	s := r.OpenSession()
	return s != nil && s.DepartureOnly
}

// relevantServices returns the bookings the services predicates look at.
func relevantServices(r *Request) []ServiceBooking {
	if !DepartureOnlyWindow(r) {
		return r.Services
	}
	out := make([]ServiceBooking, 0, len(r.Services))
	for _, s := range r.Services {
		if s.Direction == DirectionDeparture {
			out = append(out, s)
		}
	}
	return out
}

// ServicesConfirmed is true when no relevant booking is unconfirmed or unavailable.
func ServicesConfirmed(r *Request) bool {
	for _, s := range relevantServices(r) {
		if s.State != ServiceConfirmed {
			return false
		}
	}
	return true
}

// ServicesPending is true when a relevant booking still awaits a decision.
func ServicesPending(r *Request) bool {
	for _, s := range relevantServices(r) {
		if s.State == ServiceUnconfirmed {
			return true
		}
	}
	return false
}

// ServicesUnavailable is true when a relevant booking was declined by the provider.
func ServicesUnavailable(r *Request) bool {
	for _, s := range relevantServices(r) {
		if s.State == ServiceUnavailable {
			return true
		}
	}
	return false
}

// HandlingRequired is false for non-airport (NASDL) locations.
func HandlingRequired(r *Request, rules Rules) bool {
	return r.Location.Type != rules.NASDLLocationType
}

// HandlingConfirmed reports whether ground handling is settled.
func HandlingConfirmed(r *Request, rules Rules) bool {
	if !HandlingRequired(r, rules) {
		return true
	}
	if r.HandlingAgent == nil || !r.HandlingConfirmed {
		return false
	}
	s := r.OpenSession()
	return s == nil || s.DepartureOnly
}

// InRetrospectiveGrace is true for a backdated request during the first minutes after creation.
func InRetrospectiveGrace(r *Request, now time.Time, rules Rules) bool {
	return r.CreatedAt.After(r.Arrival.ScheduledAt) && now.Sub(r.CreatedAt) < rules.RetrospectiveGrace
}

// DepartureInFuture uses a strict comparison against now.
func DepartureInFuture(r *Request, now time.Time) bool {
	return r.Departure.ScheduledAt.After(now)
}

// ArrivalInFuture uses a strict comparison against now.
func ArrivalInFuture(r *Request, now time.Time) bool {
	return r.Arrival.ScheduledAt.After(now)
}

// DepartureInGrace is true until the departure grace window after departure has elapsed.
func DepartureInGrace(r *Request, now time.Time, rules Rules) bool {
	return r.Departure.ScheduledAt.Add(rules.DepartureGrace).After(now)
}

// evaluation holds every predicate once so the precedence table stays readable.
type evaluation struct {
	r                *Request
	fuel             bool
	services         bool
	servicesPending  bool
	servicesDeclined bool
	handling         bool
	retroGrace       bool
	departureFuture  bool
	arrivalFuture    bool
}

func (e evaluation) allConfirmed() bool {
	return e.fuel && e.services && e.handling
}

type statusRule struct {
	status Status
	match  func(e evaluation) bool
}

// precedence is evaluated top to bottom; the first match wins.
var precedence = []statusRule{
	{StatusAOG, func(e evaluation) bool { return e.r.AOG }},
	{StatusCancelled, func(e evaluation) bool { return e.r.Cancelled }},
	{StatusUnableToSupport, func(e evaluation) bool {
		return e.r.UnableToSupport && e.arrivalFuture
	}},
	{StatusCompleted, func(e evaluation) bool {
		return !e.r.Amended && !e.r.Cancelled && !e.r.New && e.allConfirmed() && !e.departureFuture
	}},
	{StatusExpired, func(e evaluation) bool {
		return !e.r.Cancelled && !e.retroGrace && !e.allConfirmed() && !e.arrivalFuture
	}},
	{StatusAmendedCallsign, func(e evaluation) bool { return e.r.AmendedCallsign }},
	{StatusNew, func(e evaluation) bool { return !e.r.Cancelled && e.r.New }},
	{StatusTailNumberTBC, func(e evaluation) bool {
		return !e.r.Amended && e.allConfirmed() && e.departureFuture && e.r.TailNumber == ""
	}},
	{StatusConfirmed, func(e evaluation) bool {
		return !e.r.Amended && e.allConfirmed() && e.departureFuture
	}},
	{StatusInProcess, func(e evaluation) bool {
		return !e.r.Amended && (e.departureFuture || e.retroGrace) &&
			(!e.fuel || e.servicesPending || !e.handling)
	}},
	{StatusServiceUnavailable, func(e evaluation) bool {
		return !e.r.Amended && !e.servicesPending && e.servicesDeclined && e.departureFuture
	}},
	{StatusAmended, func(e evaluation) bool { return e.r.Amended }},
}

// DeriveStatus computes the status of r at now. It never mutates r.
func DeriveStatus(r *Request, now time.Time, rules Rules) Status {
	if r == nil {
		return StatusError
	}
	e := evaluation{
		r:                r,
		fuel:             FuelConfirmed(r),
		services:         ServicesConfirmed(r),
		servicesPending:  ServicesPending(r),
		servicesDeclined: ServicesUnavailable(r),
		handling:         HandlingConfirmed(r, rules),
		retroGrace:       InRetrospectiveGrace(r, now, rules),
		departureFuture:  DepartureInFuture(r, now),
		arrivalFuture:    ArrivalInFuture(r, now),
	}
	for _, rule := range precedence {
		if rule.match(e) {
			return rule.status
		}
	}
	return StatusError
}

// NextTransitions returns the instants at which the derived status may change
// purely because time passes: arrival, departure and the end of the
// retrospective grace window. Instants not after now are omitted.
func NextTransitions(r *Request, now time.Time, rules Rules) []time.Time {
	candidates := []time.Time{
		r.Arrival.ScheduledAt,
		r.Departure.ScheduledAt,
		r.CreatedAt.Add(rules.RetrospectiveGrace),
	}
	out := make([]time.Time, 0, len(candidates))
	for _, t := range candidates {
		if t.After(now) {
			out = append(out, t)
		}
	}
	return out
}

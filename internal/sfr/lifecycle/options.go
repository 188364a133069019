package lifecycle

import (
	"time"

	"sfr_ops_backend/internal/events"
	"sfr_ops_backend/internal/sfr/domain"
)

// MutationOptions replaces ad hoc signalling flags between layers.
type MutationOptions struct {
	// SuppressNotifications persists the change without emitting events.
	SuppressNotifications bool
	// IsInitialCreate skips amendment sessions and emits only creation events.
	IsInitialCreate bool
	// RetainFuelOrder keeps the fuel booking when fuel-relevant fields change.
	RetainFuelOrder bool
	// MarkReviewed clears the New flag; set when staff saves the request.
	MarkReviewed bool
	// AutoReconfirm dispatches the ground-handler re-confirmation right away
	// instead of waiting for staff to send it.
	AutoReconfirm bool
	// Privileged allows cancelling a completed request within the departure grace window.
	Privileged bool
}

// CreateInput is a new request as submitted by a client or staff member.
type CreateInput struct {
	Callsign        string
	TailNumber      string
	AircraftType    string
	OrganisationID  int64
	LocationCode    string
	HandlingAgentID *int64
	FuelRequired    domain.FuelRequirement
	FuelQuantity    *float64
	FuelUnit        string
	Arrival         domain.Movement
	Departure       domain.Movement
	Services        []domain.ServiceOp
}

// MutationInput changes an existing request. HandlingAgent only needs an ID;
// the orchestrator resolves its label.
type MutationInput struct {
	RequestID int64
	Fields    domain.FieldPatch
	Arrival   *domain.MovementPatch
	Departure *domain.MovementPatch
	Services  []domain.ServiceOp
}

// IsEmpty reports whether the input changes nothing.
func (in MutationInput) IsEmpty() bool {
	f := in.Fields
	return f.Callsign == nil && f.TailNumber == nil && f.AircraftType == nil && f.HandlingAgent == nil &&
		f.FuelRequired == nil && f.FuelQuantity == nil && !f.ClearFuelQty && f.FuelUnit == nil &&
		in.Arrival == nil && in.Departure == nil && len(in.Services) == 0
}

// FuelUpdate changes the fuel booking. Nil means unchanged.
type FuelUpdate struct {
	Confirmed      *bool
	DLAContracted  *bool
	HasReleaseFile *bool
}

// Result is what every lifecycle operation returns. Events must be handed to
// the queue only after the transaction committed. PreviousTransitions are the
// status timer instants the request had before the operation.
type Result struct {
	Request             *domain.Request
	Previous            domain.Status
	Status              domain.Status
	Changes             domain.ChangeSet
	Session             domain.SessionOutcome
	Events              []events.SFRNotification
	PreviousTransitions []time.Time
}

// StatusChanged reports whether the derived status moved.
func (r Result) StatusChanged() bool { return r.Previous != r.Status }

// Package transport holds the HTTP request and response shapes of the SFR module.
package transport

import (
	"strings"
	"time"

	"sfr_ops_backend/internal/sfr/domain"
	"sfr_ops_backend/internal/sfr/lifecycle"
	"sfr_ops_backend/platform/sanitize"
)

// MovementFields is one leg as submitted on creation.
type MovementFields struct {
	ScheduledAt    time.Time `json:"scheduledAt" validate:"required"`
	Airport        string    `json:"airport" validate:"omitempty,icao"`
	CrewCount      int       `json:"crewCount" validate:"gte=0,lte=500"`
	HasPassengers  bool      `json:"hasPassengers"`
	PassengerCount int       `json:"passengerCount" validate:"gte=0,lte=1000"`
}

// MovementPatch changes one leg. Omitted fields are unchanged.
type MovementPatch struct {
	ScheduledAt    *time.Time `json:"scheduledAt,omitempty"`
	Airport        *string    `json:"airport,omitempty" validate:"omitempty,icao"`
	CrewCount      *int       `json:"crewCount,omitempty" validate:"omitempty,gte=0,lte=500"`
	HasPassengers  *bool      `json:"hasPassengers,omitempty"`
	PassengerCount *int       `json:"passengerCount,omitempty" validate:"omitempty,gte=0,lte=1000"`
}

// ServiceOp adds, removes or modifies one service booking.
type ServiceOp struct {
	ServiceID    int64    `json:"serviceId" validate:"required,gt=0"`
	Direction    string   `json:"direction" validate:"required,oneof=ARRIVAL DEPARTURE"`
	Action       string   `json:"action" validate:"required,oneof=add remove modify"`
	Note         string   `json:"note,omitempty" validate:"max=500"`
	FreeText     string   `json:"freeText,omitempty" validate:"max=500,excluded_with=Quantity"`
	Quantity     *float64 `json:"quantity,omitempty" validate:"omitempty,gt=0"`
	QuantityUnit string   `json:"quantityUnit,omitempty" validate:"max=20"`
}

// CreateRequest is the body of POST /sfr.
type CreateRequest struct {
	Callsign        string         `json:"callsign" validate:"required,callsign"`
	TailNumber      string         `json:"tailNumber" validate:"omitempty,tailnumber"`
	AircraftType    string         `json:"aircraftType" validate:"max=50"`
	OrganisationID  int64          `json:"organisationId" validate:"required,gt=0"`
	LocationCode    string         `json:"locationCode" validate:"required,max=10"`
	HandlingAgentID *int64         `json:"handlingAgentId,omitempty" validate:"omitempty,gt=0"`
	FuelRequired    string         `json:"fuelRequired" validate:"omitempty,oneof=NONE ARRIVAL DEPARTURE"`
	FuelQuantity    *float64       `json:"fuelQuantity,omitempty" validate:"omitempty,gt=0"`
	FuelUnit        string         `json:"fuelUnit" validate:"max=20"`
	Arrival         MovementFields `json:"arrival"`
	Departure       MovementFields `json:"departure"`
	Services        []ServiceOp    `json:"services" validate:"dive"`
}

// MutationRequest is the body of PATCH /sfr/:id.
type MutationRequest struct {
	Callsign          *string        `json:"callsign,omitempty" validate:"omitempty,callsign"`
	TailNumber        *string        `json:"tailNumber,omitempty" validate:"omitempty,tailnumber"`
	AircraftType      *string        `json:"aircraftType,omitempty" validate:"omitempty,max=50"`
	HandlingAgentID   *int64         `json:"handlingAgentId,omitempty" validate:"omitempty,gt=0"`
	FuelRequired      *string        `json:"fuelRequired,omitempty" validate:"omitempty,oneof=NONE ARRIVAL DEPARTURE"`
	FuelQuantity      *float64       `json:"fuelQuantity,omitempty" validate:"omitempty,gt=0"`
	ClearFuelQuantity bool           `json:"clearFuelQuantity,omitempty"`
	FuelUnit          *string        `json:"fuelUnit,omitempty" validate:"omitempty,max=20"`
	Arrival           *MovementPatch `json:"arrival,omitempty"`
	Departure         *MovementPatch `json:"departure,omitempty"`
	Services          []ServiceOp    `json:"services,omitempty" validate:"dive"`

	RetainFuelOrder       bool `json:"retainFuelOrder,omitempty"`
	MarkReviewed          bool `json:"markReviewed,omitempty"`
	AutoReconfirm         bool `json:"autoReconfirm,omitempty"`
	SuppressNotifications bool `json:"suppressNotifications,omitempty"`
}

// FuelBookingRequest is the body of PUT /sfr/:id/fuel.
type FuelBookingRequest struct {
	Confirmed      *bool `json:"confirmed,omitempty"`
	DLAContracted  *bool `json:"dlaContracted,omitempty"`
	HasReleaseFile *bool `json:"hasReleaseFile,omitempty"`
}

// ServiceConfirmationRequest is the body of PUT /sfr/:id/services/:bookingId.
type ServiceConfirmationRequest struct {
	State string `json:"state" validate:"required,oneof=unconfirmed confirmed unavailable"`
}

// ToggleRequest switches a flag on or off.
type ToggleRequest struct {
	On *bool `json:"on" validate:"required"`
}

// ReconfirmationRequest is the body of POST /sfr/:id/reconfirmation.
type ReconfirmationRequest struct {
	Automatic bool `json:"automatic"`
}

// ActivityQuery is the query of GET /sfr/:id/activity.
type ActivityQuery struct {
	Limit int `form:"limit" validate:"omitempty,gte=1,lte=500"`
}

// ToCreateInput maps the body onto the orchestrator input.
func (r CreateRequest) ToCreateInput() lifecycle.CreateInput {
	fuel := domain.FuelRequirement(r.FuelRequired)
	if fuel == "" {
		fuel = domain.FuelNone
	}
	in := lifecycle.CreateInput{
		Callsign:        sanitize.Code(r.Callsign),
		TailNumber:      sanitize.Code(r.TailNumber),
		AircraftType:    sanitize.Text(r.AircraftType),
		OrganisationID:  r.OrganisationID,
		LocationCode:    sanitize.Code(r.LocationCode),
		HandlingAgentID: r.HandlingAgentID,
		FuelRequired:    fuel,
		FuelQuantity:    r.FuelQuantity,
		FuelUnit:        strings.TrimSpace(r.FuelUnit),
		Arrival:         r.Arrival.toMovement(domain.DirectionArrival),
		Departure:       r.Departure.toMovement(domain.DirectionDeparture),
	}
	for _, op := range r.Services {
		in.Services = append(in.Services, op.toDomain())
	}
	return in
}

func (m MovementFields) toMovement(dir domain.Direction) domain.Movement {
	return domain.Movement{
		Direction:      dir,
		ScheduledAt:    m.ScheduledAt.UTC(),
		Airport:        sanitize.Code(m.Airport),
		CrewCount:      m.CrewCount,
		HasPassengers:  m.HasPassengers,
		PassengerCount: m.PassengerCount,
	}
}

func (op ServiceOp) toDomain() domain.ServiceOp {
	return domain.ServiceOp{
		ServiceID: op.ServiceID,
		Direction: domain.Direction(op.Direction),
		Action:    domain.ServiceAction(op.Action),
		Detail: domain.ServiceDetail{
			Note:         sanitize.Text(op.Note),
			FreeText:     sanitize.Text(op.FreeText),
			Quantity:     op.Quantity,
			QuantityUnit: strings.TrimSpace(op.QuantityUnit),
		},
	}
}

// ToMutationInput maps the body onto the orchestrator input and options.
// Privileged is decided by the caller's role, never by the body.
func (r MutationRequest) ToMutationInput(requestID int64) (lifecycle.MutationInput, lifecycle.MutationOptions) {
	in := lifecycle.MutationInput{
		RequestID: requestID,
		Fields: domain.FieldPatch{
			Callsign:     sanitize.CodePtr(r.Callsign),
			TailNumber:   sanitize.CodePtr(r.TailNumber),
			AircraftType: sanitize.TextPtr(r.AircraftType),
			FuelQuantity: r.FuelQuantity,
			ClearFuelQty: r.ClearFuelQuantity,
			FuelUnit:     r.FuelUnit,
		},
		Arrival:   r.Arrival.toDomain(),
		Departure: r.Departure.toDomain(),
	}
	if r.HandlingAgentID != nil {
		in.Fields.HandlingAgent = &domain.Ref{ID: *r.HandlingAgentID}
	}
	if r.FuelRequired != nil {
		f := domain.FuelRequirement(*r.FuelRequired)
		in.Fields.FuelRequired = &f
	}
	for _, op := range r.Services {
		in.Services = append(in.Services, op.toDomain())
	}
	opts := lifecycle.MutationOptions{
		RetainFuelOrder:       r.RetainFuelOrder,
		MarkReviewed:          r.MarkReviewed,
		AutoReconfirm:         r.AutoReconfirm,
		SuppressNotifications: r.SuppressNotifications,
	}
	return in, opts
}

func (p *MovementPatch) toDomain() *domain.MovementPatch {
	if p == nil {
		return nil
	}
	out := &domain.MovementPatch{
		Airport:        sanitize.CodePtr(p.Airport),
		CrewCount:      p.CrewCount,
		HasPassengers:  p.HasPassengers,
		PassengerCount: p.PassengerCount,
	}
	if p.ScheduledAt != nil {
		t := p.ScheduledAt.UTC()
		out.ScheduledAt = &t
	}
	return out
}

// ToFuelUpdate maps the body onto the orchestrator input.
func (r FuelBookingRequest) ToFuelUpdate() lifecycle.FuelUpdate {
	return lifecycle.FuelUpdate{
		Confirmed:      r.Confirmed,
		DLAContracted:  r.DLAContracted,
		HasReleaseFile: r.HasReleaseFile,
	}
}

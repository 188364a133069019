// Package domain provides the core business rules of the servicing & fueling
// request (SFR) lifecycle: status derivation, snapshot diffing and amendment
// sessions. Nothing in this package performs I/O.
package domain

import (
	"time"

	"github.com/google/uuid"
)

// Direction identifies a movement leg.
type Direction string

const (
	DirectionArrival   Direction = "ARRIVAL"
	DirectionDeparture Direction = "DEPARTURE"
)

// FuelRequirement says on which leg fuel is uplifted, if at all.
type FuelRequirement string

const (
	FuelNone      FuelRequirement = "NONE"
	FuelArrival   FuelRequirement = "ARRIVAL"
	FuelDeparture FuelRequirement = "DEPARTURE"
)

// Valid reports whether f is a known requirement.
func (f FuelRequirement) Valid() bool {
	switch f {
	case FuelNone, FuelArrival, FuelDeparture:
		return true
	}
	return false
}

// ServiceState is the tri-state confirmation of a service booking.
type ServiceState string

const (
	ServiceUnconfirmed ServiceState = "unconfirmed"
	ServiceConfirmed   ServiceState = "confirmed"
	ServiceUnavailable ServiceState = "unavailable"
)

// Valid reports whether s is a known state.
func (s ServiceState) Valid() bool {
	switch s {
	case ServiceUnconfirmed, ServiceConfirmed, ServiceUnavailable:
		return true
	}
	return false
}

// Movement is one leg of a request.
type Movement struct {
	ID             int64
	Direction      Direction
	ScheduledAt    time.Time
	Airport        string
	CrewCount      int
	HasPassengers  bool
	PassengerCount int
}

// ServiceDetail is the client-supplied part of a service booking. FreeText and
// Quantity are mutually exclusive.
type ServiceDetail struct {
	Note         string   `json:"note,omitempty"`
	FreeText     string   `json:"freeText,omitempty"`
	Quantity     *float64 `json:"quantity,omitempty"`
	QuantityUnit string   `json:"quantityUnit,omitempty"`
}

// Equal compares two details field by field.
func (d ServiceDetail) Equal(o ServiceDetail) bool {
	if d.Note != o.Note || d.FreeText != o.FreeText || d.QuantityUnit != o.QuantityUnit {
		return false
	}
	switch {
	case d.Quantity == nil && o.Quantity == nil:
		return true
	case d.Quantity == nil || o.Quantity == nil:
		return false
	default:
		return *d.Quantity == *o.Quantity
	}
}

// ServiceBooking links a catalog service to one movement.
type ServiceBooking struct {
	ID           int64
	ServiceID    int64
	ServiceName  string
	Direction    Direction
	Detail       ServiceDetail
	State        ServiceState
	InternalNote string
}

// FuelBooking exists once fuel has been acted upon.
type FuelBooking struct {
	Confirmed      bool
	DLAContracted  bool
	HasReleaseFile bool
	UpdatedAt      time.Time
}

// Ref is a foreign key with its resolved display label.
type Ref struct {
	ID   int64
	Name string
}

// Location is the airport or other site where the request is handled.
type Location struct {
	Code string
	Name string
	Type int
}

// Request is the SFR aggregate root.
type Request struct {
	ID            int64
	Callsign      string
	TailNumber    string
	AircraftType  string
	Organisation  Ref
	Location      Location
	HandlingAgent *Ref

	FuelRequired FuelRequirement
	FuelQuantity *float64
	FuelUnit     string

	Cancelled               bool
	Amended                 bool
	AmendedCallsign         bool
	New                     bool
	UnableToSupport         bool
	AOG                     bool
	HandlingConfirmed       bool
	AwaitingDepartureUpdate bool

	Status    Status
	CreatedAt time.Time
	CreatedBy int64
	UpdatedAt time.Time

	Arrival   Movement
	Departure Movement
	Services  []ServiceBooking
	Fuel      *FuelBooking
	Session   *AmendmentSession
}

// Clone returns a deep copy so callers can mutate without touching the original.
func (r *Request) Clone() *Request {
	if r == nil {
		return nil
	}
	out := *r
	if r.HandlingAgent != nil {
		agent := *r.HandlingAgent
		out.HandlingAgent = &agent
	}
	if r.FuelQuantity != nil {
		q := *r.FuelQuantity
		out.FuelQuantity = &q
	}
	if r.Fuel != nil {
		fuel := *r.Fuel
		out.Fuel = &fuel
	}
	out.Services = make([]ServiceBooking, len(r.Services))
	for i, s := range r.Services {
		if s.Detail.Quantity != nil {
			q := *s.Detail.Quantity
			s.Detail.Quantity = &q
		}
		out.Services[i] = s
	}
	out.Session = r.Session.Clone()
	return &out
}

// Movement returns the leg for the given direction.
func (r *Request) Movement(dir Direction) *Movement {
	if dir == DirectionArrival {
		return &r.Arrival
	}
	return &r.Departure
}

// FindService returns the index of the booking of serviceID on dir, or -1.
func (r *Request) FindService(dir Direction, serviceID int64) int {
	for i, s := range r.Services {
		if s.Direction == dir && s.ServiceID == serviceID {
			return i
		}
	}
	return -1
}

// FindServiceBooking returns the index of the booking with the given id, or -1.
func (r *Request) FindServiceBooking(bookingID int64) int {
	for i, s := range r.Services {
		if s.ID == bookingID {
			return i
		}
	}
	return -1
}

// OpenSession returns the open amendment session, if any.
func (r *Request) OpenSession() *AmendmentSession {
	if r.Session != nil && r.Session.Open {
		return r.Session
	}
	return nil
}

// AmendmentSession accumulates changes the ground handler has not been told about yet.
type AmendmentSession struct {
	ID            uuid.UUID
	RequestID     int64
	Open          bool
	Sent          bool
	DepartureOnly bool
	Original      map[Field]string
	Services      []SessionServiceChange
	OpenedBy      int64
	OpenedAt      time.Time
	ClosedAt      *time.Time
}

// Clone returns a deep copy of the session.
func (s *AmendmentSession) Clone() *AmendmentSession {
	if s == nil {
		return nil
	}
	out := *s
	out.Original = make(map[Field]string, len(s.Original))
	for k, v := range s.Original {
		out.Original[k] = v
	}
	out.Services = append([]SessionServiceChange(nil), s.Services...)
	if s.ClosedAt != nil {
		t := *s.ClosedAt
		out.ClosedAt = &t
	}
	return &out
}

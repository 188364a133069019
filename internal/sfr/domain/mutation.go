package domain

import (
	"time"

	"sfr_ops_backend/platform/apperr"
)

// FieldPatch carries the scalar changes of a mutation. Nil means unchanged.
type FieldPatch struct {
	Callsign      *string
	TailNumber    *string
	AircraftType  *string
	HandlingAgent *Ref
	FuelRequired  *FuelRequirement
	FuelQuantity  *float64
	ClearFuelQty  bool
	FuelUnit      *string
}

// MovementPatch carries the changes of one leg. Nil means unchanged.
type MovementPatch struct {
	ScheduledAt    *time.Time
	Airport        *string
	CrewCount      *int
	HasPassengers  *bool
	PassengerCount *int
}

// ServiceAction is the verb of a ServiceOp.
type ServiceAction string

const (
	ServiceAdd    ServiceAction = "add"
	ServiceRemove ServiceAction = "remove"
	ServiceModify ServiceAction = "modify"
)

// ServiceOp adds, removes or modifies one service on one movement.
type ServiceOp struct {
	ServiceID   int64
	ServiceName string
	Direction   Direction
	Action      ServiceAction
	Detail      ServiceDetail
}

// Mutation is the in-memory change set applied to an aggregate.
type Mutation struct {
	Fields    FieldPatch
	Arrival   *MovementPatch
	Departure *MovementPatch
	Services  []ServiceOp
}

// Apply mutates r in place. It only validates the operations themselves;
// aggregate-level validation runs afterwards through ValidateRequest.
func (m Mutation) Apply(r *Request) error {
	p := m.Fields
	if p.Callsign != nil {
		r.Callsign = *p.Callsign
	}
	if p.TailNumber != nil {
		r.TailNumber = *p.TailNumber
	}
	if p.AircraftType != nil {
		r.AircraftType = *p.AircraftType
	}
	if p.HandlingAgent != nil {
		if r.HandlingAgent == nil || r.HandlingAgent.ID != p.HandlingAgent.ID {
			// A new agent has not confirmed anything yet.
			r.HandlingConfirmed = false
		}
		agent := *p.HandlingAgent
		r.HandlingAgent = &agent
	}
	if p.FuelRequired != nil {
		r.FuelRequired = *p.FuelRequired
	}
	if p.ClearFuelQty {
		r.FuelQuantity = nil
	} else if p.FuelQuantity != nil {
		q := *p.FuelQuantity
		r.FuelQuantity = &q
	}
	if p.FuelUnit != nil {
		r.FuelUnit = *p.FuelUnit
	}

	if m.Arrival != nil {
		m.Arrival.apply(&r.Arrival)
	}
	if m.Departure != nil {
		m.Departure.apply(&r.Departure)
	}

	for _, op := range m.Services {
		if err := applyServiceOp(r, op); err != nil {
			return err
		}
	}
	return nil
}

func (p *MovementPatch) apply(mv *Movement) {
	if p.ScheduledAt != nil {
		mv.ScheduledAt = p.ScheduledAt.UTC()
	}
	if p.Airport != nil {
		mv.Airport = *p.Airport
	}
	if p.CrewCount != nil {
		mv.CrewCount = *p.CrewCount
	}
	if p.HasPassengers != nil {
		mv.HasPassengers = *p.HasPassengers
		if !mv.HasPassengers && p.PassengerCount == nil {
			mv.PassengerCount = 0
		}
	}
	if p.PassengerCount != nil {
		mv.PassengerCount = *p.PassengerCount
	}
}

// applyServiceOp resets the confirmation of anything added or modified: the
// provider has to decide again.
func applyServiceOp(r *Request, op ServiceOp) error {
	if op.Direction != DirectionArrival && op.Direction != DirectionDeparture {
		return apperr.Validation("service operation needs a movement direction")
	}
	idx := r.FindService(op.Direction, op.ServiceID)

	switch op.Action {
	case ServiceAdd:
		if idx >= 0 {
			return apperr.Validation("service is already booked on this movement").
				WithDetails(map[string]int64{"serviceId": op.ServiceID})
		}
		if err := ValidateServiceDetail(op.Detail); err != nil {
			return err
		}
		r.Services = append(r.Services, ServiceBooking{
			ServiceID:   op.ServiceID,
			ServiceName: op.ServiceName,
			Direction:   op.Direction,
			Detail:      op.Detail,
			State:       ServiceUnconfirmed,
		})
	case ServiceRemove:
		if idx < 0 {
			return apperr.Validation("service is not booked on this movement").
				WithDetails(map[string]int64{"serviceId": op.ServiceID})
		}
		r.Services = append(r.Services[:idx], r.Services[idx+1:]...)
	case ServiceModify:
		if idx < 0 {
			return apperr.Validation("service is not booked on this movement").
				WithDetails(map[string]int64{"serviceId": op.ServiceID})
		}
		if err := ValidateServiceDetail(op.Detail); err != nil {
			return err
		}
		booking := &r.Services[idx]
		if !booking.Detail.Equal(op.Detail) {
			booking.Detail = op.Detail
			booking.State = ServiceUnconfirmed
		}
	default:
		return apperr.Validation("unknown service action " + string(op.Action))
	}
	return nil
}

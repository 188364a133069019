package transport

import (
	"sort"
	"time"

	"sfr_ops_backend/internal/sfr/domain"
	"sfr_ops_backend/internal/sfr/lifecycle"
	"sfr_ops_backend/internal/sfr/repository"
)

// StatusResponse is a derived status with its code and label.
type StatusResponse struct {
	Code  int    `json:"code"`
	Label string `json:"label"`
}

func NewStatusResponse(s domain.Status) StatusResponse {
	return StatusResponse{Code: int(s), Label: s.String()}
}

type MovementResponse struct {
	ScheduledAt    time.Time `json:"scheduledAt"`
	Airport        string    `json:"airport"`
	CrewCount      int       `json:"crewCount"`
	HasPassengers  bool      `json:"hasPassengers"`
	PassengerCount int       `json:"passengerCount"`
}

type ServiceBookingResponse struct {
	ID           int64    `json:"id"`
	ServiceID    int64    `json:"serviceId"`
	Name         string   `json:"name"`
	Direction    string   `json:"direction"`
	State        string   `json:"state"`
	Note         string   `json:"note,omitempty"`
	FreeText     string   `json:"freeText,omitempty"`
	Quantity     *float64 `json:"quantity,omitempty"`
	QuantityUnit string   `json:"quantityUnit,omitempty"`
}

type FuelBookingResponse struct {
	Confirmed      bool      `json:"confirmed"`
	DLAContracted  bool      `json:"dlaContracted"`
	HasReleaseFile bool      `json:"hasReleaseFile"`
	UpdatedAt      time.Time `json:"updatedAt"`
}

type SessionResponse struct {
	ID            string    `json:"id"`
	DepartureOnly bool      `json:"departureOnly"`
	OpenedAt      time.Time `json:"openedAt"`
}

// RequestResponse is a request as shown to staff.
type RequestResponse struct {
	ID                      int64                    `json:"id"`
	Callsign                string                   `json:"callsign"`
	TailNumber              string                   `json:"tailNumber"`
	AircraftType            string                   `json:"aircraftType"`
	OrganisationID          int64                    `json:"organisationId"`
	Organisation            string                   `json:"organisation"`
	LocationCode            string                   `json:"locationCode"`
	HandlingAgentID         *int64                   `json:"handlingAgentId,omitempty"`
	HandlingAgent           string                   `json:"handlingAgent,omitempty"`
	FuelRequired            string                   `json:"fuelRequired"`
	FuelQuantity            *float64                 `json:"fuelQuantity,omitempty"`
	FuelUnit                string                   `json:"fuelUnit,omitempty"`
	Status                  StatusResponse           `json:"status"`
	Cancelled               bool                     `json:"cancelled"`
	Amended                 bool                     `json:"amended"`
	AmendedCallsign         bool                     `json:"amendedCallsign"`
	New                     bool                     `json:"new"`
	UnableToSupport         bool                     `json:"unableToSupport"`
	AOG                     bool                     `json:"aog"`
	HandlingConfirmed       bool                     `json:"handlingConfirmed"`
	AwaitingDepartureUpdate bool                     `json:"awaitingDepartureUpdate"`
	Arrival                 MovementResponse         `json:"arrival"`
	Departure               MovementResponse         `json:"departure"`
	Services                []ServiceBookingResponse `json:"services"`
	Fuel                    *FuelBookingResponse     `json:"fuel,omitempty"`
	OpenSession             *SessionResponse         `json:"openSession,omitempty"`
	CreatedAt               time.Time                `json:"createdAt"`
	UpdatedAt               time.Time                `json:"updatedAt"`
}

func NewRequestResponse(r *domain.Request) RequestResponse {
	out := RequestResponse{
		ID:                      r.ID,
		Callsign:                r.Callsign,
		TailNumber:              r.TailNumber,
		AircraftType:            r.AircraftType,
		OrganisationID:          r.Organisation.ID,
		Organisation:            r.Organisation.Name,
		LocationCode:            r.Location.Code,
		FuelRequired:            string(r.FuelRequired),
		FuelQuantity:            r.FuelQuantity,
		FuelUnit:                r.FuelUnit,
		Status:                  NewStatusResponse(r.Status),
		Cancelled:               r.Cancelled,
		Amended:                 r.Amended,
		AmendedCallsign:         r.AmendedCallsign,
		New:                     r.New,
		UnableToSupport:         r.UnableToSupport,
		AOG:                     r.AOG,
		HandlingConfirmed:       r.HandlingConfirmed,
		AwaitingDepartureUpdate: r.AwaitingDepartureUpdate,
		Arrival:                 newMovementResponse(r.Arrival),
		Departure:               newMovementResponse(r.Departure),
		Services:                make([]ServiceBookingResponse, 0, len(r.Services)),
		CreatedAt:               r.CreatedAt,
		UpdatedAt:               r.UpdatedAt,
	}
	if r.HandlingAgent != nil {
		id := r.HandlingAgent.ID
		out.HandlingAgentID = &id
		out.HandlingAgent = r.HandlingAgent.Name
	}
	for _, s := range r.Services {
		out.Services = append(out.Services, ServiceBookingResponse{
			ID:           s.ID,
			ServiceID:    s.ServiceID,
			Name:         s.ServiceName,
			Direction:    string(s.Direction),
			State:        string(s.State),
			Note:         s.Detail.Note,
			FreeText:     s.Detail.FreeText,
			Quantity:     s.Detail.Quantity,
			QuantityUnit: s.Detail.QuantityUnit,
		})
	}
	if f := r.Fuel; f != nil {
		out.Fuel = &FuelBookingResponse{
			Confirmed:      f.Confirmed,
			DLAContracted:  f.DLAContracted,
			HasReleaseFile: f.HasReleaseFile,
			UpdatedAt:      f.UpdatedAt,
		}
	}
	if s := r.OpenSession(); s != nil {
		out.OpenSession = &SessionResponse{ID: s.ID.String(), DepartureOnly: s.DepartureOnly, OpenedAt: s.OpenedAt}
	}
	return out
}

func newMovementResponse(m domain.Movement) MovementResponse {
	return MovementResponse{
		ScheduledAt:    m.ScheduledAt,
		Airport:        m.Airport,
		CrewCount:      m.CrewCount,
		HasPassengers:  m.HasPassengers,
		PassengerCount: m.PassengerCount,
	}
}

// ChangedField is one entry of the diff returned by mutations.
type ChangedField struct {
	Field string `json:"field"`
	Old   string `json:"old"`
	New   string `json:"new"`
}

// ResultResponse is returned by every state-changing endpoint.
type ResultResponse struct {
	Request         RequestResponse `json:"request"`
	PreviousStatus  StatusResponse  `json:"previousStatus"`
	ChangedFields   []ChangedField  `json:"changedFields"`
	ServicesChanged int             `json:"servicesChanged"`
	SessionOpened   bool            `json:"sessionOpened"`
	Notifications   []string        `json:"notifications"`
}

func NewResultResponse(res lifecycle.Result) ResultResponse {
	out := ResultResponse{
		Request:         NewRequestResponse(res.Request),
		PreviousStatus:  NewStatusResponse(res.Previous),
		ChangedFields:   make([]ChangedField, 0, len(res.Changes.Fields)),
		ServicesChanged: len(res.Changes.Services),
		SessionOpened:   res.Session == domain.SessionOpened,
		Notifications:   make([]string, 0, len(res.Events)),
	}
	for f, c := range res.Changes.Fields {
		out.ChangedFields = append(out.ChangedFields, ChangedField{Field: string(f), Old: c.Old, New: c.New})
	}
	sort.Slice(out.ChangedFields, func(i, j int) bool { return out.ChangedFields[i].Field < out.ChangedFields[j].Field })
	for _, e := range res.Events {
		out.Notifications = append(out.Notifications, string(e.Kind))
	}
	return out
}

// ActivityResponse is one activity log row.
type ActivityResponse struct {
	ID        string    `json:"id"`
	Field     *string   `json:"field,omitempty"`
	OldValue  *string   `json:"oldValue,omitempty"`
	NewValue  *string   `json:"newValue,omitempty"`
	Detail    *string   `json:"detail,omitempty"`
	ActorID   *int64    `json:"actorId,omitempty"`
	Actor     *string   `json:"actor,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

func NewActivityResponse(entries []repository.ActivityLogEntry) []ActivityResponse {
	out := make([]ActivityResponse, 0, len(entries))
	for _, e := range entries {
		out = append(out, ActivityResponse{
			ID:        e.ID.String(),
			Field:     e.Field,
			OldValue:  e.OldValue,
			NewValue:  e.NewValue,
			Detail:    e.Detail,
			ActorID:   e.ActorID,
			Actor:     e.ActorText,
			CreatedAt: e.CreatedAt,
		})
	}
	return out
}

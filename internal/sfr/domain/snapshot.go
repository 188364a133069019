package domain

import (
	"sort"
	"strconv"
	"strings"
	"time"
)

// Field names a tracked scalar of the request or one of its movements.
type Field string

const (
	FieldCallsign      Field = "callsign"
	FieldTailNumber    Field = "tail_number"
	FieldAircraftType  Field = "aircraft_type"
	FieldOrganisation  Field = "organisation"
	FieldLocation      Field = "location"
	FieldHandlingAgent Field = "handling_agent"
	FieldFuelRequired  Field = "fuel_required"
	FieldFuelQuantity  Field = "fuel_quantity"
	FieldFuelUnit      Field = "fuel_unit"

	FieldArrivalScheduledAt      Field = "arrival.scheduled_at"
	FieldArrivalAirport          Field = "arrival.airport"
	FieldArrivalCrewCount        Field = "arrival.crew_count"
	FieldArrivalHasPassengers    Field = "arrival.has_passengers"
	FieldArrivalPassengerCount   Field = "arrival.passenger_count"
	FieldDepartureScheduledAt    Field = "departure.scheduled_at"
	FieldDepartureAirport        Field = "departure.airport"
	FieldDepartureCrewCount      Field = "departure.crew_count"
	FieldDepartureHasPassengers  Field = "departure.has_passengers"
	FieldDeparturePassengerCount Field = "departure.passenger_count"
)

// amendmentFields are the scalars the ground handler must be re-told about.
var amendmentFields = map[Field]bool{
	FieldCallsign:                true,
	FieldTailNumber:              true,
	FieldAircraftType:            true,
	FieldArrivalScheduledAt:      true,
	FieldArrivalAirport:          true,
	FieldArrivalHasPassengers:    true,
	FieldArrivalPassengerCount:   true,
	FieldDepartureScheduledAt:    true,
	FieldDepartureAirport:        true,
	FieldDepartureHasPassengers:  true,
	FieldDeparturePassengerCount: true,
}

var fuelFields = map[Field]bool{
	FieldFuelRequired: true,
	FieldFuelQuantity: true,
	FieldFuelUnit:     true,
}

// fuelScheduleField is the schedule a fuel order for each leg is placed against.
var fuelScheduleField = map[FuelRequirement]Field{
	FuelArrival:   FieldArrivalScheduledAt,
	FuelDeparture: FieldDepartureScheduledAt,
}

// IsAmendmentField reports whether a change to f concerns the ground handler.
func IsAmendmentField(f Field) bool { return amendmentFields[f] }

// IsFuelField reports whether a change to f concerns the fuel team when fuel
// is required for leg. Only the schedule of the fuelled leg counts.
func IsFuelField(f Field, leg FuelRequirement) bool {
	if fuelFields[f] {
		return true
	}
	sched, ok := fuelScheduleField[leg]
	return ok && f == sched
}

// IsDepartureField reports whether f belongs to the departure movement.
func IsDepartureField(f Field) bool { return strings.HasPrefix(string(f), "departure.") }

// ServiceSnapshot is the frozen state of one service booking.
type ServiceSnapshot struct {
	ServiceID int64
	Name      string
	Detail    ServiceDetail
}

// Snapshot is a point-in-time copy of everything the differ compares. It embeds
// resolved labels so diffing never needs the database.
type Snapshot struct {
	Fields   map[Field]string
	Services map[Direction]map[int64]ServiceSnapshot
}

// CaptureSnapshot freezes r.
func CaptureSnapshot(r *Request) Snapshot {
	s := Snapshot{
		Fields: map[Field]string{
			FieldCallsign:      r.Callsign,
			FieldTailNumber:    r.TailNumber,
			FieldAircraftType:  r.AircraftType,
			FieldOrganisation:  r.Organisation.Name,
			FieldLocation:      r.Location.Code,
			FieldHandlingAgent: "",
			FieldFuelRequired:  string(r.FuelRequired),
			FieldFuelQuantity:  formatQuantity(r.FuelQuantity),
			FieldFuelUnit:      r.FuelUnit,
		},
		Services: map[Direction]map[int64]ServiceSnapshot{
			DirectionArrival:   {},
			DirectionDeparture: {},
		},
	}
	if r.HandlingAgent != nil {
		s.Fields[FieldHandlingAgent] = r.HandlingAgent.Name
	}
	captureMovement(s.Fields, "arrival.", r.Arrival)
	captureMovement(s.Fields, "departure.", r.Departure)

	for _, b := range r.Services {
		detail := b.Detail
		if detail.Quantity != nil {
			q := *detail.Quantity
			detail.Quantity = &q
		}
		s.Services[b.Direction][b.ServiceID] = ServiceSnapshot{
			ServiceID: b.ServiceID,
			Name:      b.ServiceName,
			Detail:    detail,
		}
	}
	return s
}

func captureMovement(fields map[Field]string, prefix string, m Movement) {
	scheduled := ""
	if !m.ScheduledAt.IsZero() {
		scheduled = m.ScheduledAt.UTC().Format(time.RFC3339)
	}
	fields[Field(prefix+"scheduled_at")] = scheduled
	fields[Field(prefix+"airport")] = m.Airport
	fields[Field(prefix+"crew_count")] = strconv.Itoa(m.CrewCount)
	fields[Field(prefix+"has_passengers")] = strconv.FormatBool(m.HasPassengers)
	fields[Field(prefix+"passenger_count")] = strconv.Itoa(m.PassengerCount)
}

func formatQuantity(q *float64) string {
	if q == nil {
		return ""
	}
	return strconv.FormatFloat(*q, 'f', -1, 64)
}

// FieldChange is an old/new pair for one scalar.
type FieldChange struct {
	Old string `json:"old"`
	New string `json:"new"`
}

// ChangeType classifies a service change.
type ChangeType string

const (
	ChangeAdded    ChangeType = "added"
	ChangeRemoved  ChangeType = "removed"
	ChangeModified ChangeType = "modified"
)

// ServiceChange describes what happened to one service on one movement.
type ServiceChange struct {
	ServiceID int64
	Name      string
	Direction Direction
	Type      ChangeType
	Old       *ServiceDetail
	New       *ServiceDetail
}

// ChangeSet is the typed result of Diff.
type ChangeSet struct {
	Fields   map[Field]FieldChange
	Services []ServiceChange
}

// IsEmpty reports whether nothing changed.
func (c ChangeSet) IsEmpty() bool {
	return len(c.Fields) == 0 && len(c.Services) == 0
}

// AmendmentRelevant reports whether the ground handler needs to hear about c.
func (c ChangeSet) AmendmentRelevant() bool {
	if len(c.Services) > 0 {
		return true
	}
	for f := range c.Fields {
		if IsAmendmentField(f) {
			return true
		}
	}
	return false
}

// DepartureOnly reports whether every amendment-relevant change in c is on the
// departure movement. An empty or irrelevant change set is not departure-only.
func (c ChangeSet) DepartureOnly() bool {
	relevant := false
	for f := range c.Fields {
		if !IsAmendmentField(f) {
			continue
		}
		if !IsDepartureField(f) {
			return false
		}
		relevant = true
	}
	for _, s := range c.Services {
		if s.Direction != DirectionDeparture {
			return false
		}
		relevant = true
	}
	return relevant
}

// FuelRelevant reports whether the fuel order for leg is affected by c.
func (c ChangeSet) FuelRelevant(leg FuelRequirement) bool {
	for f := range c.Fields {
		if IsFuelField(f, leg) {
			return true
		}
	}
	return false
}

// Has reports whether f changed.
func (c ChangeSet) Has(f Field) bool {
	_, ok := c.Fields[f]
	return ok
}

// SortedFields returns the changed field names in a stable order.
func (c ChangeSet) SortedFields() []Field {
	out := make([]Field, 0, len(c.Fields))
	for f := range c.Fields {
		out = append(out, f)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Diff compares two snapshots. It is a pure function of its inputs and
// Diff(s, s) is always empty.
func Diff(before, after Snapshot) ChangeSet {
	cs := ChangeSet{Fields: map[Field]FieldChange{}}

	for f, old := range before.Fields {
		if cur, ok := after.Fields[f]; ok && cur != old {
			cs.Fields[f] = FieldChange{Old: old, New: cur}
		} else if !ok && old != "" {
			cs.Fields[f] = FieldChange{Old: old}
		}
	}
	for f, cur := range after.Fields {
		if _, ok := before.Fields[f]; !ok && cur != "" {
			cs.Fields[f] = FieldChange{New: cur}
		}
	}

	for _, dir := range []Direction{DirectionArrival, DirectionDeparture} {
		cs.Services = append(cs.Services, diffServices(dir, before.Services[dir], after.Services[dir])...)
	}
	return cs
}

func diffServices(dir Direction, before, after map[int64]ServiceSnapshot) []ServiceChange {
	var out []ServiceChange
	for id, old := range before {
		oldDetail := old.Detail
		cur, ok := after[id]
		if !ok {
			out = append(out, ServiceChange{ServiceID: id, Name: old.Name, Direction: dir, Type: ChangeRemoved, Old: &oldDetail})
			continue
		}
		if !cur.Detail.Equal(old.Detail) {
			newDetail := cur.Detail
			out = append(out, ServiceChange{ServiceID: id, Name: cur.Name, Direction: dir, Type: ChangeModified, Old: &oldDetail, New: &newDetail})
		}
	}
	for id, cur := range after {
		if _, ok := before[id]; ok {
			continue
		}
		newDetail := cur.Detail
		out = append(out, ServiceChange{ServiceID: id, Name: cur.Name, Direction: dir, Type: ChangeAdded, New: &newDetail})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ServiceID < out[j].ServiceID })
	return out
}

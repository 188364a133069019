package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDiffOfIdenticalSnapshotsIsEmpty(t *testing.T) {
	s := CaptureSnapshot(confirmedRequest())
	assert.True(t, Diff(s, s).IsEmpty())

	r := confirmedRequest()
	r.FuelRequired = FuelArrival
	r.FuelQuantity = ptr(1200.0)
	r.Services[0].Detail.Quantity = ptr(2.0)
	s = CaptureSnapshot(r)
	assert.True(t, Diff(s, s).IsEmpty())
}

func TestSnapshotIsDetachedFromRequest(t *testing.T) {
	r := confirmedRequest()
	r.Services[0].Detail.Quantity = ptr(2.0)
	before := CaptureSnapshot(r)

	*r.Services[0].Detail.Quantity = 3
	r.Callsign = "RCH124"

	cs := Diff(before, CaptureSnapshot(r))
	assert.Equal(t, FieldChange{Old: "RCH123", New: "RCH124"}, cs.Fields[FieldCallsign])
	require.Len(t, cs.Services, 1)
	assert.Equal(t, ChangeModified, cs.Services[0].Type)
	assert.Equal(t, 2.0, *cs.Services[0].Old.Quantity)
	assert.Equal(t, 3.0, *cs.Services[0].New.Quantity)
}

func TestDiffClassifiesServices(t *testing.T) {
	r := confirmedRequest()
	before := CaptureSnapshot(r)

	r.Services = []ServiceBooking{
		{ServiceID: 2, ServiceName: "Catering", Direction: DirectionDeparture, Detail: ServiceDetail{FreeText: "14 crew meals"}},
		{ServiceID: 3, ServiceName: "GPU", Direction: DirectionArrival},
	}
	cs := Diff(before, CaptureSnapshot(r))

	byType := map[ChangeType]ServiceChange{}
	for _, c := range cs.Services {
		byType[c.Type] = c
	}
	require.Len(t, cs.Services, 3)
	assert.Equal(t, int64(1), byType[ChangeRemoved].ServiceID)
	assert.Equal(t, "Lavatory", byType[ChangeRemoved].Name)
	assert.Equal(t, int64(3), byType[ChangeAdded].ServiceID)
	assert.Equal(t, "12 crew meals", byType[ChangeModified].Old.FreeText)
	assert.Equal(t, "14 crew meals", byType[ChangeModified].New.FreeText)
}

func TestDiffUsesResolvedLabels(t *testing.T) {
	r := confirmedRequest()
	before := CaptureSnapshot(r)
	r.HandlingAgent = &Ref{ID: 10, Name: "Menzies"}

	cs := Diff(before, CaptureSnapshot(r))
	assert.Equal(t, FieldChange{Old: "Swissport", New: "Menzies"}, cs.Fields[FieldHandlingAgent])
	assert.False(t, cs.AmendmentRelevant())
}

func TestChangeSetClassification(t *testing.T) {
	r := confirmedRequest()
	before := CaptureSnapshot(r)
	r.Departure.ScheduledAt = r.Departure.ScheduledAt.Add(time.Hour)
	r.Departure.CrewCount = 5

	cs := Diff(before, CaptureSnapshot(r))
	assert.True(t, cs.AmendmentRelevant())
	assert.True(t, cs.DepartureOnly())
	assert.True(t, cs.FuelRelevant(FuelDeparture))
	assert.False(t, cs.FuelRelevant(FuelArrival))
	assert.False(t, cs.FuelRelevant(FuelNone))
	assert.Equal(t, []Field{FieldDepartureCrewCount, FieldDepartureScheduledAt}, cs.SortedFields())

	r.Arrival.PassengerCount = 1
	r.Arrival.HasPassengers = true
	cs = Diff(before, CaptureSnapshot(r))
	assert.False(t, cs.DepartureOnly())
}

func TestCrewOnlyChangeIsNotAnAmendment(t *testing.T) {
	r := confirmedRequest()
	before := CaptureSnapshot(r)
	r.Arrival.CrewCount = 6

	cs := Diff(before, CaptureSnapshot(r))
	assert.False(t, cs.IsEmpty())
	assert.False(t, cs.AmendmentRelevant())
	assert.False(t, cs.DepartureOnly())
}

func TestFuelFieldsFollowTheFuelledLeg(t *testing.T) {
	assert.True(t, IsFuelField(FieldFuelQuantity, FuelNone))
	assert.True(t, IsFuelField(FieldArrivalScheduledAt, FuelArrival))
	assert.False(t, IsFuelField(FieldDepartureScheduledAt, FuelArrival))
	assert.True(t, IsFuelField(FieldDepartureScheduledAt, FuelDeparture))
	assert.False(t, IsFuelField(FieldArrivalScheduledAt, FuelDeparture))
	assert.False(t, IsFuelField(FieldArrivalScheduledAt, FuelNone))
}

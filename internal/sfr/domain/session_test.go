package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mutate(t *testing.T, r *Request, m Mutation) (Snapshot, ChangeSet) {
	t.Helper()
	before := CaptureSnapshot(r)
	require.NoError(t, m.Apply(r))
	return before, Diff(before, CaptureSnapshot(r))
}

func TestTailNumberChangeOpensWholeSession(t *testing.T) {
	r := confirmedRequest()
	require.Equal(t, StatusConfirmed, DeriveStatus(r, testNow, DefaultRules()))

	before, cs := mutate(t, r, Mutation{Fields: FieldPatch{TailNumber: ptr("06-6155")}})
	outcome := CoordinateAmendment(r, before, cs, 7, testNow)

	assert.Equal(t, SessionOpened, outcome)
	require.NotNil(t, r.OpenSession())
	assert.False(t, r.Session.DepartureOnly)
	assert.Equal(t, "06-6154", r.Session.Original[FieldTailNumber])
	assert.Equal(t, int64(7), r.Session.OpenedBy)
	assert.False(t, r.HandlingConfirmed)
	assert.True(t, r.Amended)
	assert.False(t, r.AmendedCallsign)
	assert.Equal(t, StatusAmended, DeriveStatus(r, testNow, DefaultRules()))
}

func TestCallsignChangeRaisesCallsignFlag(t *testing.T) {
	r := confirmedRequest()
	before, cs := mutate(t, r, Mutation{Fields: FieldPatch{Callsign: ptr("RCH999")}})
	CoordinateAmendment(r, before, cs, 7, testNow)

	assert.True(t, r.AmendedCallsign)
	assert.Equal(t, StatusAmendedCallsign, DeriveStatus(r, testNow, DefaultRules()))
}

func TestDepartureChangeAfterArrivalOpensDepartureOnlySession(t *testing.T) {
	r := confirmedRequest()
	now := testNow.Add(3 * time.Hour) // arrival has passed

	newDeparture := r.Departure.ScheduledAt.Add(2 * time.Hour)
	before, cs := mutate(t, r, Mutation{Departure: &MovementPatch{ScheduledAt: &newDeparture}})
	outcome := CoordinateAmendment(r, before, cs, 7, now)

	assert.Equal(t, SessionOpened, outcome)
	require.NotNil(t, r.OpenSession())
	assert.True(t, r.Session.DepartureOnly)
	assert.True(t, r.HandlingConfirmed)
	assert.True(t, r.AwaitingDepartureUpdate)
	assert.False(t, r.Amended)

	// Arrival-side services no longer count while the window is open.
	r.Services[r.FindService(DirectionArrival, 1)].State = ServiceUnconfirmed
	assert.Equal(t, StatusConfirmed, DeriveStatus(r, now, DefaultRules()))
}

func TestDepartureServicePendingAfterArrivalFollowsPrecedence(t *testing.T) {
	r := confirmedRequest()
	now := testNow.Add(3 * time.Hour)

	before, cs := mutate(t, r, Mutation{Services: []ServiceOp{{
		ServiceID: 2, Direction: DirectionDeparture, Action: ServiceModify,
		Detail: ServiceDetail{FreeText: "10 crew meals"},
	}}})
	CoordinateAmendment(r, before, cs, 7, now)
	require.True(t, r.Session.DepartureOnly)

	// Expired outranks InProcess once arrival has passed.
	assert.Equal(t, StatusExpired, DeriveStatus(r, now, DefaultRules()))

	r.Services[r.FindService(DirectionDeparture, 2)].State = ServiceConfirmed
	assert.Equal(t, StatusConfirmed, DeriveStatus(r, now, DefaultRules()))
}

func TestDepartureChangeBeforeArrivalIsWholeAmendment(t *testing.T) {
	r := confirmedRequest()
	newDeparture := r.Departure.ScheduledAt.Add(time.Hour)

	before, cs := mutate(t, r, Mutation{Departure: &MovementPatch{ScheduledAt: &newDeparture}})
	CoordinateAmendment(r, before, cs, 7, testNow)

	assert.False(t, r.Session.DepartureOnly)
	assert.False(t, r.HandlingConfirmed)
	assert.True(t, r.Amended)
}

func TestDepartureOnlySessionUpgradesOnOtherChange(t *testing.T) {
	r := confirmedRequest()
	now := testNow.Add(3 * time.Hour)
	newDeparture := r.Departure.ScheduledAt.Add(time.Hour)

	before, cs := mutate(t, r, Mutation{Departure: &MovementPatch{ScheduledAt: &newDeparture}})
	CoordinateAmendment(r, before, cs, 7, now)
	first := r.Session.ID
	require.True(t, r.AwaitingDepartureUpdate)

	before, cs = mutate(t, r, Mutation{Fields: FieldPatch{AircraftType: ptr("C5")}})
	outcome := CoordinateAmendment(r, before, cs, 8, now)

	assert.Equal(t, SessionMerged, outcome)
	assert.Equal(t, first, r.Session.ID)
	assert.False(t, r.Session.DepartureOnly)
	assert.False(t, r.HandlingConfirmed)
	assert.True(t, r.Amended)
	assert.False(t, r.AwaitingDepartureUpdate)
	assert.False(t, DepartureOnlyWindow(r))
}

func TestNoSessionWithoutHandlingConfirmation(t *testing.T) {
	r := confirmedRequest()
	r.HandlingConfirmed = false

	before, cs := mutate(t, r, Mutation{Fields: FieldPatch{TailNumber: ptr("06-6155")}})
	outcome := CoordinateAmendment(r, before, cs, 7, testNow)

	assert.Equal(t, SessionUntouched, outcome)
	assert.Nil(t, r.Session)
	assert.False(t, r.Amended)
}

func TestSecondChangeMergesAndKeepsOriginal(t *testing.T) {
	r := confirmedRequest()
	before, cs := mutate(t, r, Mutation{Fields: FieldPatch{TailNumber: ptr("06-6155")}})
	CoordinateAmendment(r, before, cs, 7, testNow)
	id := r.Session.ID

	before, cs = mutate(t, r, Mutation{Fields: FieldPatch{TailNumber: ptr("06-6156")}})
	outcome := CoordinateAmendment(r, before, cs, 7, testNow)

	assert.Equal(t, SessionMerged, outcome)
	assert.Equal(t, id, r.Session.ID)
	assert.Equal(t, "06-6154", r.Session.Original[FieldTailNumber])
}

func TestServiceAddedThenRemovedLeavesNoTrace(t *testing.T) {
	r := confirmedRequest()
	before, cs := mutate(t, r, Mutation{Services: []ServiceOp{{
		ServiceID: 5, ServiceName: "Water", Direction: DirectionArrival, Action: ServiceAdd,
	}}})
	CoordinateAmendment(r, before, cs, 7, testNow)
	require.Len(t, r.Session.Services, 1)

	before, cs = mutate(t, r, Mutation{Services: []ServiceOp{{
		ServiceID: 5, Direction: DirectionArrival, Action: ServiceRemove,
	}}})
	CoordinateAmendment(r, before, cs, 7, testNow)

	for _, c := range r.Session.Services {
		assert.NotEqual(t, int64(5), c.ServiceID)
	}
	assert.Empty(t, r.Session.Services)
}

func TestPreExistingServiceRemovedIsKept(t *testing.T) {
	r := confirmedRequest()
	before, cs := mutate(t, r, Mutation{Services: []ServiceOp{{
		ServiceID: 2, Direction: DirectionDeparture, Action: ServiceModify,
		Detail: ServiceDetail{FreeText: "20 crew meals"},
	}}})
	CoordinateAmendment(r, before, cs, 7, testNow)

	before, cs = mutate(t, r, Mutation{Services: []ServiceOp{{
		ServiceID: 2, Direction: DirectionDeparture, Action: ServiceRemove,
	}}})
	CoordinateAmendment(r, before, cs, 7, testNow)

	require.Len(t, r.Session.Services, 1)
	entry := r.Session.Services[0]
	assert.Equal(t, ChangeRemoved, entry.Type)
	assert.Equal(t, "12 crew meals", entry.Old.FreeText)
	assert.Nil(t, entry.New)
}

func TestAddedServiceModifiedUpdatesInPlace(t *testing.T) {
	r := confirmedRequest()
	before, cs := mutate(t, r, Mutation{Services: []ServiceOp{{
		ServiceID: 5, ServiceName: "Water", Direction: DirectionArrival, Action: ServiceAdd,
		Detail: ServiceDetail{Quantity: ptr(100.0), QuantityUnit: "L"},
	}}})
	CoordinateAmendment(r, before, cs, 7, testNow)

	before, cs = mutate(t, r, Mutation{Services: []ServiceOp{{
		ServiceID: 5, Direction: DirectionArrival, Action: ServiceModify,
		Detail: ServiceDetail{Quantity: ptr(150.0), QuantityUnit: "L"},
	}}})
	CoordinateAmendment(r, before, cs, 7, testNow)

	require.Len(t, r.Session.Services, 1)
	entry := r.Session.Services[0]
	assert.Equal(t, ChangeAdded, entry.Type)
	assert.Equal(t, 150.0, *entry.New.Quantity)
}

func TestModifiedBackToOriginalDropsEntry(t *testing.T) {
	r := confirmedRequest()
	before, cs := mutate(t, r, Mutation{Services: []ServiceOp{{
		ServiceID: 2, Direction: DirectionDeparture, Action: ServiceModify,
		Detail: ServiceDetail{FreeText: "20 crew meals"},
	}}})
	CoordinateAmendment(r, before, cs, 7, testNow)

	before, cs = mutate(t, r, Mutation{Services: []ServiceOp{{
		ServiceID: 2, Direction: DirectionDeparture, Action: ServiceModify,
		Detail: ServiceDetail{FreeText: "12 crew meals"},
	}}})
	CoordinateAmendment(r, before, cs, 7, testNow)

	assert.Empty(t, r.Session.Services)
}

func TestClosedSessionIsReplacedByNewOne(t *testing.T) {
	r := confirmedRequest()
	before, cs := mutate(t, r, Mutation{Fields: FieldPatch{TailNumber: ptr("06-6155")}})
	CoordinateAmendment(r, before, cs, 7, testNow)
	first := r.Session.ID

	r.Session.Close(testNow)
	assert.False(t, r.Session.Open)
	assert.True(t, r.Session.Sent)
	r.HandlingConfirmed = true
	r.Amended = false

	before, cs = mutate(t, r, Mutation{Fields: FieldPatch{AircraftType: ptr("C5")}})
	outcome := CoordinateAmendment(r, before, cs, 7, testNow)

	assert.Equal(t, SessionOpened, outcome)
	assert.NotEqual(t, first, r.Session.ID)
}

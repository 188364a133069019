package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDeriveStatusCreateThenConfirm(t *testing.T) {
	r := confirmedRequest()
	r.Services = nil
	r.HandlingConfirmed = false
	r.New = true

	assert.Equal(t, StatusNew, DeriveStatus(r, testNow, DefaultRules()))

	r.New = false
	r.HandlingConfirmed = true
	assert.Equal(t, StatusConfirmed, DeriveStatus(r, testNow, DefaultRules()))
}

func TestDeriveStatusFuelRequiredWithoutBookingIsInProcess(t *testing.T) {
	r := confirmedRequest()
	r.FuelRequired = FuelArrival

	assert.False(t, FuelConfirmed(r))
	assert.Equal(t, StatusInProcess, DeriveStatus(r, testNow, DefaultRules()))
}

func TestDeriveStatusIsDeterministic(t *testing.T) {
	r := confirmedRequest()
	r.FuelRequired = FuelDeparture
	r.Fuel = &FuelBooking{Confirmed: true}

	first := DeriveStatus(r, testNow, DefaultRules())
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, DeriveStatus(r, testNow, DefaultRules()))
	}
}

func TestDeriveStatusPrecedence(t *testing.T) {
	rules := DefaultRules()

	tests := []struct {
		name   string
		mutate func(r *Request)
		now    time.Time
		want   Status
	}{
		{"confirmed", func(r *Request) {}, testNow, StatusConfirmed},
		{"aog beats cancelled", func(r *Request) { r.AOG = true; r.Cancelled = true }, testNow, StatusAOG},
		{"cancelled", func(r *Request) { r.Cancelled = true }, testNow, StatusCancelled},
		{"unable to support before arrival", func(r *Request) { r.UnableToSupport = true }, testNow, StatusUnableToSupport},
		{"unable to support ignored after arrival", func(r *Request) { r.UnableToSupport = true }, testNow.Add(3 * time.Hour), StatusConfirmed},
		{"completed after departure", func(r *Request) {}, testNow.Add(7 * time.Hour), StatusCompleted},
		{"departure instant is not in the future", func(r *Request) {}, testNow.Add(6 * time.Hour), StatusCompleted},
		{"amended request never completes", func(r *Request) { r.Amended = true }, testNow.Add(7 * time.Hour), StatusAmended},
		{"expired when arrival passed unconfirmed", func(r *Request) { r.HandlingConfirmed = false }, testNow.Add(3 * time.Hour), StatusExpired},
		{"amended callsign beats new", func(r *Request) { r.AmendedCallsign = true; r.New = true }, testNow, StatusAmendedCallsign},
		{"new", func(r *Request) { r.New = true }, testNow, StatusNew},
		{"tail number tbc", func(r *Request) { r.TailNumber = "" }, testNow, StatusTailNumberTBC},
		{"in process while handling pending", func(r *Request) { r.HandlingConfirmed = false }, testNow, StatusInProcess},
		{"in process while service pending", func(r *Request) { r.Services[0].State = ServiceUnconfirmed }, testNow, StatusInProcess},
		{"service unavailable", func(r *Request) { r.Services[1].State = ServiceUnavailable }, testNow, StatusServiceUnavailable},
		{"pending beats unavailable", func(r *Request) {
			r.Services[0].State = ServiceUnconfirmed
			r.Services[1].State = ServiceUnavailable
		}, testNow, StatusInProcess},
		{"amended", func(r *Request) { r.Amended = true; r.HandlingConfirmed = false }, testNow, StatusAmended},
		{"inconsistent legs fall through to error", func(r *Request) {
			r.HandlingConfirmed = false
			r.Departure.ScheduledAt = testNow.Add(-time.Hour)
		}, testNow, StatusError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := confirmedRequest()
			tt.mutate(r)
			assert.Equal(t, tt.want, DeriveStatus(r, tt.now, rules))
		})
	}
}

func TestRetrospectiveGraceKeepsBackdatedRequestInProcess(t *testing.T) {
	r := confirmedRequest()
	r.HandlingConfirmed = false
	r.Arrival.ScheduledAt = testNow.Add(-time.Hour)
	r.CreatedAt = testNow.Add(-2 * time.Minute)

	assert.True(t, InRetrospectiveGrace(r, testNow, DefaultRules()))
	assert.Equal(t, StatusInProcess, DeriveStatus(r, testNow, DefaultRules()))

	later := testNow.Add(4 * time.Minute)
	assert.False(t, InRetrospectiveGrace(r, later, DefaultRules()))
	assert.Equal(t, StatusExpired, DeriveStatus(r, later, DefaultRules()))
}

func TestFuelConfirmedNeedsContractOrRelease(t *testing.T) {
	r := confirmedRequest()
	r.FuelRequired = FuelArrival

	r.Fuel = &FuelBooking{Confirmed: true}
	assert.False(t, FuelConfirmed(r))

	r.Fuel.DLAContracted = true
	assert.True(t, FuelConfirmed(r))

	r.Fuel = &FuelBooking{Confirmed: true, HasReleaseFile: true}
	assert.True(t, FuelConfirmed(r))

	r.Fuel.Confirmed = false
	assert.False(t, FuelConfirmed(r))
}

func TestHandlingNotRequiredAtNASDLLocation(t *testing.T) {
	r := confirmedRequest()
	r.HandlingAgent = nil
	r.HandlingConfirmed = false
	r.Location.Type = 8

	assert.True(t, HandlingConfirmed(r, DefaultRules()))
	assert.Equal(t, StatusConfirmed, DeriveStatus(r, testNow, DefaultRules()))
}

func TestHandlingRevokedByOpenWholeSession(t *testing.T) {
	r := confirmedRequest()
	r.Session = &AmendmentSession{Open: true}
	assert.False(t, HandlingConfirmed(r, DefaultRules()))

	r.Session.DepartureOnly = true
	assert.True(t, HandlingConfirmed(r, DefaultRules()))
}

func TestDepartureOnlyWindowExcludesArrivalServices(t *testing.T) {
	r := confirmedRequest()
	r.Services[0].State = ServiceUnconfirmed

	assert.False(t, ServicesConfirmed(r))

	r.AwaitingDepartureUpdate = true
	assert.True(t, ServicesConfirmed(r))

	r.Services[1].State = ServiceUnconfirmed
	assert.False(t, ServicesConfirmed(r))
	assert.True(t, ServicesPending(r))
}

func TestDepartureInGraceBoundary(t *testing.T) {
	r := confirmedRequest()
	rules := DefaultRules()
	end := r.Departure.ScheduledAt.Add(rules.DepartureGrace)

	assert.True(t, DepartureInGrace(r, end.Add(-time.Second), rules))
	assert.False(t, DepartureInGrace(r, end, rules))
}

func TestNextTransitionsSkipsPast(t *testing.T) {
	r := confirmedRequest()
	got := NextTransitions(r, testNow.Add(3*time.Hour), DefaultRules())
	assert.Equal(t, []time.Time{r.Departure.ScheduledAt}, got)
}

func TestStatusLabels(t *testing.T) {
	assert.Equal(t, "Tail Number TBC", StatusTailNumberTBC.String())
	assert.Equal(t, "Error", Status(99).String())
}

package domain

import "time"

var testNow = time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

// confirmedRequest returns a request that derives Confirmed at testNow with
// arrival in two hours and departure in six.
func confirmedRequest() *Request {
	return &Request{
		ID:                11,
		Callsign:          "RCH123",
		TailNumber:        "06-6154",
		AircraftType:      "C17",
		Organisation:      Ref{ID: 3, Name: "Air Mobility Command"},
		Location:          Location{Code: "EGLL", Name: "Heathrow", Type: 1},
		HandlingAgent:     &Ref{ID: 9, Name: "Swissport"},
		FuelRequired:      FuelNone,
		HandlingConfirmed: true,
		CreatedAt:         testNow.Add(-48 * time.Hour),
		Arrival: Movement{
			Direction:   DirectionArrival,
			ScheduledAt: testNow.Add(2 * time.Hour),
			Airport:     "KDOV",
			CrewCount:   4,
		},
		Departure: Movement{
			Direction:   DirectionDeparture,
			ScheduledAt: testNow.Add(6 * time.Hour),
			Airport:     "ETAR",
			CrewCount:   4,
		},
		Services: []ServiceBooking{
			{ID: 100, ServiceID: 1, ServiceName: "Lavatory", Direction: DirectionArrival, State: ServiceConfirmed},
			{ID: 101, ServiceID: 2, ServiceName: "Catering", Direction: DirectionDeparture, State: ServiceConfirmed,
				Detail: ServiceDetail{FreeText: "12 crew meals"}},
		},
	}
}

func ptr[T any](v T) *T { return &v }

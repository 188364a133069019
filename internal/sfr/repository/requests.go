package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"sfr_ops_backend/internal/sfr/domain"

	"github.com/jackc/pgx/v5"
)

const requestSelectCols = `
	r.id, r.callsign, r.tail_number, r.aircraft_type,
	r.organisation_id, o.name,
	r.location_code, l.name, l.location_type,
	r.handling_agent_id, COALESCE(h.name, ''),
	r.fuel_required, r.fuel_quantity::float8, r.fuel_unit,
	r.is_cancelled, r.is_amended, r.is_amended_callsign, r.is_new,
	r.is_unable_to_support, r.is_aog, r.is_handling_confirmed,
	r.is_awaiting_departure_update_confirmation,
	r.status, r.created_by, r.created_at, r.updated_at`

func loadRequest(ctx context.Context, q querier, id int64) (*domain.Request, error) {
	var (
		req     domain.Request
		agentID *int64
		agentNm string
		fuelReq string
		status  int16
	)
	err := q.QueryRow(ctx, `
		SELECT`+requestSelectCols+`
		FROM sfr_requests r
		JOIN sfr_organisations o ON o.id = r.organisation_id
		JOIN sfr_locations l ON l.code = r.location_code
		LEFT JOIN sfr_handling_agents h ON h.id = r.handling_agent_id
		WHERE r.id = $1`, id).Scan(
		&req.ID, &req.Callsign, &req.TailNumber, &req.AircraftType,
		&req.Organisation.ID, &req.Organisation.Name,
		&req.Location.Code, &req.Location.Name, &req.Location.Type,
		&agentID, &agentNm,
		&fuelReq, &req.FuelQuantity, &req.FuelUnit,
		&req.Cancelled, &req.Amended, &req.AmendedCallsign, &req.New,
		&req.UnableToSupport, &req.AOG, &req.HandlingConfirmed,
		&req.AwaitingDepartureUpdate,
		&status, &req.CreatedBy, &req.CreatedAt, &req.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load request: %w", err)
	}
	req.FuelRequired = domain.FuelRequirement(fuelReq)
	req.Status = domain.Status(status)
	if agentID != nil {
		req.HandlingAgent = &domain.Ref{ID: *agentID, Name: agentNm}
	}

	if err := loadMovements(ctx, q, &req); err != nil {
		return nil, err
	}
	if err := loadServices(ctx, q, &req); err != nil {
		return nil, err
	}
	if err := loadFuel(ctx, q, &req); err != nil {
		return nil, err
	}
	if err := loadOpenSession(ctx, q, &req); err != nil {
		return nil, err
	}
	return &req, nil
}

func loadMovements(ctx context.Context, q querier, req *domain.Request) error {
	rows, err := q.Query(ctx, `
		SELECT id, direction, scheduled_at, airport, crew_count, has_passengers, passenger_count
		FROM sfr_movements
		WHERE request_id = $1`, req.ID)
	if err != nil {
		return fmt.Errorf("load movements: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var m domain.Movement
		var dir string
		if err := rows.Scan(&m.ID, &dir, &m.ScheduledAt, &m.Airport, &m.CrewCount, &m.HasPassengers, &m.PassengerCount); err != nil {
			return fmt.Errorf("scan movement: %w", err)
		}
		m.Direction = domain.Direction(dir)
		m.ScheduledAt = m.ScheduledAt.UTC()
		*req.Movement(m.Direction) = m
	}
	return rows.Err()
}

func loadServices(ctx context.Context, q querier, req *domain.Request) error {
	rows, err := q.Query(ctx, `
		SELECT b.id, b.service_id, s.name, b.direction, b.note, b.free_text,
			b.quantity::float8, b.quantity_unit, b.state, b.internal_note
		FROM sfr_service_bookings b
		JOIN sfr_services s ON s.id = b.service_id
		WHERE b.request_id = $1
		ORDER BY b.direction, b.id`, req.ID)
	if err != nil {
		return fmt.Errorf("load services: %w", err)
	}
	defer rows.Close()

	req.Services = make([]domain.ServiceBooking, 0)
	for rows.Next() {
		var b domain.ServiceBooking
		var dir, state string
		if err := rows.Scan(&b.ID, &b.ServiceID, &b.ServiceName, &dir, &b.Detail.Note, &b.Detail.FreeText,
			&b.Detail.Quantity, &b.Detail.QuantityUnit, &state, &b.InternalNote); err != nil {
			return fmt.Errorf("scan service: %w", err)
		}
		b.Direction = domain.Direction(dir)
		b.State = domain.ServiceState(state)
		req.Services = append(req.Services, b)
	}
	return rows.Err()
}

func loadFuel(ctx context.Context, q querier, req *domain.Request) error {
	var f domain.FuelBooking
	err := q.QueryRow(ctx, `
		SELECT is_confirmed, is_dla_contracted, has_release_file, updated_at
		FROM sfr_fuel_bookings
		WHERE request_id = $1`, req.ID).Scan(&f.Confirmed, &f.DLAContracted, &f.HasReleaseFile, &f.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("load fuel booking: %w", err)
	}
	req.Fuel = &f
	return nil
}

func loadOpenSession(ctx context.Context, q querier, req *domain.Request) error {
	var (
		s        domain.AmendmentSession
		original []byte
		services []byte
	)
	err := q.QueryRow(ctx, `
		SELECT id, request_id, is_gh_opened, is_gh_sent, departure_only, original, services,
			opened_by, opened_at, closed_at
		FROM sfr_amendment_sessions
		WHERE request_id = $1 AND is_gh_opened`, req.ID).Scan(
		&s.ID, &s.RequestID, &s.Open, &s.Sent, &s.DepartureOnly, &original, &services,
		&s.OpenedBy, &s.OpenedAt, &s.ClosedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("load amendment session: %w", err)
	}
	if err := json.Unmarshal(original, &s.Original); err != nil {
		return fmt.Errorf("decode session original: %w", err)
	}
	if err := json.Unmarshal(services, &s.Services); err != nil {
		return fmt.Errorf("decode session services: %w", err)
	}
	req.Session = &s
	return nil
}

// LoadRequest implements Tx.
func (q *queries) LoadRequest(ctx context.Context, id int64) (*domain.Request, error) {
	return loadRequest(ctx, q.tx, id)
}

// InsertRequest implements Tx. It writes the request, both movements and the
// initial service bookings, and fills in the generated ids.
func (q *queries) InsertRequest(ctx context.Context, req *domain.Request) (int64, error) {
	var agentID *int64
	if req.HandlingAgent != nil {
		agentID = &req.HandlingAgent.ID
	}
	err := q.tx.QueryRow(ctx, `
		INSERT INTO sfr_requests (
			callsign, tail_number, aircraft_type, organisation_id, location_code, handling_agent_id,
			fuel_required, fuel_quantity, fuel_unit, is_new, status, created_by, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $13)
		RETURNING id`,
		req.Callsign, req.TailNumber, req.AircraftType, req.Organisation.ID, req.Location.Code, agentID,
		string(req.FuelRequired), req.FuelQuantity, req.FuelUnit, req.New, int16(req.Status),
		req.CreatedBy, req.CreatedAt,
	).Scan(&req.ID)
	if err != nil {
		return 0, fmt.Errorf("insert request: %w", err)
	}

	for _, m := range []*domain.Movement{&req.Arrival, &req.Departure} {
		err := q.tx.QueryRow(ctx, `
			INSERT INTO sfr_movements (request_id, direction, scheduled_at, airport, crew_count, has_passengers, passenger_count)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
			RETURNING id`,
			req.ID, string(m.Direction), m.ScheduledAt, m.Airport, m.CrewCount, m.HasPassengers, m.PassengerCount,
		).Scan(&m.ID)
		if err != nil {
			return 0, fmt.Errorf("insert movement: %w", err)
		}
	}

	if err := q.saveServices(ctx, req); err != nil {
		return 0, err
	}
	return req.ID, nil
}

// SaveRequest implements Tx. It writes the whole aggregate.
func (q *queries) SaveRequest(ctx context.Context, req *domain.Request) error {
	var agentID *int64
	if req.HandlingAgent != nil {
		agentID = &req.HandlingAgent.ID
	}
	tag, err := q.tx.Exec(ctx, `
		UPDATE sfr_requests SET
			callsign = $2, tail_number = $3, aircraft_type = $4, handling_agent_id = $5,
			fuel_required = $6, fuel_quantity = $7, fuel_unit = $8,
			is_cancelled = $9, is_amended = $10, is_amended_callsign = $11, is_new = $12,
			is_unable_to_support = $13, is_aog = $14, is_handling_confirmed = $15,
			is_awaiting_departure_update_confirmation = $16,
			status = $17, updated_at = $18
		WHERE id = $1`,
		req.ID, req.Callsign, req.TailNumber, req.AircraftType, agentID,
		string(req.FuelRequired), req.FuelQuantity, req.FuelUnit,
		req.Cancelled, req.Amended, req.AmendedCallsign, req.New,
		req.UnableToSupport, req.AOG, req.HandlingConfirmed,
		req.AwaitingDepartureUpdate,
		int16(req.Status), req.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("update request: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}

	for _, m := range []domain.Movement{req.Arrival, req.Departure} {
		if _, err := q.tx.Exec(ctx, `
			UPDATE sfr_movements SET
				scheduled_at = $3, airport = $4, crew_count = $5, has_passengers = $6, passenger_count = $7
			WHERE request_id = $1 AND direction = $2`,
			req.ID, string(m.Direction), m.ScheduledAt, m.Airport, m.CrewCount, m.HasPassengers, m.PassengerCount,
		); err != nil {
			return fmt.Errorf("update movement: %w", err)
		}
	}

	if err := q.saveServices(ctx, req); err != nil {
		return err
	}
	if err := q.saveFuel(ctx, req); err != nil {
		return err
	}
	return q.saveSession(ctx, req)
}

func (q *queries) saveServices(ctx context.Context, req *domain.Request) error {
	keep := make([]int64, 0, len(req.Services))
	for _, b := range req.Services {
		if b.ID != 0 {
			keep = append(keep, b.ID)
		}
	}
	if _, err := q.tx.Exec(ctx, `
		DELETE FROM sfr_service_bookings
		WHERE request_id = $1 AND NOT (id = ANY($2))`, req.ID, keep); err != nil {
		return fmt.Errorf("delete services: %w", err)
	}

	for i := range req.Services {
		b := &req.Services[i]
		if b.ID != 0 {
			if _, err := q.tx.Exec(ctx, `
				UPDATE sfr_service_bookings SET
					note = $2, free_text = $3, quantity = $4, quantity_unit = $5, state = $6, internal_note = $7
				WHERE id = $1`,
				b.ID, b.Detail.Note, b.Detail.FreeText, b.Detail.Quantity, b.Detail.QuantityUnit,
				string(b.State), b.InternalNote,
			); err != nil {
				return fmt.Errorf("update service: %w", err)
			}
			continue
		}
		err := q.tx.QueryRow(ctx, `
			INSERT INTO sfr_service_bookings (
				request_id, service_id, direction, note, free_text, quantity, quantity_unit, state, internal_note
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
			RETURNING id`,
			req.ID, b.ServiceID, string(b.Direction), b.Detail.Note, b.Detail.FreeText, b.Detail.Quantity,
			b.Detail.QuantityUnit, string(b.State), b.InternalNote,
		).Scan(&b.ID)
		if err != nil {
			return fmt.Errorf("insert service: %w", err)
		}
	}
	return nil
}

func (q *queries) saveFuel(ctx context.Context, req *domain.Request) error {
	if req.Fuel == nil {
		_, err := q.tx.Exec(ctx, `DELETE FROM sfr_fuel_bookings WHERE request_id = $1`, req.ID)
		return err
	}
	_, err := q.tx.Exec(ctx, `
		INSERT INTO sfr_fuel_bookings (request_id, is_confirmed, is_dla_contracted, has_release_file, updated_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (request_id) DO UPDATE SET
			is_confirmed = EXCLUDED.is_confirmed,
			is_dla_contracted = EXCLUDED.is_dla_contracted,
			has_release_file = EXCLUDED.has_release_file,
			updated_at = EXCLUDED.updated_at`,
		req.ID, req.Fuel.Confirmed, req.Fuel.DLAContracted, req.Fuel.HasReleaseFile, req.Fuel.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("upsert fuel booking: %w", err)
	}
	return nil
}

// saveSession upserts the current session. A second open session for the same
// request violates uq_sfr_amendment_sessions_open.
func (q *queries) saveSession(ctx context.Context, req *domain.Request) error {
	s := req.Session
	if s == nil {
		return nil
	}
	original, err := json.Marshal(s.Original)
	if err != nil {
		return fmt.Errorf("encode session original: %w", err)
	}
	services := s.Services
	if services == nil {
		services = []domain.SessionServiceChange{}
	}
	servicesJSON, err := json.Marshal(services)
	if err != nil {
		return fmt.Errorf("encode session services: %w", err)
	}
	_, err = q.tx.Exec(ctx, `
		INSERT INTO sfr_amendment_sessions (
			id, request_id, is_gh_opened, is_gh_sent, departure_only, original, services, opened_by, opened_at, closed_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (id) DO UPDATE SET
			is_gh_opened = EXCLUDED.is_gh_opened,
			is_gh_sent = EXCLUDED.is_gh_sent,
			departure_only = EXCLUDED.departure_only,
			services = EXCLUDED.services,
			closed_at = EXCLUDED.closed_at`,
		s.ID, req.ID, s.Open, s.Sent, s.DepartureOnly, original, servicesJSON, s.OpenedBy, s.OpenedAt, s.ClosedAt,
	)
	if err != nil {
		return fmt.Errorf("save amendment session: %w", err)
	}
	return nil
}

// HasOverlapping implements Tx: another live request for the same aircraft and
// organisation with an overlapping window.
func (q *queries) HasOverlapping(ctx context.Context, req *domain.Request) (bool, error) {
	var exists bool
	err := q.tx.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1
			FROM sfr_requests r
			JOIN sfr_movements a ON a.request_id = r.id AND a.direction = 'ARRIVAL'
			JOIN sfr_movements d ON d.request_id = r.id AND d.direction = 'DEPARTURE'
			WHERE r.organisation_id = $1
				AND lower(r.callsign) = lower($2)
				AND lower(r.tail_number) = lower($3)
				AND NOT r.is_cancelled
				AND r.id <> $4
				AND a.scheduled_at < $6
				AND $5 < d.scheduled_at
		)`,
		req.Organisation.ID, req.Callsign, req.TailNumber, req.ID,
		req.Arrival.ScheduledAt, req.Departure.ScheduledAt,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check overlapping requests: %w", err)
	}
	return exists, nil
}

// UpdateStatus implements Tx.
func (q *queries) UpdateStatus(ctx context.Context, id int64, status domain.Status) error {
	_, err := q.tx.Exec(ctx, `UPDATE sfr_requests SET status = $2 WHERE id = $1`, id, int16(status))
	if err != nil {
		return fmt.Errorf("update status: %w", err)
	}
	return nil
}

// CountOpenSessions implements Tx. Anything above one is a consistency bug.
func (q *queries) CountOpenSessions(ctx context.Context, id int64) (int, error) {
	var n int
	err := q.tx.QueryRow(ctx, `
		SELECT count(*) FROM sfr_amendment_sessions WHERE request_id = $1 AND is_gh_opened`, id).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count open sessions: %w", err)
	}
	return n, nil
}

// LockOrganisation implements Tx. It serialises duplicate checks of one
// organisation until the transaction ends.
func (q *queries) LockOrganisation(ctx context.Context, organisationID int64) error {
	_, err := q.tx.Exec(ctx, `SELECT pg_advisory_xact_lock($1::bigint)`, organisationID)
	if err != nil {
		return fmt.Errorf("lock organisation: %w", err)
	}
	return nil
}

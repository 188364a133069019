package repository

import (
	"context"
	"errors"
	"fmt"

	"sfr_ops_backend/internal/sfr/domain"
	"sfr_ops_backend/platform/apperr"

	"github.com/jackc/pgx/v5"
)

// LookupOrganisation implements Tx.
func (q *queries) LookupOrganisation(ctx context.Context, id int64) (domain.Ref, error) {
	ref := domain.Ref{ID: id}
	err := q.tx.QueryRow(ctx, `SELECT name FROM sfr_organisations WHERE id = $1`, id).Scan(&ref.Name)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Ref{}, apperr.Validation("unknown organisation")
	}
	if err != nil {
		return domain.Ref{}, fmt.Errorf("lookup organisation: %w", err)
	}
	return ref, nil
}

// LookupLocation implements Tx.
func (q *queries) LookupLocation(ctx context.Context, code string) (domain.Location, error) {
	loc := domain.Location{Code: code}
	err := q.tx.QueryRow(ctx, `SELECT name, location_type FROM sfr_locations WHERE code = $1`, code).
		Scan(&loc.Name, &loc.Type)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Location{}, apperr.Validation("unknown location " + code)
	}
	if err != nil {
		return domain.Location{}, fmt.Errorf("lookup location: %w", err)
	}
	return loc, nil
}

// LookupHandlingAgent implements Tx.
func (q *queries) LookupHandlingAgent(ctx context.Context, id int64) (domain.Ref, error) {
	ref := domain.Ref{ID: id}
	err := q.tx.QueryRow(ctx, `SELECT name FROM sfr_handling_agents WHERE id = $1`, id).Scan(&ref.Name)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Ref{}, apperr.Validation("unknown handling agent")
	}
	if err != nil {
		return domain.Ref{}, fmt.Errorf("lookup handling agent: %w", err)
	}
	return ref, nil
}

// LookupService implements Tx.
func (q *queries) LookupService(ctx context.Context, id int64) (string, error) {
	var name string
	err := q.tx.QueryRow(ctx, `SELECT name FROM sfr_services WHERE id = $1 AND is_active`, id).Scan(&name)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", apperr.Validation(fmt.Sprintf("unknown service %d", id))
	}
	if err != nil {
		return "", fmt.Errorf("lookup service: %w", err)
	}
	return name, nil
}

// HandlingAgentEmail returns the notification address of the request's
// handling agent. It returns "" when no agent or no address is set.
func (r *Repository) HandlingAgentEmail(ctx context.Context, requestID int64) (string, error) {
	var addr *string
	err := r.pool.QueryRow(ctx, `
		SELECT a.email
		FROM sfr_requests r
		JOIN sfr_handling_agents a ON a.id = r.handling_agent_id
		WHERE r.id = $1`, requestID).Scan(&addr)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("lookup handling agent email: %w", err)
	}
	if addr == nil {
		return "", nil
	}
	return *addr, nil
}

// Package repository persists the SFR aggregate in Postgres.
package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"sfr_ops_backend/internal/sfr/domain"
	"sfr_ops_backend/platform/apperr"
	"sfr_ops_backend/platform/db"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var ErrNotFound = errors.New("request not found")

// Tx is the unit of work handed to lifecycle operations. Everything done
// through one Tx commits or rolls back together.
type Tx interface {
	LoadRequest(ctx context.Context, id int64) (*domain.Request, error)
	InsertRequest(ctx context.Context, req *domain.Request) (int64, error)
	SaveRequest(ctx context.Context, req *domain.Request) error
	UpdateStatus(ctx context.Context, id int64, status domain.Status) error
	CountOpenSessions(ctx context.Context, id int64) (int, error)
	LockOrganisation(ctx context.Context, organisationID int64) error
	HasOverlapping(ctx context.Context, req *domain.Request) (bool, error)
	AppendActivity(ctx context.Context, entries []domain.ActivityEntry) error
	LookupOrganisation(ctx context.Context, id int64) (domain.Ref, error)
	LookupLocation(ctx context.Context, code string) (domain.Location, error)
	LookupHandlingAgent(ctx context.Context, id int64) (domain.Ref, error)
	LookupService(ctx context.Context, id int64) (string, error)
}

// Store opens units of work.
type Store interface {
	// WithRequestLock runs fn while holding the row lock of the request.
	WithRequestLock(ctx context.Context, requestID int64, fn func(Tx) error) error
	// WithTx runs fn in a transaction without locking an existing request.
	WithTx(ctx context.Context, fn func(Tx) error) error
	// GetRequest loads a request outside any transaction for display.
	GetRequest(ctx context.Context, id int64) (*domain.Request, error)
}

// Repository is the pgx implementation of Store.
type Repository struct {
	pool        *pgxpool.Pool
	lockTimeout time.Duration
}

// New creates a repository. lockTimeout bounds how long a mutation waits for
// the request row lock before failing with a conflict.
func New(pool *pgxpool.Pool, lockTimeout time.Duration) *Repository {
	if lockTimeout <= 0 {
		lockTimeout = 5 * time.Second
	}
	return &Repository{pool: pool, lockTimeout: lockTimeout}
}

// WithRequestLock implements Store.
func (r *Repository) WithRequestLock(ctx context.Context, requestID int64, fn func(Tx) error) error {
	err := db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `SELECT set_config('lock_timeout', $1, true)`,
			fmt.Sprintf("%dms", r.lockTimeout.Milliseconds())); err != nil {
			return fmt.Errorf("set lock timeout: %w", err)
		}

		var id int64
		err := tx.QueryRow(ctx, `SELECT id FROM sfr_requests WHERE id = $1 FOR UPDATE`, requestID).Scan(&id)
		if errors.Is(err, pgx.ErrNoRows) {
			return apperr.NotFound("request not found").WithOp("sfr.lock")
		}
		if err != nil {
			return err
		}
		return fn(&queries{tx: tx})
	})
	return mapError(err)
}

// WithTx implements Store.
func (r *Repository) WithTx(ctx context.Context, fn func(Tx) error) error {
	err := db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(&queries{tx: tx})
	})
	return mapError(err)
}

// GetRequest implements Store.
func (r *Repository) GetRequest(ctx context.Context, id int64) (*domain.Request, error) {
	req, err := loadRequest(ctx, r.pool, id)
	return req, mapError(err)
}

// mapError turns lock and uniqueness failures into retryable conflicts.
func mapError(err error) error {
	if err == nil {
		return nil
	}
	var domainErr *apperr.Error
	if errors.As(err, &domainErr) {
		return err
	}
	if errors.Is(err, ErrNotFound) {
		return apperr.Wrap(apperr.KindNotFound, "request not found", err)
	}
	if db.IsLockTimeout(err) {
		return apperr.Wrap(apperr.KindConflict, "request is being modified by someone else, retry", err)
	}
	if db.IsUniqueViolation(err) {
		return apperr.Wrap(apperr.KindConflict, "concurrent modification detected, retry", err)
	}
	return err
}

// querier is satisfied by *pgxpool.Pool and pgx.Tx.
type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// queries implements Tx on top of a pgx transaction.
type queries struct {
	tx pgx.Tx
}

var _ Tx = (*queries)(nil)
var _ Store = (*Repository)(nil)

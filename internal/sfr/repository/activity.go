package repository

import (
	"context"
	"fmt"
	"time"

	"sfr_ops_backend/internal/sfr/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// AppendActivity implements Tx. Entries are never updated or deleted.
func (q *queries) AppendActivity(ctx context.Context, entries []domain.ActivityEntry) error {
	if len(entries) == 0 {
		return nil
	}
	rows := make([][]any, 0, len(entries))
	for _, e := range entries {
		rows = append(rows, []any{e.ID, e.RequestID, e.Field, e.OldValue, e.NewValue, e.Detail, e.ActorID, e.ActorText, e.CreatedAt})
	}
	_, err := q.tx.CopyFrom(ctx,
		pgx.Identifier{"sfr_activity_log"},
		[]string{"id", "request_id", "field_name", "old_value", "new_value", "detail", "actor_id", "actor_text", "created_at"},
		pgx.CopyFromRows(rows),
	)
	if err != nil {
		return fmt.Errorf("append activity: %w", err)
	}
	return nil
}

// ActivityLogEntry is an activity row as shown to users.
type ActivityLogEntry struct {
	ID        uuid.UUID
	Field     *string
	OldValue  *string
	NewValue  *string
	Detail    *string
	ActorID   *int64
	ActorText *string
	CreatedAt time.Time
}

// ListActivity returns the activity log of a request, newest first.
func (r *Repository) ListActivity(ctx context.Context, requestID int64, limit int) ([]ActivityLogEntry, error) {
	if limit < 1 || limit > 500 {
		limit = 100
	}
	rows, err := r.pool.Query(ctx, `
		SELECT id, field_name, old_value, new_value, detail, actor_id, actor_text, created_at
		FROM sfr_activity_log
		WHERE request_id = $1
		ORDER BY created_at DESC
		LIMIT $2`, requestID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]ActivityLogEntry, 0)
	for rows.Next() {
		var e ActivityLogEntry
		if err := rows.Scan(&e.ID, &e.Field, &e.OldValue, &e.NewValue, &e.Detail, &e.ActorID, &e.ActorText, &e.CreatedAt); err != nil {
			return nil, err
		}
		items = append(items, e)
	}
	return items, rows.Err()
}

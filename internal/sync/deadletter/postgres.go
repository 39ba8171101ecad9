package deadletter

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"regionsync/internal/sync/models"
	"regionsync/pkg/platform/sqlerr"
	"regionsync/pkg/platform/tx"
)

// Postgres stores dead letters in sync_dead_letters.
type Postgres struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db}
}

// DeadLetter is idempotent on the dead letter id.
func (p *Postgres) DeadLetter(ctx context.Context, dl models.DeadLetter) error {
	query := `
		INSERT INTO sync_dead_letters (
			id, sync_event_id, entity_type, entity_id, source_region, is_deleted,
			attempt, reason, last_error, payload, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (id) DO NOTHING
	`
	_, err := tx.Exec(ctx, p.db).ExecContext(ctx, query,
		dl.ID, dl.SyncEventID, dl.EntityType, dl.EntityID, dl.SourceRegion, dl.IsDeleted,
		dl.Attempt, dl.Reason, dl.LastError, dl.Payload, dl.CreatedAt,
	)
	if err != nil {
		return sqlerr.Translate("insert dead letter", err)
	}
	return nil
}

func (p *Postgres) List(ctx context.Context, f Filter) ([]models.DeadLetter, error) {
	var (
		where []string
		args  []any
	)
	if f.EntityType != "" {
		args = append(args, f.EntityType)
		where = append(where, fmt.Sprintf("entity_type = $%d", len(args)))
	}
	if f.Reason != "" {
		args = append(args, f.Reason)
		where = append(where, fmt.Sprintf("reason = $%d", len(args)))
	}
	query := `
		SELECT id, sync_event_id, entity_type, entity_id, source_region, is_deleted,
		       attempt, reason, last_error, payload, created_at
		FROM sync_dead_letters`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	args = append(args, f.limit())
	query += fmt.Sprintf(" ORDER BY created_at DESC LIMIT $%d", len(args))

	rows, err := p.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, sqlerr.Translate("list dead letters", err)
	}
	defer rows.Close()

	out := make([]models.DeadLetter, 0)
	for rows.Next() {
		var dl models.DeadLetter
		if err := rows.Scan(&dl.ID, &dl.SyncEventID, &dl.EntityType, &dl.EntityID, &dl.SourceRegion,
			&dl.IsDeleted, &dl.Attempt, &dl.Reason, &dl.LastError, &dl.Payload, &dl.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan dead letter: %w", err)
		}
		dl.CreatedAt = dl.CreatedAt.UTC()
		out = append(out, dl)
	}
	return out, rows.Err()
}

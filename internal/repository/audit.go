package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"ropewalk/internal/audit"
	"ropewalk/internal/database"
	"ropewalk/internal/models"
)

// AuditRepository is the Postgres audit.Recorder. Append-only; audit rows
// are never updated or deleted.
type AuditRepository struct {
	db *database.DB
}

func NewAuditRepository(db *database.DB) *AuditRepository {
	return &AuditRepository{db: db}
}

func (r *AuditRepository) Record(ctx context.Context, entry audit.Entry) error {
	payload, err := json.Marshal(entry.Payload)
	if err != nil {
		return fmt.Errorf("failed to marshal audit payload: %w", err)
	}

	query := `
		INSERT INTO audit_log (event_id, actor_id, action, payload, created_at)
		VALUES ($1, $2, $3, $4, $5)`

	_, err = r.db.ExecContext(ctx, query,
		entry.EventID,
		entry.ActorID,
		entry.Action,
		payload,
		entry.Timestamp,
	)
	return err
}

// ListByEvent returns the audit trail for one event, oldest first.
func (r *AuditRepository) ListByEvent(ctx context.Context, eventID int64, limit int) ([]models.AuditEntry, error) {
	query := `
		SELECT id, event_id, actor_id, action, payload, created_at
		FROM audit_log
		WHERE event_id = $1
		ORDER BY created_at ASC
		LIMIT $2`

	rows, err := r.db.QueryContext(ctx, query, eventID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []models.AuditEntry
	for rows.Next() {
		var e models.AuditEntry
		if err := rows.Scan(&e.ID, &e.EventID, &e.ActorID, &e.Action, &e.Payload, &e.Timestamp); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}

	return entries, rows.Err()
}

package repository

import (
	"context"
	"database/sql"
	"time"

	"ropewalk/internal/database"
	"ropewalk/internal/models"

	"github.com/lib/pq"
)

// ParticipationRepository is the Postgres admission.ParticipationStore.
type ParticipationRepository struct {
	db *database.DB
}

func NewParticipationRepository(db *database.DB) *ParticipationRepository {
	return &ParticipationRepository{db: db}
}

const participationColumns = `id, event_id, user_id, kind, status, ticket_type_code, sessions, created_at, cancelled_at, cancellation_reason`

func scanParticipation(row interface{ Scan(...interface{}) error }) (*models.Participation, error) {
	p := &models.Participation{}
	err := row.Scan(
		&p.ID,
		&p.EventID,
		&p.UserID,
		&p.Kind,
		&p.Status,
		&p.TicketTypeCode,
		pq.Array(&p.Sessions),
		&p.CreatedAt,
		&p.CancelledAt,
		&p.CancellationReason,
	)
	if err != nil {
		return nil, err
	}
	return p, nil
}

// FindOpen returns the user's non-terminal participation for the key. A
// retried admission must find its waitlisted row too, not just an active one,
// or the retry would enqueue the same user twice. ACTIVE sorts before
// WAITLISTED, so an active row wins when both exist.
func (r *ParticipationRepository) FindOpen(ctx context.Context, eventID, userID int64, kind string) (*models.Participation, error) {
	query := `
		SELECT ` + participationColumns + `
		FROM participations
		WHERE event_id = $1 AND user_id = $2 AND kind = $3 AND status IN ('ACTIVE', 'WAITLISTED')
		ORDER BY status
		LIMIT 1`

	p, err := scanParticipation(r.db.QueryRowContext(ctx, query, eventID, userID, kind))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return p, err
}

func (r *ParticipationRepository) GetByID(ctx context.Context, id string) (*models.Participation, error) {
	query := `
		SELECT ` + participationColumns + `
		FROM participations
		WHERE id = $1`

	p, err := scanParticipation(r.db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return p, err
}

func (r *ParticipationRepository) Create(ctx context.Context, p *models.Participation) error {
	query := `
		INSERT INTO participations (id, event_id, user_id, kind, status, ticket_type_code, sessions, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	_, err := r.db.ExecContext(ctx, query,
		p.ID,
		p.EventID,
		p.UserID,
		p.Kind,
		p.Status,
		p.TicketTypeCode,
		pq.Array(p.Sessions),
		p.CreatedAt,
	)
	return err
}

func (r *ParticipationRepository) SetStatus(ctx context.Context, id, status string, cancelledAt *time.Time, reason *string) error {
	query := `
		UPDATE participations
		SET status = $1, cancelled_at = $2, cancellation_reason = $3
		WHERE id = $4`

	_, err := r.db.ExecContext(ctx, query, status, cancelledAt, reason, id)
	return err
}

// ListWaitlisted returns the event's waitlist ordered by creation time,
// which is the promotion order.
func (r *ParticipationRepository) ListWaitlisted(ctx context.Context, eventID int64) ([]models.Participation, error) {
	query := `
		SELECT ` + participationColumns + `
		FROM participations
		WHERE event_id = $1 AND status = 'WAITLISTED'
		ORDER BY created_at ASC`

	rows, err := r.db.QueryContext(ctx, query, eventID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []models.Participation
	for rows.Next() {
		p, err := scanParticipation(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *p)
	}

	return result, rows.Err()
}

// CountByStatus backs the capacity dashboard's waitlist counter.
func (r *ParticipationRepository) CountByStatus(ctx context.Context, eventID int64, status string) (int, error) {
	var count int
	query := `SELECT COUNT(*) FROM participations WHERE event_id = $1 AND status = $2`
	err := r.db.QueryRowContext(ctx, query, eventID, status).Scan(&count)
	return count, err
}

// ListByUser returns all of a user's participations, newest first.
func (r *ParticipationRepository) ListByUser(ctx context.Context, eventID, userID int64) ([]models.Participation, error) {
	query := `
		SELECT ` + participationColumns + `
		FROM participations
		WHERE event_id = $1 AND user_id = $2
		ORDER BY created_at DESC`

	rows, err := r.db.QueryContext(ctx, query, eventID, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []models.Participation
	for rows.Next() {
		p, err := scanParticipation(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *p)
	}

	return result, rows.Err()
}

// EventsWithWaitlist lists event ids having at least one waitlisted
// participation; the promotion sweep walks this set.
func (r *ParticipationRepository) EventsWithWaitlist(ctx context.Context) ([]int64, error) {
	query := `SELECT DISTINCT event_id FROM participations WHERE status = 'WAITLISTED'`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}

	return ids, rows.Err()
}

package repository

import (
	"context"
	"database/sql"

	"ropewalk/internal/capacity"
	"ropewalk/internal/database"
	"ropewalk/internal/models"

	"github.com/lib/pq"
)

type EventRepository struct {
	db *database.DB
}

func NewEventRepository(db *database.DB) *EventRepository {
	return &EventRepository{db: db}
}

// Create inserts the event together with its sessions and ticket types in one
// transaction so a half-created event is never visible.
func (r *EventRepository) Create(ctx context.Context, event *models.Event, sessions []models.Session, ticketTypes []models.TicketType) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	query := `
		INSERT INTO events (title, description, type, start_date, end_date, capacity, social_session)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at, updated_at`

	err = tx.QueryRowContext(ctx, query,
		event.Title,
		event.Description,
		event.Type,
		event.StartDate,
		event.EndDate,
		event.Capacity,
		event.SocialSession,
	).Scan(&event.ID, &event.CreatedAt, &event.UpdatedAt)
	if err != nil {
		return err
	}

	for i := range sessions {
		s := &sessions[i]
		s.EventID = event.ID
		insertSession := `
			INSERT INTO sessions (event_id, code, title, capacity, registered_count, is_active)
			VALUES ($1, $2, $3, $4, 0, TRUE)`
		if _, err := tx.ExecContext(ctx, insertSession, event.ID, s.Code, s.Title, s.Capacity); err != nil {
			return err
		}
	}

	for i := range ticketTypes {
		tt := &ticketTypes[i]
		tt.EventID = event.ID
		insertTicketType := `
			INSERT INTO ticket_types (event_id, code, name, included_sessions, price_cents, sales_open_at, sales_close_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7)`
		if _, err := tx.ExecContext(ctx, insertTicketType,
			event.ID, tt.Code, tt.Name, pq.Array(tt.IncludedSessions),
			tt.PriceCents, tt.SalesOpenAt, tt.SalesCloseAt); err != nil {
			return err
		}
	}

	return tx.Commit()
}

func (r *EventRepository) GetByID(ctx context.Context, id int64) (*models.Event, error) {
	event := &models.Event{}
	query := `
		SELECT id, title, description, type, start_date, end_date, capacity, social_session, created_at, updated_at
		FROM events
		WHERE id = $1`

	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&event.ID,
		&event.Title,
		&event.Description,
		&event.Type,
		&event.StartDate,
		&event.EndDate,
		&event.Capacity,
		&event.SocialSession,
		&event.CreatedAt,
		&event.UpdatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, nil
	}

	return event, err
}

func (r *EventRepository) GetSessions(ctx context.Context, eventID int64) ([]models.Session, error) {
	query := `
		SELECT event_id, code, title, capacity, registered_count, is_active
		FROM sessions
		WHERE event_id = $1
		ORDER BY code`

	rows, err := r.db.QueryContext(ctx, query, eventID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sessions []models.Session
	for rows.Next() {
		var s models.Session
		err := rows.Scan(&s.EventID, &s.Code, &s.Title, &s.Capacity, &s.Registered, &s.Active)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, s)
	}

	return sessions, rows.Err()
}

func (r *EventRepository) GetTicketType(ctx context.Context, eventID int64, code string) (*models.TicketType, error) {
	tt := &models.TicketType{}
	query := `
		SELECT event_id, code, name, included_sessions, price_cents, sales_open_at, sales_close_at
		FROM ticket_types
		WHERE event_id = $1 AND code = $2`

	err := r.db.QueryRowContext(ctx, query, eventID, code).Scan(
		&tt.EventID,
		&tt.Code,
		&tt.Name,
		pq.Array(&tt.IncludedSessions),
		&tt.PriceCents,
		&tt.SalesOpenAt,
		&tt.SalesCloseAt,
	)

	if err == sql.ErrNoRows {
		return nil, nil
	}

	return tt, err
}

func (r *EventRepository) GetTicketTypes(ctx context.Context, eventID int64) ([]models.TicketType, error) {
	query := `
		SELECT event_id, code, name, included_sessions, price_cents, sales_open_at, sales_close_at
		FROM ticket_types
		WHERE event_id = $1
		ORDER BY code`

	rows, err := r.db.QueryContext(ctx, query, eventID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ticketTypes []models.TicketType
	for rows.Next() {
		var tt models.TicketType
		err := rows.Scan(&tt.EventID, &tt.Code, &tt.Name, pq.Array(&tt.IncludedSessions),
			&tt.PriceCents, &tt.SalesOpenAt, &tt.SalesCloseAt)
		if err != nil {
			return nil, err
		}
		ticketTypes = append(ticketTypes, tt)
	}

	return ticketTypes, rows.Err()
}

// SaveSessionCounts writes the matrix's registered counters back to the
// sessions table. Called after admission mutations; the in-memory matrix
// stays authoritative between writes.
func (r *EventRepository) SaveSessionCounts(ctx context.Context, snap capacity.Snapshot) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	query := `UPDATE sessions SET registered_count = $1 WHERE event_id = $2 AND code = $3`
	for _, s := range snap.Sessions {
		if _, err := tx.ExecContext(ctx, query, s.Registered, snap.EventID, s.Code); err != nil {
			return err
		}
	}

	return tx.Commit()
}

// LoadMatrix implements capacity.Loader: hydrates the per-event capacity
// aggregate from the event row, its sessions and the persisted check-ins.
func (r *EventRepository) LoadMatrix(ctx context.Context, eventID int64) (*capacity.Matrix, error) {
	event, err := r.GetByID(ctx, eventID)
	if err != nil {
		return nil, err
	}
	if event == nil {
		return nil, sql.ErrNoRows
	}

	sessions, err := r.GetSessions(ctx, eventID)
	if err != nil {
		return nil, err
	}

	matrix := capacity.NewMatrix(eventID, event.Capacity, sessions)

	var checkedIn int
	countQuery := `SELECT COUNT(*) FROM check_ins WHERE event_id = $1`
	if err := r.db.QueryRowContext(ctx, countQuery, eventID).Scan(&checkedIn); err != nil {
		return nil, err
	}
	matrix.SetCheckedIn(checkedIn)

	return matrix, nil
}

func (r *EventRepository) List(ctx context.Context, page, pageSize int) ([]models.Event, error) {
	query := `
		SELECT id, title, description, type, start_date, end_date, capacity, social_session, created_at, updated_at
		FROM events
		ORDER BY start_date ASC`

	var args []interface{}
	if page > 0 && pageSize > 0 {
		query += ` LIMIT $1 OFFSET $2`
		args = append(args, pageSize, (page-1)*pageSize)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []models.Event
	for rows.Next() {
		var event models.Event
		err := rows.Scan(
			&event.ID,
			&event.Title,
			&event.Description,
			&event.Type,
			&event.StartDate,
			&event.EndDate,
			&event.Capacity,
			&event.SocialSession,
			&event.CreatedAt,
			&event.UpdatedAt,
		)
		if err != nil {
			return nil, err
		}
		events = append(events, event)
	}

	return events, rows.Err()
}

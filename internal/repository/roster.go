package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"ropewalk/internal/database"
	"ropewalk/internal/models"
)

// RosterRepository answers roster lookups for the sync reconciler and serves
// the attendee listing of the check-in interface. An attendee is an active or
// waitlisted participation joined with its user.
type RosterRepository struct {
	db *database.DB
}

func NewRosterRepository(db *database.DB) *RosterRepository {
	return &RosterRepository{db: db}
}

// GetRosterEntry implements checkin.RosterLookup. Returns nil when the
// attendee id is not on the event's roster.
func (r *RosterRepository) GetRosterEntry(ctx context.Context, eventID int64, attendeeID string) (*models.RosterEntry, error) {
	entry := &models.RosterEntry{}
	query := `
		SELECT p.id, p.user_id, u.scene_name, p.status
		FROM participations p
		JOIN users u ON u.user_id = p.user_id
		WHERE p.event_id = $1 AND p.id = $2 AND p.status IN ('ACTIVE', 'WAITLISTED')`

	err := r.db.QueryRowContext(ctx, query, eventID, attendeeID).Scan(
		&entry.AttendeeID,
		&entry.UserID,
		&entry.SceneName,
		&entry.RegistrationStatus,
	)

	if err == sql.ErrNoRows {
		return nil, nil
	}

	return entry, err
}

// ListAttendees returns the paginated roster with an optional search over
// scene name and email and an optional registration status filter.
func (r *RosterRepository) ListAttendees(ctx context.Context, eventID int64, searchTerm, status string, page, pageSize int) ([]models.AttendeeResponse, int, error) {
	var args []interface{}
	argIndex := 1

	baseWhere := ` FROM participations p
		JOIN users u ON u.user_id = p.user_id
		LEFT JOIN check_ins c ON c.event_id = p.event_id AND c.attendee_id = p.id
		WHERE p.event_id = $1 AND p.status IN ('ACTIVE', 'WAITLISTED')`
	args = append(args, eventID)
	argIndex++

	if searchTerm != "" {
		baseWhere += fmt.Sprintf(" AND (u.scene_name ILIKE $%d OR u.email ILIKE $%d)", argIndex, argIndex)
		args = append(args, "%"+searchTerm+"%")
		argIndex++
	}

	if status != "" {
		baseWhere += fmt.Sprintf(" AND p.status = $%d", argIndex)
		args = append(args, status)
		argIndex++
	}

	var totalCount int
	countQuery := `SELECT COUNT(*)` + baseWhere
	if err := r.db.QueryRowContext(ctx, countQuery, args...).Scan(&totalCount); err != nil {
		return nil, 0, err
	}

	query := `
		SELECT p.id, p.user_id, u.scene_name, u.pronouns, p.status, c.check_in_time` + baseWhere + `
		ORDER BY p.status, u.scene_name`

	if page > 0 && pageSize > 0 {
		query += fmt.Sprintf(" LIMIT $%d OFFSET $%d", argIndex, argIndex+1)
		args = append(args, pageSize, (page-1)*pageSize)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var attendees []models.AttendeeResponse
	for rows.Next() {
		var a models.AttendeeResponse
		var checkInTime sql.NullTime
		err := rows.Scan(&a.AttendeeID, &a.UserID, &a.SceneName, &a.Pronouns, &a.RegistrationStatus, &checkInTime)
		if err != nil {
			return nil, 0, err
		}
		if checkInTime.Valid {
			formatted := checkInTime.Time.UTC().Format(time.RFC3339)
			a.CheckInTime = &formatted
			a.RegistrationStatus = "CHECKED_IN"
		}
		attendees = append(attendees, a)
	}

	return attendees, totalCount, rows.Err()
}

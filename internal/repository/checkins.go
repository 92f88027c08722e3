package repository

import (
	"context"

	"ropewalk/internal/database"
	"ropewalk/internal/models"
)

// CheckInRepository is the Postgres checkin.RecordStore.
type CheckInRepository struct {
	db *database.DB
}

func NewCheckInRepository(db *database.DB) *CheckInRepository {
	return &CheckInRepository{db: db}
}

const checkInColumns = `id, event_id, attendee_id, check_in_time, staff_member_id, is_manual_entry, notes, manual_entry_data, source_device_id, source_local_id, via_override, created_at`

func scanCheckIn(row interface{ Scan(...interface{}) error }) (*models.CheckInRecord, error) {
	rec := &models.CheckInRecord{}
	err := row.Scan(
		&rec.ID,
		&rec.EventID,
		&rec.AttendeeID,
		&rec.CheckInTime,
		&rec.StaffMemberID,
		&rec.IsManualEntry,
		&rec.Notes,
		&rec.ManualEntryData,
		&rec.SourceDeviceID,
		&rec.SourceLocalID,
		&rec.ViaOverride,
		&rec.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return rec, nil
}

func (r *CheckInRepository) Create(ctx context.Context, record *models.CheckInRecord) error {
	query := `
		INSERT INTO check_ins (id, event_id, attendee_id, check_in_time, staff_member_id,
			is_manual_entry, notes, manual_entry_data, source_device_id, source_local_id, via_override, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`

	_, err := r.db.ExecContext(ctx, query,
		record.ID,
		record.EventID,
		record.AttendeeID,
		record.CheckInTime,
		record.StaffMemberID,
		record.IsManualEntry,
		record.Notes,
		record.ManualEntryData,
		record.SourceDeviceID,
		record.SourceLocalID,
		record.ViaOverride,
		record.CreatedAt,
	)
	return err
}

func (r *CheckInRepository) ListByEvent(ctx context.Context, eventID int64) ([]models.CheckInRecord, error) {
	query := `
		SELECT ` + checkInColumns + `
		FROM check_ins
		WHERE event_id = $1
		ORDER BY check_in_time ASC`

	rows, err := r.db.QueryContext(ctx, query, eventID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []models.CheckInRecord
	for rows.Next() {
		rec, err := scanCheckIn(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, *rec)
	}

	return records, rows.Err()
}

// RecentByEvent returns the newest check-ins for the dashboard.
func (r *CheckInRepository) RecentByEvent(ctx context.Context, eventID int64, limit int) ([]models.CheckInRecord, error) {
	query := `
		SELECT ` + checkInColumns + `
		FROM check_ins
		WHERE event_id = $1
		ORDER BY check_in_time DESC
		LIMIT $2`

	rows, err := r.db.QueryContext(ctx, query, eventID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []models.CheckInRecord
	for rows.Next() {
		rec, err := scanCheckIn(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, *rec)
	}

	return records, rows.Err()
}

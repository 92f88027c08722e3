package checkin

import (
	"context"
	"fmt"
	"time"

	"ropewalk/internal/logger"
	"ropewalk/internal/models"
)

// RosterLookup answers whether an attendee belongs to the event roster. The
// Postgres implementation lives in the repository package.
type RosterLookup interface {
	GetRosterEntry(ctx context.Context, eventID int64, attendeeID string) (*models.RosterEntry, error)
}

// Reconciler merges one device's offline action log into the ledger. Items
// are replayed strictly in submission order so each observes the effects of
// the ones before it; cross-device races resolve through the idempotency key
// and the existing-record-wins rule, never through client clocks.
type Reconciler struct {
	ledger *Ledger
	roster RosterLookup
}

func NewReconciler(ledger *Ledger, roster RosterLookup) *Reconciler {
	return &Reconciler{ledger: ledger, roster: roster}
}

// Sync processes the batch and returns a per-item disposition for every
// submitted item. Conflicts are accumulated, never thrown: one bad item must
// not abort a device's whole sync, because the device prunes exactly the
// items the server durably applied. Infrastructure failures do abort the
// batch; the device retries with the same local IDs, which is safe.
func (r *Reconciler) Sync(ctx context.Context, deviceID string, eventID int64, pending []models.PendingCheckIn) (*models.SyncResult, error) {
	log := logger.WithDeviceID(deviceID)

	result := &models.SyncResult{
		Conflicts:        []models.SyncConflict{},
		UpdatedAttendees: []models.CheckInRecord{},
	}

	for i := range pending {
		item := pending[i]

		entry, err := r.roster.GetRosterEntry(ctx, eventID, item.AttendeeID)
		if err != nil {
			return nil, fmt.Errorf("roster lookup failed for attendee %s: %w", item.AttendeeID, err)
		}
		if entry == nil {
			result.Conflicts = append(result.Conflicts, models.SyncConflict{
				LocalID:      item.LocalID,
				AttendeeID:   item.AttendeeID,
				ConflictType: models.ConflictAttendeeNotFound,
				Resolution:   models.ResolutionManualRequired,
				LocalData:    &item,
			})
			continue
		}

		deviceRef := deviceID
		localRef := item.LocalID
		outcome, err := r.ledger.CheckIn(ctx, Request{
			EventID:          eventID,
			AttendeeID:       item.AttendeeID,
			CheckInTime:      item.CheckInTime,
			StaffMemberID:    item.StaffMemberID,
			Notes:            item.Notes,
			IsManualEntry:    item.IsManualEntry,
			ManualEntryData:  item.ManualEntryData,
			SourceDeviceID:   &deviceRef,
			SourceLocalID:    &localRef,
			OverrideCapacity: item.OverrideCapacity,
		})
		if err != nil {
			return nil, err
		}

		switch outcome.Status {
		case StatusApplied, StatusAppliedViaOverride:
			result.ProcessedCount++
			result.UpdatedAttendees = append(result.UpdatedAttendees, *outcome.Record)

		case StatusAlreadyCheckedIn:
			if outcome.Record.MatchesSource(deviceID, item.LocalID) {
				// Idempotent replay of our own action: retransmission after a
				// dropped ack. Success, no conflict, nothing new applied.
				result.ProcessedCount++
				result.UpdatedAttendees = append(result.UpdatedAttendees, *outcome.Record)
				continue
			}
			// Another device captured this attendee first. The server's
			// existing record wins; tell this device to adopt it.
			result.Conflicts = append(result.Conflicts, models.SyncConflict{
				LocalID:      item.LocalID,
				AttendeeID:   item.AttendeeID,
				ConflictType: models.ConflictDuplicateCheckIn,
				Resolution:   models.ResolutionAutoResolved,
				ServerData:   outcome.Record,
				LocalData:    &item,
			})
			result.UpdatedAttendees = append(result.UpdatedAttendees, *outcome.Record)

		case StatusCapacityExceeded:
			result.Conflicts = append(result.Conflicts, models.SyncConflict{
				LocalID:      item.LocalID,
				AttendeeID:   item.AttendeeID,
				ConflictType: models.ConflictCapacityExceeded,
				Resolution:   models.ResolutionManualRequired,
				LocalData:    &item,
			})
		}
	}

	result.NewSyncTimestamp = time.Now().UTC()

	log.Info("Device sync completed",
		"event_id", eventID,
		"submitted", len(pending),
		"processed", result.ProcessedCount,
		"conflicts", len(result.Conflicts))

	return result, nil
}

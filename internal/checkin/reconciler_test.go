package checkin

import (
	"context"
	"testing"
	"time"

	"ropewalk/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeRoster answers roster lookups from a fixed attendee set.
type fakeRoster struct {
	attendees map[string]bool
}

func (f *fakeRoster) GetRosterEntry(_ context.Context, _ int64, attendeeID string) (*models.RosterEntry, error) {
	if !f.attendees[attendeeID] {
		return nil, nil
	}
	return &models.RosterEntry{AttendeeID: attendeeID, RegistrationStatus: "CONFIRMED"}, nil
}

func newTestReconciler(t *testing.T, eventCapacity int, attendees ...string) (*Reconciler, *Ledger) {
	t.Helper()
	store := newMemRecordStore()
	ledger, _ := newTestLedger(t, eventCapacity, store)
	roster := &fakeRoster{attendees: make(map[string]bool)}
	for _, a := range attendees {
		roster.attendees[a] = true
	}
	return NewReconciler(ledger, roster), ledger
}

func pendingItem(localID, attendeeID string) models.PendingCheckIn {
	return models.PendingCheckIn{
		LocalID:       localID,
		AttendeeID:    attendeeID,
		CheckInTime:   time.Now().UTC(),
		StaffMemberID: 7,
	}
}

func TestReconciler_AppliesCleanBatch(t *testing.T) {
	reconciler, ledger := newTestReconciler(t, 10, "attendee-1", "attendee-2")
	ctx := context.Background()

	result, err := reconciler.Sync(ctx, "tablet-a", 1, []models.PendingCheckIn{
		pendingItem("local-1", "attendee-1"),
		pendingItem("local-2", "attendee-2"),
	})
	require.NoError(t, err)
	assert.Equal(t, 2, result.ProcessedCount)
	assert.Empty(t, result.Conflicts)
	assert.Len(t, result.UpdatedAttendees, 2)
	assert.False(t, result.NewSyncTimestamp.IsZero())

	count, err := ledger.CheckedInCount(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}

func TestReconciler_ReplayOfOwnItemIsSuccessNotConflict(t *testing.T) {
	reconciler, ledger := newTestReconciler(t, 10, "attendee-1")
	ctx := context.Background()

	batch := []models.PendingCheckIn{pendingItem("local-1", "attendee-1")}

	first, err := reconciler.Sync(ctx, "tablet-a", 1, batch)
	require.NoError(t, err)
	require.Equal(t, 1, first.ProcessedCount)

	// Same device retransmits after a dropped ack
	second, err := reconciler.Sync(ctx, "tablet-a", 1, batch)
	require.NoError(t, err)
	assert.Equal(t, 1, second.ProcessedCount)
	assert.Empty(t, second.Conflicts)
	require.Len(t, second.UpdatedAttendees, 1)
	assert.Equal(t, first.UpdatedAttendees[0].ID, second.UpdatedAttendees[0].ID)

	count, err := ledger.CheckedInCount(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 1, count, "replay never double-counts")
}

func TestReconciler_CrossDeviceDuplicateAutoResolves(t *testing.T) {
	reconciler, _ := newTestReconciler(t, 10, "attendee-1")
	ctx := context.Background()

	winner, err := reconciler.Sync(ctx, "tablet-a", 1, []models.PendingCheckIn{
		pendingItem("local-a1", "attendee-1"),
	})
	require.NoError(t, err)
	require.Equal(t, 1, winner.ProcessedCount)

	// A second device checked in the same attendee offline. The later
	// submission loses regardless of its client timestamp.
	late := pendingItem("local-b1", "attendee-1")
	late.CheckInTime = time.Now().UTC().Add(-time.Hour)
	loser, err := reconciler.Sync(ctx, "tablet-b", 1, []models.PendingCheckIn{late})
	require.NoError(t, err)

	assert.Equal(t, 0, loser.ProcessedCount)
	require.Len(t, loser.Conflicts, 1)
	conflict := loser.Conflicts[0]
	assert.Equal(t, models.ConflictDuplicateCheckIn, conflict.ConflictType)
	assert.Equal(t, models.ResolutionAutoResolved, conflict.Resolution)
	assert.Equal(t, "local-b1", conflict.LocalID)
	require.NotNil(t, conflict.ServerData)
	assert.Equal(t, winner.UpdatedAttendees[0].ID, conflict.ServerData.ID)
	require.NotNil(t, conflict.LocalData)

	// The winning record is pushed back so the device adopts it
	require.Len(t, loser.UpdatedAttendees, 1)
	assert.Equal(t, winner.UpdatedAttendees[0].ID, loser.UpdatedAttendees[0].ID)
}

func TestReconciler_UnknownAttendeeNeedsManualReview(t *testing.T) {
	reconciler, _ := newTestReconciler(t, 10, "attendee-1")

	result, err := reconciler.Sync(context.Background(), "tablet-a", 1, []models.PendingCheckIn{
		pendingItem("local-1", "walk-up-stranger"),
	})
	require.NoError(t, err)

	assert.Equal(t, 0, result.ProcessedCount)
	require.Len(t, result.Conflicts, 1)
	conflict := result.Conflicts[0]
	assert.Equal(t, models.ConflictAttendeeNotFound, conflict.ConflictType)
	assert.Equal(t, models.ResolutionManualRequired, conflict.Resolution)
	assert.Nil(t, conflict.ServerData)
	require.NotNil(t, conflict.LocalData)
	assert.Equal(t, "walk-up-stranger", conflict.LocalData.AttendeeID)
}

func TestReconciler_CapacityExceededNeedsManualReview(t *testing.T) {
	reconciler, _ := newTestReconciler(t, 1, "attendee-1", "attendee-2")
	ctx := context.Background()

	result, err := reconciler.Sync(ctx, "tablet-a", 1, []models.PendingCheckIn{
		pendingItem("local-1", "attendee-1"),
		pendingItem("local-2", "attendee-2"),
	})
	require.NoError(t, err)

	assert.Equal(t, 1, result.ProcessedCount)
	require.Len(t, result.Conflicts, 1)
	conflict := result.Conflicts[0]
	assert.Equal(t, models.ConflictCapacityExceeded, conflict.ConflictType)
	assert.Equal(t, models.ResolutionManualRequired, conflict.Resolution)
	assert.Equal(t, "local-2", conflict.LocalID)
}

func TestReconciler_OverrideItemAppliesAboveCapacity(t *testing.T) {
	reconciler, ledger := newTestReconciler(t, 1, "attendee-1", "attendee-2")
	ctx := context.Background()

	override := pendingItem("local-2", "attendee-2")
	override.OverrideCapacity = true
	result, err := reconciler.Sync(ctx, "tablet-a", 1, []models.PendingCheckIn{
		pendingItem("local-1", "attendee-1"),
		override,
	})
	require.NoError(t, err)

	assert.Equal(t, 2, result.ProcessedCount)
	assert.Empty(t, result.Conflicts)
	require.Len(t, result.UpdatedAttendees, 2)
	assert.True(t, result.UpdatedAttendees[1].ViaOverride)

	count, err := ledger.CheckedInCount(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}

func TestReconciler_OneBadItemDoesNotAbortBatch(t *testing.T) {
	reconciler, _ := newTestReconciler(t, 10, "attendee-1", "attendee-3")

	result, err := reconciler.Sync(context.Background(), "tablet-a", 1, []models.PendingCheckIn{
		pendingItem("local-1", "attendee-1"),
		pendingItem("local-2", "not-on-roster"),
		pendingItem("local-3", "attendee-3"),
	})
	require.NoError(t, err)

	assert.Equal(t, 2, result.ProcessedCount)
	require.Len(t, result.Conflicts, 1)
	assert.Equal(t, "local-2", result.Conflicts[0].LocalID)
	assert.Len(t, result.UpdatedAttendees, 2)
}

func TestReconciler_RecordsCarrySourceIdempotencyKey(t *testing.T) {
	reconciler, _ := newTestReconciler(t, 10, "attendee-1")

	result, err := reconciler.Sync(context.Background(), "tablet-a", 1, []models.PendingCheckIn{
		pendingItem("local-1", "attendee-1"),
	})
	require.NoError(t, err)
	require.Len(t, result.UpdatedAttendees, 1)

	record := result.UpdatedAttendees[0]
	assert.True(t, record.MatchesSource("tablet-a", "local-1"))
	assert.False(t, record.MatchesSource("tablet-b", "local-1"))
	assert.False(t, record.MatchesSource("tablet-a", "local-9"))
}

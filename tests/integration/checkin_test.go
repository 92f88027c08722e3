package integration

import (
	"fmt"
	"testing"
	"time"

	"ropewalk/internal/models"
)

// setupCheckInEvent creates a social event with the given capacity and RSVPs
// the listed members, returning their attendee IDs in order
func setupCheckInEvent(t *testing.T, staff *TestClient, capacity int, memberIdx ...int) (int64, []string) {
	t.Helper()

	eventID := staff.CreateEvent(t, BuildSocialEvent(fmt.Sprintf("Door Social %d", time.Now().UnixNano()), capacity))

	for _, n := range memberIdx {
		member := NewMemberClient(n)
		participation := member.RSVP(t, eventID)
		if participation.Status != models.StatusActive {
			t.Fatalf("Member %d not admitted: %s", n, participation.Status)
		}
	}

	attendees := staff.ListAttendees(t, eventID)
	if len(attendees.Attendees) != len(memberIdx) {
		t.Fatalf("Expected %d roster entries, got %d", len(memberIdx), len(attendees.Attendees))
	}

	ids := make([]string, len(attendees.Attendees))
	for i, a := range attendees.Attendees {
		ids[i] = a.AttendeeID
	}
	return eventID, ids
}

// TestOnlineCheckIn covers the direct door check-in path including the
// idempotency of repeat scans
func TestOnlineCheckIn(t *testing.T) {
	staff := NewMemberClient(0)
	eventID, attendees := setupCheckInEvent(t, staff, 20, 4, 5)

	LogTestStep(t, "Checking in attendee %s", attendees[0])
	outcome := staff.CheckIn(t, &models.CheckInRequest{
		EventID:     eventID,
		AttendeeID:  attendees[0],
		CheckInTime: time.Now().UTC(),
	})
	if outcome.Status != "APPLIED" {
		t.Fatalf("Expected APPLIED, got %s", outcome.Status)
	}
	if outcome.Capacity.CheckedInCount != 1 {
		t.Fatalf("Expected 1 checked in, got %d", outcome.Capacity.CheckedInCount)
	}

	LogTestStep(t, "Scanning the same attendee again")
	repeat := staff.CheckIn(t, &models.CheckInRequest{
		EventID:     eventID,
		AttendeeID:  attendees[0],
		CheckInTime: time.Now().UTC(),
	})
	if repeat.Status != "ALREADY_CHECKED_IN" {
		t.Fatalf("Expected ALREADY_CHECKED_IN, got %s", repeat.Status)
	}
	if repeat.Record.ID != outcome.Record.ID {
		t.Fatal("Repeat scan must return the original record")
	}
	if repeat.Capacity.CheckedInCount != 1 {
		t.Fatalf("Repeat scan must not double-count, got %d", repeat.Capacity.CheckedInCount)
	}
	LogTestResult(t, "Door check-in is idempotent per attendee")
}

// TestCheckInCapacityOverride fills the door capacity and verifies refusal
// plus the explicit override path
func TestCheckInCapacityOverride(t *testing.T) {
	staff := NewMemberClient(0)
	eventID, attendees := setupCheckInEvent(t, staff, 1, 6, 7)

	first := staff.CheckIn(t, &models.CheckInRequest{
		EventID:     eventID,
		AttendeeID:  attendees[0],
		CheckInTime: time.Now().UTC(),
	})
	if first.Status != "APPLIED" {
		t.Fatalf("Expected APPLIED, got %s", first.Status)
	}

	LogTestStep(t, "Second attendee must be refused at capacity")
	refused := staff.CheckIn(t, &models.CheckInRequest{
		EventID:     eventID,
		AttendeeID:  attendees[1],
		CheckInTime: time.Now().UTC(),
	})
	if refused.Status != "CAPACITY_EXCEEDED" {
		t.Fatalf("Expected CAPACITY_EXCEEDED, got %s", refused.Status)
	}
	if !refused.Capacity.CanOverride {
		t.Fatal("Refusal must offer the override option")
	}

	LogTestStep(t, "Overriding the refusal")
	override := staff.CheckIn(t, &models.CheckInRequest{
		EventID:          eventID,
		AttendeeID:       attendees[1],
		CheckInTime:      time.Now().UTC(),
		OverrideCapacity: true,
	})
	if override.Status != "APPLIED_VIA_OVERRIDE" {
		t.Fatalf("Expected APPLIED_VIA_OVERRIDE, got %s", override.Status)
	}
	if !override.Record.ViaOverride {
		t.Fatal("Override record must be tagged")
	}
	if override.Capacity.CheckedInCount != 2 {
		t.Fatalf("Expected 2 checked in after override, got %d", override.Capacity.CheckedInCount)
	}
	LogTestResult(t, "Override admitted above capacity and was tagged")
}

// TestOfflineSyncReplay submits an offline batch twice, simulating a device
// that never received the first ack
func TestOfflineSyncReplay(t *testing.T) {
	staff := NewMemberClient(0)
	staff.DeviceID = "integration-tablet-a"
	eventID, attendees := setupCheckInEvent(t, staff, 20, 8, 9)

	batch := &models.SyncRequest{
		DeviceID: staff.DeviceID,
		EventID:  eventID,
		PendingCheckIns: []models.PendingCheckIn{
			{LocalID: "local-1", AttendeeID: attendees[0], CheckInTime: time.Now().UTC()},
			{LocalID: "local-2", AttendeeID: attendees[1], CheckInTime: time.Now().UTC()},
		},
	}

	LogTestStep(t, "Submitting offline batch")
	first := staff.SyncCheckIns(t, batch)
	if first.ProcessedCount != 2 {
		t.Fatalf("Expected 2 processed, got %d", first.ProcessedCount)
	}
	if len(first.Conflicts) != 0 {
		t.Fatalf("Expected no conflicts, got %d", len(first.Conflicts))
	}

	LogTestStep(t, "Retransmitting the same batch")
	second := staff.SyncCheckIns(t, batch)
	if second.ProcessedCount != 2 {
		t.Fatalf("Replay must report full success, got %d processed", second.ProcessedCount)
	}
	if len(second.Conflicts) != 0 {
		t.Fatalf("Replay must not produce conflicts, got %d", len(second.Conflicts))
	}

	capacity := staff.GetCapacity(t, eventID)
	if capacity.CheckedInCount != 2 {
		t.Fatalf("Replay must not double-count, got %d checked in", capacity.CheckedInCount)
	}
	LogTestResult(t, "Offline batch replay is idempotent")
}

// TestOfflineSyncCrossDeviceConflict has two devices capture the same
// attendee offline; the second sync must auto-resolve to the server record
func TestOfflineSyncCrossDeviceConflict(t *testing.T) {
	staff := NewMemberClient(0)
	eventID, attendees := setupCheckInEvent(t, staff, 20, 10)

	tabletA := &models.SyncRequest{
		DeviceID: "integration-tablet-a",
		EventID:  eventID,
		PendingCheckIns: []models.PendingCheckIn{
			{LocalID: "a-1", AttendeeID: attendees[0], CheckInTime: time.Now().UTC()},
		},
	}
	winner := staff.SyncCheckIns(t, tabletA)
	if winner.ProcessedCount != 1 {
		t.Fatalf("Expected first device to win, got %d processed", winner.ProcessedCount)
	}

	LogTestStep(t, "Second device syncs the same attendee with an earlier clock")
	tabletB := &models.SyncRequest{
		DeviceID: "integration-tablet-b",
		EventID:  eventID,
		PendingCheckIns: []models.PendingCheckIn{
			{LocalID: "b-1", AttendeeID: attendees[0], CheckInTime: time.Now().UTC().Add(-time.Hour)},
		},
	}
	loser := staff.SyncCheckIns(t, tabletB)

	if loser.ProcessedCount != 0 {
		t.Fatalf("Losing device must not apply anything, got %d processed", loser.ProcessedCount)
	}
	if len(loser.Conflicts) != 1 {
		t.Fatalf("Expected 1 conflict, got %d", len(loser.Conflicts))
	}
	conflict := loser.Conflicts[0]
	if conflict.ConflictType != models.ConflictDuplicateCheckIn {
		t.Fatalf("Expected DUPLICATE_CHECK_IN, got %s", conflict.ConflictType)
	}
	if conflict.Resolution != models.ResolutionAutoResolved {
		t.Fatalf("Expected AUTO_RESOLVED, got %s", conflict.Resolution)
	}
	if conflict.ServerData == nil || conflict.ServerData.ID != winner.UpdatedAttendees[0].ID {
		t.Fatal("Conflict must carry the winning server record")
	}
	if len(loser.UpdatedAttendees) != 1 {
		t.Fatal("Losing device must receive the winning record to adopt")
	}

	capacity := staff.GetCapacity(t, eventID)
	if capacity.CheckedInCount != 1 {
		t.Fatalf("Conflict must not double-count, got %d checked in", capacity.CheckedInCount)
	}
	LogTestResult(t, "Cross-device duplicate auto-resolved to the earliest record")
}

// TestOfflineSyncUnknownAttendee submits a roster-miss that must be flagged
// for manual review without aborting the batch
func TestOfflineSyncUnknownAttendee(t *testing.T) {
	staff := NewMemberClient(0)
	eventID, attendees := setupCheckInEvent(t, staff, 20, 11)

	batch := &models.SyncRequest{
		DeviceID: "integration-tablet-a",
		EventID:  eventID,
		PendingCheckIns: []models.PendingCheckIn{
			{LocalID: "x-1", AttendeeID: "no-such-attendee", CheckInTime: time.Now().UTC()},
			{LocalID: "x-2", AttendeeID: attendees[0], CheckInTime: time.Now().UTC()},
		},
	}

	LogTestStep(t, "Syncing a batch with one unknown attendee")
	result := staff.SyncCheckIns(t, batch)
	if result.ProcessedCount != 1 {
		t.Fatalf("Expected the valid item to process, got %d", result.ProcessedCount)
	}
	if len(result.Conflicts) != 1 {
		t.Fatalf("Expected 1 conflict, got %d", len(result.Conflicts))
	}
	conflict := result.Conflicts[0]
	if conflict.ConflictType != models.ConflictAttendeeNotFound {
		t.Fatalf("Expected ATTENDEE_NOT_FOUND, got %s", conflict.ConflictType)
	}
	if conflict.Resolution != models.ResolutionManualRequired {
		t.Fatalf("Expected MANUAL_REQUIRED, got %s", conflict.Resolution)
	}
	LogTestResult(t, "Unknown attendee flagged for manual review, batch continued")
}

// TestDashboard verifies the dashboard reflects door activity
func TestDashboard(t *testing.T) {
	staff := NewMemberClient(0)
	eventID, attendees := setupCheckInEvent(t, staff, 20, 12)

	staff.CheckIn(t, &models.CheckInRequest{
		EventID:     eventID,
		AttendeeID:  attendees[0],
		CheckInTime: time.Now().UTC(),
	})

	LogTestStep(t, "Fetching dashboard for event %d", eventID)
	dashboard := staff.GetDashboard(t, eventID)
	if dashboard.EventID != eventID {
		t.Fatalf("Dashboard for wrong event: %d", dashboard.EventID)
	}
	if dashboard.Capacity.CheckedInCount != 1 {
		t.Fatalf("Expected 1 checked in, got %d", dashboard.Capacity.CheckedInCount)
	}
	if len(dashboard.RecentCheckIns) != 1 {
		t.Fatalf("Expected 1 recent check-in, got %d", len(dashboard.RecentCheckIns))
	}
	LogTestResult(t, "Dashboard reflects door activity")
}

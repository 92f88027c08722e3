package models

import "time"

// NATS Event Types
const (
	EventParticipationAdmitted   = "participation.admitted"
	EventParticipationWaitlisted = "participation.waitlisted"
	EventParticipationCancelled  = "participation.cancelled"
	EventParticipationPromoted   = "participation.promoted"
	EventCheckInApplied          = "checkin.applied"
	EventCheckInOverride         = "checkin.override"
	EventSyncCompleted           = "sync.completed"
)

// ParticipationAdmittedEvent is published after an admission commits
type ParticipationAdmittedEvent struct {
	ParticipationID string    `json:"participation_id"`
	EventID         int64     `json:"event_id"`
	UserID          int64     `json:"user_id"`
	Kind            string    `json:"kind"`
	Sessions        []string  `json:"sessions"`
	Timestamp       time.Time `json:"timestamp"`
}

// ParticipationWaitlistedEvent is published when admission was rejected for
// capacity and the request landed on the waitlist
type ParticipationWaitlistedEvent struct {
	ParticipationID string    `json:"participation_id"`
	EventID         int64     `json:"event_id"`
	UserID          int64     `json:"user_id"`
	Kind            string    `json:"kind"`
	Timestamp       time.Time `json:"timestamp"`
}

// ParticipationCancelledEvent is published after a cancellation or refund
// releases its sessions; the waitlist sweep consumes it
type ParticipationCancelledEvent struct {
	ParticipationID string    `json:"participation_id"`
	EventID         int64     `json:"event_id"`
	UserID          int64     `json:"user_id"`
	Status          string    `json:"status"`
	Reason          string    `json:"reason"`
	Timestamp       time.Time `json:"timestamp"`
}

// ParticipationPromotedEvent is published when a waitlisted participation
// gains a freed spot
type ParticipationPromotedEvent struct {
	ParticipationID string    `json:"participation_id"`
	EventID         int64     `json:"event_id"`
	UserID          int64     `json:"user_id"`
	Timestamp       time.Time `json:"timestamp"`
}

// CheckInAppliedEvent is published after a check-in record is created
type CheckInAppliedEvent struct {
	RecordID    string    `json:"record_id"`
	EventID     int64     `json:"event_id"`
	AttendeeID  string    `json:"attendee_id"`
	ViaOverride bool      `json:"via_override"`
	Timestamp   time.Time `json:"timestamp"`
}

// SyncCompletedEvent is published after a device sync batch finishes
type SyncCompletedEvent struct {
	DeviceID       string    `json:"device_id"`
	EventID        int64     `json:"event_id"`
	ProcessedCount int       `json:"processed_count"`
	ConflictCount  int       `json:"conflict_count"`
	Timestamp      time.Time `json:"timestamp"`
}

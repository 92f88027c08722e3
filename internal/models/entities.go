package models

import (
	"time"
)

// Participation kinds
const (
	KindRSVP   = "RSVP"
	KindTicket = "TICKET"
)

// Participation statuses
const (
	StatusActive     = "ACTIVE"
	StatusWaitlisted = "WAITLISTED"
	StatusCancelled  = "CANCELLED"
	StatusRefunded   = "REFUNDED"
)

// Event types
const (
	EventTypeClass    = "CLASS"
	EventTypeSocial   = "SOCIAL"
	EventTypeWorkshop = "WORKSHOP"
)

// User represents a community member
type User struct {
	UserID       int64     `json:"user_id" db:"user_id"`
	Email        string    `json:"email" db:"email"`
	PasswordHash string    `json:"-" db:"password_hash"`
	SceneName    string    `json:"scene_name" db:"scene_name"`
	Pronouns     *string   `json:"pronouns" db:"pronouns"`
	RegisteredAt time.Time `json:"registered_at" db:"registered_at"`
	IsActive     bool      `json:"is_active" db:"is_active"`
}

// Event represents a community event with an overall door capacity.
// Session-level capacity lives in Session rows; Capacity here bounds check-ins.
type Event struct {
	ID            int64     `json:"id" db:"id"`
	Title         string    `json:"title" db:"title"`
	Description   *string   `json:"description" db:"description"`
	Type          string    `json:"type" db:"type"`
	StartDate     time.Time `json:"start_date" db:"start_date"`
	EndDate       time.Time `json:"end_date" db:"end_date"`
	Capacity      int       `json:"capacity" db:"capacity"`
	SocialSession string    `json:"social_session" db:"social_session"`
	CreatedAt     time.Time `json:"created_at" db:"created_at"`
	UpdatedAt     time.Time `json:"updated_at" db:"updated_at"`
}

// Session is the atomic capacity unit of an event (e.g. one class meeting).
// Registered is mutated only by the admission engine through reserve/release
// and never exceeds Capacity.
type Session struct {
	EventID    int64  `json:"event_id" db:"event_id"`
	Code       string `json:"code" db:"code"`
	Title      string `json:"title" db:"title"`
	Capacity   int    `json:"capacity" db:"capacity"`
	Registered int    `json:"registered" db:"registered_count"`
	Active     bool   `json:"active" db:"is_active"`
}

// FreeSpots returns the remaining capacity of the session.
func (s *Session) FreeSpots() int {
	free := s.Capacity - s.Registered
	if free < 0 {
		return 0
	}
	return free
}

// TicketType bundles one or more sessions of the same event into a product.
// Availability is always derived as the minimum free spots across the
// included sessions, never stored.
type TicketType struct {
	EventID          int64      `json:"event_id" db:"event_id"`
	Code             string     `json:"code" db:"code"`
	Name             string     `json:"name" db:"name"`
	IncludedSessions []string   `json:"included_sessions" db:"included_sessions"`
	PriceCents       int64      `json:"price_cents" db:"price_cents"`
	SalesOpenAt      *time.Time `json:"sales_open_at" db:"sales_open_at"`
	SalesCloseAt     *time.Time `json:"sales_close_at" db:"sales_close_at"`
}

// SalesWindowOpen reports whether the ticket type can currently be sold.
// A nil boundary means unbounded on that side.
func (tt *TicketType) SalesWindowOpen(now time.Time) bool {
	if tt.SalesOpenAt != nil && now.Before(*tt.SalesOpenAt) {
		return false
	}
	if tt.SalesCloseAt != nil && now.After(*tt.SalesCloseAt) {
		return false
	}
	return true
}

// Participation is one admission record per (user, event, kind). At most one
// ACTIVE participation may exist per key; re-participation after cancellation
// is allowed. Rows are never deleted, only transitioned, for the audit trail.
type Participation struct {
	ID                 string     `json:"id" db:"id"`
	EventID            int64      `json:"event_id" db:"event_id"`
	UserID             int64      `json:"user_id" db:"user_id"`
	Kind               string     `json:"kind" db:"kind"`
	Status             string     `json:"status" db:"status"`
	TicketTypeCode     *string    `json:"ticket_type_code" db:"ticket_type_code"`
	Sessions           []string   `json:"sessions" db:"sessions"`
	CreatedAt          time.Time  `json:"created_at" db:"created_at"`
	CancelledAt        *time.Time `json:"cancelled_at" db:"cancelled_at"`
	CancellationReason *string    `json:"cancellation_reason" db:"cancellation_reason"`
}

// CanBeCancelled reports whether Cancel is a valid transition.
func (p *Participation) CanBeCancelled() bool {
	return p.Status == StatusActive || p.Status == StatusWaitlisted
}

// CheckInRecord is the server-confirmed fact of an attendee being present.
// At most one exists per (event, attendee); CheckInTime is immutable after
// creation. SourceDeviceID/SourceLocalID carry the idempotency key when the
// record originated from an offline-queued action.
type CheckInRecord struct {
	ID              string    `json:"id" db:"id"`
	EventID         int64     `json:"event_id" db:"event_id"`
	AttendeeID      string    `json:"attendee_id" db:"attendee_id"`
	CheckInTime     time.Time `json:"check_in_time" db:"check_in_time"`
	StaffMemberID   int64     `json:"staff_member_id" db:"staff_member_id"`
	IsManualEntry   bool      `json:"is_manual_entry" db:"is_manual_entry"`
	Notes           *string   `json:"notes" db:"notes"`
	ManualEntryData *string   `json:"manual_entry_data" db:"manual_entry_data"`
	SourceDeviceID  *string   `json:"source_device_id" db:"source_device_id"`
	SourceLocalID   *string   `json:"source_local_id" db:"source_local_id"`
	ViaOverride     bool      `json:"via_override" db:"via_override"`
	CreatedAt       time.Time `json:"created_at" db:"created_at"`
}

// MatchesSource reports whether the record was created from the given
// device-local action, i.e. the incoming submission is a replay.
func (r *CheckInRecord) MatchesSource(deviceID, localID string) bool {
	return r.SourceDeviceID != nil && *r.SourceDeviceID == deviceID &&
		r.SourceLocalID != nil && *r.SourceLocalID == localID
}

// RosterEntry is the roster lookup projection used during sync validation.
type RosterEntry struct {
	AttendeeID         string `json:"attendee_id" db:"attendee_id"`
	UserID             int64  `json:"user_id" db:"user_id"`
	SceneName          string `json:"scene_name" db:"scene_name"`
	RegistrationStatus string `json:"registration_status" db:"registration_status"`
}

// AuditEntry is an immutable record of an admission or check-in decision.
type AuditEntry struct {
	ID        int64     `json:"id" db:"id"`
	EventID   int64     `json:"event_id" db:"event_id"`
	ActorID   int64     `json:"actor_id" db:"actor_id"`
	Action    string    `json:"action" db:"action"`
	Payload   string    `json:"payload" db:"payload"`
	Timestamp time.Time `json:"timestamp" db:"created_at"`
}

package models

import (
	"time"
)

// Sync conflict types
const (
	ConflictDuplicateCheckIn = "DUPLICATE_CHECK_IN"
	ConflictCapacityExceeded = "CAPACITY_EXCEEDED"
	ConflictAttendeeNotFound = "ATTENDEE_NOT_FOUND"
)

// Sync conflict resolutions
const (
	ResolutionAutoResolved   = "AUTO_RESOLVED"
	ResolutionManualRequired = "MANUAL_REQUIRED"
)

// CreateEventRequest creates an event together with its sessions and ticket types
type CreateEventRequest struct {
	Title       string                 `json:"title" binding:"required"`
	Description *string                `json:"description"`
	Type        string                 `json:"type" binding:"required"`
	StartDate   time.Time              `json:"start_date" binding:"required"`
	EndDate     time.Time              `json:"end_date" binding:"required"`
	Capacity    int                    `json:"capacity" binding:"required,min=1"`
	// SocialSession names the session RSVPs reserve; defaults to the first
	// session for SOCIAL events
	SocialSession *string                `json:"social_session"`
	Sessions      []CreateSessionItem    `json:"sessions" binding:"required,min=1,dive"`
	TicketTypes   []CreateTicketTypeItem `json:"ticket_types" binding:"dive"`
}

// CreateSessionItem - one session of a new event
type CreateSessionItem struct {
	Code     string `json:"code" binding:"required"`
	Title    string `json:"title"`
	Capacity int    `json:"capacity" binding:"required,min=0"`
}

// CreateTicketTypeItem - one ticket type of a new event
type CreateTicketTypeItem struct {
	Code             string     `json:"code" binding:"required"`
	Name             string     `json:"name" binding:"required"`
	IncludedSessions []string   `json:"included_sessions" binding:"required,min=1"`
	PriceCents       int64      `json:"price_cents" binding:"min=0"`
	SalesOpenAt      *time.Time `json:"sales_open_at"`
	SalesCloseAt     *time.Time `json:"sales_close_at"`
}

// CreateEventResponse - response for event creation
type CreateEventResponse struct {
	ID int64 `json:"id"`
}

// ListEventsResponseItem - one element of the events listing
type ListEventsResponseItem struct {
	ID        int64     `json:"id"`
	Title     string    `json:"title"`
	Type      string    `json:"type"`
	StartDate time.Time `json:"start_date"`
}

// ListEventsResponse - events listing
type ListEventsResponse []ListEventsResponseItem

// TicketAvailabilityItem - advisory availability projection of one ticket type
type TicketAvailabilityItem struct {
	Code            string `json:"code"`
	Name            string `json:"name"`
	AvailableSpots  int    `json:"available_spots"`
	LimitingSession string `json:"limiting_session"`
	IsOnSale        bool   `json:"is_on_sale"`
}

// RSVPRequest - request to RSVP for a social event
type RSVPRequest struct {
	EventID int64 `json:"event_id" binding:"required"`
}

// PurchaseTicketRequest - request to buy a ticket; payment is captured before
// admission is attempted
type PurchaseTicketRequest struct {
	EventID        int64  `json:"event_id" binding:"required"`
	TicketTypeCode string `json:"ticket_type_code" binding:"required"`
}

// ParticipationResponse - outcome of an admission attempt
type ParticipationResponse struct {
	ID       string   `json:"id"`
	Status   string   `json:"status"`
	Kind     string   `json:"kind"`
	Sessions []string `json:"sessions"`
}

// CancelParticipationRequest - request to cancel a participation
type CancelParticipationRequest struct {
	ParticipationID string `json:"participation_id" binding:"required"`
	Reason          string `json:"reason"`
}

// ParticipationStatusResponse mirrors what the participation card in the web
// client expects: flags plus a capacity projection
type ParticipationStatusResponse struct {
	HasRSVP   bool           `json:"has_rsvp"`
	HasTicket bool           `json:"has_ticket"`
	CanRSVP   bool           `json:"can_rsvp"`
	RSVP      *Participation `json:"rsvp,omitempty"`
	Ticket    *Participation `json:"ticket,omitempty"`
	Capacity  CapacityInfo   `json:"capacity"`
}

// CheckInRequest - single online check-in performed by staff
type CheckInRequest struct {
	EventID          int64     `json:"event_id" binding:"required"`
	AttendeeID       string    `json:"attendee_id" binding:"required"`
	CheckInTime      time.Time `json:"check_in_time" binding:"required"`
	Notes            *string   `json:"notes"`
	IsManualEntry    bool      `json:"is_manual_entry"`
	ManualEntryData  *string   `json:"manual_entry_data"`
	OverrideCapacity bool      `json:"override_capacity"`
}

// CheckInResponse - outcome of a single check-in
type CheckInResponse struct {
	Status   string         `json:"status"`
	Record   *CheckInRecord `json:"record,omitempty"`
	Capacity CapacityInfo   `json:"capacity"`
}

// PendingCheckIn is a device-local queued action. LocalID is generated by the
// device; (device_id, local_id) is the idempotency key guaranteeing
// at-most-one effect regardless of retransmission.
type PendingCheckIn struct {
	LocalID          string    `json:"local_id" binding:"required"`
	AttendeeID       string    `json:"attendee_id" binding:"required"`
	CheckInTime      time.Time `json:"check_in_time" binding:"required"`
	StaffMemberID    int64     `json:"staff_member_id"`
	Notes            *string   `json:"notes"`
	IsManualEntry    bool      `json:"is_manual_entry"`
	ManualEntryData  *string   `json:"manual_entry_data"`
	OverrideCapacity bool      `json:"override_capacity"`
}

// SyncRequest - batch of offline-collected check-ins from one device
type SyncRequest struct {
	DeviceID        string           `json:"device_id" binding:"required"`
	EventID         int64            `json:"event_id" binding:"required"`
	LastSyncAt      *time.Time       `json:"last_sync_at"`
	PendingCheckIns []PendingCheckIn `json:"pending_check_ins" binding:"dive"`
}

// SyncConflict describes why one pending check-in could not be applied as
// submitted. Server and local snapshots are carried for staff review.
type SyncConflict struct {
	LocalID      string          `json:"local_id"`
	AttendeeID   string          `json:"attendee_id"`
	ConflictType string          `json:"conflict_type"`
	Resolution   string          `json:"resolution"`
	ServerData   *CheckInRecord  `json:"server_data,omitempty"`
	LocalData    *PendingCheckIn `json:"local_data,omitempty"`
}

// SyncResult covers every submitted item so the device can prune exactly what
// the server durably applied and keep exactly what still needs attention.
type SyncResult struct {
	ProcessedCount   int             `json:"processed_count"`
	Conflicts        []SyncConflict  `json:"conflicts"`
	UpdatedAttendees []CheckInRecord `json:"updated_attendees"`
	NewSyncTimestamp time.Time       `json:"new_sync_timestamp"`
}

// CapacityInfo is a read-only projection for dashboards, recomputed on
// demand, never itself a source of truth
type CapacityInfo struct {
	TotalCapacity  int  `json:"total_capacity"`
	CheckedInCount int  `json:"checked_in_count"`
	WaitlistCount  int  `json:"waitlist_count"`
	AvailableSpots int  `json:"available_spots"`
	IsAtCapacity   bool `json:"is_at_capacity"`
	CanOverride    bool `json:"can_override"`
}

// AttendeeResponse - roster entry for the check-in interface
type AttendeeResponse struct {
	AttendeeID         string  `json:"attendee_id"`
	UserID             int64   `json:"user_id"`
	SceneName          string  `json:"scene_name"`
	Pronouns           *string `json:"pronouns"`
	RegistrationStatus string  `json:"registration_status"`
	CheckInTime        *string `json:"check_in_time,omitempty"`
}

// ListAttendeesResponse - paginated roster for the check-in interface
type ListAttendeesResponse struct {
	EventID    int64              `json:"event_id"`
	Attendees  []AttendeeResponse `json:"attendees"`
	Capacity   CapacityInfo       `json:"capacity"`
	Page       int                `json:"page"`
	PageSize   int                `json:"page_size"`
	TotalCount int                `json:"total_count"`
}

// DashboardResponse - real-time view for the check-in dashboard
type DashboardResponse struct {
	EventID        int64           `json:"event_id"`
	EventTitle     string          `json:"event_title"`
	EventStatus    string          `json:"event_status"`
	Capacity       CapacityInfo    `json:"capacity"`
	RecentCheckIns []CheckInRecord `json:"recent_check_ins"`
}

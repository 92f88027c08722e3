// Package checkin holds the server-side check-in ledger and the offline sync
// reconciler. The ledger is the authoritative record of who is physically
// present at an event; the reconciler merges device-local action logs into it
// with deterministic conflict resolution.
package checkin

import (
	"context"
	"fmt"
	"sync"
	"time"

	"ropewalk/internal/audit"
	"ropewalk/internal/capacity"
	"ropewalk/internal/logger"
	"ropewalk/internal/models"

	"github.com/google/uuid"
)

// Check-in outcome statuses. Override admissions are tagged explicitly so
// audit and dashboards can tell exception-path check-ins from normal ones.
const (
	StatusApplied            = "APPLIED"
	StatusAppliedViaOverride = "APPLIED_VIA_OVERRIDE"
	StatusAlreadyCheckedIn   = "ALREADY_CHECKED_IN"
	StatusCapacityExceeded   = "CAPACITY_EXCEEDED"
)

// RecordStore persists check-in records. ListByEvent hydrates the in-memory
// ledger on first access per event.
type RecordStore interface {
	ListByEvent(ctx context.Context, eventID int64) ([]models.CheckInRecord, error)
	Create(ctx context.Context, record *models.CheckInRecord) error
}

// Request is one check-in attempt against the ledger.
type Request struct {
	EventID          int64
	AttendeeID       string
	CheckInTime      time.Time
	StaffMemberID    int64
	Notes            *string
	IsManualEntry    bool
	ManualEntryData  *string
	SourceDeviceID   *string
	SourceLocalID    *string
	OverrideCapacity bool
}

// Outcome reports the result of one check-in attempt. Record is set for
// Applied/AppliedViaOverride (the new record) and AlreadyCheckedIn (the
// existing one); it is nil for CapacityExceeded.
type Outcome struct {
	Status string
	Record *models.CheckInRecord
}

// Ledger enforces at-most-one check-in per (event, attendee) and the event's
// door capacity. Check-ins for one event serialize on a per-event lock; the
// capacity counter itself lives in the event's matrix.
type Ledger struct {
	registry *capacity.Registry
	store    RecordStore
	audit    audit.Recorder

	mu     sync.Mutex
	events map[int64]*eventLedger
}

type eventLedger struct {
	mu      sync.Mutex
	records map[string]*models.CheckInRecord
}

func NewLedger(registry *capacity.Registry, store RecordStore, recorder audit.Recorder) *Ledger {
	return &Ledger{
		registry: registry,
		store:    store,
		audit:    recorder,
		events:   make(map[int64]*eventLedger),
	}
}

// forEvent returns the per-event ledger shard, hydrating it from the store
// on first access and seeding the matrix's checked-in counter.
func (l *Ledger) forEvent(ctx context.Context, eventID int64) (*eventLedger, error) {
	l.mu.Lock()
	if el, ok := l.events[eventID]; ok {
		l.mu.Unlock()
		return el, nil
	}
	l.mu.Unlock()

	existing, err := l.store.ListByEvent(ctx, eventID)
	if err != nil {
		return nil, fmt.Errorf("failed to hydrate check-in ledger for event %d: %w", eventID, err)
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	// A concurrent hydration may have won while we were reading.
	if el, ok := l.events[eventID]; ok {
		return el, nil
	}

	el := &eventLedger{records: make(map[string]*models.CheckInRecord, len(existing))}
	for i := range existing {
		r := existing[i]
		el.records[r.AttendeeID] = &r
	}
	l.events[eventID] = el

	if matrix, err := l.registry.Get(ctx, eventID); err == nil {
		matrix.SetCheckedIn(len(el.records))
	} else {
		// Hydration itself stays usable; the counter gets seeded on the next
		// successful load.
		logger.WithContext(ctx).Error("Failed to seed checked-in counter",
			"error", err,
			"event_id", eventID)
	}

	return el, nil
}

// CheckIn applies one check-in. It is idempotent on (event, attendee): an
// existing record is returned unchanged, its check-in time never mutated, so
// the earliest accepted record stays authoritative. At door capacity the
// attempt is refused unless override is set; overrides always succeed but are
// audited as an explicit, attributable exception.
func (l *Ledger) CheckIn(ctx context.Context, req Request) (*Outcome, error) {
	el, err := l.forEvent(ctx, req.EventID)
	if err != nil {
		return nil, err
	}

	el.mu.Lock()
	defer el.mu.Unlock()

	if existing, ok := el.records[req.AttendeeID]; ok {
		return &Outcome{Status: StatusAlreadyCheckedIn, Record: existing}, nil
	}

	matrix, err := l.registry.Get(ctx, req.EventID)
	if err != nil {
		return nil, err
	}

	ok, viaOverride := matrix.RecordCheckIn(req.OverrideCapacity)
	if !ok {
		return &Outcome{Status: StatusCapacityExceeded}, nil
	}

	record := &models.CheckInRecord{
		ID:              uuid.New().String(),
		EventID:         req.EventID,
		AttendeeID:      req.AttendeeID,
		CheckInTime:     req.CheckInTime.UTC(),
		StaffMemberID:   req.StaffMemberID,
		IsManualEntry:   req.IsManualEntry,
		Notes:           req.Notes,
		ManualEntryData: req.ManualEntryData,
		SourceDeviceID:  req.SourceDeviceID,
		SourceLocalID:   req.SourceLocalID,
		ViaOverride:     viaOverride,
		CreatedAt:       time.Now().UTC(),
	}

	if err := l.store.Create(ctx, record); err != nil {
		// Give the spot back; the record never became durable.
		matrix.ReleaseCheckIn()
		return nil, fmt.Errorf("failed to persist check-in record: %w", err)
	}
	el.records[req.AttendeeID] = record

	action := audit.ActionCheckIn
	status := StatusApplied
	if viaOverride {
		action = audit.ActionCheckInOverride
		status = StatusAppliedViaOverride
	}
	l.record(ctx, audit.Entry{
		EventID:   req.EventID,
		ActorID:   req.StaffMemberID,
		Action:    action,
		Payload:   record,
		Timestamp: record.CreatedAt,
	})

	return &Outcome{Status: status, Record: record}, nil
}

// CheckedInCount returns the number of confirmed check-ins for the event.
func (l *Ledger) CheckedInCount(ctx context.Context, eventID int64) (int, error) {
	el, err := l.forEvent(ctx, eventID)
	if err != nil {
		return 0, err
	}
	el.mu.Lock()
	defer el.mu.Unlock()
	return len(el.records), nil
}

func (l *Ledger) record(ctx context.Context, entry audit.Entry) {
	if l.audit == nil {
		return
	}
	if err := l.audit.Record(ctx, entry); err != nil {
		logger.WithContext(ctx).Error("Failed to record audit entry",
			"error", err,
			"event_id", entry.EventID,
			"action", entry.Action)
	}
}

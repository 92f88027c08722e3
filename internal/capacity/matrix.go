// Package capacity holds the per-event session capacity state that governs
// whether a registration or a check-in may be admitted. A Matrix is the
// single source of truth for one event's counters; all mutation happens
// under its lock so that two concurrent admissions can never both consume
// the last spot.
package capacity

import (
	"fmt"
	"sync"

	"ropewalk/internal/errors"
	"ropewalk/internal/models"
)

// Matrix tracks registered counts per session plus the overall checked-in
// counter of one event. It is owned by the admission engine and the check-in
// ledger; nothing else mutates it.
type Matrix struct {
	mu sync.Mutex

	eventID       int64
	totalCapacity int
	checkedIn     int
	sessions      map[string]*models.Session
	order         []string
}

// NewMatrix builds a matrix from the event's door capacity and its sessions.
func NewMatrix(eventID int64, totalCapacity int, sessions []models.Session) *Matrix {
	m := &Matrix{
		eventID:       eventID,
		totalCapacity: totalCapacity,
		sessions:      make(map[string]*models.Session, len(sessions)),
	}
	for i := range sessions {
		s := sessions[i]
		m.sessions[s.Code] = &s
		m.order = append(m.order, s.Code)
	}
	return m
}

// EventID returns the event this matrix belongs to.
func (m *Matrix) EventID() int64 {
	return m.eventID
}

// TryReserve checks every session in the set and, only if all of them have
// room for count more registrations, increments them atomically. A false
// return means no session was mutated; it is a normal outcome signalling the
// caller to waitlist, not an error. Unknown session codes are a contract
// violation and return ErrInvalidArgument.
func (m *Matrix) TryReserve(sessionIDs []string, count int) (bool, error) {
	if count <= 0 {
		return false, fmt.Errorf("%w: reserve count must be positive, got %d", errors.ErrInvalidArgument, count)
	}
	if len(sessionIDs) == 0 {
		return false, fmt.Errorf("%w: empty session set", errors.ErrInvalidArgument)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	targets := make([]*models.Session, 0, len(sessionIDs))
	for _, id := range sessionIDs {
		s, ok := m.sessions[id]
		if !ok {
			return false, fmt.Errorf("%w: session %q does not belong to event %d", errors.ErrInvalidArgument, id, m.eventID)
		}
		targets = append(targets, s)
	}

	for _, s := range targets {
		if !s.Active || s.Registered+count > s.Capacity {
			return false, nil
		}
	}

	for _, s := range targets {
		s.Registered += count
	}
	return true, nil
}

// Release decrements the registered count for each session, floored at zero.
// Used on cancellation and refund.
func (m *Matrix) Release(sessionIDs []string, count int) error {
	if count <= 0 {
		return fmt.Errorf("%w: release count must be positive, got %d", errors.ErrInvalidArgument, count)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	for _, id := range sessionIDs {
		s, ok := m.sessions[id]
		if !ok {
			return fmt.Errorf("%w: session %q does not belong to event %d", errors.ErrInvalidArgument, id, m.eventID)
		}
		s.Registered -= count
		if s.Registered < 0 {
			s.Registered = 0
		}
	}
	return nil
}

// AvailableSpots returns the minimum free spot count across the given
// sessions. Read-only and advisory: actual admission re-checks under the
// lock in TryReserve. Unknown or inactive sessions count as zero.
func (m *Matrix) AvailableSpots(sessionIDs []string) int {
	if len(sessionIDs) == 0 {
		return 0
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	min := -1
	for _, id := range sessionIDs {
		free := 0
		if s, ok := m.sessions[id]; ok && s.Active {
			free = s.FreeSpots()
		}
		if min == -1 || free < min {
			min = free
		}
	}
	return min
}

// RecordCheckIn bumps the checked-in counter if the event is below its door
// capacity, or unconditionally when override is set. The second return
// reports whether the admission went through on the override path. Callers
// serialize check-ins per event, so check and increment stay consistent.
func (m *Matrix) RecordCheckIn(override bool) (ok bool, viaOverride bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.checkedIn >= m.totalCapacity {
		if !override {
			return false, false
		}
		m.checkedIn++
		return true, true
	}
	m.checkedIn++
	return true, false
}

// ReleaseCheckIn undoes a counter bump after a failed record write, floored
// at zero.
func (m *Matrix) ReleaseCheckIn() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.checkedIn > 0 {
		m.checkedIn--
	}
}

// SetCheckedIn seeds the checked-in counter during hydration from storage.
func (m *Matrix) SetCheckedIn(n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.checkedIn = n
}

// Snapshot returns a consistent copy of the matrix counters.
func (m *Matrix) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()

	snap := Snapshot{
		EventID:       m.eventID,
		TotalCapacity: m.totalCapacity,
		CheckedIn:     m.checkedIn,
		Sessions:      make([]models.Session, 0, len(m.order)),
	}
	for _, code := range m.order {
		snap.Sessions = append(snap.Sessions, *m.sessions[code])
	}
	return snap
}

// Snapshot is a point-in-time copy of one event's capacity counters.
type Snapshot struct {
	EventID       int64
	TotalCapacity int
	CheckedIn     int
	Sessions      []models.Session
}

// Session returns the snapshotted session with the given code, if present.
func (s Snapshot) Session(code string) (models.Session, bool) {
	for _, sess := range s.Sessions {
		if sess.Code == code {
			return sess, true
		}
	}
	return models.Session{}, false
}

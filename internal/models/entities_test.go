package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestSession_FreeSpots(t *testing.T) {
	s := Session{Capacity: 10, Registered: 7}
	assert.Equal(t, 3, s.FreeSpots())

	s.Registered = 10
	assert.Equal(t, 0, s.FreeSpots())

	// Overrides can push check-ins past capacity; free spots floor at zero
	s.Registered = 12
	assert.Equal(t, 0, s.FreeSpots())
}

func TestTicketType_SalesWindowOpen(t *testing.T) {
	now := time.Date(2026, 5, 15, 12, 0, 0, 0, time.UTC)
	open := now.Add(-24 * time.Hour)
	close := now.Add(24 * time.Hour)

	tt := TicketType{}
	assert.True(t, tt.SalesWindowOpen(now), "nil boundaries mean always on sale")

	tt = TicketType{SalesOpenAt: &open, SalesCloseAt: &close}
	assert.True(t, tt.SalesWindowOpen(now))
	assert.False(t, tt.SalesWindowOpen(open.Add(-time.Minute)))
	assert.False(t, tt.SalesWindowOpen(close.Add(time.Minute)))

	tt = TicketType{SalesCloseAt: &close}
	assert.True(t, tt.SalesWindowOpen(now))

	tt = TicketType{SalesOpenAt: &close}
	assert.False(t, tt.SalesWindowOpen(now))
}

func TestParticipation_CanBeCancelled(t *testing.T) {
	for status, want := range map[string]bool{
		StatusActive:     true,
		StatusWaitlisted: true,
		StatusCancelled:  false,
		StatusRefunded:   false,
	} {
		p := Participation{Status: status}
		assert.Equal(t, want, p.CanBeCancelled(), "status %s", status)
	}
}

func TestCheckInRecord_MatchesSource(t *testing.T) {
	device := "tablet-a"
	local := "local-1"

	r := CheckInRecord{SourceDeviceID: &device, SourceLocalID: &local}
	assert.True(t, r.MatchesSource("tablet-a", "local-1"))
	assert.False(t, r.MatchesSource("tablet-b", "local-1"))
	assert.False(t, r.MatchesSource("tablet-a", "local-2"))

	// Records created at the door carry no source key and never match
	direct := CheckInRecord{}
	assert.False(t, direct.MatchesSource("tablet-a", "local-1"))
}

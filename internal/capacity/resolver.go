package capacity

import (
	"time"

	"ropewalk/internal/models"
)

// TicketAvailability is the advisory availability projection of one ticket
// type: how many can still be sold and which included session is the
// bottleneck. Display-only; admission re-checks under the matrix lock.
type TicketAvailability struct {
	TicketTypeCode  string
	AvailableSpots  int
	LimitingSession string
	IsOnSale        bool
}

// ResolveTicketType derives availability for a ticket type from a matrix
// snapshot. Available spots is the minimum free spot count across the
// included sessions; the limiting session is the one with the fewest free
// spots. A ticket is on sale when its sales window is open and at least one
// spot remains.
func ResolveTicketType(tt *models.TicketType, snap Snapshot, now time.Time) TicketAvailability {
	avail := TicketAvailability{TicketTypeCode: tt.Code}

	min := -1
	for _, code := range tt.IncludedSessions {
		free := 0
		if s, ok := snap.Session(code); ok && s.Active {
			free = s.FreeSpots()
		}
		if min == -1 || free < min {
			min = free
			avail.LimitingSession = code
		}
	}
	if min < 0 {
		min = 0
	}

	avail.AvailableSpots = min
	avail.IsOnSale = tt.SalesWindowOpen(now) && min > 0
	return avail
}

package consumers

import (
	"encoding/json"
	"log/slog"

	"ropewalk/internal/models"

	"github.com/nats-io/stan.go"
)

// Handlers observes the platform's event stream for operational review.
// Nothing here mutates capacity: waitlist promotion and counter persistence
// belong to the API process, which owns the capacity matrices. A consumer
// reserving spots against its own registry would race the API's.
type Handlers struct{}

func NewHandlers() *Handlers {
	return &Handlers{}
}

// HandleParticipationCancelled logs cancellations. The freed spots are
// re-filled by the API's promotion runner, which consumes the same subject.
func (h *Handlers) HandleParticipationCancelled(m *stan.Msg) {
	var event models.ParticipationCancelledEvent
	if err := json.Unmarshal(m.Data, &event); err != nil {
		slog.Error("Failed to unmarshal cancellation event", "error", err)
		m.Ack()
		return
	}

	slog.Info("Participation cancelled",
		"participation_id", event.ParticipationID,
		"event_id", event.EventID,
		"status", event.Status,
		"reason", event.Reason)

	m.Ack()
}

// HandleParticipationPromoted logs waitlist promotions.
func (h *Handlers) HandleParticipationPromoted(m *stan.Msg) {
	var event models.ParticipationPromotedEvent
	if err := json.Unmarshal(m.Data, &event); err != nil {
		slog.Error("Failed to unmarshal promotion event", "error", err)
		m.Ack()
		return
	}

	slog.Info("Waitlisted participation promoted",
		"participation_id", event.ParticipationID,
		"event_id", event.EventID,
		"user_id", event.UserID)

	m.Ack()
}

// HandleCheckInApplied logs door activity, override check-ins included.
func (h *Handlers) HandleCheckInApplied(m *stan.Msg) {
	var event models.CheckInAppliedEvent
	if err := json.Unmarshal(m.Data, &event); err != nil {
		slog.Error("Failed to unmarshal check-in event", "error", err)
		m.Ack()
		return
	}

	slog.Info("Check-in applied",
		"record_id", event.RecordID,
		"event_id", event.EventID,
		"via_override", event.ViaOverride)

	m.Ack()
}

// HandleSyncCompleted logs device sync completions.
func (h *Handlers) HandleSyncCompleted(m *stan.Msg) {
	var event models.SyncCompletedEvent
	if err := json.Unmarshal(m.Data, &event); err != nil {
		slog.Error("Failed to unmarshal sync completed event", "error", err)
		m.Ack()
		return
	}

	slog.Info("Device sync completed",
		"device_id", event.DeviceID,
		"event_id", event.EventID,
		"processed", event.ProcessedCount,
		"conflicts", event.ConflictCount)

	m.Ack()
}

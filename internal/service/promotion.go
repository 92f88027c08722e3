package service

import (
	"context"
	"encoding/json"
	"time"

	"ropewalk/internal/logger"
	"ropewalk/internal/messaging"
	"ropewalk/internal/models"

	"github.com/nats-io/stan.go"
)

// EventPromoter runs one promotion pass for an event.
type EventPromoter interface {
	PromoteEvent(ctx context.Context, eventID int64)
}

// WaitlistSource lists the events that still have waitlisted participations.
type WaitlistSource interface {
	EventsWithWaitlist(ctx context.Context) ([]int64, error)
}

// PromotionRunner drives waitlist promotion inside the API process. The
// process that owns the capacity matrices must also run promotion; a second
// process with its own registry would reserve against stale counters.
// Cancellation events trigger a pass immediately; the periodic sweep catches
// whatever a lost message would drop.
type PromotionRunner struct {
	promoter  EventPromoter
	waitlists WaitlistSource
	nats      *messaging.NATSClient

	sweepInterval time.Duration
	stop          chan struct{}
}

func NewPromotionRunner(promoter EventPromoter, waitlists WaitlistSource, nats *messaging.NATSClient) *PromotionRunner {
	return &PromotionRunner{
		promoter:      promoter,
		waitlists:     waitlists,
		nats:          nats,
		sweepInterval: time.Minute,
		stop:          make(chan struct{}),
	}
}

func (r *PromotionRunner) Start() error {
	if r.nats != nil {
		_, err := r.nats.SubscribeQueue(models.EventParticipationCancelled, "api", func(m *stan.Msg) {
			r.onCancellation(m.Data)
			m.Ack()
		})
		if err != nil {
			return err
		}
	}

	go r.runSweep()
	return nil
}

func (r *PromotionRunner) Stop() {
	close(r.stop)
}

func (r *PromotionRunner) onCancellation(data []byte) {
	var event models.ParticipationCancelledEvent
	if err := json.Unmarshal(data, &event); err != nil {
		logger.Get().Error("Failed to unmarshal cancellation event", "error", err)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	r.promoter.PromoteEvent(ctx, event.EventID)
}

func (r *PromotionRunner) runSweep() {
	ticker := time.NewTicker(r.sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-r.stop:
			return
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			r.sweepOnce(ctx)
			cancel()
		}
	}
}

// sweepOnce promotes across every event that still has a waitlist.
func (r *PromotionRunner) sweepOnce(ctx context.Context) {
	eventIDs, err := r.waitlists.EventsWithWaitlist(ctx)
	if err != nil {
		logger.Get().Error("Waitlist sweep failed to list events", "error", err)
		return
	}

	for _, eventID := range eventIDs {
		r.promoter.PromoteEvent(ctx, eventID)
	}
}

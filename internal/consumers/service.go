package consumers

import (
	"context"
	"log/slog"

	"ropewalk/internal/config"
	"ropewalk/internal/messaging"
	"ropewalk/internal/models"
)

// ConsumerService tails the platform's NATS subjects as a durable
// operational log. It holds no capacity state and writes no counters; the
// API process is the single owner of both.
type ConsumerService struct {
	nats     *messaging.NATSClient
	handlers *Handlers
}

func NewConsumerService(cfg *config.Config) (*ConsumerService, error) {
	natsClient, err := messaging.NewNATSClient(cfg.NATS)
	if err != nil {
		return nil, err
	}

	return &ConsumerService{
		nats:     natsClient,
		handlers: NewHandlers(),
	}, nil
}

func (cs *ConsumerService) Start() error {
	slog.Info("Starting NATS consumers...")

	_, err := cs.nats.SubscribeQueue(models.EventParticipationCancelled, "consumers", cs.handlers.HandleParticipationCancelled)
	if err != nil {
		return err
	}

	_, err = cs.nats.SubscribeQueue(models.EventParticipationPromoted, "consumers", cs.handlers.HandleParticipationPromoted)
	if err != nil {
		return err
	}

	_, err = cs.nats.SubscribeQueue(models.EventCheckInApplied, "consumers", cs.handlers.HandleCheckInApplied)
	if err != nil {
		return err
	}

	_, err = cs.nats.SubscribeQueue(models.EventCheckInOverride, "consumers", cs.handlers.HandleCheckInApplied)
	if err != nil {
		return err
	}

	_, err = cs.nats.SubscribeQueue(models.EventSyncCompleted, "consumers", cs.handlers.HandleSyncCompleted)
	if err != nil {
		return err
	}

	slog.Info("All consumers started successfully")
	return nil
}

func (cs *ConsumerService) Shutdown(_ context.Context) error {
	slog.Info("Shutting down consumer service...")

	if cs.nats != nil {
		if err := cs.nats.Close(); err != nil {
			slog.Error("Error closing NATS connection", "error", err)
			return err
		}
	}

	return nil
}

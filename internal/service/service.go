package service

import (
	"time"

	"ropewalk/internal/admission"
	"ropewalk/internal/cache"
	"ropewalk/internal/capacity"
	"ropewalk/internal/checkin"
	"ropewalk/internal/external"
	"ropewalk/internal/messaging"
	"ropewalk/internal/repository"
)

type Services struct {
	Events         *EventService
	Participations *ParticipationService
	CheckIns       *CheckInService
}

func NewServices(repos *repository.Repositories, natsClient *messaging.NATSClient, paymentClient *external.PaymentClient, vettingClient *external.VettingClient, valkeyClient *cache.ValkeyClient, capacityTTL time.Duration) *Services {
	registry := capacity.NewRegistry(capacity.LoaderFunc(repos.Events.LoadMatrix))
	engine := admission.NewEngine(registry, repos.Participations, repos.Audit)
	ledger := checkin.NewLedger(registry, repos.CheckIns, repos.Audit)
	reconciler := checkin.NewReconciler(ledger, repos.Roster)

	eventService := NewEventService(repos.Events, repos.EventSearch, registry, natsClient)
	participationService := NewParticipationService(engine, registry, repos.Events, repos.Participations, paymentClient, vettingClient, valkeyClient, natsClient)
	checkInService := NewCheckInService(ledger, reconciler, registry, repos.Events, repos.Participations, repos.CheckIns, repos.Roster, valkeyClient, natsClient, capacityTTL)

	return &Services{
		Events:         eventService,
		Participations: participationService,
		CheckIns:       checkInService,
	}
}

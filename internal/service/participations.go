package service

import (
	"context"
	"fmt"
	"time"

	"ropewalk/internal/admission"
	"ropewalk/internal/cache"
	"ropewalk/internal/capacity"
	"ropewalk/internal/errors"
	"ropewalk/internal/external"
	"ropewalk/internal/logger"
	"ropewalk/internal/messaging"
	"ropewalk/internal/middleware"
	"ropewalk/internal/models"
	"ropewalk/internal/repository"

	"github.com/google/uuid"
)

type ParticipationService struct {
	engine            *admission.Engine
	registry          *capacity.Registry
	eventRepo         *repository.EventRepository
	participationRepo *repository.ParticipationRepository
	paymentClient     *external.PaymentClient
	vettingClient     *external.VettingClient
	valkeyClient      *cache.ValkeyClient
	natsClient        *messaging.NATSClient
}

func NewParticipationService(engine *admission.Engine, registry *capacity.Registry, eventRepo *repository.EventRepository, participationRepo *repository.ParticipationRepository, paymentClient *external.PaymentClient, vettingClient *external.VettingClient, valkeyClient *cache.ValkeyClient, natsClient *messaging.NATSClient) *ParticipationService {
	return &ParticipationService{
		engine:            engine,
		registry:          registry,
		eventRepo:         eventRepo,
		participationRepo: participationRepo,
		paymentClient:     paymentClient,
		vettingClient:     vettingClient,
		valkeyClient:      valkeyClient,
		natsClient:        natsClient,
	}
}

// RSVP admits the authenticated user to a social event's social session.
// Social events only admit vetted members.
func (s *ParticipationService) RSVP(ctx context.Context, req *models.RSVPRequest) (*models.ParticipationResponse, error) {
	userID, ok := middleware.UserIDFromContext(ctx)
	if !ok {
		return nil, errors.ErrUnauthorized
	}

	event, err := s.eventRepo.GetByID(ctx, req.EventID)
	if err != nil {
		return nil, fmt.Errorf("failed to get event: %w", err)
	}
	if event == nil {
		return nil, fmt.Errorf("%w: event %d", errors.ErrNotFound, req.EventID)
	}
	if event.SocialSession == "" {
		return nil, fmt.Errorf("%w: event %d does not accept RSVPs", errors.ErrInvalidArgument, req.EventID)
	}

	if err := s.requireVetting(ctx, event, userID); err != nil {
		return nil, err
	}

	result, err := s.engine.Admit(ctx, admission.AdmitRequest{
		EventID:    req.EventID,
		UserID:     userID,
		Kind:       models.KindRSVP,
		SessionIDs: []string{event.SocialSession},
	})
	if err != nil {
		return nil, err
	}

	if !result.AlreadyExisted {
		s.afterAdmission(ctx, result.Participation)
	}

	return participationResponse(result.Participation), nil
}

// PurchaseTicket captures payment for a ticket type and then attempts
// admission to every session the ticket includes, all-or-nothing. A failed
// admission cancels the payment; a waitlisted one keeps it, the spot is
// granted by the promotion sweep when capacity frees up.
func (s *ParticipationService) PurchaseTicket(ctx context.Context, req *models.PurchaseTicketRequest) (*models.ParticipationResponse, string, error) {
	userID, ok := middleware.UserIDFromContext(ctx)
	if !ok {
		return nil, "", errors.ErrUnauthorized
	}

	event, err := s.eventRepo.GetByID(ctx, req.EventID)
	if err != nil {
		return nil, "", fmt.Errorf("failed to get event: %w", err)
	}
	if event == nil {
		return nil, "", fmt.Errorf("%w: event %d", errors.ErrNotFound, req.EventID)
	}

	ticketType, err := s.eventRepo.GetTicketType(ctx, req.EventID, req.TicketTypeCode)
	if err != nil {
		return nil, "", fmt.Errorf("failed to get ticket type: %w", err)
	}
	if ticketType == nil {
		return nil, "", fmt.Errorf("%w: ticket type %q", errors.ErrNotFound, req.TicketTypeCode)
	}
	if !ticketType.SalesWindowOpen(time.Now().UTC()) {
		return nil, "", fmt.Errorf("%w: ticket type %q is not on sale", errors.ErrInvalidState, req.TicketTypeCode)
	}

	if err := s.requireVetting(ctx, event, userID); err != nil {
		return nil, "", err
	}

	var paymentURL, paymentID string
	if ticketType.PriceCents > 0 {
		orderID := uuid.New().String()
		description := fmt.Sprintf("%s: %s", event.Title, ticketType.Name)
		paymentResp, err := s.paymentClient.InitPayment(ticketType.PriceCents, orderID, "USD", description)
		if err != nil {
			return nil, "", fmt.Errorf("failed to initialize payment: %w", err)
		}
		paymentURL = paymentResp.PaymentURL
		paymentID = paymentResp.PaymentID
	}

	result, err := s.engine.Admit(ctx, admission.AdmitRequest{
		EventID:        req.EventID,
		UserID:         userID,
		Kind:           models.KindTicket,
		TicketTypeCode: &ticketType.Code,
		SessionIDs:     ticketType.IncludedSessions,
	})
	if err != nil {
		if paymentID != "" {
			if cancelErr := s.paymentClient.CancelPayment(paymentID, "Admission failed"); cancelErr != nil {
				logger.WithContext(ctx).Error("Failed to cancel payment after admission failure",
					"error", cancelErr,
					"payment_id", paymentID)
			}
		}
		return nil, "", err
	}

	if !result.AlreadyExisted {
		s.afterAdmission(ctx, result.Participation)
	}

	return participationResponse(result.Participation), paymentURL, nil
}

// Cancel releases every session the participation held and frees the spots
// for the waitlist.
func (s *ParticipationService) Cancel(ctx context.Context, req *models.CancelParticipationRequest) (*models.ParticipationResponse, error) {
	reason := req.Reason
	if reason == "" {
		reason = "Cancelled by member"
	}

	p, err := s.engine.Cancel(ctx, req.ParticipationID, reason)
	if err != nil {
		return nil, err
	}

	s.afterTermination(ctx, p, reason)

	return participationResponse(p), nil
}

// Refund is a staff action: terminal like Cancel but recorded distinctly for
// reconciliation with the payment gateway.
func (s *ParticipationService) Refund(ctx context.Context, participationID, reason string) (*models.ParticipationResponse, error) {
	if reason == "" {
		reason = "Refunded by staff"
	}

	p, err := s.engine.Refund(ctx, participationID, reason)
	if err != nil {
		return nil, err
	}

	s.afterTermination(ctx, p, reason)

	return participationResponse(p), nil
}

// Status returns the authenticated user's participation card for one event.
func (s *ParticipationService) Status(ctx context.Context, eventID int64) (*models.ParticipationStatusResponse, error) {
	userID, ok := middleware.UserIDFromContext(ctx)
	if !ok {
		return nil, errors.ErrUnauthorized
	}

	event, err := s.eventRepo.GetByID(ctx, eventID)
	if err != nil {
		return nil, fmt.Errorf("failed to get event: %w", err)
	}
	if event == nil {
		return nil, fmt.Errorf("%w: event %d", errors.ErrNotFound, eventID)
	}

	participations, err := s.participationRepo.ListByUser(ctx, eventID, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list participations: %w", err)
	}

	resp := &models.ParticipationStatusResponse{}
	for i := range participations {
		p := &participations[i]
		if p.Status != models.StatusActive && p.Status != models.StatusWaitlisted {
			continue
		}
		switch p.Kind {
		case models.KindRSVP:
			resp.HasRSVP = true
			resp.RSVP = p
		case models.KindTicket:
			resp.HasTicket = true
			resp.Ticket = p
		}
	}
	resp.CanRSVP = event.SocialSession != "" && !resp.HasRSVP

	info, err := buildCapacityInfo(ctx, s.registry, s.participationRepo, eventID)
	if err != nil {
		return nil, err
	}
	resp.Capacity = *info

	return resp, nil
}

// PromoteEvent runs one waitlist promotion pass for the event. It must run
// in this process: promotions reserve through the same matrix admissions and
// cancellations mutate, and this process is the only writer of the session
// counters.
func (s *ParticipationService) PromoteEvent(ctx context.Context, eventID int64) {
	promoted, err := s.engine.PromoteWaitlist(ctx, eventID)
	if err != nil {
		logger.WithContext(ctx).Error("Waitlist promotion failed", "event_id", eventID, "error", err)
		return
	}
	if len(promoted) == 0 {
		return
	}

	s.persistCounts(ctx, eventID)
	s.invalidateCapacity(ctx, eventID)

	if s.natsClient != nil {
		for _, p := range promoted {
			payload := models.ParticipationPromotedEvent{
				ParticipationID: p.ID,
				EventID:         p.EventID,
				UserID:          p.UserID,
				Timestamp:       time.Now(),
			}
			if err := s.natsClient.Publish(models.EventParticipationPromoted, payload); err != nil {
				// Log error but don't fail the operation
				logger.WithContext(ctx).Error("Failed to publish promotion event",
					"error", err,
					"participation_id", p.ID,
					"event_type", models.EventParticipationPromoted)
			}
		}
	}

	logger.WithContext(ctx).Info("Waitlist promotion completed", "event_id", eventID, "promoted", len(promoted))
}

// HandlePaymentNotification processes gateway webhooks. The gateway is
// re-queried rather than trusting the webhook body.
func (s *ParticipationService) HandlePaymentNotification(ctx context.Context, paymentID, status string) error {
	check, err := s.paymentClient.CheckPayment(paymentID)
	if err != nil {
		return fmt.Errorf("failed to verify payment: %w", err)
	}

	logger.WithContext(ctx).Info("Payment notification verified",
		"payment_id", paymentID,
		"reported_status", status,
		"order_id", check.OrderID)

	for _, payment := range check.Payments {
		if payment.Status == "AUTHORIZED" {
			if err := s.paymentClient.ConfirmPayment(payment.PaymentID, payment.Amount); err != nil {
				return fmt.Errorf("failed to confirm payment: %w", err)
			}
		}
	}

	return nil
}

func (s *ParticipationService) requireVetting(ctx context.Context, event *models.Event, userID int64) error {
	if event.Type != models.EventTypeSocial || s.vettingClient == nil {
		return nil
	}

	vetted, err := s.vettingClient.IsVetted(ctx, userID)
	if err != nil {
		return fmt.Errorf("failed to check vetting status: %w", err)
	}
	if !vetted {
		return fmt.Errorf("%w: social events require a vetted membership", errors.ErrForbidden)
	}
	return nil
}

// afterAdmission persists the new session counters, drops the capacity
// projection and publishes the outcome event. None of these may fail the
// admission that already committed.
func (s *ParticipationService) afterAdmission(ctx context.Context, p *models.Participation) {
	s.persistCounts(ctx, p.EventID)
	s.invalidateCapacity(ctx, p.EventID)

	if s.natsClient == nil {
		return
	}

	var subject string
	var payload interface{}
	if p.Status == models.StatusActive {
		subject = models.EventParticipationAdmitted
		payload = models.ParticipationAdmittedEvent{
			ParticipationID: p.ID,
			EventID:         p.EventID,
			UserID:          p.UserID,
			Kind:            p.Kind,
			Sessions:        p.Sessions,
			Timestamp:       time.Now(),
		}
	} else {
		subject = models.EventParticipationWaitlisted
		payload = models.ParticipationWaitlistedEvent{
			ParticipationID: p.ID,
			EventID:         p.EventID,
			UserID:          p.UserID,
			Kind:            p.Kind,
			Timestamp:       time.Now(),
		}
	}

	if err := s.natsClient.Publish(subject, payload); err != nil {
		// Log error but don't fail the operation
		logger.WithContext(ctx).Error("Failed to publish admission event",
			"error", err,
			"participation_id", p.ID,
			"event_type", subject)
	}
}

func (s *ParticipationService) afterTermination(ctx context.Context, p *models.Participation, reason string) {
	s.persistCounts(ctx, p.EventID)
	s.invalidateCapacity(ctx, p.EventID)

	if s.natsClient == nil {
		return
	}

	payload := models.ParticipationCancelledEvent{
		ParticipationID: p.ID,
		EventID:         p.EventID,
		UserID:          p.UserID,
		Status:          p.Status,
		Reason:          reason,
		Timestamp:       time.Now(),
	}
	if err := s.natsClient.Publish(models.EventParticipationCancelled, payload); err != nil {
		// Log error but don't fail the operation
		logger.WithContext(ctx).Error("Failed to publish cancellation event",
			"error", err,
			"participation_id", p.ID,
			"event_type", models.EventParticipationCancelled)
	}
}

func (s *ParticipationService) persistCounts(ctx context.Context, eventID int64) {
	matrix, err := s.registry.Get(ctx, eventID)
	if err != nil {
		logger.WithContext(ctx).Error("Failed to load matrix for persistence",
			"error", err,
			"event_id", eventID)
		return
	}
	if err := s.eventRepo.SaveSessionCounts(ctx, matrix.Snapshot()); err != nil {
		logger.WithContext(ctx).Error("Failed to persist session counts",
			"error", err,
			"event_id", eventID)
	}
}

func (s *ParticipationService) invalidateCapacity(ctx context.Context, eventID int64) {
	if s.valkeyClient == nil {
		return
	}
	if err := s.valkeyClient.InvalidateCapacityInfo(ctx, eventID); err != nil {
		logger.WithContext(ctx).Error("Failed to invalidate capacity cache",
			"error", err,
			"event_id", eventID)
	}
}

func participationResponse(p *models.Participation) *models.ParticipationResponse {
	return &models.ParticipationResponse{
		ID:       p.ID,
		Status:   p.Status,
		Kind:     p.Kind,
		Sessions: p.Sessions,
	}
}

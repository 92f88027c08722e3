package service

import (
	"context"
	"fmt"
	"time"

	"ropewalk/internal/capacity"
	"ropewalk/internal/errors"
	"ropewalk/internal/logger"
	"ropewalk/internal/messaging"
	"ropewalk/internal/models"
	"ropewalk/internal/repository"
	"ropewalk/internal/search"
)

type EventService struct {
	eventRepo  *repository.EventRepository
	eventIndex *search.EventIndex
	registry   *capacity.Registry
	natsClient *messaging.NATSClient
}

func NewEventService(eventRepo *repository.EventRepository, eventIndex *search.EventIndex, registry *capacity.Registry, natsClient *messaging.NATSClient) *EventService {
	return &EventService{
		eventRepo:  eventRepo,
		eventIndex: eventIndex,
		registry:   registry,
		natsClient: natsClient,
	}
}

func (s *EventService) Create(ctx context.Context, req *models.CreateEventRequest) (*models.CreateEventResponse, error) {
	if req.Type != models.EventTypeClass && req.Type != models.EventTypeSocial && req.Type != models.EventTypeWorkshop {
		return nil, fmt.Errorf("%w: unknown event type %q", errors.ErrInvalidArgument, req.Type)
	}

	sessionCodes := make(map[string]bool, len(req.Sessions))
	for _, item := range req.Sessions {
		if sessionCodes[item.Code] {
			return nil, fmt.Errorf("%w: duplicate session code %q", errors.ErrInvalidArgument, item.Code)
		}
		sessionCodes[item.Code] = true
	}

	socialSession := ""
	if req.SocialSession != nil {
		if !sessionCodes[*req.SocialSession] {
			return nil, fmt.Errorf("%w: social session %q is not one of the event's sessions", errors.ErrInvalidArgument, *req.SocialSession)
		}
		socialSession = *req.SocialSession
	} else if req.Type == models.EventTypeSocial {
		socialSession = req.Sessions[0].Code
	}

	for _, tt := range req.TicketTypes {
		for _, code := range tt.IncludedSessions {
			if !sessionCodes[code] {
				return nil, fmt.Errorf("%w: ticket type %q includes unknown session %q", errors.ErrInvalidArgument, tt.Code, code)
			}
		}
	}

	event := &models.Event{
		Title:         req.Title,
		Description:   req.Description,
		Type:          req.Type,
		StartDate:     req.StartDate,
		EndDate:       req.EndDate,
		Capacity:      req.Capacity,
		SocialSession: socialSession,
	}

	sessions := make([]models.Session, len(req.Sessions))
	for i, item := range req.Sessions {
		sessions[i] = models.Session{
			Code:     item.Code,
			Title:    item.Title,
			Capacity: item.Capacity,
			Active:   true,
		}
	}

	ticketTypes := make([]models.TicketType, len(req.TicketTypes))
	for i, item := range req.TicketTypes {
		ticketTypes[i] = models.TicketType{
			Code:             item.Code,
			Name:             item.Name,
			IncludedSessions: item.IncludedSessions,
			PriceCents:       item.PriceCents,
			SalesOpenAt:      item.SalesOpenAt,
			SalesCloseAt:     item.SalesCloseAt,
		}
	}

	if err := s.eventRepo.Create(ctx, event, sessions, ticketTypes); err != nil {
		return nil, fmt.Errorf("failed to create event: %w", err)
	}

	if s.eventIndex != nil {
		if err := s.eventIndex.IndexEvent(ctx, event); err != nil {
			// Log error but don't fail the operation
			logger.WithContext(ctx).Error("Failed to index event",
				"error", err,
				"event_id", event.ID)
		}
	}

	return &models.CreateEventResponse{ID: event.ID}, nil
}

func (s *EventService) GetByID(ctx context.Context, id int64) (*models.Event, error) {
	event, err := s.eventRepo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get event: %w", err)
	}
	if event == nil {
		return nil, fmt.Errorf("%w: event %d", errors.ErrNotFound, id)
	}
	return event, nil
}

// List returns the event listing, served from Elasticsearch when a query or
// date filter is set and from Postgres otherwise.
func (s *EventService) List(ctx context.Context, query, date string, page, pageSize int) ([]models.ListEventsResponseItem, error) {
	var (
		events []models.Event
		err    error
	)

	if s.eventIndex != nil && (query != "" || date != "") {
		events, err = s.eventIndex.Search(ctx, query, date, page, pageSize)
	} else {
		events, err = s.eventRepo.List(ctx, page, pageSize)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to list events: %w", err)
	}

	result := make([]models.ListEventsResponseItem, len(events))
	for i, event := range events {
		result[i] = models.ListEventsResponseItem{
			ID:        event.ID,
			Title:     event.Title,
			Type:      event.Type,
			StartDate: event.StartDate,
		}
	}

	return result, nil
}

// TicketAvailability derives the advisory availability of every ticket type
// from the live capacity matrix. Values may be stale by the time a purchase
// lands; the admission engine re-checks atomically.
func (s *EventService) TicketAvailability(ctx context.Context, eventID int64) ([]models.TicketAvailabilityItem, error) {
	ticketTypes, err := s.eventRepo.GetTicketTypes(ctx, eventID)
	if err != nil {
		return nil, fmt.Errorf("failed to get ticket types: %w", err)
	}

	matrix, err := s.registry.Get(ctx, eventID)
	if err != nil {
		return nil, err
	}
	snap := matrix.Snapshot()
	now := time.Now().UTC()

	result := make([]models.TicketAvailabilityItem, len(ticketTypes))
	for i := range ticketTypes {
		tt := &ticketTypes[i]
		availability := capacity.ResolveTicketType(tt, snap, now)
		result[i] = models.TicketAvailabilityItem{
			Code:            availability.TicketTypeCode,
			Name:            tt.Name,
			AvailableSpots:  availability.AvailableSpots,
			LimitingSession: availability.LimitingSession,
			IsOnSale:        availability.IsOnSale,
		}
	}

	return result, nil
}

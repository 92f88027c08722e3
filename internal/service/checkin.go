package service

import (
	"context"
	"fmt"
	"time"

	"ropewalk/internal/cache"
	"ropewalk/internal/capacity"
	"ropewalk/internal/checkin"
	"ropewalk/internal/errors"
	"ropewalk/internal/logger"
	"ropewalk/internal/messaging"
	"ropewalk/internal/middleware"
	"ropewalk/internal/models"
	"ropewalk/internal/repository"
)

type CheckInService struct {
	ledger            *checkin.Ledger
	reconciler        *checkin.Reconciler
	registry          *capacity.Registry
	eventRepo         *repository.EventRepository
	participationRepo *repository.ParticipationRepository
	checkInRepo       *repository.CheckInRepository
	rosterRepo        *repository.RosterRepository
	valkeyClient      *cache.ValkeyClient
	natsClient        *messaging.NATSClient
	capacityTTL       time.Duration
}

func NewCheckInService(ledger *checkin.Ledger, reconciler *checkin.Reconciler, registry *capacity.Registry, eventRepo *repository.EventRepository, participationRepo *repository.ParticipationRepository, checkInRepo *repository.CheckInRepository, rosterRepo *repository.RosterRepository, valkeyClient *cache.ValkeyClient, natsClient *messaging.NATSClient, capacityTTL time.Duration) *CheckInService {
	return &CheckInService{
		ledger:            ledger,
		reconciler:        reconciler,
		registry:          registry,
		eventRepo:         eventRepo,
		participationRepo: participationRepo,
		checkInRepo:       checkInRepo,
		rosterRepo:        rosterRepo,
		valkeyClient:      valkeyClient,
		natsClient:        natsClient,
		capacityTTL:       capacityTTL,
	}
}

// CheckIn applies one online check-in performed by staff at the door.
func (s *CheckInService) CheckIn(ctx context.Context, req *models.CheckInRequest) (*models.CheckInResponse, error) {
	staffID, ok := middleware.UserIDFromContext(ctx)
	if !ok {
		return nil, errors.ErrUnauthorized
	}

	if !req.IsManualEntry {
		entry, err := s.rosterRepo.GetRosterEntry(ctx, req.EventID, req.AttendeeID)
		if err != nil {
			return nil, fmt.Errorf("failed to look up roster entry: %w", err)
		}
		if entry == nil {
			return nil, fmt.Errorf("%w: attendee %s is not on the roster", errors.ErrNotFound, req.AttendeeID)
		}
	}

	outcome, err := s.ledger.CheckIn(ctx, checkin.Request{
		EventID:          req.EventID,
		AttendeeID:       req.AttendeeID,
		CheckInTime:      req.CheckInTime,
		StaffMemberID:    staffID,
		Notes:            req.Notes,
		IsManualEntry:    req.IsManualEntry,
		ManualEntryData:  req.ManualEntryData,
		OverrideCapacity: req.OverrideCapacity,
	})
	if err != nil {
		return nil, err
	}

	if outcome.Status == checkin.StatusApplied || outcome.Status == checkin.StatusAppliedViaOverride {
		s.invalidateCapacity(ctx, req.EventID)
		s.publishCheckIn(ctx, outcome.Record)
	}

	info, err := s.CapacityInfo(ctx, req.EventID)
	if err != nil {
		return nil, err
	}

	return &models.CheckInResponse{
		Status:   outcome.Status,
		Record:   outcome.Record,
		Capacity: *info,
	}, nil
}

// Sync reconciles one device's offline check-in batch.
func (s *CheckInService) Sync(ctx context.Context, req *models.SyncRequest) (*models.SyncResult, error) {
	staffID, ok := middleware.UserIDFromContext(ctx)
	if !ok {
		return nil, errors.ErrUnauthorized
	}

	// The syncing staff member is accountable for items queued before the
	// device knew who was logged in.
	for i := range req.PendingCheckIns {
		if req.PendingCheckIns[i].StaffMemberID == 0 {
			req.PendingCheckIns[i].StaffMemberID = staffID
		}
	}

	result, err := s.reconciler.Sync(ctx, req.DeviceID, req.EventID, req.PendingCheckIns)
	if err != nil {
		return nil, err
	}

	if result.ProcessedCount > 0 {
		s.invalidateCapacity(ctx, req.EventID)
	}

	if s.natsClient != nil {
		payload := models.SyncCompletedEvent{
			DeviceID:       req.DeviceID,
			EventID:        req.EventID,
			ProcessedCount: result.ProcessedCount,
			ConflictCount:  len(result.Conflicts),
			Timestamp:      time.Now(),
		}
		if err := s.natsClient.Publish(models.EventSyncCompleted, payload); err != nil {
			// Log error but don't fail the operation
			logger.WithContext(ctx).Error("Failed to publish sync completed event",
				"error", err,
				"device_id", req.DeviceID,
				"event_type", models.EventSyncCompleted)
		}
	}

	return result, nil
}

// CapacityInfo returns the event's capacity projection, cached in Valkey for
// a short TTL. The cache never feeds decisions, only dashboards.
func (s *CheckInService) CapacityInfo(ctx context.Context, eventID int64) (*models.CapacityInfo, error) {
	if s.valkeyClient != nil {
		cached, err := s.valkeyClient.GetCapacityInfo(ctx, eventID)
		if err != nil {
			logger.WithContext(ctx).Warn("Capacity cache read failed",
				"error", err,
				"event_id", eventID)
		} else if cached != nil {
			return cached, nil
		}
	}

	info, err := buildCapacityInfo(ctx, s.registry, s.participationRepo, eventID)
	if err != nil {
		return nil, err
	}

	if s.valkeyClient != nil {
		if err := s.valkeyClient.SetCapacityInfo(ctx, eventID, info, s.capacityTTL); err != nil {
			logger.WithContext(ctx).Warn("Capacity cache write failed",
				"error", err,
				"event_id", eventID)
		}
	}

	return info, nil
}

// Attendees returns the paginated roster for the check-in interface.
func (s *CheckInService) Attendees(ctx context.Context, eventID int64, searchTerm, status string, page, pageSize int) (*models.ListAttendeesResponse, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 200 {
		pageSize = 50
	}

	attendees, total, err := s.rosterRepo.ListAttendees(ctx, eventID, searchTerm, status, page, pageSize)
	if err != nil {
		return nil, fmt.Errorf("failed to list attendees: %w", err)
	}

	info, err := s.CapacityInfo(ctx, eventID)
	if err != nil {
		return nil, err
	}

	return &models.ListAttendeesResponse{
		EventID:    eventID,
		Attendees:  attendees,
		Capacity:   *info,
		Page:       page,
		PageSize:   pageSize,
		TotalCount: total,
	}, nil
}

// Dashboard returns the live door view for one event.
func (s *CheckInService) Dashboard(ctx context.Context, eventID int64) (*models.DashboardResponse, error) {
	event, err := s.eventRepo.GetByID(ctx, eventID)
	if err != nil {
		return nil, fmt.Errorf("failed to get event: %w", err)
	}
	if event == nil {
		return nil, fmt.Errorf("%w: event %d", errors.ErrNotFound, eventID)
	}

	info, err := s.CapacityInfo(ctx, eventID)
	if err != nil {
		return nil, err
	}

	recent, err := s.checkInRepo.RecentByEvent(ctx, eventID, 10)
	if err != nil {
		return nil, fmt.Errorf("failed to get recent check-ins: %w", err)
	}

	return &models.DashboardResponse{
		EventID:        eventID,
		EventTitle:     event.Title,
		EventStatus:    eventStatus(event, time.Now().UTC()),
		Capacity:       *info,
		RecentCheckIns: recent,
	}, nil
}

func (s *CheckInService) publishCheckIn(ctx context.Context, record *models.CheckInRecord) {
	if s.natsClient == nil {
		return
	}

	subject := models.EventCheckInApplied
	if record.ViaOverride {
		subject = models.EventCheckInOverride
	}
	payload := models.CheckInAppliedEvent{
		RecordID:    record.ID,
		EventID:     record.EventID,
		AttendeeID:  record.AttendeeID,
		ViaOverride: record.ViaOverride,
		Timestamp:   time.Now(),
	}
	if err := s.natsClient.Publish(subject, payload); err != nil {
		// Log error but don't fail the operation
		logger.WithContext(ctx).Error("Failed to publish check-in event",
			"error", err,
			"record_id", record.ID,
			"event_type", subject)
	}
}

func (s *CheckInService) invalidateCapacity(ctx context.Context, eventID int64) {
	if s.valkeyClient == nil {
		return
	}
	if err := s.valkeyClient.InvalidateCapacityInfo(ctx, eventID); err != nil {
		logger.WithContext(ctx).Error("Failed to invalidate capacity cache",
			"error", err,
			"event_id", eventID)
	}
}

func eventStatus(event *models.Event, now time.Time) string {
	switch {
	case now.Before(event.StartDate):
		return "UPCOMING"
	case now.After(event.EndDate):
		return "COMPLETED"
	default:
		return "IN_PROGRESS"
	}
}

// buildCapacityInfo recomputes the projection from the live matrix and the
// waitlist count. Shared by the participation card and the dashboards.
func buildCapacityInfo(ctx context.Context, registry *capacity.Registry, participationRepo *repository.ParticipationRepository, eventID int64) (*models.CapacityInfo, error) {
	matrix, err := registry.Get(ctx, eventID)
	if err != nil {
		return nil, err
	}
	snap := matrix.Snapshot()

	waitlist, err := participationRepo.CountByStatus(ctx, eventID, models.StatusWaitlisted)
	if err != nil {
		return nil, fmt.Errorf("failed to count waitlist: %w", err)
	}

	available := snap.TotalCapacity - snap.CheckedIn
	if available < 0 {
		available = 0
	}

	return &models.CapacityInfo{
		TotalCapacity:  snap.TotalCapacity,
		CheckedInCount: snap.CheckedIn,
		WaitlistCount:  waitlist,
		AvailableSpots: available,
		IsAtCapacity:   snap.CheckedIn >= snap.TotalCapacity,
		CanOverride:    true,
	}, nil
}

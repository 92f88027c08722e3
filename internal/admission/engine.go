// Package admission decides whether a registration request gets a spot, a
// waitlist place, or nothing. All counter mutation goes through the per-event
// capacity matrix so that concurrent requests can never oversell a session.
package admission

import (
	"context"
	"fmt"
	"sync"
	"time"

	"ropewalk/internal/audit"
	"ropewalk/internal/capacity"
	"ropewalk/internal/errors"
	"ropewalk/internal/logger"
	"ropewalk/internal/models"

	"github.com/google/uuid"
)

// ParticipationStore persists participation rows. The Postgres implementation
// lives in the repository package; tests use an in-memory one.
type ParticipationStore interface {
	// FindOpen returns the user's non-terminal participation for the key,
	// preferring ACTIVE over WAITLISTED, or nil when there is none.
	FindOpen(ctx context.Context, eventID, userID int64, kind string) (*models.Participation, error)
	GetByID(ctx context.Context, id string) (*models.Participation, error)
	Create(ctx context.Context, p *models.Participation) error
	SetStatus(ctx context.Context, id, status string, cancelledAt *time.Time, reason *string) error
	ListWaitlisted(ctx context.Context, eventID int64) ([]models.Participation, error)
}

// AdmitRequest asks for one participation. For RSVP the session set is the
// event's social session; for tickets it is the purchased ticket type's
// included sessions, resolved by the caller before payment.
type AdmitRequest struct {
	EventID        int64
	UserID         int64
	Kind           string
	TicketTypeCode *string
	SessionIDs     []string
}

// AdmitResult reports the outcome of one admission attempt.
type AdmitResult struct {
	Participation *models.Participation
	// AlreadyExisted is set when an identical active participation was found
	// and the call was an idempotent no-op.
	AlreadyExisted bool
}

// Engine orchestrates admissions against the capacity matrix. Mutations for
// one event serialize on a per-event lock so the find-then-create pair in
// Admit cannot race itself.
type Engine struct {
	registry *capacity.Registry
	store    ParticipationStore
	audit    audit.Recorder

	mu      sync.Mutex
	eventMu map[int64]*sync.Mutex
}

func NewEngine(registry *capacity.Registry, store ParticipationStore, recorder audit.Recorder) *Engine {
	return &Engine{
		registry: registry,
		store:    store,
		audit:    recorder,
		eventMu:  make(map[int64]*sync.Mutex),
	}
}

func (e *Engine) lockEvent(eventID int64) *sync.Mutex {
	e.mu.Lock()
	defer e.mu.Unlock()
	mu, ok := e.eventMu[eventID]
	if !ok {
		mu = &sync.Mutex{}
		e.eventMu[eventID] = mu
	}
	return mu
}

// Admit reserves the requested sessions all-or-nothing. On success the
// participation is created ACTIVE; when any session is full it is created
// WAITLISTED with no sessions held. An existing active or waitlisted
// participation for the same (user, event, kind) makes the call an idempotent
// no-op, so a client that timed out can retry and get the same row back.
func (e *Engine) Admit(ctx context.Context, req AdmitRequest) (*AdmitResult, error) {
	if req.Kind != models.KindRSVP && req.Kind != models.KindTicket {
		return nil, fmt.Errorf("%w: unknown participation kind %q", errors.ErrInvalidArgument, req.Kind)
	}
	if len(req.SessionIDs) == 0 {
		return nil, fmt.Errorf("%w: admission needs at least one session", errors.ErrInvalidArgument)
	}

	mu := e.lockEvent(req.EventID)
	mu.Lock()
	defer mu.Unlock()

	existing, err := e.store.FindOpen(ctx, req.EventID, req.UserID, req.Kind)
	if err != nil {
		return nil, fmt.Errorf("failed to look up existing participation: %w", err)
	}
	if existing != nil {
		return &AdmitResult{Participation: existing, AlreadyExisted: true}, nil
	}

	matrix, err := e.registry.Get(ctx, req.EventID)
	if err != nil {
		return nil, err
	}

	reserved, err := matrix.TryReserve(req.SessionIDs, 1)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	p := &models.Participation{
		ID:             uuid.New().String(),
		EventID:        req.EventID,
		UserID:         req.UserID,
		Kind:           req.Kind,
		TicketTypeCode: req.TicketTypeCode,
		CreatedAt:      now,
	}
	// Record the requested set on the row: for active participations it is
	// what cancellation must release (not re-derived from the ticket type,
	// which may change after purchase), for waitlisted ones it is what a
	// later promotion should try to reserve.
	p.Sessions = append([]string(nil), req.SessionIDs...)
	action := audit.ActionWaitlist
	if reserved {
		p.Status = models.StatusActive
		action = audit.ActionAdmit
	} else {
		p.Status = models.StatusWaitlisted
	}

	if err := e.store.Create(ctx, p); err != nil {
		if reserved {
			// Compensate so the spot is not leaked on a failed write.
			if relErr := matrix.Release(req.SessionIDs, 1); relErr != nil {
				logger.WithContext(ctx).Error("Failed to release sessions after store failure",
					"error", relErr,
					"event_id", req.EventID)
			}
		}
		return nil, fmt.Errorf("failed to create participation: %w", err)
	}

	e.record(ctx, audit.Entry{
		EventID:   req.EventID,
		ActorID:   req.UserID,
		Action:    action,
		Payload:   p,
		Timestamp: now,
	})

	return &AdmitResult{Participation: p}, nil
}

// Cancel transitions an active or waitlisted participation to CANCELLED and
// releases the sessions it held at admission time. Cancelling a participation
// that is already cancelled or refunded fails with ErrInvalidState.
func (e *Engine) Cancel(ctx context.Context, participationID, reason string) (*models.Participation, error) {
	return e.terminate(ctx, participationID, reason, models.StatusCancelled, audit.ActionCancel)
}

// Refund is Cancel with a REFUNDED terminal status; valid only from ACTIVE.
func (e *Engine) Refund(ctx context.Context, participationID, reason string) (*models.Participation, error) {
	return e.terminate(ctx, participationID, reason, models.StatusRefunded, audit.ActionRefund)
}

func (e *Engine) terminate(ctx context.Context, participationID, reason, status, action string) (*models.Participation, error) {
	p, err := e.store.GetByID(ctx, participationID)
	if err != nil {
		return nil, fmt.Errorf("failed to get participation: %w", err)
	}
	if p == nil {
		return nil, fmt.Errorf("%w: participation %s", errors.ErrNotFound, participationID)
	}

	mu := e.lockEvent(p.EventID)
	mu.Lock()
	defer mu.Unlock()

	// Re-read under the lock; a concurrent cancel may have won.
	p, err = e.store.GetByID(ctx, participationID)
	if err != nil {
		return nil, fmt.Errorf("failed to get participation: %w", err)
	}
	if p == nil {
		return nil, fmt.Errorf("%w: participation %s", errors.ErrNotFound, participationID)
	}
	if !p.CanBeCancelled() {
		return nil, fmt.Errorf("%w: participation %s is %s", errors.ErrInvalidState, participationID, p.Status)
	}
	if status == models.StatusRefunded && p.Status != models.StatusActive {
		return nil, fmt.Errorf("%w: only active participations can be refunded", errors.ErrInvalidState)
	}

	wasActive := p.Status == models.StatusActive

	now := time.Now().UTC()
	if err := e.store.SetStatus(ctx, participationID, status, &now, &reason); err != nil {
		return nil, fmt.Errorf("failed to update participation status: %w", err)
	}

	if wasActive && len(p.Sessions) > 0 {
		matrix, err := e.registry.Get(ctx, p.EventID)
		if err != nil {
			return nil, err
		}
		if err := matrix.Release(p.Sessions, 1); err != nil {
			return nil, err
		}
	}

	p.Status = status
	p.CancelledAt = &now
	p.CancellationReason = &reason

	e.record(ctx, audit.Entry{
		EventID:   p.EventID,
		ActorID:   p.UserID,
		Action:    action,
		Payload:   p,
		Timestamp: now,
	})

	return p, nil
}

// PromoteWaitlist walks the event's waitlist in creation order and activates
// every participation whose session set now fits. Called by the promotion
// runner in the API process, not by the request path.
func (e *Engine) PromoteWaitlist(ctx context.Context, eventID int64) ([]models.Participation, error) {
	mu := e.lockEvent(eventID)
	mu.Lock()
	defer mu.Unlock()

	waiting, err := e.store.ListWaitlisted(ctx, eventID)
	if err != nil {
		return nil, fmt.Errorf("failed to list waitlist: %w", err)
	}
	if len(waiting) == 0 {
		return nil, nil
	}

	matrix, err := e.registry.Get(ctx, eventID)
	if err != nil {
		return nil, err
	}

	var promoted []models.Participation
	for _, p := range waiting {
		// A waitlisted row whose user already holds an active participation
		// for the same kind must never be promoted; at most one active row
		// per (user, event, kind). Retire the duplicate instead.
		open, err := e.store.FindOpen(ctx, eventID, p.UserID, p.Kind)
		if err != nil {
			return promoted, fmt.Errorf("failed to look up existing participation: %w", err)
		}
		if open != nil && open.Status == models.StatusActive {
			now := time.Now().UTC()
			reason := "superseded by existing active participation"
			if err := e.store.SetStatus(ctx, p.ID, models.StatusCancelled, &now, &reason); err != nil {
				logger.WithContext(ctx).Error("Failed to retire duplicate waitlist entry",
					"error", err,
					"participation_id", p.ID)
			}
			continue
		}

		sessions, err := e.promotionSessions(ctx, &p)
		if err != nil {
			logger.WithContext(ctx).Error("Skipping waitlist entry with unresolvable sessions",
				"error", err,
				"participation_id", p.ID)
			continue
		}

		reserved, err := matrix.TryReserve(sessions, 1)
		if err != nil {
			return promoted, err
		}
		if !reserved {
			continue
		}

		now := time.Now().UTC()
		if err := e.store.SetStatus(ctx, p.ID, models.StatusActive, nil, nil); err != nil {
			if relErr := matrix.Release(sessions, 1); relErr != nil {
				logger.WithContext(ctx).Error("Failed to release sessions after promotion failure",
					"error", relErr,
					"participation_id", p.ID)
			}
			return promoted, fmt.Errorf("failed to activate participation %s: %w", p.ID, err)
		}

		p.Status = models.StatusActive
		promoted = append(promoted, p)

		e.record(ctx, audit.Entry{
			EventID:   eventID,
			ActorID:   p.UserID,
			Action:    audit.ActionPromote,
			Payload:   p,
			Timestamp: now,
		})
	}

	return promoted, nil
}

// promotionSessions resolves the session set a waitlisted participation
// should reserve when promoted. The set requested at admission time is kept
// on the row even for waitlisted participations that hold nothing yet.
func (e *Engine) promotionSessions(ctx context.Context, p *models.Participation) ([]string, error) {
	if len(p.Sessions) > 0 {
		return p.Sessions, nil
	}
	return nil, fmt.Errorf("%w: waitlisted participation %s has no requested sessions", errors.ErrInvalidState, p.ID)
}

func (e *Engine) record(ctx context.Context, entry audit.Entry) {
	if e.audit == nil {
		return
	}
	if err := e.audit.Record(ctx, entry); err != nil {
		// Audit failure never rolls back the decision it records.
		logger.WithContext(ctx).Error("Failed to record audit entry",
			"error", err,
			"event_id", entry.EventID,
			"action", entry.Action)
	}
}

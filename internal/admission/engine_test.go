package admission

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"ropewalk/internal/capacity"
	"ropewalk/internal/errors"
	"ropewalk/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// memStore is an in-memory ParticipationStore for engine tests.
type memStore struct {
	mu    sync.Mutex
	rows  map[string]*models.Participation
	order []string

	failCreate bool
}

func newMemStore() *memStore {
	return &memStore{rows: make(map[string]*models.Participation)}
}

func (s *memStore) FindOpen(_ context.Context, eventID, userID int64, kind string) (*models.Participation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var waitlisted *models.Participation
	for _, id := range s.order {
		p := s.rows[id]
		if p.EventID != eventID || p.UserID != userID || p.Kind != kind {
			continue
		}
		switch p.Status {
		case models.StatusActive:
			cp := *p
			return &cp, nil
		case models.StatusWaitlisted:
			if waitlisted == nil {
				cp := *p
				waitlisted = &cp
			}
		}
	}
	return waitlisted, nil
}

func (s *memStore) GetByID(_ context.Context, id string) (*models.Participation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.rows[id]
	if !ok {
		return nil, nil
	}
	cp := *p
	return &cp, nil
}

func (s *memStore) Create(_ context.Context, p *models.Participation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failCreate {
		return fmt.Errorf("store unavailable")
	}
	cp := *p
	s.rows[p.ID] = &cp
	s.order = append(s.order, p.ID)
	return nil
}

func (s *memStore) SetStatus(_ context.Context, id, status string, cancelledAt *time.Time, reason *string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.rows[id]
	if !ok {
		return fmt.Errorf("participation %s not found", id)
	}
	p.Status = status
	p.CancelledAt = cancelledAt
	p.CancellationReason = reason
	return nil
}

func (s *memStore) ListWaitlisted(_ context.Context, eventID int64) ([]models.Participation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Participation
	for _, id := range s.order {
		p := s.rows[id]
		if p.EventID == eventID && p.Status == models.StatusWaitlisted {
			out = append(out, *p)
		}
	}
	return out, nil
}

func newTestEngine(t *testing.T, sessionCapacity int) (*Engine, *memStore) {
	t.Helper()
	store := newMemStore()
	registry := capacity.NewRegistry(capacity.LoaderFunc(func(_ context.Context, eventID int64) (*capacity.Matrix, error) {
		return capacity.NewMatrix(eventID, sessionCapacity, []models.Session{
			{EventID: eventID, Code: "S1", Capacity: sessionCapacity, Active: true},
			{EventID: eventID, Code: "S2", Capacity: sessionCapacity, Active: true},
		}), nil
	}))
	return NewEngine(registry, store, nil), store
}

func TestEngine_AdmitActive(t *testing.T) {
	engine, _ := newTestEngine(t, 5)

	result, err := engine.Admit(context.Background(), AdmitRequest{
		EventID:    1,
		UserID:     10,
		Kind:       models.KindRSVP,
		SessionIDs: []string{"S1"},
	})
	require.NoError(t, err)
	assert.False(t, result.AlreadyExisted)
	assert.Equal(t, models.StatusActive, result.Participation.Status)
	assert.Equal(t, []string{"S1"}, result.Participation.Sessions)
}

func TestEngine_AdmitWaitlistsWhenFull(t *testing.T) {
	engine, _ := newTestEngine(t, 1)
	ctx := context.Background()

	first, err := engine.Admit(ctx, AdmitRequest{EventID: 1, UserID: 10, Kind: models.KindRSVP, SessionIDs: []string{"S1"}})
	require.NoError(t, err)
	require.Equal(t, models.StatusActive, first.Participation.Status)

	second, err := engine.Admit(ctx, AdmitRequest{EventID: 1, UserID: 11, Kind: models.KindRSVP, SessionIDs: []string{"S1"}})
	require.NoError(t, err)
	assert.Equal(t, models.StatusWaitlisted, second.Participation.Status)
	assert.Equal(t, []string{"S1"}, second.Participation.Sessions, "waitlisted rows keep the requested set for promotion")
}

func TestEngine_AdmitIdempotentPerUserEventKind(t *testing.T) {
	engine, _ := newTestEngine(t, 5)
	ctx := context.Background()

	first, err := engine.Admit(ctx, AdmitRequest{EventID: 1, UserID: 10, Kind: models.KindRSVP, SessionIDs: []string{"S1"}})
	require.NoError(t, err)

	second, err := engine.Admit(ctx, AdmitRequest{EventID: 1, UserID: 10, Kind: models.KindRSVP, SessionIDs: []string{"S1"}})
	require.NoError(t, err)
	assert.True(t, second.AlreadyExisted)
	assert.Equal(t, first.Participation.ID, second.Participation.ID)

	// A different kind is a separate participation
	ticket := "FULL"
	third, err := engine.Admit(ctx, AdmitRequest{EventID: 1, UserID: 10, Kind: models.KindTicket, TicketTypeCode: &ticket, SessionIDs: []string{"S1", "S2"}})
	require.NoError(t, err)
	assert.False(t, third.AlreadyExisted)
}

func TestEngine_AdmitRetryOfWaitlistedIsIdempotent(t *testing.T) {
	engine, store := newTestEngine(t, 1)
	ctx := context.Background()

	_, err := engine.Admit(ctx, AdmitRequest{EventID: 1, UserID: 10, Kind: models.KindRSVP, SessionIDs: []string{"S1"}})
	require.NoError(t, err)

	waitlisted, err := engine.Admit(ctx, AdmitRequest{EventID: 1, UserID: 11, Kind: models.KindRSVP, SessionIDs: []string{"S1"}})
	require.NoError(t, err)
	require.Equal(t, models.StatusWaitlisted, waitlisted.Participation.Status)

	// The client timed out before seeing the response and retries
	retry, err := engine.Admit(ctx, AdmitRequest{EventID: 1, UserID: 11, Kind: models.KindRSVP, SessionIDs: []string{"S1"}})
	require.NoError(t, err)
	assert.True(t, retry.AlreadyExisted)
	assert.Equal(t, waitlisted.Participation.ID, retry.Participation.ID)

	waiting, err := store.ListWaitlisted(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, waiting, 1, "retry must not enqueue the user twice")
}

func TestEngine_PromoteRetiresDuplicateWaitlistRow(t *testing.T) {
	engine, store := newTestEngine(t, 2)
	ctx := context.Background()

	active, err := engine.Admit(ctx, AdmitRequest{EventID: 1, UserID: 10, Kind: models.KindRSVP, SessionIDs: []string{"S1"}})
	require.NoError(t, err)
	require.Equal(t, models.StatusActive, active.Participation.Status)

	// A duplicate waitlisted row for a user who already holds an active
	// participation (pre-existing bad data, e.g. from a partial migration)
	dup := &models.Participation{
		ID:        "dup-row",
		EventID:   1,
		UserID:    10,
		Kind:      models.KindRSVP,
		Status:    models.StatusWaitlisted,
		Sessions:  []string{"S1"},
		CreatedAt: time.Now().UTC(),
	}
	require.NoError(t, store.Create(ctx, dup))

	promoted, err := engine.PromoteWaitlist(ctx, 1)
	require.NoError(t, err)
	assert.Empty(t, promoted, "a duplicate of an active participation must never be promoted")

	retired, err := store.GetByID(ctx, "dup-row")
	require.NoError(t, err)
	assert.Equal(t, models.StatusCancelled, retired.Status)

	// Capacity was not touched for the retired row
	countActive := 0
	for _, id := range store.order {
		if store.rows[id].Status == models.StatusActive {
			countActive++
		}
	}
	assert.Equal(t, 1, countActive)
}

func TestEngine_AdmitValidation(t *testing.T) {
	engine, _ := newTestEngine(t, 5)
	ctx := context.Background()

	_, err := engine.Admit(ctx, AdmitRequest{EventID: 1, UserID: 10, Kind: "GUEST", SessionIDs: []string{"S1"}})
	assert.ErrorIs(t, err, errors.ErrInvalidArgument)

	_, err = engine.Admit(ctx, AdmitRequest{EventID: 1, UserID: 10, Kind: models.KindRSVP})
	assert.ErrorIs(t, err, errors.ErrInvalidArgument)

	_, err = engine.Admit(ctx, AdmitRequest{EventID: 1, UserID: 10, Kind: models.KindRSVP, SessionIDs: []string{"MISSING"}})
	assert.ErrorIs(t, err, errors.ErrInvalidArgument)
}

func TestEngine_ConcurrentAdmitsNeverOversell(t *testing.T) {
	engine, _ := newTestEngine(t, 3)
	ctx := context.Background()

	var wg sync.WaitGroup
	results := make([]*AdmitResult, 20)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			result, err := engine.Admit(ctx, AdmitRequest{
				EventID:    1,
				UserID:     int64(100 + i),
				Kind:       models.KindRSVP,
				SessionIDs: []string{"S1", "S2"},
			})
			assert.NoError(t, err)
			results[i] = result
		}(i)
	}
	wg.Wait()

	active, waitlisted := 0, 0
	for _, r := range results {
		require.NotNil(t, r)
		switch r.Participation.Status {
		case models.StatusActive:
			active++
		case models.StatusWaitlisted:
			waitlisted++
		}
	}
	assert.Equal(t, 3, active)
	assert.Equal(t, 17, waitlisted)
}

func TestEngine_AdmitCompensatesOnStoreFailure(t *testing.T) {
	engine, store := newTestEngine(t, 1)
	ctx := context.Background()

	store.failCreate = true
	_, err := engine.Admit(ctx, AdmitRequest{EventID: 1, UserID: 10, Kind: models.KindRSVP, SessionIDs: []string{"S1"}})
	require.Error(t, err)

	// The reserved spot must have been released
	store.failCreate = false
	result, err := engine.Admit(ctx, AdmitRequest{EventID: 1, UserID: 11, Kind: models.KindRSVP, SessionIDs: []string{"S1"}})
	require.NoError(t, err)
	assert.Equal(t, models.StatusActive, result.Participation.Status)
}

func TestEngine_CancelReleasesSessions(t *testing.T) {
	engine, _ := newTestEngine(t, 1)
	ctx := context.Background()

	admitted, err := engine.Admit(ctx, AdmitRequest{EventID: 1, UserID: 10, Kind: models.KindRSVP, SessionIDs: []string{"S1"}})
	require.NoError(t, err)

	cancelled, err := engine.Cancel(ctx, admitted.Participation.ID, "plans changed")
	require.NoError(t, err)
	assert.Equal(t, models.StatusCancelled, cancelled.Status)
	require.NotNil(t, cancelled.CancelledAt)

	// The freed spot admits the next request
	next, err := engine.Admit(ctx, AdmitRequest{EventID: 1, UserID: 11, Kind: models.KindRSVP, SessionIDs: []string{"S1"}})
	require.NoError(t, err)
	assert.Equal(t, models.StatusActive, next.Participation.Status)
}

func TestEngine_CancelTerminalStates(t *testing.T) {
	engine, _ := newTestEngine(t, 5)
	ctx := context.Background()

	admitted, err := engine.Admit(ctx, AdmitRequest{EventID: 1, UserID: 10, Kind: models.KindRSVP, SessionIDs: []string{"S1"}})
	require.NoError(t, err)

	_, err = engine.Cancel(ctx, admitted.Participation.ID, "first")
	require.NoError(t, err)

	_, err = engine.Cancel(ctx, admitted.Participation.ID, "second")
	assert.ErrorIs(t, err, errors.ErrInvalidState)

	_, err = engine.Refund(ctx, admitted.Participation.ID, "late refund")
	assert.ErrorIs(t, err, errors.ErrInvalidState)

	_, err = engine.Cancel(ctx, "does-not-exist", "whatever")
	assert.ErrorIs(t, err, errors.ErrNotFound)
}

func TestEngine_RefundOnlyFromActive(t *testing.T) {
	engine, _ := newTestEngine(t, 1)
	ctx := context.Background()

	ticket := "FULL"
	active, err := engine.Admit(ctx, AdmitRequest{EventID: 1, UserID: 10, Kind: models.KindTicket, TicketTypeCode: &ticket, SessionIDs: []string{"S1"}})
	require.NoError(t, err)

	waitlisted, err := engine.Admit(ctx, AdmitRequest{EventID: 1, UserID: 11, Kind: models.KindTicket, TicketTypeCode: &ticket, SessionIDs: []string{"S1"}})
	require.NoError(t, err)
	require.Equal(t, models.StatusWaitlisted, waitlisted.Participation.Status)

	_, err = engine.Refund(ctx, waitlisted.Participation.ID, "no spot yet")
	assert.ErrorIs(t, err, errors.ErrInvalidState)

	refunded, err := engine.Refund(ctx, active.Participation.ID, "event missed")
	require.NoError(t, err)
	assert.Equal(t, models.StatusRefunded, refunded.Status)
}

func TestEngine_PromoteWaitlistInCreationOrder(t *testing.T) {
	engine, _ := newTestEngine(t, 1)
	ctx := context.Background()

	admitted, err := engine.Admit(ctx, AdmitRequest{EventID: 1, UserID: 10, Kind: models.KindRSVP, SessionIDs: []string{"S1"}})
	require.NoError(t, err)

	first, err := engine.Admit(ctx, AdmitRequest{EventID: 1, UserID: 11, Kind: models.KindRSVP, SessionIDs: []string{"S1"}})
	require.NoError(t, err)
	require.Equal(t, models.StatusWaitlisted, first.Participation.Status)

	second, err := engine.Admit(ctx, AdmitRequest{EventID: 1, UserID: 12, Kind: models.KindRSVP, SessionIDs: []string{"S1"}})
	require.NoError(t, err)
	require.Equal(t, models.StatusWaitlisted, second.Participation.Status)

	// Nothing free yet
	promoted, err := engine.PromoteWaitlist(ctx, 1)
	require.NoError(t, err)
	assert.Empty(t, promoted)

	_, err = engine.Cancel(ctx, admitted.Participation.ID, "freeing a spot")
	require.NoError(t, err)

	promoted, err = engine.PromoteWaitlist(ctx, 1)
	require.NoError(t, err)
	require.Len(t, promoted, 1)
	assert.Equal(t, first.Participation.ID, promoted[0].ID, "earliest waitlisted entry wins")
	assert.Equal(t, models.StatusActive, promoted[0].Status)
}

func TestEngine_PromoteSkipsEntriesThatDoNotFit(t *testing.T) {
	store := newMemStore()
	registry := capacity.NewRegistry(capacity.LoaderFunc(func(_ context.Context, eventID int64) (*capacity.Matrix, error) {
		return capacity.NewMatrix(eventID, 10, []models.Session{
			{EventID: eventID, Code: "S1", Capacity: 1, Active: true},
			{EventID: eventID, Code: "S2", Capacity: 1, Active: true},
		}), nil
	}))
	engine := NewEngine(registry, store, nil)
	ctx := context.Background()

	blockerS2, err := engine.Admit(ctx, AdmitRequest{EventID: 1, UserID: 10, Kind: models.KindRSVP, SessionIDs: []string{"S2"}})
	require.NoError(t, err)
	require.Equal(t, models.StatusActive, blockerS2.Participation.Status)

	blockerS1, err := engine.Admit(ctx, AdmitRequest{EventID: 1, UserID: 11, Kind: models.KindRSVP, SessionIDs: []string{"S1"}})
	require.NoError(t, err)
	require.Equal(t, models.StatusActive, blockerS1.Participation.Status)

	// User 12 needs both sessions; user 13 only S1
	ticket := "FULL"
	both, err := engine.Admit(ctx, AdmitRequest{EventID: 1, UserID: 12, Kind: models.KindTicket, TicketTypeCode: &ticket, SessionIDs: []string{"S1", "S2"}})
	require.NoError(t, err)
	require.Equal(t, models.StatusWaitlisted, both.Participation.Status)

	onlyS1, err := engine.Admit(ctx, AdmitRequest{EventID: 1, UserID: 13, Kind: models.KindRSVP, SessionIDs: []string{"S1"}})
	require.NoError(t, err)
	require.Equal(t, models.StatusWaitlisted, onlyS1.Participation.Status)

	// Free S1 only; the two-session entry still cannot fit, the later
	// single-session entry can
	_, err = engine.Cancel(ctx, blockerS1.Participation.ID, "freeing S1")
	require.NoError(t, err)

	promoted, err := engine.PromoteWaitlist(ctx, 1)
	require.NoError(t, err)
	require.Len(t, promoted, 1)
	assert.Equal(t, onlyS1.Participation.ID, promoted[0].ID)
}

package handlers

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	apperrors "ropewalk/internal/errors"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

// setupRouter wires the request-validation surface only; routes that pass
// binding are not exercised here, they need the full stack and are covered by
// tests/integration.
func setupRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()

	h := NewHandlers(nil)

	api := r.Group("/api")
	{
		events := api.Group("/events")
		{
			events.POST("", h.CreateEvent)
			events.GET("", h.ListEvents)
			events.GET("/:id", h.GetEvent)
			events.GET("/:id/capacity", h.GetCapacity)
		}

		participations := api.Group("/participations")
		{
			participations.POST("/rsvp", h.RSVP)
			participations.PATCH("/cancel", h.CancelParticipation)
		}

		checkins := api.Group("/checkin")
		{
			checkins.POST("", h.CheckIn)
			checkins.POST("/sync", h.SyncCheckIns)
		}
	}

	return r
}

func performRequest(r *gin.Engine, method, path string, body interface{}) *httptest.ResponseRecorder {
	var buf *bytes.Buffer
	if body != nil {
		jsonBody, _ := json.Marshal(body)
		buf = bytes.NewBuffer(jsonBody)
	} else {
		buf = bytes.NewBuffer(nil)
	}

	req, _ := http.NewRequest(method, path, buf)
	req.Header.Set("Content-Type", "application/json")

	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestCreateEventRejectsInvalidBody(t *testing.T) {
	r := setupRouter()

	w := performRequest(r, "POST", "/api/events", map[string]interface{}{
		"title": "Missing everything else",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	var body map[string]string
	assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Contains(t, body, "error")
}

func TestListEventsRejectsBadPaging(t *testing.T) {
	r := setupRouter()

	w := performRequest(r, "GET", "/api/events?page=0", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = performRequest(r, "GET", "/api/events?pageSize=1000", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestGetEventRejectsNonNumericID(t *testing.T) {
	r := setupRouter()

	w := performRequest(r, "GET", "/api/events/not-a-number", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = performRequest(r, "GET", "/api/events/not-a-number/capacity", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestRSVPRequiresEventID(t *testing.T) {
	r := setupRouter()

	w := performRequest(r, "POST", "/api/participations/rsvp", map[string]interface{}{})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCancelRequiresParticipationID(t *testing.T) {
	r := setupRouter()

	w := performRequest(r, "PATCH", "/api/participations/cancel", map[string]interface{}{
		"reason": "no id supplied",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCheckInRequiresAttendee(t *testing.T) {
	r := setupRouter()

	w := performRequest(r, "POST", "/api/checkin", map[string]interface{}{
		"event_id": 1,
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestSyncRequiresDeviceID(t *testing.T) {
	r := setupRouter()

	w := performRequest(r, "POST", "/api/checkin/sync", map[string]interface{}{
		"event_id":          1,
		"pending_check_ins": []map[string]interface{}{},
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestRespondErrorStatusMapping(t *testing.T) {
	gin.SetMode(gin.TestMode)

	cases := []struct {
		err    error
		status int
	}{
		{fmt.Errorf("wrapped: %w", apperrors.ErrNotFound), http.StatusNotFound},
		{fmt.Errorf("wrapped: %w", apperrors.ErrInvalidArgument), http.StatusBadRequest},
		{fmt.Errorf("wrapped: %w", apperrors.ErrInvalidState), http.StatusConflict},
		{fmt.Errorf("wrapped: %w", apperrors.ErrForbidden), http.StatusForbidden},
		{fmt.Errorf("wrapped: %w", apperrors.ErrUnauthorized), http.StatusUnauthorized},
		{fmt.Errorf("database exploded"), http.StatusInternalServerError},
	}

	for _, tc := range cases {
		w := httptest.NewRecorder()
		c, _ := gin.CreateTestContext(w)
		c.Request = httptest.NewRequest("GET", "/test", nil)

		respondError(c, tc.err, "fallback message")
		assert.Equal(t, tc.status, w.Code, "error %v", tc.err)
	}
}

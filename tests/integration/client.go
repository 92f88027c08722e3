package integration

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"testing"
	"time"

	"ropewalk/internal/models"
)

// TestClient provides methods for testing the API
type TestClient struct {
	BaseURL    string
	Username   string
	Password   string
	DeviceID   string
	HTTPClient *http.Client
}

// NewTestClient creates a new test client authenticated as the given user
func NewTestClient(baseURL, username, password string) *TestClient {
	return &TestClient{
		BaseURL:  baseURL,
		Username: username,
		Password: password,
		HTTPClient: &http.Client{
			Timeout: 30 * time.Second,
			// Payment redirects must be observed, not followed
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
	}
}

// makeRequest makes an HTTP request and returns the response
func (c *TestClient) makeRequest(t *testing.T, method, path string, body interface{}) *http.Response {
	var reqBody io.Reader
	if body != nil {
		jsonBody, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("Failed to marshal request body: %v", err)
		}
		reqBody = bytes.NewBuffer(jsonBody)
	}

	req, err := http.NewRequest(method, c.BaseURL+path, reqBody)
	if err != nil {
		t.Fatalf("Failed to create request: %v", err)
	}

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.Username != "" {
		req.SetBasicAuth(c.Username, c.Password)
	}
	if c.DeviceID != "" {
		req.Header.Set("X-Device-ID", c.DeviceID)
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		t.Fatalf("Failed to make request: %v", err)
	}

	return resp
}

func decodeResponse(t *testing.T, resp *http.Response, expectedStatus int, out interface{}) {
	defer resp.Body.Close()

	if resp.StatusCode != expectedStatus {
		body, _ := io.ReadAll(resp.Body)
		t.Fatalf("Expected status %d, got %d. Body: %s", expectedStatus, resp.StatusCode, string(body))
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			t.Fatalf("Failed to decode response: %v", err)
		}
	}
}

// CreateEvent creates a new event with sessions and ticket types
func (c *TestClient) CreateEvent(t *testing.T, req *models.CreateEventRequest) int64 {
	resp := c.makeRequest(t, "POST", "/api/events", req)

	var created models.CreateEventResponse
	decodeResponse(t, resp, http.StatusCreated, &created)
	return created.ID
}

// ListEvents lists events visible to the client
func (c *TestClient) ListEvents(t *testing.T) []models.ListEventsResponseItem {
	resp := c.makeRequest(t, "GET", "/api/events", nil)

	var events []models.ListEventsResponseItem
	decodeResponse(t, resp, http.StatusOK, &events)
	return events
}

// GetEvent fetches one event by ID
func (c *TestClient) GetEvent(t *testing.T, eventID int64) *models.Event {
	resp := c.makeRequest(t, "GET", fmt.Sprintf("/api/events/%d", eventID), nil)

	var event models.Event
	decodeResponse(t, resp, http.StatusOK, &event)
	return &event
}

// GetTicketAvailability fetches the advisory availability per ticket type
func (c *TestClient) GetTicketAvailability(t *testing.T, eventID int64) []models.TicketAvailabilityItem {
	resp := c.makeRequest(t, "GET", fmt.Sprintf("/api/events/%d/tickets", eventID), nil)

	var items []models.TicketAvailabilityItem
	decodeResponse(t, resp, http.StatusOK, &items)
	return items
}

// RSVP registers the client's user for a social event
func (c *TestClient) RSVP(t *testing.T, eventID int64) *models.ParticipationResponse {
	req := models.RSVPRequest{EventID: eventID}
	resp := c.makeRequest(t, "POST", "/api/participations/rsvp", req)

	var participation models.ParticipationResponse
	decodeResponse(t, resp, http.StatusCreated, &participation)
	return &participation
}

// PurchaseTicket buys a ticket. For priced tickets the server answers 302 with
// the payment gateway URL in the Location header; for free tickets it answers
// 201 directly.
func (c *TestClient) PurchaseTicket(t *testing.T, eventID int64, ticketTypeCode string) (*models.ParticipationResponse, string) {
	req := models.PurchaseTicketRequest{EventID: eventID, TicketTypeCode: ticketTypeCode}
	resp := c.makeRequest(t, "POST", "/api/participations/tickets", req)
	defer resp.Body.Close()

	var participation models.ParticipationResponse
	switch resp.StatusCode {
	case http.StatusFound:
		location := resp.Header.Get("Location")
		if location == "" {
			t.Fatal("Expected Location header in payment redirect")
		}
		if err := json.NewDecoder(resp.Body).Decode(&participation); err != nil {
			t.Fatalf("Failed to decode participation response: %v", err)
		}
		return &participation, location
	case http.StatusCreated:
		if err := json.NewDecoder(resp.Body).Decode(&participation); err != nil {
			t.Fatalf("Failed to decode participation response: %v", err)
		}
		return &participation, ""
	default:
		body, _ := io.ReadAll(resp.Body)
		t.Fatalf("Expected status 302 or 201, got %d. Body: %s", resp.StatusCode, string(body))
		return nil, ""
	}
}

// CancelParticipation cancels a participation by ID
func (c *TestClient) CancelParticipation(t *testing.T, participationID, reason string) *models.ParticipationResponse {
	req := models.CancelParticipationRequest{ParticipationID: participationID, Reason: reason}
	resp := c.makeRequest(t, "PATCH", "/api/participations/cancel", req)

	var participation models.ParticipationResponse
	decodeResponse(t, resp, http.StatusOK, &participation)
	return &participation
}

// GetParticipationStatus fetches the client's participation card for an event
func (c *TestClient) GetParticipationStatus(t *testing.T, eventID int64) *models.ParticipationStatusResponse {
	resp := c.makeRequest(t, "GET", fmt.Sprintf("/api/events/%d/participation", eventID), nil)

	var status models.ParticipationStatusResponse
	decodeResponse(t, resp, http.StatusOK, &status)
	return &status
}

// CheckIn performs a single online check-in
func (c *TestClient) CheckIn(t *testing.T, req *models.CheckInRequest) *models.CheckInResponse {
	resp := c.makeRequest(t, "POST", "/api/checkin", req)

	var outcome models.CheckInResponse
	decodeResponse(t, resp, http.StatusOK, &outcome)
	return &outcome
}

// SyncCheckIns submits a device's offline batch
func (c *TestClient) SyncCheckIns(t *testing.T, req *models.SyncRequest) *models.SyncResult {
	resp := c.makeRequest(t, "POST", "/api/checkin/sync", req)

	var result models.SyncResult
	decodeResponse(t, resp, http.StatusOK, &result)
	return &result
}

// GetCapacity fetches the capacity projection for an event
func (c *TestClient) GetCapacity(t *testing.T, eventID int64) *models.CapacityInfo {
	resp := c.makeRequest(t, "GET", fmt.Sprintf("/api/events/%d/capacity", eventID), nil)

	var capacity models.CapacityInfo
	decodeResponse(t, resp, http.StatusOK, &capacity)
	return &capacity
}

// ListAttendees fetches the event roster for the check-in interface
func (c *TestClient) ListAttendees(t *testing.T, eventID int64) *models.ListAttendeesResponse {
	resp := c.makeRequest(t, "GET", fmt.Sprintf("/api/events/%d/attendees", eventID), nil)

	var attendees models.ListAttendeesResponse
	decodeResponse(t, resp, http.StatusOK, &attendees)
	return &attendees
}

// GetDashboard fetches the real-time check-in dashboard
func (c *TestClient) GetDashboard(t *testing.T, eventID int64) *models.DashboardResponse {
	resp := c.makeRequest(t, "GET", fmt.Sprintf("/api/events/%d/dashboard", eventID), nil)

	var dashboard models.DashboardResponse
	decodeResponse(t, resp, http.StatusOK, &dashboard)
	return &dashboard
}

// HealthCheck checks if the API is healthy
func (c *TestClient) HealthCheck(t *testing.T) {
	resp := c.makeRequest(t, "GET", "/health", nil)
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Health check failed with status %d", resp.StatusCode)
	}
}

package integration

import (
	"fmt"
	"os"
	"testing"
	"time"

	"ropewalk/internal/models"
)

const (
	APIBaseURL = "http://localhost:8081"
)

// TestCredentials returns the seeded test account. The generator seeds users
// member0..memberN with password memberN.
func TestCredentials(n int) (username, password string) {
	if u := os.Getenv("TEST_USERNAME"); u != "" {
		return u, os.Getenv("TEST_PASSWORD")
	}
	return fmt.Sprintf("member%d@example.com", n), fmt.Sprintf("member%d", n)
}

// NewMemberClient builds a client authenticated as the nth seeded member
func NewMemberClient(n int) *TestClient {
	username, password := TestCredentials(n)
	return NewTestClient(APIBaseURL, username, password)
}

// BuildSocialEvent builds a creation request for a small social event
func BuildSocialEvent(title string, capacity int) *models.CreateEventRequest {
	start := time.Now().UTC().Add(24 * time.Hour)
	end := start.Add(4 * time.Hour)
	return &models.CreateEventRequest{
		Title:     title,
		Type:      models.EventTypeSocial,
		StartDate: start,
		EndDate:   end,
		Capacity:  capacity,
		Sessions: []models.CreateSessionItem{
			{Code: "MAIN", Title: "Open Floor", Capacity: capacity},
		},
	}
}

// BuildClassEvent builds a creation request for a multi-session class with a
// free full-series ticket
func BuildClassEvent(title string, sessionCapacity int) *models.CreateEventRequest {
	start := time.Now().UTC().Add(48 * time.Hour)
	end := start.Add(3 * 7 * 24 * time.Hour)
	return &models.CreateEventRequest{
		Title:     title,
		Type:      models.EventTypeClass,
		StartDate: start,
		EndDate:   end,
		Capacity:  sessionCapacity * 2,
		Sessions: []models.CreateSessionItem{
			{Code: "S1", Title: "Week 1", Capacity: sessionCapacity},
			{Code: "S2", Title: "Week 2", Capacity: sessionCapacity},
		},
		TicketTypes: []models.CreateTicketTypeItem{
			{
				Code:             "FULL",
				Name:             "Full Series",
				IncludedSessions: []string{"S1", "S2"},
				PriceCents:       0,
			},
		},
	}
}

// AssertEventExists checks if an event exists in the list
func AssertEventExists(t *testing.T, events []models.ListEventsResponseItem, eventID int64) {
	for _, event := range events {
		if event.ID == eventID {
			return
		}
	}
	t.Fatalf("Event with ID %d not found in events list, %+v", eventID, events)
}

// FindAttendee finds a roster entry by attendee ID
func FindAttendee(attendees *models.ListAttendeesResponse, attendeeID string) *models.AttendeeResponse {
	for i := range attendees.Attendees {
		if attendees.Attendees[i].AttendeeID == attendeeID {
			return &attendees.Attendees[i]
		}
	}
	return nil
}

// LogTestStep logs a test step for better debugging
func LogTestStep(t *testing.T, step string, args ...interface{}) {
	t.Logf("🔹 "+step, args...)
}

// LogTestResult logs a test result
func LogTestResult(t *testing.T, result string, args ...interface{}) {
	t.Logf("✅ "+result, args...)
}

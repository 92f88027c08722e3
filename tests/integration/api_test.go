package integration

import (
	"fmt"
	"testing"
	"time"
)

// TestHealthCheck verifies the API is up before anything else runs
func TestHealthCheck(t *testing.T) {
	client := NewMemberClient(0)

	LogTestStep(t, "Checking API health")
	client.HealthCheck(t)
	LogTestResult(t, "API is healthy")
}

// TestEventLifecycle creates an event and verifies it is visible through
// listing, detail and availability endpoints
func TestEventLifecycle(t *testing.T) {
	client := NewMemberClient(0)

	LogTestStep(t, "Creating a class event")
	title := fmt.Sprintf("Integration Class %d", time.Now().UnixNano())
	eventID := client.CreateEvent(t, BuildClassEvent(title, 12))
	LogTestResult(t, "Created event %d", eventID)

	LogTestStep(t, "Listing events")
	events := client.ListEvents(t)
	AssertEventExists(t, events, eventID)

	LogTestStep(t, "Fetching event detail")
	event := client.GetEvent(t, eventID)
	if event.Title != title {
		t.Fatalf("Event %d has title %q, expected %q", eventID, event.Title, title)
	}
	if event.Capacity != 24 {
		t.Fatalf("Event %d has capacity %d, expected 24", eventID, event.Capacity)
	}

	LogTestStep(t, "Fetching ticket availability")
	availability := client.GetTicketAvailability(t, eventID)
	if len(availability) != 1 {
		t.Fatalf("Expected 1 ticket type, got %d", len(availability))
	}
	full := availability[0]
	if full.Code != "FULL" {
		t.Fatalf("Expected ticket type FULL, got %s", full.Code)
	}
	if full.AvailableSpots != 12 {
		t.Fatalf("Expected 12 available spots, got %d", full.AvailableSpots)
	}
	if !full.IsOnSale {
		t.Fatal("Expected FULL ticket to be on sale")
	}
	LogTestResult(t, "Availability reports %d spots limited by %s", full.AvailableSpots, full.LimitingSession)
}

// TestCapacityProjection verifies the capacity endpoint reflects the event's
// configured door capacity before any check-ins happen
func TestCapacityProjection(t *testing.T) {
	client := NewMemberClient(0)

	eventID := client.CreateEvent(t, BuildSocialEvent(fmt.Sprintf("Projection Social %d", time.Now().UnixNano()), 30))

	LogTestStep(t, "Fetching capacity projection for event %d", eventID)
	capacity := client.GetCapacity(t, eventID)
	if capacity.TotalCapacity != 30 {
		t.Fatalf("Expected total capacity 30, got %d", capacity.TotalCapacity)
	}
	if capacity.CheckedInCount != 0 {
		t.Fatalf("Expected 0 checked in, got %d", capacity.CheckedInCount)
	}
	if capacity.IsAtCapacity {
		t.Fatal("Empty event must not report at-capacity")
	}
	LogTestResult(t, "Capacity projection: %d/%d", capacity.CheckedInCount, capacity.TotalCapacity)
}

// TestUnauthenticatedRequestRejected verifies the API requires credentials
func TestUnauthenticatedRequestRejected(t *testing.T) {
	client := NewTestClient(APIBaseURL, "", "")

	LogTestStep(t, "Listing events without credentials")
	resp := client.makeRequest(t, "GET", "/api/events", nil)
	defer resp.Body.Close()

	if resp.StatusCode != 401 {
		t.Fatalf("Expected status 401, got %d", resp.StatusCode)
	}
	LogTestResult(t, "Unauthenticated request rejected")
}

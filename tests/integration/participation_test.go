package integration

import (
	"fmt"
	"testing"
	"time"

	"ropewalk/internal/models"
)

// TestRSVPFlow covers the full RSVP lifecycle: register, observe status,
// cancel, re-register
func TestRSVPFlow(t *testing.T) {
	client := NewMemberClient(0)

	eventID := client.CreateEvent(t, BuildSocialEvent(fmt.Sprintf("RSVP Social %d", time.Now().UnixNano()), 20))

	LogTestStep(t, "RSVPing to event %d", eventID)
	participation := client.RSVP(t, eventID)
	if participation.Status != models.StatusActive {
		t.Fatalf("Expected ACTIVE participation, got %s", participation.Status)
	}
	if participation.Kind != models.KindRSVP {
		t.Fatalf("Expected RSVP kind, got %s", participation.Kind)
	}
	LogTestResult(t, "RSVP %s is %s", participation.ID, participation.Status)

	LogTestStep(t, "Checking participation status")
	status := client.GetParticipationStatus(t, eventID)
	if !status.HasRSVP {
		t.Fatal("Expected has_rsvp after RSVP")
	}
	if status.CanRSVP {
		t.Fatal("Expected can_rsvp to be false while an RSVP is active")
	}

	LogTestStep(t, "RSVPing again must be idempotent")
	repeat := client.RSVP(t, eventID)
	if repeat.ID != participation.ID {
		t.Fatalf("Repeat RSVP created a new participation %s, expected %s", repeat.ID, participation.ID)
	}

	LogTestStep(t, "Cancelling the RSVP")
	cancelled := client.CancelParticipation(t, participation.ID, "integration test cleanup")
	if cancelled.Status != models.StatusCancelled {
		t.Fatalf("Expected CANCELLED, got %s", cancelled.Status)
	}

	status = client.GetParticipationStatus(t, eventID)
	if status.HasRSVP {
		t.Fatal("Expected has_rsvp to clear after cancellation")
	}
	if !status.CanRSVP {
		t.Fatal("Expected can_rsvp after cancellation")
	}

	LogTestStep(t, "Re-registering after cancellation")
	again := client.RSVP(t, eventID)
	if again.ID == participation.ID {
		t.Fatal("Re-registration must create a new participation")
	}
	if again.Status != models.StatusActive {
		t.Fatalf("Expected ACTIVE re-registration, got %s", again.Status)
	}
	LogTestResult(t, "RSVP lifecycle complete")
}

// TestWaitlistOnFullEvent fills a tiny social event and verifies the next
// registrant lands on the waitlist, then gets promoted when a spot frees up
func TestWaitlistOnFullEvent(t *testing.T) {
	organizer := NewMemberClient(0)

	eventID := organizer.CreateEvent(t, BuildSocialEvent(fmt.Sprintf("Tiny Social %d", time.Now().UnixNano()), 1))

	LogTestStep(t, "Filling the only spot")
	first := NewMemberClient(1)
	active := first.RSVP(t, eventID)
	if active.Status != models.StatusActive {
		t.Fatalf("Expected ACTIVE for first registrant, got %s", active.Status)
	}

	LogTestStep(t, "Second registrant must be waitlisted")
	second := NewMemberClient(2)
	waitlisted := second.RSVP(t, eventID)
	if waitlisted.Status != models.StatusWaitlisted {
		t.Fatalf("Expected WAITLISTED for second registrant, got %s", waitlisted.Status)
	}

	LogTestStep(t, "Cancelling the active RSVP")
	first.CancelParticipation(t, active.ID, "making room")

	// Promotion is triggered by the cancellation event with a periodic
	// sweep as backstop; give it a moment before checking
	LogTestStep(t, "Waiting for waitlist promotion")
	deadline := time.Now().Add(90 * time.Second)
	for {
		status := second.GetParticipationStatus(t, eventID)
		if status.HasRSVP && status.RSVP != nil && status.RSVP.Status == models.StatusActive {
			LogTestResult(t, "Waitlisted participation promoted")
			return
		}
		if time.Now().After(deadline) {
			t.Fatal("Waitlisted participation was not promoted in time")
		}
		time.Sleep(2 * time.Second)
	}
}

// TestFreeTicketPurchase buys a zero-priced ticket, which admits directly
// without a payment redirect
func TestFreeTicketPurchase(t *testing.T) {
	client := NewMemberClient(3)

	eventID := client.CreateEvent(t, BuildClassEvent(fmt.Sprintf("Free Class %d", time.Now().UnixNano()), 10))

	LogTestStep(t, "Purchasing the free FULL ticket")
	participation, paymentURL := client.PurchaseTicket(t, eventID, "FULL")
	if paymentURL != "" {
		t.Fatalf("Free ticket must not redirect to payment, got %s", paymentURL)
	}
	if participation.Status != models.StatusActive {
		t.Fatalf("Expected ACTIVE participation, got %s", participation.Status)
	}
	if len(participation.Sessions) != 2 {
		t.Fatalf("Expected 2 reserved sessions, got %d", len(participation.Sessions))
	}

	LogTestStep(t, "Availability must drop by one across both sessions")
	availability := client.GetTicketAvailability(t, eventID)
	if availability[0].AvailableSpots != 9 {
		t.Fatalf("Expected 9 available spots, got %d", availability[0].AvailableSpots)
	}
	LogTestResult(t, "Ticket purchase reserved the full session set")
}

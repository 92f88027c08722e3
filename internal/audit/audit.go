// Package audit defines the fire-and-forget sink for admission and check-in
// decisions. A failed audit write never rolls back the decision it records;
// implementations are expected to log and alert instead.
package audit

import (
	"context"
	"log/slog"
	"time"
)

// Audit actions
const (
	ActionAdmit           = "admit"
	ActionWaitlist        = "waitlist"
	ActionCancel          = "cancel"
	ActionRefund          = "refund"
	ActionPromote         = "promote"
	ActionCheckIn         = "check-in"
	ActionCheckInOverride = "check-in-override"
)

// Entry is one immutable audit record.
type Entry struct {
	EventID   int64
	ActorID   int64
	Action    string
	Payload   any
	Timestamp time.Time
}

// Recorder persists audit entries. The Postgres implementation lives in the
// repository package.
type Recorder interface {
	Record(ctx context.Context, entry Entry) error
}

// LogRecorder writes audit entries to the structured log only. Used by tests
// and by tooling that has no database at hand.
type LogRecorder struct{}

func (LogRecorder) Record(_ context.Context, entry Entry) error {
	slog.Info("audit",
		"event_id", entry.EventID,
		"actor_id", entry.ActorID,
		"action", entry.Action,
		"payload", entry.Payload)
	return nil
}

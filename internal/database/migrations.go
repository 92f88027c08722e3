package database

import (
	"fmt"
	"log/slog"
)

func (db *DB) RunMigrations() error {
	slog.Info("Running database migrations...")

	migrations := []string{
		createUsersTable,
		createEventsTable,
		createSessionsTable,
		createTicketTypesTable,
		createParticipationsTable,
		createCheckInsTable,
		createAuditLogTable,
		createParticipationIndexes,
	}

	for i, migration := range migrations {
		slog.Info("Running migration", "step", i+1)
		if _, err := db.Exec(migration); err != nil {
			return fmt.Errorf("migration %d failed: %w", i+1, err)
		}
	}

	slog.Info("All migrations completed successfully")
	return nil
}

const createUsersTable = `
CREATE TABLE IF NOT EXISTS users (
    user_id SERIAL PRIMARY KEY,
    email VARCHAR(255) UNIQUE NOT NULL,
    password_hash VARCHAR(64) NOT NULL,
    scene_name VARCHAR(100) NOT NULL,
    pronouns VARCHAR(50),
    registered_at TIMESTAMP NOT NULL DEFAULT NOW(),
    is_active BOOLEAN NOT NULL DEFAULT TRUE
);`

const createEventsTable = `
CREATE TABLE IF NOT EXISTS events (
    id SERIAL PRIMARY KEY,
    title VARCHAR(500) NOT NULL,
    description TEXT,
    type VARCHAR(50) NOT NULL,
    start_date TIMESTAMP NOT NULL,
    end_date TIMESTAMP NOT NULL,
    capacity INTEGER NOT NULL,
    social_session VARCHAR(50) NOT NULL DEFAULT 'SOCIAL',
    created_at TIMESTAMP NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMP NOT NULL DEFAULT NOW(),

    CHECK (capacity > 0),
    CHECK (type IN ('CLASS', 'SOCIAL', 'WORKSHOP'))
);`

const createSessionsTable = `
CREATE TABLE IF NOT EXISTS sessions (
    event_id INTEGER NOT NULL REFERENCES events(id) ON DELETE CASCADE,
    code VARCHAR(50) NOT NULL,
    title VARCHAR(500) NOT NULL DEFAULT '',
    capacity INTEGER NOT NULL,
    registered_count INTEGER NOT NULL DEFAULT 0,
    is_active BOOLEAN NOT NULL DEFAULT TRUE,

    PRIMARY KEY (event_id, code),
    CHECK (capacity >= 0),
    CHECK (registered_count >= 0 AND registered_count <= capacity)
);`

const createTicketTypesTable = `
CREATE TABLE IF NOT EXISTS ticket_types (
    event_id INTEGER NOT NULL REFERENCES events(id) ON DELETE CASCADE,
    code VARCHAR(50) NOT NULL,
    name VARCHAR(255) NOT NULL,
    included_sessions TEXT[] NOT NULL,
    price_cents BIGINT NOT NULL DEFAULT 0,
    sales_open_at TIMESTAMP,
    sales_close_at TIMESTAMP,

    PRIMARY KEY (event_id, code),
    CHECK (array_length(included_sessions, 1) >= 1)
);`

const createParticipationsTable = `
CREATE TABLE IF NOT EXISTS participations (
    id UUID PRIMARY KEY,
    event_id INTEGER NOT NULL REFERENCES events(id) ON DELETE CASCADE,
    user_id INTEGER NOT NULL REFERENCES users(user_id),
    kind VARCHAR(20) NOT NULL,
    status VARCHAR(20) NOT NULL,
    ticket_type_code VARCHAR(50),
    sessions TEXT[] NOT NULL DEFAULT '{}',
    created_at TIMESTAMP NOT NULL DEFAULT NOW(),
    cancelled_at TIMESTAMP,
    cancellation_reason TEXT,

    CHECK (kind IN ('RSVP', 'TICKET')),
    CHECK (status IN ('ACTIVE', 'WAITLISTED', 'CANCELLED', 'REFUNDED')),
    CHECK ((cancelled_at IS NULL) = (status IN ('ACTIVE', 'WAITLISTED')))
);`

const createCheckInsTable = `
CREATE TABLE IF NOT EXISTS check_ins (
    id UUID PRIMARY KEY,
    event_id INTEGER NOT NULL REFERENCES events(id) ON DELETE CASCADE,
    -- No FK to participations: manual entries may record walk-ins that have
    -- no participation row. Roster membership is enforced in the service for
    -- non-manual check-ins.
    attendee_id UUID NOT NULL,
    check_in_time TIMESTAMP NOT NULL,
    staff_member_id INTEGER NOT NULL,
    is_manual_entry BOOLEAN NOT NULL DEFAULT FALSE,
    notes TEXT,
    manual_entry_data TEXT,
    source_device_id VARCHAR(100),
    source_local_id VARCHAR(100),
    via_override BOOLEAN NOT NULL DEFAULT FALSE,
    created_at TIMESTAMP NOT NULL DEFAULT NOW(),

    UNIQUE(event_id, attendee_id),
    UNIQUE(source_device_id, source_local_id)
);`

const createAuditLogTable = `
CREATE TABLE IF NOT EXISTS audit_log (
    id SERIAL PRIMARY KEY,
    event_id INTEGER NOT NULL,
    actor_id INTEGER NOT NULL,
    action VARCHAR(50) NOT NULL,
    payload JSONB,
    created_at TIMESTAMP NOT NULL DEFAULT NOW()
);`

const createParticipationIndexes = `
CREATE INDEX IF NOT EXISTS participations_event_user_idx
ON participations (event_id, user_id, kind) WHERE status = 'ACTIVE';
CREATE INDEX IF NOT EXISTS participations_waitlist_idx
ON participations (event_id, created_at) WHERE status = 'WAITLISTED';
CREATE INDEX IF NOT EXISTS check_ins_event_idx ON check_ins (event_id);
CREATE INDEX IF NOT EXISTS audit_log_event_idx ON audit_log (event_id, created_at);`

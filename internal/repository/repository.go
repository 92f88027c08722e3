package repository

import (
	"ropewalk/internal/database"
	"ropewalk/internal/search"
)

type Repositories struct {
	Events         *EventRepository
	EventSearch    *search.EventIndex
	Participations *ParticipationRepository
	CheckIns       *CheckInRepository
	Roster         *RosterRepository
	Audit          *AuditRepository
	Users          *UserRepository
}

func NewRepositories(db *database.DB) *Repositories {
	return &Repositories{
		Events:         NewEventRepository(db),
		EventSearch:    nil, // Set when the Elasticsearch client is available
		Participations: NewParticipationRepository(db),
		CheckIns:       NewCheckInRepository(db),
		Roster:         NewRosterRepository(db),
		Audit:          NewAuditRepository(db),
		Users:          NewUserRepository(db),
	}
}

func NewRepositoriesWithElasticsearch(db *database.DB, idx *search.EventIndex) *Repositories {
	repos := NewRepositories(db)
	repos.EventSearch = idx
	return repos
}

package main

import (
	"context"
	"crypto/sha256"
	"flag"
	"fmt"
	"log/slog"
	"math/rand"
	"os"
	"time"

	"ropewalk/internal/config"
	"ropewalk/internal/database"
	"ropewalk/internal/models"
	"ropewalk/internal/repository"
)

var (
	userCount  = flag.Int("users", 50, "Number of members to create")
	eventCount = flag.Int("events", 5, "Number of events to create")
	dryRun     = flag.Bool("dry-run", false, "Show what would be generated without making changes")
)

var sceneNames = []string{
	"Hitch", "Marlow", "Bight", "Coil", "Tether", "Sable", "Wren",
	"Juniper", "Ash", "Clove", "Lark", "Ember", "Frost", "Indigo",
}

var eventTemplates = []struct {
	title    string
	typ      string
	sessions []models.CreateSessionItem
}{
	{
		title: "Rope Fundamentals Series",
		typ:   models.EventTypeClass,
		sessions: []models.CreateSessionItem{
			{Code: "S1", Title: "Week 1: Single Column", Capacity: 20},
			{Code: "S2", Title: "Week 2: Double Column", Capacity: 20},
			{Code: "S3", Title: "Week 3: Chest Harness", Capacity: 18},
		},
	},
	{
		title: "Monthly Rope Social",
		typ:   models.EventTypeSocial,
		sessions: []models.CreateSessionItem{
			{Code: "MAIN", Title: "Open Floor", Capacity: 60},
		},
	},
	{
		title: "Suspension Intensive",
		typ:   models.EventTypeWorkshop,
		sessions: []models.CreateSessionItem{
			{Code: "AM", Title: "Morning Block", Capacity: 12},
			{Code: "PM", Title: "Afternoon Block", Capacity: 12},
		},
	},
}

type Seeder struct {
	repos *repository.Repositories
}

func main() {
	flag.Parse()

	slog.Info("Starting data generator...")

	cfg := config.Load()
	db, err := database.Connect(cfg.Database)
	if err != nil {
		slog.Error("Failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	if err := db.RunMigrations(); err != nil {
		slog.Error("Failed to run migrations", "error", err)
		os.Exit(1)
	}

	if *dryRun {
		slog.Info("Dry run: would create seed data", "users", *userCount, "events", *eventCount)
		return
	}

	seeder := &Seeder{repos: repository.NewRepositories(db)}
	ctx := context.Background()

	if err := seeder.SeedUsers(ctx, *userCount); err != nil {
		slog.Error("Failed to seed users", "error", err)
		os.Exit(1)
	}

	if err := seeder.SeedEvents(ctx, *eventCount); err != nil {
		slog.Error("Failed to seed events", "error", err)
		os.Exit(1)
	}

	slog.Info("Data generation completed successfully!")
}

func (s *Seeder) SeedUsers(ctx context.Context, count int) error {
	pronounOptions := []string{"she/her", "he/him", "they/them"}

	for i := 0; i < count; i++ {
		password := sha256.Sum256([]byte(fmt.Sprintf("member%d", i)))
		pronouns := pronounOptions[rand.Intn(len(pronounOptions))]
		user := &models.User{
			Email:        fmt.Sprintf("member%d@example.com", i),
			PasswordHash: fmt.Sprintf("%x", password),
			SceneName:    fmt.Sprintf("%s%d", sceneNames[rand.Intn(len(sceneNames))], i),
			Pronouns:     &pronouns,
			IsActive:     true,
		}
		if err := s.repos.Users.Create(ctx, user); err != nil {
			return fmt.Errorf("failed to create user %d: %w", i, err)
		}
	}

	slog.Info("Seeded users", "count", count)
	return nil
}

func (s *Seeder) SeedEvents(ctx context.Context, count int) error {
	for i := 0; i < count; i++ {
		tpl := eventTemplates[i%len(eventTemplates)]
		start := time.Now().AddDate(0, 0, 7*(i+1))

		capacity := 0
		for _, sess := range tpl.sessions {
			capacity += sess.Capacity
		}

		socialSession := ""
		if tpl.typ == models.EventTypeSocial {
			socialSession = tpl.sessions[0].Code
		}

		event := &models.Event{
			Title:         fmt.Sprintf("%s #%d", tpl.title, i+1),
			Type:          tpl.typ,
			StartDate:     start,
			EndDate:       start.Add(4 * time.Hour),
			Capacity:      capacity,
			SocialSession: socialSession,
		}

		sessions := make([]models.Session, len(tpl.sessions))
		for j, item := range tpl.sessions {
			sessions[j] = models.Session{
				Code:     item.Code,
				Title:    item.Title,
				Capacity: item.Capacity,
				Active:   true,
			}
		}

		var ticketTypes []models.TicketType
		if tpl.typ != models.EventTypeSocial {
			allSessions := make([]string, len(tpl.sessions))
			for j, item := range tpl.sessions {
				allSessions[j] = item.Code
			}
			ticketTypes = append(ticketTypes, models.TicketType{
				Code:             "FULL",
				Name:             "Full Series",
				IncludedSessions: allSessions,
				PriceCents:       9500,
			})
			if len(allSessions) > 1 {
				ticketTypes = append(ticketTypes, models.TicketType{
					Code:             "SINGLE",
					Name:             "Single Session",
					IncludedSessions: allSessions[:1],
					PriceCents:       4000,
				})
			}
		}

		if err := s.repos.Events.Create(ctx, event, sessions, ticketTypes); err != nil {
			return fmt.Errorf("failed to create event %d: %w", i, err)
		}

		if s.repos.EventSearch != nil {
			if err := s.repos.EventSearch.IndexEvent(ctx, event); err != nil {
				slog.Error("Failed to index event", "event_id", event.ID, "error", err)
			}
		}
	}

	slog.Info("Seeded events", "count", count)
	return nil
}

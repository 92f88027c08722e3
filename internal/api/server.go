package api

import (
	"fmt"
	"log"
	"net/http"

	"ropewalk/internal/cache"
	"ropewalk/internal/config"
	"ropewalk/internal/database"
	"ropewalk/internal/external"
	"ropewalk/internal/handlers"
	"ropewalk/internal/messaging"
	"ropewalk/internal/middleware"
	"ropewalk/internal/repository"
	"ropewalk/internal/search"
	"ropewalk/internal/service"

	"github.com/gin-gonic/gin"
)

// Server is the HTTP API server
type Server struct {
	router     *gin.Engine
	config     *config.Config
	db         *database.DB
	nats       *messaging.NATSClient
	valkey     *cache.ValkeyClient
	services   *service.Services
	repos      *repository.Repositories
	promotions *service.PromotionRunner
}

func NewServer(cfg *config.Config) *Server {
	gin.SetMode(cfg.GinMode)

	db, err := database.Connect(cfg.Database)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	if err := db.RunMigrations(); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}

	natsClient, err := messaging.NewNATSClient(cfg.NATS)
	if err != nil {
		log.Fatalf("Failed to connect to NATS: %v", err)
	}

	// Valkey and Elasticsearch are optional; the API degrades to direct
	// database reads when either is down.
	valkeyClient, err := cache.NewValkeyClient(cfg.Valkey)
	if err != nil {
		log.Printf("Valkey unavailable, capacity caching disabled: %v", err)
		valkeyClient = nil
	}

	eventIndex, err := search.NewEventIndex(cfg.Elasticsearch)
	if err != nil {
		log.Printf("Elasticsearch unavailable, event search disabled: %v", err)
		eventIndex = nil
	}

	paymentClient := external.NewPaymentClient(cfg.Payment)
	vettingClient := external.NewVettingClient(cfg.Vetting)

	repos := repository.NewRepositoriesWithElasticsearch(db, eventIndex)

	services := service.NewServices(repos, natsClient, paymentClient, vettingClient, valkeyClient, cfg.CapacityCacheTTL)

	// Promotion runs here, not in the consumers process: this process owns
	// the capacity matrices, so it must be the one reserving freed spots.
	promotions := service.NewPromotionRunner(services.Participations, repos.Participations, natsClient)
	if err := promotions.Start(); err != nil {
		log.Fatalf("Failed to start promotion runner: %v", err)
	}

	router := gin.New()
	router.Use(middleware.Recovery())
	router.Use(middleware.CORS())
	router.Use(middleware.Logger())

	server := &Server{
		router:     router,
		config:     cfg,
		db:         db,
		nats:       natsClient,
		valkey:     valkeyClient,
		services:   services,
		repos:      repos,
		promotions: promotions,
	}

	server.setupRoutes()

	return server
}

func (s *Server) setupRoutes() {
	h := handlers.NewHandlers(s.services)

	api := s.router.Group("/api")
	api.Use(middleware.BasicAuth(s.repos.Users, s.valkey))
	{
		events := api.Group("/events")
		{
			events.POST("", h.CreateEvent)
			events.GET("", h.ListEvents)
			events.GET("/:id", h.GetEvent)
			events.GET("/:id/tickets", h.GetTicketAvailability)
			events.GET("/:id/participation", h.GetParticipationStatus)
			events.GET("/:id/capacity", h.GetCapacity)
			events.GET("/:id/attendees", h.ListAttendees)
			events.GET("/:id/dashboard", h.GetDashboard)
		}

		participations := api.Group("/participations")
		{
			participations.POST("/rsvp", h.RSVP)
			participations.POST("/tickets", h.PurchaseTicket)
			participations.PATCH("/cancel", h.CancelParticipation)
			participations.PATCH("/:id/refund", h.RefundParticipation)
		}

		checkins := api.Group("/checkin")
		{
			checkins.POST("", h.CheckIn)
			checkins.POST("/sync", h.SyncCheckIns)
		}

		payments := api.Group("/payments")
		{
			payments.POST("/notifications", h.OnPaymentUpdates)
		}
	}

	s.router.GET("/health", s.healthCheck)
}

func (s *Server) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "ok",
		"service": "ropewalk-api",
		"version": "1.0.0",
	})
}

func (s *Server) Run() error {
	addr := fmt.Sprintf(":%s", s.config.Port)
	return s.router.Run(addr)
}

// GetRouter exposes the router for tests
func (s *Server) GetRouter() *gin.Engine {
	return s.router
}

// Cleanup closes connections
func (s *Server) Cleanup() error {
	if s.promotions != nil {
		s.promotions.Stop()
	}

	if s.nats != nil {
		if err := s.nats.Close(); err != nil {
			log.Printf("Error closing NATS connection: %v", err)
		}
	}

	if s.valkey != nil {
		if err := s.valkey.Close(); err != nil {
			log.Printf("Error closing Valkey connection: %v", err)
		}
	}

	if s.db != nil {
		if err := s.db.Close(); err != nil {
			log.Printf("Error closing database connection: %v", err)
			return err
		}
	}

	return nil
}

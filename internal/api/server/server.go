package server

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/MrBlinki/sui-hackaton25/internal/api/handlers"
	"github.com/MrBlinki/sui-hackaton25/internal/api/middleware"
	"github.com/MrBlinki/sui-hackaton25/internal/config"
	"github.com/MrBlinki/sui-hackaton25/internal/ledger"
)

type Server struct {
	cfg    *config.Config
	state  *ledger.StateManager
	router *gin.Engine
}

func New(cfg *config.Config, state *ledger.StateManager) *Server {
	if cfg.Server.LogLevel != "debug" {
		gin.SetMode(gin.ReleaseMode) // Set to Release for production
	}

	s := &Server{
		cfg:    cfg,
		state:  state,
		router: gin.New(),
	}

	s.setupMiddleware()
	s.setupRoutes()

	return s
}

func (s *Server) setupMiddleware() {
	s.router.Use(gin.Recovery(), middleware.RequestID(), middleware.SilentLogger())
	s.router.Use(middleware.PermissiveCORS("GET", "POST", "DELETE", "OPTIONS")...)
}

func (s *Server) setupRoutes() {
	ledgerHandler := handlers.NewLedgerHandler(s.state)

	// Health Check
	s.router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "service": "jukebox-ledger", "time": time.Now().UTC()})
	})

	v1 := s.router.Group("/api/v1")
	{
		// ==========================================
		// PUBLIC ROUTES (read-only state)
		// ==========================================
		v1.GET("/state", ledgerHandler.GetState)
		v1.GET("/state/current", ledgerHandler.GetCurrent)
		v1.GET("/events", ledgerHandler.GetEvents)
		v1.GET("/accounts/:address", ledgerHandler.GetAccount)

		// ==========================================
		// SIGNED ROUTES (caller = token subject)
		// ==========================================
		signed := v1.Group("/")
		signed.Use(middleware.RequireAuth([]byte(s.cfg.Auth.JWTSecret)))
		{
			signed.POST("/tracks", ledgerHandler.RegisterTrack)
			signed.DELETE("/tracks/:index", ledgerHandler.RemoveTrack)
			signed.POST("/play", ledgerHandler.Play)
			signed.POST("/accounts/:address/fund", ledgerHandler.FundAccount)
		}
	}
}

// Handler exposes the router for tests and custom listeners.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start runs the server on the configured port
func (s *Server) Start(addr string) error {
	return s.router.Run(addr)
}

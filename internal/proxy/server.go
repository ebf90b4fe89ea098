package proxy

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/MrBlinki/sui-hackaton25/internal/api/middleware"
	"github.com/MrBlinki/sui-hackaton25/internal/blob"
	"github.com/MrBlinki/sui-hackaton25/internal/cache"
	"github.com/MrBlinki/sui-hackaton25/internal/config"
)

const defaultMaxUploadMB = 50

type Server struct {
	cfg        *config.Config
	cache      *cache.Manager
	mirrors    *blob.Mirrors
	publishers *blob.Publishers
	router     *gin.Engine
}

func New(cfg *config.Config, c *cache.Manager, mirrors *blob.Mirrors, publishers *blob.Publishers) *Server {
	if cfg.Server.LogLevel != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}

	s := &Server{
		cfg:        cfg,
		cache:      c,
		mirrors:    mirrors,
		publishers: publishers,
		router:     gin.New(),
	}

	s.router.Use(gin.Recovery(), middleware.RequestID(), middleware.SilentLogger())
	s.router.Use(middleware.PermissiveCORS("GET", "HEAD", "POST", "OPTIONS")...)
	s.router.MaxMultipartMemory = 8 << 20

	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.router.GET("/", s.describe)

	api := s.router.Group("/api")
	{
		api.GET("/health", s.health)
		api.GET("/audio/:blobId", s.serveAudio)
		api.HEAD("/audio/:blobId", s.serveAudio)
		api.POST("/upload", s.upload)
		api.GET("/metadata/:blobId", s.blobMetadata)
		api.GET("/art/:blobId", s.albumArt)
	}
}

func (s *Server) maxUploadBytes() int64 {
	mb := s.cfg.Proxy.MaxUploadMB
	if mb <= 0 {
		mb = defaultMaxUploadMB
	}
	return int64(mb) << 20
}

// Handler exposes the router for tests and custom listeners.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) Start(addr string) error {
	return s.router.Run(addr)
}

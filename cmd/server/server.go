package main

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"presencehub/internal/auth"
	"presencehub/internal/config"
	"presencehub/internal/groups"
	"presencehub/internal/presence"
	"presencehub/internal/types"
	"presencehub/pkg/protocol"
)

// Server wires the presence store, group registry and broadcast router
// behind the gin surface and the websocket endpoint.
type Server struct {
	cfg      *config.Config
	log      *zap.Logger
	store    *presence.Store
	registry *groups.Registry
	router   *groups.Router
	verifier *auth.Verifier
	engine   *gin.Engine
}

func NewServer(cfg *config.Config, log *zap.Logger) *Server {
	registry := groups.NewRegistry()
	s := &Server{
		cfg:      cfg,
		log:      log,
		store:    presence.NewStore(),
		registry: registry,
		router:   groups.NewRouter(registry),
		verifier: auth.NewVerifier(cfg.Auth.JWTSecret),
	}
	s.engine = s.buildRouter()
	return s
}

func (s *Server) buildRouter() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(s.corsMiddleware())
	r.Use(s.cidMiddleware())
	r.Use(s.otelMiddleware())

	r.GET("/", func(c *gin.Context) {
		c.String(http.StatusOK, "Socket server is running.")
	})
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "service": "presencehub"})
	})

	r.GET("/test-notification", s.handleTestNotification)
	r.POST("/emit", s.handleEmit)

	api := r.Group("/api")
	api.GET("/stats", s.handleStats)
	api.POST("/presence", s.authMiddleware(), s.handleReportPresence)
	api.GET("/presence/app", s.authMiddleware(), s.handleAppPresenceSnapshot)

	r.GET("/ws", s.handleWebSocket)
	return r
}

// publishPresence delivers a presence change to the primary admin group.
func (s *Server) publishPresence(entry types.PresenceEntry) {
	s.registry.Publish(protocol.GroupAdminPresence, types.Event{
		Type: protocol.EventPresence,
		Data: entry,
	})
}

// publishAppPresence delivers an app-view presence change to the
// app-scoped admin group.
func (s *Server) publishAppPresence(entry types.PresenceEntry) {
	s.registry.Publish(protocol.GroupAdminPresenceApp, types.Event{
		Type: protocol.EventPresence,
		Data: entry,
	})
}

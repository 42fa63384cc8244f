// Package server exposes the matching core over HTTP: rescore triggers for
// the CRUD layer, ranked match queries, tenant interaction mutations,
// dashboard KPIs, and the websocket endpoint. The marketplace's full CRUD
// routing lives in its own service; only the core's surface is routed here.
package server

import (
	"context"
	"fmt"
	"net/http"

	"github.com/gin-contrib/cors"
	ginzap "github.com/gin-contrib/zap"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/leasematch/leasematch/internal/config"
	"github.com/leasematch/leasematch/internal/kpi"
	"github.com/leasematch/leasematch/internal/matching"
	"github.com/leasematch/leasematch/internal/realtime"
)

// Server is the HTTP server around the matching core.
type Server struct {
	cfg          config.HTTPConfig
	logger       *zap.Logger
	orchestrator *matching.Orchestrator
	store        *matching.Store
	kpis         *kpi.Cache
	gateway      *realtime.Gateway
	verifier     realtime.TokenVerifier
	httpServer   *http.Server
}

// NewServer creates the HTTP server. It does not start listening.
func NewServer(
	cfg config.HTTPConfig,
	logger *zap.Logger,
	orchestrator *matching.Orchestrator,
	store *matching.Store,
	kpis *kpi.Cache,
	gateway *realtime.Gateway,
	verifier realtime.TokenVerifier,
) *Server {
	return &Server{
		cfg:          cfg,
		logger:       logger,
		orchestrator: orchestrator,
		store:        store,
		kpis:         kpis,
		gateway:      gateway,
		verifier:     verifier,
	}
}

// Router builds the gin engine.
func (s *Server) Router() *gin.Engine {
	router := gin.New()

	router.Use(ginzap.Ginzap(s.logger, "2006-01-02T15:04:05Z07:00", true))
	router.Use(ginzap.RecoveryWithZap(s.logger, true))
	if len(s.cfg.AllowedOrigins) > 0 {
		corsCfg := cors.DefaultConfig()
		corsCfg.AllowOrigins = s.cfg.AllowedOrigins
		corsCfg.AllowCredentials = true
		corsCfg.AddAllowHeaders("Authorization")
		router.Use(cors.New(corsCfg))
	} else {
		router.Use(cors.Default())
	}

	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// The gateway authenticates the socket itself from the token it is
	// handed at connection time.
	router.GET("/ws", func(c *gin.Context) {
		s.gateway.HandleConnection(c.Writer, c.Request)
	})

	api := router.Group("/api/v1")
	api.Use(s.authMiddleware())
	{
		// rescore triggers, called by listing-mutation handlers
		api.POST("/matching/demands/:id/rescore", s.rescoreDemand)
		api.POST("/matching/properties/:id/rescore", s.rescoreProperty)

		// queries
		api.GET("/demands/:id/matches", s.listMatches)
		api.GET("/dashboard/kpis", s.getKPIs)

		// tenant interaction mutations
		api.POST("/matches/:id/view", s.markViewed)
		api.POST("/matches/:id/save", s.markSaved)
		api.POST("/matches/:id/dismiss", s.markDismissed)
	}

	return router
}

// Run starts the HTTP server and blocks until it stops.
func (s *Server) Run() error {
	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port),
		Handler:      s.Router(),
		ReadTimeout:  s.cfg.ReadTimeout,
		WriteTimeout: s.cfg.WriteTimeout,
		IdleTimeout:  s.cfg.IdleTimeout,
	}
	s.logger.Info("http server listening", zap.String("addr", s.httpServer.Addr))
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown drains the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}

package rest

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/kay54068/halremote/internal/api/websocket"
	"github.com/kay54068/halremote/internal/config"
	"github.com/kay54068/halremote/internal/hal"
	"github.com/kay54068/halremote/internal/halremote"
)

type Server struct {
	router    *gin.Engine
	component *halremote.RemoteComponent
	container *hal.Group
	logger    *zap.Logger
	server    *http.Server
	wsHub     *websocket.Hub
}

func NewServer(cfg *config.Config, component *halremote.RemoteComponent, container *hal.Group, logger *zap.Logger, wsHub *websocket.Hub) *Server {
	gin.SetMode(gin.ReleaseMode)

	s := &Server{
		router:    gin.New(),
		component: component,
		container: container,
		logger:    logger,
		wsHub:     wsHub,
	}

	s.router.Use(gin.Recovery())
	s.setupRoutes()

	s.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.HTTPPort),
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return s
}

func (s *Server) Start() error {
	s.logger.Info("Starting REST API server", zap.String("address", s.server.Addr))
	go func() {
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logger.Fatal("REST server failed", zap.Error(err))
		}
	}()
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("Shutting down REST API server")
	return s.server.Shutdown(ctx)
}

func (s *Server) setupRoutes() {
	s.router.Use(LoggerMiddleware(s.logger))

	// Public routes
	s.router.GET("/health", s.healthCheck)

	// API v1
	v1 := s.router.Group("/api/v1")
	{
		v1.GET("/status", s.getStatus)

		component := v1.Group("/component")
		{
			component.POST("/ready", s.setReady)
		}

		pins := v1.Group("/pins")
		{
			pins.GET("", s.listPins)
			pins.GET("/:name", s.getPin)
			pins.POST("/:name/set", s.setPin)
		}

		ws := v1.Group("/ws")
		{
			ws.GET("/live", s.wsLiveConnection)
			ws.GET("/status", s.wsStatus)
		}
	}
}

// WebSocket handlers
func (s *Server) wsLiveConnection(c *gin.Context) {
	websocket.ServeWs(s.wsHub, c.Writer, c.Request)
}

func (s *Server) wsStatus(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"connected_clients": s.wsHub.GetClientCount(),
	})
}

// Health check (public)
func (s *Server) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "ok",
		"timestamp": time.Now().Unix(),
	})
}

// GET /api/v1/status
func (s *Server) getStatus(c *gin.Context) {
	c.JSON(http.StatusOK, s.component.Status())
}

// POST /api/v1/component/ready
func (s *Server) setReady(c *gin.Context) {
	var req struct {
		Ready *bool `json:"ready" binding:"required"`
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	s.component.SetReady(*req.Ready)

	c.JSON(http.StatusAccepted, gin.H{
		"message": "ready flag updated",
		"ready":   *req.Ready,
	})
}

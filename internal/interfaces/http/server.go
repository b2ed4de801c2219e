// Package http provides the HTTP adapter for the onboarding workflow.
// This is a thin layer: requests are translated to orchestrator and update
// service calls, and domain errors are mapped to status codes.
package http

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/crestlinehotels/onboarding/internal/application/orchestrator"
	"github.com/crestlinehotels/onboarding/internal/application/port"
	"github.com/crestlinehotels/onboarding/internal/application/registry"
)

// Logger interface for logging operations
type Logger interface {
	Info(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host         string
	Port         int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// DefaultServerConfig returns default server configuration
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		Host:         "0.0.0.0",
		Port:         8080,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
	}
}

// Server is the HTTP server adapter
type Server struct {
	config        ServerConfig
	httpServer    *http.Server
	router        *gin.Engine
	orchestrator  orchestrator.Orchestrator
	updateService registry.UpdateService
	audit         port.AuditRepository
	verifier      port.CredentialVerifier
	logger        Logger
}

// NewServer creates a new HTTP server with the given services
func NewServer(
	config ServerConfig,
	orch orchestrator.Orchestrator,
	updateService registry.UpdateService,
	audit port.AuditRepository,
	verifier port.CredentialVerifier,
	logger Logger,
) *Server {
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()

	server := &Server{
		config:        config,
		router:        router,
		orchestrator:  orch,
		updateService: updateService,
		audit:         audit,
		verifier:      verifier,
		logger:        logger,
	}

	server.setupMiddleware()
	server.setupRoutes()

	return server
}

// setupMiddleware configures middleware for the router
func (s *Server) setupMiddleware() {
	s.router.Use(gin.Recovery())
	s.router.Use(s.loggingMiddleware())
}

// loggingMiddleware creates a logging middleware
func (s *Server) loggingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		method := c.Request.Method

		c.Next()

		latency := time.Since(start)
		status := c.Writer.Status()

		s.logger.Info("HTTP request",
			"method", method,
			"path", path,
			"status", status,
			"latency", latency.String(),
			"client_ip", c.ClientIP(),
		)
	}
}

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes() {
	handlers := NewHandlers(s.orchestrator, s.updateService, s.audit, s.logger)

	// Health check
	s.router.GET("/health", handlers.HealthCheck)

	// Session routes require an authenticated actor.
	api := s.router.Group("/api")
	{
		sessions := api.Group("/sessions", s.authMiddleware())
		{
			sessions.POST("", handlers.InitiateSession)
			sessions.GET("/:id", handlers.GetSession)
			sessions.POST("/:id/steps", handlers.CompleteStep)
			sessions.POST("/:id/transition", handlers.RequestTransition)
			sessions.POST("/:id/corrections", handlers.RequestCorrections)
			sessions.GET("/:id/audit", handlers.GetSessionAudit)
		}

		// Update links: issuance and acknowledgment are authenticated; the
		// token routes authenticate by the token itself.
		api.POST("/updates", s.authMiddleware(), handlers.GenerateUpdateLink)
		api.POST("/updates/:id/acknowledge", s.authMiddleware(), handlers.AcknowledgeUpdate)
		api.GET("/update-forms/:token", handlers.ValidateUpdateToken)
		api.POST("/update-forms/:token", handlers.SubmitUpdate)
	}
}

// Start starts the HTTP server
func (s *Server) Start(ctx context.Context) error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)

	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
	}

	s.logger.Info("Starting HTTP server", "address", addr)

	errCh := make(chan error, 1)
	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("HTTP server shutdown requested")
		return s.Stop()
	case err := <-errCh:
		s.logger.Error("HTTP server error", "error", err)
		return err
	}
}

// Stop gracefully stops the HTTP server
func (s *Server) Stop() error {
	if s.httpServer == nil {
		return nil
	}

	s.logger.Info("Stopping HTTP server")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := s.httpServer.Shutdown(ctx); err != nil {
		s.logger.Error("HTTP server shutdown error", "error", err)
		return err
	}

	s.logger.Info("HTTP server stopped")
	return nil
}

// Router returns the underlying gin router (for testing)
func (s *Server) Router() *gin.Engine {
	return s.router
}

// Address returns the server address
func (s *Server) Address() string {
	return fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
}

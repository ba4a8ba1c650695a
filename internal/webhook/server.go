// Package webhook is the HTTP boundary: it accepts inbound email from the
// mail provider and exposes health and metrics endpoints.
package webhook

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/khrees2412/autoapply/internal/forwarding"
	"github.com/khrees2412/autoapply/internal/logger"
	"github.com/khrees2412/autoapply/internal/metrics"
	"github.com/khrees2412/autoapply/pkg/models"
)

const (
	DefaultAddr     = ":8089"
	SecretHeader    = "X-Webhook-Secret"
	shutdownTimeout = 10 * time.Second
)

// Processor handles one inbound message.
type Processor interface {
	ProcessIncomingEmail(ctx context.Context, in models.InboundEmail) forwarding.Result
}

// Pinger reports whether a dependency is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Config configures the server.
type Config struct {
	Addr   string
	Secret string
	Debug  bool
}

// Server serves the webhook routes.
type Server struct {
	router  *gin.Engine
	server  *http.Server
	proc    Processor
	db      Pinger
	metrics *metrics.Metrics
	secret  string
	log     logger.Logger
}

// NewServer builds the router. db and m may be nil.
func NewServer(cfg Config, proc Processor, db Pinger, m *metrics.Metrics, log logger.Logger) *Server {
	if log == nil {
		log = logger.NewNop()
	}
	if cfg.Addr == "" {
		cfg.Addr = DefaultAddr
	}
	if cfg.Debug {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(recoveryMiddleware(log), loggerMiddleware(log))

	s := &Server{
		router:  router,
		proc:    proc,
		db:      db,
		metrics: m,
		secret:  cfg.Secret,
		log:     log,
	}
	router.GET("/health", s.health)
	router.POST("/webhooks/email-received", s.requireSecret, s.emailReceived)
	if m != nil {
		router.GET("/metrics", gin.WrapH(m.Handler()))
	}

	s.server = &http.Server{
		Addr:         cfg.Addr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  2 * time.Minute,
	}
	return s
}

// Router returns the gin engine.
func (s *Server) Router() *gin.Engine { return s.router }

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.log.Info("Starting webhook server", logger.String("address", s.server.Addr))
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("server error: %w", err)
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := s.server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown error: %w", err)
	}
	s.log.Info("Webhook server stopped")
	return nil
}

func loggerMiddleware(log logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		fields := []logger.Field{
			logger.String("method", c.Request.Method),
			logger.String("path", c.Request.URL.Path),
			logger.Int("status", c.Writer.Status()),
			logger.Duration("duration", time.Since(start)),
			logger.String("client_ip", c.ClientIP()),
		}
		if len(c.Errors) > 0 {
			log.Error("HTTP request with errors", append(fields, logger.String("errors", c.Errors.String()))...)
			return
		}
		if c.Request.URL.Path == "/health" || c.Request.URL.Path == "/metrics" {
			log.Debug("HTTP request", fields...)
			return
		}
		log.Info("HTTP request", fields...)
	}
}

func recoveryMiddleware(log logger.Logger) gin.HandlerFunc {
	return gin.CustomRecovery(func(c *gin.Context, recovered any) {
		log.Error("Panic recovered",
			logger.Any("panic", recovered),
			logger.String("path", c.Request.URL.Path))
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
	})
}

package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/openfroyo/typist/pkg/config"
	"github.com/openfroyo/typist/pkg/policy"
	"github.com/openfroyo/typist/pkg/stores"
	"github.com/openfroyo/typist/pkg/telemetry"
)

// shutdownTimeout bounds graceful shutdown of the HTTP listener.
const shutdownTimeout = 5 * time.Second

// Server is the preview server. It animates scripts posted to it and streams
// the snapshots to browsers.
type Server struct {
	cfg       *config.AppConfig
	tel       *telemetry.Telemetry
	parser    *config.ScriptParser
	store     stores.Store
	lint      *policy.Engine
	sessions  *SessionManager
	logger    zerolog.Logger
	startTime time.Time
	version   string
	heartbeat time.Duration
}

// Option configures a Server.
type Option func(*Server)

// WithStore exposes run history from store under /api/runs.
func WithStore(store stores.Store) Option {
	return func(s *Server) {
		s.store = store
	}
}

// WithLint rejects posted scripts that fail lint with error severity and
// reports the remaining findings in the create response.
func WithLint(lint *policy.Engine) Option {
	return func(s *Server) {
		s.lint = lint
	}
}

// WithVersion sets the version reported by the health endpoint.
func WithVersion(version string) Option {
	return func(s *Server) {
		s.version = version
	}
}

// WithHeartbeat sets the interval of keep-alive events on session streams.
func WithHeartbeat(d time.Duration) Option {
	return func(s *Server) {
		if d > 0 {
			s.heartbeat = d
		}
	}
}

// New creates a server. Sessions live until ctx is done or Close is called.
func New(ctx context.Context, cfg *config.AppConfig, tel *telemetry.Telemetry, opts ...Option) *Server {
	logger := tel.Logger.NewComponentLogger("server").Zerolog()
	s := &Server{
		cfg:       cfg,
		tel:       tel,
		parser:    config.NewScriptParser(logger),
		sessions:  NewSessionManager(ctx, tel),
		logger:    logger,
		startTime: time.Now(),
		version:   "dev",
		heartbeat: 15 * time.Second,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Sessions returns the session manager.
func (s *Server) Sessions() *SessionManager {
	return s.sessions
}

// Handler builds the gin engine serving every route.
func (s *Server) Handler() http.Handler {
	r := gin.New()
	r.Use(gin.Recovery(), requestLogger(s.logger))

	origins := s.cfg.Server.AllowOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	r.Use(cors.New(cors.Config{
		AllowOrigins:     origins,
		AllowMethods:     []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Length", "Content-Type", "Accept"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: false,
		MaxAge:           12 * time.Hour,
	}))

	s.SetupRoutes(r)
	return r
}

// ListenAndServe serves on the configured address until ctx is done, then
// shuts down gracefully and closes every session.
func (s *Server) ListenAndServe(ctx context.Context) error {
	httpServer := &http.Server{
		Addr:              s.cfg.Server.Address,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info().Str("address", s.cfg.Server.Address).Msg("Preview server listening")
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		s.Close()
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("preview server failed: %w", err)
	case <-ctx.Done():
	}

	// Streams block until their session closes, so close sessions first.
	s.Close()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shut down preview server: %w", err)
	}
	s.logger.Info().Msg("Preview server stopped")
	return nil
}

// Close discards every session.
func (s *Server) Close() {
	s.sessions.Close()
}

// requestLogger logs every request through zerolog.
func requestLogger(logger zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		event := logger.Debug()
		if c.Writer.Status() >= http.StatusInternalServerError {
			event = logger.Error()
		}
		event.
			Str("method", c.Request.Method).
			Str("path", c.FullPath()).
			Int("status", c.Writer.Status()).
			Dur("latency", time.Since(start)).
			Msg("Request handled")
	}
}

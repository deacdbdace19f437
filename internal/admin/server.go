// Package admin exposes the operational HTTP surface: fleet status,
// health, and Prometheus metrics.
package admin

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/egresslab/gwrotor/internal/manager"
	"github.com/egresslab/gwrotor/internal/observability"
)

// DefaultShutdownTimeout bounds graceful shutdown.
const DefaultShutdownTimeout = 10 * time.Second

// StatusProvider is the slice of the manager the server reads.
// *manager.Manager satisfies it.
type StatusProvider interface {
	Status() (manager.State, []manager.RegionStatus)
	TargetBaseURL() string
}

// Server serves the admin endpoints on one listener.
type Server struct {
	listen   string
	provider StatusProvider
	metrics  *observability.Metrics
	logger   observability.Logger
	srv      *http.Server
}

// Option is a functional option for configuring the server.
type Option func(*Server)

// WithLogger sets the server logger.
func WithLogger(logger observability.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// WithMetrics exposes a metrics registry at /metrics.
func WithMetrics(metrics *observability.Metrics) Option {
	return func(s *Server) {
		s.metrics = metrics
	}
}

// New creates an admin server.
func New(listen string, provider StatusProvider, opts ...Option) (*Server, error) {
	if provider == nil {
		return nil, errors.New("admin: nil status provider")
	}

	s := &Server{
		listen:   listen,
		provider: provider,
		logger:   observability.NopLogger(),
	}
	for _, opt := range opts {
		opt(s)
	}

	return s, nil
}

// Handler builds the admin route tree.
func (s *Server) Handler() http.Handler {
	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery())

	engine.GET("/healthz", s.handleHealthz)
	engine.GET("/status", s.handleStatus)
	if s.metrics != nil {
		engine.GET("/metrics", gin.WrapH(s.metrics.Handler()))
	}

	return engine
}

// Start begins serving. It returns once the listener is running;
// serve errors other than a clean close are logged.
func (s *Server) Start() error {
	s.srv = &http.Server{
		Addr:              s.listen,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	s.logger.Info("admin server starting",
		observability.String("listen", s.listen),
	)

	go func() {
		if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("admin server failed", observability.Error(err))
		}
	}()

	return nil
}

// Shutdown stops the server gracefully.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.srv == nil {
		return nil
	}

	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, DefaultShutdownTimeout)
		defer cancel()
	}

	s.logger.Info("admin server stopping")
	return s.srv.Shutdown(ctx)
}

func (s *Server) handleHealthz(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) handleStatus(c *gin.Context) {
	state, regions := s.provider.Status()
	c.JSON(http.StatusOK, gin.H{
		"state":   state.String(),
		"target":  s.provider.TargetBaseURL(),
		"regions": regions,
	})
}

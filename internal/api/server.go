package api

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/nerrad567/osc-bridge/internal/audit"
	oscbridge "github.com/nerrad567/osc-bridge/internal/bridges/osc"
	"github.com/nerrad567/osc-bridge/internal/entity"
	"github.com/nerrad567/osc-bridge/internal/infrastructure/config"
	"github.com/nerrad567/osc-bridge/internal/infrastructure/logging"
	"github.com/nerrad567/osc-bridge/internal/metrics"
)

// gracefulShutdownTimeout is the maximum time to wait for in-flight requests
// to complete during shutdown.
const gracefulShutdownTimeout = 10 * time.Second

// EntitySource lists registered entities, sorted by address. Implemented by *entity.Registry.
type EntitySource interface {
	Entities() []entity.Mapping
	Len() int
}

// StatsSource reports bridge counters. Implemented by the OSC bridge.
type StatsSource interface {
	Stats() oscbridge.Stats
}

// HealthChecker is a component that can report its health.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// AuditLister reads registration history. Implemented by audit.Recorder.
type AuditLister interface {
	List(ctx context.Context, filter audit.Filter) (*audit.ListResult, error)
}

// Deps holds the dependencies of the status server.
type Deps struct {
	Config   config.APIConfig
	Logger   *logging.Logger
	Entities EntitySource
	Version  string

	// Optional.
	Bridge  StatsSource
	Audit   AuditLister
	Metrics *metrics.Metrics
	Checks  map[string]HealthChecker // component name → checker
	DBStats func() sql.DBStats
}

// Server is the status HTTP server.
type Server struct {
	cfg       config.APIConfig
	logger    *logging.Logger
	entities  EntitySource
	bridge    StatsSource
	audit     AuditLister
	metrics   *metrics.Metrics
	checks    map[string]HealthChecker
	dbStats   func() sql.DBStats
	version   string
	startTime time.Time

	server   *http.Server
	listener net.Listener
}

// New creates a server. It does not listen until Start is called.
func New(deps Deps) (*Server, error) {
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if deps.Entities == nil {
		return nil, fmt.Errorf("entity source is required")
	}

	return &Server{
		cfg:       deps.Config,
		logger:    deps.Logger,
		entities:  deps.Entities,
		bridge:    deps.Bridge,
		audit:     deps.Audit,
		metrics:   deps.Metrics,
		checks:    deps.Checks,
		dbStats:   deps.DBStats,
		version:   deps.Version,
		startTime: time.Now(),
	}, nil
}

// Handler returns the router, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.buildRouter()
}

// Start binds the listener and serves in the background. The bind happens
// synchronously so a port conflict is returned to the caller.
func (s *Server) Start(_ context.Context) error {
	addr := net.JoinHostPort(s.cfg.Host, strconv.Itoa(s.cfg.Port))
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", addr, err)
	}
	s.listener = ln

	s.server = &http.Server{
		Handler:           s.buildRouter(),
		ReadTimeout:       time.Duration(s.cfg.Timeouts.Read) * time.Second,
		ReadHeaderTimeout: time.Duration(s.cfg.Timeouts.Read) * time.Second,
		WriteTimeout:      time.Duration(s.cfg.Timeouts.Write) * time.Second,
		IdleTimeout:       time.Duration(s.cfg.Timeouts.Idle) * time.Second,
	}

	go func() {
		if err := s.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("API server error", "error", err)
		}
	}()

	s.logger.Info("API server started", "address", ln.Addr().String())
	return nil
}

// Addr returns the bound address, or nil before Start.
func (s *Server) Addr() net.Addr {
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Close gracefully shuts down the server, waiting up to 10 seconds for
// in-flight requests.
func (s *Server) Close() error {
	if s.server == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), gracefulShutdownTimeout)
	defer cancel()

	s.logger.Info("API server shutting down")
	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutting down API server: %w", err)
	}
	return nil
}

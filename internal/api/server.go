package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/nerrad567/occupancy-dashboard/internal/chart"
	"github.com/nerrad567/occupancy-dashboard/internal/dashboard"
	"github.com/nerrad567/occupancy-dashboard/internal/infrastructure/config"
	"github.com/nerrad567/occupancy-dashboard/internal/infrastructure/logging"
	"github.com/nerrad567/occupancy-dashboard/internal/occupancy"
)

// gracefulShutdownTimeout is the maximum time to wait for in-flight requests
// to complete during shutdown.
const gracefulShutdownTimeout = 10 * time.Second

// backendCheckTimeout bounds the backend check made by /health.
const backendCheckTimeout = 3 * time.Second

// SeriesCache is the read side of the query cache.
// Satisfied by *dashboard.Cache.
type SeriesCache interface {
	Active() dashboard.Snapshot
	Refetch()
	Subscribe(fn func(dashboard.Snapshot)) func()
}

// RangeSelector changes the active window.
// Satisfied by *dashboard.RangeController.
type RangeSelector interface {
	Current() occupancy.TimeRange
	SetRange(hours int) error
	Reset()
}

// HealthChecker checks an external dependency.
// Satisfied by the influxdb, tsdb and mqtt clients.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// ConnectionStatus reports whether an optional client is connected.
type ConnectionStatus interface {
	IsConnected() bool
}

// Deps holds the dependencies required by the API server.
type Deps struct {
	Config    config.APIConfig
	WS        config.WebSocketConfig
	Logger    *logging.Logger
	Cache     SeriesCache
	Range     RangeSelector
	Formatter chart.Formatter

	// Backend is checked by /health. Optional.
	Backend HealthChecker

	// MQTT is reported by the metrics endpoint when set. Optional.
	MQTT ConnectionStatus

	// PanelDir serves the panel from disk instead of the embedded copy.
	PanelDir string
	Version  string
}

// Server is the HTTP API server for the occupancy dashboard.
//
// It manages the HTTP listener, routes, middleware, and WebSocket hub.
// The server is created with New() and started with Start().
type Server struct {
	cfg         config.APIConfig
	wsCfg       config.WebSocketConfig
	logger      *logging.Logger
	cache       SeriesCache
	ranges      RangeSelector
	formatter   chart.Formatter
	backend     HealthChecker
	mqtt        ConnectionStatus
	panelDir    string
	version     string
	startTime   time.Time
	server      *http.Server
	hub         *Hub
	cancel      context.CancelFunc // cancels background goroutines on Close()
	unsubscribe func()
}

// New creates a new API server with the given dependencies.
//
// The server is not started until Start() is called.
//
// Parameters:
//   - deps: Required dependencies (config, logger, cache, range controller)
//
// Returns:
//   - *Server: Configured server ready to start
//   - error: If required dependencies are missing
func New(deps Deps) (*Server, error) {
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if deps.Cache == nil {
		return nil, fmt.Errorf("series cache is required")
	}
	if deps.Range == nil {
		return nil, fmt.Errorf("range controller is required")
	}

	return &Server{
		cfg:       deps.Config,
		wsCfg:     deps.WS,
		logger:    deps.Logger,
		cache:     deps.Cache,
		ranges:    deps.Range,
		formatter: deps.Formatter,
		backend:   deps.Backend,
		mqtt:      deps.MQTT,
		panelDir:  deps.PanelDir,
		version:   deps.Version,
		startTime: time.Now(),
	}, nil
}

// Start begins listening for HTTP connections.
//
// It starts the WebSocket hub, relays cache notifications to it, and
// launches the HTTP listener in a background goroutine. The server can be
// stopped with Close().
//
// Parameters:
//   - ctx: Context for cancellation of background goroutines
//
// Returns:
//   - error: If the server fails to start
func (s *Server) Start(ctx context.Context) error {
	var srvCtx context.Context
	srvCtx, s.cancel = context.WithCancel(ctx)

	if s.hub == nil {
		s.hub = NewHub(s.wsCfg, s.logger)
	}
	go s.hub.Run(srvCtx)

	s.subscribeSeriesUpdates()

	s.server = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port),
		Handler:           s.buildRouter(),
		ReadTimeout:       time.Duration(s.cfg.Timeouts.Read) * time.Second,
		ReadHeaderTimeout: time.Duration(s.cfg.Timeouts.Read) * time.Second,
		WriteTimeout:      time.Duration(s.cfg.Timeouts.Write) * time.Second,
		IdleTimeout:       time.Duration(s.cfg.Timeouts.Idle) * time.Second,
	}

	go func() {
		s.logger.Info("API server starting", "address", s.server.Addr)
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("API server error", "error", err)
		}
	}()

	return nil
}

// Close gracefully shuts down the API server.
//
// It waits up to 10 seconds for in-flight requests to complete,
// then forcefully closes remaining connections.
//
// Returns:
//   - error: If shutdown encounters an error
func (s *Server) Close() error {
	if s.unsubscribe != nil {
		s.unsubscribe()
		s.unsubscribe = nil
	}

	if s.server == nil {
		return nil
	}

	// Cancel background goroutines (hub)
	if s.cancel != nil {
		s.cancel()
	}

	ctx, cancel := context.WithTimeout(context.Background(), gracefulShutdownTimeout)
	defer cancel()

	s.logger.Info("API server shutting down")
	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutting down API server: %w", err)
	}
	return nil
}

// HealthCheck verifies the API server is running and responsive.
//
// Parameters:
//   - ctx: Context for timeout/cancellation
//
// Returns:
//   - error: nil if healthy, error describing the issue otherwise
func (s *Server) HealthCheck(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return fmt.Errorf("api health check: %w", ctx.Err())
	default:
	}

	if s.server == nil {
		return fmt.Errorf("api server not started")
	}

	return nil
}

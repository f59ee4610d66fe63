// Occupancy Dashboard
//
// This is the main entry point of the occupancy dashboard service. It reads
// the gym occupancy series from InfluxDB (or VictoriaMetrics), keeps the
// selected window fresh, and serves the chart over HTTP, WebSocket and an
// embedded web panel. The newest sample can also be published over MQTT.
package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/nerrad567/occupancy-dashboard/internal/api"
	"github.com/nerrad567/occupancy-dashboard/internal/chart"
	"github.com/nerrad567/occupancy-dashboard/internal/dashboard"
	"github.com/nerrad567/occupancy-dashboard/internal/infrastructure/config"
	"github.com/nerrad567/occupancy-dashboard/internal/infrastructure/influxdb"
	"github.com/nerrad567/occupancy-dashboard/internal/infrastructure/logging"
	"github.com/nerrad567/occupancy-dashboard/internal/infrastructure/mqtt"
	"github.com/nerrad567/occupancy-dashboard/internal/infrastructure/tsdb"
	"github.com/nerrad567/occupancy-dashboard/internal/occupancy"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"     // Semantic version (e.g., "1.0.0")
	commit  = "unknown" // Git commit hash
	date    = "unknown" // Build date
)

// Default file locations.
const (
	defaultConfigPath = "configs/config.yaml"
	defaultEnvPath    = ".env"
)

// startupCheckTimeout bounds the initial backend health check.
const startupCheckTimeout = 5 * time.Second

// source is a time-series backend the dashboard can read.
// Satisfied by *influxdb.Client and *tsdb.Client.
type source interface {
	occupancy.Fetcher
	HealthCheck(ctx context.Context) error
	SetLogger(logger *logging.Logger)
	Close() error
}

func main() {
	// Cancel on interrupt signals (Ctrl+C, SIGTERM) for graceful shutdown
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run is the actual application logic, separated from main for testability.
//
// Configuration is fully resolved before any network activity, so a missing
// endpoint, organisation or credential fails fast with a *config.ConfigError.
//
// Parameters:
//   - ctx: Context for cancellation and shutdown signals
//
// Returns:
//   - error: nil on clean shutdown, or error describing failure
func run(ctx context.Context) error {
	// Use default logger until config is loaded
	log := logging.Default()
	log.Info("starting occupancy dashboard",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	if err := config.LoadEnvFile(getEnvPath()); err != nil {
		return err
	}

	configPath := getConfigPath()
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	log.Info("configuration loaded", "path", configPath)

	// Reinitialise logger with config settings
	log = logging.New(cfg.Logging, version)
	log.Info("logger initialised",
		"level", cfg.Logging.Level,
		"format", cfg.Logging.Format,
	)

	loc, err := cfg.Location()
	if err != nil {
		return fmt.Errorf("loading display timezone: %w", err)
	}

	src, err := openSource(cfg.Source)
	if err != nil {
		return fmt.Errorf("opening %s source: %w", cfg.Source.Backend, err)
	}
	src.SetLogger(log.With("component", cfg.Source.Backend))
	defer func() {
		log.Info("closing time-series client")
		if closeErr := src.Close(); closeErr != nil {
			log.Error("error closing time-series client", "error", closeErr)
		}
	}()
	log.Info("time-series source configured",
		"backend", cfg.Source.Backend,
		"endpoint", cfg.Source.Endpoint,
		"bucket", cfg.Source.Bucket,
		"field", cfg.Source.Field,
	)

	// An unreachable backend is not fatal: fetches fail with QueryError and
	// are retried on the next poll.
	checkCtx, cancelCheck := context.WithTimeout(ctx, startupCheckTimeout)
	if checkErr := src.HealthCheck(checkCtx); checkErr != nil {
		log.Warn("time-series backend not reachable yet", "error", checkErr)
	}
	cancelCheck()

	g, gctx := errgroup.WithContext(ctx)

	cache, err := dashboard.NewCache(dashboard.CacheConfig{
		Fetcher:      src,
		Logger:       log.With("component", "cache"),
		PollInterval: cfg.Dashboard.PollInterval,
		FetchTimeout: cfg.Dashboard.FetchTimeout,
	})
	if err != nil {
		return fmt.Errorf("creating cache: %w", err)
	}
	if err := cache.Start(gctx); err != nil {
		return fmt.Errorf("starting cache: %w", err)
	}
	defer func() {
		log.Info("stopping cache")
		cache.Stop()
	}()

	ranges := dashboard.NewRangeController(cache, log.With("component", "range"))

	deps := api.Deps{
		Config:    cfg.API,
		WS:        cfg.WebSocket,
		Logger:    log.With("component", "api"),
		Cache:     cache,
		Range:     ranges,
		Formatter: chart.NewFormatter(loc, cfg.Display.TimeLayout),
		Backend:   src,
		PanelDir:  os.Getenv("OCCUPANCY_PANEL_DIR"),
		Version:   version,
	}

	if cfg.MQTT.Enabled {
		mqttClient, mqttErr := startPublisher(gctx, g, cfg, cache, log)
		if mqttErr != nil {
			// The publisher is optional; the dashboard keeps serving without it.
			log.Warn("MQTT publisher disabled", "error", mqttErr)
		} else {
			deps.MQTT = mqttClient
			defer func() {
				log.Info("disconnecting from MQTT")
				if stopErr := mqttClient.StopRefetch(); stopErr != nil {
					log.Warn("refetch command not unsubscribed", "error", stopErr)
				}
				if closeErr := mqttClient.Close(); closeErr != nil {
					log.Error("error closing MQTT", "error", closeErr)
				}
			}()
		}
	} else {
		log.Info("MQTT publisher disabled")
	}

	server, err := api.New(deps)
	if err != nil {
		return fmt.Errorf("creating API server: %w", err)
	}
	if err := server.Start(gctx); err != nil {
		return fmt.Errorf("starting API server: %w", err)
	}

	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutdown signal received, cleaning up")
		return server.Close()
	})

	log.Info("initialisation complete, waiting for shutdown signal",
		"address", fmt.Sprintf("%s:%d", cfg.API.Host, cfg.API.Port),
		"range_hours", ranges.Current().Hours,
		"poll_interval", cache.PollInterval(),
	)

	err = g.Wait()

	// Deferred calls run in reverse order: MQTT, cache, time-series client.
	log.Info("occupancy dashboard stopped")
	return err
}

// openSource creates the client for the configured backend without
// contacting it.
func openSource(cfg config.SourceConfig) (source, error) {
	switch cfg.Backend {
	case config.BackendVictoriaMetrics:
		client, err := tsdb.New(cfg)
		if err != nil {
			return nil, err
		}
		return client, nil
	case config.BackendInfluxDB, "":
		client, err := influxdb.New(cfg)
		if err != nil {
			return nil, err
		}
		return client, nil
	default:
		return nil, fmt.Errorf("unknown backend %q", cfg.Backend)
	}
}

// startPublisher connects to the broker, relays successful fetches to the
// retained latest topic and maps the refetch command onto the cache.
func startPublisher(ctx context.Context, g *errgroup.Group, cfg *config.Config, cache *dashboard.Cache, log *logging.Logger) (*mqtt.Client, error) {
	topics := mqtt.NewTopics(cfg.MQTT.TopicPrefix, cfg.Source.Bucket, cfg.Source.Field)

	client, err := mqtt.Connect(cfg.MQTT, topics)
	if err != nil {
		return nil, err
	}
	mqttLog := log.With("component", "mqtt")
	client.SetLogger(mqttLog)
	client.SetOnConnect(func() {
		mqttLog.Info("MQTT connected")
	})
	client.SetOnDisconnect(func(err error) {
		mqttLog.Warn("MQTT disconnected", "error", err)
	})

	if err := client.OnRefetch(cache.Refetch); err != nil {
		mqttLog.Warn("refetch command unavailable", "topic", topics.Refetch(), "error", err)
	}

	pub := newPublisher(client, mqttLog)
	unsubscribe := cache.Subscribe(pub.offer)
	g.Go(func() error {
		defer unsubscribe()
		return pub.run(ctx)
	})

	mqttLog.Info("publishing latest occupancy",
		"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
		"topic", topics.Latest(),
	)
	return client, nil
}

// getConfigPath returns the configuration file path.
// Uses OCCUPANCY_CONFIG if set; otherwise the default file when present,
// or no file at all.
func getConfigPath() string {
	if path := os.Getenv("OCCUPANCY_CONFIG"); path != "" {
		return path
	}
	if _, err := os.Stat(defaultConfigPath); errors.Is(err, fs.ErrNotExist) {
		return ""
	}
	return defaultConfigPath
}

// getEnvPath returns the dotenv file path.
func getEnvPath() string {
	if path := os.Getenv("OCCUPANCY_ENV_FILE"); path != "" {
		return path
	}
	return defaultEnvPath
}

package influxdb

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"

	"github.com/nerrad567/occupancy-dashboard/internal/infrastructure/config"
	"github.com/nerrad567/occupancy-dashboard/internal/infrastructure/logging"
)

// Default timeouts for InfluxDB operations.
const (
	defaultConnectTimeout = 10 * time.Second
	defaultPingTimeout    = 5 * time.Second

	// millisecondsPerSecond converts seconds to milliseconds for the InfluxDB API.
	millisecondsPerSecond = 1000
)

// Client wraps the InfluxDB v2 client for the occupancy dashboard.
//
// It reads the configured bucket/field through the Flux query API and, for
// the development seeder, writes points through the batching write API.
// Credentials are taken from the injected SourceConfig only.
//
// Thread Safety:
//   - All methods are safe for concurrent use from multiple goroutines.
type Client struct {
	client   influxdb2.Client
	queryAPI api.QueryAPI
	cfg      config.SourceConfig

	// writeAPI is created on first write; the dashboard itself never writes.
	writeAPI api.WriteAPI

	// connected tracks current connection state.
	connected bool
	mu        sync.RWMutex

	logger *logging.Logger

	// onError is called when async write errors occur.
	onError func(err error)
}

// New creates a client for the configured InfluxDB server without contacting it.
//
// Parameters:
//   - cfg: Resolved source configuration (endpoint, org, token, bucket, field)
//
// Returns:
//   - *Client: Client ready for queries
//   - error: If the endpoint or organisation is empty
func New(cfg config.SourceConfig) (*Client, error) {
	endpoint := strings.TrimRight(strings.TrimSpace(cfg.Endpoint), "/")
	if endpoint == "" {
		return nil, fmt.Errorf("%w: endpoint is required", ErrConnectionFailed)
	}
	if strings.TrimSpace(cfg.Org) == "" {
		return nil, fmt.Errorf("%w: org is required", ErrConnectionFailed)
	}

	// Validate and convert config values (ensure non-negative for uint conversion)
	batchSize := cfg.BatchSize
	if batchSize <= 0 {
		batchSize = 100
	}
	flushInterval := cfg.FlushInterval
	if flushInterval <= 0 {
		flushInterval = 1
	}

	// #nosec G115 -- values validated above to be positive
	client := influxdb2.NewClientWithOptions(
		endpoint,
		cfg.Token,
		influxdb2.DefaultOptions().
			SetBatchSize(uint(batchSize)).
			SetFlushInterval(uint(flushInterval)*millisecondsPerSecond),
	)

	return &Client{
		client:    client,
		queryAPI:  client.QueryAPI(cfg.Org),
		cfg:       cfg,
		connected: true,
	}, nil
}

// Connect creates a client and verifies the server answers a ping.
//
// Parameters:
//   - ctx: Context for cancellation (bounded by the connect timeout)
//   - cfg: Resolved source configuration
//
// Returns:
//   - *Client: Connected client ready for use
//   - error: ErrConnectionFailed (wrapped) if the server is unreachable or unhealthy
func Connect(ctx context.Context, cfg config.SourceConfig) (*Client, error) {
	c, err := New(cfg)
	if err != nil {
		return nil, err
	}

	pingCtx, cancel := context.WithTimeout(ctx, defaultConnectTimeout)
	defer cancel()

	if err := c.HealthCheck(pingCtx); err != nil {
		c.client.Close()
		return nil, fmt.Errorf("%w: %w", ErrConnectionFailed, err)
	}

	return c, nil
}

// SetLogger sets a logger for dropped-row diagnostics.
func (c *Client) SetLogger(logger *logging.Logger) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.logger = logger
}

func (c *Client) getLogger() *logging.Logger {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.logger
}

// Close flushes pending writes and releases the underlying client.
//
// Returns:
//   - error: nil (InfluxDB client Close doesn't return errors)
func (c *Client) Close() error {
	if c == nil || c.client == nil {
		return nil
	}

	c.mu.Lock()
	c.connected = false
	writeAPI := c.writeAPI
	c.mu.Unlock()

	if writeAPI != nil {
		writeAPI.Flush()
	}

	c.client.Close()

	return nil
}

// HealthCheck verifies the InfluxDB server is reachable and healthy.
//
// Parameters:
//   - ctx: Context for timeout/cancellation
//
// Returns:
//   - error: nil if healthy, error describing the issue otherwise
func (c *Client) HealthCheck(ctx context.Context) error {
	if !c.IsConnected() {
		return ErrNotConnected
	}

	checkCtx, cancel := context.WithTimeout(ctx, defaultPingTimeout)
	defer cancel()

	healthy, err := c.client.Ping(checkCtx)
	if err != nil {
		return fmt.Errorf("influxdb health check failed: %w", err)
	}
	if !healthy {
		return fmt.Errorf("influxdb health check failed: server not healthy")
	}

	return nil
}

// IsConnected returns the current connection state.
//
// Note: This reflects the last known state. For reliability,
// use HealthCheck which performs an active ping.
func (c *Client) IsConnected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.connected
}

// SetOnError sets a callback to be invoked when async write errors occur.
func (c *Client) SetOnError(callback func(err error)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onError = callback
}

// Bucket returns the bucket the client reads and writes.
func (c *Client) Bucket() string {
	return c.cfg.Bucket
}

// Field returns the field the client selects.
func (c *Client) Field() string {
	return c.cfg.Field
}

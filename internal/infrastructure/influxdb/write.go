package influxdb

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// occupancyMeasurement is the measurement the seeder writes the field under.
// Reads filter on the field only, so any measurement name is picked up.
const occupancyMeasurement = "occupancy"

// WriteOccupancy writes one occupancy reading for the configured field.
//
// The write is non-blocking; data is batched and sent asynchronously.
// Batch errors are reported through the SetOnError callback.
//
// Parameters:
//   - value: People count at ts
//   - ts: Time of the reading
//
// Example:
//
//	client.WriteOccupancy(42, time.Now())
func (c *Client) WriteOccupancy(value float64, ts time.Time) {
	w := c.writer()
	if w == nil {
		return
	}

	point := write.NewPoint(
		occupancyMeasurement,
		nil,
		map[string]interface{}{
			c.cfg.Field: value,
		},
		ts,
	)

	w.WritePoint(point)
}

// Flush forces all pending writes to be sent.
// Blocks until the buffer is written.
func (c *Client) Flush() {
	c.mu.RLock()
	w := c.writeAPI
	c.mu.RUnlock()

	if w != nil {
		w.Flush()
	}
}

// writer returns the write API, creating it and its error watcher on first use.
// Returns nil once the client is closed.
func (c *Client) writer() api.WriteAPI {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.connected {
		return nil
	}
	if c.writeAPI != nil {
		return c.writeAPI
	}

	c.writeAPI = c.client.WriteAPI(c.cfg.Org, c.cfg.Bucket)
	go c.watchWriteErrors(c.writeAPI.Errors())

	return c.writeAPI
}

// watchWriteErrors forwards async write errors to the error callback.
// The channel is closed when the client is closed.
func (c *Client) watchWriteErrors(errs <-chan error) {
	for err := range errs {
		c.mu.RLock()
		callback := c.onError
		logger := c.logger
		c.mu.RUnlock()

		if callback != nil {
			callback(err)
		} else if logger != nil {
			logger.Error("influxdb write failed", "error", err)
		}
	}
}

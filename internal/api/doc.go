// Package api implements the HTTP REST API and WebSocket server for the
// occupancy dashboard.
//
// This package provides:
//   - REST endpoints to read the active series and rendered chart
//   - Range selection, reset and manual refetch
//   - WebSocket hub broadcasting series.updated on every cache change
//   - Middleware stack (request ID, logging, recovery, CORS)
//   - Prometheus exposition under /metrics
//
// # Architecture
//
// Handlers never fetch. Reads go to the cache snapshot and the chart
// renderer; writes go to the range controller, which drives the cache.
// Cache notifications are relayed to WebSocket clients so the panel can
// redraw without polling.
//
// # Graceful Degradation
//
// The server operates without MQTT and reports a degraded health status
// while the time-series backend is unreachable.
package api

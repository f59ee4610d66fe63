// Package panel serves the dashboard web UI as an embedded asset.
//
// The page, script and stylesheet are embedded into the Go binary using the
// go:embed directive, so the service has no runtime dependency on external
// files. Handler serves them with SPA fallback routing: if a requested file
// does not exist, index.html is served.
//
// The page draws the chart returned by /api/v1/chart, shows a tooltip on
// hover, and offers the brush, range and Reset controls. It redraws on every
// series.updated WebSocket event.
package panel

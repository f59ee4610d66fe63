// Package tsdb is the VictoriaMetrics backend for the occupancy series.
//
// It queries with PromQL over /api/v1/query_range and writes InfluxDB line
// protocol to /write. VictoriaMetrics names a line protocol field
// <measurement>_<field>, so the series written as measurement "puregymbucket"
// field "People" is read back as the metric puregymbucket_People.
//
// # Usage
//
//	client, err := tsdb.Connect(ctx, cfg.Source)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	r, _ := occupancy.NewTimeRange(48)
//	samples, err := client.FetchRange(ctx, r)
//
// # Thread Safety
//
// All methods are safe for concurrent use from multiple goroutines.
// Writes are batched internally and flushed on size threshold or timer.
//
// # Error Handling
//
// FetchRange wraps every failure in *occupancy.QueryError. Write operations
// are non-blocking and batch errors are reported via a callback.
package tsdb

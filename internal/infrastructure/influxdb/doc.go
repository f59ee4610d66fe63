// Package influxdb reads the occupancy series from InfluxDB v2.
//
// It wraps the official influxdb-client-go v2 library. The dashboard uses
// the Flux query API to fetch one field of one bucket over a trailing
// window; the development seeder uses the batching write API.
//
// # Usage
//
//	client, err := influxdb.New(cfg.Source)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	r, _ := occupancy.NewTimeRange(48)
//	samples, err := client.FetchRange(ctx, r)
//
// The query sent for a 48 hour window over the default bucket and field is:
//
//	from(bucket: "puregymbucket") |> range(start: -48h) |> filter(fn: (r) => r._field == "People")
//
// # Thread Safety
//
// All methods are safe for concurrent use from multiple goroutines.
//
// # Error Handling
//
// FetchRange returns *occupancy.QueryError for every failure, including
// cancellation. Malformed rows are not errors: they are dropped and counted
// in occupancy_samples_dropped_total. Write errors are asynchronous and
// reported through the SetOnError callback.
package influxdb

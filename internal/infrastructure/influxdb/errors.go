package influxdb

import "errors"

// Sentinel errors for InfluxDB operations.
//
// Query failures reach callers wrapped in *occupancy.QueryError; the
// sentinels stay reachable through errors.Is:
//
//	if errors.Is(err, influxdb.ErrQueryFailed) {
//	    // Transport or server-side failure
//	}
var (
	// ErrNotConnected indicates the client has been closed.
	ErrNotConnected = errors.New("influxdb: not connected")

	// ErrConnectionFailed indicates the initial connection attempt failed.
	ErrConnectionFailed = errors.New("influxdb: connection failed")

	// ErrQueryFailed indicates the Flux query could not be executed.
	ErrQueryFailed = errors.New("influxdb: query failed")

	// ErrDecodeFailed indicates the query response could not be decoded.
	ErrDecodeFailed = errors.New("influxdb: decoding response failed")
)

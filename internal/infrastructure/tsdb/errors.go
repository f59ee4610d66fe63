package tsdb

import "errors"

// Sentinel errors for time-series database operations.
//
// Query failures reach callers wrapped in *occupancy.QueryError; the
// sentinels stay reachable through errors.Is:
//
//	if errors.Is(err, tsdb.ErrNotConnected) {
//	    // Handle disconnected state
//	}
var (
	// ErrNotConnected indicates the client has been closed.
	ErrNotConnected = errors.New("tsdb: not connected")

	// ErrConnectionFailed indicates the initial connection attempt failed.
	ErrConnectionFailed = errors.New("tsdb: connection failed")

	// ErrWriteFailed indicates a write operation failed.
	ErrWriteFailed = errors.New("tsdb: write failed")

	// ErrQueryFailed indicates the PromQL query was rejected or could not be sent.
	ErrQueryFailed = errors.New("tsdb: query failed")

	// ErrDecodeFailed indicates the query response could not be decoded.
	ErrDecodeFailed = errors.New("tsdb: decoding response failed")
)

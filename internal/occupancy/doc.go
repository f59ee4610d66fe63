// Package occupancy defines the domain types shared by the occupancy dashboard.
//
// A Sample is one (timestamp, value) observation of the monitored metric.
// A TimeRange is the trailing window, in whole hours, that the dashboard asks
// the time-series store for; its QueryKey identifies the matching cache entry.
//
// # Ordering
//
// Every []Sample handed between packages is sorted ascending by timestamp and
// contains no duplicate timestamps. Fetchers call Normalize before returning
// and the renderer relies on it.
//
// # Errors
//
// QueryError wraps any transport or decoding failure of a fetch and is
// recoverable. RangeError rejects a non-positive window before it reaches the
// cache. Both are matched with errors.As.
package occupancy

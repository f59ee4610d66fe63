package occupancy

import (
	"context"
	"math"
	"sort"
	"strconv"
	"time"
)

// Sample is a single observation of the occupancy metric.
type Sample struct {
	Time  time.Time `json:"time"`
	Value float64   `json:"value"`
}

// Valid reports whether the sample carries a usable timestamp and a finite value.
func (s Sample) Valid() bool {
	return !s.Time.IsZero() && !math.IsNaN(s.Value) && !math.IsInf(s.Value, 0)
}

// QueryKey identifies a cache entry and the request that fills it.
// It is the window length in hours.
type QueryKey int

// String renders the key as a Flux-style duration, e.g. "48h".
func (k QueryKey) String() string {
	return strconv.Itoa(int(k)) + "h"
}

// MaxHours is the longest window whose length fits in a time.Duration.
const MaxHours = int(math.MaxInt64 / int64(time.Hour))

// TimeRange is the trailing window requested from the store.
type TimeRange struct {
	Hours int `json:"hours"`
}

// NewTimeRange validates hours and returns the matching TimeRange.
//
// Returns:
//   - TimeRange: The window
//   - error: *RangeError if hours is not in [1, MaxHours]
func NewTimeRange(hours int) (TimeRange, error) {
	r := TimeRange{Hours: hours}
	if !r.Valid() {
		return TimeRange{}, &RangeError{Hours: hours}
	}
	return r, nil
}

// Valid reports whether the window is positive and its Duration does not
// overflow.
func (r TimeRange) Valid() bool {
	return r.Hours > 0 && r.Hours <= MaxHours
}

// Key returns the cache key for the range.
func (r TimeRange) Key() QueryKey {
	return QueryKey(r.Hours)
}

// Duration returns the window as a time.Duration.
func (r TimeRange) Duration() time.Duration {
	return time.Duration(r.Hours) * time.Hour
}

// Range converts a key back to its window.
func (k QueryKey) Range() TimeRange {
	return TimeRange{Hours: int(k)}
}

// Fetcher loads the samples for a window from a time-series store.
//
// Implementations must return samples already passed through Normalize,
// must treat "no data" as an empty success, and must wrap failures in
// *QueryError. Cancelling ctx abandons the call.
type Fetcher interface {
	FetchRange(ctx context.Context, r TimeRange) ([]Sample, error)
}

// Normalize drops invalid samples, sorts the rest ascending by timestamp and
// collapses duplicate timestamps, keeping the sample that appeared last in the
// input. The input slice is not modified.
func Normalize(samples []Sample) []Sample {
	out := make([]Sample, 0, len(samples))
	for _, s := range samples {
		if s.Valid() {
			out = append(out, s)
		}
	}

	// Stable so that, among equal timestamps, input order is preserved and
	// the last one can win below.
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Time.Before(out[j].Time)
	})

	deduped := out[:0]
	for _, s := range out {
		if n := len(deduped); n > 0 && deduped[n-1].Time.Equal(s.Time) {
			deduped[n-1] = s
			continue
		}
		deduped = append(deduped, s)
	}
	return deduped
}

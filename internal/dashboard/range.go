package dashboard

import (
	"sync"
	"sync/atomic"

	"github.com/nerrad567/occupancy-dashboard/internal/infrastructure/logging"
	"github.com/nerrad567/occupancy-dashboard/internal/occupancy"
)

// DefaultRangeHours is the window selected at startup and restored by Reset.
const DefaultRangeHours = 48

// Observer is the part of Cache the range controller drives.
type Observer interface {
	Observe(key occupancy.QueryKey)
	Refetch()
}

// RangeController owns the selected window.
//
// Every accepted change makes the new window active in the cache. Invalid
// windows are rejected before the cache is touched.
type RangeController struct {
	cache  Observer
	logger *logging.Logger

	// changeMu orders changes so the cache sees them in the order they were accepted.
	changeMu sync.Mutex
	current  atomic.Int64
}

// NewRangeController selects DefaultRangeHours and activates it in cache.
func NewRangeController(cache Observer, logger *logging.Logger) *RangeController {
	if logger == nil {
		logger = logging.Default()
	}

	rc := &RangeController{
		cache:  cache,
		logger: logger.With("component", "range"),
	}
	rc.current.Store(DefaultRangeHours)
	cache.Observe(occupancy.QueryKey(DefaultRangeHours))

	return rc
}

// Current returns the selected window.
func (rc *RangeController) Current() occupancy.TimeRange {
	return occupancy.TimeRange{Hours: int(rc.current.Load())}
}

// SetRange selects a window of hours.
//
// Setting the current value again does nothing.
//
// Returns:
//   - error: *occupancy.RangeError if hours is out of range; the cache is not touched
func (rc *RangeController) SetRange(hours int) error {
	r, err := occupancy.NewTimeRange(hours)
	if err != nil {
		rc.logger.Debug("rejected range", "hours", hours)
		return err
	}

	rc.changeMu.Lock()
	defer rc.changeMu.Unlock()

	if int64(r.Hours) == rc.current.Load() {
		return nil
	}

	rc.current.Store(int64(r.Hours))
	rc.logger.Info("range changed", "range", r.Key().String())
	rc.cache.Observe(r.Key())

	return nil
}

// Reset restores DefaultRangeHours. When the default is already selected the
// active window is refetched instead.
func (rc *RangeController) Reset() {
	rc.changeMu.Lock()
	defer rc.changeMu.Unlock()

	if rc.current.Load() == DefaultRangeHours {
		rc.logger.Info("range reset, refetching")
		rc.cache.Refetch()
		return
	}

	rc.current.Store(DefaultRangeHours)
	rc.logger.Info("range reset", "range", occupancy.QueryKey(DefaultRangeHours).String())
	rc.cache.Observe(occupancy.QueryKey(DefaultRangeHours))
}

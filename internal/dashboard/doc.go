// Package dashboard keeps the occupancy series fresh for the active window.
//
// Cache holds one Entry per window length. Exactly one key is active at a
// time; only the active key is polled and only its entry is surfaced through
// Active. Changing the active key cancels the fetch of the previous key and
// drops its result, so the last request always wins.
//
// The poll timer is due one PollInterval after the active entry's last fetch
// started. A tick that arrives while a fetch is still in flight is absorbed;
// the completion re-arms the timer. A manual Refetch supersedes any in-flight
// fetch for the key and restarts the interval.
//
// RangeController owns the selected window and is the only caller of
// Cache.Observe.
//
// # Usage
//
//	cache := dashboard.NewCache(dashboard.CacheConfig{
//	    Fetcher:      client,
//	    Logger:       logger,
//	    PollInterval: cfg.Dashboard.PollInterval,
//	    FetchTimeout: cfg.Dashboard.FetchTimeout,
//	})
//	if err := cache.Start(ctx); err != nil {
//	    return err
//	}
//	defer cache.Stop()
//
//	ranges := dashboard.NewRangeController(cache, logger)
//	_ = ranges.SetRange(24)
//	snap := cache.Active()
package dashboard

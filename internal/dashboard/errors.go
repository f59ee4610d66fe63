package dashboard

import "errors"

var (
	// ErrAlreadyStarted is returned by Start on a cache that is already running.
	ErrAlreadyStarted = errors.New("dashboard: cache already started")

	// ErrNoFetcher is returned by NewCache when the config has no Fetcher.
	ErrNoFetcher = errors.New("dashboard: no fetcher configured")
)

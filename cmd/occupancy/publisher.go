package main

import (
	"context"
	"time"

	"github.com/nerrad567/occupancy-dashboard/internal/dashboard"
	"github.com/nerrad567/occupancy-dashboard/internal/infrastructure/logging"
	"github.com/nerrad567/occupancy-dashboard/internal/occupancy"
)

// latestPublisher sends the newest sample of a fetch somewhere.
// Satisfied by *mqtt.Client.
type latestPublisher interface {
	PublishLatest(key occupancy.QueryKey, s occupancy.Sample, fetchedAt time.Time) error
}

// publisher forwards completed fetches to a latestPublisher off the cache's
// notification path. Only the newest pending snapshot is kept.
type publisher struct {
	pub     latestPublisher
	log     *logging.Logger
	pending chan dashboard.Snapshot
}

func newPublisher(pub latestPublisher, log *logging.Logger) *publisher {
	return &publisher{
		pub:     pub,
		log:     log,
		pending: make(chan dashboard.Snapshot, 1),
	}
}

// offer queues snap if it is a completed fetch with data, replacing any
// snapshot not yet published. It never blocks.
func (p *publisher) offer(snap dashboard.Snapshot) {
	if snap.Status != dashboard.StatusSuccess || snap.Fetching || len(snap.Samples) == 0 {
		return
	}
	for {
		select {
		case p.pending <- snap:
			return
		default:
		}
		select {
		case <-p.pending:
		default:
		}
	}
}

// run publishes queued snapshots until ctx is done. A snapshot already
// published for the same window and fetch time is skipped.
func (p *publisher) run(ctx context.Context) error {
	var (
		lastKey     occupancy.QueryKey
		lastFetched time.Time
	)

	for {
		select {
		case <-ctx.Done():
			return nil
		case snap := <-p.pending:
			if snap.Key == lastKey && snap.FetchedAt.Equal(lastFetched) {
				continue
			}
			latest := snap.Samples[len(snap.Samples)-1]
			if err := p.pub.PublishLatest(snap.Key, latest, snap.FetchedAt); err != nil {
				p.log.Warn("failed to publish latest occupancy", "range", snap.Key.String(), "error", err)
				continue
			}
			lastKey, lastFetched = snap.Key, snap.FetchedAt
			p.log.Debug("published latest occupancy", "range", snap.Key.String(), "value", latest.Value)
		}
	}
}

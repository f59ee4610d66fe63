package dashboard

import (
	"errors"
	"sync"
	"testing"

	"github.com/jonboulle/clockwork"

	"github.com/nerrad567/occupancy-dashboard/internal/infrastructure/logging"
	"github.com/nerrad567/occupancy-dashboard/internal/occupancy"
)

// recordingObserver records the calls a RangeController makes.
type recordingObserver struct {
	mu       sync.Mutex
	observed []occupancy.QueryKey
	refetch  int
}

func (r *recordingObserver) Observe(key occupancy.QueryKey) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.observed = append(r.observed, key)
}

func (r *recordingObserver) Refetch() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.refetch++
}

func (r *recordingObserver) calls() ([]occupancy.QueryKey, int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]occupancy.QueryKey(nil), r.observed...), r.refetch
}

func TestNewRangeController_ActivatesDefault(t *testing.T) {
	obs := &recordingObserver{}
	rc := NewRangeController(obs, logging.Discard())

	if got := rc.Current().Hours; got != DefaultRangeHours {
		t.Errorf("Current() = %d, want %d", got, DefaultRangeHours)
	}
	observed, _ := obs.calls()
	if len(observed) != 1 || observed[0] != DefaultRangeHours {
		t.Errorf("observed = %v, want [48h]", observed)
	}
}

func TestSetRange(t *testing.T) {
	obs := &recordingObserver{}
	rc := NewRangeController(obs, logging.Discard())

	if err := rc.SetRange(24); err != nil {
		t.Fatalf("SetRange(24) error = %v", err)
	}
	if got := rc.Current().Hours; got != 24 {
		t.Errorf("Current() = %d, want 24", got)
	}

	observed, _ := obs.calls()
	if len(observed) != 2 || observed[1] != 24 {
		t.Errorf("observed = %v, want [48h 24h]", observed)
	}
}

func TestSetRange_SameValueIsNoop(t *testing.T) {
	obs := &recordingObserver{}
	rc := NewRangeController(obs, logging.Discard())

	if err := rc.SetRange(DefaultRangeHours); err != nil {
		t.Fatalf("SetRange() error = %v", err)
	}

	observed, refetch := obs.calls()
	if len(observed) != 1 || refetch != 0 {
		t.Errorf("observed = %v refetch = %d, want only the initial observe", observed, refetch)
	}
}

func TestSetRange_Invalid(t *testing.T) {
	tests := []int{0, -1, -48, occupancy.MaxHours + 1}

	for _, hours := range tests {
		obs := &recordingObserver{}
		rc := NewRangeController(obs, logging.Discard())

		err := rc.SetRange(hours)
		var re *occupancy.RangeError
		if !errors.As(err, &re) {
			t.Errorf("SetRange(%d) error = %v, want *occupancy.RangeError", hours, err)
			continue
		}
		if re.Hours != hours {
			t.Errorf("RangeError.Hours = %d, want %d", re.Hours, hours)
		}
		if got := rc.Current().Hours; got != DefaultRangeHours {
			t.Errorf("Current() after SetRange(%d) = %d, want unchanged", hours, got)
		}
		if observed, refetch := obs.calls(); len(observed) != 1 || refetch != 0 {
			t.Errorf("SetRange(%d) touched the cache: observed=%v refetch=%d", hours, observed, refetch)
		}
	}
}

func TestReset_RestoresDefault(t *testing.T) {
	obs := &recordingObserver{}
	rc := NewRangeController(obs, logging.Discard())

	if err := rc.SetRange(6); err != nil {
		t.Fatalf("SetRange(6) error = %v", err)
	}
	rc.Reset()

	if got := rc.Current().Hours; got != DefaultRangeHours {
		t.Errorf("Current() after Reset = %d, want %d", got, DefaultRangeHours)
	}
	observed, refetch := obs.calls()
	want := []occupancy.QueryKey{48, 6, 48}
	if len(observed) != len(want) || refetch != 0 {
		t.Fatalf("observed = %v refetch = %d, want %v and no refetch", observed, refetch, want)
	}
	for i := range want {
		if observed[i] != want[i] {
			t.Errorf("observed[%d] = %v, want %v", i, observed[i], want[i])
		}
	}
}

func TestReset_AtDefaultRefetches(t *testing.T) {
	obs := &recordingObserver{}
	rc := NewRangeController(obs, logging.Discard())

	rc.Reset()

	observed, refetch := obs.calls()
	if len(observed) != 1 || refetch != 1 {
		t.Errorf("observed = %v refetch = %d, want 1 observe and 1 refetch", observed, refetch)
	}
}

// TestRangeController_WithCache drives a real cache through the controller:
// an invalid range never reaches the fetcher, and the last accepted range wins.
func TestRangeController_WithCache(t *testing.T) {
	clock := clockwork.NewFakeClock()
	fetcher := newFakeFetcher()
	cache := newTestCache(t, clock, fetcher)

	rc := NewRangeController(cache, logging.Discard())
	first := fetcher.next(t)
	if first.r.Hours != DefaultRangeHours {
		t.Fatalf("initial fetch = %dh, want %dh", first.r.Hours, DefaultRangeHours)
	}

	if err := rc.SetRange(0); err == nil {
		t.Fatal("SetRange(0) error = nil, want RangeError")
	}
	fetcher.expectNone(t)

	if err := rc.SetRange(12); err != nil {
		t.Fatalf("SetRange(12) error = %v", err)
	}
	second := fetcher.next(t)
	second.succeed(sample(clock, 0, 9))
	first.succeed(sample(clock, 0, 1))

	eventually(t, "12h applied", func() bool {
		s := cache.Active()
		return s.Key == 12 && s.Status == StatusSuccess
	})
	if got := cache.Active().Samples; len(got) != 1 || got[0].Value != 9 {
		t.Errorf("samples = %v, want the 12h result", got)
	}
}

package tsdb_test

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"runtime"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/nerrad567/occupancy-dashboard/internal/infrastructure/config"
	"github.com/nerrad567/occupancy-dashboard/internal/infrastructure/tsdb"
)

// fakeVM records line protocol writes and answers /health.
type fakeVM struct {
	mu          sync.Mutex
	lines       []string
	writeStatus int
}

func (f *fakeVM) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch r.URL.Path {
	case "/health":
		w.WriteHeader(http.StatusOK)
	case "/write":
		body, _ := io.ReadAll(r.Body)
		f.mu.Lock()
		f.lines = append(f.lines, strings.Split(string(body), "\n")...)
		status := f.writeStatus
		f.mu.Unlock()
		if status == 0 {
			status = http.StatusNoContent
		}
		w.WriteHeader(status)
	default:
		http.NotFound(w, r)
	}
}

func (f *fakeVM) written() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.lines...)
}

func testConfig(url string) config.SourceConfig {
	return config.SourceConfig{
		Backend:       config.BackendVictoriaMetrics,
		Endpoint:      url,
		Bucket:        config.DefaultBucket,
		Field:         config.DefaultField,
		Step:          60,
		BatchSize:     100,
		FlushInterval: 60,
	}
}

// =============================================================================
// Connection Tests
// =============================================================================

func TestConnect(t *testing.T) {
	srv := httptest.NewServer(&fakeVM{})
	defer srv.Close()

	client, err := tsdb.Connect(context.Background(), testConfig(srv.URL))
	if err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	defer client.Close()

	if !client.IsConnected() {
		t.Error("IsConnected() = false after Connect()")
	}
}

func TestConnect_Unhealthy(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	client, err := tsdb.Connect(context.Background(), testConfig(srv.URL))
	if client != nil {
		t.Error("Connect() should return nil client when unhealthy")
	}
	if !errors.Is(err, tsdb.ErrConnectionFailed) {
		t.Errorf("Connect() error = %v, want ErrConnectionFailed", err)
	}
}

func TestNew_MissingEndpoint(t *testing.T) {
	_, err := tsdb.New(config.SourceConfig{})
	if !errors.Is(err, tsdb.ErrConnectionFailed) {
		t.Errorf("New() error = %v, want ErrConnectionFailed", err)
	}
}

func TestNew_NegativeBatchSettings(t *testing.T) {
	srv := httptest.NewServer(&fakeVM{})
	defer srv.Close()

	cfg := testConfig(srv.URL)
	cfg.BatchSize = -5
	cfg.FlushInterval = -1
	cfg.Step = 0

	client, err := tsdb.New(cfg)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer client.Close()

	if !client.IsConnected() {
		t.Error("IsConnected() = false after New() with default batch settings")
	}
}

// =============================================================================
// Write Tests
// =============================================================================

func TestWriteOccupancy(t *testing.T) {
	fake := &fakeVM{}
	srv := httptest.NewServer(fake)
	defer srv.Close()

	client, err := tsdb.New(testConfig(srv.URL))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer client.Close()

	ts := time.Date(2026, 10, 14, 10, 0, 0, 0, time.UTC)
	client.WriteOccupancy(42, ts)
	client.Flush()

	lines := fake.written()
	want := "puregymbucket People=42 " + "1791972000000000000"
	if len(lines) != 1 || lines[0] != want {
		t.Errorf("written = %q, want [%q]", lines, want)
	}
}

func TestWriteOccupancy_BatchFlush(t *testing.T) {
	fake := &fakeVM{}
	srv := httptest.NewServer(fake)
	defer srv.Close()

	cfg := testConfig(srv.URL)
	cfg.BatchSize = 2
	client, err := tsdb.New(cfg)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer client.Close()

	now := time.Now()
	client.WriteOccupancy(1, now)
	client.WriteOccupancy(2, now.Add(time.Minute))

	if got := len(fake.written()); got != 2 {
		t.Errorf("lines after full batch = %d, want 2", got)
	}
}

func TestWriteOccupancy_ErrorCallback(t *testing.T) {
	fake := &fakeVM{writeStatus: http.StatusBadRequest}
	srv := httptest.NewServer(fake)
	defer srv.Close()

	client, err := tsdb.New(testConfig(srv.URL))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer client.Close()

	var mu sync.Mutex
	var writeErr error
	client.SetOnError(func(err error) {
		mu.Lock()
		writeErr = err
		mu.Unlock()
	})

	client.WriteOccupancy(5, time.Now())
	client.Flush()

	mu.Lock()
	defer mu.Unlock()
	if !errors.Is(writeErr, tsdb.ErrWriteFailed) {
		t.Errorf("callback error = %v, want ErrWriteFailed", writeErr)
	}
}

// =============================================================================
// Close Tests
// =============================================================================

func TestClose_FlushesPending(t *testing.T) {
	fake := &fakeVM{}
	srv := httptest.NewServer(fake)
	defer srv.Close()

	client, err := tsdb.New(testConfig(srv.URL))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	client.WriteOccupancy(7, time.Now())
	if err := client.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}

	if client.IsConnected() {
		t.Error("IsConnected() = true after Close()")
	}
	if got := len(fake.written()); got != 1 {
		t.Errorf("lines after Close = %d, want 1", got)
	}

	// Second close and flush must not panic.
	_ = client.Close()
	client.Flush()
}

func TestClose_Nil(t *testing.T) {
	var client *tsdb.Client
	if err := client.Close(); err != nil {
		t.Errorf("Close() on nil client error = %v", err)
	}
}

func TestClose_NoGoroutineLeak(t *testing.T) {
	srv := httptest.NewServer(&fakeVM{})
	defer srv.Close()

	before := runtime.NumGoroutine()

	for i := 0; i < 5; i++ {
		client, err := tsdb.New(testConfig(srv.URL))
		if err != nil {
			t.Fatalf("New() iteration %d error = %v", i, err)
		}
		client.WriteOccupancy(float64(i), time.Now())
		client.Close()
	}

	srv.CloseClientConnections()
	time.Sleep(200 * time.Millisecond)

	after := runtime.NumGoroutine()
	if diff := after - before; diff > 2 {
		t.Errorf("Potential goroutine leak: before=%d, after=%d, diff=%d", before, after, diff)
	}
}

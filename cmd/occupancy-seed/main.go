// Occupancy Seeder
//
// occupancy-seed writes a synthetic gym occupancy series into the configured
// bucket so the dashboard can be run against a local InfluxDB or
// VictoriaMetrics. It reads the same .env and config file as the service.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"math"
	"math/rand/v2"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/nerrad567/occupancy-dashboard/internal/dashboard"
	"github.com/nerrad567/occupancy-dashboard/internal/infrastructure/config"
	"github.com/nerrad567/occupancy-dashboard/internal/infrastructure/influxdb"
	"github.com/nerrad567/occupancy-dashboard/internal/infrastructure/logging"
	"github.com/nerrad567/occupancy-dashboard/internal/infrastructure/tsdb"
	"github.com/nerrad567/occupancy-dashboard/internal/occupancy"
)

const (
	defaultConfigPath = "configs/config.yaml"
	defaultEnvPath    = ".env"
)

// Synthetic curve shape.
const (
	baseOccupancy = 8.0
	peakMorning   = 45.0
	peakEvening   = 70.0
	noiseSpread   = 4.0
)

// writer is a time-series backend the seeder can write to.
// Satisfied by *influxdb.Client and *tsdb.Client.
type writer interface {
	WriteOccupancy(value float64, ts time.Time)
	Flush()
	SetOnError(callback func(err error))
	Close() error
}

// options are the command-line settings.
type options struct {
	hours  int
	step   time.Duration
	seed   uint64
	dryRun bool
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	opts, err := parseFlags(os.Args[1:])
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(2)
	}

	if err := run(ctx, opts); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// parseFlags reads the command line into options.
func parseFlags(args []string) (options, error) {
	flags := flag.NewFlagSet("occupancy-seed", flag.ContinueOnError)

	var opts options
	flags.IntVar(&opts.hours, "hours", dashboard.DefaultRangeHours*7, "hours of history to write, ending now")
	flags.DurationVar(&opts.step, "step", 5*time.Minute, "spacing between samples")
	flags.Uint64Var(&opts.seed, "seed", 1, "random seed for the noise component")
	flags.BoolVar(&opts.dryRun, "dry-run", false, "print the samples instead of writing them")

	if err := flags.Parse(args); err != nil {
		return options{}, err
	}
	if opts.hours <= 0 {
		return options{}, fmt.Errorf("-hours must be positive, got %d", opts.hours)
	}
	if opts.step <= 0 {
		return options{}, fmt.Errorf("-step must be positive, got %v", opts.step)
	}
	return opts, nil
}

// run loads the configuration, generates the series and writes it.
func run(ctx context.Context, opts options) error {
	log := logging.Default()

	if err := config.LoadEnvFile(getEnvPath()); err != nil {
		return err
	}
	cfg, err := config.Load(getConfigPath())
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	log = logging.New(cfg.Logging, "seed")

	end := time.Now().Truncate(opts.step)
	samples := generate(end.Add(-time.Duration(opts.hours)*time.Hour), end, opts.step, rand.New(rand.NewPCG(opts.seed, opts.seed)))

	if opts.dryRun {
		for _, s := range samples {
			fmt.Printf("%s\t%.0f\n", s.Time.Format(time.RFC3339), s.Value)
		}
		return nil
	}

	w, err := openWriter(cfg.Source)
	if err != nil {
		return fmt.Errorf("opening %s writer: %w", cfg.Source.Backend, err)
	}
	defer w.Close() //nolint:errcheck // flushes on close; write errors surface through SetOnError

	var writeErrs atomic.Int32
	w.SetOnError(func(err error) {
		writeErrs.Add(1)
		log.Error("write failed", "error", err)
	})

	written, err := seed(ctx, w, samples)
	if err != nil {
		return err
	}
	if n := writeErrs.Load(); n > 0 {
		return fmt.Errorf("%d batch(es) failed to write", n)
	}

	log.Info("seeded occupancy series",
		"backend", cfg.Source.Backend,
		"bucket", cfg.Source.Bucket,
		"field", cfg.Source.Field,
		"samples", written,
		"from", samples[0].Time,
		"to", samples[len(samples)-1].Time,
	)
	return nil
}

// openWriter creates the client for the configured backend.
func openWriter(cfg config.SourceConfig) (writer, error) {
	switch cfg.Backend {
	case config.BackendVictoriaMetrics:
		client, err := tsdb.New(cfg)
		if err != nil {
			return nil, err
		}
		return client, nil
	case config.BackendInfluxDB, "":
		client, err := influxdb.New(cfg)
		if err != nil {
			return nil, err
		}
		return client, nil
	default:
		return nil, fmt.Errorf("unknown backend %q", cfg.Backend)
	}
}

// seed writes samples in order and flushes. It stops early when ctx is
// cancelled, flushing what was already queued.
//
// Returns:
//   - int: Number of samples queued
//   - error: ctx.Err() if cancelled
func seed(ctx context.Context, w writer, samples []occupancy.Sample) (int, error) {
	defer w.Flush()

	for i, s := range samples {
		if err := ctx.Err(); err != nil {
			return i, err
		}
		w.WriteOccupancy(s.Value, s.Time)
	}
	return len(samples), nil
}

// generate returns one sample per step in [start, end] following a weekday
// gym curve: quiet overnight, a morning peak around 07:00 and a larger
// evening peak around 18:00, lower at weekends, plus noise. Values are
// whole non-negative people counts.
func generate(start, end time.Time, step time.Duration, rng *rand.Rand) []occupancy.Sample {
	if step <= 0 || end.Before(start) {
		return nil
	}

	samples := make([]occupancy.Sample, 0, int(end.Sub(start)/step)+1)
	for t := start; !t.After(end); t = t.Add(step) {
		v := expected(t) + rng.NormFloat64()*noiseSpread
		samples = append(samples, occupancy.Sample{Time: t, Value: math.Max(0, math.Round(v))})
	}
	return samples
}

// expected is the noise-free occupancy at t.
func expected(t time.Time) float64 {
	hour := float64(t.Hour()) + float64(t.Minute())/60

	v := baseOccupancy +
		peakMorning*bump(hour, 7, 1.5) +
		peakEvening*bump(hour, 18, 2)

	if wd := t.Weekday(); wd == time.Saturday || wd == time.Sunday {
		v *= 0.6
	}
	// Closed between 23:00 and 05:00.
	if hour >= 23 || hour < 5 {
		v = 0
	}
	return v
}

// bump is a Gaussian centred on mid with the given width in hours.
func bump(hour, mid, width float64) float64 {
	d := (hour - mid) / width
	return math.Exp(-d * d / 2)
}

func getConfigPath() string {
	if path := os.Getenv("OCCUPANCY_CONFIG"); path != "" {
		return path
	}
	if _, err := os.Stat(defaultConfigPath); errors.Is(err, fs.ErrNotExist) {
		return ""
	}
	return defaultConfigPath
}

func getEnvPath() string {
	if path := os.Getenv("OCCUPANCY_ENV_FILE"); path != "" {
		return path
	}
	return defaultEnvPath
}

package influxdb

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/influxdata/influxdb-client-go/v2/api/query"

	"github.com/nerrad567/occupancy-dashboard/internal/metrics"
	"github.com/nerrad567/occupancy-dashboard/internal/occupancy"
)

// backendLabel tags metrics emitted by this package.
const backendLabel = "influxdb"

// BuildRangeQuery returns the Flux query selecting field from bucket over the
// trailing window r:
//
//	from(bucket: "puregymbucket") |> range(start: -48h) |> filter(fn: (r) => r._field == "People")
//
// Bucket and field are emitted as quoted Flux string literals.
func BuildRangeQuery(bucket, field string, r occupancy.TimeRange) string {
	return fmt.Sprintf(
		`from(bucket: %s) |> range(start: -%dh) |> filter(fn: (r) => r._field == %s)`,
		fluxString(bucket), r.Hours, fluxString(field),
	)
}

// fluxString quotes s as a Flux string literal.
func fluxString(s string) string {
	var b strings.Builder
	b.Grow(len(s) + 2)
	b.WriteByte('"')
	for _, ch := range s {
		switch ch {
		case '"', '\\':
			b.WriteByte('\\')
			b.WriteRune(ch)
		case '$':
			// "${" starts interpolation in Flux strings.
			b.WriteString(`\$`)
		case '\n':
			b.WriteString(`\n`)
		case '\r':
			b.WriteString(`\r`)
		case '\t':
			b.WriteString(`\t`)
		default:
			b.WriteRune(ch)
		}
	}
	b.WriteByte('"')
	return b.String()
}

// FetchRange queries the configured bucket/field over the last r.Hours hours.
//
// Rows without a timestamp or with a non-numeric, NaN or infinite value are
// dropped. The result is sorted ascending and de-duplicated. An empty window
// is a successful, empty result.
//
// Parameters:
//   - ctx: Context for cancellation; a cancelled call returns a QueryError
//   - r: The trailing window
//
// Returns:
//   - []occupancy.Sample: Normalised samples
//   - error: *occupancy.QueryError on transport or decode failure
func (c *Client) FetchRange(ctx context.Context, r occupancy.TimeRange) ([]occupancy.Sample, error) {
	if !r.Valid() {
		return nil, occupancy.NewQueryError(r, &occupancy.RangeError{Hours: r.Hours})
	}
	if c == nil || !c.IsConnected() {
		return nil, occupancy.NewQueryError(r, ErrNotConnected)
	}

	flux := BuildRangeQuery(c.cfg.Bucket, c.cfg.Field, r)

	result, err := c.queryAPI.Query(ctx, flux)
	if err != nil {
		return nil, occupancy.NewQueryError(r, fmt.Errorf("%w: %w", ErrQueryFailed, err))
	}
	defer result.Close()

	samples := make([]occupancy.Sample, 0, 256)
	dropped := 0
	for result.Next() {
		sample, ok := recordSample(result.Record())
		if !ok {
			dropped++
			continue
		}
		samples = append(samples, sample)
	}
	if err := result.Err(); err != nil {
		return nil, occupancy.NewQueryError(r, fmt.Errorf("%w: %w", ErrDecodeFailed, err))
	}

	if dropped > 0 {
		metrics.SamplesDropped.WithLabelValues(backendLabel).Add(float64(dropped))
		if logger := c.getLogger(); logger != nil {
			logger.Warn("dropped malformed rows", "range", r.Key().String(), "dropped", dropped)
		}
	}

	return occupancy.Normalize(samples), nil
}

// recordSample converts a Flux record to a Sample.
// It reports false when the record has no usable time or numeric value.
func recordSample(rec *query.FluxRecord) (occupancy.Sample, bool) {
	if rec == nil {
		return occupancy.Sample{}, false
	}

	ts := rec.Time()
	if ts.IsZero() {
		return occupancy.Sample{}, false
	}

	value, ok := numericValue(rec.Value())
	if !ok {
		return occupancy.Sample{}, false
	}

	s := occupancy.Sample{Time: ts.UTC(), Value: value}
	return s, s.Valid()
}

// numericValue accepts the numeric column types Flux can produce.
func numericValue(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int64:
		return float64(n), true
	case uint64:
		return float64(n), true
	case string:
		// Some writers store counts as strings; accept them if they parse.
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		return f, err == nil
	default:
		return 0, false
	}
}

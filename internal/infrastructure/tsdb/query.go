package tsdb

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/nerrad567/occupancy-dashboard/internal/metrics"
	"github.com/nerrad567/occupancy-dashboard/internal/occupancy"
)

// backendLabel tags metrics emitted by this package.
const backendLabel = "victoriametrics"

// MetricName returns the metric VictoriaMetrics stores field of bucket under.
// Characters outside [a-zA-Z0-9_:] are replaced with underscores.
func MetricName(bucket, field string) string {
	raw := bucket + "_" + field
	var b strings.Builder
	b.Grow(len(raw))
	for i, ch := range raw {
		switch {
		case ch >= 'a' && ch <= 'z', ch >= 'A' && ch <= 'Z', ch == '_', ch == ':':
			b.WriteRune(ch)
		case ch >= '0' && ch <= '9' && i > 0:
			b.WriteRune(ch)
		default:
			b.WriteByte('_')
		}
	}
	return b.String()
}

// FetchRange queries the occupancy metric over the last r.Hours hours.
//
// Points with an unparseable timestamp or a non-numeric, NaN or infinite
// value are dropped. Samples from every returned series are merged and
// normalised. An empty result is success.
//
// Parameters:
//   - ctx: Context for cancellation
//   - r: The trailing window
//
// Returns:
//   - []occupancy.Sample: Normalised samples
//   - error: *occupancy.QueryError on transport or decode failure
func (c *Client) FetchRange(ctx context.Context, r occupancy.TimeRange) ([]occupancy.Sample, error) {
	if !r.Valid() {
		return nil, occupancy.NewQueryError(r, &occupancy.RangeError{Hours: r.Hours})
	}

	c.mu.RLock()
	end := c.clock.Now()
	c.mu.RUnlock()
	start := end.Add(-r.Duration())

	raw, err := c.QueryRange(ctx, c.metric, start, end, c.step)
	if err != nil {
		return nil, occupancy.NewQueryError(r, err)
	}

	samples, dropped, err := parseMatrix(raw)
	if err != nil {
		return nil, occupancy.NewQueryError(r, err)
	}

	if dropped > 0 {
		metrics.SamplesDropped.WithLabelValues(backendLabel).Add(float64(dropped))
		c.mu.RLock()
		logger := c.logger
		c.mu.RUnlock()
		if logger != nil {
			logger.Warn("dropped malformed points", "range", r.Key().String(), "dropped", dropped)
		}
	}

	return occupancy.Normalize(samples), nil
}

// QueryRange executes a PromQL range query against VictoriaMetrics.
//
// Parameters:
//   - ctx: Context for cancellation and timeout
//   - query: PromQL query string
//   - start: Start time for the range
//   - end: End time for the range
//   - step: Query resolution step
//
// Returns:
//   - json.RawMessage: Raw Prometheus API JSON response
//   - error: nil on success, otherwise the query error
func (c *Client) QueryRange(ctx context.Context, query string, start, end time.Time, step time.Duration) (json.RawMessage, error) {
	if c == nil || !c.IsConnected() {
		return nil, ErrNotConnected
	}
	if strings.TrimSpace(query) == "" {
		return nil, fmt.Errorf("%w: query is required", ErrQueryFailed)
	}
	if step <= 0 {
		return nil, fmt.Errorf("%w: step must be positive", ErrQueryFailed)
	}
	if end.Before(start) {
		return nil, fmt.Errorf("%w: end must be after start", ErrQueryFailed)
	}

	params := url.Values{}
	params.Set("query", query)
	params.Set("start", formatUnixSeconds(start))
	params.Set("end", formatUnixSeconds(end))
	params.Set("step", formatStepSeconds(step))

	return c.doQuery(ctx, "/api/v1/query_range", params)
}

// doQuery executes a query request and returns the raw response body.
func (c *Client) doQuery(ctx context.Context, path string, params url.Values) (json.RawMessage, error) {
	endpoint := c.url + path
	if len(params) > 0 {
		endpoint += "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: creating request: %w", ErrQueryFailed, err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: executing query: %w", ErrQueryFailed, err)
	}
	defer resp.Body.Close()

	const maxResponseSize = 10 << 20 // 10 MB
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, fmt.Errorf("%w: reading response: %w", ErrQueryFailed, err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: HTTP %d", ErrQueryFailed, resp.StatusCode)
	}

	return json.RawMessage(body), nil
}

// matrixResponse is the Prometheus API envelope for a range query.
type matrixResponse struct {
	Status    string `json:"status"`
	ErrorType string `json:"errorType"`
	Error     string `json:"error"`
	Data      struct {
		ResultType string `json:"resultType"`
		Result     []struct {
			Metric map[string]string `json:"metric"`
			Values [][2]any          `json:"values"`
		} `json:"result"`
	} `json:"data"`
}

// parseMatrix decodes a query_range response into samples.
// It returns the number of points it had to drop.
func parseMatrix(raw json.RawMessage) ([]occupancy.Sample, int, error) {
	var resp matrixResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, 0, fmt.Errorf("%w: %w", ErrDecodeFailed, err)
	}
	if resp.Status != "success" {
		return nil, 0, fmt.Errorf("%w: %s: %s", ErrQueryFailed, resp.ErrorType, resp.Error)
	}
	if resp.Data.ResultType != "" && resp.Data.ResultType != "matrix" {
		return nil, 0, fmt.Errorf("%w: unexpected result type %q", ErrDecodeFailed, resp.Data.ResultType)
	}

	var samples []occupancy.Sample
	dropped := 0
	for _, series := range resp.Data.Result {
		for _, pair := range series.Values {
			s, ok := pointSample(pair)
			if !ok {
				dropped++
				continue
			}
			samples = append(samples, s)
		}
	}

	return samples, dropped, nil
}

// pointSample converts a [unix seconds, "value"] pair to a Sample.
func pointSample(pair [2]any) (occupancy.Sample, bool) {
	secs, ok := pair[0].(float64)
	if !ok {
		return occupancy.Sample{}, false
	}
	str, ok := pair[1].(string)
	if !ok {
		return occupancy.Sample{}, false
	}
	value, err := strconv.ParseFloat(str, 64)
	if err != nil {
		return occupancy.Sample{}, false
	}

	s := occupancy.Sample{
		Time:  time.UnixMilli(int64(math.Round(secs * 1000))).UTC(),
		Value: value,
	}
	return s, s.Valid()
}

// formatUnixSeconds converts a timestamp to a seconds-since-epoch string.
func formatUnixSeconds(t time.Time) string {
	seconds := float64(t.UnixNano()) / float64(time.Second)
	return strconv.FormatFloat(seconds, 'f', -1, 64)
}

// formatStepSeconds converts a step duration to a Prometheus-compatible seconds string.
func formatStepSeconds(step time.Duration) string {
	return strconv.FormatFloat(step.Seconds(), 'f', -1, 64)
}

package tsdb

import (
	"fmt"
	"math"
	"strings"
	"time"
)

// WriteOccupancy writes one occupancy reading as measurement=<bucket>,
// field=<field>, which VictoriaMetrics stores as the metric FetchRange reads.
//
// The write is non-blocking; data is batched and sent asynchronously.
// NaN and infinite values are discarded.
func (c *Client) WriteOccupancy(value float64, ts time.Time) {
	if math.IsNaN(value) || math.IsInf(value, 0) {
		return
	}
	c.addLine(formatLineProtocol(c.bucket, c.field, value, ts))
}

// formatLineProtocol formats one float field as an InfluxDB line protocol string.
//
// Format: measurement field=value timestamp_ns
//
// VictoriaMetrics accepts this format on the /write endpoint.
func formatLineProtocol(measurement, field string, value float64, t time.Time) string {
	var b strings.Builder

	b.WriteString(escapeMeasurement(measurement))
	b.WriteByte(' ')
	b.WriteString(escapeTag(field))
	b.WriteByte('=')
	b.WriteString(fmt.Sprintf("%g", value))
	b.WriteByte(' ')
	b.WriteString(fmt.Sprintf("%d", t.UnixNano()))

	return b.String()
}

// escapeTag escapes special characters in keys per line protocol spec.
// Commas, equals signs, and spaces must be backslash-escaped.
// Newlines are stripped to prevent line protocol injection.
func escapeTag(s string) string {
	s = strings.ReplaceAll(s, "\n", "")
	s = strings.ReplaceAll(s, "\r", "")
	s = strings.ReplaceAll(s, " ", "\\ ")
	s = strings.ReplaceAll(s, ",", "\\,")
	s = strings.ReplaceAll(s, "=", "\\=")
	return s
}

// escapeMeasurement escapes special characters in measurement names.
// Newlines are stripped to prevent line protocol injection.
func escapeMeasurement(s string) string {
	s = strings.ReplaceAll(s, "\n", "")
	s = strings.ReplaceAll(s, "\r", "")
	s = strings.ReplaceAll(s, " ", "\\ ")
	s = strings.ReplaceAll(s, ",", "\\,")
	return s
}

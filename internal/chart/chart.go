package chart

import (
	"fmt"
	"time"

	"github.com/nerrad567/occupancy-dashboard/internal/occupancy"
)

// Interpolation is the curve the line is drawn with.
const Interpolation = "monotone"

// DefaultLayout renders instants as day/month/year hours:minutes:seconds.
const DefaultLayout = "02/01/2006 15:04:05"

// Formatter renders instants for axis ticks and tooltips.
type Formatter struct {
	Location *time.Location
	Layout   string
}

// NewFormatter returns a formatter, defaulting to local time and DefaultLayout.
func NewFormatter(loc *time.Location, layout string) Formatter {
	if loc == nil {
		loc = time.Local
	}
	if layout == "" {
		layout = DefaultLayout
	}
	return Formatter{Location: loc, Layout: layout}
}

// Format renders t in the formatter's zone and layout.
func (f Formatter) Format(t time.Time) string {
	loc := f.Location
	if loc == nil {
		loc = time.Local
	}
	layout := f.Layout
	if layout == "" {
		layout = DefaultLayout
	}
	return t.In(loc).Format(layout)
}

// ParseInstant parses an RFC 3339 timestamp, with or without fractional seconds.
func ParseInstant(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("chart: invalid instant %q: %w", s, err)
	}
	return t, nil
}

// Brush is an inclusive index window over the fetched series.
type Brush struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

// Point is one rendered sample.
type Point struct {
	// Index is the position of the point in the fetched series.
	Index int       `json:"index"`
	Time  time.Time `json:"time"`
	Value float64   `json:"value"`
	Label string    `json:"label"`
}

// Domain is the Y axis extent.
type Domain struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
}

// BrushTicks labels the two ends of the brush.
type BrushTicks struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

// Chart describes what to draw.
type Chart struct {
	Points        []Point    `json:"points"`
	YDomain       Domain     `json:"y_domain"`
	Brush         Brush      `json:"brush"`
	Ticks         BrushTicks `json:"ticks"`
	Total         int        `json:"total"`
	Empty         bool       `json:"empty"`
	Interpolation string     `json:"interpolation"`
}

// Tooltip is the hover text of a single point.
type Tooltip struct {
	Time  time.Time `json:"time"`
	Value float64   `json:"value"`
	Label string    `json:"label"`
}

// Render builds the chart for samples.
//
// Samples pass through occupancy.Normalize: those with a zero time or a NaN
// or infinite value are skipped, the rest are ordered by time and a repeated
// timestamp keeps its last sample. A nil brush shows the full series; otherwise its ends
// are clamped to the series and swapped if reversed. No samples yield an
// empty chart, not an error.
func Render(samples []occupancy.Sample, brush *Brush, f Formatter) Chart {
	valid := occupancy.Normalize(samples)

	if len(valid) == 0 {
		return Chart{
			Points:        []Point{},
			Brush:         Brush{Start: 0, End: -1},
			Empty:         true,
			Interpolation: Interpolation,
		}
	}

	window := clampBrush(brush, len(valid))

	points := make([]Point, 0, window.End-window.Start+1)
	domain := Domain{Min: valid[window.Start].Value, Max: valid[window.Start].Value}
	for i := window.Start; i <= window.End; i++ {
		s := valid[i]
		points = append(points, Point{
			Index: i,
			Time:  s.Time,
			Value: s.Value,
			Label: f.Format(s.Time),
		})
		domain.Min = min(domain.Min, s.Value)
		domain.Max = max(domain.Max, s.Value)
	}

	return Chart{
		Points:  points,
		YDomain: domain,
		Brush:   window,
		Ticks: BrushTicks{
			Start: f.Format(valid[window.Start].Time),
			End:   f.Format(valid[window.End].Time),
		},
		Total:         len(valid),
		Interpolation: Interpolation,
	}
}

// Tooltip returns the hover text of the i-th displayed point.
func (c Chart) Tooltip(i int) (Tooltip, bool) {
	if i < 0 || i >= len(c.Points) {
		return Tooltip{}, false
	}
	p := c.Points[i]
	return Tooltip{Time: p.Time, Value: p.Value, Label: p.Label}, true
}

// BrushBetween returns the brush covering the samples within [from, to].
// Indices refer to the series Render draws for the same samples.
// It reports false when no valid sample falls in the interval.
func BrushBetween(samples []occupancy.Sample, from, to time.Time) (*Brush, bool) {
	if to.Before(from) {
		from, to = to, from
	}

	start, end := -1, -1
	for i, s := range occupancy.Normalize(samples) {
		if !s.Time.Before(from) && !s.Time.After(to) {
			if start < 0 {
				start = i
			}
			end = i
		}
	}
	if start < 0 {
		return nil, false
	}
	return &Brush{Start: start, End: end}, true
}

// clampBrush fits b into a series of n points; n must be positive.
func clampBrush(b *Brush, n int) Brush {
	if b == nil {
		return Brush{Start: 0, End: n - 1}
	}
	start := clamp(b.Start, 0, n-1)
	end := clamp(b.End, 0, n-1)
	if start > end {
		start, end = end, start
	}
	return Brush{Start: start, End: end}
}

func clamp(v, lo, hi int) int {
	return max(lo, min(v, hi))
}

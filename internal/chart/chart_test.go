package chart

import (
	"math"
	"testing"
	"time"

	"github.com/nerrad567/occupancy-dashboard/internal/occupancy"
)

func mustParse(t *testing.T, s string) time.Time {
	t.Helper()
	ts, err := ParseInstant(s)
	if err != nil {
		t.Fatalf("ParseInstant(%q) error = %v", s, err)
	}
	return ts
}

func utcFormatter() Formatter {
	return NewFormatter(time.UTC, "")
}

// series returns n hourly samples from 2024-01-01T00:00Z with the given values.
func series(values ...float64) []occupancy.Sample {
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	out := make([]occupancy.Sample, len(values))
	for i, v := range values {
		out[i] = occupancy.Sample{Time: base.Add(time.Duration(i) * time.Hour), Value: v}
	}
	return out
}

func TestRender_TwoPoints(t *testing.T) {
	samples := []occupancy.Sample{
		{Time: mustParse(t, "2024-01-01T00:00:00Z"), Value: 12},
		{Time: mustParse(t, "2024-01-01T01:00:00Z"), Value: 18},
	}

	c := Render(samples, nil, utcFormatter())

	if c.Empty {
		t.Fatal("Empty = true, want false")
	}
	if c.YDomain != (Domain{Min: 12, Max: 18}) {
		t.Errorf("YDomain = %+v, want [12,18]", c.YDomain)
	}
	if len(c.Points) != 2 {
		t.Fatalf("len(Points) = %d, want 2", len(c.Points))
	}
	if !c.Points[0].Time.Before(c.Points[1].Time) {
		t.Error("points not in time order")
	}
	if c.Points[0].Label != "01/01/2024 00:00:00" {
		t.Errorf("Points[0].Label = %q, want 01/01/2024 00:00:00", c.Points[0].Label)
	}
	if c.Interpolation != "monotone" {
		t.Errorf("Interpolation = %q, want monotone", c.Interpolation)
	}
	if c.Brush != (Brush{Start: 0, End: 1}) || c.Total != 2 {
		t.Errorf("Brush = %+v Total = %d, want full range of 2", c.Brush, c.Total)
	}
}

func TestRender_Empty(t *testing.T) {
	for _, samples := range [][]occupancy.Sample{nil, {}} {
		c := Render(samples, nil, utcFormatter())
		if !c.Empty || c.Points == nil || len(c.Points) != 0 || c.Total != 0 {
			t.Errorf("Render(%v) = %+v, want empty chart", samples, c)
		}
		if _, ok := c.Tooltip(0); ok {
			t.Error("Tooltip(0) on empty chart ok = true")
		}
	}
}

func TestRender_SkipsMalformed(t *testing.T) {
	samples := series(5, 6, 7)
	samples = append(samples,
		occupancy.Sample{Value: 100},
		occupancy.Sample{Time: samples[2].Time.Add(time.Hour), Value: math.NaN()},
		occupancy.Sample{Time: samples[2].Time.Add(2 * time.Hour), Value: math.Inf(1)},
	)

	c := Render(samples, nil, utcFormatter())
	if c.Total != 3 || len(c.Points) != 3 {
		t.Fatalf("Total = %d points = %d, want 3", c.Total, len(c.Points))
	}
	if c.YDomain != (Domain{Min: 5, Max: 7}) {
		t.Errorf("YDomain = %+v, want [5,7]", c.YDomain)
	}
}

func TestRender_OrdersByTime(t *testing.T) {
	s := series(1, 2, 3, 4)
	shuffled := []occupancy.Sample{s[2], s[0], s[3], s[1]}

	c := Render(shuffled, nil, utcFormatter())
	for i := 1; i < len(c.Points); i++ {
		if c.Points[i].Time.Before(c.Points[i-1].Time) {
			t.Fatalf("Points[%d] before Points[%d]", i, i-1)
		}
	}
	if c.Points[0].Value != 1 || c.Points[3].Value != 4 {
		t.Errorf("values = %v..%v, want 1..4", c.Points[0].Value, c.Points[3].Value)
	}
}

func TestRender_DuplicateTimestamps(t *testing.T) {
	s := series(10, 20, 30)
	repeated := occupancy.Sample{Time: s[1].Time, Value: 25}
	input := []occupancy.Sample{s[0], s[1], s[2], repeated}

	c := Render(input, nil, utcFormatter())

	if len(c.Points) != 3 || c.Total != 3 {
		t.Fatalf("points = %d total = %d, want 3 distinct timestamps", len(c.Points), c.Total)
	}
	for i := 1; i < len(c.Points); i++ {
		if !c.Points[i].Time.After(c.Points[i-1].Time) {
			t.Errorf("Points[%d] does not follow Points[%d]", i, i-1)
		}
	}
	if c.Points[1].Value != 25 {
		t.Errorf("Points[1].Value = %v, want 25 (last sample for the timestamp)", c.Points[1].Value)
	}
	if c.YDomain != (Domain{Min: 10, Max: 30}) {
		t.Errorf("YDomain = %+v, want [10,30]", c.YDomain)
	}

	// Brush indices agree with the drawn series.
	b, ok := BrushBetween(input, s[2].Time, s[2].Time)
	if !ok || *b != (Brush{Start: 2, End: 2}) {
		t.Errorf("BrushBetween() = %+v, %v, want {2 2}", b, ok)
	}
}

func TestRender_BrushRescales(t *testing.T) {
	samples := series(3, 40, 12, 15, 14, 2)

	full := Render(samples, nil, utcFormatter())
	if full.YDomain != (Domain{Min: 2, Max: 40}) {
		t.Fatalf("full YDomain = %+v, want [2,40]", full.YDomain)
	}

	c := Render(samples, &Brush{Start: 2, End: 4}, utcFormatter())
	if c.YDomain != (Domain{Min: 12, Max: 15}) {
		t.Errorf("brushed YDomain = %+v, want [12,15]", c.YDomain)
	}
	if len(c.Points) != 3 || c.Points[0].Index != 2 || c.Points[2].Index != 4 {
		t.Errorf("brushed points = %+v, want indices 2..4", c.Points)
	}
	if c.Total != 6 {
		t.Errorf("Total = %d, want 6", c.Total)
	}
	if c.Ticks.Start != "01/01/2024 02:00:00" || c.Ticks.End != "01/01/2024 04:00:00" {
		t.Errorf("Ticks = %+v", c.Ticks)
	}
}

func TestRender_BrushClamped(t *testing.T) {
	samples := series(1, 2, 3)

	tests := []struct {
		name  string
		brush Brush
		want  Brush
	}{
		{"past end", Brush{Start: 1, End: 10}, Brush{Start: 1, End: 2}},
		{"negative start", Brush{Start: -5, End: 0}, Brush{Start: 0, End: 0}},
		{"reversed", Brush{Start: 2, End: 0}, Brush{Start: 0, End: 2}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := tt.brush
			c := Render(samples, &b, utcFormatter())
			if c.Brush != tt.want {
				t.Errorf("Brush = %+v, want %+v", c.Brush, tt.want)
			}
			if len(c.Points) != tt.want.End-tt.want.Start+1 {
				t.Errorf("len(Points) = %d", len(c.Points))
			}
		})
	}
}

func TestTooltip_UsesPointTimestamp(t *testing.T) {
	samples := series(12, 18, 25)
	c := Render(samples, &Brush{Start: 1, End: 2}, utcFormatter())

	tip, ok := c.Tooltip(1)
	if !ok {
		t.Fatal("Tooltip(1) ok = false")
	}
	if tip.Value != 25 {
		t.Errorf("Tooltip.Value = %v, want 25", tip.Value)
	}
	if !tip.Time.Equal(samples[2].Time) {
		t.Errorf("Tooltip.Time = %v, want %v", tip.Time, samples[2].Time)
	}
	if tip.Label != "01/01/2024 02:00:00" {
		t.Errorf("Tooltip.Label = %q, want the formatted timestamp", tip.Label)
	}

	if _, ok := c.Tooltip(2); ok {
		t.Error("Tooltip(2) ok = true past the displayed points")
	}
}

func TestFormatter_Location(t *testing.T) {
	ts := mustParse(t, "2024-01-01T00:00:00Z")
	f := NewFormatter(time.FixedZone("UTC+2", 2*60*60), "2006-01-02 15:04")

	if got := f.Format(ts); got != "2024-01-01 02:00" {
		t.Errorf("Format() = %q, want 2024-01-01 02:00", got)
	}

	var zero Formatter
	if got := zero.Format(ts); got == "" {
		t.Error("zero Formatter returned empty label")
	}
}

func TestParseInstant(t *testing.T) {
	tests := []struct {
		in      string
		wantErr bool
	}{
		{"2024-01-01T00:00:00Z", false},
		{"2024-01-01T00:00:00.123456789+01:00", false},
		{"2024-01-01 00:00:00", true},
		{"", true},
	}
	for _, tt := range tests {
		_, err := ParseInstant(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseInstant(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
		}
	}
}

func TestBrushBetween(t *testing.T) {
	samples := series(1, 2, 3, 4, 5)

	b, ok := BrushBetween(samples, samples[3].Time, samples[1].Time)
	if !ok || *b != (Brush{Start: 1, End: 3}) {
		t.Errorf("BrushBetween() = %+v, %v, want {1 3}", b, ok)
	}

	_, ok = BrushBetween(samples, samples[4].Time.Add(time.Hour), samples[4].Time.Add(2*time.Hour))
	if ok {
		t.Error("BrushBetween() outside the series ok = true")
	}
}

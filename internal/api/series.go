package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/nerrad567/occupancy-dashboard/internal/chart"
	"github.com/nerrad567/occupancy-dashboard/internal/dashboard"
	"github.com/nerrad567/occupancy-dashboard/internal/occupancy"
)

// RangeResponse is returned by the range endpoints.
type RangeResponse struct {
	Hours        int `json:"hours"`
	DefaultHours int `json:"default_hours"`
}

// SetRangeRequest is the body of PUT /range.
type SetRangeRequest struct {
	Hours *int `json:"hours"`
}

// SeriesStatus describes the active cache entry without its samples.
type SeriesStatus struct {
	Hours     int              `json:"hours"`
	Status    dashboard.Status `json:"status"`
	Loading   bool             `json:"loading"`
	Fetching  bool             `json:"fetching"`
	Count     int              `json:"count"`
	Error     string           `json:"error,omitempty"`
	FetchedAt *time.Time       `json:"fetched_at,omitempty"`
}

// SeriesResponse is the active entry with its samples.
type SeriesResponse struct {
	SeriesStatus
	Samples []occupancy.Sample `json:"samples"`
}

// ChartResponse is the rendered chart of the active entry.
type ChartResponse struct {
	SeriesStatus
	Chart chart.Chart `json:"chart"`
}

// seriesStatus flattens a snapshot for JSON.
func seriesStatus(snap dashboard.Snapshot) SeriesStatus {
	st := SeriesStatus{
		Hours:    int(snap.Key),
		Status:   snap.Status,
		Loading:  snap.Loading,
		Fetching: snap.Fetching,
		Count:    len(snap.Samples),
	}
	if snap.Err != nil {
		st.Error = snap.Err.Error()
	}
	if !snap.FetchedAt.IsZero() {
		t := snap.FetchedAt.UTC()
		st.FetchedAt = &t
	}
	return st
}

func (s *Server) rangeResponse() RangeResponse {
	return RangeResponse{
		Hours:        s.ranges.Current().Hours,
		DefaultHours: dashboard.DefaultRangeHours,
	}
}

// handleGetRange returns the selected window.
func (s *Server) handleGetRange(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.rangeResponse())
}

// handleSetRange selects a new window.
// A non-positive value is rejected with validation_error and never reaches
// the cache.
func (s *Server) handleSetRange(w http.ResponseWriter, r *http.Request) {
	var req SetRangeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	if req.Hours == nil {
		writeValidationError(w, "hours is required")
		return
	}

	if err := s.ranges.SetRange(*req.Hours); err != nil {
		var re *occupancy.RangeError
		if errors.As(err, &re) {
			writeValidationError(w, re.Error())
			return
		}
		writeInternalError(w, "failed to set range")
		return
	}

	s.logger.Info("range selected", "hours", *req.Hours)
	writeJSON(w, http.StatusOK, s.rangeResponse())
}

// handleResetRange restores the default window and refetches it.
func (s *Server) handleResetRange(w http.ResponseWriter, _ *http.Request) {
	s.ranges.Reset()
	s.logger.Info("range reset", "hours", dashboard.DefaultRangeHours)
	writeJSON(w, http.StatusOK, s.rangeResponse())
}

// handleRefetch starts a fetch of the active window.
func (s *Server) handleRefetch(w http.ResponseWriter, _ *http.Request) {
	s.cache.Refetch()
	writeJSON(w, http.StatusAccepted, seriesStatus(s.cache.Active()))
}

// handleGetSeries returns the active entry with its samples.
func (s *Server) handleGetSeries(w http.ResponseWriter, _ *http.Request) {
	snap := s.cache.Active()

	samples := snap.Samples
	if samples == nil {
		samples = []occupancy.Sample{}
	}

	writeJSON(w, http.StatusOK, SeriesResponse{
		SeriesStatus: seriesStatus(snap),
		Samples:      samples,
	})
}

// handleGetChart renders the active entry.
//
// Query parameters:
//   - brush_start, brush_end: inclusive point indexes, both or neither
//   - from, to: RFC 3339 instants, converted to the covering brush
//
// Without either pair the brush spans the full series. Rendering never
// fetches.
func (s *Server) handleGetChart(w http.ResponseWriter, r *http.Request) {
	snap := s.cache.Active()

	brush, err := parseBrush(r, snap.Samples)
	if err != nil {
		writeBadRequest(w, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, ChartResponse{
		SeriesStatus: seriesStatus(snap),
		Chart:        chart.Render(snap.Samples, brush, s.formatter),
	})
}

var (
	errBrushPair  = errors.New("brush_start and brush_end must be given together")
	errBrushIndex = errors.New("brush_start and brush_end must be integers")
	errTimePair   = errors.New("from and to must be given together")
	errBrushMixed = errors.New("use either brush_start/brush_end or from/to")
)

// parseBrush reads the optional brush from the query string.
// A time interval containing no samples selects the full series.
func parseBrush(r *http.Request, samples []occupancy.Sample) (*chart.Brush, error) {
	q := r.URL.Query()
	startStr, endStr := q.Get("brush_start"), q.Get("brush_end")
	fromStr, toStr := q.Get("from"), q.Get("to")

	hasIndex := startStr != "" || endStr != ""
	hasTime := fromStr != "" || toStr != ""

	switch {
	case hasIndex && hasTime:
		return nil, errBrushMixed

	case hasIndex:
		if startStr == "" || endStr == "" {
			return nil, errBrushPair
		}
		start, err := strconv.Atoi(startStr)
		if err != nil {
			return nil, errBrushIndex
		}
		end, err := strconv.Atoi(endStr)
		if err != nil {
			return nil, errBrushIndex
		}
		return &chart.Brush{Start: start, End: end}, nil

	case hasTime:
		if fromStr == "" || toStr == "" {
			return nil, errTimePair
		}
		from, err := chart.ParseInstant(fromStr)
		if err != nil {
			return nil, err
		}
		to, err := chart.ParseInstant(toStr)
		if err != nil {
			return nil, err
		}
		brush, ok := chart.BrushBetween(samples, from, to)
		if !ok {
			return nil, nil
		}
		return brush, nil
	}

	return nil, nil
}

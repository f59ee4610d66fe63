// Package chart turns a fetched occupancy series into a line chart description.
//
// Render is pure: it never fetches and never touches the cache. A Brush
// narrows the displayed points to an inclusive index window over the
// fetched series, and the Y domain is recomputed over the displayed points
// only. Every timestamp label comes from Formatter.Format.
package chart

// Package domain holds the serving layer request and result types
package domain

import "time"

// Leg names one view plus the filters applied to it. A single-leg
// request queries one view; multi-leg requests join on local ids.
type Leg struct {
	View    string            `json:"view" validate:"required"`
	Filters map[string]string `json:"filters,omitempty"`
}

// QueryRequest is one serving-layer query. Transient, never persisted.
type QueryRequest struct {
	Legs []Leg

	// Since narrows the speed-layer window, zero means the default
	Since time.Time

	// Limit caps the merged id set, 0 means unbounded
	Limit int

	// IncludeRows asks for full batch rows alongside the ids
	IncludeRows bool
}

// Row is one materialized row keyed by column name
type Row struct {
	ID     string            `json:"id"`
	Values map[string]string `json:"values"`
}

// LayerCounts records how many ids each layer contributed
type LayerCounts struct {
	Batch    int `json:"batch"`
	Fallback int `json:"fallback"`
	Speed    int `json:"speed"`
	Overlap  int `json:"overlap"`
}

// Staleness flags batch data older than the configured threshold
type Staleness struct {
	LastRefreshAt time.Time `json:"last_refresh_at"`
	AgeSeconds    float64   `json:"age_seconds"`
}

// QueryResult is the merged, deduplicated answer with provenance
type QueryResult struct {
	IDs    []string    `json:"ids"`
	Rows   []Row       `json:"rows,omitempty"`
	Source string      `json:"source"`
	Counts LayerCounts `json:"counts"`
	Stale  *Staleness  `json:"stale,omitempty"`
}

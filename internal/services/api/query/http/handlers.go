// Package http provides http transport for the query endpoint
package http

import (
	stdhttp "net/http"
	"time"

	"researchflow/internal/modkit/httpkit"
	perr "researchflow/internal/platform/errors"
	tim "researchflow/internal/platform/time"
	capturesvc "researchflow/internal/services/capture/service"
	"researchflow/internal/services/serving/domain"
	serving "researchflow/internal/services/serving/service"
)

// CaptureStats exposes the capture worker counters, nil when the
// worker does not run in this process
type CaptureStats interface {
	Stats() capturesvc.Stats
}

// Deps are the handler dependencies
type Deps struct {
	Query   *serving.Svc
	Capture CaptureStats
}

type handlers struct {
	deps Deps
}

// Register mounts the query endpoints
func Register(r httpkit.Router, d Deps) {
	h := &handlers{deps: d}

	httpkit.PostJSON[QueryInput](r, "/", h.execute)
	httpkit.Get(r, "/stats", h.stats)
	httpkit.Post(r, "/clear-cache", h.clearCache)
}

// QueryInput accepts a single view or a join across several
// swagger:model
type QueryInput struct {
	View    string            `json:"view,omitempty" example:"patients_by_gender"`
	Filters map[string]string `json:"filters,omitempty"`

	Views []domain.Leg `json:"views,omitempty"`

	Since       *time.Time `json:"since,omitempty"`
	Limit       int        `json:"limit,omitempty" example:"1000"`
	IncludeRows bool       `json:"include_rows,omitempty"`
}

func (in QueryInput) request() (domain.QueryRequest, error) {
	req := domain.QueryRequest{
		Since:       tim.Deref(in.Since),
		Limit:       in.Limit,
		IncludeRows: in.IncludeRows,
	}
	switch {
	case in.View != "" && len(in.Views) > 0:
		return req, perr.InvalidArgf("use either view or views, not both")
	case in.View != "":
		req.Legs = []domain.Leg{{View: in.View, Filters: in.Filters}}
	case len(in.Views) > 0:
		req.Legs = in.Views
	default:
		return req, perr.InvalidArgf("view or views is required")
	}
	return req, nil
}

// StatsResponse bundles the per-path and capture counters
type StatsResponse struct {
	Serving serving.Stats     `json:"serving"`
	Capture *capturesvc.Stats `json:"capture,omitempty"`
}

// swagger:route POST /query Query queryExecute
// @Summary Execute a view query across the batch, fallback and speed layers
// @Tags Query
// @Accept json
// @Produce json
// @Param payload body QueryInput true "Query"
// @Success 200 type domain.QueryResult "ok"
// @Router /query [post]
func (h *handlers) execute(r *stdhttp.Request, in QueryInput) (any, error) {
	req, err := in.request()
	if err != nil {
		return nil, err
	}
	return h.deps.Query.Execute(r.Context(), req)
}

// swagger:route GET /query/stats Query queryStats
// @Summary Running counters per serving path
// @Tags Query
// @Produce json
// @Success 200 type StatsResponse "ok"
// @Router /query/stats [get]
func (h *handlers) stats(_ *stdhttp.Request) (any, error) {
	out := StatsResponse{Serving: h.deps.Query.Stats()}
	if h.deps.Capture != nil {
		st := h.deps.Capture.Stats()
		out.Capture = &st
	}
	return out, nil
}

// swagger:route POST /query/clear-cache Query queryClearCache
// @Summary Reset the view existence cache after out-of-band table changes
// @Tags Query
// @Produce json
// @Success 204 "cleared"
// @Router /query/clear-cache [post]
func (h *handlers) clearCache(_ *stdhttp.Request) (any, error) {
	h.deps.Query.ClearViewCache()
	return httpkit.NoContent(), nil
}

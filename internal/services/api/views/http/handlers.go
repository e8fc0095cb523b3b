// Package http provides http transport for view administration
package http

import (
	stdhttp "net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"researchflow/internal/modkit/httpkit"
	catdomain "researchflow/internal/services/catalog/domain"
	catalog "researchflow/internal/services/catalog/service"
)

// Deps are the handler dependencies
type Deps struct {
	Views catalog.Service

	// StaleAfter flags list entries whose last refresh is older
	StaleAfter time.Duration
}

type handlers struct {
	deps Deps
	now  func() time.Time
}

// Register mounts the view administration endpoints
func Register(r httpkit.Router, d Deps) {
	h := &handlers{deps: d, now: time.Now}

	httpkit.PostJSON[catdomain.ViewSpec](r, "/", h.create)
	httpkit.Get(r, "/", h.list)
	httpkit.Get(r, "/{name}", h.get)
	httpkit.Post(r, "/{name}/refresh", h.refresh)
	httpkit.Delete(r, "/{name}", h.drop)
}

// ViewSummary is one list entry with a staleness flag
// swagger:model
type ViewSummary struct {
	catdomain.ViewInfo
	Stale bool `json:"stale"`
}

// CreateResponse reports the registered view and its first build
type CreateResponse struct {
	catdomain.ViewInfo
	Rows int64 `json:"rows"`
}

// RefreshResponse reports a completed rebuild
type RefreshResponse struct {
	Name string `json:"name" example:"patients_by_gender"`
	Rows int64  `json:"rows" example:"124512"`
}

// swagger:route POST /views Views viewsCreate
// @Summary Register a view and build its derived table
// @Tags Views
// @Accept json
// @Produce json
// @Param payload body catdomain.ViewSpec true "View declaration"
// @Success 201 type CreateResponse "created"
// @Router /views [post]
func (h *handlers) create(r *stdhttp.Request, in catdomain.ViewSpec) (any, error) {
	if _, err := h.deps.Views.Register(r.Context(), in); err != nil {
		return nil, err
	}
	rows, err := h.deps.Views.Refresh(r.Context(), in.Name)
	if err != nil {
		return nil, err
	}
	info, err := h.deps.Views.Get(r.Context(), in.Name)
	if err != nil {
		return nil, err
	}
	return httpkit.Created(CreateResponse{ViewInfo: info, Rows: rows}), nil
}

// swagger:route GET /views Views viewsList
// @Summary List registered views with staleness flags
// @Tags Views
// @Produce json
// @Success 200 {array} ViewSummary "ok"
// @Router /views [get]
func (h *handlers) list(r *stdhttp.Request) (any, error) {
	infos, err := h.deps.Views.List(r.Context())
	if err != nil {
		return nil, err
	}
	out := make([]ViewSummary, len(infos))
	for i, info := range infos {
		out[i] = ViewSummary{ViewInfo: info, Stale: h.stale(info)}
	}
	return out, nil
}

// swagger:route GET /views/{name} Views viewsGet
// @Summary Fetch one view declaration
// @Tags Views
// @Produce json
// @Success 200 type ViewSummary "ok"
// @Router /views/{name} [get]
func (h *handlers) get(r *stdhttp.Request) (any, error) {
	info, err := h.deps.Views.Get(r.Context(), chi.URLParam(r, "name"))
	if err != nil {
		return nil, err
	}
	return ViewSummary{ViewInfo: info, Stale: h.stale(info)}, nil
}

// swagger:route POST /views/{name}/refresh Views viewsRefresh
// @Summary Rebuild a view's derived table from the full source
// @Tags Views
// @Produce json
// @Success 200 type RefreshResponse "ok"
// @Router /views/{name}/refresh [post]
func (h *handlers) refresh(r *stdhttp.Request) (any, error) {
	name := chi.URLParam(r, "name")
	rows, err := h.deps.Views.Refresh(r.Context(), name)
	if err != nil {
		return nil, err
	}
	return RefreshResponse{Name: name, Rows: rows}, nil
}

// swagger:route DELETE /views/{name} Views viewsDrop
// @Summary Drop a view's derived table; queries fall back to the raw source
// @Tags Views
// @Produce json
// @Param purge query bool false "also remove the view definition"
// @Success 204 "deleted"
// @Router /views/{name} [delete]
func (h *handlers) drop(r *stdhttp.Request) (any, error) {
	name := chi.URLParam(r, "name")
	if r.URL.Query().Has("purge") {
		if err := h.deps.Views.Unregister(r.Context(), name); err != nil {
			return nil, err
		}
		return httpkit.NoContent(), nil
	}
	if err := h.deps.Views.Drop(r.Context(), name); err != nil {
		return nil, err
	}
	return httpkit.NoContent(), nil
}

func (h *handlers) stale(info catdomain.ViewInfo) bool {
	if h.deps.StaleAfter <= 0 || info.LastRefreshAt == nil {
		return false
	}
	return h.now().Sub(*info.LastRefreshAt) > h.deps.StaleAfter
}

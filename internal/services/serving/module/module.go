// Package module wires the hybrid router over the batch, fallback and
// speed layers
package module

import (
	"researchflow/internal/modkit"
	"researchflow/internal/modkit/httpkit"
	batch "researchflow/internal/services/batch/service"
	catalog "researchflow/internal/services/catalog/service"
	fallback "researchflow/internal/services/fallback/service"
	"researchflow/internal/services/serving/service"
	speed "researchflow/internal/services/speed/service"
)

// Ports holds what the serving module exposes
type Ports struct {
	Query *service.Svc
}

// Module owns the query router
type Module struct {
	deps  modkit.Deps
	ports Ports
}

// New constructs the serving module over the given catalog, source
// executor and TTL cache
func New(deps modkit.Deps, views catalog.Service, src fallback.Executor, cache speed.Cache, overrides Options) *Module {
	opts := FromConfig(deps.Cfg).merge(overrides)

	var speedRunner service.SpeedRunner
	if opts.speedEnabled() {
		speedRunner = speed.New(cache, opts.SpeedWindow)
	}

	svc := service.New(views, batch.New(deps.CH), fallback.New(src), speedRunner, service.Config{
		SpeedEnabled: opts.speedEnabled(),
		SpeedWait:    opts.SpeedWait,
		StaleAfter:   opts.StaleAfter,
	})

	m := &Module{deps: deps}
	m.ports = Ports{Query: svc}
	return m
}

// Ports returns the module ports
func (m *Module) Ports() any { return m.ports }

// Name returns the module name
func (m *Module) Name() string { return "serving" }

// Prefix returns the module route prefix (none, query has its own API module)
func (m *Module) Prefix() string { return "" }

// MountRoutes returns no HTTP routes
func (m *Module) MountRoutes(_ httpkit.Router) {}

// Package module wires the change capture worker and exposes the TTL
// cache it fills
package module

import (
	"context"

	"researchflow/internal/modkit"
	"researchflow/internal/modkit/httpkit"
	"researchflow/internal/platform/cachekv"
	"researchflow/internal/services/capture/repo"
	"researchflow/internal/services/capture/service"
)

// WorkerPort is the capture worker surface other modules may drive
type WorkerPort interface {
	Run(ctx context.Context) error
	RunOnce(ctx context.Context) error
	Stats() service.Stats
}

// Ports holds what the capture module exposes
type Ports struct {
	Cache  *cachekv.Store
	Worker WorkerPort
}

// Module owns the capture worker and its cache
type Module struct {
	deps  modkit.Deps
	ports Ports
}

// New constructs the capture module around the given change feed
func New(deps modkit.Deps, feed service.Feed, overrides Options) *Module {
	opts := FromConfig(deps.Cfg)
	if overrides.TypesCSV != "" {
		opts.TypesCSV = overrides.TypesCSV
	}
	if overrides.Interval != 0 {
		opts.Interval = overrides.Interval
	}
	if overrides.TTL != 0 {
		opts.TTL = overrides.TTL
	}
	if overrides.TTLsCSV != "" {
		opts.TTLsCSV = overrides.TTLsCSV
	}
	if overrides.Lookback != 0 {
		opts.Lookback = overrides.Lookback
	}
	if overrides.BatchMax != 0 {
		opts.BatchMax = overrides.BatchMax
	}
	if overrides.CacheSize != 0 {
		opts.CacheSize = overrides.CacheSize
	}

	cache := cachekv.New(opts.CacheSize)
	svc := service.New(deps.PG, repo.NewPG(), feed, cache, service.Config{
		Types:    opts.Types(),
		Interval: opts.Interval,
		TTL:      opts.TTL,
		TypeTTL:  opts.TypeTTLs(),
		Lookback: opts.Lookback,
		BatchMax: opts.BatchMax,
	})

	m := &Module{deps: deps}
	m.ports = Ports{Cache: cache, Worker: svc}
	return m
}

// Ports returns the module ports
func (m *Module) Ports() any { return m.ports }

// Name returns the module name
func (m *Module) Name() string { return "capture" }

// Prefix returns the module route prefix (none for a worker module)
func (m *Module) Prefix() string { return "" }

// MountRoutes returns no HTTP routes
func (m *Module) MountRoutes(_ httpkit.Router) {}

// Package module wires the view catalog service and exposes its ports
package module

import (
	"researchflow/internal/adapters/source"
	"researchflow/internal/modkit"
	"researchflow/internal/modkit/httpkit"
	"researchflow/internal/services/catalog/repo"
	"researchflow/internal/services/catalog/service"
)

// Module owns the view catalog service and the raw source client
type Module struct {
	deps  modkit.Deps
	ports Ports
}

// New constructs the catalog module. Zero-value overrides fall back
// to config.
func New(deps modkit.Deps, overrides Options) *Module {
	opts := FromConfig(deps.Cfg)
	if overrides.SourceBaseURL != "" {
		opts.SourceBaseURL = overrides.SourceBaseURL
	}
	if overrides.SourceToken != "" {
		opts.SourceToken = overrides.SourceToken
	}
	if overrides.SourcePageSize != 0 {
		opts.SourcePageSize = overrides.SourcePageSize
	}
	if overrides.SourceTimeout != 0 {
		opts.SourceTimeout = overrides.SourceTimeout
	}

	src := source.NewClient(source.Options{
		BaseURL:    opts.SourceBaseURL,
		Token:      opts.SourceToken,
		UserAgent:  opts.SourceUserAgent,
		Timeout:    opts.SourceTimeout,
		PageSize:   opts.SourcePageSize,
		MaxRetries: opts.SourceRetries,
	})

	svc := service.New(deps.PG, repo.NewPG(), deps.CH, src, service.NewExistsCache())

	m := &Module{deps: deps}
	m.ports = Ports{Views: svc, Source: src}
	return m
}

// Ports returns the module ports
func (m *Module) Ports() any { return m.ports }

// Name returns the module name
func (m *Module) Name() string { return "catalog" }

// Prefix returns the module route prefix (none, no HTTP surface)
func (m *Module) Prefix() string { return "" }

// MountRoutes returns no HTTP routes
func (m *Module) MountRoutes(_ httpkit.Router) {}

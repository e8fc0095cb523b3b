// Package api provides the HTTP API for the application
package api

import (
	"researchflow/internal/platform/config"
	"researchflow/internal/platform/logger"
	phttp "researchflow/internal/platform/net/http"
	"researchflow/internal/platform/store"

	"researchflow/internal/modkit"
	"researchflow/internal/modkit/httpkit"
	"researchflow/internal/modkit/module"
	"researchflow/internal/modkit/swaggerkit"

	metamod "researchflow/internal/services/api/meta/module"
	querymod "researchflow/internal/services/api/query/module"
	viewsmod "researchflow/internal/services/api/views/module"

	capturemod "researchflow/internal/services/capture/module"
	catalogmod "researchflow/internal/services/catalog/module"
	servingmod "researchflow/internal/services/serving/module"
)

// Options are the API options
type Options struct {
	Config         config.Conf
	Store          *store.Store
	Logger         *logger.Logger
	EnableSwagger  bool
	EnableProfiler bool
}

// Mounted exposes the long-running pieces the caller owns after Mount
type Mounted struct {
	// Capture is the change capture worker; the caller drives its Run
	// loop and decides the lifecycle
	Capture capturemod.WorkerPort
}

// Mount mounts the API service onto the given router
func Mount(r phttp.Router, opt Options) Mounted {
	// shared deps for modules
	deps := modkit.Deps{
		Cfg: opt.Config,
		PG:  opt.Store.PG,
		CH:  opt.Store.CH,
	}

	// catalog first, it owns the raw source client the others share
	catalog := catalogmod.New(deps, catalogmod.Options{})
	catPorts := module.MustPortsOf[catalogmod.Ports](catalog)

	capture := capturemod.New(deps, catPorts.Source, capturemod.Options{})
	capPorts := module.MustPortsOf[capturemod.Ports](capture)

	serving := servingmod.New(deps, catPorts.Views, catPorts.Source, capPorts.Cache, servingmod.Options{})
	servPorts := module.MustPortsOf[servingmod.Ports](serving)

	views := viewsmod.New(deps, modkit.WithPorts(viewsmod.Ports{
		Views:      catPorts.Views,
		StaleAfter: servingmod.FromConfig(deps.Cfg).StaleAfter,
	}))

	query := querymod.New(deps, modkit.WithPorts(querymod.Ports{
		Query:   servPorts.Query,
		Capture: capPorts.Worker,
	}))

	mods := []module.Module{
		metamod.New(deps),
		catalog,
		capture,
		serving,
		views,
		query,
	}

	// versioned API with a common middleware stack
	httpkit.MountAPIV1(r, httpkit.CommonStack(), func(api httpkit.Router) {
		swaggerkit.Mount(r, opt.EnableSwagger)
		phttp.MountProfiler(r, "/debug", opt.EnableProfiler)

		for _, m := range mods {
			// register each module's ports under its own name (for cross-module lookups)
			module.Register(m.Name(), m.Ports())

			// mount module routes under its Prefix()
			m.MountRoutes(api)
		}
	})

	return Mounted{Capture: capPorts.Worker}
}

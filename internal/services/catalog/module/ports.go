package module

import (
	"researchflow/internal/adapters/source"
	"researchflow/internal/services/catalog/service"
)

// Ports holds what the catalog module exposes to other modules
type Ports struct {
	// Views is the catalog service used by the API and serving modules
	Views service.Service

	// Source is the shared raw source client, reused by the capture
	// and serving modules so the process holds one HTTP client
	Source *source.Client
}

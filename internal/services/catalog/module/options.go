package module

import (
	"time"

	"researchflow/internal/platform/config"
)

// Options controls the catalog module and its raw source client
type Options struct {
	SourceBaseURL   string
	SourceToken     string
	SourceUserAgent string
	SourceTimeout   time.Duration
	SourcePageSize  int
	SourceRetries   int
}

// FromConfig reads with CORE_SOURCE_ prefix
func FromConfig(cfg config.Conf) Options {
	c := cfg.Prefix("CORE_SOURCE_")
	return Options{
		SourceBaseURL:   c.MayString("BASE_URL", "http://localhost:8080/fhir"),
		SourceToken:     c.MayString("TOKEN", ""),
		SourceUserAgent: c.MayString("USER_AGENT", "researchflow-source"),
		SourceTimeout:   c.MayDuration("TIMEOUT", 15*time.Second),
		SourcePageSize:  c.MayInt("PAGE_SIZE", 200),
		SourceRetries:   c.MayInt("MAX_RETRIES", 5),
	}
}

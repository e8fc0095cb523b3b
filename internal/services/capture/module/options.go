package module

import (
	"strings"
	"time"

	"researchflow/internal/platform/config"
)

// Options controls the change capture worker
type Options struct {
	TypesCSV  string
	Interval  time.Duration
	TTL       time.Duration
	TTLsCSV   string
	Lookback  time.Duration
	BatchMax  int
	CacheSize int
}

// FromConfig reads with CORE_CAPTURE_ prefix
func FromConfig(cfg config.Conf) Options {
	c := cfg.Prefix("CORE_CAPTURE_")
	return Options{
		TypesCSV:  c.MayString("TYPES", "Patient,Condition,Observation"),
		Interval:  c.MayDuration("INTERVAL", 5*time.Minute),
		TTL:       c.MayDuration("TTL", 24*time.Hour),
		TTLsCSV:   c.MayString("TTLS", ""),
		Lookback:  c.MayDuration("LOOKBACK", 24*time.Hour),
		BatchMax:  c.MayInt("BATCH_MAX", 0),
		CacheSize: c.MayInt("CACHE_SIZE", 0),
	}
}

// Types splits the configured CSV, dropping empty entries
func (o Options) Types() []string {
	var out []string
	for _, t := range strings.Split(o.TypesCSV, ",") {
		if t = strings.TrimSpace(t); t != "" {
			out = append(out, t)
		}
	}
	return out
}

// TypeTTLs parses the per-type TTL CSV ("Observation=12h,Patient=24h").
// Entries that do not parse are skipped; the global TTL covers them.
func (o Options) TypeTTLs() map[string]time.Duration {
	if o.TTLsCSV == "" {
		return nil
	}
	out := map[string]time.Duration{}
	for _, pair := range strings.Split(o.TTLsCSV, ",") {
		typ, val, ok := strings.Cut(strings.TrimSpace(pair), "=")
		if !ok {
			continue
		}
		d, err := time.ParseDuration(strings.TrimSpace(val))
		if err != nil || d <= 0 {
			continue
		}
		out[strings.TrimSpace(typ)] = d
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

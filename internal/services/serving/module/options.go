package module

import (
	"time"

	"researchflow/internal/platform/config"
)

// Options controls the hybrid router. SpeedEnabled is tri-state so a
// caller can force the toggle either way; nil keeps the env value
type Options struct {
	SpeedEnabled *bool
	SpeedWait    time.Duration
	SpeedWindow  time.Duration
	StaleAfter   time.Duration
}

// FromConfig reads with CORE_SERVING_ prefix
func FromConfig(cfg config.Conf) Options {
	c := cfg.Prefix("CORE_SERVING_")
	speedOn := c.MayBool("SPEED_ENABLED", true)
	return Options{
		SpeedEnabled: &speedOn,
		SpeedWait:    c.MayDuration("SPEED_WAIT", 3*time.Second),
		SpeedWindow:  c.MayDuration("SPEED_WINDOW", 24*time.Hour),
		StaleAfter:   c.MayDuration("STALE_AFTER", 48*time.Hour),
	}
}

// merge applies the non-zero override fields over o
func (o Options) merge(overrides Options) Options {
	if overrides.SpeedEnabled != nil {
		o.SpeedEnabled = overrides.SpeedEnabled
	}
	if overrides.SpeedWait != 0 {
		o.SpeedWait = overrides.SpeedWait
	}
	if overrides.SpeedWindow != 0 {
		o.SpeedWindow = overrides.SpeedWindow
	}
	if overrides.StaleAfter != 0 {
		o.StaleAfter = overrides.StaleAfter
	}
	return o
}

func (o Options) speedEnabled() bool {
	return o.SpeedEnabled != nil && *o.SpeedEnabled
}

// Package service rebuilds derived tables on a schedule. Each view
// refreshes independently, one broken view never blocks the rest.
package service

import (
	"context"
	"errors"

	"github.com/robfig/cron/v3"

	"researchflow/internal/platform/logger"
	catdomain "researchflow/internal/services/catalog/domain"
)

// Catalog is the slice of the view catalog the refresher needs
type Catalog interface {
	List(ctx context.Context) ([]catdomain.ViewInfo, error)
	Refresh(ctx context.Context, name string) (int64, error)
}

// Config controls the refresher
type Config struct {
	// Schedule is a cron expression, default nightly at 02:00
	Schedule string
}

func (c *Config) defaults() {
	if c.Schedule == "" {
		c.Schedule = "0 2 * * *"
	}
}

// Svc owns the refresh schedule
type Svc struct {
	views Catalog
	cfg   Config
	log   logger.Logger
}

// New constructs the refresher
func New(views Catalog, cfg Config) *Svc {
	if views == nil {
		panic("refresher.Svc requires a non nil catalog")
	}
	cfg.defaults()
	return &Svc{views: views, cfg: cfg, log: *logger.Named("refresher")}
}

// RefreshAll rebuilds every registered view once
func (s *Svc) RefreshAll(ctx context.Context) error {
	infos, err := s.views.List(ctx)
	if err != nil {
		return err
	}

	var errs []error
	for _, info := range infos {
		rows, err := s.views.Refresh(ctx, info.Name)
		if err != nil {
			s.log.Error().Err(err).Str("view", info.Name).Msg("view refresh failed")
			errs = append(errs, err)
			continue
		}
		s.log.Info().Str("view", info.Name).Int64("rows", rows).Msg("view refreshed")
	}
	return errors.Join(errs...)
}

// Run refreshes on the configured cron schedule until ctx is done
func (s *Svc) Run(ctx context.Context) error {
	c := cron.New()
	_, err := c.AddFunc(s.cfg.Schedule, func() {
		if err := s.RefreshAll(ctx); err != nil {
			s.log.Warn().Err(err).Msg("scheduled refresh incomplete")
		}
	})
	if err != nil {
		return err
	}

	s.log.Info().Str("schedule", s.cfg.Schedule).Msg("refresher started")
	c.Start()
	<-ctx.Done()

	// let an in-flight refresh finish before returning
	<-c.Stop().Done()
	return ctx.Err()
}

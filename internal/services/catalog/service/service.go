// Package service contains the view catalog workflows
package service

import (
	"context"
	"time"

	"researchflow/internal/core/resource"
	"researchflow/internal/modkit/repokit"
	perr "researchflow/internal/platform/errors"
	"researchflow/internal/platform/logger"
	"researchflow/internal/platform/store"
	"researchflow/internal/services/catalog/domain"
	"researchflow/internal/services/catalog/repo"
)

// Scanner walks every source document of one entity type
type Scanner interface {
	ForEach(ctx context.Context, typ string, fn func(resource.Resource) error) error
}

// Service defines the view catalog contract
type Service interface {
	Register(ctx context.Context, v domain.ViewSpec) (domain.ViewInfo, error)
	Get(ctx context.Context, name string) (domain.ViewInfo, error)
	List(ctx context.Context) ([]domain.ViewInfo, error)
	Exists(ctx context.Context, name string) (bool, error)
	Refresh(ctx context.Context, name string) (int64, error)
	Drop(ctx context.Context, name string) error
	Unregister(ctx context.Context, name string) error
	Cache() *ExistsCache
}

// Svc implements the Service interface
type Svc struct {
	Repo   repo.Storage
	binder repokit.Binder[repo.Storage]
	db     repokit.TxRunner

	ch    store.Clickhouse
	src   Scanner
	cache *ExistsCache
	log   logger.Logger
	now   func() time.Time
}

// New creates a new catalog service
func New(db repokit.TxRunner, binder repokit.Binder[repo.Storage], ch store.Clickhouse, src Scanner, cache *ExistsCache) *Svc {
	if db == nil {
		panic("catalog.Service requires a non nil TxRunner")
	}
	if binder == nil {
		panic("catalog.Service requires a non nil Repo binder")
	}
	if cache == nil {
		cache = NewExistsCache()
	}
	return &Svc{
		Repo:   binder.Bind(db),
		binder: binder,
		db:     db,
		ch:     ch,
		src:    src,
		cache:  cache,
		log:    *logger.Named("catalog"),
		now:    time.Now,
	}
}

// Cache exposes the existence cache for serving-layer invalidation
func (s *Svc) Cache() *ExistsCache { return s.cache }

// Register validates and stores a new view definition.
// The derived table is not built here; Refresh does that.
func (s *Svc) Register(ctx context.Context, v domain.ViewSpec) (domain.ViewInfo, error) {
	if err := v.Validate(); err != nil {
		return domain.ViewInfo{}, err
	}
	info, err := s.Repo.Insert(ctx, v)
	if err != nil {
		return domain.ViewInfo{}, err
	}
	s.log.Info().Str("view", v.Name).Str("entity_type", v.EntityType).Msg("view registered")
	return info, nil
}

// Get loads one view definition
func (s *Svc) Get(ctx context.Context, name string) (domain.ViewInfo, error) {
	return s.Repo.Get(ctx, name)
}

// List returns all registered views
func (s *Svc) List(ctx context.Context) ([]domain.ViewInfo, error) {
	return s.Repo.List(ctx)
}

// Exists reports whether the derived table for name is queryable.
// Answers are memoized; Refresh and Drop keep the cache honest.
func (s *Svc) Exists(ctx context.Context, name string) (bool, error) {
	if got, ok := s.cache.Lookup(name); ok {
		return got, nil
	}
	if s.ch == nil {
		return false, nil
	}

	v := domain.ViewSpec{Name: name}
	rows, err := s.ch.Query(ctx, "EXISTS TABLE "+v.TableName())
	if err != nil {
		return false, perr.Wrapf(err, perr.ErrorCodeUnavailable, "exists check for %s", name)
	}
	defer rows.Close()

	var one uint8
	if rows.Next() {
		if err := rows.Scan(&one); err != nil {
			return false, perr.Wrapf(err, perr.ErrorCodeUnavailable, "exists scan for %s", name)
		}
	}
	if err := rows.Err(); err != nil {
		return false, perr.Wrapf(err, perr.ErrorCodeUnavailable, "exists rows for %s", name)
	}

	exists := one == 1
	s.cache.Store(name, exists)
	return exists, nil
}

// Drop removes the derived table and marks the existence cache so
// queries route to the raw source. The definition stays registered;
// the view keeps answering through the fallback path and a later
// Refresh rebuilds the table.
func (s *Svc) Drop(ctx context.Context, name string) error {
	v, err := s.Repo.Get(ctx, name)
	if err != nil {
		return err
	}
	if s.ch != nil {
		if err := s.ch.Exec(ctx, "DROP TABLE IF EXISTS "+v.TableName()); err != nil {
			return perr.Wrapf(err, perr.ErrorCodeUnavailable, "drop table for %s", name)
		}
	}
	if err := s.Repo.ClearRefresh(ctx, name); err != nil {
		return err
	}
	s.cache.Store(name, false)
	s.log.Info().Str("view", name).Msg("derived table dropped")
	return nil
}

// Unregister removes the definition and its derived table for good
func (s *Svc) Unregister(ctx context.Context, name string) error {
	v, err := s.Repo.Get(ctx, name)
	if err != nil {
		return err
	}
	if err := s.Repo.Delete(ctx, name); err != nil {
		return err
	}
	if s.ch != nil {
		if err := s.ch.Exec(ctx, "DROP TABLE IF EXISTS "+v.TableName()); err != nil {
			return perr.Wrapf(err, perr.ErrorCodeUnavailable, "drop table for %s", name)
		}
	}
	s.cache.Invalidate(name)
	s.log.Info().Str("view", name).Msg("view unregistered")
	return nil
}

// Package service answers view queries from the TTL cache of recently
// changed documents. Results cover only the capture window, so the
// serving layer merges them with the batch answer rather than trusting
// them alone.
package service

import (
	"context"
	"sort"
	"time"

	"researchflow/internal/core/resource"
	"researchflow/internal/platform/cachekv"
	perr "researchflow/internal/platform/errors"
	"researchflow/internal/platform/logger"
	"researchflow/internal/services/catalog/domain"
)

// DefaultWindow bounds how far back a speed query looks
const DefaultWindow = 24 * time.Hour

// Cache is the read surface of the TTL store
type Cache interface {
	Scan(typ string, since time.Time) []cachekv.Record
}

// Runner evaluates view queries over recently captured documents
type Runner struct {
	cache  Cache
	window time.Duration
	log    logger.Logger
	now    func() time.Time
}

// New creates a speed runner over the TTL cache
func New(cache Cache, window time.Duration) *Runner {
	if cache == nil {
		panic("speed.Runner requires a non nil cache")
	}
	if window <= 0 {
		window = DefaultWindow
	}
	return &Runner{
		cache:  cache,
		window: window,
		log:    *logger.Named("speed"),
		now:    time.Now,
	}
}

// Run returns the primary ids of recently changed documents matching
// the view plus caller filters. A zero since falls back to the
// configured window. Everything evaluates locally; the cache holds
// raw documents, not extracted rows.
func (r *Runner) Run(_ context.Context, v domain.ViewSpec, filters map[string]string, since time.Time, limit int) ([]string, error) {
	conds, err := compile(v, filters)
	if err != nil {
		return nil, err
	}

	if since.IsZero() {
		since = r.now().Add(-r.window)
	}

	var (
		ids  []string
		seen = map[string]bool{}
	)
	for _, rec := range r.cache.Scan(v.EntityType, since) {
		doc, err := resource.FromJSON(rec.Type, rec.ID, rec.Payload)
		if err != nil {
			r.log.Warn().Err(err).Str("entity_type", rec.Type).Str("id", rec.ID).
				Msg("cached document unreadable, skipped")
			continue
		}
		if !domain.Matches(doc, conds) {
			continue
		}
		id := domain.PrimaryID(v, doc)
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		ids = append(ids, id)
		if limit > 0 && len(ids) >= limit {
			break
		}
	}
	return ids, nil
}

// compile folds the baked-in predicates and caller filters into one
// condition list, caller filters in deterministic key order
func compile(v domain.ViewSpec, filters map[string]string) ([]domain.Condition, error) {
	var conds []domain.Condition
	for _, p := range v.Where {
		f, _ := v.Field(p.Field)
		op, bare := domain.SplitRangeOp(p.Value)
		conds = append(conds, domain.Condition{Field: f, Op: op, Value: bare})
	}

	keys := make([]string, 0, len(filters))
	for k := range filters {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		f, ok := v.Field(k)
		if !ok {
			return nil, perr.InvalidArgf("view %q has no field %q", v.Name, k)
		}
		op, bare := domain.SplitRangeOp(filters[k])
		conds = append(conds, domain.Condition{Field: f, Op: op, Value: bare})
	}
	return conds, nil
}

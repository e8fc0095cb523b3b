// Package service is the hybrid router in front of the query layers.
// Each request is answered by the batch layer when the view's derived
// table exists, by the fallback layer when it does not, and optionally
// widened with very recent changes from the speed layer. The speed
// branch is best effort: it runs concurrently with a bounded wait and
// its failure or timeout degrades the answer, never the request.
package service

import (
	"context"
	"sync/atomic"
	"time"

	perr "researchflow/internal/platform/errors"
	"researchflow/internal/platform/logger"
	batch "researchflow/internal/services/batch/service"
	catdomain "researchflow/internal/services/catalog/domain"
	catalog "researchflow/internal/services/catalog/service"
	"researchflow/internal/services/serving/domain"
)

// BatchRunner queries derived tables
type BatchRunner interface {
	Run(ctx context.Context, v catdomain.ViewSpec, filters map[string]string, limit int) ([]batch.Row, error)
	RunJoin(ctx context.Context, legs []batch.JoinLeg, limit int) ([]string, error)
}

// FallbackRunner queries the raw source
type FallbackRunner interface {
	Run(ctx context.Context, v catdomain.ViewSpec, filters map[string]string, limit int) ([]string, error)
}

// SpeedRunner queries the TTL cache of recent changes
type SpeedRunner interface {
	Run(ctx context.Context, v catdomain.ViewSpec, filters map[string]string, since time.Time, limit int) ([]string, error)
}

// Config controls the router
type Config struct {
	// SpeedEnabled turns the speed branch on for every request
	SpeedEnabled bool

	// SpeedWait bounds how long a request waits on the speed branch
	SpeedWait time.Duration

	// StaleAfter is the batch age past which results carry a
	// staleness warning, 0 disables the check
	StaleAfter time.Duration
}

func (c *Config) defaults() {
	if c.SpeedWait <= 0 {
		c.SpeedWait = 3 * time.Second
	}
}

// Stats is a point-in-time snapshot of the per-path counters
type Stats struct {
	BatchServed    int64 `json:"batch_served"`
	FallbackServed int64 `json:"fallback_served"`
	SpeedServed    int64 `json:"speed_served"`
}

// Svc routes queries across the three layers
type Svc struct {
	views catalog.Service
	batch BatchRunner
	fb    FallbackRunner
	speed SpeedRunner
	cfg   Config
	log   logger.Logger
	now   func() time.Time

	batchServed    atomic.Int64
	fallbackServed atomic.Int64
	speedServed    atomic.Int64
}

// New constructs the router. The speed runner may be nil only when the
// speed branch is disabled.
func New(views catalog.Service, b BatchRunner, fb FallbackRunner, speed SpeedRunner, cfg Config) *Svc {
	if views == nil {
		panic("serving.Svc requires a non nil catalog")
	}
	if b == nil {
		panic("serving.Svc requires a non nil batch runner")
	}
	if fb == nil {
		panic("serving.Svc requires a non nil fallback runner")
	}
	if cfg.SpeedEnabled && speed == nil {
		panic("serving.Svc speed branch enabled without a speed runner")
	}
	cfg.defaults()
	return &Svc{
		views: views,
		batch: b,
		fb:    fb,
		speed: speed,
		cfg:   cfg,
		log:   *logger.Named("serving"),
		now:   time.Now,
	}
}

// Execute answers one query request
func (s *Svc) Execute(ctx context.Context, req domain.QueryRequest) (domain.QueryResult, error) {
	switch len(req.Legs) {
	case 0:
		return domain.QueryResult{}, perr.InvalidArgf("query needs at least one view")
	case 1:
		return s.executeSingle(ctx, req)
	default:
		return s.executeJoin(ctx, req)
	}
}

type speedOut struct {
	ids []string
	err error
}

func (s *Svc) executeSingle(ctx context.Context, req domain.QueryRequest) (domain.QueryResult, error) {
	leg := req.Legs[0]
	info, err := s.views.Get(ctx, leg.View)
	if err != nil {
		return domain.QueryResult{}, err
	}

	// launch the speed branch before the base query so both overlap.
	// the buffered channel lets the goroutine finish after a timeout
	// without anyone reading.
	var (
		speedCh chan speedOut
		sctx    context.Context
	)
	if s.cfg.SpeedEnabled {
		var cancel context.CancelFunc
		sctx, cancel = context.WithTimeout(ctx, s.cfg.SpeedWait)
		defer cancel()
		speedCh = make(chan speedOut, 1)
		go func() {
			ids, err := s.speed.Run(sctx, info.ViewSpec, leg.Filters, req.Since, 0)
			speedCh <- speedOut{ids: ids, err: err}
		}()
	}

	res := domain.QueryResult{}
	var baseIDs []string

	exists, err := s.views.Exists(ctx, leg.View)
	if err != nil {
		return domain.QueryResult{}, err
	}
	if exists {
		rows, err := s.batch.Run(ctx, info.ViewSpec, leg.Filters, req.Limit)
		if err != nil {
			return domain.QueryResult{}, err
		}
		res.Source = "batch"
		s.batchServed.Add(1)
		for _, row := range rows {
			baseIDs = append(baseIDs, row.ID)
		}
		res.Counts.Batch = len(baseIDs)
		if req.IncludeRows {
			res.Rows = make([]domain.Row, len(rows))
			for i, row := range rows {
				res.Rows[i] = domain.Row{ID: row.ID, Values: row.Values}
			}
		}
		s.checkStaleness(&res, info)
	} else {
		baseIDs, err = s.fb.Run(ctx, info.ViewSpec, leg.Filters, req.Limit)
		if err != nil {
			return domain.QueryResult{}, err
		}
		res.Source = "fallback"
		s.fallbackServed.Add(1)
		res.Counts.Fallback = len(baseIDs)
	}

	merged := baseIDs
	if speedCh != nil {
		merged = s.mergeSpeed(sctx, speedCh, &res, baseIDs, leg.View)
	}

	if req.Limit > 0 && len(merged) > req.Limit {
		merged = merged[:req.Limit]
	}
	res.IDs = merged
	return res, nil
}

// mergeSpeed waits out the speed branch and folds its ids into the
// base set. Failure or timeout logs a warning and returns the base
// ids untouched.
func (s *Svc) mergeSpeed(sctx context.Context, ch chan speedOut, res *domain.QueryResult, baseIDs []string, view string) []string {
	var out speedOut
	select {
	case out = <-ch:
	case <-sctx.Done():
		s.log.Warn().Str("view", view).Msg("speed branch timed out, serving base result only")
		return baseIDs
	}
	if out.err != nil {
		s.log.Warn().Err(out.err).Str("view", view).Msg("speed branch failed, serving base result only")
		return baseIDs
	}

	s.speedServed.Add(1)
	res.Counts.Speed = len(out.ids)

	seen := make(map[string]bool, len(baseIDs))
	for _, id := range baseIDs {
		seen[id] = true
	}
	merged := baseIDs
	for _, id := range out.ids {
		if seen[id] {
			res.Counts.Overlap++
			continue
		}
		seen[id] = true
		merged = append(merged, id)
	}
	return merged
}

// executeJoin answers a multi-view request. When every leg has a
// derived table the join runs in one query; otherwise each leg falls
// back to the raw source and the id sets intersect locally. The speed
// branch covers single-view requests only.
func (s *Svc) executeJoin(ctx context.Context, req domain.QueryRequest) (domain.QueryResult, error) {
	infos := make([]catdomain.ViewInfo, len(req.Legs))
	allExist := true
	for i, leg := range req.Legs {
		info, err := s.views.Get(ctx, leg.View)
		if err != nil {
			return domain.QueryResult{}, err
		}
		infos[i] = info

		ok, err := s.views.Exists(ctx, leg.View)
		if err != nil {
			return domain.QueryResult{}, err
		}
		allExist = allExist && ok
	}

	res := domain.QueryResult{}
	if allExist {
		legs := make([]batch.JoinLeg, len(req.Legs))
		for i, leg := range req.Legs {
			legs[i] = batch.JoinLeg{View: infos[i].ViewSpec, Filters: leg.Filters}
		}
		ids, err := s.batch.RunJoin(ctx, legs, req.Limit)
		if err != nil {
			return domain.QueryResult{}, err
		}
		res.Source = "batch"
		s.batchServed.Add(1)
		res.Counts.Batch = len(ids)
		res.IDs = ids
		s.checkStaleness(&res, oldestInfo(infos))
		return res, nil
	}

	ids, err := s.intersectFallback(ctx, req, infos)
	if err != nil {
		return domain.QueryResult{}, err
	}
	if req.Limit > 0 && len(ids) > req.Limit {
		ids = ids[:req.Limit]
	}
	res.Source = "fallback"
	s.fallbackServed.Add(1)
	res.Counts.Fallback = len(ids)
	res.IDs = ids
	return res, nil
}

// intersectFallback runs every leg against the raw source and keeps
// only the ids all legs agree on, in the first leg's order
func (s *Svc) intersectFallback(ctx context.Context, req domain.QueryRequest, infos []catdomain.ViewInfo) ([]string, error) {
	ids, err := s.fb.Run(ctx, infos[0].ViewSpec, req.Legs[0].Filters, 0)
	if err != nil {
		return nil, err
	}
	for i := 1; i < len(req.Legs); i++ {
		next, err := s.fb.Run(ctx, infos[i].ViewSpec, req.Legs[i].Filters, 0)
		if err != nil {
			return nil, err
		}
		keep := make(map[string]bool, len(next))
		for _, id := range next {
			keep[id] = true
		}
		var kept []string
		for _, id := range ids {
			if keep[id] {
				kept = append(kept, id)
			}
		}
		ids = kept
	}
	return ids, nil
}

// checkStaleness attaches a warning when the batch data is older than
// the configured threshold
func (s *Svc) checkStaleness(res *domain.QueryResult, info catdomain.ViewInfo) {
	if s.cfg.StaleAfter <= 0 || info.LastRefreshAt == nil {
		return
	}
	age := s.now().Sub(*info.LastRefreshAt)
	if age <= s.cfg.StaleAfter {
		return
	}
	res.Stale = &domain.Staleness{
		LastRefreshAt: *info.LastRefreshAt,
		AgeSeconds:    age.Seconds(),
	}
	s.log.Warn().Str("last_refresh_at", info.LastRefreshAt.Format(time.RFC3339)).Msg("serving stale batch data")
}

// oldestInfo picks the leg with the oldest refresh for the staleness
// check, a join is only as fresh as its stalest table
func oldestInfo(infos []catdomain.ViewInfo) catdomain.ViewInfo {
	oldest := infos[0]
	for _, info := range infos[1:] {
		if info.LastRefreshAt == nil {
			continue
		}
		if oldest.LastRefreshAt == nil || info.LastRefreshAt.Before(*oldest.LastRefreshAt) {
			oldest = info
		}
	}
	return oldest
}

// ClearViewCache resets the existence cache, used after administrative
// drops or creates outside the normal flow
func (s *Svc) ClearViewCache() {
	s.views.Cache().Reset()
}

// Stats returns a snapshot of the per-path counters
func (s *Svc) Stats() Stats {
	return Stats{
		BatchServed:    s.batchServed.Load(),
		FallbackServed: s.fallbackServed.Load(),
		SpeedServed:    s.speedServed.Load(),
	}
}

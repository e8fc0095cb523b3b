// Package service answers view queries straight from the raw source.
// This is the slow path used when a view has no derived table, for
// example right after an administrative drop. Slower is fine, wrong
// or empty is not.
package service

import (
	"context"
	"net/url"
	"sort"
	"strings"

	"researchflow/internal/adapters/source"
	"researchflow/internal/core/resource"
	perr "researchflow/internal/platform/errors"
	"researchflow/internal/platform/logger"
	"researchflow/internal/services/catalog/domain"
)

// Executor runs one search against the raw source
type Executor interface {
	Execute(ctx context.Context, q source.Query) ([]resource.Resource, error)
}

// Runner transpiles a view plus filters into a source query and
// evaluates whatever the source API cannot express locally
type Runner struct {
	src Executor
	log logger.Logger
}

// New creates a fallback runner over the raw source
func New(src Executor) *Runner {
	if src == nil {
		panic("fallback.Runner requires a non nil source executor")
	}
	return &Runner{src: src, log: *logger.Named("fallback")}
}

// Run returns the primary ids matching the view plus caller filters
func (r *Runner) Run(ctx context.Context, v domain.ViewSpec, filters map[string]string, limit int) ([]string, error) {
	params := url.Values{}
	var local []domain.Condition

	// baked-in view predicates always hold
	for _, p := range v.Where {
		f, _ := v.Field(p.Field)
		pushOrKeep(f, p.Value, params, &local)
	}

	// deterministic evaluation order for caller filters
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
		pushOrKeep(f, filters[k], params, &local)
	}

	q := source.Query{Type: v.EntityType, Params: params}
	if len(local) == 0 && v.Primary == "" {
		// nothing to post-filter, the server can cap for us
		q.Limit = limit
	}

	recs, err := r.src.Execute(ctx, q)
	if err != nil {
		return nil, perr.WrapIf(err, perr.ErrorCodeUnavailable, "fallback source query")
	}

	var (
		ids  []string
		seen = map[string]bool{}
	)
	for _, rec := range recs {
		if !domain.Matches(rec, local) {
			continue
		}
		id := domain.PrimaryID(v, rec)
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

// pushOrKeep sends simple equality predicates to the server and keeps
// everything else (ranges, text matching, refs, nested paths) local
func pushOrKeep(f domain.FieldSpec, val string, params url.Values, local *[]domain.Condition) {
	op, bare := domain.SplitRangeOp(val)
	simplePath := !strings.ContainsAny(f.Path, ".[")
	if op == "=" && !f.Text && !f.Ref && simplePath {
		params.Set(f.Path, bare)
		return
	}
	*local = append(*local, domain.Condition{Field: f, Op: op, Value: bare})
}

// Package service runs precomputed queries against the derived tables
package service

import (
	"context"

	perr "researchflow/internal/platform/errors"
	"researchflow/internal/platform/logger"
	"researchflow/internal/platform/store"
	"researchflow/internal/services/catalog/domain"
)

// Row is one materialized row keyed by column name
type Row struct {
	ID     string
	Values map[string]string
}

// JoinLeg is one view plus the filters pushed down into its subquery
type JoinLeg struct {
	View    domain.ViewSpec
	Filters map[string]string
}

// Runner executes batch-layer queries. It has no side effects.
type Runner struct {
	ch  store.Clickhouse
	log logger.Logger
}

// New creates a batch runner over the table store
func New(ch store.Clickhouse) *Runner {
	if ch == nil {
		panic("batch.Runner requires a non nil table store")
	}
	return &Runner{ch: ch, log: *logger.Named("batch")}
}

// Run queries one view's derived table with the given filters.
// Results are ordered by id so identical calls return identical row sets.
func (r *Runner) Run(ctx context.Context, v domain.ViewSpec, filters map[string]string, limit int) ([]Row, error) {
	sql, args, err := buildSelect(v, filters, limit)
	if err != nil {
		return nil, err
	}

	rows, err := r.ch.Query(ctx, sql, args...)
	if err != nil {
		return nil, perr.Wrapf(err, perr.ErrorCodeUnavailable, "batch query %s", v.Name)
	}
	defer rows.Close()

	cols := v.Columns()
	var out []Row
	for rows.Next() {
		vals := make([]string, len(cols))
		ptrs := make([]any, len(cols))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, perr.Wrapf(err, perr.ErrorCodeUnavailable, "batch scan %s", v.Name)
		}
		row := Row{ID: vals[0], Values: make(map[string]string, len(cols)-1)}
		for i := 1; i < len(cols); i++ {
			row.Values[cols[i]] = vals[i]
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, perr.Wrapf(err, perr.ErrorCodeUnavailable, "batch rows %s", v.Name)
	}
	return out, nil
}

// RunJoin queries several views at once, joined on their local ids,
// and returns the surviving primary ids in stable order
func (r *Runner) RunJoin(ctx context.Context, legs []JoinLeg, limit int) ([]string, error) {
	sql, args, err := buildJoin(legs, limit)
	if err != nil {
		return nil, err
	}

	rows, err := r.ch.Query(ctx, sql, args...)
	if err != nil {
		return nil, perr.Wrapf(err, perr.ErrorCodeUnavailable, "batch join query")
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, perr.Wrapf(err, perr.ErrorCodeUnavailable, "batch join scan")
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, perr.Wrapf(err, perr.ErrorCodeUnavailable, "batch join rows")
	}
	return ids, nil
}

package service

import (
	"context"
	"strings"

	"researchflow/internal/core/clinterm"
	"researchflow/internal/core/resource"
	perr "researchflow/internal/platform/errors"
	"researchflow/internal/services/catalog/domain"

	"github.com/google/uuid"
)

// insertBatchSize bounds one CH insert batch during a rebuild
const insertBatchSize = 1000

// Refresh rebuilds the derived table for name from a full source scan.
// The rebuild happens in a staging table that is swapped in atomically,
// so readers never see a partially built table.
func (s *Svc) Refresh(ctx context.Context, name string) (int64, error) {
	v, err := s.Repo.Get(ctx, name)
	if err != nil {
		return 0, err
	}
	if s.ch == nil {
		return 0, perr.Unavailablef("no table store configured")
	}
	if s.src == nil {
		return 0, perr.Unavailablef("no source configured")
	}

	table := v.TableName()
	// a unique suffix keeps overlapping rebuilds of the same view from
	// trampling each other's staging table
	staging := table + "__stg_" + strings.ReplaceAll(uuid.NewString(), "-", "")
	cols := v.TableColumns()
	ddlCols := make([]string, len(cols))
	for i, c := range cols {
		ddlCols[i] = c + " String"
	}
	ddl := "(" + strings.Join(ddlCols, ", ") + ") ENGINE = MergeTree ORDER BY id"

	if err := s.ch.Exec(ctx, "CREATE TABLE "+staging+" "+ddl); err != nil {
		return 0, perr.Wrapf(err, perr.ErrorCodeUnavailable, "create staging for %s", name)
	}

	var (
		total int64
		batch [][]any
	)
	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		if err := s.ch.Insert(ctx, staging, cols, batch); err != nil {
			return perr.Wrapf(err, perr.ErrorCodeUnavailable, "insert batch for %s", name)
		}
		total += int64(len(batch))
		batch = batch[:0]
		return nil
	}

	err = s.src.ForEach(ctx, v.EntityType, func(r resource.Resource) error {
		row, ok := rowFor(v.ViewSpec, r)
		if !ok {
			return nil
		}
		batch = append(batch, row)
		if len(batch) >= insertBatchSize {
			return flush()
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	if err := flush(); err != nil {
		return 0, err
	}

	// swap staging in; the empty CREATE covers the first build
	if err := s.ch.Exec(ctx, "CREATE TABLE IF NOT EXISTS "+table+" "+ddl); err != nil {
		return 0, perr.Wrapf(err, perr.ErrorCodeUnavailable, "create table for %s", name)
	}
	if err := s.ch.Exec(ctx, "EXCHANGE TABLES "+staging+" AND "+table); err != nil {
		return 0, perr.Wrapf(err, perr.ErrorCodeUnavailable, "swap tables for %s", name)
	}
	if err := s.ch.Exec(ctx, "DROP TABLE IF EXISTS "+staging); err != nil {
		s.log.Warn().Err(err).Str("view", name).Msg("drop of retired staging table failed")
	}

	if err := s.Repo.TouchRefresh(ctx, name, s.now().UTC()); err != nil {
		return 0, err
	}
	s.cache.Store(name, true)
	s.log.Info().Str("view", name).Int64("rows", total).Msg("view refreshed")
	return total, nil
}

// rowFor projects one source document into a table row.
// Rows without a primary id are skipped, as are rows failing the
// view's baked-in predicates.
func rowFor(v domain.ViewSpec, r resource.Resource) ([]any, bool) {
	vals := map[string]string{}
	for _, f := range v.Fields {
		val, _ := r.PathString(f.Path)
		vals[f.Name] = val
	}

	for _, p := range v.Where {
		f, _ := v.Field(p.Field)
		got := vals[p.Field]
		if f.Text {
			if !clinterm.Matches(p.Value, got) {
				return nil, false
			}
			continue
		}
		if got != p.Value {
			return nil, false
		}
	}

	id := r.ID
	if v.Primary != "" {
		_, id = splitLocal(vals[v.Primary])
	}
	if id == "" {
		return nil, false
	}

	row := []any{id}
	for _, f := range v.Fields {
		switch {
		case f.Ref:
			ref := vals[f.Name]
			_, local := splitLocal(ref)
			row = append(row, ref, local)
		case f.Text:
			// the shadow column feeds batch-side substring matching,
			// so all layers compare the same normalized form
			row = append(row, vals[f.Name], clinterm.Normalize(vals[f.Name]))
		default:
			row = append(row, vals[f.Name])
		}
	}
	return row, true
}

func splitLocal(ref string) (typ, id string) { return resource.SplitRef(ref) }

// Package repo provides the view catalog repository implementation
package repo

import (
	"context"
	stdsql "database/sql"
	"encoding/json"
	"errors"
	"time"

	"researchflow/internal/modkit/repokit"
	perr "researchflow/internal/platform/errors"
	"researchflow/internal/platform/store"
	"researchflow/internal/services/catalog/domain"
)

type binder struct{}

// NewPG constructs a new repo binder for Postgres
func NewPG() repokit.Binder[Storage] { return binder{} }

// Bind implements repokit.Binder
func (binder) Bind(q repokit.Queryer) Storage { return &pg{q: q} }

// Storage defines the view catalog repository
type Storage interface {
	Insert(ctx context.Context, v domain.ViewSpec) (domain.ViewInfo, error)
	Get(ctx context.Context, name string) (domain.ViewInfo, error)
	List(ctx context.Context) ([]domain.ViewInfo, error)
	Exists(ctx context.Context, name string) (bool, error)
	TouchRefresh(ctx context.Context, name string, at time.Time) error
	ClearRefresh(ctx context.Context, name string) error
	Delete(ctx context.Context, name string) error
}

type pg struct{ q repokit.Queryer }

// Insert registers a new view definition, rejecting duplicate names
func (s *pg) Insert(ctx context.Context, v domain.ViewSpec) (domain.ViewInfo, error) {
	fields, err := json.Marshal(v.Fields)
	if err != nil {
		return domain.ViewInfo{}, perr.Wrapf(err, perr.ErrorCodeUnknown, "marshal fields")
	}
	where, err := json.Marshal(v.Where)
	if err != nil {
		return domain.ViewInfo{}, perr.Wrapf(err, perr.ErrorCodeUnknown, "marshal where")
	}

	const sql = `
		INSERT INTO core_views (name, entity_type, fields, where_preds, primary_field, created_at)
		VALUES ($1, $2, $3::jsonb, $4::jsonb, $5, NOW())
		RETURNING created_at
	`
	var createdAt time.Time
	if err := s.q.QueryRow(ctx, sql, v.Name, v.EntityType, fields, where, v.Primary).Scan(&createdAt); err != nil {
		if perr.IsDuplicateKey(err) {
			return domain.ViewInfo{}, perr.DuplicateKeyf("view %q is already registered", v.Name)
		}
		return domain.ViewInfo{}, perr.Wrap(err, perr.ErrorCodeDB, "insert view")
	}
	return domain.ViewInfo{ViewSpec: v, CreatedAt: createdAt}, nil
}

const selectView = `
	SELECT name, entity_type, fields, where_preds, primary_field, created_at, last_refresh_at
	FROM core_views
`

func scanView(r store.Row) (domain.ViewInfo, error) {
	var (
		out    domain.ViewInfo
		fields []byte
		where  []byte
	)
	if err := r.Scan(
		&out.Name, &out.EntityType, &fields, &where, &out.Primary,
		&out.CreatedAt, &out.LastRefreshAt,
	); err != nil {
		return domain.ViewInfo{}, err
	}
	if err := json.Unmarshal(fields, &out.Fields); err != nil {
		return domain.ViewInfo{}, perr.Wrapf(err, perr.ErrorCodeUnknown, "unmarshal fields for %s", out.Name)
	}
	if len(where) > 0 {
		if err := json.Unmarshal(where, &out.Where); err != nil {
			return domain.ViewInfo{}, perr.Wrapf(err, perr.ErrorCodeUnknown, "unmarshal where for %s", out.Name)
		}
	}
	return out, nil
}

// Get loads one view by name
func (s *pg) Get(ctx context.Context, name string) (domain.ViewInfo, error) {
	out, err := store.One(ctx, s.q, scanView, selectView+` WHERE name = $1`, name)
	if err != nil {
		if errors.Is(err, perr.ErrNotFound) {
			return domain.ViewInfo{}, perr.NotFoundf("view %q is not registered", name)
		}
		return domain.ViewInfo{}, perr.WrapIf(err, perr.ErrorCodeDB, "get view")
	}
	return out, nil
}

// List returns all registered views ordered by name
func (s *pg) List(ctx context.Context) ([]domain.ViewInfo, error) {
	out, err := store.Many(ctx, s.q, scanView, selectView+` ORDER BY name`)
	if err != nil {
		return nil, perr.WrapIf(err, perr.ErrorCodeDB, "list views")
	}
	return out, nil
}

// Exists reports whether name is registered
func (s *pg) Exists(ctx context.Context, name string) (bool, error) {
	_, err := store.Scalar[int](ctx, s.q, `SELECT 1 FROM core_views WHERE name = $1`, name)
	if err != nil {
		if errors.Is(err, stdsql.ErrNoRows) {
			return false, nil
		}
		return false, perr.WrapIf(err, perr.ErrorCodeDB, "view exists")
	}
	return true, nil
}

// TouchRefresh records a completed materialization
func (s *pg) TouchRefresh(ctx context.Context, name string, at time.Time) error {
	tag, err := s.q.Exec(ctx, `UPDATE core_views SET last_refresh_at = $2 WHERE name = $1`, name, at)
	if err != nil {
		return perr.Wrap(err, perr.ErrorCodeDB, "touch refresh")
	}
	if tag.RowsAffected() == 0 {
		return perr.NotFoundf("view %q is not registered", name)
	}
	return nil
}

// ClearRefresh forgets the last materialization, marking the view as
// having no derived table
func (s *pg) ClearRefresh(ctx context.Context, name string) error {
	tag, err := s.q.Exec(ctx, `UPDATE core_views SET last_refresh_at = NULL WHERE name = $1`, name)
	if err != nil {
		return perr.Wrap(err, perr.ErrorCodeDB, "clear refresh")
	}
	if tag.RowsAffected() == 0 {
		return perr.NotFoundf("view %q is not registered", name)
	}
	return nil
}

// Delete removes a view definition
func (s *pg) Delete(ctx context.Context, name string) error {
	tag, err := s.q.Exec(ctx, `DELETE FROM core_views WHERE name = $1`, name)
	if err != nil {
		return perr.Wrap(err, perr.ErrorCodeDB, "delete view")
	}
	if tag.RowsAffected() == 0 {
		return perr.NotFoundf("view %q is not registered", name)
	}
	return nil
}

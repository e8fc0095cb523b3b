// Package repo persists capture cursors per entity type
package repo

import (
	"context"
	stdsql "database/sql"
	"errors"
	"time"

	"researchflow/internal/modkit/repokit"
	perr "researchflow/internal/platform/errors"
	"researchflow/internal/platform/store"
)

type binder struct{}

// NewPG constructs a new repo binder for Postgres
func NewPG() repokit.Binder[Storage] { return binder{} }

// Bind implements repokit.Binder
func (binder) Bind(q repokit.Queryer) Storage { return &pg{q: q} }

// Storage defines the checkpoint repository
type Storage interface {
	Last(ctx context.Context, entityType string) (time.Time, bool, error)
	Advance(ctx context.Context, entityType string, to time.Time) error
}

type pg struct{ q repokit.Queryer }

// Last returns the checkpoint for entityType, ok=false when none exists yet
func (s *pg) Last(ctx context.Context, entityType string) (time.Time, bool, error) {
	at, err := store.Scalar[time.Time](ctx, s.q,
		`SELECT last_synced_at FROM core_capture_checkpoints WHERE entity_type = $1`,
		entityType,
	)
	if err != nil {
		if errors.Is(err, stdsql.ErrNoRows) {
			return time.Time{}, false, nil
		}
		return time.Time{}, false, perr.Wrap(err, perr.ErrorCodeDB, "load checkpoint")
	}
	return at, true, nil
}

// Advance moves the checkpoint forward, never backward.
// GREATEST makes a replayed or out-of-order cycle harmless.
func (s *pg) Advance(ctx context.Context, entityType string, to time.Time) error {
	const sql = `
		INSERT INTO core_capture_checkpoints (entity_type, last_synced_at)
		VALUES ($1, $2)
		ON CONFLICT (entity_type) DO UPDATE
		SET last_synced_at = GREATEST(core_capture_checkpoints.last_synced_at, EXCLUDED.last_synced_at)
	`
	if _, err := s.q.Exec(ctx, sql, entityType, to); err != nil {
		return perr.Wrap(err, perr.ErrorCodeDB, "advance checkpoint")
	}
	return nil
}

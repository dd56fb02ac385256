package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/iliyamo/kids-checkin/internal/database"
	"github.com/iliyamo/kids-checkin/internal/model"
)

// FlagRepo stores one system_flags row per child.
type FlagRepo struct {
	db      *sql.DB
	dialect database.Dialect
}

func NewFlagRepo(db *sql.DB, d database.Dialect) *FlagRepo { return &FlagRepo{db: db, dialect: d} }

// Upsert writes the flag for f.ChildID, replacing any previous result.
func (r *FlagRepo) Upsert(ctx context.Context, f *model.SystemFlag) error {
	q := r.dialect.Upsert("system_flags",
		[]string{"child_id", "irregular", "window_start", "window_end", "computed_at"},
		"child_id",
		[]string{"irregular", "window_start", "window_end", "computed_at"})
	_, err := r.db.ExecContext(ctx, q, f.ChildID, f.Irregular, f.WindowStart, f.WindowEnd, f.ComputedAt.UTC())
	return err
}

// GetByChild returns ErrChildNotFound when the job has not produced a flag
// for the child yet.
func (r *FlagRepo) GetByChild(ctx context.Context, childID uint64) (*model.SystemFlag, error) {
	var f model.SystemFlag
	err := r.db.QueryRowContext(ctx,
		"SELECT child_id, irregular, window_start, window_end, computed_at FROM system_flags WHERE child_id = ?", childID).
		Scan(&f.ChildID, &f.Irregular, &f.WindowStart, &f.WindowEnd, &f.ComputedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrChildNotFound
	}
	if err != nil {
		return nil, err
	}
	return &f, nil
}

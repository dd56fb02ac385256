package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/iliyamo/kids-checkin/internal/database"
	"github.com/iliyamo/kids-checkin/internal/model"
)

// SettingsRepo is a small key/value store for admin-editable settings.
type SettingsRepo struct {
	db      *sql.DB
	dialect database.Dialect
}

func NewSettingsRepo(db *sql.DB, d database.Dialect) *SettingsRepo {
	return &SettingsRepo{db: db, dialect: d}
}

func (r *SettingsRepo) List(ctx context.Context) ([]model.Setting, error) {
	rows, err := r.db.QueryContext(ctx, "SELECT setting_key, value, updated_at FROM settings ORDER BY setting_key")
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []model.Setting{}
	for rows.Next() {
		var s model.Setting
		if err := rows.Scan(&s.Key, &s.Value, &s.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func (r *SettingsRepo) Get(ctx context.Context, key string) (model.Setting, error) {
	var s model.Setting
	err := r.db.QueryRowContext(ctx, "SELECT setting_key, value, updated_at FROM settings WHERE setting_key = ?", key).
		Scan(&s.Key, &s.Value, &s.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return s, ErrSettingNotFound
	}
	return s, err
}

// SetMany upserts all values in one transaction.
func (r *SettingsRepo) SetMany(ctx context.Context, values map[string]string) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()
	q := r.dialect.Upsert("settings", []string{"setting_key", "value", "updated_at"}, "setting_key", []string{"value", "updated_at"})
	ts := now()
	for k, v := range values {
		if _, err := tx.ExecContext(ctx, q, k, v, ts); err != nil {
			return err
		}
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	committed = true
	return nil
}

package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/iliyamo/kids-checkin/internal/database"
	"github.com/iliyamo/kids-checkin/internal/model"
)

// TagRepo manages tag_usages and tag_override_logs.  The unique index on
// (usage_date, tag_number) is what keeps a tag from being handed out twice
// on the same day; CreateTx reports a violation as ErrDuplicate.
type TagRepo struct {
	db      *sql.DB
	dialect database.Dialect
}

func NewTagRepo(db *sql.DB, d database.Dialect) *TagRepo { return &TagRepo{db: db, dialect: d} }

const tagUsageColumns = "id, tag_number, usage_date, attendance_id, created_at"

// CreateTx inserts a usage inside the caller's transaction.
func (r *TagRepo) CreateTx(ctx context.Context, tx *sql.Tx, u *model.TagUsage) error {
	if u.CreatedAt.IsZero() {
		u.CreatedAt = now()
	}
	res, err := tx.ExecContext(ctx,
		"INSERT INTO tag_usages (tag_number, usage_date, attendance_id, created_at) VALUES (?,?,?,?)",
		u.TagNumber, u.UsageDate, u.AttendanceID, u.CreatedAt)
	if err != nil {
		if database.IsDuplicate(err) {
			return ErrDuplicate
		}
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	u.ID = uint64(id)
	return nil
}

// GetByDateAndTag returns the active usage of a tag on a date.
func (r *TagRepo) GetByDateAndTag(ctx context.Context, date string, tag int) (*model.TagUsage, error) {
	return r.getByDateAndTag(ctx, r.db, "", date, tag)
}

// GetByDateAndTagTx is GetByDateAndTag inside a transaction; on MySQL the
// row is locked until the transaction ends.
func (r *TagRepo) GetByDateAndTagTx(ctx context.Context, tx *sql.Tx, date string, tag int) (*model.TagUsage, error) {
	return r.getByDateAndTag(ctx, tx, r.dialect.ForUpdate(), date, tag)
}

type queryRower interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (r *TagRepo) getByDateAndTag(ctx context.Context, q queryRower, suffix, date string, tag int) (*model.TagUsage, error) {
	var u model.TagUsage
	err := q.QueryRowContext(ctx,
		"SELECT "+tagUsageColumns+" FROM tag_usages WHERE usage_date = ? AND tag_number = ?"+suffix, date, tag).
		Scan(&u.ID, &u.TagNumber, &u.UsageDate, &u.AttendanceID, &u.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrTagUsageNotFound
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// DeleteTx removes a usage by id.  It returns ErrTagUsageNotFound when the
// row is already gone.
func (r *TagRepo) DeleteTx(ctx context.Context, tx *sql.Tx, id uint64) error {
	res, err := tx.ExecContext(ctx, "DELETE FROM tag_usages WHERE id = ?", id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrTagUsageNotFound
	}
	return nil
}

// CreateOverrideLogTx records an override inside the caller's transaction.
func (r *TagRepo) CreateOverrideLogTx(ctx context.Context, tx *sql.Tx, l *model.TagOverrideLog) error {
	if l.CreatedAt.IsZero() {
		l.CreatedAt = now()
	}
	res, err := tx.ExecContext(ctx,
		`INSERT INTO tag_override_logs (tag_number, usage_date, previous_usage_id, new_usage_id, overridden_by, created_at)
		 VALUES (?,?,?,?,?,?)`,
		l.TagNumber, l.UsageDate, l.PreviousUsageID, l.NewUsageID, nullable(l.OverriddenBy), l.CreatedAt)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	l.ID = uint64(id)
	return nil
}

// ListOverrideLogs returns the overrides recorded for a date, oldest first.
func (r *TagRepo) ListOverrideLogs(ctx context.Context, date string) ([]*model.TagOverrideLog, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, tag_number, usage_date, previous_usage_id, new_usage_id, overridden_by, created_at
		 FROM tag_override_logs WHERE usage_date = ? ORDER BY id`, date)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []*model.TagOverrideLog{}
	for rows.Next() {
		var (
			l  model.TagOverrideLog
			by sql.NullInt64
		)
		if err := rows.Scan(&l.ID, &l.TagNumber, &l.UsageDate, &l.PreviousUsageID, &l.NewUsageID, &by, &l.CreatedAt); err != nil {
			return nil, err
		}
		l.OverriddenBy = uintPtr(by)
		out = append(out, &l)
	}
	return out, rows.Err()
}

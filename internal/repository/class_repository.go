package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/iliyamo/kids-checkin/internal/database"
	"github.com/iliyamo/kids-checkin/internal/model"
)

// ClassRepo encapsulates queries on the classes table.  Names are unique.
type ClassRepo struct {
	db *sql.DB
}

func NewClassRepo(db *sql.DB) *ClassRepo { return &ClassRepo{db: db} }

const classColumns = "id, name, min_age, max_age, created_at, updated_at"

func (r *ClassRepo) Create(ctx context.Context, c *model.Class) error {
	ts := now()
	res, err := r.db.ExecContext(ctx,
		"INSERT INTO classes (name, min_age, max_age, created_at, updated_at) VALUES (?,?,?,?,?)",
		c.Name, nullable(c.MinAge), nullable(c.MaxAge), ts, ts)
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
	c.ID = uint64(id)
	c.CreatedAt, c.UpdatedAt = ts, ts
	return nil
}

func (r *ClassRepo) GetByID(ctx context.Context, id uint64) (*model.Class, error) {
	c, err := scanClass(r.db.QueryRowContext(ctx, "SELECT "+classColumns+" FROM classes WHERE id = ?", id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrClassNotFound
	}
	return c, err
}

func (r *ClassRepo) List(ctx context.Context) ([]*model.Class, error) {
	rows, err := r.db.QueryContext(ctx, "SELECT "+classColumns+" FROM classes ORDER BY name")
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []*model.Class{}
	for rows.Next() {
		c, err := scanClass(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (r *ClassRepo) Update(ctx context.Context, c *model.Class) error {
	ts := now()
	res, err := r.db.ExecContext(ctx,
		"UPDATE classes SET name = ?, min_age = ?, max_age = ?, updated_at = ? WHERE id = ?",
		c.Name, nullable(c.MinAge), nullable(c.MaxAge), ts, c.ID)
	if err != nil {
		if database.IsDuplicate(err) {
			return ErrDuplicate
		}
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrClassNotFound
	}
	c.UpdatedAt = ts
	return nil
}

// Delete refuses with ErrConflict while children are still assigned.
func (r *ClassRepo) Delete(ctx context.Context, id uint64) error {
	var n int
	if err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM children WHERE class_id = ? AND archived = 0", id).Scan(&n); err != nil {
		return err
	}
	if n > 0 {
		return ErrConflict
	}
	res, err := r.db.ExecContext(ctx, "DELETE FROM classes WHERE id = ?", id)
	if err != nil {
		return err
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		return ErrClassNotFound
	}
	return nil
}

func scanClass(s rowScanner) (*model.Class, error) {
	var (
		c              model.Class
		minAge, maxAge sql.NullInt64
	)
	if err := s.Scan(&c.ID, &c.Name, &minAge, &maxAge, &c.CreatedAt, &c.UpdatedAt); err != nil {
		return nil, err
	}
	c.MinAge, c.MaxAge = intPtr(minAge), intPtr(maxAge)
	return &c, nil
}

package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/iliyamo/kids-checkin/internal/model"
)

// ParentRepo encapsulates queries on the parents table.
type ParentRepo struct {
	db *sql.DB
}

func NewParentRepo(db *sql.DB) *ParentRepo { return &ParentRepo{db: db} }

const parentColumns = "id, first_name, last_name, phone, email, created_at, updated_at"

func (r *ParentRepo) Create(ctx context.Context, p *model.Parent) error {
	ts := now()
	res, err := r.db.ExecContext(ctx,
		"INSERT INTO parents (first_name, last_name, phone, email, created_at, updated_at) VALUES (?,?,?,?,?,?)",
		p.FirstName, p.LastName, p.Phone, p.Email, ts, ts)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	p.ID = uint64(id)
	p.CreatedAt, p.UpdatedAt = ts, ts
	return nil
}

func (r *ParentRepo) GetByID(ctx context.Context, id uint64) (*model.Parent, error) {
	var p model.Parent
	err := r.db.QueryRowContext(ctx, "SELECT "+parentColumns+" FROM parents WHERE id = ?", id).
		Scan(&p.ID, &p.FirstName, &p.LastName, &p.Phone, &p.Email, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrParentNotFound
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *ParentRepo) List(ctx context.Context) ([]*model.Parent, error) {
	rows, err := r.db.QueryContext(ctx, "SELECT "+parentColumns+" FROM parents ORDER BY last_name, first_name, id")
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []*model.Parent{}
	for rows.Next() {
		p := new(model.Parent)
		if err := rows.Scan(&p.ID, &p.FirstName, &p.LastName, &p.Phone, &p.Email, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (r *ParentRepo) Update(ctx context.Context, p *model.Parent) error {
	ts := now()
	res, err := r.db.ExecContext(ctx,
		"UPDATE parents SET first_name = ?, last_name = ?, phone = ?, email = ?, updated_at = ? WHERE id = ?",
		p.FirstName, p.LastName, p.Phone, p.Email, ts, p.ID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrParentNotFound
	}
	p.UpdatedAt = ts
	return nil
}

// Delete removes a parent; linked children lose their parent_id.
func (r *ParentRepo) Delete(ctx context.Context, id uint64) error {
	res, err := r.db.ExecContext(ctx, "DELETE FROM parents WHERE id = ?", id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrParentNotFound
	}
	return nil
}

package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/iliyamo/kids-checkin/internal/model"
)

// ChildRepo encapsulates queries on the children table.
type ChildRepo struct {
	db *sql.DB
}

func NewChildRepo(db *sql.DB) *ChildRepo { return &ChildRepo{db: db} }

// ChildFilter narrows List.  Search matches first or last name.
type ChildFilter struct {
	IncludeArchived bool
	Search          string
	ClassID         *uint64
	ParentID        *uint64
}

// IrregularChild is a child flagged by the weekly job, with the window
// that was checked.
type IrregularChild struct {
	model.Child
	WindowStart string `json:"window_start"`
	WindowEnd   string `json:"window_end"`
}

const childColumns = `id, first_name, last_name, birth_date, parent_id, class_id,
	allergies, notes, archived, created_at, updated_at`

// Create inserts a child and fills in ID and timestamps.
func (r *ChildRepo) Create(ctx context.Context, c *model.Child) error {
	ts := now()
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO children (first_name, last_name, birth_date, parent_id, class_id, allergies, notes, archived, created_at, updated_at)
		 VALUES (?,?,?,?,?,?,?,?,?,?)`,
		c.FirstName, c.LastName, nullable(c.BirthDate), nullable(c.ParentID), nullable(c.ClassID),
		c.Allergies, c.Notes, c.Archived, ts, ts)
	if err != nil {
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

// GetByID returns ErrChildNotFound when no row matches.
func (r *ChildRepo) GetByID(ctx context.Context, id uint64) (*model.Child, error) {
	row := r.db.QueryRowContext(ctx, "SELECT "+childColumns+" FROM children WHERE id = ?", id)
	c, err := scanChild(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrChildNotFound
	}
	return c, err
}

// List returns children ordered by last then first name.
func (r *ChildRepo) List(ctx context.Context, f ChildFilter) ([]*model.Child, error) {
	var (
		where []string
		args  []any
	)
	if !f.IncludeArchived {
		where = append(where, "archived = 0")
	}
	if s := strings.TrimSpace(f.Search); s != "" {
		where = append(where, "(first_name LIKE ? OR last_name LIKE ?)")
		args = append(args, "%"+s+"%", "%"+s+"%")
	}
	if f.ClassID != nil {
		where = append(where, "class_id = ?")
		args = append(args, *f.ClassID)
	}
	if f.ParentID != nil {
		where = append(where, "parent_id = ?")
		args = append(args, *f.ParentID)
	}
	q := "SELECT " + childColumns + " FROM children"
	if len(where) > 0 {
		q += " WHERE " + strings.Join(where, " AND ")
	}
	q += " ORDER BY last_name, first_name, id"
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []*model.Child{}
	for rows.Next() {
		c, err := scanChild(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// Update overwrites the editable fields of a child.
func (r *ChildRepo) Update(ctx context.Context, c *model.Child) error {
	ts := now()
	res, err := r.db.ExecContext(ctx,
		`UPDATE children SET first_name = ?, last_name = ?, birth_date = ?, parent_id = ?, class_id = ?,
		        allergies = ?, notes = ?, updated_at = ?
		 WHERE id = ?`,
		c.FirstName, c.LastName, nullable(c.BirthDate), nullable(c.ParentID), nullable(c.ClassID),
		c.Allergies, c.Notes, ts, c.ID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrChildNotFound
	}
	c.UpdatedAt = ts
	return nil
}

// SetArchived flips the archival flag.
func (r *ChildRepo) SetArchived(ctx context.Context, id uint64, archived bool) error {
	res, err := r.db.ExecContext(ctx,
		"UPDATE children SET archived = ?, updated_at = ? WHERE id = ?", archived, now(), id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrChildNotFound
	}
	return nil
}

// Delete removes a child.  Attendance rows keep existing with child_id set
// to NULL; archiving is preferred when history should stay attributed.
func (r *ChildRepo) Delete(ctx context.Context, id uint64) error {
	res, err := r.db.ExecContext(ctx, "DELETE FROM children WHERE id = ?", id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrChildNotFound
	}
	return nil
}

// ListActiveIDs returns the ids of all non-archived children.
func (r *ChildRepo) ListActiveIDs(ctx context.Context) ([]uint64, error) {
	rows, err := r.db.QueryContext(ctx, "SELECT id FROM children WHERE archived = 0 ORDER BY id")
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var ids []uint64
	for rows.Next() {
		var id uint64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// ListIrregular returns non-archived children whose latest flag is set.
func (r *ChildRepo) ListIrregular(ctx context.Context) ([]IrregularChild, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT c.id, c.first_name, c.last_name, c.birth_date, c.parent_id, c.class_id,
		        c.allergies, c.notes, c.archived, c.created_at, c.updated_at,
		        f.window_start, f.window_end
		 FROM children c
		 JOIN system_flags f ON f.child_id = c.id
		 WHERE f.irregular = 1 AND c.archived = 0
		 ORDER BY c.last_name, c.first_name, c.id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []IrregularChild{}
	for rows.Next() {
		var (
			ic                IrregularChild
			birth             sql.NullString
			parentID, classID sql.NullInt64
		)
		if err := rows.Scan(&ic.ID, &ic.FirstName, &ic.LastName, &birth, &parentID, &classID,
			&ic.Allergies, &ic.Notes, &ic.Archived, &ic.CreatedAt, &ic.UpdatedAt,
			&ic.WindowStart, &ic.WindowEnd); err != nil {
			return nil, err
		}
		ic.BirthDate, ic.ParentID, ic.ClassID = strPtr(birth), uintPtr(parentID), uintPtr(classID)
		out = append(out, ic)
	}
	return out, rows.Err()
}

func scanChild(s rowScanner) (*model.Child, error) {
	var (
		c                 model.Child
		birth             sql.NullString
		parentID, classID sql.NullInt64
	)
	if err := s.Scan(&c.ID, &c.FirstName, &c.LastName, &birth, &parentID, &classID,
		&c.Allergies, &c.Notes, &c.Archived, &c.CreatedAt, &c.UpdatedAt); err != nil {
		return nil, err
	}
	c.BirthDate, c.ParentID, c.ClassID = strPtr(birth), uintPtr(parentID), uintPtr(classID)
	return &c, nil
}

package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/iliyamo/kids-checkin/internal/model"
)

// AttendanceRepo provides access to check-in records.  service_date is
// stored as YYYY-MM-DD so range filters compare as strings.
type AttendanceRepo struct {
	db *sql.DB
}

func NewAttendanceRepo(db *sql.DB) *AttendanceRepo { return &AttendanceRepo{db: db} }

// DB exposes the pool so callers can open a transaction spanning several
// repositories.
func (r *AttendanceRepo) DB() *sql.DB { return r.db }

// ExportRow is an attendance record joined with the child's name.
type ExportRow struct {
	model.Attendance
	FirstName string
	LastName  string
}

const attendanceColumns = `a.id, a.child_id, a.class_name, a.tag_number, a.security_code, a.service_date,
	a.checked_in_at, a.checked_out_at, a.checked_in_by, a.checked_out_by`

// CreateTx inserts a record inside the caller's transaction and populates
// its ID.
func (r *AttendanceRepo) CreateTx(ctx context.Context, tx *sql.Tx, a *model.Attendance) error {
	res, err := tx.ExecContext(ctx,
		`INSERT INTO attendance (child_id, class_name, tag_number, security_code, service_date, checked_in_at, checked_in_by)
		 VALUES (?,?,?,?,?,?,?)`,
		nullable(a.ChildID), a.ClassName, a.TagNumber, a.SecurityCode, a.ServiceDate, a.CheckedInAt.UTC(), nullable(a.CheckedInBy))
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	a.ID = uint64(id)
	return nil
}

func (r *AttendanceRepo) GetByID(ctx context.Context, id uint64) (*model.Attendance, error) {
	a, err := scanAttendance(r.db.QueryRowContext(ctx, "SELECT "+attendanceColumns+" FROM attendance a WHERE a.id = ?", id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrAttendanceNotFound
	}
	return a, err
}

// ListByDate returns the records of one service day in check-in order.
func (r *AttendanceRepo) ListByDate(ctx context.Context, date string) ([]*model.Attendance, error) {
	return r.list(ctx, "SELECT "+attendanceColumns+" FROM attendance a WHERE a.service_date = ? ORDER BY a.checked_in_at, a.id", date)
}

// ListByChild returns a child's most recent records, newest first.
func (r *AttendanceRepo) ListByChild(ctx context.Context, childID uint64, limit int) ([]*model.Attendance, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	return r.list(ctx, "SELECT "+attendanceColumns+" FROM attendance a WHERE a.child_id = ? ORDER BY a.service_date DESC, a.id DESC LIMIT ?", childID, limit)
}

// MarkCheckedOut stamps the checkout time only if the record has not been
// checked out yet.  It returns false when another checkout got there first.
func (r *AttendanceRepo) MarkCheckedOut(ctx context.Context, id uint64, at time.Time, by *uint64) (bool, error) {
	res, err := r.db.ExecContext(ctx,
		"UPDATE attendance SET checked_out_at = ?, checked_out_by = ? WHERE id = ? AND checked_out_at IS NULL",
		at.UTC(), nullable(by), id)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// CountForChildOnDates counts a child's records on any of the given dates.
func (r *AttendanceRepo) CountForChildOnDates(ctx context.Context, childID uint64, dates []string) (int, error) {
	if len(dates) == 0 {
		return 0, nil
	}
	args := make([]any, 0, len(dates)+1)
	args = append(args, childID)
	for _, d := range dates {
		args = append(args, d)
	}
	var n int
	err := r.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM attendance WHERE child_id = ? AND service_date IN ("+placeholders(len(dates))+")",
		args...).Scan(&n)
	return n, err
}

// ForEachInRange streams records between from and to (inclusive) to fn,
// stopping at the first error fn returns.
func (r *AttendanceRepo) ForEachInRange(ctx context.Context, from, to string, fn func(ExportRow) error) error {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+attendanceColumns+`, COALESCE(c.first_name, ''), COALESCE(c.last_name, '')
		 FROM attendance a
		 LEFT JOIN children c ON c.id = a.child_id
		 WHERE a.service_date >= ? AND a.service_date <= ?
		 ORDER BY a.service_date, a.checked_in_at, a.id`, from, to)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var (
			row              ExportRow
			childID, in, out sql.NullInt64
			checkedOut       sql.NullTime
		)
		if err := rows.Scan(&row.ID, &childID, &row.ClassName, &row.TagNumber, &row.SecurityCode, &row.ServiceDate,
			&row.CheckedInAt, &checkedOut, &in, &out, &row.FirstName, &row.LastName); err != nil {
			return err
		}
		row.ChildID, row.CheckedOutAt, row.CheckedInBy, row.CheckedOutBy = uintPtr(childID), timePtr(checkedOut), uintPtr(in), uintPtr(out)
		if err := fn(row); err != nil {
			return err
		}
	}
	return rows.Err()
}

func (r *AttendanceRepo) list(ctx context.Context, q string, args ...any) ([]*model.Attendance, error) {
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []*model.Attendance{}
	for rows.Next() {
		a, err := scanAttendance(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func scanAttendance(s rowScanner) (*model.Attendance, error) {
	var (
		a                model.Attendance
		childID, in, out sql.NullInt64
		checkedOut       sql.NullTime
	)
	if err := s.Scan(&a.ID, &childID, &a.ClassName, &a.TagNumber, &a.SecurityCode, &a.ServiceDate,
		&a.CheckedInAt, &checkedOut, &in, &out); err != nil {
		return nil, err
	}
	a.CheckedInAt = a.CheckedInAt.UTC()
	a.ChildID, a.CheckedOutAt, a.CheckedInBy, a.CheckedOutBy = uintPtr(childID), timePtr(checkedOut), uintPtr(in), uintPtr(out)
	return &a, nil
}

package repository

import (
	"context"
	"database/sql"
)

// StatsRepo runs the aggregate queries behind /v1/stats.
type StatsRepo struct {
	db *sql.DB
}

func NewStatsRepo(db *sql.DB) *StatsRepo { return &StatsRepo{db: db} }

// Summary is a snapshot for the dashboard.
type Summary struct {
	Date               string `json:"date"`
	TotalChildren      int    `json:"total_children"`
	ActiveChildren     int    `json:"active_children"`
	IrregularChildren  int    `json:"irregular_children"`
	CheckedInToday     int    `json:"checked_in_today"`
	CurrentlyCheckedIn int    `json:"currently_checked_in"`
	OverridesToday     int    `json:"overrides_today"`
}

// DateCount is attendance on one service day.  Walk-ins have no child id.
type DateCount struct {
	Date       string `json:"date"`
	Total      int    `json:"total"`
	Registered int    `json:"registered"`
	WalkIns    int    `json:"walk_ins"`
}

// ClassCount is attendance per class over a range.
type ClassCount struct {
	ClassName string `json:"class_name"`
	Total     int    `json:"total"`
}

func (r *StatsRepo) Summary(ctx context.Context, today string) (Summary, error) {
	s := Summary{Date: today}
	queries := []struct {
		dst  *int
		q    string
		args []any
	}{
		{&s.TotalChildren, "SELECT COUNT(*) FROM children", nil},
		{&s.ActiveChildren, "SELECT COUNT(*) FROM children WHERE archived = 0", nil},
		{&s.IrregularChildren, `SELECT COUNT(*) FROM system_flags f JOIN children c ON c.id = f.child_id
			WHERE f.irregular = 1 AND c.archived = 0`, nil},
		{&s.CheckedInToday, "SELECT COUNT(*) FROM attendance WHERE service_date = ?", []any{today}},
		{&s.CurrentlyCheckedIn, "SELECT COUNT(*) FROM attendance WHERE service_date = ? AND checked_out_at IS NULL", []any{today}},
		{&s.OverridesToday, "SELECT COUNT(*) FROM tag_override_logs WHERE usage_date = ?", []any{today}},
	}
	for _, q := range queries {
		if err := r.db.QueryRowContext(ctx, q.q, q.args...).Scan(q.dst); err != nil {
			return s, err
		}
	}
	return s, nil
}

// AttendanceByDate groups records between from and to (inclusive).
func (r *StatsRepo) AttendanceByDate(ctx context.Context, from, to string) ([]DateCount, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT service_date, COUNT(*),
		        SUM(CASE WHEN child_id IS NULL THEN 0 ELSE 1 END),
		        SUM(CASE WHEN child_id IS NULL THEN 1 ELSE 0 END)
		 FROM attendance WHERE service_date >= ? AND service_date <= ?
		 GROUP BY service_date ORDER BY service_date`, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []DateCount{}
	for rows.Next() {
		var d DateCount
		if err := rows.Scan(&d.Date, &d.Total, &d.Registered, &d.WalkIns); err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

// AttendanceByClass groups records between from and to by class name.
func (r *StatsRepo) AttendanceByClass(ctx context.Context, from, to string) ([]ClassCount, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT class_name, COUNT(*) FROM attendance
		 WHERE service_date >= ? AND service_date <= ?
		 GROUP BY class_name ORDER BY COUNT(*) DESC, class_name`, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []ClassCount{}
	for rows.Next() {
		var c ClassCount
		if err := rows.Scan(&c.ClassName, &c.Total); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/kids-checkin/internal/database"
	"github.com/iliyamo/kids-checkin/internal/database/databasetest"
	"github.com/iliyamo/kids-checkin/internal/model"
	"github.com/iliyamo/kids-checkin/internal/repository"
)

func TestRecentSundays(t *testing.T) {
	svc := NewIrregularityService(nil, nil, nil, nil)

	// Monday 2024-06-03
	got := svc.RecentSundays(time.Date(2024, 6, 3, 3, 0, 0, 0, time.UTC))
	assert.Equal(t, []string{"2024-06-02", "2024-05-26", "2024-05-19", "2024-05-12"}, got)

	// a Sunday counts itself
	got = svc.RecentSundays(time.Date(2024, 6, 2, 23, 0, 0, 0, time.UTC))
	assert.Equal(t, "2024-06-02", got[0])

	// Saturday
	got = svc.RecentSundays(time.Date(2024, 6, 8, 12, 0, 0, 0, time.UTC))
	assert.Equal(t, "2024-06-02", got[0])
	assert.Equal(t, "2024-05-12", got[3])
}

func insertAttendance(t *testing.T, db *sql.DB, childID uint64, date string) {
	t.Helper()
	ctx := context.Background()
	tx, err := db.BeginTx(ctx, nil)
	require.NoError(t, err)
	require.NoError(t, repository.NewAttendanceRepo(db).CreateTx(ctx, tx, &model.Attendance{
		ChildID: &childID, ClassName: "K", TagNumber: 1, SecurityCode: "0000", ServiceDate: date, CheckedInAt: time.Now(),
	}))
	require.NoError(t, tx.Commit())
}

func TestIrregularityRun(t *testing.T) {
	db := databasetest.New(t)
	ctx := context.Background()
	children := repository.NewChildRepo(db)
	flags := repository.NewFlagRepo(db, database.SQLite)
	svc := NewIrregularityService(children, repository.NewAttendanceRepo(db), flags, nil)
	svc.Now = func() time.Time { return time.Date(2024, 6, 3, 3, 0, 0, 0, time.UTC) }

	mk := func(name string) uint64 {
		c := &model.Child{FirstName: name, LastName: "Test"}
		require.NoError(t, children.Create(ctx, c))
		return c.ID
	}
	regular := mk("Regular")
	oldest := mk("Oldest")
	absent := mk("Absent")
	outside := mk("Outside")
	archived := mk("Archived")
	require.NoError(t, children.SetArchived(ctx, archived, true))

	insertAttendance(t, db, regular, "2024-06-02")
	insertAttendance(t, db, oldest, "2024-05-12")
	insertAttendance(t, db, outside, "2024-05-05") // before the window
	insertAttendance(t, db, outside, "2024-05-29") // a Wednesday

	sum, err := svc.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, RunSummary{WindowStart: "2024-05-12", WindowEnd: "2024-06-02", Processed: 4, Irregular: 2}, sum)

	for id, want := range map[uint64]bool{regular: false, oldest: false, absent: true, outside: true} {
		f, err := flags.GetByChild(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, want, f.Irregular, "child %d", id)
	}
	_, err = flags.GetByChild(ctx, archived)
	assert.ErrorIs(t, err, repository.ErrChildNotFound)

	// attending brings the child back
	insertAttendance(t, db, absent, "2024-05-26")
	sum, err = svc.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, sum.Irregular)
}

func TestIrregularityRunRefusesOverlap(t *testing.T) {
	db := databasetest.New(t)
	svc := NewIrregularityService(repository.NewChildRepo(db), repository.NewAttendanceRepo(db),
		repository.NewFlagRepo(db, database.SQLite), nil)

	svc.running.Lock()
	_, err := svc.Run(context.Background())
	assert.ErrorIs(t, err, ErrJobRunning)
	svc.running.Unlock()

	_, err = svc.Run(context.Background())
	assert.NoError(t, err)
}

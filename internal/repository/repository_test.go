package repository

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
)

func newChild(t *testing.T, repo *ChildRepo, first, last string) *model.Child {
	t.Helper()
	c := &model.Child{FirstName: first, LastName: last}
	require.NoError(t, repo.Create(context.Background(), c))
	return c
}

// checkIn writes an attendance row plus its tag usage the way the
// check-in service does.
func checkIn(t *testing.T, db *sql.DB, childID *uint64, tag int, date string) (*model.Attendance, *model.TagUsage) {
	t.Helper()
	ctx := context.Background()
	tx, err := db.BeginTx(ctx, nil)
	require.NoError(t, err)
	defer func() { _ = tx.Rollback() }()

	a := &model.Attendance{ChildID: childID, ClassName: "Toddlers", TagNumber: tag, SecurityCode: "1234",
		ServiceDate: date, CheckedInAt: time.Now().UTC()}
	require.NoError(t, NewAttendanceRepo(db).CreateTx(ctx, tx, a))
	u := &model.TagUsage{TagNumber: tag, UsageDate: date, AttendanceID: a.ID}
	require.NoError(t, NewTagRepo(db, database.SQLite).CreateTx(ctx, tx, u))
	require.NoError(t, tx.Commit())
	return a, u
}

func TestUserRepo(t *testing.T) {
	db := databasetest.New(t)
	repo := NewUserRepo(db)
	ctx := context.Background()

	id, err := repo.Create(ctx, " Admin@Church.org ", "secret123", "Admin", model.RoleAdmin, 4)
	require.NoError(t, err)

	_, err = repo.Create(ctx, "admin@church.org", "other", "Dup", model.RoleVolunteer, 4)
	assert.ErrorIs(t, err, ErrEmailExists)

	u, err := repo.GetByEmail(ctx, "ADMIN@church.org")
	require.NoError(t, err)
	assert.Equal(t, id, u.ID)
	assert.True(t, u.IsActive)
	assert.NotEqual(t, "secret123", u.PasswordHash)

	require.NoError(t, repo.SetActive(ctx, id, false))
	u, err = repo.GetByID(ctx, id)
	require.NoError(t, err)
	assert.False(t, u.IsActive)

	assert.ErrorIs(t, repo.SetActive(ctx, 999, true), ErrUserNotFound)
	_, err = repo.GetByID(ctx, 999)
	assert.ErrorIs(t, err, ErrUserNotFound)

	users, err := repo.List(ctx)
	require.NoError(t, err)
	assert.Len(t, users, 1)
}

func TestTokenRepo(t *testing.T) {
	db := databasetest.New(t)
	ctx := context.Background()
	uid, err := NewUserRepo(db).Create(ctx, "v@church.org", "pw", "V", model.RoleVolunteer, 4)
	require.NoError(t, err)

	tokens := NewTokenRepo(db)
	require.NoError(t, tokens.StoreRefresh(ctx, uid, "live", time.Now().Add(time.Hour)))
	require.NoError(t, tokens.StoreRefresh(ctx, uid, "stale", time.Now().Add(-time.Hour)))

	require.NoError(t, tokens.StoreRefresh(ctx, uid, "other", time.Now().Add(time.Hour)))

	got, err := tokens.ValidateRefresh(ctx, "live")
	require.NoError(t, err)
	assert.Equal(t, uid, got)

	_, err = tokens.ValidateRefresh(ctx, "stale")
	assert.ErrorIs(t, err, ErrRefreshInvalid)
	_, err = tokens.ValidateRefresh(ctx, "unknown")
	assert.ErrorIs(t, err, ErrRefreshInvalid)

	got, err = tokens.ConsumeRefresh(ctx, "live")
	require.NoError(t, err)
	assert.Equal(t, uid, got)
	_, err = tokens.ConsumeRefresh(ctx, "live")
	assert.ErrorIs(t, err, ErrRefreshInvalid)

	require.NoError(t, tokens.RevokeAllForUser(ctx, uid))
	_, err = tokens.ValidateRefresh(ctx, "other")
	assert.ErrorIs(t, err, ErrRefreshInvalid)

	n, err := tokens.PurgeStale(ctx, time.Now())
	require.NoError(t, err)
	assert.EqualValues(t, 3, n)
}

func TestChildRepo_FilterArchiveDelete(t *testing.T) {
	db := databasetest.New(t)
	ctx := context.Background()
	children := NewChildRepo(db)
	classes := NewClassRepo(db)

	cls := &model.Class{Name: "Toddlers"}
	require.NoError(t, classes.Create(ctx, cls))

	a := &model.Child{FirstName: "Ada", LastName: "Lovelace", ClassID: &cls.ID}
	require.NoError(t, children.Create(ctx, a))
	b := newChild(t, children, "Alan", "Turing")

	list, err := children.List(ctx, ChildFilter{Search: "love"})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, a.ID, list[0].ID)

	list, err = children.List(ctx, ChildFilter{ClassID: &cls.ID})
	require.NoError(t, err)
	require.Len(t, list, 1)

	assert.ErrorIs(t, classes.Delete(ctx, cls.ID), ErrConflict)

	require.NoError(t, children.SetArchived(ctx, a.ID, true))
	list, err = children.List(ctx, ChildFilter{})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, b.ID, list[0].ID)

	list, err = children.List(ctx, ChildFilter{IncludeArchived: true})
	require.NoError(t, err)
	assert.Len(t, list, 2)

	ids, err := children.ListActiveIDs(ctx)
	require.NoError(t, err)
	assert.Equal(t, []uint64{b.ID}, ids)

	// archived children no longer block the class
	require.NoError(t, classes.Delete(ctx, cls.ID))
	got, err := children.GetByID(ctx, a.ID)
	require.NoError(t, err)
	assert.Nil(t, got.ClassID)
	assert.True(t, got.Archived)

	require.NoError(t, children.Delete(ctx, b.ID))
	_, err = children.GetByID(ctx, b.ID)
	assert.ErrorIs(t, err, ErrChildNotFound)
	assert.ErrorIs(t, children.Delete(ctx, b.ID), ErrChildNotFound)
}

func TestParentRepo_DeleteUnlinksChildren(t *testing.T) {
	db := databasetest.New(t)
	ctx := context.Background()
	parents := NewParentRepo(db)
	children := NewChildRepo(db)

	p := &model.Parent{FirstName: "Grace", LastName: "Hopper", Phone: "555-0100"}
	require.NoError(t, parents.Create(ctx, p))
	c := &model.Child{FirstName: "Kid", LastName: "Hopper", ParentID: &p.ID}
	require.NoError(t, children.Create(ctx, c))

	p.Phone = "555-0199"
	require.NoError(t, parents.Update(ctx, p))
	got, err := parents.GetByID(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, "555-0199", got.Phone)

	require.NoError(t, parents.Delete(ctx, p.ID))
	kid, err := children.GetByID(ctx, c.ID)
	require.NoError(t, err)
	assert.Nil(t, kid.ParentID)
	assert.ErrorIs(t, parents.Delete(ctx, p.ID), ErrParentNotFound)
}

func TestClassRepo_DuplicateName(t *testing.T) {
	db := databasetest.New(t)
	ctx := context.Background()
	classes := NewClassRepo(db)

	minAge, maxAge := 2, 4
	require.NoError(t, classes.Create(ctx, &model.Class{Name: "Toddlers", MinAge: &minAge, MaxAge: &maxAge}))
	assert.ErrorIs(t, classes.Create(ctx, &model.Class{Name: "Toddlers"}), ErrDuplicate)

	list, err := classes.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	require.NotNil(t, list[0].MinAge)
	assert.Equal(t, 2, *list[0].MinAge)
}

func TestTagRepo_UniquePerDate(t *testing.T) {
	db := databasetest.New(t)
	ctx := context.Background()
	tags := NewTagRepo(db, database.SQLite)

	_, first := checkIn(t, db, nil, 42, "2024-06-02")

	// same tag, other date is fine
	checkIn(t, db, nil, 42, "2024-06-09")

	tx, err := db.BeginTx(ctx, nil)
	require.NoError(t, err)
	a := &model.Attendance{ClassName: "K", TagNumber: 42, SecurityCode: "1", ServiceDate: "2024-06-02", CheckedInAt: time.Now()}
	require.NoError(t, NewAttendanceRepo(db).CreateTx(ctx, tx, a))
	err = tags.CreateTx(ctx, tx, &model.TagUsage{TagNumber: 42, UsageDate: "2024-06-02", AttendanceID: a.ID})
	assert.ErrorIs(t, err, ErrDuplicate)
	require.NoError(t, tx.Rollback())

	got, err := tags.GetByDateAndTag(ctx, "2024-06-02", 42)
	require.NoError(t, err)
	assert.Equal(t, first.ID, got.ID)

	_, err = tags.GetByDateAndTag(ctx, "2024-06-02", 7)
	assert.ErrorIs(t, err, ErrTagUsageNotFound)
}

func TestTagRepo_DeleteAndOverrideLog(t *testing.T) {
	db := databasetest.New(t)
	ctx := context.Background()
	tags := NewTagRepo(db, database.SQLite)
	_, usage := checkIn(t, db, nil, 5, "2024-06-02")

	tx, err := db.BeginTx(ctx, nil)
	require.NoError(t, err)
	locked, err := tags.GetByDateAndTagTx(ctx, tx, "2024-06-02", 5)
	require.NoError(t, err)
	require.NoError(t, tags.DeleteTx(ctx, tx, locked.ID))
	assert.ErrorIs(t, tags.DeleteTx(ctx, tx, locked.ID), ErrTagUsageNotFound)
	require.NoError(t, tags.CreateOverrideLogTx(ctx, tx, &model.TagOverrideLog{
		TagNumber: 5, UsageDate: "2024-06-02", PreviousUsageID: usage.ID, NewUsageID: usage.ID + 1,
	}))
	require.NoError(t, tx.Commit())

	logs, err := tags.ListOverrideLogs(ctx, "2024-06-02")
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Equal(t, usage.ID, logs[0].PreviousUsageID)
	assert.Nil(t, logs[0].OverriddenBy)
}

func TestAttendanceRepo_MarkCheckedOutOnce(t *testing.T) {
	db := databasetest.New(t)
	ctx := context.Background()
	repo := NewAttendanceRepo(db)
	a, _ := checkIn(t, db, nil, 1, "2024-06-02")

	ok, err := repo.MarkCheckedOut(ctx, a.ID, time.Now(), nil)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = repo.MarkCheckedOut(ctx, a.ID, time.Now(), nil)
	require.NoError(t, err)
	assert.False(t, ok)

	got, err := repo.GetByID(ctx, a.ID)
	require.NoError(t, err)
	assert.True(t, got.CheckedOut())

	_, err = repo.GetByID(ctx, 999)
	assert.ErrorIs(t, err, ErrAttendanceNotFound)
}

func TestAttendanceRepo_QueriesByChildAndRange(t *testing.T) {
	db := databasetest.New(t)
	ctx := context.Background()
	repo := NewAttendanceRepo(db)
	child := newChild(t, NewChildRepo(db), "Ada", "Lovelace")

	checkIn(t, db, &child.ID, 1, "2024-05-26")
	checkIn(t, db, &child.ID, 1, "2024-06-02")
	checkIn(t, db, nil, 2, "2024-06-02")

	n, err := repo.CountForChildOnDates(ctx, child.ID, []string{"2024-06-02", "2024-05-19"})
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	n, err = repo.CountForChildOnDates(ctx, child.ID, nil)
	require.NoError(t, err)
	assert.Zero(t, n)

	hist, err := repo.ListByChild(ctx, child.ID, 0)
	require.NoError(t, err)
	require.Len(t, hist, 2)
	assert.Equal(t, "2024-06-02", hist[0].ServiceDate)

	day, err := repo.ListByDate(ctx, "2024-06-02")
	require.NoError(t, err)
	assert.Len(t, day, 2)

	var names []string
	require.NoError(t, repo.ForEachInRange(ctx, "2024-06-01", "2024-06-30", func(r ExportRow) error {
		names = append(names, r.FirstName)
		return nil
	}))
	assert.Equal(t, []string{"Ada", ""}, names)
}

func TestFlagRepo_UpsertAndIrregularList(t *testing.T) {
	db := databasetest.New(t)
	ctx := context.Background()
	flags := NewFlagRepo(db, database.SQLite)
	children := NewChildRepo(db)
	c := newChild(t, children, "Ada", "Lovelace")

	_, err := flags.GetByChild(ctx, c.ID)
	assert.ErrorIs(t, err, ErrChildNotFound)

	f := &model.SystemFlag{ChildID: c.ID, Irregular: true, WindowStart: "2024-05-12", WindowEnd: "2024-06-02", ComputedAt: time.Now()}
	require.NoError(t, flags.Upsert(ctx, f))

	irregular, err := children.ListIrregular(ctx)
	require.NoError(t, err)
	require.Len(t, irregular, 1)
	assert.Equal(t, "2024-05-12", irregular[0].WindowStart)

	f.Irregular = false
	require.NoError(t, flags.Upsert(ctx, f))
	got, err := flags.GetByChild(ctx, c.ID)
	require.NoError(t, err)
	assert.False(t, got.Irregular)

	irregular, err = children.ListIrregular(ctx)
	require.NoError(t, err)
	assert.Empty(t, irregular)
}

func TestSettingsRepo(t *testing.T) {
	db := databasetest.New(t)
	ctx := context.Background()
	repo := NewSettingsRepo(db, database.SQLite)

	require.NoError(t, repo.SetMany(ctx, map[string]string{"church_name": "Grace", "max_tag": "500"}))
	require.NoError(t, repo.SetMany(ctx, map[string]string{"max_tag": "999"}))

	s, err := repo.Get(ctx, "max_tag")
	require.NoError(t, err)
	assert.Equal(t, "999", s.Value)

	all, err := repo.List(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	_, err = repo.Get(ctx, "missing")
	assert.ErrorIs(t, err, ErrSettingNotFound)
}

func TestStatsRepo(t *testing.T) {
	db := databasetest.New(t)
	ctx := context.Background()
	child := newChild(t, NewChildRepo(db), "Ada", "Lovelace")
	a, _ := checkIn(t, db, &child.ID, 1, "2024-06-02")
	checkIn(t, db, nil, 2, "2024-06-02")
	checkIn(t, db, nil, 3, "2024-05-26")

	_, err := NewAttendanceRepo(db).MarkCheckedOut(ctx, a.ID, time.Now(), nil)
	require.NoError(t, err)

	stats := NewStatsRepo(db)
	s, err := stats.Summary(ctx, "2024-06-02")
	require.NoError(t, err)
	assert.Equal(t, 1, s.ActiveChildren)
	assert.Equal(t, 2, s.CheckedInToday)
	assert.Equal(t, 1, s.CurrentlyCheckedIn)

	byDate, err := stats.AttendanceByDate(ctx, "2024-05-01", "2024-06-30")
	require.NoError(t, err)
	require.Len(t, byDate, 2)
	assert.Equal(t, DateCount{Date: "2024-06-02", Total: 2, Registered: 1, WalkIns: 1}, byDate[1])

	byClass, err := stats.AttendanceByClass(ctx, "2024-05-01", "2024-06-30")
	require.NoError(t, err)
	assert.Equal(t, []ClassCount{{ClassName: "Toddlers", Total: 3}}, byClass)
}

package service

import (
	"context"
	"database/sql"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/iliyamo/kids-checkin/internal/database"
	"github.com/iliyamo/kids-checkin/internal/database/databasetest"
	"github.com/iliyamo/kids-checkin/internal/model"
	"github.com/iliyamo/kids-checkin/internal/queue"
	"github.com/iliyamo/kids-checkin/internal/repository"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type recordingNotifier struct {
	mu     sync.Mutex
	events []queue.CheckoutEvent
	err    error
}

func (n *recordingNotifier) Notify(_ context.Context, ev queue.CheckoutEvent) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, ev)
	return n.err
}

func (n *recordingNotifier) Events() []queue.CheckoutEvent {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]queue.CheckoutEvent(nil), n.events...)
}

type fixture struct {
	db       *sql.DB
	svc      *CheckinService
	children *repository.ChildRepo
	tags     *repository.TagRepo
	notifier *recordingNotifier
}

// sunday is 2024-06-02 10:00 local time.
var sunday = time.Date(2024, 6, 2, 10, 0, 0, 0, time.UTC)

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := databasetest.New(t)
	f := &fixture{
		db:       db,
		children: repository.NewChildRepo(db),
		tags:     repository.NewTagRepo(db, database.SQLite),
		notifier: &recordingNotifier{},
	}
	f.svc = NewCheckinService(db, repository.NewAttendanceRepo(db), f.tags, f.children, f.notifier, nil)
	f.svc.Now = func() time.Time { return sunday }
	t.Cleanup(f.svc.Wait)
	return f
}

func (f *fixture) child(t *testing.T, first string) *model.Child {
	t.Helper()
	c := &model.Child{FirstName: first, LastName: "Test"}
	require.NoError(t, f.children.Create(context.Background(), c))
	return c
}

func countRows(t *testing.T, db *sql.DB, table string) int {
	t.Helper()
	var n int
	require.NoError(t, db.QueryRow("SELECT COUNT(*) FROM "+table).Scan(&n))
	return n
}

func TestSignIn_TagConflictThenOverride(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	childA := f.child(t, "A")
	childB := f.child(t, "B")

	first, err := f.svc.SignIn(ctx, SignInInput{TagNumber: 42, ClassName: "Toddlers", ChildID: &childA.ID})
	require.NoError(t, err)
	assert.Equal(t, "2024-06-02", first.Attendance.ServiceDate)
	assert.Len(t, first.Attendance.SecurityCode, 4)
	assert.Nil(t, first.Override)

	_, err = f.svc.SignIn(ctx, SignInInput{TagNumber: 42, ClassName: "Toddlers", ChildID: &childB.ID})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrTagInUse)
	var inUse *TagInUseError
	require.True(t, errors.As(err, &inUse))
	assert.Equal(t, first.TagUsage.ID, inUse.ExistingUsageID)
	assert.Equal(t, 1, countRows(t, f.db, "attendance"), "conflicting sign-in must not leave a record")

	by := uint64(9)
	second, err := f.svc.SignIn(ctx, SignInInput{TagNumber: 42, ClassName: "Toddlers", ChildID: &childB.ID, Override: true, By: &by})
	require.NoError(t, err)
	require.NotNil(t, second.Override)
	assert.Equal(t, first.TagUsage.ID, second.Override.PreviousUsageID)
	assert.Equal(t, second.TagUsage.ID, second.Override.NewUsageID)
	assert.Equal(t, &by, second.Override.OverriddenBy)

	assert.Equal(t, 1, countRows(t, f.db, "tag_usages"))
	assert.Equal(t, 1, countRows(t, f.db, "tag_override_logs"))
	assert.Equal(t, 2, countRows(t, f.db, "attendance"))

	_, err = f.tags.GetByDateAndTag(ctx, "2024-06-02", 42)
	require.NoError(t, err)
}

func TestSignIn_OverrideWithoutPriorUsageWritesNoLog(t *testing.T) {
	f := newFixture(t)
	res, err := f.svc.SignIn(context.Background(), SignInInput{TagNumber: 7, ClassName: "K", Override: true})
	require.NoError(t, err)
	assert.Nil(t, res.Override)
	assert.Nil(t, res.Attendance.ChildID)
	assert.Zero(t, countRows(t, f.db, "tag_override_logs"))
}

func TestSignIn_SameTagNextWeekIsFree(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.svc.SignIn(ctx, SignInInput{TagNumber: 42, ClassName: "K"})
	require.NoError(t, err)

	f.svc.Now = func() time.Time { return sunday.AddDate(0, 0, 7) }
	res, err := f.svc.SignIn(ctx, SignInInput{TagNumber: 42, ClassName: "K"})
	require.NoError(t, err)
	assert.Equal(t, "2024-06-09", res.TagUsage.UsageDate)
}

func TestSignIn_UsesConfiguredTimezone(t *testing.T) {
	f := newFixture(t)
	loc, err := time.LoadLocation("America/Los_Angeles")
	require.NoError(t, err)
	f.svc.Location = loc
	// 03:00 UTC on Monday is still Sunday evening in Los Angeles.
	f.svc.Now = func() time.Time { return time.Date(2024, 6, 3, 3, 0, 0, 0, time.UTC) }

	res, err := f.svc.SignIn(context.Background(), SignInInput{TagNumber: 1, ClassName: "K"})
	require.NoError(t, err)
	assert.Equal(t, "2024-06-02", res.Attendance.ServiceDate)
}

func TestSignIn_ChildChecks(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	missing := uint64(404)
	_, err := f.svc.SignIn(ctx, SignInInput{TagNumber: 1, ClassName: "K", ChildID: &missing})
	assert.ErrorIs(t, err, repository.ErrChildNotFound)

	c := f.child(t, "Archived")
	require.NoError(t, f.children.SetArchived(ctx, c.ID, true))
	_, err = f.svc.SignIn(ctx, SignInInput{TagNumber: 1, ClassName: "K", ChildID: &c.ID})
	assert.ErrorIs(t, err, ErrChildArchived)
	assert.Zero(t, countRows(t, f.db, "attendance"))
}

func TestCheckout(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	c := f.child(t, "Ada")
	res, err := f.svc.SignIn(ctx, SignInInput{TagNumber: 3, ClassName: "Toddlers", ChildID: &c.ID})
	require.NoError(t, err)
	code := res.Attendance.SecurityCode

	wrong := "x" + code
	_, err = f.svc.Checkout(ctx, CheckoutInput{RecordID: res.Attendance.ID, SecurityCode: wrong})
	assert.ErrorIs(t, err, ErrInvalidCode)
	rec, err := repository.NewAttendanceRepo(f.db).GetByID(ctx, res.Attendance.ID)
	require.NoError(t, err)
	assert.False(t, rec.CheckedOut(), "wrong code must not mutate the record")

	by := uint64(2)
	out, err := f.svc.Checkout(ctx, CheckoutInput{RecordID: res.Attendance.ID, SecurityCode: code, By: &by})
	require.NoError(t, err)
	require.NotNil(t, out.CheckedOutAt)
	assert.Equal(t, &by, out.CheckedOutBy)

	_, err = f.svc.Checkout(ctx, CheckoutInput{RecordID: res.Attendance.ID, SecurityCode: code})
	assert.ErrorIs(t, err, ErrAlreadyCheckedOut)

	_, err = f.svc.Checkout(ctx, CheckoutInput{RecordID: 999, SecurityCode: code})
	assert.ErrorIs(t, err, repository.ErrAttendanceNotFound)

	f.svc.Wait()
	events := f.notifier.Events()
	require.Len(t, events, 1)
	assert.Equal(t, res.Attendance.ID, events[0].AttendanceID)
	assert.Equal(t, "Ada Test", events[0].ChildName)
	assert.Equal(t, 3, events[0].TagNumber)
}

func TestCheckout_NotifierFailureDoesNotFail(t *testing.T) {
	f := newFixture(t)
	f.notifier.err = errors.New("broker down")
	ctx := context.Background()
	res, err := f.svc.SignIn(ctx, SignInInput{TagNumber: 3, ClassName: "K"})
	require.NoError(t, err)

	_, err = f.svc.Checkout(ctx, CheckoutInput{RecordID: res.Attendance.ID, SecurityCode: res.Attendance.SecurityCode})
	require.NoError(t, err)
	f.svc.Wait()
	assert.Len(t, f.notifier.Events(), 1)
}

func TestCheckout_ConcurrentSucceedsOnce(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	res, err := f.svc.SignIn(ctx, SignInInput{TagNumber: 8, ClassName: "K"})
	require.NoError(t, err)

	const n = 8
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.svc.Checkout(ctx, CheckoutInput{RecordID: res.Attendance.ID, SecurityCode: res.Attendance.SecurityCode})
			if err == nil {
				mu.Lock()
				successes++
				mu.Unlock()
			} else {
				assert.ErrorIs(t, err, ErrAlreadyCheckedOut)
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, successes)
}

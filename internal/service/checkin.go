package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/iliyamo/kids-checkin/internal/model"
	"github.com/iliyamo/kids-checkin/internal/queue"
	"github.com/iliyamo/kids-checkin/internal/repository"
	"github.com/iliyamo/kids-checkin/internal/utils"
)

// Notifier receives checkout events.  *queue.Publisher implements it.
type Notifier interface {
	Notify(ctx context.Context, ev queue.CheckoutEvent) error
}

// CheckinService signs children in against a physical tag and checks them
// out again with the security code printed on the tag.
type CheckinService struct {
	db         *sql.DB
	attendance *repository.AttendanceRepo
	tags       *repository.TagRepo
	children   *repository.ChildRepo
	notifier   Notifier
	log        *zap.Logger

	Location   *time.Location
	CodeLength int
	Now        func() time.Time

	wg sync.WaitGroup
}

func NewCheckinService(db *sql.DB, attendance *repository.AttendanceRepo, tags *repository.TagRepo,
	children *repository.ChildRepo, notifier Notifier, log *zap.Logger) *CheckinService {
	if log == nil {
		log = zap.NewNop()
	}
	return &CheckinService{
		db:         db,
		attendance: attendance,
		tags:       tags,
		children:   children,
		notifier:   notifier,
		log:        log,
		Location:   time.UTC,
		CodeLength: 4,
		Now:        time.Now,
	}
}

// SignInInput is a validated check-in request.
type SignInInput struct {
	TagNumber int
	ClassName string
	ChildID   *uint64
	Override  bool
	By        *uint64
}

// SignInResult is what a successful sign-in produced.  Override is nil
// unless a previous usage of the tag was replaced.
type SignInResult struct {
	Attendance *model.Attendance
	TagUsage   *model.TagUsage
	Override   *model.TagOverrideLog
}

// Today is the current service date in the configured time zone.
func (s *CheckinService) Today() string {
	return utils.DateString(s.Now(), s.Location)
}

// SignIn records an attendance row and claims the tag for today.  Without
// Override a tag that is already taken yields a *TagInUseError.  With
// Override the existing usage is deleted and an override log row written,
// all in one transaction.
func (s *CheckinService) SignIn(ctx context.Context, in SignInInput) (*SignInResult, error) {
	if in.ChildID != nil {
		child, err := s.children.GetByID(ctx, *in.ChildID)
		if err != nil {
			return nil, err
		}
		if child.Archived {
			return nil, ErrChildArchived
		}
	}
	code, err := utils.NewSecurityCode(s.CodeLength)
	if err != nil {
		return nil, fmt.Errorf("security code: %w", err)
	}

	now := s.Now()
	date := utils.DateString(now, s.Location)
	res := &SignInResult{
		Attendance: &model.Attendance{
			ChildID:      in.ChildID,
			ClassName:    in.ClassName,
			TagNumber:    in.TagNumber,
			SecurityCode: code,
			ServiceDate:  date,
			CheckedInAt:  now.UTC().Truncate(time.Second),
			CheckedInBy:  in.By,
		},
		TagUsage: &model.TagUsage{TagNumber: in.TagNumber, UsageDate: date},
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	var previous *model.TagUsage
	if in.Override {
		previous, err = s.tags.GetByDateAndTagTx(ctx, tx, date, in.TagNumber)
		switch {
		case errors.Is(err, repository.ErrTagUsageNotFound):
			previous = nil
		case err != nil:
			return nil, err
		default:
			if err := s.tags.DeleteTx(ctx, tx, previous.ID); err != nil && !errors.Is(err, repository.ErrTagUsageNotFound) {
				return nil, err
			}
		}
	}

	if err := s.attendance.CreateTx(ctx, tx, res.Attendance); err != nil {
		return nil, err
	}
	res.TagUsage.AttendanceID = res.Attendance.ID
	if err := s.tags.CreateTx(ctx, tx, res.TagUsage); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			// release the transaction before reading through the pool
			_ = tx.Rollback()
			return nil, s.tagInUse(ctx, date, in.TagNumber)
		}
		return nil, err
	}

	if previous != nil {
		res.Override = &model.TagOverrideLog{
			TagNumber:       in.TagNumber,
			UsageDate:       date,
			PreviousUsageID: previous.ID,
			NewUsageID:      res.TagUsage.ID,
			OverriddenBy:    in.By,
		}
		if err := s.tags.CreateOverrideLogTx(ctx, tx, res.Override); err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	committed = true

	fields := []zap.Field{
		zap.Uint64("attendance_id", res.Attendance.ID),
		zap.Int("tag", in.TagNumber),
		zap.String("date", date),
	}
	if res.Override != nil {
		s.log.Info("tag overridden", append(fields, zap.Uint64("previous_usage_id", res.Override.PreviousUsageID))...)
	} else {
		s.log.Debug("child checked in", fields...)
	}
	return res, nil
}

func (s *CheckinService) tagInUse(ctx context.Context, date string, tag int) error {
	existing, err := s.tags.GetByDateAndTag(ctx, date, tag)
	if err != nil {
		// the holder vanished between our insert and this read
		return &TagInUseError{}
	}
	return &TagInUseError{ExistingUsageID: existing.ID}
}

// CheckoutInput is a validated checkout request.
type CheckoutInput struct {
	RecordID     uint64
	SecurityCode string
	By           *uint64
}

// Checkout stamps the record as picked up.  A wrong code never mutates the
// record; the stamp itself is conditional so a record is checked out at
// most once.
func (s *CheckinService) Checkout(ctx context.Context, in CheckoutInput) (*model.Attendance, error) {
	a, err := s.attendance.GetByID(ctx, in.RecordID)
	if err != nil {
		return nil, err
	}
	if !utils.CodesEqual(a.SecurityCode, in.SecurityCode) {
		return nil, ErrInvalidCode
	}
	if a.CheckedOut() {
		return nil, ErrAlreadyCheckedOut
	}
	at := s.Now().UTC().Truncate(time.Second)
	ok, err := s.attendance.MarkCheckedOut(ctx, a.ID, at, in.By)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrAlreadyCheckedOut
	}
	a.CheckedOutAt, a.CheckedOutBy = &at, in.By

	s.notify(ctx, a)
	return a, nil
}

// notify publishes in the background so a slow or absent broker never
// delays the response.
func (s *CheckinService) notify(ctx context.Context, a *model.Attendance) {
	if s.notifier == nil {
		return
	}
	ev := queue.NewCheckoutEvent(a.ID, a.ClassName, a.TagNumber, a.ServiceDate, a.CheckedInAt, *a.CheckedOutAt)
	ev.ChildID, ev.CheckedOutBy = a.ChildID, a.CheckedOutBy
	if a.ChildID != nil {
		if c, err := s.children.GetByID(ctx, *a.ChildID); err == nil {
			ev.ChildName = c.FirstName + " " + c.LastName
		}
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		pctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.notifier.Notify(pctx, ev); err != nil {
			s.log.Warn("checkout notification failed", zap.Uint64("attendance_id", ev.AttendanceID), zap.Error(err))
		}
	}()
}

// Wait blocks until in-flight notifications are done.
func (s *CheckinService) Wait() { s.wg.Wait() }

package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/iliyamo/kids-checkin/internal/model"
	"github.com/iliyamo/kids-checkin/internal/repository"
	"github.com/iliyamo/kids-checkin/internal/utils"
)

// sundaysChecked is how many recent Sundays a child must miss in a row to
// be flagged.
const sundaysChecked = 4

// IrregularityService flags active children who attended none of the four
// most recent Sundays.
type IrregularityService struct {
	children   *repository.ChildRepo
	attendance *repository.AttendanceRepo
	flags      *repository.FlagRepo
	log        *zap.Logger
	running    sync.Mutex // one run at a time across cron, API and CLI

	Location *time.Location
	Now      func() time.Time
}

func NewIrregularityService(children *repository.ChildRepo, attendance *repository.AttendanceRepo,
	flags *repository.FlagRepo, log *zap.Logger) *IrregularityService {
	if log == nil {
		log = zap.NewNop()
	}
	return &IrregularityService{
		children:   children,
		attendance: attendance,
		flags:      flags,
		log:        log,
		Location:   time.UTC,
		Now:        time.Now,
	}
}

// RunSummary describes one pass of the job.
type RunSummary struct {
	WindowStart string `json:"window_start"`
	WindowEnd   string `json:"window_end"`
	Processed   int    `json:"processed"`
	Irregular   int    `json:"irregular"`
	Failed      int    `json:"failed"`
}

// RecentSundays returns the four Sundays checked for the given instant,
// newest first.  When t falls on a Sunday that Sunday is included.
func (s *IrregularityService) RecentSundays(t time.Time) []string {
	return utils.RecentSundays(t, s.Location, sundaysChecked)
}

// Run recomputes the flag of every non-archived child.  A failure for one
// child is logged and counted and the run moves on; only failing to list
// children aborts it.  A call made while another run is in progress
// returns ErrJobRunning without doing anything.
func (s *IrregularityService) Run(ctx context.Context) (RunSummary, error) {
	if !s.running.TryLock() {
		return RunSummary{}, ErrJobRunning
	}
	defer s.running.Unlock()

	now := s.Now()
	sundays := s.RecentSundays(now)
	sum := RunSummary{WindowStart: sundays[len(sundays)-1], WindowEnd: sundays[0]}

	ids, err := s.children.ListActiveIDs(ctx)
	if err != nil {
		return sum, fmt.Errorf("list children: %w", err)
	}
	for _, id := range ids {
		if ctx.Err() != nil {
			return sum, ctx.Err()
		}
		n, err := s.attendance.CountForChildOnDates(ctx, id, sundays)
		if err == nil {
			err = s.flags.Upsert(ctx, &model.SystemFlag{
				ChildID:     id,
				Irregular:   n == 0,
				WindowStart: sum.WindowStart,
				WindowEnd:   sum.WindowEnd,
				ComputedAt:  now.UTC().Truncate(time.Second),
			})
		}
		if err != nil {
			sum.Failed++
			s.log.Error("irregularity flag failed", zap.Uint64("child_id", id), zap.Error(err))
			continue
		}
		sum.Processed++
		if n == 0 {
			sum.Irregular++
		}
	}
	s.log.Info("irregularity flags recomputed",
		zap.String("window_start", sum.WindowStart),
		zap.String("window_end", sum.WindowEnd),
		zap.Int("processed", sum.Processed),
		zap.Int("irregular", sum.Irregular),
		zap.Int("failed", sum.Failed))
	return sum, nil
}

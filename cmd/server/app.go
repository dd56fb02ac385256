package main

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/iliyamo/kids-checkin/internal/config"
	"github.com/iliyamo/kids-checkin/internal/database"
	"github.com/iliyamo/kids-checkin/internal/logger"
	"github.com/iliyamo/kids-checkin/internal/queue"
	"github.com/iliyamo/kids-checkin/internal/repository"
	"github.com/iliyamo/kids-checkin/internal/service"
)

// app is the wiring shared by every subcommand: configuration, the logger,
// an open migrated database and the repositories and services on top.
type app struct {
	cfg     config.Config
	log     *zap.Logger
	db      *sql.DB
	dialect database.Dialect

	users      *repository.UserRepo
	tokens     *repository.TokenRepo
	children   *repository.ChildRepo
	parents    *repository.ParentRepo
	classes    *repository.ClassRepo
	attendance *repository.AttendanceRepo
	tags       *repository.TagRepo
	flags      *repository.FlagRepo
	settings   *repository.SettingsRepo
	stats      *repository.StatsRepo

	publisher *queue.Publisher
	checkin   *service.CheckinService
	flagJob   *service.IrregularityService
}

func bootstrap(ctx context.Context) (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	log, err := logger.New(cfg.Env, cfg.LogLevel)
	if err != nil {
		return nil, err
	}

	a := &app{cfg: cfg, log: log}
	switch cfg.DBDriver {
	case "sqlite":
		a.dialect = database.SQLite
		a.db, err = database.OpenSQLite(cfg.DBPath)
	default:
		a.dialect = database.MySQL
		a.db, err = database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	}
	if err != nil {
		_ = log.Sync()
		return nil, fmt.Errorf("open database: %w", err)
	}

	mctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	if err := database.Migrate(mctx, a.db, a.dialect); err != nil {
		a.close()
		return nil, err
	}

	a.users = repository.NewUserRepo(a.db)
	a.tokens = repository.NewTokenRepo(a.db)
	a.children = repository.NewChildRepo(a.db)
	a.parents = repository.NewParentRepo(a.db)
	a.classes = repository.NewClassRepo(a.db)
	a.attendance = repository.NewAttendanceRepo(a.db)
	a.tags = repository.NewTagRepo(a.db, a.dialect)
	a.flags = repository.NewFlagRepo(a.db, a.dialect)
	a.settings = repository.NewSettingsRepo(a.db, a.dialect)
	a.stats = repository.NewStatsRepo(a.db)

	loc := cfg.Location()
	a.publisher = queue.NewPublisher(cfg.AMQPURL, cfg.NotificationsQueue, log.Named("publisher"))
	a.checkin = service.NewCheckinService(a.db, a.attendance, a.tags, a.children, a.publisher, log.Named("checkin"))
	a.checkin.Location = loc
	a.checkin.CodeLength = cfg.SecurityCodeLength
	a.flagJob = service.NewIrregularityService(a.children, a.attendance, a.flags, log.Named("flags"))
	a.flagJob.Location = loc

	log.Info("database ready", zap.String("driver", cfg.DBDriver), zap.String("timezone", cfg.Timezone))
	return a, nil
}

func (a *app) close() {
	if a.checkin != nil {
		a.checkin.Wait()
	}
	if a.db != nil {
		_ = a.db.Close()
	}
	_ = a.log.Sync()
}

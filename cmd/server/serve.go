package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/iliyamo/kids-checkin/internal/config"
	"github.com/iliyamo/kids-checkin/internal/handler"
	"github.com/iliyamo/kids-checkin/internal/queue"
	"github.com/iliyamo/kids-checkin/internal/router"
	"github.com/iliyamo/kids-checkin/internal/scheduler"
	"github.com/iliyamo/kids-checkin/internal/service"
)

const shutdownTimeout = 15 * time.Second

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API, the weekly flag job and the notification consumer",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context())
		},
	}
}

func runServe(parent context.Context) error {
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := bootstrap(ctx)
	if err != nil {
		return err
	}
	defer a.close()
	log := a.log

	rdb := config.NewRedisClient()
	if rdb == nil {
		log.Warn("redis unavailable, rate limiting and caching disabled")
	} else {
		defer rdb.Close()
	}

	auth := handler.NewAuthHandler(a.cfg, a.users, a.tokens)
	today := a.checkin.Today
	h := router.Handlers{
		Auth:     auth,
		OAuth:    handler.NewOAuthHandler(auth, config.LoadOAuthProviders()),
		Users:    handler.NewUserHandler(a.cfg, a.users, a.tokens),
		Children: &handler.ChildHandler{Children: a.children, Parents: a.parents, Classes: a.classes, Attendance: a.attendance, Flags: a.flags},
		Parents:  &handler.ParentHandler{Parents: a.parents, Children: a.children},
		Classes:  &handler.ClassHandler{Classes: a.classes},
		Checkin:  &handler.CheckinHandler{Svc: a.checkin, Attendance: a.attendance, Tags: a.tags},
		Stats:    &handler.StatsHandler{Stats: a.stats, Today: today},
		Settings: &handler.SettingsHandler{Settings: a.settings},
		Export:   &handler.ExportHandler{Attendance: a.attendance, Today: today, Location: a.cfg.Location()},
		Admin:    &handler.AdminHandler{Flags: a.flagJob},
	}
	e := router.New(a.db, h, router.Options{
		JWTSecret: a.cfg.JWTSecret,
		RateLimit: config.LoadRateLimitConfig(),
		Login:     config.LoadLoginRateLimitConfig(),
		Cache:     config.LoadCacheConfig(),
		Redis:     rdb,
		Log:       log.Named("http"),
	})

	sched, err := scheduler.New(a.cfg.FlagJobSchedule, a.cfg.Location(), 10*time.Minute, func(ctx context.Context) error {
		if _, err := a.flagJob.Run(ctx); errors.Is(err, service.ErrJobRunning) {
			log.Info("flag job skipped, a manual run is in progress")
		} else if err != nil {
			return err
		}
		n, err := a.tokens.PurgeStale(ctx, time.Now())
		if err != nil {
			return err
		}
		log.Info("stale refresh tokens purged", zap.Int64("count", n))
		return nil
	}, log.Named("scheduler"))
	if err != nil {
		return err
	}
	log.Info("flag job scheduled", zap.String("spec", a.cfg.FlagJobSchedule), zap.Time("next", sched.Next()))

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		addr := ":" + a.cfg.Port
		log.Info("listening", zap.String("addr", addr), zap.String("env", a.cfg.Env))
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return e.Shutdown(sctx)
	})
	g.Go(func() error {
		return sched.Run(gctx, a.cfg.FlagJobOnStartup)
	})
	if a.cfg.ConsumerEnabled {
		consumer := queue.NewConsumer(a.cfg.AMQPURL, a.cfg.NotificationsQueue, a.cfg.NotificationLogPath, log.Named("consumer"))
		g.Go(func() error { return consumer.Run(gctx) })
	}

	err = g.Wait()
	log.Info("server stopped")
	return err
}

package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/coreos/go-systemd/v22/daemon"
	"github.com/joho/godotenv"

	"pushbot/internal/admin"
	"pushbot/internal/bot"
	"pushbot/internal/broadcast"
	"pushbot/internal/catalog"
	"pushbot/internal/config"
	"pushbot/internal/dispatch"
	"pushbot/internal/push"
	"pushbot/internal/scheduler"
	"pushbot/internal/store"
	"pushbot/internal/transport/telegram"
	"pushbot/pkg/logx"
)

func main() {
	var cfgPath string
	flag.StringVar(&cfgPath, "config", "./config.yaml", "path to config yaml")
	flag.Parse()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	// .env is optional; real deployments set the environment directly.
	_ = godotenv.Load()

	if err := run(ctx, cfgPath); err != nil {
		fmt.Fprintln(os.Stderr, "fatal:", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfgPath string) error {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return err
	}

	log := logx.New(logx.Config{
		Level:   cfg.Logging.Level,
		Console: cfg.Logging.Console,
		File: logx.FileConfig{
			Enabled: cfg.Logging.File.Enabled,
			Path:    cfg.Logging.File.Path,
		},
	})
	defer log.Close()

	adapter, err := telegram.New(telegram.Config{
		Token:       cfg.Telegram.Token,
		PollTimeout: cfg.Telegram.PollTimeout.Or(10 * time.Second),
	}, log.With(logx.String("component", "telegram")))
	if err != nil {
		return err
	}

	st := store.New(cfg.Store.Path, log.With(logx.String("component", "store")))
	if err := st.Load(); err != nil {
		return err
	}

	disp := dispatch.New(dispatch.Config{
		RatePerSec: cfg.Broadcast.RatePerSec,
	}, adapter, log.With(logx.String("component", "dispatch")))

	auth := admin.New(cfg.Telegram.AdminUserIDs)
	engine := broadcast.New(broadcast.Config{
		BatchSize:       cfg.Broadcast.BatchSize,
		InterBatchDelay: cfg.Broadcast.InterBatchDelay.Or(time.Second),
	}, st, disp, auth, log.With(logx.String("component", "broadcast")))

	provider := catalog.NewStaticProvider(cfg.Catalog.Items)

	sched := scheduler.New(scheduler.Config{}, log.With(logx.String("component", "scheduler")))
	svc := push.New(push.Config{
		Schedule: push.ScheduleConfig{
			DailyRecommendation: cfg.Schedule.DailyRecommendation,
			WeeklyReport:        cfg.Schedule.WeeklyReport,
		},
	}, st, engine, sched, provider, log.With(logx.String("component", "push")))

	if err := svc.Start(ctx); err != nil {
		return err
	}

	bot.Register(ctx, adapter.Bot(), svc, log.With(logx.String("component", "bot")))
	go adapter.Start(ctx)

	// Catalog items can be edited without a restart.
	go func() {
		if err := config.Watch(ctx, cfgPath, log.With(logx.String("component", "config")), func(c *config.Config) {
			provider.SetItems(c.Catalog.Items)
		}); err != nil {
			log.Warn("config watch unavailable", logx.Err(err))
		}
	}()

	if ok, err := daemon.SdNotify(false, daemon.SdNotifyReady); err != nil {
		log.Debug("systemd notify failed", logx.Bool("supported", ok), logx.Err(err))
	}
	log.Info("pushbot started")

	<-ctx.Done()

	_, _ = daemon.SdNotify(false, daemon.SdNotifyStopping)
	stopCtx, stopCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer stopCancel()
	svc.Stop(stopCtx)
	log.Info("pushbot stopped")
	return nil
}

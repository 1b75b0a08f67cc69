package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/coreos/go-systemd/v22/daemon"

	"bumpbot/internal/config"
	"bumpbot/internal/discord"
	"bumpbot/internal/reminder"
	"bumpbot/internal/storage"
	"bumpbot/internal/timer"
	logx "bumpbot/pkg/logx"
)

func main() {
	var cfgPath string
	flag.StringVar(&cfgPath, "config", "./config.yaml", "path to config yaml/json")
	flag.Parse()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, cfgPath); err != nil {
		fmt.Println("fatal:", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfgPath string) error {
	mgr := config.NewManager(cfgPath)
	cfg, err := mgr.Load()
	if err != nil {
		return err
	}

	logSvc, log := logx.New(logConfig(cfg), nil)
	defer logSvc.Close()
	mgr.SetLogger(log)

	busy, err := cfg.StorageBusyTimeout()
	if err != nil {
		return err
	}
	db, err := storage.Open(storage.Config{Path: cfg.Storage.Path, BusyTimeout: busy})
	if err != nil {
		return err
	}
	defer db.Close()

	store := reminder.NewSQLStore(db, log.With(logx.String("comp", "store")))

	registry := timer.New(log.With(logx.String("comp", "timer")))
	registry.Start(ctx)
	defer registry.StopAll()

	coord := reminder.NewCoordinator(store, registry, log.With(logx.String("comp", "reminder")))

	sess, err := discord.New(cfg.Discord.Token, log.With(logx.String("comp", "discord")))
	if err != nil {
		return err
	}
	logSvc.SetSender(sess)

	delay, err := cfg.ReminderDelay()
	if err != nil {
		return err
	}
	retention, err := cfg.ReminderRetention()
	if err != nil {
		return err
	}

	bumper := discord.NewBumper(sess, coord, store, delay, cfg.Reminder.MentionRoleID,
		log.With(logx.String("comp", "bumper")))
	bumper.Attach()

	if err := sess.Open(); err != nil {
		return err
	}
	defer sess.Close()

	// Restoration failure is not fatal; the bot keeps serving new bumps.
	if n, err := coord.RestoreOnStartup(ctx, bumper.TaskFactory()); err != nil {
		log.Error("reminder restore failed", logx.Err(err))
	} else {
		log.Info("reminders restored", logx.Int("count", n))
	}

	if err := registry.RegisterRepeating("reminders:cleanup", cfg.CleanupSpec(), func(ctx context.Context) error {
		n, err := store.CleanupOld(ctx, retention)
		if err != nil {
			return err
		}
		if n > 0 {
			log.Info("old reminder records pruned", logx.Int64("count", n))
		}
		return nil
	}); err != nil {
		return err
	}

	// Hot reload covers logging knobs only; everything else needs a restart.
	sub := mgr.Subscribe(1)
	defer mgr.Unsubscribe(sub)
	go func() {
		for next := range sub {
			if next == nil {
				continue
			}
			logSvc.Apply(logConfig(next))
		}
	}()
	go func() { _ = mgr.Watch(ctx) }()

	_, _ = daemon.SdNotify(false, daemon.SdNotifyReady)
	log.Info("bumpbot started")

	<-ctx.Done()
	_, _ = daemon.SdNotify(false, daemon.SdNotifyStopping)
	log.Info("shutting down")
	return nil
}

func logConfig(cfg *config.Config) logx.Config {
	return logx.Config{
		Level:   cfg.Logging.Level,
		Console: cfg.ConsoleEnabled(),
		File: logx.FileConfig{
			Enabled: cfg.Logging.File.Enabled,
			Path:    cfg.Logging.File.Path,
		},
		Discord: logx.DiscordConfig{
			Enabled:    cfg.Logging.Discord.Enabled,
			ChannelID:  cfg.Discord.LogChannelID,
			MinLevel:   cfg.Logging.Discord.MinLevel,
			RatePerSec: cfg.Logging.Discord.RatePerSec,
		},
	}
}

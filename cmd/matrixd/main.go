package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"matrix-planner/internal/api"
	"matrix-planner/internal/config"
	"matrix-planner/internal/logging"
	"matrix-planner/internal/notify"
	"matrix-planner/internal/repository"
	"matrix-planner/internal/service"
	"matrix-planner/internal/store"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logger := logging.New(cfg.Environment, cfg.LogFile)
	defer logger.Sync()

	var taskPersistence store.TaskPersistence
	var subPersistence store.SubTaskPersistence
	if cfg.OfflineMode {
		logger.Infow("using offline file store", "path", cfg.DataFile)
		fileStore := store.NewFileStore(cfg.DataFile)
		taskPersistence = fileStore
		subPersistence = fileStore.SubTasks()
	} else {
		db, err := repository.NewDB(cfg.DatabaseURL)
		if err != nil {
			logger.Fatalw("open database", "error", err)
		}
		if sqlDB, err := db.DB(); err == nil {
			defer sqlDB.Close()
		}
		taskPersistence = repository.NewTaskRepository(db)
		subPersistence = repository.NewSubTaskRepository(db)
	}

	taskStore := store.New(taskPersistence, subPersistence, logger, notify.NewLogNotifier(logger), store.Options{
		FocusLimit:        cfg.FocusLimit,
		FocusAllQuadrants: cfg.FocusAllQuadrants,
		UndoWindow:        cfg.UndoWindow,
	})

	if cfg.DefaultOwner != "" {
		if err := taskStore.SetOwner(ctx, cfg.DefaultOwner); err != nil {
			logger.Warnw("initial load", "owner", cfg.DefaultOwner, "error", err)
		}
	}

	var telegram *notify.TelegramNotifier
	if cfg.TelegramToken != "" {
		telegram, err = notify.NewTelegramNotifier(cfg.TelegramToken, cfg.TelegramChat)
		if err != nil {
			logger.Fatalw("telegram", "error", err)
		}
	}

	reminder := service.NewReminderService(taskStore)
	scheduler := service.NewScheduler(time.Local)
	if _, err := scheduler.ScheduleDaily(cfg.DigestTime, func() {
		digest := reminder.DailyDigest(time.Now())
		logger.Infow("daily digest", "text", digest)
		if telegram != nil {
			if err := telegram.SendDigest(digest); err != nil {
				logger.Warnw("send digest", "error", err)
			}
		}
	}); err != nil {
		logger.Fatalw("schedule digest", "error", err)
	}
	if _, err := scheduler.ScheduleInterval(time.Minute, taskStore.SweepUndo); err != nil {
		logger.Fatalw("schedule undo sweep", "error", err)
	}
	scheduler.Start()
	defer scheduler.Stop()

	server := api.NewServer(taskStore, logger, cfg.Environment)
	httpServer := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: server.Handler(),
	}

	go func() {
		logger.Infow("listening", "addr", cfg.HTTPAddr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatalw("serve", "error", err)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Warnw("shutdown", "error", err)
	}
	logger.Info("shutdown complete")
}

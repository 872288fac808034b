package main

import (
	"context"
	"errors"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"taskflow/internal/api"
	"taskflow/internal/bot"
	"taskflow/internal/config"
	"taskflow/internal/repository"
	"taskflow/internal/service"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	db, err := repository.NewDB(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("db: %v", err)
	}
	sqlDB, err := db.DB()
	if err == nil {
		defer sqlDB.Close()
	}

	userRepo := repository.NewUserRepository(db)
	taskRepo := repository.NewTaskRepository(db)

	sessions := service.NewSessionIssuer(cfg.JWTSecret, cfg.SessionTTL)
	authSvc := service.NewAuthService(userRepo, sessions)
	taskSvc := service.NewTaskService(taskRepo)
	digestSvc := service.NewDigestService(taskRepo)

	if cfg.TelegramToken != "" {
		telegramBot, err := bot.New(cfg.TelegramToken, userRepo, taskSvc, digestSvc)
		if err != nil {
			log.Fatalf("bot: %v", err)
		}

		scheduler := service.NewSchedulerService(time.Local, 5*time.Minute)
		if cfg.DigestAt != "" {
			_, err = scheduler.ScheduleDaily("digest", cfg.DigestAt, telegramBot.SendDigests)
		} else {
			_, err = scheduler.ScheduleInterval("digest", cfg.DigestInterval, telegramBot.SendDigests)
		}
		if err != nil {
			log.Fatalf("schedule digest: %v", err)
		}
		scheduler.Start()
		defer scheduler.Stop()

		go func() {
			if err := telegramBot.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
				log.Printf("bot stopped with error: %v", err)
			}
		}()
	} else {
		log.Println("[info] TELEGRAM_TOKEN not set, Telegram companion disabled")
	}

	server := api.New(authSvc, taskSvc, api.Options{
		CookieSecure: cfg.CookieSecure,
		SessionTTL:   cfg.SessionTTL,
	})

	log.Println("TaskFlow server started.")
	if err := server.Start(ctx, cfg.HTTPAddr); err != nil && !errors.Is(err, context.Canceled) {
		log.Fatalf("server stopped with error: %v", err)
	}
	log.Println("Shutdown complete.")
}

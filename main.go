package main

import (
	"context"
	"errors"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/example/vocabbot/internal/bot"
	"github.com/example/vocabbot/internal/config"
	"github.com/example/vocabbot/internal/database"
	"github.com/example/vocabbot/internal/scheduler"
	"github.com/example/vocabbot/internal/scheduling"
	"github.com/example/vocabbot/internal/session"
	"github.com/example/vocabbot/internal/vocab"
	"github.com/joho/godotenv"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Printf("No .env file loaded: %v", err)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	if err := database.Connect(); err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer database.Close()

	vocabs := vocab.NewStore()
	if err := vocabs.LoadDir(cfg.VocabDir); err != nil {
		log.Fatalf("Failed to load vocab sets: %v", err)
	}
	log.Printf("Loaded vocab sets from %s", cfg.VocabDir)

	engine, err := scheduling.NewEngine(cfg.Scheduling, vocabs)
	if err != nil {
		log.Fatalf("Failed to create scheduling engine: %v", err)
	}

	sessions := session.NewManager(engine, database.NewProgressRepository(), vocabs, cfg.SessionSize, nil)

	b, err := bot.New(cfg, vocabs, sessions)
	if err != nil {
		log.Fatalf("Failed to create bot: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var reminders *scheduler.Scheduler
	if cfg.EnableReminders {
		reminders = scheduler.New(b, cfg.NotificationStartHour, cfg.NotificationEndHour)
		reminders.Start()
		defer reminders.Stop()
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		sig := <-sigChan
		log.Printf("Received signal: %v", sig)
		cancel()
	}()

	log.Println("Bot started. Press Ctrl+C to stop.")
	if err := b.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
		log.Printf("Bot error: %v", err)
	}
	log.Println("Bot stopped")
}

// Command bot runs the shop assistant: it loads configuration, applies
// database migrations, and serves Telegram updates until interrupted.
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"log/slog"

	"github.com/joho/godotenv"

	"github.com/escapismart/shopbot/core/config"
	"github.com/escapismart/shopbot/core/database"
	"github.com/escapismart/shopbot/core/logger"
	"github.com/escapismart/shopbot/quotes"
	"github.com/escapismart/shopbot/shop/digest"
	"github.com/escapismart/shopbot/shop/engine"
	"github.com/escapismart/shopbot/shop/ledger"
	"github.com/escapismart/shopbot/shop/store"
	"github.com/escapismart/shopbot/telegram"
)

const defaultConfigPath = "config.yaml"

func main() {
	if err := run(); err != nil {
		log.Fatalf("bot: %v", err)
	}
}

func run() error {
	// Local runs keep secrets in .env; absence is fine.
	_ = godotenv.Load()

	cfgPath := os.Getenv("CONFIG_PATH")
	if cfgPath == "" {
		cfgPath = defaultConfigPath
	}

	log.Printf("loading config: %s", cfgPath)
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return err
	}

	if err := logger.InitLogger(&cfg.Logging); err != nil {
		return err
	}
	defer func() {
		if err := logger.Shutdown(); err != nil {
			log.Printf("logger shutdown error: %v", err)
		}
	}()

	if err := database.RunMigrations(cfg.Database); err != nil {
		return err
	}

	db, err := database.Connect(cfg.Database)
	if err != nil {
		return err
	}
	defer db.Close()

	opTimeout := cfg.Dispatcher.OpTimeout()
	states := store.NewPostgres(db, opTimeout)
	orders := ledger.NewPostgres(db, opTimeout)

	quotesTimeout := time.Duration(cfg.Quotes.TimeoutMS) * time.Millisecond
	quoteClient := quotes.New(quotes.Config{BaseURL: cfg.Quotes.BaseURL, Timeout: quotesTimeout})

	eng := engine.New(orders, quoteClient)

	var dig *digest.Digest
	startedAt := time.Now()

	opts := telegram.Options{
		Config: cfg,
		Store:  states,
		Engine: eng,
		OnStart: func(_ context.Context, rt telegram.Runtime) error {
			dig = digest.New(orders, rt.Sender, cfg.Telegram.AdminID, cfg.Digest.Schedule)
			if err := dig.Start(); err != nil {
				return err
			}
			logger.L.With("component", "app").Info("app ready",
				slog.String("event", "ready"),
				slog.Duration("startup_duration", logger.RoundMS(time.Since(startedAt))),
			)
			return nil
		},
		OnStop: func(context.Context, telegram.Runtime) error {
			logger.L.With("component", "app").Info("shutting down...",
				slog.String("event", "shutdown"),
			)
			if dig != nil {
				dig.Stop()
			}
			return nil
		},
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	return telegram.Run(ctx, opts)
}

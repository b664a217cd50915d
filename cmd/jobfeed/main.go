package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"

	"jobfeed/internal/bookmark"
	"jobfeed/internal/bot"
	"jobfeed/internal/config"
	"jobfeed/internal/feed"
	"jobfeed/internal/jobsapi"
	"jobfeed/internal/scraper"
	"jobfeed/internal/storage"
)

func main() {
	// --- Configuration Loading ---
	cfg, err := config.LoadConfig("./configs")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading configuration: %v\n", err)
		os.Exit(1)
	}

	// --- Logger Setup ---
	log := logrus.New()
	log.SetFormatter(&logrus.JSONFormatter{})
	log.SetOutput(os.Stdout)
	log.SetLevel(cfg.Level())

	log.WithFields(logrus.Fields{
		"storage_driver": cfg.StorageDriver,
		"feed_transport": cfg.FeedTransport,
		"jobs_api_url":   cfg.JobsAPIURL,
	}).Info("Configuration loaded successfully")

	if err := run(cfg, log); err != nil {
		log.WithError(err).Error("JobFeed stopped with an error")
		os.Exit(1)
	}
}

// run wires the components and blocks until SIGINT or SIGTERM. Storage is
// closed on every return path.
func run(cfg config.Config, log *logrus.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// --- Initialize Components ---
	log.Info("Initializing components...")

	kv, err := openStorage(ctx, cfg, log)
	if err != nil {
		return fmt.Errorf("failed to initialize storage: %w", err)
	}
	defer func() {
		log.Info("Closing storage...")
		if err := kv.Close(); err != nil {
			log.WithError(err).Error("Error closing storage")
		}
	}()

	fetcher, err := newFetcher(cfg, log)
	if err != nil {
		return fmt.Errorf("failed to initialize jobs fetcher: %w", err)
	}

	bookmarks := bookmark.New(kv, cfg.BookmarksKey, log)
	sessions := bot.NewSessions(func() *feed.Feed {
		return feed.New(fetcher, cfg.JobsPageSize, log)
	})

	botHandler, err := bot.NewHandler(cfg.TelegramBotToken, sessions, bookmarks, log)
	if err != nil {
		return fmt.Errorf("failed to initialize Telegram bot handler: %w", err)
	}

	// --- Application Startup ---
	log.Info("Starting JobFeed...")
	go botHandler.Start(ctx)

	log.Info("JobFeed is running. Press Ctrl+C to exit.")

	// --- Wait for Shutdown Signal ---
	<-ctx.Done()

	log.Info("Shutting down JobFeed...")
	return nil
}

// openStorage opens the configured KV driver. For Badger it also starts the
// value log GC loop, bound to ctx.
func openStorage(ctx context.Context, cfg config.Config, log logrus.FieldLogger) (storage.KV, error) {
	switch cfg.StorageDriver {
	case config.DriverRedis:
		return storage.NewRedisKV(ctx, cfg.RedisAddr, cfg.RedisDB, log)
	case config.DriverMemory:
		log.Warn("Using in-memory storage; bookmarks will not survive a restart")
		return storage.NewMemory(), nil
	default:
		kv, err := storage.NewBadgerKV(cfg.BadgerDBPath, log)
		if err != nil {
			return nil, err
		}
		if cfg.BadgerGCEvery > 0 {
			go kv.RunGC(ctx, cfg.BadgerGCEvery)
		}
		return kv, nil
	}
}

func newFetcher(cfg config.Config, log logrus.FieldLogger) (feed.PageFetcher, error) {
	client, err := jobsapi.NewClient(jobsapi.Config{
		BaseURL:           cfg.JobsAPIURL,
		Timeout:           cfg.JobsRequestTimeout,
		RequestsPerSecond: cfg.JobsRateLimit,
		Burst:             1,
	}, log)
	if err != nil {
		return nil, err
	}
	if cfg.FeedTransport == config.TransportBrowser {
		return scraper.NewRodFetcher(client.PageURL, cfg.JobsRequestTimeout, log), nil
	}
	return client, nil
}

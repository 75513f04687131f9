package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"venueweather/internal/api"
	"venueweather/internal/config"
	"venueweather/internal/database"
	"venueweather/internal/events"
	"venueweather/internal/ingest"
	"venueweather/internal/logger"
	"venueweather/internal/server"

	"github.com/go-redis/redis/v8"
	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"
)

func main() {
	configPath := flag.String("config", os.Getenv("CONFIG_PATH"), "path to the YAML config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		// logger isn't configured yet
		os.Stderr.WriteString("failed to load config: " + err.Error() + "\n")
		os.Exit(1)
	}

	log, err := logger.New(cfg.App.Name, cfg.Log.Level)
	if err != nil {
		os.Stderr.WriteString("failed to create logger: " + err.Error() + "\n")
		os.Exit(1)
	}
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Initialize database
	db, err := database.NewDB(ctx, cfg.Database.DSN())
	if err != nil {
		log.Fatal("failed to initialize database", zap.Error(err))
	}
	defer db.Close()

	// Initialize API client
	client := api.NewArchiveClient(cfg.Archive.BaseURL, cfg.Archive.Timeout, log.Named("archive"))

	var publisher ingest.EventPublisher
	if cfg.Redis.Enabled() {
		redisClient := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer redisClient.Close()

		if err := redisClient.Ping(ctx).Err(); err != nil {
			log.Warn("redis unreachable, ingestion events may be lost", zap.String("addr", cfg.Redis.Addr), zap.Error(err))
		}
		publisher = events.NewPublisher(redisClient, cfg.Redis.Stream, log.Named("events"))
	} else {
		log.Info("redis not configured, ingestion events disabled")
	}

	openSession := func(ctx context.Context) (ingest.Session, error) {
		session, err := db.Session(ctx)
		if err != nil {
			return nil, err
		}
		return session, nil
	}

	svc := ingest.NewService(openSession, client, publisher, log.Named("ingest"), clockwork.NewRealClock())
	srv := server.NewServer(svc, db, log.Named("http"), cfg.Server)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	select {
	case err := <-errCh:
		if err != nil {
			log.Fatal("HTTP server failed", zap.Error(err))
		}
		return
	case <-ctx.Done():
	}

	log.Info("shutting down", zap.Duration("timeout", cfg.Server.ShutdownTimeout))

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("graceful shutdown failed", zap.Error(err))
	}

	log.Info("server stopped")
}

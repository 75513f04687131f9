package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"venueweather/internal/config"
	"venueweather/internal/events"
	"venueweather/internal/logger"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

// audit tails the ingestion event stream and logs every committed ingestion.
func main() {
	configPath := flag.String("config", os.Getenv("CONFIG_PATH"), "path to the YAML config file")
	group := flag.String("group", "ingestion_audit", "consumer group name")
	name := flag.String("consumer", "audit-1", "consumer name within the group")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		os.Stderr.WriteString("failed to load config: " + err.Error() + "\n")
		os.Exit(1)
	}

	log, err := logger.New(cfg.App.Name+"-audit", cfg.Log.Level)
	if err != nil {
		os.Stderr.WriteString("failed to create logger: " + err.Error() + "\n")
		os.Exit(1)
	}
	defer log.Sync()

	if !cfg.Redis.Enabled() {
		log.Fatal("redis address is not configured")
	}

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer redisClient.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	consumer := events.NewConsumer(redisClient, cfg.Redis.Stream, *group, *name, log)
	if err := consumer.EnsureGroup(ctx); err != nil {
		log.Fatal("failed to prepare consumer group", zap.Error(err))
	}

	log.Info("reading ingestion events", zap.String("stream", cfg.Redis.Stream), zap.String("group", *group))

	for {
		msgs, err := consumer.Read(ctx, 10, 5*time.Second)
		if ctx.Err() != nil {
			break
		}
		if err != nil {
			log.Error("failed to read events", zap.Error(err))
			continue
		}

		ids := make([]string, 0, len(msgs))
		for _, m := range msgs {
			log.Info("ingestion committed",
				zap.String("message_id", m.ID),
				zap.String("request_id", m.Event.RequestID),
				zap.Int64("venue_id", m.Event.VenueID),
				zap.String("start_date", m.Event.StartDate),
				zap.String("end_date", m.Event.EndDate),
				zap.Int("rows", m.Event.Rows),
				zap.Time("ingested_at", m.Event.IngestedAt),
			)
			ids = append(ids, m.ID)
		}

		if err := consumer.Ack(context.Background(), ids...); err != nil {
			log.Error("failed to ack events", zap.Error(err))
		}
	}

	log.Info("audit consumer stopped")
}

// The worker binary runs the sequence engine without the HTTP API.
// Deployments that scale the API separately from sending run one or more
// of these; the distributed run lock keeps concurrent workers from
// double-processing a tick.
package main

import (
	"context"
	"database/sql"
	"log"
	"os"
	"os/signal"
	"syscall"

	_ "github.com/lib/pq"
	"github.com/redis/go-redis/v9"

	"github.com/stillpoint/drip/internal/config"
	"github.com/stillpoint/drip/internal/pkg/distlock"
	"github.com/stillpoint/drip/internal/pkg/logger"
	"github.com/stillpoint/drip/internal/repository/postgres"
	"github.com/stillpoint/drip/internal/sequence"
	"github.com/stillpoint/drip/internal/template"
	"github.com/stillpoint/drip/internal/worker"
)

func main() {
	cfg, err := config.LoadFromEnv("config/config.yaml")
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	db, err := sql.Open("postgres", cfg.Database.URL)
	if err != nil {
		log.Fatalf("open database: %v", err)
	}
	db.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	db.SetMaxIdleConns(cfg.Database.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.Database.ConnMaxLifetime())
	if err := db.Ping(); err != nil {
		log.Fatalf("ping database: %v", err)
	}
	defer db.Close()

	var redisClient *redis.Client
	if cfg.Redis.Enabled {
		opts, err := redis.ParseURL(cfg.Redis.URL)
		if err != nil {
			log.Fatalf("parse redis url: %v", err)
		}
		redisClient = redis.NewClient(opts)
		defer redisClient.Close()
	}

	sender, err := worker.NewSenderFromConfig(context.Background(), cfg)
	if err != nil {
		log.Fatalf("init delivery provider: %v", err)
	}

	processor := sequence.NewProcessor(
		postgres.NewProcessorStore(db), sender, template.NewService(), cfg.Delivery, cfg.Engine)
	engine := sequence.NewEngine(processor, func() distlock.DistLock {
		return distlock.NewLock(redisClient, db, "drip:engine:run", cfg.Engine.LockTTL())
	}, cfg.Engine.TickInterval())

	engine.Start()
	logger.Info("worker: engine running", "interval", cfg.Engine.TickInterval())

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	logger.Info("worker: shutting down", "signal", sig.String())
	engine.Stop()
}

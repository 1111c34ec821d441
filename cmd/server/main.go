package main

import (
	"context"
	"database/sql"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq"
	"github.com/redis/go-redis/v9"

	"github.com/stillpoint/drip/internal/api"
	"github.com/stillpoint/drip/internal/auth"
	"github.com/stillpoint/drip/internal/config"
	"github.com/stillpoint/drip/internal/pkg/distlock"
	"github.com/stillpoint/drip/internal/pkg/logger"
	"github.com/stillpoint/drip/internal/repository/postgres"
	"github.com/stillpoint/drip/internal/sequence"
	"github.com/stillpoint/drip/internal/service/enrollment"
	"github.com/stillpoint/drip/internal/service/sequencedef"
	"github.com/stillpoint/drip/internal/service/subscriber"
	"github.com/stillpoint/drip/internal/template"
	"github.com/stillpoint/drip/internal/worker"
)

func main() {
	cfg, err := config.LoadFromEnv("config/config.yaml")
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	if os.Getenv("LOG_LEVEL") == "debug" {
		logger.SetLevel(logger.DEBUG)
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
		if err := redisClient.Ping(context.Background()).Err(); err != nil {
			logger.Warn("redis unreachable, run lock falls back to pg advisory", "error", err)
			redisClient = nil
		} else {
			defer redisClient.Close()
		}
	}

	sender, err := worker.NewSenderFromConfig(context.Background(), cfg)
	if err != nil {
		log.Fatalf("init delivery provider: %v", err)
	}
	templates := template.NewService()

	enrollmentRepo := postgres.NewEnrollmentRepo(db)
	enrollmentSvc := enrollment.NewService(enrollmentRepo)
	subscriberSvc := subscriber.NewService(postgres.NewSubscriberRepo(db), enrollmentSvc)
	sequenceSvc := sequencedef.NewService(postgres.NewSequenceRepo(db))

	processor := sequence.NewProcessor(
		postgres.NewProcessorStore(db), sender, templates, cfg.Delivery, cfg.Engine)
	engine := sequence.NewEngine(processor, func() distlock.DistLock {
		return distlock.NewLock(redisClient, db, "drip:engine:run", cfg.Engine.LockTTL())
	}, cfg.Engine.TickInterval())

	if cfg.Engine.Enabled {
		engine.Start()
		defer engine.Stop()
	}

	var authManager *auth.Manager
	if cfg.Auth.Enabled {
		authManager = auth.NewManager(&cfg.Auth, cfg.Server.BaseURL)
		authManager.StartSessionCleanup()
		defer authManager.StopSessionCleanup()
	}

	handlers := api.NewHandlers(
		subscriberSvc, enrollmentSvc, sequenceSvc, engine,
		cfg.Server.ProcessSecret,
		&api.HealthChecker{DB: db, Redis: redisClient, Engine: engine},
	)
	server := api.NewServer(cfg.Server, handlers, authManager)

	errCh := make(chan error, 1)
	go func() { errCh <- server.ListenAndServe() }()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		log.Fatalf("server: %v", err)
	case sig := <-sigCh:
		logger.Info("shutting down", "signal", sig.String())
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		logger.Error("shutdown failed", "error", err)
	}
}

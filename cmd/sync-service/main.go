package main

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-redis/redis/v8"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"

	"ms-chainsync/internal/auth"
	"ms-chainsync/internal/config"
	"ms-chainsync/internal/database/migrations"
	"ms-chainsync/internal/ingest"
	"ms-chainsync/internal/kafka"
	"ms-chainsync/internal/ledger"
	"ms-chainsync/internal/logger"
	"ms-chainsync/internal/mint"
	"ms-chainsync/internal/mint/api"
	"ms-chainsync/internal/reconciler"
	"ms-chainsync/internal/store"
	"ms-chainsync/internal/syncqueue"
)

func connectPostgres(cfg config.DatabaseConfig, log *logger.Logger) *bun.DB {
	var sqldb *sql.DB
	var err error
	maxRetries := 5

	for i := 0; i < maxRetries; i++ {
		log.Info("DATABASE", fmt.Sprintf("Attempting to connect to PostgreSQL (attempt %d/%d)", i+1, maxRetries))
		sqldb, err = sql.Open("postgres", cfg.DSN)
		if err == nil {
			err = sqldb.Ping()
			if err == nil {
				break
			}
		}
		log.Error("DATABASE", fmt.Sprintf("Failed to connect to PostgreSQL: %v", err))
		if i < maxRetries-1 {
			time.Sleep(2 * time.Second)
		}
	}
	if err != nil {
		log.Fatal("DATABASE", fmt.Sprintf("Failed to connect to PostgreSQL after %d attempts: %v", maxRetries, err))
	}

	sqldb.SetMaxOpenConns(cfg.MaxOpenConns)
	sqldb.SetMaxIdleConns(cfg.MaxIdleConns)
	sqldb.SetConnMaxLifetime(cfg.MaxLifetime)

	log.Info("DATABASE", "PostgreSQL connection successful")
	return bun.NewDB(sqldb, pgdialect.New())
}

func connectRedis(ctx context.Context, cfg config.RedisConfig, log *logger.Logger) *redis.Client {
	client := redis.NewClient(&redis.Options{
		Addr: cfg.Addr,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		log.Fatal("DATABASE", fmt.Sprintf("Redis connection error: %v", err))
	}
	log.Info("DATABASE", fmt.Sprintf("Redis connection successful to %s", cfg.Addr))
	return client
}

func main() {
	log := logger.NewLogger()
	defer log.Close()

	log.Info("APP", "Starting Chain Sync Service initialization")

	if err := godotenv.Load(); err != nil {
		log.Warn("CONFIG", ".env file not found, using environment variables")
	} else {
		log.Info("CONFIG", "Loaded environment variables from .env file")
	}

	cfg := config.Load()
	ctx := context.Background()

	bunDB := connectPostgres(cfg.Database, log)
	defer bunDB.Close()

	runner := migrations.NewRunner(bunDB, migrations.DefaultOptions())
	if err := runner.RunMigrations(); err != nil {
		log.Fatal("DATABASE", fmt.Sprintf("Migrations failed: %v", err))
	}
	defer runner.Close()

	redisClient := connectRedis(ctx, cfg.Redis, log)
	defer redisClient.Close()

	var kafkaProducer *kafka.Producer
	if cfg.Kafka.Enabled {
		kafkaProducer = kafka.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.Topics)
		defer kafkaProducer.Close()
		log.Info("KAFKA", "Kafka producer initialized successfully")

		requiredTopics := []string{
			cfg.Kafka.Topics.EventSynced,
			cfg.Kafka.Topics.TicketSynced,
			cfg.Kafka.Topics.TicketResold,
		}
		if err := kafka.EnsureTopicsExist(cfg.Kafka.Brokers, requiredTopics); err != nil {
			log.Warn("KAFKA", fmt.Sprintf("Topic creation might have failed: %v", err))
		} else {
			log.Info("KAFKA", "Required topics ensured successfully")
		}
	} else {
		log.Warn("KAFKA", "Kafka disabled, projection changes will not be announced")
	}

	programID, err := ledger.ParseActorHex(cfg.Ledger.ProgramID)
	if err != nil {
		log.Fatal("CONFIG", fmt.Sprintf("LEDGER_PROGRAM_ID is not a valid actor id: %v", err))
	}
	ledgerClient := ledger.NewGatewayClient(cfg.Ledger.GatewayURL, programID, &http.Client{Timeout: 30 * time.Second}, log)

	db := store.New(bunDB)

	queueStorage := syncqueue.NewRedisStorage(redisClient, "chainsync")
	queue := syncqueue.New(queueStorage, log, syncqueue.Options{
		Concurrency: cfg.Sync.Concurrency,
		MaxAttempts: cfg.Sync.MaxAttempts,
		BackoffBase: cfg.Sync.BackoffBase,
	})

	var publisher reconciler.KafkaPublisher
	if kafkaProducer != nil {
		publisher = kafkaProducer
	}
	rec := reconciler.New(db, ledgerClient, publisher, log, cfg.Sync, cfg.Ledger.AddressPrefix)
	rec.Register(queue)
	queue.Start(ctx)

	ingCtx, ingCancel := context.WithCancel(ctx)
	ingestor := ingest.New(ledgerClient, queue, log, cfg.Ledger)
	go func() {
		if err := ingestor.Start(ingCtx); err != nil {
			log.Error("LEDGER", fmt.Sprintf("Ingestor failed to start: %v", err))
		}
	}()

	mintService := mint.NewService(db, ledgerClient, log, cfg.Sync)
	handler := &api.Handler{
		MintService: mintService,
		DB:          db,
		Queue:       queue,
	}

	log.Info("HTTP", "Setting up router and middleware")
	r := chi.NewRouter()

	// --- Public Routes ---
	r.Get("/health", func(w http.ResponseWriter, req *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	// --- Protected Routes ---
	r.Group(func(r chi.Router) {
		if cfg.Auth.OIDCIssuer != "" {
			r.Use(auth.Middleware(cfg.Auth.OIDCIssuer))
			log.Info("AUTH", "JWT middleware applied to protected API routes")
		} else {
			log.Warn("AUTH", "OIDC_ISSUER not set, chain routes are unauthenticated")
		}
		handler.Register(r)
		log.Info("ROUTER", "Chain sync routes registered under /api/chain")
	})

	server := &http.Server{
		Addr:         cfg.Server.Port,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		log.Info("HTTP", fmt.Sprintf("Chain Sync Service running on %s", cfg.Server.Port))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("HTTP", fmt.Sprintf("HTTP server error: %v", err))
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	log.Info("APP", "Service started successfully, waiting for shutdown signal")
	<-stop

	log.Info("APP", "Shutdown signal received, initiating graceful shutdown")
	ctxShutdown, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := server.Shutdown(ctxShutdown); err != nil {
		log.Error("HTTP", fmt.Sprintf("Server Shutdown Failed: %v", err))
	}

	ingCancel()
	ingestor.Close()
	queue.Stop()
	log.Info("APP", "Chain Sync Service shutdown complete")
}

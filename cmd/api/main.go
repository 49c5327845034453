package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"

	"poolorder/internal/adapter/auth"
	"poolorder/internal/adapter/storage"
	"poolorder/internal/config"
	"poolorder/internal/domain/identity"
	"poolorder/internal/server"
	chatservice "poolorder/internal/service/chat"
	"poolorder/internal/service/cleanup"
	memberservice "poolorder/internal/service/member"
	requestservice "poolorder/internal/service/request"
)

func main() {
	// .env is optional; real deployments set the environment directly.
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Printf("error loading .env file: %v", err)
	}

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Setup context with cancellation for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Setup signal handling for graceful shutdown
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	// Initialize dependencies
	db, err := storage.NewPool(ctx, cfg.Database)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer db.Close()

	if err := storage.EnsureSchema(ctx, db); err != nil {
		log.Fatalf("Failed to ensure database schema: %v", err)
	}

	natsConn, err := initNATS(cfg.NATS)
	if err != nil {
		log.Fatalf("Failed to connect to NATS: %v", err)
	}
	defer natsConn.Close()

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer redisClient.Close()

	// Token verification is optional; without credentials every caller is
	// anonymous, which matches the public read surface.
	var verifier identity.Verifier
	if v, err := auth.NewFirebaseVerifier(ctx, cfg.Auth); err != nil {
		log.Printf("identity verification disabled: %v", err)
	} else {
		verifier = v
	}

	// Initialize storage adapters
	requestStore := storage.NewRequestStore(db)
	membershipStore := storage.NewMembershipStore(db)
	messageStore := storage.NewMessageStore(db)

	// Initialize services
	requestService := requestservice.NewService(requestStore, requestservice.Config{
		MinTTL:          cfg.Request.MinTTL,
		MaxTTL:          cfg.Request.MaxTTL,
		DefaultTTL:      cfg.Request.DefaultTTL,
		MinRadiusKm:     cfg.Request.MinRadiusKm,
		MaxRadiusKm:     cfg.Request.MaxRadiusKm,
		DefaultRadiusKm: cfg.Request.DefaultRadiusKm,
		MaxItemLen:      cfg.Request.MaxItemLen,
		MaxPlatformLen:  cfg.Request.MaxPlatformLen,
		MaxGeoRanges:    cfg.Request.MaxGeoRanges,
		NearbyLimit:     cfg.Request.NearbyLimit,
	})

	ledger := memberservice.NewLedger(requestStore, membershipStore)

	scheduler := cleanup.NewScheduler(requestStore, cleanup.Config{
		Interval:  cfg.Cleanup.Interval,
		BatchSize: cfg.Cleanup.BatchSize,
	})

	limiter := chatservice.NewRedisRateLimiter(redisClient, cfg.Chat.RateLimit, cfg.Chat.RateLimitWindow)

	chatService := chatservice.NewService(
		requestStore, ledger, messageStore,
		limiter, natsConn, scheduler,
		chatservice.Config{
			MaxMessageLength: cfg.Chat.MaxMessageLength,
			PageSize:         cfg.Chat.PageSize,
			InlineSweepBatch: cfg.Cleanup.InlineBatch,
		},
	)

	// Start the expiry sweep
	scheduler.Start(ctx)

	// Initialize HTTP server
	httpServer := server.NewServer(
		cfg.Server,
		natsConn,
		verifier,
		cfg.Auth.AllowAnonymous,
		requestService,
		ledger,
		chatService,
	)

	// Start HTTP server
	go func() {
		log.Printf("Starting HTTP server on %s:%d", cfg.Server.Host, cfg.Server.Port)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("HTTP server error: %v", err)
		}
	}()

	// Wait for shutdown signal
	<-shutdown
	log.Println("Shutdown signal received")

	// Create shutdown context with timeout
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	// Graceful shutdown
	log.Println("Shutting down services...")

	// Shutdown HTTP server
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Printf("HTTP server shutdown error: %v", err)
	}

	// Stop the cleanup scheduler
	if err := scheduler.Stop(shutdownCtx); err != nil {
		log.Printf("Cleanup scheduler shutdown error: %v", err)
	}

	log.Println("Shutdown complete")
}

// Initialize NATS connection
func initNATS(cfg config.NATSConfig) (*nats.Conn, error) {
	options := []nats.Option{
		nats.MaxReconnects(cfg.MaxReconnects),
		nats.ReconnectWait(cfg.ReconnectWait),
		nats.Timeout(cfg.ConnectTimeout),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			log.Printf("NATS disconnected: %v", err)
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Printf("NATS reconnected to %s", nc.ConnectedUrl())
		}),
		nats.ClosedHandler(func(nc *nats.Conn) {
			log.Printf("NATS connection closed")
		}),
	}

	nc, err := nats.Connect(cfg.URL, options...)
	if err != nil {
		return nil, fmt.Errorf("unable to connect to NATS: %w", err)
	}

	return nc, nil
}

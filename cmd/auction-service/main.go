package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alitto/pond"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"live-auction-service/internal/adapters/broadcaster"
	"live-auction-service/internal/adapters/db"
	"live-auction-service/internal/adapters/httpapi"
	"live-auction-service/internal/adapters/memory"
	"live-auction-service/internal/adapters/notifier"
	"live-auction-service/internal/adapters/payments"
	"live-auction-service/internal/adapters/redis"
	"live-auction-service/internal/adapters/scheduler"
	"live-auction-service/internal/adapters/ws"
	"live-auction-service/internal/app"
	"live-auction-service/internal/config"
	"live-auction-service/internal/idempotency"
	"live-auction-service/internal/ports/outbound"
)

const (
	payoutWorkers  = 4
	payoutCapacity = 100
)

func main() {

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	initLogging(cfg)

	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("Invalid configuration")
	}

	log.Info().Msg("Starting Live Auction Service...")

	// Create context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Select the store
	var repos outbound.RepositoryFactory
	if cfg.Database.UsesMemory() {
		repos = memory.NewStore()
		log.Warn().Msg("Using in-memory store, data is lost on restart")
	} else {
		dbConn, err := db.NewConnection(ctx, cfg)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to connect to database")
		}
		defer dbConn.Close()

		if err := dbConn.EnsureSchema(ctx); err != nil {
			log.Fatal().Err(err).Msg("Failed to apply database schema")
		}
		repos = db.NewRepositoryFactory(dbConn)
		log.Info().Msg("Database connection established")
	}

	auctionRepo := repos.GetAuctionRepository()
	bidRepo := repos.GetBidRepository()
	orderRepo := repos.GetOrderRepository()
	payoutRepo := repos.GetPayoutRepository()
	userRepo := repos.GetUserRepository()

	// Create Redis client
	redisClient := redis.NewClient(cfg)
	if err := redis.PingRedis(ctx, redisClient); err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to Redis")
	}
	defer redisClient.Close()
	log.Info().Msg("Redis connection established")

	redisBroadcaster := broadcaster.NewBroadcaster(broadcaster.RedisBroadcasterParams{
		RedisClient: redisClient,
		Logger:      log.Logger,
	})

	caller := idempotency.NewCaller(idempotency.CallerParams{
		Store:  redis.NewIdempotencyStore(redisClient),
		TTL:    cfg.Marketplace.IdempotencyTTL,
		Logger: log.Logger,
	})

	provider, err := payments.NewProvider(cfg, log.Logger)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create payment provider")
	}
	log.Info().Str("provider", provider.Name()).Msg("Payment provider initialized")

	// Notifications go to NATS when configured
	var notify outbound.Notifier = notifier.NewLogNotifier(log.Logger)
	if cfg.NATS.URL != "" {
		natsConn, err := notifier.Connect(cfg.NATS.URL, log.Logger)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to connect to NATS")
		}
		defer natsConn.Drain()
		notify = notifier.NewNATSNotifier(notifier.NATSNotifierParams{
			Conn:          natsConn,
			SubjectPrefix: cfg.NATS.SubjectPrefix,
			Logger:        log.Logger,
		})
		log.Info().Str("url", cfg.NATS.URL).Msg("NATS notifier initialized")
	}

	payoutPool := pond.New(payoutWorkers, payoutCapacity, pond.Context(ctx))
	defer payoutPool.StopAndWait()

	// Create business services
	auctionService := app.NewAuctionService(app.AuctionServiceParams{
		AuctionRepo: auctionRepo,
		BidRepo:     bidRepo,
		Broadcaster: redisBroadcaster,
		Notifier:    notify,
		Logger:      log.Logger,
	})

	auctionScheduler := scheduler.NewAuctionScheduler(scheduler.AuctionSchedulerParams{
		RedisClient:    redisClient,
		AuctionService: auctionService,
		SweepInterval:  cfg.Marketplace.AuctionSweepInterval,
		Logger:         log.Logger,
	})
	auctionService.SetSchedule(auctionScheduler)

	bidService := app.NewBidService(app.BidServiceParams{
		BidRepo:     bidRepo,
		AuctionRepo: auctionRepo,
		UserRepo:    userRepo,
		Schedule:    auctionScheduler,
		Broadcaster: redisBroadcaster,
		Notifier:    notify,
		Logger:      log.Logger,
	})
	purchaseService := app.NewPurchaseService(app.PurchaseServiceParams{
		AuctionRepo: auctionRepo,
		OrderRepo:   orderRepo,
		Provider:    provider,
		Caller:      caller,
		Broadcaster: redisBroadcaster,
		Notifier:    notify,
		Logger:      log.Logger,
	})
	settlementService := app.NewSettlementService(app.SettlementServiceParams{
		OrderRepo:  orderRepo,
		PayoutRepo: payoutRepo,
		Notifier:   notify,
		Logger:     log.Logger,
	})
	payoutService := app.NewPayoutService(app.PayoutServiceParams{
		OrderRepo:  orderRepo,
		PayoutRepo: payoutRepo,
		UserRepo:   userRepo,
		Provider:   provider,
		Caller:     caller,
		Pool:       payoutPool,
		HoldDays:   cfg.Marketplace.SellerPayoutHoldDays,
		Notifier:   notify,
		Logger:     log.Logger,
	})

	log.Info().Msg("Business services initialized")

	auctionScheduler.Start()

	payoutSweeper := scheduler.NewPayoutSweeper(scheduler.PayoutSweeperParams{
		PayoutService: payoutService,
		Interval:      cfg.Marketplace.PayoutSweepInterval,
		BatchSize:     cfg.Marketplace.PayoutSweepBatchSize,
		Logger:        log.Logger,
	})
	payoutSweeper.Start()

	wsHandler := ws.NewHandler(ws.WsHandlerParams{
		Upgrader: websocket.Upgrader{
			ReadBufferSize:  cfg.WebSocket.ReadBufferSize,
			WriteBufferSize: cfg.WebSocket.WriteBufferSize,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		AuctionService: auctionService,
		BidService:     bidService,
		Broadcaster:    redisBroadcaster,
		Logger:         log.Logger,
	})

	server := httpapi.NewServer(httpapi.ServerParams{
		Config: cfg,
		Handler: httpapi.NewHandler(httpapi.HandlerParams{
			AuctionService:    auctionService,
			BidService:        bidService,
			PurchaseService:   purchaseService,
			SettlementService: settlementService,
			PayoutService:     payoutService,
			LiveHandler:       wsHandler.HandleWebSocket,
			WebhookSecret:     cfg.Payments.WebhookSecret,
			SweepLimit:        cfg.Marketplace.PayoutSweepBatchSize,
			Logger:            log.Logger,
		}),
		Logger: log.Logger,
	})

	go func() {
		if err := server.Start(); err != nil {
			log.Error().Err(err).Msg("Failed to start HTTP server")
			cancel()
		}
	}()

	// Wait for interrupt signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigChan:
		log.Info().Str("signal", sig.String()).Msg("Received shutdown signal")
	case <-ctx.Done():
		log.Info().Msg("Context cancelled")
	}

	log.Info().Msg("Starting graceful shutdown...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Stop(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Error stopping HTTP server")
	}

	auctionScheduler.Stop()
	payoutSweeper.Stop()

	if err := redisBroadcaster.Close(); err != nil {
		log.Error().Err(err).Msg("Error closing broadcaster")
	}

	log.Info().Msg("Graceful shutdown completed")
}

func initLogging(cfg *config.Config) {
	level, err := zerolog.ParseLevel(cfg.Logging.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	if cfg.Logging.Format == "json" {
		log.Logger = zerolog.New(os.Stdout).With().Timestamp().Logger()
	} else {
		// Console format for development
		output := zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}
		log.Logger = zerolog.New(output).With().Timestamp().Logger()
	}

	zerolog.DefaultContextLogger = &log.Logger
}

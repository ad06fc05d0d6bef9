// main.go
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"cinema-checkout/cmd"
	"cinema-checkout/internal/data/repository"
	"cinema-checkout/internal/event"
	"cinema-checkout/internal/gateway"
	"cinema-checkout/internal/usecase"
	"cinema-checkout/internal/wire"
	"cinema-checkout/internal/worker"
	"cinema-checkout/pkg/database"
	"cinema-checkout/pkg/telemetry"
	"cinema-checkout/pkg/utils"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

func main() {
	// Load config
	config, err := utils.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Initialize logger
	logger, err := utils.InitLogger(config.App.LogPath, config.App.Name, config.App.Debug)
	if err != nil {
		log.Printf("Failed to init logger: %v. Using standard log.", err)
		logger, _ = zap.NewProduction()
	}
	defer logger.Sync()

	logger.Info("Starting application",
		zap.String("app", config.App.Name),
		zap.String("port", config.App.Port),
		zap.Bool("debug", config.App.Debug),
		zap.String("storage", config.Storage.Driver),
		zap.String("ledger", config.Checkout.Ledger),
		zap.Duration("hold_ttl", config.Checkout.HoldTTL),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := telemetry.Init(ctx, telemetry.Config{
		Enabled:       config.Telemetry.Enabled,
		ServiceName:   config.Telemetry.ServiceName,
		CollectorAddr: config.Telemetry.CollectorAddr,
	})
	if err != nil {
		logger.Fatal("Failed to init tracing", zap.Error(err))
	}
	defer shutdownTracing(context.Background())

	// Storage
	repos, closeStorage, err := initStorage(ctx, config, logger)
	if err != nil {
		logger.Fatal("Failed to init storage", zap.Error(err))
	}
	defer closeStorage()

	// Outbound adapters
	gw, err := gateway.New(config, logger)
	if err != nil {
		logger.Fatal("Failed to init payment gateway", zap.Error(err))
	}

	publisher := initPublisher(config, logger)
	defer publisher.Close()

	var rdb *redis.Client
	if config.Checkout.Ledger == "redis" {
		rdb, err = database.InitRedis(ctx, config.Redis)
		if err != nil {
			logger.Fatal("Failed to connect to redis", zap.Error(err))
		}
		defer rdb.Close()
		logger.Info("Redis connected successfully", zap.String("addr", config.Redis.Addr))
	}

	service, err := usecase.NewService(repos, usecase.Deps{
		Gateway:   gw,
		Publisher: publisher,
		Redis:     rdb,
	}, config, logger)
	if err != nil {
		logger.Fatal("Failed to init services", zap.Error(err))
	}

	sweeper := worker.NewHoldSweeper(service.Ledger, service.Checkout, config.Checkout.SweepInterval, logger)

	// Wire all dependencies
	app := wire.Wiring(service, gw, sweeper, config, logger)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := sweeper.Start(gctx); err != nil {
			return err
		}
		<-gctx.Done()
		sweeper.Stop()
		return nil
	})
	g.Go(func() error {
		logger.Info("Starting HTTP server", zap.String("port", config.App.Port))
		return cmd.APIServer(gctx, app.Router, config.App.Port, config.App.ShutdownTimeout, logger)
	})

	if err := g.Wait(); err != nil {
		logger.Error("Application stopped with error", zap.Error(err))
		return
	}
	logger.Info("Application stopped")
}

func initStorage(ctx context.Context, config *utils.Config, logger *zap.Logger) (*repository.Repository, func(), error) {
	seed := repository.DemoSeed()
	if config.Storage.SeedFile != "" {
		loaded, err := repository.LoadSeed(config.Storage.SeedFile)
		if err != nil {
			return nil, nil, err
		}
		seed = loaded
	}

	switch config.Storage.Driver {
	case "memory":
		logger.Warn("Using in-memory storage, bookings are lost on restart")
		repos, err := repository.NewMemoryRepository(seed, logger)
		if err != nil {
			return nil, nil, err
		}
		return repos, func() {}, nil

	default:
		db, err := database.InitDB(ctx, config.Database)
		if err != nil {
			return nil, nil, err
		}
		logger.Info("Database connected successfully")

		if err := database.Migrate(ctx, db); err != nil {
			db.Close()
			return nil, nil, err
		}
		if config.Storage.SeedFile != "" {
			if err := repository.ApplySeed(ctx, db, seed); err != nil {
				db.Close()
				return nil, nil, err
			}
			logger.Info("Seed applied", zap.String("file", config.Storage.SeedFile))
		}

		return repository.NewRepository(db, logger), db.Close, nil
	}
}

func initPublisher(config *utils.Config, logger *zap.Logger) event.Publisher {
	if config.Broker.URL == "" {
		return event.NewLogPublisher(logger)
	}

	publisher, err := event.NewAMQPPublisher(config.Broker.URL, logger)
	if err != nil {
		logger.Warn("Broker unavailable, falling back to log publisher", zap.Error(err))
		return event.NewLogPublisher(logger)
	}
	return publisher
}

package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"google.golang.org/grpc"
	"google.golang.org/grpc/keepalive"

	"github.com/gridduel/duel-server-go/internal/config"
	"github.com/gridduel/duel-server-go/internal/game"
	"github.com/gridduel/duel-server-go/internal/game/catalog"
	"github.com/gridduel/duel-server-go/internal/game/rules"
	"github.com/gridduel/duel-server-go/internal/game/watchers"
	"github.com/gridduel/duel-server-go/internal/leaderboard"
	"github.com/gridduel/duel-server-go/internal/repository"
	"github.com/gridduel/duel-server-go/internal/server"
)

var (
	configPath = flag.String("config", "config/config.yaml", "path to configuration file")
	version    = "dev" // set via ldflags during build
)

func main() {
	flag.Parse()

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	logger, err := initLogger(cfg.Logging)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("starting duel server",
		zap.String("version", version),
		zap.String("config", *configPath),
		zap.String("storage", cfg.Storage.Driver),
	)

	if cfg.Auth.AdminPasswordHash == "" {
		logger.Warn("admin password hash not configured; admin RPC access disabled")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	cards, err := loadCatalog(cfg.Catalog)
	if err != nil {
		logger.Fatal("failed to load card catalog", zap.Error(err))
	}
	logger.Info("card catalog loaded",
		zap.Int("cards", len(cards.All())),
		zap.Strings("decks", cards.DeckNames()),
	)

	store, statsRepo, closeStorage, err := openStorage(ctx, cfg.Storage, logger)
	if err != nil {
		logger.Fatal("failed to open storage", zap.Error(err))
	}
	defer closeStorage()

	ledger := leaderboard.NewLedger(statsRepo, logger.Named("leaderboard"))

	opts := []game.ManagerOption{
		game.WithResultRecorder(ledger),
		game.WithSeatReserver(ledger),
	}
	if cfg.Replay.Enabled {
		if err := os.MkdirAll(cfg.Replay.Directory, 0o755); err != nil {
			logger.Fatal("failed to create replay directory", zap.Error(err))
		}
		opts = append(opts, game.WithReplayRecorder(game.NewReplayRecorder(logger.Named("replay"), cfg.Replay.Directory)))
		logger.Info("replay recording enabled", zap.String("directory", cfg.Replay.Directory))
	}

	engine := game.NewEngine(rulesFromConfig(cfg.Rules))
	gameMgr := game.NewManager(engine, store, logger.Named("game"), opts...)
	logger.Info("game manager initialized",
		zap.Int("starting_health", engine.Rules().StartingHealth),
		zap.Int("mana_ceiling", engine.Rules().ManaCeiling),
	)

	gameStats := watchers.NewGameStatsWatcher(logger.Named("stats"))
	watcherRegistry := rules.NewWatcherRegistry()
	watcherRegistry.AddWatcher(gameStats)
	watcherRegistry.Attach(gameMgr.Events())
	defer watcherRegistry.Detach()

	duelServer := server.NewDuelServer(gameMgr, ledger, cards, logger.Named("grpc"), server.WithGameStats(gameStats))
	grpcServer, healthServer := server.NewGRPCServer(cfg, duelServer, logger.Named("grpc"),
		grpc.KeepaliveParams(keepalive.ServerParameters{
			Time:    30 * time.Second,
			Timeout: 10 * time.Second,
		}),
	)

	lis, err := net.Listen("tcp", cfg.Server.GRPC.Address)
	if err != nil {
		logger.Fatal("failed to listen", zap.Error(err))
	}

	// Start gRPC server
	go func() {
		logger.Info("starting gRPC server", zap.String("address", cfg.Server.GRPC.Address))
		if serveErr := grpcServer.Serve(lis); serveErr != nil {
			logger.Error("gRPC server error", zap.Error(serveErr))
		}
	}()

	// Start WebSocket server
	hub := server.NewHub(gameMgr.Events(), logger.Named("websocket"))
	go hub.Run(ctx)

	wsServer := server.NewWebSocketServer(cfg.Server.WebSocket, hub)
	go func() {
		logger.Info("starting WebSocket server",
			zap.String("address", cfg.Server.WebSocket.Address),
			zap.String("path", cfg.Server.WebSocket.Path),
		)
		if wsErr := wsServer.ListenAndServe(); wsErr != nil && !errors.Is(wsErr, http.ErrServerClosed) {
			logger.Error("WebSocket server error", zap.Error(wsErr))
		}
	}()

	logger.Info("duel server initialized",
		zap.String("version", version),
		zap.String("grpc_address", cfg.Server.GRPC.Address),
		zap.String("websocket_address", cfg.Server.WebSocket.Address),
	)

	// Wait for termination signal
	sig := <-sigChan
	logger.Info("received shutdown signal", zap.String("signal", sig.String()))

	logger.Info("shutting down gracefully...")
	healthServer.Shutdown()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()
	if err := wsServer.Shutdown(shutdownCtx); err != nil {
		logger.Warn("WebSocket server shutdown error", zap.Error(err))
	}
	hub.Close()
	cancel()

	grpcServer.GracefulStop()

	logger.Info("duel server stopped")
}

// openStorage selects the game store and the leaderboard repository for the
// configured driver. The redis driver keeps standings in memory.
func openStorage(ctx context.Context, cfg config.StorageConfig, logger *zap.Logger) (game.Store, repository.StatsRepository, func(), error) {
	switch cfg.Driver {
	case config.DriverPostgres:
		pool, err := repository.NewDB(ctx, cfg.Postgres, logger)
		if err != nil {
			return nil, nil, nil, err
		}
		if err := repository.Migrate(ctx, pool); err != nil {
			pool.Close()
			return nil, nil, nil, err
		}
		stats := pool.Stat()
		logger.Info("database connection pool initialized",
			zap.Int32("total_conns", stats.TotalConns()),
			zap.Int32("idle_conns", stats.IdleConns()),
		)
		return repository.NewPostgresGameStore(pool), repository.NewStatsRepository(pool), pool.Close, nil

	case config.DriverRedis:
		client, err := repository.NewRedisClient(ctx, cfg.Redis, logger)
		if err != nil {
			return nil, nil, nil, err
		}
		closeClient := func() {
			if err := client.Close(); err != nil {
				logger.Warn("failed to close redis client", zap.Error(err))
			}
		}
		return repository.NewRedisGameStore(client, cfg.Redis.TTL), repository.NewMemoryStatsRepository(), closeClient, nil

	default:
		return repository.NewMemoryGameStore(), repository.NewMemoryStatsRepository(), func() {}, nil
	}
}

func loadCatalog(cfg config.CatalogConfig) (*catalog.Catalog, error) {
	if cfg.Path == "" {
		return catalog.Default()
	}
	return catalog.Load(cfg.Path)
}

func rulesFromConfig(cfg config.RulesConfig) game.Rules {
	return game.Rules{
		StartingHealth: cfg.StartingHealth,
		StartingMana:   cfg.StartingMana,
		ManaCeiling:    cfg.ManaCeiling,
		MaxHandSize:    cfg.MaxHandSize,
	}
}

// initLogger initializes the zap logger based on configuration
func initLogger(cfg config.LoggingConfig) (*zap.Logger, error) {
	var level zapcore.Level
	switch cfg.Level {
	case "debug":
		level = zapcore.DebugLevel
	case "info":
		level = zapcore.InfoLevel
	case "warn":
		level = zapcore.WarnLevel
	case "error":
		level = zapcore.ErrorLevel
	default:
		level = zapcore.InfoLevel
	}

	var zapCfg zap.Config
	if cfg.Format == "json" {
		zapCfg = zap.NewProductionConfig()
	} else {
		zapCfg = zap.NewDevelopmentConfig()
		zapCfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}

	zapCfg.Level = zap.NewAtomicLevelAt(level)

	return zapCfg.Build()
}

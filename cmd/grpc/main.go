package main

import (
	"context"
	"errors"
	"log"
	"net"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/jmoiron/sqlx"
	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	"github.com/fekuna/omnipos-stock-service/config"
	"github.com/fekuna/omnipos-stock-service/internal/inventory"
	"github.com/fekuna/omnipos-stock-service/internal/order"
	"github.com/fekuna/omnipos-stock-service/internal/recipe"
	"github.com/fekuna/omnipos-stock-service/internal/stock"
	"github.com/fekuna/omnipos-stock-service/pkg/broker"
	"github.com/fekuna/omnipos-stock-service/pkg/cache"
	"github.com/fekuna/omnipos-stock-service/pkg/database"
	"github.com/fekuna/omnipos-stock-service/pkg/i18n"
	"github.com/fekuna/omnipos-stock-service/pkg/logger"
	"github.com/fekuna/omnipos-stock-service/pkg/middleware"
	"github.com/fekuna/omnipos-stock-service/pkg/search"
	"github.com/fekuna/omnipos-stock-service/pkg/telemetry"

	invH "github.com/fekuna/omnipos-stock-service/internal/inventory/handler"
	invRepoPkg "github.com/fekuna/omnipos-stock-service/internal/inventory/repository"
	invUCPkg "github.com/fekuna/omnipos-stock-service/internal/inventory/usecase"

	recipeH "github.com/fekuna/omnipos-stock-service/internal/recipe/handler"
	recipeIndexer "github.com/fekuna/omnipos-stock-service/internal/recipe/indexer"
	recipeRepoPkg "github.com/fekuna/omnipos-stock-service/internal/recipe/repository"
	recipeUCPkg "github.com/fekuna/omnipos-stock-service/internal/recipe/usecase"

	orderH "github.com/fekuna/omnipos-stock-service/internal/order/handler"
	orderListenerPkg "github.com/fekuna/omnipos-stock-service/internal/order/listener"
	orderNotifierPkg "github.com/fekuna/omnipos-stock-service/internal/order/notifier"
	orderRepoPkg "github.com/fekuna/omnipos-stock-service/internal/order/repository"
	orderUCPkg "github.com/fekuna/omnipos-stock-service/internal/order/usecase"

	stockRepoPkg "github.com/fekuna/omnipos-stock-service/internal/stock/repository"
)

func main() {
	// 1. Load Configuration
	cfg, err := config.LoadEnv()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	// 2. Initialize Logger
	logConfig := &logger.ZapLoggerConfig{
		IsDevelopment:     false,
		Encoding:          "json",
		Level:             cfg.Logger.Level,
		DisableCaller:     cfg.Logger.DisableCaller,
		DisableStacktrace: cfg.Logger.DisableStacktrace,
	}
	if cfg.Server.AppEnv == "development" || cfg.Server.AppEnv == "dev" {
		logConfig.IsDevelopment = true
		logConfig.Encoding = cfg.Logger.Encoding
	}

	appLogger := logger.NewZapLogger(logConfig)
	defer appLogger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 2.5 Initialize i18n and tracing
	translator, err := i18n.NewTranslator(cfg.Server.Locale)
	if err != nil {
		appLogger.Fatal("Could not load translations", zap.Error(err))
	}

	shutdownTracing, err := telemetry.Setup(ctx, telemetry.Config{
		ServiceName: cfg.Telemetry.ServiceName,
		Endpoint:    cfg.Telemetry.Endpoint,
		SampleRatio: cfg.Telemetry.SampleRatio,
	})
	if err != nil {
		appLogger.Warn("Could not start tracing", zap.Error(err))
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(shutdownCtx); err != nil {
			appLogger.Warn("failed to flush traces", zap.Error(err))
		}
	}()

	// 3. Connect to Database
	db, err := openDatabase(ctx, cfg)
	if err != nil {
		appLogger.Fatal("Could not connect to database", zap.String("driver", cfg.Postgres.Driver), zap.Error(err))
	}
	defer db.Close()
	appLogger.Info("Connected to database", zap.String("driver", cfg.Postgres.Driver))

	if err := database.Migrate(ctx, db); err != nil {
		appLogger.Fatal("Could not apply migrations", zap.Error(err))
	}

	txm := database.NewTxManager(db, database.TxConfig{
		MaxAttempts: cfg.Engine.MaxTxAttempts,
		LockTimeout: cfg.Engine.LockTimeout,
		BaseDelay:   cfg.Engine.RetryBaseDelay,
	}, appLogger)

	// 4. Initialize Repositories
	invRepo := invRepoPkg.NewPGRepository(db)
	recipeRepo := recipeRepoPkg.NewPGRepository(db)
	orderRepo := orderRepoPkg.NewPGRepository(db)
	reservationRepo := stockRepoPkg.NewPGRepository(db)

	// 5. Initialize Redis. Row locks stay authoritative, so the service runs
	// without it and only loses idempotency keys and list caching.
	var (
		invLocker   inventory.Locker
		orderLocker order.Locker
		recipeCache recipe.Cache
	)
	redisClient, err := cache.NewRedisClient(&cache.Config{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err != nil {
		appLogger.Warn("Could not connect to Redis (idempotency keys disabled)", zap.Error(err))
	} else {
		defer redisClient.Close()
		invLocker, orderLocker, recipeCache = redisClient, redisClient, redisClient
		appLogger.Info("Connected to Redis", zap.String("addr", cfg.Redis.Addr))
	}

	// 5.5 Initialize Kafka
	kafkaConsumer := broker.NewConsumer(&broker.Config{
		Brokers: cfg.Kafka.Brokers,
		Topic:   cfg.Kafka.OrderEventsTopic,
		GroupID: cfg.Kafka.GroupID,
	})
	defer kafkaConsumer.Close()

	kafkaProducer := broker.NewProducer(&broker.Config{
		Brokers: cfg.Kafka.Brokers,
		Topic:   cfg.Kafka.NotificationsTopic,
	})
	defer kafkaProducer.Close()
	appLogger.Info("Kafka configured",
		zap.Strings("brokers", cfg.Kafka.Brokers),
		zap.String("consume", cfg.Kafka.OrderEventsTopic),
		zap.String("publish", cfg.Kafka.NotificationsTopic),
	)

	// 5.8 Initialize Elasticsearch
	var indexer recipe.Indexer
	esClient, err := search.NewClient(&search.Config{
		Addresses: cfg.Elastic.Addresses,
		Username:  cfg.Elastic.Username,
		Password:  cfg.Elastic.Password,
	})
	if err != nil {
		appLogger.Warn("Could not connect to Elasticsearch (recipe search falls back to SQL)", zap.Error(err))
	} else {
		esIndexer := recipeIndexer.NewElasticIndexer(esClient)
		if err := esIndexer.EnsureIndex(ctx); err != nil {
			appLogger.Warn("Could not ensure recipe index", zap.Error(err))
		}
		indexer = esIndexer
		appLogger.Info("Connected to Elasticsearch", zap.Strings("addresses", cfg.Elastic.Addresses))
	}

	// 6. Initialize UseCases
	recipeUC := recipeUCPkg.NewRecipeUseCase(recipeRepo, invRepo, txm, indexer, recipeCache, appLogger)
	invUC := invUCPkg.NewInventoryUseCase(invRepo, txm, recipeUC, invLocker, appLogger)
	engine := stock.NewEngine(invRepo, recipeRepo, reservationRepo, appLogger)
	notifier := orderNotifierPkg.NewKafkaNotifier(kafkaProducer)
	orderUC := orderUCPkg.NewOrderUseCase(orderRepo, engine, txm, orderLocker, notifier, appLogger)

	// 6.5 Initialize Listeners
	orderListener := orderListenerPkg.NewOrderListener(kafkaConsumer, orderUC, appLogger)

	// 7. Initialize Handlers
	invHandler := invH.NewInventoryHandler(invUC, appLogger)
	recipeHandler := recipeH.NewRecipeHandler(recipeUC, appLogger)
	orderHandler := orderH.NewOrderHandler(orderUC, appLogger)

	// 8. Start gRPC Server
	port := cfg.Server.GRPCPort
	if !strings.HasPrefix(port, ":") {
		port = ":" + port
	}

	lis, err := net.Listen("tcp", port)
	if err != nil {
		appLogger.Fatal("failed to listen", zap.String("port", port), zap.Error(err))
	}

	grpcServer := grpc.NewServer(
		grpc.StatsHandler(otelgrpc.NewServerHandler()),
		grpc.ChainUnaryInterceptor(
			middleware.RecoveryInterceptor(appLogger),
			middleware.ContextInterceptor(),
			middleware.LoggingInterceptor(appLogger),
			middleware.ErrorInterceptor(translator),
		),
	)

	// Register Services
	invHandler.Register(grpcServer)
	recipeHandler.Register(grpcServer)
	orderHandler.Register(grpcServer)

	healthServer := health.NewServer()
	healthpb.RegisterHealthServer(grpcServer, healthServer)
	reflection.Register(grpcServer)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		appLogger.Info("Starting gRPC server", zap.String("port", port))
		if err := grpcServer.Serve(lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		return orderListener.Start(gctx)
	})

	// Graceful Shutdown
	g.Go(func() error {
		<-gctx.Done()
		appLogger.Info("Shutting down server...")
		healthServer.Shutdown()
		grpcServer.GracefulStop()
		return nil
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		appLogger.Error("Server stopped with error", zap.Error(err))
		return
	}
	appLogger.Info("Server stopped")
}

func openDatabase(ctx context.Context, cfg *config.Config) (*sqlx.DB, error) {
	if cfg.Postgres.Driver == "sqlite" {
		return database.NewSQLite(ctx, cfg.Postgres.SQLitePath, cfg.Engine.SQLiteBusyMs)
	}
	return database.NewPostgres(ctx, &database.Config{
		Host:            cfg.Postgres.Host,
		Port:            cfg.Postgres.Port,
		User:            cfg.Postgres.User,
		Password:        cfg.Postgres.Password,
		DBName:          cfg.Postgres.DBName,
		SSLMode:         cfg.Postgres.SSLMode,
		MaxOpenConns:    cfg.Postgres.MaxOpenConns,
		MaxIdleConns:    cfg.Postgres.MaxIdleConns,
		ConnMaxLifetime: cfg.Postgres.ConnMaxLifetime,
		ConnMaxIdleTime: cfg.Postgres.ConnMaxIdleTime,
	})
}

// README: Entry point; loads config, wires services, starts HTTP server and background monitors.
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"offpeak/internal/config"
	"offpeak/internal/congestion"
	httptransport "offpeak/internal/http"
	"offpeak/internal/infra"
	"offpeak/internal/maps"
	"offpeak/internal/modules/recommend"
	"offpeak/internal/modules/trip"
	"offpeak/internal/modules/wallet"
	"offpeak/internal/observability"
	"offpeak/internal/timebucket"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}

	logger := observability.NewLogger(cfg.Observability.Debug)
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracer, err := observability.InitTracer(ctx, cfg.Observability.OTLPEndpoint, cfg.Observability.ServiceName)
	if err != nil {
		logger.Fatal("tracer init", zap.Error(err))
	}

	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		logger.Fatal("load timezone", zap.String("timezone", cfg.Timezone), zap.Error(err))
	}
	classifier, err := timebucket.NewClassifier(cfg.Buckets, loc)
	if err != nil {
		logger.Fatal("bucket table", zap.Error(err))
	}

	if err := infra.Migrate(ctx, cfg.DB.DSN); err != nil {
		logger.Fatal("migrate", zap.Error(err))
	}
	pool, err := infra.NewDB(ctx, cfg.DB.DSN)
	if err != nil {
		logger.Fatal("connect postgres", zap.Error(err))
	}
	defer pool.Close()

	redisClient := infra.NewRedis(cfg.Redis.Addr)
	defer func() { _ = redisClient.Close() }()

	verifier := infra.NewJWTVerifier(cfg.Auth.JWTSecret)

	mapsClient, err := maps.NewClient(cfg.Maps.APIKey, logger)
	if err != nil {
		logger.Fatal("maps client", zap.Error(err))
	}

	metrics := observability.NewMetrics()

	profile := congestion.NewProfile(cfg.Congestion, loc)
	model := congestion.NewCompositeModel(
		profile,
		classifier,
		congestion.NewRedisSnapshots(redisClient),
		congestion.NewIndexStore(pool, cfg.Congestion.IndexVersion),
		cfg.Congestion.SnapshotTTL,
		logger,
	)

	calc := wallet.NewCalculator(cfg.Reward)
	walletSvc := wallet.NewService(pool, wallet.NewStore(pool), calc, metrics, logger)

	recommendSvc := recommend.NewService(
		recommend.NewStore(pool),
		mapsClient,
		mapsClient,
		model,
		classifier,
		recommend.NewCache(redisClient),
		cfg.Search,
		metrics,
		logger,
	)

	tripSvc := trip.NewService(
		pool,
		trip.NewStore(pool),
		recommendSvc,
		walletSvc,
		walletSvc.Calculator(),
		model,
		classifier,
		metrics,
		logger,
	)

	router := httptransport.NewRouter(httptransport.RouterDeps{
		Recommend: recommendSvc,
		Trip:      tripSvc,
		Wallet:    walletSvc,
		Verifier:  verifier,
		Metrics:   metrics,
		Log:       logger,
	})
	server := httptransport.NewServer(cfg.HTTP.Addr, router, logger)

	go walletSvc.RunConsistencyMonitor(ctx)

	serveErr := make(chan error, 1)
	go func() { serveErr <- server.Run() }()

	select {
	case <-ctx.Done():
	case err := <-serveErr:
		if err != nil {
			logger.Fatal("http server", zap.Error(err))
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Warn("shutdown", zap.Error(err))
	}
	if err := shutdownTracer(shutdownCtx); err != nil {
		logger.Warn("tracer shutdown", zap.Error(err))
	}
}

package main

import (
	"context"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"cryptosim/internal/admin"
	"cryptosim/internal/auth"
	"cryptosim/internal/checkpoint"
	"cryptosim/internal/config"
	"cryptosim/internal/db"
	"cryptosim/internal/engine"
	"cryptosim/internal/health"
	"cryptosim/internal/httpserver"
	"cryptosim/internal/ledger"
	"cryptosim/internal/marketdata"
	"cryptosim/internal/watchlist"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}

	var logger *zap.Logger
	if cfg.AppMode == "production" {
		logger, err = zap.NewProduction()
	} else {
		logger, err = zap.NewDevelopment()
	}
	if err != nil {
		log.Fatal(err)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	locks := engine.NewLocks()
	balances := engine.NewBalances()
	positions := engine.NewPositionLedger()
	orders := engine.NewOrderLog()
	eng := engine.New(locks, balances, positions, orders, logger)

	users := auth.NewService(cfg.JWTIssuer, []byte(cfg.JWTSecret), cfg.JWTTTL, cfg.AdminEmail)
	workflow := ledger.NewService(locks, balances, logger)
	watch := watchlist.NewStore()

	marketStore := marketdata.NewStore()
	feedClient := marketdata.NewClient(cfg.FeedURL, cfg.FeedTimeout)
	poller := marketdata.NewPoller(feedClient, marketStore, cfg.FeedPollInterval, logger)

	var ckStore checkpoint.Store
	if cfg.DBDSN != "" {
		pool, err := db.NewPool(ctx, cfg.DBDSN)
		if err != nil {
			logger.Fatal("database connect failed", zap.Error(err))
		}
		defer pool.Close()
		ckStore, err = checkpoint.NewPGStore(ctx, pool)
		if err != nil {
			logger.Fatal("checkpoint store init failed", zap.Error(err))
		}
	} else {
		ckStore = checkpoint.NewFileStore(cfg.CheckpointPath)
	}
	keeper := checkpoint.NewKeeper(ckStore, users, eng, workflow, watch, cfg.CheckpointInterval, logger)
	if err := keeper.Restore(ctx); err != nil {
		logger.Fatal("checkpoint restore failed", zap.Error(err))
	}

	maxQuoteAge := 3 * cfg.FeedPollInterval

	authHandler := auth.NewHandler(users)
	tradeHandler := engine.NewHandler(eng, marketStore, maxQuoteAge)
	ledgerHandler := ledger.NewHandler(workflow, users)
	watchHandler := watchlist.NewHandler(watch)
	streamWS := marketdata.NewStreamWS(marketStore, cfg.WebSocketOrigin, cfg.FeedPollInterval)
	marketHandler := marketdata.NewHandler(marketStore, streamWS)
	adminHandler := admin.NewHandler(users, eng, workflow, marketStore, watch, logger)
	healthHandler := health.NewHandler(marketStore, maxQuoteAge, time.Now().UTC(), cfg.InternalToken)

	router := httpserver.NewRouter(httpserver.RouterDeps{
		AuthHandler:      authHandler,
		TradeHandler:     tradeHandler,
		LedgerHandler:    ledgerHandler,
		WatchlistHandler: watchHandler,
		MarketHandler:    marketHandler,
		AdminHandler:     adminHandler,
		HealthHandler:    healthHandler,
		AuthService:      users,
		AllowedOrigin:    cfg.WebSocketOrigin,
	})
	srv := &http.Server{Addr: cfg.HTTPAddr, Handler: router}

	go poller.Run(ctx)
	go keeper.Run(ctx)

	logger.Info("server listening", zap.String("addr", cfg.HTTPAddr), zap.String("mode", cfg.AppMode))

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Fatal("server failed", zap.Error(err))
	}

	saveCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := keeper.SaveNow(saveCtx); err != nil {
		logger.Warn("final checkpoint save failed", zap.Error(err))
	}
}

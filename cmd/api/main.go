package main

import (
	"context"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/playverse/walletops/internal/api"
	"github.com/playverse/walletops/internal/config"
	"github.com/playverse/walletops/internal/service"
	"github.com/playverse/walletops/internal/store"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	var logger *zap.Logger
	if cfg.Env == "production" {
		logger, err = zap.NewProduction()
	} else {
		logger, err = zap.NewDevelopment()
	}
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	// Any durable store satisfying the atomicity contract works; Postgres
	// when configured, process memory otherwise.
	var st store.Store
	if cfg.DBSource != "" {
		pg, err := store.NewPostgresStore(context.Background(), cfg.DBSource)
		if err != nil {
			logger.Fatal("unable to connect to database", zap.Error(err))
		}
		defer pg.Close()
		st = pg
		logger.Info("using postgres store")
	} else {
		st = store.NewMemoryStore()
		logger.Warn("DB_SOURCE not set, using in-memory store")
	}

	wallet := service.NewWalletService(st, logger)
	auth := service.NewAuthService(st, logger, []byte(cfg.JWTSecret), cfg.TokenTTL)
	handler := api.NewHandler(wallet, auth, logger)

	r := mux.NewRouter()
	r.Handle("/metrics", promhttp.Handler())
	r.HandleFunc("/health", handler.HealthCheckHandler).Methods("GET")
	handler.Register(r)

	logger.Info("server starting", zap.String("port", cfg.Port))
	if err := http.ListenAndServe(":"+cfg.Port, r); err != nil {
		logger.Fatal("server stopped", zap.Error(err))
	}
}

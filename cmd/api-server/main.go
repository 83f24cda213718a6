package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"archive/internal/live"
	"archive/internal/metrics"
	"archive/internal/ratelimit"
	"archive/internal/server"
	"archive/pkg/database"
	"archive/pkg/utils"
)

func main() {
	configPath := os.Getenv("ARCHIVE_CONFIG")
	if configPath == "" {
		configPath = "config.yaml"
	}

	cfg, err := utils.Load(configPath, ".env")
	if err != nil {
		slog.Error("load config", "error", err)
		os.Exit(1)
	}

	logger := utils.NewLogger(cfg.Log, os.Stdout)
	slog.SetDefault(logger)

	if !cfg.IsDevelopment() {
		gin.SetMode(gin.ReleaseMode)
	}

	db, err := database.Open(database.Config{Path: cfg.Database.Path})
	if err != nil {
		logger.Error("open database", "path", cfg.Database.Path, "error", err)
		os.Exit(1)
	}
	defer db.Close()

	if err := database.Migrate(db); err != nil {
		logger.Error("db migrate failed", "error", err)
		os.Exit(1)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	hub := live.NewHub(logger)
	collector := metrics.NewCollector(reg)
	collector.WatchLiveClients(hub.Count)

	limiter := ratelimit.New(cfg.RateLimit.RPS, cfg.RateLimit.Burst)
	defer limiter.Stop()

	httpSrv := &http.Server{
		Addr: cfg.Server.Addr,
		Handler: server.New(server.Deps{
			Config:   cfg,
			DB:       db,
			Hub:      hub,
			Metrics:  collector,
			Gatherer: reg,
			Limiter:  limiter,
			Logger:   logger,
		}),
	}

	errCh := make(chan error, 1)
	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		logger.Info("HTTP API server listening", "addr", cfg.Server.Addr, "base_url", cfg.Server.BaseURL, "env", cfg.Env)
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		logger.Info("shutdown signal received", "signal", sig.String())
	case err := <-errCh:
		logger.Error("server error", "error", err)
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	// websocket connections are hijacked and not tracked by Shutdown
	hub.Close()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http shutdown error", "error", err)
	}

	wg.Wait()
	logger.Info("server stopped")
}

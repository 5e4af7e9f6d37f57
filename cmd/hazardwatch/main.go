package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/avenlake/hazardwatch/internal/aggregator"
	"github.com/avenlake/hazardwatch/internal/api"
	"github.com/avenlake/hazardwatch/internal/config"
	"github.com/avenlake/hazardwatch/internal/geocode"
	"github.com/avenlake/hazardwatch/internal/logging"
	"github.com/avenlake/hazardwatch/internal/models"
	"github.com/avenlake/hazardwatch/internal/observability"
	"github.com/avenlake/hazardwatch/internal/repository"
	"github.com/avenlake/hazardwatch/internal/source"
	"github.com/avenlake/hazardwatch/internal/verifier"
	"github.com/avenlake/hazardwatch/internal/worker"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		logging.Fatalf("Fatal while loading config: %v", err)
	}
	logging.Setup(cfg.Logging.Level, cfg.Logging.Format)

	slog.Info("Server starting", "host", cfg.Server.Host, "port", cfg.Server.Port)

	db, err := repository.NewSQLiteDB(cfg.DB.Path)
	if err != nil {
		logging.Fatalf("Failed to initialize database: %v", err)
	}
	defer db.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	clock := clockwork.NewRealClock()
	metrics := observability.NewMetrics()

	var adapters []source.Adapter
	if cfg.Sources.SeismicEnabled {
		adapters = append(adapters, source.NewSeismicAdapter(
			cfg.Sources.SeismicURL, cfg.Sources.SeismicMinMagnitude, cfg.Risk.RadiusKm, cfg.Sources.AdapterTimeout))
	}
	if cfg.Sources.WeatherEnabled {
		adapters = append(adapters, source.NewWeatherAdapter(
			cfg.Sources.WeatherURL,
			models.Coordinates{Latitude: cfg.Sources.HomeLat, Longitude: cfg.Sources.HomeLon},
			cfg.Sources.AdapterTimeout,
			clock))
	}
	if cfg.Sources.AdminEnabled {
		adapters = append(adapters, source.NewAdminAdapter(db, clock))
	}

	agg := aggregator.New(ctx, adapters, db, clock, metrics, cfg.Sources.AdapterTimeout)

	geocoder := geocode.NewCached(
		geocode.NewClient(cfg.Geocode.URL, cfg.Geocode.Timeout),
		cfg.Geocode.CacheSize)

	pool := worker.NewPool(cfg.Worker.Count, cfg.Worker.BufferSize)
	pool.Start(ctx)

	verify := verifier.New(agg, geocoder, db, pool, cfg.Risk, clock, metrics)

	var wg sync.WaitGroup
	wg.Add(2)
	go runRefresher(ctx, &wg, agg, cfg.Sources.RefreshInterval)
	go runVerifier(ctx, &wg, verify, cfg.Sources.VerifyInterval)

	// Gin router
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"*"},
		AllowMethods:     []string{"GET", "POST", "PUT", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: false, // Set to false when using wildcard origins
	}))
	router.Use(api.RateLimitMiddleware(cfg.Server.RateLimitRPS, cfg.Server.RateLimitBurst))
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	handler := api.NewHandler(agg, verify, db, db)
	handler.RegisterRoutes(router)

	srv := &http.Server{
		Addr:    fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler: router,
	}

	go func() {
		slog.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logging.Fatalf("server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("shutting down...")

	cancel()
	wg.Wait()
	pool.Stop()
	agg.Close()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("server shutdown error", "error", err)
	}

	slog.Info("shutdown complete")
}

// runRefresher drives the aggregation cycle: an initial fetch at start,
// then one per interval.
func runRefresher(ctx context.Context, wg *sync.WaitGroup, agg *aggregator.Aggregator, interval time.Duration) {
	defer wg.Done()
	slog.Info("starting alert refresher", "interval", interval)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	refresh := func() {
		if _, err := agg.FetchAll(ctx, nil, nil); err != nil {
			slog.Error("alert refresh failed", "error", err)
		}
	}

	refresh()

	for {
		select {
		case <-ctx.Done():
			slog.Info("alert refresher shutting down")
			return
		case <-ticker.C:
			refresh()
		}
	}
}

// runVerifier drives the safety verification cycle.
func runVerifier(ctx context.Context, wg *sync.WaitGroup, v *verifier.Verifier, interval time.Duration) {
	defer wg.Done()
	slog.Info("starting safety verifier", "interval", interval)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	verify := func() {
		updates, err := v.RunCycle(ctx)
		if err != nil {
			slog.Error("verification cycle failed", "error", err)
			return
		}
		if len(updates) > 0 {
			slog.Info("safety status changed", "updates", len(updates))
		}
	}

	verify()

	for {
		select {
		case <-ctx.Done():
			slog.Info("safety verifier shutting down")
			return
		case <-ticker.C:
			verify()
		}
	}
}

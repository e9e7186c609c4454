package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/web3-frozen/citrea-watch/internal/api"
	"github.com/web3-frozen/citrea-watch/internal/config"
	"github.com/web3-frozen/citrea-watch/internal/handler"
	"github.com/web3-frozen/citrea-watch/internal/logging"
	"github.com/web3-frozen/citrea-watch/internal/metrics"
	"github.com/web3-frozen/citrea-watch/internal/middleware"
	"github.com/web3-frozen/citrea-watch/internal/monitor"
	"github.com/web3-frozen/citrea-watch/internal/poller"
	"github.com/web3-frozen/citrea-watch/internal/proxy"
	"github.com/web3-frozen/citrea-watch/internal/rates"
	"github.com/web3-frozen/citrea-watch/internal/settings"
	"github.com/web3-frozen/citrea-watch/internal/store"
)

func main() {
	cfg, err := config.Load(os.Args[1:])
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	logger, err := logging.New(cfg.LogLevel, cfg.LogEncoding)
	if err != nil {
		fmt.Fprintln(os.Stderr, "can't initialize zap logger:", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg.LoadSecrets(ctx, logger.Named("config"))
	if err := cfg.Validate(); err != nil {
		logger.Fatal("invalid configuration", zap.Error(err))
	}

	// Settings storage
	kv, pingers, closeKV, err := openSettingsStore(ctx, cfg, logger.Named("store"))
	if err != nil {
		logger.Fatal("failed to open settings store", zap.Error(err))
	}
	defer closeKV()

	httpClient := &http.Client{Timeout: cfg.HTTPTimeout}
	pollObserver := metrics.NewPoller()

	// Preferences and exchange rates
	scheme := settings.NewSchemeSignal(true)
	ratesSource := rates.NewCoinGecko(cfg.RatesURL, cfg.RatesAPIKey, httpClient)
	provider := settings.NewProvider(kv, scheme, logger.Named("settings"),
		settings.WithRates(ratesSource, cfg.RatesInterval,
			poller.WithObserver(pollObserver),
			poller.WithLogger(logger.Named("rates")),
		),
	)
	provider.OnChange(func() {
		r := provider.Rates()
		metrics.ExchangeRate.WithLabelValues(string(settings.CurrencyEUR)).Set(r.EUR)
		metrics.ExchangeRate.WithLabelValues(string(settings.CurrencyBTC)).Set(r.BTC)
	})
	if err := provider.Mount(ctx); err != nil {
		logger.Fatal("failed to mount settings", zap.Error(err))
	}
	defer provider.Close()

	// Dashboard feeds
	client := api.NewClient(cfg.APIBase, httpClient, metrics.NewAPIClient())
	engine := monitor.NewEngine(client, logger.Named("engine"), monitor.Config{
		Intervals: monitor.Intervals{
			GlobalTvl:        cfg.Poll.GlobalTvl,
			TvlHistory:       cfg.Poll.TvlHistory,
			BridgeSummary:    cfg.Poll.BridgeSummary,
			BridgeTimeseries: cfg.Poll.BridgeTimeseries,
			Gas:              cfg.Poll.Gas,
			Explorer:         cfg.Poll.Explorer,
		},
		HistoryHours: cfg.HistoryHours,
		Workers:      cfg.Workers,
		Observer:     pollObserver,
	})
	engineDone := make(chan struct{})
	go func() {
		engine.Run(ctx)
		close(engineDone)
	}()

	// HTTP routes
	dashboard := handler.NewDashboard(engine, provider)
	stream := handler.NewStream(dashboard, cfg.FrontendOrigins, logger.Named("stream"))
	settingsHandler := handler.NewSettings(provider, scheme, logger.Named("settings"))
	apiProxy := proxy.New(cfg.UpstreamBase, httpClient, cfg.ProxyRPS, logger.Named("proxy"))

	r := chi.NewRouter()
	r.Use(middleware.Recover(logger))
	r.Use(middleware.Logger(logger.Named("http")))
	r.Use(middleware.Metrics())
	r.Use(middleware.CORS(cfg.FrontendOrigins, logger))

	r.Handle("/metrics", promhttp.Handler())
	r.Get("/healthz", handler.Health())
	r.Get("/readyz", handler.Ready(provider, pingers...))
	handler.Mount(r, dashboard, settingsHandler, stream)
	apiProxy.Mount(r)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      cfg.HTTPTimeout + 15*time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		logger.Info("server starting", zap.String("port", cfg.Port), zap.String("api_base", cfg.APIBase))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server failed", zap.Error(err))
			stop()
		}
	}()

	<-ctx.Done()

	logger.Info("shutting down gracefully")
	stream.Close()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("failed to shutdown http server", zap.Error(err))
	}
	<-engineDone
}

// openSettingsStore builds the configured KV backend. Networked backends
// are also returned as pingers for the readiness probe.
func openSettingsStore(ctx context.Context, cfg config.Config, logger *zap.Logger) (store.KV, []store.Pinger, func(), error) {
	noop := func() {}
	switch cfg.SettingsBackend {
	case config.BackendMemory:
		logger.Warn("settings are kept in memory and lost on restart")
		return store.NewMemory(), nil, noop, nil

	case config.BackendRedis:
		rdb, err := store.NewRedis(ctx, cfg.RedisURL, cfg.RedisPassword, cfg.RedisPrefix, logger)
		if err != nil {
			return nil, nil, noop, err
		}
		logger.Info("redis connected for settings")
		return rdb, []store.Pinger{rdb}, func() { _ = rdb.Close() }, nil

	case config.BackendPostgres:
		db, err := store.NewPostgres(ctx, cfg.DatabaseURL, logger)
		if err != nil {
			return nil, nil, noop, err
		}
		if err := db.Migrate(ctx); err != nil {
			db.Close()
			return nil, nil, noop, fmt.Errorf("run migrations: %w", err)
		}
		logger.Info("database connected and migrated")
		return db, []store.Pinger{db}, db.Close, nil

	default:
		f, err := store.NewFile(cfg.SettingsFile)
		if err != nil {
			return nil, nil, noop, err
		}
		logger.Info("settings file ready", zap.String("path", f.Path()))
		return f, nil, noop, nil
	}
}

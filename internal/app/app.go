// Package app wires configuration, storage, the tiered cache, upstream
// clients and services into one App shared by the server and the CLI.
package app

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/bobmcallan/folio/internal/cache"
	"github.com/bobmcallan/folio/internal/clients"
	"github.com/bobmcallan/folio/internal/clients/coingecko"
	"github.com/bobmcallan/folio/internal/clients/fmp"
	"github.com/bobmcallan/folio/internal/clients/gemini"
	"github.com/bobmcallan/folio/internal/clients/tradier"
	"github.com/bobmcallan/folio/internal/common"
	"github.com/bobmcallan/folio/internal/interfaces"
	"github.com/bobmcallan/folio/internal/services/auth"
	"github.com/bobmcallan/folio/internal/services/market"
	"github.com/bobmcallan/folio/internal/services/portfolio"
	"github.com/bobmcallan/folio/internal/services/quote"
	"github.com/bobmcallan/folio/internal/services/snapshot"
	"github.com/bobmcallan/folio/internal/services/valuation"
	"github.com/bobmcallan/folio/internal/services/watchlist"
	"github.com/bobmcallan/folio/internal/storage"
	"github.com/bobmcallan/folio/internal/storage/filestore"
)

// App holds all initialized services, clients and storage.
// It is the shared core used by both cmd/folio-server and cmd/folio.
type App struct {
	Config           *common.Config
	Logger           *common.Logger
	Storage          interfaces.StorageManager
	Cache            interfaces.CacheService
	GeminiClient     interfaces.GeminiClient
	PortfolioService interfaces.PortfolioService
	MarketService    interfaces.MarketService
	WatchlistService interfaces.WatchlistService
	AuthService      interfaces.AuthService
	StartupTime      time.Time

	scheduler *cron.Cron
}

// getBinaryDir returns the directory containing the executable.
func getBinaryDir() string {
	exe, err := os.Executable()
	if err != nil {
		return "."
	}
	return filepath.Dir(exe)
}

// resolveConfigPath checks the provided path, FOLIO_CONFIG, the binary
// directory, then config/folio.toml.
func resolveConfigPath(configPath, binDir string) string {
	if configPath == "" {
		configPath = os.Getenv("FOLIO_CONFIG")
	}
	if configPath == "" {
		configPath = filepath.Join(binDir, "folio.toml")
		if _, err := os.Stat(configPath); os.IsNotExist(err) {
			configPath = "config/folio.toml"
		}
	}
	return configPath
}

// NewApp initializes storage, cache, clients and services.
// configPath may be empty, in which case the default resolution logic is used.
func NewApp(configPath string) (*App, error) {
	startupStart := time.Now()

	common.LoadVersionFromFile()

	config, err := common.LoadConfig(resolveConfigPath(configPath, getBinaryDir()))
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	logger := common.NewLoggerFromConfig(config.Logging)

	a, err := newApp(context.Background(), config, logger)
	if err != nil {
		return nil, err
	}
	a.StartupTime = startupStart

	logger.Info().Dur("startup", time.Since(startupStart)).Msg("App initialized")
	return a, nil
}

// newApp wires everything from an already loaded config.
func newApp(ctx context.Context, config *common.Config, logger *common.Logger) (*App, error) {
	storageManager, err := storage.NewStorageManager(logger, config)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}

	cacheStore, err := filestore.New(logger, config.Cache.Dir)
	if err != nil {
		storageManager.Close()
		return nil, fmt.Errorf("failed to open cache directory: %w", err)
	}

	// Upstream clients
	fmpCfg := config.Clients.FMP
	if fmpCfg.APIKey == "" {
		logger.Warn().Msg("FMP API key not configured - cached data only")
	}
	fmpClient := fmp.NewClient(fmpCfg.APIKey,
		fmp.WithBaseURL(fmpCfg.BaseURL),
		fmp.WithLogger(logger),
		fmp.WithRateLimit(fmpCfg.RateLimit),
		fmp.WithTimeout(fmpCfg.GetTimeout()),
	)

	cgCfg := config.Clients.CoinGecko
	coingeckoClient := coingecko.NewClient(cgCfg.APIKey,
		coingecko.WithBaseURL(cgCfg.BaseURL),
		coingecko.WithLogger(logger),
		coingecko.WithRateLimit(cgCfg.RateLimit),
		coingecko.WithTimeout(cgCfg.GetTimeout()),
	)

	trCfg := config.Clients.Tradier
	tradierClient := tradier.NewClient(trCfg.APIKey,
		tradier.WithBaseURL(trCfg.BaseURL),
		tradier.WithLogger(logger),
		tradier.WithRateLimit(trCfg.RateLimit),
		tradier.WithTimeout(trCfg.GetTimeout()),
	)
	var options interfaces.ResourceFetcher
	if tradierClient.IsConfigured() {
		options = tradierClient
	} else {
		logger.Warn().Msg("Tradier API key not configured - options will be valued at their last known premium")
	}

	var geminiClient interfaces.GeminiClient
	if key := config.Clients.Gemini.APIKey; key != "" {
		gc, err := gemini.NewClient(ctx, key,
			gemini.WithLogger(logger),
			gemini.WithModel(config.Clients.Gemini.Model),
		)
		if err != nil {
			logger.Warn().Err(err).Msg("Failed to initialize Gemini client")
		} else {
			geminiClient = gc
		}
	} else {
		logger.Warn().Msg("Gemini API key not configured - insights will be unavailable")
	}

	registry := clients.NewRegistry(fmpClient, options, coingeckoClient)
	resourceCache := cache.New(cacheStore, common.NewFreshnessPolicy(config.Cache.TTLDays), logger,
		cache.WithFetcher(registry),
		cache.WithBatchFetcher(registry),
	)

	// Services
	quoteService := quote.NewService(resourceCache, logger, options != nil)
	valuationService := valuation.NewService(quoteService, logger, config.Cache.FetchConcurrency)
	snapshotService := snapshot.NewService(storageManager.SnapshotStore(), logger,
		snapshot.WithHistoryDays(config.Snapshot.HistoryDays),
	)
	portfolioService := portfolio.NewService(
		storageManager.HoldingStore(),
		quoteService,
		valuationService,
		snapshotService,
		storageManager,
		logger,
	)
	marketService := market.NewService(resourceCache, geminiClient, logger)
	watchlistService := watchlist.NewService(storageManager.WatchlistStore(), quoteService, logger)
	authService, err := auth.NewService(storageManager.KeyValueStore(), &config.Auth, logger)
	if err != nil {
		storageManager.Close()
		return nil, err
	}

	return &App{
		Config:           config,
		Logger:           logger,
		Storage:          storageManager,
		Cache:            resourceCache,
		GeminiClient:     geminiClient,
		PortfolioService: portfolioService,
		MarketService:    marketService,
		WatchlistService: watchlistService,
		AuthService:      authService,
		StartupTime:      time.Now(),
	}, nil
}

// Close releases all resources held by the App.
// Shutdown order: stop scheduler, close storage.
func (a *App) Close() {
	a.StopScheduler()
	if a.Storage != nil {
		a.Storage.Close()
		a.Storage = nil
	}
}

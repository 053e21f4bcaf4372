package app

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/bobmcallan/tickercal/internal/bot"
	"github.com/bobmcallan/tickercal/internal/clients/discord"
	"github.com/bobmcallan/tickercal/internal/clients/eodhd"
	"github.com/bobmcallan/tickercal/internal/common"
	"github.com/bobmcallan/tickercal/internal/interfaces"
	"github.com/bobmcallan/tickercal/internal/services/chart"
	"github.com/bobmcallan/tickercal/internal/services/earnings"
	"github.com/bobmcallan/tickercal/internal/services/eventsync"
	"github.com/bobmcallan/tickercal/internal/services/marketstatus"
	"github.com/bobmcallan/tickercal/internal/services/reconcile"
	"github.com/bobmcallan/tickercal/internal/services/registry"
	"github.com/bobmcallan/tickercal/internal/storage"
)

// App holds all initialized services and clients. cmd/tickercal and the HTTP
// server share it.
type App struct {
	Config              *common.Config
	Logger              *common.Logger
	Store               interfaces.BlobStore
	MarketData          interfaces.MarketDataClient
	Discord             *discord.Client
	RegistryService     interfaces.RegistryService
	EventFetcher        interfaces.EventFetcher
	Reconciler          interfaces.EventReconciler
	SyncService         interfaces.SyncService
	ChartService        interfaces.ChartService
	MarketStatusService interfaces.MarketStatusService
	Bot                 *bot.Bot
	Scheduler           *Scheduler
	StartupTime         time.Time

	cancel context.CancelFunc
}

// getBinaryDir returns the directory containing the executable.
func getBinaryDir() string {
	exe, err := os.Executable()
	if err != nil {
		return "."
	}
	return filepath.Dir(exe)
}

// resolveConfigPath picks the config file: the given path, TICKERCAL_CONFIG,
// tickercal.toml next to the binary, then config/tickercal.toml.
func resolveConfigPath(configPath, binDir string) string {
	if configPath == "" {
		configPath = os.Getenv("TICKERCAL_CONFIG")
	}
	if configPath == "" {
		configPath = filepath.Join(binDir, "tickercal.toml")
		if _, err := os.Stat(configPath); os.IsNotExist(err) {
			configPath = "config/tickercal.toml" // fallback for development
		}
	}
	return configPath
}

// NewApp loads configuration and initializes storage, clients and services.
// Nothing connects to the network until Start.
func NewApp(configPath string) (*App, error) {
	common.LoadVersionFromFile()

	binDir := getBinaryDir()
	config, err := common.LoadConfig(resolveConfigPath(configPath, binDir))
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	// Relative paths are anchored at the binary so the service is self-contained.
	if config.Storage.File.Path != "" && !filepath.IsAbs(config.Storage.File.Path) {
		config.Storage.File.Path = filepath.Join(binDir, config.Storage.File.Path)
	}
	if config.Logging.FilePath != "" && !filepath.IsAbs(config.Logging.FilePath) {
		config.Logging.FilePath = filepath.Join(binDir, config.Logging.FilePath)
	}

	logger := common.NewLoggerFromConfig(config.Logging)
	return NewAppWithConfig(config, logger)
}

// NewAppWithConfig builds the app from an already loaded config.
func NewAppWithConfig(config *common.Config, logger *common.Logger) (*App, error) {
	startupStart := time.Now()

	if missing := config.ValidateRequired(); len(missing) > 0 {
		if config.IsProduction() {
			return nil, fmt.Errorf("missing required configuration: %s", strings.Join(missing, ", "))
		}
		logger.Warn().Strs("missing", missing).Msg("Configuration incomplete - some features may be limited")
	}

	store, err := storage.NewRegistryStore(logger, &config.Storage)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}

	marketData := eodhd.NewClient(config.Clients.EODHD.APIKey,
		eodhd.WithBaseURL(config.Clients.EODHD.BaseURL),
		eodhd.WithLogger(logger),
		eodhd.WithRateLimit(config.Clients.EODHD.RateLimit),
		eodhd.WithTimeout(config.Clients.EODHD.GetTimeout()),
		eodhd.WithExchange(config.Clients.EODHD.Exchange),
		eodhd.WithLookahead(config.Sync.GetLookahead()),
	)

	discordClient, err := discord.NewClient(config.Clients.Discord.Token,
		discord.WithLogger(logger),
		discord.WithRequestTimeout(config.Clients.Discord.GetRequestTimeout()),
		discord.WithEventLocation(config.Clients.Discord.EventLocation),
	)
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("failed to initialize discord client: %w", err)
	}

	registryService := registry.NewService(store, logger)
	fetcher := earnings.NewFetcher(marketData, logger)
	reconciler := reconcile.NewService(logger,
		reconcile.WithSpacing(config.Sync.GetPublishSpacing()),
		reconcile.WithLocation(config.Clients.Discord.EventLocation),
	)
	syncService := eventsync.NewService(registryService, fetcher, reconciler, discordClient, logger)
	chartService := chart.NewService(marketData, logger)
	statusService := marketstatus.NewService(config.Market, logger)

	commandBot := bot.New(discordClient.Session(),
		bot.NewHandler(syncService, chartService, logger),
		config.Clients.Discord.CommandGuilds,
		logger,
	)

	scheduler := NewScheduler(syncService, statusService, discordClient, discordClient.Ready(), config.Sync, logger)
	discordClient.OnSessionRestored(scheduler.ResetPresence)

	a := &App{
		Config:              config,
		Logger:              logger,
		Store:               store,
		MarketData:          marketData,
		Discord:             discordClient,
		RegistryService:     registryService,
		EventFetcher:        fetcher,
		Reconciler:          reconciler,
		SyncService:         syncService,
		ChartService:        chartService,
		MarketStatusService: statusService,
		Bot:                 commandBot,
		Scheduler:           scheduler,
		StartupTime:         startupStart,
	}

	logger.Info().Dur("startup", time.Since(startupStart)).Msg("App initialized")
	return a, nil
}

// Start connects to the chat gateway and launches the scheduler, which waits
// for the connection to become ready before the first sync.
func (a *App) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	a.cancel = cancel

	a.Bot.Attach(ctx)
	if err := a.Discord.Open(); err != nil {
		cancel()
		return err
	}

	go func() {
		if err := a.Scheduler.Start(ctx); err != nil && ctx.Err() == nil {
			a.Logger.Error().Err(err).Msg("Scheduler failed to start")
		}
	}()
	return nil
}

// Close releases all resources held by the App.
// Shutdown order: cancel running work, stop scheduler, close gateway, close storage.
func (a *App) Close() {
	if a.cancel != nil {
		a.cancel()
		a.cancel = nil
	}
	if a.Scheduler != nil {
		a.Scheduler.Stop()
	}
	if a.Discord != nil {
		if err := a.Discord.Close(); err != nil {
			a.Logger.Warn().Err(err).Msg("Discord close failed")
		}
		a.Discord = nil
	}
	if a.Store != nil {
		if err := a.Store.Close(); err != nil {
			a.Logger.Warn().Err(err).Msg("Storage close failed")
		}
		a.Store = nil
	}
}

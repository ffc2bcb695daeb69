// Package app assembles the data and analysis stack from configuration.
package app

import (
	"context"
	"time"

	"github.com/Alias1177/FinTrends/internal/api/openai"
	"github.com/Alias1177/FinTrends/internal/api/twelvedata"
	"github.com/Alias1177/FinTrends/internal/api/yahoo"
	"github.com/Alias1177/FinTrends/internal/config"
	"github.com/Alias1177/FinTrends/internal/database"
	"github.com/Alias1177/FinTrends/internal/market"
	"github.com/Alias1177/FinTrends/internal/notify"
	"github.com/Alias1177/FinTrends/internal/pipeline"
	"github.com/Alias1177/FinTrends/internal/platform/browser"
	httpclient "github.com/Alias1177/FinTrends/internal/platform/http"
	"github.com/Alias1177/FinTrends/internal/storage"
	"github.com/Alias1177/FinTrends/models"
	"github.com/cockroachdb/errors"
	"github.com/rs/zerolog/log"
)

// App holds the wired components
type App struct {
	Config   *config.Config
	Store    *storage.Store
	Source   Source
	Loader   *market.Loader
	Runner   *pipeline.Runner
	DB       *database.DB     // nil when no database is configured or it is unreachable
	Telegram *notify.Telegram // nil when Telegram is not configured
	OpenAI   *openai.Client   // nil when OPENAI_API_KEY is empty
}

// Source provides both daily bars and symbol lookups
type Source interface {
	models.HistorySource
	models.SymbolSource
}

// NewSource returns the upstream selected by DATA_SOURCE
func NewSource(cfg *config.Config) Source {
	if cfg.DataSource == "twelvedata" {
		return twelvedata.NewClient(twelvedata.ClientOptions{
			APIKey:          cfg.TwelveDataAPIKey,
			BaseURL:         cfg.TwelveDataBaseURL,
			RequestTimeout:  time.Duration(cfg.RequestTimeout) * time.Second,
			RequestsPerSec:  cfg.RequestsPerSec,
			MaxRetryTimeout: time.Duration(cfg.MaxRetrySeconds) * time.Second,
		})
	}
	return yahoo.NewClient(NewFetcher(cfg), yahoo.ClientOptions{
		BaseURL:     cfg.YahooBaseURL,
		SnapshotDir: cfg.TmpDir,
	})
}

// NewFetcher returns the page fetcher selected by FETCH_MODE
func NewFetcher(cfg *config.Config) models.PageFetcher {
	timeout := time.Duration(cfg.RequestTimeout) * time.Second
	if cfg.FetchMode == "browser" {
		return browser.NewFetcher(browser.Options{
			Headless:     true,
			UserAgent:    httpclient.DefaultHeaders["User-Agent"],
			Timeout:      timeout,
			WaitSelector: "table",
		})
	}
	return httpclient.NewClient(httpclient.ClientOptions{
		Timeout:         timeout,
		RequestsPerSec:  cfg.RequestsPerSec,
		MaxRetryTimeout: time.Duration(cfg.MaxRetrySeconds) * time.Second,
	})
}

// DatabaseDSN returns DATABASE_URL when set, otherwise a key=value DSN built
// from the DB_* settings. It is empty when neither names a host.
func DatabaseDSN(cfg *config.Config) string {
	if cfg.DatabaseURL != "" {
		return cfg.DatabaseURL
	}
	if cfg.DBHost == "" {
		return ""
	}
	params := database.ConnectionParams{
		Host:     cfg.DBHost,
		Port:     cfg.DBPort,
		User:     cfg.DBUser,
		Password: cfg.DBPassword,
		DBName:   cfg.DBName,
		SSLMode:  cfg.DBSSLMode,
	}
	return params.DSN()
}

// New wires the stack. Optional outputs that fail to initialize are logged and
// left nil.
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	start, err := models.ParseDate(cfg.StartDate)
	if err != nil {
		return nil, errors.Wrap(err, "START_DATE")
	}
	var end time.Time
	if cfg.EndDate != "" {
		if end, err = models.ParseDate(cfg.EndDate); err != nil {
			return nil, errors.Wrap(err, "END_DATE")
		}
	}

	a := &App{Config: cfg}

	if dsn := DatabaseDSN(cfg); dsn != "" {
		if a.DB, err = database.New(ctx, dsn); err != nil {
			log.Warn().Err(err).Msg("Database unavailable, persistence disabled")
			a.DB = nil
		}
	}

	loaderOpts := market.LoaderOptions{
		Start:       start,
		End:         end,
		Concurrency: cfg.Concurrency,
	}
	if a.DB != nil {
		loaderOpts.Archive = a.DB
	}

	a.Store = storage.NewStore(cfg.DataDir)
	a.Source = NewSource(cfg)
	a.Loader = market.NewLoader(a.Source, a.Source, a.Store, loaderOpts)
	a.Runner = pipeline.NewRunner(a.Loader, a.Store, pipeline.OptionsFromConfig(cfg))

	if cfg.TelegramBotToken != "" && cfg.TelegramChatID != 0 {
		if a.Telegram, err = notify.NewTelegram(cfg.TelegramBotToken, cfg.TelegramChatID); err != nil {
			log.Warn().Err(err).Msg("Telegram unavailable, notifications disabled")
			a.Telegram = nil
		}
	}

	if cfg.OpenAIAPIKey != "" {
		a.OpenAI = openai.NewClient(openai.ClientOptions{APIKey: cfg.OpenAIAPIKey, Model: cfg.OpenAIModel})
	}
	return a, nil
}

// Analyzer returns a multi-symbol analyzer writing to every configured output
func (a *App) Analyzer() *pipeline.Analyzer {
	opts := pipeline.AnalyzerOptions{
		Concurrency: a.Config.Concurrency,
		OutputDir:   a.Config.OutputDir,
	}
	if a.DB != nil {
		opts.Store = a.DB
	}
	if a.Telegram != nil {
		opts.Notifier = a.Telegram
	}
	return pipeline.NewAnalyzer(a.Runner, a.Loader, opts)
}

// Close releases held connections
func (a *App) Close() {
	if a.DB != nil {
		if err := a.DB.Close(); err != nil {
			log.Warn().Err(err).Msg("Failed to close database")
		}
	}
}

package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/Alias1177/FinTrends/internal/app"
	"github.com/Alias1177/FinTrends/internal/config"
	"github.com/Alias1177/FinTrends/internal/notify"
	"github.com/Alias1177/FinTrends/internal/pipeline"
	"github.com/Alias1177/FinTrends/models"
	"github.com/cockroachdb/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	// Setup logger
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).Level(level)

	if cfg.TelegramBotToken == "" {
		log.Fatal().Msg("TELEGRAM_BOT_TOKEN not set in environment")
	}

	application, err := app.New(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize")
	}
	defer application.Close()

	bot, err := notify.NewBot(cfg.TelegramBotToken)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize Telegram bot")
	}
	bot.AllowChat(cfg.TelegramChatID)
	registerCommands(bot, application)

	if err := bot.Serve(ctx); err != nil && ctx.Err() == nil {
		log.Error().Err(err).Msg("Bot stopped")
	}
	log.Info().Msg("Shutdown complete")
}

func registerCommands(bot *notify.Bot, application *app.App) {
	bot.Handle("analyze", "run the full analysis, e.g. /analyze AAPL", func(ctx context.Context, args string) (string, []string, error) {
		symbol, err := symbolArg(args)
		if err != nil {
			return "", nil, err
		}
		res, err := application.Runner.Run(ctx, symbol)
		if err != nil {
			return "", nil, err
		}
		var charts []string
		for _, path := range res.Charts {
			if filepath.Base(path) == "prediction.png" {
				charts = append(charts, path)
			}
		}
		return pipeline.FormatReport(res), charts, nil
	})

	bot.Handle("explain", "plain-language commentary on the analysis, e.g. /explain AAPL", func(ctx context.Context, args string) (string, []string, error) {
		symbol, err := symbolArg(args)
		if err != nil {
			return "", nil, err
		}
		if application.OpenAI == nil {
			return "Commentary is disabled (OPENAI_API_KEY not set)", nil, nil
		}
		res, err := application.Runner.Run(ctx, symbol)
		if err != nil {
			return "", nil, err
		}
		text, err := application.OpenAI.Commentary(ctx, symbol, pipeline.FormatReport(res))
		if err != nil {
			return "", nil, err
		}
		return fmt.Sprintf("%s\n\n%s", strings.ToUpper(symbol), text), nil, nil
	})

	bot.Handle("check", "check that a symbol exists, e.g. /check MSFT", func(ctx context.Context, args string) (string, []string, error) {
		symbol, err := symbolArg(args)
		if err != nil {
			return "", nil, err
		}
		ok, err := application.Loader.CheckSymbol(ctx, symbol)
		if err != nil {
			return "", nil, err
		}
		if !ok {
			return fmt.Sprintf("%s was not found", strings.ToUpper(symbol)), nil, nil
		}
		info, _, err := application.Store.LookupSymbol(symbol)
		if err != nil {
			return "", nil, err
		}
		return fmt.Sprintf("%s: %s", strings.ToUpper(symbol), info.About), nil, nil
	})

	bot.Handle("runs", "recent model runs stored for a symbol, e.g. /runs AAPL", func(ctx context.Context, args string) (string, []string, error) {
		symbol, err := symbolArg(args)
		if err != nil {
			return "", nil, err
		}
		if application.DB == nil {
			return "Persistence is disabled (DATABASE_URL not set)", nil, nil
		}
		runs, err := application.DB.LatestRuns(ctx, symbol, 10)
		if err != nil {
			return "", nil, err
		}
		if len(runs) == 0 {
			return fmt.Sprintf("No runs stored for %s", strings.ToUpper(symbol)), nil, nil
		}
		var b strings.Builder
		fmt.Fprintf(&b, "Recent runs for %s:\n", strings.ToUpper(symbol))
		for _, run := range runs {
			fmt.Fprintf(&b, "%s %s MAE=%.4f RMSE=%.4f R2=%.4f",
				run.CreatedAt.Format("2006-01-02 15:04"), run.Model, run.MAE, run.RMSE, run.R2)
			if !run.ForecastDate.IsZero() {
				fmt.Fprintf(&b, " forecast %s=%.2f", run.ForecastDate.Format(models.DateLayout), run.Forecast)
			}
			b.WriteString("\n")
		}
		return b.String(), nil, nil
	})
}

func symbolArg(args string) (string, error) {
	fields := strings.Fields(args)
	if len(fields) != 1 {
		return "", errors.New("expected exactly one symbol")
	}
	return models.ParseSymbol(fields[0])
}

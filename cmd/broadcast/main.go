package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/Alias1177/FinTrends/internal/app"
	"github.com/Alias1177/FinTrends/internal/config"
	"github.com/Alias1177/FinTrends/internal/database"
	"github.com/Alias1177/FinTrends/internal/notify"
	"github.com/Alias1177/FinTrends/models"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// broadcast posts the latest stored forecast of every configured symbol to the
// Telegram chat without re-running the analysis
func main() {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	// Initialize database
	db, err := database.New(ctx, app.DatabaseDSN(cfg))
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize database")
	}
	defer db.Close()

	// Initialize Telegram bot
	telegram, err := notify.NewTelegram(cfg.TelegramBotToken, cfg.TelegramChatID)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize Telegram bot")
	}

	var b strings.Builder
	b.WriteString("Latest forecasts\n\n")
	found := 0
	for _, symbol := range cfg.Symbols {
		runs, err := db.LatestRuns(ctx, symbol, 2)
		if err != nil {
			log.Error().Err(err).Str("symbol", symbol).Msg("Failed to read runs")
			continue
		}
		for _, run := range runs {
			if run.ForecastDate.IsZero() {
				continue
			}
			fmt.Fprintf(&b, "%s %s: %.2f (%s, RMSE %.4f)\n",
				strings.ToUpper(symbol), run.ForecastDate.Format(models.DateLayout), run.Forecast, run.Model, run.RMSE)
			found++
			break
		}
	}

	if found == 0 {
		log.Warn().Msg("No stored forecasts to broadcast")
		return
	}

	if err := telegram.SendReport(ctx, b.String()); err != nil {
		log.Fatal().Err(err).Msg("Broadcast failed")
	}
	log.Info().Int("symbols", found).Msg("Broadcast completed")
}

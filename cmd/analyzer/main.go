package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"
	"time"

	"github.com/Alias1177/FinTrends/internal/app"
	"github.com/Alias1177/FinTrends/internal/config"
	"github.com/Alias1177/FinTrends/internal/pipeline"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func main() {
	// Setup context with cancellation for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle interrupt signals
	setupSignalHandling(cancel)

	// 1. Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	// Symbols given on the command line replace SYMBOLS
	if len(os.Args) > 1 {
		cfg.Symbols = nil
		for _, arg := range os.Args[1:] {
			cfg.Symbols = append(cfg.Symbols, strings.ToLower(arg))
		}
	}

	// 2. Configure logging
	setupLogging(cfg.LogLevel)
	log.Info().Msg("Starting FinTrends analyzer")

	// 3. Print configuration
	printConfig(cfg)

	// 4. Wire data source, cache and outputs
	application, err := app.New(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize")
	}
	defer application.Close()

	// 5. Run the workflow for every symbol
	report, err := application.Analyzer().RunAll(ctx, cfg.Symbols)
	if report != nil {
		printReport(report)
	}
	if err != nil {
		log.Error().Err(err).Msg("Analysis failed")
		application.Close()
		os.Exit(1)
	}
}

// setupSignalHandling cancels the run on interrupt
func setupSignalHandling(cancel context.CancelFunc) {
	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-c
		log.Info().Msg("Shutdown signal received, stopping...")
		cancel()
	}()
}

// setupLogging configures the logger
func setupLogging(logLevel string) {
	output := zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}
	log.Logger = log.Output(output)

	// Set log level from config
	level, err := zerolog.ParseLevel(logLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	log.Logger = log.Logger.Level(level)
}

// printConfig outputs the current configuration
func printConfig(cfg *config.Config) {
	log.Info().
		Strs("Symbols", cfg.Symbols).
		Str("StartDate", cfg.StartDate).
		Str("EndDate", cfg.EndDate).
		Str("DataDir", cfg.DataDir).
		Str("OutputDir", cfg.OutputDir).
		Str("FetchMode", cfg.FetchMode).
		Str("Model", cfg.Model).
		Float64("RidgeAlpha", cfg.RidgeAlpha).
		Int("Lags", cfg.Lags).
		Float64("TestRatio", cfg.TestRatio).
		Int("BacktestFolds", cfg.BacktestFolds).
		Int("SMAPeriod", cfg.SMAPeriod).
		Int("RSIPeriod", cfg.RSIPeriod).
		Int("BBPeriod", cfg.BBPeriod).
		Float64("BBStdDev", cfg.BBStdDev).
		Int("Concurrency", cfg.Concurrency).
		Bool("Database", app.DatabaseDSN(cfg) != "").
		Bool("Telegram", cfg.TelegramBotToken != "").
		Msg("Configuration loaded")
}

// printReport writes every symbol report and the correlation table to stdout
func printReport(report *pipeline.Report) {
	for _, res := range report.Results {
		fmt.Println()
		fmt.Print(pipeline.FormatReport(res))
		for _, path := range res.Charts {
			fmt.Printf("Chart: %s\n", path)
		}
	}

	if c := report.Correlation; c != nil {
		fmt.Println("\n===== RETURN CORRELATION =====")
		fmt.Printf("%8s", "")
		for _, name := range c.Names {
			fmt.Printf("%8s", strings.ToUpper(name))
		}
		fmt.Println()
		for i, name := range c.Names {
			fmt.Printf("%8s", strings.ToUpper(name))
			for _, v := range c.Matrix[i] {
				fmt.Printf("%8.3f", v)
			}
			fmt.Println()
		}
	}

	if len(report.Failures) > 0 {
		fmt.Println("\n===== FAILED SYMBOLS =====")
		symbols := make([]string, 0, len(report.Failures))
		for symbol := range report.Failures {
			symbols = append(symbols, symbol)
		}
		sort.Strings(symbols)
		for _, symbol := range symbols {
			fmt.Printf("%s: %v\n", symbol, report.Failures[symbol])
		}
	}

	if report.WorkbookPath != "" {
		fmt.Printf("\nWorkbook: %s\n", report.WorkbookPath)
	}
}

package pipeline

import (
	"context"
	"path/filepath"
	"sort"
	"sync"

	"github.com/Alias1177/FinTrends/internal/analysis/eda"
	"github.com/Alias1177/FinTrends/internal/database"
	"github.com/Alias1177/FinTrends/internal/export"
	"github.com/Alias1177/FinTrends/internal/metrics"
	"github.com/Alias1177/FinTrends/internal/notify"
	"github.com/Alias1177/FinTrends/models"
	"github.com/cockroachdb/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

// WorkbookName is the file written to the output directory
const WorkbookName = "report.xlsx"

// RunStore persists bars and evaluated runs
type RunStore interface {
	UpsertBars(ctx context.Context, symbol string, series models.Series) error
	SaveRun(ctx context.Context, run database.ModelRun) error
}

// BatchLoader loads many symbols at once, reporting per-symbol failures
type BatchLoader interface {
	LoadAll(ctx context.Context, symbols []string) (map[string]models.Series, map[string]error, error)
}

// Notifier delivers a text report with attachments
type Notifier interface {
	SendReport(ctx context.Context, text string, charts ...string) error
}

// AnalyzerOptions wires the optional outputs of an Analyzer
type AnalyzerOptions struct {
	Concurrency int
	OutputDir   string   // empty skips the workbook
	Store       RunStore // nil skips persistence
	Notifier    Notifier // nil skips notifications
}

// Analyzer runs many symbols and collects their outputs
type Analyzer struct {
	runner      *Runner
	loader      BatchLoader
	concurrency int
	outputDir   string
	store       RunStore
	notifier    Notifier
	logger      zerolog.Logger
}

// Report is the outcome of an Analyzer run
type Report struct {
	Results      []*Result // sorted by symbol
	Failures     map[string]error
	Correlation  *export.Correlation
	WorkbookPath string
}

// NewAnalyzer creates an analyzer that ingests through loader and analyzes
// with runner
func NewAnalyzer(runner *Runner, loader BatchLoader, opts AnalyzerOptions) *Analyzer {
	if opts.Concurrency < 1 {
		opts.Concurrency = 1
	}
	return &Analyzer{
		runner:      runner,
		loader:      loader,
		concurrency: opts.Concurrency,
		outputDir:   opts.OutputDir,
		store:       opts.Store,
		notifier:    opts.Notifier,
		logger:      log.With().Str("component", "analyzer").Logger(),
	}
}

// RunAll loads every symbol in one batch, then analyzes the loaded series
// concurrently. A failing symbol is recorded in Failures and
// does not stop the others; RunAll fails only when no symbol succeeds or the
// context is cancelled.
func (a *Analyzer) RunAll(ctx context.Context, symbols []string) (*Report, error) {
	loaded, failures, err := a.loader.LoadAll(ctx, symbols)
	if err != nil {
		return nil, err
	}
	if failures == nil {
		failures = make(map[string]error)
	}
	report := &Report{Failures: failures}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(a.concurrency)
	var mu sync.Mutex

	for symbol, series := range loaded {
		g.Go(func() error {
			res, err := a.runner.Analyze(gctx, symbol, series)
			if err != nil {
				if gctx.Err() != nil {
					return gctx.Err()
				}
				a.logger.Error().Err(err).Str("symbol", symbol).Msg("Symbol analysis failed")
				mu.Lock()
				report.Failures[symbol] = err
				mu.Unlock()
				return nil
			}
			mu.Lock()
			report.Results = append(report.Results, res)
			mu.Unlock()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	if len(report.Results) == 0 {
		return report, errors.Newf("no symbol could be analyzed (%d failed)", len(report.Failures))
	}
	sort.Slice(report.Results, func(i, j int) bool {
		return report.Results[i].Symbol < report.Results[j].Symbol
	})

	report.Correlation = a.correlation(report.Results)

	if a.outputDir != "" {
		path := filepath.Join(a.outputDir, WorkbookName)
		if err := export.WriteWorkbook(path, workbookReports(report.Results), report.Correlation); err != nil {
			a.logger.Error().Err(err).Msg("Failed to write workbook")
		} else {
			report.WorkbookPath = path
			a.logger.Info().Str("path", path).Msg("Workbook written")
		}
	}

	if a.store != nil {
		a.persist(ctx, report.Results)
	}
	if a.notifier != nil {
		a.notify(ctx, report.Results)
	}
	return report, nil
}

func (a *Analyzer) correlation(results []*Result) *export.Correlation {
	if len(results) < 2 {
		return nil
	}
	series := make(map[string]models.Series, len(results))
	for _, res := range results {
		series[res.Symbol] = res.Series
	}
	names, matrix, err := eda.CorrelationMatrix(series)
	if err != nil {
		a.logger.Warn().Err(err).Msg("Correlation skipped")
		return nil
	}
	return &export.Correlation{Names: names, Matrix: matrix}
}

func (a *Analyzer) persist(ctx context.Context, results []*Result) {
	for _, res := range results {
		if err := a.store.UpsertBars(ctx, res.Symbol, res.Series); err != nil {
			a.logger.Error().Err(err).Str("symbol", res.Symbol).Msg("Failed to store bars")
			continue
		}
		for _, run := range modelRuns(res) {
			if err := a.store.SaveRun(ctx, run); err != nil {
				a.logger.Error().Err(err).Str("symbol", res.Symbol).Str("model", run.Model).Msg("Failed to store run")
			}
		}
	}
}

func (a *Analyzer) notify(ctx context.Context, results []*Result) {
	for _, res := range results {
		var attachments []string
		for _, path := range res.Charts {
			if filepath.Base(path) == "prediction.png" {
				attachments = append(attachments, path)
			}
		}
		if err := a.notifier.SendReport(ctx, FormatReport(res), attachments...); err != nil {
			a.logger.Error().Err(err).Str("symbol", res.Symbol).Msg("Failed to send report")
		}
	}
}

// modelRuns lists the model and its baseline as rows sharing the run id
func modelRuns(res *Result) []database.ModelRun {
	run := func(m metrics.Report) database.ModelRun {
		return database.ModelRun{
			RunID:     res.RunID,
			Symbol:    res.Symbol,
			Model:     m.Model,
			TrainRows: res.TrainRows,
			TestRows:  res.TestRows,
			MAE:       m.MAE,
			RMSE:      m.RMSE,
			R2:        m.R2,
		}
	}
	model := run(res.Metrics)
	model.ForecastDate = res.ForecastDate
	model.Forecast = res.Forecast
	return []database.ModelRun{model, run(res.Baseline)}
}

func workbookReports(results []*Result) []export.SymbolReport {
	out := make([]export.SymbolReport, len(results))
	for i, res := range results {
		out[i] = export.SymbolReport{
			Symbol:       res.Symbol,
			About:        res.About,
			Summary:      res.Summary,
			Series:       res.Series,
			Predictions:  res.Predictions,
			Metrics:      []metrics.Report{res.Metrics, res.Baseline},
			Anomalies:    res.Anomalies,
			ForecastDate: res.ForecastDate,
			Forecast:     res.Forecast,
		}
	}
	return out
}

var (
	_ RunStore = (*database.DB)(nil)
	_ Notifier = (*notify.Telegram)(nil)
)

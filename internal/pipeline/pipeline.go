// Package pipeline runs the per-symbol workflow: preprocess, explore, build
// features, fit, evaluate against a persistence baseline, chart and forecast.
package pipeline

import (
	"context"
	"path/filepath"
	"time"

	"github.com/Alias1177/FinTrends/internal/analysis/eda"
	"github.com/Alias1177/FinTrends/internal/analysis/market"
	"github.com/Alias1177/FinTrends/internal/analysis/pattern"
	"github.com/Alias1177/FinTrends/internal/analysis/technical"
	"github.com/Alias1177/FinTrends/internal/chart"
	"github.com/Alias1177/FinTrends/internal/config"
	"github.com/Alias1177/FinTrends/internal/features"
	"github.com/Alias1177/FinTrends/internal/metrics"
	"github.com/Alias1177/FinTrends/internal/regression"
	"github.com/Alias1177/FinTrends/internal/trading/backtest"
	"github.com/Alias1177/FinTrends/models"
	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"gonum.org/v1/gonum/mat"
)

// FallbackAlpha is the ridge penalty used when least squares is singular
const FallbackAlpha = 1e-3

// previousCloseFeature holds the close the target follows
const previousCloseFeature = "lag_1"

// Loader supplies the price history of a symbol
type Loader interface {
	Load(ctx context.Context, symbol string) (models.Series, error)
}

// Registry resolves symbol descriptions
type Registry interface {
	LookupSymbol(symbol string) (models.SymbolInfo, bool, error)
}

// Options configures one analysis
type Options struct {
	Model         string
	RidgeAlpha    float64
	Features      features.Options
	TestRatio     float64
	Periods       technical.Periods
	ChartDir      string // empty disables charts
	BacktestFolds int    // 0 disables the walk-forward backtest

	BacktestInitialValue float64 // starting equity, 0 keeps the engine default
	BacktestMinTrain     int     // rows in the first training window, 0 means half
}

// OptionsFromConfig maps application configuration onto pipeline options
func OptionsFromConfig(cfg *config.Config) Options {
	periods := technical.DefaultPeriods()
	periods.SMA = cfg.SMAPeriod
	periods.EMA = cfg.EMAPeriod
	periods.RSI = cfg.RSIPeriod
	periods.BB = cfg.BBPeriod
	periods.BBStdDev = cfg.BBStdDev
	periods.ATR = cfg.ATRPeriod

	opts := Options{
		Model:      cfg.Model,
		RidgeAlpha: cfg.RidgeAlpha,
		Features: features.Options{
			Lags:      cfg.Lags,
			SMAPeriod: cfg.SMAPeriod,
			RSIPeriod: cfg.RSIPeriod,
		},
		TestRatio:     cfg.TestRatio,
		Periods:       periods,
		BacktestFolds: cfg.BacktestFolds,

		BacktestInitialValue: cfg.BacktestInitialValue,
		BacktestMinTrain:     cfg.BacktestMinTrain,
	}
	if cfg.Charts {
		opts.ChartDir = filepath.Join(cfg.OutputDir, "charts")
	}
	return opts
}

// Result is the outcome of one symbol's analysis
type Result struct {
	RunID      uuid.UUID
	Symbol     string
	About      string
	Series     models.Series
	Summary    *eda.Summary
	Indicators *technical.Snapshot
	Regime     market.Regime
	Anomalies  []market.Anomaly
	Patterns   []pattern.Pattern

	Model        string
	Fallback     bool // least squares was singular and ridge was used instead
	TrainRows    int
	TestRows     int
	Coefficients map[string]float64 // on standardized features
	Intercept    float64

	Predictions         []models.Prediction
	Metrics             metrics.Report
	Baseline            metrics.Report
	DirectionalAccuracy float64

	ForecastDate time.Time
	Forecast     float64

	Backtest *backtest.Results
	Charts   []string
}

// BeatsBaseline reports whether the model's RMSE is below the persistence RMSE
func (r *Result) BeatsBaseline() bool {
	return r.Metrics.RMSE < r.Baseline.RMSE
}

// Runner executes the workflow for single symbols
type Runner struct {
	loader   Loader
	registry Registry
	opts     Options
	newID    func() uuid.UUID
	logger   zerolog.Logger
}

// NewRunner creates a runner. registry may be nil.
func NewRunner(loader Loader, registry Registry, opts Options) *Runner {
	if opts.TestRatio <= 0 || opts.TestRatio >= 1 {
		opts.TestRatio = 0.2
	}
	if opts.Model == "" {
		opts.Model = "linear"
	}
	return &Runner{
		loader:   loader,
		registry: registry,
		opts:     opts,
		newID:    uuid.New,
		logger:   log.With().Str("component", "pipeline").Logger(),
	}
}

// Run loads a symbol and analyzes it
func (r *Runner) Run(ctx context.Context, symbol string) (*Result, error) {
	symbol = models.NormalizeSymbol(symbol)
	series, err := r.loader.Load(ctx, symbol)
	if err != nil {
		return nil, errors.Wrapf(err, "loading %s", symbol)
	}
	return r.Analyze(ctx, symbol, series)
}

// Analyze runs every stage after ingestion on an in-memory series
func (r *Runner) Analyze(ctx context.Context, symbol string, series models.Series) (*Result, error) {
	logger := r.logger.With().Str("symbol", symbol).Logger()

	series = Preprocess(series)
	if len(series) == 0 {
		return nil, errors.Wrapf(eda.ErrNoData, "%s has no usable bars", symbol)
	}

	res := &Result{
		RunID:  r.newID(),
		Symbol: symbol,
		Series: series,
	}
	if r.registry != nil {
		if info, ok, err := r.registry.LookupSymbol(symbol); err != nil {
			logger.Warn().Err(err).Msg("Symbol registry lookup failed")
		} else if ok {
			res.About = info.About
		}
	}

	// Explore
	summary, err := eda.Summarize(symbol, series)
	if err != nil {
		return nil, err
	}
	res.Summary = summary
	res.Indicators = technical.CalculateAll(series, r.opts.Periods)
	res.Regime = market.ClassifyRegime(series)
	res.Anomalies = market.DetectAnomalies(series)
	res.Patterns = pattern.Identify(series)

	// Model
	ds, err := features.Build(series, r.opts.Features)
	if err != nil {
		return nil, errors.Wrapf(err, "building features for %s", symbol)
	}
	train, test, err := features.Split(ds, r.opts.TestRatio)
	if err != nil {
		return nil, err
	}
	res.TrainRows, res.TestRows = train.Rows(), test.Rows()

	model, fallback, err := r.fit(train)
	if err != nil {
		return nil, errors.Wrapf(err, "fitting %s", symbol)
	}
	res.Model = model.Name()
	res.Fallback = fallback
	if fallback {
		logger.Warn().Float64("alpha", FallbackAlpha).Msg("Least squares is singular, using ridge")
	}
	res.Coefficients, res.Intercept = coefficients(model, ds.Names)

	predicted, err := model.Predict(test.X)
	if err != nil {
		return nil, err
	}

	// Evaluate
	prevIdx := ds.Column(previousCloseFeature)
	baseline := regression.NewPersistence(prevIdx)
	if err := baseline.Fit(train.X, train.Y); err != nil {
		return nil, err
	}
	baselinePred, err := baseline.Predict(test.X)
	if err != nil {
		return nil, err
	}

	if res.Metrics, err = metrics.Evaluate(test.Y, predicted); err != nil {
		return nil, err
	}
	res.Metrics.Model = res.Model
	if res.Baseline, err = metrics.Evaluate(test.Y, baselinePred); err != nil {
		return nil, err
	}
	res.Baseline.Model = baseline.Name()

	previous := mat.Col(nil, prevIdx, test.X)
	res.DirectionalAccuracy, _ = metrics.DirectionalAccuracy(previous, test.Y, predicted)

	res.Predictions = make([]models.Prediction, len(predicted))
	for i := range predicted {
		res.Predictions[i] = models.Prediction{
			Date:      test.Dates[i],
			Previous:  previous[i],
			Actual:    test.Y[i],
			Predicted: predicted[i],
			Baseline:  baselinePred[i],
		}
	}

	// Forecast the session after the last bar with a model refit on all rows
	if ds.Latest != nil {
		if err := r.forecast(ds, res); err != nil {
			logger.Warn().Err(err).Msg("Next-session forecast failed")
		}
	}

	if r.opts.BacktestFolds > 0 {
		engine := backtest.NewModelEngine(res.Model, r.alpha(fallback), r.opts.BacktestFolds)
		if r.opts.BacktestInitialValue > 0 {
			engine.SetInitialValue(r.opts.BacktestInitialValue)
		}
		engine.SetMinTrain(r.opts.BacktestMinTrain)
		if res.Backtest, err = engine.Run(ctx, ds, previousCloseFeature); err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			logger.Warn().Err(err).Msg("Walk-forward backtest skipped")
		}
	}

	if r.opts.ChartDir != "" {
		res.Charts = r.renderCharts(res, logger)
	}

	logger.Info().
		Str("model", res.Model).
		Int("train_rows", res.TrainRows).
		Int("test_rows", res.TestRows).
		Float64("mae", res.Metrics.MAE).
		Float64("rmse", res.Metrics.RMSE).
		Float64("baseline_rmse", res.Baseline.RMSE).
		Msg("Analysis complete")
	return res, nil
}

// Preprocess sorts, removes duplicate dates and drops bars without a positive close
func Preprocess(series models.Series) models.Series {
	deduped := series.Dedupe()
	out := deduped[:0]
	for _, bar := range deduped {
		if bar.Close > 0 && bar.Date.Year() > 1 {
			out = append(out, bar)
		}
	}
	return out
}

func (r *Runner) alpha(fallback bool) float64 {
	if fallback {
		return FallbackAlpha
	}
	return r.opts.RidgeAlpha
}

// fit trains the configured model, switching to a lightly penalized ridge when
// least squares cannot be solved
func (r *Runner) fit(train *features.Dataset) (regression.Regressor, bool, error) {
	model, err := regression.New(r.opts.Model, r.opts.RidgeAlpha)
	if err != nil {
		return nil, false, err
	}
	err = model.Fit(train.X, train.Y)
	if err == nil {
		return model, false, nil
	}
	if !errors.Is(err, regression.ErrSingularMatrix) {
		return nil, false, err
	}

	ridge, err := regression.New("ridge", FallbackAlpha)
	if err != nil {
		return nil, false, err
	}
	if err := ridge.Fit(train.X, train.Y); err != nil {
		return nil, false, err
	}
	return ridge, true, nil
}

func (r *Runner) forecast(ds *features.Dataset, res *Result) error {
	model, err := regression.New(res.Model, r.alpha(res.Fallback))
	if err != nil {
		return err
	}
	if err := model.Fit(ds.X, ds.Y); err != nil {
		return err
	}
	out, err := model.Predict(mat.NewDense(1, len(ds.Latest), ds.Latest))
	if err != nil {
		return err
	}
	res.Forecast = out[0]
	res.ForecastDate = models.NextTradingDay(ds.LatestDate)
	return nil
}

func (r *Runner) renderCharts(res *Result, logger zerolog.Logger) []string {
	dir := filepath.Join(r.opts.ChartDir, res.Symbol)
	var paths []string

	pricePath := filepath.Join(dir, "price.png")
	if err := chart.PriceChart(pricePath, res.Symbol, res.Series, r.opts.Periods.SMA, r.opts.Periods.BB, r.opts.Periods.BBStdDev); err != nil {
		logger.Warn().Err(err).Msg("Price chart failed")
	} else {
		paths = append(paths, pricePath)
	}

	dates := make([]time.Time, len(res.Predictions))
	actual := make([]float64, len(res.Predictions))
	predicted := make([]float64, len(res.Predictions))
	for i, p := range res.Predictions {
		dates[i], actual[i], predicted[i] = p.Date, p.Actual, p.Predicted
	}
	predictionPath := filepath.Join(dir, "prediction.png")
	if err := chart.PredictionChart(predictionPath, res.Symbol+" "+res.Model+" test window", dates, actual, predicted); err != nil {
		logger.Warn().Err(err).Msg("Prediction chart failed")
	} else {
		paths = append(paths, predictionPath)
	}

	returnsPath := filepath.Join(dir, "returns.png")
	if err := chart.ReturnsHistogram(returnsPath, res.Symbol+" daily returns", eda.Returns(res.Series.Closes()), 50); err != nil {
		logger.Warn().Err(err).Msg("Returns histogram failed")
	} else {
		paths = append(paths, returnsPath)
	}
	return paths
}

// coefficients extracts named weights when the model is linear
func coefficients(model regression.Regressor, names []string) (map[string]float64, float64) {
	if p, ok := model.(*regression.Pipeline); ok {
		model = p.Model
	}
	c, ok := model.(regression.Coefficients)
	if !ok {
		return nil, 0
	}
	weights := c.Weights()
	out := make(map[string]float64, len(weights))
	for i, w := range weights {
		if i < len(names) {
			out[names[i]] = w
		}
	}
	return out, c.Intercept()
}

// Package backtest replays a price model over history with walk-forward
// refits and scores both its forecasts and a long/flat strategy built on them.
package backtest

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/Alias1177/FinTrends/internal/features"
	"github.com/Alias1177/FinTrends/internal/metrics"
	"github.com/Alias1177/FinTrends/internal/regression"
	"github.com/cockroachdb/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// ModelFactory returns a fresh, unfitted model
type ModelFactory func() (regression.Regressor, error)

// Trade is one walk-forward step
type Trade struct {
	Date      time.Time `json:"date"`
	Previous  float64   `json:"previous"`
	Actual    float64   `json:"actual"`
	Predicted float64   `json:"predicted"`
	Long      bool      `json:"long"`
	Return    float64   `json:"return"` // strategy return of the session, fraction
}

// Results summarizes a walk-forward run
type Results struct {
	Model               string             `json:"model"`
	Folds               int                `json:"folds"`
	TotalTrades         int                `json:"total_trades"` // sessions spent long
	WinningTrades       int                `json:"winning_trades"`
	WinPercentage       float64            `json:"win_percentage"`
	TotalReturnPercent  float64            `json:"total_return_percent"`
	BuyHoldPercent      float64            `json:"buy_hold_percent"`
	MaxDrawdown         float64            `json:"max_drawdown"` // percent
	SharpeRatio         float64            `json:"sharpe_ratio"`
	DirectionalAccuracy float64            `json:"directional_accuracy"`
	Metrics             metrics.Report     `json:"metrics"`
	MonthlyReturns      map[string]float64 `json:"monthly_returns"` // percent
	EquityCurve         []float64          `json:"equity_curve"`
	DetailedResults     []Trade            `json:"detailed_results"`
}

// Engine handles backtesting operations
type Engine struct {
	factory      ModelFactory
	folds        int
	minTrain     int
	initialValue float64
	logger       zerolog.Logger
}

// NewEngine creates a walk-forward engine with the given number of refits
func NewEngine(factory ModelFactory, folds int) *Engine {
	if folds < 1 {
		folds = 1
	}
	return &Engine{
		factory:      factory,
		folds:        folds,
		initialValue: 10000.0,
		logger:       log.With().Str("component", "backtest").Logger(),
	}
}

// SetInitialValue sets the initial capital for backtesting
func (e *Engine) SetInitialValue(value float64) {
	e.initialValue = value
}

// SetMinTrain sets the number of rows the first fold trains on. By default
// the first half of the dataset is used.
func (e *Engine) SetMinTrain(rows int) {
	e.minTrain = rows
}

// Run walks forward over ds. The rows after the initial training window are
// cut into consecutive folds; each fold is predicted by a model refit on every
// row before it. Column previousColumn must hold the close the target follows.
func (e *Engine) Run(ctx context.Context, ds *features.Dataset, previousColumn string) (*Results, error) {
	n := ds.Rows()
	prevIdx := ds.Column(previousColumn)
	if prevIdx < 0 {
		return nil, errors.Newf("feature %q not in dataset", previousColumn)
	}

	minTrain := e.minTrain
	if minTrain <= 0 {
		minTrain = n / 2
	}
	if minTrain < features.MinRows || n-minTrain < e.folds {
		return nil, errors.Wrapf(features.ErrInsufficientData,
			"%d rows cannot hold %d training rows and %d folds", n, minTrain, e.folds)
	}

	_, cols := ds.X.Dims()
	foldSize := (n - minTrain) / e.folds

	results := &Results{Folds: e.folds, MonthlyReturns: make(map[string]float64)}
	var actual, predicted, previous []float64

	for fold := 0; fold < e.folds; fold++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		from := minTrain + fold*foldSize
		to := from + foldSize
		if fold == e.folds-1 {
			to = n
		}

		model, err := e.factory()
		if err != nil {
			return nil, err
		}
		results.Model = model.Name()

		trainX := ds.X.Slice(0, from, 0, cols)
		if err := model.Fit(trainX, ds.Y[:from]); err != nil {
			return nil, errors.Wrapf(err, "fold %d", fold+1)
		}
		preds, err := model.Predict(ds.X.Slice(from, to, 0, cols))
		if err != nil {
			return nil, errors.Wrapf(err, "fold %d", fold+1)
		}

		for i, p := range preds {
			row := from + i
			prev := ds.X.At(row, prevIdx)
			trade := Trade{
				Date:      ds.Dates[row],
				Previous:  prev,
				Actual:    ds.Y[row],
				Predicted: p,
				Long:      p > prev,
			}
			if trade.Long && prev != 0 {
				trade.Return = trade.Actual/prev - 1
			}
			results.DetailedResults = append(results.DetailedResults, trade)
			actual = append(actual, trade.Actual)
			predicted = append(predicted, p)
			previous = append(previous, prev)
		}

		e.logger.Debug().
			Int("fold", fold+1).
			Int("train_rows", from).
			Int("test_rows", to-from).
			Msg("Fold evaluated")
	}

	report, err := metrics.Evaluate(actual, predicted)
	if err != nil {
		return nil, err
	}
	report.Model = results.Model
	results.Metrics = report
	results.DirectionalAccuracy, _ = metrics.DirectionalAccuracy(previous, actual, predicted)

	if first, last := previous[0], actual[len(actual)-1]; first != 0 {
		results.BuyHoldPercent = (last/first - 1) * 100
	}

	CalculatePerformanceMetrics(results, e.initialValue)
	return results, nil
}

// walkForwardFactory adapts a model name to a ModelFactory
func walkForwardFactory(name string, alpha float64) ModelFactory {
	return func() (regression.Regressor, error) {
		return regression.New(name, alpha)
	}
}

// NewModelEngine is NewEngine for a registered model name
func NewModelEngine(name string, alpha float64, folds int) *Engine {
	return NewEngine(walkForwardFactory(name, alpha), folds)
}

// FormatResults creates a human-readable summary of backtest results
func FormatResults(results *Results) string {
	if results == nil {
		return "No backtest results available"
	}

	var b strings.Builder
	b.WriteString("\n===== WALK-FORWARD BACKTEST =====\n")
	fmt.Fprintf(&b, "Model: %s, folds: %d, forecasts: %d\n", results.Model, results.Folds, len(results.DetailedResults))
	fmt.Fprintf(&b, "Forecast error: %s\n", results.Metrics)
	fmt.Fprintf(&b, "Directional accuracy: %.2f%%\n", results.DirectionalAccuracy*100)
	fmt.Fprintf(&b, "Sessions long: %d, winning: %d (%.2f%%)\n", results.TotalTrades, results.WinningTrades, results.WinPercentage)
	fmt.Fprintf(&b, "Strategy return: %.2f%% vs buy and hold %.2f%%\n", results.TotalReturnPercent, results.BuyHoldPercent)
	fmt.Fprintf(&b, "Maximum drawdown: %.2f%%\n", results.MaxDrawdown)
	fmt.Fprintf(&b, "Sharpe ratio: %.2f\n", results.SharpeRatio)

	if len(results.MonthlyReturns) > 0 {
		b.WriteString("\nMonthly returns:\n")

		// Sort months for chronological display
		months := make([]string, 0, len(results.MonthlyReturns))
		for month := range results.MonthlyReturns {
			months = append(months, month)
		}
		sort.Strings(months)

		for _, month := range months {
			fmt.Fprintf(&b, "- %s: %+.2f%%\n", month, results.MonthlyReturns[month])
		}
	}

	return b.String()
}

// Package export writes analysis results to an XLSX workbook.
package export

import (
	"math"
	"os"
	"path/filepath"
	"time"

	"github.com/Alias1177/FinTrends/internal/analysis/eda"
	"github.com/Alias1177/FinTrends/internal/analysis/market"
	"github.com/Alias1177/FinTrends/internal/metrics"
	"github.com/Alias1177/FinTrends/models"
	"github.com/cockroachdb/errors"
	"github.com/rs/zerolog/log"
	"github.com/xuri/excelize/v2"
)

// Sheet names
const (
	SheetSummary     = "Summary"
	SheetPrices      = "Prices"
	SheetPredictions = "Predictions"
	SheetMetrics     = "Metrics"
	SheetAnomalies   = "Anomalies"
	SheetCorrelation = "Correlation"
)

// SymbolReport is everything exported for one symbol
type SymbolReport struct {
	Symbol       string
	About        string
	Summary      *eda.Summary
	Series       models.Series
	Predictions  []models.Prediction
	Metrics      []metrics.Report
	Anomalies    []market.Anomaly
	ForecastDate time.Time
	Forecast     float64
}

// Correlation is a labelled square matrix of return correlations
type Correlation struct {
	Names  []string
	Matrix [][]float64
}

var (
	summaryHeader    = []interface{}{"Symbol", "About", "From", "To", "Sessions", "Last Close", "Total Return", "Annualized Vol", "Max Drawdown", "Trend", "Forecast Date", "Forecast"}
	pricesHeader     = []interface{}{"Symbol", models.ColumnDate, models.ColumnOpen, models.ColumnHigh, models.ColumnLow, models.ColumnClose, models.ColumnAdjClose, models.ColumnVolume}
	predictionHeader = []interface{}{"Symbol", "Date", "Previous", "Actual", "Predicted", "Baseline", "Error"}
	metricsHeader    = []interface{}{"Symbol", "Model", "N", "MAE", "MSE", "RMSE", "MAPE %", "R2"}
	anomalyHeader    = []interface{}{"Symbol", "Date", "Type", "Score", "Details"}
)

// WriteWorkbook saves reports to path. The correlation sheet is added only when
// corr holds at least two symbols.
func WriteWorkbook(path string, reports []SymbolReport, corr *Correlation) error {
	f := excelize.NewFile()
	defer func() {
		if err := f.Close(); err != nil {
			log.Warn().Err(err).Msg("Failed to close workbook")
		}
	}()

	if err := f.SetSheetName(f.GetSheetName(0), SheetSummary); err != nil {
		return errors.Wrap(err, "rename default sheet")
	}
	for _, name := range []string{SheetPrices, SheetPredictions, SheetMetrics, SheetAnomalies} {
		if _, err := f.NewSheet(name); err != nil {
			return errors.Wrapf(err, "create sheet %s", name)
		}
	}

	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return errors.Wrap(err, "create header style")
	}

	w := &sheetWriter{f: f, style: bold}
	w.header(SheetSummary, summaryHeader)
	w.header(SheetPrices, pricesHeader)
	w.header(SheetPredictions, predictionHeader)
	w.header(SheetMetrics, metricsHeader)
	w.header(SheetAnomalies, anomalyHeader)

	for _, r := range reports {
		w.summary(r)
		for _, bar := range r.Series {
			w.row(SheetPrices, []interface{}{
				r.Symbol, bar.Date.Format(models.DateLayout), bar.Open, bar.High, bar.Low, bar.Close, bar.AdjClose, bar.Volume,
			})
		}
		for _, p := range r.Predictions {
			w.row(SheetPredictions, []interface{}{
				r.Symbol, p.Date.Format(models.DateLayout), p.Previous, p.Actual, p.Predicted, p.Baseline, p.Error(),
			})
		}
		for _, m := range r.Metrics {
			w.row(SheetMetrics, []interface{}{r.Symbol, m.Model, m.N, m.MAE, m.MSE, m.RMSE, m.MAPE, m.R2})
		}
		for _, a := range r.Anomalies {
			w.row(SheetAnomalies, []interface{}{r.Symbol, a.Date.Format(models.DateLayout), a.Type, a.Score, a.Details})
		}
	}

	if corr != nil && len(corr.Names) > 1 {
		if _, err := f.NewSheet(SheetCorrelation); err != nil {
			return errors.Wrap(err, "create correlation sheet")
		}
		head := []interface{}{""}
		for _, name := range corr.Names {
			head = append(head, name)
		}
		w.header(SheetCorrelation, head)
		for i, name := range corr.Names {
			row := []interface{}{name}
			for _, v := range corr.Matrix[i] {
				row = append(row, v)
			}
			w.row(SheetCorrelation, row)
		}
	}

	if w.err != nil {
		return w.err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return errors.Wrap(err, "create output directory")
	}
	if err := f.SaveAs(path); err != nil {
		return errors.Wrapf(err, "save workbook %s", path)
	}
	return nil
}

// sheetWriter appends rows and keeps the first error
type sheetWriter struct {
	f     *excelize.File
	style int
	next  map[string]int
	err   error
}

// row writes values on the next free row. Undefined numbers such as the
// correlation of a constant series become empty cells.
func (w *sheetWriter) row(sheet string, values []interface{}) {
	if w.err != nil {
		return
	}
	if w.next == nil {
		w.next = make(map[string]int)
	}
	w.next[sheet]++
	cell, err := excelize.CoordinatesToCellName(1, w.next[sheet])
	if err != nil {
		w.err = err
		return
	}
	for i, v := range values {
		if f, ok := v.(float64); ok && (math.IsNaN(f) || math.IsInf(f, 0)) {
			values[i] = ""
		}
	}
	if err := w.f.SetSheetRow(sheet, cell, &values); err != nil {
		w.err = errors.Wrapf(err, "write %s!%s", sheet, cell)
	}
}

func (w *sheetWriter) header(sheet string, values []interface{}) {
	w.row(sheet, values)
	if w.err != nil {
		return
	}
	last, err := excelize.CoordinatesToCellName(len(values), 1)
	if err != nil {
		w.err = err
		return
	}
	if err := w.f.SetCellStyle(sheet, "A1", last, w.style); err != nil {
		w.err = errors.Wrapf(err, "style %s header", sheet)
	}
}

func (w *sheetWriter) summary(r SymbolReport) {
	row := []interface{}{r.Symbol, r.About}
	if s := r.Summary; s != nil {
		var last float64
		if n := len(r.Series); n > 0 {
			last = r.Series[n-1].Close
		}
		row = append(row,
			s.From.Format(models.DateLayout), s.To.Format(models.DateLayout), s.Sessions, last,
			s.TotalReturn, s.AnnualizedVol, s.MaxDrawdown, s.Trend.Direction)
	} else {
		row = append(row, "", "", 0, 0, 0, 0, 0, "")
	}
	forecastDate := ""
	if !r.ForecastDate.IsZero() {
		forecastDate = r.ForecastDate.Format(models.DateLayout)
	}
	w.row(SheetSummary, append(row, forecastDate, r.Forecast))
}

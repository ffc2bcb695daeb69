// Package chart renders price, prediction and return charts as PNG files.
package chart

import (
	"image/color"
	"math"
	"os"
	"path/filepath"
	"time"

	"github.com/Alias1177/FinTrends/internal/analysis/technical"
	"github.com/Alias1177/FinTrends/models"
	"github.com/cockroachdb/errors"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
)

// ErrNoPoints is returned when nothing would be drawn
var ErrNoPoints = errors.New("no points to plot")

// Size of every rendered image
var (
	Width  = 10 * vg.Inch
	Height = 5 * vg.Inch
)

var (
	closeColor     = color.RGBA{R: 31, G: 119, B: 180, A: 255}
	smaColor       = color.RGBA{R: 255, G: 127, B: 14, A: 255}
	bandColor      = color.RGBA{R: 150, G: 150, B: 150, A: 255}
	actualColor    = color.RGBA{R: 44, G: 160, B: 44, A: 255}
	predictedColor = color.RGBA{R: 214, G: 39, B: 40, A: 255}
)

// timeXYs pairs dates with values, skipping NaN entries
func timeXYs(dates []time.Time, values []float64) plotter.XYs {
	xys := make(plotter.XYs, 0, len(values))
	for i, v := range values {
		if i >= len(dates) || math.IsNaN(v) || math.IsInf(v, 0) {
			continue
		}
		xys = append(xys, plotter.XY{X: float64(dates[i].Unix()), Y: v})
	}
	return xys
}

func newTimePlot(title, yLabel string) *plot.Plot {
	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = "Date"
	p.Y.Label.Text = yLabel
	p.X.Tick.Marker = plot.TimeTicks{Format: models.DateLayout}
	p.Add(plotter.NewGrid())
	return p
}

func addLine(p *plot.Plot, name string, xys plotter.XYs, c color.Color, dashed bool) error {
	if len(xys) == 0 {
		return nil
	}
	line, err := plotter.NewLine(xys)
	if err != nil {
		return errors.Wrapf(err, "line %s", name)
	}
	line.LineStyle.Color = c
	line.LineStyle.Width = vg.Points(1)
	if dashed {
		line.LineStyle.Dashes = []vg.Length{vg.Points(4), vg.Points(2)}
	}
	p.Add(line)
	p.Legend.Add(name, line)
	return nil
}

func save(p *plot.Plot, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return errors.Wrap(err, "create chart directory")
	}
	if err := p.Save(Width, Height, path); err != nil {
		return errors.Wrapf(err, "save chart %s", path)
	}
	return nil
}

// PriceChart draws the close with its moving average and Bollinger bands
func PriceChart(path, symbol string, series models.Series, smaPeriod, bbPeriod int, bbStdDev float64) error {
	if len(series) == 0 {
		return ErrNoPoints
	}
	dates := series.Dates()
	closes := series.Closes()
	upper, _, lower := technical.BollingerSeries(closes, bbPeriod, bbStdDev)

	p := newTimePlot(symbol+" close", "Price")
	p.Legend.Top = true
	p.Legend.Left = true

	if err := addLine(p, "Close", timeXYs(dates, closes), closeColor, false); err != nil {
		return err
	}
	if err := addLine(p, "SMA", timeXYs(dates, technical.SMA(closes, smaPeriod)), smaColor, false); err != nil {
		return err
	}
	if err := addLine(p, "BB upper", timeXYs(dates, upper), bandColor, true); err != nil {
		return err
	}
	if err := addLine(p, "BB lower", timeXYs(dates, lower), bandColor, true); err != nil {
		return err
	}
	return save(p, path)
}

// PredictionChart compares realized and predicted closes over the test window
func PredictionChart(path, title string, dates []time.Time, actual, predicted []float64) error {
	if len(actual) == 0 || len(actual) != len(predicted) || len(dates) != len(actual) {
		return errors.Wrapf(ErrNoPoints, "%d dates, %d actual, %d predicted", len(dates), len(actual), len(predicted))
	}

	p := newTimePlot(title, "Price")
	p.Legend.Top = true
	p.Legend.Left = true

	if err := addLine(p, "Actual", timeXYs(dates, actual), actualColor, false); err != nil {
		return err
	}
	if err := addLine(p, "Predicted", timeXYs(dates, predicted), predictedColor, true); err != nil {
		return err
	}
	return save(p, path)
}

// ReturnsHistogram draws the distribution of daily returns in percent
func ReturnsHistogram(path, title string, returns []float64, bins int) error {
	values := make(plotter.Values, 0, len(returns))
	for _, r := range returns {
		if math.IsNaN(r) || math.IsInf(r, 0) {
			continue
		}
		values = append(values, 100*r)
	}
	if len(values) == 0 {
		return ErrNoPoints
	}
	if bins < 1 {
		bins = 50
	}

	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = "Daily return, %"
	p.Y.Label.Text = "Sessions"

	hist, err := plotter.NewHist(values, bins)
	if err != nil {
		return errors.Wrap(err, "histogram")
	}
	hist.FillColor = closeColor
	p.Add(hist)
	return save(p, path)
}

// Package features turns a price history into a supervised-learning design
// matrix whose target is the next session's close.
package features

import (
	"fmt"
	"math"
	"time"

	"github.com/Alias1177/FinTrends/internal/analysis/technical"
	"github.com/Alias1177/FinTrends/models"
	"github.com/cockroachdb/errors"
	"gonum.org/v1/gonum/mat"
)

// ErrInsufficientData is returned when too few rows survive feature construction
var ErrInsufficientData = errors.New("insufficient data for feature construction")

// MinRows is the smallest dataset worth fitting
const MinRows = 10

// Options configures feature construction
type Options struct {
	Lags      int
	SMAPeriod int
	RSIPeriod int
}

// Dataset is a design matrix with aligned targets
type Dataset struct {
	X     *mat.Dense
	Y     []float64
	Dates []time.Time // date of the target session
	Names []string
	// Latest holds the feature row built from the final session, whose
	// target is not yet known; it feeds the next-session forecast
	Latest []float64
	// LatestDate is the last known session
	LatestDate time.Time
}

// Rows returns the number of samples
func (d *Dataset) Rows() int {
	return len(d.Y)
}

// Names returns the column names for the given options
func Names(opts Options) []string {
	names := make([]string, 0, opts.Lags+4)
	for i := 1; i <= opts.Lags; i++ {
		names = append(names, fmt.Sprintf("lag_%d", i))
	}
	return append(names, "return_1", "sma_ratio", "rsi", "volume_change")
}

// Build creates the dataset. Row t describes session t using information up
// to and including t; its target is the close of session t+1.
func Build(series models.Series, opts Options) (*Dataset, error) {
	if opts.Lags < 1 {
		opts.Lags = 1
	}
	if opts.SMAPeriod < 2 {
		opts.SMAPeriod = 20
	}
	if opts.RSIPeriod < 2 {
		opts.RSIPeriod = 14
	}

	closes := series.Closes()
	volumes := series.Volumes()
	sma := technical.SMA(closes, opts.SMAPeriod)
	rsi := technical.RSISeries(closes, opts.RSIPeriod)

	names := Names(opts)
	row := func(t int) ([]float64, bool) {
		if t < opts.Lags || math.IsNaN(sma[t]) || math.IsNaN(rsi[t]) || sma[t] == 0 || closes[t-1] == 0 {
			return nil, false
		}
		out := make([]float64, 0, len(names))
		for lag := 0; lag < opts.Lags; lag++ {
			out = append(out, closes[t-lag])
		}
		volumeChange := 0.0
		if volumes[t-1] > 0 {
			volumeChange = volumes[t]/volumes[t-1] - 1
		}
		out = append(out,
			closes[t]/closes[t-1]-1,
			closes[t]/sma[t],
			rsi[t],
			volumeChange,
		)
		return out, true
	}

	var data []float64
	var targets []float64
	var dates []time.Time
	for t := 0; t+1 < len(series); t++ {
		r, ok := row(t)
		if !ok {
			continue
		}
		data = append(data, r...)
		targets = append(targets, closes[t+1])
		dates = append(dates, series[t+1].Date)
	}

	if len(targets) < MinRows {
		return nil, errors.Wrapf(ErrInsufficientData, "%d usable rows from %d sessions", len(targets), len(series))
	}

	ds := &Dataset{
		X:     mat.NewDense(len(targets), len(names), data),
		Y:     targets,
		Dates: dates,
		Names: names,
	}
	if last, ok := row(len(series) - 1); ok {
		ds.Latest = last
		ds.LatestDate = series.LastDate()
	}
	return ds, nil
}

// Split divides the dataset chronologically: the last testRatio share of rows
// is held out. Both parts get at least one row.
func Split(ds *Dataset, testRatio float64) (train, test *Dataset, err error) {
	n := ds.Rows()
	if testRatio <= 0 || testRatio >= 1 {
		return nil, nil, errors.Newf("test ratio %.2f outside (0,1)", testRatio)
	}
	if n < 2 {
		return nil, nil, ErrInsufficientData
	}

	nTest := int(math.Round(float64(n) * testRatio))
	if nTest < 1 {
		nTest = 1
	}
	if nTest >= n {
		nTest = n - 1
	}
	cut := n - nTest

	return slice(ds, 0, cut), slice(ds, cut, n), nil
}

func slice(ds *Dataset, from, to int) *Dataset {
	_, c := ds.X.Dims()
	x := mat.DenseCopyOf(ds.X.Slice(from, to, 0, c))
	return &Dataset{
		X:          x,
		Y:          append([]float64(nil), ds.Y[from:to]...),
		Dates:      append([]time.Time(nil), ds.Dates[from:to]...),
		Names:      ds.Names,
		Latest:     ds.Latest,
		LatestDate: ds.LatestDate,
	}
}

// Column returns the index of a named feature, or -1
func (d *Dataset) Column(name string) int {
	for i, n := range d.Names {
		if n == name {
			return i
		}
	}
	return -1
}

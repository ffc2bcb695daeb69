// Package eda computes descriptive statistics of a price history: the
// summary table, returns, volatility, drawdown and cross-symbol correlation.
package eda

import (
	"math"
	"sort"
	"time"

	"github.com/Alias1177/FinTrends/models"
	"github.com/cockroachdb/errors"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// ErrNoData is returned when a statistic needs at least one observation
var ErrNoData = errors.New("no data")

// RecentWindow is the number of sessions behind the short-term statistics
const RecentWindow = 20

// Description mirrors the classic describe() table of one column
type Description struct {
	Count  int     `json:"count"`
	Mean   float64 `json:"mean"`
	Std    float64 `json:"std"`
	Min    float64 `json:"min"`
	Q25    float64 `json:"q25"`
	Median float64 `json:"median"`
	Q75    float64 `json:"q75"`
	Max    float64 `json:"max"`
}

// Summary is the exploratory overview of one symbol
type Summary struct {
	Symbol        string                 `json:"symbol"`
	From          time.Time              `json:"from"`
	To            time.Time              `json:"to"`
	Sessions      int                    `json:"sessions"`
	Columns       map[string]Description `json:"columns"`
	TotalReturn   float64                `json:"total_return"`   // fraction
	MeanDaily     float64                `json:"mean_daily"`     // mean daily return
	AnnualizedVol float64                `json:"annualized_vol"` // √252 · std of daily returns
	RecentVol     float64                `json:"recent_vol"`     // annualized, last RecentWindow returns
	LogGrowth     float64                `json:"log_growth"`     // 252 · mean daily log return
	MeanDeviation float64                `json:"mean_deviation"` // last close vs its RecentWindow mean, fraction
	MaxDrawdown   float64                `json:"max_drawdown"`   // fraction, positive
	BestDay       DayReturn              `json:"best_day"`
	WorstDay      DayReturn              `json:"worst_day"`
	Trend         Trend                  `json:"trend"`
}

// DayReturn is a dated daily return
type DayReturn struct {
	Date   time.Time `json:"date"`
	Return float64   `json:"return"`
}

// Describe computes count, mean, sample std, min, quartiles and max.
// NaN entries are ignored.
func Describe(values []float64) (Description, error) {
	clean := dropNaN(values)
	if len(clean) == 0 {
		return Description{}, ErrNoData
	}
	sort.Float64s(clean)

	d := Description{
		Count:  len(clean),
		Mean:   stat.Mean(clean, nil),
		Min:    clean[0],
		Max:    clean[len(clean)-1],
		Q25:    quantile(clean, 0.25),
		Median: quantile(clean, 0.5),
		Q75:    quantile(clean, 0.75),
	}
	if len(clean) > 1 {
		d.Std = stat.StdDev(clean, nil)
	}
	return d, nil
}

// quantile uses linear interpolation between closest ranks on sorted input
func quantile(sorted []float64, p float64) float64 {
	if len(sorted) == 1 {
		return sorted[0]
	}
	pos := p * float64(len(sorted)-1)
	lo := int(math.Floor(pos))
	hi := int(math.Ceil(pos))
	frac := pos - float64(lo)
	return sorted[lo] + (sorted[hi]-sorted[lo])*frac
}

// Summarize builds the full EDA summary of a series
func Summarize(symbol string, series models.Series) (*Summary, error) {
	if len(series) == 0 {
		return nil, ErrNoData
	}

	s := &Summary{
		Symbol:   symbol,
		From:     series.FirstDate(),
		To:       series.LastDate(),
		Sessions: len(series),
		Columns:  make(map[string]Description, len(models.PriceColumns)),
		Trend:    ClassifyTrend(series),
	}

	for _, col := range models.PriceColumns {
		d, err := Describe(series.Column(col))
		if err != nil {
			return nil, errors.Wrapf(err, "describing %s", col)
		}
		s.Columns[col] = d
	}

	closes := series.Closes()
	if first := closes[0]; first != 0 {
		s.TotalReturn = closes[len(closes)-1]/first - 1
	}
	s.MaxDrawdown = MaxDrawdown(closes)

	if mean := last(RollingMean(closes, RecentWindow)); mean > 0 {
		s.MeanDeviation = closes[len(closes)-1]/mean - 1
	}

	returns := Returns(closes)
	if len(returns) > 0 {
		s.MeanDaily = stat.Mean(returns, nil)
		s.AnnualizedVol = AnnualizedVolatility(returns)
		if std := last(RollingStd(returns, RecentWindow)); !math.IsNaN(std) {
			s.RecentVol = std * math.Sqrt(models.TradingDaysPerYear)
		}
		s.LogGrowth = stat.Mean(LogReturns(closes), nil) * models.TradingDaysPerYear

		best := floats.MaxIdx(returns)
		worst := floats.MinIdx(returns)
		s.BestDay = DayReturn{Date: series[best+1].Date, Return: returns[best]}
		s.WorstDay = DayReturn{Date: series[worst+1].Date, Return: returns[worst]}
	}

	return s, nil
}

// Returns computes simple day-over-day returns; the result has len(values)-1 entries
func Returns(values []float64) []float64 {
	if len(values) < 2 {
		return nil
	}
	out := make([]float64, len(values)-1)
	for i := 1; i < len(values); i++ {
		if values[i-1] == 0 {
			continue
		}
		out[i-1] = values[i]/values[i-1] - 1
	}
	return out
}

// LogReturns computes ln(p_t / p_{t-1})
func LogReturns(values []float64) []float64 {
	if len(values) < 2 {
		return nil
	}
	out := make([]float64, len(values)-1)
	for i := 1; i < len(values); i++ {
		if values[i-1] <= 0 || values[i] <= 0 {
			continue
		}
		out[i-1] = math.Log(values[i] / values[i-1])
	}
	return out
}

// AnnualizedVolatility scales the sample std of daily returns by √252
func AnnualizedVolatility(returns []float64) float64 {
	if len(returns) < 2 {
		return 0
	}
	return stat.StdDev(returns, nil) * math.Sqrt(models.TradingDaysPerYear)
}

// MaxDrawdown returns the largest peak-to-trough decline as a positive fraction
func MaxDrawdown(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}

	maxDrawdown := 0.0
	peak := values[0]
	for _, v := range values {
		if v > peak {
			peak = v
		}
		if peak <= 0 {
			continue
		}
		if dd := (peak - v) / peak; dd > maxDrawdown {
			maxDrawdown = dd
		}
	}
	return maxDrawdown
}

// RollingMean is the moving mean over window; the first window-1 entries are NaN
func RollingMean(values []float64, window int) []float64 {
	return rolling(values, window, func(w []float64) float64 { return stat.Mean(w, nil) })
}

// RollingStd is the moving sample std over window; the first window-1 entries are NaN
func RollingStd(values []float64, window int) []float64 {
	return rolling(values, window, func(w []float64) float64 {
		if len(w) < 2 {
			return 0
		}
		return stat.StdDev(w, nil)
	})
}

// last returns the final entry, NaN when values is empty
func last(values []float64) float64 {
	if len(values) == 0 {
		return math.NaN()
	}
	return values[len(values)-1]
}

func rolling(values []float64, window int, fn func([]float64) float64) []float64 {
	out := make([]float64, len(values))
	if window < 1 {
		window = 1
	}
	for i := range values {
		if i < window-1 {
			out[i] = math.NaN()
			continue
		}
		out[i] = fn(values[i-window+1 : i+1])
	}
	return out
}

// CorrelationMatrix returns Pearson correlations of daily returns between
// symbols, using only dates present in every series
func CorrelationMatrix(series map[string]models.Series) ([]string, [][]float64, error) {
	names := make([]string, 0, len(series))
	for name := range series {
		names = append(names, name)
	}
	sort.Strings(names)
	if len(names) < 2 {
		return nil, nil, errors.New("correlation needs at least two series")
	}

	common := commonDates(series, names)
	if len(common) < 3 {
		return nil, nil, errors.Wrap(ErrNoData, "fewer than three shared sessions")
	}

	returns := make([][]float64, len(names))
	for i, name := range names {
		byDate := make(map[time.Time]float64, len(series[name]))
		for _, bar := range series[name] {
			byDate[bar.Date] = bar.Close
		}
		aligned := make([]float64, len(common))
		for j, d := range common {
			aligned[j] = byDate[d]
		}
		returns[i] = Returns(aligned)
	}

	matrix := make([][]float64, len(names))
	for i := range names {
		matrix[i] = make([]float64, len(names))
		for j := range names {
			if i == j {
				matrix[i][j] = 1
				continue
			}
			matrix[i][j] = stat.Correlation(returns[i], returns[j], nil)
		}
	}
	return names, matrix, nil
}

func commonDates(series map[string]models.Series, names []string) []time.Time {
	counts := make(map[time.Time]int)
	for _, name := range names {
		for _, bar := range series[name] {
			counts[bar.Date]++
		}
	}

	var out []time.Time
	for d, n := range counts {
		if n == len(names) {
			out = append(out, d)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Before(out[j]) })
	return out
}

func dropNaN(values []float64) []float64 {
	out := make([]float64, 0, len(values))
	for _, v := range values {
		if !math.IsNaN(v) {
			out = append(out, v)
		}
	}
	return out
}

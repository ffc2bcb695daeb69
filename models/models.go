package models

import (
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
)

// ErrInvalidSymbol is returned for text that cannot be a ticker
var ErrInvalidSymbol = errors.New("invalid symbol")

// symbolPattern accepts tickers such as aapl, brk-b, bmw.de, ^gspc and eurusd=x
var symbolPattern = regexp.MustCompile(`^\^?[a-z0-9][a-z0-9.=\-]{0,15}$`)

// Bar represents a single daily price bar
type Bar struct {
	Date     time.Time `json:"date"`
	Open     float64   `json:"open"`
	High     float64   `json:"high"`
	Low      float64   `json:"low"`
	Close    float64   `json:"close"`
	AdjClose float64   `json:"adj_close"`
	Volume   int64     `json:"volume"`
}

// Series is a list of bars ordered oldest first
type Series []Bar

// SymbolInfo is one row of the symbol registry
type SymbolInfo struct {
	Symbol string `json:"symbol"`
	About  string `json:"about"`
}

// NormalizeSymbol returns the canonical (lower-case, trimmed) form of a ticker
func NormalizeSymbol(symbol string) string {
	return strings.ToLower(strings.TrimSpace(symbol))
}

// ParseSymbol normalizes a ticker and rejects anything that is not one.
// Symbols name cache files, so path separators never get through.
func ParseSymbol(symbol string) (string, error) {
	normalized := NormalizeSymbol(symbol)
	if !symbolPattern.MatchString(normalized) {
		return "", errors.Wrapf(ErrInvalidSymbol, "%q", symbol)
	}
	return normalized, nil
}

// Sort orders bars by date, oldest first
func (s Series) Sort() {
	sort.SliceStable(s, func(i, j int) bool {
		return s[i].Date.Before(s[j].Date)
	})
}

// Dedupe returns a sorted copy with one bar per date. When a date appears
// more than once the later entry wins.
func (s Series) Dedupe() Series {
	if len(s) == 0 {
		return Series{}
	}

	sorted := make(Series, len(s))
	copy(sorted, s)
	sorted.Sort()

	out := make(Series, 0, len(sorted))
	for _, bar := range sorted {
		if n := len(out); n > 0 && out[n-1].Date.Equal(bar.Date) {
			out[n-1] = bar
			continue
		}
		out = append(out, bar)
	}
	return out
}

// Merge combines two series. Bars from other replace bars of s on the same date.
func (s Series) Merge(other Series) Series {
	combined := make(Series, 0, len(s)+len(other))
	combined = append(combined, s...)
	combined = append(combined, other...)
	return combined.Dedupe()
}

// Closes extracts the close column
func (s Series) Closes() []float64 {
	out := make([]float64, len(s))
	for i, bar := range s {
		out[i] = bar.Close
	}
	return out
}

// AdjCloses extracts the adjusted close column
func (s Series) AdjCloses() []float64 {
	out := make([]float64, len(s))
	for i, bar := range s {
		out[i] = bar.AdjClose
	}
	return out
}

// Volumes extracts volume as float64 for statistics
func (s Series) Volumes() []float64 {
	out := make([]float64, len(s))
	for i, bar := range s {
		out[i] = float64(bar.Volume)
	}
	return out
}

// Column extracts a named column: Open, High, Low, Close, Adj Close or Volume
func (s Series) Column(name string) []float64 {
	switch name {
	case ColumnVolume:
		return s.Volumes()
	case ColumnAdjClose:
		return s.AdjCloses()
	}

	out := make([]float64, len(s))
	for i, bar := range s {
		switch name {
		case ColumnOpen:
			out[i] = bar.Open
		case ColumnHigh:
			out[i] = bar.High
		case ColumnLow:
			out[i] = bar.Low
		default:
			out[i] = bar.Close
		}
	}
	return out
}

// Dates extracts the date column
func (s Series) Dates() []time.Time {
	out := make([]time.Time, len(s))
	for i, bar := range s {
		out[i] = bar.Date
	}
	return out
}

// LastDate returns the most recent date, or the zero time for an empty series
func (s Series) LastDate() time.Time {
	if len(s) == 0 {
		return time.Time{}
	}
	return s[len(s)-1].Date
}

// FirstDate returns the oldest date, or the zero time for an empty series
func (s Series) FirstDate() time.Time {
	if len(s) == 0 {
		return time.Time{}
	}
	return s[0].Date
}

// Between returns bars with from <= date <= to
func (s Series) Between(from, to time.Time) Series {
	out := Series{}
	for _, bar := range s {
		if bar.Date.Before(from) || bar.Date.After(to) {
			continue
		}
		out = append(out, bar)
	}
	return out
}

// Column names used by the CSV cache and the EDA summary
const (
	ColumnDate     = "Date"
	ColumnOpen     = "Open"
	ColumnHigh     = "High"
	ColumnLow      = "Low"
	ColumnClose    = "Close"
	ColumnAdjClose = "Adj Close"
	ColumnVolume   = "Volume"
)

// PriceColumns lists the numeric columns in file order
var PriceColumns = []string{ColumnOpen, ColumnHigh, ColumnLow, ColumnClose, ColumnAdjClose, ColumnVolume}

// Prediction is one out-of-sample forecast of a session's close
type Prediction struct {
	Date      time.Time `json:"date"`
	Previous  float64   `json:"previous"` // close of the session before Date
	Actual    float64   `json:"actual"`
	Predicted float64   `json:"predicted"`
	Baseline  float64   `json:"baseline"`
}

// Error is the signed forecast error
func (p Prediction) Error() float64 {
	return p.Predicted - p.Actual
}

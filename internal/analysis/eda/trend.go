package eda

import (
	"math"

	"github.com/Alias1177/FinTrends/internal/analysis/technical"
	"github.com/Alias1177/FinTrends/models"
)

// Trend classifies the recent direction of a series
type Trend struct {
	Direction string  `json:"direction"` // UPTREND, DOWNTREND, SIDEWAYS, UNKNOWN
	Strength  float64 `json:"strength"`  // 0-1 score
	Slope     float64 `json:"slope"`     // SMA change per session, relative to price
	Momentum  float64 `json:"momentum"`  // weighted 5/10/20-session change
}

// Trend directions
const (
	TrendUp       = "UPTREND"
	TrendDown     = "DOWNTREND"
	TrendSideways = "SIDEWAYS"
	TrendUnknown  = "UNKNOWN"
)

const (
	trendSMAPeriod = 20
	trendLookback  = 5
)

// MinTrendBars is the shortest series whose SMA slope is defined
const MinTrendBars = trendSMAPeriod + trendLookback

// ClassifyTrend combines the 20-session SMA slope with a weighted momentum score
func ClassifyTrend(series models.Series) Trend {
	if len(series) < MinTrendBars {
		return Trend{Direction: TrendUnknown}
	}

	closes := series.Closes()
	current := closes[len(closes)-1]
	if current == 0 {
		return Trend{Direction: TrendUnknown}
	}

	sma := technical.SMA(closes, trendSMAPeriod)
	slope := (sma[len(sma)-1] - sma[len(sma)-1-trendLookback]) / float64(trendLookback) / current

	change := func(n int) float64 {
		prev := closes[len(closes)-1-n]
		if prev == 0 {
			return 0
		}
		return (current - prev) / prev
	}

	// Weight shorter term changes more heavily
	momentum := change(5)*0.5 + change(10)*0.3 + change(20)*0.2

	trend := Trend{
		Direction: TrendSideways,
		Slope:     slope,
		Momentum:  momentum,
		Strength:  math.Min(math.Abs(momentum)*10, 1.0),
	}

	// 0.1% of price per session is the minimum drift to call a trend
	const minSlope = 0.001
	switch {
	case slope > minSlope && momentum > 0:
		trend.Direction = TrendUp
	case slope < -minSlope && momentum < 0:
		trend.Direction = TrendDown
	}
	return trend
}

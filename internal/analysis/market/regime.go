// Package market classifies the state of a price series and flags sessions
// that stand out from their recent history.
package market

import (
	"math"

	"github.com/Alias1177/FinTrends/internal/analysis/technical"
	"github.com/Alias1177/FinTrends/models"
)

// Regime types
const (
	RegimeUnknown  = "UNKNOWN"
	RegimeTrending = "TRENDING"
	RegimeRanging  = "RANGING"
	RegimeChoppy   = "CHOPPY"
	RegimeVolatile = "VOLATILE"
)

// Directions
const (
	DirectionBullish = "BULLISH"
	DirectionBearish = "BEARISH"
	DirectionNeutral = "NEUTRAL"
)

// Regime describes the recent behaviour of a series
type Regime struct {
	Type       string  `json:"type"`
	Direction  string  `json:"direction"`
	Strength   float64 `json:"strength"` // 0..1
	Momentum   float64 `json:"momentum"` // 0..1
	Volatility string  `json:"volatility"`
	Structure  string  `json:"structure"`
}

func (r Regime) String() string {
	if r.Structure == "" {
		return r.Type + " " + r.Direction
	}
	return r.Type + " " + r.Direction + " (" + r.Structure + ")"
}

// ClassifyRegime labels the last sessions of series from ADX, ATR and
// weighted returns over 5, 10 and 20 sessions
func ClassifyRegime(series models.Series) Regime {
	regime := Regime{
		Type:       RegimeUnknown,
		Direction:  DirectionNeutral,
		Volatility: technical.VolatilityNormal,
	}
	if len(series) < 21 {
		return regime
	}

	adx, plusDI, minusDI := technical.ADX(series, 14)
	atr10 := technical.ATR(series, 10)
	volatilityRatio := technical.VolatilityRatio(series, 10, 30)
	regime.Volatility = technical.VolatilityLevel(volatilityRatio)

	current := series[len(series)-1].Close
	change := func(back int) float64 {
		base := series[len(series)-1-back].Close
		if base == 0 {
			return 0
		}
		return (current - base) / base
	}
	momentum := change(5)*0.5 + change(10)*0.3 + change(20)*0.2
	regime.Momentum = math.Min(math.Abs(momentum)*10, 1)
	switch {
	case momentum > 0:
		regime.Direction = DirectionBullish
	case momentum < 0:
		regime.Direction = DirectionBearish
	}

	trendStructure := "TRENDING_DOWN"
	if plusDI > minusDI {
		trendStructure = "TRENDING_UP"
	}

	if adx > 25 {
		regime.Type = RegimeTrending
		regime.Structure = trendStructure
		regime.Strength = math.Min(adx/50, 1)
		return regime
	}

	window := series[len(series)-20:]
	highest, lowest := window[0].High, window[0].Low
	for _, bar := range window[1:] {
		highest = math.Max(highest, bar.High)
		lowest = math.Min(lowest, bar.Low)
	}
	if atr10 > 0 && (highest-lowest)/atr10 < 5 {
		regime.Type = RegimeRanging
		regime.Structure = "RANGE_BOUND"
		regime.Strength = math.Max(0, math.Min((30-adx)/30, 1))
		return regime
	}

	var changes int
	up := window[0].Close > series[len(series)-21].Close
	for i := 1; i < len(window); i++ {
		if next := window[i].Close > window[i-1].Close; next != up {
			changes++
			up = next
		}
	}

	switch {
	case changes > 8:
		regime.Type = RegimeChoppy
		regime.Strength = math.Min(float64(changes)/15, 1)
	case volatilityRatio > 1.8:
		regime.Type = RegimeVolatile
		regime.Strength = math.Min(volatilityRatio/3, 1)
		if momentum > 0.02 {
			regime.Structure = "BREAKOUT"
		} else if momentum < -0.02 {
			regime.Structure = "BREAKDOWN"
		}
	default:
		regime.Type = RegimeTrending
		regime.Structure = trendStructure
		regime.Strength = math.Min(adx/30, 0.7)
	}
	return regime
}

package technical

import (
	"math"
	"sort"

	"github.com/Alias1177/FinTrends/models"
)

// Volatility regimes
const (
	VolatilityHigh   = "HIGH"
	VolatilityNormal = "NORMAL"
	VolatilityLow    = "LOW"
)

// LevelTolerance is the relative distance under which two price levels merge
const LevelTolerance = 0.005

// MaxLevels caps how many support and resistance levels are reported
const MaxLevels = 3

// VolatilityRatio divides short-window ATR by long-window ATR. Returns 1 when
// the series is too short or the long ATR is zero.
func VolatilityRatio(series models.Series, shortPeriod, longPeriod int) float64 {
	if len(series) < longPeriod+1 {
		return 1
	}
	atrLong := ATR(series, longPeriod)
	if atrLong == 0 {
		return 1
	}
	return ATR(series, shortPeriod) / atrLong
}

// VolatilityLevel labels a volatility ratio
func VolatilityLevel(ratio float64) string {
	switch {
	case ratio > 1.5:
		return VolatilityHigh
	case ratio < 0.7:
		return VolatilityLow
	}
	return VolatilityNormal
}

type priceLevel struct {
	price    float64
	strength int
}

// SupportResistance finds swing lows and highs (extremes among two bars on
// each side), clusters them within LevelTolerance of the latest close and
// returns the strongest levels below and above the latest close, nearest first
func SupportResistance(series models.Series) (support, resistance []float64) {
	if len(series) < 20 {
		return nil, nil
	}

	current := series[len(series)-1].Close
	step := current * LevelTolerance
	if step <= 0 {
		return nil, nil
	}

	touches := make(map[float64]int)
	for i := 2; i < len(series)-2; i++ {
		low, high := series[i].Low, series[i].High
		if low < series[i-1].Low && low < series[i-2].Low && low < series[i+1].Low && low < series[i+2].Low {
			touches[math.Round(low/step)*step]++
		}
		if high > series[i-1].High && high > series[i-2].High && high > series[i+1].High && high > series[i+2].High {
			touches[math.Round(high/step)*step]++
		}
	}

	// recent closes near a level strengthen it
	for _, bar := range series[len(series)-10:] {
		for level := range touches {
			if math.Abs(bar.Close-level) < step {
				touches[level]++
			}
		}
	}

	levels := make([]priceLevel, 0, len(touches))
	for price, strength := range touches {
		levels = append(levels, priceLevel{price: price, strength: strength})
	}
	sort.Slice(levels, func(i, j int) bool {
		if levels[i].strength != levels[j].strength {
			return levels[i].strength > levels[j].strength
		}
		return math.Abs(levels[i].price-current) < math.Abs(levels[j].price-current)
	})

	for _, level := range levels {
		switch {
		case level.price < current && len(support) < MaxLevels:
			support = append(support, level.price)
		case level.price > current && len(resistance) < MaxLevels:
			resistance = append(resistance, level.price)
		}
	}

	sort.Sort(sort.Reverse(sort.Float64Slice(support)))
	sort.Float64s(resistance)
	return support, resistance
}

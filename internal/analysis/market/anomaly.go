package market

import (
	"fmt"
	"math"
	"time"

	"github.com/Alias1177/FinTrends/internal/analysis/technical"
	"github.com/Alias1177/FinTrends/models"
)

// Anomaly types
const (
	AnomalyPriceSpike  = "PRICE_SPIKE"
	AnomalyVolumeSpike = "VOLUME_SPIKE"
	AnomalyGap         = "GAP"
	AnomalyVolatility  = "VOLATILITY_BREAKOUT"
)

// MinAnomalyHistory is how many prior sessions a bar needs before it is checked
const MinAnomalyHistory = 20

// Anomaly is a session whose move stands out from its recent history
type Anomaly struct {
	Date    time.Time `json:"date"`
	Type    string    `json:"type"`
	Score   float64   `json:"score"` // 0..1
	Details string    `json:"details"`
}

// Detect checks the latest bar of series against the sessions before it
func Detect(series models.Series) (Anomaly, bool) {
	if len(series) <= MinAnomalyHistory {
		return Anomaly{}, false
	}

	current := series[len(series)-1]
	prev := series[len(series)-2]
	history := series[:len(series)-1]

	atr10 := technical.ATR(history, 10)
	atr50 := technical.ATR(history, min(50, len(history)-1))
	if atr10 == 0 {
		return Anomaly{}, false
	}

	var a Anomaly
	found := false

	if move := math.Abs(current.Close-prev.Close) / atr10; move > 3 {
		found = true
		a.Type = AnomalyPriceSpike
		a.Score = math.Min(move/6, 1)
		a.Details = fmt.Sprintf("close moved %.1f times the average range", move)
	}

	if current.Volume > 0 {
		avg := technical.AverageVolume(history, 10)
		if avg > 0 {
			if ratio := float64(current.Volume) / avg; ratio > 3 {
				if found {
					a.Score = math.Min(a.Score+0.2, 1)
					a.Type += "_WITH_VOLUME_SPIKE"
				} else {
					found = true
					a.Type = AnomalyVolumeSpike
					a.Score = math.Min(ratio/5, 1)
					a.Details = fmt.Sprintf("volume %.1f times the 10-session average", ratio)
				}
			}
		}
	}

	var gap float64
	switch {
	case current.Low > prev.Close:
		gap = current.Low - prev.Close
	case current.High < prev.Close:
		gap = prev.Close - current.High
	}
	if size := gap / atr10; size > 1 {
		if found {
			a.Score = math.Min(a.Score+0.15, 1)
			a.Type += "_WITH_GAP"
		} else {
			found = true
			a.Type = AnomalyGap
			a.Score = math.Min(size/2, 1)
			a.Details = fmt.Sprintf("price gapped %.1f times the average range", size)
		}
	}

	if atr50 > 0 {
		recent := technical.ATR(series, 5)
		if ratio := recent / atr50; ratio > 2.5 && !found {
			found = true
			a.Type = AnomalyVolatility
			a.Score = math.Min(ratio/4, 1)
			a.Details = fmt.Sprintf("recent volatility %.1f times the baseline", ratio)
		}
	}

	if !found {
		return Anomaly{}, false
	}
	a.Date = current.Date
	return a, true
}

// anomalyWindow bounds how much history Detect sees per session
const anomalyWindow = 60

// DetectAnomalies runs Detect on every session that has enough history and
// returns the hits oldest first
func DetectAnomalies(series models.Series) []Anomaly {
	var out []Anomaly
	for end := MinAnomalyHistory + 1; end <= len(series); end++ {
		if a, ok := Detect(series[max(0, end-anomalyWindow):end]); ok {
			out = append(out, a)
		}
	}
	return out
}

// Recent keeps the anomalies dated on or after since
func Recent(anomalies []Anomaly, since time.Time) []Anomaly {
	var out []Anomaly
	for _, a := range anomalies {
		if !a.Date.Before(since) {
			out = append(out, a)
		}
	}
	return out
}

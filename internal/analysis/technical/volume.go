package technical

import (
	"github.com/Alias1177/FinTrends/models"
)

// Volume flow labels
const (
	FlowBullish  = "BULLISH"
	FlowBearish  = "BEARISH"
	FlowNeutral  = "NEUTRAL"
	FlowNoVolume = "NO_VOLUME_DATA"
)

// OBV returns On-Balance Volume accumulated over the whole series
func OBV(series models.Series) float64 {
	if len(series) < 2 || series[len(series)-1].Volume == 0 {
		return 0
	}

	obv := float64(series[0].Volume)
	for i := 1; i < len(series); i++ {
		switch {
		case series[i].Close > series[i-1].Close:
			obv += float64(series[i].Volume)
		case series[i].Close < series[i-1].Close:
			obv -= float64(series[i].Volume)
		}
	}
	return obv
}

// AverageVolume is the mean volume of the last period sessions
func AverageVolume(series models.Series, period int) float64 {
	if period < 1 || len(series) < period {
		return 0
	}

	var total int64
	for _, bar := range series[len(series)-period:] {
		total += bar.Volume
	}
	return float64(total) / float64(period)
}

// VolumeChange is the percent change between the latest volume and the one
// period sessions earlier. Zero when either end has no volume.
func VolumeChange(series models.Series, period int) float64 {
	if period < 1 || len(series) < period+1 {
		return 0
	}
	first := float64(series[len(series)-period-1].Volume)
	last := float64(series[len(series)-1].Volume)
	if first == 0 || last == 0 {
		return 0
	}
	return (last - first) / first * 100
}

// VolumeFlow classifies the last window sessions by how much volume traded on
// up days (close above open) versus down days
func VolumeFlow(series models.Series, window int) (string, float64) {
	if window < 1 || len(series) < window {
		return FlowNoVolume, 0
	}

	var up, down int64
	for _, bar := range series[len(series)-window:] {
		if bar.Close > bar.Open {
			up += bar.Volume
		} else {
			down += bar.Volume
		}
	}
	if up+down == 0 {
		return FlowNoVolume, 0
	}

	ratio := float64(up) / float64(up+down)
	switch {
	case ratio > 0.65:
		return FlowBullish, ratio
	case ratio < 0.35:
		return FlowBearish, ratio
	}
	return FlowNeutral, ratio
}

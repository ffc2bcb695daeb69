package technical

import (
	"math"

	"github.com/Alias1177/FinTrends/models"
)

// Snapshot holds the latest value of each indicator
type Snapshot struct {
	SMA        float64 `json:"sma"`
	EMA        float64 `json:"ema"`
	RSI        float64 `json:"rsi"`
	MACD       float64 `json:"macd"`
	MACDSignal float64 `json:"macd_signal"`
	MACDHist   float64 `json:"macd_hist"`
	BBUpper    float64 `json:"bb_upper"`
	BBMiddle   float64 `json:"bb_middle"`
	BBLower    float64 `json:"bb_lower"`
	ATR        float64 `json:"atr"`
	Momentum   float64 `json:"momentum"` // close minus close 10 sessions ago

	StochK          float64   `json:"stoch_k"`
	StochD          float64   `json:"stoch_d"`
	ADX             float64   `json:"adx"`
	PlusDI          float64   `json:"plus_di"`
	MinusDI         float64   `json:"minus_di"`
	OBV             float64   `json:"obv"`
	AverageVolume   float64   `json:"average_volume"`
	VolumeChange    float64   `json:"volume_change"`
	VolumeFlow      string    `json:"volume_flow"`
	VolatilityRatio float64   `json:"volatility_ratio"`
	Volatility      string    `json:"volatility"`
	Support         []float64 `json:"support,omitempty"`
	Resistance      []float64 `json:"resistance,omitempty"`
}

// Periods configures indicator windows
type Periods struct {
	SMA, EMA, RSI, BB, ATR int
	BBStdDev               float64
	MACDFast, MACDSlow     int
	MACDSignal             int
	StochK, StochD         int
	ADX                    int
	Volume                 int
}

// DefaultPeriods are the classic daily-chart settings
func DefaultPeriods() Periods {
	return Periods{SMA: 20, EMA: 12, RSI: 14, BB: 20, ATR: 14, BBStdDev: 2, MACDFast: 12, MACDSlow: 26, MACDSignal: 9,
		StochK: 14, StochD: 3, ADX: 14, Volume: 20}
}

// CalculateAll computes every indicator on the close series
func CalculateAll(series models.Series, p Periods) *Snapshot {
	if len(series) == 0 {
		return &Snapshot{RSI: 50, StochK: 50, StochD: 50, VolatilityRatio: 1, Volatility: VolatilityNormal, VolumeFlow: FlowNoVolume}
	}
	closes := series.Closes()

	snap := &Snapshot{
		SMA:      lastValid(SMA(closes, p.SMA), closes),
		EMA:      lastValid(EMA(closes, p.EMA), closes),
		RSI:      RSI(closes, p.RSI),
		ATR:      ATR(series, p.ATR),
		Momentum: Momentum(closes, 10),
	}
	snap.MACD, snap.MACDSignal, snap.MACDHist = MACD(closes, p.MACDFast, p.MACDSlow, p.MACDSignal)
	snap.BBUpper, snap.BBMiddle, snap.BBLower = BollingerBands(closes, p.BB, p.BBStdDev)
	snap.StochK, snap.StochD = Stochastic(series, p.StochK, p.StochD)
	snap.ADX, snap.PlusDI, snap.MinusDI = ADX(series, p.ADX)

	snap.OBV = OBV(series)
	snap.AverageVolume = AverageVolume(series, p.Volume)
	snap.VolumeChange = VolumeChange(series, 5)
	snap.VolumeFlow, _ = VolumeFlow(series, 5)

	snap.VolatilityRatio = VolatilityRatio(series, 5, 20)
	snap.Volatility = VolatilityLevel(snap.VolatilityRatio)
	snap.Support, snap.Resistance = SupportResistance(series)
	return snap
}

// SMA returns the simple moving average aligned with values; the first
// period-1 entries are NaN
func SMA(values []float64, period int) []float64 {
	out := make([]float64, len(values))
	if period < 1 {
		period = 1
	}
	var sum float64
	for i, v := range values {
		sum += v
		if i >= period {
			sum -= values[i-period]
		}
		if i < period-1 {
			out[i] = math.NaN()
			continue
		}
		out[i] = sum / float64(period)
	}
	return out
}

// EMA returns the exponential moving average seeded with the SMA of the first period values
func EMA(values []float64, period int) []float64 {
	out := make([]float64, len(values))
	if period < 1 {
		period = 1
	}
	for i := range out {
		out[i] = math.NaN()
	}
	if len(values) < period {
		return out
	}

	var sum float64
	for i := 0; i < period; i++ {
		sum += values[i]
	}
	ema := sum / float64(period)
	out[period-1] = ema

	// Multiplier for weighting the EMA
	multiplier := 2.0 / float64(period+1)
	for i := period; i < len(values); i++ {
		ema = (values[i]-ema)*multiplier + ema
		out[i] = ema
	}
	return out
}

// RSI computes Wilder's relative strength index of the last value
func RSI(closes []float64, period int) float64 {
	if period < 1 || len(closes) < period+1 {
		return 50.0 // Default value if not enough data
	}

	var gains, losses float64
	for i := 1; i <= period; i++ {
		change := closes[i] - closes[i-1]
		if change > 0 {
			gains += change
		} else {
			losses -= change
		}
	}

	avgGain := gains / float64(period)
	avgLoss := losses / float64(period)

	for i := period + 1; i < len(closes); i++ {
		change := closes[i] - closes[i-1]
		gain, loss := 0.0, 0.0
		if change > 0 {
			gain = change
		} else {
			loss = -change
		}
		avgGain = (avgGain*float64(period-1) + gain) / float64(period)
		avgLoss = (avgLoss*float64(period-1) + loss) / float64(period)
	}

	if avgLoss == 0 {
		if avgGain == 0 {
			return 50.0
		}
		return 100.0
	}

	rs := avgGain / avgLoss
	return 100.0 - (100.0 / (1.0 + rs))
}

// RSISeries returns RSI computed on each prefix; entries without enough history are NaN
func RSISeries(closes []float64, period int) []float64 {
	out := make([]float64, len(closes))
	for i := range closes {
		if i < period {
			out[i] = math.NaN()
			continue
		}
		out[i] = RSI(closes[:i+1], period)
	}
	return out
}

// MACD returns the MACD line, signal line and histogram of the last value
func MACD(closes []float64, fastPeriod, slowPeriod, signalPeriod int) (float64, float64, float64) {
	// Cannot calculate MACD with insufficient data
	if len(closes) < slowPeriod+signalPeriod {
		return 0, 0, 0
	}

	fast := EMA(closes, fastPeriod)
	slow := EMA(closes, slowPeriod)

	macdHistory := make([]float64, 0, len(closes)-slowPeriod+1)
	for i := slowPeriod - 1; i < len(closes); i++ {
		macdHistory = append(macdHistory, fast[i]-slow[i])
	}

	signal := EMA(macdHistory, signalPeriod)
	macdLine := macdHistory[len(macdHistory)-1]
	signalLine := signal[len(signal)-1]

	return macdLine, signalLine, macdLine - signalLine
}

// BollingerBands returns upper, middle and lower bands of the last window
func BollingerBands(closes []float64, period int, stdDev float64) (float64, float64, float64) {
	if len(closes) == 0 {
		return 0, 0, 0
	}
	if len(closes) < period {
		last := closes[len(closes)-1]
		return last, last, last // Return last close if not enough data
	}

	window := closes[len(closes)-period:]
	var sum float64
	for _, v := range window {
		sum += v
	}
	middle := sum / float64(period)

	var variance float64
	for _, v := range window {
		variance += (v - middle) * (v - middle)
	}
	sd := math.Sqrt(variance / float64(period))

	return middle + sd*stdDev, middle, middle - sd*stdDev
}

// BollingerSeries returns band series aligned with closes; entries without a full window are NaN
func BollingerSeries(closes []float64, period int, stdDev float64) (upper, middle, lower []float64) {
	upper = make([]float64, len(closes))
	middle = make([]float64, len(closes))
	lower = make([]float64, len(closes))
	for i := range closes {
		if i < period-1 {
			upper[i], middle[i], lower[i] = math.NaN(), math.NaN(), math.NaN()
			continue
		}
		upper[i], middle[i], lower[i] = BollingerBands(closes[i-period+1:i+1], period, stdDev)
	}
	return upper, middle, lower
}

// ATR calculates Average True Range
func ATR(series models.Series, period int) float64 {
	if period < 1 || len(series) < 2 {
		return 0
	}

	trueRanges := make([]float64, 0, len(series)-1)
	for i := 1; i < len(series); i++ {
		highLow := series[i].High - series[i].Low
		highPrevClose := math.Abs(series[i].High - series[i-1].Close)
		lowPrevClose := math.Abs(series[i].Low - series[i-1].Close)
		trueRanges = append(trueRanges, math.Max(highLow, math.Max(highPrevClose, lowPrevClose)))
	}

	// If we don't have enough data for the period, use what we have
	periodToUse := period
	if len(trueRanges) < period {
		periodToUse = len(trueRanges)
	}

	var sum float64
	for _, tr := range trueRanges[len(trueRanges)-periodToUse:] {
		sum += tr
	}
	return sum / float64(periodToUse)
}

// Momentum returns the last close minus the close n sessions earlier
func Momentum(closes []float64, n int) float64 {
	if n < 1 || len(closes) <= n {
		return 0
	}
	return closes[len(closes)-1] - closes[len(closes)-1-n]
}

func lastValid(values, fallback []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	if v := values[len(values)-1]; !math.IsNaN(v) {
		return v
	}
	return fallback[len(fallback)-1]
}

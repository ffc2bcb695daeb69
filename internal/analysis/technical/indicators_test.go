package technical

import (
	"math"
	"testing"
	"time"

	"github.com/Alias1177/FinTrends/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func generateTestSeries(n int, generator func(int) models.Bar) models.Series {
	series := make(models.Series, n)
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < n; i++ {
		series[i] = generator(i)
		series[i].Date = start.AddDate(0, 0, i)
	}
	return series
}

func TestSMA(t *testing.T) {
	out := SMA([]float64{1, 2, 3, 4, 5}, 3)
	require.Len(t, out, 5)
	assert.True(t, math.IsNaN(out[0]))
	assert.True(t, math.IsNaN(out[1]))
	assert.InDelta(t, 2.0, out[2], 1e-12)
	assert.InDelta(t, 3.0, out[3], 1e-12)
	assert.InDelta(t, 4.0, out[4], 1e-12)
}

func TestEMA(t *testing.T) {
	out := EMA([]float64{2, 4, 6, 8}, 2)
	assert.True(t, math.IsNaN(out[0]))
	assert.InDelta(t, 3.0, out[1], 1e-12)
	// multiplier 2/3: (6-3)*2/3+3 = 5, (8-5)*2/3+5 = 7
	assert.InDelta(t, 5.0, out[2], 1e-12)
	assert.InDelta(t, 7.0, out[3], 1e-12)
}

func TestRSI(t *testing.T) {
	tests := []struct {
		name   string
		closes []float64
		want   float64
	}{
		{name: "not enough data", closes: []float64{1, 2}, want: 50},
		{name: "only gains", closes: []float64{1, 2, 3, 4, 5, 6}, want: 100},
		{name: "flat", closes: []float64{5, 5, 5, 5, 5, 5}, want: 50},
		{name: "balanced", closes: []float64{10, 11, 10, 11, 10}, want: 50},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, RSI(tt.closes, 4), 1e-9)
		})
	}
}

func TestBollingerBands(t *testing.T) {
	upper, middle, lower := BollingerBands([]float64{2, 4, 4, 4, 5, 5, 7, 9}, 8, 2)
	// population std of the window is 2
	assert.InDelta(t, 5.0, middle, 1e-12)
	assert.InDelta(t, 9.0, upper, 1e-12)
	assert.InDelta(t, 1.0, lower, 1e-12)

	u, m, l := BollingerBands([]float64{3}, 20, 2)
	assert.Equal(t, []float64{3, 3, 3}, []float64{u, m, l})
}

func TestATRAndMomentum(t *testing.T) {
	series := generateTestSeries(30, func(i int) models.Bar {
		c := 100 + float64(i)
		return models.Bar{Open: c, High: c + 2, Low: c - 2, Close: c}
	})

	// true range is max(4, |c+2-(c-1)|, |c-2-(c-1)|) = 4
	assert.InDelta(t, 4.0, ATR(series, 14), 1e-12)
	assert.InDelta(t, 10.0, Momentum(series.Closes(), 10), 1e-12)
	assert.Zero(t, ATR(series[:1], 14))
}

func TestMACDTrend(t *testing.T) {
	rising := generateTestSeries(60, func(i int) models.Bar {
		return models.Bar{Close: 100 + float64(i)*float64(i)*0.05}
	})

	macd, signal, hist := MACD(rising.Closes(), 12, 26, 9)
	assert.Greater(t, macd, 0.0)
	assert.Greater(t, macd, signal)
	assert.InDelta(t, macd-signal, hist, 1e-12)

	m, s, h := MACD([]float64{1, 2, 3}, 12, 26, 9)
	assert.Zero(t, m+s+h)
}

func TestCalculateAll(t *testing.T) {
	series := generateTestSeries(40, func(i int) models.Bar {
		c := 50 + float64(i%5)
		return models.Bar{Open: c, High: c + 1, Low: c - 1, Close: c}
	})

	snap := CalculateAll(series, DefaultPeriods())
	assert.Greater(t, snap.BBUpper, snap.BBMiddle)
	assert.Less(t, snap.BBLower, snap.BBMiddle)
	assert.False(t, math.IsNaN(snap.SMA))
	assert.InDelta(t, 52.0, snap.SMA, 1e-9)

	assert.GreaterOrEqual(t, snap.StochK, 0.0)
	assert.LessOrEqual(t, snap.StochK, 100.0)
	assert.Equal(t, VolatilityNormal, snap.Volatility)
	assert.Equal(t, FlowNoVolume, snap.VolumeFlow)

	empty := CalculateAll(nil, DefaultPeriods())
	assert.Equal(t, 50.0, empty.RSI)
	assert.Equal(t, 1.0, empty.VolatilityRatio)
}

func TestStochastic(t *testing.T) {
	series := generateTestSeries(20, func(i int) models.Bar {
		c := 100 + float64(i)
		return models.Bar{High: c + 1, Low: c - 1, Close: c + 1}
	})

	// every close sits on the window high
	k, d := Stochastic(series, 14, 3)
	assert.InDelta(t, 100.0, k, 1e-9)
	assert.InDelta(t, 100.0, d, 1e-9)

	k, d = Stochastic(series[:5], 14, 3)
	assert.Equal(t, 50.0, k)
	assert.Equal(t, 50.0, d)

	flat := generateTestSeries(20, func(int) models.Bar {
		return models.Bar{High: 10, Low: 10, Close: 10}
	})
	k, _ = Stochastic(flat, 14, 3)
	assert.Equal(t, 50.0, k)
}

func TestADX(t *testing.T) {
	up := generateTestSeries(60, func(i int) models.Bar {
		c := 100 + 2*float64(i)
		return models.Bar{High: c + 1, Low: c - 1, Close: c}
	})

	adx, plusDI, minusDI := ADX(up, 14)
	assert.Greater(t, adx, 90.0)
	assert.Greater(t, plusDI, minusDI)
	assert.Zero(t, minusDI)

	adx, _, _ = ADX(up[:20], 14)
	assert.Zero(t, adx)
}

func TestVolumeIndicators(t *testing.T) {
	series := models.Series{
		{Open: 10, Close: 10, Volume: 100},
		{Open: 10, Close: 11, Volume: 200},
		{Open: 11, Close: 10, Volume: 50},
		{Open: 10, Close: 10, Volume: 80},
		{Open: 10, Close: 12, Volume: 400},
	}

	// 100 + 200 - 50 + 0 + 400
	assert.InDelta(t, 650.0, OBV(series), 1e-12)
	assert.InDelta(t, 110.0, AverageVolume(series[:4], 3), 1e-12)
	assert.Zero(t, AverageVolume(series, 10))
	assert.InDelta(t, 100.0, VolumeChange(series, 3), 1e-12)
	assert.Zero(t, VolumeChange(series, 10))

	flow, ratio := VolumeFlow(series, 5)
	assert.Equal(t, FlowBullish, flow)
	assert.InDelta(t, 600.0/830.0, ratio, 1e-12)

	noVolume := models.Series{{Close: 1}, {Close: 2}}
	assert.Zero(t, OBV(noVolume))
	flow, _ = VolumeFlow(noVolume, 2)
	assert.Equal(t, FlowNoVolume, flow)
}

func TestVolatilityRatio(t *testing.T) {
	calm := generateTestSeries(40, func(i int) models.Bar {
		c := 100.0
		spread := 1.0
		if i >= 35 {
			spread = 4
		}
		return models.Bar{High: c + spread, Low: c - spread, Close: c}
	})

	ratio := VolatilityRatio(calm, 5, 20)
	assert.Greater(t, ratio, 1.5)
	assert.Equal(t, VolatilityHigh, VolatilityLevel(ratio))
	assert.Equal(t, VolatilityLow, VolatilityLevel(0.5))
	assert.Equal(t, VolatilityNormal, VolatilityLevel(1))
	assert.Equal(t, 1.0, VolatilityRatio(calm[:10], 5, 20))
}

func TestSupportResistance(t *testing.T) {
	// oscillates between 90 and 110 with a period of 8 sessions
	series := generateTestSeries(60, func(i int) models.Bar {
		c := 100 + 10*math.Sin(float64(i)*math.Pi/4)
		return models.Bar{High: c + 0.5, Low: c - 0.5, Close: c}
	})
	series[len(series)-1].Close = 100

	support, resistance := SupportResistance(series)
	require.NotEmpty(t, support)
	require.NotEmpty(t, resistance)
	assert.InDelta(t, 89.5, support[0], 1)
	assert.InDelta(t, 110.5, resistance[0], 1)
	for _, s := range support {
		assert.Less(t, s, 100.0)
	}
	for _, r := range resistance {
		assert.Greater(t, r, 100.0)
	}

	support, resistance = SupportResistance(series[:10])
	assert.Nil(t, support)
	assert.Nil(t, resistance)
}

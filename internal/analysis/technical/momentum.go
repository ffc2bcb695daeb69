package technical

import (
	"math"

	"github.com/Alias1177/FinTrends/models"
)

// Stochastic returns %K of the latest session and %D, the mean %K of the last
// dPeriod sessions. Both are 50 when the window has no range or too few bars.
func Stochastic(series models.Series, kPeriod, dPeriod int) (float64, float64) {
	if kPeriod < 1 || len(series) < kPeriod {
		return 50, 50
	}
	if dPeriod < 1 {
		dPeriod = 1
	}

	k := stochasticAt(series, len(series)-1, kPeriod)

	count := min(dPeriod, len(series)-kPeriod+1)
	var sum float64
	for i := len(series) - count; i < len(series); i++ {
		sum += stochasticAt(series, i, kPeriod)
	}
	return k, sum / float64(count)
}

// stochasticAt computes %K for the window ending at index end
func stochasticAt(series models.Series, end, kPeriod int) float64 {
	window := series[end-kPeriod+1 : end+1]
	highest, lowest := window[0].High, window[0].Low
	for _, bar := range window[1:] {
		highest = math.Max(highest, bar.High)
		lowest = math.Min(lowest, bar.Low)
	}
	if highest-lowest <= 0 {
		return 50
	}
	return (series[end].Close - lowest) / (highest - lowest) * 100
}

// ADX returns the Average Directional Index with +DI and -DI using Wilder
// smoothing. Needs 2·period+1 bars, otherwise all three are zero.
func ADX(series models.Series, period int) (adx, plusDI, minusDI float64) {
	if period < 1 || len(series) < 2*period+1 {
		return 0, 0, 0
	}

	n := len(series) - 1
	tr := make([]float64, n)
	plusDM := make([]float64, n)
	minusDM := make([]float64, n)
	for i := 1; i < len(series); i++ {
		cur, prev := series[i], series[i-1]
		tr[i-1] = math.Max(cur.High-cur.Low, math.Max(math.Abs(cur.High-prev.Close), math.Abs(cur.Low-prev.Close)))

		up := cur.High - prev.High
		down := prev.Low - cur.Low
		if up > down && up > 0 {
			plusDM[i-1] = up
		}
		if down > up && down > 0 {
			minusDM[i-1] = down
		}
	}

	var trS, plusS, minusS float64
	for i := 0; i < period; i++ {
		trS += tr[i]
		plusS += plusDM[i]
		minusS += minusDM[i]
	}

	dx := func() float64 {
		if trS == 0 {
			plusDI, minusDI = 0, 0
			return 0
		}
		plusDI = 100 * plusS / trS
		minusDI = 100 * minusS / trS
		if plusDI+minusDI == 0 {
			return 0
		}
		return 100 * math.Abs(plusDI-minusDI) / (plusDI + minusDI)
	}

	dxs := []float64{dx()}
	for i := period; i < n; i++ {
		trS = trS - trS/float64(period) + tr[i]
		plusS = plusS - plusS/float64(period) + plusDM[i]
		minusS = minusS - minusS/float64(period) + minusDM[i]
		dxs = append(dxs, dx())
	}

	for _, v := range dxs[:period] {
		adx += v
	}
	adx /= float64(period)
	for _, v := range dxs[period:] {
		adx = (adx*float64(period-1) + v) / float64(period)
	}
	return adx, plusDI, minusDI
}

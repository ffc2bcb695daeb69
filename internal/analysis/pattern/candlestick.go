// Package pattern recognizes candlestick formations in the latest sessions.
package pattern

import (
	"math"

	"github.com/Alias1177/FinTrends/models"
)

// Pattern names
const (
	BullishEngulfing   = "BULLISH_ENGULFING"
	BearishEngulfing   = "BEARISH_ENGULFING"
	Hammer             = "HAMMER"
	ShootingStar       = "SHOOTING_STAR"
	ThreeWhiteSoldiers = "THREE_WHITE_SOLDIERS"
	ThreeBlackCrows    = "THREE_BLACK_CROWS"
	Doji               = "DOJI"
	MorningStar        = "MORNING_STAR"
	EveningStar        = "EVENING_STAR"
	DoubleTop          = "DOUBLE_TOP"
	DoubleBottom       = "DOUBLE_BOTTOM"
)

// Pattern is a formation ending on the latest session
type Pattern struct {
	Name     string  `json:"name"`
	Strength float64 `json:"strength"`
}

type candle struct {
	models.Bar
}

func (c candle) body() float64      { return math.Abs(c.Close - c.Open) }
func (c candle) bullish() bool      { return c.Close > c.Open }
func (c candle) upperWick() float64 { return c.High - math.Max(c.Open, c.Close) }
func (c candle) lowerWick() float64 { return math.Min(c.Open, c.Close) - c.Low }

// Identify looks for single, two and three bar formations on the last five
// sessions and double tops or bottoms on the whole series
func Identify(series models.Series) []Pattern {
	if len(series) < 5 {
		return nil
	}

	var c [5]candle
	var avgBody float64
	for i := range c {
		c[i] = candle{series[len(series)-5+i]}
		avgBody += c[i].body()
	}
	avgBody /= 5
	first, mid, last := c[2], c[3], c[4]

	var out []Pattern
	add := func(name string, strength float64) {
		out = append(out, Pattern{Name: name, Strength: strength})
	}

	if last.bullish() && !mid.bullish() && last.Open < mid.Close && last.Close > mid.Open && last.body() > mid.body()*1.2 {
		add(BullishEngulfing, ratio(last.body(), mid.body())-1)
	}
	if !last.bullish() && mid.bullish() && last.Open > mid.Close && last.Close < mid.Open && last.body() > mid.body()*1.2 {
		add(BearishEngulfing, ratio(last.body(), mid.body())-1)
	}

	if last.lowerWick() > last.body()*2 && last.upperWick() < last.body()*0.5 {
		add(Hammer, ratio(last.lowerWick(), last.body()))
	}
	if last.upperWick() > last.body()*2 && last.lowerWick() < last.body()*0.5 {
		add(ShootingStar, ratio(last.upperWick(), last.body()))
	}

	if first.bullish() && mid.bullish() && last.bullish() {
		add(ThreeWhiteSoldiers, consistency(first, mid, last))
	}
	if first.Close < first.Open && mid.Close < mid.Open && last.Close < last.Open {
		add(ThreeBlackCrows, consistency(first, mid, last))
	}

	if last.body() < avgBody*0.3 && (last.upperWick() > last.body() || last.lowerWick() > last.body()) {
		strength := 0.0
		if r := last.High - last.Low; r > 0 {
			strength = 1 - last.body()/r
		}
		add(Doji, strength)
	}

	starMiddle := 1 - ratio(mid.body(), (first.body()+last.body())/2)
	midpoint := first.Open + (first.Close-first.Open)/2
	if first.bullish() && first.body() > avgBody && mid.body() < avgBody*0.3 && mid.Open > first.Close &&
		!last.bullish() && last.body() > avgBody && last.Close < midpoint {
		add(EveningStar, starMiddle)
	}
	if !first.bullish() && first.body() > avgBody && mid.body() < avgBody*0.3 && mid.Open < first.Close &&
		last.bullish() && last.body() > avgBody && last.Close > midpoint {
		add(MorningStar, starMiddle)
	}

	return append(out, doubleTopBottom(series, avgBody)...)
}

// doubleTopBottom compares the last two swing highs (lows) and reports a
// pattern once the close breaks the extreme between them
func doubleTopBottom(series models.Series, avgBody float64) []Pattern {
	if len(series) < 10 {
		return nil
	}

	var peaks, troughs []int
	for i := 2; i < len(series)-2; i++ {
		h, l := series[i].High, series[i].Low
		if h > series[i-1].High && h > series[i-2].High && h > series[i+1].High && h > series[i+2].High {
			peaks = append(peaks, i)
		}
		if l < series[i-1].Low && l < series[i-2].Low && l < series[i+1].Low && l < series[i+2].Low {
			troughs = append(troughs, i)
		}
	}

	closeNow := series[len(series)-1].Close
	var out []Pattern
	if n := len(peaks); n >= 2 {
		prev, last := peaks[n-2], peaks[n-1]
		if math.Abs(series[last].High-series[prev].High) < avgBody*0.5 && last-prev >= 3 {
			valley := series[prev].High
			for _, bar := range series[prev+1 : last] {
				valley = math.Min(valley, bar.Low)
			}
			if closeNow < valley {
				out = append(out, Pattern{Name: DoubleTop, Strength: 0.5})
			}
		}
	}
	if n := len(troughs); n >= 2 {
		prev, last := troughs[n-2], troughs[n-1]
		if math.Abs(series[last].Low-series[prev].Low) < avgBody*0.5 && last-prev >= 3 {
			peak := series[prev].Low
			for _, bar := range series[prev+1 : last] {
				peak = math.Max(peak, bar.High)
			}
			if closeNow > peak {
				out = append(out, Pattern{Name: DoubleBottom, Strength: 0.5})
			}
		}
	}
	return out
}

func ratio(a, b float64) float64 {
	if b == 0 {
		return 0
	}
	return a / b
}

// consistency is 1 when three bodies are equal and falls as they diverge
func consistency(a, b, c candle) float64 {
	avg := (a.body() + b.body() + c.body()) / 3
	if avg == 0 {
		return 0
	}
	diff := math.Abs(a.body()-avg) + math.Abs(b.body()-avg) + math.Abs(c.body()-avg)
	return 1 - diff/(avg*3)
}

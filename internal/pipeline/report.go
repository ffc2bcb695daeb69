package pipeline

import (
	"fmt"
	"sort"
	"strings"

	"github.com/Alias1177/FinTrends/internal/analysis/eda"
	"github.com/Alias1177/FinTrends/internal/trading/backtest"
	"github.com/Alias1177/FinTrends/models"
)

const maxReportedAnomalies = 5

// FormatReport renders a human-readable report of one symbol
func FormatReport(res *Result) string {
	var b strings.Builder

	title := strings.ToUpper(res.Symbol)
	if res.About != "" {
		title += " - " + res.About
	}
	fmt.Fprintf(&b, "===== %s =====\n", title)

	if s := res.Summary; s != nil {
		last := res.Series[len(res.Series)-1]
		fmt.Fprintf(&b, "Period: %s to %s (%d sessions)\n",
			s.From.Format(models.DateLayout), s.To.Format(models.DateLayout), s.Sessions)
		fmt.Fprintf(&b, "Last close: %.2f (O: %.2f, H: %.2f, L: %.2f, Volume: %d)\n",
			last.Close, last.Open, last.High, last.Low, last.Volume)
		fmt.Fprintf(&b, "Total return: %.2f%% | Annualized volatility: %.2f%% | Max drawdown: %.2f%%\n",
			s.TotalReturn*100, s.AnnualizedVol*100, s.MaxDrawdown*100)
		fmt.Fprintf(&b, "Last %d sessions: volatility %.2f%% annualized | close %+.2f%% vs mean | log growth %.2f%%/yr\n",
			eda.RecentWindow, s.RecentVol*100, s.MeanDeviation*100, s.LogGrowth*100)
		fmt.Fprintf(&b, "Best day: %s %+.2f%% | Worst day: %s %+.2f%%\n",
			s.BestDay.Date.Format(models.DateLayout), s.BestDay.Return*100,
			s.WorstDay.Date.Format(models.DateLayout), s.WorstDay.Return*100)
		fmt.Fprintf(&b, "Trend: %s (strength %.2f)\n", s.Trend.Direction, s.Trend.Strength)

		if closeDesc, ok := s.Columns[models.ColumnClose]; ok {
			fmt.Fprintf(&b, "Close: mean %.2f, std %.2f, min %.2f, median %.2f, max %.2f\n",
				closeDesc.Mean, closeDesc.Std, closeDesc.Min, closeDesc.Median, closeDesc.Max)
		}
	}

	if ind := res.Indicators; ind != nil {
		fmt.Fprintf(&b, "\nKey Indicators:\n")
		fmt.Fprintf(&b, "SMA: %.2f | EMA: %.2f | RSI: %.2f | ATR: %.2f\n", ind.SMA, ind.EMA, ind.RSI, ind.ATR)
		fmt.Fprintf(&b, "MACD: %.4f, Signal: %.4f, Hist: %.4f\n", ind.MACD, ind.MACDSignal, ind.MACDHist)
		fmt.Fprintf(&b, "Bollinger Bands: Upper: %.2f, Middle: %.2f, Lower: %.2f\n", ind.BBUpper, ind.BBMiddle, ind.BBLower)
		fmt.Fprintf(&b, "Stochastic: %%K %.2f, %%D %.2f | ADX: %.2f (+DI %.2f, -DI %.2f)\n",
			ind.StochK, ind.StochD, ind.ADX, ind.PlusDI, ind.MinusDI)
		fmt.Fprintf(&b, "OBV: %.0f | Volume flow: %s | Volume change (5d): %.2f%%\n", ind.OBV, ind.VolumeFlow, ind.VolumeChange)
		fmt.Fprintf(&b, "Volatility: %s (ratio %.2f)\n", ind.Volatility, ind.VolatilityRatio)
		if len(ind.Support) > 0 {
			fmt.Fprintf(&b, "Support: %s\n", formatLevels(ind.Support))
		}
		if len(ind.Resistance) > 0 {
			fmt.Fprintf(&b, "Resistance: %s\n", formatLevels(ind.Resistance))
		}
	}

	if res.Regime.Type != "" {
		fmt.Fprintf(&b, "Market regime: %s, strength %.2f\n", res.Regime, res.Regime.Strength)
	}
	if len(res.Patterns) > 0 {
		b.WriteString("Candlestick patterns:")
		for _, p := range res.Patterns {
			fmt.Fprintf(&b, " %s (%.2f)", p.Name, p.Strength)
		}
		b.WriteString("\n")
	}
	if n := len(res.Anomalies); n > 0 {
		fmt.Fprintf(&b, "\nAnomalies: %d sessions flagged, latest:\n", n)
		for _, a := range res.Anomalies[max(0, n-maxReportedAnomalies):] {
			fmt.Fprintf(&b, "  %s %s (score %.2f): %s\n", a.Date.Format(models.DateLayout), a.Type, a.Score, a.Details)
		}
	}

	fmt.Fprintf(&b, "\nModel: %s", res.Model)
	if res.Fallback {
		b.WriteString(" (least squares was singular)")
	}
	fmt.Fprintf(&b, ", train %d rows, test %d rows\n", res.TrainRows, res.TestRows)
	fmt.Fprintf(&b, "%s\n%s\n", res.Metrics, res.Baseline)
	fmt.Fprintf(&b, "Directional accuracy: %.2f%%\n", res.DirectionalAccuracy*100)
	if res.BeatsBaseline() {
		b.WriteString("The model beats the persistence baseline on RMSE\n")
	} else {
		b.WriteString("The model does not beat the persistence baseline on RMSE\n")
	}

	if len(res.Coefficients) > 0 {
		names := make([]string, 0, len(res.Coefficients))
		for name := range res.Coefficients {
			names = append(names, name)
		}
		sort.Strings(names)
		b.WriteString("Standardized coefficients:")
		for _, name := range names {
			fmt.Fprintf(&b, " %s=%.4f", name, res.Coefficients[name])
		}
		b.WriteString("\n")
	}

	if !res.ForecastDate.IsZero() {
		fmt.Fprintf(&b, "\nForecast close for %s: %.2f\n", res.ForecastDate.Format(models.DateLayout), res.Forecast)
	}

	if res.Backtest != nil {
		b.WriteString(backtest.FormatResults(res.Backtest))
	}
	return b.String()
}

func formatLevels(levels []float64) string {
	parts := make([]string, len(levels))
	for i, level := range levels {
		parts[i] = fmt.Sprintf("%.2f", level)
	}
	return strings.Join(parts, ", ")
}

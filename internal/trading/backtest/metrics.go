package backtest

import (
	"math"

	"github.com/Alias1177/FinTrends/models"
	"gonum.org/v1/gonum/stat"
)

// CalculatePerformanceMetrics fills the strategy statistics from DetailedResults
func CalculatePerformanceMetrics(results *Results, initialValue float64) {
	if results == nil || len(results.DetailedResults) == 0 {
		return
	}

	calculateTradeStats(results)
	calculateEquityCurve(results, initialValue)
	calculateDrawdownMetrics(results)
	calculateSharpeRatio(results)
	calculateMonthlyStats(results)
}

func calculateTradeStats(results *Results) {
	results.TotalTrades, results.WinningTrades = 0, 0
	for _, trade := range results.DetailedResults {
		if !trade.Long {
			continue
		}
		results.TotalTrades++
		if trade.Return > 0 {
			results.WinningTrades++
		}
	}
	if results.TotalTrades > 0 {
		results.WinPercentage = float64(results.WinningTrades) / float64(results.TotalTrades) * 100
	}
}

// calculateEquityCurve compounds the daily strategy returns
func calculateEquityCurve(results *Results, initialValue float64) {
	equity := initialValue
	results.EquityCurve = []float64{equity}
	for _, trade := range results.DetailedResults {
		equity *= 1 + trade.Return
		results.EquityCurve = append(results.EquityCurve, equity)
	}
	if initialValue > 0 {
		results.TotalReturnPercent = (equity/initialValue - 1) * 100
	}
}

// calculateDrawdownMetrics computes maximum drawdown of the equity curve
func calculateDrawdownMetrics(results *Results) {
	maxDrawdown := 0.0
	peak := results.EquityCurve[0]

	for _, equity := range results.EquityCurve {
		if equity > peak {
			peak = equity
		}
		if peak <= 0 {
			continue
		}
		drawdown := (peak - equity) / peak
		if drawdown > maxDrawdown {
			maxDrawdown = drawdown
		}
	}

	results.MaxDrawdown = maxDrawdown * 100 // Convert to percentage
}

// calculateSharpeRatio annualizes the mean daily return over its deviation,
// assuming a zero risk-free rate
func calculateSharpeRatio(results *Results) {
	if len(results.DetailedResults) < 2 {
		return
	}
	returns := make([]float64, len(results.DetailedResults))
	for i, trade := range results.DetailedResults {
		returns[i] = trade.Return
	}
	meanReturn, std := stat.MeanStdDev(returns, nil)
	if std > 0 {
		results.SharpeRatio = meanReturn / std * math.Sqrt(models.TradingDaysPerYear)
	}
}

// calculateMonthlyStats compounds strategy returns per calendar month
func calculateMonthlyStats(results *Results) {
	growth := make(map[string]float64)
	for _, trade := range results.DetailedResults {
		month := trade.Date.Format("2006-01")
		g, ok := growth[month]
		if !ok {
			g = 1
		}
		growth[month] = g * (1 + trade.Return)
	}

	results.MonthlyReturns = make(map[string]float64, len(growth))
	for month, g := range growth {
		results.MonthlyReturns[month] = (g - 1) * 100
	}
}

package engine

import (
	"math"

	"github.com/quantflare/twse-backtest/internal/types"
)

// profitFactorSentinel is reported when there are winning trades but no
// losing ones, where the true ratio would be infinite.
const profitFactorSentinel = 999.0

const daysPerYear = 365.25

// summarizePerformance folds the equity curve into portfolio-level numbers.
// With an empty curve the portfolio never moved and everything is flat.
func summarizePerformance(initialCapital float64, equity []types.EquityPoint) types.PerformanceSummary {
	summary := types.PerformanceSummary{
		InitialCapital: initialCapital,
		FinalValue:     initialCapital,
	}
	if len(equity) == 0 || initialCapital <= 0 {
		return summary
	}

	final := equity[len(equity)-1].TotalValue
	summary.FinalValue = final
	summary.TotalReturn = (final - initialCapital) / initialCapital
	summary.MaxDrawdown = maxDrawdown(equity)

	elapsed := equity[len(equity)-1].Date.Sub(equity[0].Date)
	years := elapsed.Hours() / 24 / daysPerYear
	if years > 0 && final > 0 {
		summary.AnnualizedReturn = math.Pow(final/initialCapital, 1/years) - 1
	}
	return summary
}

// maxDrawdown is the largest peak-to-trough decline of the equity curve,
// expressed as a positive fraction of the peak.
func maxDrawdown(equity []types.EquityPoint) float64 {
	var peak, worst float64
	for _, point := range equity {
		if point.TotalValue > peak {
			peak = point.TotalValue
		}
		if peak <= 0 {
			continue
		}
		if dd := (peak - point.TotalValue) / peak; dd > worst {
			worst = dd
		}
	}
	return worst
}

// summarizeTrades folds completed round trips into win/loss statistics. Buys
// carry no PnL and are excluded.
func summarizeTrades(trades []types.Trade) types.TradeSummary {
	var summary types.TradeSummary
	var grossWin, grossLoss float64
	var winRateSum, lossRateSum float64
	var holdingSum int

	for _, trade := range trades {
		if trade.Side != types.SideSell {
			continue
		}
		summary.TotalTrades++
		holdingSum += trade.HoldingDays
		if trade.PnL > 0 {
			summary.Wins++
			grossWin += trade.PnL
			winRateSum += trade.ProfitRate
			if trade.ProfitRate > summary.MaxWinRate {
				summary.MaxWinRate = trade.ProfitRate
			}
		} else {
			summary.Losses++
			grossLoss += -trade.PnL
			lossRateSum += trade.ProfitRate
			if trade.ProfitRate < summary.MaxLossRate {
				summary.MaxLossRate = trade.ProfitRate
			}
		}
	}

	if summary.TotalTrades == 0 {
		return summary
	}
	summary.WinRate = float64(summary.Wins) / float64(summary.TotalTrades)
	summary.AvgHoldingDays = float64(holdingSum) / float64(summary.TotalTrades)
	if summary.Wins > 0 {
		summary.AvgWinRate = winRateSum / float64(summary.Wins)
	}
	if summary.Losses > 0 {
		summary.AvgLossRate = lossRateSum / float64(summary.Losses)
	}
	switch {
	case grossLoss > 0:
		summary.ProfitFactor = grossWin / grossLoss
	case grossWin > 0:
		summary.ProfitFactor = profitFactorSentinel
	}
	return summary
}

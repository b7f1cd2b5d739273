package engine

import (
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/quantflare/twse-backtest/internal/types"
)

type StatsTestSuite struct {
	suite.Suite
}

func TestStatsSuite(t *testing.T) {
	suite.Run(t, new(StatsTestSuite))
}

func sell(pnl, profitRate float64, holdingDays int) types.Trade {
	return types.Trade{Side: types.SideSell, PnL: pnl, ProfitRate: profitRate, HoldingDays: holdingDays}
}

func (s *StatsTestSuite) TestEmptyRunIsFlat() {
	perf := summarizePerformance(1_000_000, nil)
	s.Equal(1_000_000.0, perf.InitialCapital)
	s.Equal(1_000_000.0, perf.FinalValue)
	s.Zero(perf.TotalReturn)
	s.Zero(perf.AnnualizedReturn)
	s.Zero(perf.MaxDrawdown)

	summary := summarizeTrades(nil)
	s.Zero(summary.TotalTrades)
	s.Zero(summary.ProfitFactor)
}

func (s *StatsTestSuite) TestAnnualizedReturnOverOneYear() {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	end := start.Add(time.Duration(daysPerYear * 24 * float64(time.Hour)))
	equity := []types.EquityPoint{
		{Date: start, TotalValue: 1_000_000},
		{Date: end, TotalValue: 1_210_000},
	}
	perf := summarizePerformance(1_000_000, equity)
	s.InDelta(0.21, perf.TotalReturn, 1e-9)
	s.InDelta(0.21, perf.AnnualizedReturn, 1e-6, "one elapsed year annualizes to the total return")
}

func (s *StatsTestSuite) TestAnnualizedReturnZeroWhenNoTimeElapsed() {
	date := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	equity := []types.EquityPoint{{Date: date, TotalValue: 1_100_000}}
	perf := summarizePerformance(1_000_000, equity)
	s.InDelta(0.10, perf.TotalReturn, 1e-9)
	s.Zero(perf.AnnualizedReturn)
}

func (s *StatsTestSuite) TestMaxDrawdown() {
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	values := []float64{100, 120, 90, 110}
	equity := make([]types.EquityPoint, len(values))
	for i, v := range values {
		equity[i] = types.EquityPoint{Date: base.AddDate(0, 0, i), TotalValue: v}
	}
	s.InDelta(0.25, maxDrawdown(equity), 1e-9, "largest decline is 120 to 90")
}

func (s *StatsTestSuite) TestTradeSummaryMixed() {
	trades := []types.Trade{
		{Side: types.SideBuy, Amount: 100_000},
		sell(3000, 0.03, 10),
		sell(-1000, -0.01, 4),
		sell(5000, 0.05, 20),
	}
	summary := summarizeTrades(trades)
	s.Equal(3, summary.TotalTrades, "buys are not round trips")
	s.Equal(2, summary.Wins)
	s.Equal(1, summary.Losses)
	s.InDelta(2.0/3.0, summary.WinRate, 1e-9)
	s.InDelta(0.04, summary.AvgWinRate, 1e-9)
	s.InDelta(-0.01, summary.AvgLossRate, 1e-9)
	s.InDelta(0.05, summary.MaxWinRate, 1e-9)
	s.InDelta(-0.01, summary.MaxLossRate, 1e-9)
	s.InDelta(34.0/3.0, summary.AvgHoldingDays, 1e-9)
	s.InDelta(8.0, summary.ProfitFactor, 1e-9, "8000 gross win over 1000 gross loss")
}

func (s *StatsTestSuite) TestProfitFactorSentinelWithoutLosses() {
	summary := summarizeTrades([]types.Trade{sell(3000, 0.03, 5), sell(2000, 0.02, 7)})
	s.Equal(profitFactorSentinel, summary.ProfitFactor)
}

func (s *StatsTestSuite) TestProfitFactorZeroWithoutWins() {
	summary := summarizeTrades([]types.Trade{sell(-3000, -0.03, 5)})
	s.Zero(summary.ProfitFactor)
}

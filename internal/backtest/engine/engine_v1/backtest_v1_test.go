package engine

import (
	"context"
	"testing"
	"time"

	"github.com/moznion/go-optional"
	"github.com/stretchr/testify/suite"

	bengine "github.com/quantflare/twse-backtest/internal/backtest/engine"
	"github.com/quantflare/twse-backtest/internal/logger"
	"github.com/quantflare/twse-backtest/internal/strategy"
	"github.com/quantflare/twse-backtest/internal/types"
	pkgerrors "github.com/quantflare/twse-backtest/pkg/errors"
)

type stubProvider struct {
	bars map[string][]types.PriceBar
	errs map[string]error
}

func (p *stubProvider) Name() string { return "stub" }

func (p *stubProvider) FetchBars(_ context.Context, symbol string, _, _ time.Time) ([]types.PriceBar, error) {
	if err := p.errs[symbol]; err != nil {
		return nil, err
	}
	return p.bars[symbol], nil
}

type BacktestV1TestSuite struct {
	suite.Suite
}

func TestBacktestV1Suite(t *testing.T) {
	suite.Run(t, new(BacktestV1TestSuite))
}

// constantBars yields n consecutive daily bars at a fixed price.
func constantBars(symbol string, start time.Time, n int, price float64) []types.PriceBar {
	bars := make([]types.PriceBar, n)
	for i := range bars {
		bars[i] = types.PriceBar{
			Symbol: symbol,
			Date:   start.AddDate(0, 0, i),
			Open:   price,
			High:   price,
			Low:    price,
			Close:  price,
			Volume: 1000,
		}
	}
	return bars
}

func (s *BacktestV1TestSuite) newConfig(symbols []string, start, end time.Time) BacktestConfig {
	config := DefaultConfig()
	config.Symbols = symbols
	config.StartDate = start
	config.EndDate = end
	config.ResultsFolder = ""
	return config
}

// A constant price series never crosses any entry rule: no trades, and the
// equity curve stays pinned at the initial capital for every trading day.
func (s *BacktestV1TestSuite) TestFlatSeriesProducesNoTrades() {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	const days = 45
	provider := &stubProvider{bars: map[string][]types.PriceBar{
		"2330": constantBars("2330", start, days, 100),
	}}
	config := s.newConfig([]string{"2330"}, start, start.AddDate(0, 0, days-1))
	backtester := NewBacktestEngineV1(config, logger.NewNopLogger(), provider)

	report, err := backtester.Run(context.Background(), optional.None[bengine.OnProgress]())
	s.Require().NoError(err)

	s.Empty(report.Trades)
	s.Empty(report.UnfilledOrders)
	s.Require().Len(report.EquityCurve, days, "one equity point per trading day")
	for _, point := range report.EquityCurve {
		s.Equal(config.InitialCapital, point.TotalValue)
		s.Zero(point.PositionsValue)
	}
	s.Equal(config.InitialCapital, report.Performance.FinalValue)
	s.Zero(report.Performance.TotalReturn)
	s.Zero(report.TradeSummary.TotalTrades)
}

// A failed instrument is dropped with the rest of the universe unaffected;
// only when nothing is usable does the run fail.
func (s *BacktestV1TestSuite) TestFailedInstrumentIsIsolated() {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	provider := &stubProvider{
		bars: map[string][]types.PriceBar{
			"2330": constantBars("2330", start, 45, 100),
		},
		errs: map[string]error{
			"9999": pkgerrors.New(pkgerrors.ErrCodeFetchFailed, "boom"),
		},
	}
	config := s.newConfig([]string{"2330", "9999"}, start, start.AddDate(0, 0, 44))
	backtester := NewBacktestEngineV1(config, logger.NewNopLogger(), provider)

	report, err := backtester.Run(context.Background(), optional.None[bengine.OnProgress]())
	s.Require().NoError(err)
	s.Equal([]string{"2330"}, report.Symbols)
}

func (s *BacktestV1TestSuite) TestNoUsableDataIsFatal() {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	provider := &stubProvider{
		errs: map[string]error{
			"2330": pkgerrors.New(pkgerrors.ErrCodeFetchFailed, "boom"),
		},
	}
	config := s.newConfig([]string{"2330"}, start, start.AddDate(0, 0, 44))
	backtester := NewBacktestEngineV1(config, logger.NewNopLogger(), provider)

	_, err := backtester.Run(context.Background(), optional.None[bengine.OnProgress]())
	s.Require().Error(err)
	s.True(pkgerrors.HasCode(err, pkgerrors.ErrCodeNoUsableData))
}

func (s *BacktestV1TestSuite) TestMissingProviderIsFatal() {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	config := s.newConfig([]string{"2330"}, start, start.AddDate(0, 0, 44))
	backtester := NewBacktestEngineV1(config, logger.NewNopLogger(), nil)

	_, err := backtester.Run(context.Background(), optional.None[bengine.OnProgress]())
	s.Require().Error(err)
	s.True(pkgerrors.HasCode(err, pkgerrors.ErrCodeNoProvider))
}

// Two runs over the same inputs yield identical trades and equity curves.
func (s *BacktestV1TestSuite) TestRunIsDeterministic() {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	const days = 50
	bars := make([]types.PriceBar, days)
	price := 100.0
	for i := range bars {
		// A rising sawtooth so the scripted evaluators see varied bars.
		if i%5 == 4 {
			price -= 2
		} else {
			price += 1.5
		}
		bars[i] = types.PriceBar{
			Symbol: "2330",
			Date:   start.AddDate(0, 0, i),
			Open:   price - 0.5,
			High:   price + 1,
			Low:    price - 1,
			Close:  price,
			Volume: float64(1000 + i*7),
		}
	}
	provider := &stubProvider{bars: map[string][]types.PriceBar{"2330": bars}}

	buyDate := start.AddDate(0, 0, 38)
	sellDate := start.AddDate(0, 0, 45)
	run := func() *types.Report {
		config := s.newConfig([]string{"2330"}, start, start.AddDate(0, 0, days-1))
		backtester := NewBacktestEngineV1(config, logger.NewNopLogger(), provider)
		backtester.SetEvaluators(
			&scriptedBuy{signals: map[time.Time]strategy.BuySignal{
				buyDate: {Signal: true, Confidence: 0.6, Reason: "scripted entry"},
			}},
			&scriptedSell{signals: map[time.Time]strategy.SellSignal{
				sellDate: {Signal: true, Reason: "scripted exit"},
			}},
			fixedSizer{fraction: 0.2},
		)
		report, err := backtester.Run(context.Background(), optional.None[bengine.OnProgress]())
		s.Require().NoError(err)
		return report
	}

	first := run()
	second := run()

	s.Require().Len(first.Trades, 2, "one buy and one sell")
	s.Equal(types.SideBuy, first.Trades[0].Side)
	s.Equal(types.SideSell, first.Trades[1].Side)
	s.Equal(first.Trades, second.Trades)
	s.Equal(first.EquityCurve, second.EquityCurve)
	s.Equal(first.Instruments, second.Instruments)
}

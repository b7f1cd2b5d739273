package engine

import (
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/quantflare/twse-backtest/internal/calendar"
	"github.com/quantflare/twse-backtest/internal/logger"
	"github.com/quantflare/twse-backtest/internal/strategy"
	"github.com/quantflare/twse-backtest/internal/types"
)

type scriptedBuy struct {
	signals map[time.Time]strategy.BuySignal
}

func (s *scriptedBuy) EvaluateBuy(bar types.EnrichedBar, _ types.EnrichedBar, _ strategy.Params) strategy.BuySignal {
	return s.signals[bar.Date]
}

type scriptedSell struct {
	signals map[time.Time]strategy.SellSignal
}

func (s *scriptedSell) EvaluateSell(bar types.EnrichedBar, _ types.Position, _ int, _ strategy.Params) strategy.SellSignal {
	return s.signals[bar.Date]
}

type fixedSizer struct {
	fraction float64
}

func (s fixedSizer) SizePosition(_ float64, _ float64, _ strategy.Params) float64 {
	return s.fraction
}

type EngineStateTestSuite struct {
	suite.Suite
}

func TestEngineStateSuite(t *testing.T) {
	suite.Run(t, new(EngineStateTestSuite))
}

func day(d int) time.Time {
	return time.Date(2024, 1, d, 0, 0, 0, 0, time.UTC)
}

// priceBar returns a bar where every price equals the given value.
func priceBar(symbol string, date time.Time, price float64) types.EnrichedBar {
	return types.EnrichedBar{PriceBar: types.PriceBar{
		Symbol: symbol,
		Date:   date,
		Open:   price,
		High:   price,
		Low:    price,
		Close:  price,
		Volume: 1000,
	}}
}

func flatSeries(symbol string, days []int, price float64) []types.EnrichedBar {
	bars := make([]types.EnrichedBar, 0, len(days))
	for _, d := range days {
		bars = append(bars, priceBar(symbol, day(d), price))
	}
	return bars
}

func (s *EngineStateTestSuite) newState(
	series map[string][]types.EnrichedBar,
	buys map[time.Time]strategy.BuySignal,
	sells map[time.Time]strategy.SellSignal,
	fraction float64,
	capital float64,
) *runState {
	symbols := make([]string, 0, len(series))
	for symbol := range series {
		symbols = append(symbols, symbol)
	}
	return newRunState(
		logger.NewNopLogger(),
		strategy.DefaultParams(),
		&scriptedBuy{signals: buys},
		&scriptedSell{signals: sells},
		fixedSizer{fraction: fraction},
		calendar.FromSeries(series),
		0,
		symbols,
		series,
		capital,
	)
}

// A buy fills at the next day's open with an integer quantity floored from
// the sized amount at the buy cost rate, and cash moves by exactly the
// recomputed invested amount.
func (s *EngineStateTestSuite) TestBuyFillQuantityAndCash() {
	series := map[string][]types.EnrichedBar{
		"2330": flatSeries("2330", []int{1, 2, 3}, 100),
	}
	st := s.newState(series,
		map[time.Time]strategy.BuySignal{day(2): {Signal: true, Confidence: 0.5, Reason: "macd cross"}},
		nil, 0.2, 1_000_000)

	st.step(day(1))
	st.step(day(2))
	s.Require().Empty(st.trades, "order must not fill on its signal day")
	s.Require().Empty(st.positions)
	s.Require().Contains(st.pendingBuys, "2330")
	s.Require().Equal(day(3), st.pendingBuys["2330"].TargetExecutionDate)

	st.step(day(3))
	s.Require().Len(st.trades, 1)
	trade := st.trades[0]
	s.Equal(types.SideBuy, trade.Side)
	s.Equal(day(2), trade.SignalDate)
	s.Equal(day(3), trade.ExecutedAt)

	invest := 1_000_000 * 0.2
	wantQty := int64(invest / (100 * (1 + BuyCostRate)))
	s.Equal(wantQty, trade.Quantity)
	s.Equal(int64(1997), trade.Quantity)

	wantInvested := float64(wantQty) * 100 * (1 + BuyCostRate)
	s.InDelta(wantInvested, trade.Amount, 1e-6)
	s.InDelta(1_000_000-wantInvested, st.cash, 1e-6)

	pos := st.positions["2330"]
	s.Require().NotNil(pos)
	s.Equal(wantQty, pos.Quantity)
	s.InDelta(wantInvested, pos.InvestedAmount, 1e-6)
	s.Empty(st.pendingBuys)
}

// When the instrument does not trade on the target execution date, the order
// fills at the next bar and the delay is recorded in the reason.
func (s *EngineStateTestSuite) TestSellFillDelayedPastGap() {
	series := map[string][]types.EnrichedBar{
		"A": {priceBar("A", day(1), 100), priceBar("A", day(2), 105), priceBar("A", day(4), 110)},
		"B": flatSeries("B", []int{1, 2, 3, 4}, 50),
	}
	st := s.newState(series, nil,
		map[time.Time]strategy.SellSignal{day(2): {Signal: true, Reason: "trailing stop"}},
		0.2, 1_000_000)
	st.positions["A"] = &types.Position{
		Symbol:         "A",
		EntryDate:      day(1),
		EntryPrice:     100,
		Quantity:       1000,
		InvestedAmount: 100_142.5,
		HighSinceEntry: 100,
		TrailingStop:   92,
	}
	st.cash = 899_857.5

	st.step(day(1))
	st.step(day(2))
	s.Require().Contains(st.pendingSells, "A")
	s.Equal(day(3), st.pendingSells["A"].TargetExecutionDate, "target is the calendar's next trading day")

	st.step(day(3))
	s.Require().Empty(st.trades, "no bar for A on the target date")

	st.step(day(4))
	s.Require().Len(st.trades, 1)
	trade := st.trades[0]
	s.Equal(types.SideSell, trade.Side)
	s.Equal(day(4), trade.ExecutedAt)
	s.Contains(trade.Reason, "trailing stop")
	s.Contains(trade.Reason, "delayed to 2024-01-04")

	wantProceeds := 110.0 * 1000 * (1 - SellCostRate)
	s.InDelta(wantProceeds, trade.Amount, 1e-6)
	s.InDelta(wantProceeds-100_142.5, trade.PnL, 1e-6)
	s.Equal(3, trade.HoldingDays)
	s.Empty(st.positions)
	s.Empty(st.pendingSells)
	s.InDelta(899_857.5+wantProceeds, st.cash, 1e-6)
}

// A ticket below the minimum order value is consumed without opening a
// position, and the instrument is free to signal again afterwards.
func (s *EngineStateTestSuite) TestSubMinimumTicketDropped() {
	series := map[string][]types.EnrichedBar{
		"A": flatSeries("A", []int{1, 2, 3, 4}, 100),
	}
	st := s.newState(series,
		map[time.Time]strategy.BuySignal{
			day(2): {Signal: true, Confidence: 0.5, Reason: "cross"},
			day(3): {Signal: true, Confidence: 0.5, Reason: "cross"},
		},
		nil, 0.005, 1_000_000)

	st.step(day(1))
	st.step(day(2))
	st.step(day(3))
	s.Empty(st.trades)
	s.Empty(st.positions)
	s.Equal(1_000_000.0, st.cash)

	// The dropped order was consumed on day 3; the day-3 signal scheduled a
	// fresh one afterwards.
	s.Require().Contains(st.pendingBuys, "A")
	s.Equal(day(3), st.pendingBuys["A"].SignalDate)
}

// At most one pending buy exists per instrument; a second signal while one is
// pending is ignored, and a held position suppresses buy evaluation entirely.
func (s *EngineStateTestSuite) TestOnePendingBuyPerInstrument() {
	series := map[string][]types.EnrichedBar{
		"A": flatSeries("A", []int{1, 2, 3}, 100),
	}
	st := s.newState(series,
		map[time.Time]strategy.BuySignal{
			day(2): {Signal: true, Confidence: 0.4, Reason: "first"},
			day(3): {Signal: true, Confidence: 0.9, Reason: "second"},
		},
		nil, 0.2, 1_000_000)

	st.evaluateBuy("A", 1, day(2))
	s.Require().Contains(st.pendingBuys, "A")

	st.evaluateBuy("A", 2, day(3))
	s.Equal(day(2), st.pendingBuys["A"].SignalDate, "pending order must not be replaced")
	s.Equal("first", st.pendingBuys["A"].Reason)

	// A held position suppresses new buy signals.
	st2 := s.newState(series,
		map[time.Time]strategy.BuySignal{day(3): {Signal: true, Confidence: 0.9, Reason: "second"}},
		nil, 0.2, 1_000_000)
	st2.positions["A"] = &types.Position{Symbol: "A", EntryDate: day(1), EntryPrice: 100, Quantity: 100}
	st2.evaluateBuy("A", 2, day(3))
	s.Empty(st2.pendingBuys)
}

// The trailing stop only ratchets upward, and only once the gain from entry
// clears the activation threshold.
func (s *EngineStateTestSuite) TestTrailingStopRatchet() {
	series := map[string][]types.EnrichedBar{
		"A": flatSeries("A", []int{1}, 100),
	}
	st := s.newState(series, nil, nil, 0.2, 1_000_000)
	pos := &types.Position{
		Symbol:         "A",
		EntryDate:      day(1),
		EntryPrice:     100,
		Quantity:       100,
		HighSinceEntry: 100,
		TrailingStop:   92,
	}
	st.positions["A"] = pos

	bar := priceBar("A", day(2), 105)
	bar.High = 105
	st.updateTrailingStop("A", bar)
	s.Equal(105.0, pos.HighSinceEntry)
	s.Equal(92.0, pos.TrailingStop, "below the activation threshold the stop stays put")

	bar = priceBar("A", day(3), 112)
	st.updateTrailingStop("A", bar)
	s.InDelta(112*0.92, pos.TrailingStop, 1e-9)

	bar = priceBar("A", day(4), 108)
	st.updateTrailingStop("A", bar)
	s.Equal(112.0, pos.HighSinceEntry, "a lower high never lowers the mark")
	s.InDelta(112*0.92, pos.TrailingStop, 1e-9)

	bar = priceBar("A", day(5), 120)
	st.updateTrailingStop("A", bar)
	s.InDelta(120*0.92, pos.TrailingStop, 1e-9)
}

// Every equity point satisfies total == cash + positions valued at the last
// close at or before the date.
func (s *EngineStateTestSuite) TestMarkToMarketIdentity() {
	series := map[string][]types.EnrichedBar{
		"A": {priceBar("A", day(1), 100), priceBar("A", day(2), 105)},
		"B": flatSeries("B", []int{1, 2, 3}, 50),
	}
	st := s.newState(series, nil, nil, 0.2, 1_000_000)
	st.positions["A"] = &types.Position{Symbol: "A", EntryDate: day(1), EntryPrice: 100, Quantity: 1000}
	st.cash = 900_000

	st.markToMarket(day(2))
	s.Require().Len(st.equity, 1)
	point := st.equity[0]
	s.Equal(105_000.0, point.PositionsValue)
	s.Equal(900_000.0, point.Cash)
	s.Equal(point.Cash+point.PositionsValue, point.TotalValue)

	// Day 3 has no bar for A; the last close carries forward.
	st.markToMarket(day(3))
	s.Equal(105_000.0, st.equity[1].PositionsValue)

	s.InDelta(105_000.0/(900_000.0+105_000.0), st.exposureAt(day(2)), 1e-9)
}

// A signal on the last calendar day has no next trading day; the order stays
// unscheduled and is reported as unfilled.
func (s *EngineStateTestSuite) TestUnfilledOrderAtWindowEnd() {
	series := map[string][]types.EnrichedBar{
		"A": flatSeries("A", []int{1, 2}, 100),
	}
	st := s.newState(series,
		map[time.Time]strategy.BuySignal{day(2): {Signal: true, Confidence: 0.7, Reason: "late cross"}},
		nil, 0.2, 1_000_000)

	st.step(day(1))
	st.step(day(2))
	s.Empty(st.trades)

	unfilled := st.unfilledOrders()
	s.Require().Len(unfilled, 1)
	s.Equal("A", unfilled[0].Symbol)
	s.Equal(types.SideBuy, unfilled[0].Side)
	s.Equal(day(2), unfilled[0].SignalDate)
	s.True(unfilled[0].TargetExecutionDate.IsZero())
}

// A sell fills from the snapshot taken at signal time; mutation of the live
// position between signal and fill does not change what gets sold.
func (s *EngineStateTestSuite) TestSellFillUsesSignalTimeSnapshot() {
	series := map[string][]types.EnrichedBar{
		"A": flatSeries("A", []int{1, 2, 3}, 100),
	}
	st := s.newState(series, nil,
		map[time.Time]strategy.SellSignal{day(2): {Signal: true, Reason: "exit"}},
		0.2, 1_000_000)
	st.positions["A"] = &types.Position{
		Symbol:         "A",
		EntryDate:      day(1),
		EntryPrice:     100,
		Quantity:       1000,
		InvestedAmount: 100_142.5,
		HighSinceEntry: 100,
		TrailingStop:   92,
	}
	st.cash = 899_857.5

	st.step(day(2))
	s.Require().Contains(st.pendingSells, "A")

	// Tamper with the live position after the signal fired.
	st.positions["A"].Quantity = 5
	st.positions["A"].InvestedAmount = 1

	st.step(day(3))
	s.Require().Len(st.trades, 1)
	trade := st.trades[0]
	s.Equal(int64(1000), trade.Quantity)

	wantProceeds := 100.0 * 1000 * (1 - SellCostRate)
	s.InDelta(wantProceeds, trade.Amount, 1e-6)
	s.InDelta(wantProceeds-100_142.5, trade.PnL, 1e-6)
	s.Empty(st.positions)
}

// Bars below the warmup index are skipped entirely.
func (s *EngineStateTestSuite) TestWarmupSkip() {
	series := map[string][]types.EnrichedBar{
		"A": flatSeries("A", []int{1, 2, 3}, 100),
	}
	st := s.newState(series,
		map[time.Time]strategy.BuySignal{
			day(1): {Signal: true, Confidence: 0.5, Reason: "cross"},
			day(2): {Signal: true, Confidence: 0.5, Reason: "cross"},
		},
		nil, 0.2, 1_000_000)
	st.warmup = 2

	st.step(day(1))
	st.step(day(2))
	s.Empty(st.pendingBuys, "signals during warmup are never evaluated")
	s.Len(st.equity, 2, "equity is still marked during warmup")
}

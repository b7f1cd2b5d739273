package engine

import (
	"fmt"
	"sort"
	"time"

	"github.com/moznion/go-optional"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/quantflare/twse-backtest/internal/calendar"
	"github.com/quantflare/twse-backtest/internal/logger"
	"github.com/quantflare/twse-backtest/internal/strategy"
	"github.com/quantflare/twse-backtest/internal/types"
)

// Transaction cost rates for the Taiwan market. Buys pay brokerage only;
// sells pay brokerage plus the 0.3% securities transaction tax.
const (
	BuyCostRate  = 0.001425
	SellCostRate = 0.004425
	// MinTicketSize is the smallest order value the engine will place.
	MinTicketSize = 10_000.0
)

// runState carries all mutable portfolio state for one simulation run. One
// instance per run; the engine itself stays reusable.
type runState struct {
	log    *logger.Logger
	params strategy.Params

	buyEval  strategy.BuyEvaluator
	sellEval strategy.SellEvaluator
	sizer    strategy.Sizer

	cal    *calendar.Calendar
	warmup int

	// symbols keeps the configured declaration order so the daily loop is
	// deterministic.
	symbols []string
	series  map[string][]types.EnrichedBar
	// index maps normalized date to bar index per symbol.
	index map[string]map[time.Time]int

	cash         float64
	positions    map[string]*types.Position
	pendingBuys  map[string]*types.PendingBuyOrder
	pendingSells map[string]*types.PendingSellOrder
	trades       []types.Trade
	equity       []types.EquityPoint
}

func newRunState(
	log *logger.Logger,
	params strategy.Params,
	buyEval strategy.BuyEvaluator,
	sellEval strategy.SellEvaluator,
	sizer strategy.Sizer,
	cal *calendar.Calendar,
	warmup int,
	symbols []string,
	series map[string][]types.EnrichedBar,
	initialCapital float64,
) *runState {
	index := make(map[string]map[time.Time]int, len(series))
	for symbol, bars := range series {
		byDate := make(map[time.Time]int, len(bars))
		for i, bar := range bars {
			byDate[bar.Date] = i
		}
		index[symbol] = byDate
	}
	return &runState{
		log:          log,
		params:       params,
		buyEval:      buyEval,
		sellEval:     sellEval,
		sizer:        sizer,
		cal:          cal,
		warmup:       warmup,
		symbols:      symbols,
		series:       series,
		index:        index,
		cash:         initialCapital,
		positions:    make(map[string]*types.Position),
		pendingBuys:  make(map[string]*types.PendingBuyOrder),
		pendingSells: make(map[string]*types.PendingSellOrder),
	}
}

// step processes one trading day. Instruments are visited in declaration
// order; for each the fill steps run before signal evaluation, so an order
// placed today can never fill today. The day closes with a mark-to-market
// equity point.
func (s *runState) step(date time.Time) {
	for _, symbol := range s.symbols {
		idx, ok := s.index[symbol][date]
		if !ok {
			continue
		}
		if idx < s.warmup {
			continue
		}
		bar := s.series[symbol][idx]
		if !bar.Date.Equal(date) {
			continue
		}

		s.fillPendingSell(symbol, bar, date)
		s.fillPendingBuy(symbol, bar, date)
		s.updateTrailingStop(symbol, bar)
		s.evaluateSell(symbol, bar, date)
		s.evaluateBuy(symbol, idx, date)
	}
	s.markToMarket(date)
}

// nextTradeID yields sequential ledger identifiers so runs over the same
// inputs produce byte-identical ledgers.
func (s *runState) nextTradeID() string {
	return fmt.Sprintf("T%06d", len(s.trades)+1)
}

// fillPendingSell executes a due sell order at today's open. The entire
// position is liquidated; proceeds are net of the sell cost rate. The fill is
// computed from the snapshot taken at signal time, so daily mutation of the
// live position cannot change what gets sold.
func (s *runState) fillPendingSell(symbol string, bar types.EnrichedBar, date time.Time) {
	order, ok := s.pendingSells[symbol]
	if !ok || order.TargetExecutionDate.IsZero() || date.Before(order.TargetExecutionDate) {
		return
	}
	if _, held := s.positions[symbol]; !held {
		delete(s.pendingSells, symbol)
		return
	}
	pos := order.Position

	open := decimal.NewFromFloat(bar.Open)
	gross := open.Mul(decimal.NewFromInt(pos.Quantity))
	fee := gross.Mul(decimal.NewFromFloat(SellCostRate))
	proceeds := gross.Sub(fee)
	invested := decimal.NewFromFloat(pos.InvestedAmount)
	pnl := proceeds.Sub(invested)
	profitRate := 0.0
	if !invested.IsZero() {
		profitRate = pnl.Div(invested).InexactFloat64()
	}
	holdingDays := int(date.Sub(pos.EntryDate).Hours() / 24)

	reason := order.Reason
	if date.After(order.TargetExecutionDate) {
		reason = fmt.Sprintf("%s (execution delayed to %s)", reason, date.Format(time.DateOnly))
	}

	s.cash += proceeds.InexactFloat64()
	delete(s.positions, symbol)
	delete(s.pendingSells, symbol)

	s.trades = append(s.trades, types.Trade{
		ID:          s.nextTradeID(),
		Symbol:      symbol,
		Side:        types.SideSell,
		SignalDate:  order.SignalDate,
		ExecutedAt:  date,
		Price:       bar.Open,
		Quantity:    pos.Quantity,
		Amount:      proceeds.InexactFloat64(),
		Fee:         fee.InexactFloat64(),
		PnL:         pnl.InexactFloat64(),
		ProfitRate:  profitRate,
		HoldingDays: holdingDays,
		Reason:      reason,
	})
	s.log.Debug("filled sell order",
		zap.String("symbol", symbol),
		zap.Time("date", date),
		zap.Float64("pnl", pnl.InexactFloat64()),
		zap.String("reason", reason))
}

// fillPendingBuy executes a due buy order at today's open. The order is
// consumed whether or not it results in a position: a ticket below the
// minimum size or beyond available cash is dropped, not retried.
func (s *runState) fillPendingBuy(symbol string, bar types.EnrichedBar, date time.Time) {
	order, ok := s.pendingBuys[symbol]
	if !ok || order.TargetExecutionDate.IsZero() || date.Before(order.TargetExecutionDate) {
		return
	}
	delete(s.pendingBuys, symbol)

	fraction := s.sizer.SizePosition(order.Confidence, s.exposureAt(date), s.params)
	invest := s.cash * fraction
	if hardCap := s.cash * s.params.MaxPositionSize; invest > hardCap {
		invest = hardCap
	}
	if invest < MinTicketSize {
		s.log.Debug("dropping buy order below minimum ticket",
			zap.String("symbol", symbol),
			zap.Float64("amount", invest))
		return
	}
	if invest > s.cash {
		s.log.Debug("dropping buy order exceeding available cash",
			zap.String("symbol", symbol),
			zap.Float64("amount", invest))
		return
	}

	open := decimal.NewFromFloat(bar.Open)
	unitCost := open.Mul(decimal.NewFromFloat(1 + BuyCostRate))
	quantity := decimal.NewFromFloat(invest).Div(unitCost).IntPart()
	if quantity < 1 {
		s.log.Debug("dropping buy order with zero quantity",
			zap.String("symbol", symbol),
			zap.Float64("price", bar.Open))
		return
	}

	// Invested amount is recomputed from the floored quantity so cash moves
	// by exactly what the position cost.
	gross := open.Mul(decimal.NewFromInt(quantity))
	fee := gross.Mul(decimal.NewFromFloat(BuyCostRate))
	invested := gross.Add(fee)
	s.cash -= invested.InexactFloat64()

	pos := &types.Position{
		Symbol:         symbol,
		EntryDate:      date,
		EntryPrice:     bar.Open,
		Quantity:       quantity,
		InvestedAmount: invested.InexactFloat64(),
		Confidence:     order.Confidence,
		BuySignalDate:  order.SignalDate,
		HighSinceEntry: bar.Open,
		TrailingStop:   bar.Open * (1 - s.params.TrailingStopPercent),
	}
	if s.params.EnableATRStop && bar.ATR.IsSome() {
		atr := bar.ATR.Unwrap()
		pos.EntryATR = optional.Some(atr)
		pos.ATRStop = optional.Some(bar.Open - s.params.ATRMultiplier*atr)
	}
	s.positions[symbol] = pos

	reason := order.Reason
	if date.After(order.TargetExecutionDate) {
		reason = fmt.Sprintf("%s (execution delayed to %s)", reason, date.Format(time.DateOnly))
	}
	s.trades = append(s.trades, types.Trade{
		ID:         s.nextTradeID(),
		Symbol:     symbol,
		Side:       types.SideBuy,
		SignalDate: order.SignalDate,
		ExecutedAt: date,
		Price:      bar.Open,
		Quantity:   quantity,
		Amount:     invested.InexactFloat64(),
		Fee:        fee.InexactFloat64(),
		Reason:     reason,
	})
	s.log.Debug("filled buy order",
		zap.String("symbol", symbol),
		zap.Time("date", date),
		zap.Int64("quantity", quantity),
		zap.Float64("invested", invested.InexactFloat64()))
}

// updateTrailingStop ratchets the trailing stop upward when today's high sets
// a new high-water mark and the gain from entry clears the activation
// threshold. The stop never moves down.
func (s *runState) updateTrailingStop(symbol string, bar types.EnrichedBar) {
	pos, ok := s.positions[symbol]
	if !ok || bar.High <= pos.HighSinceEntry {
		return
	}
	pos.HighSinceEntry = bar.High
	if !s.params.EnableTrailingStop {
		return
	}
	gain := (pos.HighSinceEntry - pos.EntryPrice) / pos.EntryPrice
	if gain < s.params.TrailingActivatePercent {
		return
	}
	if candidate := pos.HighSinceEntry * (1 - s.params.TrailingStopPercent); candidate > pos.TrailingStop {
		pos.TrailingStop = candidate
	}
}

// evaluateSell asks the sell evaluator for an exit signal on a held position
// with no sell already pending. A fired signal schedules a sell at the next
// trading day's open; if the calendar ends first the order stays unscheduled
// and is reported as unfilled.
func (s *runState) evaluateSell(symbol string, bar types.EnrichedBar, date time.Time) {
	pos, ok := s.positions[symbol]
	if !ok {
		return
	}
	if _, pending := s.pendingSells[symbol]; pending {
		return
	}
	holdingDays := int(date.Sub(pos.EntryDate).Hours() / 24)
	sig := s.sellEval.EvaluateSell(bar, *pos, holdingDays, s.params)
	if !sig.Signal {
		return
	}
	order := &types.PendingSellOrder{
		Symbol:     symbol,
		Reason:     sig.Reason,
		SignalDate: date,
		Position:   *pos,
	}
	if next := s.cal.NextTradingDay(date); next.IsSome() {
		order.TargetExecutionDate = next.Unwrap()
	}
	s.pendingSells[symbol] = order
	s.log.Debug("sell signal",
		zap.String("symbol", symbol),
		zap.Time("date", date),
		zap.String("reason", sig.Reason))
}

// evaluateBuy asks the buy evaluator for an entry signal on a flat instrument
// with no order pending on either side.
func (s *runState) evaluateBuy(symbol string, idx int, date time.Time) {
	if _, held := s.positions[symbol]; held {
		return
	}
	if _, pending := s.pendingBuys[symbol]; pending {
		return
	}
	if _, pending := s.pendingSells[symbol]; pending {
		return
	}
	bars := s.series[symbol]
	if idx == 0 {
		return
	}
	sig := s.buyEval.EvaluateBuy(bars[idx], bars[idx-1], s.params)
	if !sig.Signal {
		return
	}
	order := &types.PendingBuyOrder{
		Symbol:     symbol,
		Confidence: sig.Confidence,
		Reason:     sig.Reason,
		SignalDate: date,
	}
	if next := s.cal.NextTradingDay(date); next.IsSome() {
		order.TargetExecutionDate = next.Unwrap()
	}
	s.pendingBuys[symbol] = order
	s.log.Debug("buy signal",
		zap.String("symbol", symbol),
		zap.Time("date", date),
		zap.Float64("confidence", sig.Confidence),
		zap.String("reason", sig.Reason))
}

// exposureAt returns positionsValue / (cash + positionsValue) using each held
// instrument's last close at or before the given date. Instruments with no
// bar yet are omitted from the position value.
func (s *runState) exposureAt(date time.Time) float64 {
	posValue := s.positionsValueAt(date)
	if posValue == 0 {
		return 0
	}
	return posValue / (s.cash + posValue)
}

func (s *runState) positionsValueAt(date time.Time) float64 {
	var total float64
	for symbol, pos := range s.positions {
		if close, ok := s.lastCloseAt(symbol, date); ok {
			total += pos.MarketValue(close)
		}
	}
	return total
}

// lastCloseAt finds the close of the most recent bar at or before date.
func (s *runState) lastCloseAt(symbol string, date time.Time) (float64, bool) {
	bars := s.series[symbol]
	// First index with Date > date; the bar before it is the answer.
	n := sort.Search(len(bars), func(i int) bool { return bars[i].Date.After(date) })
	if n == 0 {
		return 0, false
	}
	return bars[n-1].Close, true
}

func (s *runState) markToMarket(date time.Time) {
	posValue := s.positionsValueAt(date)
	s.equity = append(s.equity, types.EquityPoint{
		Date:           date,
		TotalValue:     s.cash + posValue,
		Cash:           s.cash,
		PositionsValue: posValue,
	})
}

// unfilledOrders reports orders still pending when the run ended, sorted by
// symbol with buys before sells.
func (s *runState) unfilledOrders() []types.UnfilledOrder {
	var out []types.UnfilledOrder
	for _, order := range s.pendingBuys {
		out = append(out, types.UnfilledOrder{
			Symbol:              order.Symbol,
			Side:                types.SideBuy,
			Reason:              order.Reason,
			SignalDate:          order.SignalDate,
			TargetExecutionDate: order.TargetExecutionDate,
		})
	}
	for _, order := range s.pendingSells {
		out = append(out, types.UnfilledOrder{
			Symbol:              order.Symbol,
			Side:                types.SideSell,
			Reason:              order.Reason,
			SignalDate:          order.SignalDate,
			TargetExecutionDate: order.TargetExecutionDate,
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Symbol != out[j].Symbol {
			return out[i].Symbol < out[j].Symbol
		}
		return out[i].Side < out[j].Side
	})
	return out
}

package engine

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/moznion/go-optional"
	"go.uber.org/zap"

	"github.com/quantflare/twse-backtest/internal/backtest/engine"
	"github.com/quantflare/twse-backtest/internal/calendar"
	"github.com/quantflare/twse-backtest/internal/indicator"
	"github.com/quantflare/twse-backtest/internal/logger"
	"github.com/quantflare/twse-backtest/internal/strategy"
	"github.com/quantflare/twse-backtest/internal/types"
	pkgerrors "github.com/quantflare/twse-backtest/pkg/errors"
	"github.com/quantflare/twse-backtest/pkg/marketdata"
)

// BacktestEngineV1 drives the event loop: fetch, enrich, simulate day by day,
// aggregate. It implements engine.Engine.
type BacktestEngineV1 struct {
	config   BacktestConfig
	log      *logger.Logger
	provider marketdata.Provider

	buyEval  strategy.BuyEvaluator
	sellEval strategy.SellEvaluator
	sizer    strategy.Sizer
}

var _ engine.Engine = (*BacktestEngineV1)(nil)

func NewBacktestEngineV1(config BacktestConfig, log *logger.Logger, provider marketdata.Provider) *BacktestEngineV1 {
	return &BacktestEngineV1{
		config:   config,
		log:      log,
		provider: provider,
		buyEval:  strategy.NewMACDCrossBuy(),
		sellEval: strategy.NewTrailingStopSell(),
		sizer:    strategy.NewConfidenceSizer(),
	}
}

// SetEvaluators swaps in alternative signal and sizing implementations.
func (b *BacktestEngineV1) SetEvaluators(buy strategy.BuyEvaluator, sell strategy.SellEvaluator, sizer strategy.Sizer) {
	if buy != nil {
		b.buyEval = buy
	}
	if sell != nil {
		b.sellEval = sell
	}
	if sizer != nil {
		b.sizer = sizer
	}
}

// Run executes the backtest and returns the aggregated report. When the
// config names a results folder, the report and the parquet ledger are also
// written there.
func (b *BacktestEngineV1) Run(ctx context.Context, onProgress optional.Option[engine.OnProgress]) (*types.Report, error) {
	if err := b.preRunCheck(); err != nil {
		return nil, err
	}
	b.log.Info("fetching market data",
		zap.String("provider", b.provider.Name()),
		zap.Int("symbols", len(b.config.Symbols)))

	symbols, series := b.fetchAll(ctx)
	if len(symbols) == 0 {
		return nil, pkgerrors.New(pkgerrors.ErrCodeNoUsableData, "no instrument yielded usable price data")
	}

	cal := calendar.FromSeries(series)
	days := cal.DaysBetween(calendar.Normalize(b.config.StartDate), calendar.Normalize(b.config.EndDate))
	b.log.Info("starting simulation",
		zap.Int("symbols", len(symbols)),
		zap.Int("trading_days", len(days)))

	warmup := b.config.Strategy.IndicatorConfig().WarmupIndex()
	state := newRunState(b.log, b.config.Strategy, b.buyEval, b.sellEval, b.sizer,
		cal, warmup, symbols, series, b.config.InitialCapital)

	for i, date := range days {
		select {
		case <-ctx.Done():
			return nil, pkgerrors.Wrap(pkgerrors.ErrCodeRunFailed, "backtest cancelled", ctx.Err())
		default:
		}
		state.step(date)
		if onProgress.IsSome() {
			onProgress.Unwrap()(i+1, len(days))
		}
	}

	report, err := b.aggregate(symbols, state)
	if err != nil {
		return nil, err
	}
	b.log.Info("simulation finished",
		zap.Int("trades", len(report.Trades)),
		zap.Float64("final_value", report.Performance.FinalValue))
	return report, nil
}

func (b *BacktestEngineV1) preRunCheck() error {
	if b.provider == nil {
		return pkgerrors.New(pkgerrors.ErrCodeNoProvider, "no market data provider configured")
	}
	return b.config.Validate()
}

// fetchAll retrieves and enriches every configured instrument concurrently.
// A failed or empty instrument is logged and dropped; it never aborts the
// rest of the universe. The returned symbol list preserves declaration order.
// fetchConcurrency bounds simultaneous provider requests.
const fetchConcurrency = 4

func (b *BacktestEngineV1) fetchAll(ctx context.Context) ([]string, map[string][]types.EnrichedBar) {
	cfg := b.config.Strategy.IndicatorConfig()

	var mu sync.Mutex
	var wg sync.WaitGroup
	sem := make(chan struct{}, fetchConcurrency)
	series := make(map[string][]types.EnrichedBar, len(b.config.Symbols))

	for _, symbol := range b.config.Symbols {
		wg.Add(1)
		go func(symbol string) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()
			bars, err := b.provider.FetchBars(ctx, symbol, b.config.StartDate, b.config.EndDate)
			if err != nil {
				b.log.Error("failed to fetch bars, skipping instrument",
					zap.String("symbol", symbol),
					zap.Error(err))
				return
			}
			if len(bars) == 0 {
				b.log.Warn("no bars in range, skipping instrument",
					zap.String("symbol", symbol))
				return
			}
			enriched := indicator.Enrich(bars, cfg)
			mu.Lock()
			series[symbol] = enriched
			mu.Unlock()
		}(symbol)
	}
	wg.Wait()

	symbols := make([]string, 0, len(series))
	for _, symbol := range b.config.Symbols {
		if _, ok := series[symbol]; ok {
			symbols = append(symbols, symbol)
		}
	}
	return symbols, series
}

// aggregate loads the run's fills and equity curve into the ledger, computes
// the summaries, and assembles the report.
func (b *BacktestEngineV1) aggregate(symbols []string, state *runState) (*types.Report, error) {
	ledger, err := NewTradeLedger()
	if err != nil {
		return nil, err
	}
	defer ledger.Close()

	for _, trade := range state.trades {
		if err := ledger.RecordTrade(trade); err != nil {
			return nil, err
		}
	}
	for _, point := range state.equity {
		if err := ledger.RecordEquity(point); err != nil {
			return nil, err
		}
	}
	instruments, err := ledger.InstrumentStats()
	if err != nil {
		return nil, err
	}

	report := &types.Report{
		ID:             uuid.New().String(),
		GeneratedAt:    time.Now(),
		StartDate:      b.config.StartDate,
		EndDate:        b.config.EndDate,
		Symbols:        symbols,
		Performance:    summarizePerformance(b.config.InitialCapital, state.equity),
		TradeSummary:   summarizeTrades(state.trades),
		Trades:         state.trades,
		EquityCurve:    state.equity,
		Instruments:    instruments,
		UnfilledOrders: state.unfilledOrders(),
	}

	if b.config.ResultsFolder != "" {
		if err := b.writeResults(ledger, report); err != nil {
			return nil, err
		}
	}
	return report, nil
}

func (b *BacktestEngineV1) writeResults(ledger *TradeLedger, report *types.Report) error {
	folder := filepath.Join(b.config.ResultsFolder, report.ID)
	if err := os.MkdirAll(folder, 0755); err != nil {
		return pkgerrors.Wrap(pkgerrors.ErrCodeReportFailed, "failed to create results folder", err)
	}
	if err := types.WriteReport(filepath.Join(folder, "report.yaml"), report); err != nil {
		return err
	}
	if err := ledger.Export(folder); err != nil {
		return err
	}
	b.log.Info("results written", zap.String("folder", folder))
	return nil
}

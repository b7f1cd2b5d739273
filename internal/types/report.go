package types

import (
	"os"
	"time"

	"gopkg.in/yaml.v3"

	pkgerrors "github.com/quantflare/twse-backtest/pkg/errors"
)

// PerformanceSummary describes the run as a whole.
type PerformanceSummary struct {
	InitialCapital float64 `yaml:"initial_capital"`
	FinalValue     float64 `yaml:"final_value"`
	// TotalReturn is (final - initial) / initial.
	TotalReturn float64 `yaml:"total_return"`
	// AnnualizedReturn uses compound growth over elapsed years with a
	// 365.25-day year; zero when the elapsed period is not positive.
	AnnualizedReturn float64 `yaml:"annualized_return"`
	MaxDrawdown      float64 `yaml:"max_drawdown"`
}

// TradeSummary folds the completed round trips (sells) into statistics.
type TradeSummary struct {
	TotalTrades int     `yaml:"total_trades"`
	Wins        int     `yaml:"wins"`
	Losses      int     `yaml:"losses"`
	WinRate     float64 `yaml:"win_rate"`
	AvgWinRate  float64 `yaml:"avg_win_rate"`
	AvgLossRate float64 `yaml:"avg_loss_rate"`
	MaxWinRate  float64 `yaml:"max_win_rate"`
	MaxLossRate float64 `yaml:"max_loss_rate"`
	// AvgHoldingDays is averaged over completed round trips.
	AvgHoldingDays float64 `yaml:"avg_holding_days"`
	// ProfitFactor is the ratio of summed winning profit to summed losing
	// loss magnitude; 999 when there are wins but no losses, 0 when neither.
	ProfitFactor float64 `yaml:"profit_factor"`
}

// InstrumentStats is the per-instrument performance breakdown.
type InstrumentStats struct {
	Symbol      string  `yaml:"symbol"`
	Trades      int     `yaml:"trades"`
	Wins        int     `yaml:"wins"`
	WinRate     float64 `yaml:"win_rate"`
	TotalProfit float64 `yaml:"total_profit"`
}

// Report is the complete result of one backtest run.
type Report struct {
	ID          string    `yaml:"id"`
	GeneratedAt time.Time `yaml:"generated_at"`
	StartDate   time.Time `yaml:"start_date"`
	EndDate     time.Time `yaml:"end_date"`
	Symbols     []string  `yaml:"symbols"`

	Performance    PerformanceSummary `yaml:"performance"`
	TradeSummary   TradeSummary       `yaml:"trade_summary"`
	Trades         []Trade            `yaml:"trades"`
	EquityCurve    []EquityPoint      `yaml:"equity_curve"`
	Instruments    []InstrumentStats  `yaml:"instruments"`
	UnfilledOrders []UnfilledOrder    `yaml:"unfilled_orders"`
}

// WriteReport writes the report to a YAML file.
func WriteReport(path string, report *Report) error {
	data, err := yaml.Marshal(report)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.ErrCodeReportFailed, "failed to marshal report to YAML", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return pkgerrors.Wrap(pkgerrors.ErrCodeReportFailed, "failed to write report file", err)
	}

	return nil
}

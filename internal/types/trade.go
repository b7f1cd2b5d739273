package types

import "time"

// Trade is an immutable fill record appended to the ledger. It carries both
// the signal date and the actual T+1 execution date and price. PnL,
// ProfitRate and HoldingDays are populated for sells only.
type Trade struct {
	ID          string    `yaml:"id" csv:"id"`
	Symbol      string    `yaml:"symbol" csv:"symbol"`
	Side        Side      `yaml:"side" csv:"side"`
	SignalDate  time.Time `yaml:"signal_date" csv:"signal_date"`
	ExecutedAt  time.Time `yaml:"executed_at" csv:"executed_at"`
	Price       float64   `yaml:"price" csv:"price"`
	Quantity    int64     `yaml:"quantity" csv:"quantity"`
	Amount      float64   `yaml:"amount" csv:"amount"`
	Fee         float64   `yaml:"fee" csv:"fee"`
	PnL         float64   `yaml:"pnl" csv:"pnl"`
	ProfitRate  float64   `yaml:"profit_rate" csv:"profit_rate"`
	HoldingDays int       `yaml:"holding_days" csv:"holding_days"`
	Reason      string    `yaml:"reason" csv:"reason"`
}

// IsWin reports whether a completed round trip closed with positive profit.
func (t Trade) IsWin() bool {
	return t.Side == SideSell && t.PnL > 0
}

package types

import "time"

type Side string

const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
)

// PendingBuyOrder is a buy signal waiting for its flexible-T+1 fill. At most
// one may exist per instrument; a new buy signal while one is pending is
// ignored.
type PendingBuyOrder struct {
	Symbol              string
	Confidence          float64
	Reason              string
	SignalDate          time.Time
	TargetExecutionDate time.Time
}

// PendingSellOrder is a sell signal waiting for its flexible-T+1 fill. It
// snapshots the position at signal time so later mutation of the live
// position cannot corrupt the fill.
type PendingSellOrder struct {
	Symbol              string
	Reason              string
	SignalDate          time.Time
	TargetExecutionDate time.Time
	Position            Position
}

// UnfilledOrder describes a pending order stranded by the end of the
// simulation window. Reported informationally, never as an error.
type UnfilledOrder struct {
	Symbol              string    `yaml:"symbol"`
	Side                Side      `yaml:"side"`
	Reason              string    `yaml:"reason"`
	SignalDate          time.Time `yaml:"signal_date"`
	TargetExecutionDate time.Time `yaml:"target_execution_date"`
}

package types

import (
	"time"

	"github.com/moznion/go-optional"
)

// Position is an open holding in one instrument. It is owned exclusively by
// the simulation engine for the duration of a run; at most one Position per
// instrument exists at any time.
type Position struct {
	Symbol         string
	EntryDate      time.Time
	EntryPrice     float64
	Quantity       int64
	InvestedAmount float64
	Confidence     float64
	BuySignalDate  time.Time

	// HighSinceEntry and TrailingStop are mutated daily while the position is
	// held. TrailingStop only ever ratchets upward.
	HighSinceEntry float64
	TrailingStop   float64

	ATRStop  optional.Option[float64]
	EntryATR optional.Option[float64]
}

// MarketValue values the position at the given price.
func (p *Position) MarketValue(price float64) float64 {
	return price * float64(p.Quantity)
}

package indicator

import (
	"github.com/moznion/go-optional"
	"github.com/quantflare/twse-backtest/internal/types"
)

// momentumStage computes price momentum over a fixed lookback:
// (close_i - close_{i-N}) / close_{i-N}.
type momentumStage struct {
	period int
}

func newMomentumStage(period int) *momentumStage {
	return &momentumStage{period: period}
}

func (s *momentumStage) step(bars []types.EnrichedBar, i int) {
	if i < s.period {
		return
	}

	base := bars[i-s.period].Close
	if base == 0 {
		return
	}

	bars[i].PriceMomentum = optional.Some((bars[i].Close - base) / base)
}

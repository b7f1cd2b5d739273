package indicator

import (
	"math"

	"github.com/moznion/go-optional"
	"github.com/quantflare/twse-backtest/internal/types"
)

// atrStage computes the Wilder-style trailing mean of true range. Every true
// range needs the previous close, so the value first becomes defined at
// index == period.
type atrStage struct {
	period int
}

func newATRStage(period int) *atrStage {
	return &atrStage{period: period}
}

func (s *atrStage) step(bars []types.EnrichedBar, i int) {
	if i < s.period {
		return
	}

	var sum float64
	for j := i - s.period + 1; j <= i; j++ {
		sum += trueRange(bars[j], bars[j-1].Close)
	}

	bars[i].ATR = optional.Some(sum / float64(s.period))
}

func trueRange(b types.EnrichedBar, prevClose float64) float64 {
	return math.Max(b.High-b.Low,
		math.Max(math.Abs(b.High-prevClose), math.Abs(b.Low-prevClose)))
}

package indicator

import (
	"math"

	"github.com/moznion/go-optional"
	"github.com/quantflare/twse-backtest/internal/types"
)

// rsiStage computes the Relative Strength Index with Wilder smoothing.
//
// The average gain/loss are seeded at index == period with the simple mean of
// gains/losses over bars 1..period, then updated with smoothing factor
// alpha = 1/period. A computed RSI outside [0,100] or non-numeric is replaced
// by the previous bar's RSI, or 50 when no previous value exists. That
// substitution is the documented fallback policy, not a silent repair.
type rsiStage struct {
	period int
}

func newRSIStage(period int) *rsiStage {
	return &rsiStage{period: period}
}

func (s *rsiStage) step(bars []types.EnrichedBar, i int) {
	if i < s.period {
		return
	}

	var avgGain, avgLoss float64

	if i == s.period {
		for j := 1; j <= s.period; j++ {
			change := bars[j].Close - bars[j-1].Close
			if change > 0 {
				avgGain += change
			} else {
				avgLoss += -change
			}
		}

		avgGain /= float64(s.period)
		avgLoss /= float64(s.period)
	} else {
		change := bars[i].Close - bars[i-1].Close
		gain := math.Max(change, 0)
		loss := math.Max(-change, 0)

		alpha := 1.0 / float64(s.period)
		avgGain = (1-alpha)*bars[i-1].AvgGain.Unwrap() + alpha*gain
		avgLoss = (1-alpha)*bars[i-1].AvgLoss.Unwrap() + alpha*loss
	}

	bars[i].AvgGain = optional.Some(avgGain)
	bars[i].AvgLoss = optional.Some(avgLoss)

	rsi := 100.0
	if avgLoss > 0 {
		rsi = 100 - 100/(1+avgGain/avgLoss)
	}

	if math.IsNaN(rsi) || rsi < 0 || rsi > 100 {
		if bars[i-1].RSI.IsSome() {
			rsi = bars[i-1].RSI.Unwrap()
		} else {
			rsi = 50
		}
	}

	bars[i].RSI = optional.Some(rsi)
}

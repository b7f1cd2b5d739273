package indicator

import (
	"github.com/moznion/go-optional"
	"github.com/quantflare/twse-backtest/internal/types"
)

// maStage computes the trailing-window close averages (MA5, MA20 and the
// optional MA60). Each becomes defined once its window is full.
type maStage struct {
	enableMA60 bool
}

func newMAStage(enableMA60 bool) *maStage {
	return &maStage{enableMA60: enableMA60}
}

func (s *maStage) step(bars []types.EnrichedBar, i int) {
	if v, ok := trailingMean(bars, i, 5, closeOf); ok {
		bars[i].MA5 = optional.Some(v)
	}

	if v, ok := trailingMean(bars, i, 20, closeOf); ok {
		bars[i].MA20 = optional.Some(v)
	}

	if s.enableMA60 {
		if v, ok := trailingMean(bars, i, 60, closeOf); ok {
			bars[i].MA60 = optional.Some(v)
		}
	}
}

func closeOf(b types.EnrichedBar) float64 {
	return b.Close
}

// trailingMean returns the simple mean of field over the n bars ending at i,
// or ok=false while the window is not yet full.
func trailingMean(bars []types.EnrichedBar, i, n int, field func(types.EnrichedBar) float64) (float64, bool) {
	if i < n-1 {
		return 0, false
	}

	var sum float64
	for j := i - n + 1; j <= i; j++ {
		sum += field(bars[j])
	}

	return sum / float64(n), true
}

package indicator

import (
	"github.com/moznion/go-optional"
	"github.com/quantflare/twse-backtest/internal/types"
)

// macdStage computes the MACD family. Both EMAs are seeded at index 0 with
// that bar's close (not left undefined); the MACD line becomes defined once
// index >= slow-1. The signal line is the MACD's own EMA, seeded with the
// first defined MACD value.
type macdStage struct {
	fast   int
	slow   int
	signal int

	signalEMA    float64
	signalSeeded bool
}

func newMACDStage(fast, slow, signal int) *macdStage {
	return &macdStage{
		fast:         fast,
		slow:         slow,
		signal:       signal,
		signalEMA:    0,
		signalSeeded: false,
	}
}

func (s *macdStage) step(bars []types.EnrichedBar, i int) {
	close := bars[i].Close

	if i == 0 {
		bars[i].EMAFast = close
		bars[i].EMASlow = close
	} else {
		fastMult := 2.0 / float64(s.fast+1)
		slowMult := 2.0 / float64(s.slow+1)
		bars[i].EMAFast = bars[i-1].EMAFast + fastMult*(close-bars[i-1].EMAFast)
		bars[i].EMASlow = bars[i-1].EMASlow + slowMult*(close-bars[i-1].EMASlow)
	}

	if i < s.slow-1 {
		return
	}

	macd := bars[i].EMAFast - bars[i].EMASlow

	if !s.signalSeeded {
		s.signalEMA = macd
		s.signalSeeded = true
	} else {
		signalMult := 2.0 / float64(s.signal+1)
		s.signalEMA += signalMult * (macd - s.signalEMA)
	}

	bars[i].MACD = optional.Some(macd)
	bars[i].MACDSignal = optional.Some(s.signalEMA)
	bars[i].MACDHistogram = optional.Some(macd - s.signalEMA)
}

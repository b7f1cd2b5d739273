package indicator

import (
	"math"

	"github.com/moznion/go-optional"
	"github.com/quantflare/twse-backtest/internal/types"
)

const volumeWindow = 20

// volumeStage computes the 20-bar volume average and the volume ratio. The
// ratio divides by max(average, 1) so a zero-volume window cannot divide by
// zero.
type volumeStage struct{}

func newVolumeStage() *volumeStage {
	return &volumeStage{}
}

func (s *volumeStage) step(bars []types.EnrichedBar, i int) {
	avg, ok := trailingMean(bars, i, volumeWindow, volumeOf)
	if !ok {
		return
	}

	bars[i].VolumeMA20 = optional.Some(avg)
	bars[i].VolumeRatio = optional.Some(bars[i].Volume / math.Max(avg, 1))
}

func volumeOf(b types.EnrichedBar) float64 {
	return b.Volume
}

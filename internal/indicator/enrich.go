// Package indicator derives technical indicator values from raw daily price
// bars. Enrichment is an explicit transform: the input bars are never
// mutated, and the returned series is read-only for the rest of the run.
package indicator

import "github.com/quantflare/twse-backtest/internal/types"

// stage computes one indicator family for index i. A stage may only read
// bars at or before i, never after it.
type stage interface {
	step(bars []types.EnrichedBar, i int)
}

// Enrich transforms an ascending PriceBar sequence for one instrument into
// an EnrichedBar sequence of identical length and order. All indicators are
// computed in a single forward pass; optional families run only when enabled
// in the config.
func Enrich(bars []types.PriceBar, cfg Config) []types.EnrichedBar {
	out := make([]types.EnrichedBar, len(bars))
	for i := range bars {
		out[i].PriceBar = bars[i]
	}

	stages := []stage{
		newRSIStage(cfg.RSIPeriod),
		newMACDStage(cfg.MACDFast, cfg.MACDSlow, cfg.MACDSignal),
		newMAStage(cfg.EnableMA60),
		newVolumeStage(),
	}

	if cfg.EnableATR {
		stages = append(stages, newATRStage(cfg.ATRPeriod))
	}

	if cfg.EnablePriceMomentum {
		stages = append(stages, newMomentumStage(cfg.PriceMomentumPeriod))
	}

	for i := range out {
		for _, s := range stages {
			s.step(out, i)
		}
	}

	return out
}

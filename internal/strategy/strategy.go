// Package strategy defines the pure signal and sizing collaborators the
// simulation engine depends on. Evaluators hold no state and produce no side
// effects, so alternative rule sets can be substituted without touching the
// engine.
package strategy

import "github.com/quantflare/twse-backtest/internal/types"

// BuySignal is the decision returned by a buy evaluator. Confidence is in
// [0,1] and only meaningful when Signal is true.
type BuySignal struct {
	Signal     bool
	Confidence float64
	Reason     string
}

// SellSignal is the decision returned by a sell evaluator.
type SellSignal struct {
	Signal bool
	Reason string
}

// BuyEvaluator inspects an enriched bar (and its predecessor) and decides
// whether to open a position.
type BuyEvaluator interface {
	EvaluateBuy(bar types.EnrichedBar, prev types.EnrichedBar, params Params) BuySignal
}

// SellEvaluator inspects an enriched bar and the open position and decides
// whether to close it.
type SellEvaluator interface {
	EvaluateSell(bar types.EnrichedBar, position types.Position, holdingDays int, params Params) SellSignal
}

// Sizer converts a signal confidence and the current aggregate exposure into
// the fraction of available cash to deploy, in [0,1].
type Sizer interface {
	SizePosition(confidence float64, currentExposure float64, params Params) float64
}

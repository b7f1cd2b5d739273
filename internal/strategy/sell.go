package strategy

import (
	"fmt"

	"github.com/quantflare/twse-backtest/internal/types"
)

// TrailingStopSell is the default sell rule. Exits are checked in priority
// order: trailing stop, ATR stop, momentum decay, overbought blow-off, and
// finally the maximum holding period.
type TrailingStopSell struct{}

// NewTrailingStopSell returns the default sell evaluator.
func NewTrailingStopSell() SellEvaluator {
	return &TrailingStopSell{}
}

// EvaluateSell implements SellEvaluator.
func (e *TrailingStopSell) EvaluateSell(bar types.EnrichedBar, position types.Position, holdingDays int, params Params) SellSignal {
	if params.EnableTrailingStop && bar.Close <= position.TrailingStop {
		return SellSignal{
			Signal: true,
			Reason: fmt.Sprintf("trailing stop hit: close %.2f <= stop %.2f", bar.Close, position.TrailingStop),
		}
	}

	if params.EnableATRStop && position.ATRStop.IsSome() && bar.Close <= position.ATRStop.Unwrap() {
		return SellSignal{
			Signal: true,
			Reason: fmt.Sprintf("ATR stop hit: close %.2f <= stop %.2f", bar.Close, position.ATRStop.Unwrap()),
		}
	}

	if bar.MACDHistogram.IsSome() && bar.MA5.IsSome() {
		if bar.MACDHistogram.Unwrap() < 0 && bar.Close < bar.MA5.Unwrap() {
			return SellSignal{
				Signal: true,
				Reason: fmt.Sprintf("momentum decayed: MACD histogram %.4f below zero and close under MA5", bar.MACDHistogram.Unwrap()),
			}
		}
	}

	if bar.RSI.IsSome() && bar.RSI.Unwrap() >= 85 {
		return SellSignal{
			Signal: true,
			Reason: fmt.Sprintf("RSI overbought (%.1f)", bar.RSI.Unwrap()),
		}
	}

	if params.MaxHoldingDays > 0 && holdingDays >= params.MaxHoldingDays {
		return SellSignal{
			Signal: true,
			Reason: fmt.Sprintf("max holding period reached (%d days)", holdingDays),
		}
	}

	return SellSignal{Signal: false, Reason: ""}
}

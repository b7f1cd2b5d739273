package strategy

import (
	"fmt"
	"math"

	"github.com/quantflare/twse-backtest/internal/types"
)

// MACDCrossBuy is the default buy rule: the MACD histogram crossing above
// zero, confirmed by trend (close above MA20, optionally MA60), an RSI that
// still has headroom, and above-average volume.
type MACDCrossBuy struct{}

// NewMACDCrossBuy returns the default buy evaluator.
func NewMACDCrossBuy() BuyEvaluator {
	return &MACDCrossBuy{}
}

// EvaluateBuy implements BuyEvaluator.
func (e *MACDCrossBuy) EvaluateBuy(bar types.EnrichedBar, prev types.EnrichedBar, params Params) BuySignal {
	if bar.MACDHistogram.IsNone() || prev.MACDHistogram.IsNone() ||
		bar.RSI.IsNone() || bar.MA20.IsNone() || bar.VolumeRatio.IsNone() {
		return BuySignal{Signal: false, Confidence: 0, Reason: "indicators not warmed up"}
	}

	hist := bar.MACDHistogram.Unwrap()
	prevHist := prev.MACDHistogram.Unwrap()

	if !(prevHist <= 0 && hist > 0) {
		return BuySignal{Signal: false, Confidence: 0, Reason: "no MACD cross"}
	}

	rsi := bar.RSI.Unwrap()
	if rsi >= 70 {
		return BuySignal{Signal: false, Confidence: 0, Reason: fmt.Sprintf("RSI overbought (%.1f)", rsi)}
	}

	ma20 := bar.MA20.Unwrap()
	if bar.Close <= ma20 {
		return BuySignal{Signal: false, Confidence: 0, Reason: "close below MA20"}
	}

	if params.EnableMA60 && bar.MA60.IsSome() && bar.Close <= bar.MA60.Unwrap() {
		return BuySignal{Signal: false, Confidence: 0, Reason: "close below MA60"}
	}

	if params.EnablePriceMomentum {
		if bar.PriceMomentum.IsNone() || bar.PriceMomentum.Unwrap() <= 0 {
			return BuySignal{Signal: false, Confidence: 0, Reason: "momentum not positive"}
		}
	}

	volRatio := bar.VolumeRatio.Unwrap()
	if volRatio < 1.0 {
		return BuySignal{Signal: false, Confidence: 0, Reason: fmt.Sprintf("volume ratio too low (%.2f)", volRatio)}
	}

	confidence := buyConfidence(rsi, volRatio, hist, bar.Close)
	reason := fmt.Sprintf(
		"MACD histogram crossed above zero (%.4f), close %.2f above MA20 %.2f, RSI %.1f, volume ratio %.2f",
		hist, bar.Close, ma20, rsi, volRatio)

	return BuySignal{Signal: true, Confidence: confidence, Reason: reason}
}

// buyConfidence folds the confirming indicators into a [0,1] score: a base
// for the cross itself, plus RSI headroom, volume expansion and the relative
// size of the histogram jump.
func buyConfidence(rsi, volRatio, hist, close float64) float64 {
	score := 0.4
	score += 0.2 * (70 - rsi) / 70
	score += 0.2 * math.Min(volRatio/2, 1)

	if close > 0 {
		score += 0.2 * math.Min(hist/close*100, 1)
	}

	return math.Min(math.Max(score, 0), 1)
}

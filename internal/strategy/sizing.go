package strategy

import "math"

// ConfidenceSizer scales the base position size by signal confidence and
// shrinks it as aggregate exposure approaches the cap.
type ConfidenceSizer struct{}

// NewConfidenceSizer returns the default sizer.
func NewConfidenceSizer() Sizer {
	return &ConfidenceSizer{}
}

// SizePosition implements Sizer. Confidence 0.5 deploys exactly the base
// size; lower confidence shrinks it, higher confidence grows it up to 1.5x.
// The result never lets a fill push exposure past MaxExposure and never
// exceeds MaxPositionSize.
func (s *ConfidenceSizer) SizePosition(confidence float64, currentExposure float64, params Params) float64 {
	if currentExposure >= params.MaxExposure {
		return 0
	}

	confidence = math.Min(math.Max(confidence, 0), 1)
	fraction := params.BasePositionSize * (0.5 + confidence)

	headroom := params.MaxExposure - currentExposure
	fraction = math.Min(fraction, headroom)
	fraction = math.Min(fraction, params.MaxPositionSize)

	return math.Min(math.Max(fraction, 0), 1)
}

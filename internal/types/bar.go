package types

import (
	"time"

	"github.com/moznion/go-optional"
)

// PriceBar is one daily OHLCV bar for one instrument. Bars for an instrument
// are ordered ascending by date, one bar per trading day.
type PriceBar struct {
	Symbol string    `csv:"symbol" yaml:"symbol"`
	Date   time.Time `csv:"date" yaml:"date"`
	Open   float64   `csv:"open" yaml:"open"`
	High   float64   `csv:"high" yaml:"high"`
	Low    float64   `csv:"low" yaml:"low"`
	Close  float64   `csv:"close" yaml:"close"`
	Volume float64   `csv:"volume" yaml:"volume"`
}

// EnrichedBar is a PriceBar plus derived indicator values. Derived fields are
// computed once by the indicator engine and read-only afterwards. Fields that
// depend on a lookback window are None until the window has elapsed; they are
// never computed from bars after their own index.
//
// The fast/slow EMAs are seeded with the first close, so they are plain
// floats; everything else carries its warmup state explicitly.
type EnrichedBar struct {
	PriceBar

	AvgGain optional.Option[float64]
	AvgLoss optional.Option[float64]
	RSI     optional.Option[float64]

	EMAFast       float64
	EMASlow       float64
	MACD          optional.Option[float64]
	MACDSignal    optional.Option[float64]
	MACDHistogram optional.Option[float64]

	MA5  optional.Option[float64]
	MA20 optional.Option[float64]
	MA60 optional.Option[float64]

	VolumeMA20  optional.Option[float64]
	VolumeRatio optional.Option[float64]

	ATR           optional.Option[float64]
	PriceMomentum optional.Option[float64]
}

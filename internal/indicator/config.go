package indicator

// Config selects the indicator periods and optional indicator families
// computed during enrichment.
type Config struct {
	RSIPeriod  int
	MACDFast   int
	MACDSlow   int
	MACDSignal int

	EnableMA60 bool

	EnableATR bool
	ATRPeriod int

	EnablePriceMomentum bool
	PriceMomentumPeriod int
}

// DefaultConfig returns the standard daily-bar configuration.
func DefaultConfig() Config {
	return Config{
		RSIPeriod:           14,
		MACDFast:            12,
		MACDSlow:            26,
		MACDSignal:          9,
		EnableMA60:          false,
		EnableATR:           false,
		ATRPeriod:           14,
		EnablePriceMomentum: false,
		PriceMomentumPeriod: 20,
	}
}

// WarmupIndex is the first bar index at which the strategy is allowed to act:
// the MACD signal line needs macdSlow+macdSignal bars to settle.
func (c Config) WarmupIndex() int {
	return c.MACDSlow + c.MACDSignal
}

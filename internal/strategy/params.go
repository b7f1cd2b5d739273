package strategy

import (
	"github.com/go-playground/validator/v10"

	"github.com/quantflare/twse-backtest/internal/indicator"
	pkgerrors "github.com/quantflare/twse-backtest/pkg/errors"
)

// Params is the full strategy parameter set for one run.
type Params struct {
	RSIPeriod  int `yaml:"rsi_period" json:"rsi_period" jsonschema:"title=RSI Period,minimum=2" validate:"required,gt=1"`
	MACDFast   int `yaml:"macd_fast" json:"macd_fast" jsonschema:"title=MACD Fast Period" validate:"required,gt=0"`
	MACDSlow   int `yaml:"macd_slow" json:"macd_slow" jsonschema:"title=MACD Slow Period" validate:"required,gtfield=MACDFast"`
	MACDSignal int `yaml:"macd_signal" json:"macd_signal" jsonschema:"title=MACD Signal Period" validate:"required,gt=0"`

	// MaxPositionSize is the hard per-position cap as a fraction of cash.
	MaxPositionSize float64 `yaml:"max_position_size" json:"max_position_size" jsonschema:"title=Max Position Size,minimum=0,maximum=1" validate:"required,gt=0,lte=1"`
	// BasePositionSize is the sizing baseline scaled by signal confidence.
	BasePositionSize float64 `yaml:"base_position_size" json:"base_position_size" jsonschema:"title=Base Position Size,minimum=0,maximum=1" validate:"required,gt=0,lte=1"`
	// MaxExposure caps the aggregate fraction of capital committed to open
	// positions; sizing returns zero once it is reached.
	MaxExposure float64 `yaml:"max_exposure" json:"max_exposure" jsonschema:"title=Max Exposure,minimum=0,maximum=1" validate:"required,gt=0,lte=1"`

	EnableTrailingStop      bool    `yaml:"enable_trailing_stop" json:"enable_trailing_stop"`
	TrailingStopPercent     float64 `yaml:"trailing_stop_percent" json:"trailing_stop_percent" jsonschema:"title=Trailing Stop Percent" validate:"gte=0,lt=1"`
	TrailingActivatePercent float64 `yaml:"trailing_activate_percent" json:"trailing_activate_percent" jsonschema:"title=Trailing Activation Threshold" validate:"gte=0"`

	EnableATRStop bool    `yaml:"enable_atr_stop" json:"enable_atr_stop"`
	ATRPeriod     int     `yaml:"atr_period" json:"atr_period" validate:"required,gt=0"`
	ATRMultiplier float64 `yaml:"atr_multiplier" json:"atr_multiplier" validate:"gte=0"`

	EnablePriceMomentum bool `yaml:"enable_price_momentum" json:"enable_price_momentum"`
	PriceMomentumPeriod int  `yaml:"price_momentum_period" json:"price_momentum_period" validate:"required,gt=0"`

	EnableMA60 bool `yaml:"enable_ma60" json:"enable_ma60"`

	// MaxHoldingDays forces an exit after this many calendar days; zero
	// disables the rule.
	MaxHoldingDays int `yaml:"max_holding_days" json:"max_holding_days" validate:"gte=0"`
}

// DefaultParams returns the standard daily swing configuration.
func DefaultParams() Params {
	return Params{
		RSIPeriod:               14,
		MACDFast:                12,
		MACDSlow:                26,
		MACDSignal:              9,
		MaxPositionSize:         0.3,
		BasePositionSize:        0.2,
		MaxExposure:             0.9,
		EnableTrailingStop:      true,
		TrailingStopPercent:     0.08,
		TrailingActivatePercent: 0.10,
		EnableATRStop:           false,
		ATRPeriod:               14,
		ATRMultiplier:           2.0,
		EnablePriceMomentum:     false,
		PriceMomentumPeriod:     20,
		EnableMA60:              false,
		MaxHoldingDays:          60,
	}
}

// Validate checks the parameter set for internal consistency.
func (p Params) Validate() error {
	validate := validator.New()
	if err := validate.Struct(p); err != nil {
		return pkgerrors.Wrap(pkgerrors.ErrCodeStrategyConfig, "invalid strategy parameters", err)
	}

	return nil
}

// IndicatorConfig maps the parameter set onto the indicator engine's config.
func (p Params) IndicatorConfig() indicator.Config {
	return indicator.Config{
		RSIPeriod:           p.RSIPeriod,
		MACDFast:            p.MACDFast,
		MACDSlow:            p.MACDSlow,
		MACDSignal:          p.MACDSignal,
		EnableMA60:          p.EnableMA60,
		EnableATR:           p.EnableATRStop,
		ATRPeriod:           p.ATRPeriod,
		EnablePriceMomentum: p.EnablePriceMomentum,
		PriceMomentumPeriod: p.PriceMomentumPeriod,
	}
}

package engine

import (
	"encoding/json"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/invopop/jsonschema"
	"gopkg.in/yaml.v3"

	pkgerrors "github.com/quantflare/twse-backtest/pkg/errors"
	"github.com/quantflare/twse-backtest/internal/strategy"
)

// BacktestConfig is the top-level configuration for a single backtest run.
type BacktestConfig struct {
	// InitialCapital is the starting cash balance.
	InitialCapital float64 `yaml:"initial_capital" json:"initial_capital" jsonschema:"title=Initial capital,description=Starting cash balance" validate:"required,gt=0"`
	// Symbols is the instrument universe, in declaration order. The daily
	// loop visits instruments in this order.
	Symbols []string `yaml:"symbols" json:"symbols" jsonschema:"title=Symbols,description=Instrument universe in evaluation order" validate:"required,min=1,dive,required"`
	// StartDate and EndDate bound the simulation window, inclusive.
	StartDate time.Time `yaml:"start_date" json:"start_date" jsonschema:"title=Start date" validate:"required"`
	EndDate   time.Time `yaml:"end_date" json:"end_date" jsonschema:"title=End date" validate:"required"`
	// Strategy holds the signal and sizing parameters.
	Strategy strategy.Params `yaml:"strategy" json:"strategy" jsonschema:"title=Strategy parameters"`
	// ResultsFolder, when set, is where the report and trade ledger are
	// written after the run.
	ResultsFolder string `yaml:"results_folder" json:"results_folder" jsonschema:"title=Results folder"`
}

// DefaultConfig returns a config with the default strategy parameters and a
// starting capital of one million. Symbols and dates must still be provided.
func DefaultConfig() BacktestConfig {
	return BacktestConfig{
		InitialCapital: 1_000_000,
		Strategy:       strategy.DefaultParams(),
		ResultsFolder:  "results",
	}
}

// ParseConfig decodes a YAML document over the defaults and validates it.
func ParseConfig(data []byte) (BacktestConfig, error) {
	config := DefaultConfig()
	if err := yaml.Unmarshal(data, &config); err != nil {
		return BacktestConfig{}, pkgerrors.Wrap(pkgerrors.ErrCodeInvalidConfig, "failed to decode backtest config", err)
	}
	if err := config.Validate(); err != nil {
		return BacktestConfig{}, err
	}
	return config, nil
}

// LoadConfig reads and parses a YAML config file.
func LoadConfig(path string) (BacktestConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return BacktestConfig{}, pkgerrors.Wrapf(pkgerrors.ErrCodeInvalidConfig, err, "failed to read config file %s", path)
	}
	return ParseConfig(data)
}

// Validate checks the structural constraints and the embedded strategy
// parameters.
func (c *BacktestConfig) Validate() error {
	validate := validator.New()
	if err := validate.Struct(c); err != nil {
		return pkgerrors.Wrap(pkgerrors.ErrCodeInvalidConfig, "invalid backtest config", err)
	}
	if !c.EndDate.After(c.StartDate) {
		return pkgerrors.Newf(pkgerrors.ErrCodeInvalidDateRange, "end date %s is not after start date %s",
			c.EndDate.Format(time.DateOnly), c.StartDate.Format(time.DateOnly))
	}
	return c.Strategy.Validate()
}

// GenerateSchemaJSON renders the JSON schema for the config file, for editor
// completion against results/backtest.schema.json.
func GenerateSchemaJSON() (string, error) {
	reflector := jsonschema.Reflector{
		ExpandedStruct: true,
		DoNotReference: true,
	}
	schema := reflector.Reflect(&BacktestConfig{})
	schema.Title = "Backtest engine v1 config"
	data, err := json.MarshalIndent(schema, "", "  ")
	if err != nil {
		return "", pkgerrors.Wrap(pkgerrors.ErrCodeInvalidConfig, "failed to marshal config schema", err)
	}
	return string(data), nil
}

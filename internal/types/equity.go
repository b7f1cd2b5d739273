package types

import "time"

// EquityPoint is the mark-to-market snapshot for one trading day, appended in
// date order and never mutated after append. TotalValue == Cash + PositionsValue.
type EquityPoint struct {
	Date           time.Time `yaml:"date" csv:"date"`
	TotalValue     float64   `yaml:"total_value" csv:"total_value"`
	Cash           float64   `yaml:"cash" csv:"cash"`
	PositionsValue float64   `yaml:"positions_value" csv:"positions_value"`
}

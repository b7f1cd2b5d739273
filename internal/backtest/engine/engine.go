package engine

import (
	"context"

	"github.com/moznion/go-optional"

	"github.com/quantflare/twse-backtest/internal/types"
)

// OnProgress is invoked after every simulated trading day with the number of
// days processed so far and the total number of days in the run.
type OnProgress func(current int, total int)

// Engine runs a full backtest over a configured universe and date range and
// returns the aggregated results.
type Engine interface {
	// Run executes the simulation. The progress callback is optional; pass
	// optional.None to run silently.
	Run(ctx context.Context, onProgress optional.Option[OnProgress]) (*types.Report, error)
}

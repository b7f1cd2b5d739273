// Package marketdata retrieves historical daily price bars. Providers are
// external collaborators of the simulation: retrieval may run concurrently
// per instrument and must fully complete before the simulation loop starts.
package marketdata

import (
	"context"
	"time"

	"github.com/quantflare/twse-backtest/internal/types"
)

// Provider fetches daily bars for one instrument over an inclusive date
// range. Implementations return bars ordered ascending by date, one bar per
// trading day. An empty result is valid; the caller decides whether an
// instrument without data is fatal.
type Provider interface {
	// Name identifies the provider in logs.
	Name() string
	// FetchBars retrieves the daily bars for symbol in [start, end].
	FetchBars(ctx context.Context, symbol string, start, end time.Time) ([]types.PriceBar, error)
}

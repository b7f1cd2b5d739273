package marketdata

import (
	"context"
	"time"

	polygon "github.com/polygon-io/client-go/rest"
	"github.com/polygon-io/client-go/rest/models"

	"github.com/quantflare/twse-backtest/internal/calendar"
	"github.com/quantflare/twse-backtest/internal/types"
	"github.com/quantflare/twse-backtest/pkg/errors"
)

// PolygonProvider fetches daily aggregates from the Polygon REST API.
type PolygonProvider struct {
	client *polygon.Client
}

// NewPolygonProvider creates a Polygon-backed provider. The API key is
// required.
func NewPolygonProvider(apiKey string) (Provider, error) {
	if apiKey == "" {
		return nil, errors.New(errors.ErrCodeInvalidParameter, "polygon api key is required")
	}

	return &PolygonProvider{client: polygon.New(apiKey)}, nil
}

// Name implements Provider.
func (p *PolygonProvider) Name() string {
	return "polygon"
}

// FetchBars implements Provider.
func (p *PolygonProvider) FetchBars(ctx context.Context, symbol string, start, end time.Time) ([]types.PriceBar, error) {
	//nolint:exhaustruct // third-party struct with many optional fields
	params := models.ListAggsParams{
		Ticker:     symbol,
		Multiplier: 1,
		Timespan:   models.Day,
		From:       models.Millis(start),
		To:         models.Millis(end),
	}.WithLimit(50000)

	iter := p.client.ListAggs(ctx, params)

	var bars []types.PriceBar

	for iter.Next() {
		agg := iter.Item()
		bars = append(bars, types.PriceBar{
			Symbol: symbol,
			Date:   calendar.Normalize(time.Time(agg.Timestamp)),
			Open:   agg.Open,
			High:   agg.High,
			Low:    agg.Low,
			Close:  agg.Close,
			Volume: agg.Volume,
		})
	}

	if iter.Err() != nil {
		return nil, errors.Wrapf(errors.ErrCodeFetchFailed, iter.Err(),
			"failed to fetch polygon aggregates for %s", symbol)
	}

	return bars, nil
}

package marketdata

import (
	"context"
	"strconv"
	"time"

	binance "github.com/adshao/go-binance/v2"

	"github.com/quantflare/twse-backtest/internal/calendar"
	"github.com/quantflare/twse-backtest/internal/types"
	"github.com/quantflare/twse-backtest/pkg/errors"
)

// binancePageSize is the kline page size Binance returns per request.
const binancePageSize = 500

// BinanceProvider fetches daily klines from the public Binance API. No API
// key is needed for historical klines.
type BinanceProvider struct {
	client *binance.Client
}

// NewBinanceProvider creates a Binance-backed provider.
func NewBinanceProvider() Provider {
	return &BinanceProvider{client: binance.NewClient("", "")}
}

// Name implements Provider.
func (p *BinanceProvider) Name() string {
	return "binance"
}

// FetchBars implements Provider. Binance pages at 500 klines per request, so
// the range is walked forward until the last page comes back short.
func (p *BinanceProvider) FetchBars(ctx context.Context, symbol string, start, end time.Time) ([]types.PriceBar, error) {
	var bars []types.PriceBar

	currentStart := start.UnixMilli()
	endMillis := end.UnixMilli()

	for {
		klines, err := p.client.NewKlinesService().
			Symbol(symbol).
			Interval("1d").
			StartTime(currentStart).
			EndTime(endMillis).
			Do(ctx)
		if err != nil {
			return nil, errors.Wrapf(errors.ErrCodeFetchFailed, err,
				"failed to fetch binance klines for %s", symbol)
		}

		for _, k := range klines {
			bar, err := klineToBar(symbol, k)
			if err != nil {
				return nil, err
			}

			bars = append(bars, bar)
		}

		if len(klines) < binancePageSize {
			break
		}

		currentStart = klines[len(klines)-1].CloseTime + 1
	}

	return bars, nil
}

func klineToBar(symbol string, k *binance.Kline) (types.PriceBar, error) {
	open, err := strconv.ParseFloat(k.Open, 64)
	if err != nil {
		return types.PriceBar{}, errors.Wrapf(errors.ErrCodeParseFailed, err, "invalid open %q", k.Open)
	}

	high, err := strconv.ParseFloat(k.High, 64)
	if err != nil {
		return types.PriceBar{}, errors.Wrapf(errors.ErrCodeParseFailed, err, "invalid high %q", k.High)
	}

	low, err := strconv.ParseFloat(k.Low, 64)
	if err != nil {
		return types.PriceBar{}, errors.Wrapf(errors.ErrCodeParseFailed, err, "invalid low %q", k.Low)
	}

	closePrice, err := strconv.ParseFloat(k.Close, 64)
	if err != nil {
		return types.PriceBar{}, errors.Wrapf(errors.ErrCodeParseFailed, err, "invalid close %q", k.Close)
	}

	volume, err := strconv.ParseFloat(k.Volume, 64)
	if err != nil {
		return types.PriceBar{}, errors.Wrapf(errors.ErrCodeParseFailed, err, "invalid volume %q", k.Volume)
	}

	return types.PriceBar{
		Symbol: symbol,
		Date:   calendar.Normalize(time.UnixMilli(k.OpenTime).UTC()),
		Open:   open,
		High:   high,
		Low:    low,
		Close:  closePrice,
		Volume: volume,
	}, nil
}

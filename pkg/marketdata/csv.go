package marketdata

import (
	"context"
	"encoding/csv"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"time"

	"github.com/quantflare/twse-backtest/internal/calendar"
	"github.com/quantflare/twse-backtest/internal/types"
	"github.com/quantflare/twse-backtest/pkg/errors"
)

// csvDateLayout is the date format expected in the first column.
const csvDateLayout = "2006-01-02"

// CSVProvider reads daily bars from per-symbol CSV files in a directory:
// <dir>/<symbol>.csv with a header row and columns
// date,open,high,low,close,volume.
type CSVProvider struct {
	dir string
}

// NewCSVProvider creates a provider over the given directory.
func NewCSVProvider(dir string) Provider {
	return &CSVProvider{dir: dir}
}

// Name implements Provider.
func (p *CSVProvider) Name() string {
	return "csv"
}

// FetchBars implements Provider.
func (p *CSVProvider) FetchBars(_ context.Context, symbol string, start, end time.Time) ([]types.PriceBar, error) {
	path := filepath.Join(p.dir, symbol+".csv")

	file, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(errors.ErrCodeFetchFailed, err, "failed to open %s", path)
	}
	defer file.Close()

	reader := csv.NewReader(file)

	// Skip the header row.
	if _, err := reader.Read(); err != nil {
		return nil, errors.Wrapf(errors.ErrCodeParseFailed, err, "failed to read header of %s", path)
	}

	start = calendar.Normalize(start)
	end = calendar.Normalize(end)

	var bars []types.PriceBar

	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}

		if err != nil {
			return nil, errors.Wrapf(errors.ErrCodeParseFailed, err, "failed to read row of %s", path)
		}

		bar, err := recordToBar(symbol, record)
		if err != nil {
			return nil, err
		}

		if bar.Date.Before(start) || bar.Date.After(end) {
			continue
		}

		bars = append(bars, bar)
	}

	sort.Slice(bars, func(i, j int) bool { return bars[i].Date.Before(bars[j].Date) })

	return bars, nil
}

func recordToBar(symbol string, record []string) (types.PriceBar, error) {
	if len(record) < 6 {
		return types.PriceBar{}, errors.Newf(errors.ErrCodeParseFailed,
			"expected 6 columns (date,open,high,low,close,volume), got %d", len(record))
	}

	date, err := time.Parse(csvDateLayout, record[0])
	if err != nil {
		return types.PriceBar{}, errors.Wrapf(errors.ErrCodeParseFailed, err, "invalid date %q", record[0])
	}

	fields := make([]float64, 5)

	for i, raw := range record[1:6] {
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return types.PriceBar{}, errors.Wrapf(errors.ErrCodeParseFailed, err, "invalid value %q", raw)
		}

		fields[i] = v
	}

	return types.PriceBar{
		Symbol: symbol,
		Date:   calendar.Normalize(date),
		Open:   fields[0],
		High:   fields[1],
		Low:    fields[2],
		Close:  fields[3],
		Volume: fields[4],
	}, nil
}

// Package transform maps the raw provider schema onto the canonical row
// shape persisted in trading_data.
package transform

import (
	"sort"
	"strings"
	"time"

	"github.com/Omntg/tv-supabase-integration/extract"
	"github.com/Omntg/tv-supabase-integration/models"
)

// Normalize converts a raw history series into daily bars for one symbol.
// The timestamp index becomes a date-only column (UTC), the four numeric
// fields are selected, and any bar with a missing field is dropped rather
// than failing the whole symbol. Output is ascending by date.
func Normalize(series *extract.Series, symbol string) []models.Bar {
	if series == nil {
		return nil
	}

	code := strings.ToUpper(symbol)
	bars := make([]models.Bar, 0, len(series.Timestamps))

	for i, ts := range series.Timestamps {
		high, ok := at(series.Highs, i)
		if !ok {
			continue
		}
		low, ok := at(series.Lows, i)
		if !ok {
			continue
		}
		closing, ok := at(series.Closes, i)
		if !ok {
			continue
		}
		volume, ok := at(series.Volumes, i)
		if !ok {
			continue
		}

		bars = append(bars, models.Bar{
			Code:   code,
			Date:   time.Unix(ts, 0).UTC().Format(models.DateLayout),
			High:   high,
			Low:    low,
			Close:  closing,
			Volume: int64(volume),
		})
	}

	sort.Slice(bars, func(i, j int) bool {
		return bars[i].Date < bars[j].Date
	})

	return bars
}

// at reads the i-th entry of a nullable column. A short column or a JSON
// null both count as a missing field.
func at(column []*float64, i int) (float64, bool) {
	if i >= len(column) || column[i] == nil {
		return 0, false
	}
	return *column[i], true
}

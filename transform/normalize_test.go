package transform

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/Omntg/tv-supabase-integration/extract"
	"github.com/Omntg/tv-supabase-integration/models"
)

func f(v float64) *float64 { return &v }

func ts(value string) int64 {
	day, err := time.Parse("2006-01-02", value)
	if err != nil {
		panic(err)
	}
	return day.Unix()
}

func TestNormalize(t *testing.T) {
	tests := []struct {
		name   string
		series *extract.Series
		symbol string
		want   []models.Bar
	}{
		{
			name:   "nil series yields nothing",
			series: nil,
			symbol: "thyao",
			want:   nil,
		},
		{
			name: "valid rows sorted ascending with code stamped uppercase",
			series: &extract.Series{
				Timestamps: []int64{ts("2025-01-07"), ts("2025-01-06")},
				Highs:      []*float64{f(11.5), f(10.5)},
				Lows:       []*float64{f(10.9), f(9.8)},
				Closes:     []*float64{f(11.2), f(10.1)},
				Volumes:    []*float64{f(2000), f(1000)},
			},
			symbol: "thyao",
			want: []models.Bar{
				{Code: "THYAO", Date: "2025-01-06", High: 10.5, Low: 9.8, Close: 10.1, Volume: 1000},
				{Code: "THYAO", Date: "2025-01-07", High: 11.5, Low: 10.9, Close: 11.2, Volume: 2000},
			},
		},
		{
			name: "row with missing volume is dropped, valid rows kept",
			series: &extract.Series{
				Timestamps: []int64{ts("2025-01-06"), ts("2025-01-07"), ts("2025-01-08")},
				Highs:      []*float64{f(10.5), f(11.5), f(12.5)},
				Lows:       []*float64{f(9.8), f(10.9), f(11.9)},
				Closes:     []*float64{f(10.1), f(11.2), f(12.2)},
				Volumes:    []*float64{f(1000), nil, f(3000)},
			},
			symbol: "GARAN",
			want: []models.Bar{
				{Code: "GARAN", Date: "2025-01-06", High: 10.5, Low: 9.8, Close: 10.1, Volume: 1000},
				{Code: "GARAN", Date: "2025-01-08", High: 12.5, Low: 11.9, Close: 12.2, Volume: 3000},
			},
		},
		{
			name: "short numeric column drops the tail rows",
			series: &extract.Series{
				Timestamps: []int64{ts("2025-01-06"), ts("2025-01-07")},
				Highs:      []*float64{f(10.5), f(11.5)},
				Lows:       []*float64{f(9.8), f(10.9)},
				Closes:     []*float64{f(10.1)},
				Volumes:    []*float64{f(1000), f(2000)},
			},
			symbol: "AKBNK",
			want: []models.Bar{
				{Code: "AKBNK", Date: "2025-01-06", High: 10.5, Low: 9.8, Close: 10.1, Volume: 1000},
			},
		},
		{
			name: "all rows incomplete yields empty sequence",
			series: &extract.Series{
				Timestamps: []int64{ts("2025-01-06")},
				Highs:      []*float64{nil},
				Lows:       []*float64{f(9.8)},
				Closes:     []*float64{f(10.1)},
				Volumes:    []*float64{f(1000)},
			},
			symbol: "SISE",
			want:   []models.Bar{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Normalize(tt.series, tt.symbol)
			if tt.want == nil {
				assert.Nil(t, got)
				return
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

package models

// DateLayout is the canonical date-only format used for the (code, date)
// uniqueness key. Bars are keyed on calendar dates, never on timestamps;
// the conversion happens once, at the normalization boundary.
const DateLayout = "2006-01-02"

// Bar is one normalized daily observation for a single instrument.
// JSON field names match the columns of the persisted trading_data table.
type Bar struct {
	Code   string  `json:"code"`
	Date   string  `json:"date"`
	High   float64 `json:"high_tl"`
	Low    float64 `json:"low_tl"`
	Close  float64 `json:"closing_tl"`
	Volume int64   `json:"volume_t"`
}

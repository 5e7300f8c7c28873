// Package load persists normalized bars into the trading_data table.
//
// Two backends implement Store: a Supabase (PostgREST) client for the hosted
// table, and a DuckDB database for local development, selected by the shape
// of the configured store URL.
package load

import (
	"log/slog"
	"strings"

	"github.com/Omntg/tv-supabase-integration/config"
	"github.com/Omntg/tv-supabase-integration/models"
)

// Store is the persisted counterpart of the normalized bars, keyed uniquely
// on (code, date).
type Store interface {
	// HasDate reports whether a row exists for the code on the given date.
	HasDate(code, date string) (bool, error)
	// LatestDate returns the most recent persisted date for the code, or ""
	// when the code has no rows at all.
	LatestDate(code string) (string, error)
	// ExistingDates returns the set of persisted dates for the code.
	ExistingDates(code string) (map[string]bool, error)
	// DeleteCode removes every row for the code.
	DeleteCode(code string) error
	// InsertBars inserts all bars, failing on conflicts.
	InsertBars(bars []models.Bar) error
	// UpsertBars inserts bars, silently skipping rows whose (code, date)
	// already exists. Existing rows are never updated in place.
	UpsertBars(bars []models.Bar) error
	Close() error
}

// NewStore picks the backend from the store URL: http(s) URLs are Supabase
// projects, everything else (md:, :memory:, a local path) is DuckDB.
func NewStore(cfg *config.Config, logger *slog.Logger) (Store, error) {
	if strings.HasPrefix(cfg.Store.URL, "http://") || strings.HasPrefix(cfg.Store.URL, "https://") {
		return NewSupabaseStore(cfg, logger), nil
	}
	return NewDuckDBStore(cfg, logger)
}

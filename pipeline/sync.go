// Package pipeline runs the per-symbol fetch/normalize/reconcile sequence
// across a bounded pool of workers and aggregates the outcome.
package pipeline

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/sourcegraph/conc/iter"

	"github.com/Omntg/tv-supabase-integration/config"
	"github.com/Omntg/tv-supabase-integration/extract"
	"github.com/Omntg/tv-supabase-integration/load"
	"github.com/Omntg/tv-supabase-integration/models"
	"github.com/Omntg/tv-supabase-integration/transform"
	"github.com/Omntg/tv-supabase-integration/utils"
)

// historyFetcher is the slice of the market-data client the pipeline needs.
type historyFetcher interface {
	GetHistory(symbol string, nBars int) (*extract.Series, error)
}

type Pipeline struct {
	Store        load.Store
	Client       historyFetcher
	Logger       *slog.Logger
	Run          *config.RunConfig
	TimeProvider utils.TimeProvider
}

func NewPipeline(cfg *config.Config, logger *slog.Logger) (*Pipeline, error) {
	store, err := load.NewStore(cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("error creating store: %w", err)
	}

	return &Pipeline{
		Store:        store,
		Client:       extract.NewTVClient(cfg, logger),
		Logger:       logger,
		Run:          &cfg.Run,
		TimeProvider: utils.RealTimeProvider{},
	}, nil
}

func (p *Pipeline) Close() {
	if err := p.Store.Close(); err != nil {
		p.Logger.Warn(fmt.Sprintf("Error closing store: %v", err))
	}
}

// SyncAll runs one pipeline task per symbol with at most Run.MaxWorkers
// concurrent tasks, blocking until every task has completed. A failing task
// never aborts the others; every outcome lands in stats.
func (p *Pipeline) SyncAll(codes []string, stats *ExecutionStats) {
	start := time.Now()
	p.Logger.Info(fmt.Sprintf("Processing %d symbols with %d workers", len(codes), p.Run.MaxWorkers))

	workers := iter.Iterator[string]{MaxGoroutines: p.Run.MaxWorkers}
	workers.ForEach(codes, func(code *string) {
		p.processSymbol(*code, stats)
	})

	stats.Finalize(time.Since(start))
}

// processSymbol is one unit of work: gate, fetch, normalize, reconcile.
// Steps are strictly sequential within the task.
func (p *Pipeline) processSymbol(code string, stats *ExecutionStats) {
	if p.gated() && !p.shouldFetch(code) {
		p.Logger.Info(fmt.Sprintf("Store already fresh, skipping fetch: %s", code))
		stats.RecordSkip()
		return
	}

	nBars := p.Run.FullRefreshBars
	if !p.Run.FullRefresh {
		nBars = p.Run.IncrementalBars
	}

	series, err := p.Client.GetHistory(code, nBars)
	if err != nil {
		if errors.Is(err, extract.ErrNoData) {
			p.Logger.Warn(fmt.Sprintf("No data found for symbol: %s", code))
			stats.RecordFailure("")
			return
		}
		p.Logger.Error(fmt.Sprintf("Could not fetch symbol %s: %v", code, err))
		stats.RecordFailure(fmt.Sprintf("%s: %v", code, err))
		return
	}

	bars := transform.Normalize(series, code)
	if len(bars) == 0 {
		p.Logger.Warn(fmt.Sprintf("No valid rows after normalization: %s", code))
		stats.RecordFailure("")
		return
	}

	newRecords, updatedRecords, err := p.reconcile(code, bars)
	if err != nil {
		p.Logger.Error(fmt.Sprintf("Could not write symbol %s: %v", code, err))
		stats.RecordFailure(fmt.Sprintf("%s: %v", code, err))
		return
	}

	stats.RecordSuccess(len(bars), newRecords, updatedRecords)
	p.Logger.Info(fmt.Sprintf("Completed %s: %d total, %d new", code, len(bars), newRecords))
}

// gated reports whether the freshness gate applies to this run. Full
// refreshes and runs with incremental gating disabled always fetch.
func (p *Pipeline) gated() bool {
	return p.Run.IncrementalFetch && !p.Run.FullRefresh
}

// shouldFetch consults the store for the given code. Any lookup failure is
// treated conservatively as stale: a fetch is never skipped because of an
// error.
func (p *Pipeline) shouldFetch(code string) bool {
	today := p.TimeProvider.Now().Format(models.DateLayout)

	hasToday, err := p.Store.HasDate(code, today)
	if err != nil {
		p.Logger.Warn(fmt.Sprintf("Freshness check failed for %s, fetching anyway: %v", code, err))
		return true
	}
	if hasToday {
		return false
	}

	latest, err := p.Store.LatestDate(code)
	if err != nil {
		p.Logger.Warn(fmt.Sprintf("Latest-date lookup failed for %s, fetching anyway: %v", code, err))
		return true
	}
	if latest == "" {
		// First-ever fetch for this code.
		return true
	}

	latestDay, err := time.Parse(models.DateLayout, latest)
	if err != nil {
		p.Logger.Warn(fmt.Sprintf("Malformed latest date %q for %s, fetching anyway", latest, code))
		return true
	}

	todayDay, _ := time.Parse(models.DateLayout, today)
	return todayDay.Sub(latestDay) >= 24*time.Hour
}

// reconcile writes normalized bars for one code using the run's strategy.
//
// Full refresh deletes everything for the code and reinserts the whole
// sequence. Incremental subtracts the persisted dates and fills only the
// gaps; it never updates an existing row in place, so the updated count is
// always zero.
func (p *Pipeline) reconcile(code string, bars []models.Bar) (int, int, error) {
	if p.Run.FullRefresh {
		if err := p.Store.DeleteCode(code); err != nil {
			return 0, 0, err
		}
		if err := p.Store.InsertBars(bars); err != nil {
			return 0, 0, err
		}
		return len(bars), 0, nil
	}

	existing, err := p.Store.ExistingDates(code)
	if err != nil {
		// The upsert is keyed on (code, date), so reading nothing here only
		// costs redundant writes that the conflict key then discards.
		p.Logger.Warn(fmt.Sprintf("Could not read existing dates for %s, upserting full sequence: %v", code, err))
		existing = map[string]bool{}
	}

	missing := make([]models.Bar, 0, len(bars))
	for _, bar := range bars {
		if !existing[bar.Date] {
			missing = append(missing, bar)
		}
	}

	if len(missing) == 0 {
		p.Logger.Info(fmt.Sprintf("No new rows for %s", code))
		return 0, 0, nil
	}

	if err := p.Store.UpsertBars(missing); err != nil {
		return 0, 0, err
	}

	return len(missing), 0, nil
}

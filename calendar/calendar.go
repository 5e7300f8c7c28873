// Package calendar decides up front whether a batch run should happen at all:
// BIST publishes no bars on weekends or exchange holidays, so fetching on those
// days is wasted work.
package calendar

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/Omntg/tv-supabase-integration/models"
	"github.com/Omntg/tv-supabase-integration/utils"
)

// fallbackHolidays covers the fixed-date BIST closures. Religious holidays
// move year to year; keep those in an external holiday file.
var fallbackHolidays = []string{
	"2025-01-01", "2025-04-23", "2025-05-01", "2025-05-19",
	"2025-07-15", "2025-08-30", "2025-10-29",
	"2026-01-01", "2026-04-23", "2026-05-01", "2026-05-19",
	"2026-07-15", "2026-08-30", "2026-10-29",
}

type Guard struct {
	Logger       *slog.Logger
	TimeProvider utils.TimeProvider
	holidays     []string
}

// NewGuard builds a Guard from the holiday list at path. An empty or
// unreadable path falls back to the hardcoded closure dates.
func NewGuard(path string, logger *slog.Logger, timeProvider utils.TimeProvider) *Guard {
	return &Guard{
		Logger:       logger,
		TimeProvider: timeProvider,
		holidays:     loadHolidays(path, logger),
	}
}

// ShouldRun reports whether today is a trading day. The returned reason is
// empty when the run may proceed. force bypasses both the weekend and the
// holiday check.
func (g *Guard) ShouldRun(force bool) (bool, string) {
	if force {
		g.Logger.Warn("Force run enabled, bypassing weekend and holiday checks")
		return true, ""
	}

	now := g.TimeProvider.Now()
	if now.Weekday() == time.Saturday || now.Weekday() == time.Sunday {
		return false, fmt.Sprintf("market closed: %s is a weekend day", now.Weekday())
	}

	today := now.Format(models.DateLayout)
	for _, holiday := range g.holidays {
		if holiday == today {
			return false, fmt.Sprintf("market closed: %s is a holiday", today)
		}
	}

	return true, ""
}

func loadHolidays(path string, logger *slog.Logger) []string {
	if path == "" {
		return fallbackHolidays
	}

	content, err := os.ReadFile(path)
	if err != nil {
		logger.Warn(fmt.Sprintf("Could not read holiday list %s, using fallback list: %v", path, err))
		return fallbackHolidays
	}

	var holidays []string
	for _, line := range strings.Split(string(content), "\n") {
		day := strings.TrimSpace(line)
		if day == "" {
			continue
		}
		if _, err := time.Parse(models.DateLayout, day); err != nil {
			logger.Warn(fmt.Sprintf("Skipping malformed holiday entry %q in %s", day, path))
			continue
		}
		holidays = append(holidays, day)
	}

	if len(holidays) == 0 {
		logger.Warn(fmt.Sprintf("Holiday list %s contained no valid dates, using fallback list", path))
		return fallbackHolidays
	}

	return holidays
}

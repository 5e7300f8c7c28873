package pipeline

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sync"
	"time"
)

// maxConsoleErrors caps how many error strings the console summary prints.
// The full list always lands in the JSON report.
const maxConsoleErrors = 10

// ExecutionStats is the single aggregate shared by all worker tasks. Every
// mutation goes through the mutex; the exported snapshot is what gets
// serialized into the run report.
type ExecutionStats struct {
	mu sync.Mutex
	s  StatsSnapshot
}

// StatsSnapshot is the serializable state of a run. Field names match the
// execution_summary.json consumed downstream.
type StatsSnapshot struct {
	TotalSymbols      int      `json:"total_symbols"`
	SuccessfulFetches int      `json:"successful_fetches"`
	FailedFetches     int      `json:"failed_fetches"`
	SkippedSymbols    int      `json:"skipped_symbols"`
	TotalRecords      int      `json:"total_records"`
	NewRecords        int      `json:"new_records"`
	UpdatedRecords    int      `json:"updated_records"`
	Errors            []string `json:"errors"`
	ExecutionTime     float64  `json:"execution_time_seconds"`
	CompletionTime    string   `json:"completion_time"`
}

func NewStats(totalSymbols int) *ExecutionStats {
	return &ExecutionStats{
		s: StatsSnapshot{
			TotalSymbols: totalSymbols,
			Errors:       []string{},
		},
	}
}

func (e *ExecutionStats) RecordSuccess(totalRecords, newRecords, updatedRecords int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.s.SuccessfulFetches++
	e.s.TotalRecords += totalRecords
	e.s.NewRecords += newRecords
	e.s.UpdatedRecords += updatedRecords
}

// RecordFailure marks a symbol failed. An empty message records the failure
// without an error string, which is how empty provider responses are counted.
func (e *ExecutionStats) RecordFailure(message string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.s.FailedFetches++
	if message != "" {
		e.s.Errors = append(e.s.Errors, message)
	}
}

func (e *ExecutionStats) RecordSkip() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.s.SkippedSymbols++
}

// Finalize stamps elapsed time and completion timestamp after the pool has
// drained.
func (e *ExecutionStats) Finalize(elapsed time.Duration) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.s.ExecutionTime = elapsed.Seconds()
	e.s.CompletionTime = time.Now().Format(time.RFC3339)
}

func (e *ExecutionStats) Snapshot() StatsSnapshot {
	e.mu.Lock()
	defer e.mu.Unlock()
	snapshot := e.s
	snapshot.Errors = append([]string{}, e.s.Errors...)
	return snapshot
}

func (e *ExecutionStats) FailedCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.s.FailedFetches
}

// WriteReport writes the full statistics document to path.
func (e *ExecutionStats) WriteReport(path string) error {
	snapshot := e.Snapshot()

	encoded, err := json.MarshalIndent(snapshot, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode summary report: %w", err)
	}

	if err := os.WriteFile(path, encoded, 0o644); err != nil {
		return fmt.Errorf("failed to write summary report to %s: %w", path, err)
	}
	return nil
}

// PrintSummary writes the human-readable end-of-run summary, showing at most
// maxConsoleErrors error strings.
func (e *ExecutionStats) PrintSummary(w io.Writer) {
	snapshot := e.Snapshot()

	fmt.Fprintln(w, "==================================================")
	fmt.Fprintln(w, "EXECUTION RESULTS")
	fmt.Fprintln(w, "==================================================")
	fmt.Fprintf(w, "Successful symbols: %d/%d\n", snapshot.SuccessfulFetches, snapshot.TotalSymbols)
	fmt.Fprintf(w, "Failed symbols:     %d\n", snapshot.FailedFetches)
	fmt.Fprintf(w, "Skipped symbols:    %d\n", snapshot.SkippedSymbols)
	fmt.Fprintf(w, "Total records:      %d\n", snapshot.TotalRecords)
	fmt.Fprintf(w, "New records:        %d\n", snapshot.NewRecords)
	fmt.Fprintf(w, "Updated records:    %d\n", snapshot.UpdatedRecords)
	fmt.Fprintf(w, "Execution time:     %.2fs\n", snapshot.ExecutionTime)

	if len(snapshot.Errors) > 0 {
		fmt.Fprintf(w, "\nERRORS (%d):\n", len(snapshot.Errors))
		shown := snapshot.Errors
		if len(shown) > maxConsoleErrors {
			shown = shown[:maxConsoleErrors]
		}
		for _, message := range shown {
			fmt.Fprintf(w, "  - %s\n", message)
		}
		if len(snapshot.Errors) > maxConsoleErrors {
			fmt.Fprintf(w, "  ... and %d more in the report file\n", len(snapshot.Errors)-maxConsoleErrors)
		}
	}
}

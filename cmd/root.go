package cmd

import (
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/Omntg/tv-supabase-integration/calendar"
	"github.com/Omntg/tv-supabase-integration/config"
	"github.com/Omntg/tv-supabase-integration/logger"
	"github.com/Omntg/tv-supabase-integration/pipeline"
	"github.com/Omntg/tv-supabase-integration/symbols"
	"github.com/Omntg/tv-supabase-integration/utils"
)

// Exit codes: 0 full success, 1 any symbol failed or fatal error, 130 on
// user interrupt (best-effort partial report).
const exitInterrupt = 130

func newRootCmd() *cobra.Command {
	var (
		fullRefresh   bool
		workers       int
		output        string
		noIncremental bool
		force         bool
	)

	cmd := &cobra.Command{
		Use:           "tvsync",
		Short:         "Fetches daily BIST bars from TradingView and upserts them into Supabase",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := initializeConfigAndLogger()
			if err != nil {
				return err
			}

			if cmd.Flags().Changed("workers") {
				cfg.Run.MaxWorkers = workers
			}
			cfg.Run.FullRefresh = fullRefresh
			if noIncremental {
				cfg.Run.IncrementalFetch = false
			}
			if force {
				cfg.Run.ForceRun = true
			}

			return runSync(cfg, log, output)
		},
	}

	cmd.Flags().BoolVar(&fullRefresh, "full-refresh", false, "delete and reload all rows instead of incremental gap-fill")
	cmd.Flags().IntVar(&workers, "workers", 5, "number of concurrent symbol workers")
	cmd.Flags().StringVar(&output, "output", "execution_summary.json", "path of the JSON summary report")
	cmd.Flags().BoolVar(&noIncremental, "no-incremental", false, "disable the per-symbol freshness gate")
	cmd.Flags().BoolVar(&force, "force", false, "run even on weekends and holidays")

	return cmd
}

func Execute() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func isRunningOnGitHubActions() bool {
	return os.Getenv("GITHUB_ACTIONS") == "true"
}

func initializeConfigAndLogger() (*config.Config, *slog.Logger, error) {
	log := logger.NewLogger()
	if !isRunningOnGitHubActions() {
		if err := godotenv.Load(); err != nil {
			log.Debug("No .env file loaded, relying on process environment")
		}
	}

	cfg, err := config.NewConfig()
	if err != nil {
		log.Error(fmt.Sprintf("Error reading config: %v", err))
		return nil, nil, err
	}

	return cfg, log, nil
}

func runSync(cfg *config.Config, log *slog.Logger, output string) error {
	guard := calendar.NewGuard(cfg.Run.HolidayListPath, log, utils.RealTimeProvider{})
	if ok, reason := guard.ShouldRun(cfg.Run.ForceRun); !ok {
		log.Info(fmt.Sprintf("Skipping run: %s", reason))
		return nil
	}

	codes, err := symbols.Load(cfg.Run.SymbolListPath)
	if err != nil {
		log.Error(fmt.Sprintf("Error loading symbol list: %v", err))
		return err
	}

	p, err := pipeline.NewPipeline(cfg, log)
	if err != nil {
		log.Error(fmt.Sprintf("Error creating pipeline: %v", err))
		return err
	}
	defer p.Close()

	mode := "INCREMENTAL"
	if cfg.Run.FullRefresh {
		mode = "FULL REFRESH"
	}
	log.Info(fmt.Sprintf("Run mode: %s, workers: %d", mode, cfg.Run.MaxWorkers))

	stats := pipeline.NewStats(len(codes))
	interruptOnSignal(stats, output, log)

	p.SyncAll(codes, stats)

	if err := stats.WriteReport(output); err != nil {
		log.Error(err.Error())
	} else {
		log.Info(fmt.Sprintf("Summary report written to %s", output))
	}
	stats.PrintSummary(os.Stdout)

	if failed := stats.FailedCount(); failed > 0 {
		return fmt.Errorf("%d symbols failed", failed)
	}
	return nil
}

// interruptOnSignal writes a best-effort partial report and exits with the
// interrupt code. There is no task cancellation: a run either completes all
// submitted units or the process dies here.
func interruptOnSignal(stats *pipeline.ExecutionStats, output string, log *slog.Logger) {
	signals := make(chan os.Signal, 1)
	signal.Notify(signals, os.Interrupt, syscall.SIGTERM)

	go func() {
		sig := <-signals
		log.Warn(fmt.Sprintf("Received %s, writing partial report", sig))
		if err := stats.WriteReport(output); err != nil {
			log.Error(err.Error())
		}
		os.Exit(exitInterrupt)
	}()
}

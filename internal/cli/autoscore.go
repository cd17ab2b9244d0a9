package cli

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/chainguard-dev/clog"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/ppiankov/truckeval/internal/autoscore"
	"github.com/ppiankov/truckeval/internal/cache"
	"github.com/ppiankov/truckeval/internal/grade"
	"github.com/ppiankov/truckeval/internal/model"
	"github.com/ppiankov/truckeval/internal/tracestore"
	"github.com/ppiankov/truckeval/internal/worker"
)

var (
	scoreLimit      int
	scoreWorkers    int
	scoreName       string
	ledgerDir       string
	dryRun          bool
	metricsTextfile string
	scoreTimeout    time.Duration
)

// autoscoreCmd represents the autoscore command
var autoscoreCmd = &cobra.Command{
	Use:   "autoscore",
	Short: "Score recent traces in the trace store that carry a validity marker",
	Long: `Autoscore lists the most recent traces from a Langfuse-compatible trace
store and writes one validity score per generation whose output contains
"Valid: true" (1) or "Valid: false" (0). Traces that already carry a score
from anyone else are skipped, and a trace is never scored twice. A trace left
partially scored by an interrupted run gets its missing records on the next run.

Credentials come from the config file or LANGFUSE_HOST, LANGFUSE_PUBLIC_KEY
and LANGFUSE_SECRET_KEY.

Example:
  truckeval autoscore
  truckeval autoscore --limit 200 --workers 8
  truckeval autoscore --dry-run -v
  truckeval autoscore --metrics-textfile /var/lib/node_exporter/truckeval.prom`,
	Args: cobra.NoArgs,
	RunE: runAutoscore,
}

func init() {
	rootCmd.AddCommand(autoscoreCmd)

	autoscoreCmd.Flags().IntVar(&scoreLimit, "limit", autoscore.DefaultLimit, "number of most recent traces to fetch")
	autoscoreCmd.Flags().IntVar(&scoreWorkers, "workers", autoscore.DefaultWorkers, "traces processed concurrently")
	autoscoreCmd.Flags().StringVar(&scoreName, "score-name", model.DefaultAutoScoreName, "name of the written score records")
	autoscoreCmd.Flags().StringVar(&ledgerDir, "ledger-dir", "", "directory of the persistent scored-trace ledger (memory only when empty)")
	autoscoreCmd.Flags().BoolVar(&dryRun, "dry-run", false, "list and classify traces but do not write scores")
	autoscoreCmd.Flags().StringVar(&metricsTextfile, "metrics-textfile", "", "write run metrics in Prometheus text format to this file")
	autoscoreCmd.Flags().DurationVar(&scoreTimeout, "timeout", 10*time.Minute, "total timeout for the run")
}

func runAutoscore(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(cmd.Context(), scoreTimeout)
	defer cancel()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	applyAutoscoreFlags(cmd, cfg)

	if cfg.TraceStore.PublicKey == "" || cfg.TraceStore.SecretKey == "" {
		return fmt.Errorf("trace store credentials missing: set LANGFUSE_PUBLIC_KEY and LANGFUSE_SECRET_KEY")
	}

	table, err := loadPolicy()
	if err != nil {
		return err
	}

	limiter := worker.NewLimiter(cfg.RateLimiting.RequestsPerSecond, cfg.RateLimiting.BurstSize)
	client, err := tracestore.NewClient(cfg.TraceStore, limiter)
	if err != nil {
		return err
	}
	client.ScoreName = cfg.AutoScore.ScoreName

	var (
		store  tracestore.Store = client
		dry    *tracestore.DryRun
		ledger cache.Cache
	)
	if dryRun {
		// Dry runs never claim traces in the persistent ledger
		dry = tracestore.NewDryRun(client)
		store = dry
		ledger = cache.New("", cfg.AutoScore.LedgerTTL)
	} else {
		ledger = cache.New(cfg.AutoScore.LedgerDir, cfg.AutoScore.LedgerTTL)
	}

	reg := prometheus.NewRegistry()
	scorer := autoscore.New(store, grade.NewValidity(table.Validity), ledger, autoscore.Options{
		Limit:     cfg.AutoScore.Limit,
		Workers:   cfg.Concurrency.Workers,
		ScoreName: cfg.AutoScore.ScoreName,
		LedgerTTL: cfg.AutoScore.LedgerTTL,
		Metrics:   autoscore.NewMetrics(reg),
	})

	errOut := cmd.ErrOrStderr()
	printAutoscoreBanner(errOut, cfg)

	summary, runErr := scorer.Run(ctx)

	printAutoscoreSummary(errOut, summary, dry)

	if metricsTextfile != "" {
		if err := prometheus.WriteToTextfile(metricsTextfile, reg); err != nil {
			clog.FromContext(ctx).With("path", metricsTextfile).With("error", err.Error()).Warn("Failed to write metrics textfile")
		}
	}

	if runErr != nil {
		return fmt.Errorf("autoscore: %w", runErr)
	}
	return nil
}

// applyAutoscoreFlags overrides config values with explicitly set flags
func applyAutoscoreFlags(cmd *cobra.Command, cfg *model.Config) {
	flags := cmd.Flags()
	if flags.Changed("limit") {
		cfg.AutoScore.Limit = scoreLimit
	}
	if flags.Changed("workers") {
		cfg.Concurrency.Workers = scoreWorkers
	}
	if flags.Changed("score-name") {
		cfg.AutoScore.ScoreName = scoreName
	}
	if flags.Changed("ledger-dir") {
		cfg.AutoScore.LedgerDir = ledgerDir
	}
}

func printAutoscoreBanner(w io.Writer, cfg *model.Config) {
	fmt.Fprintf(w, "\n")
	fmt.Fprintf(w, "═══════════════════════════════════════════════════════════\n")
	fmt.Fprintf(w, "  truckeval Auto-Scoring\n")
	fmt.Fprintf(w, "═══════════════════════════════════════════════════════════\n")
	fmt.Fprintf(w, "\n")
	fmt.Fprintf(w, "  Trace store:  %s\n", cfg.TraceStore.Host)
	fmt.Fprintf(w, "  Limit:        %d\n", cfg.AutoScore.Limit)
	fmt.Fprintf(w, "  Workers:      %d\n", cfg.Concurrency.Workers)
	fmt.Fprintf(w, "  Score name:   %s\n", cfg.AutoScore.ScoreName)
	if cfg.AutoScore.LedgerDir != "" && !dryRun {
		fmt.Fprintf(w, "  Ledger:       %s\n", cfg.AutoScore.LedgerDir)
	}
	if dryRun {
		fmt.Fprintf(w, "  Mode:         dry run (no scores written)\n")
	}
	fmt.Fprintf(w, "\n")
}

func printAutoscoreSummary(w io.Writer, s autoscore.Summary, dry *tracestore.DryRun) {
	if dry != nil {
		for _, rec := range dry.Written() {
			fmt.Fprintf(w, "  would score %s/%s = %.0f (%s)\n", rec.TraceID, rec.ObservationID, rec.Value, rec.Comment)
		}
		if len(dry.Written()) > 0 {
			fmt.Fprintf(w, "\n")
		}
	}

	fmt.Fprintf(w, "═══════════════════════════════════════════════════════════\n")
	fmt.Fprintf(w, "  Auto-Scoring Complete\n")
	fmt.Fprintf(w, "═══════════════════════════════════════════════════════════\n")
	fmt.Fprintf(w, "\n")
	fmt.Fprintf(w, "  Listed:          %d\n", s.Listed)
	fmt.Fprintf(w, "  Scored:          %d (%d approved, %d flagged)\n", s.Scored, s.Approved(), s.Flagged())
	fmt.Fprintf(w, "  Already scored:  %d\n", s.AlreadyScored)
	fmt.Fprintf(w, "  No marker:       %d\n", s.NoSignal)
	if s.Claimed > 0 {
		fmt.Fprintf(w, "  Claimed:         %d\n", s.Claimed)
	}
	if s.Malformed > 0 {
		fmt.Fprintf(w, "  Malformed:       %d\n", s.Malformed)
	}
	if s.Failed > 0 || s.Cancelled > 0 {
		fmt.Fprintf(w, "  Failed:          %d\n", s.Failed)
		fmt.Fprintf(w, "  Cancelled:       %d\n", s.Cancelled)
	}
	fmt.Fprintf(w, "\n")
}

package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/chainguard-dev/clog"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/ppiankov/truckeval/internal/model"
)

// version is overridden at build time with -ldflags "-X ..."
var version = "v0.1.0"

var (
	cfgFile string
	verbose bool
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "truckeval",
	Short: "truckeval - policy graders for truck sales assistant output",
	Long: `truckeval grades free-text answers of a truck sales assistant against
a fixed business policy: response language, competitor mentions, tone,
technical facts and vehicle identification numbers.

It also back-fills a binary validity score onto recorded traces in a
Langfuse-compatible trace store, at most once per trace.`,
	SilenceErrors: true,
	SilenceUsage:  true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		level := slog.LevelInfo
		if verbose {
			level = slog.LevelDebug
		}
		logger := clog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
		cmd.SetContext(clog.WithLogger(cmd.Context(), logger))
	},
}

// Execute runs the root command. Cancelling ctx stops a running command.
func Execute(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}

// versionCmd represents the version command
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "truckeval %s\n", version)
	},
}

func init() {
	cobra.OnInitialize(initConfig)

	// Global flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: $HOME/.truckeval/config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")

	// Bind flags to viper
	_ = viper.BindPFlag("output.verbose", rootCmd.PersistentFlags().Lookup("verbose"))

	rootCmd.AddCommand(versionCmd)
}

// envBindings maps config keys to the environment variables read for them,
// in priority order
var envBindings = map[string][]string{
	"policy_file":                       {"TRUCKEVAL_POLICY_FILE"},
	"trace_store.host":                  {"TRUCKEVAL_TRACE_STORE_HOST", "LANGFUSE_HOST"},
	"trace_store.public_key":            {"TRUCKEVAL_TRACE_STORE_PUBLIC_KEY", "LANGFUSE_PUBLIC_KEY"},
	"trace_store.secret_key":            {"TRUCKEVAL_TRACE_STORE_SECRET_KEY", "LANGFUSE_SECRET_KEY"},
	"trace_store.timeout":               {"TRUCKEVAL_TRACE_STORE_TIMEOUT"},
	"trace_store.http_proxy":            {"TRUCKEVAL_TRACE_STORE_HTTP_PROXY", "HTTP_PROXY"},
	"trace_store.https_proxy":           {"TRUCKEVAL_TRACE_STORE_HTTPS_PROXY", "HTTPS_PROXY"},
	"trace_store.no_proxy":              {"TRUCKEVAL_TRACE_STORE_NO_PROXY", "NO_PROXY"},
	"autoscore.limit":                   {"TRUCKEVAL_AUTOSCORE_LIMIT"},
	"autoscore.score_name":              {"TRUCKEVAL_AUTOSCORE_SCORE_NAME"},
	"autoscore.ledger_dir":              {"TRUCKEVAL_AUTOSCORE_LEDGER_DIR"},
	"autoscore.ledger_ttl":              {"TRUCKEVAL_AUTOSCORE_LEDGER_TTL"},
	"rate_limiting.requests_per_second": {"TRUCKEVAL_RATE_LIMITING_REQUESTS_PER_SECOND"},
	"concurrency.workers":               {"TRUCKEVAL_CONCURRENCY_WORKERS"},
}

// initConfig reads in config file and ENV variables
func initConfig() {
	if cfgFile != "" {
		// Use config file from the flag
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error finding home directory: %v\n", err)
			return
		}

		viper.AddConfigPath(filepath.Join(home, ".truckeval"))
		viper.SetConfigType("yaml")
		viper.SetConfigName("config")
	}

	// Read in environment variables that match TRUCKEVAL_*
	viper.SetEnvPrefix("TRUCKEVAL")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()
	for key, envs := range envBindings {
		_ = viper.BindEnv(append([]string{key}, envs...)...)
	}

	if err := viper.ReadInConfig(); err == nil && verbose {
		fmt.Fprintf(os.Stderr, "Using config file: %s\n", viper.ConfigFileUsed())
	}
}

// loadConfig overlays the config file and environment on the defaults
func loadConfig() (*model.Config, error) {
	cfg := model.DefaultConfig()
	if err := viper.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}

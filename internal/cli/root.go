// Package cli implements the pqgate command tree.
//
// The root command wires the global logger, the metrics collector and the
// tracer before any subcommand runs, and installs the module observer so
// every lifecycle event a subcommand triggers is logged and counted.
package cli

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/pqgate/pqgate/pkg/fips"
	"github.com/pqgate/pqgate/pkg/metrics"
)

var (
	logLevel  string
	logFormat string

	instrumented *metrics.InstrumentedOps
)

// rootCmd is the base pqgate command.
var rootCmd = &cobra.Command{
	Use:   "pqgate",
	Short: "PQGate - FIPS 140-3 lifecycle control for post-quantum cryptography",
	Long: `PQGate governs when post-quantum cryptographic operations may run.

It verifies the underlying primitives on every start (power-on self-tests:
algorithm self-tests and known-answer tests), checks every freshly generated
key pair for pairwise consistency, and guards secret key material with
guaranteed zeroization.

Algorithms:
  - ML-KEM-1024  key encapsulation (NIST FIPS 203, Category 5)
  - ML-DSA-65    digital signatures (NIST FIPS 204, Category 3)
  - AES-256-GCM  symmetric encryption (FIPS approved)`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return setupObservability()
	},
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info",
		"log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "text",
		"log format (text, json)")

	rootCmd.AddCommand(selftestCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(demoCmd)
	rootCmd.AddCommand(benchCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(versionCmd)
}

// setupObservability builds the logger from the global flags, selects the
// tracer, and installs the module observer on the process-wide module.
func setupObservability() error {
	format := metrics.FormatText
	if logFormat == "json" {
		format = metrics.FormatJSON
	}

	logger := metrics.NewLogger(
		metrics.WithOutput(os.Stderr),
		metrics.WithLevel(metrics.ParseLevel(logLevel)),
		metrics.WithFormat(format),
		metrics.WithName("pqgate"),
	)
	metrics.SetLogger(logger)

	if metrics.OTelEnabled() {
		metrics.SetTracer(metrics.NewOTelTracer("pqgate"))
	}

	observer := metrics.NewModuleObserver(metrics.ModuleObserverConfig{
		Collector: metrics.Global(),
		Tracer:    metrics.GetTracer(),
		Logger:    logger,
	})
	fips.SetObserver(observer)
	instrumented = metrics.NewInstrumentedOps(observer)
	return nil
}

// instrumentedOps returns the wrapper recording service spans and counters.
// Commands invoked outside the root command's pre-run get one built from the
// process-wide defaults.
func instrumentedOps() *metrics.InstrumentedOps {
	if instrumented == nil {
		instrumented = metrics.NewInstrumentedOps(
			metrics.NewModuleObserver(metrics.ModuleObserverConfig{}))
	}
	return instrumented
}

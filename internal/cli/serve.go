package cli

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pqgate/pqgate/pkg/fips"
	"github.com/pqgate/pqgate/pkg/metrics"
	"github.com/pqgate/pqgate/pkg/version"
)

// serveCmd exposes health and Prometheus endpoints for the module.
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve health and Prometheus endpoints",
	Long: `Serve health and Prometheus endpoints for the module.

Endpoints:
  /metrics   Prometheus exposition
  /health    full health report (module state, POST outcome, memory)
  /healthz   liveness probe
  /readyz    readiness probe (fails unless the module is operational)

The listen address comes from --addr or the PQGATE_ADDR environment
variable. The power-on self-tests run before the listener starts; a
failed module still serves, reporting its error state as unhealthy.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().String("addr", ":9090", "listen address")
	_ = viper.BindPFlag("addr", serveCmd.Flags().Lookup("addr"))
	viper.SetEnvPrefix("PQGATE")
	viper.AutomaticEnv()
}

func runServe(cmd *cobra.Command, args []string) error {
	addr := viper.GetString("addr")
	logger := metrics.GetLogger()

	if err := fips.RunPOST(); err != nil {
		logger.Error("power-on self-tests failed, serving error state",
			metrics.Fields{"error": err.Error()})
	}

	server := metrics.NewServer(metrics.ServerConfig{
		Collector:        metrics.Global(),
		Version:          version.String(),
		Namespace:        "pqgate",
		EnablePrometheus: true,
		EnableHealth:     true,
	})
	server.AddHealthCheck("module-state", metrics.ModuleStateCheck())
	server.AddHealthCheck("memory", metrics.MemoryCheck(1<<30))

	logger.Info("observability server listening", metrics.Fields{
		"addr":  addr,
		"state": fips.CurrentState().String(),
	})
	if err := server.ListenAndServe(addr); err != nil {
		return fmt.Errorf("server exited: %w", err)
	}
	return nil
}

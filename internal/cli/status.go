package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/pqgate/pqgate/pkg/crypto"
	"github.com/pqgate/pqgate/pkg/fips"
	"github.com/pqgate/pqgate/pkg/version"
)

var statusJSON bool

// statusCmd reports the module lifecycle state and the active policy.
var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show module state and active policy",
	RunE: func(cmd *cobra.Command, args []string) error {
		state := fips.CurrentState()
		cfg := crypto.CurrentCSTConfig()
		res := fips.LastResult()
		failure := fips.Failure()

		if statusJSON {
			out := map[string]interface{}{
				"version":       version.String(),
				"state":         state.String(),
				"fips_mode":     fips.FIPSMode(),
				"pairwise_test": cfg.EnablePairwiseTest,
				"rng_health":    cfg.EnableRNGHealthCheck,
			}
			if res != nil {
				out["last_post"] = map[string]interface{}{
					"run_id":   res.RunID,
					"passed":   res.Passed,
					"tests":    len(res.Records),
					"duration": res.Duration.String(),
				}
			}
			if failure != nil {
				out["failure"] = failure.Error()
			}
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(out)
		}

		fmt.Printf("%s\n\n", version.Full())
		fmt.Printf("Module state:    %s\n", state)
		fmt.Printf("FIPS enforcing:  %v\n", fips.FIPSMode())
		fmt.Printf("Pairwise test:   %v\n", cfg.EnablePairwiseTest)
		fmt.Printf("RNG health:      %v\n", cfg.EnableRNGHealthCheck)
		if res != nil {
			outcome := "passed"
			if !res.Passed {
				outcome = "failed"
			}
			fmt.Printf("Last POST:       %s (%d tests, %s, run %s)\n",
				outcome, len(res.Records), res.Duration, res.RunID)
		} else {
			fmt.Printf("Last POST:       not run\n")
		}
		if failure != nil {
			fmt.Printf("Failure:         %v\n", failure)
		}
		return nil
	},
}

func init() {
	statusCmd.Flags().BoolVar(&statusJSON, "json", false, "machine-readable output")
}

package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/pqgate/pqgate/pkg/fips"
)

var selftestJSON bool

// selftestCmd runs the power-on self-tests and reports every record.
var selftestCmd = &cobra.Command{
	Use:   "selftest",
	Short: "Run the power-on self-tests",
	Long: `Run the power-on self-tests (POST) against the process-wide module.

The run executes the algorithm self-tests (CAST), the known-answer tests
(KAT) and a pairwise smoke test per algorithm family, in that order. The
module transitions to the operational state on success and to the terminal
error state on the first failure. On an already-resolved module the command
reports the recorded outcome without re-running anything.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		postErr := fips.RunPOST()
		res := fips.LastResult()

		if selftestJSON {
			return printSelftestJSON(res, postErr)
		}

		if res == nil {
			// Resolved before this process ran a POST (fips build tag
			// runs it during package init, results are cached there too,
			// so this only happens after an external state change).
			fmt.Printf("Module state: %s\n", fips.CurrentState())
			return postErr
		}

		fmt.Printf("Power-on self-tests  run %s\n", res.RunID)
		fmt.Println(strings.Repeat("─", 72))
		for _, rec := range res.Records {
			status := "PASS"
			if !rec.Passed {
				status = "FAIL"
			}
			fmt.Printf("  %-4s  %-5s  %-28s  %12s\n",
				status, rec.Kind.String(), rec.Algorithm, rec.Duration.Round(time.Microsecond).String())
			if rec.Detail != "" {
				fmt.Printf("        %s\n", rec.Detail)
			}
		}
		fmt.Println(strings.Repeat("─", 72))
		fmt.Printf("%d tests in %s, module state: %s\n",
			len(res.Records), res.Duration.Round(time.Microsecond), fips.CurrentState())

		return postErr
	},
}

func printSelftestJSON(res *fips.POSTResult, postErr error) error {
	out := map[string]interface{}{
		"state":  fips.CurrentState().String(),
		"passed": postErr == nil,
	}
	if res != nil {
		out["run_id"] = res.RunID
		out["duration"] = res.Duration.String()
		out["records"] = res.Records
	}
	if postErr != nil {
		out["error"] = postErr.Error()
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(out); err != nil {
		return err
	}
	return postErr
}

func init() {
	selftestCmd.Flags().BoolVar(&selftestJSON, "json", false, "machine-readable output")
}

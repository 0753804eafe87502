// Command pqgate is the operator CLI for the PQGate cryptographic module:
// self-test execution, status inspection, a lifecycle demo, benchmarks and
// an observability server.
package main

import (
	"fmt"
	"os"

	"github.com/pqgate/pqgate/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

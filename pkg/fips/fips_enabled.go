//go:build fips
// +build fips

// Package fips implements the FIPS 140-3 module lifecycle: the operational
// state machine, the pre-operational self-tests and the conditional
// pairwise consistency tests.
//
// This file is compiled when the "fips" build tag is specified.
// In FIPS mode the module is enforcing: the power-on self-tests run
// automatically at package initialization, plaintext CSP export is blocked
// and the pairwise consistency test cannot be disabled.
package fips

// FIPSMode reports whether the binary was built in FIPS-enforcing mode.
func FIPSMode() bool { return true }

// FIPS 140-3 requires the pre-operational self-tests to run at power-on
// without operator intervention. A failure here must not let the process
// continue into cryptographic work.
func init() {
	MustRunPOST()
}

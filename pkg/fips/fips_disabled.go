//go:build !fips
// +build !fips

// Package fips implements the FIPS 140-3 module lifecycle: the operational
// state machine, the pre-operational self-tests and the conditional
// pairwise consistency tests.
//
// This file is compiled when the "fips" build tag is NOT specified.
// In standard mode the caller decides when to run the power-on self-tests
// and plaintext CSP export remains available to operational callers.
package fips

// FIPSMode reports whether the binary was built in FIPS-enforcing mode.
func FIPSMode() bool { return false }

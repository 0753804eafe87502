//go:build !fips
// +build !fips

// Package crypto defines the cipher-suite policy for symmetric encryption.
//
// This file is compiled when the "fips" build tag is NOT specified.
// In standard mode, all supported cipher suites are available.
package crypto

import "github.com/pqgate/pqgate/internal/constants"

// SupportedCipherSuites returns the list of cipher suites supported in
// standard mode. Both AES-256-GCM and ChaCha20-Poly1305 are available.
func SupportedCipherSuites() []constants.CipherSuite {
	return []constants.CipherSuite{
		constants.CipherSuiteAES256GCM,
		constants.CipherSuiteChaCha20Poly1305,
	}
}

// PreferredCipherSuite returns the preferred cipher suite for new sessions.
// AES-256-GCM is preferred due to hardware acceleration on modern CPUs.
func PreferredCipherSuite() constants.CipherSuite {
	return constants.CipherSuiteAES256GCM
}

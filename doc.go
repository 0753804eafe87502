// Package pqgate provides FIPS 140-3 lifecycle control for post-quantum
// cryptographic operations.
//
// PQGate does not compute cryptography; it governs when cryptographic
// operations are allowed to run. Every process start is gated behind
// power-on self-tests that prove the underlying primitives (supplied by
// cloudflare/circl) still behave correctly, every freshly generated key
// pair passes a live pairwise consistency test before a caller can observe
// it, and all secret key material lives behind a guard that guarantees
// zeroization.
//
// # Quick Start
//
// Run the power-on self-tests once at process start, then use the gated
// entry points:
//
//	import (
//		"github.com/pqgate/pqgate/pkg/crypto"
//		"github.com/pqgate/pqgate/pkg/fips"
//	)
//
//	fips.MustRunPOST()
//
//	keyPair, _ := crypto.GenerateKEMKeyPair() // pairwise-checked
//	defer keyPair.Zeroize()
//
//	ciphertext, secret, _ := crypto.Encapsulate(keyPair.PublicKey())
//	defer secret.Zeroize()
//
//	recovered, _ := crypto.Decapsulate(keyPair, ciphertext)
//	defer recovered.Zeroize()
//
// Builds with the fips tag run the self-tests during package
// initialization and panic if they fail; untagged builds leave the call to
// the host.
//
// # Package Structure
//
//   - pkg/fips: lifecycle state machine, power-on self-test orchestration
//     (CAST, KAT, PCT), observer hooks
//   - pkg/crypto: gated entry points (ML-KEM-1024, ML-DSA-65, AEAD, KDF),
//     CSP guards, seed validation, key-wrap envelopes
//   - pkg/metrics: logging, counters, Prometheus exposition, health
//     endpoints, tracing
//   - internal/constants: algorithm identifiers and fixed byte lengths
//   - internal/errors: error taxonomy shared across the module
//
// # Lifecycle
//
// The module state machine has a closed transition table:
//
//	PowerOn -> SelfTestRunning -> Operational
//	                           -> Error
//	           Operational     -> Error
//
// Error is absorbing: a self-test or pairwise-consistency failure takes the
// whole module out of service until the process restarts. Every gated entry
// point consults the state machine first and fails fast when the module is
// not operational; nothing ever blocks waiting for self-tests.
//
// # Security Properties
//
//   - Post-quantum key encapsulation: ML-KEM-1024 (NIST FIPS 203, Category 5)
//   - Post-quantum signatures: ML-DSA-65 (NIST FIPS 204, Category 3)
//   - Authenticated encryption: AES-256-GCM (FIPS approved) or
//     ChaCha20-Poly1305 (standard builds only)
//   - No unverified key release: pairwise consistency is checked on every
//     generation before the caller sees the pair
//   - Guaranteed zeroization: secret bytes are overwritten on release, with
//     a garbage-collection backstop for guards that were never released
//
// # Testing
//
//	go test ./...                                  # All tests
//	go test -tags fips ./...                       # FIPS-enforcing build
//	go test -run TestKAT ./pkg/fips                # Known-answer tests
//	go test -fuzz=FuzzValidateSeed ./test/fuzz     # Fuzz tests
//	go test -bench=. ./test/benchmark              # Benchmarks
//
// # References
//
//   - NIST FIPS 203: Module-Lattice-Based Key-Encapsulation Mechanism Standard
//   - NIST FIPS 204: Module-Lattice-Based Digital Signature Standard
//   - NIST FIPS 202: SHA-3 Standard (SHAKE-128/256)
//   - ISO/IEC 19790:2012 section 7.3: cryptographic module lifecycle states
package pqgate

// Package errors defines custom error types for the PQGate FIPS 140-3
// lifecycle module. These errors provide detailed information for debugging
// while maintaining security by not leaking sensitive information in error
// messages.
package errors

import (
	"errors"
	"fmt"
)

// Sentinel errors for the module state gate. These are recoverable by the
// caller and never mutate module state.
var (
	// ErrNotInitialized indicates a cryptographic operation was attempted
	// before the power-on self-tests have been run
	ErrNotInitialized = errors.New("fips: module not initialized, run power-on self-tests first")

	// ErrSelfTestsRunning indicates the self-tests are currently in progress
	ErrSelfTestsRunning = errors.New("fips: self-tests already in progress")

	// ErrAlreadyOperational indicates a self-test start was requested while
	// the module is already operational
	ErrAlreadyOperational = errors.New("fips: module already operational")

	// ErrModuleError indicates the module is in the terminal error state;
	// only a process restart recovers
	ErrModuleError = errors.New("fips: module in error state, restart required")
)

// Sentinel errors for self-tests. These are fatal to the module: they are
// recorded into the module state so all subsequent callers are blocked.
var (
	// ErrCASTFailed indicates a cryptographic algorithm self-test mismatch
	ErrCASTFailed = errors.New("selftest: cryptographic algorithm self-test failed")

	// ErrKATFailed indicates a known-answer test mismatch
	ErrKATFailed = errors.New("selftest: known-answer test failed")

	// ErrPCTFailed indicates a freshly generated key failed its pairwise
	// consistency check
	ErrPCTFailed = errors.New("selftest: pairwise consistency test failed")

	// ErrPCTRequired indicates an attempt to disable the pairwise
	// consistency test while the module is FIPS-enforcing
	ErrPCTRequired = errors.New("selftest: pairwise consistency test cannot be disabled in FIPS mode")

	// ErrRNGHealthFailed indicates the random source failed a health check
	ErrRNGHealthFailed = errors.New("selftest: rng health check failed")
)

// Sentinel errors for seed validation
var (
	// ErrSeedInvalid indicates degenerate or wrongly sized seed material;
	// the caller must supply better entropy
	ErrSeedInvalid = errors.New("seed: invalid seed material")
)

// Sentinel errors for CSP access control
var (
	// ErrCSPExportBlocked indicates a plaintext export of secret material
	// was requested in a FIPS-enforcing build
	ErrCSPExportBlocked = errors.New("csp: plaintext export blocked in FIPS mode")

	// ErrCSPReleased indicates an access to secret material after it was
	// zeroized
	ErrCSPReleased = errors.New("csp: secret material already zeroized")
)

// Sentinel errors for cryptographic operations
var (
	// ErrInvalidKeySize indicates that a key has an incorrect size
	ErrInvalidKeySize = errors.New("crypto: invalid key size")

	// ErrInvalidPublicKey indicates that a public key is malformed
	ErrInvalidPublicKey = errors.New("crypto: invalid public key")

	// ErrInvalidPrivateKey indicates that a private key is malformed
	ErrInvalidPrivateKey = errors.New("crypto: invalid private key")

	// ErrInvalidCiphertext indicates that a KEM ciphertext is malformed
	ErrInvalidCiphertext = errors.New("crypto: invalid ciphertext")

	// ErrInvalidSignature indicates that a signature has an incorrect size
	ErrInvalidSignature = errors.New("crypto: invalid signature")

	// ErrKeyGenerationFailed indicates that key generation failed
	ErrKeyGenerationFailed = errors.New("crypto: key generation failed")

	// ErrEncapsulationFailed indicates that KEM encapsulation failed
	ErrEncapsulationFailed = errors.New("crypto: encapsulation failed")

	// ErrDecapsulationFailed indicates that KEM decapsulation failed
	ErrDecapsulationFailed = errors.New("crypto: decapsulation failed")

	// ErrSigningFailed indicates that signing failed
	ErrSigningFailed = errors.New("crypto: signing failed")
)

// Sentinel errors for AEAD operations
var (
	// ErrAuthenticationFailed indicates AEAD authentication/decryption failed
	ErrAuthenticationFailed = errors.New("aead: authentication failed")

	// ErrInvalidNonce indicates the nonce size is incorrect
	ErrInvalidNonce = errors.New("aead: invalid nonce size")

	// ErrCiphertextTooShort indicates ciphertext is too short to be valid
	ErrCiphertextTooShort = errors.New("aead: ciphertext too short")

	// ErrNonceExhausted indicates nonce space is exhausted for the current key
	ErrNonceExhausted = errors.New("aead: nonce space exhausted, rekey required")

	// ErrUnsupportedCipherSuite indicates an unsupported cipher suite
	ErrUnsupportedCipherSuite = errors.New("aead: unsupported cipher suite")

	// ErrCipherSuiteNotFIPSApproved indicates a cipher suite that is not
	// FIPS 140-3 approved was requested in a FIPS-enforcing build
	ErrCipherSuiteNotFIPSApproved = errors.New("aead: cipher suite not FIPS approved")
)

// Sentinel errors for key-wrap envelopes
var (
	// ErrInvalidEnvelope indicates a malformed key-wrap envelope
	ErrInvalidEnvelope = errors.New("envelope: malformed key-wrap envelope")

	// ErrEnvelopeTooLarge indicates the envelope payload exceeds the limit
	ErrEnvelopeTooLarge = errors.New("envelope: payload exceeds limit")
)

// SelfTestKind identifies which class of self-test produced a failure.
type SelfTestKind uint8

const (
	// KindCAST is a cryptographic algorithm self-test (fixed-input hash check)
	KindCAST SelfTestKind = iota + 1

	// KindKAT is a known-answer test (fixed-seed round trip)
	KindKAT

	// KindPCT is a pairwise consistency test (live round trip on a fresh key)
	KindPCT
)

// String returns the conventional acronym for the self-test kind.
func (k SelfTestKind) String() string {
	switch k {
	case KindCAST:
		return "CAST"
	case KindKAT:
		return "KAT"
	case KindPCT:
		return "PCT"
	default:
		return "Unknown"
	}
}

// sentinel maps the kind to its sentinel error.
func (k SelfTestKind) sentinel() error {
	switch k {
	case KindCAST:
		return ErrCASTFailed
	case KindKAT:
		return ErrKATFailed
	case KindPCT:
		return ErrPCTFailed
	default:
		return ErrKATFailed
	}
}

// SelfTestError reports a failed self-test with the algorithm that produced
// the wrong answer. It matches both its kind sentinel (ErrCASTFailed,
// ErrKATFailed, ErrPCTFailed) and the underlying detail error via errors.Is.
type SelfTestError struct {
	Kind      SelfTestKind // CAST, KAT or PCT
	Algorithm string       // e.g. "SHA3-256", "ML-KEM-1024"
	Err       error        // detail
}

func (e *SelfTestError) Error() string {
	return fmt.Sprintf("%s failed for %s: %v", e.Kind, e.Algorithm, e.Err)
}

func (e *SelfTestError) Unwrap() []error {
	return []error{e.Kind.sentinel(), e.Err}
}

// NewSelfTestError creates a new SelfTestError.
func NewSelfTestError(kind SelfTestKind, algorithm string, err error) *SelfTestError {
	return &SelfTestError{Kind: kind, Algorithm: algorithm, Err: err}
}

// CryptoError wraps a cryptographic error with additional context
type CryptoError struct {
	Op  string // Operation that failed
	Err error  // Underlying error
}

func (e *CryptoError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *CryptoError) Unwrap() error {
	return e.Err
}

// NewCryptoError creates a new CryptoError
func NewCryptoError(op string, err error) *CryptoError {
	return &CryptoError{Op: op, Err: err}
}

// Is reports whether any error in err's chain matches target.
// This is a convenience wrapper around errors.Is.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain that matches target.
// This is a convenience wrapper around errors.As.
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}

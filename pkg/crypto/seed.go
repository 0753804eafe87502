// Package crypto implements seed validation for deterministic key generation.
//
// This file (seed.go) rejects degenerate seed material before it reaches the
// primitive provider. A seed of the wrong length, or one consisting entirely
// of zero bytes, produces predictable keys and must never be expanded.
package crypto

import (
	"github.com/pqgate/pqgate/internal/constants"
	qerrors "github.com/pqgate/pqgate/internal/errors"
)

// ValidateSeed checks seed material against the expected length.
//
// The seed is rejected when:
//   - its length differs from expected
//   - every byte is zero (degenerate entropy)
//
// Validation is pure: it never mutates module state, and a rejected seed is
// a caller error, not a module failure.
func ValidateSeed(seed []byte, expected int) error {
	if len(seed) != expected {
		return qerrors.NewCryptoError("ValidateSeed", qerrors.ErrSeedInvalid)
	}
	for _, b := range seed {
		if b != 0 {
			return nil
		}
	}
	return qerrors.NewCryptoError("ValidateSeed", qerrors.ErrSeedInvalid)
}

// GenerateKEMSeed returns a fresh 64-byte ML-KEM-1024 key-generation seed
// drawn from the health-checked random source.
func GenerateKEMSeed() ([]byte, error) {
	return generateSeed(constants.MLKEMKeySeedSize)
}

// GenerateSigningSeed returns a fresh 32-byte ML-DSA-65 key-generation seed
// drawn from the health-checked random source.
func GenerateSigningSeed() ([]byte, error) {
	return generateSeed(constants.MLDSAKeySeedSize)
}

func generateSeed(size int) ([]byte, error) {
	seed := make([]byte, size)
	if err := SecureRandomWithCST(seed); err != nil {
		return nil, err
	}
	if err := ValidateSeed(seed, size); err != nil {
		Zeroize(seed)
		return nil, err
	}
	return seed, nil
}

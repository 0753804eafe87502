// Package crypto implements key derivation functions using SHAKE-256 (SHA-3 XOF).
//
// This file (kdf.go) uses SHAKE-256 (FIPS 202), an extendable-output function (XOF) based on the
// Keccak sponge construction. It provides 256-bit security against collision
// and preimage attacks, and 128-bit security against length-extension attacks.
//
// Mathematical Foundation:
//
// SHAKE-256 uses the Keccak-f[1600] permutation with rate r = 1088 and
// capacity c = 512. The sponge construction:
//
// 1. Absorb: Process message blocks through the permutation
// 2. Squeeze: Extract arbitrary-length output
//
// Security Properties:
//   - 256-bit preimage and collision resistance
//   - Extendable output: can generate arbitrary length keys
//   - No length-extension attacks (unlike SHA-2)
//   - Domain separation prevents key/message confusion
//
// The same construction, over a fixed domain and input, is pinned by the
// power-on KDF self-test: any change to the length-prefix framing below is a
// wire-format break and will fail POST.
package crypto

import (
	"encoding/binary"

	"golang.org/x/crypto/sha3"

	"github.com/pqgate/pqgate/internal/constants"
	qerrors "github.com/pqgate/pqgate/internal/errors"
	"github.com/pqgate/pqgate/pkg/fips"
)

// DeriveKey derives a key using SHAKE-256 with domain separation.
//
// The derivation follows the construction:
//
//	output = SHAKE-256(
//	    domain_separator_length || domain_separator ||
//	    input_length || input,
//	    output_length
//	)
//
// Length prefixes are 4-byte big-endian integers to ensure unambiguous parsing.
//
// Parameters:
//   - domain: Domain separation string (prevents cross-protocol attacks)
//   - input: Secret input material to derive from
//   - outputLen: Desired output length in bytes
//
// Returns:
//   - derived: The derived key material
//   - error: Non-nil if parameters are invalid
func DeriveKey(domain string, input []byte, outputLen int) ([]byte, error) {
	if outputLen <= 0 || outputLen > 1<<20 { // Max 1MB
		return nil, qerrors.NewCryptoError("DeriveKey", qerrors.ErrInvalidKeySize)
	}

	h := sha3.NewShake256()

	// Write domain separator with length prefix
	domainBytes := []byte(domain)
	lenBuf := make([]byte, 4)
	binary.BigEndian.PutUint32(lenBuf, uint32(len(domainBytes)))
	h.Write(lenBuf)
	h.Write(domainBytes)

	// Write input with length prefix
	binary.BigEndian.PutUint32(lenBuf, uint32(len(input)))
	h.Write(lenBuf)
	h.Write(input)

	// Extract output
	output := make([]byte, outputLen)
	_, _ = h.Read(output) // SHAKE256.Read never fails

	return output, nil
}

// DeriveKeyMultiple derives a key from multiple inputs with domain separation.
//
// Each input is framed with its own length prefix, and the input count is
// absorbed first, so no concatenation of inputs can collide with another
// split of the same bytes.
//
// Parameters:
//   - domain: Domain separation string
//   - inputs: Multiple input values to combine
//   - outputLen: Desired output length in bytes
//
// Returns:
//   - derived: The derived key material
//   - error: Non-nil if parameters are invalid
func DeriveKeyMultiple(domain string, inputs [][]byte, outputLen int) ([]byte, error) {
	if outputLen <= 0 || outputLen > 1<<20 {
		return nil, qerrors.NewCryptoError("DeriveKeyMultiple", qerrors.ErrInvalidKeySize)
	}

	h := sha3.NewShake256()
	lenBuf := make([]byte, 4)

	// Write domain separator with length prefix
	domainBytes := []byte(domain)
	binary.BigEndian.PutUint32(lenBuf, uint32(len(domainBytes)))
	h.Write(lenBuf)
	h.Write(domainBytes)

	// Write number of inputs
	binary.BigEndian.PutUint32(lenBuf, uint32(len(inputs)))
	h.Write(lenBuf)

	// Write each input with length prefix
	for _, input := range inputs {
		binary.BigEndian.PutUint32(lenBuf, uint32(len(input)))
		h.Write(lenBuf)
		h.Write(input)
	}

	// Extract output
	output := make([]byte, outputLen)
	_, _ = h.Read(output) // SHAKE256.Read never fails

	return output, nil
}

// TranscriptHash computes a binding hash over an ordered list of components.
//
// Using SHA3-256 with count and length framing provides:
//   - 128-bit collision resistance
//   - Binding: changes to any component change the hash
//   - Non-malleability: no two component lists produce the same absorbed bytes
//
// The key-wrap envelope uses this to bind its header as AEAD associated data.
//
// Parameters:
//   - components: Ordered list of components
//
// Returns:
//   - hash: 32-byte binding hash
func TranscriptHash(components ...[]byte) []byte {
	h := sha3.New256()
	lenBuf := make([]byte, 4)

	// Write number of components
	binary.BigEndian.PutUint32(lenBuf, uint32(len(components)))
	h.Write(lenBuf)

	// Write each component with length prefix
	for _, component := range components {
		binary.BigEndian.PutUint32(lenBuf, uint32(len(component)))
		h.Write(lenBuf)
		h.Write(component)
	}

	return h.Sum(nil)
}

// DeriveSessionKey derives a 32-byte session key from a decapsulated shared
// secret and a caller-chosen context, under the session domain separator.
// The secret is consumed through its CSP scoped view; the derived key is
// returned under a fresh CSP guard.
//
// Derivation is deterministic: the same (secret, context) pair always yields
// the same key, so both sides of an exchange derive matching session keys.
func DeriveSessionKey(secret *SharedSecret, context []byte) (*CSP, error) {
	if err := fips.RequireOperational(); err != nil {
		return nil, err
	}
	if secret == nil {
		return nil, qerrors.NewCryptoError("DeriveSessionKey", qerrors.ErrInvalidKeySize)
	}

	var derived []byte
	err := secret.WithBytes(func(ss []byte) error {
		var derr error
		derived, derr = DeriveKeyMultiple(
			constants.DomainSeparatorSession,
			[][]byte{ss, context},
			constants.AESKeySize,
		)
		return derr
	})
	if err != nil {
		return nil, err
	}
	return NewCSP("session key", derived), nil
}

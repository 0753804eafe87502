// Package constants defines security parameters and fixed byte lengths for the
// PQGate FIPS 140-3 lifecycle module.
//
// Security Level: NIST Category 5 for key encapsulation (ML-KEM-1024) and
// NIST Category 3 for digital signatures (ML-DSA-65). All lengths are fixed
// by FIPS 203 / FIPS 204 and must match the primitive provider exactly.
package constants

// Module identification
const (
	// ModuleName is used in log records and exported metrics.
	ModuleName = "pqgate"

	// ModuleVersionTag is used for domain separation in key derivation.
	ModuleVersionTag = "PQGate-v1"
)

// ML-KEM-1024 Parameters (NIST FIPS 203)
// These parameters provide NIST Category 5 security (~256-bit post-quantum security)
const (
	// MLKEMPublicKeySize is the size of the ML-KEM-1024 encapsulation key in bytes
	MLKEMPublicKeySize = 1568

	// MLKEMPrivateKeySize is the size of the ML-KEM-1024 decapsulation key in bytes
	MLKEMPrivateKeySize = 3168

	// MLKEMCiphertextSize is the size of ML-KEM-1024 ciphertext in bytes
	MLKEMCiphertextSize = 1568

	// MLKEMSharedSecretSize is the size of the shared secret from ML-KEM in bytes
	MLKEMSharedSecretSize = 32

	// MLKEMKeySeedSize is the size of the deterministic key-generation seed
	MLKEMKeySeedSize = 64

	// MLKEMEncapSeedSize is the size of the encapsulation randomness
	MLKEMEncapSeedSize = 32
)

// ML-DSA-65 Parameters (NIST FIPS 204)
// These parameters provide NIST Category 3 security (~192-bit post-quantum security)
const (
	// MLDSAPublicKeySize is the size of the ML-DSA-65 verification key in bytes
	MLDSAPublicKeySize = 1952

	// MLDSAPrivateKeySize is the size of the ML-DSA-65 signing key in bytes
	MLDSAPrivateKeySize = 4032

	// MLDSASignatureSize is the size of an ML-DSA-65 signature in bytes
	MLDSASignatureSize = 3309

	// MLDSAKeySeedSize is the size of the deterministic key-generation seed
	MLDSAKeySeedSize = 32

	// MLDSASignSeedSize is the size of the hedged-signing randomness
	MLDSASignSeedSize = 32
)

// Symmetric Encryption Parameters (AES-256-GCM)
const (
	// AESKeySize is the size of AES-256 keys in bytes
	AESKeySize = 32

	// AESNonceSize is the size of AES-GCM nonce in bytes (96 bits)
	AESNonceSize = 12

	// AESTagSize is the size of AES-GCM authentication tag in bytes
	AESTagSize = 16

	// ChaCha20KeySize is the size of ChaCha20-Poly1305 keys in bytes
	ChaCha20KeySize = 32

	// ChaCha20NonceSize is the size of ChaCha20-Poly1305 nonce in bytes
	ChaCha20NonceSize = 12

	// MinSealedSize is the smallest valid Seal output (nonce + tag)
	MinSealedSize = AESNonceSize + AESTagSize

	// MaxMessagesPerKey bounds the number of Seal operations under a single
	// AEAD key. Rekeying is required before the counter reaches this bound.
	MaxMessagesPerKey = 1 << 28
)

// Key Derivation Parameters (SHAKE-256)
const (
	// KDFOutputSize is the default output size for key derivation in bytes
	KDFOutputSize = 32

	// TranscriptHashSize is the size of a transcript hash in bytes
	TranscriptHashSize = 32

	// DomainSeparatorKeyWrap is used when deriving key-wrapping keys
	DomainSeparatorKeyWrap = "PQGate-v1-KeyWrap"

	// DomainSeparatorEnvelope is used when binding envelope headers
	DomainSeparatorEnvelope = "PQGate-v1-Envelope"

	// DomainSeparatorSession is used when deriving session keys from a
	// decapsulated shared secret
	DomainSeparatorSession = "PQGate-v1-Session"
)

// Key-wrap envelope framing
const (
	// EnvelopeVersion is the current version byte of the key-wrap envelope
	EnvelopeVersion uint8 = 0x01

	// EnvelopeHeaderSize is version (1) + algorithm (1) + payload length (4)
	EnvelopeHeaderSize = 6

	// MaxEnvelopePayloadSize bounds the wrapped payload; the largest
	// legitimate payload is an ML-DSA-65 key pair (pk + sk)
	MaxEnvelopePayloadSize = MLDSAPublicKeySize + MLDSAPrivateKeySize
)

// Algorithm identifies a supported algorithm family.
type Algorithm uint8

const (
	// AlgorithmMLKEM1024 is the ML-KEM-1024 key-encapsulation family (FIPS 203)
	AlgorithmMLKEM1024 Algorithm = 0x01

	// AlgorithmMLDSA65 is the ML-DSA-65 digital-signature family (FIPS 204)
	AlgorithmMLDSA65 Algorithm = 0x02
)

// String returns the NIST name for the algorithm family.
func (a Algorithm) String() string {
	switch a {
	case AlgorithmMLKEM1024:
		return "ML-KEM-1024"
	case AlgorithmMLDSA65:
		return "ML-DSA-65"
	default:
		return "Unknown"
	}
}

// IsSupported returns true if the algorithm family is supported.
func (a Algorithm) IsSupported() bool {
	return a == AlgorithmMLKEM1024 || a == AlgorithmMLDSA65
}

// SeedSize returns the required key-generation seed length for the family.
func (a Algorithm) SeedSize() int {
	switch a {
	case AlgorithmMLKEM1024:
		return MLKEMKeySeedSize
	case AlgorithmMLDSA65:
		return MLDSAKeySeedSize
	default:
		return 0
	}
}

// CipherSuite identifiers
type CipherSuite uint16

const (
	// CipherSuiteAES256GCM uses AES-256-GCM for symmetric encryption
	CipherSuiteAES256GCM CipherSuite = 0x0001

	// CipherSuiteChaCha20Poly1305 uses ChaCha20-Poly1305 for symmetric encryption
	CipherSuiteChaCha20Poly1305 CipherSuite = 0x0002
)

// String returns a human-readable name for the cipher suite
func (cs CipherSuite) String() string {
	switch cs {
	case CipherSuiteAES256GCM:
		return "AES-256-GCM"
	case CipherSuiteChaCha20Poly1305:
		return "ChaCha20-Poly1305"
	default:
		return "Unknown"
	}
}

// IsSupported returns true if the cipher suite is supported
func (cs CipherSuite) IsSupported() bool {
	return cs == CipherSuiteAES256GCM || cs == CipherSuiteChaCha20Poly1305
}

// IsFIPSApproved returns true if the cipher suite is FIPS 140-3 approved.
// Currently only AES-256-GCM is FIPS approved; ChaCha20-Poly1305 is not.
func (cs CipherSuite) IsFIPSApproved() bool {
	return cs == CipherSuiteAES256GCM
}

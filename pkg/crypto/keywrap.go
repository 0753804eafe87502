// keywrap.go implements the key-wrap envelope, the export path for secret
// material in FIPS-enforcing builds where plaintext CSP export is blocked.
//
// Envelope layout (big-endian):
//
//	version(1) || kind(1) || payload_length(4) || nonce(12) || sealed(payload_length + 16)
//
// The six-byte header is bound to the ciphertext as AEAD associated data via
// TranscriptHash, so neither the version nor the content kind can be altered
// without failing authentication. The wrapping key is derived from the KEK
// shared secret under the key-wrap domain separator; it never exists outside
// this package. Sealing always uses AES-256-GCM.
//
// Imported key pairs re-run their pairwise consistency test before they are
// released to the caller.
package crypto

import (
	"encoding/binary"

	"github.com/cloudflare/circl/kem/mlkem/mlkem1024"
	"github.com/cloudflare/circl/sign/mldsa/mldsa65"
	"github.com/google/uuid"

	"github.com/pqgate/pqgate/internal/constants"
	qerrors "github.com/pqgate/pqgate/internal/errors"
	"github.com/pqgate/pqgate/pkg/fips"
)

// envelopeKindSecret tags an envelope carrying opaque secret bytes; key-pair
// envelopes carry their constants.Algorithm value instead.
const envelopeKindSecret uint8 = 0x00

// WrapCSP seals the guarded secret under a key derived from the KEK.
// The guard itself is not consumed; the caller decides when to zeroize it.
func WrapCSP(c *CSP, kek *SharedSecret) ([]byte, error) {
	if err := fips.RequireOperational(); err != nil {
		return nil, err
	}
	if c == nil {
		return nil, qerrors.ErrCSPReleased
	}

	var env []byte
	err := c.WithBytes(func(b []byte) error {
		var serr error
		env, serr = sealEnvelope(envelopeKindSecret, b, kek)
		return serr
	})
	if err != nil {
		return nil, err
	}
	return env, nil
}

// UnwrapCSP reverses WrapCSP, returning the secret under a fresh guard.
func UnwrapCSP(env []byte, kek *SharedSecret) (*CSP, error) {
	kind, payload, err := openEnvelope(env, kek)
	if err != nil {
		return nil, err
	}
	if kind != envelopeKindSecret {
		Zeroize(payload)
		return nil, qerrors.ErrInvalidEnvelope
	}
	return NewCSP("unwrapped secret", payload), nil
}

// ExportKEMKeyPair wraps a whole ML-KEM-1024 key pair (public key followed
// by the packed decapsulation key) for storage or transport.
func ExportKEMKeyPair(kp *KEMKeyPair, kek *SharedSecret) ([]byte, error) {
	if err := fips.RequireOperational(); err != nil {
		return nil, err
	}
	if kp == nil || kp.private == nil {
		return nil, qerrors.ErrInvalidPrivateKey
	}

	payload := make([]byte, 0, constants.MLKEMPublicKeySize+constants.MLKEMPrivateKeySize)
	payload = append(payload, kp.PublicKeyBytes()...)
	err := kp.private.WithBytes(func(b []byte) error {
		payload = append(payload, b...)
		return nil
	})
	if err != nil {
		return nil, err
	}
	defer Zeroize(payload)

	return sealEnvelope(uint8(constants.AlgorithmMLKEM1024), payload, kek)
}

// ImportKEMKeyPair reverses ExportKEMKeyPair. The imported pair passes a
// pairwise consistency test before it is released; a failed test discards
// the pair and forces the module into the error state.
func ImportKEMKeyPair(env []byte, kek *SharedSecret) (*KEMKeyPair, error) {
	kind, payload, err := openEnvelope(env, kek)
	if err != nil {
		return nil, err
	}
	defer Zeroize(payload)

	if kind != uint8(constants.AlgorithmMLKEM1024) ||
		len(payload) != constants.MLKEMPublicKeySize+constants.MLKEMPrivateKeySize {
		return nil, qerrors.ErrInvalidEnvelope
	}

	pub, err := ParseKEMPublicKey(payload[:constants.MLKEMPublicKeySize])
	if err != nil {
		return nil, err
	}
	sk := new(mlkem1024.PrivateKey)
	if uerr := sk.Unpack(payload[constants.MLKEMPublicKeySize:]); uerr != nil {
		return nil, qerrors.NewCryptoError("ImportKEMKeyPair", uerr)
	}

	if perr := fips.PairwiseKEMTest(pub.key, sk); perr != nil {
		fips.SignalRuntimeFailure(perr)
		return nil, perr
	}

	packed := make([]byte, constants.MLKEMPrivateKeySize)
	copy(packed, payload[constants.MLKEMPublicKeySize:])

	return &KEMKeyPair{
		id:          uuid.New().String(),
		public:      pub,
		private:     NewCSP("ML-KEM-1024 decapsulation key", packed),
		pctVerified: true,
	}, nil
}

// ExportSigningKeyPair wraps a whole ML-DSA-65 key pair (public key followed
// by the packed signing key) for storage or transport.
func ExportSigningKeyPair(kp *SigningKeyPair, kek *SharedSecret) ([]byte, error) {
	if err := fips.RequireOperational(); err != nil {
		return nil, err
	}
	if kp == nil || kp.private == nil {
		return nil, qerrors.ErrInvalidPrivateKey
	}

	payload := make([]byte, 0, constants.MLDSAPublicKeySize+constants.MLDSAPrivateKeySize)
	payload = append(payload, kp.PublicKeyBytes()...)
	err := kp.private.WithBytes(func(b []byte) error {
		payload = append(payload, b...)
		return nil
	})
	if err != nil {
		return nil, err
	}
	defer Zeroize(payload)

	return sealEnvelope(uint8(constants.AlgorithmMLDSA65), payload, kek)
}

// ImportSigningKeyPair reverses ExportSigningKeyPair, re-running the
// pairwise consistency test before releasing the pair.
func ImportSigningKeyPair(env []byte, kek *SharedSecret) (*SigningKeyPair, error) {
	kind, payload, err := openEnvelope(env, kek)
	if err != nil {
		return nil, err
	}
	defer Zeroize(payload)

	if kind != uint8(constants.AlgorithmMLDSA65) ||
		len(payload) != constants.MLDSAPublicKeySize+constants.MLDSAPrivateKeySize {
		return nil, qerrors.ErrInvalidEnvelope
	}

	pub, err := ParseSigningPublicKey(payload[:constants.MLDSAPublicKeySize])
	if err != nil {
		return nil, err
	}
	sk := new(mldsa65.PrivateKey)
	sk.Unpack((*[mldsa65.PrivateKeySize]byte)(payload[constants.MLDSAPublicKeySize:]))

	if perr := fips.PairwiseSignTest(pub.key, sk); perr != nil {
		fips.SignalRuntimeFailure(perr)
		return nil, perr
	}

	packed := make([]byte, constants.MLDSAPrivateKeySize)
	copy(packed, payload[constants.MLDSAPublicKeySize:])

	return &SigningKeyPair{
		id:          uuid.New().String(),
		public:      pub,
		private:     NewCSP("ML-DSA-65 signing key", packed),
		pctVerified: true,
	}, nil
}

// sealEnvelope builds header || nonce || sealed over the payload.
func sealEnvelope(kind uint8, payload []byte, kek *SharedSecret) ([]byte, error) {
	if kek == nil {
		return nil, qerrors.ErrInvalidKeySize
	}
	if len(payload) == 0 {
		return nil, qerrors.ErrInvalidEnvelope
	}
	if len(payload) > constants.MaxEnvelopePayloadSize {
		return nil, qerrors.ErrEnvelopeTooLarge
	}

	header := make([]byte, constants.EnvelopeHeaderSize)
	header[0] = constants.EnvelopeVersion
	header[1] = kind
	binary.BigEndian.PutUint32(header[2:], uint32(len(payload)))

	wrapKey, err := deriveWrapKey(kek)
	if err != nil {
		return nil, err
	}
	defer Zeroize(wrapKey)

	aeadCipher, err := NewAEAD(constants.CipherSuiteAES256GCM, wrapKey)
	if err != nil {
		return nil, err
	}

	nonce := make([]byte, constants.AESNonceSize)
	if err := SecureRandomWithCST(nonce); err != nil {
		return nil, err
	}

	sealed, err := aeadCipher.SealWithNonce(nonce, payload, envelopeAAD(header))
	if err != nil {
		return nil, err
	}

	env := make([]byte, 0, len(header)+len(nonce)+len(sealed))
	env = append(env, header...)
	env = append(env, nonce...)
	env = append(env, sealed...)
	return env, nil
}

// openEnvelope validates the framing, authenticates the header, and returns
// the content kind with the decrypted payload.
func openEnvelope(env []byte, kek *SharedSecret) (uint8, []byte, error) {
	if err := fips.RequireOperational(); err != nil {
		return 0, nil, err
	}
	if kek == nil {
		return 0, nil, qerrors.ErrInvalidKeySize
	}
	if len(env) < constants.EnvelopeHeaderSize+constants.AESNonceSize+constants.AESTagSize {
		return 0, nil, qerrors.ErrInvalidEnvelope
	}

	header := env[:constants.EnvelopeHeaderSize]
	if header[0] != constants.EnvelopeVersion {
		return 0, nil, qerrors.ErrInvalidEnvelope
	}
	payloadLen := binary.BigEndian.Uint32(header[2:])
	if payloadLen == 0 {
		return 0, nil, qerrors.ErrInvalidEnvelope
	}
	if int(payloadLen) > constants.MaxEnvelopePayloadSize {
		return 0, nil, qerrors.ErrEnvelopeTooLarge
	}
	if len(env) != constants.EnvelopeHeaderSize+constants.AESNonceSize+int(payloadLen)+constants.AESTagSize {
		return 0, nil, qerrors.ErrInvalidEnvelope
	}

	nonce := env[constants.EnvelopeHeaderSize : constants.EnvelopeHeaderSize+constants.AESNonceSize]
	sealed := env[constants.EnvelopeHeaderSize+constants.AESNonceSize:]

	wrapKey, err := deriveWrapKey(kek)
	if err != nil {
		return 0, nil, err
	}
	defer Zeroize(wrapKey)

	aeadCipher, err := NewAEAD(constants.CipherSuiteAES256GCM, wrapKey)
	if err != nil {
		return 0, nil, err
	}

	payload, err := aeadCipher.OpenWithNonce(nonce, sealed, envelopeAAD(header))
	if err != nil {
		return 0, nil, err
	}
	return header[1], payload, nil
}

// envelopeAAD binds the header under the envelope domain separator.
func envelopeAAD(header []byte) []byte {
	return TranscriptHash([]byte(constants.DomainSeparatorEnvelope), header)
}

// deriveWrapKey derives the AES-256 wrapping key from the KEK under the
// key-wrap domain separator.
func deriveWrapKey(kek *SharedSecret) ([]byte, error) {
	var wrapKey []byte
	err := kek.WithBytes(func(b []byte) error {
		var derr error
		wrapKey, derr = DeriveKey(constants.DomainSeparatorKeyWrap, b, constants.AESKeySize)
		return derr
	})
	if err != nil {
		return nil, err
	}
	return wrapKey, nil
}

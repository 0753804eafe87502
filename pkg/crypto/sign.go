// sign.go implements the gated ML-DSA-65 digital signature entry points.
//
// ML-DSA (Module-Lattice-based Digital Signature Algorithm) is standardized
// in NIST FIPS 204. Its security rests on the Module Learning With Errors
// and Module Short Integer Solution problems.
//
// Signing is hedged: the provider mixes fresh randomness into each signature,
// so signing the same message twice yields different signatures that both
// verify. The context string is empty throughout.
//
// Security Level: NIST Category 3 (~192-bit post-quantum security)
package crypto

import (
	"github.com/cloudflare/circl/sign/mldsa/mldsa65"
	"github.com/google/uuid"

	"github.com/pqgate/pqgate/internal/constants"
	qerrors "github.com/pqgate/pqgate/internal/errors"
	"github.com/pqgate/pqgate/pkg/fips"
)

// SigningPublicKey wraps an ML-DSA-65 verification key.
type SigningPublicKey struct {
	key *mldsa65.PublicKey
}

// SigningKeyPair is an ML-DSA-65 key pair. The signing key lives packed
// inside a CSP guard for the pair's entire lifetime; operations unpack it
// only within the guard's scoped view.
type SigningKeyPair struct {
	id          string
	public      *SigningPublicKey
	private     *CSP
	pctVerified bool
}

// GenerateSigningKeyPair generates a new ML-DSA-65 key pair with fresh
// randomness from the health-checked source.
//
// The pair is checked for pairwise consistency per the active CST
// configuration before it is returned. A consistency failure discards the
// pair, forces the module into the error state, and returns ErrPCTFailed.
func GenerateSigningKeyPair() (*SigningKeyPair, error) {
	return generateSigningKeyPair(nil, false, CurrentCSTConfig())
}

// GenerateSigningKeyPairFromSeed generates an ML-DSA-65 key pair from a
// 32-byte seed. This is deterministic: the same seed will always produce the
// same key pair.
//
// The seed is validated after the state gate: wrong length or all-zero seeds
// fail with ErrSeedInvalid before reaching the provider.
func GenerateSigningKeyPairFromSeed(seed []byte) (*SigningKeyPair, error) {
	return generateSigningKeyPair(seed, true, CurrentCSTConfig())
}

// GenerateSigningKeyPairWithCST generates an ML-DSA-65 key pair under an
// explicit conditional self-test configuration. A nil seed draws OS entropy;
// a nil cfg uses the active configuration. FIPS-enforcing builds reject any
// cfg that disables the pairwise test with ErrPCTRequired.
func GenerateSigningKeyPairWithCST(seed []byte, cfg *CSTConfig) (*SigningKeyPair, error) {
	effective := CurrentCSTConfig()
	if cfg != nil {
		if fips.FIPSMode() && !cfg.EnablePairwiseTest {
			return nil, qerrors.ErrPCTRequired
		}
		effective = *cfg
	}
	return generateSigningKeyPair(seed, seed != nil, effective)
}

func generateSigningKeyPair(seed []byte, deterministic bool, cfg CSTConfig) (*SigningKeyPair, error) {
	if err := fips.RequireOperational(); err != nil {
		return nil, err
	}

	var (
		pub  *mldsa65.PublicKey
		priv *mldsa65.PrivateKey
	)
	if deterministic {
		if verr := ValidateSeed(seed, constants.MLDSAKeySeedSize); verr != nil {
			return nil, verr
		}
		pub, priv = mldsa65.NewKeyFromSeed((*[mldsa65.SeedSize]byte)(seed))
	} else {
		var err error
		pub, priv, err = mldsa65.GenerateKey(cstReader{})
		if err != nil {
			return nil, qerrors.NewCryptoError("GenerateSigningKeyPair", err)
		}
	}

	pctVerified := false
	if cfg.EnablePairwiseTest {
		if perr := fips.PairwiseSignTest(pub, priv); perr != nil {
			fips.SignalRuntimeFailure(perr)
			return nil, perr
		}
		pctVerified = true
	}

	var packed [mldsa65.PrivateKeySize]byte
	priv.Pack(&packed)

	return &SigningKeyPair{
		id:          uuid.New().String(),
		public:      &SigningPublicKey{key: pub},
		private:     NewCSP("ML-DSA-65 signing key", packed[:]),
		pctVerified: pctVerified,
	}, nil
}

// Sign produces a hedged ML-DSA-65 signature (3309 bytes) over the message.
// A zeroized pair fails with ErrCSPReleased.
func Sign(kp *SigningKeyPair, message []byte) ([]byte, error) {
	if err := fips.RequireOperational(); err != nil {
		return nil, err
	}
	if kp == nil || kp.private == nil {
		return nil, qerrors.ErrInvalidPrivateKey
	}

	sig := make([]byte, mldsa65.SignatureSize)
	err := kp.private.WithBytes(func(packed []byte) error {
		sk := new(mldsa65.PrivateKey)
		sk.Unpack((*[mldsa65.PrivateKeySize]byte)(packed))
		if serr := mldsa65.SignTo(sk, message, nil, true, sig); serr != nil {
			return qerrors.NewCryptoError("Sign", serr)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return sig, nil
}

// VerifySignature checks an ML-DSA-65 signature. The returned bool is the
// signature's validity; the error reports gate or size failures only. An
// invalid signature over a well-formed input is (false, nil).
func VerifySignature(pk *SigningPublicKey, message, signature []byte) (bool, error) {
	if err := fips.RequireOperational(); err != nil {
		return false, err
	}
	if pk == nil || pk.key == nil {
		return false, qerrors.ErrInvalidPublicKey
	}
	if len(signature) != constants.MLDSASignatureSize {
		return false, qerrors.ErrInvalidSignature
	}
	return mldsa65.Verify(pk.key, message, nil, signature), nil
}

// ID returns the pair's unique identifier, assigned at generation.
func (kp *SigningKeyPair) ID() string {
	return kp.id
}

// Algorithm returns the pair's algorithm family.
func (kp *SigningKeyPair) Algorithm() constants.Algorithm {
	return constants.AlgorithmMLDSA65
}

// PCTVerified reports whether the pair passed its pairwise consistency test.
// In FIPS-enforcing builds this is true for every pair a caller can observe.
func (kp *SigningKeyPair) PCTVerified() bool {
	return kp.pctVerified
}

// PublicKey returns the pair's verification key.
func (kp *SigningKeyPair) PublicKey() *SigningPublicKey {
	return kp.public
}

// PublicKeyBytes returns the encoded bytes of the verification key.
func (kp *SigningKeyPair) PublicKeyBytes() []byte {
	return kp.public.Bytes()
}

// Zeroize releases the signing key. The verification key remains readable;
// subsequent signing attempts fail with ErrCSPReleased. Idempotent.
func (kp *SigningKeyPair) Zeroize() {
	if kp.private != nil {
		kp.private.Zeroize()
	}
}

// Bytes returns the encoded bytes of the public key.
func (pk *SigningPublicKey) Bytes() []byte {
	if pk == nil || pk.key == nil {
		return nil
	}
	var buf [mldsa65.PublicKeySize]byte
	pk.key.Pack(&buf)
	return buf[:]
}

// ParseSigningPublicKey parses an ML-DSA-65 public key from its encoded form.
func ParseSigningPublicKey(data []byte) (*SigningPublicKey, error) {
	if len(data) != constants.MLDSAPublicKeySize {
		return nil, qerrors.ErrInvalidPublicKey
	}

	pk := new(mldsa65.PublicKey)
	pk.Unpack((*[mldsa65.PublicKeySize]byte)(data))

	return &SigningPublicKey{key: pk}, nil
}

// kem.go implements the gated ML-KEM-1024 key encapsulation entry points.
//
// ML-KEM (Module-Lattice-based Key-Encapsulation Mechanism) is standardized
// in NIST FIPS 203. The security of ML-KEM is based on the computational
// difficulty of the Module Learning With Errors (MLWE) problem.
//
// Every operation here consults the module state machine before touching the
// primitive provider. Key generation additionally validates seed material and
// runs a pairwise consistency test on the fresh pair; a pair that fails its
// consistency check is never returned, and the failure forces the module into
// the terminal error state.
//
// Security Level: NIST Category 5 (equivalent to AES-256 against quantum adversaries)
package crypto

import (
	"github.com/cloudflare/circl/kem/mlkem/mlkem1024"
	"github.com/google/uuid"

	"github.com/pqgate/pqgate/internal/constants"
	qerrors "github.com/pqgate/pqgate/internal/errors"
	"github.com/pqgate/pqgate/pkg/fips"
)

// KEMPublicKey wraps an ML-KEM-1024 encapsulation key.
type KEMPublicKey struct {
	key *mlkem1024.PublicKey
}

// KEMKeyPair is an ML-KEM-1024 key pair. The decapsulation key lives packed
// inside a CSP guard for the pair's entire lifetime; operations unpack it
// only within the guard's scoped view.
type KEMKeyPair struct {
	id          string
	public      *KEMPublicKey
	private     *CSP
	pctVerified bool
}

// GenerateKEMKeyPair generates a new ML-KEM-1024 key pair with fresh
// randomness from the health-checked source.
//
// The pair is checked for pairwise consistency per the active CST
// configuration before it is returned. A consistency failure discards the
// pair, forces the module into the error state, and returns ErrPCTFailed.
func GenerateKEMKeyPair() (*KEMKeyPair, error) {
	return generateKEMKeyPair(nil, false, CurrentCSTConfig())
}

// GenerateKEMKeyPairFromSeed generates an ML-KEM-1024 key pair from a
// 64-byte seed. This is deterministic: the same seed will always produce the
// same key pair.
//
// The seed is validated after the state gate: wrong length or all-zero seeds
// fail with ErrSeedInvalid before reaching the provider.
func GenerateKEMKeyPairFromSeed(seed []byte) (*KEMKeyPair, error) {
	return generateKEMKeyPair(seed, true, CurrentCSTConfig())
}

// GenerateKEMKeyPairWithCST generates an ML-KEM-1024 key pair under an
// explicit conditional self-test configuration. A nil seed draws OS entropy;
// a nil cfg uses the active configuration. FIPS-enforcing builds reject any
// cfg that disables the pairwise test with ErrPCTRequired.
func GenerateKEMKeyPairWithCST(seed []byte, cfg *CSTConfig) (*KEMKeyPair, error) {
	effective := CurrentCSTConfig()
	if cfg != nil {
		if fips.FIPSMode() && !cfg.EnablePairwiseTest {
			return nil, qerrors.ErrPCTRequired
		}
		effective = *cfg
	}
	return generateKEMKeyPair(seed, seed != nil, effective)
}

func generateKEMKeyPair(seed []byte, deterministic bool, cfg CSTConfig) (*KEMKeyPair, error) {
	if err := fips.RequireOperational(); err != nil {
		return nil, err
	}

	var (
		pk  *mlkem1024.PublicKey
		sk  *mlkem1024.PrivateKey
		err error
	)
	if deterministic {
		if verr := ValidateSeed(seed, constants.MLKEMKeySeedSize); verr != nil {
			return nil, verr
		}
		pk, sk, err = mlkem1024.GenerateKeyPair(&deterministicReader{data: seed})
	} else {
		pk, sk, err = mlkem1024.GenerateKeyPair(cstReader{})
	}
	if err != nil {
		return nil, qerrors.NewCryptoError("GenerateKEMKeyPair", err)
	}

	pctVerified := false
	if cfg.EnablePairwiseTest {
		if perr := fips.PairwiseKEMTest(pk, sk); perr != nil {
			fips.SignalRuntimeFailure(perr)
			return nil, perr
		}
		pctVerified = true
	}

	packed := make([]byte, mlkem1024.PrivateKeySize)
	sk.Pack(packed)

	return &KEMKeyPair{
		id:          uuid.New().String(),
		public:      &KEMPublicKey{key: pk},
		private:     NewCSP("ML-KEM-1024 decapsulation key", packed),
		pctVerified: pctVerified,
	}, nil
}

// deterministicReader provides deterministic "randomness" from a seed.
type deterministicReader struct {
	data   []byte
	offset int
}

func (r *deterministicReader) Read(p []byte) (n int, err error) {
	n = copy(p, r.data[r.offset:])
	r.offset += n
	return n, nil
}

// Encapsulate performs key encapsulation against the given public key using
// fresh randomness from the health-checked source.
//
// Returns the ciphertext (1568 bytes) and the 32-byte shared secret under a
// CSP guard.
func Encapsulate(pk *KEMPublicKey) ([]byte, *SharedSecret, error) {
	if err := fips.RequireOperational(); err != nil {
		return nil, nil, err
	}
	seed := make([]byte, constants.MLKEMEncapSeedSize)
	if err := SecureRandomWithCST(seed); err != nil {
		return nil, nil, err
	}
	defer Zeroize(seed)
	return encapsulateTo(pk, seed)
}

// EncapsulateWithSeed performs deterministic key encapsulation from a
// 32-byte seed. The same (key, seed) pair always produces the same
// ciphertext and shared secret.
func EncapsulateWithSeed(pk *KEMPublicKey, seed []byte) ([]byte, *SharedSecret, error) {
	if err := fips.RequireOperational(); err != nil {
		return nil, nil, err
	}
	if err := ValidateSeed(seed, constants.MLKEMEncapSeedSize); err != nil {
		return nil, nil, err
	}
	return encapsulateTo(pk, seed)
}

func encapsulateTo(pk *KEMPublicKey, seed []byte) ([]byte, *SharedSecret, error) {
	if pk == nil || pk.key == nil {
		return nil, nil, qerrors.ErrInvalidPublicKey
	}

	ct := make([]byte, mlkem1024.CiphertextSize)
	ss := make([]byte, mlkem1024.SharedKeySize)
	pk.key.EncapsulateTo(ct, ss, seed)

	secret, err := NewSharedSecret(ss)
	if err != nil {
		return nil, nil, err
	}
	return ct, secret, nil
}

// Decapsulate recovers the shared secret from a ciphertext using the pair's
// decapsulation key. ML-KEM decapsulation uses implicit rejection: a
// malformed-but-well-sized ciphertext yields a random-looking secret rather
// than an error.
//
// A zeroized pair fails with ErrCSPReleased.
func Decapsulate(kp *KEMKeyPair, ciphertext []byte) (*SharedSecret, error) {
	if err := fips.RequireOperational(); err != nil {
		return nil, err
	}
	if kp == nil || kp.private == nil {
		return nil, qerrors.ErrInvalidPrivateKey
	}
	if len(ciphertext) != constants.MLKEMCiphertextSize {
		return nil, qerrors.ErrInvalidCiphertext
	}

	ss := make([]byte, mlkem1024.SharedKeySize)
	err := kp.private.WithBytes(func(packed []byte) error {
		sk := new(mlkem1024.PrivateKey)
		if uerr := sk.Unpack(packed); uerr != nil {
			return qerrors.NewCryptoError("Decapsulate", uerr)
		}
		sk.DecapsulateTo(ss, ciphertext)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return NewSharedSecret(ss)
}

// ID returns the pair's unique identifier, assigned at generation.
func (kp *KEMKeyPair) ID() string {
	return kp.id
}

// Algorithm returns the pair's algorithm family.
func (kp *KEMKeyPair) Algorithm() constants.Algorithm {
	return constants.AlgorithmMLKEM1024
}

// PCTVerified reports whether the pair passed its pairwise consistency test.
// In FIPS-enforcing builds this is true for every pair a caller can observe.
func (kp *KEMKeyPair) PCTVerified() bool {
	return kp.pctVerified
}

// PublicKey returns the pair's encapsulation key.
func (kp *KEMKeyPair) PublicKey() *KEMPublicKey {
	return kp.public
}

// PublicKeyBytes returns the encoded bytes of the encapsulation key.
func (kp *KEMKeyPair) PublicKeyBytes() []byte {
	return kp.public.Bytes()
}

// Zeroize releases the decapsulation key. The public key remains readable;
// subsequent decapsulation attempts fail with ErrCSPReleased. Idempotent.
func (kp *KEMKeyPair) Zeroize() {
	if kp.private != nil {
		kp.private.Zeroize()
	}
}

// Bytes returns the encoded bytes of the public key.
func (pk *KEMPublicKey) Bytes() []byte {
	if pk == nil || pk.key == nil {
		return nil
	}
	buf := make([]byte, mlkem1024.PublicKeySize)
	pk.key.Pack(buf)
	return buf
}

// ParseKEMPublicKey parses an ML-KEM-1024 public key from its encoded form.
func ParseKEMPublicKey(data []byte) (*KEMPublicKey, error) {
	if len(data) != constants.MLKEMPublicKeySize {
		return nil, qerrors.ErrInvalidPublicKey
	}

	pk := new(mlkem1024.PublicKey)
	if err := pk.Unpack(data); err != nil {
		return nil, qerrors.NewCryptoError("ParseKEMPublicKey", err)
	}

	return &KEMPublicKey{key: pk}, nil
}

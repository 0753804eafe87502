// pct.go implements the pair-wise consistency tests (PCT) required by
// FIPS 140-3 for asymmetric key generation (ISO/IEC 19790 section 7.10.3.3).
//
// A PCT exercises a freshly generated key pair end to end before the key is
// released: encapsulate/decapsulate for a KEM pair, sign/verify for a
// signature pair. A mismatch means the underlying primitive is producing
// inconsistent results, which is fatal to the module, not just to the call.
// The functions here only report the failure; the caller owns discarding the
// key and signalling the state machine.
package fips

import (
	"bytes"
	"crypto/rand"
	"errors"

	"github.com/cloudflare/circl/kem/mlkem/mlkem1024"
	"github.com/cloudflare/circl/sign/mldsa/mldsa65"

	qerrors "github.com/pqgate/pqgate/internal/errors"
)

// pctProbeMessage is signed and verified during a signature key pair's
// consistency test. The content is arbitrary but fixed.
const pctProbeMessage = "FIPS 140-3 Pair-wise Consistency Test"

// PairwiseKEMTest checks a freshly generated ML-KEM-1024 key pair by
// encapsulating against the public key and decapsulating with the private
// key. The two shared secrets must be byte-identical. The transient secrets
// are wiped before returning.
func PairwiseKEMTest(pk *mlkem1024.PublicKey, sk *mlkem1024.PrivateKey) error {
	if pk == nil || sk == nil {
		return qerrors.NewSelfTestError(qerrors.KindPCT, "ML-KEM-1024", qerrors.ErrInvalidPublicKey)
	}

	seed := make([]byte, mlkem1024.EncapsulationSeedSize)
	if _, err := rand.Read(seed); err != nil {
		return qerrors.NewSelfTestError(qerrors.KindPCT, "ML-KEM-1024", err)
	}

	ct := make([]byte, mlkem1024.CiphertextSize)
	ss1 := make([]byte, mlkem1024.SharedKeySize)
	pk.EncapsulateTo(ct, ss1, seed)

	ss2 := make([]byte, mlkem1024.SharedKeySize)
	sk.DecapsulateTo(ss2, ct)

	match := bytes.Equal(ss1, ss2)
	wipe(ss1)
	wipe(ss2)

	if !match {
		return qerrors.NewSelfTestError(qerrors.KindPCT, "ML-KEM-1024",
			errors.New("shared secret mismatch after round trip"))
	}
	return nil
}

// PairwiseSignTest checks a freshly generated ML-DSA-65 key pair by signing
// a fixed probe message and verifying the signature with the public key.
func PairwiseSignTest(pub *mldsa65.PublicKey, priv *mldsa65.PrivateKey) error {
	if pub == nil || priv == nil {
		return qerrors.NewSelfTestError(qerrors.KindPCT, "ML-DSA-65", qerrors.ErrInvalidPublicKey)
	}

	msg := []byte(pctProbeMessage)
	sig := make([]byte, mldsa65.SignatureSize)
	if err := mldsa65.SignTo(priv, msg, nil, true, sig); err != nil {
		return qerrors.NewSelfTestError(qerrors.KindPCT, "ML-DSA-65", err)
	}

	if !mldsa65.Verify(pub, msg, nil, sig) {
		return qerrors.NewSelfTestError(qerrors.KindPCT, "ML-DSA-65",
			errors.New("probe signature did not verify"))
	}
	return nil
}

// wipe overwrites b with zeros. The fips package cannot use pkg/crypto's
// zeroization helpers without creating an import cycle, so transient secrets
// are cleared locally.
func wipe(b []byte) {
	for i := range b {
		b[i] = 0
	}
}

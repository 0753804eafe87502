package crypto

import (
	"bytes"
	"testing"

	"github.com/pqgate/pqgate/internal/constants"
	qerrors "github.com/pqgate/pqgate/internal/errors"
	"github.com/pqgate/pqgate/pkg/fips"
)

func TestGenerateSigningKeyPair(t *testing.T) {
	kp, err := GenerateSigningKeyPair()
	if err != nil {
		t.Fatalf("GenerateSigningKeyPair failed: %v", err)
	}
	defer kp.Zeroize()

	if kp.ID() == "" {
		t.Error("key pair has empty ID")
	}
	if !kp.PCTVerified() {
		t.Error("PCTVerified = false, want true under the default configuration")
	}
	if kp.Algorithm() != constants.AlgorithmMLDSA65 {
		t.Errorf("Algorithm = %v, want %v", kp.Algorithm(), constants.AlgorithmMLDSA65)
	}
	if got := len(kp.PublicKeyBytes()); got != constants.MLDSAPublicKeySize {
		t.Errorf("public key size = %d, want %d", got, constants.MLDSAPublicKeySize)
	}
}

func TestGenerateSigningKeyPairFromSeed(t *testing.T) {
	seed := make([]byte, constants.MLDSAKeySeedSize)
	for i := range seed {
		seed[i] = byte(0x80 + i)
	}

	t.Run("Deterministic", func(t *testing.T) {
		kp1, err := GenerateSigningKeyPairFromSeed(seed)
		if err != nil {
			t.Fatalf("first generation failed: %v", err)
		}
		defer kp1.Zeroize()

		kp2, err := GenerateSigningKeyPairFromSeed(seed)
		if err != nil {
			t.Fatalf("second generation failed: %v", err)
		}
		defer kp2.Zeroize()

		if !bytes.Equal(kp1.PublicKeyBytes(), kp2.PublicKeyBytes()) {
			t.Error("same seed produced different public keys")
		}
	})

	t.Run("BadSeeds", func(t *testing.T) {
		cases := []struct {
			name string
			seed []byte
		}{
			{"Nil", nil},
			{"Long", make([]byte, 64)},
			{"AllZero", make([]byte, constants.MLDSAKeySeedSize)},
		}
		for _, tc := range cases {
			t.Run(tc.name, func(t *testing.T) {
				if _, err := GenerateSigningKeyPairFromSeed(tc.seed); !qerrors.Is(err, qerrors.ErrSeedInvalid) {
					t.Errorf("err = %v, want ErrSeedInvalid", err)
				}
			})
		}
	})
}

func TestSignVerify(t *testing.T) {
	kp, err := GenerateSigningKeyPair()
	if err != nil {
		t.Fatalf("GenerateSigningKeyPair failed: %v", err)
	}
	defer kp.Zeroize()

	message := []byte("attested module firmware v1.4.2")

	sig, err := Sign(kp, message)
	if err != nil {
		t.Fatalf("Sign failed: %v", err)
	}
	if len(sig) != constants.MLDSASignatureSize {
		t.Errorf("signature size = %d, want %d", len(sig), constants.MLDSASignatureSize)
	}

	valid, err := VerifySignature(kp.PublicKey(), message, sig)
	if err != nil {
		t.Fatalf("VerifySignature failed: %v", err)
	}
	if !valid {
		t.Error("genuine signature rejected")
	}

	t.Run("TamperedMessage", func(t *testing.T) {
		tampered := append([]byte(nil), message...)
		tampered[0] ^= 0x01
		valid, err := VerifySignature(kp.PublicKey(), tampered, sig)
		if err != nil {
			t.Fatalf("VerifySignature failed: %v", err)
		}
		if valid {
			t.Error("signature verified over a tampered message")
		}
	})

	t.Run("TamperedSignature", func(t *testing.T) {
		mangled := append([]byte(nil), sig...)
		mangled[10] ^= 0xff
		valid, err := VerifySignature(kp.PublicKey(), message, mangled)
		if err != nil {
			t.Fatalf("VerifySignature failed: %v", err)
		}
		if valid {
			t.Error("tampered signature verified")
		}
	})

	t.Run("WrongSignatureSize", func(t *testing.T) {
		if _, err := VerifySignature(kp.PublicKey(), message, sig[:100]); !qerrors.Is(err, qerrors.ErrInvalidSignature) {
			t.Errorf("err = %v, want ErrInvalidSignature", err)
		}
	})

	t.Run("WrongKey", func(t *testing.T) {
		other, err := GenerateSigningKeyPair()
		if err != nil {
			t.Fatalf("GenerateSigningKeyPair failed: %v", err)
		}
		defer other.Zeroize()

		valid, err := VerifySignature(other.PublicKey(), message, sig)
		if err != nil {
			t.Fatalf("VerifySignature failed: %v", err)
		}
		if valid {
			t.Error("signature verified under an unrelated key")
		}
	})
}

func TestSignHedged(t *testing.T) {
	kp, err := GenerateSigningKeyPair()
	if err != nil {
		t.Fatalf("GenerateSigningKeyPair failed: %v", err)
	}
	defer kp.Zeroize()

	message := []byte("hedged signing probe")

	sig1, err := Sign(kp, message)
	if err != nil {
		t.Fatalf("first Sign failed: %v", err)
	}
	sig2, err := Sign(kp, message)
	if err != nil {
		t.Fatalf("second Sign failed: %v", err)
	}

	if bytes.Equal(sig1, sig2) {
		t.Error("hedged signing produced identical signatures")
	}
	for i, sig := range [][]byte{sig1, sig2} {
		valid, err := VerifySignature(kp.PublicKey(), message, sig)
		if err != nil {
			t.Fatalf("VerifySignature %d failed: %v", i, err)
		}
		if !valid {
			t.Errorf("signature %d rejected", i)
		}
	}
}

func TestSignErrors(t *testing.T) {
	t.Run("NilPair", func(t *testing.T) {
		if _, err := Sign(nil, []byte("msg")); !qerrors.Is(err, qerrors.ErrInvalidPrivateKey) {
			t.Errorf("err = %v, want ErrInvalidPrivateKey", err)
		}
	})

	t.Run("ZeroizedPair", func(t *testing.T) {
		kp, err := GenerateSigningKeyPair()
		if err != nil {
			t.Fatalf("GenerateSigningKeyPair failed: %v", err)
		}
		kp.Zeroize()
		if _, err := Sign(kp, []byte("msg")); !qerrors.Is(err, qerrors.ErrCSPReleased) {
			t.Errorf("err = %v, want ErrCSPReleased", err)
		}
	})
}

func TestSignGateBeforePOST(t *testing.T) {
	kp, err := GenerateSigningKeyPair()
	if err != nil {
		t.Fatalf("GenerateSigningKeyPair failed: %v", err)
	}
	defer kp.Zeroize()

	fips.Reset()
	defer fips.MustRunPOST()

	if _, err := Sign(kp, []byte("msg")); !qerrors.Is(err, qerrors.ErrNotInitialized) {
		t.Errorf("Sign = %v, want ErrNotInitialized", err)
	}
	if _, err := VerifySignature(kp.PublicKey(), []byte("msg"), make([]byte, constants.MLDSASignatureSize)); !qerrors.Is(err, qerrors.ErrNotInitialized) {
		t.Errorf("VerifySignature = %v, want ErrNotInitialized", err)
	}
}

func TestParseSigningPublicKey(t *testing.T) {
	kp, err := GenerateSigningKeyPair()
	if err != nil {
		t.Fatalf("GenerateSigningKeyPair failed: %v", err)
	}
	defer kp.Zeroize()

	message := []byte("parsed key verification")
	sig, err := Sign(kp, message)
	if err != nil {
		t.Fatalf("Sign failed: %v", err)
	}

	parsed, err := ParseSigningPublicKey(kp.PublicKeyBytes())
	if err != nil {
		t.Fatalf("ParseSigningPublicKey failed: %v", err)
	}
	valid, err := VerifySignature(parsed, message, sig)
	if err != nil {
		t.Fatalf("VerifySignature failed: %v", err)
	}
	if !valid {
		t.Error("parsed key rejected a genuine signature")
	}

	if _, err := ParseSigningPublicKey(make([]byte, 17)); !qerrors.Is(err, qerrors.ErrInvalidPublicKey) {
		t.Errorf("wrong size: err = %v, want ErrInvalidPublicKey", err)
	}
}

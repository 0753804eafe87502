// Package integration provides end-to-end tests for the PQGate module
// lifecycle: self-test gating, key generation with pairwise consistency
// checks, the approved services, and zeroization.
package integration

import (
	"bytes"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/pqgate/pqgate/internal/constants"
	qerrors "github.com/pqgate/pqgate/internal/errors"
	"github.com/pqgate/pqgate/pkg/crypto"
	"github.com/pqgate/pqgate/pkg/fips"
)

// restoreOperational resets the process-wide module and re-runs the
// self-tests so later tests see an operational module.
func restoreOperational(t *testing.T) {
	t.Helper()
	fips.SetObserver(nil)
	fips.Reset()
	if err := fips.RunPOST(); err != nil {
		t.Fatalf("Failed to restore operational state: %v", err)
	}
}

// TestGateClosedBeforePOST verifies that every approved service fails fast
// on a powered-on module and that the refusal does not change state.
func TestGateClosedBeforePOST(t *testing.T) {
	fips.Reset()
	defer restoreOperational(t)

	if got := fips.CurrentState(); got != fips.StatePowerOn {
		t.Fatalf("State after reset = %v, want %v", got, fips.StatePowerOn)
	}

	if _, err := crypto.GenerateKEMKeyPair(); !errors.Is(err, qerrors.ErrNotInitialized) {
		t.Errorf("GenerateKEMKeyPair before POST: err = %v, want ErrNotInitialized", err)
	}
	if _, _, err := crypto.Encapsulate(nil); !errors.Is(err, qerrors.ErrNotInitialized) {
		t.Errorf("Encapsulate before POST: err = %v, want ErrNotInitialized", err)
	}
	if _, err := crypto.GenerateSigningKeyPair(); !errors.Is(err, qerrors.ErrNotInitialized) {
		t.Errorf("GenerateSigningKeyPair before POST: err = %v, want ErrNotInitialized", err)
	}
	if _, err := crypto.Sign(nil, []byte("msg")); !errors.Is(err, qerrors.ErrNotInitialized) {
		t.Errorf("Sign before POST: err = %v, want ErrNotInitialized", err)
	}

	// Refused operations must not move the state machine.
	if got := fips.CurrentState(); got != fips.StatePowerOn {
		t.Errorf("State after refused operations = %v, want %v", got, fips.StatePowerOn)
	}
}

// postCounter counts full self-test executions through the observer hook.
type postCounter struct {
	fips.NoOpObserver
	runs atomic.Int32
}

func (c *postCounter) OnPOSTStart() func(*fips.POSTResult) {
	c.runs.Add(1)
	return nil
}

// TestConcurrentPOSTConvergence spawns many goroutines racing RunPOST and
// verifies exactly one full execution and a single converged outcome.
func TestConcurrentPOSTConvergence(t *testing.T) {
	fips.Reset()
	defer restoreOperational(t)

	counter := &postCounter{}
	fips.SetObserver(counter)

	const goroutines = 32
	results := make([]error, goroutines)

	var wg sync.WaitGroup
	wg.Add(goroutines)
	for i := 0; i < goroutines; i++ {
		go func(idx int) {
			defer wg.Done()
			results[idx] = fips.RunPOST()
		}(i)
	}
	wg.Wait()

	if got := counter.runs.Load(); got != 1 {
		t.Errorf("Self-test executions = %d, want exactly 1", got)
	}
	if got := fips.CurrentState(); got != fips.StateOperational {
		t.Fatalf("State after concurrent POST = %v, want %v", got, fips.StateOperational)
	}

	// Every caller either won (nil), lost the race into a running self-test
	// (ErrSelfTestsRunning) or observed the final operational state (nil).
	for i, err := range results {
		if err != nil && !errors.Is(err, qerrors.ErrSelfTestsRunning) {
			t.Errorf("Goroutine %d: err = %v, want nil or ErrSelfTestsRunning", i, err)
		}
	}
}

// TestPOSTIdempotent verifies both idempotent paths: repeated success and
// absorbing failure.
func TestPOSTIdempotent(t *testing.T) {
	fips.Reset()
	defer restoreOperational(t)

	if err := fips.RunPOST(); err != nil {
		t.Fatalf("First RunPOST failed: %v", err)
	}
	first := fips.LastResult()
	if first == nil {
		t.Fatal("LastResult is nil after a successful run")
	}

	if err := fips.RunPOST(); err != nil {
		t.Fatalf("Second RunPOST failed: %v", err)
	}
	if second := fips.LastResult(); second.RunID != first.RunID {
		t.Error("Second RunPOST re-executed the self-tests on an operational module")
	}
}

// TestRuntimeFailureIsAbsorbing drives the module into the error state and
// verifies that every entry point, including RunPOST, reports the recorded
// failure until a restart.
func TestRuntimeFailureIsAbsorbing(t *testing.T) {
	fips.Reset()
	defer restoreOperational(t)

	if err := fips.RunPOST(); err != nil {
		t.Fatalf("RunPOST failed: %v", err)
	}

	injected := errors.New("injected consistency failure")
	fips.SignalRuntimeFailure(injected)

	if got := fips.CurrentState(); got != fips.StateError {
		t.Fatalf("State after runtime failure = %v, want %v", got, fips.StateError)
	}
	if _, err := crypto.GenerateKEMKeyPair(); !errors.Is(err, qerrors.ErrModuleError) {
		t.Errorf("GenerateKEMKeyPair in error state: err = %v, want ErrModuleError", err)
	}
	if err := fips.RunPOST(); !errors.Is(err, injected) {
		t.Errorf("RunPOST in error state: err = %v, want the recorded failure", err)
	}
	if got := fips.CurrentState(); got != fips.StateError {
		t.Errorf("State after idempotent-failure POST = %v, want %v", got, fips.StateError)
	}
}

// TestFullLifecycle walks POST, a KEM round trip, session key derivation,
// an AEAD round trip, signing, key wrapping and zeroization in one flow.
func TestFullLifecycle(t *testing.T) {
	restoreOperational(t)

	kemPair, err := crypto.GenerateKEMKeyPair()
	if err != nil {
		t.Fatalf("GenerateKEMKeyPair failed: %v", err)
	}
	defer kemPair.Zeroize()
	if !kemPair.PCTVerified() {
		t.Error("Fresh KEM pair is not PCT-verified")
	}

	ciphertext, sent, err := crypto.Encapsulate(kemPair.PublicKey())
	if err != nil {
		t.Fatalf("Encapsulate failed: %v", err)
	}
	defer sent.Zeroize()

	received, err := crypto.Decapsulate(kemPair, ciphertext)
	if err != nil {
		t.Fatalf("Decapsulate failed: %v", err)
	}
	defer received.Zeroize()
	if !sent.Equal(received) {
		t.Fatal("Shared secrets diverged across the round trip")
	}

	sessionKey, err := crypto.DeriveSessionKey(received, []byte("integration"))
	if err != nil {
		t.Fatalf("DeriveSessionKey failed: %v", err)
	}
	defer sessionKey.Zeroize()

	aead, err := crypto.NewAEADFromCSP(crypto.PreferredCipherSuite(), sessionKey)
	if err != nil {
		t.Fatalf("NewAEADFromCSP failed: %v", err)
	}
	plaintext := []byte("end to end through the gated services")
	sealed, err := aead.Seal(plaintext, []byte("aad"))
	if err != nil {
		t.Fatalf("Seal failed: %v", err)
	}
	opened, err := aead.Open(sealed, []byte("aad"))
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	if !bytes.Equal(opened, plaintext) {
		t.Error("AEAD round trip altered the plaintext")
	}

	signPair, err := crypto.GenerateSigningKeyPair()
	if err != nil {
		t.Fatalf("GenerateSigningKeyPair failed: %v", err)
	}
	defer signPair.Zeroize()

	message := []byte("integration message")
	signature, err := crypto.Sign(signPair, message)
	if err != nil {
		t.Fatalf("Sign failed: %v", err)
	}
	valid, err := crypto.VerifySignature(signPair.PublicKey(), message, signature)
	if err != nil || !valid {
		t.Fatalf("VerifySignature = (%v, %v), want (true, nil)", valid, err)
	}
	tampered := append([]byte(nil), message...)
	tampered[0] ^= 0x01
	valid, err = crypto.VerifySignature(signPair.PublicKey(), tampered, signature)
	if err != nil {
		t.Fatalf("VerifySignature on tampered message errored: %v", err)
	}
	if valid {
		t.Error("Tampered message verified")
	}

	kek, err := crypto.NewSharedSecret(crypto.MustSecureRandomBytes(constants.AESKeySize))
	if err != nil {
		t.Fatalf("NewSharedSecret failed: %v", err)
	}
	defer kek.Zeroize()

	envelope, err := crypto.ExportKEMKeyPair(kemPair, kek)
	if err != nil {
		t.Fatalf("ExportKEMKeyPair failed: %v", err)
	}
	imported, err := crypto.ImportKEMKeyPair(envelope, kek)
	if err != nil {
		t.Fatalf("ImportKEMKeyPair failed: %v", err)
	}
	defer imported.Zeroize()
	if !imported.PCTVerified() {
		t.Error("Imported pair was released without a pairwise consistency check")
	}

	// The imported pair must decapsulate ciphertext produced for the original.
	reimported, err := crypto.Decapsulate(imported, ciphertext)
	if err != nil {
		t.Fatalf("Decapsulate with imported pair failed: %v", err)
	}
	defer reimported.Zeroize()
	if !sent.Equal(reimported) {
		t.Error("Imported pair decapsulated to a different secret")
	}
}

// TestDeterministicRoundTrip pins the seeded generation and encapsulation
// paths: the same seeds must reproduce byte-identical outputs.
func TestDeterministicRoundTrip(t *testing.T) {
	restoreOperational(t)

	keySeed := make([]byte, constants.MLKEMKeySeedSize)
	encapSeed := make([]byte, constants.MLKEMEncapSeedSize)
	for i := range keySeed {
		keySeed[i] = byte(i + 1)
	}
	for i := range encapSeed {
		encapSeed[i] = byte(0xA0 ^ i)
	}

	pairA, err := crypto.GenerateKEMKeyPairFromSeed(keySeed)
	if err != nil {
		t.Fatalf("GenerateKEMKeyPairFromSeed failed: %v", err)
	}
	defer pairA.Zeroize()
	pairB, err := crypto.GenerateKEMKeyPairFromSeed(keySeed)
	if err != nil {
		t.Fatalf("Second GenerateKEMKeyPairFromSeed failed: %v", err)
	}
	defer pairB.Zeroize()
	if !bytes.Equal(pairA.PublicKeyBytes(), pairB.PublicKeyBytes()) {
		t.Fatal("Same seed produced different public keys")
	}

	ctA, ssA, err := crypto.EncapsulateWithSeed(pairA.PublicKey(), encapSeed)
	if err != nil {
		t.Fatalf("EncapsulateWithSeed failed: %v", err)
	}
	defer ssA.Zeroize()
	ctB, ssB, err := crypto.EncapsulateWithSeed(pairB.PublicKey(), encapSeed)
	if err != nil {
		t.Fatalf("Second EncapsulateWithSeed failed: %v", err)
	}
	defer ssB.Zeroize()

	if !bytes.Equal(ctA, ctB) {
		t.Error("Same (key, seed) produced different ciphertexts")
	}
	if !ssA.Equal(ssB) {
		t.Error("Same (key, seed) produced different shared secrets")
	}

	recovered, err := crypto.Decapsulate(pairB, ctA)
	if err != nil {
		t.Fatalf("Decapsulate failed: %v", err)
	}
	defer recovered.Zeroize()
	if !ssA.Equal(recovered) {
		t.Error("Deterministic round trip diverged")
	}
}

// TestSeedValidationBlocksDegenerateMaterial covers all-zero and
// wrong-length seeds on the generation entry points.
func TestSeedValidationBlocksDegenerateMaterial(t *testing.T) {
	restoreOperational(t)

	zeroSeed := make([]byte, constants.MLKEMKeySeedSize)
	if _, err := crypto.GenerateKEMKeyPairFromSeed(zeroSeed); !errors.Is(err, qerrors.ErrSeedInvalid) {
		t.Errorf("All-zero KEM seed: err = %v, want ErrSeedInvalid", err)
	}

	short := make([]byte, constants.MLKEMKeySeedSize-1)
	short[0] = 1
	if _, err := crypto.GenerateKEMKeyPairFromSeed(short); !errors.Is(err, qerrors.ErrSeedInvalid) {
		t.Errorf("Short KEM seed: err = %v, want ErrSeedInvalid", err)
	}

	zeroSignSeed := make([]byte, constants.MLDSAKeySeedSize)
	if _, err := crypto.GenerateSigningKeyPairFromSeed(zeroSignSeed); !errors.Is(err, qerrors.ErrSeedInvalid) {
		t.Errorf("All-zero signing seed: err = %v, want ErrSeedInvalid", err)
	}

	// Rejection must not disturb the module.
	if got := fips.CurrentState(); got != fips.StateOperational {
		t.Errorf("State after seed rejections = %v, want %v", got, fips.StateOperational)
	}
}

// TestZeroizedPairIsUnusable verifies that releasing a pair's secret
// material makes its private-key operations fail without affecting the
// public half.
func TestZeroizedPairIsUnusable(t *testing.T) {
	restoreOperational(t)

	kemPair, err := crypto.GenerateKEMKeyPair()
	if err != nil {
		t.Fatalf("GenerateKEMKeyPair failed: %v", err)
	}
	ciphertext, ss, err := crypto.Encapsulate(kemPair.PublicKey())
	if err != nil {
		t.Fatalf("Encapsulate failed: %v", err)
	}
	defer ss.Zeroize()

	kemPair.Zeroize()
	kemPair.Zeroize() // idempotent

	if _, err := crypto.Decapsulate(kemPair, ciphertext); !errors.Is(err, qerrors.ErrCSPReleased) {
		t.Errorf("Decapsulate after zeroize: err = %v, want ErrCSPReleased", err)
	}
	if kemPair.PublicKeyBytes() == nil {
		t.Error("Public key unavailable after zeroizing the private half")
	}

	signPair, err := crypto.GenerateSigningKeyPair()
	if err != nil {
		t.Fatalf("GenerateSigningKeyPair failed: %v", err)
	}
	signPair.Zeroize()
	if _, err := crypto.Sign(signPair, []byte("msg")); !errors.Is(err, qerrors.ErrCSPReleased) {
		t.Errorf("Sign after zeroize: err = %v, want ErrCSPReleased", err)
	}
}

// TestConcurrentGatedOperations exercises the approved services from many
// goroutines against one operational module.
func TestConcurrentGatedOperations(t *testing.T) {
	restoreOperational(t)

	kemPair, err := crypto.GenerateKEMKeyPair()
	if err != nil {
		t.Fatalf("GenerateKEMKeyPair failed: %v", err)
	}
	defer kemPair.Zeroize()

	const goroutines = 16
	var wg sync.WaitGroup
	wg.Add(goroutines)
	errCh := make(chan error, goroutines)

	for i := 0; i < goroutines; i++ {
		go func() {
			defer wg.Done()
			ct, sent, err := crypto.Encapsulate(kemPair.PublicKey())
			if err != nil {
				errCh <- err
				return
			}
			defer sent.Zeroize()
			received, err := crypto.Decapsulate(kemPair, ct)
			if err != nil {
				errCh <- err
				return
			}
			defer received.Zeroize()
			if !sent.Equal(received) {
				errCh <- errors.New("shared secrets diverged")
			}
		}()
	}
	wg.Wait()
	close(errCh)

	for err := range errCh {
		t.Errorf("Concurrent round trip failed: %v", err)
	}
}

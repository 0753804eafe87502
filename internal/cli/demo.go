package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/pqgate/pqgate/internal/constants"
	"github.com/pqgate/pqgate/pkg/crypto"
	"github.com/pqgate/pqgate/pkg/fips"
)

var demoVerbose bool

// demoCmd walks the full module lifecycle once, printing every step.
var demoCmd = &cobra.Command{
	Use:   "demo",
	Short: "Walk the full module lifecycle",
	Long: `Walk the full module lifecycle once:

power-on self-tests, gated key generation with pairwise consistency
checks, KEM encapsulation and decapsulation, session key derivation,
an AEAD round trip, signing and verification, a key-wrap export
envelope round trip, and final zeroization.`,
	RunE: runDemo,
}

func init() {
	demoCmd.Flags().BoolVarP(&demoVerbose, "verbose", "v", false, "print parameter details")
}

func runDemo(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	ops := instrumentedOps()

	fmt.Println("╔═══════════════════════════════════════════════════════════╗")
	fmt.Println("║      PQGate Lifecycle Demo                                ║")
	fmt.Println("║      ML-KEM-1024 + ML-DSA-65, FIPS 140-3 gated            ║")
	fmt.Println("╚═══════════════════════════════════════════════════════════╝")
	fmt.Println()

	if demoVerbose {
		fmt.Println("Parameters:")
		fmt.Printf("  • ML-KEM-1024: pk %d B, ct %d B, shared secret %d B\n",
			constants.MLKEMPublicKeySize, constants.MLKEMCiphertextSize, constants.MLKEMSharedSecretSize)
		fmt.Printf("  • ML-DSA-65:   pk %d B, signature %d B\n",
			constants.MLDSAPublicKeySize, constants.MLDSASignatureSize)
		fmt.Printf("  • FIPS enforcing build: %v\n", fips.FIPSMode())
		fmt.Println()
	}

	// 1. Power-on self-tests.
	fmt.Println("[1/8] Power-on self-tests")
	start := time.Now()
	if err := fips.RunPOST(); err != nil {
		return fmt.Errorf("power-on self-tests failed: %w", err)
	}
	res := fips.LastResult()
	if res != nil {
		fmt.Printf("      ✓ %d self-tests passed in %s, module %s\n",
			len(res.Records), res.Duration.Round(time.Microsecond), fips.CurrentState())
	} else {
		fmt.Printf("      ✓ module already %s (%s)\n", fips.CurrentState(), time.Since(start).Round(time.Microsecond))
	}

	// 2. KEM key generation, pairwise-checked.
	fmt.Println("[2/8] ML-KEM-1024 key generation (pairwise consistency test)")
	var kemPair *crypto.KEMKeyPair
	if err := ops.WrapKeyGen(ctx, func() error {
		var err error
		kemPair, err = crypto.GenerateKEMKeyPair()
		return err
	}); err != nil {
		return fmt.Errorf("KEM key generation failed: %w", err)
	}
	defer kemPair.Zeroize()
	fmt.Printf("      ✓ pair %s generated, PCT verified: %v\n", kemPair.ID()[:8], kemPair.PCTVerified())

	// 3. Encapsulate / decapsulate round trip.
	fmt.Println("[3/8] Encapsulate / decapsulate")
	var (
		ciphertext []byte
		sent       *crypto.SharedSecret
	)
	if err := ops.WrapEncapsulate(ctx, func() error {
		var err error
		ciphertext, sent, err = crypto.Encapsulate(kemPair.PublicKey())
		return err
	}); err != nil {
		return fmt.Errorf("encapsulation failed: %w", err)
	}
	defer sent.Zeroize()
	var received *crypto.SharedSecret
	if err := ops.WrapDecapsulate(ctx, func() error {
		var err error
		received, err = crypto.Decapsulate(kemPair, ciphertext)
		return err
	}); err != nil {
		return fmt.Errorf("decapsulation failed: %w", err)
	}
	defer received.Zeroize()
	if !sent.Equal(received) {
		return fmt.Errorf("shared secrets diverged")
	}
	fmt.Printf("      ✓ %d-byte ciphertext, shared secrets match\n", len(ciphertext))

	// 4. Session key derivation.
	fmt.Println("[4/8] Session key derivation (SHAKE-256)")
	sessionKey, err := crypto.DeriveSessionKey(received, []byte("pqgate-demo"))
	if err != nil {
		return fmt.Errorf("session key derivation failed: %w", err)
	}
	defer sessionKey.Zeroize()
	fmt.Printf("      ✓ %d-byte session key under CSP guard %q\n", sessionKey.Len(), sessionKey.Label())

	// 5. AEAD round trip under the derived key.
	fmt.Printf("[5/8] AEAD round trip (%s)\n", crypto.PreferredCipherSuite())
	aead, err := crypto.NewAEADFromCSP(crypto.PreferredCipherSuite(), sessionKey)
	if err != nil {
		return fmt.Errorf("AEAD construction failed: %w", err)
	}
	plaintext := []byte("attack at dawn, but post-quantum")
	sealed, err := aead.Seal(plaintext, []byte("demo"))
	if err != nil {
		return fmt.Errorf("seal failed: %w", err)
	}
	opened, err := aead.Open(sealed, []byte("demo"))
	if err != nil {
		return fmt.Errorf("open failed: %w", err)
	}
	if string(opened) != string(plaintext) {
		return fmt.Errorf("AEAD round trip mismatch")
	}
	fmt.Printf("      ✓ %d bytes sealed to %d, opened intact\n", len(plaintext), len(sealed))

	// 6. Signature key generation, sign, verify.
	fmt.Println("[6/8] ML-DSA-65 sign / verify")
	var signPair *crypto.SigningKeyPair
	if err := ops.WrapKeyGen(ctx, func() error {
		var err error
		signPair, err = crypto.GenerateSigningKeyPair()
		return err
	}); err != nil {
		return fmt.Errorf("signing key generation failed: %w", err)
	}
	defer signPair.Zeroize()
	message := []byte("release v1.0.0")
	var signature []byte
	if err := ops.WrapSign(ctx, func() error {
		var err error
		signature, err = crypto.Sign(signPair, message)
		return err
	}); err != nil {
		return fmt.Errorf("signing failed: %w", err)
	}
	var valid bool
	if err := ops.WrapVerify(ctx, func() error {
		var err error
		valid, err = crypto.VerifySignature(signPair.PublicKey(), message, signature)
		return err
	}); err != nil {
		return fmt.Errorf("verification errored: %w", err)
	}
	if !valid {
		return fmt.Errorf("signature did not verify")
	}
	tampered, err := crypto.VerifySignature(signPair.PublicKey(), []byte("release v1.0.1"), signature)
	if err != nil {
		return fmt.Errorf("tamper verification errored: %w", err)
	}
	fmt.Printf("      ✓ %d-byte signature verifies, tampered message rejected: %v\n",
		len(signature), !tampered)

	// 7. Key-wrap export envelope round trip.
	fmt.Println("[7/8] Key-wrap export envelope")
	kek, err := crypto.NewSharedSecret(crypto.MustSecureRandomBytes(constants.AESKeySize))
	if err != nil {
		return fmt.Errorf("KEK creation failed: %w", err)
	}
	defer kek.Zeroize()
	var envelope []byte
	if err := ops.WrapKeyWrap(ctx, func() error {
		var err error
		envelope, err = crypto.ExportKEMKeyPair(kemPair, kek)
		return err
	}); err != nil {
		return fmt.Errorf("export failed: %w", err)
	}
	var imported *crypto.KEMKeyPair
	if err := ops.WrapKeyUnwrap(ctx, func() error {
		var err error
		imported, err = crypto.ImportKEMKeyPair(envelope, kek)
		return err
	}); err != nil {
		return fmt.Errorf("import failed: %w", err)
	}
	defer imported.Zeroize()
	fmt.Printf("      ✓ pair sealed into %d-byte envelope, import re-ran PCT: %v\n",
		len(envelope), imported.PCTVerified())

	// 8. Zeroization (the deferred releases) happens on return.
	fmt.Println("[8/8] Zeroizing all secret material")
	fmt.Println()
	fmt.Println("Demo complete. Module state:", fips.CurrentState())
	return nil
}

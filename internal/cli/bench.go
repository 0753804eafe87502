package cli

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/pqgate/pqgate/pkg/crypto"
	"github.com/pqgate/pqgate/pkg/fips"
	"github.com/pqgate/pqgate/pkg/metrics"
)

var (
	benchKeygens int
	benchOps     int
)

// Millisecond buckets for keygen (PCT included), microsecond-scale ops use
// the same bounds scaled down at print time.
var benchBuckets = []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 25, 50, 100}

// benchCmd measures the latency of the gated operations.
var benchCmd = &cobra.Command{
	Use:   "bench",
	Short: "Benchmark the gated operations",
	Long: `Benchmark the gated operations against the live module.

Key generation includes the pairwise consistency test, so it reflects the
true cost a FIPS-enforcing caller pays per pair. All timings are wall-clock
milliseconds.`,
	RunE: runBench,
}

func init() {
	benchCmd.Flags().IntVar(&benchKeygens, "keygens", 20, "key generations per family")
	benchCmd.Flags().IntVar(&benchOps, "ops", 100, "encapsulate/decapsulate/sign/verify iterations")
}

func runBench(cmd *cobra.Command, args []string) error {
	fmt.Println("╔═══════════════════════════════════════════════════════════╗")
	fmt.Println("║      PQGate Benchmark                                     ║")
	fmt.Println("║      ML-KEM-1024 + ML-DSA-65, FIPS 140-3 gated            ║")
	fmt.Println("╚═══════════════════════════════════════════════════════════╝")
	fmt.Println()

	postStart := time.Now()
	if err := fips.RunPOST(); err != nil {
		return fmt.Errorf("power-on self-tests failed: %w", err)
	}
	fmt.Printf("POST: %s (module %s)\n\n", time.Since(postStart).Round(time.Microsecond), fips.CurrentState())

	if benchKeygens > 0 {
		if err := benchKeygenLoop(); err != nil {
			return err
		}
		fmt.Println()
	}

	if benchOps > 0 {
		if err := benchOpsLoop(); err != nil {
			return err
		}
	}
	return nil
}

func benchKeygenLoop() error {
	fmt.Printf("Key generation with pairwise consistency test (%d iterations)\n", benchKeygens)
	fmt.Println(strings.Repeat("─", 60))

	kemHist := metrics.NewHistogram(benchBuckets)
	for i := 0; i < benchKeygens; i++ {
		start := time.Now()
		kp, err := crypto.GenerateKEMKeyPair()
		if err != nil {
			return fmt.Errorf("KEM keygen %d failed: %w", i, err)
		}
		kemHist.Observe(float64(time.Since(start).Microseconds()) / 1000)
		kp.Zeroize()
	}
	printHistogram("ML-KEM-1024 keygen", kemHist)

	signHist := metrics.NewHistogram(benchBuckets)
	for i := 0; i < benchKeygens; i++ {
		start := time.Now()
		kp, err := crypto.GenerateSigningKeyPair()
		if err != nil {
			return fmt.Errorf("signing keygen %d failed: %w", i, err)
		}
		signHist.Observe(float64(time.Since(start).Microseconds()) / 1000)
		kp.Zeroize()
	}
	printHistogram("ML-DSA-65 keygen", signHist)
	return nil
}

func benchOpsLoop() error {
	fmt.Printf("Gated operations (%d iterations)\n", benchOps)
	fmt.Println(strings.Repeat("─", 60))

	kemPair, err := crypto.GenerateKEMKeyPair()
	if err != nil {
		return fmt.Errorf("setup KEM keygen failed: %w", err)
	}
	defer kemPair.Zeroize()

	signPair, err := crypto.GenerateSigningKeyPair()
	if err != nil {
		return fmt.Errorf("setup signing keygen failed: %w", err)
	}
	defer signPair.Zeroize()

	encapHist := metrics.NewHistogram(benchBuckets)
	decapHist := metrics.NewHistogram(benchBuckets)
	for i := 0; i < benchOps; i++ {
		start := time.Now()
		ct, ss, err := crypto.Encapsulate(kemPair.PublicKey())
		if err != nil {
			return fmt.Errorf("encapsulate %d failed: %w", i, err)
		}
		encapHist.Observe(float64(time.Since(start).Microseconds()) / 1000)
		ss.Zeroize()

		start = time.Now()
		ss2, err := crypto.Decapsulate(kemPair, ct)
		if err != nil {
			return fmt.Errorf("decapsulate %d failed: %w", i, err)
		}
		decapHist.Observe(float64(time.Since(start).Microseconds()) / 1000)
		ss2.Zeroize()
	}
	printHistogram("Encapsulate", encapHist)
	printHistogram("Decapsulate", decapHist)

	message := []byte("benchmark message")
	signHist := metrics.NewHistogram(benchBuckets)
	verifyHist := metrics.NewHistogram(benchBuckets)
	for i := 0; i < benchOps; i++ {
		start := time.Now()
		sig, err := crypto.Sign(signPair, message)
		if err != nil {
			return fmt.Errorf("sign %d failed: %w", i, err)
		}
		signHist.Observe(float64(time.Since(start).Microseconds()) / 1000)

		start = time.Now()
		ok, err := crypto.VerifySignature(signPair.PublicKey(), message, sig)
		if err != nil || !ok {
			return fmt.Errorf("verify %d failed: ok=%v err=%v", i, ok, err)
		}
		verifyHist.Observe(float64(time.Since(start).Microseconds()) / 1000)
	}
	printHistogram("Sign", signHist)
	printHistogram("Verify", verifyHist)
	return nil
}

func printHistogram(name string, h *metrics.Histogram) {
	s := h.Summary()
	p50 := s.Percentiles[0.5]
	p99 := s.Percentiles[0.99]
	fmt.Printf("  %-22s n=%-5d mean=%8.3fms  min=%8.3fms  p50=%8.3fms  p99=%8.3fms  max=%8.3fms\n",
		name, s.Count, s.Mean, s.Min, p50, p99, s.Max)
}

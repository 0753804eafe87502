// Package crypto implements conditional self-tests on the random source.
//
// This file (cst.go) carries the checks that run during operation rather
// than at power-on: a startup RNG health check, a continuous test comparing
// consecutive draws, and the configuration deciding whether fresh key pairs
// get a pairwise consistency test. A failed RNG check is a module failure:
// it is signalled to the state machine, which transitions to the terminal
// error state.
package crypto

import (
	"fmt"
	"sync"
	"sync/atomic"

	qerrors "github.com/pqgate/pqgate/internal/errors"
	"github.com/pqgate/pqgate/pkg/fips"
)

// CSTConfig configures conditional self-test behavior.
type CSTConfig struct {
	// EnablePairwiseTest runs a pairwise consistency test on every freshly
	// generated key pair before it is released to the caller. It cannot be
	// disabled in FIPS-enforcing builds.
	EnablePairwiseTest bool

	// EnableRNGHealthCheck applies the continuous RNG test to every draw
	// and runs periodic health checks on the random source.
	EnableRNGHealthCheck bool

	// RNGHealthCheckInterval is the number of draws between periodic health
	// checks. Zero selects the default interval.
	RNGHealthCheckInterval uint64
}

const defaultRNGHealthCheckInterval = 1000

// DefaultCSTConfig returns the default conditional self-test configuration.
// The pairwise test is enabled in every mode; the RNG health check follows
// the build's FIPS enforcement.
func DefaultCSTConfig() CSTConfig {
	return CSTConfig{
		EnablePairwiseTest:     true,
		EnableRNGHealthCheck:   fips.FIPSMode(),
		RNGHealthCheckInterval: defaultRNGHealthCheckInterval,
	}
}

var cstConfig atomic.Pointer[CSTConfig]

// SetCSTConfig replaces the active conditional self-test configuration.
// FIPS-enforcing builds reject any configuration that disables the pairwise
// consistency test with ErrPCTRequired.
func SetCSTConfig(cfg CSTConfig) error {
	if fips.FIPSMode() && !cfg.EnablePairwiseTest {
		return qerrors.ErrPCTRequired
	}
	if cfg.RNGHealthCheckInterval == 0 {
		cfg.RNGHealthCheckInterval = defaultRNGHealthCheckInterval
	}
	cstConfig.Store(&cfg)
	return nil
}

// CurrentCSTConfig returns the active conditional self-test configuration.
func CurrentCSTConfig() CSTConfig {
	if cfg := cstConfig.Load(); cfg != nil {
		return *cfg
	}
	return DefaultCSTConfig()
}

// CSTEnabled returns true if any conditional self-test is enabled.
func CSTEnabled() bool {
	cfg := CurrentCSTConfig()
	return cfg.EnablePairwiseTest || cfg.EnableRNGHealthCheck
}

// RNGHealthCheck verifies the random source is producing plausible output.
//
// Two independent 32-byte samples are drawn and checked: neither may be all
// zeros, they must differ from each other, and each must show variation
// across its bytes. The check catches a stuck or disconnected entropy
// source, not statistical weakness.
func RNGHealthCheck() error {
	const sampleSize = 32

	first, err := SecureRandomBytes(sampleSize)
	if err != nil {
		return err
	}
	defer Zeroize(first)

	second, err := SecureRandomBytes(sampleSize)
	if err != nil {
		return err
	}
	defer Zeroize(second)

	if allZeroSample(first) || allZeroSample(second) {
		return fmt.Errorf("%w: all-zero sample", qerrors.ErrRNGHealthFailed)
	}
	if ConstantTimeCompare(first, second) {
		return fmt.Errorf("%w: identical consecutive samples", qerrors.ErrRNGHealthFailed)
	}
	if !hasByteVariation(first) || !hasByteVariation(second) {
		return fmt.Errorf("%w: no byte variation in sample", qerrors.ErrRNGHealthFailed)
	}
	return nil
}

// ContinuousRNGTest retains the previous draw from the random source and
// rejects an exact repeat. Draws shorter than 16 bytes are not compared:
// below that, honest collisions are too likely.
type ContinuousRNGTest struct {
	mu   sync.Mutex
	last []byte
}

const continuousSampleMin = 16

// Check compares sample against the previous draw of the same length.
// An identical repeat fails with ErrRNGHealthFailed.
func (t *ContinuousRNGTest) Check(sample []byte) error {
	if len(sample) < continuousSampleMin {
		return nil
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if len(t.last) == len(sample) && ConstantTimeCompare(t.last, sample) {
		return fmt.Errorf("%w: repeated output block", qerrors.ErrRNGHealthFailed)
	}
	t.last = append(t.last[:0], sample...)
	return nil
}

var (
	rngDrawCount  atomic.Uint64
	continuousRNG ContinuousRNGTest
)

// SecureRandomWithCST reads cryptographically secure random bytes into b
// with the conditional self-tests applied per the active configuration:
// every draw passes the continuous test, and every RNGHealthCheckInterval-th
// draw triggers a health check first. A failed check is signalled to the
// module state machine before the error is returned; the buffer is zeroed.
func SecureRandomWithCST(b []byte) error {
	cfg := CurrentCSTConfig()
	if !cfg.EnableRNGHealthCheck {
		return SecureRandom(b)
	}

	if count := rngDrawCount.Add(1); count == 1 || count%cfg.RNGHealthCheckInterval == 0 {
		if err := RNGHealthCheck(); err != nil {
			fips.SignalRuntimeFailure(err)
			return err
		}
	}

	if err := SecureRandom(b); err != nil {
		return err
	}
	if err := continuousRNG.Check(b); err != nil {
		Zeroize(b)
		fips.SignalRuntimeFailure(err)
		return err
	}
	return nil
}

// cstReader feeds a primitive provider from the conditionally self-tested
// random source, so key generation entropy gets the same continuous test
// and periodic health check as every other draw.
type cstReader struct{}

func (cstReader) Read(p []byte) (int, error) {
	if err := SecureRandomWithCST(p); err != nil {
		return 0, err
	}
	return len(p), nil
}

func allZeroSample(b []byte) bool {
	for _, v := range b {
		if v != 0 {
			return false
		}
	}
	return true
}

func hasByteVariation(b []byte) bool {
	for i := 1; i < len(b); i++ {
		if b[i] != b[0] {
			return true
		}
	}
	return false
}

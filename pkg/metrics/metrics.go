// Package metrics provides observability primitives for the PQGate module.
//
// The package includes:
//   - Counter, Gauge, and Histogram metric types
//   - Prometheus-compatible metrics export
//   - OpenTelemetry tracing support
//   - Structured logging with levels
//   - Health check functionality
package metrics

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/pqgate/pqgate/pkg/fips"
)

// Collector aggregates metrics from the module lifecycle and its
// cryptographic services.
type Collector struct {
	// Self-test metrics
	postRuns        atomic.Uint64
	postFailures    atomic.Uint64
	selfTestsPassed atomic.Uint64
	selfTestsFailed atomic.Uint64
	postDuration    *Histogram

	// Lifecycle metrics
	stateTransitions atomic.Uint64
	gateDenials      atomic.Uint64
	runtimeFailures  atomic.Uint64
	moduleState      atomic.Uint32

	// Key management metrics
	keyPairsGenerated atomic.Uint64
	pctRuns           atomic.Uint64
	pctFailures       atomic.Uint64
	seedRejections    atomic.Uint64
	pctLatency        *Histogram

	// Service metrics
	encapsulations atomic.Uint64
	decapsulations atomic.Uint64
	signatures     atomic.Uint64
	verifications  atomic.Uint64
	keyWraps       atomic.Uint64
	keyUnwraps     atomic.Uint64

	// CSP metrics
	cspZeroizations   atomic.Uint64
	cspExportsBlocked atomic.Uint64

	// Creation time for uptime tracking
	createdAt time.Time

	// Labels for this collector instance
	labels Labels
}

// Labels represents key-value pairs for metric labeling.
type Labels map[string]string

// NewCollector creates a new metrics collector.
func NewCollector(labels Labels) *Collector {
	if labels == nil {
		labels = make(Labels)
	}

	return &Collector{
		postDuration: NewHistogram(POSTDurationBuckets),
		pctLatency:   NewHistogram(PCTLatencyBuckets),
		createdAt:    time.Now(),
		labels:       labels,
	}
}

// Default bucket configurations for histograms.
var (
	// POSTDurationBuckets for full self-test runs (milliseconds).
	POSTDurationBuckets = []float64{1, 2.5, 5, 10, 25, 50, 100, 250, 500}

	// PCTLatencyBuckets for pairwise consistency tests (microseconds).
	PCTLatencyBuckets = []float64{100, 250, 500, 1000, 2500, 5000, 10000, 25000, 50000}
)

// --- Self-Test Metrics ---

// RecordPOST records a completed power-on self-test run.
func (c *Collector) RecordPOST(passed bool, d time.Duration) {
	c.postRuns.Add(1)
	if !passed {
		c.postFailures.Add(1)
	}
	c.postDuration.Observe(float64(d.Milliseconds()))
}

// RecordSelfTest records one executed self-test (CAST, KAT or PCT smoke).
func (c *Collector) RecordSelfTest(passed bool) {
	if passed {
		c.selfTestsPassed.Add(1)
	} else {
		c.selfTestsFailed.Add(1)
	}
}

// --- Lifecycle Metrics ---

// RecordStateTransition records a committed lifecycle transition and updates
// the module-state gauge.
func (c *Collector) RecordStateTransition(to fips.State) {
	c.stateTransitions.Add(1)
	c.moduleState.Store(uint32(to))
}

// ModuleState returns the last observed lifecycle state.
func (c *Collector) ModuleState() fips.State {
	return fips.State(c.moduleState.Load())
}

// RecordGateDenied increments the gate denial counter.
func (c *Collector) RecordGateDenied() {
	c.gateDenials.Add(1)
}

// RecordRuntimeFailure increments the runtime failure counter.
func (c *Collector) RecordRuntimeFailure() {
	c.runtimeFailures.Add(1)
}

// --- Key Management Metrics ---

// RecordKeyPairGenerated increments the key pair counter.
func (c *Collector) RecordKeyPairGenerated() {
	c.keyPairsGenerated.Add(1)
}

// RecordPCT records a pairwise consistency test run.
func (c *Collector) RecordPCT(passed bool, d time.Duration) {
	c.pctRuns.Add(1)
	if !passed {
		c.pctFailures.Add(1)
	}
	c.pctLatency.Observe(float64(d.Microseconds()))
}

// RecordSeedRejected increments the rejected-seed counter.
func (c *Collector) RecordSeedRejected() {
	c.seedRejections.Add(1)
}

// --- Service Metrics ---

// RecordEncapsulation increments the encapsulation counter.
func (c *Collector) RecordEncapsulation() {
	c.encapsulations.Add(1)
}

// RecordDecapsulation increments the decapsulation counter.
func (c *Collector) RecordDecapsulation() {
	c.decapsulations.Add(1)
}

// RecordSignature increments the signature counter.
func (c *Collector) RecordSignature() {
	c.signatures.Add(1)
}

// RecordVerification increments the verification counter.
func (c *Collector) RecordVerification() {
	c.verifications.Add(1)
}

// RecordKeyWrap increments the key wrap counter.
func (c *Collector) RecordKeyWrap() {
	c.keyWraps.Add(1)
}

// RecordKeyUnwrap increments the key unwrap counter.
func (c *Collector) RecordKeyUnwrap() {
	c.keyUnwraps.Add(1)
}

// --- CSP Metrics ---

// RecordCSPZeroized increments the zeroization counter.
func (c *Collector) RecordCSPZeroized() {
	c.cspZeroizations.Add(1)
}

// RecordCSPExportBlocked increments the blocked-export counter.
func (c *Collector) RecordCSPExportBlocked() {
	c.cspExportsBlocked.Add(1)
}

// --- Snapshot ---

// Snapshot returns a point-in-time snapshot of all metrics.
type Snapshot struct {
	// Timestamp of the snapshot
	Timestamp time.Time

	// Uptime since collector creation
	Uptime time.Duration

	// Self-test metrics
	POSTRuns        uint64
	POSTFailures    uint64
	SelfTestsPassed uint64
	SelfTestsFailed uint64

	// Lifecycle metrics
	StateTransitions uint64
	GateDenials      uint64
	RuntimeFailures  uint64
	ModuleState      fips.State

	// Key management metrics
	KeyPairsGenerated uint64
	PCTRuns           uint64
	PCTFailures       uint64
	SeedRejections    uint64

	// Service metrics
	Encapsulations uint64
	Decapsulations uint64
	Signatures     uint64
	Verifications  uint64
	KeyWraps       uint64
	KeyUnwraps     uint64

	// CSP metrics
	CSPZeroizations   uint64
	CSPExportsBlocked uint64

	// Histogram summaries
	POSTDuration HistogramSummary
	PCTLatency   HistogramSummary

	// Labels
	Labels Labels
}

// Snapshot returns a point-in-time snapshot of all metrics.
func (c *Collector) Snapshot() Snapshot {
	return Snapshot{
		Timestamp:         time.Now(),
		Uptime:            time.Since(c.createdAt),
		POSTRuns:          c.postRuns.Load(),
		POSTFailures:      c.postFailures.Load(),
		SelfTestsPassed:   c.selfTestsPassed.Load(),
		SelfTestsFailed:   c.selfTestsFailed.Load(),
		StateTransitions:  c.stateTransitions.Load(),
		GateDenials:       c.gateDenials.Load(),
		RuntimeFailures:   c.runtimeFailures.Load(),
		ModuleState:       fips.State(c.moduleState.Load()),
		KeyPairsGenerated: c.keyPairsGenerated.Load(),
		PCTRuns:           c.pctRuns.Load(),
		PCTFailures:       c.pctFailures.Load(),
		SeedRejections:    c.seedRejections.Load(),
		Encapsulations:    c.encapsulations.Load(),
		Decapsulations:    c.decapsulations.Load(),
		Signatures:        c.signatures.Load(),
		Verifications:     c.verifications.Load(),
		KeyWraps:          c.keyWraps.Load(),
		KeyUnwraps:        c.keyUnwraps.Load(),
		CSPZeroizations:   c.cspZeroizations.Load(),
		CSPExportsBlocked: c.cspExportsBlocked.Load(),
		POSTDuration:      c.postDuration.Summary(),
		PCTLatency:        c.pctLatency.Summary(),
		Labels:            c.labels,
	}
}

// Reset clears all metrics (useful for testing).
func (c *Collector) Reset() {
	c.postRuns.Store(0)
	c.postFailures.Store(0)
	c.selfTestsPassed.Store(0)
	c.selfTestsFailed.Store(0)
	c.stateTransitions.Store(0)
	c.gateDenials.Store(0)
	c.runtimeFailures.Store(0)
	c.moduleState.Store(uint32(fips.StatePowerOn))
	c.keyPairsGenerated.Store(0)
	c.pctRuns.Store(0)
	c.pctFailures.Store(0)
	c.seedRejections.Store(0)
	c.encapsulations.Store(0)
	c.decapsulations.Store(0)
	c.signatures.Store(0)
	c.verifications.Store(0)
	c.keyWraps.Store(0)
	c.keyUnwraps.Store(0)
	c.cspZeroizations.Store(0)
	c.cspExportsBlocked.Store(0)
	c.postDuration.Reset()
	c.pctLatency.Reset()
	c.createdAt = time.Now()
}

// --- Global Collector ---

var (
	globalCollector     *Collector
	globalCollectorOnce sync.Once
)

// Global returns the global metrics collector.
// Creates one with default settings if not already initialized.
func Global() *Collector {
	globalCollectorOnce.Do(func() {
		globalCollector = NewCollector(Labels{"instance": "default"})
	})
	return globalCollector
}

// SetGlobal sets the global metrics collector.
// Should be called during initialization before any metrics are recorded.
func SetGlobal(c *Collector) {
	globalCollector = c
}

// module.go defines the Module type and the process-wide default module.
//
// FIPS 140-3 treats the process as one cryptographic module, so normal code
// uses the package-level functions, which all operate on the default module.
// Independent Module values exist so tests can drive the lifecycle without
// touching process-wide state.
package fips

import (
	"sync/atomic"
)

// Module is a FIPS 140-3 lifecycle instance: the atomic state word, the
// first recorded failure, and the cached result of the most recent self-test
// run. The zero-value-like instance returned by New starts in StatePowerOn.
//
// All methods are safe for concurrent use and none of them blocks.
type Module struct {
	state      atomic.Uint32
	failure    atomic.Pointer[failureRecord]
	lastResult atomic.Pointer[POSTResult]
	obs        atomic.Pointer[Observer]
}

// failureRecord wraps the error behind a pointer so the first failure can be
// published with a single compare-and-swap.
type failureRecord struct {
	err error
}

// Option configures a Module at construction time.
type Option func(*Module)

// WithObserver attaches an observer for lifecycle events.
func WithObserver(o Observer) Option {
	return func(m *Module) {
		m.SetObserver(o)
	}
}

// New returns a module in StatePowerOn with no recorded failure.
func New(opts ...Option) *Module {
	m := &Module{}
	obs := Observer(NoOpObserver{})
	m.obs.Store(&obs)
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// SetObserver replaces the module's observer. Passing nil restores the
// no-op default. Safe to call concurrently, though observers are normally
// wired once during process startup.
func (m *Module) SetObserver(o Observer) {
	if o == nil {
		o = NoOpObserver{}
	}
	m.obs.Store(&o)
}

func (m *Module) observer() Observer {
	return *m.obs.Load()
}

// recordFailure publishes err as the module's failure unless one is already
// recorded. First failure wins; the race is settled by a single CAS.
func (m *Module) recordFailure(err error) {
	if err == nil {
		return
	}
	m.failure.CompareAndSwap(nil, &failureRecord{err: err})
}

// Failure returns the first failure recorded by a self-test or a runtime
// check, or nil if none has been recorded.
func (m *Module) Failure() error {
	if rec := m.failure.Load(); rec != nil {
		return rec.err
	}
	return nil
}

func (m *Module) failureOr(fallback error) error {
	if err := m.Failure(); err != nil {
		return err
	}
	return fallback
}

// LastResult returns the result of the most recent self-test run on this
// module, or nil if none has executed yet.
func (m *Module) LastResult() *POSTResult {
	return m.lastResult.Load()
}

// defaultModule is the process-wide module. It is created in StatePowerOn
// when the package loads; under the fips build tag, package initialization
// also runs the power-on self-tests against it.
var defaultModule = New()

// Default returns the process-wide module.
func Default() *Module {
	return defaultModule
}

// SetObserver attaches an observer to the process-wide module.
func SetObserver(o Observer) {
	defaultModule.SetObserver(o)
}

// CurrentState returns the process-wide module's lifecycle state.
func CurrentState() State {
	return defaultModule.State()
}

// RequireOperational gates an operation on the process-wide module.
func RequireOperational() error {
	return defaultModule.RequireOperational()
}

// SignalRuntimeFailure forces the process-wide module into StateError.
func SignalRuntimeFailure(err error) {
	defaultModule.SignalRuntimeFailure(err)
}

// RunPOST runs the power-on self-tests on the process-wide module.
func RunPOST() error {
	return defaultModule.RunPOST()
}

// MustRunPOST runs the power-on self-tests on the process-wide module and
// panics if they fail.
func MustRunPOST() {
	defaultModule.MustRunPOST()
}

// LastResult returns the process-wide module's most recent self-test result,
// or nil if the self-tests have not run.
func LastResult() *POSTResult {
	return defaultModule.LastResult()
}

// Failure returns the process-wide module's first recorded failure, or nil.
func Failure() error {
	return defaultModule.Failure()
}

// Reset returns the process-wide module to StatePowerOn. Intended for tests
// and operator tooling; see Module.Reset.
func Reset() {
	defaultModule.Reset()
}

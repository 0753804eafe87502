package fips

import (
	"bytes"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	qerrors "github.com/pqgate/pqgate/internal/errors"
)

// countingObserver records how often each lifecycle event fires.
type countingObserver struct {
	stateChanges atomic.Int32
	postStarts   atomic.Int32
	postDones    atomic.Int32
	selfTests    atomic.Int32
	gateDenials  atomic.Int32
	runtimeFails atomic.Int32
}

var _ Observer = (*countingObserver)(nil)

func (o *countingObserver) OnStateChange(_, _ State) { o.stateChanges.Add(1) }

func (o *countingObserver) OnPOSTStart() func(*POSTResult) {
	o.postStarts.Add(1)
	return func(*POSTResult) { o.postDones.Add(1) }
}

func (o *countingObserver) OnSelfTest(SelfTestRecord) { o.selfTests.Add(1) }

func (o *countingObserver) OnGateDenied(State) { o.gateDenials.Add(1) }

func (o *countingObserver) OnRuntimeFailure(error) { o.runtimeFails.Add(1) }

// expectedRecordCount is the record total of a clean run: every algorithm
// self-test, one known-answer test per family, one pair-wise smoke test per
// family.
func expectedRecordCount() int {
	return len(castChecks()) + 2*len(katFamilies())
}

// TestGateDeniedBeforePOST verifies that a fresh module refuses operations
// and stays in PowerOn
func TestGateDeniedBeforePOST(t *testing.T) {
	obs := &countingObserver{}
	m := New(WithObserver(obs))

	if err := m.RequireOperational(); !errors.Is(err, qerrors.ErrNotInitialized) {
		t.Fatalf("RequireOperational() = %v, want %v", err, qerrors.ErrNotInitialized)
	}
	if got := m.State(); got != StatePowerOn {
		t.Errorf("State() = %v, want %v", got, StatePowerOn)
	}
	if got := obs.gateDenials.Load(); got != 1 {
		t.Errorf("gate denials = %d, want 1", got)
	}
}

// TestRunPOSTSuccess verifies a clean run reaches Operational with a full
// record trail
func TestRunPOSTSuccess(t *testing.T) {
	obs := &countingObserver{}
	m := New(WithObserver(obs))

	if err := m.RunPOST(); err != nil {
		t.Fatalf("RunPOST() = %v, want nil", err)
	}
	if got := m.State(); got != StateOperational {
		t.Fatalf("State() = %v, want %v", got, StateOperational)
	}
	if err := m.RequireOperational(); err != nil {
		t.Errorf("RequireOperational() = %v, want nil", err)
	}

	res := m.LastResult()
	if res == nil {
		t.Fatal("LastResult() = nil, want a result")
	}
	if !res.Passed {
		t.Errorf("result.Passed = false, Err = %v", res.Err)
	}
	if res.Err != nil {
		t.Errorf("result.Err = %v, want nil", res.Err)
	}
	if res.RunID == "" {
		t.Error("result.RunID is empty")
	}
	if res.Duration <= 0 {
		t.Error("result.Duration is not positive")
	}

	if got, want := len(res.Records), expectedRecordCount(); got != want {
		t.Fatalf("len(Records) = %d, want %d", got, want)
	}
	kinds := make(map[qerrors.SelfTestKind]int)
	for _, rec := range res.Records {
		if !rec.Passed {
			t.Errorf("record %s/%s failed: %s", rec.Kind, rec.Algorithm, rec.Detail)
		}
		kinds[rec.Kind]++
	}
	if kinds[qerrors.KindCAST] != len(castChecks()) {
		t.Errorf("CAST records = %d, want %d", kinds[qerrors.KindCAST], len(castChecks()))
	}
	if kinds[qerrors.KindKAT] != len(katFamilies()) {
		t.Errorf("KAT records = %d, want %d", kinds[qerrors.KindKAT], len(katFamilies()))
	}
	if kinds[qerrors.KindPCT] != len(katFamilies()) {
		t.Errorf("PCT records = %d, want %d", kinds[qerrors.KindPCT], len(katFamilies()))
	}

	if got := obs.postStarts.Load(); got != 1 {
		t.Errorf("post starts = %d, want 1", got)
	}
	if got := obs.postDones.Load(); got != 1 {
		t.Errorf("post completions = %d, want 1", got)
	}
	if got := obs.selfTests.Load(); got != int32(expectedRecordCount()) {
		t.Errorf("self-test events = %d, want %d", got, expectedRecordCount())
	}
	// PowerOn -> SelfTestRunning -> Operational.
	if got := obs.stateChanges.Load(); got != 2 {
		t.Errorf("state changes = %d, want 2", got)
	}
}

// TestRunPOSTIdempotentSuccess verifies a second call returns nil without
// re-running any test
func TestRunPOSTIdempotentSuccess(t *testing.T) {
	obs := &countingObserver{}
	m := New(WithObserver(obs))

	if err := m.RunPOST(); err != nil {
		t.Fatalf("RunPOST() = %v, want nil", err)
	}
	first := m.LastResult()

	if err := m.RunPOST(); err != nil {
		t.Fatalf("second RunPOST() = %v, want nil", err)
	}
	if got := obs.postStarts.Load(); got != 1 {
		t.Errorf("post starts = %d, want 1 after repeated calls", got)
	}
	if m.LastResult() != first {
		t.Error("LastResult changed across an idempotent call")
	}
}

// TestRunPOSTFailsOnCorruptedCAST verifies a wrong embedded digest drives
// the module into the absorbing error state
func TestRunPOSTFailsOnCorruptedCAST(t *testing.T) {
	orig := castSHA3_256Expected
	castSHA3_256Expected = bytes.Repeat([]byte{0xAA}, len(orig))
	defer func() { castSHA3_256Expected = orig }()

	obs := &countingObserver{}
	m := New(WithObserver(obs))

	err := m.RunPOST()
	if err == nil {
		t.Fatal("RunPOST() = nil, want a CAST failure")
	}
	if !errors.Is(err, qerrors.ErrCASTFailed) {
		t.Fatalf("RunPOST() = %v, want a CAST failure", err)
	}

	var ste *qerrors.SelfTestError
	if !errors.As(err, &ste) {
		t.Fatalf("RunPOST() error %T does not carry a self-test error", err)
	}
	if ste.Kind != qerrors.KindCAST {
		t.Errorf("Kind = %v, want %v", ste.Kind, qerrors.KindCAST)
	}
	if ste.Algorithm != "SHA3-256" {
		t.Errorf("Algorithm = %q, want %q", ste.Algorithm, "SHA3-256")
	}

	if got := m.State(); got != StateError {
		t.Fatalf("State() = %v, want %v", got, StateError)
	}

	// Every algorithm self-test still ran; the run stopped at the stage
	// boundary, so there are no KAT or smoke records.
	res := m.LastResult()
	if res == nil {
		t.Fatal("LastResult() = nil, want a result")
	}
	if got, want := len(res.Records), len(castChecks()); got != want {
		t.Errorf("len(Records) = %d, want %d", got, want)
	}
	failed := 0
	for _, rec := range res.Records {
		if !rec.Passed {
			failed++
			if rec.Detail == "" {
				t.Errorf("failed record %s has no detail", rec.Algorithm)
			}
		}
	}
	if failed != 1 {
		t.Errorf("failed records = %d, want 1", failed)
	}

	// Idempotent failure path: no re-run, same failure class.
	if err2 := m.RunPOST(); !errors.Is(err2, qerrors.ErrCASTFailed) {
		t.Errorf("second RunPOST() = %v, want the recorded CAST failure", err2)
	}
	if got := obs.postStarts.Load(); got != 1 {
		t.Errorf("post starts = %d, want 1 after failed run", got)
	}

	if gateErr := m.RequireOperational(); !errors.Is(gateErr, qerrors.ErrModuleError) {
		t.Errorf("RequireOperational() = %v, want %v", gateErr, qerrors.ErrModuleError)
	}
}

// TestRunPOSTFailsOnKATDivergence verifies a known-answer divergence in one
// family fails the run after the CAST stage completed
func TestRunPOSTFailsOnKATDivergence(t *testing.T) {
	// Pointing the wrong-key seed at the real key seed makes the
	// rejection check see its own key recover the secret.
	orig := katKEMWrongKeySeed
	katKEMWrongKeySeed = katKEMKeySeed
	defer func() { katKEMWrongKeySeed = orig }()

	m := New()

	err := m.RunPOST()
	if !errors.Is(err, qerrors.ErrKATFailed) {
		t.Fatalf("RunPOST() = %v, want a KAT failure", err)
	}

	var ste *qerrors.SelfTestError
	if !errors.As(err, &ste) {
		t.Fatalf("RunPOST() error %T does not carry a self-test error", err)
	}
	if ste.Algorithm != "ML-KEM-1024" {
		t.Errorf("Algorithm = %q, want %q", ste.Algorithm, "ML-KEM-1024")
	}

	// The CAST stage completed and both families' KATs ran; the smoke
	// stage never started.
	res := m.LastResult()
	if res == nil {
		t.Fatal("LastResult() = nil, want a result")
	}
	if got, want := len(res.Records), len(castChecks())+len(katFamilies()); got != want {
		t.Errorf("len(Records) = %d, want %d", got, want)
	}
	if got := m.State(); got != StateError {
		t.Errorf("State() = %v, want %v", got, StateError)
	}
}

// TestRunPOSTConcurrent verifies N racing callers produce exactly one test
// execution and converge on one final state
func TestRunPOSTConcurrent(t *testing.T) {
	const callers = 32

	obs := &countingObserver{}
	m := New(WithObserver(obs))
	results := make([]error, callers)

	var wg sync.WaitGroup
	start := make(chan struct{})
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			results[i] = m.RunPOST()
		}(i)
	}
	close(start)
	wg.Wait()

	for i, err := range results {
		if err != nil && !errors.Is(err, qerrors.ErrSelfTestsRunning) {
			t.Errorf("caller %d: unexpected error: %v", i, err)
		}
	}
	if got := obs.postStarts.Load(); got != 1 {
		t.Errorf("post starts = %d, want exactly 1", got)
	}
	if got := obs.selfTests.Load(); got != int32(expectedRecordCount()) {
		t.Errorf("self-test events = %d, want %d", got, expectedRecordCount())
	}
	if got := m.State(); got != StateOperational {
		t.Errorf("State() = %v, want %v", got, StateOperational)
	}

	// Stragglers that were refused mid-run see the settled state now.
	if err := m.RunPOST(); err != nil {
		t.Errorf("RunPOST() after convergence = %v, want nil", err)
	}
}

// TestMustRunPOST verifies the panicking variant in both directions
func TestMustRunPOST(t *testing.T) {
	t.Run("passes on a healthy module", func(t *testing.T) {
		m := New()
		m.MustRunPOST()
		if got := m.State(); got != StateOperational {
			t.Errorf("State() = %v, want %v", got, StateOperational)
		}
	})

	t.Run("panics on failure", func(t *testing.T) {
		orig := castSHA3_512Expected
		castSHA3_512Expected = bytes.Repeat([]byte{0x42}, len(orig))
		defer func() { castSHA3_512Expected = orig }()

		defer func() {
			if recover() == nil {
				t.Error("MustRunPOST() did not panic on a corrupted vector")
			}
		}()
		New().MustRunPOST()
	})
}

// TestDefaultModuleFunctions verifies the package-level wrappers drive the
// process-wide module
func TestDefaultModuleFunctions(t *testing.T) {
	Reset()
	defer func() {
		SetObserver(nil)
		Reset()
	}()

	if got := CurrentState(); got != StatePowerOn {
		t.Fatalf("CurrentState() = %v, want %v", got, StatePowerOn)
	}
	if err := RequireOperational(); !errors.Is(err, qerrors.ErrNotInitialized) {
		t.Fatalf("RequireOperational() = %v, want %v", err, qerrors.ErrNotInitialized)
	}

	obs := &countingObserver{}
	SetObserver(obs)

	if err := RunPOST(); err != nil {
		t.Fatalf("RunPOST() = %v, want nil", err)
	}
	if got := CurrentState(); got != StateOperational {
		t.Fatalf("CurrentState() = %v, want %v", got, StateOperational)
	}
	if err := RequireOperational(); err != nil {
		t.Errorf("RequireOperational() = %v, want nil", err)
	}
	if res := LastResult(); res == nil || !res.Passed {
		t.Errorf("LastResult() = %v, want a passed result", res)
	}
	if err := Failure(); err != nil {
		t.Errorf("Failure() = %v, want nil", err)
	}
	if got := obs.postStarts.Load(); got != 1 {
		t.Errorf("post starts = %d, want 1", got)
	}

	// MustRunPOST on an operational module is a no-op.
	MustRunPOST()

	failure := errors.New("runtime check failed")
	SignalRuntimeFailure(failure)
	if got := CurrentState(); got != StateError {
		t.Fatalf("CurrentState() = %v, want %v", got, StateError)
	}
	if err := Failure(); !errors.Is(err, failure) {
		t.Errorf("Failure() = %v, want the signalled failure", err)
	}
	if err := RunPOST(); !errors.Is(err, failure) {
		t.Errorf("RunPOST() = %v, want the recorded failure", err)
	}
	if got := obs.runtimeFails.Load(); got != 1 {
		t.Errorf("runtime failures = %d, want 1", got)
	}

	if m := Default(); m.State() != StateError {
		t.Errorf("Default().State() = %v, want %v", m.State(), StateError)
	}
}

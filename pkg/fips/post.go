// post.go implements the pre-operational self-test orchestration.
//
// IMPORTANT: this is production code, not test code. FIPS 140-3 requires the
// module to verify its own cryptographic implementations before performing
// any service, every time the process starts. The sequence is fixed: the
// algorithm self-tests (cast.go) run first because the hash primitives they
// cover are dependencies of the known-answer tests (kat.go); a pair-wise
// smoke test per algorithm family runs last. The first failing stage stops
// the run and drives the module into StateError. There are no retries: a
// failed self-test means the binary or the hardware cannot be trusted, and
// self-healing would only mask that.
package fips

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	qerrors "github.com/pqgate/pqgate/internal/errors"
)

// SelfTestRecord describes one executed self-test. Records are produced
// transiently during a run and never persisted.
type SelfTestRecord struct {
	// Algorithm identifies the primitive or family under test.
	Algorithm string

	// Kind distinguishes algorithm self-tests, known-answer tests and
	// pair-wise consistency tests.
	Kind qerrors.SelfTestKind

	// Passed reports the outcome.
	Passed bool

	// Detail carries the mismatch diagnostic for failed tests.
	Detail string

	// Duration is the wall-clock cost of the test.
	Duration time.Duration
}

// POSTResult is the outcome of one full pre-operational self-test run.
type POSTResult struct {
	// RunID uniquely identifies the run in logs and status output.
	RunID string

	// Passed reports whether every self-test succeeded.
	Passed bool

	// Records lists every executed self-test in execution order.
	Records []SelfTestRecord

	// StartedAt is when the run began.
	StartedAt time.Time

	// Duration is the total wall-clock cost of the run.
	Duration time.Duration

	// Err is the first failure, or nil.
	Err error
}

// RunPOST runs the power-on self-tests, driving the module from StatePowerOn
// to StateOperational or StateError.
//
// The call is idempotent in both directions: on an operational module it
// returns nil without re-running anything, and on a failed module it returns
// the recorded failure without re-running anything, because StateError is
// absorbing. A caller that races into a run already in progress gets
// ErrSelfTestsRunning immediately; nobody is ever queued behind the winner.
func (m *Module) RunPOST() error {
	for {
		switch m.State() {
		case StateOperational:
			return nil
		case StateError:
			return m.failureOr(qerrors.ErrModuleError)
		case StateSelfTestRunning:
			return qerrors.ErrSelfTestsRunning
		}

		// StatePowerOn: race for the transition. A loser loops and
		// re-dispatches on whatever state the winner left behind.
		if err := m.BeginSelfTests(); err == nil {
			break
		}
	}

	res := m.executeSelfTests()
	m.lastResult.Store(res)

	if res.Err != nil {
		m.CompleteSelfTests(false, res.Err)
		return res.Err
	}
	m.CompleteSelfTests(true, nil)
	return nil
}

// MustRunPOST runs the power-on self-tests and panics on failure. It exists
// for callers that must not continue into cryptographic work on a failed
// module, such as package initialization under the fips build tag.
func (m *Module) MustRunPOST() {
	if err := m.RunPOST(); err != nil {
		panic(fmt.Sprintf("fips: power-on self-tests failed: %v", err))
	}
}

// executeSelfTests runs the three stages in fixed order and collects the
// records. Only the BeginSelfTests winner reaches this; state transitions
// stay with the caller.
func (m *Module) executeSelfTests() *POSTResult {
	res := &POSTResult{
		RunID:     uuid.New().String(),
		StartedAt: time.Now(),
	}

	done := m.observer().OnPOSTStart()
	record := func(rec SelfTestRecord) {
		res.Records = append(res.Records, rec)
		m.observer().OnSelfTest(rec)
	}

	err := runCASTChecks(record)
	if err == nil {
		err = runKATChecks(record)
	}
	if err == nil {
		err = runPCTSmoke(record)
	}

	res.Duration = time.Since(res.StartedAt)
	res.Passed = err == nil
	res.Err = err

	if done != nil {
		done(res)
	}
	return res
}

// runPCTSmoke generates one fresh key pair per algorithm family and runs its
// pair-wise consistency test. This catches primitives that reproduce the
// fixed-seed answers but misbehave on live randomness.
func runPCTSmoke(record func(SelfTestRecord)) error {
	var firstErr error
	for _, fam := range katFamilies() {
		start := time.Now()
		err := fam.PairwiseSmokeTest()
		rec := SelfTestRecord{
			Algorithm: fam.Algorithm(),
			Kind:      qerrors.KindPCT,
			Passed:    err == nil,
			Duration:  time.Since(start),
		}
		if err != nil {
			rec.Detail = err.Error()
			if firstErr == nil {
				firstErr = err
			}
		}
		if record != nil {
			record(rec)
		}
	}
	return firstErr
}

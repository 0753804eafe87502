// state.go implements the module lifecycle state machine required by
// FIPS 140-3 (ISO/IEC 19790 section 7.3).
//
// The transition table is closed:
//
//	PowerOn         -> SelfTestRunning   (BeginSelfTests, exactly one winner)
//	SelfTestRunning -> Operational       (CompleteSelfTests, all tests passed)
//	SelfTestRunning -> Error             (CompleteSelfTests, any test failed)
//	Operational     -> Error             (SignalRuntimeFailure, conditional test failed)
//
// Error is absorbing. There is no in-process repair path; recovery is a
// process restart, which starts a fresh module in PowerOn.
package fips

import (
	qerrors "github.com/pqgate/pqgate/internal/errors"
)

// State identifies the module lifecycle state.
type State uint32

const (
	// StatePowerOn is the initial state. No approved service is available
	// until the power-on self-tests have completed successfully.
	StatePowerOn State = iota

	// StateSelfTestRunning means one caller is executing the power-on
	// self-tests. Concurrent starters are refused immediately, never queued.
	StateSelfTestRunning

	// StateOperational means every self-test passed and the approved
	// services are available.
	StateOperational

	// StateError means a self-test or a conditional test failed. The state
	// is absorbing; only a process restart leaves it.
	StateError
)

// String returns the state name used in logs and status output.
func (s State) String() string {
	switch s {
	case StatePowerOn:
		return "power-on"
	case StateSelfTestRunning:
		return "self-test-running"
	case StateOperational:
		return "operational"
	case StateError:
		return "error"
	default:
		return "unknown"
	}
}

// State returns the current lifecycle state. Non-blocking.
func (m *Module) State() State {
	return State(m.state.Load())
}

// BeginSelfTests claims the PowerOn to SelfTestRunning transition. Among any
// number of racing callers exactly one wins and gets nil; every loser gets an
// immediate error naming the state it observed, with no side effects. Losers
// never block.
func (m *Module) BeginSelfTests() error {
	if m.state.CompareAndSwap(uint32(StatePowerOn), uint32(StateSelfTestRunning)) {
		m.observer().OnStateChange(StatePowerOn, StateSelfTestRunning)
		return nil
	}

	switch State(m.state.Load()) {
	case StateSelfTestRunning:
		return qerrors.ErrSelfTestsRunning
	case StateOperational:
		return qerrors.ErrAlreadyOperational
	default:
		return m.failureOr(qerrors.ErrModuleError)
	}
}

// CompleteSelfTests resolves a run started by BeginSelfTests, moving the
// module to StateOperational or StateError. The transition applies only from
// StateSelfTestRunning; a completion arriving in any other state is ignored
// so a stale caller cannot corrupt the lifecycle.
func (m *Module) CompleteSelfTests(passed bool, failure error) {
	if passed {
		if m.state.CompareAndSwap(uint32(StateSelfTestRunning), uint32(StateOperational)) {
			m.observer().OnStateChange(StateSelfTestRunning, StateOperational)
		}
		return
	}

	if failure == nil {
		failure = qerrors.ErrModuleError
	}
	if m.state.CompareAndSwap(uint32(StateSelfTestRunning), uint32(StateError)) {
		m.recordFailure(failure)
		m.observer().OnStateChange(StateSelfTestRunning, StateError)
	}
}

// SignalRuntimeFailure forces StateOperational to StateError. Conditional
// tests (pairwise consistency, RNG health) call it when a live check fails
// after the module went operational. The first recorded failure sticks;
// later signals do not replace it. Calls in PowerOn or SelfTestRunning are
// ignored, those states have their own failure paths.
func (m *Module) SignalRuntimeFailure(err error) {
	if err == nil {
		err = qerrors.ErrModuleError
	}

	for {
		switch State(m.state.Load()) {
		case StateOperational:
			if m.state.CompareAndSwap(uint32(StateOperational), uint32(StateError)) {
				m.recordFailure(err)
				m.observer().OnRuntimeFailure(err)
				m.observer().OnStateChange(StateOperational, StateError)
				return
			}
			// Lost the transition to a concurrent failure; re-read.
		case StateError:
			m.recordFailure(err)
			return
		default:
			return
		}
	}
}

// RequireOperational is the gate every approved service calls before any
// cryptographic work. It never blocks: if the module is not operational the
// caller gets an immediate state error instead of waiting for self-tests.
func (m *Module) RequireOperational() error {
	st := State(m.state.Load())
	if st == StateOperational {
		return nil
	}

	m.observer().OnGateDenied(st)
	switch st {
	case StatePowerOn:
		return qerrors.ErrNotInitialized
	case StateSelfTestRunning:
		return qerrors.ErrSelfTestsRunning
	default:
		return qerrors.ErrModuleError
	}
}

// Reset returns the module to StatePowerOn and forgets the recorded failure
// and the cached self-test result. It models a process restart for tests and
// operator tooling; a production module leaves StateError only by actually
// restarting.
func (m *Module) Reset() {
	from := State(m.state.Swap(uint32(StatePowerOn)))
	m.failure.Store(nil)
	m.lastResult.Store(nil)
	if from != StatePowerOn {
		m.observer().OnStateChange(from, StatePowerOn)
	}
}

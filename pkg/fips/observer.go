package fips

// Observer provides hooks for module lifecycle and self-test events.
// Implementations should be lightweight; callbacks run synchronously on the
// caller's goroutine, including the RequireOperational hot path.
type Observer interface {
	// OnStateChange is called after a committed lifecycle transition.
	OnStateChange(from, to State)

	// OnPOSTStart is called when a power-on self-test run begins. The
	// returned function, if non-nil, is called with the finished result.
	OnPOSTStart() func(*POSTResult)

	// OnSelfTest is called once per executed self-test with its record.
	OnSelfTest(rec SelfTestRecord)

	// OnGateDenied is called when RequireOperational refuses an operation,
	// with the state that caused the refusal.
	OnGateDenied(state State)

	// OnRuntimeFailure is called when a conditional test forces the module
	// out of StateOperational.
	OnRuntimeFailure(err error)
}

// NoOpObserver is a no-op implementation of Observer.
// It is the default observer of a freshly constructed Module.
type NoOpObserver struct{}

var _ Observer = (*NoOpObserver)(nil)

// OnStateChange implements Observer.
func (NoOpObserver) OnStateChange(_, _ State) {}

// OnPOSTStart implements Observer.
func (NoOpObserver) OnPOSTStart() func(*POSTResult) { return nil }

// OnSelfTest implements Observer.
func (NoOpObserver) OnSelfTest(SelfTestRecord) {}

// OnGateDenied implements Observer.
func (NoOpObserver) OnGateDenied(State) {}

// OnRuntimeFailure implements Observer.
func (NoOpObserver) OnRuntimeFailure(error) {}

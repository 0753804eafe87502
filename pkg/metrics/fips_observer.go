package metrics

import (
	"context"

	qerrors "github.com/pqgate/pqgate/internal/errors"
	"github.com/pqgate/pqgate/pkg/fips"
)

// ModuleObserver feeds module lifecycle events into the metrics pipeline.
// Install it with fips.SetObserver to automatically record every state
// transition, self-test and gate denial.
type ModuleObserver struct {
	collector *Collector
	tracer    Tracer
	logger    *Logger
}

var _ fips.Observer = (*ModuleObserver)(nil)

// ModuleObserverConfig configures a module observer.
type ModuleObserverConfig struct {
	Collector *Collector
	Tracer    Tracer
	Logger    *Logger
}

// NewModuleObserver creates a new module observer.
func NewModuleObserver(cfg ModuleObserverConfig) *ModuleObserver {
	if cfg.Collector == nil {
		cfg.Collector = Global()
	}
	if cfg.Tracer == nil {
		cfg.Tracer = GetTracer()
	}
	if cfg.Logger == nil {
		cfg.Logger = GetLogger()
	}

	return &ModuleObserver{
		collector: cfg.Collector,
		tracer:    cfg.Tracer,
		logger:    cfg.Logger.Named("fips"),
	}
}

// OnStateChange records a committed lifecycle transition.
func (o *ModuleObserver) OnStateChange(from, to fips.State) {
	o.collector.RecordStateTransition(to)

	fields := Fields{"from": from.String(), "to": to.String()}
	if to == fips.StateError {
		o.logger.Error("module entered error state", fields)
		return
	}
	o.logger.Info("module state changed", fields)
}

// OnPOSTStart traces a power-on self-test run from start to completion.
func (o *ModuleObserver) OnPOSTStart() func(*fips.POSTResult) {
	_, endSpan := o.tracer.StartSpan(context.Background(), SpanPOST, WithSpanKind(SpanKindInternal))

	o.logger.Debug("power-on self-tests started")

	return func(res *fips.POSTResult) {
		o.collector.RecordPOST(res.Passed, res.Duration)

		fields := Fields{
			"run_id":   res.RunID,
			"tests":    len(res.Records),
			"duration": res.Duration.String(),
		}
		if res.Err != nil {
			fields["error"] = res.Err.Error()
			o.logger.Error("power-on self-tests failed", fields)
		} else {
			o.logger.Info("power-on self-tests passed", fields)
		}

		endSpan(res.Err)
	}
}

// OnSelfTest records one executed self-test.
func (o *ModuleObserver) OnSelfTest(rec fips.SelfTestRecord) {
	o.collector.RecordSelfTest(rec.Passed)
	if rec.Kind == qerrors.KindPCT {
		o.collector.RecordPCT(rec.Passed, rec.Duration)
	}

	fields := Fields{
		"algorithm": rec.Algorithm,
		"kind":      rec.Kind.String(),
		"duration":  rec.Duration.String(),
	}
	if !rec.Passed {
		fields["detail"] = rec.Detail
		o.logger.Error("self-test failed", fields)
		return
	}
	o.logger.Debug("self-test passed", fields)
}

// OnGateDenied records an operation refused because the module is not
// operational.
func (o *ModuleObserver) OnGateDenied(state fips.State) {
	o.collector.RecordGateDenied()
	o.logger.Warn("operation denied", Fields{"state": state.String()})
}

// OnRuntimeFailure records a conditional test failure that forced the module
// out of service.
func (o *ModuleObserver) OnRuntimeFailure(err error) {
	o.collector.RecordRuntimeFailure()
	o.logger.Error("runtime self-test failure", Fields{"error": err.Error()})
}

// Logger returns the observer's logger for custom logging.
func (o *ModuleObserver) Logger() *Logger {
	return o.logger
}

// --- Instrumented Operations ---

// InstrumentedOps wraps approved-service calls with span and counter
// recording. Hosts that drive pkg/crypto directly can use it instead of
// touching the collector by hand.
type InstrumentedOps struct {
	observer *ModuleObserver
}

// NewInstrumentedOps creates a new instrumented operations wrapper.
func NewInstrumentedOps(observer *ModuleObserver) *InstrumentedOps {
	return &InstrumentedOps{observer: observer}
}

func (s *InstrumentedOps) wrap(ctx context.Context, span string, count func(), fn func() error) error {
	_, endSpan := s.observer.tracer.StartSpan(ctx, span)
	err := fn()
	if err == nil {
		count()
	}
	endSpan(err)
	return err
}

// WrapKeyGen wraps a key pair generation with metrics.
func (s *InstrumentedOps) WrapKeyGen(ctx context.Context, fn func() error) error {
	return s.wrap(ctx, SpanKeyGen, s.observer.collector.RecordKeyPairGenerated, fn)
}

// WrapEncapsulate wraps a KEM encapsulation with metrics.
func (s *InstrumentedOps) WrapEncapsulate(ctx context.Context, fn func() error) error {
	return s.wrap(ctx, SpanEncapsulate, s.observer.collector.RecordEncapsulation, fn)
}

// WrapDecapsulate wraps a KEM decapsulation with metrics.
func (s *InstrumentedOps) WrapDecapsulate(ctx context.Context, fn func() error) error {
	return s.wrap(ctx, SpanDecapsulate, s.observer.collector.RecordDecapsulation, fn)
}

// WrapSign wraps a signature generation with metrics.
func (s *InstrumentedOps) WrapSign(ctx context.Context, fn func() error) error {
	return s.wrap(ctx, SpanSign, s.observer.collector.RecordSignature, fn)
}

// WrapVerify wraps a signature verification with metrics.
func (s *InstrumentedOps) WrapVerify(ctx context.Context, fn func() error) error {
	return s.wrap(ctx, SpanVerify, s.observer.collector.RecordVerification, fn)
}

// WrapKeyWrap wraps a key export with metrics.
func (s *InstrumentedOps) WrapKeyWrap(ctx context.Context, fn func() error) error {
	return s.wrap(ctx, SpanKeyWrap, s.observer.collector.RecordKeyWrap, fn)
}

// WrapKeyUnwrap wraps a key import with metrics.
func (s *InstrumentedOps) WrapKeyUnwrap(ctx context.Context, fn func() error) error {
	return s.wrap(ctx, SpanKeyUnwrap, s.observer.collector.RecordKeyUnwrap, fn)
}

// Package metrics provides observability primitives for the pqgate module.
//
// # Overview
//
// The metrics package offers a complete observability solution including:
//   - Metrics collection (counters, gauges, histograms)
//   - Prometheus-compatible metrics export
//   - Distributed tracing support (OpenTelemetry-compatible interface)
//   - Structured logging with levels
//   - Health check endpoints
//
// # Quick Start
//
// Basic usage with global collector:
//
//	import "github.com/pqgate/pqgate/pkg/metrics"
//
//	// Record metrics
//	metrics.Global().RecordKeyPairGenerated()
//	metrics.Global().RecordEncapsulation()
//	metrics.Global().RecordSignature()
//
//	// Start Prometheus server
//	go metrics.ServePrometheus(":9090", metrics.Global(), "pqgate")
//
// # Module Observer
//
// The ModuleObserver bridges module lifecycle events into the collector,
// logger and tracer. Install it once at startup, before the power-on
// self-tests run:
//
//	fips.SetObserver(metrics.NewModuleObserver(metrics.ModuleObserverConfig{}))
//	fips.MustRunPOST()
//
// Every state transition, self-test record, gate denial and runtime failure
// is recorded automatically from that point on.
//
// # Metrics Collection
//
// The Collector type aggregates metrics from module operations:
//
//	collector := metrics.NewCollector(metrics.Labels{
//		"instance": "node-1",
//		"region":   "us-west-2",
//	})
//
//	// Self-test metrics
//	collector.RecordPOST(true, 12*time.Millisecond)
//	collector.RecordSelfTest(true)
//	collector.RecordPCT(true, 800*time.Microsecond)
//
//	// Key management metrics
//	collector.RecordKeyPairGenerated()
//	collector.RecordSeedRejected()
//
//	// Service metrics
//	collector.RecordEncapsulation()
//	collector.RecordVerification()
//	collector.RecordKeyWrap()
//
//	// Get snapshot
//	snap := collector.Snapshot()
//
// # Prometheus Export
//
// Export metrics in Prometheus format:
//
//	exporter := metrics.NewPrometheusExporter(collector, "pqgate")
//	http.Handle("/metrics", exporter.Handler())
//
// # Tracing
//
// The package provides a Tracer interface compatible with OpenTelemetry:
//
//	// Use the simple tracer for testing
//	tracer := metrics.NewSimpleTracer()
//	metrics.SetTracer(tracer)
//
//	// OpenTelemetry adapter (uses global provider)
//	otelTracer := metrics.NewOTelTracer("pqgate")
//	metrics.SetTracer(otelTracer)
//	// Build with -tags otel to enable the adapter.
//
//	// Start spans
//	ctx, end := metrics.StartSpan(ctx, metrics.SpanEncapsulate)
//	defer end(nil) // or end(err) on error
//
//	// Use with OpenTelemetry SDK (implement the Tracer interface)
//	// metrics.SetTracer(myOTelAdapter)
//
// # Structured Logging
//
// The Logger provides structured logging with levels:
//
//	logger := metrics.NewLogger(
//		metrics.WithLevel(metrics.LevelInfo),
//		metrics.WithFormat(metrics.FormatJSON),
//		metrics.WithFields(metrics.Fields{"service": "pqgate"}),
//	)
//
//	logger.Info("module operational", metrics.Fields{
//		"run_id": runID,
//		"tests":  passed,
//	})
//
//	// Child loggers
//	fipsLog := logger.Named("fips").With(metrics.Fields{"run_id": runID})
//	fipsLog.Debug("self-test passed")
//
// # Health Checks
//
// Provide health check endpoints for Kubernetes and load balancers:
//
//	health := metrics.NewHealthCheck(collector, "1.0.0")
//	health.AddCheck("module", metrics.ModuleStateCheck())
//
//	http.Handle("/health", health.Handler())
//	http.Handle("/healthz", health.LivenessHandler())
//	http.Handle("/readyz", health.ReadinessHandler())
//
// # Observability Server
//
// Start a complete observability server:
//
//	server := metrics.NewServer(metrics.ServerConfig{
//		Collector:        collector,
//		Version:          "1.0.0",
//		Namespace:        "pqgate",
//		EnablePrometheus: true,
//		EnableHealth:     true,
//	})
//
//	go server.ListenAndServe(":9090")
//
// This provides:
//   - /metrics - Prometheus metrics
//   - /health  - Detailed health status
//   - /healthz - Kubernetes liveness probe
//   - /readyz  - Kubernetes readiness probe
package metrics

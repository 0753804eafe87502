package metrics

import (
	"fmt"
	"io"
	"math"
	"net/http"
	"sort"
	"strings"
)

// PrometheusExporter exports metrics in Prometheus text format.
type PrometheusExporter struct {
	collector *Collector
	namespace string
}

// NewPrometheusExporter creates a new Prometheus exporter for the given collector.
// The namespace is prepended to all metric names (e.g., "pqgate").
func NewPrometheusExporter(c *Collector, namespace string) *PrometheusExporter {
	return &PrometheusExporter{
		collector: c,
		namespace: namespace,
	}
}

// Handler returns an http.Handler that serves Prometheus metrics.
func (e *PrometheusExporter) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; version=0.0.4; charset=utf-8")
		e.WriteMetrics(w)
	})
}

// WriteMetrics writes all metrics in Prometheus text format to the writer.
func (e *PrometheusExporter) WriteMetrics(w io.Writer) {
	snap := e.collector.Snapshot()
	labels := e.formatLabels(snap.Labels)

	// --- Self-Test Metrics ---
	e.writeHelp(w, "post_runs_total", "Total power-on self-test runs")
	e.writeType(w, "post_runs_total", "counter")
	e.writeMetric(w, "post_runs_total", labels, float64(snap.POSTRuns))

	e.writeHelp(w, "post_failures_total", "Total failed power-on self-test runs")
	e.writeType(w, "post_failures_total", "counter")
	e.writeMetric(w, "post_failures_total", labels, float64(snap.POSTFailures))

	e.writeHelp(w, "self_tests_passed_total", "Total individual self-tests passed")
	e.writeType(w, "self_tests_passed_total", "counter")
	e.writeMetric(w, "self_tests_passed_total", labels, float64(snap.SelfTestsPassed))

	e.writeHelp(w, "self_tests_failed_total", "Total individual self-tests failed")
	e.writeType(w, "self_tests_failed_total", "counter")
	e.writeMetric(w, "self_tests_failed_total", labels, float64(snap.SelfTestsFailed))

	// --- Lifecycle Metrics ---
	e.writeHelp(w, "module_state", "Current module lifecycle state (0=power-on, 1=self-test-running, 2=operational, 3=error)")
	e.writeType(w, "module_state", "gauge")
	e.writeMetric(w, "module_state", labels, float64(snap.ModuleState))

	e.writeHelp(w, "state_transitions_total", "Total committed lifecycle transitions")
	e.writeType(w, "state_transitions_total", "counter")
	e.writeMetric(w, "state_transitions_total", labels, float64(snap.StateTransitions))

	e.writeHelp(w, "gate_denials_total", "Total operations refused by the state gate")
	e.writeType(w, "gate_denials_total", "counter")
	e.writeMetric(w, "gate_denials_total", labels, float64(snap.GateDenials))

	e.writeHelp(w, "runtime_failures_total", "Total conditional-test failures after the module went operational")
	e.writeType(w, "runtime_failures_total", "counter")
	e.writeMetric(w, "runtime_failures_total", labels, float64(snap.RuntimeFailures))

	// --- Key Management Metrics ---
	e.writeHelp(w, "key_pairs_generated_total", "Total key pairs generated")
	e.writeType(w, "key_pairs_generated_total", "counter")
	e.writeMetric(w, "key_pairs_generated_total", labels, float64(snap.KeyPairsGenerated))

	e.writeHelp(w, "pct_runs_total", "Total pairwise consistency tests run")
	e.writeType(w, "pct_runs_total", "counter")
	e.writeMetric(w, "pct_runs_total", labels, float64(snap.PCTRuns))

	e.writeHelp(w, "pct_failures_total", "Total pairwise consistency test failures")
	e.writeType(w, "pct_failures_total", "counter")
	e.writeMetric(w, "pct_failures_total", labels, float64(snap.PCTFailures))

	e.writeHelp(w, "seed_rejections_total", "Total seeds rejected by validation")
	e.writeType(w, "seed_rejections_total", "counter")
	e.writeMetric(w, "seed_rejections_total", labels, float64(snap.SeedRejections))

	// --- Service Metrics ---
	e.writeHelp(w, "encapsulations_total", "Total KEM encapsulations")
	e.writeType(w, "encapsulations_total", "counter")
	e.writeMetric(w, "encapsulations_total", labels, float64(snap.Encapsulations))

	e.writeHelp(w, "decapsulations_total", "Total KEM decapsulations")
	e.writeType(w, "decapsulations_total", "counter")
	e.writeMetric(w, "decapsulations_total", labels, float64(snap.Decapsulations))

	e.writeHelp(w, "signatures_total", "Total signatures produced")
	e.writeType(w, "signatures_total", "counter")
	e.writeMetric(w, "signatures_total", labels, float64(snap.Signatures))

	e.writeHelp(w, "verifications_total", "Total signature verifications")
	e.writeType(w, "verifications_total", "counter")
	e.writeMetric(w, "verifications_total", labels, float64(snap.Verifications))

	e.writeHelp(w, "key_wraps_total", "Total key-wrap envelopes sealed")
	e.writeType(w, "key_wraps_total", "counter")
	e.writeMetric(w, "key_wraps_total", labels, float64(snap.KeyWraps))

	e.writeHelp(w, "key_unwraps_total", "Total key-wrap envelopes opened")
	e.writeType(w, "key_unwraps_total", "counter")
	e.writeMetric(w, "key_unwraps_total", labels, float64(snap.KeyUnwraps))

	// --- CSP Metrics ---
	e.writeHelp(w, "csp_zeroizations_total", "Total critical security parameters zeroized")
	e.writeType(w, "csp_zeroizations_total", "counter")
	e.writeMetric(w, "csp_zeroizations_total", labels, float64(snap.CSPZeroizations))

	e.writeHelp(w, "csp_exports_blocked_total", "Total plaintext CSP exports refused by policy")
	e.writeType(w, "csp_exports_blocked_total", "counter")
	e.writeMetric(w, "csp_exports_blocked_total", labels, float64(snap.CSPExportsBlocked))

	// --- Uptime ---
	e.writeHelp(w, "uptime_seconds", "Time since the collector was created")
	e.writeType(w, "uptime_seconds", "gauge")
	e.writeMetric(w, "uptime_seconds", labels, snap.Uptime.Seconds())

	// --- Histograms ---
	e.writeHistogram(w, "post_duration_milliseconds", "Power-on self-test duration in milliseconds", labels, snap.POSTDuration)
	e.writeHistogram(w, "pct_duration_microseconds", "Pairwise consistency test duration in microseconds", labels, snap.PCTLatency)
}

// writeHelp writes a HELP line.
func (e *PrometheusExporter) writeHelp(w io.Writer, name, help string) {
	fmt.Fprintf(w, "# HELP %s_%s %s\n", e.namespace, name, help)
}

// writeType writes a TYPE line.
func (e *PrometheusExporter) writeType(w io.Writer, name, typ string) {
	fmt.Fprintf(w, "# TYPE %s_%s %s\n", e.namespace, name, typ)
}

// writeMetric writes a single metric line.
func (e *PrometheusExporter) writeMetric(w io.Writer, name, labels string, value float64) {
	if labels != "" {
		fmt.Fprintf(w, "%s_%s{%s} %g\n", e.namespace, name, labels, value)
	} else {
		fmt.Fprintf(w, "%s_%s %g\n", e.namespace, name, value)
	}
}

// writeHistogram writes a histogram in Prometheus format.
func (e *PrometheusExporter) writeHistogram(w io.Writer, name, help, labels string, h HistogramSummary) {
	e.writeHelp(w, name, help)
	e.writeType(w, name, "histogram")

	fullName := e.namespace + "_" + name

	// Write bucket counts
	for _, b := range h.Buckets {
		le := fmt.Sprintf("%g", b.UpperBound)
		if math.IsInf(b.UpperBound, 1) {
			le = "+Inf"
		}
		if labels != "" {
			fmt.Fprintf(w, "%s_bucket{%s,le=\"%s\"} %d\n", fullName, labels, le, b.Count)
		} else {
			fmt.Fprintf(w, "%s_bucket{le=\"%s\"} %d\n", fullName, le, b.Count)
		}
	}

	// Write sum and count
	if labels != "" {
		fmt.Fprintf(w, "%s_sum{%s} %g\n", fullName, labels, h.Sum)
		fmt.Fprintf(w, "%s_count{%s} %d\n", fullName, labels, h.Count)
	} else {
		fmt.Fprintf(w, "%s_sum %g\n", fullName, h.Sum)
		fmt.Fprintf(w, "%s_count %d\n", fullName, h.Count)
	}
}

// formatLabels converts Labels to Prometheus label format.
func (e *PrometheusExporter) formatLabels(labels Labels) string {
	if len(labels) == 0 {
		return ""
	}

	// Sort keys for consistent output
	keys := make([]string, 0, len(labels))
	for k := range labels {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		// Escape label values
		v := escapePromValue(labels[k])
		parts = append(parts, fmt.Sprintf("%s=\"%s\"", k, v))
	}

	return strings.Join(parts, ",")
}

// escapePromValue escapes a string for use as a Prometheus label value.
func escapePromValue(s string) string {
	s = strings.ReplaceAll(s, "\\", "\\\\")
	s = strings.ReplaceAll(s, "\"", "\\\"")
	s = strings.ReplaceAll(s, "\n", "\\n")
	return s
}

// --- Convenience Functions ---

// ServePrometheus starts an HTTP server serving Prometheus metrics.
// This is a convenience function for simple use cases.
func ServePrometheus(addr string, c *Collector, namespace string) error {
	exp := NewPrometheusExporter(c, namespace)
	http.Handle("/metrics", exp.Handler())
	return http.ListenAndServe(addr, nil)
}

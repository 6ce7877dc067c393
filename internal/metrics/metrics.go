// Copyright 2025 Esteban Alvarez. All Rights Reserved.
//
// Created: October 2025
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package metrics exposes the Prometheus series named in §6.5. It mirrors
// the ratelimiter churn package's telemetry idiom: package-global series
// registered eagerly in init, a Recorder that is safe to pass everywhere
// (including when metrics are disabled, via noop), and an optional
// standalone /metrics HTTP server for --metrics-port.
package metrics

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	requestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "rift_requests_total",
		Help: "Total imposter requests served, by method and response status",
	}, []string{"method", "status"})

	faultsInjectedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "rift_faults_injected_total",
		Help: "Total faults injected, by fault type",
	}, []string{"type"})

	flowStateOpsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "rift_flow_state_ops_total",
		Help: "Total flow store operations, by op",
	}, []string{"op"})

	latencyInjectedMs = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "rift_latency_injected_ms",
		Help:    "Artificial latency injected by the fault layer, in milliseconds",
		Buckets: []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000, 10000},
	})

	scriptExecutionDurationMs = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "rift_script_execution_duration_ms",
		Help:    "Script runtime invocation duration, by dialect",
		Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 25, 50, 100, 250, 500},
	}, []string{"dialect"})

	proxyRequestDurationMs = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "rift_proxy_request_duration_ms",
		Help:    "Upstream proxy round-trip duration, in milliseconds",
		Buckets: []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000, 10000},
	})

	scriptTimeoutsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "rift_script_timeouts_total",
		Help: "Total script invocations that hit the runtime deadline, by dialect",
	}, []string{"dialect"})
)

func init() {
	prometheus.MustRegister(
		requestsTotal,
		faultsInjectedTotal,
		flowStateOpsTotal,
		latencyInjectedMs,
		scriptExecutionDurationMs,
		proxyRequestDurationMs,
		scriptTimeoutsTotal,
	)
}

// Recorder implements internal/imposter's MetricsRecorder against the
// package-global series above. The zero value is ready to use.
type Recorder struct{}

// NewRecorder returns a Recorder. Every instance shares the same
// process-wide Prometheus series, matching the teacher's global-only,
// no-unbounded-cardinality telemetry convention.
func NewRecorder() *Recorder { return &Recorder{} }

func (*Recorder) ObserveRequest(method string, status int) {
	requestsTotal.WithLabelValues(method, statusLabel(status)).Inc()
}

func (*Recorder) ObserveFault(kind string) {
	faultsInjectedTotal.WithLabelValues(kind).Inc()
}

func (*Recorder) ObserveLatencyInjected(ms float64) {
	latencyInjectedMs.Observe(ms)
}

func (*Recorder) ObserveScriptDuration(dialect string, d time.Duration) {
	scriptExecutionDurationMs.WithLabelValues(dialect).Observe(float64(d.Microseconds()) / 1000.0)
}

func (*Recorder) ObserveScriptTimeout(dialect string) {
	scriptTimeoutsTotal.WithLabelValues(dialect).Inc()
}

func (*Recorder) ObserveProxyDuration(d time.Duration) {
	proxyRequestDurationMs.Observe(float64(d.Microseconds()) / 1000.0)
}

// ObserveFlowStateOp records one flow store operation (get/set/increment/
// exists/delete/set_ttl), independent of the imposter MetricsRecorder
// interface since the flow store is shared across an imposter's requests
// rather than owned by one Handler. See ObservingStore.
func (*Recorder) ObserveFlowStateOp(op string) {
	flowStateOpsTotal.WithLabelValues(op).Inc()
}

func statusLabel(status int) string {
	if status <= 0 {
		return "0"
	}
	return strconv.Itoa(status)
}

// StartEndpoint exposes /metrics on addr in a background goroutine,
// matching the teacher's startMetricsEndpoint. It returns the *http.Server
// so callers (cmd/rift) can shut it down gracefully alongside the admin
// and imposter listeners.
func StartEndpoint(addr string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	server := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		_ = server.ListenAndServe()
	}()
	return server
}

// Shutdown gracefully stops a server returned by StartEndpoint.
func Shutdown(ctx context.Context, server *http.Server) error {
	if server == nil {
		return nil
	}
	shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

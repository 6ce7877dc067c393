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

// Package imposter assembles the per-port request pipeline (C3 -> C7 -> C4
// -> C5 -> C2 -> C6 -> C8): match a stub, materialize its response
// (canned, proxied, or scripted), run the behavior pipeline, consult the
// script decision, apply the fault layer, and write the result.
package imposter

import (
	"context"
	"encoding/json"
	"io"
	"math/rand"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/riftmock/rift/internal/behavior"
	"github.com/riftmock/rift/internal/fault"
	"github.com/riftmock/rift/internal/flowstore"
	"github.com/riftmock/rift/internal/matcher"
	"github.com/riftmock/rift/internal/proxy"
	"github.com/riftmock/rift/internal/reqmodel"
	"github.com/riftmock/rift/internal/riftkind"
	"github.com/riftmock/rift/internal/script"
	"github.com/riftmock/rift/internal/stubmodel"
)

// MetricsRecorder receives the counters/histograms named in §6.5. Every
// method is a fire-and-forget observation; Handler never blocks on it. A nil
// MetricsRecorder is always safe to pass: NewHandler substitutes noopMetrics.
type MetricsRecorder interface {
	ObserveRequest(method string, status int)
	ObserveFault(kind string)
	ObserveLatencyInjected(ms float64)
	ObserveScriptDuration(dialect string, d time.Duration)
	ObserveScriptTimeout(dialect string)
	ObserveProxyDuration(d time.Duration)
}

type noopMetrics struct{}

func (noopMetrics) ObserveRequest(string, int)                {}
func (noopMetrics) ObserveFault(string)                       {}
func (noopMetrics) ObserveLatencyInjected(float64)            {}
func (noopMetrics) ObserveScriptDuration(string, time.Duration) {}
func (noopMetrics) ObserveScriptTimeout(string)               {}
func (noopMetrics) ObserveProxyDuration(time.Duration)        {}

var defaultEmptyResponse = &stubmodel.IsResponse{
	StatusCode: http.StatusOK,
	Headers:    http.Header{"Content-Type": []string{"text/plain"}},
	Body:       "",
}

// Handler is the http.Handler bound to one imposter's listener.
type Handler struct {
	imposter  *stubmodel.Imposter
	flowStore flowstore.Store

	scriptRuntime *script.Runtime
	proxyClient   *proxy.Client
	pipeline      *behavior.Pipeline
	metrics       MetricsRecorder

	rngMu sync.Mutex
	rng   *rand.Rand
}

// NewHandler builds a Handler for imp, wired to the given shared runtimes.
// metrics may be nil, in which case observations are dropped.
func NewHandler(imp *stubmodel.Imposter, flowStore flowstore.Store, scriptRuntime *script.Runtime, proxyClient *proxy.Client, allowShellTransform bool, metrics MetricsRecorder) *Handler {
	if metrics == nil {
		metrics = noopMetrics{}
	}
	return &Handler{
		imposter:      imp,
		flowStore:     flowStore,
		scriptRuntime: scriptRuntime,
		proxyClient:   proxyClient,
		pipeline:      behavior.NewPipeline(flowStore, allowShellTransform),
		metrics:       metrics,
		rng:           rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	ctx := r.Context()

	req, err := reqmodel.Parse(r, start)
	if err != nil {
		writeRequestError(w, http.StatusBadRequest, "could not read request body")
		return
	}

	if h.imposter.AllowCORS {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "*")
		w.Header().Set("Access-Control-Allow-Headers", "*")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
	}

	stubs := h.imposter.SnapshotStubs()
	result := matcher.Select(stubs, h.imposter.DefaultResponse, req)
	resp := result.Response

	var scriptDecision *script.Decision
	if resp.Script != nil {
		d, err := h.runScript(ctx, resp.Script, req)
		if err != nil {
			status := http.StatusInternalServerError
			writeRequestError(w, status, "script evaluation failed")
			h.finish(req, result, status)
			return
		}
		scriptDecision = &d
	}

	is, err := h.materialize(ctx, resp, result, req)
	if err != nil {
		status := http.StatusInternalServerError
		if riftkind.Of(err) == riftkind.ProxyUpstream {
			status = http.StatusBadGateway
		}
		writeRequestError(w, status, "response could not be produced")
		h.finish(req, result, status)
		return
	}

	pipelineResult, err := h.pipeline.Apply(ctx, req, is, effectiveBehaviors(stubs, result), req.PathParams)
	if err != nil {
		writeRequestError(w, http.StatusInternalServerError, "response transformation failed")
		h.finish(req, result, http.StatusInternalServerError)
		return
	}

	faultCfg := effectiveFault(h.imposter, resp)
	h.rngMu.Lock()
	decision := fault.Evaluate(faultCfg, scriptDecision, h.rng)
	h.rngMu.Unlock()
	if decision.DelayMs > 0 {
		h.metrics.ObserveLatencyInjected(float64(decision.DelayMs))
	}
	if decision.Outcome != fault.Normal {
		h.metrics.ObserveFault(faultKindLabel(decision.Outcome))
	}

	status := h.deliver(w, r, pipelineResult, decision)
	h.finish(req, result, status)
}

func (h *Handler) materialize(ctx context.Context, resp *stubmodel.Response, result matcher.Result, req *reqmodel.Request) (*stubmodel.IsResponse, error) {
	switch resp.Kind {
	case stubmodel.IsKind:
		return resp.Is, nil
	case stubmodel.ProxyKind:
		proxyStart := time.Now()
		is, err := h.proxyClient.Execute(ctx, h.imposter, result.StubIndex, resp.Proxy, req)
		h.metrics.ObserveProxyDuration(time.Since(proxyStart))
		return is, err
	case stubmodel.InjectKind:
		// The inject response kind's entire behavior is its should_inject
		// decision, already evaluated above; absent a firing fault it falls
		// back to the same empty-200 default an unmatched request gets.
		return defaultEmptyResponse, nil
	default:
		return nil, riftkind.New(riftkind.Internal, "unknown response kind")
	}
}

func (h *Handler) runScript(ctx context.Context, sr *stubmodel.ScriptResponse, req *reqmodel.Request) (script.Decision, error) {
	prog, err := h.scriptRuntime.Compile(script.Dialect(sr.Engine), sr.Code)
	if err != nil {
		return script.Decision{}, err
	}
	scriptStart := time.Now()
	d, err := prog.Invoke(ctx, req, h.flowStore)
	h.metrics.ObserveScriptDuration(sr.Engine, time.Since(scriptStart))
	if riftkind.Of(err) == riftkind.ScriptTimeout {
		h.metrics.ObserveScriptTimeout(sr.Engine)
	}
	return d, err
}

// deliver applies the fault decision's delay and outcome, then the
// behavior pipeline's own wait, and writes the final bytes. It returns the
// status code written, or 0 if the connection was hijacked/preempted.
func (h *Handler) deliver(w http.ResponseWriter, r *http.Request, pr behavior.Result, d fault.Decision) int {
	if d.DelayMs > 0 && !sleepOrDone(r.Context(), time.Duration(d.DelayMs)*time.Millisecond) {
		return 0
	}

	if d.Outcome == fault.TCPOutcome {
		h.preempt(w, d.TCPType)
		return 0
	}

	if pr.WaitMs > 0 && !sleepOrDone(r.Context(), time.Duration(pr.WaitMs)*time.Millisecond) {
		return 0
	}

	if d.Outcome == fault.ErrorOutcome {
		copyHeaders(w.Header(), d.Headers)
		w.WriteHeader(d.Status)
		io.WriteString(w, d.Body)
		return d.Status
	}

	copyHeaders(w.Header(), pr.Headers)
	w.WriteHeader(pr.StatusCode)
	io.WriteString(w, pr.Body)
	return pr.StatusCode
}

func sleepOrDone(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return true
	case <-ctx.Done():
		return false
	}
}

// preempt hijacks the connection to enact a tcp fault in place of a normal
// HTTP response (§4.6). "timeout" leaves the connection open and silent,
// which is indistinguishable from a hung upstream to the client.
func (h *Handler) preempt(w http.ResponseWriter, t stubmodel.TCPFaultType) {
	hj, ok := w.(http.Hijacker)
	if !ok {
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	conn, _, err := hj.Hijack()
	if err != nil {
		return
	}
	switch t {
	case stubmodel.TCPReset:
		if tcp, ok := conn.(*net.TCPConn); ok {
			tcp.SetLinger(0)
		}
		conn.Close()
	case stubmodel.TCPClose:
		conn.Close()
	case stubmodel.TCPTimeout:
		// deliberately left open and unresponded
	}
}

func (h *Handler) finish(req *reqmodel.Request, result matcher.Result, status int) {
	if h.imposter.RecordRequests {
		h.imposter.AppendRequest(&stubmodel.RecordedRequest{Request: req.Clone(), MatchedStub: result.StubIndex})
	}
	h.metrics.ObserveRequest(req.Method, status)
}

func effectiveBehaviors(stubs []*stubmodel.Stub, result matcher.Result) *stubmodel.Behaviors {
	if result.Response.Behaviors != nil {
		return result.Response.Behaviors
	}
	if result.StubIndex >= 0 && result.StubIndex < len(stubs) {
		return stubs[result.StubIndex].Behaviors
	}
	return nil
}

func effectiveFault(imp *stubmodel.Imposter, resp *stubmodel.Response) *stubmodel.FaultConfig {
	if resp.Rift != nil && resp.Rift.Fault != nil {
		return resp.Rift.Fault
	}
	return imp.Rift.Fault
}

func faultKindLabel(o fault.Outcome) string {
	switch o {
	case fault.ErrorOutcome:
		return "error"
	case fault.TCPOutcome:
		return "tcp"
	default:
		return "latency"
	}
}

func copyHeaders(dst http.Header, src http.Header) {
	for k, vals := range src {
		for _, v := range vals {
			dst.Add(k, v)
		}
	}
}

func writeRequestError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]any{
		"errors": []map[string]string{{"message": message}},
	})
}

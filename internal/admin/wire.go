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

// Package admin implements the REST admin surface (§4.9/§6.1): JSON
// translation of stubmodel.Imposter plus dispatch into
// internal/imposter.Registry. The wire shapes here follow Mountebank's own
// field names (camelCase, `_rift` vendor extension) so existing Mountebank
// clients and fixtures work unmodified.
package admin

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/riftmock/rift/internal/predicate"
	"github.com/riftmock/rift/internal/riftkind"
	"github.com/riftmock/rift/internal/stubmodel"
)

// imposterDoc is the wire shape of an Imposter.
type imposterDoc struct {
	Port            int             `json:"port"`
	Protocol        string          `json:"protocol"`
	Name            string          `json:"name,omitempty"`
	Key             string          `json:"key,omitempty"`
	Cert            string          `json:"cert,omitempty"`
	Stubs           []stubDoc       `json:"stubs,omitempty"`
	DefaultResponse *responseDoc    `json:"defaultResponse,omitempty"`
	RecordRequests  bool            `json:"recordRequests,omitempty"`
	AllowCORS       bool            `json:"allowCORS,omitempty"`
	Rift            *riftDoc        `json:"_rift,omitempty"`
	NumberOfRequests int            `json:"numberOfRequests"`
	Requests        []requestDoc    `json:"requests,omitempty"`
}

type stubDoc struct {
	Predicates []map[string]any `json:"predicates,omitempty"`
	Responses  []responseDoc    `json:"responses"`
	Behaviors  *behaviorsDoc    `json:"_behaviors,omitempty"`
	Matches    uint64           `json:"matches,omitempty"`
}

type responseDoc struct {
	Is        *isResponseDoc    `json:"is,omitempty"`
	Proxy     *proxyResponseDoc `json:"proxy,omitempty"`
	Inject    *scriptDoc        `json:"inject,omitempty"`
	Behaviors *behaviorsDoc     `json:"_behaviors,omitempty"`
	Rift      *riftDoc          `json:"_rift,omitempty"`
}

type isResponseDoc struct {
	StatusCode int                 `json:"statusCode,omitempty"`
	Headers    map[string][]string `json:"headers,omitempty"`
	Body       string              `json:"body,omitempty"`
}

type proxyResponseDoc struct {
	To                  string           `json:"to"`
	Mode                string           `json:"mode,omitempty"`
	PredicateGenerators []map[string]any `json:"predicateGenerators,omitempty"`
}

type scriptDoc struct {
	Engine string `json:"engine"`
	Code   string `json:"code"`
}

type behaviorsDoc struct {
	Repeat         int            `json:"repeat,omitempty"`
	Copy           []copyDoc      `json:"copy,omitempty"`
	Lookup         *lookupDoc     `json:"lookup,omitempty"`
	Decorate       string         `json:"decorate,omitempty"`
	ShellTransform string         `json:"shellTransform,omitempty"`
	Wait           *waitDoc       `json:"wait,omitempty"`
	Strict         bool           `json:"strict,omitempty"`
}

type copyDoc struct {
	Into     string `json:"into"`
	From     string `json:"from"`
	Using    string `json:"using"`
	Selector string `json:"selector,omitempty"`
}

type lookupDoc struct {
	Key       copyDoc `json:"key"`
	CSVPath   string  `json:"csvPath"`
	KeyColumn string  `json:"keyColumn"`
	Into      string  `json:"into"`
}

type waitDoc struct {
	Ms     int    `json:"ms,omitempty"`
	Inject string `json:"inject,omitempty"`
}

type riftDoc struct {
	FlowState *flowStateDoc  `json:"flowState,omitempty"`
	Fault     *faultDoc      `json:"fault,omitempty"`
	Routing   map[string]any `json:"routing,omitempty"`
}

type flowStateDoc struct {
	Backend string `json:"backend,omitempty"`
}

type faultDoc struct {
	Latency *latencyFaultDoc `json:"latency,omitempty"`
	Error   *errorFaultDoc   `json:"error,omitempty"`
	TCP     *tcpFaultDoc     `json:"tcp,omitempty"`
}

type latencyFaultDoc struct {
	Probability float64 `json:"probability"`
	MinMs       int     `json:"minMs"`
	MaxMs       int     `json:"maxMs"`
}

type errorFaultDoc struct {
	Probability float64             `json:"probability"`
	Status      int                 `json:"status"`
	Body        string              `json:"body,omitempty"`
	Headers     map[string][]string `json:"headers,omitempty"`
}

type tcpFaultDoc struct {
	Probability float64 `json:"probability"`
	Type        string  `json:"type"`
}

type requestDoc struct {
	Request     requestBodyDoc `json:"request"`
	MatchedStub int            `json:"matchedStub"`
}

type requestBodyDoc struct {
	Method     string              `json:"method"`
	Path       string              `json:"path"`
	Query      map[string][]string `json:"query,omitempty"`
	Headers    map[string][]string `json:"headers,omitempty"`
	Body       string              `json:"body,omitempty"`
	RemoteAddr string              `json:"remoteAddr,omitempty"`
	Timestamp  time.Time           `json:"timestamp"`
}

// --- Imposter <-> wire ---

func imposterFromDoc(doc imposterDoc) (*stubmodel.Imposter, error) {
	proto := stubmodel.HTTP
	if doc.Protocol == string(stubmodel.HTTPS) {
		proto = stubmodel.HTTPS
	}
	imp := stubmodel.NewImposter(doc.Port, proto)
	imp.Name = doc.Name
	imp.Key = doc.Key
	imp.Cert = doc.Cert
	imp.RecordRequests = doc.RecordRequests
	imp.AllowCORS = doc.AllowCORS
	if doc.Rift != nil {
		imp.Rift = riftFromDoc(*doc.Rift)
	}
	if doc.DefaultResponse != nil {
		resp, err := responseFromDoc(*doc.DefaultResponse)
		if err != nil {
			return nil, err
		}
		imp.DefaultResponse = resp
	}

	stubs := make([]*stubmodel.Stub, 0, len(doc.Stubs))
	for i, sd := range doc.Stubs {
		stub, err := stubFromDoc(sd)
		if err != nil {
			return nil, riftkind.Wrap(riftkind.PredicateMalformed, "stub at index "+itoa(i), err)
		}
		stubs = append(stubs, stub)
	}
	imp.ReplaceStubs(stubs)
	return imp, nil
}

// imposterToDoc renders imp for the admin API. requests is included only
// when replayable is true; stubs are dropped entirely when summary is true
// (the bare GET /imposters list view); proxy-kind stubs are dropped when
// removeProxies is true.
func imposterToDoc(imp *stubmodel.Imposter, opts viewOptions) imposterDoc {
	doc := imposterDoc{
		Port:             imp.Port,
		Protocol:         string(imp.Protocol),
		Name:             imp.Name,
		RecordRequests:   imp.RecordRequests,
		AllowCORS:        imp.AllowCORS,
		Rift:             riftToDoc(imp.Rift),
		NumberOfRequests: len(imp.RecordedRequests()),
	}
	if imp.Protocol == stubmodel.HTTPS {
		doc.Key, doc.Cert = imp.Key, imp.Cert
	}
	if imp.DefaultResponse != nil {
		rd := responseToDoc(imp.DefaultResponse)
		doc.DefaultResponse = &rd
	}

	if !opts.summary {
		for _, stub := range imp.SnapshotStubs() {
			if opts.removeProxies && stubIsProxyOnly(stub) {
				continue
			}
			doc.Stubs = append(doc.Stubs, stubToDoc(stub))
		}
	}

	if opts.replayable {
		for _, rr := range imp.RecordedRequests() {
			doc.Requests = append(doc.Requests, requestToDoc(rr))
		}
	}
	return doc
}

func stubIsProxyOnly(stub *stubmodel.Stub) bool {
	for _, r := range stub.Responses {
		if r.Kind != stubmodel.ProxyKind {
			return false
		}
	}
	return len(stub.Responses) > 0
}

// viewOptions controls how much of an imposter's state imposterToDoc
// renders, per the query parameters on GET /imposters and GET
// /imposters/{port} (§4.1, §6.1).
type viewOptions struct {
	replayable    bool
	removeProxies bool
	summary       bool
}

func stubFromDoc(doc stubDoc) (*stubmodel.Stub, error) {
	stub := &stubmodel.Stub{RawPredicates: doc.Predicates}
	for _, raw := range doc.Predicates {
		p, err := predicate.Compile(raw)
		if err != nil {
			return nil, err
		}
		stub.Predicates = append(stub.Predicates, p)
	}
	if doc.Behaviors != nil {
		stub.Behaviors = behaviorsFromDoc(*doc.Behaviors)
	}
	for i, rd := range doc.Responses {
		resp, err := responseFromDoc(rd)
		if err != nil {
			return nil, riftkind.Wrap(riftkind.InvalidConfig, "response at index "+itoa(i), err)
		}
		stub.Responses = append(stub.Responses, resp)
	}
	if len(stub.Responses) == 0 {
		return nil, riftkind.New(riftkind.InvalidConfig, "stub must have at least one response")
	}
	return stub, nil
}

func stubToDoc(stub *stubmodel.Stub) stubDoc {
	doc := stubDoc{Predicates: stub.RawPredicates, Matches: stub.MatchCount()}
	if stub.Behaviors != nil {
		b := behaviorsToDoc(stub.Behaviors)
		doc.Behaviors = &b
	}
	for _, r := range stub.Responses {
		doc.Responses = append(doc.Responses, responseToDoc(r))
	}
	return doc
}

func responseFromDoc(doc responseDoc) (*stubmodel.Response, error) {
	resp := &stubmodel.Response{}
	switch {
	case doc.Is != nil:
		resp.Kind = stubmodel.IsKind
		resp.Is = &stubmodel.IsResponse{
			StatusCode: doc.Is.StatusCode,
			Headers:    headerFromMap(doc.Is.Headers),
			Body:       doc.Is.Body,
		}
		if resp.Is.StatusCode == 0 {
			resp.Is.StatusCode = http.StatusOK
		}
	case doc.Proxy != nil:
		resp.Kind = stubmodel.ProxyKind
		mode := stubmodel.ProxyMode(doc.Proxy.Mode)
		if mode == "" {
			mode = stubmodel.ProxyOnce
		}
		resp.Proxy = &stubmodel.ProxyResponse{
			To:                  doc.Proxy.To,
			Mode:                mode,
			PredicateGenerators: doc.Proxy.PredicateGenerators,
		}
	case doc.Inject != nil:
		resp.Kind = stubmodel.InjectKind
		resp.Script = &stubmodel.ScriptResponse{Engine: doc.Inject.Engine, Code: doc.Inject.Code}
	default:
		return nil, riftkind.New(riftkind.InvalidConfig, "response must set one of is/proxy/inject")
	}
	if doc.Behaviors != nil {
		resp.Behaviors = behaviorsFromDoc(*doc.Behaviors)
	}
	if doc.Rift != nil {
		ext := riftFromDoc(*doc.Rift)
		resp.Rift = &ext
	}
	return resp, nil
}

func responseToDoc(resp *stubmodel.Response) responseDoc {
	doc := responseDoc{}
	switch resp.Kind {
	case stubmodel.IsKind:
		if resp.Is != nil {
			doc.Is = &isResponseDoc{StatusCode: resp.Is.StatusCode, Headers: mapFromHeader(resp.Is.Headers), Body: resp.Is.Body}
		}
	case stubmodel.ProxyKind:
		if resp.Proxy != nil {
			doc.Proxy = &proxyResponseDoc{To: resp.Proxy.To, Mode: string(resp.Proxy.Mode), PredicateGenerators: resp.Proxy.PredicateGenerators}
		}
	case stubmodel.InjectKind:
		if resp.Script != nil {
			doc.Inject = &scriptDoc{Engine: resp.Script.Engine, Code: resp.Script.Code}
		}
	}
	if resp.Behaviors != nil {
		b := behaviorsToDoc(resp.Behaviors)
		doc.Behaviors = &b
	}
	if resp.Rift != nil {
		r := riftToDoc(*resp.Rift)
		doc.Rift = r
	}
	return doc
}

func behaviorsFromDoc(doc behaviorsDoc) *stubmodel.Behaviors {
	b := &stubmodel.Behaviors{
		Repeat:         doc.Repeat,
		Decorate:       doc.Decorate,
		ShellTransform: doc.ShellTransform,
		Strict:         doc.Strict,
	}
	for _, c := range doc.Copy {
		b.Copy = append(b.Copy, stubmodel.CopyBehavior{Into: c.Into, From: c.From, Using: stubmodel.CopyUsingMethod(c.Using), Selector: c.Selector})
	}
	if doc.Lookup != nil {
		b.Lookup = &stubmodel.LookupBehavior{
			Key:       stubmodel.CopyBehavior{Into: doc.Lookup.Key.Into, From: doc.Lookup.Key.From, Using: stubmodel.CopyUsingMethod(doc.Lookup.Key.Using), Selector: doc.Lookup.Key.Selector},
			CSVPath:   doc.Lookup.CSVPath,
			KeyColumn: doc.Lookup.KeyColumn,
			Into:      doc.Lookup.Into,
		}
	}
	if doc.Wait != nil {
		b.Wait = &stubmodel.WaitBehavior{Ms: doc.Wait.Ms, Inject: doc.Wait.Inject}
	}
	return b
}

func behaviorsToDoc(b *stubmodel.Behaviors) behaviorsDoc {
	doc := behaviorsDoc{Repeat: b.Repeat, Decorate: b.Decorate, ShellTransform: b.ShellTransform, Strict: b.Strict}
	for _, c := range b.Copy {
		doc.Copy = append(doc.Copy, copyDoc{Into: c.Into, From: c.From, Using: string(c.Using), Selector: c.Selector})
	}
	if b.Lookup != nil {
		doc.Lookup = &lookupDoc{
			Key:       copyDoc{Into: b.Lookup.Key.Into, From: b.Lookup.Key.From, Using: string(b.Lookup.Key.Using), Selector: b.Lookup.Key.Selector},
			CSVPath:   b.Lookup.CSVPath,
			KeyColumn: b.Lookup.KeyColumn,
			Into:      b.Lookup.Into,
		}
	}
	if b.Wait != nil {
		doc.Wait = &waitDoc{Ms: b.Wait.Ms, Inject: b.Wait.Inject}
	}
	return doc
}

func riftFromDoc(doc riftDoc) stubmodel.RiftExtensions {
	ext := stubmodel.RiftExtensions{Routing: doc.Routing}
	if doc.FlowState != nil {
		ext.FlowState = stubmodel.FlowStateConfig{Backend: doc.FlowState.Backend}
	}
	if doc.Fault != nil {
		ext.Fault = faultFromDoc(*doc.Fault)
	}
	return ext
}

func riftToDoc(ext stubmodel.RiftExtensions) *riftDoc {
	if ext.FlowState.Backend == "" && ext.Fault == nil && len(ext.Routing) == 0 {
		return nil
	}
	doc := &riftDoc{Routing: ext.Routing}
	if ext.FlowState.Backend != "" {
		doc.FlowState = &flowStateDoc{Backend: ext.FlowState.Backend}
	}
	if ext.Fault != nil {
		doc.Fault = faultToDoc(ext.Fault)
	}
	return doc
}

func faultFromDoc(doc faultDoc) *stubmodel.FaultConfig {
	cfg := &stubmodel.FaultConfig{}
	if doc.Latency != nil {
		cfg.Latency = &stubmodel.LatencyFault{Probability: doc.Latency.Probability, MinMs: doc.Latency.MinMs, MaxMs: doc.Latency.MaxMs}
	}
	if doc.Error != nil {
		cfg.Error = &stubmodel.ErrorFault{Probability: doc.Error.Probability, Status: doc.Error.Status, Body: doc.Error.Body, Headers: headerFromMap(doc.Error.Headers)}
	}
	if doc.TCP != nil {
		cfg.TCP = &stubmodel.TCPFault{Probability: doc.TCP.Probability, Type: stubmodel.TCPFaultType(doc.TCP.Type)}
	}
	return cfg
}

func faultToDoc(cfg *stubmodel.FaultConfig) *faultDoc {
	doc := &faultDoc{}
	if cfg.Latency != nil {
		doc.Latency = &latencyFaultDoc{Probability: cfg.Latency.Probability, MinMs: cfg.Latency.MinMs, MaxMs: cfg.Latency.MaxMs}
	}
	if cfg.Error != nil {
		doc.Error = &errorFaultDoc{Probability: cfg.Error.Probability, Status: cfg.Error.Status, Body: cfg.Error.Body, Headers: mapFromHeader(cfg.Error.Headers)}
	}
	if cfg.TCP != nil {
		doc.TCP = &tcpFaultDoc{Probability: cfg.TCP.Probability, Type: string(cfg.TCP.Type)}
	}
	return doc
}

func requestToDoc(rr *stubmodel.RecordedRequest) requestDoc {
	req := rr.Request
	return requestDoc{
		MatchedStub: rr.MatchedStub,
		Request: requestBodyDoc{
			Method:     req.Method,
			Path:       req.Path,
			Query:      map[string][]string(req.Query),
			Headers:    map[string][]string(req.Headers),
			Body:       string(req.Body),
			RemoteAddr: req.RemoteAddr,
			Timestamp:  req.ReceivedAt,
		},
	}
}

func headerFromMap(m map[string][]string) http.Header {
	if m == nil {
		return http.Header{}
	}
	return http.Header(m)
}

func mapFromHeader(h http.Header) map[string][]string {
	if len(h) == 0 {
		return nil
	}
	return map[string][]string(h)
}

func decodeImposter(body []byte) (*stubmodel.Imposter, error) {
	var doc imposterDoc
	if err := json.Unmarshal(body, &doc); err != nil {
		return nil, riftkind.Wrap(riftkind.InvalidConfig, "decode imposter", err)
	}
	return imposterFromDoc(doc)
}

func decodeImposterList(body []byte) ([]*stubmodel.Imposter, error) {
	var wrapper struct {
		Imposters []imposterDoc `json:"imposters"`
	}
	if err := json.Unmarshal(body, &wrapper); err == nil && wrapper.Imposters != nil {
		return decodeAll(wrapper.Imposters)
	}
	var docs []imposterDoc
	if err := json.Unmarshal(body, &docs); err != nil {
		return nil, riftkind.Wrap(riftkind.InvalidConfig, "decode imposter list", err)
	}
	return decodeAll(docs)
}

func decodeAll(docs []imposterDoc) ([]*stubmodel.Imposter, error) {
	imps := make([]*stubmodel.Imposter, 0, len(docs))
	for i, doc := range docs {
		imp, err := imposterFromDoc(doc)
		if err != nil {
			return nil, riftkind.Wrap(riftkind.InvalidConfig, "imposter at index "+itoa(i), err)
		}
		imps = append(imps, imp)
	}
	return imps, nil
}

func decodeStub(body []byte) (*stubmodel.Stub, int, error) {
	var wrapper struct {
		Stub  stubDoc `json:"stub"`
		Index *int    `json:"index"`
	}
	if err := json.Unmarshal(body, &wrapper); err != nil {
		return nil, 0, riftkind.Wrap(riftkind.InvalidConfig, "decode stub", err)
	}
	stub, err := stubFromDoc(wrapper.Stub)
	if err != nil {
		return nil, 0, err
	}
	idx := -1
	if wrapper.Index != nil {
		idx = *wrapper.Index
	}
	return stub, idx, nil
}

func itoa(n int) string {
	return strconv.Itoa(n)
}

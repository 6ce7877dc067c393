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

// Package stubmodel defines the imposter/stub/response data model shared by
// the matcher, template engine, behavior pipeline, fault layer, and admin
// surface. Types here hold no behavior beyond small accessors; the pipeline
// packages operate on them.
package stubmodel

import (
	"net/http"
	"sync/atomic"

	"github.com/riftmock/rift/internal/predicate"
	"github.com/riftmock/rift/internal/reqmodel"
)

// Protocol is the imposter's transport.
type Protocol string

const (
	HTTP  Protocol = "http"
	HTTPS Protocol = "https"
)

// Imposter is one mock server bound to a single port. Stubs is replaced
// wholesale (copy-on-write) by admin mutations; in-flight requests hold a
// snapshot of the slice they began with, per §5.
type Imposter struct {
	Port            int
	Protocol        Protocol
	Name            string
	Key, Cert       string // PEM, https only
	Stubs           atomic.Pointer[[]*Stub]
	DefaultResponse *Response
	RecordRequests  bool
	AllowCORS       bool
	Rift            RiftExtensions

	requests atomic.Pointer[[]*RecordedRequest]
}

// RiftExtensions carries the `_rift` vendor extension at imposter or
// response scope: flow-store backend selection, fault injection config, and
// an opaque routing bag reserved for future use.
type RiftExtensions struct {
	FlowState FlowStateConfig
	Fault     *FaultConfig
	Routing   map[string]any
}

// FlowStateConfig records the flow-store backend this imposter names. The
// registry does not consult it: every imposter gets an in-memory store.
type FlowStateConfig struct {
	Backend string // "inmemory" | "redis" | "postgres", as admitted
}

// RecordedRequest is one entry in an imposter's request log, captured in
// wire-acceptance order per §3's invariant.
type RecordedRequest struct {
	Request     *reqmodel.Request
	MatchedStub int // index into the stub snapshot active at match time, or -1
}

// Stub pairs a predicate conjunction with an ordered, cyclic response list.
// The packed cycle state and the match counter are atomic so concurrent requests can
// read and advance them without a stub-wide lock (§5: "linearizable per
// stub"). A Stub must never be copied by value once published.
type Stub struct {
	Predicates    []*predicate.Predicate
	RawPredicates []map[string]any // retained for replayable export
	Responses     []*Response
	Behaviors     *Behaviors // stub-level default, overridden per-response

	// cycle packs (nextIndex uint32 << 32 | repeatRemaining uint32) so a
	// response selection transitions both counters in one CAS; see
	// NextResponse in cycle.go.
	cycle   atomic.Uint64
	matches atomic.Uint64
}

// Matches reports whether every top-level predicate holds for req. A stub
// with no predicates matches unconditionally.
func (s *Stub) Matches(req *reqmodel.Request) bool {
	for _, p := range s.Predicates {
		if !p.Eval(req) {
			return false
		}
	}
	return true
}

// MatchCount returns the number of times this stub has been selected.
func (s *Stub) MatchCount() uint64 { return s.matches.Load() }

// recordMatch increments the match counter; called by the matcher once a
// stub is selected, not during predicate evaluation (which stays pure).
func (s *Stub) recordMatch() { s.matches.Add(1) }

// ResponseKind discriminates the three response variants from §3.
type ResponseKind int

const (
	IsKind ResponseKind = iota
	ProxyKind
	InjectKind
)

// Response is one entry in a stub's cyclic response list.
type Response struct {
	Kind      ResponseKind
	Is        *IsResponse
	Proxy     *ProxyResponse
	Script    *ScriptResponse
	Behaviors *Behaviors
	Rift      *RiftExtensions
}

// IsResponse is a static canned response.
type IsResponse struct {
	StatusCode int
	Headers    http.Header
	Body       string
}

// ProxyMode selects how a proxy response learns from upstream traffic.
type ProxyMode string

const (
	ProxyOnce        ProxyMode = "proxyOnce"
	ProxyAlways      ProxyMode = "proxyAlways"
	ProxyTransparent ProxyMode = "proxyTransparent"
)

// ProxyResponse forwards to an upstream and optionally self-modifies the
// imposter's stub list to cache the captured result (§4.5).
type ProxyResponse struct {
	To                  string
	Mode                ProxyMode
	PredicateGenerators []map[string]any
}

// ScriptResponse is an `inject`/`_rift.script` response: a decision script
// evaluated against the request and the flow store (§4.7).
type ScriptResponse struct {
	Engine string // "rhai" | "lua" | "javascript"
	Code   string
}

// Behaviors is the post-match transform pipeline, applied in the fixed
// order documented in §4.4: Copy -> Lookup -> Decorate/ShellTransform ->
// template substitution -> Wait.
type Behaviors struct {
	Repeat         int // default 0 means "no repeat", i.e. advance every time
	Copy           []CopyBehavior
	Lookup         *LookupBehavior
	Decorate       string // script source, rewrites the materialized response
	ShellTransform string // external command, receives JSON response on stdin
	Wait           *WaitBehavior
	Strict         bool // unknown template tokens error 500 instead of resolving empty
}

// WaitBehavior delays the final write. Exactly one of Ms or Inject is set;
// Inject is evaluated by the script runtime for its numeric return.
type WaitBehavior struct {
	Ms     int
	Inject string
}

// CopyUsingMethod selects how a CopyBehavior extracts its source value.
type CopyUsingMethod string

const (
	CopyUsingRegex    CopyUsingMethod = "regex"
	CopyUsingJSONPath CopyUsingMethod = "jsonpath"
	CopyUsingXPath    CopyUsingMethod = "xpath"
)

// CopyBehavior binds a template variable from a named request field.
type CopyBehavior struct {
	Into  string
	From  string // request field name: method, path, query, headers, body
	Using CopyUsingMethod
	Selector string // regex pattern or jsonpath/xpath selector
}

// LookupBehavior resolves a CSV row by a copied key and binds its columns.
type LookupBehavior struct {
	Key       CopyBehavior
	CSVPath   string
	KeyColumn string
	Into      string
}

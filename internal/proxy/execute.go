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

package proxy

import (
	"context"

	"github.com/riftmock/rift/internal/predicate"
	"github.com/riftmock/rift/internal/reqmodel"
	"github.com/riftmock/rift/internal/stubmodel"
)

// Execute runs one proxy response: forward to upstream, then, for
// proxyOnce/proxyAlways, learn from what came back by splicing a new stub
// into imp's stub list (§4.5). stubIndex is the position of the proxy stub
// itself in the snapshot the caller matched against.
//
// proxyOnce inserts the learned stub at stubIndex, ahead of the proxy stub,
// which is pushed one position later — so a repeat of the same call matches
// the cached stub first and never reaches the network again. proxyAlways
// appends instead, since every call should add a fresh cached stub without
// suppressing the always-live proxy rule. proxyTransparent forwards and
// learns nothing.
func (c *Client) Execute(ctx context.Context, imp *stubmodel.Imposter, stubIndex int, pr *stubmodel.ProxyResponse, req *reqmodel.Request) (*stubmodel.IsResponse, error) {
	is, err := c.Forward(ctx, pr.To, req)
	if err != nil {
		return nil, err
	}

	switch pr.Mode {
	case stubmodel.ProxyOnce:
		imp.InsertStub(learnedStub(pr, req, is), stubIndex)
	case stubmodel.ProxyAlways:
		imp.InsertStub(learnedStub(pr, req, is), -1)
	case stubmodel.ProxyTransparent:
		// learns nothing
	}
	return is, nil
}

// learnedStub builds the stub a proxyOnce/proxyAlways response caches: a
// predicate conjunction generated from the captured request per
// pr.PredicateGenerators, paired with a single static copy of is.
func learnedStub(pr *stubmodel.ProxyResponse, req *reqmodel.Request, is *stubmodel.IsResponse) *stubmodel.Stub {
	compiled, raw := generatePredicates(pr.PredicateGenerators, req)
	cached := *is // value copy: the proxy's response must not alias the caller's
	stub := &stubmodel.Stub{
		Predicates:    compiled,
		RawPredicates: raw,
		Responses: []*stubmodel.Response{
			{Kind: stubmodel.IsKind, Is: &cached},
		},
	}
	return stub
}

// generatePredicates turns a list of `{"matches": {field: bool, ...}}`
// generator documents into compiled equals predicates over the captured
// request's field values, per §4.5. Fields set false (or absent) are
// excluded from the generated predicate; a generator contributing no fields
// is skipped entirely.
func generatePredicates(generators []map[string]any, req *reqmodel.Request) ([]*predicate.Predicate, []map[string]any) {
	var compiled []*predicate.Predicate
	var raw []map[string]any

	for _, gen := range generators {
		matches, ok := gen["matches"].(map[string]any)
		if !ok {
			continue
		}
		fields := map[string]any{}
		for field, want := range matches {
			enabled, _ := want.(bool)
			if !enabled {
				continue
			}
			switch field {
			case "query":
				fields[field] = flattenValues(req.Query)
			case "headers":
				fields[field] = flattenHeaders(req)
			default:
				fields[field] = captureField(req, field)
			}
		}
		if len(fields) == 0 {
			continue
		}

		rawPred := map[string]any{"equals": fields}
		p, err := predicate.Compile(rawPred)
		if err != nil {
			// A generator document only ever produces string-valued equals
			// selectors, which always compile; skip defensively rather than
			// fail the whole proxy call over a malformed generator entry.
			continue
		}
		compiled = append(compiled, p)
		raw = append(raw, rawPred)
	}
	return compiled, raw
}

func captureField(req *reqmodel.Request, field string) string {
	switch field {
	case "method":
		return req.Method
	case "path":
		return req.Path
	case "body":
		return req.BodyText()
	default:
		return ""
	}
}

// flattenValues reduces url.Values to its first value per key, matching how
// the matcher's own nested query/headers selectors compare (§4.2).
func flattenValues(v map[string][]string) map[string]any {
	out := make(map[string]any, len(v))
	for k, vals := range v {
		if len(vals) > 0 {
			out[k] = vals[0]
		}
	}
	return out
}

func flattenHeaders(req *reqmodel.Request) map[string]any {
	out := make(map[string]any, len(req.Headers))
	for k := range req.Headers {
		out[k] = req.HeaderValue(k)
	}
	return out
}

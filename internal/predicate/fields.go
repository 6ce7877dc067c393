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

package predicate

import (
	"encoding/json"
	"strings"

	"github.com/riftmock/rift/internal/reqmodel"
)

// fieldText returns the comparable string form of a top-level request field,
// per the extraction rules in §4.2. ok is false when the field name is not
// one of the known selectors.
func fieldText(req *reqmodel.Request, field string) (string, bool) {
	switch field {
	case "method":
		return strings.ToUpper(req.Method), true
	case "path":
		return req.Path, true
	case "body":
		return req.BodyText(), true
	default:
		return "", false
	}
}

// subFieldText resolves a nested selector such as query.foo or headers.X-Foo.
func subFieldText(req *reqmodel.Request, field, sub string) (string, bool) {
	switch field {
	case "query":
		vals, ok := req.Query[sub]
		if !ok || len(vals) == 0 {
			return "", false
		}
		return vals[0], true
	case "headers":
		v := req.HeaderValue(sub)
		if v == "" && len(req.Headers.Values(sub)) == 0 {
			return "", false
		}
		return v, true
	default:
		return "", false
	}
}

// fieldJSON returns the structured value of a field for deep comparisons.
// For "body" this parses the request body as JSON if it hasn't been parsed
// already (e.g. missing/incorrect Content-Type). For "query"/"headers" it
// flattens to a map[string]string. Returns ok=false if the field is unknown
// or, for body, does not parse as JSON.
func fieldJSON(req *reqmodel.Request, field string) (any, bool) {
	switch field {
	case "body":
		if req.JSONBody != nil {
			return req.JSONBody, true
		}
		var v any
		if err := json.Unmarshal(req.Body, &v); err == nil {
			return v, true
		}
		return nil, false
	case "query":
		return flattenValues(req.Query), true
	case "headers":
		return flattenHeader(req), true
	default:
		return nil, false
	}
}

func flattenValues(v map[string][]string) map[string]any {
	out := make(map[string]any, len(v))
	for k, vals := range v {
		if len(vals) > 0 {
			out[k] = vals[0]
		}
	}
	return out
}

func flattenHeader(req *reqmodel.Request) map[string]any {
	out := make(map[string]any, len(req.Headers))
	for k := range req.Headers {
		out[k] = req.HeaderValue(k)
	}
	return out
}

// isEmptyValue reports whether a field's extracted text is considered
// "absent or empty" for the exists operator.
func isEmptyValue(s string, ok bool) bool {
	return !ok || s == ""
}

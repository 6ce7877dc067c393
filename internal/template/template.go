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

// Package template implements the `${name}` substitution engine and the
// copy/lookup behavior resolvers that populate its bindings (C4). Rendering
// is purely string-level so JSON response bodies are re-serialized intact
// around substituted values; it never unmarshals the response body itself.
package template

import (
	"regexp"
	"strings"

	"github.com/riftmock/rift/internal/riftkind"
)

var tokenPattern = regexp.MustCompile(`\$\{([A-Za-z0-9_.]+)\}`)

// Bindings maps template variable name to its string value.
type Bindings map[string]string

// Render substitutes every `${name}` token in s using bindings. Unknown
// tokens resolve to the empty string unless strict is true, in which case
// the first unknown token yields a TemplateMissing error (request-time 500
// per §7).
func Render(s string, bindings Bindings, strict bool) (string, error) {
	var missing string
	out := tokenPattern.ReplaceAllStringFunc(s, func(tok string) string {
		name := tok[2 : len(tok)-1]
		if v, ok := bindings[name]; ok {
			return v
		}
		if missing == "" {
			missing = name
		}
		return ""
	})
	if strict && missing != "" {
		return "", riftkind.New(riftkind.TemplateMissing, "unknown template binding: "+missing)
	}
	return out, nil
}

// Merge returns a new Bindings with b2's keys overriding b1's, leaving both
// inputs untouched.
func Merge(b1, b2 Bindings) Bindings {
	out := make(Bindings, len(b1)+len(b2))
	for k, v := range b1 {
		out[k] = v
	}
	for k, v := range b2 {
		out[k] = v
	}
	return out
}

// FromPathParams converts regex-captured path parameters into bindings,
// stripping nothing: names are used verbatim as capture group names.
func FromPathParams(params map[string]string) Bindings {
	b := make(Bindings, len(params))
	for k, v := range params {
		b[k] = v
	}
	return b
}

// stripTemplateWhitespace is applied to CSV lookups' header names so header
// rows with accidental trailing spaces don't silently fail to bind.
func stripTemplateWhitespace(s string) string { return strings.TrimSpace(s) }

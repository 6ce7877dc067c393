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

package behavior

import (
	"github.com/riftmock/rift/internal/reqmodel"
	"github.com/riftmock/rift/internal/riftkind"
	"github.com/riftmock/rift/internal/stubmodel"
	"github.com/riftmock/rift/internal/template"
)

// applyCopy resolves each copy behavior against req and returns the
// resulting template bindings, keyed by each behavior's Into name.
func applyCopy(req *reqmodel.Request, copies []stubmodel.CopyBehavior) (template.Bindings, error) {
	out := template.Bindings{}
	for _, c := range copies {
		text, raw := resolveFieldText(req, c.From)
		value, ok, err := extractUsing(c.Using, text, raw, c.Selector)
		if err != nil {
			return nil, err
		}
		if ok {
			out[c.Into] = value
		}
	}
	return out, nil
}

// applyLookup resolves a lookup behavior's key using the same extraction
// copy behaviors use, then binds the matched CSV row's columns — namespaced
// under Into (e.g. "customer.name") when Into is non-empty, bound by their
// bare column name otherwise.
func applyLookup(req *reqmodel.Request, lookup *stubmodel.LookupBehavior) (template.Bindings, error) {
	if lookup == nil {
		return template.Bindings{}, nil
	}
	text, raw := resolveFieldText(req, lookup.Key.From)
	key, ok, err := extractUsing(lookup.Key.Using, text, raw, lookup.Key.Selector)
	if err != nil {
		return nil, err
	}
	if !ok {
		return template.Bindings{}, nil
	}
	row, found := template.LookupCSV(lookup.CSVPath, lookup.KeyColumn, key)
	if !found {
		return template.Bindings{}, nil
	}
	out := make(template.Bindings, len(row))
	for col, v := range row {
		name := col
		if lookup.Into != "" {
			name = lookup.Into + "." + col
		}
		out[name] = v
	}
	return out, nil
}

func extractUsing(using stubmodel.CopyUsingMethod, text string, raw []byte, selector string) (string, bool, error) {
	switch using {
	case stubmodel.CopyUsingRegex:
		v, ok := template.ExtractRegex(text, selector)
		return v, ok, nil
	case stubmodel.CopyUsingJSONPath:
		v, ok := template.ExtractJSONPath(raw, selector)
		return v, ok, nil
	case stubmodel.CopyUsingXPath:
		v, ok := template.ExtractXPath(raw, selector)
		return v, ok, nil
	default:
		return "", false, riftkind.New(riftkind.InvalidConfig, "unknown copy method: "+string(using))
	}
}

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
	"fmt"
	"regexp"

	"github.com/beevik/etree"
	"github.com/ohler55/ojg/jp"
	"github.com/riftmock/rift/internal/riftkind"
)

var leafOps = map[string]Op{
	"equals":     Equals,
	"deepEquals": DeepEquals,
	"contains":   Contains,
	"startsWith": StartsWith,
	"endsWith":   EndsWith,
	"matches":    Matches,
	"exists":     Exists,
}

// Compile turns a Mountebank-shaped predicate document (the decoded form of
// a JSON object such as {"equals": {"method": "GET"}}) into a compiled
// *Predicate tree. All regexes and path selectors are compiled here, at
// imposter admission time, never on the request path.
func Compile(raw map[string]any) (*Predicate, error) {
	if sub, ok := raw["and"]; ok {
		return compileCombinator(And, sub)
	}
	if sub, ok := raw["or"]; ok {
		return compileCombinator(Or, sub)
	}
	if sub, ok := raw["not"]; ok {
		child, err := compileChild(sub)
		if err != nil {
			return nil, err
		}
		return &Predicate{Op: Not, Children: []*Predicate{child}}, nil
	}
	if sub, ok := raw["jsonpath"]; ok {
		return compileJSONPath(raw, sub)
	}
	if sub, ok := raw["xpath"]; ok {
		return compileXPath(raw, sub)
	}
	return compileLeaf(raw)
}

func compileChild(v any) (*Predicate, error) {
	m, ok := v.(map[string]any)
	if !ok {
		return nil, riftkind.New(riftkind.PredicateMalformed, "predicate body must be an object")
	}
	return Compile(m)
}

func compileCombinator(op Op, v any) (*Predicate, error) {
	list, ok := v.([]any)
	if !ok {
		return nil, riftkind.New(riftkind.PredicateMalformed, "and/or requires an array of predicates")
	}
	children := make([]*Predicate, 0, len(list))
	for _, item := range list {
		child, err := compileChild(item)
		if err != nil {
			return nil, err
		}
		children = append(children, child)
	}
	return &Predicate{Op: op, Children: children}, nil
}

func compileLeaf(raw map[string]any) (*Predicate, error) {
	var op Op
	var selectorRaw any
	found := false
	for name, o := range leafOps {
		if v, ok := raw[name]; ok {
			op, selectorRaw, found = o, v, true
			break
		}
	}
	if !found {
		return nil, riftkind.New(riftkind.PredicateMalformed, "unrecognized predicate operator")
	}
	selector, ok := selectorRaw.(map[string]any)
	if !ok {
		return nil, riftkind.New(riftkind.PredicateMalformed, "predicate selector must be an object")
	}

	p := &Predicate{Op: op, Selector: selector}
	p.CaseSensitive, _ = raw["caseSensitive"].(bool)
	if exceptStr, ok := raw["except"].(string); ok && exceptStr != "" {
		re, err := regexp.Compile(exceptStr)
		if err != nil {
			return nil, riftkind.Wrap(riftkind.PredicateMalformed, "invalid except regex", err)
		}
		p.Except = re
	}

	if op == Matches {
		p.Regexes = make(map[string]*regexp.Regexp, len(selector))
		for field, v := range selector {
			pattern, ok := v.(string)
			if !ok {
				return nil, riftkind.New(riftkind.PredicateMalformed, "matches selector values must be strings")
			}
			if !p.CaseSensitive {
				pattern = "(?i)" + pattern
			}
			re, err := regexp.Compile(pattern)
			if err != nil {
				return nil, riftkind.Wrap(riftkind.PredicateMalformed, "invalid matches regex for field "+field, err)
			}
			p.Regexes[field] = re
		}
	}
	return p, nil
}

// compileJSONPath handles {"jsonpath": {"selector": "$.a.b", "<op>": value}}.
func compileJSONPath(raw map[string]any, sub any) (*Predicate, error) {
	cfg, ok := sub.(map[string]any)
	if !ok {
		return nil, riftkind.New(riftkind.PredicateMalformed, "jsonpath requires an object with a selector")
	}
	selectorStr, ok := cfg["selector"].(string)
	if !ok || selectorStr == "" {
		return nil, riftkind.New(riftkind.PredicateMalformed, "jsonpath requires a string selector")
	}
	expr, err := jp.ParseString(selectorStr)
	if err != nil {
		return nil, riftkind.Wrap(riftkind.PredicateMalformed, "invalid jsonpath selector", err)
	}
	p := &Predicate{Op: JSONPath, PathSelector: selectorStr, CompiledPath: expr}
	p.CaseSensitive, _ = raw["caseSensitive"].(bool)
	if err := attachNested(p, cfg); err != nil {
		return nil, err
	}
	return p, nil
}

// compileXPath handles {"xpath": {"selector": "//a/b", "ns": {...}, "<op>": value}}.
func compileXPath(raw map[string]any, sub any) (*Predicate, error) {
	cfg, ok := sub.(map[string]any)
	if !ok {
		return nil, riftkind.New(riftkind.PredicateMalformed, "xpath requires an object with a selector")
	}
	selectorStr, ok := cfg["selector"].(string)
	if !ok || selectorStr == "" {
		return nil, riftkind.New(riftkind.PredicateMalformed, "xpath requires a string selector")
	}
	path, err := etree.CompilePath(selectorStr)
	if err != nil {
		return nil, riftkind.Wrap(riftkind.PredicateMalformed, "invalid xpath selector", err)
	}
	p := &Predicate{Op: XPath, PathSelector: selectorStr, CompiledXPath: path}
	p.CaseSensitive, _ = raw["caseSensitive"].(bool)
	if err := attachNested(p, cfg); err != nil {
		return nil, err
	}
	return p, nil
}

func attachNested(p *Predicate, cfg map[string]any) error {
	for name, op := range leafOps {
		if name == "deepEquals" {
			continue // deepEquals against an extracted node is equals in practice
		}
		if v, ok := cfg[name]; ok {
			p.NestedOp = op
			p.NestedValue = v
			if op == Matches {
				pattern, ok := v.(string)
				if !ok {
					return riftkind.New(riftkind.PredicateMalformed, "matches value must be a string")
				}
				if !p.CaseSensitive {
					pattern = "(?i)" + pattern
				}
				re, err := regexp.Compile(pattern)
				if err != nil {
					return riftkind.Wrap(riftkind.PredicateMalformed, "invalid nested matches regex", err)
				}
				p.NestedRegex = re
			}
			return nil
		}
	}
	return riftkind.New(riftkind.PredicateMalformed, fmt.Sprintf("%s/%s predicate requires a nested comparison operator", "jsonpath", "xpath"))
}

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

// Package predicate implements the predicate tree: admission-time compiled,
// side-effect-free boolean evaluation of a request against a stub's match
// criteria. Compilation (regex, jsonpath, xpath) happens once, at imposter
// creation; Eval never allocates a compiler and never returns an error.
package predicate

import (
	"regexp"
	"strings"

	"github.com/beevik/etree"
	"github.com/ohler55/ojg/jp"
	"github.com/riftmock/rift/internal/reqmodel"
)

// Op names one branch of the predicate sum type.
type Op int

const (
	Equals Op = iota
	DeepEquals
	Contains
	StartsWith
	EndsWith
	Matches
	Exists
	JSONPath
	XPath
	And
	Or
	Not
)

// Predicate is a single compiled node. Leaf nodes (Equals .. Exists) carry a
// Selector of field -> expected value. And/Or carry Children; Not carries
// exactly one child in Children[0]. JSONPath/XPath carry a compiled selector
// plus a nested leaf operator applied to the extracted value.
type Predicate struct {
	Op            Op
	Selector      map[string]any
	Children      []*Predicate
	CaseSensitive bool
	Except        *regexp.Regexp

	// Matches: field -> compiled regex.
	Regexes map[string]*regexp.Regexp

	// JSONPath/XPath.
	PathSelector string
	CompiledPath jp.Expr
	CompiledXPath etree.Path
	NestedOp      Op
	NestedValue   any
	NestedRegex   *regexp.Regexp
}

// Eval evaluates the predicate tree against req. It never panics on a
// well-formed, admission-compiled tree and never mutates req.
func (p *Predicate) Eval(req *reqmodel.Request) bool {
	switch p.Op {
	case And:
		for _, c := range p.Children {
			if !c.Eval(req) {
				return false
			}
		}
		return true
	case Or:
		for _, c := range p.Children {
			if c.Eval(req) {
				return true
			}
		}
		return false
	case Not:
		return !p.Children[0].Eval(req)
	case JSONPath:
		return p.evalJSONPath(req)
	case XPath:
		return p.evalXPath(req)
	default:
		return p.evalLeaf(req)
	}
}

func (p *Predicate) evalLeaf(req *reqmodel.Request) bool {
	for field, expected := range p.Selector {
		if p.Op == DeepEquals {
			if !p.compareDeep(req, field, expected) {
				return false
			}
			continue
		}
		if sub, ok := expected.(map[string]any); ok && (field == "query" || field == "headers") {
			for subField, subExpected := range sub {
				actual, present := subFieldText(req, field, subField)
				if !p.compareOne(field, actual, present, subExpected) {
					return false
				}
			}
			continue
		}
		actual, present := fieldText(req, field)
		if !p.compareOne(field, actual, present, expected) {
			return false
		}
	}
	return true
}

func (p *Predicate) compareOne(field, actual string, present bool, expected any) bool {
	switch p.Op {
	case Exists:
		want, _ := expected.(bool)
		return !isEmptyValue(p.applyExcept(actual), present) == want
	case Matches:
		re := p.Regexes[field]
		if re == nil || !present {
			return false
		}
		return re.MatchString(p.applyExcept(actual))
	default:
		expectedStr, ok := expected.(string)
		if !ok {
			return false
		}
		a, e := p.normalize(actual), p.normalize(expectedStr)
		switch p.Op {
		case Equals:
			return present && a == e
		case Contains:
			return present && strings.Contains(a, e)
		case StartsWith:
			return present && strings.HasPrefix(a, e)
		case EndsWith:
			return present && strings.HasSuffix(a, e)
		default:
			return false
		}
	}
}

// compareDeep handles deepEquals, which compares structured values (JSON
// objects/arrays for body/query/headers) rather than joined strings.
func (p *Predicate) compareDeep(req *reqmodel.Request, field string, expected any) bool {
	if structured, ok := fieldJSON(req, field); ok {
		return deepEqual(structured, expected)
	}
	actual, present := fieldText(req, field)
	expectedStr, ok := expected.(string)
	if !ok || !present {
		return false
	}
	return p.normalize(actual) == p.normalize(expectedStr)
}

func (p *Predicate) normalize(s string) string {
	s = p.applyExcept(s)
	if !p.CaseSensitive {
		s = strings.ToLower(s)
	}
	return s
}

func (p *Predicate) applyExcept(s string) string {
	if p.Except == nil {
		return s
	}
	return p.Except.ReplaceAllString(s, "")
}

func (p *Predicate) evalJSONPath(req *reqmodel.Request) bool {
	doc, ok := fieldJSON(req, "body")
	if !ok {
		return false
	}
	results := p.CompiledPath.Get(doc)
	return p.evalNested(results)
}

func (p *Predicate) evalNested(results []any) bool {
	switch p.NestedOp {
	case Exists:
		want, _ := p.NestedValue.(bool)
		return (len(results) > 0) == want
	case Matches:
		if p.NestedRegex == nil {
			return false
		}
		for _, r := range results {
			if s, ok := r.(string); ok && p.NestedRegex.MatchString(s) {
				return true
			}
		}
		return false
	default:
		for _, r := range results {
			if deepEqual(r, p.NestedValue) {
				return true
			}
			if s, ok := r.(string); ok {
				if es, ok := p.NestedValue.(string); ok {
					a, e := s, es
					if !p.CaseSensitive {
						a, e = strings.ToLower(a), strings.ToLower(e)
					}
					switch p.NestedOp {
					case Contains:
						if strings.Contains(a, e) {
							return true
						}
					case StartsWith:
						if strings.HasPrefix(a, e) {
							return true
						}
					case EndsWith:
						if strings.HasSuffix(a, e) {
							return true
						}
					default:
						if a == e {
							return true
						}
					}
				}
			}
		}
		return false
	}
}

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

package template

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"regexp"

	"github.com/beevik/etree"
	"github.com/ohler55/ojg/jp"
)

// ExtractRegex returns the first capture group (or, if the pattern has no
// groups, the whole match) of pattern against value.
func ExtractRegex(value, pattern string) (string, bool) {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return "", false
	}
	m := re.FindStringSubmatch(value)
	if m == nil {
		return "", false
	}
	if len(m) > 1 {
		return m[1], true
	}
	return m[0], true
}

// ExtractJSONPath evaluates selector against a JSON-decoded value and
// returns the first result's string form.
func ExtractJSONPath(raw []byte, selector string) (string, bool) {
	expr, err := jp.ParseString(selector)
	if err != nil {
		return "", false
	}
	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return "", false
	}
	results := expr.Get(doc)
	if len(results) == 0 {
		return "", false
	}
	return fmt.Sprint(results[0]), true
}

// ExtractXPath parses raw as XML and returns the first matching element's
// text.
func ExtractXPath(raw []byte, selector string) (string, bool) {
	path, err := etree.CompilePath(selector)
	if err != nil {
		return "", false
	}
	doc := etree.NewDocument()
	if err := doc.ReadFromBytes(raw); err != nil {
		return "", false
	}
	elems := doc.FindElementsPath(path)
	if len(elems) == 0 {
		return "", false
	}
	return elems[0].Text(), true
}

// LookupCSV reads path and returns the first row whose keyColumn equals
// key, as a column-name -> value map using the header row's names. Reports
// false if the file, header, or a matching row cannot be found.
func LookupCSV(path, keyColumn, key string) (map[string]string, bool) {
	f, err := os.Open(path)
	if err != nil {
		return nil, false
	}
	defer f.Close()

	r := csv.NewReader(f)
	header, err := r.Read()
	if err != nil {
		return nil, false
	}
	keyIdx := -1
	for i, h := range header {
		if stripTemplateWhitespace(h) == keyColumn {
			keyIdx = i
			break
		}
	}
	if keyIdx == -1 {
		return nil, false
	}
	for {
		row, err := r.Read()
		if err != nil {
			return nil, false
		}
		if keyIdx < len(row) && row[keyIdx] == key {
			out := make(map[string]string, len(header))
			for i, h := range header {
				if i < len(row) {
					out[stripTemplateWhitespace(h)] = row[i]
				}
			}
			return out, true
		}
	}
}

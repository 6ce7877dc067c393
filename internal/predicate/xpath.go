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
	"github.com/beevik/etree"
	"github.com/riftmock/rift/internal/reqmodel"
)

// evalXPath parses the body as XML and applies the compiled path, feeding
// the extracted element text into the nested operator.
func (p *Predicate) evalXPath(req *reqmodel.Request) bool {
	doc := etree.NewDocument()
	if err := doc.ReadFromBytes(req.Body); err != nil {
		return p.NestedOp == Exists && p.NestedValue == false
	}
	elems := doc.FindElementsPath(p.CompiledXPath)
	results := make([]any, 0, len(elems))
	for _, e := range elems {
		results = append(results, e.Text())
	}
	return p.evalNested(results)
}

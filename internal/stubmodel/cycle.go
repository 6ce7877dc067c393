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

package stubmodel

// NextResponse implements the §4.3 response-cycling algorithm as a single
// lock-free CAS transition of the packed (index, repeatRemaining) state, so
// concurrent callers against the same stub never observe a torn update.
// It also records the match. Returns the response to serve and its index;
// panics only if called on a stub with zero responses, which the matcher
// must never do (admission rejects empty response lists).
func (s *Stub) NextResponse() (*Response, int) {
	s.recordMatch()
	n := uint32(len(s.Responses))
	for {
		old := s.cycle.Load()
		idx, rem := unpackCycle(old)
		if idx >= n {
			idx = 0
		}
		// rem counts the serves still owed to idx, including this one; 0
		// means idx hasn't been primed for this visit yet.
		if rem == 0 {
			rem = uint32(repeatCount(s.Responses[idx]))
		}
		var next uint64
		if rem > 1 {
			next = packCycle(idx, rem-1)
		} else {
			next = packCycle((idx+1)%n, 0)
		}
		if s.cycle.CompareAndSwap(old, next) {
			return s.Responses[idx], int(idx)
		}
	}
}

func repeatCount(r *Response) int {
	if r.Behaviors != nil && r.Behaviors.Repeat > 0 {
		return r.Behaviors.Repeat
	}
	return 1
}

func packCycle(idx, rem uint32) uint64 {
	return uint64(idx)<<32 | uint64(rem)
}

func unpackCycle(v uint64) (idx, rem uint32) {
	return uint32(v >> 32), uint32(v)
}

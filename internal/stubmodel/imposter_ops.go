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

// NewImposter builds an Imposter with empty, non-nil stub and request-log
// snapshots so readers never observe a nil atomic.Pointer.
func NewImposter(port int, protocol Protocol) *Imposter {
	imp := &Imposter{Port: port, Protocol: protocol}
	empty := []*Stub{}
	imp.Stubs.Store(&empty)
	emptyReqs := []*RecordedRequest{}
	imp.requests.Store(&emptyReqs)
	return imp
}

// SnapshotStubs returns the stub slice active at the moment of the call. The
// caller may hold onto it for the lifetime of a single request; subsequent
// admin mutations publish a new slice and never mutate this one in place.
func (imp *Imposter) SnapshotStubs() []*Stub {
	return *imp.Stubs.Load()
}

// ReplaceStubs atomically publishes a new stub list wholesale.
func (imp *Imposter) ReplaceStubs(stubs []*Stub) {
	imp.Stubs.Store(&stubs)
}

// InsertStub splices a stub into the current snapshot at index (or appends
// if index is out of range/negative), publishing a new slice.
func (imp *Imposter) InsertStub(stub *Stub, index int) {
	cur := imp.SnapshotStubs()
	next := make([]*Stub, 0, len(cur)+1)
	if index < 0 || index > len(cur) {
		index = len(cur)
	}
	next = append(next, cur[:index]...)
	next = append(next, stub)
	next = append(next, cur[index:]...)
	imp.ReplaceStubs(next)
}

// ReplaceStubAt replaces the stub at index, publishing a new slice. Reports
// false if index is out of range.
func (imp *Imposter) ReplaceStubAt(index int, stub *Stub) bool {
	cur := imp.SnapshotStubs()
	if index < 0 || index >= len(cur) {
		return false
	}
	next := make([]*Stub, len(cur))
	copy(next, cur)
	next[index] = stub
	imp.ReplaceStubs(next)
	return true
}

// DeleteStubAt removes the stub at index, publishing a new slice. Reports
// false if index is out of range.
func (imp *Imposter) DeleteStubAt(index int) bool {
	cur := imp.SnapshotStubs()
	if index < 0 || index >= len(cur) {
		return false
	}
	next := make([]*Stub, 0, len(cur)-1)
	next = append(next, cur[:index]...)
	next = append(next, cur[index+1:]...)
	imp.ReplaceStubs(next)
	return true
}

// RecordedRequests returns the recorded-request snapshot.
func (imp *Imposter) RecordedRequests() []*RecordedRequest {
	return *imp.requests.Load()
}

// AppendRequest appends to the request log in wire-acceptance order. It is
// safe for concurrent callers: a compare-and-swap retry loop avoids losing
// concurrent appends under contention.
func (imp *Imposter) AppendRequest(rr *RecordedRequest) {
	for {
		old := imp.requests.Load()
		next := make([]*RecordedRequest, len(*old), len(*old)+1)
		copy(next, *old)
		next = append(next, rr)
		if imp.requests.CompareAndSwap(old, &next) {
			return
		}
	}
}

// ClearRequests empties the request log.
func (imp *Imposter) ClearRequests() {
	empty := []*RecordedRequest{}
	imp.requests.Store(&empty)
}

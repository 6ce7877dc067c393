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

// Package accumulator provides a thread-safe, in-memory counter that
// batches a high-frequency stream of observations before they are
// persisted to a remote store. It trades immediate durability for write
// volume: every observation is a pure in-memory add, and only a Commit
// call (gated by CheckCommit's threshold) touches the backend.
//
// This is the same split the vector-scalar pattern is built on - a stable,
// persisted value plus a volatile in-memory delta - generalized here from
// a resource-availability gauge to a monotonic operation counter: there is
// no "available capacity" to compute, just a checkpointed total and the
// pending delta since the last checkpoint.
package accumulator

import "sync"

// Accumulator tracks a monotonically increasing counter as a checkpointed
// total plus an uncommitted delta. Observe is lock-cheap and never touches
// a remote store; CheckCommit/Commit are how a caller decides when, and
// with what value, to flush.
type Accumulator struct {
	checkpointed int64 // last value durably persisted to the remote store
	pending      int64 // observations made since that checkpoint
	mu           sync.RWMutex
}

// New builds an Accumulator seeded with the last durably-persisted total
// (e.g. read back from the remote store at startup).
func New(checkpointed int64) *Accumulator {
	return &Accumulator{checkpointed: checkpointed}
}

// Observe records n additional operations. Safe for concurrent callers.
func (a *Accumulator) Observe(n int64) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.pending += n
}

// Total returns the best-known total: checkpointed plus whatever has been
// observed but not yet persisted.
func (a *Accumulator) Total() int64 {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.checkpointed + a.pending
}

// State returns the checkpointed and pending components separately, for
// introspection (e.g. the admin API's /config endpoint).
func (a *Accumulator) State() (checkpointed, pending int64) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.checkpointed, a.pending
}

// CheckCommit reports whether the pending delta has reached threshold and,
// if so, the exact value the caller should persist. It does not mutate
// state; only Commit does, after the caller's persist call succeeds.
func (a *Accumulator) CheckCommit(threshold int64) (shouldCommit bool, delta int64) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.pending >= threshold {
		return true, a.pending
	}
	return false, 0
}

// Commit folds a successfully persisted delta into the checkpointed total.
// Callers must pass the exact delta they persisted, not whatever pending
// holds by the time Commit runs - concurrent Observe calls may have added
// more in the meantime, and those must remain pending for the next round.
func (a *Accumulator) Commit(delta int64) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.checkpointed += delta
	a.pending -= delta
}

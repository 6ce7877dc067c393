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

package flowstore

import (
	"context"

	"github.com/riftmock/rift/pkg/accumulator"
)

// CheckpointSink durably persists a backend's cumulative operation count, so
// it survives a Rift process restart (unlike the in-process Prometheus
// counters internal/metrics exposes). It is consulted only for this
// best-effort analytics total, never for flow-store correctness.
type CheckpointSink interface {
	Checkpoint(ctx context.Context, backend string, delta int64) error
}

// CheckpointingStore wraps a remote Store and batches its operation count
// through an accumulator.Accumulator, persisting to sink every flushEvery
// operations instead of once per mutation - the write-behind batching a
// remote backend's round-trip cost makes worth doing. §8's
// linearizable-increment property binds the mutation itself, which this
// decorator never reorders or delays; it only delays *when* the running
// count of those mutations is durably checkpointed elsewhere. The Memory
// backend is never wrapped in this: it has no remote round trip to batch.
type CheckpointingStore struct {
	Store
	backend    string
	sink       CheckpointSink
	acc        *accumulator.Accumulator
	flushEvery int64
}

// NewCheckpointingStore wraps store. startingTotal should be the value a
// prior process last checkpointed (0 if none), read back from sink at
// startup; flushEvery is the number of operations batched per checkpoint.
func NewCheckpointingStore(store Store, backend string, sink CheckpointSink, startingTotal, flushEvery int64) *CheckpointingStore {
	if flushEvery <= 0 {
		flushEvery = 100
	}
	return &CheckpointingStore{
		Store:      store,
		backend:    backend,
		sink:       sink,
		acc:        accumulator.New(startingTotal),
		flushEvery: flushEvery,
	}
}

// Total reports the best-known cumulative operation count: the last
// checkpoint plus whatever has happened since.
func (c *CheckpointingStore) Total() int64 {
	return c.acc.Total()
}

func (c *CheckpointingStore) observe(ctx context.Context) {
	c.acc.Observe(1)
	if should, delta := c.acc.CheckCommit(c.flushEvery); should {
		if err := c.sink.Checkpoint(ctx, c.backend, delta); err == nil {
			c.acc.Commit(delta)
		}
	}
}

func (c *CheckpointingStore) Get(ctx context.Context, flowID, key string) (any, bool, error) {
	v, ok, err := c.Store.Get(ctx, flowID, key)
	c.observe(ctx)
	return v, ok, err
}

func (c *CheckpointingStore) Set(ctx context.Context, flowID, key string, value any) error {
	err := c.Store.Set(ctx, flowID, key, value)
	c.observe(ctx)
	return err
}

func (c *CheckpointingStore) Increment(ctx context.Context, flowID, key string) (int64, error) {
	v, err := c.Store.Increment(ctx, flowID, key)
	c.observe(ctx)
	return v, err
}

func (c *CheckpointingStore) Exists(ctx context.Context, flowID, key string) (bool, error) {
	ok, err := c.Store.Exists(ctx, flowID, key)
	c.observe(ctx)
	return ok, err
}

func (c *CheckpointingStore) Delete(ctx context.Context, flowID, key string) (bool, error) {
	ok, err := c.Store.Delete(ctx, flowID, key)
	c.observe(ctx)
	return ok, err
}

func (c *CheckpointingStore) SetTTL(ctx context.Context, flowID string, ttlSecs int) error {
	err := c.Store.SetTTL(ctx, flowID, ttlSecs)
	c.observe(ctx)
	return err
}

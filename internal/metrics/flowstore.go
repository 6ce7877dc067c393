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

package metrics

import (
	"context"

	"github.com/riftmock/rift/internal/flowstore"
)

// ObservingStore wraps a flowstore.Store and records rift_flow_state_ops_total
// for every call, regardless of which backend (memory/redis/postgres) is
// underneath. It adds no locking of its own: concurrency guarantees come
// entirely from the wrapped Store.
type ObservingStore struct {
	inner flowstore.Store
	rec   *Recorder
}

// NewObservingStore wraps inner so every operation increments the op-labeled
// counter named in §6.5.
func NewObservingStore(inner flowstore.Store, rec *Recorder) *ObservingStore {
	if rec == nil {
		rec = NewRecorder()
	}
	return &ObservingStore{inner: inner, rec: rec}
}

func (s *ObservingStore) Get(ctx context.Context, flowID, key string) (any, bool, error) {
	s.rec.ObserveFlowStateOp("get")
	return s.inner.Get(ctx, flowID, key)
}

func (s *ObservingStore) Set(ctx context.Context, flowID, key string, value any) error {
	s.rec.ObserveFlowStateOp("set")
	return s.inner.Set(ctx, flowID, key, value)
}

func (s *ObservingStore) Increment(ctx context.Context, flowID, key string) (int64, error) {
	s.rec.ObserveFlowStateOp("increment")
	return s.inner.Increment(ctx, flowID, key)
}

func (s *ObservingStore) Exists(ctx context.Context, flowID, key string) (bool, error) {
	s.rec.ObserveFlowStateOp("exists")
	return s.inner.Exists(ctx, flowID, key)
}

func (s *ObservingStore) Delete(ctx context.Context, flowID, key string) (bool, error) {
	s.rec.ObserveFlowStateOp("delete")
	return s.inner.Delete(ctx, flowID, key)
}

func (s *ObservingStore) SetTTL(ctx context.Context, flowID string, ttlSecs int) error {
	s.rec.ObserveFlowStateOp("set_ttl")
	return s.inner.SetTTL(ctx, flowID, ttlSecs)
}

func (s *ObservingStore) Close() error {
	return s.inner.Close()
}

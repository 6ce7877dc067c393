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
	"strings"
	"sync"
	"time"
)

type memEntry struct {
	mu        sync.Mutex
	value     any
	expiresAt time.Time // zero means no expiry
}

func (e *memEntry) expired(now time.Time) bool {
	return !e.expiresAt.IsZero() && now.After(e.expiresAt)
}

// Memory is the in-memory Flow Store backend: a concurrent map with
// lazy-on-read TTL expiry. Writes do not sweep: an expired entry that is
// never read again stays in the map until Sweep runs. Increment is atomic per key
// via the entry's own mutex, so it is linearizable per (flowID, key)
// without taking a store-wide lock.
type Memory struct {
	entries    sync.Map // string -> *memEntry
	defaultTTL time.Duration
}

// NewMemory builds an in-memory store whose Set calls reset TTL to
// defaultTTL (0 means entries never expire unless SetTTL is called).
func NewMemory(defaultTTL time.Duration) *Memory {
	return &Memory{defaultTTL: defaultTTL}
}

func (m *Memory) load(key string) (*memEntry, bool) {
	v, ok := m.entries.Load(key)
	if !ok {
		return nil, false
	}
	e := v.(*memEntry)
	e.mu.Lock()
	expired := e.expired(time.Now())
	e.mu.Unlock()
	if expired {
		m.entries.CompareAndDelete(key, v)
		return nil, false
	}
	return e, true
}

func (m *Memory) Get(_ context.Context, flowID, key string) (any, bool, error) {
	e, ok := m.load(wireKey(flowID, key))
	if !ok {
		return nil, false, nil
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.value, true, nil
}

func (m *Memory) Set(_ context.Context, flowID, key string, value any) error {
	wk := wireKey(flowID, key)
	expiry := time.Time{}
	if m.defaultTTL > 0 {
		expiry = time.Now().Add(m.defaultTTL)
	}
	m.entries.Store(wk, &memEntry{value: value, expiresAt: expiry})
	return nil
}

func (m *Memory) Increment(_ context.Context, flowID, key string) (int64, error) {
	wk := wireKey(flowID, key)
	for {
		existing, ok := m.load(wk)
		if !ok {
			expiry := time.Time{}
			if m.defaultTTL > 0 {
				expiry = time.Now().Add(m.defaultTTL)
			}
			candidate := &memEntry{value: int64(1), expiresAt: expiry}
			actual, loaded := m.entries.LoadOrStore(wk, candidate)
			if !loaded {
				return 1, nil
			}
			existing = actual.(*memEntry)
		}
		existing.mu.Lock()
		if existing.expired(time.Now()) {
			existing.mu.Unlock()
			m.entries.CompareAndDelete(wk, existing)
			continue
		}
		cur, _ := existing.value.(int64)
		cur++
		existing.value = cur
		existing.mu.Unlock()
		return cur, nil
	}
}

func (m *Memory) Exists(ctx context.Context, flowID, key string) (bool, error) {
	_, ok, err := m.Get(ctx, flowID, key)
	return ok, err
}

func (m *Memory) Delete(_ context.Context, flowID, key string) (bool, error) {
	_, existed := m.entries.LoadAndDelete(wireKey(flowID, key))
	return existed, nil
}

// SetTTL updates the expiry of every key sharing flowID's prefix. This is
// an O(n) scan over the map, acceptable for the in-memory backend (the
// remote backends document the same bound via a pattern scan, per §4.8).
func (m *Memory) SetTTL(_ context.Context, flowID string, ttlSecs int) error {
	prefix := "flow:" + flowID + ":"
	expiry := time.Time{}
	if ttlSecs > 0 {
		expiry = time.Now().Add(time.Duration(ttlSecs) * time.Second)
	}
	m.entries.Range(func(k, v any) bool {
		if strings.HasPrefix(k.(string), prefix) {
			e := v.(*memEntry)
			e.mu.Lock()
			e.expiresAt = expiry
			e.mu.Unlock()
		}
		return true
	})
	return nil
}

// Sweep removes expired entries proactively, bounding memory growth between
// reads. It runs only when a caller invokes it; nothing in this module
// schedules it.
func (m *Memory) Sweep() {
	now := time.Now()
	m.entries.Range(func(k, v any) bool {
		e := v.(*memEntry)
		e.mu.Lock()
		expired := e.expired(now)
		e.mu.Unlock()
		if expired {
			m.entries.CompareAndDelete(k, v)
		}
		return true
	})
}

func (m *Memory) Close() error { return nil }

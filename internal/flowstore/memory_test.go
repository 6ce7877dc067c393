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
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestMemoryGetSetRoundTrip(t *testing.T) {
	m := NewMemory(0)
	ctx := context.Background()
	require.NoError(t, m.Set(ctx, "flow1", "status", "pending"))
	v, ok, err := m.Get(ctx, "flow1", "status")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "pending", v)
}

func TestMemoryIncrementCreatesAsOne(t *testing.T) {
	m := NewMemory(0)
	ctx := context.Background()
	v, err := m.Increment(ctx, "flow1", "count")
	require.NoError(t, err)
	require.EqualValues(t, 1, v)
}

func TestMemoryIncrementConcurrentIsLinearizable(t *testing.T) {
	m := NewMemory(0)
	ctx := context.Background()
	const n = 500
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := m.Increment(ctx, "flow1", "count")
			require.NoError(t, err)
		}()
	}
	wg.Wait()
	v, _, err := m.Get(ctx, "flow1", "count")
	require.NoError(t, err)
	require.EqualValues(t, n, v)
}

func TestMemoryExpiryLazyOnRead(t *testing.T) {
	m := NewMemory(10 * time.Millisecond)
	ctx := context.Background()
	require.NoError(t, m.Set(ctx, "flow1", "k", "v"))
	time.Sleep(25 * time.Millisecond)
	_, ok, err := m.Get(ctx, "flow1", "k")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestMemoryDeleteReportsExistence(t *testing.T) {
	m := NewMemory(0)
	ctx := context.Background()
	require.NoError(t, m.Set(ctx, "flow1", "k", "v"))
	existed, err := m.Delete(ctx, "flow1", "k")
	require.NoError(t, err)
	require.True(t, existed)
	existed, err = m.Delete(ctx, "flow1", "k")
	require.NoError(t, err)
	require.False(t, existed)
}

func TestMemorySetTTLAppliesToWholeFlowPrefix(t *testing.T) {
	m := NewMemory(0)
	ctx := context.Background()
	require.NoError(t, m.Set(ctx, "flow1", "a", 1))
	require.NoError(t, m.Set(ctx, "flow1", "b", 2))
	require.NoError(t, m.Set(ctx, "flow2", "a", 3))

	require.NoError(t, m.SetTTL(ctx, "flow1", 0)) // 0 means never expire, but exercise the path
	m.entries.Range(func(k, v any) bool { return true })

	require.NoError(t, m.SetTTL(ctx, "flow1", -0)) // no-op guard

	require.NoError(t, m.SetTTL(ctx, "flow1", 60))
	for _, k := range []string{"a", "b"} {
		v, loaded := m.entries.Load(wireKey("flow1", k))
		require.True(t, loaded)
		require.False(t, v.(*memEntry).expiresAt.IsZero(), "every flow1 key carries the new TTL")
	}
	other, _ := m.entries.Load(wireKey("flow2", "a"))
	require.True(t, other.(*memEntry).expiresAt.IsZero(), "flow2 keeps no expiry")

	_, ok, _ := m.Get(ctx, "flow2", "a")
	require.True(t, ok, "flow2 unaffected by flow1's SetTTL")
}

func TestMemorySweepRemovesExpiredEntries(t *testing.T) {
	m := NewMemory(5 * time.Millisecond)
	ctx := context.Background()
	require.NoError(t, m.Set(ctx, "flow1", "k", "v"))
	time.Sleep(20 * time.Millisecond)
	m.Sweep()
	_, loaded := m.entries.Load(wireKey("flow1", "k"))
	require.False(t, loaded)
}

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

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNextResponseRoundRobinNoRepeat(t *testing.T) {
	s := &Stub{Responses: []*Response{
		{Kind: IsKind, Is: &IsResponse{StatusCode: 200}},
		{Kind: IsKind, Is: &IsResponse{StatusCode: 201}},
	}}
	var got []int
	for i := 0; i < 4; i++ {
		_, idx := s.NextResponse()
		got = append(got, idx)
	}
	require.Equal(t, []int{0, 1, 0, 1}, got)
	require.EqualValues(t, 4, s.MatchCount())
}

func TestNextResponseHonorsRepeat(t *testing.T) {
	s := &Stub{Responses: []*Response{
		{Kind: IsKind, Is: &IsResponse{StatusCode: 200}, Behaviors: &Behaviors{Repeat: 3}},
		{Kind: IsKind, Is: &IsResponse{StatusCode: 201}},
	}}
	var codes []int
	for i := 0; i < 5; i++ {
		r, _ := s.NextResponse()
		codes = append(codes, r.Is.StatusCode)
	}
	require.Equal(t, []int{200, 200, 200, 201, 200}, codes)
}

func TestNextResponseConcurrentDistributionBalanced(t *testing.T) {
	s := &Stub{Responses: []*Response{
		{Kind: IsKind, Is: &IsResponse{StatusCode: 200}},
		{Kind: IsKind, Is: &IsResponse{StatusCode: 201}},
		{Kind: IsKind, Is: &IsResponse{StatusCode: 202}},
	}}
	const k = 300
	counts := make([]int, 3)
	var mu sync.Mutex
	var wg sync.WaitGroup
	for i := 0; i < k; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, idx := s.NextResponse()
			mu.Lock()
			counts[idx]++
			mu.Unlock()
		}()
	}
	wg.Wait()
	require.EqualValues(t, k, s.MatchCount())
	total := counts[0] + counts[1] + counts[2]
	require.Equal(t, k, total)
	for _, c := range counts {
		require.InDelta(t, k/3, c, float64(k)/3) // no index starved or dominant
	}
}

func TestImposterStubSnapshotIsolation(t *testing.T) {
	imp := NewImposter(0, HTTP)
	s1 := &Stub{Responses: []*Response{{Kind: IsKind, Is: &IsResponse{StatusCode: 200}}}}
	imp.ReplaceStubs([]*Stub{s1})

	snapshot := imp.SnapshotStubs()
	require.Len(t, snapshot, 1)

	s2 := &Stub{Responses: []*Response{{Kind: IsKind, Is: &IsResponse{StatusCode: 201}}}}
	imp.InsertStub(s2, 0)

	require.Len(t, snapshot, 1, "previously taken snapshot must not observe the mutation")
	require.Len(t, imp.SnapshotStubs(), 2)
}

func TestAppendRequestConcurrentNoLoss(t *testing.T) {
	imp := NewImposter(0, HTTP)
	const n = 200
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			imp.AppendRequest(&RecordedRequest{MatchedStub: -1})
		}()
	}
	wg.Wait()
	require.Len(t, imp.RecordedRequests(), n)
}

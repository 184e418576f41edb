/*
 * Copyright 2026 LinePulse Systems, Inc.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package prodctx

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/linepulse/linepulse/pkg/logger"
	"github.com/linepulse/linepulse/pkg/models"
)

var errSchedulerDown = errors.New("scheduler unavailable")

type fakeSource struct {
	mu      sync.Mutex
	fetches atomic.Int64
	err     error
	pctx    models.ProductionContext
	block   chan struct{} // when set, FetchContext waits for it to close
}

func (s *fakeSource) FetchContext(_ context.Context, equipmentID string) (models.ProductionContext, error) {
	s.fetches.Add(1)

	s.mu.Lock()
	block := s.block
	err := s.err
	pctx := s.pctx
	s.mu.Unlock()

	if block != nil {
		<-block
	}

	if err != nil {
		return models.ProductionContext{}, err
	}

	pctx.EquipmentID = equipmentID

	return pctx, nil
}

func (s *fakeSource) setError(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.err = err
}

func newTestCache(source *fakeSource) (*Cache, *time.Time) {
	c := NewCache(source, 45*time.Second, 10*time.Minute, logger.NewTestLogger())

	now := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)
	c.SetNowFunc(func() time.Time { return now })

	return c, &now
}

func TestCacheServesFreshValueWithoutRefetch(t *testing.T) {
	source := &fakeSource{pctx: models.ProductionContext{JobID: "job-42", TargetSpeed: 100}}
	cache, now := newTestCache(source)

	ctx := context.Background()

	pctx, degraded := cache.Get(ctx, "press-01")
	require.False(t, degraded)
	assert.Equal(t, "job-42", pctx.JobID)
	assert.Equal(t, int64(1), source.fetches.Load())

	*now = now.Add(30 * time.Second)

	pctx, degraded = cache.Get(ctx, "press-01")
	assert.False(t, degraded)
	assert.Equal(t, "job-42", pctx.JobID)
	assert.Equal(t, int64(1), source.fetches.Load())
}

func TestCacheRefreshesExpiredEntry(t *testing.T) {
	source := &fakeSource{pctx: models.ProductionContext{JobID: "job-42"}}
	cache, now := newTestCache(source)

	ctx := context.Background()

	cache.Get(ctx, "press-01")

	*now = now.Add(time.Minute)

	source.mu.Lock()
	source.pctx.JobID = "job-43"
	source.mu.Unlock()

	pctx, degraded := cache.Get(ctx, "press-01")
	assert.False(t, degraded)
	assert.Equal(t, "job-43", pctx.JobID)
	assert.Equal(t, int64(2), source.fetches.Load())
}

func TestCacheFailureServesStaleValue(t *testing.T) {
	source := &fakeSource{pctx: models.ProductionContext{JobID: "job-42"}}
	cache, now := newTestCache(source)

	ctx := context.Background()

	cache.Get(ctx, "press-01")

	*now = now.Add(time.Minute)
	source.setError(errSchedulerDown)

	pctx, degraded := cache.Get(ctx, "press-01")
	assert.False(t, degraded)
	assert.Equal(t, "job-42", pctx.JobID)
	assert.True(t, pctx.Stale)
}

func TestCacheFailureWithoutPriorIsNeutral(t *testing.T) {
	source := &fakeSource{err: errSchedulerDown}
	cache, _ := newTestCache(source)

	pctx, degraded := cache.Get(context.Background(), "press-01")
	assert.True(t, degraded)
	assert.False(t, pctx.Known())
	assert.True(t, pctx.Stale)
}

func TestCacheHardCeilingDegradesToNeutral(t *testing.T) {
	source := &fakeSource{pctx: models.ProductionContext{JobID: "job-42"}}
	cache, now := newTestCache(source)

	ctx := context.Background()

	cache.Get(ctx, "press-01")

	source.setError(errSchedulerDown)

	// Past the hard ceiling even the stale value is unusable.
	*now = now.Add(11 * time.Minute)

	pctx, degraded := cache.Get(ctx, "press-01")
	assert.True(t, degraded)
	assert.False(t, pctx.Known())
}

func TestCacheInvalidateForcesRefetch(t *testing.T) {
	source := &fakeSource{pctx: models.ProductionContext{JobID: "job-42"}}
	cache, _ := newTestCache(source)

	ctx := context.Background()

	cache.Get(ctx, "press-01")
	cache.Invalidate("press-01")
	cache.Get(ctx, "press-01")

	assert.Equal(t, int64(2), source.fetches.Load())
}

func TestCacheSingleFlightRefresh(t *testing.T) {
	block := make(chan struct{})
	source := &fakeSource{
		pctx:  models.ProductionContext{JobID: "job-42"},
		block: block,
	}
	cache, _ := newTestCache(source)

	ctx := context.Background()

	var wg sync.WaitGroup

	for i := 0; i < 100; i++ {
		wg.Add(1)

		go func() {
			defer wg.Done()

			_, _ = cache.Get(ctx, "press-01")
		}()
	}

	// Give the pack time to pile up behind the in-flight fetch, then let it
	// finish.
	time.Sleep(50 * time.Millisecond)
	close(block)
	wg.Wait()

	assert.Equal(t, int64(1), source.fetches.Load())

	source.mu.Lock()
	source.block = nil
	source.mu.Unlock()
}

func TestCacheKeysAreIndependent(t *testing.T) {
	source := &fakeSource{pctx: models.ProductionContext{JobID: "job-42"}}
	cache, _ := newTestCache(source)

	ctx := context.Background()

	a, _ := cache.Get(ctx, "press-01")
	b, _ := cache.Get(ctx, "press-02")

	assert.Equal(t, "press-01", a.EquipmentID)
	assert.Equal(t, "press-02", b.EquipmentID)
	assert.Equal(t, int64(2), source.fetches.Load())
}

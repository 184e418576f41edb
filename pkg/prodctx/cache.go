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

// Package prodctx caches per-equipment production context (assigned job,
// schedule, target metrics) with a short TTL and single-flight refresh.
package prodctx

import (
	"context"
	"sync"
	"time"

	"github.com/linepulse/linepulse/pkg/logger"
	"github.com/linepulse/linepulse/pkg/models"
	"golang.org/x/sync/singleflight"
)

const (
	defaultTTL         = 45 * time.Second
	defaultHardCeiling = 10 * time.Minute
)

// Source fetches production context from the external scheduling store.
type Source interface {
	FetchContext(ctx context.Context, equipmentID string) (models.ProductionContext, error)
}

type entry struct {
	pctx       models.ProductionContext
	fetchedAt  time.Time
	refreshing bool
}

// Cache is a TTL cache over a context Source. Expired entries are refreshed
// by exactly one caller per key; concurrent callers are served the prior
// value while the refresh is in flight. Refresh failures degrade to the
// last-known value marked stale; values older than the hard ceiling degrade
// further to a neutral context and report a degraded-context condition.
type Cache struct {
	source      Source
	ttl         time.Duration
	hardCeiling time.Duration
	nowFn       func() time.Time

	mu      sync.Mutex
	entries map[string]*entry
	group   singleflight.Group
	logger  logger.Logger
}

// NewCache creates a context cache. Zero ttl/hardCeiling use the defaults.
func NewCache(source Source, ttl, hardCeiling time.Duration, log logger.Logger) *Cache {
	if ttl <= 0 {
		ttl = defaultTTL
	}

	if hardCeiling <= 0 {
		hardCeiling = defaultHardCeiling
	}

	c := &Cache{
		source:      source,
		ttl:         ttl,
		hardCeiling: hardCeiling,
		nowFn:       time.Now,
		entries:     make(map[string]*entry),
		logger:      log,
	}

	return c
}

// Get returns the production context for equipmentID. The boolean reports a
// degraded context: the value is neutral or staler than the hard ceiling and
// the caller should flag the condition to the event engine.
func (c *Cache) Get(ctx context.Context, equipmentID string) (models.ProductionContext, bool) {
	now := c.nowFn()

	c.mu.Lock()

	e, ok := c.entries[equipmentID]
	if ok && !e.pctx.Stale && now.Sub(e.fetchedAt) < c.ttl {
		pctx := e.pctx
		c.mu.Unlock()

		return pctx, false
	}

	// Serve the prior value to callers that arrive while another caller is
	// already refreshing this key.
	if ok && e.refreshing {
		pctx := e.pctx
		fetchedAt := e.fetchedAt
		c.mu.Unlock()

		return c.degradeIfNeeded(equipmentID, pctx, fetchedAt, now)
	}

	if e == nil {
		e = &entry{}
		c.entries[equipmentID] = e
	}

	e.refreshing = true
	hadPrior := ok

	c.mu.Unlock()

	return c.refresh(ctx, equipmentID, hadPrior, now)
}

// refresh performs the single-flight fetch for equipmentID and updates the entry.
func (c *Cache) refresh(ctx context.Context, equipmentID string, hadPrior bool, now time.Time) (models.ProductionContext, bool) {
	v, err, _ := c.group.Do(equipmentID, func() (interface{}, error) {
		pctx, err := c.source.FetchContext(ctx, equipmentID)

		c.mu.Lock()
		defer c.mu.Unlock()

		e := c.entries[equipmentID]
		e.refreshing = false

		if err != nil {
			// Keep the last-known value, marked stale.
			e.pctx.Stale = true
			return e.pctx, err
		}

		pctx.Stale = false
		e.pctx = pctx
		e.fetchedAt = now

		return pctx, nil
	})

	pctx, _ := v.(models.ProductionContext)

	if err != nil {
		c.logger.Warn().
			Err(err).
			Str("equipment_id", equipmentID).
			Msg("Context refresh failed, serving stale value")

		if !hadPrior {
			return models.NeutralContext(equipmentID, now), true
		}

		c.mu.Lock()
		fetchedAt := c.entries[equipmentID].fetchedAt
		c.mu.Unlock()

		return c.degradeIfNeeded(equipmentID, pctx, fetchedAt, now)
	}

	return pctx, false
}

// degradeIfNeeded replaces values older than the hard ceiling with a neutral
// context and reports the degraded condition.
func (c *Cache) degradeIfNeeded(
	equipmentID string, pctx models.ProductionContext, fetchedAt time.Time, now time.Time) (models.ProductionContext, bool) {
	if fetchedAt.IsZero() || now.Sub(fetchedAt) > c.hardCeiling {
		c.logger.Warn().
			Str("equipment_id", equipmentID).
			Time("fetched_at", fetchedAt).
			Msg("Context staler than hard ceiling, using neutral targets")

		return models.NeutralContext(equipmentID, now), true
	}

	return pctx, false
}

// Invalidate forces the next Get for equipmentID to refresh.
func (c *Cache) Invalidate(equipmentID string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if e, ok := c.entries[equipmentID]; ok {
		e.fetchedAt = time.Time{}
		e.pctx.Stale = true
	}
}

// SetNowFunc overrides the clock, for tests.
func (c *Cache) SetNowFunc(fn func() time.Time) {
	c.nowFn = fn
}

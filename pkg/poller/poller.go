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

// Package poller drives the periodic acquisition cycle: read every equipment
// unit's registers, derive metrics and downtime state, and hand the results
// to the alerting engine and broadcast queue.
package poller

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/linepulse/linepulse/pkg/alerting"
	"github.com/linepulse/linepulse/pkg/broadcast"
	"github.com/linepulse/linepulse/pkg/device"
	"github.com/linepulse/linepulse/pkg/downtime"
	"github.com/linepulse/linepulse/pkg/logger"
	"github.com/linepulse/linepulse/pkg/models"
	"github.com/linepulse/linepulse/pkg/oee"
	"github.com/linepulse/linepulse/pkg/prodctx"
)

// Dependencies bundles the collaborators one Poller drives each cycle.
type Dependencies struct {
	Driver   device.Driver
	Retrier  *device.Retrier
	Contexts *prodctx.Cache
	Detector *downtime.Detector
	Tracker  *oee.ShiftTracker
	Alerts   *alerting.Engine
	Queue    *broadcast.Queue
}

type counterState struct {
	good  int64
	total int64
	valid bool
}

// Poller polls the configured fleet on a fixed interval. Equipment units are
// polled concurrently within a cycle; a cycle that overruns the interval
// causes the next tick to be skipped rather than stacking work.
type Poller struct {
	config Config
	deps   Dependencies
	clock  Clock
	ticker Ticker
	logger logger.Logger

	done      chan struct{}
	closeOnce sync.Once
	wg        sync.WaitGroup
	inFlight  atomic.Bool

	mu         sync.Mutex
	handles    map[string]device.Handle
	lastCounts map[string]counterState
	lastJobs   map[string]string
}

// New creates a poller instance.
func New(config *Config, deps Dependencies, clock Clock, log logger.Logger) *Poller {
	if clock == nil {
		clock = realClock{}
	}

	if deps.Retrier == nil {
		deps.Retrier = device.NewRetrier(0, 0, 0)
	}

	return &Poller{
		config:     *config,
		deps:       deps,
		clock:      clock,
		logger:     log,
		done:       make(chan struct{}),
		handles:    make(map[string]device.Handle),
		lastCounts: make(map[string]counterState),
		lastJobs:   make(map[string]string),
	}
}

// Start implements lifecycle.Service.
func (p *Poller) Start(ctx context.Context) error {
	interval := time.Duration(p.config.PollInterval)
	p.ticker = p.clock.Ticker(interval)

	p.logger.Info().
		Dur("interval", interval).
		Int("equipment", len(p.config.Equipment)).
		Msg("Starting poller")

	p.wg.Add(1)

	go p.run(ctx)

	return nil
}

func (p *Poller) run(ctx context.Context) {
	defer p.wg.Done()
	defer p.ticker.Stop()

	p.poll(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-p.done:
			return
		case <-p.ticker.Chan():
			p.poll(ctx)
		}
	}
}

// Stop implements lifecycle.Service.
func (p *Poller) Stop(_ context.Context) error {
	p.closeOnce.Do(func() {
		close(p.done)
	})

	p.wg.Wait()

	p.mu.Lock()
	defer p.mu.Unlock()

	for id, h := range p.handles {
		if err := h.Close(); err != nil {
			p.logger.Error().
				Err(err).
				Str("equipment_id", id).
				Msg("Error closing device handle")
		}
	}

	p.handles = make(map[string]device.Handle)

	return nil
}

// poll runs one acquisition cycle. When the previous cycle is still running
// the tick is skipped so slow devices cannot stack up goroutines.
func (p *Poller) poll(ctx context.Context) {
	if !p.inFlight.CompareAndSwap(false, true) {
		p.logger.Warn().Msg("Previous poll cycle still running, skipping tick")
		return
	}

	at := p.clock.Now()

	p.wg.Add(1)

	go func() {
		defer p.wg.Done()
		defer p.inFlight.Store(false)

		var cycleWg sync.WaitGroup

		for _, eq := range p.config.Equipment {
			eq := eq
			cycleWg.Add(1)

			go func() {
				defer cycleWg.Done()
				defer p.recoverPanic(eq.ID)

				p.pollEquipment(ctx, eq, at)
			}()
		}

		cycleWg.Wait()
	}()
}

// recoverPanic keeps one misbehaving equipment pipeline from taking the
// whole cycle down.
func (p *Poller) recoverPanic(equipmentID string) {
	if r := recover(); r != nil {
		p.logger.Error().
			Str("equipment_id", equipmentID).
			Interface("panic", r).
			Msg("Recovered from panic in equipment pipeline")
	}
}

// handle returns the open device handle for eq, connecting on first use or
// after a previous failure dropped it.
func (p *Poller) handle(ctx context.Context, eq *models.Equipment) (device.Handle, error) {
	p.mu.Lock()
	h, ok := p.handles[eq.ID]
	p.mu.Unlock()

	if ok {
		return h, nil
	}

	h, err := p.deps.Driver.Connect(ctx, eq)
	if err != nil {
		return nil, err
	}

	p.mu.Lock()
	p.handles[eq.ID] = h
	p.mu.Unlock()

	return h, nil
}

// dropHandle closes and forgets a handle after a read failure so the next
// cycle reconnects from scratch.
func (p *Poller) dropHandle(equipmentID string) {
	p.mu.Lock()
	h, ok := p.handles[equipmentID]
	delete(p.handles, equipmentID)
	p.mu.Unlock()

	if ok {
		_ = h.Close()
	}
}

// counterDeltas converts absolute good/total counter readings into deltas,
// treating a backwards jump as a counter reset.
func (p *Poller) counterDeltas(equipmentID string, good, total int64) (goodDelta, totalDelta int64) {
	p.mu.Lock()
	defer p.mu.Unlock()

	last := p.lastCounts[equipmentID]

	if last.valid {
		goodDelta = good - last.good
		if goodDelta < 0 {
			goodDelta = good
		}

		totalDelta = total - last.total
		if totalDelta < 0 {
			totalDelta = total
		}
	}

	p.lastCounts[equipmentID] = counterState{good: good, total: total, valid: true}

	return goodDelta, totalDelta
}

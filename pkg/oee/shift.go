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

package oee

import (
	"sync"
	"time"

	"github.com/linepulse/linepulse/pkg/models"
)

type shiftState struct {
	lastAt      time.Time
	lastRunning bool
	lastPenalty bool // previous interval counted against availability when down
	usage       WindowUsage
}

// ShiftTracker accumulates per-equipment running time, unplanned downtime and
// produced counts over the current shift window. Fed one snapshot per cycle.
type ShiftTracker struct {
	mu     sync.Mutex
	states map[string]*shiftState
}

// NewShiftTracker creates an empty tracker.
func NewShiftTracker() *ShiftTracker {
	return &ShiftTracker{states: make(map[string]*shiftState)}
}

// Record folds one snapshot into the equipment's window and returns the
// updated usage. downCategory is the category of the currently open downtime
// event, or empty when the equipment is running; only unplanned (and not yet
// classified) downtime counts against availability.
func (t *ShiftTracker) Record(snap models.TelemetrySnapshot, downCategory models.DowntimeCategory) WindowUsage {
	t.mu.Lock()
	defer t.mu.Unlock()

	s, ok := t.states[snap.EquipmentID]
	if !ok {
		s = &shiftState{}
		t.states[snap.EquipmentID] = s
	}

	if !s.lastAt.IsZero() && snap.CapturedAt.After(s.lastAt) {
		elapsed := snap.CapturedAt.Sub(s.lastAt)

		switch {
		case s.lastRunning:
			s.usage.Running += elapsed
		case s.lastPenalty:
			s.usage.UnplannedDown += elapsed
		}
	}

	s.lastAt = snap.CapturedAt
	s.lastRunning = snap.Running
	s.lastPenalty = !snap.Running &&
		(downCategory == models.DowntimeUnplanned || downCategory == models.DowntimeUnclassified)

	if snap.GoodDelta > 0 {
		s.usage.GoodCount += snap.GoodDelta
	}

	if snap.TotalDelta > 0 {
		s.usage.TotalCount += snap.TotalDelta
	}

	return s.usage
}

// Reset clears the accumulated window for one equipment unit, typically at a
// shift boundary or context change.
func (t *ShiftTracker) Reset(equipmentID string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	delete(t.states, equipmentID)
}

// Usage returns the current accumulated window for one equipment unit.
func (t *ShiftTracker) Usage(equipmentID string) WindowUsage {
	t.mu.Lock()
	defer t.mu.Unlock()

	if s, ok := t.states[equipmentID]; ok {
		return s.usage
	}

	return WindowUsage{}
}

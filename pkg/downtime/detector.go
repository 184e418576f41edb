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

// Package downtime detects downtime onset and resolution per equipment and
// maintains the open-event lifecycle. At most one DowntimeEvent is open per
// equipment at any time.
package downtime

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/linepulse/linepulse/pkg/logger"
	"github.com/linepulse/linepulse/pkg/models"
)

const defaultAlertThreshold = 5 * time.Minute

// Transition reports what one Observe call changed. All event pointers are
// copies; callers may retain them freely.
type Transition struct {
	Opened           *models.DowntimeEvent
	Closed           *models.DowntimeEvent
	Recategorized    *models.DowntimeEvent
	ThresholdCrossed *models.DowntimeEvent
}

type equipmentState struct {
	mu   sync.Mutex
	open *models.DowntimeEvent
}

// Detector is the per-equipment Running/Down state machine. Each equipment
// unit's state is guarded by its own lock so overlapping poll work for
// different equipment never contends.
type Detector struct {
	defaultThreshold time.Duration
	logger           logger.Logger

	mu     sync.Mutex
	states map[string]*equipmentState
}

// NewDetector creates a Detector. A zero threshold uses the 5 minute default.
func NewDetector(alertThreshold time.Duration, log logger.Logger) *Detector {
	if alertThreshold <= 0 {
		alertThreshold = defaultAlertThreshold
	}

	return &Detector{
		defaultThreshold: alertThreshold,
		logger:           log,
		states:           make(map[string]*equipmentState),
	}
}

func (d *Detector) state(equipmentID string) *equipmentState {
	d.mu.Lock()
	defer d.mu.Unlock()

	s, ok := d.states[equipmentID]
	if !ok {
		s = &equipmentState{}
		d.states[equipmentID] = s
	}

	return s
}

// Observe feeds one snapshot through the state machine and returns any
// transitions it caused.
func (d *Detector) Observe(eq *models.Equipment, snap models.TelemetrySnapshot, pctx models.ProductionContext) Transition {
	s := d.state(eq.ID)

	s.mu.Lock()
	defer s.mu.Unlock()

	var tr Transition

	switch {
	case !snap.Running && s.open == nil:
		ev := &models.DowntimeEvent{
			ID:          uuid.New().String(),
			EquipmentID: eq.ID,
			StartTime:   snap.CapturedAt,
			Category:    models.DowntimeUnclassified,
		}

		categorize(ev, eq, snap, pctx)

		s.open = ev
		tr.Opened = copyEvent(ev)

		d.logger.Info().
			Str("equipment_id", eq.ID).
			Str("event_id", ev.ID).
			Str("category", string(ev.Category)).
			Msg("Downtime event opened")

	case !snap.Running && s.open != nil:
		// Still down. Re-categorize unclassified/unknown events once fault
		// bits or a changeover context show up later.
		if recategorize(s.open, eq, snap, pctx) {
			tr.Recategorized = copyEvent(s.open)

			d.logger.Info().
				Str("equipment_id", eq.ID).
				Str("event_id", s.open.ID).
				Str("category", string(s.open.Category)).
				Str("reason", s.open.ReasonCode).
				Msg("Downtime event recategorized")
		}

	case snap.Running && s.open != nil:
		end := snap.CapturedAt
		s.open.EndTime = &end
		tr.Closed = copyEvent(s.open)
		s.open = nil

		d.logger.Info().
			Str("equipment_id", eq.ID).
			Str("event_id", tr.Closed.ID).
			Dur("duration", tr.Closed.ElapsedAt(end)).
			Msg("Downtime event closed")
	}

	// The trigger flag lives on the event, not re-derived each cycle, so the
	// alert fires at most once per event.
	if s.open != nil && !s.open.AlertTriggered {
		threshold := time.Duration(eq.DowntimeAlertThreshold)
		if threshold <= 0 {
			threshold = d.defaultThreshold
		}

		if s.open.ElapsedAt(snap.CapturedAt) >= threshold {
			s.open.AlertTriggered = true
			tr.ThresholdCrossed = copyEvent(s.open)
		}
	}

	return tr
}

// OpenEvent returns a copy of the currently open event for equipmentID, or nil.
func (d *Detector) OpenEvent(equipmentID string) *models.DowntimeEvent {
	s := d.state(equipmentID)

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.open == nil {
		return nil
	}

	return copyEvent(s.open)
}

// OpenCategory returns the category of the open event for equipmentID, or
// empty when the equipment is running.
func (d *Detector) OpenCategory(equipmentID string) models.DowntimeCategory {
	s := d.state(equipmentID)

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.open == nil {
		return ""
	}

	return s.open.Category
}

// categorize assigns category and reason to a newly opened event.
// Fault bits win; then scheduled changeover; then a declared maintenance
// window; otherwise the downtime is unplanned with an unknown reason.
func categorize(ev *models.DowntimeEvent, eq *models.Equipment, snap models.TelemetrySnapshot, pctx models.ProductionContext) {
	switch {
	case snap.FaultBits != 0:
		ev.Category = models.DowntimeUnplanned
		ev.ReasonCode = eq.FaultReason(snap.FaultBits)
	case pctx.Changeover:
		ev.Category = models.DowntimeChangeover
		ev.ReasonCode = "changeover"
	case eq.InMaintenanceWindow(snap.CapturedAt):
		ev.Category = models.DowntimePlanned
		ev.ReasonCode = "maintenance"
	default:
		ev.Category = models.DowntimeUnplanned
		ev.ReasonCode = "unknown"
	}
}

// recategorize upgrades an open event when a more specific reason appears.
func recategorize(ev *models.DowntimeEvent, eq *models.Equipment, snap models.TelemetrySnapshot, pctx models.ProductionContext) bool {
	if snap.FaultBits != 0 {
		reason := eq.FaultReason(snap.FaultBits)

		if ev.Category != models.DowntimeUnplanned || (ev.ReasonCode == "unknown" && reason != "unknown") {
			ev.Category = models.DowntimeUnplanned
			ev.ReasonCode = reason

			return true
		}

		return false
	}

	if ev.Category == models.DowntimeUnplanned && ev.ReasonCode == "unknown" && pctx.Changeover {
		ev.Category = models.DowntimeChangeover
		ev.ReasonCode = "changeover"

		return true
	}

	return false
}

func copyEvent(ev *models.DowntimeEvent) *models.DowntimeEvent {
	cp := *ev

	if ev.EndTime != nil {
		end := *ev.EndTime
		cp.EndTime = &end
	}

	return &cp
}

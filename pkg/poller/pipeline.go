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

package poller

import (
	"context"
	"fmt"
	"time"

	"github.com/linepulse/linepulse/pkg/alerting"
	"github.com/linepulse/linepulse/pkg/broadcast"
	"github.com/linepulse/linepulse/pkg/device"
	"github.com/linepulse/linepulse/pkg/downtime"
	"github.com/linepulse/linepulse/pkg/models"
	"github.com/linepulse/linepulse/pkg/oee"
)

// pollRegisters is the fixed read set for every cycle.
var pollRegisters = []string{
	models.RegisterRunStatus,
	models.RegisterSpeed,
	models.RegisterFaultBits,
	models.RegisterGoodCount,
	models.RegisterTotalCount,
}

// pollEquipment runs the full pipeline for one equipment unit: read
// registers, build the snapshot, update downtime state, compute metrics,
// raise conditions and enqueue broadcast updates. Failures are contained to
// this equipment; prior state is left untouched for the next cycle.
func (p *Poller) pollEquipment(ctx context.Context, eq *models.Equipment, at time.Time) {
	values, err := p.readRegisters(ctx, eq)
	if err != nil {
		p.dropHandle(eq.ID)

		if device.IsUnreachable(err) {
			p.logger.Warn().
				Err(err).
				Str("equipment_id", eq.ID).
				Msg("Equipment unreachable, skipping cycle")
		} else {
			p.logger.Error().
				Err(err).
				Str("equipment_id", eq.ID).
				Msg("Device read failed, skipping cycle")
		}

		return
	}

	snap := p.buildSnapshot(eq, values, at)

	pctx, degraded := p.deps.Contexts.Get(ctx, eq.ID)
	p.trackJobChange(eq.ID, pctx)

	tr := p.deps.Detector.Observe(eq, snap, pctx)
	usage := p.deps.Tracker.Record(snap, p.deps.Detector.OpenCategory(eq.ID))
	metrics := oee.Transform(snap, pctx, usage)

	p.enqueueMetrics(eq, metrics)
	p.enqueueDowntime(eq, tr)

	p.raiseConditions(ctx, eq, snap, metrics, tr, usage.TotalCount, degraded)

	if tr.Closed != nil {
		p.resolveCleared(ctx, eq)
	}
}

// trackJobChange resets the equipment's shift window when the assigned job
// or schedule changes, so one job's counts never bleed into the next.
// Unknown contexts keep the current window; a job handoff is only observed
// when the new assignment arrives.
func (p *Poller) trackJobChange(equipmentID string, pctx models.ProductionContext) {
	if !pctx.Known() {
		return
	}

	assignment := pctx.JobID + "|" + pctx.ScheduleID

	p.mu.Lock()
	prev, seen := p.lastJobs[equipmentID]
	p.lastJobs[equipmentID] = assignment
	p.mu.Unlock()

	if !seen || prev == assignment {
		return
	}

	p.logger.Info().
		Str("equipment_id", equipmentID).
		Str("job_id", pctx.JobID).
		Msg("Job changed, resetting shift window")

	p.deps.Tracker.Reset(equipmentID)
}

// readRegisters reads the well-known register set with retry and a per-read
// timeout.
func (p *Poller) readRegisters(ctx context.Context, eq *models.Equipment) (map[string]float64, error) {
	var values map[string]float64

	err := p.deps.Retrier.Do(ctx, eq.ID, func(ctx context.Context) error {
		h, err := p.handle(ctx, eq)
		if err != nil {
			return err
		}

		readCtx, cancel := context.WithTimeout(ctx, time.Duration(p.config.DeviceTimeout))
		defer cancel()

		v, err := h.ReadBatch(readCtx, pollRegisters)
		if err != nil {
			return err
		}

		values = v

		return nil
	})
	if err != nil {
		return nil, err
	}

	return values, nil
}

// buildSnapshot converts raw register values into the immutable cycle snapshot.
func (p *Poller) buildSnapshot(eq *models.Equipment, values map[string]float64, at time.Time) models.TelemetrySnapshot {
	speed := values[models.RegisterSpeed]
	if eq.Device.SpeedScale > 0 {
		speed /= eq.Device.SpeedScale
	}

	goodDelta, totalDelta := p.counterDeltas(eq.ID,
		int64(values[models.RegisterGoodCount]),
		int64(values[models.RegisterTotalCount]))

	return models.TelemetrySnapshot{
		EquipmentID: eq.ID,
		CapturedAt:  at,
		Running:     values[models.RegisterRunStatus] != 0,
		Speed:       speed,
		FaultBits:   uint32(values[models.RegisterFaultBits]),
		GoodDelta:   goodDelta,
		TotalDelta:  totalDelta,
	}
}

func (p *Poller) enqueueMetrics(eq *models.Equipment, metrics models.MetricsResult) {
	p.deps.Queue.Enqueue(broadcast.Update{
		Kind:        broadcast.KindMetrics,
		EquipmentID: eq.ID,
		LineID:      eq.LineID,
		At:          metrics.ComputedAt,
		Metrics:     &metrics,
	})
}

func (p *Poller) enqueueDowntime(eq *models.Equipment, tr downtime.Transition) {
	for _, ev := range []*models.DowntimeEvent{tr.Opened, tr.Recategorized, tr.Closed} {
		if ev == nil {
			continue
		}

		at := ev.StartTime
		if ev.EndTime != nil {
			at = *ev.EndTime
		}

		p.deps.Queue.Enqueue(broadcast.Update{
			Kind:        broadcast.KindDowntime,
			EquipmentID: eq.ID,
			LineID:      eq.LineID,
			Category:    string(ev.Category),
			At:          at,
			Downtime:    ev,
		})
	}
}

// raiseConditions gathers this cycle's abnormal conditions and raises at
// most one alert, the highest-precedence condition winning.
func (p *Poller) raiseConditions(
	ctx context.Context,
	eq *models.Equipment,
	snap models.TelemetrySnapshot,
	metrics models.MetricsResult,
	tr downtime.Transition,
	totalCount int64,
	degradedContext bool,
) {
	var conds []alerting.Condition

	if snap.FaultBits != 0 {
		conds = append(conds, alerting.Condition{
			EquipmentID: eq.ID,
			LineID:      eq.LineID,
			Category:    models.AlertEquipmentFault,
			Message:     fmt.Sprintf("%s reported fault: %s", eq.Name, eq.FaultReason(snap.FaultBits)),
		})
	}

	if tr.ThresholdCrossed != nil {
		conds = append(conds, alerting.Condition{
			EquipmentID: eq.ID,
			LineID:      eq.LineID,
			Category:    models.AlertDowntime,
			Message: fmt.Sprintf("%s down for over %s (%s)",
				eq.Name,
				tr.ThresholdCrossed.ElapsedAt(snap.CapturedAt).Round(time.Second),
				tr.ThresholdCrossed.ReasonCode),
		})
	}

	if eq.QualityThreshold > 0 && totalCount > 0 && metrics.Quality < eq.QualityThreshold {
		conds = append(conds, alerting.Condition{
			EquipmentID: eq.ID,
			LineID:      eq.LineID,
			Category:    models.AlertQuality,
			Message: fmt.Sprintf("%s quality %.2f%% below threshold %.2f%%",
				eq.Name, metrics.Quality*100, eq.QualityThreshold*100),
		})
	}

	if degradedContext {
		conds = append(conds, alerting.Condition{
			EquipmentID: eq.ID,
			LineID:      eq.LineID,
			Category:    models.AlertProcess,
			Message:     fmt.Sprintf("%s running without current production context", eq.Name),
		})
	}

	cond, ok := alerting.HighestPrecedence(conds)
	if !ok {
		return
	}

	p.deps.Alerts.Raise(ctx, cond)
}

// resolveCleared auto-resolves condition-driven alerts once the equipment is
// running again.
func (p *Poller) resolveCleared(ctx context.Context, eq *models.Equipment) {
	for _, category := range []models.AlertCategory{models.AlertDowntime, models.AlertEquipmentFault} {
		if err := p.deps.Alerts.ResolveCategory(ctx, eq.ID, category); err != nil {
			p.logger.Error().
				Err(err).
				Str("equipment_id", eq.ID).
				Str("category", string(category)).
				Msg("Failed to auto-resolve alert")
		}
	}
}

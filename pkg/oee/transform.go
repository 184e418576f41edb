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

// Package oee derives availability, performance, quality and OEE from raw
// telemetry snapshots and production context.
package oee

import (
	"math"
	"time"

	"github.com/linepulse/linepulse/pkg/models"
)

// WindowUsage is the accumulated shift-window state one Transform call needs:
// running and unplanned-downtime time, and produced counts for the current
// context. Planned and changeover downtime do not penalize availability.
type WindowUsage struct {
	Running       time.Duration
	UnplannedDown time.Duration
	GoodCount     int64
	TotalCount    int64
}

// Transform converts one cycle's snapshot plus context and window usage into
// OEE components. Pure: identical inputs always yield identical results.
func Transform(snap models.TelemetrySnapshot, pctx models.ProductionContext, usage WindowUsage) models.MetricsResult {
	availability := 1.0

	if total := usage.Running + usage.UnplannedDown; total > 0 {
		availability = float64(usage.Running) / float64(total)
	}

	performance := 1.0
	quality := 1.0

	if pctx.Known() {
		target := pctx.TargetSpeed
		if target > 0 {
			// Speed above target is clamped, not amplified.
			performance = clamp01(snap.Speed / target)
		}

		// Quality defaults to 1.0 before any production to avoid penalizing
		// idle equipment (and to avoid dividing by zero).
		if usage.TotalCount > 0 {
			quality = clamp01(float64(usage.GoodCount) / float64(usage.TotalCount))
		}
	}

	availability = round4(availability)
	performance = round4(performance)
	quality = round4(quality)

	return models.MetricsResult{
		EquipmentID:  snap.EquipmentID,
		Availability: availability,
		Performance:  performance,
		Quality:      quality,
		OEE:          round4(availability * performance * quality),
		Speed:        snap.Speed,
		Running:      snap.Running,
		ComputedAt:   snap.CapturedAt,
	}
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}

	if v > 1 {
		return 1
	}

	return v
}

func round4(v float64) float64 {
	return math.Round(v*10000) / 10000
}

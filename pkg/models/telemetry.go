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

package models

import "time"

// TelemetrySnapshot is one polling cycle's result for one equipment unit.
// Immutable once produced.
type TelemetrySnapshot struct {
	EquipmentID string    `json:"equipment_id"`
	CapturedAt  time.Time `json:"captured_at"`
	Running     bool      `json:"running"`
	Speed       float64   `json:"speed"`
	FaultBits   uint32    `json:"fault_bits"`
	GoodDelta   int64     `json:"good_delta"`
	TotalDelta  int64     `json:"total_delta"`
}

// ProductionContext is the currently assigned job/schedule/targets for one
// equipment unit, used to interpret raw telemetry. Owned by the context cache.
type ProductionContext struct {
	EquipmentID string    `json:"equipment_id"`
	JobID       string    `json:"job_id,omitempty"`
	ScheduleID  string    `json:"schedule_id,omitempty"`
	TargetSpeed float64   `json:"target_speed,omitempty"`
	ProductType string    `json:"product_type,omitempty"`
	Changeover  bool      `json:"changeover,omitempty"` // scheduled changeover in progress
	CapturedAt  time.Time `json:"captured_at"`
	Stale       bool      `json:"stale,omitempty"`
}

// Known reports whether a job is actually assigned. Unknown contexts degrade
// performance and quality to neutral values in the metric transform.
func (c ProductionContext) Known() bool {
	return c.JobID != ""
}

// NeutralContext returns the default context used when the context source is
// unavailable beyond the staleness ceiling.
func NeutralContext(equipmentID string, at time.Time) ProductionContext {
	return ProductionContext{
		EquipmentID: equipmentID,
		CapturedAt:  at,
		Stale:       true,
	}
}

// MetricsResult holds the derived OEE components for one cycle. Values are
// rounded to four decimal places so derived values stay reproducible.
type MetricsResult struct {
	EquipmentID  string    `json:"equipment_id"`
	Availability float64   `json:"availability"`
	Performance  float64   `json:"performance"`
	Quality      float64   `json:"quality"`
	OEE          float64   `json:"oee"`
	Speed        float64   `json:"speed"`
	Running      bool      `json:"running"`
	ComputedAt   time.Time `json:"computed_at"`
}

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

// DowntimeCategory classifies a downtime interval.
type DowntimeCategory string

const (
	DowntimeUnclassified DowntimeCategory = "unclassified"
	DowntimePlanned      DowntimeCategory = "planned"
	DowntimeUnplanned    DowntimeCategory = "unplanned"
	DowntimeChangeover   DowntimeCategory = "changeover"
)

// DowntimeEvent is a bounded interval during which equipment was not running.
// At most one open event exists per equipment at any time.
type DowntimeEvent struct {
	ID             string           `json:"id"`
	EquipmentID    string           `json:"equipment_id"`
	StartTime      time.Time        `json:"start_time"`
	EndTime        *time.Time       `json:"end_time,omitempty"` // nil while open
	Category       DowntimeCategory `json:"category"`
	ReasonCode     string           `json:"reason_code,omitempty"`
	AlertTriggered bool             `json:"alert_triggered"`
}

// Open reports whether the event is still in progress.
func (e *DowntimeEvent) Open() bool {
	return e.EndTime == nil
}

// ElapsedAt returns how long the event has lasted as of now.
func (e *DowntimeEvent) ElapsedAt(now time.Time) time.Duration {
	if e.EndTime != nil {
		return e.EndTime.Sub(e.StartTime)
	}

	return now.Sub(e.StartTime)
}

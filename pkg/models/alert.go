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

// AlertCategory classifies the condition behind an alert.
type AlertCategory string

const (
	AlertSafety         AlertCategory = "safety"
	AlertEquipmentFault AlertCategory = "equipment_fault"
	AlertDowntime       AlertCategory = "unplanned_downtime"
	AlertQuality        AlertCategory = "quality"
	AlertMaterial       AlertCategory = "material"
	AlertProcess        AlertCategory = "process"
)

// AlertPriority drives escalation response-time targets.
type AlertPriority string

const (
	PriorityCritical AlertPriority = "critical"
	PriorityHigh     AlertPriority = "high"
	PriorityMedium   AlertPriority = "medium"
	PriorityLow      AlertPriority = "low"
)

// AlertStatus is the lifecycle state of an alert. Transitions are monotonic:
// open -> acknowledged -> resolved, or open -> resolved. Resolved is terminal.
type AlertStatus string

const (
	AlertOpen         AlertStatus = "open"
	AlertAcknowledged AlertStatus = "acknowledged"
	AlertResolved     AlertStatus = "resolved"
)

// AlertEvent is a record of an abnormal condition requiring human attention.
type AlertEvent struct {
	ID              string        `json:"id"`
	EquipmentID     string        `json:"equipment_id,omitempty"`
	LineID          string        `json:"line_id,omitempty"`
	Category        AlertCategory `json:"category"`
	Priority        AlertPriority `json:"priority"`
	Status          AlertStatus   `json:"status"`
	EscalationLevel int           `json:"escalation_level"`
	Message         string        `json:"message,omitempty"`
	CreatedAt       time.Time     `json:"created_at"`
	LastEscalatedAt *time.Time    `json:"last_escalated_at,omitempty"`
	AcknowledgedAt  *time.Time    `json:"acknowledged_at,omitempty"`
	AcknowledgedBy  string        `json:"acknowledged_by,omitempty"`
	ResolvedAt      *time.Time    `json:"resolved_at,omitempty"`
}

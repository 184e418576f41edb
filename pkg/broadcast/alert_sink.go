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

package broadcast

import "github.com/linepulse/linepulse/pkg/models"

// AlertQueueSink feeds alert transitions from the alert engine into the
// broadcast queue.
type AlertQueueSink struct {
	queue *Queue
}

// NewAlertQueueSink creates the adapter.
func NewAlertQueueSink(q *Queue) *AlertQueueSink {
	return &AlertQueueSink{queue: q}
}

// AlertTransition implements the alert engine's sink contract.
func (s *AlertQueueSink) AlertTransition(alert *models.AlertEvent) {
	at := alert.CreatedAt

	switch {
	case alert.ResolvedAt != nil:
		at = *alert.ResolvedAt
	case alert.AcknowledgedAt != nil:
		at = *alert.AcknowledgedAt
	case alert.LastEscalatedAt != nil:
		at = *alert.LastEscalatedAt
	}

	s.queue.Enqueue(Update{
		Kind:        KindAlert,
		EquipmentID: alert.EquipmentID,
		LineID:      alert.LineID,
		Category:    string(alert.Category),
		At:          at,
		Alert:       alert,
	})
}

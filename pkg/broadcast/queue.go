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

// Package broadcast fans computed telemetry updates out to subscribers and
// the history stream, decoupled from the poll loop by a bounded queue.
package broadcast

import (
	"sync"
	"time"

	"github.com/linepulse/linepulse/pkg/logger"
	"github.com/linepulse/linepulse/pkg/models"
)

// UpdateKind discriminates what an Update carries.
type UpdateKind string

const (
	KindMetrics  UpdateKind = "metrics"
	KindDowntime UpdateKind = "downtime"
	KindAlert    UpdateKind = "alert"
)

// Update is one unit of fan-out work. Exactly one of Metrics, Downtime or
// Alert is set, matching Kind.
type Update struct {
	Kind        UpdateKind            `json:"kind"`
	EquipmentID string                `json:"equipment_id"`
	LineID      string                `json:"line_id,omitempty"`
	Category    string                `json:"category,omitempty"`
	At          time.Time             `json:"at"`
	Metrics     *models.MetricsResult `json:"metrics,omitempty"`
	Downtime    *models.DowntimeEvent `json:"downtime,omitempty"`
	Alert       *models.AlertEvent    `json:"alert,omitempty"`
}

const defaultQueueCapacity = 1024

// Queue is a bounded update buffer between producers (the poll pipeline, the
// alert engine) and the broadcast worker. When full, the oldest update is
// dropped so producers never block.
type Queue struct {
	mu      sync.Mutex
	items   chan Update
	dropped uint64
	logger  logger.Logger
}

// NewQueue creates a queue. A non-positive capacity uses the default.
func NewQueue(capacity int, log logger.Logger) *Queue {
	if capacity <= 0 {
		capacity = defaultQueueCapacity
	}

	return &Queue{
		items:  make(chan Update, capacity),
		logger: log,
	}
}

// Enqueue adds an update, evicting the oldest entry when the buffer is full.
func (q *Queue) Enqueue(u Update) {
	q.mu.Lock()
	defer q.mu.Unlock()

	for {
		select {
		case q.items <- u:
			return
		default:
		}

		select {
		case old := <-q.items:
			q.dropped++
			q.logger.Warn().
				Str("kind", string(old.Kind)).
				Str("equipment_id", old.EquipmentID).
				Uint64("total_dropped", q.dropped).
				Msg("Broadcast queue full, dropping oldest update")
		default:
		}
	}
}

// Items exposes the receive side for the worker.
func (q *Queue) Items() <-chan Update {
	return q.items
}

// Dropped returns how many updates were evicted since startup.
func (q *Queue) Dropped() uint64 {
	q.mu.Lock()
	defer q.mu.Unlock()

	return q.dropped
}

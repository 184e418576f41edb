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

import (
	"context"
	"sync"

	"github.com/linepulse/linepulse/pkg/logger"
)

// HistorySink persists durable updates (downtime transitions, alert
// transitions) to the history stream. Metrics updates are live-only and
// never reach the sink.
type HistorySink interface {
	PublishUpdate(ctx context.Context, u Update) error
}

// Worker drains the queue, broadcasting each update to subscribers and
// forwarding durable kinds to the history sink.
type Worker struct {
	queue   *Queue
	manager *Manager
	history HistorySink
	logger  logger.Logger

	done      chan struct{}
	closeOnce sync.Once
	wg        sync.WaitGroup
}

// NewWorker creates a broadcast worker. history may be nil.
func NewWorker(queue *Queue, manager *Manager, history HistorySink, log logger.Logger) *Worker {
	return &Worker{
		queue:   queue,
		manager: manager,
		history: history,
		logger:  log,
		done:    make(chan struct{}),
	}
}

// Start implements lifecycle.Service.
func (w *Worker) Start(ctx context.Context) error {
	w.logger.Info().Msg("Starting broadcast worker")

	w.wg.Add(1)

	go w.run(ctx)

	return nil
}

// Stop implements lifecycle.Service. Updates still queued are drained and
// delivered before returning, bounded by ctx's deadline.
func (w *Worker) Stop(ctx context.Context) error {
	w.closeOnce.Do(func() {
		close(w.done)
	})

	w.wg.Wait()

	drained := 0

	for {
		select {
		case <-ctx.Done():
			w.logger.Warn().
				Int("drained", drained).
				Uint64("dropped", w.queue.Dropped()).
				Msg("Shutdown deadline reached with updates still queued")

			return nil
		case u := <-w.queue.Items():
			w.dispatch(ctx, u)
			drained++
		default:
			if drained > 0 {
				w.logger.Info().
					Int("drained", drained).
					Msg("Drained queued updates on shutdown")
			}

			return nil
		}
	}
}

func (w *Worker) run(ctx context.Context) {
	defer w.wg.Done()

	for {
		select {
		case <-w.done:
			return
		case <-ctx.Done():
			return
		case u := <-w.queue.Items():
			w.dispatch(ctx, u)
		}
	}
}

func (w *Worker) dispatch(ctx context.Context, u Update) {
	w.manager.Broadcast(u)

	if w.history == nil || u.Kind == KindMetrics {
		return
	}

	if err := w.history.PublishUpdate(ctx, u); err != nil {
		// History is best-effort; live delivery already happened.
		w.logger.Error().
			Err(err).
			Str("kind", string(u.Kind)).
			Str("equipment_id", u.EquipmentID).
			Msg("Failed to publish update to history stream")
	}
}

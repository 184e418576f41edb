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

package alerting

import (
	"context"
	"sync"
	"time"

	"github.com/linepulse/linepulse/pkg/logger"
)

// EscalationWorker periodically sweeps open alerts for overdue responses.
// It runs on its own ticker, independent of the poll cycle.
type EscalationWorker struct {
	engine   *Engine
	interval time.Duration
	logger   logger.Logger

	done      chan struct{}
	closeOnce sync.Once
	wg        sync.WaitGroup
}

// NewEscalationWorker creates a worker sweeping at cfg.CheckInterval.
func NewEscalationWorker(engine *Engine, cfg Config, log logger.Logger) *EscalationWorker {
	return &EscalationWorker{
		engine:   engine,
		interval: time.Duration(cfg.CheckInterval),
		logger:   log,
		done:     make(chan struct{}),
	}
}

// Start implements lifecycle.Service.
func (w *EscalationWorker) Start(ctx context.Context) error {
	w.logger.Info().
		Dur("interval", w.interval).
		Msg("Starting escalation worker")

	w.wg.Add(1)

	go w.run(ctx)

	return nil
}

// Stop implements lifecycle.Service.
func (w *EscalationWorker) Stop(_ context.Context) error {
	w.closeOnce.Do(func() {
		close(w.done)
	})

	w.wg.Wait()

	return nil
}

func (w *EscalationWorker) run(ctx context.Context) {
	defer w.wg.Done()

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-w.done:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			if escalated := w.engine.CheckEscalations(ctx); len(escalated) > 0 {
				w.logger.Debug().
					Int("count", len(escalated)).
					Msg("Escalation sweep advanced alerts")
			}
		}
	}
}

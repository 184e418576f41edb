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

// Package lifecycle starts and stops the daemon's long-running services in
// order and ties them to process signals.
package lifecycle

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/linepulse/linepulse/pkg/logger"
)

const defaultStopTimeout = 15 * time.Second

// Service is a long-running component with ordered startup and shutdown.
type Service interface {
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
}

// CreateComponentLogger creates a logger tagged with a component name.
func CreateComponentLogger(config *logger.Config, component string) (logger.Logger, error) {
	log, err := logger.New(config)
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}

	return log.WithComponent(component), nil
}

// Run starts services in order and blocks until a signal or context
// cancellation, then stops them in reverse order. The first start error
// aborts startup; already-started services are stopped.
func Run(ctx context.Context, log logger.Logger, services ...Service) error {
	ctx, cancel := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	started := make([]Service, 0, len(services))

	for i, svc := range services {
		if err := svc.Start(ctx); err != nil {
			stopServices(log, started)

			return fmt.Errorf("failed to start service %d: %w", i, err)
		}

		started = append(started, svc)
	}

	log.Info().
		Int("services", len(started)).
		Msg("All services started")

	<-ctx.Done()

	log.Info().Msg("Shutdown signal received")

	stopServices(log, started)

	return nil
}

// stopServices stops services in reverse start order so downstream consumers
// outlive their producers.
func stopServices(log logger.Logger, started []Service) {
	stopCtx, cancel := context.WithTimeout(context.Background(), defaultStopTimeout)
	defer cancel()

	for i := len(started) - 1; i >= 0; i-- {
		if err := started[i].Stop(stopCtx); err != nil {
			log.Error().
				Err(err).
				Int("service", i).
				Msg("Service stop failed")
		}
	}
}

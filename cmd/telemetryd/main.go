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

package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"time"

	"github.com/linepulse/linepulse/pkg/alerting"
	"github.com/linepulse/linepulse/pkg/api"
	"github.com/linepulse/linepulse/pkg/broadcast"
	"github.com/linepulse/linepulse/pkg/config"
	"github.com/linepulse/linepulse/pkg/device"
	"github.com/linepulse/linepulse/pkg/downtime"
	"github.com/linepulse/linepulse/pkg/events"
	"github.com/linepulse/linepulse/pkg/lifecycle"
	"github.com/linepulse/linepulse/pkg/logger"
	"github.com/linepulse/linepulse/pkg/models"
	"github.com/linepulse/linepulse/pkg/oee"
	"github.com/linepulse/linepulse/pkg/poller"
	"github.com/linepulse/linepulse/pkg/prodctx"
)

var errFailedToLoadConfig = fmt.Errorf("failed to load config")

func main() {
	if err := run(); err != nil {
		log.Fatalf("Fatal error: %v", err)
	}
}

func run() error {
	configPath := flag.String("config", "/etc/linepulse/telemetryd.json", "Path to telemetryd config file")
	flag.Parse()

	ctx := context.Background()

	cfgLoader := config.NewConfig(nil)

	var cfg Config

	if err := cfgLoader.LoadAndValidate(ctx, *configPath, &cfg); err != nil {
		return fmt.Errorf("%w: %w", errFailedToLoadConfig, err)
	}

	logConfig := cfg.Logging
	if logConfig == nil {
		logConfig = &logger.Config{
			Level:  "info",
			Output: "stdout",
		}
	}

	baseLogger, err := lifecycle.CreateComponentLogger(logConfig, "telemetryd")
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}

	// Production context cache over the scheduling service.
	source := prodctx.NewHTTPSource(cfg.Context.SourceURL, time.Duration(cfg.Context.FetchTimeout))
	contexts := prodctx.NewCache(source,
		time.Duration(cfg.Context.TTL),
		time.Duration(cfg.Context.HardCeiling),
		baseLogger.WithComponent("prodctx"))

	// Fan-out plumbing.
	queue := broadcast.NewQueue(cfg.Broadcast.QueueSize, baseLogger.WithComponent("broadcast"))
	manager := broadcast.NewManager(lineResolver(cfg.Poller.Equipment), baseLogger.WithComponent("broadcast"))

	var history broadcast.HistorySink

	if cfg.NATS.URL != "" {
		publisher, nc, err := events.Connect(ctx, cfg.NATS.URL, cfg.NATS.Stream,
			baseLogger.WithComponent("events"))
		if err != nil {
			return fmt.Errorf("failed to connect history stream: %w", err)
		}
		defer nc.Close()

		history = publisher
	}

	worker := broadcast.NewWorker(queue, manager, history, baseLogger.WithComponent("broadcast"))

	// Alerting.
	notifier := alerting.NewWebhookNotifier(cfg.Alerting.Webhooks, baseLogger.WithComponent("alerting"))
	engine := alerting.NewEngine(cfg.Alerting, notifier, broadcast.NewAlertQueueSink(queue),
		baseLogger.WithComponent("alerting"))
	escalations := alerting.NewEscalationWorker(engine, cfg.Alerting, baseLogger.WithComponent("alerting"))

	// Acquisition pipeline.
	driver := device.NewSNMPDriver(time.Duration(cfg.Poller.DeviceTimeout), baseLogger.WithComponent("device"))
	detector := downtime.NewDetector(time.Duration(cfg.Poller.DowntimeAlertThreshold),
		baseLogger.WithComponent("downtime"))

	p := poller.New(&cfg.Poller, poller.Dependencies{
		Driver:   driver,
		Contexts: contexts,
		Detector: detector,
		Tracker:  oee.NewShiftTracker(),
		Alerts:   engine,
		Queue:    queue,
	}, nil, baseLogger.WithComponent("poller"))

	apiServer := api.NewServer(cfg.API, manager, engine, baseLogger.WithComponent("api"))

	// Consumers start before producers and stop after them.
	return lifecycle.Run(ctx, baseLogger,
		worker,
		escalations,
		apiServer,
		p,
	)
}

// lineResolver maps equipment IDs to line IDs for line-topic subscriptions.
func lineResolver(fleet []*models.Equipment) broadcast.Resolver {
	lines := make(map[string]string, len(fleet))

	for _, eq := range fleet {
		lines[eq.ID] = eq.LineID
	}

	return func(equipmentID string) (string, bool) {
		lineID, ok := lines[equipmentID]
		return lineID, ok
	}
}

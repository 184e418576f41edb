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

// Package events publishes durable telemetry history to NATS JetStream as
// CloudEvents, one subject per record type.
package events

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/linepulse/linepulse/pkg/broadcast"
	"github.com/linepulse/linepulse/pkg/logger"
	"github.com/linepulse/linepulse/pkg/models"
)

const (
	eventSource = "linepulse/telemetryd"

	typeDowntime = "com.linepulse.telemetry.downtime"
	typeAlert    = "com.linepulse.telemetry.alert"
)

// HistoryPublisher writes downtime and alert transitions to a JetStream
// stream so dashboards can replay history after a reconnect.
type HistoryPublisher struct {
	js     jetstream.JetStream
	stream string
	logger logger.Logger
}

// NewHistoryPublisher creates a publisher for an existing JetStream context.
func NewHistoryPublisher(js jetstream.JetStream, streamName string, log logger.Logger) *HistoryPublisher {
	return &HistoryPublisher{
		js:     js,
		stream: streamName,
		logger: log,
	}
}

// Connect dials NATS, ensures the history stream exists and returns a
// publisher bound to it. The caller owns the returned connection.
func Connect(ctx context.Context, natsURL, streamName string, log logger.Logger, opts ...nats.Option) (*HistoryPublisher, *nats.Conn, error) {
	nc, err := nats.Connect(natsURL, opts...)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, nil, fmt.Errorf("failed to create JetStream context: %w", err)
	}

	if _, err = js.Stream(ctx, streamName); err != nil {
		streamConfig := jetstream.StreamConfig{
			Name:     streamName,
			Subjects: []string{"history.downtime.*", "history.alert.*"},
		}

		if _, err = js.CreateOrUpdateStream(ctx, streamConfig); err != nil {
			nc.Close()
			return nil, nil, fmt.Errorf("failed to create or get stream %s: %w", streamName, err)
		}

		log.Info().
			Str("stream", streamName).
			Msg("Created history stream")
	}

	return NewHistoryPublisher(js, streamName, log), nc, nil
}

// PublishUpdate implements broadcast.HistorySink.
func (p *HistoryPublisher) PublishUpdate(ctx context.Context, u broadcast.Update) error {
	var (
		eventType string
		subject   string
		data      interface{}
	)

	switch u.Kind {
	case broadcast.KindDowntime:
		eventType = typeDowntime
		subject = fmt.Sprintf("history.downtime.%s", u.EquipmentID)
		data = u.Downtime
	case broadcast.KindAlert:
		eventType = typeAlert
		subject = fmt.Sprintf("history.alert.%s", u.EquipmentID)
		data = u.Alert
	default:
		return nil
	}

	ts := u.At

	event := models.CloudEvent{
		SpecVersion:     "1.0",
		ID:              uuid.New().String(),
		Source:          eventSource,
		Type:            eventType,
		DataContentType: "application/json",
		Subject:         subject,
		Time:            &ts,
		Data:            data,
	}

	eventBytes, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal history event: %w", err)
	}

	ack, err := p.js.Publish(ctx, event.Subject, eventBytes)
	if err != nil {
		return fmt.Errorf("failed to publish history event: %w", err)
	}

	p.logger.Debug().
		Str("event_id", event.ID).
		Str("subject", event.Subject).
		Uint64("seq", ack.Sequence).
		Msg("Published history event")

	return nil
}

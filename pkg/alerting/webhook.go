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
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/linepulse/linepulse/pkg/logger"
	"github.com/linepulse/linepulse/pkg/models"
)

const defaultWebhookTimeout = 10 * time.Second

var errWebhookURL = errors.New("webhook URL is required when enabled")

// WebhookConfig describes one notification endpoint.
type WebhookConfig struct {
	Enabled bool            `json:"enabled"`
	URL     string          `json:"url"`
	Headers []Header        `json:"headers,omitempty"`
	Timeout models.Duration `json:"timeout,omitempty"`
}

// Header is a custom key-value pair sent with each webhook request.
type Header struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// Validate checks one webhook entry and applies its timeout default.
func (c *WebhookConfig) Validate() error {
	if !c.Enabled {
		return nil
	}

	if c.URL == "" {
		return errWebhookURL
	}

	if c.Timeout <= 0 {
		c.Timeout = models.Duration(defaultWebhookTimeout)
	}

	return nil
}

// webhookPayload is the document POSTed to each endpoint.
type webhookPayload struct {
	Alert    *models.AlertEvent `json:"alert"`
	Audience string             `json:"audience"`
	SentAt   time.Time          `json:"sent_at"`
}

// WebhookNotifier delivers alert notifications to configured HTTP endpoints.
type WebhookNotifier struct {
	targets []webhookTarget
	logger  logger.Logger
}

type webhookTarget struct {
	config WebhookConfig
	client *http.Client
}

// NewWebhookNotifier creates a notifier from the enabled webhook entries.
func NewWebhookNotifier(configs []WebhookConfig, log logger.Logger) *WebhookNotifier {
	n := &WebhookNotifier{logger: log}

	for _, cfg := range configs {
		if !cfg.Enabled {
			continue
		}

		n.targets = append(n.targets, webhookTarget{
			config: cfg,
			client: &http.Client{Timeout: time.Duration(cfg.Timeout)},
		})
	}

	return n
}

// Notify implements Notifier. Every enabled endpoint receives the payload;
// the first delivery failure is returned after all endpoints were tried.
func (n *WebhookNotifier) Notify(ctx context.Context, alert *models.AlertEvent, audience string) error {
	if len(n.targets) == 0 {
		return nil
	}

	body, err := json.Marshal(webhookPayload{
		Alert:    alert,
		Audience: audience,
		SentAt:   time.Now(),
	})
	if err != nil {
		return fmt.Errorf("failed to marshal webhook payload: %w", err)
	}

	var firstErr error

	for i := range n.targets {
		if err := n.targets[i].send(ctx, body); err != nil {
			n.logger.Error().
				Err(err).
				Str("url", n.targets[i].config.URL).
				Str("alert_id", alert.ID).
				Msg("Webhook delivery failed")

			if firstErr == nil {
				firstErr = err
			}
		}
	}

	return firstErr
}

func (t *webhookTarget) send(ctx context.Context, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.config.URL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create webhook request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")

	for _, h := range t.config.Headers {
		req.Header.Set(h.Key, h.Value)
	}

	resp, err := t.client.Do(req)
	if err != nil {
		return fmt.Errorf("webhook request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))

		return fmt.Errorf("webhook returned status %d: %s", resp.StatusCode, string(respBody))
	}

	return nil
}

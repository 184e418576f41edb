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
	"errors"
	"fmt"
	"time"

	"github.com/linepulse/linepulse/pkg/alerting"
	"github.com/linepulse/linepulse/pkg/api"
	"github.com/linepulse/linepulse/pkg/logger"
	"github.com/linepulse/linepulse/pkg/models"
	"github.com/linepulse/linepulse/pkg/poller"
)

const (
	defaultContextTimeout = 10 * time.Second
	defaultContextTTL     = 45 * time.Second
	defaultContextCeiling = 10 * time.Minute
	defaultNATSStream     = "linepulse-history"
)

var errContextSourceURL = errors.New("context source_url is required")

// ContextConfig points at the scheduling service's context endpoint.
type ContextConfig struct {
	SourceURL    string          `json:"source_url"`
	FetchTimeout models.Duration `json:"fetch_timeout,omitempty"`
	TTL          models.Duration `json:"ttl,omitempty"`
	HardCeiling  models.Duration `json:"hard_ceiling,omitempty"`
}

// BroadcastConfig tunes the fan-out queue.
type BroadcastConfig struct {
	QueueSize int `json:"queue_size,omitempty"`
}

// NATSConfig enables the JetStream history stream when URL is set.
type NATSConfig struct {
	URL    string `json:"url,omitempty"`
	Stream string `json:"stream,omitempty"`
}

// Config is the whole daemon configuration.
type Config struct {
	Logging   *logger.Config  `json:"logging,omitempty"`
	Poller    poller.Config   `json:"poller"`
	Alerting  alerting.Config `json:"alerting,omitempty"`
	API       api.Config      `json:"api,omitempty"`
	Context   ContextConfig   `json:"context"`
	Broadcast BroadcastConfig `json:"broadcast,omitempty"`
	NATS      NATSConfig      `json:"nats,omitempty"`
}

// Validate implements config.Validator, applying defaults per section.
func (c *Config) Validate() error {
	if err := c.Poller.Validate(); err != nil {
		return fmt.Errorf("poller: %w", err)
	}

	if err := c.Alerting.Validate(); err != nil {
		return fmt.Errorf("alerting: %w", err)
	}

	if err := c.API.Validate(); err != nil {
		return fmt.Errorf("api: %w", err)
	}

	if c.Context.SourceURL == "" {
		return errContextSourceURL
	}

	if c.Context.FetchTimeout <= 0 {
		c.Context.FetchTimeout = models.Duration(defaultContextTimeout)
	}

	if c.Context.TTL <= 0 {
		c.Context.TTL = models.Duration(defaultContextTTL)
	}

	if c.Context.HardCeiling <= 0 {
		c.Context.HardCeiling = models.Duration(defaultContextCeiling)
	}

	if c.NATS.URL != "" && c.NATS.Stream == "" {
		c.NATS.Stream = defaultNATSStream
	}

	return nil
}

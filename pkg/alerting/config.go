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
	"fmt"
	"time"

	"github.com/linepulse/linepulse/pkg/models"
)

const (
	defaultDedupWindow      = 10 * time.Minute
	defaultCheckInterval    = 30 * time.Second
	defaultCriticalResponse = 5 * time.Minute
	defaultHighResponse     = 15 * time.Minute
	defaultMediumResponse   = 30 * time.Minute
	defaultLowResponse      = time.Hour
)

// Config tunes alert deduplication and escalation.
type Config struct {
	// DedupWindow suppresses a re-raise of the same (equipment, category)
	// condition after the prior alert resolved.
	DedupWindow models.Duration `json:"dedup_window,omitempty"`

	// CheckInterval is how often the escalation worker scans open alerts.
	CheckInterval models.Duration `json:"check_interval,omitempty"`

	// ResponseTargets maps priority to the time an open alert may sit
	// unacknowledged before it escalates one level.
	ResponseTargets map[models.AlertPriority]models.Duration `json:"response_targets,omitempty"`

	// Audiences names the notification audience per escalation level,
	// index 0 for the initial notification. The last entry covers all
	// higher levels. Empty means "operators" for every level.
	Audiences []string `json:"audiences,omitempty"`

	// MaxEscalationLevel caps escalation; zero means unbounded.
	MaxEscalationLevel int `json:"max_escalation_level,omitempty"`

	// Webhooks configures notification delivery endpoints.
	Webhooks []WebhookConfig `json:"webhooks,omitempty"`
}

// Validate applies defaults and checks the configuration.
func (c *Config) Validate() error {
	if c.DedupWindow <= 0 {
		c.DedupWindow = models.Duration(defaultDedupWindow)
	}

	if c.CheckInterval <= 0 {
		c.CheckInterval = models.Duration(defaultCheckInterval)
	}

	if c.ResponseTargets == nil {
		c.ResponseTargets = make(map[models.AlertPriority]models.Duration)
	}

	defaults := map[models.AlertPriority]time.Duration{
		models.PriorityCritical: defaultCriticalResponse,
		models.PriorityHigh:     defaultHighResponse,
		models.PriorityMedium:   defaultMediumResponse,
		models.PriorityLow:      defaultLowResponse,
	}

	for priority, d := range defaults {
		if c.ResponseTargets[priority] <= 0 {
			c.ResponseTargets[priority] = models.Duration(d)
		}
	}

	if len(c.Audiences) == 0 {
		c.Audiences = []string{"operators", "supervisors", "plant_management"}
	}

	for i := range c.Webhooks {
		if err := c.Webhooks[i].Validate(); err != nil {
			return fmt.Errorf("webhook %d: %w", i, err)
		}
	}

	return nil
}

func (c *Config) responseTarget(priority models.AlertPriority) time.Duration {
	if d, ok := c.ResponseTargets[priority]; ok && d > 0 {
		return time.Duration(d)
	}

	return defaultMediumResponse
}

func (c *Config) audienceFor(level int) string {
	if len(c.Audiences) == 0 {
		return "operators"
	}

	if level >= len(c.Audiences) {
		level = len(c.Audiences) - 1
	}

	return c.Audiences[level]
}

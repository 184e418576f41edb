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

package poller

import (
	"errors"
	"fmt"
	"time"

	"github.com/linepulse/linepulse/pkg/models"
)

const (
	defaultPollInterval   = 2 * time.Second
	defaultDeviceTimeout  = 5 * time.Second
	defaultAlertThreshold = 5 * time.Minute
)

var (
	errNoEquipment        = errors.New("at least one equipment unit is required")
	errEquipmentID        = errors.New("equipment id is required")
	errEquipmentAddress   = errors.New("equipment device address is required")
	errDuplicateEquipment = errors.New("duplicate equipment id")
)

// Config holds the poll-loop settings and the equipment fleet.
type Config struct {
	// PollInterval is the cycle period for every equipment unit.
	PollInterval models.Duration `json:"poll_interval,omitempty"`

	// DeviceTimeout bounds a single device read.
	DeviceTimeout models.Duration `json:"device_timeout,omitempty"`

	// DowntimeAlertThreshold is the fleet-wide default; per-equipment
	// thresholds override it.
	DowntimeAlertThreshold models.Duration `json:"downtime_alert_threshold,omitempty"`

	// Equipment is the fleet to poll.
	Equipment []*models.Equipment `json:"equipment"`
}

// Validate applies defaults and checks the fleet definition.
func (c *Config) Validate() error {
	if c.PollInterval <= 0 {
		c.PollInterval = models.Duration(defaultPollInterval)
	}

	if c.DeviceTimeout <= 0 {
		c.DeviceTimeout = models.Duration(defaultDeviceTimeout)
	}

	if c.DowntimeAlertThreshold <= 0 {
		c.DowntimeAlertThreshold = models.Duration(defaultAlertThreshold)
	}

	if len(c.Equipment) == 0 {
		return errNoEquipment
	}

	seen := make(map[string]struct{}, len(c.Equipment))

	for i, eq := range c.Equipment {
		if eq.ID == "" {
			return fmt.Errorf("equipment %d: %w", i, errEquipmentID)
		}

		if _, ok := seen[eq.ID]; ok {
			return fmt.Errorf("%w: %s", errDuplicateEquipment, eq.ID)
		}

		seen[eq.ID] = struct{}{}

		if eq.Device.Address == "" {
			return fmt.Errorf("equipment %s: %w", eq.ID, errEquipmentAddress)
		}
	}

	return nil
}

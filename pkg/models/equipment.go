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

package models

import "time"

// Well-known register names every equipment unit is expected to expose.
// The mapping from these names to protocol addresses lives in DeviceConfig.
const (
	RegisterRunStatus  = "run_status"
	RegisterSpeed      = "speed"
	RegisterFaultBits  = "fault_bits"
	RegisterGoodCount  = "good_count"
	RegisterTotalCount = "total_count"
)

// DeviceConfig describes how to reach one equipment controller and which
// named registers map to which protocol addresses (OIDs for SNMP devices).
type DeviceConfig struct {
	Address    string            `json:"address"`
	Port       uint16            `json:"port,omitempty"`
	Community  string            `json:"community,omitempty"`
	Registers  map[string]string `json:"registers"`
	SpeedScale float64           `json:"speed_scale,omitempty"` // raw register units per unit of speed
}

// MaintenanceWindow is a declared daily window during which downtime is planned.
// Start and End are wall-clock times in "15:04" format.
type MaintenanceWindow struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

// Contains reports whether t falls inside the window, using t's location.
func (w MaintenanceWindow) Contains(t time.Time) bool {
	start, err := time.Parse("15:04", w.Start)
	if err != nil {
		return false
	}

	end, err := time.Parse("15:04", w.End)
	if err != nil {
		return false
	}

	minutes := t.Hour()*60 + t.Minute()
	startMin := start.Hour()*60 + start.Minute()
	endMin := end.Hour()*60 + end.Minute()

	if startMin <= endMin {
		return minutes >= startMin && minutes < endMin
	}

	// Window wraps midnight.
	return minutes >= startMin || minutes < endMin
}

// Equipment is the immutable configuration for one monitored unit.
// Loaded at startup; referenced by every other entity via ID.
type Equipment struct {
	ID                     string              `json:"id"`
	LineID                 string              `json:"line_id"`
	Name                   string              `json:"name"`
	TargetSpeed            float64             `json:"target_speed"`
	TargetCycleTime        Duration            `json:"target_cycle_time,omitempty"`
	FaultReasons           map[uint]string     `json:"fault_reasons,omitempty"` // fault bit position -> reason code
	QualityThreshold       float64             `json:"quality_threshold,omitempty"`
	DowntimeAlertThreshold Duration            `json:"downtime_alert_threshold,omitempty"`
	MaintenanceWindows     []MaintenanceWindow `json:"maintenance_windows,omitempty"`
	Device                 DeviceConfig        `json:"device"`
}

// InMaintenanceWindow reports whether t falls inside any declared window.
func (e *Equipment) InMaintenanceWindow(t time.Time) bool {
	for _, w := range e.MaintenanceWindows {
		if w.Contains(t) {
			return true
		}
	}

	return false
}

// FaultReason returns the reason code for the lowest mapped set fault bit,
// or "unknown" when no set bit has a mapping.
func (e *Equipment) FaultReason(faultBits uint32) string {
	for bit := uint(0); bit < 32; bit++ {
		if faultBits&(1<<bit) == 0 {
			continue
		}

		if reason, ok := e.FaultReasons[bit]; ok {
			return reason
		}
	}

	return "unknown"
}

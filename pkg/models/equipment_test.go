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

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestMaintenanceWindowContains(t *testing.T) {
	tests := []struct {
		name   string
		window MaintenanceWindow
		at     string
		want   bool
	}{
		{"inside day window", MaintenanceWindow{Start: "08:00", End: "10:00"}, "09:30", true},
		{"start is inclusive", MaintenanceWindow{Start: "08:00", End: "10:00"}, "08:00", true},
		{"end is exclusive", MaintenanceWindow{Start: "08:00", End: "10:00"}, "10:00", false},
		{"outside day window", MaintenanceWindow{Start: "08:00", End: "10:00"}, "11:00", false},
		{"wraps midnight before", MaintenanceWindow{Start: "22:00", End: "02:00"}, "23:30", true},
		{"wraps midnight after", MaintenanceWindow{Start: "22:00", End: "02:00"}, "01:00", true},
		{"wraps midnight outside", MaintenanceWindow{Start: "22:00", End: "02:00"}, "12:00", false},
		{"malformed start", MaintenanceWindow{Start: "late", End: "02:00"}, "01:00", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clock, err := time.Parse("15:04", tt.at)
			if err != nil {
				t.Fatal(err)
			}

			at := time.Date(2026, 3, 14, clock.Hour(), clock.Minute(), 0, 0, time.UTC)

			assert.Equal(t, tt.want, tt.window.Contains(at))
		})
	}
}

func TestEquipmentFaultReason(t *testing.T) {
	eq := &Equipment{
		FaultReasons: map[uint]string{
			0: "jam",
			3: "overheat",
		},
	}

	tests := []struct {
		name string
		bits uint32
		want string
	}{
		{"no bits", 0, "unknown"},
		{"mapped bit", 1, "jam"},
		{"higher mapped bit", 8, "overheat"},
		{"lowest set bit wins", 9, "jam"},
		{"unmapped bit", 2, "unknown"},
		{"unmapped lower bit falls through", 10, "overheat"},
		{"all bits unmapped", 6, "unknown"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, eq.FaultReason(tt.bits))
		})
	}
}

func TestDurationUnmarshal(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    time.Duration
		wantErr bool
	}{
		{"string form", `"5m"`, 5 * time.Minute, false},
		{"compound string", `"1h30m"`, 90 * time.Minute, false},
		{"float nanoseconds", `2000000000`, 2 * time.Second, false},
		{"garbage", `"soon"`, 0, true},
		{"wrong type", `true`, 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var d Duration

			err := d.UnmarshalJSON([]byte(tt.input))

			if tt.wantErr {
				assert.Error(t, err)
				return
			}

			assert.NoError(t, err)
			assert.Equal(t, tt.want, time.Duration(d))
		})
	}
}

func TestDurationMarshalRoundTrip(t *testing.T) {
	d := Duration(90 * time.Second)

	data, err := d.MarshalJSON()
	assert.NoError(t, err)
	assert.Equal(t, `"1m30s"`, string(data))

	var back Duration

	assert.NoError(t, back.UnmarshalJSON(data))
	assert.Equal(t, d, back)
}

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

package downtime

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/linepulse/linepulse/pkg/logger"
	"github.com/linepulse/linepulse/pkg/models"
)

var testStart = time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)

func testEquipment() *models.Equipment {
	return &models.Equipment{
		ID:     "press-01",
		LineID: "line-a",
		Name:   "Press 01",
		FaultReasons: map[uint]string{
			0: "jam",
			3: "overheat",
		},
	}
}

func snapshotAt(offset time.Duration, running bool, faultBits uint32) models.TelemetrySnapshot {
	return models.TelemetrySnapshot{
		EquipmentID: "press-01",
		CapturedAt:  testStart.Add(offset),
		Running:     running,
		FaultBits:   faultBits,
	}
}

func TestDetectorOpensAndClosesEvent(t *testing.T) {
	d := NewDetector(0, logger.NewTestLogger())
	eq := testEquipment()

	tr := d.Observe(eq, snapshotAt(0, false, 0), models.ProductionContext{})
	require.NotNil(t, tr.Opened)
	assert.Equal(t, models.DowntimeUnplanned, tr.Opened.Category)
	assert.Equal(t, "unknown", tr.Opened.ReasonCode)
	assert.True(t, tr.Opened.Open())

	// Still down: no new event.
	tr = d.Observe(eq, snapshotAt(2*time.Second, false, 0), models.ProductionContext{})
	assert.Nil(t, tr.Opened)

	open := d.OpenEvent("press-01")
	require.NotNil(t, open)
	assert.Equal(t, testStart, open.StartTime)

	tr = d.Observe(eq, snapshotAt(10*time.Second, true, 0), models.ProductionContext{})
	require.NotNil(t, tr.Closed)
	require.NotNil(t, tr.Closed.EndTime)
	assert.Equal(t, 10*time.Second, tr.Closed.ElapsedAt(*tr.Closed.EndTime))
	assert.Nil(t, d.OpenEvent("press-01"))
}

func TestDetectorAtMostOneOpenEvent(t *testing.T) {
	d := NewDetector(0, logger.NewTestLogger())
	eq := testEquipment()

	first := d.Observe(eq, snapshotAt(0, false, 0), models.ProductionContext{})
	require.NotNil(t, first.Opened)

	for i := 1; i <= 5; i++ {
		tr := d.Observe(eq, snapshotAt(time.Duration(i)*time.Second, false, 0), models.ProductionContext{})
		assert.Nil(t, tr.Opened)
	}

	open := d.OpenEvent("press-01")
	require.NotNil(t, open)
	assert.Equal(t, first.Opened.ID, open.ID)
}

func TestDetectorCategorization(t *testing.T) {
	tests := []struct {
		name         string
		faultBits    uint32
		changeover   bool
		maintenance  bool
		wantCategory models.DowntimeCategory
		wantReason   string
	}{
		{
			name:         "fault bits win",
			faultBits:    1,
			changeover:   true,
			wantCategory: models.DowntimeUnplanned,
			wantReason:   "jam",
		},
		{
			name:         "scheduled changeover",
			changeover:   true,
			wantCategory: models.DowntimeChangeover,
			wantReason:   "changeover",
		},
		{
			name:         "maintenance window",
			maintenance:  true,
			wantCategory: models.DowntimePlanned,
			wantReason:   "maintenance",
		},
		{
			name:         "nothing known",
			wantCategory: models.DowntimeUnplanned,
			wantReason:   "unknown",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := NewDetector(0, logger.NewTestLogger())
			eq := testEquipment()

			if tt.maintenance {
				eq.MaintenanceWindows = []models.MaintenanceWindow{{Start: "00:00", End: "23:59"}}
			}

			pctx := models.ProductionContext{Changeover: tt.changeover}

			tr := d.Observe(eq, snapshotAt(0, false, tt.faultBits), pctx)
			require.NotNil(t, tr.Opened)
			assert.Equal(t, tt.wantCategory, tr.Opened.Category)
			assert.Equal(t, tt.wantReason, tr.Opened.ReasonCode)
		})
	}
}

func TestDetectorRecategorizesWhenFaultAppears(t *testing.T) {
	d := NewDetector(0, logger.NewTestLogger())
	eq := testEquipment()

	tr := d.Observe(eq, snapshotAt(0, false, 0), models.ProductionContext{})
	require.NotNil(t, tr.Opened)
	assert.Equal(t, "unknown", tr.Opened.ReasonCode)

	// Fault bit shows up two cycles later.
	tr = d.Observe(eq, snapshotAt(4*time.Second, false, 8), models.ProductionContext{})
	require.NotNil(t, tr.Recategorized)
	assert.Equal(t, models.DowntimeUnplanned, tr.Recategorized.Category)
	assert.Equal(t, "overheat", tr.Recategorized.ReasonCode)

	// Same fault again must not re-emit a transition.
	tr = d.Observe(eq, snapshotAt(6*time.Second, false, 8), models.ProductionContext{})
	assert.Nil(t, tr.Recategorized)
}

func TestDetectorRecategorizesUnknownToChangeover(t *testing.T) {
	d := NewDetector(0, logger.NewTestLogger())
	eq := testEquipment()

	tr := d.Observe(eq, snapshotAt(0, false, 0), models.ProductionContext{})
	require.NotNil(t, tr.Opened)

	tr = d.Observe(eq, snapshotAt(2*time.Second, false, 0), models.ProductionContext{Changeover: true})
	require.NotNil(t, tr.Recategorized)
	assert.Equal(t, models.DowntimeChangeover, tr.Recategorized.Category)
}

func TestDetectorThresholdFiresExactlyOnce(t *testing.T) {
	d := NewDetector(5*time.Minute, logger.NewTestLogger())
	eq := testEquipment()

	tr := d.Observe(eq, snapshotAt(0, false, 0), models.ProductionContext{})
	require.NotNil(t, tr.Opened)
	assert.Nil(t, tr.ThresholdCrossed)

	tr = d.Observe(eq, snapshotAt(4*time.Minute, false, 0), models.ProductionContext{})
	assert.Nil(t, tr.ThresholdCrossed)

	tr = d.Observe(eq, snapshotAt(5*time.Minute, false, 0), models.ProductionContext{})
	require.NotNil(t, tr.ThresholdCrossed)
	assert.True(t, tr.ThresholdCrossed.AlertTriggered)

	// Threshold already fired for this event.
	tr = d.Observe(eq, snapshotAt(6*time.Minute, false, 0), models.ProductionContext{})
	assert.Nil(t, tr.ThresholdCrossed)

	// A new event after recovery gets its own trigger.
	d.Observe(eq, snapshotAt(7*time.Minute, true, 0), models.ProductionContext{})
	d.Observe(eq, snapshotAt(8*time.Minute, false, 0), models.ProductionContext{})

	tr = d.Observe(eq, snapshotAt(13*time.Minute, false, 0), models.ProductionContext{})
	require.NotNil(t, tr.ThresholdCrossed)
}

func TestDetectorPerEquipmentThresholdOverride(t *testing.T) {
	d := NewDetector(5*time.Minute, logger.NewTestLogger())
	eq := testEquipment()
	eq.DowntimeAlertThreshold = models.Duration(30 * time.Second)

	d.Observe(eq, snapshotAt(0, false, 0), models.ProductionContext{})

	tr := d.Observe(eq, snapshotAt(30*time.Second, false, 0), models.ProductionContext{})
	require.NotNil(t, tr.ThresholdCrossed)
}

func TestDetectorIsolatesEquipment(t *testing.T) {
	d := NewDetector(0, logger.NewTestLogger())

	eqA := testEquipment()
	eqB := testEquipment()
	eqB.ID = "press-02"

	snapB := snapshotAt(0, false, 0)
	snapB.EquipmentID = "press-02"

	d.Observe(eqA, snapshotAt(0, false, 0), models.ProductionContext{})
	d.Observe(eqB, snapB, models.ProductionContext{})

	assert.NotNil(t, d.OpenEvent("press-01"))
	assert.NotNil(t, d.OpenEvent("press-02"))

	// Recovery of one unit leaves the other's event open.
	d.Observe(eqA, snapshotAt(time.Minute, true, 0), models.ProductionContext{})

	assert.Nil(t, d.OpenEvent("press-01"))
	assert.NotNil(t, d.OpenEvent("press-02"))
	assert.Equal(t, models.DowntimeUnplanned, d.OpenCategory("press-02"))
}

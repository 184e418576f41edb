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
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/linepulse/linepulse/pkg/logger"
	"github.com/linepulse/linepulse/pkg/models"
)

type recordingNotifier struct {
	mu    sync.Mutex
	calls []string // audience per call
}

func (n *recordingNotifier) Notify(_ context.Context, _ *models.AlertEvent, audience string) error {
	n.mu.Lock()
	defer n.mu.Unlock()

	n.calls = append(n.calls, audience)

	return nil
}

func (n *recordingNotifier) audiences() []string {
	n.mu.Lock()
	defer n.mu.Unlock()

	out := make([]string, len(n.calls))
	copy(out, n.calls)

	return out
}

func newTestEngine(t *testing.T) (*Engine, *recordingNotifier, *time.Time) {
	t.Helper()

	cfg := Config{}
	require.NoError(t, cfg.Validate())

	notifier := &recordingNotifier{}
	engine := NewEngine(cfg, notifier, nil, logger.NewTestLogger())

	now := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)
	engine.SetNowFunc(func() time.Time { return now })

	return engine, notifier, &now
}

func downCondition() Condition {
	return Condition{
		EquipmentID: "press-01",
		LineID:      "line-a",
		Category:    models.AlertDowntime,
		Message:     "Press 01 down for over 5m (jam)",
	}
}

func TestRaiseCreatesOpenAlert(t *testing.T) {
	engine, notifier, _ := newTestEngine(t)

	alert, created := engine.Raise(context.Background(), downCondition())
	require.True(t, created)
	require.NotNil(t, alert)

	assert.Equal(t, models.AlertOpen, alert.Status)
	assert.Equal(t, models.PriorityHigh, alert.Priority)
	assert.Equal(t, 0, alert.EscalationLevel)
	assert.Equal(t, []string{"operators"}, notifier.audiences())
}

func TestRaiseDeduplicatesOpenAlert(t *testing.T) {
	engine, _, _ := newTestEngine(t)

	first, created := engine.Raise(context.Background(), downCondition())
	require.True(t, created)

	second, created := engine.Raise(context.Background(), downCondition())
	assert.False(t, created)
	require.NotNil(t, second)
	assert.Equal(t, first.ID, second.ID)

	assert.Len(t, engine.OpenAlerts(), 1)
}

func TestRaiseSuppressedInsideDedupWindow(t *testing.T) {
	engine, _, now := newTestEngine(t)

	ctx := context.Background()

	alert, _ := engine.Raise(ctx, downCondition())
	require.NoError(t, engine.Resolve(ctx, alert.ID))

	// Within the window the same condition stays suppressed.
	*now = now.Add(5 * time.Minute)

	suppressed, created := engine.Raise(ctx, downCondition())
	assert.False(t, created)
	assert.Nil(t, suppressed)

	// Past the window a fresh alert is allowed.
	*now = now.Add(6 * time.Minute)

	fresh, created := engine.Raise(ctx, downCondition())
	assert.True(t, created)
	assert.NotEqual(t, alert.ID, fresh.ID)
}

func TestEngineEvictsResolvedStateAfterDedupWindow(t *testing.T) {
	engine, _, now := newTestEngine(t)

	ctx := context.Background()

	alert, _ := engine.Raise(ctx, downCondition())
	require.NoError(t, engine.Resolve(ctx, alert.ID))

	// Inside the window the resolved record is retained for dedup.
	*now = now.Add(5 * time.Minute)

	_, created := engine.Raise(ctx, downCondition())
	assert.False(t, created)

	_, err := engine.Get(alert.ID)
	require.NoError(t, err)

	// Past the window the record is evicted; the condition raises fresh and
	// nothing resolved is retained.
	*now = now.Add(10 * time.Minute)

	fresh, created := engine.Raise(ctx, downCondition())
	require.True(t, created)
	assert.NotEqual(t, alert.ID, fresh.ID)

	_, err = engine.Get(alert.ID)
	assert.ErrorIs(t, err, ErrAlertNotFound)

	engine.mu.Lock()
	assert.Empty(t, engine.lastResolved)
	assert.Len(t, engine.alerts, 1)
	engine.mu.Unlock()
}

func TestDedupIsPerCategory(t *testing.T) {
	engine, _, _ := newTestEngine(t)

	ctx := context.Background()

	_, created := engine.Raise(ctx, downCondition())
	require.True(t, created)

	fault := downCondition()
	fault.Category = models.AlertEquipmentFault

	_, created = engine.Raise(ctx, fault)
	assert.True(t, created)
	assert.Len(t, engine.OpenAlerts(), 2)
}

func TestHighestPrecedence(t *testing.T) {
	conds := []Condition{
		{Category: models.AlertQuality},
		{Category: models.AlertSafety},
		{Category: models.AlertDowntime},
	}

	winner, ok := HighestPrecedence(conds)
	require.True(t, ok)
	assert.Equal(t, models.AlertSafety, winner.Category)

	winner, ok = HighestPrecedence([]Condition{{Category: models.AlertProcess}, {Category: models.AlertMaterial}})
	require.True(t, ok)
	assert.Equal(t, models.AlertMaterial, winner.Category)

	_, ok = HighestPrecedence(nil)
	assert.False(t, ok)
}

func TestPriorityClassification(t *testing.T) {
	tests := []struct {
		category models.AlertCategory
		want     models.AlertPriority
	}{
		{models.AlertSafety, models.PriorityCritical},
		{models.AlertEquipmentFault, models.PriorityHigh},
		{models.AlertDowntime, models.PriorityHigh},
		{models.AlertQuality, models.PriorityMedium},
		{models.AlertMaterial, models.PriorityMedium},
		{models.AlertProcess, models.PriorityLow},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, priorityFor(tt.category), string(tt.category))
	}
}

func TestStatusTransitionsAreMonotonic(t *testing.T) {
	engine, _, _ := newTestEngine(t)

	ctx := context.Background()

	alert, _ := engine.Raise(ctx, downCondition())

	require.NoError(t, engine.Acknowledge(ctx, alert.ID, "jdoe"))

	// Acknowledging twice fails.
	err := engine.Acknowledge(ctx, alert.ID, "jdoe")
	assert.ErrorIs(t, err, ErrNotAcknowledge)

	require.NoError(t, engine.Resolve(ctx, alert.ID))

	// Resolved is terminal.
	assert.ErrorIs(t, engine.Resolve(ctx, alert.ID), ErrAlertResolved)
	assert.ErrorIs(t, engine.Acknowledge(ctx, alert.ID, "jdoe"), ErrAlertResolved)

	got, err := engine.Get(alert.ID)
	require.NoError(t, err)
	assert.Equal(t, models.AlertResolved, got.Status)
	assert.Equal(t, "jdoe", got.AcknowledgedBy)
	assert.NotNil(t, got.AcknowledgedAt)
	assert.NotNil(t, got.ResolvedAt)
}

func TestOpenToResolvedSkipsAcknowledged(t *testing.T) {
	engine, _, _ := newTestEngine(t)

	ctx := context.Background()

	alert, _ := engine.Raise(ctx, downCondition())
	require.NoError(t, engine.Resolve(ctx, alert.ID))

	got, err := engine.Get(alert.ID)
	require.NoError(t, err)
	assert.Equal(t, models.AlertResolved, got.Status)
	assert.Nil(t, got.AcknowledgedAt)
}

func TestUnknownAlert(t *testing.T) {
	engine, _, _ := newTestEngine(t)

	ctx := context.Background()

	assert.ErrorIs(t, engine.Acknowledge(ctx, "missing", "jdoe"), ErrAlertNotFound)
	assert.ErrorIs(t, engine.Resolve(ctx, "missing"), ErrAlertNotFound)

	_, err := engine.Get("missing")
	assert.ErrorIs(t, err, ErrAlertNotFound)
}

func TestEscalationAdvancesOverdueAlerts(t *testing.T) {
	engine, notifier, now := newTestEngine(t)

	ctx := context.Background()

	alert, _ := engine.Raise(ctx, downCondition())

	// High priority target is 15 minutes; not overdue yet.
	*now = now.Add(10 * time.Minute)
	assert.Empty(t, engine.CheckEscalations(ctx))

	*now = now.Add(6 * time.Minute)

	escalated := engine.CheckEscalations(ctx)
	require.Len(t, escalated, 1)
	assert.Equal(t, 1, escalated[0].EscalationLevel)

	// Second sweep right away does nothing; the escalation clock restarted.
	assert.Empty(t, engine.CheckEscalations(ctx))

	*now = now.Add(16 * time.Minute)

	escalated = engine.CheckEscalations(ctx)
	require.Len(t, escalated, 1)
	assert.Equal(t, 2, escalated[0].EscalationLevel)

	// operators on create, supervisors then plant management on escalation.
	assert.Equal(t, []string{"operators", "supervisors", "plant_management"}, notifier.audiences())

	got, err := engine.Get(alert.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, got.EscalationLevel)
}

func TestAcknowledgedAlertsDoNotEscalate(t *testing.T) {
	engine, _, now := newTestEngine(t)

	ctx := context.Background()

	alert, _ := engine.Raise(ctx, downCondition())
	require.NoError(t, engine.Acknowledge(ctx, alert.ID, "jdoe"))

	*now = now.Add(2 * time.Hour)

	assert.Empty(t, engine.CheckEscalations(ctx))
}

func TestResolveCategory(t *testing.T) {
	engine, _, _ := newTestEngine(t)

	ctx := context.Background()

	alert, _ := engine.Raise(ctx, downCondition())

	require.NoError(t, engine.ResolveCategory(ctx, "press-01", models.AlertDowntime))

	got, err := engine.Get(alert.ID)
	require.NoError(t, err)
	assert.Equal(t, models.AlertResolved, got.Status)

	// Resolving an absent category is a no-op.
	assert.NoError(t, engine.ResolveCategory(ctx, "press-01", models.AlertSafety))
}

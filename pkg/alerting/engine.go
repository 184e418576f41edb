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

// Package alerting converts abnormal conditions into deduplicated alert
// records and drives their escalation until acknowledged or resolved.
package alerting

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/linepulse/linepulse/pkg/logger"
	"github.com/linepulse/linepulse/pkg/models"
)

var (
	ErrAlertNotFound  = errors.New("alert not found")
	ErrAlertResolved  = errors.New("alert already resolved")
	ErrNotAcknowledge = errors.New("alert cannot be acknowledged in its current status")
)

// Condition is one abnormal observation handed to the engine.
type Condition struct {
	EquipmentID string
	LineID      string
	Category    models.AlertCategory
	Message     string
}

// Notifier delivers a notification request for an alert to an audience.
// Delivery failures are the notification collaborator's problem; the engine
// records escalation state regardless.
type Notifier interface {
	Notify(ctx context.Context, alert *models.AlertEvent, audience string) error
}

// Sink receives alert transitions (create, escalate, acknowledge, resolve)
// for fan-out and history. Implementations must not block.
type Sink interface {
	AlertTransition(alert *models.AlertEvent)
}

// categoryPrecedence orders co-occurring conditions: safety beats equipment
// faults, which beat downtime, quality, material and process issues.
var categoryPrecedence = []models.AlertCategory{
	models.AlertSafety,
	models.AlertEquipmentFault,
	models.AlertDowntime,
	models.AlertQuality,
	models.AlertMaterial,
	models.AlertProcess,
}

// HighestPrecedence picks the condition to raise when several co-occur in
// one cycle. Returns false when conds is empty.
func HighestPrecedence(conds []Condition) (Condition, bool) {
	for _, cat := range categoryPrecedence {
		for _, cond := range conds {
			if cond.Category == cat {
				return cond, true
			}
		}
	}

	if len(conds) > 0 {
		return conds[0], true
	}

	return Condition{}, false
}

// priorityFor maps a category to its default priority.
func priorityFor(category models.AlertCategory) models.AlertPriority {
	switch category {
	case models.AlertSafety:
		return models.PriorityCritical
	case models.AlertEquipmentFault, models.AlertDowntime:
		return models.PriorityHigh
	case models.AlertQuality, models.AlertMaterial:
		return models.PriorityMedium
	default:
		return models.PriorityLow
	}
}

type dedupKey struct {
	equipmentID string
	category    models.AlertCategory
}

// Engine owns alert records and their state machine.
type Engine struct {
	cfg      Config
	notifier Notifier
	sink     Sink
	nowFn    func() time.Time
	logger   logger.Logger

	mu           sync.Mutex
	alerts       map[string]*models.AlertEvent
	openByKey    map[dedupKey]string
	lastResolved map[dedupKey]time.Time
}

// NewEngine creates an alert engine. sink may be nil.
func NewEngine(cfg Config, notifier Notifier, sink Sink, log logger.Logger) *Engine {
	return &Engine{
		cfg:          cfg,
		notifier:     notifier,
		sink:         sink,
		nowFn:        time.Now,
		logger:       log,
		alerts:       make(map[string]*models.AlertEvent),
		openByKey:    make(map[dedupKey]string),
		lastResolved: make(map[dedupKey]time.Time),
	}
}

// Raise creates an alert for cond unless an open alert of the same category
// already exists for the equipment, or one was resolved within the cooldown
// window. Returns the governing alert and whether it was newly created.
func (e *Engine) Raise(ctx context.Context, cond Condition) (*models.AlertEvent, bool) {
	now := e.nowFn()
	key := dedupKey{equipmentID: cond.EquipmentID, category: cond.Category}

	e.mu.Lock()

	e.prune(now)

	if id, ok := e.openByKey[key]; ok {
		alert := copyAlert(e.alerts[id])
		e.mu.Unlock()

		return alert, false
	}

	if resolvedAt, ok := e.lastResolved[key]; ok && now.Sub(resolvedAt) < time.Duration(e.cfg.DedupWindow) {
		e.mu.Unlock()

		e.logger.Debug().
			Str("equipment_id", cond.EquipmentID).
			Str("category", string(cond.Category)).
			Msg("Alert suppressed inside dedup window")

		return nil, false
	}

	alert := &models.AlertEvent{
		ID:          uuid.New().String(),
		EquipmentID: cond.EquipmentID,
		LineID:      cond.LineID,
		Category:    cond.Category,
		Priority:    priorityFor(cond.Category),
		Status:      models.AlertOpen,
		Message:     cond.Message,
		CreatedAt:   now,
	}

	e.alerts[alert.ID] = alert
	e.openByKey[key] = alert.ID

	out := copyAlert(alert)

	e.mu.Unlock()

	e.logger.Info().
		Str("alert_id", out.ID).
		Str("equipment_id", out.EquipmentID).
		Str("category", string(out.Category)).
		Str("priority", string(out.Priority)).
		Msg("Alert created")

	e.notify(ctx, out)
	e.emit(out)

	return out, true
}

// Acknowledge moves an open alert to acknowledged, which stops escalation.
func (e *Engine) Acknowledge(_ context.Context, alertID, by string) error {
	now := e.nowFn()

	e.mu.Lock()

	alert, ok := e.alerts[alertID]
	if !ok {
		e.mu.Unlock()
		return ErrAlertNotFound
	}

	switch alert.Status {
	case models.AlertResolved:
		e.mu.Unlock()
		return ErrAlertResolved
	case models.AlertAcknowledged:
		e.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrNotAcknowledge, alert.Status)
	case models.AlertOpen:
	}

	alert.Status = models.AlertAcknowledged
	alert.AcknowledgedAt = &now
	alert.AcknowledgedBy = by

	out := copyAlert(alert)

	e.mu.Unlock()

	e.logger.Info().
		Str("alert_id", alertID).
		Str("acknowledged_by", by).
		Msg("Alert acknowledged")

	e.emit(out)

	return nil
}

// Resolve terminates an alert. Resolved is terminal; resolving twice fails.
func (e *Engine) Resolve(_ context.Context, alertID string) error {
	now := e.nowFn()

	e.mu.Lock()

	alert, ok := e.alerts[alertID]
	if !ok {
		e.mu.Unlock()
		return ErrAlertNotFound
	}

	if alert.Status == models.AlertResolved {
		e.mu.Unlock()
		return ErrAlertResolved
	}

	alert.Status = models.AlertResolved
	alert.ResolvedAt = &now

	key := dedupKey{equipmentID: alert.EquipmentID, category: alert.Category}
	delete(e.openByKey, key)
	e.lastResolved[key] = now

	out := copyAlert(alert)

	e.mu.Unlock()

	e.logger.Info().
		Str("alert_id", alertID).
		Msg("Alert resolved")

	e.emit(out)

	return nil
}

// ResolveCategory resolves the open alert for (equipmentID, category), if
// any. Used when the underlying condition clears on its own.
func (e *Engine) ResolveCategory(ctx context.Context, equipmentID string, category models.AlertCategory) error {
	key := dedupKey{equipmentID: equipmentID, category: category}

	e.mu.Lock()
	id, ok := e.openByKey[key]
	e.mu.Unlock()

	if !ok {
		return nil
	}

	return e.Resolve(ctx, id)
}

// Get returns a copy of one alert.
func (e *Engine) Get(alertID string) (*models.AlertEvent, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	alert, ok := e.alerts[alertID]
	if !ok {
		return nil, ErrAlertNotFound
	}

	return copyAlert(alert), nil
}

// OpenAlerts returns copies of all alerts that are not yet resolved.
func (e *Engine) OpenAlerts() []*models.AlertEvent {
	e.mu.Lock()
	defer e.mu.Unlock()

	out := make([]*models.AlertEvent, 0, len(e.openByKey))

	for _, id := range e.openByKey {
		out = append(out, copyAlert(e.alerts[id]))
	}

	return out
}

// CheckEscalations advances the escalation level of every open,
// unacknowledged alert whose age since the last escalation (or creation)
// exceeds its priority's response-time target. Each escalated alert is
// re-notified. Returns copies of the escalated alerts.
func (e *Engine) CheckEscalations(ctx context.Context) []*models.AlertEvent {
	now := e.nowFn()

	e.mu.Lock()

	e.prune(now)

	var escalated []*models.AlertEvent

	for _, id := range e.openByKey {
		alert := e.alerts[id]
		if alert.Status != models.AlertOpen {
			continue
		}

		if e.cfg.MaxEscalationLevel > 0 && alert.EscalationLevel >= e.cfg.MaxEscalationLevel {
			continue
		}

		target := e.cfg.responseTarget(alert.Priority)

		since := alert.CreatedAt
		if alert.LastEscalatedAt != nil {
			since = *alert.LastEscalatedAt
		}

		if now.Sub(since) < target {
			continue
		}

		alert.EscalationLevel++
		ts := now
		alert.LastEscalatedAt = &ts

		escalated = append(escalated, copyAlert(alert))
	}

	e.mu.Unlock()

	for _, alert := range escalated {
		e.logger.Warn().
			Str("alert_id", alert.ID).
			Str("equipment_id", alert.EquipmentID).
			Int("escalation_level", alert.EscalationLevel).
			Msg("Alert escalated")

		e.notify(ctx, alert)
		e.emit(alert)
	}

	return escalated
}

// prune drops resolved alerts and resolution timestamps that have aged out
// of the dedup window; they can no longer influence dedup decisions, and the
// daemon must not accumulate them indefinitely. Callers hold e.mu.
func (e *Engine) prune(now time.Time) {
	window := time.Duration(e.cfg.DedupWindow)

	for key, resolvedAt := range e.lastResolved {
		if now.Sub(resolvedAt) >= window {
			delete(e.lastResolved, key)
		}
	}

	for id, alert := range e.alerts {
		if alert.Status != models.AlertResolved {
			continue
		}

		if alert.ResolvedAt == nil || now.Sub(*alert.ResolvedAt) >= window {
			delete(e.alerts, id)
		}
	}
}

// SetNowFunc overrides the clock, for tests.
func (e *Engine) SetNowFunc(fn func() time.Time) {
	e.nowFn = fn
}

func (e *Engine) notify(ctx context.Context, alert *models.AlertEvent) {
	if e.notifier == nil {
		return
	}

	audience := e.cfg.audienceFor(alert.EscalationLevel)

	if err := e.notifier.Notify(ctx, alert, audience); err != nil {
		// The notification collaborator retries delivery; escalation state is
		// already recorded, so the engine does not re-trigger.
		e.logger.Error().
			Err(err).
			Str("alert_id", alert.ID).
			Str("audience", audience).
			Msg("Notification request failed")
	}
}

func (e *Engine) emit(alert *models.AlertEvent) {
	if e.sink != nil {
		e.sink.AlertTransition(alert)
	}
}

func copyAlert(alert *models.AlertEvent) *models.AlertEvent {
	cp := *alert

	if alert.LastEscalatedAt != nil {
		t := *alert.LastEscalatedAt
		cp.LastEscalatedAt = &t
	}

	if alert.AcknowledgedAt != nil {
		t := *alert.AcknowledgedAt
		cp.AcknowledgedAt = &t
	}

	if alert.ResolvedAt != nil {
		t := *alert.ResolvedAt
		cp.ResolvedAt = &t
	}

	return &cp
}

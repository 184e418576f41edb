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

package broadcast

import (
	"errors"
	"sync"

	"github.com/linepulse/linepulse/pkg/logger"
	"github.com/linepulse/linepulse/pkg/models"
)

var (
	ErrUnknownSubscriber = errors.New("unknown subscriber")
	ErrInvalidTopic      = errors.New("invalid topic")
)

// Sink delivers one update to a subscriber. Implementations must not block;
// a sink that cannot keep up returns an error and is dropped.
type Sink interface {
	Send(u Update) error
}

// Resolver maps an equipment ID to its line ID for line-topic matching.
type Resolver func(equipmentID string) (lineID string, ok bool)

type subscriber struct {
	sink   Sink
	topics map[models.Topic]struct{}
}

// Manager tracks subscribers and routes each update to the connections whose
// topics match. Topic indexes are kept per dimension so a broadcast touches
// only matching subscribers, not the whole registry.
type Manager struct {
	resolver Resolver
	logger   logger.Logger

	mu          sync.RWMutex
	subscribers map[string]*subscriber
	byEquipment map[string]map[string]struct{}
	byLine      map[string]map[string]struct{}
	byCategory  map[string]map[string]struct{}
	allTopic    map[string]struct{}
}

// NewManager creates an empty subscription manager. resolver may be nil when
// line topics are not used.
func NewManager(resolver Resolver, log logger.Logger) *Manager {
	return &Manager{
		resolver:    resolver,
		logger:      log,
		subscribers: make(map[string]*subscriber),
		byEquipment: make(map[string]map[string]struct{}),
		byLine:      make(map[string]map[string]struct{}),
		byCategory:  make(map[string]map[string]struct{}),
		allTopic:    make(map[string]struct{}),
	}
}

// Register adds a connection with no subscriptions yet.
func (m *Manager) Register(id string, sink Sink) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.subscribers[id] = &subscriber{
		sink:   sink,
		topics: make(map[models.Topic]struct{}),
	}

	m.logger.Debug().
		Str("subscriber_id", id).
		Int("total", len(m.subscribers)).
		Msg("Subscriber registered")
}

// Unregister removes a connection and all of its subscriptions.
func (m *Manager) Unregister(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.removeLocked(id)
}

func (m *Manager) removeLocked(id string) {
	sub, ok := m.subscribers[id]
	if !ok {
		return
	}

	for topic := range sub.topics {
		m.dropIndexLocked(id, topic)
	}

	delete(m.subscribers, id)

	m.logger.Debug().
		Str("subscriber_id", id).
		Int("total", len(m.subscribers)).
		Msg("Subscriber removed")
}

// Subscribe adds one topic for a connection. Subscribing twice to the same
// topic is a no-op.
func (m *Manager) Subscribe(id string, topic models.Topic) error {
	if !topic.Valid() {
		return ErrInvalidTopic
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	sub, ok := m.subscribers[id]
	if !ok {
		return ErrUnknownSubscriber
	}

	if _, ok := sub.topics[topic]; ok {
		return nil
	}

	sub.topics[topic] = struct{}{}

	switch topic.Type {
	case models.TopicEquipment:
		addIndex(m.byEquipment, topic.Value, id)
	case models.TopicLine:
		addIndex(m.byLine, topic.Value, id)
	case models.TopicCategory:
		addIndex(m.byCategory, topic.Value, id)
	case models.TopicAll:
		m.allTopic[id] = struct{}{}
	}

	return nil
}

// Unsubscribe removes one topic from a connection.
func (m *Manager) Unsubscribe(id string, topic models.Topic) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	sub, ok := m.subscribers[id]
	if !ok {
		return ErrUnknownSubscriber
	}

	if _, ok := sub.topics[topic]; !ok {
		return nil
	}

	delete(sub.topics, topic)
	m.dropIndexLocked(id, topic)

	return nil
}

func (m *Manager) dropIndexLocked(id string, topic models.Topic) {
	switch topic.Type {
	case models.TopicEquipment:
		dropIndex(m.byEquipment, topic.Value, id)
	case models.TopicLine:
		dropIndex(m.byLine, topic.Value, id)
	case models.TopicCategory:
		dropIndex(m.byCategory, topic.Value, id)
	case models.TopicAll:
		delete(m.allTopic, id)
	}
}

// Broadcast routes one update to every matching subscriber. Subscribers whose
// sink rejects the update (slow consumers) are dropped from the registry.
func (m *Manager) Broadcast(u Update) {
	m.mu.RLock()

	targets := make(map[string]Sink)

	collect := func(ids map[string]struct{}) {
		for id := range ids {
			if sub, ok := m.subscribers[id]; ok {
				targets[id] = sub.sink
			}
		}
	}

	collect(m.allTopic)
	collect(m.byEquipment[u.EquipmentID])

	if u.LineID != "" {
		collect(m.byLine[u.LineID])
	} else if m.resolver != nil {
		if lineID, ok := m.resolver(u.EquipmentID); ok {
			collect(m.byLine[lineID])
		}
	}

	if u.Category != "" {
		collect(m.byCategory[u.Category])
	}

	m.mu.RUnlock()

	var slow []string

	for id, sink := range targets {
		if err := sink.Send(u); err != nil {
			m.logger.Warn().
				Err(err).
				Str("subscriber_id", id).
				Str("kind", string(u.Kind)).
				Msg("Dropping slow subscriber")

			slow = append(slow, id)
		}
	}

	if len(slow) > 0 {
		m.mu.Lock()

		for _, id := range slow {
			m.removeLocked(id)
		}

		m.mu.Unlock()
	}
}

// SubscriberCount returns the number of registered connections.
func (m *Manager) SubscriberCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return len(m.subscribers)
}

// Topics returns a copy of one connection's active subscriptions.
func (m *Manager) Topics(id string) []models.Topic {
	m.mu.RLock()
	defer m.mu.RUnlock()

	sub, ok := m.subscribers[id]
	if !ok {
		return nil
	}

	out := make([]models.Topic, 0, len(sub.topics))

	for topic := range sub.topics {
		out = append(out, topic)
	}

	return out
}

func addIndex(idx map[string]map[string]struct{}, key, id string) {
	set, ok := idx[key]
	if !ok {
		set = make(map[string]struct{})
		idx[key] = set
	}

	set[id] = struct{}{}
}

func dropIndex(idx map[string]map[string]struct{}, key, id string) {
	if set, ok := idx[key]; ok {
		delete(set, id)

		if len(set) == 0 {
			delete(idx, key)
		}
	}
}

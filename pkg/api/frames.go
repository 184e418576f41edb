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

package api

import (
	"time"

	"github.com/linepulse/linepulse/pkg/broadcast"
	"github.com/linepulse/linepulse/pkg/models"
)

// Client actions.
const (
	actionSubscribe   = "subscribe"
	actionUnsubscribe = "unsubscribe"
	actionAcknowledge = "acknowledge"
	actionResolve     = "resolve"
	actionPing        = "ping"
)

// Server frame types.
const (
	frameTypeAck    = "ack"
	frameTypeError  = "error"
	frameTypePong   = "pong"
	frameTypeUpdate = "update"
	frameTypePing   = "ping"
)

// topicFrame is the wire form of a subscription topic.
type topicFrame struct {
	Type  models.TopicType `json:"type"`
	Value string           `json:"value,omitempty"`
}

// clientFrame is one inbound message from a dashboard connection.
type clientFrame struct {
	Action  string     `json:"action"`
	Topic   topicFrame `json:"topic,omitempty"`
	AlertID string     `json:"alert_id,omitempty"`
	By      string     `json:"by,omitempty"`
}

// serverFrame is one outbound message to a dashboard connection.
type serverFrame struct {
	Type      string            `json:"type"`
	Action    string            `json:"action,omitempty"`
	Topic     *topicFrame       `json:"topic,omitempty"`
	Error     string            `json:"error,omitempty"`
	Update    *broadcast.Update `json:"update,omitempty"`
	Timestamp time.Time         `json:"timestamp"`
}

func ackFrame(action string, topic models.Topic) serverFrame {
	frame := serverFrame{
		Type:      frameTypeAck,
		Action:    action,
		Timestamp: time.Now(),
	}

	if topic.Type != "" {
		frame.Topic = &topicFrame{Type: topic.Type, Value: topic.Value}
	}

	return frame
}

func errorFrame(action string, err error) serverFrame {
	return serverFrame{
		Type:      frameTypeError,
		Action:    action,
		Error:     err.Error(),
		Timestamp: time.Now(),
	}
}

func updateFrame(u broadcast.Update) serverFrame {
	return serverFrame{
		Type:      frameTypeUpdate,
		Update:    &u,
		Timestamp: time.Now(),
	}
}

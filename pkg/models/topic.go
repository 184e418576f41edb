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

// TopicType is the kind of subscription key used to filter broadcast delivery.
type TopicType string

const (
	TopicEquipment TopicType = "equipment"
	TopicLine      TopicType = "line"
	TopicCategory  TopicType = "category"
	TopicAll       TopicType = "all"
)

// Topic is one subscription key.
type Topic struct {
	Type  TopicType `json:"type"`
	Value string    `json:"value,omitempty"` // empty for "all"
}

// Valid reports whether the topic type is one of the known kinds and the
// value is present where one is required.
func (t Topic) Valid() bool {
	switch t.Type {
	case TopicAll:
		return true
	case TopicEquipment, TopicLine, TopicCategory:
		return t.Value != ""
	default:
		return false
	}
}

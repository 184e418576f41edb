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

package device

import (
	"context"
	"time"
)

const (
	defaultMaxAttempts = 3
	defaultBaseDelay   = 250 * time.Millisecond
	defaultMaxDelay    = 5 * time.Second
)

// Retrier applies bounded exponential backoff to device operations.
// After MaxAttempts failures the equipment is reported unreachable for the
// cycle via UnreachableError; recovery happens naturally on the next cycle.
type Retrier struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
}

// NewRetrier creates a Retrier, applying defaults for zero fields.
func NewRetrier(maxAttempts int, baseDelay, maxDelay time.Duration) *Retrier {
	if maxAttempts <= 0 {
		maxAttempts = defaultMaxAttempts
	}

	if baseDelay <= 0 {
		baseDelay = defaultBaseDelay
	}

	if maxDelay <= 0 {
		maxDelay = defaultMaxDelay
	}

	return &Retrier{MaxAttempts: maxAttempts, BaseDelay: baseDelay, MaxDelay: maxDelay}
}

// Do runs fn up to MaxAttempts times, backing off exponentially between
// transient failures. Non-transient errors abort immediately.
func (r *Retrier) Do(ctx context.Context, equipmentID string, fn func(ctx context.Context) error) error {
	delay := r.BaseDelay

	var lastErr error

	for attempt := 1; attempt <= r.MaxAttempts; attempt++ {
		lastErr = fn(ctx)
		if lastErr == nil {
			return nil
		}

		if !IsTransient(lastErr) {
			return lastErr
		}

		if attempt == r.MaxAttempts {
			break
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}

		delay *= 2
		if delay > r.MaxDelay {
			delay = r.MaxDelay
		}
	}

	return &UnreachableError{
		EquipmentID: equipmentID,
		Attempts:    r.MaxAttempts,
		Err:         lastErr,
	}
}

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
	"errors"
	"fmt"
	"net"
	"strings"
)

var (
	ErrUnknownRegister = errors.New("unknown register name")
	ErrNotConnected    = errors.New("device not connected")
)

// UnreachableError marks an equipment unit unreachable for the current cycle
// after connect/read retries were exhausted.
type UnreachableError struct {
	EquipmentID string
	Attempts    int
	Err         error
}

func (e *UnreachableError) Error() string {
	return fmt.Sprintf("equipment %s unreachable after %d attempts: %v", e.EquipmentID, e.Attempts, e.Err)
}

func (e *UnreachableError) Unwrap() error {
	return e.Err
}

// IsUnreachable reports whether err marks equipment as unreachable.
func IsUnreachable(err error) bool {
	var ue *UnreachableError
	return errors.As(err, &ue)
}

// IsTransient reports whether err looks like a transient device error worth
// retrying: timeouts, refused or dropped connections.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	msg := err.Error()

	return strings.Contains(msg, "connection refused") ||
		strings.Contains(msg, "connection reset") ||
		strings.Contains(msg, "i/o timeout") ||
		strings.Contains(msg, "request timeout")
}

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

// Package device provides uniform read/write access to named registers on
// equipment controllers. The wire protocol is a driver capability; the rest
// of the core only sees named registers.
package device

import (
	"context"

	"github.com/linepulse/linepulse/pkg/models"
)

// Handle is an open connection to one equipment controller.
type Handle interface {
	// ReadBatch reads the named registers in one round trip.
	ReadBatch(ctx context.Context, names []string) (map[string]float64, error)
	// WriteOne writes a single named register.
	WriteOne(ctx context.Context, name string, value float64) error
	// Close releases the connection. Safe to call more than once.
	Close() error
}

// Driver connects to equipment controllers. Connect must be safe to call
// repeatedly after failure.
type Driver interface {
	Connect(ctx context.Context, eq *models.Equipment) (Handle, error)
}

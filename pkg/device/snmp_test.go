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
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/linepulse/linepulse/pkg/logger"
	"github.com/linepulse/linepulse/pkg/models"
)

func testSNMPEquipment() *models.Equipment {
	return &models.Equipment{
		ID: "press-01",
		Device: models.DeviceConfig{
			Address:   "127.0.0.1",
			Community: "public",
			Registers: map[string]string{
				models.RegisterRunStatus: ".1.3.6.1.4.1.52420.1.1.0",
				models.RegisterSpeed:     ".1.3.6.1.4.1.52420.1.2.0",
			},
		},
	}
}

func TestSNMPDriverConnect(t *testing.T) {
	d := NewSNMPDriver(time.Second, logger.NewTestLogger())

	// UDP sessions open without a responding agent.
	h, err := d.Connect(context.Background(), testSNMPEquipment())
	require.NoError(t, err)
	require.NotNil(t, h)

	assert.NoError(t, h.Close())
	assert.NoError(t, h.Close(), "closing twice is a no-op")
}

func TestSNMPHandleRejectsUnknownRegister(t *testing.T) {
	d := NewSNMPDriver(time.Second, logger.NewTestLogger())

	h, err := d.Connect(context.Background(), testSNMPEquipment())
	require.NoError(t, err)

	defer h.Close()

	// Unknown names are rejected before any wire traffic.
	_, err = h.ReadBatch(context.Background(), []string{"pressure"})
	assert.ErrorIs(t, err, ErrUnknownRegister)

	err = h.WriteOne(context.Background(), "pressure", 1)
	assert.ErrorIs(t, err, ErrUnknownRegister)
}

func TestSNMPHandleRejectsUseAfterClose(t *testing.T) {
	d := NewSNMPDriver(time.Second, logger.NewTestLogger())

	h, err := d.Connect(context.Background(), testSNMPEquipment())
	require.NoError(t, err)
	require.NoError(t, h.Close())

	_, err = h.ReadBatch(context.Background(), []string{models.RegisterRunStatus})
	assert.ErrorIs(t, err, ErrNotConnected)

	err = h.WriteOne(context.Background(), models.RegisterRunStatus, 1)
	assert.ErrorIs(t, err, ErrNotConnected)
}

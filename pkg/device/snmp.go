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
	"fmt"
	"sync"
	"time"

	"github.com/gosnmp/gosnmp"
	"github.com/linepulse/linepulse/pkg/logger"
	"github.com/linepulse/linepulse/pkg/models"
)

const (
	defaultSNMPPort    = 161
	defaultSNMPTimeout = 5 * time.Second
	defaultSNMPRetries = 1
)

// SNMPDriver implements Driver for controllers exposing registers as OIDs.
type SNMPDriver struct {
	timeout time.Duration
	logger  logger.Logger
}

// NewSNMPDriver creates an SNMP register driver. A zero timeout uses the default.
func NewSNMPDriver(timeout time.Duration, log logger.Logger) *SNMPDriver {
	if timeout == 0 {
		timeout = defaultSNMPTimeout
	}

	return &SNMPDriver{timeout: timeout, logger: log}
}

// Connect opens an SNMP session to the equipment controller.
func (d *SNMPDriver) Connect(_ context.Context, eq *models.Equipment) (Handle, error) {
	port := eq.Device.Port
	if port == 0 {
		port = defaultSNMPPort
	}

	client := &gosnmp.GoSNMP{
		Target:             eq.Device.Address,
		Port:               port,
		Version:            gosnmp.Version2c,
		Community:          eq.Device.Community,
		Timeout:            d.timeout,
		Retries:            defaultSNMPRetries,
		MaxOids:            gosnmp.MaxOids,
		ExponentialTimeout: true,
	}

	if err := client.Connect(); err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", eq.Device.Address, err)
	}

	d.logger.Debug().
		Str("equipment_id", eq.ID).
		Str("address", eq.Device.Address).
		Msg("Opened SNMP session")

	return &snmpHandle{
		client:    client,
		registers: eq.Device.Registers,
	}, nil
}

// snmpHandle is an open SNMP session plus the register name -> OID mapping.
type snmpHandle struct {
	mu        sync.Mutex
	client    *gosnmp.GoSNMP
	registers map[string]string
	closed    bool
}

var _ Handle = (*snmpHandle)(nil)

func (h *snmpHandle) ReadBatch(_ context.Context, names []string) (map[string]float64, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return nil, ErrNotConnected
	}

	oids := make([]string, 0, len(names))
	byOID := make(map[string]string, len(names))

	for _, name := range names {
		oid, ok := h.registers[name]
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrUnknownRegister, name)
		}

		oids = append(oids, oid)
		byOID[oid] = name
	}

	packet, err := h.client.Get(oids)
	if err != nil {
		return nil, fmt.Errorf("batch read failed: %w", err)
	}

	values := make(map[string]float64, len(packet.Variables))

	for _, pdu := range packet.Variables {
		name, ok := byOID[pdu.Name]
		if !ok {
			continue
		}

		values[name] = pduToFloat(pdu)
	}

	return values, nil
}

func (h *snmpHandle) WriteOne(_ context.Context, name string, value float64) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return ErrNotConnected
	}

	oid, ok := h.registers[name]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownRegister, name)
	}

	pdu := gosnmp.SnmpPDU{
		Name:  oid,
		Type:  gosnmp.Integer,
		Value: int(value),
	}

	if _, err := h.client.Set([]gosnmp.SnmpPDU{pdu}); err != nil {
		return fmt.Errorf("write of %s failed: %w", name, err)
	}

	return nil
}

func (h *snmpHandle) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return nil
	}

	h.closed = true

	if h.client.Conn != nil {
		return h.client.Conn.Close()
	}

	return nil
}

// pduToFloat converts an SNMP variable to a float64 register value.
func pduToFloat(pdu gosnmp.SnmpPDU) float64 {
	switch pdu.Type {
	case gosnmp.OpaqueFloat:
		if f, ok := pdu.Value.(float32); ok {
			return float64(f)
		}
	case gosnmp.OpaqueDouble:
		if f, ok := pdu.Value.(float64); ok {
			return f
		}
	default:
	}

	return float64(gosnmp.ToBigInt(pdu.Value).Int64())
}

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
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/linepulse/linepulse/pkg/broadcast"
)

const (
	keepaliveInterval = 30 * time.Second
	readDeadline      = 60 * time.Second
)

var errSendBufferFull = errors.New("send buffer full")

// connSink buffers outbound frames for one connection. Send never blocks;
// when the buffer is full the connection is a slow consumer and the
// subscription manager drops it.
type connSink struct {
	frames chan serverFrame
}

func newConnSink(buffer int) *connSink {
	return &connSink{frames: make(chan serverFrame, buffer)}
}

// Send implements broadcast.Sink.
func (c *connSink) Send(u broadcast.Update) error {
	select {
	case c.frames <- updateFrame(u):
		return nil
	default:
		return errSendBufferFull
	}
}

func (c *connSink) push(frame serverFrame) error {
	select {
	case c.frames <- frame:
		return nil
	default:
		return errSendBufferFull
	}
}

// handleStream upgrades the connection first and authenticates afterwards so
// auth failures surface as a WebSocket error frame instead of breaking the
// handshake.
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	upgrader := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     s.checkOrigin,
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error().
			Err(err).
			Str("remote_addr", r.RemoteAddr).
			Msg("Failed to upgrade to WebSocket")

		return
	}
	defer conn.Close()

	if !s.isAPIKeyValid(r.Header.Get("X-API-Key")) {
		_ = conn.WriteJSON(errorFrame("", errors.New("authentication required")))
		return
	}

	connID := uuid.New().String()

	s.logger.Info().
		Str("conn_id", connID).
		Str("remote_addr", r.RemoteAddr).
		Msg("WebSocket connection established")

	sink := newConnSink(s.config.SendBuffer)

	s.manager.Register(connID, sink)
	defer s.manager.Unregister(connID)

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	go s.readLoop(ctx, conn, connID, sink, cancel)

	s.writeLoop(ctx, conn, connID, sink)
}

// readLoop consumes client frames, applying actions and detecting disconnects.
func (s *Server) readLoop(ctx context.Context, conn *websocket.Conn, connID string, sink *connSink, cancel context.CancelFunc) {
	defer cancel()

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		if err := conn.SetReadDeadline(time.Now().Add(readDeadline)); err != nil {
			s.logger.Warn().
				Err(err).
				Str("conn_id", connID).
				Msg("Failed to set read deadline")
		}

		_, message, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err,
				websocket.CloseGoingAway, websocket.CloseAbnormalClosure, websocket.CloseNormalClosure) {
				s.logger.Warn().
					Err(err).
					Str("conn_id", connID).
					Msg("Unexpected WebSocket close")
			} else {
				s.logger.Debug().
					Str("conn_id", connID).
					Msg("WebSocket connection closed")
			}

			return
		}

		var frame clientFrame

		if err := json.Unmarshal(message, &frame); err != nil {
			if pushErr := sink.push(errorFrame("", errors.New("malformed frame"))); pushErr != nil {
				return
			}

			continue
		}

		reply := s.handleAction(ctx, connID, &frame)

		if err := sink.push(reply); err != nil {
			s.logger.Warn().
				Str("conn_id", connID).
				Msg("Dropping connection with full send buffer")

			return
		}
	}
}

// writeLoop drains the sink to the socket and sends keepalive pings.
func (s *Server) writeLoop(ctx context.Context, conn *websocket.Conn, connID string, sink *connSink) {
	ticker := time.NewTicker(keepaliveInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return

		case frame := <-sink.frames:
			if err := conn.WriteJSON(frame); err != nil {
				s.logger.Debug().
					Err(err).
					Str("conn_id", connID).
					Msg("WebSocket write failed")

				return
			}

		case <-ticker.C:
			ping := serverFrame{Type: frameTypePing, Timestamp: time.Now()}

			if err := conn.WriteJSON(ping); err != nil {
				s.logger.Debug().
					Err(err).
					Str("conn_id", connID).
					Msg("WebSocket keepalive failed")

				return
			}
		}
	}
}

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

// Package api serves the live-update WebSocket endpoint dashboards connect to.
package api

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"github.com/linepulse/linepulse/pkg/broadcast"
	"github.com/linepulse/linepulse/pkg/logger"
	"github.com/linepulse/linepulse/pkg/models"
)

const (
	defaultListenAddr      = ":8090"
	defaultSendBuffer      = 64
	defaultShutdownTimeout = 10 * time.Second
)

// Config tunes the API server.
type Config struct {
	// ListenAddr is the HTTP listen address for the WebSocket endpoint.
	ListenAddr string `json:"listen_addr,omitempty"`

	// AllowedOrigins whitelists WebSocket origins; "*" allows any.
	AllowedOrigins []string `json:"allowed_origins,omitempty"`

	// SendBuffer is the per-connection outbound buffer; a connection whose
	// buffer fills is dropped as a slow consumer.
	SendBuffer int `json:"send_buffer,omitempty"`
}

// Validate applies defaults.
func (c *Config) Validate() error {
	if c.ListenAddr == "" {
		c.ListenAddr = defaultListenAddr
	}

	if c.SendBuffer <= 0 {
		c.SendBuffer = defaultSendBuffer
	}

	return nil
}

// AlertControl is the slice of the alert engine the API exposes.
type AlertControl interface {
	Acknowledge(ctx context.Context, alertID, by string) error
	Resolve(ctx context.Context, alertID string) error
}

// Server hosts the /api/stream WebSocket endpoint.
type Server struct {
	config     Config
	manager    *broadcast.Manager
	alerts     AlertControl
	httpServer *http.Server
	logger     logger.Logger
}

// NewServer creates the API server. alerts may be nil, disabling the
// acknowledge and resolve actions.
func NewServer(config Config, manager *broadcast.Manager, alerts AlertControl, log logger.Logger) *Server {
	return &Server{
		config:  config,
		manager: manager,
		alerts:  alerts,
		logger:  log,
	}
}

// Start implements lifecycle.Service.
func (s *Server) Start(_ context.Context) error {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/stream", s.handleStream)
	mux.HandleFunc("/healthz", s.handleHealth)

	s.httpServer = &http.Server{
		Addr:              s.config.ListenAddr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	s.logger.Info().
		Str("listen_addr", s.config.ListenAddr).
		Msg("Starting API server")

	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error().Err(err).Msg("API server failed")
		}
	}()

	return nil
}

// Stop implements lifecycle.Service.
func (s *Server) Stop(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, defaultShutdownTimeout)
	defer cancel()

	return s.httpServer.Shutdown(shutdownCtx)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"status":"ok"}`))
}

// isAPIKeyValid checks the provided key against the API_KEY environment
// variable. An empty configured key means authentication is not required.
func (s *Server) isAPIKeyValid(providedKey string) bool {
	configuredKey := os.Getenv("API_KEY")
	if configuredKey == "" {
		return true
	}

	return providedKey == configuredKey
}

func (s *Server) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}

	for _, allowed := range s.config.AllowedOrigins {
		if allowed == origin || allowed == "*" {
			return true
		}
	}

	s.logger.Warn().
		Str("origin", origin).
		Msg("WebSocket origin not allowed")

	return false
}

func (s *Server) handleAction(ctx context.Context, connID string, frame *clientFrame) serverFrame {
	switch frame.Action {
	case actionSubscribe:
		topic := models.Topic{Type: frame.Topic.Type, Value: frame.Topic.Value}

		if err := s.manager.Subscribe(connID, topic); err != nil {
			return errorFrame(frame.Action, err)
		}

		return ackFrame(frame.Action, topic)

	case actionUnsubscribe:
		topic := models.Topic{Type: frame.Topic.Type, Value: frame.Topic.Value}

		if err := s.manager.Unsubscribe(connID, topic); err != nil {
			return errorFrame(frame.Action, err)
		}

		return ackFrame(frame.Action, topic)

	case actionAcknowledge:
		if s.alerts == nil {
			return errorFrame(frame.Action, errAlertsDisabled)
		}

		if err := s.alerts.Acknowledge(ctx, frame.AlertID, frame.By); err != nil {
			return errorFrame(frame.Action, err)
		}

		return ackFrame(frame.Action, models.Topic{})

	case actionResolve:
		if s.alerts == nil {
			return errorFrame(frame.Action, errAlertsDisabled)
		}

		if err := s.alerts.Resolve(ctx, frame.AlertID); err != nil {
			return errorFrame(frame.Action, err)
		}

		return ackFrame(frame.Action, models.Topic{})

	case actionPing:
		return serverFrame{Type: frameTypePong, Timestamp: time.Now()}

	default:
		return errorFrame(frame.Action, errUnknownAction)
	}
}

var (
	errUnknownAction  = errors.New("unknown action")
	errAlertsDisabled = errors.New("alert actions not available")
)

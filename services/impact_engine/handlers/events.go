// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package handlers

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/AleutianAI/CarbonFrame/services/impact_engine/datatypes"
	"github.com/AleutianAI/CarbonFrame/services/impact_engine/run"
)

// Timing for event subscriber connections.
const (
	// writeWait bounds a single write to a subscriber socket.
	writeWait = 10 * time.Second

	// pongWait is how long a subscriber may stay silent before the
	// connection is considered dead.
	pongWait = 60 * time.Second

	// pingPeriod is the server ping interval. Must be shorter than
	// pongWait so pongs arrive before the read deadline expires.
	pingPeriod = (pongWait * 9) / 10

	// maxSubscriberMessageBytes caps inbound frames. The event feed is
	// one-way; subscribers send nothing beyond control frames.
	maxSubscriberMessageBytes = 512

	// subscriberQueueLen is the per-subscriber event buffer. A subscriber
	// that falls this far behind is disconnected rather than allowed to
	// stall a run.
	subscriberQueueLen = 32
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// eventClient is one connected event subscriber.
type eventClient struct {
	socket *websocket.Conn
	send   chan []byte
}

// EventHub fans run events out to every connected websocket subscriber.
//
// # Description
//
// The hub holds the subscriber set behind a mutex. Each subscriber owns
// a buffered send queue drained by its own write pump, so one slow
// consumer never blocks a broadcast or another subscriber.
//
// # Thread Safety
//
// All methods are safe for concurrent use.
type EventHub struct {
	mu      sync.Mutex
	clients map[*eventClient]bool
	logger  *slog.Logger
}

// NewEventHub creates an empty hub. A nil logger falls back to
// slog.Default().
func NewEventHub(logger *slog.Logger) *EventHub {
	if logger == nil {
		logger = slog.Default()
	}
	return &EventHub{
		clients: make(map[*eventClient]bool),
		logger:  logger,
	}
}

// Broadcast queues the event for every connected subscriber.
//
// Subscribers whose queue is full are disconnected. Marshal failures
// drop the event with a log entry; they never propagate to the run.
func (h *EventHub) Broadcast(event datatypes.RunEvent) {
	payload, err := json.Marshal(event)
	if err != nil {
		h.logger.Warn("Failed to marshal run event", "run_id", event.RunID, "error", err)
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for client := range h.clients {
		select {
		case client.send <- payload:
		default:
			delete(h.clients, client)
			close(client.send)
			h.logger.Warn("Disconnected slow event subscriber", "queue_len", subscriberQueueLen)
		}
	}
}

// SubscriberCount reports how many subscribers are connected.
func (h *EventHub) SubscriberCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

func (h *EventHub) register(client *eventClient) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[client] = true
}

// unregister removes the client and closes its queue. Safe to call for
// a client the broadcast loop already dropped.
func (h *EventHub) unregister(client *eventClient) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.clients[client] {
		delete(h.clients, client)
		close(client.send)
	}
}

// writePump drains the send queue onto the socket and keeps the
// connection alive with periodic pings. Runs as one goroutine per
// subscriber and owns all writes to the socket.
func (c *eventClient) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.socket.Close()
	}()

	for {
		select {
		case payload, ok := <-c.send:
			_ = c.socket.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// The hub closed the queue.
				_ = c.socket.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.socket.WriteMessage(websocket.TextMessage, payload); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.socket.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.socket.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// HandleRunEvents upgrades the connection and streams run events to the
// subscriber until it disconnects.
//
// Each event is one JSON text frame. The feed is one-way: inbound
// frames are read only to detect disconnects and refresh the pong
// deadline.
func HandleRunEvents(hub *EventHub) gin.HandlerFunc {
	return func(c *gin.Context) {
		ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			slog.Error("failed to upgrade the websocket", "error", err)
			return
		}
		slog.Info("Event subscriber connected", "remote", c.ClientIP())

		client := &eventClient{
			socket: ws,
			send:   make(chan []byte, subscriberQueueLen),
		}
		hub.register(client)
		go client.writePump()

		ws.SetReadLimit(maxSubscriberMessageBytes)
		_ = ws.SetReadDeadline(time.Now().Add(pongWait))
		ws.SetPongHandler(func(string) error {
			return ws.SetReadDeadline(time.Now().Add(pongWait))
		})
		for {
			if _, _, err := ws.ReadMessage(); err != nil {
				slog.Info("Event subscriber disconnected", "remote", c.ClientIP(), "error", err.Error())
				break
			}
		}
		hub.unregister(client)
	}
}

// EventSink broadcasts run status reports as websocket events.
//
// # Description
//
// EventSink adapts the hub to the run package's status sink, so the
// runner emits events without knowing about websockets. Warning events
// carry no status; only lifecycle reports mark a status transition.
//
// # Thread Safety
//
// Safe for concurrent use.
type EventSink struct {
	hub *EventHub
}

// NewEventSink creates a sink that broadcasts through the given hub.
func NewEventSink(hub *EventHub) *EventSink {
	return &EventSink{hub: hub}
}

var _ run.StatusSink = (*EventSink)(nil)

// ReportSuccess broadcasts the terminal success event.
func (s *EventSink) ReportSuccess(_ context.Context, runID, message string) error {
	s.hub.Broadcast(datatypes.NewRunEvent(runID, datatypes.SeverityInfo, datatypes.RunStatusSucceeded, message))
	return nil
}

// ReportFailure broadcasts the terminal failure event.
func (s *EventSink) ReportFailure(_ context.Context, runID, message string) error {
	s.hub.Broadcast(datatypes.NewRunEvent(runID, datatypes.SeverityError, datatypes.RunStatusFailed, message))
	return nil
}

// ReportWarning broadcasts a non-fatal condition; the run continues.
func (s *EventSink) ReportWarning(_ context.Context, runID, message string) error {
	s.hub.Broadcast(datatypes.NewRunEvent(runID, datatypes.SeverityWarning, "", message))
	return nil
}

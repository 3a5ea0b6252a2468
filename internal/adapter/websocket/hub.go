// Package websocket pushes the local display slot's selection changes to the
// UI clients attached to this process.
package websocket

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"
	"github.com/pscheid92/selectionsync/internal/adapter/metrics"
	"github.com/pscheid92/selectionsync/internal/domain"
)

const (
	maxClients    = 50
	writeWait     = 5 * time.Second
	clientBuffer  = 16
	commandBuffer = 256
)

var ErrHubStopped = errors.New("hub stopped")

// --- Command types ---

type hubCmd interface{ hubCmd() }

type cmdRegister struct {
	conn  *websocket.Conn
	errCh chan error
}

func (cmdRegister) hubCmd() {}

type cmdUnregister struct {
	conn *websocket.Conn
}

func (cmdUnregister) hubCmd() {}

type cmdBroadcast struct {
	data []byte
}

func (cmdBroadcast) hubCmd() {}

type cmdClientCount struct {
	replyCh chan int
}

func (cmdClientCount) hubCmd() {}

type cmdStop struct{}

func (cmdStop) hubCmd() {}

// --- Per-connection writer ---

type clientWriter struct {
	conn   *websocket.Conn
	clock  clockwork.Clock
	sendCh chan []byte
	done   chan struct{}
}

func newClientWriter(conn *websocket.Conn, clock clockwork.Clock) *clientWriter {
	cw := &clientWriter{
		conn:   conn,
		clock:  clock,
		sendCh: make(chan []byte, clientBuffer),
		done:   make(chan struct{}),
	}
	go cw.run()
	return cw
}

func (cw *clientWriter) run() {
	for {
		select {
		case msg := <-cw.sendCh:
			_ = cw.conn.SetWriteDeadline(cw.clock.Now().Add(writeWait))
			if err := cw.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				slog.Debug("WebSocket write failed", "remote_addr", cw.conn.RemoteAddr().String(), "error", err)
				return
			}
		case <-cw.done:
			return
		}
	}
}

func (cw *clientWriter) stop() {
	close(cw.done)
	_ = cw.conn.Close()
}

// --- Hub ---

// Hub is a domain.Observer that fans observer events out to websocket
// clients. Observer methods never block: when the hub is saturated the event
// is dropped and clients resynchronise on their next connect.
type Hub struct {
	cmdCh   chan hubCmd
	done    chan struct{}
	clients map[*websocket.Conn]*clientWriter
	clock   clockwork.Clock
	metrics *metrics.WebSocketMetrics
}

var _ domain.Observer = (*Hub)(nil)

func NewHub(clock clockwork.Clock, m *metrics.WebSocketMetrics) *Hub {
	hub := &Hub{
		cmdCh:   make(chan hubCmd, commandBuffer),
		done:    make(chan struct{}),
		clients: make(map[*websocket.Conn]*clientWriter),
		clock:   clock,
		metrics: m,
	}
	go hub.run()
	return hub
}

func (h *Hub) run() {
	defer close(h.done)

	for cmd := range h.cmdCh {
		switch c := cmd.(type) {
		case cmdRegister:
			h.handleRegister(c)
		case cmdUnregister:
			h.handleUnregister(c.conn)
		case cmdBroadcast:
			h.handleBroadcast(c)
		case cmdClientCount:
			c.replyCh <- len(h.clients)
		case cmdStop:
			h.handleStop()
			return
		}
	}
}

func (h *Hub) handleRegister(c cmdRegister) {
	if len(h.clients) >= maxClients {
		slog.Warn("Rejecting websocket client", "max_clients", maxClients)
		_ = c.conn.Close()
		c.errCh <- fmt.Errorf("max clients (%d) reached", maxClients)
		return
	}
	h.clients[c.conn] = newClientWriter(c.conn, h.clock)
	if h.metrics != nil {
		h.metrics.ActiveConnections.Inc()
	}
	slog.Debug("WebSocket client registered", "total_clients", len(h.clients))
	c.errCh <- nil
}

func (h *Hub) handleUnregister(conn *websocket.Conn) {
	cw, exists := h.clients[conn]
	if !exists {
		return
	}
	cw.stop()
	delete(h.clients, conn)
	if h.metrics != nil {
		h.metrics.ActiveConnections.Dec()
	}
	slog.Debug("WebSocket client unregistered", "remaining_clients", len(h.clients))
}

func (h *Hub) handleBroadcast(c cmdBroadcast) {
	var slow []*websocket.Conn
	for conn, cw := range h.clients {
		select {
		case cw.sendCh <- c.data:
		default:
			slow = append(slow, conn)
		}
	}
	if h.metrics != nil {
		h.metrics.EventsPublished.Inc()
	}

	for _, conn := range slow {
		slog.Warn("Disconnecting slow websocket client", "remote_addr", conn.RemoteAddr().String())
		if h.metrics != nil {
			h.metrics.SlowClientsEvicted.Inc()
		}
		h.handleUnregister(conn)
	}
}

func (h *Hub) handleStop() {
	for conn := range h.clients {
		h.handleUnregister(conn)
	}
}

// --- Public API ---

// Register adds conn as a client. It fails when the hub is full or stopped.
func (h *Hub) Register(conn *websocket.Conn) error {
	errCh := make(chan error, 1)
	if !h.send(cmdRegister{conn: conn, errCh: errCh}) {
		return ErrHubStopped
	}
	select {
	case err := <-errCh:
		return err
	case <-h.done:
		return ErrHubStopped
	}
}

func (h *Hub) Unregister(conn *websocket.Conn) {
	h.send(cmdUnregister{conn: conn})
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	replyCh := make(chan int, 1)
	if !h.send(cmdClientCount{replyCh: replyCh}) {
		return 0
	}
	select {
	case n := <-replyCh:
		return n
	case <-h.done:
		return 0
	}
}

func (h *Hub) Stop() {
	if h.send(cmdStop{}) {
		<-h.done
	}
}

func (h *Hub) send(cmd hubCmd) bool {
	select {
	case h.cmdCh <- cmd:
		return true
	case <-h.done:
		return false
	}
}

func (h *Hub) broadcast(event Event) {
	data, err := json.Marshal(event)
	if err != nil {
		slog.Error("Failed to marshal websocket event", "type", event.Type, "error", err)
		return
	}
	select {
	case h.cmdCh <- cmdBroadcast{data: data}:
	case <-h.done:
	default:
		slog.Warn("WebSocket hub saturated, dropping event", "type", event.Type)
	}
}

// --- domain.Observer ---

func (h *Hub) OnItemSelectionChanged(index int, selected bool) {
	h.broadcast(Event{Type: EventItemSelection, Index: &index, Selected: &selected})
}

func (h *Hub) OnReplaceSelection(selection []domain.TimelineSelection) {
	if selection == nil {
		selection = []domain.TimelineSelection{}
	}
	h.broadcast(Event{Type: EventReplaceSelection, Selection: selection})
}

func (h *Hub) OnItemsHighlighted(indices []int, highlighted bool) {
	h.broadcast(Event{Type: EventItemsHighlighted, Indices: indices, Highlighted: &highlighted})
}

func (h *Hub) OnReplaceHighlighted(indices []int) {
	h.broadcast(Event{Type: EventReplaceHighlighted, Indices: indices})
}

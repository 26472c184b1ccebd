package notify

import (
	"encoding/json"
	"log"
	"time"

	"github.com/gorilla/websocket"

	"clinic-session-backend/internal/session"
)

const maxClientsPerSystem = 100

// --- Command types ---

type hubCmd interface{ hubCmd() }

type cmdRegister struct {
	systemID string
	conn     *websocket.Conn
	errCh    chan error
}

func (cmdRegister) hubCmd() {}

type cmdUnregister struct {
	systemID string
	conn     *websocket.Conn
}

func (cmdUnregister) hubCmd() {}

type cmdBroadcast struct {
	systemID string
	data     []byte
}

func (cmdBroadcast) hubCmd() {}

type cmdClientCount struct {
	systemID string
	replyCh  chan int
}

func (cmdClientCount) hubCmd() {}

type cmdStop struct{}

func (cmdStop) hubCmd() {}

// --- Per-connection writer ---

type clientWriter struct {
	conn   *websocket.Conn
	sendCh chan []byte
	done   chan struct{}
}

func newClientWriter(conn *websocket.Conn) *clientWriter {
	cw := &clientWriter{
		conn:   conn,
		sendCh: make(chan []byte, 16),
		done:   make(chan struct{}),
	}
	go cw.run()
	return cw
}

func (cw *clientWriter) run() {
	for {
		select {
		case msg, ok := <-cw.sendCh:
			if !ok {
				return
			}
			cw.conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
			if err := cw.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-cw.done:
			return
		}
	}
}

func (cw *clientWriter) stop() {
	close(cw.done)
	cw.conn.Close()
}

// --- Hub ---

// Hub fans timer events out to the websocket clients of each tenant system.
// All state is owned by the run goroutine; the public API communicates over
// the command channel.
type Hub struct {
	cmdCh   chan hubCmd
	clients map[string]map[*websocket.Conn]*clientWriter
}

// NewHub creates and starts a hub.
func NewHub() *Hub {
	hub := &Hub{
		cmdCh:   make(chan hubCmd, 256),
		clients: make(map[string]map[*websocket.Conn]*clientWriter),
	}
	go hub.run()
	return hub
}

func (h *Hub) run() {
	for cmd := range h.cmdCh {
		switch c := cmd.(type) {
		case cmdRegister:
			h.handleRegister(c)
		case cmdUnregister:
			h.handleUnregister(c.systemID, c.conn)
		case cmdBroadcast:
			h.handleBroadcast(c)
		case cmdClientCount:
			c.replyCh <- len(h.clients[c.systemID])
		case cmdStop:
			h.handleStop()
			return
		}
	}
}

func (h *Hub) handleRegister(c cmdRegister) {
	clients, exists := h.clients[c.systemID]
	if !exists {
		clients = make(map[*websocket.Conn]*clientWriter)
		h.clients[c.systemID] = clients
	}

	if len(clients) >= maxClientsPerSystem {
		log.Printf("Rejecting client for system %s: max clients (%d) reached", c.systemID, maxClientsPerSystem)
		c.conn.Close()
		c.errCh <- ErrTooManyClients
		return
	}

	clients[c.conn] = newClientWriter(c.conn)
	log.Printf("Client registered for system %s (total clients: %d)", c.systemID, len(clients))
	c.errCh <- nil
}

func (h *Hub) handleUnregister(systemID string, conn *websocket.Conn) {
	clients, exists := h.clients[systemID]
	if !exists {
		return
	}

	cw, exists := clients[conn]
	if !exists {
		return
	}

	cw.stop()
	delete(clients, conn)
	if len(clients) == 0 {
		delete(h.clients, systemID)
	}
	log.Printf("Client unregistered for system %s (remaining clients: %d)", systemID, len(clients))
}

func (h *Hub) handleBroadcast(c cmdBroadcast) {
	clients, exists := h.clients[c.systemID]
	if !exists {
		return
	}

	var slow []*websocket.Conn
	for conn, cw := range clients {
		select {
		case cw.sendCh <- c.data:
		default:
			// client is slow, mark for removal
			slow = append(slow, conn)
		}
	}

	for _, conn := range slow {
		log.Printf("Disconnecting slow client for system %s", c.systemID)
		h.handleUnregister(c.systemID, conn)
	}
}

func (h *Hub) handleStop() {
	for systemID, clients := range h.clients {
		for _, cw := range clients {
			cw.stop()
		}
		delete(h.clients, systemID)
	}
}

// --- Public API ---

// Register adds a client connection to a tenant channel.
func (h *Hub) Register(systemID string, conn *websocket.Conn) error {
	errCh := make(chan error, 1)
	h.cmdCh <- cmdRegister{systemID: systemID, conn: conn, errCh: errCh}
	return <-errCh
}

// Unregister removes a client connection from a tenant channel.
func (h *Hub) Unregister(systemID string, conn *websocket.Conn) {
	h.cmdCh <- cmdUnregister{systemID: systemID, conn: conn}
}

// Publish broadcasts a timer event to every client of the tenant system.
// Implements session.Publisher; delivery is best-effort, at most once.
func (h *Hub) Publish(systemID string, event session.TimerEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}
	h.cmdCh <- cmdBroadcast{systemID: systemID, data: data}
	return nil
}

// ClientCount returns the number of connected clients for a tenant system.
func (h *Hub) ClientCount(systemID string) int {
	replyCh := make(chan int, 1)
	h.cmdCh <- cmdClientCount{systemID: systemID, replyCh: replyCh}
	return <-replyCh
}

// Stop shuts the hub down, closing all client connections.
func (h *Hub) Stop() {
	h.cmdCh <- cmdStop{}
}

package server

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/gofiber/websocket/v2"

	"github.com/kilianp07/dockyard/core/events"
	"github.com/kilianp07/dockyard/infra/logger"
	"github.com/kilianp07/dockyard/internal/eventbus"
)

type wsConn interface {
	WriteMessage(messageType int, data []byte) error
	Close() error
}

type wsClient struct {
	conn wsConn
	mu   sync.Mutex
}

func (c *wsClient) write(kind int, data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.WriteMessage(kind, data)
}

// Hub pushes bus events to connected dashboard websockets.
type Hub struct {
	mu      sync.RWMutex
	clients map[wsConn]*wsClient
	log     logger.Logger
	wg      sync.WaitGroup
}

// NewHub creates an empty Hub.
func NewHub() *Hub {
	return &Hub{clients: make(map[wsConn]*wsClient), log: logger.New("ws")}
}

// Start forwards bus events to clients until ctx is done or the bus closes.
func (h *Hub) Start(ctx context.Context, bus *eventbus.TypedBus[events.Event]) {
	sub := bus.Subscribe()
	h.wg.Add(1)
	go func() {
		defer h.wg.Done()
		defer bus.Unsubscribe(sub)
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-sub:
				if !ok {
					return
				}
				b, err := json.Marshal(ev)
				if err != nil {
					h.log.Errorf("encode %s: %v", ev.Kind, err)
					continue
				}
				h.Broadcast(b)
			}
		}
	}()
}

// Wait blocks until the forwarding goroutine returned.
func (h *Hub) Wait() { h.wg.Wait() }

// Broadcast writes msg to every client and drops the ones that fail.
func (h *Hub) Broadcast(msg []byte) {
	h.mu.RLock()
	clients := make([]*wsClient, 0, len(h.clients))
	for _, c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.RUnlock()

	for _, c := range clients {
		if err := c.write(websocket.TextMessage, msg); err != nil {
			h.log.Debugf("drop client: %v", err)
			h.remove(c.conn)
		}
	}
}

// Clients returns the number of connected clients.
func (h *Hub) Clients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *Hub) add(conn wsConn) *wsClient {
	c := &wsClient{conn: conn}
	h.mu.Lock()
	h.clients[conn] = c
	h.mu.Unlock()
	return c
}

func (h *Hub) remove(conn wsConn) {
	h.mu.Lock()
	_, ok := h.clients[conn]
	delete(h.clients, conn)
	h.mu.Unlock()
	if ok {
		_ = conn.Close()
	}
}

// Close disconnects every client.
func (h *Hub) Close() {
	h.mu.Lock()
	conns := make([]wsConn, 0, len(h.clients))
	for conn := range h.clients {
		conns = append(conns, conn)
	}
	h.clients = make(map[wsConn]*wsClient)
	h.mu.Unlock()
	for _, conn := range conns {
		_ = conn.Close()
	}
}

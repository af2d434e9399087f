package ipc

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"nhooyr.io/websocket"

	"github.com/odvcencio/livewidgets/pkg/render/remote"
	"github.com/odvcencio/livewidgets/pkg/telemetry"
)

const clientBacklog = 256

// Hub fans page frames out to the websocket clients watching each page.
type Hub struct {
	mu    sync.RWMutex
	pages map[string]map[*client]struct{}
}

// NewHub creates a Hub.
func NewHub() *Hub {
	return &Hub{pages: make(map[string]map[*client]struct{})}
}

// SendFrame broadcasts frame to the page's clients, dropping slow consumers.
func (h *Hub) SendFrame(pageID string, frame remote.Frame) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	clients := h.pages[pageID]
	if len(clients) == 0 {
		return
	}
	data, err := json.Marshal(frame)
	if err != nil {
		telemetry.WSMessages.WithLabelValues("out", "encode_error").Inc()
		return
	}
	for c := range clients {
		if !c.enqueue(data) {
			go h.removeClient(c)
		}
	}
}

// Clients counts the clients watching pageID.
func (h *Hub) Clients(pageID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.pages[pageID])
}

// register adds a client for pageID with room for backlog queued frames.
func (h *Hub) register(pageID string, conn wsConn, backlog int) *client {
	if backlog < clientBacklog {
		backlog = clientBacklog
	}
	c := &client{
		page: pageID,
		conn: conn,
		send: make(chan []byte, backlog),
	}
	h.mu.Lock()
	clients, ok := h.pages[pageID]
	if !ok {
		clients = make(map[*client]struct{})
		h.pages[pageID] = clients
	}
	clients[c] = struct{}{}
	h.mu.Unlock()
	telemetry.ActiveConnections.Inc()
	return c
}

// removeClient disconnects and removes a client.
func (h *Hub) removeClient(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	clients := h.pages[c.page]
	if _, ok := clients[c]; !ok {
		return
	}
	delete(clients, c)
	if len(clients) == 0 {
		delete(h.pages, c.page)
	}
	c.shutdown()
	telemetry.ActiveConnections.Dec()
}

type wsConn interface {
	Write(ctx context.Context, msgType websocket.MessageType, data []byte) error
	Close(status websocket.StatusCode, reason string) error
	Read(ctx context.Context) (websocket.MessageType, []byte, error)
}

type client struct {
	page string
	conn wsConn

	mu     sync.Mutex
	send   chan []byte
	closed bool
}

// enqueue queues data without blocking. It reports false when the buffer
// is full or the client is gone.
func (c *client) enqueue(data []byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	select {
	case c.send <- data:
		return true
	default:
		telemetry.WSMessages.WithLabelValues("out", "dropped").Inc()
		return false
	}
}

func (c *client) shutdown() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.send)
	}
}

func (c *client) enqueueFrame(frame remote.Frame) bool {
	data, err := json.Marshal(frame)
	if err != nil {
		telemetry.WSMessages.WithLabelValues("out", "encode_error").Inc()
		return true
	}
	return c.enqueue(data)
}

func (c *client) writeLoop(ctx context.Context) error {
	for {
		select {
		case data, ok := <-c.send:
			if !ok {
				return nil
			}
			writeCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
			err := c.conn.Write(writeCtx, websocket.MessageText, data)
			cancel()
			if err != nil {
				telemetry.WSMessages.WithLabelValues("out", "error").Inc()
				return err
			}
			telemetry.WSMessages.WithLabelValues("out", "ok").Inc()
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (c *client) close(status websocket.StatusCode, reason string) {
	_ = c.conn.Close(status, reason)
}

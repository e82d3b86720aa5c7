package server

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/rustyeddy/marketsim/internal/metrics"
	"github.com/rustyeddy/marketsim/market"
	"go.uber.org/zap"
)

// clientBuffer is the number of encoded events a client may fall behind
// before it is dropped.
const clientBuffer = 256

// Client is one feed subscriber.
type Client struct {
	id     string
	send   chan []byte
	mu     sync.Mutex
	closed bool
}

func NewClient(id string) *Client {
	return &Client{
		id:   id,
		send: make(chan []byte, clientBuffer),
	}
}

// Send queues msg without blocking. It returns false when the client is
// closed or its buffer is full.
func (c *Client) Send(msg []byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return false
	}
	select {
	case c.send <- msg:
		return true
	default:
		return false
	}
}

func (c *Client) Messages() <-chan []byte {
	return c.send
}

func (c *Client) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.closed {
		c.closed = true
		close(c.send)
	}
}

// Hub fans simulation events out to every connected feed client.
type Hub struct {
	clients    map[*Client]bool
	broadcast  chan []byte
	register   chan *Client
	unregister chan *Client
	done       chan struct{}

	mu      sync.RWMutex
	log     *zap.Logger
	metrics *metrics.Metrics
}

func NewHub(log *zap.Logger, m *metrics.Metrics) *Hub {
	if log == nil {
		log = zap.NewNop()
	}
	return &Hub{
		clients:    make(map[*Client]bool),
		broadcast:  make(chan []byte, clientBuffer),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
		log:        log.Named("hub"),
		metrics:    m,
	}
}

// Run serves registrations and broadcasts until ctx is cancelled, then
// closes every client.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)

	for {
		select {
		case <-ctx.Done():
			h.mu.Lock()
			for c := range h.clients {
				c.Close()
				delete(h.clients, c)
			}
			h.mu.Unlock()
			h.metrics.SetFeedClients(0)
			return

		case c := <-h.register:
			h.mu.Lock()
			h.clients[c] = true
			n := len(h.clients)
			h.mu.Unlock()
			h.metrics.SetFeedClients(n)
			h.log.Info("feed client registered", zap.String("client_id", c.id), zap.Int("clients", n))

		case c := <-h.unregister:
			h.drop(c)

		case msg := <-h.broadcast:
			h.mu.RLock()
			clients := make([]*Client, 0, len(h.clients))
			for c := range h.clients {
				clients = append(clients, c)
			}
			h.mu.RUnlock()

			for _, c := range clients {
				if !c.Send(msg) {
					h.log.Warn("feed client too slow, dropping", zap.String("client_id", c.id))
					h.drop(c)
				}
			}
		}
	}
}

func (h *Hub) drop(c *Client) {
	h.mu.Lock()
	_, ok := h.clients[c]
	if ok {
		delete(h.clients, c)
		c.Close()
	}
	n := len(h.clients)
	h.mu.Unlock()

	if ok {
		h.metrics.SetFeedClients(n)
		h.log.Info("feed client unregistered", zap.String("client_id", c.id), zap.Int("clients", n))
	}
}

// Register adds c to the hub. It returns false once the hub has stopped.
func (h *Hub) Register(c *Client) bool {
	select {
	case h.register <- c:
		return true
	case <-h.done:
		return false
	}
}

func (h *Hub) Unregister(c *Client) {
	select {
	case h.unregister <- c:
	case <-h.done:
	}
}

// Broadcast encodes each event and queues it for every client. Events are
// dropped with a warning when the broadcast queue is full.
func (h *Hub) Broadcast(events []market.Event) {
	for _, e := range events {
		msg, err := json.Marshal(e)
		if err != nil {
			h.log.Warn("encode event", zap.String("kind", string(e.Kind)), zap.Error(err))
			continue
		}
		select {
		case h.broadcast <- msg:
		case <-h.done:
			return
		default:
			h.log.Warn("broadcast queue full, dropping event", zap.String("kind", string(e.Kind)))
		}
	}
}

func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

package live

import (
	"context"
	"encoding/json"
	"strings"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"

	"pantree/logger"
	"pantree/mq"
)

// Topics a client may follow. The empty topic receives everything.
const (
	TopicAll    = ""
	TopicFood   = "food"
	TopicRecipe = "recipe"
)

var connectedClients = promauto.NewGauge(prometheus.GaugeOpts{
	Name: "pantree_live_clients",
	Help: "Websocket clients currently following change events.",
})

type Client struct {
	Conn  *websocket.Conn
	Send  chan []byte
	Topic string
}

type broadcastMsg struct {
	Topic string
	Data  []byte
}

// Hub fans change events out to connected websocket clients. It implements
// mq.Emitter.
type Hub struct {
	topics     map[string]map[*Client]bool
	register   chan *Client
	unregister chan *Client
	broadcast  chan broadcastMsg
	done       chan struct{}
	stopOnce   sync.Once
	mu         sync.Mutex
}

func NewHub() *Hub {
	return &Hub{
		topics:     make(map[string]map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan broadcastMsg),
		done:       make(chan struct{}),
	}
}

func (h *Hub) Run() {
	for {
		select {
		case c := <-h.register:
			h.mu.Lock()
			if h.topics[c.Topic] == nil {
				h.topics[c.Topic] = make(map[*Client]bool)
			}
			h.topics[c.Topic][c] = true
			h.mu.Unlock()
			connectedClients.Inc()

		case c := <-h.unregister:
			h.mu.Lock()
			h.drop(c)
			h.mu.Unlock()

		case m := <-h.broadcast:
			h.mu.Lock()
			h.deliver(m.Topic, m.Data)
			if m.Topic != TopicAll {
				h.deliver(TopicAll, m.Data)
			}
			h.mu.Unlock()

		case <-h.done:
			h.mu.Lock()
			for _, conns := range h.topics {
				for c := range conns {
					h.drop(c)
				}
			}
			h.mu.Unlock()
			return
		}
	}
}

// deliver must be called with mu held. Slow clients are dropped.
func (h *Hub) deliver(topic string, data []byte) {
	for c := range h.topics[topic] {
		select {
		case c.Send <- data:
		default:
			logger.Warn("dropping slow live client", zap.String("topic", topic))
			h.drop(c)
		}
	}
}

// drop must be called with mu held.
func (h *Hub) drop(c *Client) {
	conns := h.topics[c.Topic]
	if !conns[c] {
		return
	}
	delete(conns, c)
	close(c.Send)
	connectedClients.Dec()
}

// Stop ends Run and closes every client's send channel.
func (h *Hub) Stop() {
	h.stopOnce.Do(func() { close(h.done) })
}

// Clients reports how many clients are registered.
func (h *Hub) Clients() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	n := 0
	for _, conns := range h.topics {
		n += len(conns)
	}
	return n
}

// Emit broadcasts ev to clients following its topic.
func (h *Hub) Emit(ctx context.Context, ev mq.Event) {
	data, err := json.Marshal(ev)
	if err != nil {
		logger.Error("failed to marshal live event", zap.String("type", ev.Type), zap.Error(err))
		return
	}
	select {
	case h.broadcast <- broadcastMsg{Topic: TopicOf(ev.Type), Data: data}:
	case <-h.done:
	case <-ctx.Done():
	}
}

// TopicOf maps an event type such as "recipe.created" to its topic.
func TopicOf(eventType string) string {
	topic, _, _ := strings.Cut(eventType, ".")
	return topic
}

func (h *Hub) join(c *Client) bool {
	select {
	case h.register <- c:
		return true
	case <-h.done:
		return false
	}
}

func (h *Hub) leave(c *Client) {
	select {
	case h.unregister <- c:
	case <-h.done:
	}
}

package stream

import "sync"

// Topics carried by the hub.
const (
	TopicSession = "session"
	TopicUpload  = "upload"
)

// Hub is a single-producer-per-topic broadcast channel. Observers register
// for a topic and receive every payload broadcast after registration; a slow
// observer drops messages rather than stalling the producer.
type Hub struct {
	clients map[string]map[*Client]struct{}
	mu      sync.RWMutex
}

type Client struct {
	Topic string
	Send  chan []byte
}

func NewHub() *Hub {
	return &Hub{
		clients: map[string]map[*Client]struct{}{},
	}
}

func (h *Hub) Register(topic string) *Client {
	client := &Client{
		Topic: topic,
		Send:  make(chan []byte, 64),
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.clients[topic] == nil {
		h.clients[topic] = map[*Client]struct{}{}
	}
	h.clients[topic][client] = struct{}{}
	return client
}

func (h *Hub) Unregister(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if topicClients, ok := h.clients[client.Topic]; ok {
		delete(topicClients, client)
		if len(topicClients) == 0 {
			delete(h.clients, client.Topic)
		}
	}
	close(client.Send)
}

func (h *Hub) Broadcast(topic string, payload []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	// Sends never block, so holding the lock across the loop is safe and
	// keeps Unregister's close of the Send channel ordered after us.
	for client := range h.clients[topic] {
		select {
		case client.Send <- payload:
		default:
		}
	}
}


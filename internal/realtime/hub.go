// Package realtime fans queue mutations out to subscribers. Delivery is
// best effort: events carry no ordering or exactly-once guarantee, so
// handlers treat an event purely as a signal to re-read authoritative
// state from the store.
package realtime

import (
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Event describes a queue entry mutation. The payload is advisory;
// subscribers re-fetch rather than trusting it.
type Event struct {
	Type       string    `json:"type"`
	BusinessID string    `json:"business_id"`
	EntryID    string    `json:"entry_id"`
	Status     string    `json:"status"`
	CreatedAt  time.Time `json:"created_at"`
}

// Subscription filters events. An empty field matches everything, so
// {BusinessID: x} is the staff dashboard scope and {EntryID: y} is the
// single-customer scope.
type Subscription struct {
	BusinessID string
	EntryID    string
}

type Client struct {
	ID           string
	Send         chan Event
	Subscription Subscription
}

type Hub struct {
	mu      sync.RWMutex
	clients map[string]*Client
}

type SubscribeMessage struct {
	Action     string `json:"action"`
	BusinessID string `json:"business_id"`
	EntryID    string `json:"entry_id"`
}

func NewHub() *Hub {
	return &Hub{clients: make(map[string]*Client)}
}

func (h *Hub) Register(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[client.ID] = client
}

func (h *Hub) Unregister(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[client.ID]; !ok {
		return
	}
	delete(h.clients, client.ID)
	close(client.Send)
}

// Subscribe registers an in-process client with a buffered channel.
func (h *Hub) Subscribe(filter Subscription) *Client {
	client := &Client{ID: uuid.NewString(), Send: make(chan Event, 16), Subscription: filter}
	h.Register(client)
	return client
}

func (h *Hub) UpdateSubscription(client *Client, sub Subscription) {
	h.mu.Lock()
	defer h.mu.Unlock()
	client.Subscription = sub
}

// Publish delivers event to every matching client. Fire and forget: a
// client with a full buffer loses the event and recovers via its poll.
func (h *Hub) Publish(event Event) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, client := range h.clients {
		if !match(client.Subscription, event) {
			continue
		}
		select {
		case client.Send <- event:
		default:
			log.Printf("realtime drop event for client %s", client.ID)
		}
	}
}

func match(sub Subscription, event Event) bool {
	if sub.BusinessID != "" && event.BusinessID != sub.BusinessID {
		return false
	}
	if sub.EntryID != "" && event.EntryID != sub.EntryID {
		return false
	}
	return true
}

func ParseSubscribe(data []byte) (SubscribeMessage, bool) {
	var msg SubscribeMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return SubscribeMessage{}, false
	}
	if msg.Action != "subscribe" && msg.Action != "unsubscribe" {
		return SubscribeMessage{}, false
	}
	return msg, true
}

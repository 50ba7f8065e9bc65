package ws

import (
	"context"
	"encoding/json"
	"log"
	"sync"

	"github.com/google/uuid"
	"github.com/tabemono-pos/api/internal/events"
)

// Hub keeps one room of websocket clients per store and pushes domain
// events into the room of the store they belong to. Events without a store
// (coupon issuance) go to every room.
type Hub struct {
	rooms map[uuid.UUID]map[*Client]bool

	register   chan *Client
	unregister chan *Client
	broadcast  chan events.Event
	done       chan struct{}

	mu sync.RWMutex
}

func NewHub() *Hub {
	return &Hub{
		rooms:      make(map[uuid.UUID]map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan events.Event, 256),
		done:       make(chan struct{}),
	}
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

// Run serves registrations and broadcasts until ctx is done, then
// disconnects every client.
func (h *Hub) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			close(h.done)
			h.closeAll()
			return nil

		case client := <-h.register:
			h.mu.Lock()
			if h.rooms[client.storeID] == nil {
				h.rooms[client.storeID] = make(map[*Client]bool)
			}
			h.rooms[client.storeID][client] = true
			h.mu.Unlock()

		case client := <-h.unregister:
			h.mu.Lock()
			h.drop(client)
			h.mu.Unlock()

		case e := <-h.broadcast:
			message, err := json.Marshal(e)
			if err != nil {
				log.Printf("ERROR: ws marshal %s: %v", e.Type, err)
				continue
			}

			h.mu.Lock()
			for storeID, clients := range h.rooms {
				if e.StoreID != uuid.Nil && storeID != e.StoreID {
					continue
				}
				for client := range clients {
					select {
					case client.send <- message:
					default:
						// slow consumer
						h.drop(client)
					}
				}
			}
			h.mu.Unlock()
		}
	}
}

// drop removes client from its room and closes its queue. Caller holds mu.
func (h *Hub) drop(client *Client) {
	clients, ok := h.rooms[client.storeID]
	if !ok || !clients[client] {
		return
	}
	delete(clients, client)
	close(client.send)
	if len(clients) == 0 {
		delete(h.rooms, client.storeID)
	}
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, clients := range h.rooms {
		for client := range clients {
			h.drop(client)
		}
	}
}

// Notify queues e for delivery. It never blocks: when the queue is full the
// event is dropped, since the feed is a convenience and the database remains
// the source of truth.
func (h *Hub) Notify(_ context.Context, e events.Event) {
	select {
	case h.broadcast <- e:
	default:
		log.Printf("WARN: ws queue full, dropping %s %s", e.Type, e.ID)
	}
}

// clientCount reports the number of clients in a store's room.
func (h *Hub) clientCount(storeID uuid.UUID) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[storeID])
}

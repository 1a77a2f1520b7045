package websocket

import (
	"context"
	"encoding/json"
	"log"

	"ujian-proctor-gateway/internal/data"
)

// SnapshotProvider supplies the current monitoring snapshot so a freshly
// connected dashboard never starts blank waiting for the next change.
type SnapshotProvider interface {
	Current() []data.StudentStatus
}

// Hub maintains the set of connected dashboard subscribers and fans
// snapshots and violation notices out to all of them. Delivery is
// best-effort per subscriber: a full send buffer evicts that subscriber
// instead of blocking the rest.
type Hub struct {
	clients    map[*Client]bool
	broadcast  chan []byte
	register   chan *Client
	unregister chan *Client
	snapshots  SnapshotProvider
}

func NewHub(snapshots SnapshotProvider) *Hub {
	return &Hub{
		broadcast:  make(chan []byte, 8),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		clients:    make(map[*Client]bool),
		snapshots:  snapshots,
	}
}

// Run owns the subscriber set; all add/remove/fan-out happens on this one
// goroutine. Blocks until ctx is canceled.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			for client := range h.clients {
				close(client.Send)
				delete(h.clients, client)
			}
			return

		case client := <-h.register:
			h.clients[client] = true
			log.Printf("dashboard subscriber registered: %s", client.Conn.RemoteAddr())
			h.sendInitialSnapshot(client)

		case client := <-h.unregister:
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.Send)
				log.Printf("dashboard subscriber unregistered: %s", client.Conn.RemoteAddr())
			}

		case message := <-h.broadcast:
			for client := range h.clients {
				select {
				case client.Send <- message:
				default:
					// subscriber too slow or gone, drop it rather than stall
					log.Printf("dashboard subscriber %s buffer full, removing", client.Conn.RemoteAddr())
					close(client.Send)
					delete(h.clients, client)
				}
			}
		}
	}
}

// RegisterClient hands a new subscriber to the hub loop.
func (h *Hub) RegisterClient(client *Client) {
	h.register <- client
}

// sendInitialSnapshot queues the cached snapshot as the subscriber's first
// message, ahead of any future broadcast.
func (h *Hub) sendInitialSnapshot(client *Client) {
	if h.snapshots == nil {
		return
	}
	message, err := marshalSnapshot(h.snapshots.Current())
	if err != nil {
		log.Printf("error marshalling initial snapshot: %v", err)
		return
	}
	select {
	case client.Send <- message:
	default:
		log.Printf("dashboard subscriber %s rejected initial snapshot, removing", client.Conn.RemoteAddr())
		close(client.Send)
		delete(h.clients, client)
	}
}

// BroadcastSnapshot pushes the full monitoring snapshot to every subscriber.
func (h *Hub) BroadcastSnapshot(students []data.StudentStatus) {
	message, err := marshalSnapshot(students)
	if err != nil {
		log.Printf("error marshalling snapshot for broadcast: %v", err)
		return
	}
	h.broadcast <- message
}

// BroadcastViolation notifies dashboards of one student's violation.
func (h *Hub) BroadcastViolation(ev data.ViolationEvent) {
	message, err := json.Marshal(map[string]interface{}{"type": "pelanggaran", "data": ev})
	if err != nil {
		log.Printf("error marshalling violation for broadcast: %v", err)
		return
	}
	h.broadcast <- message
}

func marshalSnapshot(students []data.StudentStatus) ([]byte, error) {
	if students == nil {
		students = []data.StudentStatus{}
	}
	return json.Marshal(map[string]interface{}{"type": "monitoring", "data": students})
}

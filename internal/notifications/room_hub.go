package notifications

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strconv"
	"sync"

	"weebchat/internal/observability"
	"weebchat/internal/service"

	"github.com/gofiber/websocket/v2"
)

// Event types on the wire.
const (
	EventChat   = "chat"
	EventSystem = "system"
)

// Event is the envelope for everything delivered over a room websocket.
type Event struct {
	Type    string      `json:"type"`
	RoomID  uint        `json:"room_id,omitempty"`
	Payload interface{} `json:"payload"`
}

// RoomHub manages websocket connections and room membership. It implements
// service.Broadcaster: accepted messages fan out to every connection joined to
// the room at dispatch time. Delivery is fire-and-forget; a connection joining
// mid-broadcast may miss it.
type RoomHub struct {
	mu sync.RWMutex

	// roomID -> clients joined to that room
	rooms map[uint]map[*Client]bool

	// client -> rooms it has joined
	clientRooms map[*Client]map[uint]struct{}

	// uid -> that user's active clients (multi-device)
	userConns map[string]map[*Client]bool

	notifier *Notifier
}

// Name returns a human-readable identifier for this hub.
func (h *RoomHub) Name() string { return "room hub" }

// NewRoomHub creates a new RoomHub. notifier may be nil, in which case fan-out
// is process-local only.
func NewRoomHub(notifier *Notifier) *RoomHub {
	return &RoomHub{
		rooms:       make(map[uint]map[*Client]bool),
		clientRooms: make(map[*Client]map[uint]struct{}),
		userConns:   make(map[string]map[*Client]bool),
		notifier:    notifier,
	}
}

// Register attaches a user's websocket connection to the hub.
func (h *RoomHub) Register(uid string, conn *websocket.Conn) (*Client, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.userConns[uid] == nil {
		h.userConns[uid] = make(map[*Client]bool)
	}
	if len(h.userConns[uid]) >= maxConnsPerUser {
		return nil, fmt.Errorf("user connection limit reached")
	}

	client := NewClient(h, conn, uid)
	h.userConns[uid][client] = true

	observability.WebSocketConnectionsTotal.Inc()
	return client, nil
}

// UnregisterClient removes a connection and its room memberships. Departure
// notices are the caller's responsibility since they need the display name.
func (h *RoomHub) UnregisterClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	clients, ok := h.userConns[client.Uid]
	if !ok || !clients[client] {
		return
	}
	delete(clients, client)
	if len(clients) == 0 {
		delete(h.userConns, client.Uid)
	}

	for roomID := range h.clientRooms[client] {
		if members, ok := h.rooms[roomID]; ok {
			delete(members, client)
			observability.WebSocketRoomConnections.WithLabelValues(roomLabel(roomID)).Dec()
			if len(members) == 0 {
				delete(h.rooms, roomID)
			}
		}
	}
	delete(h.clientRooms, client)

	observability.WebSocketConnectionsTotal.Dec()
}

// Rooms returns the room ids the client is currently joined to.
func (h *RoomHub) Rooms(client *Client) []uint {
	h.mu.RLock()
	defer h.mu.RUnlock()

	out := make([]uint, 0, len(h.clientRooms[client]))
	for roomID := range h.clientRooms[client] {
		out = append(out, roomID)
	}
	return out
}

// Join adds the client to a room's delivery group. Idempotent.
func (h *RoomHub) Join(client *Client, roomID uint) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.rooms[roomID] == nil {
		h.rooms[roomID] = make(map[*Client]bool)
	}
	if h.rooms[roomID][client] {
		return
	}
	h.rooms[roomID][client] = true

	if h.clientRooms[client] == nil {
		h.clientRooms[client] = make(map[uint]struct{})
	}
	h.clientRooms[client][roomID] = struct{}{}

	observability.WebSocketRoomConnections.WithLabelValues(roomLabel(roomID)).Inc()
}

// Leave removes the client from a room's delivery group. Idempotent.
func (h *RoomHub) Leave(client *Client, roomID uint) {
	h.mu.Lock()
	defer h.mu.Unlock()

	members, ok := h.rooms[roomID]
	if !ok || !members[client] {
		return
	}
	delete(members, client)
	if len(members) == 0 {
		delete(h.rooms, roomID)
	}
	delete(h.clientRooms[client], roomID)

	observability.WebSocketRoomConnections.WithLabelValues(roomLabel(roomID)).Dec()
}

// IsJoined reports whether the client is in the room's delivery group.
func (h *RoomHub) IsJoined(client *Client, roomID uint) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.rooms[roomID][client]
}

// BroadcastChat fans an accepted message out to the room. With a Redis
// notifier attached the event round-trips through pub/sub so every instance
// delivers it; otherwise delivery is process-local.
func (h *RoomHub) BroadcastChat(roomID uint, event service.ChatEvent) {
	data, err := json.Marshal(Event{Type: EventChat, RoomID: roomID, Payload: event})
	if err != nil {
		log.Printf("RoomHub: failed to marshal chat event: %v", err)
		return
	}
	h.dispatch(roomID, ChatChannel(roomID), data)
}

// BroadcastSystem delivers a system notice to every connection in the room.
func (h *RoomHub) BroadcastSystem(roomID uint, text string) {
	data, err := json.Marshal(Event{Type: EventSystem, RoomID: roomID, Payload: text})
	if err != nil {
		return
	}
	h.dispatch(roomID, SystemChannel(roomID), data)
}

// BroadcastSystemGlobal delivers a system notice to every connected client.
func (h *RoomHub) BroadcastSystemGlobal(text string) {
	data, err := json.Marshal(Event{Type: EventSystem, Payload: text})
	if err != nil {
		return
	}

	if h.notifier.Enabled() {
		if err := h.notifier.PublishGlobal(context.Background(), string(data)); err == nil {
			return
		}
	}
	h.broadcastAllLocal(data)
}

func (h *RoomHub) dispatch(roomID uint, channel string, data []byte) {
	if h.notifier.Enabled() {
		if err := h.notifier.Publish(context.Background(), channel, string(data)); err == nil {
			return
		}
		// Redis publish failed; degrade to local delivery.
	}
	h.broadcastLocal(roomID, data)
}

func (h *RoomHub) broadcastLocal(roomID uint, data []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for client := range h.rooms[roomID] {
		client.TrySend(data)
	}
}

func (h *RoomHub) broadcastAllLocal(data []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, clients := range h.userConns {
		for client := range clients {
			client.TrySend(data)
		}
	}
}

// StartWiring connects the hub to Redis pub/sub so events published by any
// instance reach this instance's local connections.
func (h *RoomHub) StartWiring(ctx context.Context) error {
	if !h.notifier.Enabled() {
		return nil
	}
	return h.notifier.StartRoomSubscriber(ctx, func(channel, payload string) {
		if channel == globalChannel {
			h.broadcastAllLocal([]byte(payload))
			return
		}

		var roomID uint
		if _, err := fmt.Sscanf(channel, "chat:room:%d", &roomID); err != nil {
			if _, err := fmt.Sscanf(channel, "system:room:%d", &roomID); err != nil {
				log.Printf("RoomHub: invalid channel format: %s", channel)
				return
			}
		}
		h.broadcastLocal(roomID, []byte(payload))
	})
}

// Shutdown gracefully closes all websocket connections.
func (h *RoomHub) Shutdown(_ context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	for uid, clients := range h.userConns {
		for client := range clients {
			if err := client.Conn.WriteMessage(websocket.TextMessage,
				[]byte(`{"type":"system","payload":"Server is shutting down"}`)); err != nil {
				log.Printf("failed to write shutdown message for uid %s: %v", uid, err)
			}
			if err := client.Conn.Close(); err != nil {
				log.Printf("failed to close websocket for uid %s: %v", uid, err)
			}
		}
	}

	h.rooms = make(map[uint]map[*Client]bool)
	h.clientRooms = make(map[*Client]map[uint]struct{})
	h.userConns = make(map[string]map[*Client]bool)

	return nil
}

func roomLabel(roomID uint) string {
	return strconv.FormatUint(uint64(roomID), 10)
}

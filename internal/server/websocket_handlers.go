package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"weebchat/internal/middleware"
	"weebchat/internal/notifications"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
)

// WebSocketChatHandler handles WebSocket connections for real-time chat
func (s *Server) WebSocketChatHandler() fiber.Handler {
	return websocket.New(func(conn *websocket.Conn) {
		ctx := context.Background()

		// Identity locals are set by WebSocketAuthRequired on the upgrade request.
		uid, ok := conn.Locals("uid").(string)
		if !ok || uid == "" {
			log.Printf("WebSocket Chat: Unauthenticated connection attempt")
			_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"error":"unauthorized"}`))
			_ = conn.Close()
			return
		}
		email, _ := conn.Locals("email").(string)

		// Lazily create the user row and resolve the display name for notices.
		user, err := s.userRepo.UpsertByUid(ctx, uid, email)
		if err != nil {
			log.Printf("WebSocket Chat: Failed to upsert user %s: %v", uid, err)
			_ = conn.Close()
			return
		}

		client, err := s.roomHub.Register(uid, conn)
		if err != nil {
			log.Printf("WebSocket Chat: Failed to register user %s: %v", uid, err)
			_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"error":"`+err.Error()+`"}`))
			_ = conn.Close()
			return
		}
		client.DisplayName = user.DisplayName

		// Rooms joined over this connection, tracked here so departure notices
		// can still be sent after the read pump has unregistered the client.
		// Only the read pump goroutine touches this map.
		joined := make(map[uint]struct{})

		client.IncomingHandler = func(c *notifications.Client, message []byte) {
			var incomingMsg map[string]interface{}
			if err := json.Unmarshal(message, &incomingMsg); err != nil {
				log.Printf("WebSocket: Invalid message format from user %s", uid)
				return
			}

			msgType, ok := incomingMsg["type"].(string)
			if !ok {
				return
			}

			roomIDFloat, ok := incomingMsg["room_id"].(float64)
			if !ok {
				return
			}
			roomID := uint(roomIDFloat)

			switch msgType {
			case "join":
				if _, err := s.chatRepo.GetRoom(ctx, roomID); err != nil {
					c.SendSystem(fmt.Sprintf("Room %d does not exist", roomID))
					return
				}
				if s.roomHub.IsJoined(c, roomID) {
					return
				}
				s.roomHub.Join(c, roomID)
				joined[roomID] = struct{}{}

				response := notifications.Event{
					Type:    "joined",
					RoomID:  roomID,
					Payload: map[string]interface{}{"room_id": roomID},
				}
				if responseJSON, err := json.Marshal(response); err == nil {
					c.TrySend(responseJSON)
				}
				s.roomHub.BroadcastSystem(roomID,
					fmt.Sprintf("%s joined the room", c.DisplayName))

			case "leave":
				if !s.roomHub.IsJoined(c, roomID) {
					return
				}
				s.roomHub.Leave(c, roomID)
				delete(joined, roomID)
				s.roomHub.BroadcastSystem(roomID,
					fmt.Sprintf("%s left the room", c.DisplayName))

			case "send":
				content, _ := incomingMsg["content"].(string)

				// Rate limit sends per user across all rooms.
				id := fmt.Sprintf("uid:%s", uid)
				allowed, _ := middleware.CheckRateLimit(ctx, s.redis, "send_chat", id, 15, time.Minute)
				if !allowed {
					c.SendSystem("Rate limit exceeded. Please wait a moment.")
					return
				}

				if _, err := s.ingest.HandleSend(ctx, c, roomID, content, uid, email); err != nil {
					log.Printf("WebSocket: send failed for user %s in room %d: %v", uid, roomID, err)
				}
			}
		}

		// Send welcome message
		welcome := notifications.Event{
			Type:    "connected",
			Payload: map[string]interface{}{"uid": uid, "display_name": user.DisplayName},
		}
		if welcomeJSON, err := json.Marshal(welcome); err == nil {
			client.TrySend(welcomeJSON)
		}

		// Start write pump in a goroutine
		go client.WritePump()

		// Read pump runs in the main handler goroutine (blocking)
		client.ReadPump()

		// The read pump has unregistered the client; announce the departure to
		// the rooms it was still joined to.
		for roomID := range joined {
			s.roomHub.BroadcastSystem(roomID,
				fmt.Sprintf("%s left the room", client.DisplayName))
		}
	})
}

package server

import (
	"strings"

	"weebchat/internal/models"

	"github.com/gofiber/fiber/v2"
)

// GetRooms handles GET /api/chat/rooms
func (s *Server) GetRooms(c *fiber.Ctx) error {
	rooms, err := s.chatRepo.ListRooms(c.UserContext())
	if err != nil {
		return respondAppError(c, err)
	}
	return c.JSON(rooms)
}

// CreateRoom handles POST /api/chat/create-room
func (s *Server) CreateRoom(c *fiber.Ctx) error {
	var req struct {
		RoomName string `json:"room_name"`
	}
	if parseErr := c.BodyParser(&req); parseErr != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid request body"))
	}

	req.RoomName = strings.TrimSpace(req.RoomName)
	if req.RoomName == "" {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("room_name is required"))
	}
	if len(req.RoomName) > 100 {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("room_name must be 100 characters or fewer"))
	}

	room := &models.ChatRoom{RoomName: req.RoomName}
	if err := s.chatRepo.CreateRoom(c.UserContext(), room); err != nil {
		return respondAppError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(room)
}

// GetMessages handles GET /api/chat/messages/:roomId
func (s *Server) GetMessages(c *fiber.Ctx) error {
	ctx := c.UserContext()

	roomID, err := s.parseID(c, "roomId")
	if err != nil {
		return nil
	}

	if _, err := s.chatRepo.GetRoom(ctx, roomID); err != nil {
		return respondAppError(c, err)
	}

	limit := c.QueryInt("limit", 50)
	messages, err := s.chatRepo.ListMessages(ctx, roomID, limit)
	if err != nil {
		return respondAppError(c, err)
	}

	return c.JSON(messages)
}

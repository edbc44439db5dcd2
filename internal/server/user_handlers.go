package server

import (
	"strings"

	"weebchat/internal/models"

	"github.com/gofiber/fiber/v2"
)

// GetMyProfile handles GET /api/users/me. The user row is created lazily from
// the verified claims on first contact.
func (s *Server) GetMyProfile(c *fiber.Ctx) error {
	uid := c.Locals("uid").(string)
	email, _ := c.Locals("email").(string)

	user, err := s.userRepo.UpsertByUid(c.UserContext(), uid, email)
	if err != nil {
		return respondAppError(c, err)
	}

	return c.JSON(user)
}

// UpdateDisplayName handles POST /api/users/displayname
func (s *Server) UpdateDisplayName(c *fiber.Ctx) error {
	uid := c.Locals("uid").(string)

	var req struct {
		DisplayName string `json:"display_name"`
	}
	if parseErr := c.BodyParser(&req); parseErr != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid request body"))
	}

	req.DisplayName = strings.TrimSpace(req.DisplayName)
	if req.DisplayName == "" {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("display_name is required"))
	}
	if len(req.DisplayName) > 50 {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("display_name must be 50 characters or fewer"))
	}

	user, err := s.userRepo.SetDisplayName(c.UserContext(), uid, req.DisplayName)
	if err != nil {
		return respondAppError(c, err)
	}

	return c.JSON(user)
}

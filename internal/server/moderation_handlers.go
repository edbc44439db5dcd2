package server

import (
	"strings"

	"weebchat/internal/models"

	"github.com/gofiber/fiber/v2"
)

// EvaluateContent handles POST /api/moderation/evaluate. The endpoint is
// anonymous and side-effect free: it runs the pipeline without touching the
// ledger, so clients can probe how a message would be judged.
func (s *Server) EvaluateContent(c *fiber.Ctx) error {
	var req struct {
		Content string `json:"content"`
		Context string `json:"context,omitempty"`
	}
	if parseErr := c.BodyParser(&req); parseErr != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid request body"))
	}

	uid, _ := c.Locals("uid").(string)
	if uid == "" {
		uid = "anonymous"
	}

	verdict := s.pipeline.Evaluate(c.UserContext(), req.Content, req.Context, uid)

	return c.JSON(fiber.Map{
		"flagged":  verdict.Flagged,
		"category": verdict.Category,
		"score":    verdict.Score,
		"reason":   verdict.Reason,
		"severity": verdict.Severity.String(),
	})
}

// ReportMessage handles POST /api/moderation/report
func (s *Server) ReportMessage(c *fiber.Ctx) error {
	ctx := c.UserContext()
	uid := c.Locals("uid").(string)

	var req struct {
		MessageID uint   `json:"message_id"`
		Reason    string `json:"reason"`
		Details   string `json:"details,omitempty"`
	}
	if parseErr := c.BodyParser(&req); parseErr != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid request body"))
	}

	req.Reason = strings.TrimSpace(req.Reason)
	if req.MessageID == 0 || req.Reason == "" {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("message_id and reason are required"))
	}

	msg, err := s.chatRepo.GetMessage(ctx, req.MessageID)
	if err != nil {
		return respondAppError(c, err)
	}
	if msg.SenderUid == uid {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("You cannot report your own message"))
	}

	report := &models.Report{
		MessageID:   msg.ID,
		ReporterUid: uid,
		ReportedUid: msg.SenderUid,
		Reason:      req.Reason,
		Details:     req.Details,
	}
	if err := s.moderationRepo.CreateReport(ctx, report); err != nil {
		return respondAppError(c, err)
	}

	banned, err := s.ledger.RecordReport(ctx, msg.SenderUid)
	if err != nil {
		return respondAppError(c, err)
	}

	return c.JSON(fiber.Map{
		"result":    "Report submitted",
		"report_id": report.ID,
		"banned":    banned,
	})
}

// GetMyModerationLogs handles GET /api/moderation/logs/me
func (s *Server) GetMyModerationLogs(c *fiber.Ctx) error {
	uid := c.Locals("uid").(string)

	logs, err := s.moderationRepo.ListLogsForUser(c.UserContext(), uid, 50)
	if err != nil {
		return respondAppError(c, err)
	}

	return c.JSON(logs)
}

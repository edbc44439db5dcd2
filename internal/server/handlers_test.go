package server

import (
	"context"
	"net/http"
	"strings"
	"testing"

	"weebchat/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLivenessCheck(t *testing.T) {
	_, app := newTestServer(t, nil)

	req, _ := http.NewRequest(http.MethodGet, "/health/live", nil)
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestReadinessCheck_ReportsRedisUnavailable(t *testing.T) {
	_, app := newTestServer(t, nil)

	req, _ := http.NewRequest(http.MethodGet, "/health/ready", nil)
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var body struct {
		Status string `json:"status"`
		Checks struct {
			Database string `json:"database"`
			Redis    string `json:"redis"`
		} `json:"checks"`
	}
	decodeBody(t, resp, &body)
	assert.Equal(t, "healthy", body.Checks.Database)
	assert.Equal(t, "unavailable", body.Checks.Redis)
}

func TestProtectedRoutes_RequireAuth(t *testing.T) {
	_, app := newTestServer(t, nil)

	req, _ := http.NewRequest(http.MethodGet, "/api/chat/rooms", nil)
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestCreateRoomAndList(t *testing.T) {
	_, app := newTestServer(t, nil)

	body := strings.NewReader(`{"room_name":"general"}`)
	resp, err := app.Test(authedRequest(t, http.MethodPost, "/api/chat/create-room", "uid-1", body))
	require.NoError(t, err)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var room models.ChatRoom
	decodeBody(t, resp, &room)
	assert.NotZero(t, room.ID)
	assert.Equal(t, "general", room.RoomName)

	resp, err = app.Test(authedRequest(t, http.MethodGet, "/api/chat/rooms", "uid-1", nil))
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var rooms []models.ChatRoom
	decodeBody(t, resp, &rooms)
	require.Len(t, rooms, 1)
	assert.Equal(t, room.ID, rooms[0].ID)
}

func TestCreateRoom_Validation(t *testing.T) {
	_, app := newTestServer(t, nil)

	for _, payload := range []string{`{"room_name":"   "}`, `{}`, `not json`} {
		resp, err := app.Test(authedRequest(
			t, http.MethodPost, "/api/chat/create-room", "uid-1", strings.NewReader(payload)))
		require.NoError(t, err)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode, "payload %q", payload)
	}
}

func TestGetMessages_UnknownRoom(t *testing.T) {
	_, app := newTestServer(t, nil)

	resp, err := app.Test(authedRequest(t, http.MethodGet, "/api/chat/messages/999", "uid-1", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestGetMessages_ReturnsHistory(t *testing.T) {
	s, app := newTestServer(t, nil)
	ctx := context.Background()

	room := &models.ChatRoom{RoomName: "general"}
	require.NoError(t, s.chatRepo.CreateRoom(ctx, room))
	require.NoError(t, s.chatRepo.CreateMessage(ctx, &models.Message{
		ChatRoomID: room.ID, SenderUid: "uid-1", Content: "hello",
	}))

	resp, err := app.Test(authedRequest(t, http.MethodGet, "/api/chat/messages/1", "uid-1", nil))
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var messages []models.Message
	decodeBody(t, resp, &messages)
	require.Len(t, messages, 1)
	assert.Equal(t, "hello", messages[0].Content)
}

func TestGetMyProfile_CreatesUserLazily(t *testing.T) {
	_, app := newTestServer(t, nil)

	resp, err := app.Test(authedRequest(t, http.MethodGet, "/api/users/me", "uid-lazy", nil))
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var user models.User
	decodeBody(t, resp, &user)
	assert.Equal(t, "uid-lazy", user.Uid)
	assert.Equal(t, models.DefaultDisplayName, user.DisplayName)
}

func TestUpdateDisplayName(t *testing.T) {
	_, app := newTestServer(t, nil)

	body := strings.NewReader(`{"display_name":"Sakura"}`)
	resp, err := app.Test(authedRequest(t, http.MethodPost, "/api/users/displayname", "uid-1", body))
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var user models.User
	decodeBody(t, resp, &user)
	assert.Equal(t, "Sakura", user.DisplayName)

	resp, err = app.Test(authedRequest(
		t, http.MethodPost, "/api/users/displayname", "uid-1", strings.NewReader(`{"display_name":""}`)))
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestEvaluateContent_BannedWord(t *testing.T) {
	_, app := newTestServer(t, nil)

	body := strings.NewReader(`{"content":"you are an idiot"}`)
	req, _ := http.NewRequest(http.MethodPost, "/api/moderation/evaluate", body)
	req.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(req)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var verdict struct {
		Flagged  bool    `json:"flagged"`
		Category string  `json:"category"`
		Reason   string  `json:"reason"`
		Severity string  `json:"severity"`
		Score    float64 `json:"score"`
	}
	decodeBody(t, resp, &verdict)
	assert.True(t, verdict.Flagged)
	assert.Equal(t, "banned_word", verdict.Category)
	assert.Equal(t, "hard", verdict.Severity)
	assert.Equal(t, "Detected banned term: idiot", verdict.Reason)
}

// Without a classifier credential the pipeline fails open.
func TestEvaluateContent_MissingCredentialFailsOpen(t *testing.T) {
	_, app := newTestServer(t, nil)

	body := strings.NewReader(`{"content":"perfectly fine message"}`)
	req, _ := http.NewRequest(http.MethodPost, "/api/moderation/evaluate", body)
	req.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(req)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var verdict struct {
		Flagged  bool   `json:"flagged"`
		Category string `json:"category"`
		Reason   string `json:"reason"`
	}
	decodeBody(t, resp, &verdict)
	assert.False(t, verdict.Flagged)
	assert.Equal(t, "config_error", verdict.Category)
	assert.Equal(t, "OPENAI_API_KEY missing", verdict.Reason)
}

func TestReportMessage(t *testing.T) {
	s, app := newTestServer(t, nil)
	ctx := context.Background()

	room := &models.ChatRoom{RoomName: "general"}
	require.NoError(t, s.chatRepo.CreateRoom(ctx, room))
	_, err := s.userRepo.UpsertByUid(ctx, "uid-sender", "")
	require.NoError(t, err)
	msg := &models.Message{ChatRoomID: room.ID, SenderUid: "uid-sender", Content: "hmm"}
	require.NoError(t, s.chatRepo.CreateMessage(ctx, msg))

	body := strings.NewReader(`{"message_id":1,"reason":"spam","details":"posted it five times"}`)
	resp, err := app.Test(authedRequest(t, http.MethodPost, "/api/moderation/report", "uid-reporter", body))
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var result struct {
		Result   string `json:"result"`
		ReportID uint   `json:"report_id"`
		Banned   bool   `json:"banned"`
	}
	decodeBody(t, resp, &result)
	assert.NotZero(t, result.ReportID)
	assert.False(t, result.Banned)

	var reports []models.Report
	require.NoError(t, s.db.Find(&reports).Error)
	require.Len(t, reports, 1)
	assert.Equal(t, "uid-reporter", reports[0].ReporterUid)
	assert.Equal(t, "uid-sender", reports[0].ReportedUid)

	sender, err := s.userRepo.GetByUid(ctx, "uid-sender")
	require.NoError(t, err)
	assert.Equal(t, 1, sender.ReportCount)
}

func TestReportMessage_RejectsSelfReport(t *testing.T) {
	s, app := newTestServer(t, nil)
	ctx := context.Background()

	room := &models.ChatRoom{RoomName: "general"}
	require.NoError(t, s.chatRepo.CreateRoom(ctx, room))
	require.NoError(t, s.chatRepo.CreateMessage(ctx, &models.Message{
		ChatRoomID: room.ID, SenderUid: "uid-1", Content: "my own",
	}))

	body := strings.NewReader(`{"message_id":1,"reason":"spam"}`)
	resp, err := app.Test(authedRequest(t, http.MethodPost, "/api/moderation/report", "uid-1", body))
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestReportMessage_UnknownMessage(t *testing.T) {
	_, app := newTestServer(t, nil)

	body := strings.NewReader(`{"message_id":42,"reason":"spam"}`)
	resp, err := app.Test(authedRequest(t, http.MethodPost, "/api/moderation/report", "uid-1", body))
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestReportMessage_Validation(t *testing.T) {
	_, app := newTestServer(t, nil)

	body := strings.NewReader(`{"message_id":1}`)
	resp, err := app.Test(authedRequest(t, http.MethodPost, "/api/moderation/report", "uid-1", body))
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

package repository

import (
	"context"
	"testing"

	"weebchat/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateLogAndListForUser(t *testing.T) {
	db := newTestDB(t)
	chatRepo := NewChatRepository(db)
	modRepo := NewModerationRepository(db)
	ctx := context.Background()

	room := &models.ChatRoom{RoomName: "general"}
	require.NoError(t, chatRepo.CreateRoom(ctx, room))

	msg := &models.Message{
		ChatRoomID: room.ID,
		SenderUid:  "uid-1",
		Content:    models.RedactedContent,
		IsDeleted:  true,
		IsFlagged:  true,
	}
	require.NoError(t, chatRepo.CreateMessage(ctx, msg))

	score := 0.91
	require.NoError(t, modRepo.CreateLog(ctx, &models.ModerationLog{
		MessageID: msg.ID,
		SenderUid: "uid-1",
		Category:  "violence",
		Score:     &score,
		Reason:    "Severe violation",
	}))

	logs, err := modRepo.ListLogsForUser(ctx, "uid-1", 10)
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Equal(t, msg.ID, logs[0].MessageID)
	assert.Equal(t, "violence", logs[0].Category)

	logs, err = modRepo.ListLogsForUser(ctx, "uid-other", 10)
	require.NoError(t, err)
	assert.Empty(t, logs)
}

func TestCreateReport(t *testing.T) {
	db := newTestDB(t)
	chatRepo := NewChatRepository(db)
	modRepo := NewModerationRepository(db)
	ctx := context.Background()

	room := &models.ChatRoom{RoomName: "general"}
	require.NoError(t, chatRepo.CreateRoom(ctx, room))

	msg := &models.Message{ChatRoomID: room.ID, SenderUid: "uid-2", Content: "sus"}
	require.NoError(t, chatRepo.CreateMessage(ctx, msg))

	report := &models.Report{
		MessageID:   msg.ID,
		ReporterUid: "uid-1",
		ReportedUid: "uid-2",
		Reason:      "harassment",
		Details:     "kept pinging me",
	}
	require.NoError(t, modRepo.CreateReport(ctx, report))
	assert.NotZero(t, report.ID)
}

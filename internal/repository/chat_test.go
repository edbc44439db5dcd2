package repository

import (
	"context"
	"fmt"
	"testing"

	"weebchat/internal/models"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func TestCreateAndGetRoom(t *testing.T) {
	repo := NewChatRepository(newTestDB(t))
	ctx := context.Background()

	room := &models.ChatRoom{RoomName: "general"}
	require.NoError(t, repo.CreateRoom(ctx, room))
	require.NotZero(t, room.ID)

	got, err := repo.GetRoom(ctx, room.ID)
	require.NoError(t, err)
	assert.Equal(t, "general", got.RoomName)

	_, err = repo.GetRoom(ctx, room.ID+100)
	require.Error(t, err)
}

func TestListRooms(t *testing.T) {
	repo := NewChatRepository(newTestDB(t))
	ctx := context.Background()

	for _, name := range []string{"general", "anime", "offtopic"} {
		require.NoError(t, repo.CreateRoom(ctx, &models.ChatRoom{RoomName: name}))
	}

	rooms, err := repo.ListRooms(ctx)
	require.NoError(t, err)
	require.Len(t, rooms, 3)
	assert.Equal(t, "general", rooms[0].RoomName)
}

func TestListMessages_ChronologicalWithLimit(t *testing.T) {
	db := newTestDB(t)
	repo := NewChatRepository(db)
	ctx := context.Background()

	room := &models.ChatRoom{RoomName: "general"}
	require.NoError(t, repo.CreateRoom(ctx, room))

	for i := 1; i <= 5; i++ {
		msg := &models.Message{
			ChatRoomID: room.ID,
			SenderUid:  "uid-1",
			Content:    fmt.Sprintf("message %d", i),
		}
		require.NoError(t, repo.CreateMessage(ctx, msg))
	}

	messages, err := repo.ListMessages(ctx, room.ID, 3)
	require.NoError(t, err)
	require.Len(t, messages, 3)
	// Newest three, oldest first.
	assert.Equal(t, "message 3", messages[0].Content)
	assert.Equal(t, "message 5", messages[2].Content)
}

func TestListMessages_IncludesRedactedRows(t *testing.T) {
	repo := NewChatRepository(newTestDB(t))
	ctx := context.Background()

	room := &models.ChatRoom{RoomName: "general"}
	require.NoError(t, repo.CreateRoom(ctx, room))

	score := 0.97
	redacted := &models.Message{
		ChatRoomID:         room.ID,
		SenderUid:          "uid-1",
		Content:            models.RedactedContent,
		IsDeleted:          true,
		IsFlagged:          true,
		ModerationCategory: "violence",
		ModerationScore:    &score,
	}
	require.NoError(t, repo.CreateMessage(ctx, redacted))

	messages, err := repo.ListMessages(ctx, room.ID, 10)
	require.NoError(t, err)
	require.Len(t, messages, 1)
	assert.Equal(t, models.RedactedContent, messages[0].Content)
	assert.True(t, messages[0].IsDeleted)
}

// A write that fails at the driver level must surface as an internal error,
// not a panic or silent success.
func TestCreateMessage_PersistenceFailure(t *testing.T) {
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer sqlDB.Close()

	db, err := gorm.Open(postgres.New(postgres.Config{
		Conn:                 sqlDB,
		PreferSimpleProtocol: true,
	}), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	mock.ExpectBegin()
	mock.ExpectQuery(`INSERT INTO "messages"`).WillReturnError(fmt.Errorf("disk full"))
	mock.ExpectRollback()

	repo := NewChatRepository(db)
	err = repo.CreateMessage(context.Background(), &models.Message{
		ChatRoomID: 1,
		SenderUid:  "uid-1",
		Content:    "hello",
	})
	require.Error(t, err)
	appErr, ok := err.(*models.AppError)
	require.True(t, ok)
	assert.Equal(t, "INTERNAL_ERROR", appErr.Code)
	assert.NoError(t, mock.ExpectationsWereMet())
}

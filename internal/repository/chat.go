package repository

import (
	"context"
	"errors"

	"weebchat/internal/cache"
	"weebchat/internal/models"

	"gorm.io/gorm"
)

// ChatRepository defines persistence operations for rooms and messages.
type ChatRepository interface {
	CreateRoom(ctx context.Context, room *models.ChatRoom) error
	GetRoom(ctx context.Context, id uint) (*models.ChatRoom, error)
	ListRooms(ctx context.Context) ([]models.ChatRoom, error)
	CreateMessage(ctx context.Context, msg *models.Message) error
	GetMessage(ctx context.Context, id uint) (*models.Message, error)
	ListMessages(ctx context.Context, roomID uint, limit int) ([]models.Message, error)
}

type chatRepository struct {
	db *gorm.DB
}

// NewChatRepository returns a new ChatRepository implementation.
func NewChatRepository(db *gorm.DB) ChatRepository {
	return &chatRepository{db: db}
}

func (r *chatRepository) CreateRoom(ctx context.Context, room *models.ChatRoom) error {
	if err := r.db.WithContext(ctx).Create(room).Error; err != nil {
		return models.NewInternalError(err)
	}
	cache.InvalidateRoomList(ctx)
	return nil
}

func (r *chatRepository) GetRoom(ctx context.Context, id uint) (*models.ChatRoom, error) {
	var room models.ChatRoom
	key := cache.RoomKey(id)

	err := cache.Aside(ctx, key, &room, cache.RoomTTL, func() error {
		if err := r.db.WithContext(ctx).First(&room, id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return models.NewNotFoundError("ChatRoom", id)
			}
			return models.NewInternalError(err)
		}
		return nil
	})

	if err != nil {
		return nil, err
	}
	return &room, nil
}

func (r *chatRepository) ListRooms(ctx context.Context) ([]models.ChatRoom, error) {
	var rooms []models.ChatRoom

	err := cache.Aside(ctx, cache.RoomListKey, &rooms, cache.RoomListTTL, func() error {
		if err := r.db.WithContext(ctx).Order("id ASC").Find(&rooms).Error; err != nil {
			return models.NewInternalError(err)
		}
		return nil
	})

	if err != nil {
		return nil, err
	}
	return rooms, nil
}

func (r *chatRepository) CreateMessage(ctx context.Context, msg *models.Message) error {
	if err := r.db.WithContext(ctx).Create(msg).Error; err != nil {
		return models.NewInternalError(err)
	}
	cache.Invalidate(ctx, cache.MessageHistoryKey(msg.ChatRoomID))
	return nil
}

func (r *chatRepository) GetMessage(ctx context.Context, id uint) (*models.Message, error) {
	var msg models.Message
	if err := r.db.WithContext(ctx).First(&msg, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, models.NewNotFoundError("Message", id)
		}
		return nil, models.NewInternalError(err)
	}
	return &msg, nil
}

// ListMessages returns the newest messages for a room in chronological order.
// Redacted rows are included so clients render the removal placeholder.
func (r *chatRepository) ListMessages(ctx context.Context, roomID uint, limit int) ([]models.Message, error) {
	if limit <= 0 {
		limit = 50
	}
	if limit > 200 {
		limit = 200
	}

	var messages []models.Message
	if err := r.db.WithContext(ctx).
		Where("chat_room_id = ?", roomID).
		Order("id DESC").
		Limit(limit).
		Find(&messages).Error; err != nil {
		return nil, models.NewInternalError(err)
	}

	// Reverse into chronological order.
	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}
	return messages, nil
}

package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	UserKeyPrefix        = "user:%s"
	RoomKeyPrefix        = "room:%d"
	RoomListKey          = "rooms"
	MessageHistoryPrefix = "room:%d:messages"
)

const (
	UserTTL           = 5 * time.Minute
	RoomTTL           = 10 * time.Minute
	RoomListTTL       = 2 * time.Minute
	MessageHistoryTTL = 2 * time.Minute
)

func UserKey(uid string) string {
	return fmt.Sprintf(UserKeyPrefix, uid)
}

func RoomKey(roomID uint) string {
	return fmt.Sprintf(RoomKeyPrefix, roomID)
}

func MessageHistoryKey(roomID uint) string {
	return fmt.Sprintf(MessageHistoryPrefix, roomID)
}

// Aside implements the cache-aside pattern: on a hit, dest is populated from
// the cached JSON; on a miss, load fills dest and the result is written back
// with the given TTL. A nil client degrades to calling load directly.
func Aside(ctx context.Context, key string, dest interface{}, ttl time.Duration, load func() error) error {
	if client == nil {
		return load()
	}

	data, err := client.Get(ctx, key).Result()
	if err == nil {
		if unmarshalErr := json.Unmarshal([]byte(data), dest); unmarshalErr == nil {
			return nil
		}
		// Corrupt entry: drop it and fall through to the loader.
		client.Del(ctx, key)
	} else if !errors.Is(err, redis.Nil) {
		// Redis unavailable: serve from the source of truth.
		return load()
	}

	if err := load(); err != nil {
		return err
	}

	if encoded, err := json.Marshal(dest); err == nil {
		client.Set(ctx, key, encoded, ttl)
	}
	return nil
}

func Invalidate(ctx context.Context, key string) {
	if client != nil {
		client.Del(ctx, key)
	}
}

func InvalidateUser(ctx context.Context, uid string) {
	Invalidate(ctx, UserKey(uid))
}

func InvalidateRoom(ctx context.Context, roomID uint) {
	Invalidate(ctx, RoomKey(roomID))
	Invalidate(ctx, MessageHistoryKey(roomID))
}

func InvalidateRoomList(ctx context.Context) {
	Invalidate(ctx, RoomListKey)
}

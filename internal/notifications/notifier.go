package notifications

import (
	"context"
	"log"
	"runtime/debug"
	"strconv"

	"github.com/redis/go-redis/v9"
)

const globalChannel = "system:global"

// Notifier publishes room events into Redis channels so broadcasts reach
// every running instance. A Notifier with a nil client is a no-op.
type Notifier struct {
	rdb *redis.Client
}

// NewNotifier creates a new Notifier instance using the provided Redis client.
func NewNotifier(rdb *redis.Client) *Notifier {
	return &Notifier{rdb: rdb}
}

// Enabled reports whether Redis-backed fan-out is available.
func (n *Notifier) Enabled() bool {
	return n != nil && n.rdb != nil
}

// Publish sends a payload to the given channel.
func (n *Notifier) Publish(ctx context.Context, channel, payload string) error {
	if !n.Enabled() {
		return nil
	}
	return n.rdb.Publish(ctx, channel, payload).Err()
}

// PublishGlobal sends a payload to every instance's connected clients.
func (n *Notifier) PublishGlobal(ctx context.Context, payload string) error {
	if !n.Enabled() {
		return nil
	}
	return n.rdb.Publish(ctx, globalChannel, payload).Err()
}

// StartRoomSubscriber subscribes to room chat, room system, and global
// channels and calls onMessage for each incoming message.
func (n *Notifier) StartRoomSubscriber(
	ctx context.Context, onMessage func(channel string, payload string),
) error {
	if !n.Enabled() {
		return nil
	}
	sub := n.rdb.PSubscribe(ctx, "chat:room:*", "system:room:*", globalChannel)
	ch := sub.Channel()

	go func() {
		defer func() { _ = sub.Close() }()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				func() {
					defer func() {
						if r := recover(); r != nil {
							log.Printf("PANIC in RoomSubscriber: %v\n%s", r, debug.Stack())
						}
					}()
					onMessage(msg.Channel, msg.Payload)
				}()
			}
		}
	}()

	return nil
}

// ChatChannel derives the Redis channel name for a room's chat events.
func ChatChannel(roomID uint) string {
	return "chat:room:" + strconv.FormatUint(uint64(roomID), 10)
}

// SystemChannel derives the Redis channel name for a room's system notices.
func SystemChannel(roomID uint) string {
	return "system:room:" + strconv.FormatUint(uint64(roomID), 10)
}

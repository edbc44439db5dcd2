// Package service implements the chat core: the rolling context cache, the
// violation ledger, and the message ingest state machine.
package service

import (
	"strings"
	"sync"
)

// contextWindowSize bounds the per-room rolling buffer.
const contextWindowSize = 10

type roomWindow struct {
	mu      sync.Mutex
	entries []string
}

// ContextCache keeps a bounded rolling buffer of recent message texts per
// room. It is process-scoped and best-effort: contents are lost on restart,
// which is acceptable because the buffer is only a heuristic input to
// moderation, never ground truth.
type ContextCache struct {
	mu    sync.Mutex
	rooms map[uint]*roomWindow
}

// NewContextCache returns an empty cache.
func NewContextCache() *ContextCache {
	return &ContextCache{rooms: make(map[uint]*roomWindow)}
}

func (c *ContextCache) room(roomID uint) *roomWindow {
	c.mu.Lock()
	defer c.mu.Unlock()
	w, ok := c.rooms[roomID]
	if !ok {
		w = &roomWindow{}
		c.rooms[roomID] = w
	}
	return w
}

// Append pushes text onto the room's buffer, evicting the oldest entry once
// the window is full. Rooms are locked independently so concurrent senders in
// different rooms never contend.
func (c *ContextCache) Append(roomID uint, text string) {
	w := c.room(roomID)
	w.mu.Lock()
	defer w.mu.Unlock()

	w.entries = append(w.entries, text)
	if len(w.entries) > contextWindowSize {
		w.entries = w.entries[1:]
	}
}

// Snapshot returns the room's buffer newline-joined in insertion order, or an
// empty string for a room that has never seen a message.
func (c *ContextCache) Snapshot(roomID uint) string {
	c.mu.Lock()
	w, ok := c.rooms[roomID]
	c.mu.Unlock()
	if !ok {
		return ""
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	return strings.Join(w.entries, "\n")
}

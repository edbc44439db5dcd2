package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"weebchat/internal/middleware"
	"weebchat/internal/models"
	"weebchat/internal/moderation"
	"weebchat/internal/observability"
	"weebchat/internal/repository"
)

// IngestState is the terminal state of one send attempt.
type IngestState int

const (
	// StateRejected is the silent terminal state for blank input.
	StateRejected IngestState = iota
	StateBannedRejected
	StateSoftWarned
	StateHardBlocked
	StateAccepted
)

func (s IngestState) String() string {
	switch s {
	case StateBannedRejected:
		return "banned_rejected"
	case StateSoftWarned:
		return "soft_warned"
	case StateHardBlocked:
		return "hard_blocked"
	case StateAccepted:
		return "accepted"
	default:
		return "rejected"
	}
}

// Evaluator produces a moderation verdict for one message.
type Evaluator interface {
	Evaluate(ctx context.Context, content, contextSnippet, senderUid string) moderation.Verdict
}

// Recipient is the sending user's connection. Notices are private and
// fire-and-forget; Abort forcibly terminates the connection.
type Recipient interface {
	SendSystem(text string)
	Abort()
}

// ChatEvent is the payload fanned out to a room on an accepted message.
type ChatEvent struct {
	RoomID     uint      `json:"room_id"`
	Content    string    `json:"content"`
	SenderUid  string    `json:"sender_uid"`
	SenderName string    `json:"sender_name"`
	SentAt     time.Time `json:"sent_at"`
}

// Broadcaster fans out accepted messages to a room's joined connections.
type Broadcaster interface {
	BroadcastChat(roomID uint, event ChatEvent)
}

// MessageIngest orchestrates a send: ban check, context snapshot, moderation,
// persistence, cache append, and fan-out. Handling is serialized per room so
// the context snapshot seen by each evaluation is consistent with what was
// actually broadcast, and persistence always precedes broadcast.
type MessageIngest struct {
	users       repository.UserRepository
	chats       repository.ChatRepository
	moderations repository.ModerationRepository
	ledger      *ViolationLedger
	cache       *ContextCache
	evaluator   Evaluator
	broadcaster Broadcaster
	logger      *slog.Logger

	mu        sync.Mutex
	roomLocks map[uint]*sync.Mutex
}

// NewMessageIngest wires the ingest state machine.
func NewMessageIngest(
	users repository.UserRepository,
	chats repository.ChatRepository,
	moderations repository.ModerationRepository,
	ledger *ViolationLedger,
	cache *ContextCache,
	evaluator Evaluator,
	broadcaster Broadcaster,
) *MessageIngest {
	return &MessageIngest{
		users:       users,
		chats:       chats,
		moderations: moderations,
		ledger:      ledger,
		cache:       cache,
		evaluator:   evaluator,
		broadcaster: broadcaster,
		logger:      middleware.Logger,
		roomLocks:   make(map[uint]*sync.Mutex),
	}
}

func (m *MessageIngest) roomLock(roomID uint) *sync.Mutex {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.roomLocks[roomID]
	if !ok {
		l = &sync.Mutex{}
		m.roomLocks[roomID] = l
	}
	return l
}

func terminal(state IngestState) (IngestState, error) {
	observability.RecordIngestOutcome(state.String())
	return state, nil
}

// HandleSend runs one send attempt to a terminal state. A returned error means
// a persistence failure: the send is aborted and nothing was broadcast.
func (m *MessageIngest) HandleSend(ctx context.Context, recipient Recipient, roomID uint, content, uid, email string) (IngestState, error) {
	if roomID == 0 || strings.TrimSpace(content) == "" {
		// Silent rejection, no side effects.
		return terminal(StateRejected)
	}

	user, err := m.users.UpsertByUid(ctx, uid, email)
	if err != nil {
		return StateRejected, err
	}

	if user.IsBanned {
		recipient.SendSystem("You are banned and cannot send messages.")
		recipient.Abort()
		return terminal(StateBannedRejected)
	}

	// Serialize per room: the snapshot a concurrent evaluation sees must
	// match what was broadcast before it.
	lock := m.roomLock(roomID)
	lock.Lock()
	defer lock.Unlock()

	snapshot := m.cache.Snapshot(roomID)
	verdict := m.evaluator.Evaluate(ctx, content, snapshot, uid)

	if !verdict.Flagged {
		return m.accept(ctx, user, roomID, content)
	}

	switch verdict.Severity {
	case moderation.SeveritySoft:
		return m.softWarn(ctx, recipient, user, verdict)
	default:
		return m.hardBlock(ctx, recipient, user, roomID, verdict)
	}
}

func (m *MessageIngest) accept(ctx context.Context, user *models.User, roomID uint, content string) (IngestState, error) {
	msg := &models.Message{
		ChatRoomID: roomID,
		SenderUid:  user.Uid,
		UserID:     user.ID,
		Content:    content,
		SentAt:     time.Now().UTC(),
	}
	if err := m.chats.CreateMessage(ctx, msg); err != nil {
		// Never broadcast a message that failed to persist.
		return StateRejected, err
	}

	m.cache.Append(roomID, content)

	m.broadcaster.BroadcastChat(roomID, ChatEvent{
		RoomID:     roomID,
		Content:    msg.Content,
		SenderUid:  msg.SenderUid,
		SenderName: user.DisplayName,
		SentAt:     msg.SentAt,
	})
	return terminal(StateAccepted)
}

// softWarn drops the content permanently: no Message row, no broadcast. The
// sender gets a private warning and the violation still counts toward a ban.
func (m *MessageIngest) softWarn(ctx context.Context, recipient Recipient, user *models.User, verdict moderation.Verdict) (IngestState, error) {
	escalation, err := m.ledger.RecordViolation(ctx, user.Uid)
	if err != nil {
		return StateRejected, err
	}

	if escalation == EscalationBanned {
		recipient.SendSystem("Your account has been permanently banned due to repeated violations.")
		recipient.Abort()
	} else {
		recipient.SendSystem(fmt.Sprintf("Warning: %s (%s)", verdict.Reason, verdict.Category))
	}
	return terminal(StateSoftWarned)
}

// hardBlock persists a redacted Message row plus a ModerationLog so the
// violation is auditable, then records it in the ledger.
func (m *MessageIngest) hardBlock(ctx context.Context, recipient Recipient, user *models.User, roomID uint, verdict moderation.Verdict) (IngestState, error) {
	msg := &models.Message{
		ChatRoomID:         roomID,
		SenderUid:          user.Uid,
		UserID:             user.ID,
		Content:            models.RedactedContent,
		SentAt:             time.Now().UTC(),
		IsDeleted:          true,
		IsFlagged:          true,
		ModerationCategory: string(verdict.Category),
		ModerationScore:    verdict.Score,
	}
	if err := m.chats.CreateMessage(ctx, msg); err != nil {
		return StateRejected, err
	}

	if err := m.moderations.CreateLog(ctx, &models.ModerationLog{
		MessageID: msg.ID,
		SenderUid: user.Uid,
		Category:  string(verdict.Category),
		Score:     verdict.Score,
		Reason:    verdict.Reason,
	}); err != nil {
		return StateRejected, err
	}

	escalation, err := m.ledger.RecordViolation(ctx, user.Uid)
	if err != nil {
		return StateRejected, err
	}

	if escalation == EscalationBanned {
		recipient.SendSystem("Your account has been permanently banned due to repeated violations.")
		recipient.Abort()
	} else {
		recipient.SendSystem(fmt.Sprintf("Message blocked: %s (%s)", verdict.Reason, verdict.Category))
	}

	m.logger.InfoContext(ctx, "message hard blocked",
		slog.String("uid", user.Uid),
		slog.String("category", string(verdict.Category)),
		slog.String("reason", verdict.Reason),
	)
	return terminal(StateHardBlocked)
}

// DisplayName resolves the sender's display name for join, leave, and
// departure notices without creating a row.
func (m *MessageIngest) DisplayName(ctx context.Context, uid string) string {
	user, err := m.users.GetByUid(ctx, uid)
	if err != nil || user.DisplayName == "" {
		return models.DefaultDisplayName
	}
	return user.DisplayName
}

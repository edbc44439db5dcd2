package service

import (
	"context"
	"errors"
	"sync"

	"weebchat/internal/models"
	"weebchat/internal/repository"
)

// Ban thresholds. Both counters are independent triggers sharing one ban
// flag; neither counter nor the flag is ever decremented or cleared.
const (
	ViolationBanThreshold = 3
	ReportBanThreshold    = 10
)

// Escalation reports whether a recorded violation tipped the user into a ban.
type Escalation int

const (
	EscalationNone Escalation = iota
	EscalationBanned
)

// ViolationLedger tracks per-user violation and report counters and the ban
// flag. Counter updates run as single SQL statements so concurrent sends by
// the same user across rooms cannot lose increments; the per-user mutex
// additionally serializes the increment with the escalation read.
type ViolationLedger struct {
	users repository.UserRepository

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewViolationLedger returns a ledger backed by the user repository.
func NewViolationLedger(users repository.UserRepository) *ViolationLedger {
	return &ViolationLedger{
		users: users,
		locks: make(map[string]*sync.Mutex),
	}
}

func (l *ViolationLedger) userLock(uid string) *sync.Mutex {
	l.mu.Lock()
	defer l.mu.Unlock()
	m, ok := l.locks[uid]
	if !ok {
		m = &sync.Mutex{}
		l.locks[uid] = m
	}
	return m
}

// RecordViolation bumps the user's violation counter and reports
// EscalationBanned once the ban flag is set.
func (l *ViolationLedger) RecordViolation(ctx context.Context, uid string) (Escalation, error) {
	lock := l.userLock(uid)
	lock.Lock()
	defer lock.Unlock()

	user, err := l.users.IncrementViolation(ctx, uid, ViolationBanThreshold)
	if err != nil {
		return EscalationNone, err
	}
	if user.IsBanned {
		return EscalationBanned, nil
	}
	return EscalationNone, nil
}

// RecordReport bumps the reported user's report counter and returns whether
// the user is banned afterwards.
func (l *ViolationLedger) RecordReport(ctx context.Context, uid string) (bool, error) {
	lock := l.userLock(uid)
	lock.Lock()
	defer lock.Unlock()

	user, err := l.users.IncrementReport(ctx, uid, ReportBanThreshold)
	if err != nil {
		return false, err
	}
	return user.IsBanned, nil
}

// IsBanned is a pure read. Unknown users are not banned.
func (l *ViolationLedger) IsBanned(ctx context.Context, uid string) (bool, error) {
	user, err := l.users.GetByUid(ctx, uid)
	if err != nil {
		var appErr *models.AppError
		if errors.As(err, &appErr) && appErr.Code == "NOT_FOUND" {
			return false, nil
		}
		return false, err
	}
	return user.IsBanned, nil
}

package ledger

import (
	"sync"
	"time"

	"lunchbot-api/internal/common"
)

// CancellationWindow guards the same-day cancellation cutoff. The check is a
// business rule applied at call time against the injected clock, not a
// scheduler-level cancellation.
type CancellationWindow struct {
	CutoffHour int
	Location   *time.Location
}

// Allows returns nil if a user-initiated cancellation for day is still
// permitted at the given instant. Past days are always rejected; the current
// day is rejected from the cutoff hour onward; future days are always open.
func (w CancellationWindow) Allows(now time.Time, day common.Day) error {
	localNow := now.In(w.Location)
	today := common.DayOf(localNow)

	if day.Before(today) {
		return ErrPastDay
	}
	if day == today && localNow.Hour() >= w.CutoffHour {
		return ErrCutoffPassed
	}
	return nil
}

// userLocks serializes ledger mutations per telegram ID. The store's
// single-row transaction already makes each operation atomic; this closes
// the read-modify-write race between two concurrent operations on the same
// user (e.g. confirm racing cancel for the same day).
type userLocks struct {
	mu    sync.Mutex
	locks map[int64]*sync.Mutex
}

func newUserLocks() *userLocks {
	return &userLocks{locks: make(map[int64]*sync.Mutex)}
}

// Lock acquires the mutex for telegramID, creating it on first use.
// The returned function releases it.
func (l *userLocks) Lock(telegramID int64) func() {
	l.mu.Lock()
	m, ok := l.locks[telegramID]
	if !ok {
		m = &sync.Mutex{}
		l.locks[telegramID] = m
	}
	l.mu.Unlock()

	m.Lock()
	return m.Unlock
}

package ui

import (
	"sync"
	"time"

	"motors-client/internal/models"
	"motors-client/internal/observability"
)

const defaultNoticeCapacity = 50

// NoticeBoard buffers toasts until the UI drains them. The oldest notice is
// dropped when the board is full.
type NoticeBoard struct {
	mu       sync.Mutex
	notices  []models.Notice
	capacity int
	now      func() time.Time
}

// NewNoticeBoard creates a board holding at most capacity notices.
func NewNoticeBoard(capacity int) *NoticeBoard {
	if capacity <= 0 {
		capacity = defaultNoticeCapacity
	}
	return &NoticeBoard{capacity: capacity, now: time.Now}
}

// Notify posts a notice.
func (b *NoticeBoard) Notify(level, text string) {
	observability.IncNotice(level)
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.notices) == b.capacity {
		b.notices = b.notices[1:]
	}
	b.notices = append(b.notices, models.Notice{Level: level, Text: text, At: b.now()})
}

// Drain returns and forgets every pending notice.
func (b *NoticeBoard) Drain() []models.Notice {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := b.notices
	b.notices = nil
	if out == nil {
		out = []models.Notice{}
	}
	return out
}

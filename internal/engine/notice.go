package engine

import (
	"sync"
	"time"
)

var timeNow = time.Now

// DefaultMaxNotices bounds the notice ring.
const DefaultMaxNotices = 50

const genericMessage = "Something went wrong. Please try again."

// Notice is a one-shot user-visible failure.
type Notice struct {
	Op      string    `json:"op"`
	Message string    `json:"message"`
	At      time.Time `json:"at"`
}

// noticeRing keeps the most recent notices.
type noticeRing struct {
	mu    sync.Mutex
	items []Notice
	limit int
}

func newNoticeRing(limit int) *noticeRing {
	if limit <= 0 {
		limit = DefaultMaxNotices
	}
	return &noticeRing{limit: limit}
}

func (r *noticeRing) add(n Notice) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.items = append(r.items, n)
	if over := len(r.items) - r.limit; over > 0 {
		r.items = append(r.items[:0:0], r.items[over:]...)
	}
}

func (r *noticeRing) list() []Notice {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Notice(nil), r.items...)
}

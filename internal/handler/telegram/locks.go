package telegram

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// ChatLocks manages per-chat mutexes. An entry lives only while someone holds or waits for it.
type ChatLocks struct {
	mu    sync.Mutex
	locks map[int64]*chatLock
}

type chatLock struct {
	mu   sync.Mutex
	refs int
}

func NewChatLocks() *ChatLocks {
	return &ChatLocks{locks: make(map[int64]*chatLock)}
}

// Lock acquires the lock for a chatID and returns the unlock function.
func (c *ChatLocks) Lock(chatID int64) func() {
	c.mu.Lock()
	l, exists := c.locks[chatID]
	if !exists {
		l = &chatLock{}
		c.locks[chatID] = l
	}
	l.refs++
	c.mu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()

		c.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(c.locks, chatID)
		}
		c.mu.Unlock()
	}
}

func (c *ChatLocks) size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.locks)
}

// ChatLimiter keeps one token bucket per chat.
type ChatLimiter struct {
	mu       sync.Mutex
	limiters map[int64]*rate.Limiter
	limit    rate.Limit
	burst    int
}

// NewChatLimiter creates a limiter; a non-positive perSecond disables limiting.
func NewChatLimiter(perSecond float64, burst int) *ChatLimiter {
	if burst < 1 {
		burst = 1
	}
	limit := rate.Limit(perSecond)
	if perSecond <= 0 {
		limit = rate.Inf
	}
	return &ChatLimiter{
		limiters: make(map[int64]*rate.Limiter),
		limit:    limit,
		burst:    burst,
	}
}

// Allow reports whether the chat may be served now.
func (c *ChatLimiter) Allow(chatID int64) bool {
	if c.limit == rate.Inf {
		return true
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	rl, ok := c.limiters[chatID]
	if !ok {
		rl = rate.NewLimiter(c.limit, c.burst)
		c.limiters[chatID] = rl
	}
	return rl.Allow()
}

// Prune drops buckets that have refilled completely by now; a fresh bucket behaves the same.
func (c *ChatLimiter) Prune(now time.Time) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	removed := 0
	for chatID, rl := range c.limiters {
		if rl.TokensAt(now) >= float64(c.burst) {
			delete(c.limiters, chatID)
			removed++
		}
	}
	return removed
}

func (c *ChatLimiter) size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.limiters)
}

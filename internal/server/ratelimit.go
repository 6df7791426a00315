package server

import (
	"fmt"
	"sync"
	"time"
)

// RateLimiter counts requests per client in fixed minute and hour windows
// and enforces daily request and upload quotas.
type RateLimiter struct {
	mu sync.Mutex

	requestsPerMinute int
	requestsPerHour   int
	maxRequestsPerDay int
	maxDataPerDay     int64

	clients map[string]*clientUsage
	now     func() time.Time
}

// clientUsage holds the window counters of one client.
type clientUsage struct {
	minuteStart time.Time
	minute      int
	hourStart   time.Time
	hour        int
	day         time.Time // local midnight of the counted day
	today       int
	dataToday   int64
	lastSeen    time.Time
}

// Usage is a snapshot of one client's counters.
type Usage struct {
	RequestsLastMinute int
	RequestsLastHour   int
	RequestsToday      int
	DataToday          int64
}

// NewRateLimiter creates a rate limiter. A zero limit is not enforced.
func NewRateLimiter(requestsPerMinute, requestsPerHour, maxRequestsPerDay int, maxDataPerDay int64) *RateLimiter {
	return &RateLimiter{
		requestsPerMinute: requestsPerMinute,
		requestsPerHour:   requestsPerHour,
		maxRequestsPerDay: maxRequestsPerDay,
		maxDataPerDay:     maxDataPerDay,
		clients:           make(map[string]*clientUsage),
		now:               time.Now,
	}
}

// CheckRateLimit records a request of dataSize bytes from clientID, or
// returns a *RateLimitError or *QuotaExceededError without recording it.
func (rl *RateLimiter) CheckRateLimit(clientID string, dataSize int64) error {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	u := rl.usage(clientID, now)
	u.roll(now)

	if rl.requestsPerMinute > 0 && u.minute >= rl.requestsPerMinute {
		return &RateLimitError{Type: "minute", Limit: rl.requestsPerMinute, RetryAfter: u.minuteStart.Add(time.Minute).Sub(now)}
	}
	if rl.requestsPerHour > 0 && u.hour >= rl.requestsPerHour {
		return &RateLimitError{Type: "hour", Limit: rl.requestsPerHour, RetryAfter: u.hourStart.Add(time.Hour).Sub(now)}
	}
	resets := u.day.AddDate(0, 0, 1)
	if rl.maxRequestsPerDay > 0 && u.today >= rl.maxRequestsPerDay {
		return &QuotaExceededError{Type: "requests", Limit: int64(rl.maxRequestsPerDay), Used: int64(u.today), Resets: resets}
	}
	if rl.maxDataPerDay > 0 && u.dataToday+dataSize > rl.maxDataPerDay {
		return &QuotaExceededError{Type: "data", Limit: rl.maxDataPerDay, Used: u.dataToday, Resets: resets}
	}

	u.minute++
	u.hour++
	u.today++
	u.dataToday += dataSize
	u.lastSeen = now
	return nil
}

func (rl *RateLimiter) usage(clientID string, now time.Time) *clientUsage {
	u, ok := rl.clients[clientID]
	if !ok {
		u = &clientUsage{minuteStart: now, hourStart: now, day: midnight(now), lastSeen: now}
		rl.clients[clientID] = u
	}
	return u
}

// roll starts new windows once the current ones have elapsed.
func (u *clientUsage) roll(now time.Time) {
	if now.Sub(u.minuteStart) >= time.Minute {
		u.minuteStart, u.minute = now, 0
	}
	if now.Sub(u.hourStart) >= time.Hour {
		u.hourStart, u.hour = now, 0
	}
	if d := midnight(now); !d.Equal(u.day) {
		u.day, u.today, u.dataToday = d, 0, 0
	}
}

func midnight(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

// GetUsage returns the current counters for a client.
func (rl *RateLimiter) GetUsage(clientID string) Usage {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	u, ok := rl.clients[clientID]
	if !ok {
		return Usage{}
	}
	u.roll(rl.now())
	return Usage{
		RequestsLastMinute: u.minute,
		RequestsLastHour:   u.hour,
		RequestsToday:      u.today,
		DataToday:          u.dataToday,
	}
}

// Prune forgets clients idle for longer than a day and returns how many
// were removed.
func (rl *RateLimiter) Prune() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	cutoff := rl.now().Add(-24 * time.Hour)
	n := 0
	for id, u := range rl.clients {
		if u.lastSeen.Before(cutoff) {
			delete(rl.clients, id)
			n++
		}
	}
	return n
}

// RateLimitError represents a rate limit violation.
type RateLimitError struct {
	Type       string // "minute" or "hour"
	Limit      int
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("rate limit exceeded for %s (limit: %d, retry after: %v)", e.Type, e.Limit, e.RetryAfter)
}

// QuotaExceededError represents a daily quota violation.
type QuotaExceededError struct {
	Type   string // "requests" or "data"
	Limit  int64
	Used   int64
	Resets time.Time
}

func (e *QuotaExceededError) Error() string {
	return fmt.Sprintf("quota exceeded for %s (used: %d, limit: %d, resets: %s)",
		e.Type, e.Used, e.Limit, e.Resets.Format(time.RFC3339))
}

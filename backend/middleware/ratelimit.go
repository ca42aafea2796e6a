package middleware

import (
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"
	lru "github.com/hashicorp/golang-lru"

	"github.com/ellavondegurechaff/vmq/backend/models"
	"github.com/ellavondegurechaff/vmq/backend/utils"
	"github.com/ellavondegurechaff/vmq/pool/config"
)

type window struct {
	mu    sync.Mutex
	start time.Time
	count int
}

// RateLimiter is a fixed-window limiter per key. Windows live in a bounded
// LRU so the least recently seen clients are evicted first.
type RateLimiter struct {
	windows *lru.Cache
	create  sync.Mutex
	window  time.Duration
	limit   int
	now     func() time.Time
}

func NewRateLimiter(limit int, window time.Duration) *RateLimiter {
	cache, _ := lru.New(config.RateLimitCacheSize)
	return &RateLimiter{
		windows: cache,
		window:  window,
		limit:   limit,
		now:     time.Now,
	}
}

// Allow reports whether key may make another request, and if not, how long
// until its window resets.
func (rl *RateLimiter) Allow(key string) (bool, time.Duration) {
	w := rl.windowFor(key)
	now := rl.now()

	w.mu.Lock()
	defer w.mu.Unlock()

	if now.Sub(w.start) >= rl.window {
		w.start = now
		w.count = 0
	}
	if w.count >= rl.limit {
		return false, rl.window - now.Sub(w.start)
	}
	w.count++
	return true, 0
}

func (rl *RateLimiter) windowFor(key string) *window {
	if v, ok := rl.windows.Get(key); ok {
		return v.(*window)
	}

	rl.create.Lock()
	defer rl.create.Unlock()
	if v, ok := rl.windows.Get(key); ok {
		return v.(*window)
	}
	w := &window{start: rl.now()}
	rl.windows.Add(key, w)
	return w
}

// RateLimit middleware limits requests per IP address
func RateLimit(limit int, window time.Duration) fiber.Handler {
	limiter := NewRateLimiter(limit, window)

	return func(c *fiber.Ctx) error {
		ip := utils.GetIPAddress(c)

		ok, retry := limiter.Allow(ip)
		if !ok {
			slog.Warn("Rate limit exceeded",
				slog.String("type", "http"),
				slog.String("ip", ip),
				slog.String("path", c.Path()),
				slog.String("method", c.Method()),
				slog.Int("limit", limit),
				slog.Duration("window", window))

			c.Set(fiber.HeaderRetryAfter, strconv.Itoa(int(retry.Seconds())+1))
			return utils.SendError(c, fiber.StatusTooManyRequests, models.CodeRateLimited,
				"Too many requests. Please try again later.", nil)
		}

		return c.Next()
	}
}

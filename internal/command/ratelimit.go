package command

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// RateLimiter implements per-user command rate limiting
type RateLimiter struct {
	mu     sync.Mutex
	users  map[string]*userLimit
	config RateLimitConfig
	stop   chan struct{}
	once   sync.Once
}

type userLimit struct {
	limiter *rate.Limiter
	lastCmd time.Time
}

// RateLimitConfig configures rate limiting behavior
type RateLimitConfig struct {
	// MaxPerWindow is max commands per window
	MaxPerWindow int
	// WindowDuration is the refill window size
	WindowDuration time.Duration
	// CooldownDuration is minimum time between commands
	CooldownDuration time.Duration
}

// DefaultRateLimitConfig for text commands
var DefaultRateLimitConfig = RateLimitConfig{
	MaxPerWindow:     20,                     // 20 commands
	WindowDuration:   10 * time.Second,       // per 10 seconds
	CooldownDuration: 100 * time.Millisecond, // 100ms between commands
}

// NewRateLimiter creates a new rate limiter
func NewRateLimiter(cfg RateLimitConfig) *RateLimiter {
	if cfg.MaxPerWindow <= 0 {
		cfg.MaxPerWindow = DefaultRateLimitConfig.MaxPerWindow
	}
	if cfg.WindowDuration <= 0 {
		cfg.WindowDuration = DefaultRateLimitConfig.WindowDuration
	}

	rl := &RateLimiter{
		users:  make(map[string]*userLimit),
		config: cfg,
		stop:   make(chan struct{}),
	}

	// Start cleanup goroutine
	go rl.cleanup()

	return rl
}

// Allow checks if a user can execute a command
func (rl *RateLimiter) Allow(user string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()

	limit, exists := rl.users[user]
	if !exists {
		every := rl.config.WindowDuration / time.Duration(rl.config.MaxPerWindow)
		limit = &userLimit{
			limiter: rate.NewLimiter(rate.Every(every), rl.config.MaxPerWindow),
		}
		rl.users[user] = limit
	} else if now.Sub(limit.lastCmd) < rl.config.CooldownDuration {
		return false
	}

	if !limit.limiter.AllowN(now, 1) {
		return false
	}
	limit.lastCmd = now
	return true
}

// Stop ends the cleanup goroutine
func (rl *RateLimiter) Stop() {
	rl.once.Do(func() { close(rl.stop) })
}

// cleanup removes old entries every minute
func (rl *RateLimiter) cleanup() {
	ticker := time.NewTicker(1 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-rl.stop:
			return
		case <-ticker.C:
			rl.mu.Lock()
			cutoff := time.Now().Add(-5 * time.Minute)
			for key, limit := range rl.users {
				if limit.lastCmd.Before(cutoff) {
					delete(rl.users, key)
				}
			}
			rl.mu.Unlock()
		}
	}
}

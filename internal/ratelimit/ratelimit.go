package ratelimit

import (
	"fmt"
	"sync"
	"time"

	"github.com/bryanweaver/mewscast-sub000/internal/logger"
)

// APIBudget caps how many requests each external service may see per day.
// The free tiers this bot runs on (X in particular) make overshooting
// expensive, so every outbound call claims a slot first.
type APIBudget struct {
	mu           sync.Mutex
	geminiCount  int
	xCount       int
	blueskyCount int
	totalCount   int
	maxGemini    int
	maxX         int
	maxBluesky   int
	maxTotal     int
	resetTime    time.Time
}

// NewAPIBudget creates a budget with per-service daily limits; 0 means
// unlimited for that service.
func NewAPIBudget(maxGemini, maxX, maxBluesky, maxTotal int) *APIBudget {
	return &APIBudget{
		maxGemini:  maxGemini,
		maxX:       maxX,
		maxBluesky: maxBluesky,
		maxTotal:   maxTotal,
		resetTime:  time.Now().Add(24 * time.Hour),
	}
}

// UseGemini claims one Gemini request slot.
func (b *APIBudget) UseGemini() error {
	return b.use("gemini", &b.geminiCount, b.maxGemini)
}

// UseX claims one X API request slot.
func (b *APIBudget) UseX() error {
	return b.use("x", &b.xCount, b.maxX)
}

// UseBluesky claims one Bluesky request slot.
func (b *APIBudget) UseBluesky() error {
	return b.use("bluesky", &b.blueskyCount, b.maxBluesky)
}

func (b *APIBudget) use(name string, count *int, max int) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.checkReset()

	if max > 0 && *count >= max {
		return fmt.Errorf("%s rate limit exceeded (%d/%d)", name, *count, max)
	}
	if b.maxTotal > 0 && b.totalCount >= b.maxTotal {
		return fmt.Errorf("total API rate limit exceeded (%d/%d)", b.totalCount, b.maxTotal)
	}

	*count++
	b.totalCount++
	logger.Debug("API budget used", "service", name, "used", *count, "limit", max,
		"total", b.totalCount)
	return nil
}

// Stats returns the current counters.
func (b *APIBudget) Stats() map[string]interface{} {
	b.mu.Lock()
	defer b.mu.Unlock()

	return map[string]interface{}{
		"gemini_used":   b.geminiCount,
		"gemini_limit":  b.maxGemini,
		"x_used":        b.xCount,
		"x_limit":       b.maxX,
		"bluesky_used":  b.blueskyCount,
		"bluesky_limit": b.maxBluesky,
		"total_used":    b.totalCount,
		"total_limit":   b.maxTotal,
		"reset_time":    b.resetTime,
	}
}

// checkReset rolls the counters over once the daily window has passed.
func (b *APIBudget) checkReset() {
	if time.Now().After(b.resetTime) {
		logger.Info("resetting API budget counters")
		b.geminiCount = 0
		b.xCount = 0
		b.blueskyCount = 0
		b.totalCount = 0
		b.resetTime = time.Now().Add(24 * time.Hour)
	}
}

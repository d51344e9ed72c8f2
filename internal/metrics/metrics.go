package metrics

import (
	"sync"
	"time"
)

type Metrics struct {
	mu sync.RWMutex

	// Counters
	StoriesFetched     int64
	DuplicatesBlocked  int64
	UpdatesAllowed     int64
	GenerationFailures int64
	XPostsPublished    int64
	BlueskyPostsSent   int64
	FollowupsPosted    int64

	// Timings
	LastRunDuration time.Duration

	// Status
	LastRunTime   time.Time
	LastErrorTime time.Time
	LastError     string
	IsHealthy     bool
}

var Global = &Metrics{IsHealthy: true}

func (m *Metrics) AddStoriesFetched(n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.StoriesFetched += int64(n)
}

func (m *Metrics) IncrementDuplicatesBlocked() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.DuplicatesBlocked++
}

func (m *Metrics) IncrementUpdatesAllowed() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.UpdatesAllowed++
}

func (m *Metrics) IncrementGenerationFailures() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.GenerationFailures++
}

func (m *Metrics) IncrementXPosts() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.XPostsPublished++
}

func (m *Metrics) IncrementBlueskyPosts() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.BlueskyPostsSent++
}

func (m *Metrics) IncrementFollowupsPosted() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.FollowupsPosted++
}

func (m *Metrics) RecordRun(duration time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.LastRunDuration = duration
	m.LastRunTime = time.Now()
	m.IsHealthy = true
}

func (m *Metrics) SetError(err string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.LastError = err
	m.LastErrorTime = time.Now()
	m.IsHealthy = false
}

func (m *Metrics) GetStats() map[string]interface{} {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return map[string]interface{}{
		"stories_fetched":      m.StoriesFetched,
		"duplicates_blocked":   m.DuplicatesBlocked,
		"updates_allowed":      m.UpdatesAllowed,
		"generation_failures":  m.GenerationFailures,
		"x_posts_published":    m.XPostsPublished,
		"bluesky_posts_sent":   m.BlueskyPostsSent,
		"followups_posted":     m.FollowupsPosted,
		"last_run_duration_ms": m.LastRunDuration.Milliseconds(),
		"last_run_time":        m.LastRunTime.Format(time.RFC3339),
		"last_error_time":      m.LastErrorTime.Format(time.RFC3339),
		"last_error":           m.LastError,
		"is_healthy":           m.IsHealthy,
	}
}

package tracker

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/bryanweaver/mewscast-sub000/internal/logger"
)

// Record is one accepted post in the history file.
type Record struct {
	Timestamp       string `json:"timestamp"`
	Topic           string `json:"topic"`
	URL             string `json:"url"`
	Source          string `json:"source"`
	Content         string `json:"content"`
	ImagePrompt     string `json:"image_prompt,omitempty"`
	XTweetID        string `json:"x_tweet_id"`
	XReplyTweetID   string `json:"x_reply_tweet_id"`
	BlueskyURI      string `json:"bluesky_uri"`
	BlueskyReplyURI string `json:"bluesky_reply_uri"`
}

// historyFile is the on-disk layout: a single JSON object wrapping the posts.
type historyFile struct {
	Posts []Record `json:"posts"`
}

// Time parses the record timestamp. ok is false when the timestamp is
// missing or unparseable; callers treat such records as outside any
// time window instead of failing the scan.
func (r Record) Time() (time.Time, bool) {
	if r.Timestamp == "" {
		return time.Time{}, false
	}
	for _, layout := range []string{time.RFC3339Nano, time.RFC3339, "2006-01-02T15:04:05"} {
		if t, err := time.Parse(layout, r.Timestamp); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}

// loadHistory reads the full post history from path. A missing, empty or
// corrupt file yields an empty history with a warning, never an error.
func loadHistory(path string) []Record {
	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			logger.Warn("could not read post history, starting empty", "path", path, "error", err)
		}
		return nil
	}
	if len(data) == 0 {
		return nil
	}

	var hf historyFile
	if err := json.Unmarshal(data, &hf); err != nil {
		logger.Warn("could not parse post history, starting empty", "path", path, "error", err)
		return nil
	}
	return hf.Posts
}

// saveHistory rewrites the whole history file. The retention window keeps
// the record count small, so a full rewrite per mutation is fine.
func saveHistory(path string, posts []Record) error {
	if posts == nil {
		posts = []Record{}
	}
	data, err := json.MarshalIndent(historyFile{Posts: posts}, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal post history: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write post history: %w", err)
	}
	return nil
}

// pruneHistory drops records older than maxDays. Records whose timestamp
// cannot be parsed are dropped too: they cannot prove they are fresh.
func pruneHistory(posts []Record, maxDays int, now time.Time) []Record {
	cutoff := now.Add(-time.Duration(maxDays) * 24 * time.Hour)
	kept := posts[:0]
	for _, p := range posts {
		if t, ok := p.Time(); ok && !t.Before(cutoff) {
			kept = append(kept, p)
		}
	}
	return kept
}

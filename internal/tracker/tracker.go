// Package tracker decides whether a candidate news story has already been
// covered. It keeps a time-windowed history of published posts in a JSON
// file and classifies each candidate as duplicate, update or novel using
// URL identity, content overlap and headline clustering.
package tracker

import (
	"regexp"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/bryanweaver/mewscast-sub000/internal/logger"
)

// clusterThreshold is the permissive bar for merely noticing a relation
// between headlines. Blocking a candidate requires the stricter
// TopicSimilarityThreshold; the gap lets borderline stories through while
// still surfacing prior coverage as context.
const clusterThreshold = 0.25

// maxRelatedPosts caps how many related history records a classification
// reports.
const maxRelatedPosts = 3

// DefaultUpdateKeywords mark a headline as a development of a story rather
// than a repeat of it. Matched as whole words.
var DefaultUpdateKeywords = []string{
	"breaking", "update", "updates", "updated", "latest", "developing",
	"now", "after", "aftermath", "responds", "reacts", "reaction",
	"says", "announces", "announced", "confirms", "denies", "reverses",
	"resigns", "fires back", "hits back", "just in",
}

// Config holds every threshold the engine consumes.
type Config struct {
	Enabled                    bool
	TopicCooldownHours         int
	TopicSimilarityThreshold   float64
	ContentCooldownHours       int
	ContentSimilarityThreshold float64
	SourceCooldownHours        int
	URLDeduplication           bool
	MaxHistoryDays             int
	AllowUpdates               bool
	UpdateKeywords             []string
}

// DefaultConfig returns the production defaults.
func DefaultConfig() Config {
	return Config{
		Enabled:                    true,
		TopicCooldownHours:         48,
		TopicSimilarityThreshold:   0.40,
		ContentCooldownHours:       72,
		ContentSimilarityThreshold: 0.65,
		SourceCooldownHours:        0,
		URLDeduplication:           true,
		MaxHistoryDays:             7,
		AllowUpdates:               true,
		UpdateKeywords:             DefaultUpdateKeywords,
	}
}

// Story is a candidate under evaluation, not persisted until accepted.
type Story struct {
	Title   string
	URL     string
	Source  string
	Context string
}

// Related pairs a history record with its similarity to the candidate.
type Related struct {
	Post           Record
	Similarity     float64
	CommonEntities []string
}

// Cluster describes what the topic scan saw for a candidate title.
type Cluster struct {
	Entities     []string
	RelatedCount int
}

// Status is the classification of one candidate.
type Status struct {
	IsDuplicate   bool
	IsUpdate      bool
	PreviousPosts []Related
	ClusterInfo   *Cluster
}

// PlatformIDs carries the opaque identifiers assigned by each platform to
// an accepted post. Informational only, never consulted by matching.
type PlatformIDs struct {
	XTweetID        string
	XReplyTweetID   string
	BlueskyURI      string
	BlueskyReplyURI string
}

// Tracker owns the post history for one bot account. Safe for use from a
// single process; concurrent processes sharing one history file are not
// supported (last writer wins on the full-file rewrite).
type Tracker struct {
	mu          sync.Mutex
	historyPath string
	cfg         Config
	posts       []Record
	updateRe    *regexp.Regexp
	now         func() time.Time
}

// New loads the history at historyPath and returns a ready tracker. A
// missing or corrupt history file degrades to an empty one.
func New(historyPath string, cfg Config) *Tracker {
	if cfg.UpdateKeywords == nil {
		cfg.UpdateKeywords = DefaultUpdateKeywords
	}
	t := &Tracker{
		historyPath: historyPath,
		cfg:         cfg,
		posts:       loadHistory(historyPath),
		updateRe:    compileUpdateRe(cfg.UpdateKeywords),
		now:         time.Now,
	}
	logger.Debug("post tracker ready", "history", historyPath, "posts", len(t.posts))
	return t
}

// compileUpdateRe builds one word-boundary alternation for the update
// keywords so "now" never matches inside "known" and "after" never matches
// "afternoon".
func compileUpdateRe(keywords []string) *regexp.Regexp {
	parts := make([]string, 0, len(keywords))
	for _, k := range keywords {
		k = strings.TrimSpace(strings.ToLower(k))
		if k == "" {
			continue
		}
		parts = append(parts, regexp.QuoteMeta(k))
	}
	if len(parts) == 0 {
		return nil
	}
	return regexp.MustCompile(`\b(` + strings.Join(parts, "|") + `)\b`)
}

// Check classifies a candidate story against the history. generatedText is
// the post text about to be (or already) published; pass "" when only the
// story metadata is known. The checks run in strict order and the first
// match wins.
func (t *Tracker) Check(story Story, generatedText string) Status {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.checkLocked(story, generatedText)
}

func (t *Tracker) checkLocked(story Story, generatedText string) Status {
	status := Status{PreviousPosts: []Related{}}
	if !t.cfg.Enabled {
		return status
	}

	// Level 1: exact URL match. URLs are canonical identifiers of "the
	// same article", so this blocks regardless of any time window.
	if story.URL != "" && t.cfg.URLDeduplication {
		for _, p := range t.posts {
			if p.URL == story.URL {
				logger.Info("duplicate URL detected", "url", story.URL)
				status.IsDuplicate = true
				return status
			}
		}
	}

	// Optional per-publication cooldown, off by default.
	if t.cfg.SourceCooldownHours > 0 && story.Source != "" &&
		t.sourcePostedLocked(story.Source, t.cfg.SourceCooldownHours) {
		logger.Info("source cooldown active", "source", story.Source)
		status.IsDuplicate = true
		return status
	}

	// Level 2: generated-content overlap. A hard block: even a headline
	// framed as an update is suppressed when the text we would publish
	// says nothing new.
	if generatedText != "" && t.similarContentLocked(generatedText) {
		logger.Info("near-duplicate post content detected", "topic", story.Title)
		status.IsDuplicate = true
		return status
	}

	// Level 3: headline clustering.
	related, entities := t.findClusterLocked(story.Title)
	status.PreviousPosts = related
	if entities != nil {
		status.ClusterInfo = &Cluster{Entities: entities, RelatedCount: len(related)}
	}
	if len(related) == 0 {
		return status
	}

	// Level 4: a development of a covered story passes through.
	if t.cfg.AllowUpdates && t.isUpdateStory(story.Title) {
		logger.Info("update story allowed through", "topic", story.Title,
			"related", len(related))
		status.IsUpdate = true
		return status
	}

	// Level 5: strong topical match without a new angle.
	if related[0].Similarity >= t.cfg.TopicSimilarityThreshold {
		logger.Info("similar topic posted recently", "topic", story.Title,
			"similarity", related[0].Similarity, "previous", related[0].Post.Topic)
		status.IsDuplicate = true
	}
	return status
}

// IsDuplicate is the boolean adapter kept for callers that only need the
// block/allow decision.
func (t *Tracker) IsDuplicate(story Story, generatedText string) bool {
	return t.Check(story, generatedText).IsDuplicate
}

// similarContentLocked reports whether generated post text overlaps a
// recent record's stored content beyond the configured threshold. Records
// without stored content contribute no signal.
func (t *Tracker) similarContentLocked(text string) bool {
	cutoff := t.now().UTC().Add(-time.Duration(t.cfg.ContentCooldownHours) * time.Hour)
	for _, p := range t.posts {
		if p.Content == "" {
			continue
		}
		ts, ok := p.Time()
		if !ok || ts.Before(cutoff) {
			continue
		}
		if ratio := contentSimilarity(text, p.Content); ratio >= t.cfg.ContentSimilarityThreshold {
			logger.Debug("content overlap above threshold", "ratio", ratio,
				"previous", p.Topic)
			return true
		}
	}
	return false
}

// findClusterLocked returns history records topically related to the title
// (score >= clusterThreshold), newest window only, strongest first, capped
// at maxRelatedPosts. The second return value lists the proper nouns seen
// in the candidate title, nil when the title was too short to scan.
func (t *Tracker) findClusterLocked(title string) ([]Related, []string) {
	related := []Related{}
	if strings.TrimSpace(title) == "" {
		return related, nil
	}
	if len(significantWords(title)) < 2 {
		return related, nil
	}

	cutoff := t.now().UTC().Add(-time.Duration(t.cfg.TopicCooldownHours) * time.Hour)
	for _, p := range t.posts {
		ts, ok := p.Time()
		if !ok || ts.Before(cutoff) {
			continue
		}
		score, common, ok := topicSimilarity(title, p.Topic)
		if !ok || score < clusterThreshold {
			continue
		}
		related = append(related, Related{Post: p, Similarity: score, CommonEntities: common})
	}

	sort.SliceStable(related, func(i, j int) bool {
		return related[i].Similarity > related[j].Similarity
	})
	if len(related) > maxRelatedPosts {
		related = related[:maxRelatedPosts]
	}

	nouns := extractProperNouns(title)
	entities := make([]string, 0, len(nouns))
	for n := range nouns {
		entities = append(entities, n)
	}
	sort.Strings(entities)
	return related, entities
}

// isUpdateStory reports whether the title frames the story as a
// development (new charge, reversal, reaction).
func (t *Tracker) isUpdateStory(title string) bool {
	if t.updateRe == nil {
		return false
	}
	return t.updateRe.MatchString(strings.ToLower(title))
}

// SourcePostedWithin reports whether any record from the given publication
// is younger than the window.
func (t *Tracker) SourcePostedWithin(source string, hours int) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.sourcePostedLocked(source, hours)
}

func (t *Tracker) sourcePostedLocked(source string, hours int) bool {
	if source == "" {
		return false
	}
	cutoff := t.now().UTC().Add(-time.Duration(hours) * time.Hour)
	for _, p := range t.posts {
		if p.Source != source {
			continue
		}
		if ts, ok := p.Time(); ok && !ts.Before(cutoff) {
			return true
		}
	}
	return false
}

// Record appends an accepted post, prunes stale history and persists the
// store. Storage failure is logged, never propagated: the in-memory state
// stays updated and a missed write only risks one repeated story.
func (t *Tracker) Record(story Story, generatedText string, ids PlatformIDs) Record {
	t.mu.Lock()
	defer t.mu.Unlock()

	rec := Record{
		Timestamp:       t.now().UTC().Format(time.RFC3339),
		Topic:           story.Title,
		URL:             story.URL,
		Source:          story.Source,
		Content:         generatedText,
		XTweetID:        ids.XTweetID,
		XReplyTweetID:   ids.XReplyTweetID,
		BlueskyURI:      ids.BlueskyURI,
		BlueskyReplyURI: ids.BlueskyReplyURI,
	}
	if rec.Topic == "" {
		rec.Topic = "Unknown"
	}
	if rec.Source == "" {
		rec.Source = "Unknown"
	}

	t.posts = append(t.posts, rec)
	t.pruneLocked()
	t.saveLocked()
	logger.Info("post recorded to history", "topic", rec.Topic, "total", len(t.posts))
	return rec
}

// SetImagePrompt attaches the image prompt used for a recorded post,
// matching by platform identifier.
func (t *Tracker) SetImagePrompt(ids PlatformIDs, prompt string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for i := range t.posts {
		if matchesIDs(t.posts[i], ids) {
			t.posts[i].ImagePrompt = prompt
			t.saveLocked()
			return
		}
	}
}

// MarkFollowup records the source-citation reply identifiers for a post,
// matching by the main post's platform identifiers.
func (t *Tracker) MarkFollowup(ids PlatformIDs, xReplyID, bskyReplyURI string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for i := range t.posts {
		if !matchesIDs(t.posts[i], ids) {
			continue
		}
		if xReplyID != "" {
			t.posts[i].XReplyTweetID = xReplyID
		}
		if bskyReplyURI != "" {
			t.posts[i].BlueskyReplyURI = bskyReplyURI
		}
		t.saveLocked()
		return
	}
}

func matchesIDs(p Record, ids PlatformIDs) bool {
	if ids.XTweetID != "" && p.XTweetID == ids.XTweetID {
		return true
	}
	if ids.BlueskyURI != "" && p.BlueskyURI == ids.BlueskyURI {
		return true
	}
	return false
}

// Prune drops records older than the retention window and persists.
func (t *Tracker) Prune() {
	t.mu.Lock()
	defer t.mu.Unlock()
	before := len(t.posts)
	t.pruneLocked()
	if removed := before - len(t.posts); removed > 0 {
		t.saveLocked()
		logger.Info("cleaned up old posts from history", "removed", removed)
	}
}

// FilterFresh keeps the candidates not classified as duplicates, in input
// order. Runs the URL/topic path only; generated text does not exist yet
// at batch-filter time.
func (t *Tracker) FilterFresh(stories []Story) []Story {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.cfg.Enabled {
		return stories
	}
	fresh := make([]Story, 0, len(stories))
	for _, s := range stories {
		if t.checkLocked(s, "").IsDuplicate {
			logger.Debug("skipping duplicate candidate", "title", s.Title)
			continue
		}
		fresh = append(fresh, s)
	}
	logger.Info("filtered candidate stories", "in", len(stories), "unique", len(fresh))
	return fresh
}

// NeedingFollowup returns recorded posts that cite an article URL but have
// no source-citation reply on any platform yet.
func (t *Tracker) NeedingFollowup() []Record {
	t.mu.Lock()
	defer t.mu.Unlock()

	var out []Record
	for _, p := range t.posts {
		if p.URL == "" {
			continue
		}
		if p.XReplyTweetID != "" || p.BlueskyReplyURI != "" {
			continue
		}
		out = append(out, p)
	}
	return out
}

// Posts returns a copy of the in-memory history, oldest first.
func (t *Tracker) Posts() []Record {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]Record, len(t.posts))
	copy(out, t.posts)
	return out
}

func (t *Tracker) pruneLocked() {
	t.posts = pruneHistory(t.posts, t.cfg.MaxHistoryDays, t.now().UTC())
}

func (t *Tracker) saveLocked() {
	if err := saveHistory(t.historyPath, t.posts); err != nil {
		logger.Warn("could not save post history", "error", err)
	}
}

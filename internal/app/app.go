// Package app wires the pipeline together: fetch candidates, classify
// against history, generate commentary, publish, record.
package app

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/bryanweaver/mewscast-sub000/internal/bluesky"
	"github.com/bryanweaver/mewscast-sub000/internal/config"
	"github.com/bryanweaver/mewscast-sub000/internal/gen"
	"github.com/bryanweaver/mewscast-sub000/internal/logger"
	"github.com/bryanweaver/mewscast-sub000/internal/metrics"
	"github.com/bryanweaver/mewscast-sub000/internal/news"
	"github.com/bryanweaver/mewscast-sub000/internal/ratelimit"
	"github.com/bryanweaver/mewscast-sub000/internal/scraper"
	"github.com/bryanweaver/mewscast-sub000/internal/tracker"
	"github.com/bryanweaver/mewscast-sub000/internal/xpost"
)

// App holds the long-lived collaborators for one bot run.
type App struct {
	cfg     *config.Config
	tracker *tracker.Tracker
	fetcher *news.Fetcher
	budget  *ratelimit.APIBudget
}

func New(cfg *config.Config) *App {
	return &App{
		cfg:     cfg,
		tracker: tracker.New(cfg.HistoryFile, cfg.Dedup),
		fetcher: news.NewFetcher(cfg.Categories, cfg.PreferredSources, cfg.FetchDelay),
		budget:  ratelimit.NewAPIBudget(cfg.MaxGeminiRequests, 10, 10, 25),
	}
}

// Run executes one posting cycle. Every failure downgrades rather than
// aborts: a dead feed skips to the next candidate, a generation failure
// falls back to a plain headline post, a failed platform leaves the other
// platform's result intact.
func (a *App) Run(ctx context.Context, topic string, dryRun bool) error {
	start := time.Now()

	story, status, ok := a.pickStory(topic)
	if !ok {
		logger.Warn("no postable story this cycle")
		metrics.Global.RecordRun(time.Since(start))
		return nil
	}

	post := a.generate(ctx, story, status)

	if dryRun {
		logger.Info("dry run, not posting",
			"topic", story.Title,
			"text", post.Text,
			"is_update", status.IsUpdate)
		fmt.Printf("--- DRY RUN ---\n%s\n", post.Text)
		if post.ImagePrompt != "" {
			fmt.Printf("image prompt: %s\n", post.ImagePrompt)
		}
		metrics.Global.RecordRun(time.Since(start))
		return nil
	}

	ids, posted := a.publish(ctx, post.Text)
	if !posted {
		metrics.Global.SetError("all platforms failed")
		return fmt.Errorf("no platform accepted the post")
	}

	rec := a.tracker.Record(story, post.Text, ids)
	if post.ImagePrompt != "" {
		a.tracker.SetImagePrompt(ids, post.ImagePrompt)
	}
	logger.Info("cycle complete", "topic", rec.Topic, "x_id", ids.XTweetID, "bsky_uri", ids.BlueskyURI)
	metrics.Global.RecordRun(time.Since(start))
	return nil
}

// pickStory walks the candidate list in order and returns the first story
// the classifier accepts, along with its classification.
func (a *App) pickStory(topic string) (tracker.Story, tracker.Status, bool) {
	var candidates []tracker.Story
	if topic != "" {
		story, err := a.fetcher.StoryForTopic(topic)
		if err != nil {
			logger.Warn("topic search failed", "topic", topic, "error", err)
			return tracker.Story{}, tracker.Status{}, false
		}
		candidates = []tracker.Story{story}
	} else {
		candidates = a.fetcher.TrendingStories(a.cfg.MaxCandidates)
	}
	metrics.Global.AddStoriesFetched(len(candidates))

	candidates = a.tracker.FilterFresh(candidates)
	if len(candidates) == 0 {
		logger.Info("all candidates already covered")
		return tracker.Story{}, tracker.Status{}, false
	}

	for _, story := range candidates {
		status := a.tracker.Check(story, "")
		if status.IsDuplicate {
			metrics.Global.IncrementDuplicatesBlocked()
			logger.Info("duplicate blocked", "title", story.Title)
			continue
		}
		if status.IsUpdate {
			metrics.Global.IncrementUpdatesAllowed()
			logger.Info("update to earlier coverage", "title", story.Title,
				"related", len(status.PreviousPosts))
		}
		return story, status, true
	}
	return tracker.Story{}, tracker.Status{}, false
}

// generate produces the post text, scraping the article for grounding and
// degrading to a canned headline when the model is unavailable or the AI
// budget is spent.
func (a *App) generate(ctx context.Context, story tracker.Story, status tracker.Status) *gen.Post {
	client, err := gen.NewClient(a.cfg.GeminiAPIKey, gen.Options{
		Model:       a.cfg.Model,
		AnchorName:  a.cfg.AnchorName,
		Style:       a.cfg.Style,
		MaxLength:   a.cfg.MaxLength,
		AvoidTopics: a.cfg.AvoidTopics,
	})
	if err != nil {
		logger.Error("gemini client unavailable, using fallback", "error", err)
		metrics.Global.IncrementGenerationFailures()
		return gen.Fallback(story, a.cfg.MaxLength)
	}
	defer client.Close()

	if err := a.budget.UseGemini(); err != nil {
		logger.Warn("AI budget exhausted, using fallback", "error", err)
		return gen.Fallback(story, a.cfg.MaxLength)
	}

	article := scraper.ExtractOrEmpty(story.URL)
	post, err := client.Generate(ctx, story, article, status.PreviousPosts)
	if err != nil {
		logger.Error("generation failed, using fallback", "error", err)
		metrics.Global.IncrementGenerationFailures()
		return gen.Fallback(story, a.cfg.MaxLength)
	}
	post.Text = gen.EnforceLength(post.Text, a.cfg.MaxLength)
	return post
}

// publish sends the text to every enabled platform. Returns the platform
// identifiers gathered and whether at least one platform accepted.
func (a *App) publish(ctx context.Context, text string) (tracker.PlatformIDs, bool) {
	var ids tracker.PlatformIDs
	posted := false

	if a.cfg.EnableX {
		if err := a.budget.UseX(); err != nil {
			logger.Warn("skipping X", "error", err)
		} else {
			client := xpost.NewClient(a.cfg.XAccessToken)
			tweet, err := client.PostTweet(ctx, text)
			if err != nil {
				logger.Error("X post failed", "error", err)
			} else {
				ids.XTweetID = tweet.ID
				posted = true
				metrics.Global.IncrementXPosts()
			}
		}
	}

	if a.cfg.EnableBluesky {
		if err := a.budget.UseBluesky(); err != nil {
			logger.Warn("skipping Bluesky", "error", err)
		} else if ref := a.postBluesky(ctx, text); ref != nil {
			ids.BlueskyURI = ref.URI
			posted = true
			metrics.Global.IncrementBlueskyPosts()
		}
	}

	return ids, posted
}

func (a *App) postBluesky(ctx context.Context, text string) *bluesky.Ref {
	client := bluesky.NewClient(a.cfg.BlueskyHost, a.cfg.BlueskyHandle, a.cfg.BlueskyPassword)
	if err := client.Login(ctx); err != nil {
		logger.Error("Bluesky login failed", "error", err)
		return nil
	}
	ref, err := client.PostSkeet(ctx, text)
	if err != nil {
		logger.Error("Bluesky post failed", "error", err)
		return nil
	}
	return ref
}

// RunFollowups posts the source-link reply under every recorded post that
// is still missing one. Each record is handled independently so one bad
// reply never blocks the rest of the queue.
func (a *App) RunFollowups(ctx context.Context) error {
	pending := a.tracker.NeedingFollowup()
	if len(pending) == 0 {
		logger.Info("no followups pending")
		return nil
	}
	logger.Info("posting followups", "pending", len(pending))

	var bsky *bluesky.Client
	if a.cfg.EnableBluesky {
		bsky = bluesky.NewClient(a.cfg.BlueskyHost, a.cfg.BlueskyHandle, a.cfg.BlueskyPassword)
		if err := bsky.Login(ctx); err != nil {
			logger.Error("Bluesky login failed, skipping Bluesky followups", "error", err)
			bsky = nil
		}
	}

	for _, rec := range pending {
		ids := tracker.PlatformIDs{
			XTweetID:   rec.XTweetID,
			BlueskyURI: rec.BlueskyURI,
		}
		var xReplyID, bskyReplyURI string

		if a.cfg.EnableX && rec.XTweetID != "" {
			if err := a.budget.UseX(); err != nil {
				logger.Warn("X budget exhausted, stopping X followups", "error", err)
			} else {
				client := xpost.NewClient(a.cfg.XAccessToken)
				reply, err := client.ReplyToTweet(ctx, rec.XTweetID, "Source: "+rec.URL)
				if err != nil {
					logger.Error("X followup failed", "tweet_id", rec.XTweetID, "error", err)
				} else {
					xReplyID = reply.ID
				}
			}
		}

		if bsky != nil && rec.BlueskyURI != "" {
			if err := a.budget.UseBluesky(); err != nil {
				logger.Warn("Bluesky budget exhausted, stopping Bluesky followups", "error", err)
			} else {
				ref, err := bsky.ReplyWithLink(ctx, rec.BlueskyURI, rec.URL)
				if err != nil {
					logger.Error("Bluesky followup failed", "uri", rec.BlueskyURI, "error", err)
				} else {
					bskyReplyURI = ref.URI
				}
			}
		}

		if xReplyID != "" || bskyReplyURI != "" {
			a.tracker.MarkFollowup(ids, xReplyID, bskyReplyURI)
			metrics.Global.IncrementFollowupsPosted()
			logger.Info("followup posted", "topic", rec.Topic)
		}
	}
	return nil
}

// PruneHistory trims expired records and reports what remains.
func (a *App) PruneHistory() {
	before := len(a.tracker.Posts())
	a.tracker.Prune()
	after := len(a.tracker.Posts())
	logger.Info("history pruned", "before", before, "after", after, "removed", before-after)
}

// HistorySummary renders a short operator-facing view of recent coverage.
func (a *App) HistorySummary() string {
	posts := a.tracker.Posts()
	if len(posts) == 0 {
		return "no posts in history"
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%d posts in history\n", len(posts))
	for i := len(posts) - 1; i >= 0 && i >= len(posts)-10; i-- {
		p := posts[i]
		fmt.Fprintf(&b, "  [%s] %s (%s)\n", p.Timestamp, p.Topic, p.Source)
	}
	return b.String()
}

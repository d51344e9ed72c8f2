// Package news supplies candidate stories from Google News RSS search.
package news

import (
	"fmt"
	"math/rand"
	"net/url"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"

	"github.com/bryanweaver/mewscast-sub000/internal/logger"
	"github.com/bryanweaver/mewscast-sub000/internal/tracker"
)

// defaultCategories searched when config.yaml names none.
var defaultCategories = []string{
	"US politics",
	"Congress",
	"Senate",
	"economy",
	"inflation",
	"business news",
	"technology",
	"innovation",
	"national news",
	"government transparency",
}

// defaultPreferredSources are the publications picked first from search
// results.
var defaultPreferredSources = []string{
	"Reuters", "Associated Press", "AP News", "The New York Times",
	"The Washington Post", "CNN", "BBC", "NPR", "Bloomberg",
	"Politico", "The Hill", "USA Today", "Fox News", "NBC News",
	"CBS News", "ABC News",
}

// Fetcher searches Google News RSS for trending stories.
type Fetcher struct {
	parser           *gofeed.Parser
	categories       []string
	preferredSources []string
	fetchDelay       time.Duration
}

func NewFetcher(categories, preferredSources []string, fetchDelay time.Duration) *Fetcher {
	if len(categories) == 0 {
		categories = defaultCategories
	}
	if len(preferredSources) == 0 {
		preferredSources = defaultPreferredSources
	}
	return &Fetcher{
		parser:           gofeed.NewParser(),
		categories:       categories,
		preferredSources: preferredSources,
		fetchDelay:       fetchDelay,
	}
}

// TrendingStories fetches up to count candidate stories, one per searched
// category. Failed categories are skipped, never fatal.
func (f *Fetcher) TrendingStories(count int) []tracker.Story {
	cats := make([]string, len(f.categories))
	copy(cats, f.categories)
	rand.Shuffle(len(cats), func(i, j int) { cats[i], cats[j] = cats[j], cats[i] })

	var stories []tracker.Story
	for _, category := range cats {
		if len(stories) >= count {
			break
		}
		story, err := f.StoryForTopic(category)
		if err != nil {
			logger.Warn("no article for category", "category", category, "error", err)
			continue
		}
		stories = append(stories, story)

		// Small delay between queries to be polite to Google.
		time.Sleep(f.fetchDelay)
	}

	logger.Info("fetched candidate stories", "count", len(stories))
	return stories
}

// StoryForTopic fetches one article for a topic via Google News RSS
// search, preferring the configured publications.
func (f *Fetcher) StoryForTopic(topic string) (tracker.Story, error) {
	rssURL := fmt.Sprintf(
		"https://news.google.com/rss/search?q=%s&hl=en-US&gl=US&ceid=US:en",
		url.QueryEscape(topic),
	)

	feed, err := f.parser.ParseURL(rssURL)
	if err != nil {
		return tracker.Story{}, fmt.Errorf("error parsing news feed for %q: %w", topic, err)
	}
	if len(feed.Items) == 0 {
		return tracker.Story{}, fmt.Errorf("no articles found for %q", topic)
	}

	limit := 10
	if len(feed.Items) < limit {
		limit = len(feed.Items)
	}
	for _, item := range feed.Items[:limit] {
		source := itemSource(item)
		if f.isPreferred(source) {
			return storyFromItem(item, source), nil
		}
	}

	// No preferred publication in the first page; take the top result.
	item := feed.Items[0]
	return storyFromItem(item, itemSource(item)), nil
}

func (f *Fetcher) isPreferred(source string) bool {
	for _, pref := range f.preferredSources {
		if strings.Contains(source, pref) {
			return true
		}
	}
	return false
}

func itemSource(item *gofeed.Item) string {
	if item.Custom != nil {
		if s := item.Custom["source"]; s != "" {
			return s
		}
	}
	// Google News appends " - Publication" to titles.
	if idx := strings.LastIndex(item.Title, " - "); idx > 0 {
		return strings.TrimSpace(item.Title[idx+3:])
	}
	return "Google News"
}

func storyFromItem(item *gofeed.Item, source string) tracker.Story {
	context := item.Description
	if len(context) > 200 {
		context = context[:200]
	}
	return tracker.Story{
		Title:   item.Title,
		URL:     item.Link,
		Source:  source,
		Context: context,
	}
}

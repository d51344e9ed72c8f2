package news

import (
	"strings"
	"testing"

	"github.com/mmcdole/gofeed"
	"github.com/stretchr/testify/assert"
)

func TestItemSource(t *testing.T) {
	t.Run("source element wins", func(t *testing.T) {
		item := &gofeed.Item{
			Title:  "Headline - Somewhere Else",
			Custom: map[string]string{"source": "Reuters"},
		}
		assert.Equal(t, "Reuters", itemSource(item))
	})

	t.Run("title suffix fallback", func(t *testing.T) {
		item := &gofeed.Item{Title: "Senate Passes Budget Deal - Associated Press"}
		assert.Equal(t, "Associated Press", itemSource(item))
	})

	t.Run("last separator wins for dashed headlines", func(t *testing.T) {
		item := &gofeed.Item{Title: "Jobs Report - What It Means - BBC"}
		assert.Equal(t, "BBC", itemSource(item))
	})

	t.Run("no suffix defaults to aggregator", func(t *testing.T) {
		item := &gofeed.Item{Title: "Plain headline with no publication"}
		assert.Equal(t, "Google News", itemSource(item))
	})
}

func TestStoryFromItem(t *testing.T) {
	item := &gofeed.Item{
		Title:       "Senate Passes Budget Deal - Reuters",
		Link:        "https://news.example.com/article",
		Description: strings.Repeat("d", 300),
	}
	story := storyFromItem(item, "Reuters")

	assert.Equal(t, "Senate Passes Budget Deal - Reuters", story.Title)
	assert.Equal(t, "https://news.example.com/article", story.URL)
	assert.Equal(t, "Reuters", story.Source)
	assert.Len(t, story.Context, 200)
}

func TestIsPreferred(t *testing.T) {
	f := NewFetcher(nil, []string{"Reuters", "BBC"}, 0)
	assert.True(t, f.isPreferred("Reuters"))
	assert.True(t, f.isPreferred("BBC News"))
	assert.False(t, f.isPreferred("Some Blog"))
}

func TestNewFetcherDefaults(t *testing.T) {
	f := NewFetcher(nil, nil, 0)
	assert.NotEmpty(t, f.categories)
	assert.NotEmpty(t, f.preferredSources)
}

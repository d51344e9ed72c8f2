package scraper

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/bryanweaver/mewscast-sub000/internal/logger"
)

// maxContentRunes caps extracted article text so generation prompts stay
// bounded.
const maxContentRunes = 6000

// Article is the extracted body of a news page.
type Article struct {
	Title   string
	Content string
	URL     string
}

// articleSelectors tried in order; the first one yielding enough text
// wins.
var articleSelectors = []string{
	"article p",
	"[itemprop='articleBody'] p",
	".article-body p",
	".story-body p",
	"main p",
	".content p",
}

// Extract fetches the page and pulls the article text out of it.
func Extract(url string) (*Article, error) {
	client := &http.Client{Timeout: 15 * time.Second}

	req, err := http.NewRequest(http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("error building request: %w", err)
	}
	req.Header.Set("User-Agent", "Mozilla/5.0 (compatible; mewscast/1.0)")

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("error loading page: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("HTTP error: %d", resp.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("error parsing HTML: %w", err)
	}

	content := extractContent(doc)
	if content == "" {
		return nil, fmt.Errorf("no article content found")
	}

	return &Article{
		Title:   strings.TrimSpace(doc.Find("title").First().Text()),
		Content: content,
		URL:     url,
	}, nil
}

// ExtractOrEmpty is Extract with failures degraded to empty content; the
// generator works from the headline alone when scraping fails.
func ExtractOrEmpty(url string) string {
	art, err := Extract(url)
	if err != nil {
		logger.Debug("article extraction failed", "url", url, "error", err)
		return ""
	}
	return art.Content
}

func extractContent(doc *goquery.Document) string {
	for _, selector := range articleSelectors {
		var parts []string
		doc.Find(selector).Each(func(_ int, s *goquery.Selection) {
			text := strings.TrimSpace(s.Text())
			if len(text) > 40 { // skip captions and bylines
				parts = append(parts, text)
			}
		})
		content := strings.Join(parts, "\n\n")
		if len(content) > 200 {
			return truncateRunes(content, maxContentRunes)
		}
	}
	return ""
}

func truncateRunes(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	trimmed := string(runes[:max])
	// Try to end on a sentence.
	if idx := strings.LastIndex(trimmed, ". "); idx > max/2 {
		trimmed = trimmed[:idx+1]
	}
	return trimmed
}

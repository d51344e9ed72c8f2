// Package gen turns a news story into the anchor's commentary post using
// Gemini.
package gen

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"github.com/bryanweaver/mewscast-sub000/internal/logger"
	"github.com/bryanweaver/mewscast-sub000/internal/tracker"
)

type Client struct {
	client *genai.Client
	model  string

	anchorName  string
	style       string
	maxLength   int
	avoidTopics []string
}

// Post is one generated unit of output.
type Post struct {
	Text        string // the commentary itself, within the platform budget
	AltText     string // image description for accessibility
	ImagePrompt string // prompt for the downstream image generator
}

type Options struct {
	Model       string
	AnchorName  string
	Style       string
	MaxLength   int
	AvoidTopics []string
}

func NewClient(apiKey string, opts Options) (*Client, error) {
	ctx := context.Background()
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	if opts.Model == "" {
		opts.Model = "gemini-1.5-flash"
	}
	if opts.MaxLength <= 0 {
		opts.MaxLength = 280
	}
	return &Client{
		client:      client,
		model:       opts.Model,
		anchorName:  opts.AnchorName,
		style:       opts.Style,
		maxLength:   opts.MaxLength,
		avoidTopics: opts.AvoidTopics,
	}, nil
}

func (c *Client) Close() {
	if c.client != nil {
		c.client.Close()
	}
}

// Generate produces the commentary post for a story. previous carries
// related prior coverage so a developing story reads as a follow-up, not a
// rerun; pass nil for a fresh story.
func (c *Client) Generate(ctx context.Context, story tracker.Story, articleContent string, previous []tracker.Related) (*Post, error) {
	model := c.client.GenerativeModel(c.model)

	prompt := c.buildPrompt(story, sanitizeArticle(articleContent), previous)

	resp, err := model.GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		return nil, fmt.Errorf("failed to generate content: %w", err)
	}
	if len(resp.Candidates) == 0 || len(resp.Candidates[0].Content.Parts) == 0 {
		return nil, fmt.Errorf("no response from Gemini")
	}

	raw := fmt.Sprintf("%v", resp.Candidates[0].Content.Parts[0])
	post, err := parseResponse(raw)
	if err != nil {
		return nil, err
	}

	post.Text = EnforceLength(stripQuotes(post.Text), c.maxLength)
	logger.Info("generated post", "chars", utf8.RuneCountInString(post.Text),
		"topic", story.Title)
	return post, nil
}

// Fallback returns a safe post when generation fails; the pipeline prefers
// posting something plain over posting nothing.
func Fallback(story tracker.Story, maxLength int) *Post {
	text := fmt.Sprintf("This just in: %s. More as the story develops.", story.Title)
	return &Post{
		Text:        EnforceLength(text, maxLength),
		AltText:     "A cat news anchor at a desk reporting breaking news",
		ImagePrompt: "A dignified cat in a suit behind a news desk, studio lighting",
	}
}

func (c *Client) buildPrompt(story tracker.Story, articleContent string, previous []tracker.Related) string {
	var b strings.Builder

	fmt.Fprintf(&b, "You are %s, a cat news anchor. Voice: %s.\n\n", c.anchorName, c.style)
	fmt.Fprintf(&b, "STORY:\nHeadline: %s\nSource: %s\n", story.Title, story.Source)
	if story.Context != "" {
		fmt.Fprintf(&b, "Summary: %s\n", story.Context)
	}
	if articleContent != "" {
		fmt.Fprintf(&b, "\nARTICLE:\n%s\n", articleContent)
	}

	if len(previous) > 0 {
		b.WriteString("\nPRIOR COVERAGE (this is a developing story; frame your post as the latest development, do not repeat these):\n")
		for _, rel := range previous {
			fmt.Fprintf(&b, "- %s\n", rel.Post.Topic)
		}
	}

	fmt.Fprintf(&b, `
TASK: write one commentary post about this story.

Requirements:
- Maximum %d characters, strict.
- One or two cat puns at most; the news comes first.
- No fabricated facts beyond the story given.
- Do not wrap the post in quotes.
`, c.maxLength)
	if len(c.avoidTopics) > 0 {
		fmt.Fprintf(&b, "- Avoid topics: %s.\n", strings.Join(c.avoidTopics, ", "))
	}

	b.WriteString(`
Answer strictly in this format:

POST: <the post text>

ALT: <one-sentence image description for accessibility>

IMAGE_PROMPT: <prompt for an illustration of the anchor covering this story>
`)
	return b.String()
}

// sanitizeArticle collapses whitespace and caps prompt size, cutting on a
// sentence boundary where possible.
func sanitizeArticle(content string) string {
	content = strings.ReplaceAll(content, "\r", "")
	content = strings.Join(strings.Fields(content), " ")

	maxChars := 6000
	if utf8.RuneCountInString(content) <= maxChars {
		return content
	}
	runes := []rune(content)
	trimmed := string(runes[:maxChars])
	if idx := strings.LastIndex(trimmed, ". "); idx > 1200 {
		trimmed = trimmed[:idx+1]
	}
	return trimmed + "\n[TRUNCATED]"
}

// parseResponse splits the labeled sections out of the model output.
// Unlabeled responses are treated as bare post text.
func parseResponse(response string) (*Post, error) {
	post := &Post{}
	current := ""

	appendText := func(section, text string) {
		if text == "" {
			return
		}
		var dst *string
		switch section {
		case "post":
			dst = &post.Text
		case "alt":
			dst = &post.AltText
		case "image_prompt":
			dst = &post.ImagePrompt
		default:
			return
		}
		if *dst != "" {
			*dst += " "
		}
		*dst += text
	}

	for _, raw := range strings.Split(response, "\n") {
		line := strings.TrimSpace(raw)
		if line == "" {
			continue
		}

		matched := false
		for _, label := range []string{"POST", "ALT", "IMAGE_PROMPT"} {
			prefix := label + ":"
			if strings.HasPrefix(strings.ToUpper(line), prefix) {
				current = strings.ToLower(label)
				appendText(current, strings.TrimSpace(line[len(prefix):]))
				matched = true
				break
			}
		}
		if matched {
			continue
		}
		if current != "" {
			appendText(current, line)
		}
	}

	if post.Text == "" {
		// Model ignored the format; use the whole response as the post.
		text := strings.TrimSpace(response)
		if text == "" {
			return nil, fmt.Errorf("empty response from model")
		}
		post.Text = text
	}
	return post, nil
}

// EnforceLength truncates text to max runes with an ellipsis.
func EnforceLength(text string, max int) string {
	runes := []rune(text)
	if len(runes) <= max {
		return text
	}
	if max <= 3 {
		return string(runes[:max])
	}
	return string(runes[:max-3]) + "..."
}

// stripQuotes removes a single pair of wrapping quotes the model sometimes
// adds despite instructions.
func stripQuotes(text string) string {
	text = strings.TrimSpace(text)
	for _, pair := range [][2]string{{`"`, `"`}, {"“", "”"}, {"'", "'"}} {
		if strings.HasPrefix(text, pair[0]) && strings.HasSuffix(text, pair[1]) && len(text) > 2 {
			return strings.TrimSpace(text[len(pair[0]) : len(text)-len(pair[1])])
		}
	}
	return text
}

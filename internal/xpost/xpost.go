// Package xpost posts to X (Twitter) through the v2 API.
package xpost

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/bryanweaver/mewscast-sub000/internal/gen"
	"github.com/bryanweaver/mewscast-sub000/internal/logger"
	"github.com/bryanweaver/mewscast-sub000/internal/retry"
)

const (
	apiBase      = "https://api.twitter.com/2"
	maxTweetLen  = 280
	requestLimit = 30 * time.Second
)

// Client is a thin X API v2 client using an OAuth2 user-context token.
type Client struct {
	accessToken string
	baseURL     string
	httpClient  *http.Client
	retryCfg    retry.Config
}

// Tweet is the API's view of a created post.
type Tweet struct {
	ID   string `json:"id"`
	Text string `json:"text"`
}

func NewClient(accessToken string) *Client {
	return &Client{
		accessToken: accessToken,
		baseURL:     apiBase,
		httpClient:  &http.Client{Timeout: requestLimit},
		retryCfg:    retry.Config{MaxAttempts: 3, Delay: 2 * time.Second, Backoff: true},
	}
}

// PostTweet publishes a tweet and returns its ID. Long text is truncated
// to the platform limit.
func (c *Client) PostTweet(ctx context.Context, text string) (*Tweet, error) {
	return c.create(ctx, map[string]interface{}{
		"text": gen.EnforceLength(text, maxTweetLen),
	})
}

// ReplyToTweet publishes a reply under an existing tweet. Used for the
// source-citation followups.
func (c *Client) ReplyToTweet(ctx context.Context, parentID, text string) (*Tweet, error) {
	return c.create(ctx, map[string]interface{}{
		"text": gen.EnforceLength(text, maxTweetLen),
		"reply": map[string]string{
			"in_reply_to_tweet_id": parentID,
		},
	})
}

func (c *Client) create(ctx context.Context, payload map[string]interface{}) (*Tweet, error) {
	var tweet *Tweet
	err := retry.Do(ctx, c.retryCfg, func() error {
		t, err := c.createOnce(ctx, payload)
		if err != nil {
			return err
		}
		tweet = t
		return nil
	})
	return tweet, err
}

func (c *Client) createOnce(ctx context.Context, payload map[string]interface{}) (*Tweet, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, retry.Permanent{Err: fmt.Errorf("error marshaling tweet: %w", err)}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/tweets", bytes.NewReader(body))
	if err != nil {
		return nil, retry.Permanent{Err: err}
	}
	req.Header.Set("Authorization", "Bearer "+c.accessToken)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("error HTTP request: %w", err)
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			logger.Warn("failed to close response body", "error", err)
		}
	}()

	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<16))

	switch {
	case resp.StatusCode == http.StatusCreated:
		// fall through to decode
	case resp.StatusCode == http.StatusTooManyRequests:
		// Free tier allows few posts per day; waiting out the window
		// inside a scheduled run is pointless, so fail fast.
		return nil, retry.Permanent{Err: fmt.Errorf("x API rate limit exceeded: %s", respBody)}
	case resp.StatusCode >= 500:
		return nil, fmt.Errorf("x API server error: status %d", resp.StatusCode)
	default:
		return nil, retry.Permanent{Err: fmt.Errorf("x API error: status %d: %s", resp.StatusCode, respBody)}
	}

	var out struct {
		Data Tweet `json:"data"`
	}
	if err := json.Unmarshal(respBody, &out); err != nil {
		return nil, retry.Permanent{Err: fmt.Errorf("error decoding tweet response: %w", err)}
	}

	logger.Info("tweet posted", "id", out.Data.ID)
	return &out.Data, nil
}

// Package bluesky posts to Bluesky through the AT Protocol XRPC API.
package bluesky

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/bryanweaver/mewscast-sub000/internal/gen"
	"github.com/bryanweaver/mewscast-sub000/internal/logger"
	"github.com/bryanweaver/mewscast-sub000/internal/retry"
)

// maxPostLen is the Bluesky grapheme budget; the pipeline generates within
// 280 anyway for cross-platform parity.
const maxPostLen = 300

type Client struct {
	host       string
	handle     string
	password   string
	httpClient *http.Client
	retryCfg   retry.Config

	accessJwt string
	did       string
}

// Ref identifies a created record.
type Ref struct {
	URI string `json:"uri"`
	CID string `json:"cid"`
}

func NewClient(host, handle, password string) *Client {
	if host == "" {
		host = "https://bsky.social"
	}
	return &Client{
		host:       strings.TrimRight(host, "/"),
		handle:     handle,
		password:   password,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		retryCfg:   retry.Config{MaxAttempts: 3, Delay: 2 * time.Second, Backoff: true},
	}
}

// Login creates a session. Must be called before posting.
func (c *Client) Login(ctx context.Context) error {
	payload := map[string]string{
		"identifier": c.handle,
		"password":   c.password,
	}
	var out struct {
		AccessJwt string `json:"accessJwt"`
		Did       string `json:"did"`
	}
	if err := c.call(ctx, "com.atproto.server.createSession", payload, &out, false); err != nil {
		return fmt.Errorf("failed to authenticate with Bluesky: %w", err)
	}
	c.accessJwt = out.AccessJwt
	c.did = out.Did
	logger.Info("logged into Bluesky", "handle", c.handle)
	return nil
}

// PostSkeet publishes a post with clickable link facets for any URLs in
// the text.
func (c *Client) PostSkeet(ctx context.Context, text string) (*Ref, error) {
	text = gen.EnforceLength(text, maxPostLen)
	record := map[string]interface{}{
		"$type":     "app.bsky.feed.post",
		"text":      text,
		"createdAt": time.Now().UTC().Format(time.RFC3339),
	}
	if facets := linkFacets(text); len(facets) > 0 {
		record["facets"] = facets
	}
	return c.createRecord(ctx, record)
}

// ReplyWithLink replies under parentURI with the source article link.
func (c *Client) ReplyWithLink(ctx context.Context, parentURI, link string) (*Ref, error) {
	if len(link) > maxPostLen {
		// Undecoded aggregator URLs can exceed the budget; skip rather
		// than post a broken citation.
		return nil, fmt.Errorf("url too long for Bluesky (%d chars)", len(link))
	}

	parentCID, err := c.recordCID(ctx, parentURI)
	if err != nil {
		return nil, err
	}

	parent := map[string]string{"uri": parentURI, "cid": parentCID}
	text := "Source: " + link
	record := map[string]interface{}{
		"$type":     "app.bsky.feed.post",
		"text":      text,
		"createdAt": time.Now().UTC().Format(time.RFC3339),
		"reply": map[string]interface{}{
			"root":   parent,
			"parent": parent,
		},
	}
	if facets := linkFacets(text); len(facets) > 0 {
		record["facets"] = facets
	}
	return c.createRecord(ctx, record)
}

func (c *Client) createRecord(ctx context.Context, record map[string]interface{}) (*Ref, error) {
	payload := map[string]interface{}{
		"repo":       c.did,
		"collection": "app.bsky.feed.post",
		"record":     record,
	}
	var ref Ref
	err := retry.Do(ctx, c.retryCfg, func() error {
		return c.call(ctx, "com.atproto.repo.createRecord", payload, &ref, true)
	})
	if err != nil {
		return nil, err
	}
	logger.Info("skeet posted", "uri", ref.URI)
	return &ref, nil
}

// recordCID resolves the CID for an at:// post URI, needed to build reply
// references.
func (c *Client) recordCID(ctx context.Context, atURI string) (string, error) {
	parts := strings.Split(strings.TrimPrefix(atURI, "at://"), "/")
	if len(parts) != 3 {
		return "", fmt.Errorf("invalid AT URI format: %s", atURI)
	}

	endpoint := fmt.Sprintf("%s/xrpc/com.atproto.repo.getRecord?repo=%s&collection=%s&rkey=%s",
		c.host, url.QueryEscape(parts[0]), url.QueryEscape(parts[1]), url.QueryEscape(parts[2]))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Bearer "+c.accessJwt)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("error HTTP request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<14))
		return "", fmt.Errorf("bluesky getRecord error: status %d: %s", resp.StatusCode, body)
	}

	var out struct {
		CID string `json:"cid"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("error decoding getRecord response: %w", err)
	}
	return out.CID, nil
}

// call POSTs one XRPC method.
func (c *Client) call(ctx context.Context, method string, payload, out interface{}, authed bool) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return retry.Permanent{Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.host+"/xrpc/"+method, bytes.NewReader(body))
	if err != nil {
		return retry.Permanent{Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	if authed {
		req.Header.Set("Authorization", "Bearer "+c.accessJwt)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("error HTTP request: %w", err)
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			logger.Warn("failed to close response body", "error", err)
		}
	}()

	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<16))
	if resp.StatusCode != http.StatusOK {
		err := fmt.Errorf("bluesky %s error: status %d: %s", method, resp.StatusCode, respBody)
		if resp.StatusCode >= 500 {
			return err
		}
		return retry.Permanent{Err: err}
	}

	if out != nil {
		if err := json.Unmarshal(respBody, out); err != nil {
			return retry.Permanent{Err: fmt.Errorf("error decoding %s response: %w", method, err)}
		}
	}
	return nil
}

// linkFacets builds byte-offset link facets for every http(s) URL in the
// text so they render as clickable links.
func linkFacets(text string) []map[string]interface{} {
	var facets []map[string]interface{}
	for _, proto := range []string{"https://", "http://"} {
		start := 0
		for {
			idx := strings.Index(text[start:], proto)
			if idx < 0 {
				break
			}
			begin := start + idx
			end := begin
			for end < len(text) && !isURLBoundary(text[end]) {
				end++
			}
			facets = append(facets, map[string]interface{}{
				"index": map[string]int{
					"byteStart": begin,
					"byteEnd":   end,
				},
				"features": []map[string]string{{
					"$type": "app.bsky.richtext.facet#link",
					"uri":   text[begin:end],
				}},
			})
			start = end
		}
	}
	return facets
}

func isURLBoundary(b byte) bool {
	switch b {
	case ' ', '\n', '\t', ')', '"', '\'':
		return true
	}
	return false
}

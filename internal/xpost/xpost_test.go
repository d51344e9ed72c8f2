package xpost

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bryanweaver/mewscast-sub000/internal/retry"
)

func testClient(serverURL string) *Client {
	c := NewClient("test-token")
	c.baseURL = serverURL
	c.retryCfg = retry.Config{MaxAttempts: 3, Delay: time.Millisecond}
	return c
}

func TestPostTweet(t *testing.T) {
	var gotAuth string
	var gotPayload map[string]interface{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotPayload))
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(map[string]interface{}{
			"data": map[string]string{"id": "1234567890", "text": "hello"},
		})
	}))
	defer server.Close()

	tweet, err := testClient(server.URL).PostTweet(context.Background(), "hello")
	require.NoError(t, err)
	assert.Equal(t, "1234567890", tweet.ID)
	assert.Equal(t, "Bearer test-token", gotAuth)
	assert.Equal(t, "hello", gotPayload["text"])
	assert.NotContains(t, gotPayload, "reply")
}

func TestReplyToTweetSetsReplyRef(t *testing.T) {
	var gotPayload map[string]interface{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotPayload))
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(map[string]interface{}{
			"data": map[string]string{"id": "2", "text": "Source: x"},
		})
	}))
	defer server.Close()

	_, err := testClient(server.URL).ReplyToTweet(context.Background(), "1", "Source: x")
	require.NoError(t, err)

	reply, ok := gotPayload["reply"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "1", reply["in_reply_to_tweet_id"])
}

func TestRateLimitFailsFast(t *testing.T) {
	calls := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer server.Close()

	_, err := testClient(server.URL).PostTweet(context.Background(), "hello")
	assert.Error(t, err)
	assert.Equal(t, 1, calls, "429 must not be retried")
}

func TestServerErrorsAreRetried(t *testing.T) {
	calls := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(map[string]interface{}{
			"data": map[string]string{"id": "3", "text": "hello"},
		})
	}))
	defer server.Close()

	tweet, err := testClient(server.URL).PostTweet(context.Background(), "hello")
	require.NoError(t, err)
	assert.Equal(t, "3", tweet.ID)
	assert.Equal(t, 3, calls)
}

func TestClientErrorsAreNotRetried(t *testing.T) {
	calls := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusForbidden)
	}))
	defer server.Close()

	_, err := testClient(server.URL).PostTweet(context.Background(), "hello")
	assert.Error(t, err)
	assert.Equal(t, 1, calls)
}

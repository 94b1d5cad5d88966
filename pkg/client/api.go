package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/aeolun/forumchat/pkg/forum"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

// APIError is a non-2xx answer from the forum server. Message holds the
// server's {"error": ...} text and may be empty.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("server returned status %d", e.StatusCode)
	}
	return fmt.Sprintf("server returned status %d: %s", e.StatusCode, e.Message)
}

// ServerMessage returns the server-supplied error text of err, or fallback
// when err carries none.
func ServerMessage(err error, fallback string) string {
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.Message != "" {
		return apiErr.Message
	}
	return fallback
}

// APIClient talks to the forum's HTTP JSON API.
type APIClient struct {
	baseURL    string
	httpClient *http.Client
	logger     zerolog.Logger
	metrics    *Metrics
}

// NewAPIClient creates a client for the server at baseURL
// (e.g. "http://localhost:5000").
func NewAPIClient(baseURL string) *APIClient {
	return &APIClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{},
		logger:     zerolog.Nop(),
	}
}

// SetLogger sets a logger for request diagnostics
func (c *APIClient) SetLogger(logger zerolog.Logger) {
	c.logger = logger
}

// SetMetrics attaches Prometheus collectors
func (c *APIClient) SetMetrics(m *Metrics) {
	c.metrics = m
}

// SetHTTPClient replaces the underlying HTTP client
func (c *APIClient) SetHTTPClient(hc *http.Client) {
	c.httpClient = hc
}

// BaseURL returns the server base URL
func (c *APIClient) BaseURL() string {
	return c.baseURL
}

// ListThreads returns all threads, newest first.
func (c *APIClient) ListThreads(ctx context.Context) ([]forum.Thread, error) {
	var threads []forum.Thread
	err := c.call(ctx, "list_threads", http.MethodGet, "/api/threads", nil, &threads)
	if err != nil {
		return nil, err
	}
	return threads, nil
}

// CreateThread creates a thread and returns it with its server-assigned id.
func (c *APIClient) CreateThread(ctx context.Context, title string) (forum.Thread, error) {
	var thread forum.Thread
	err := c.call(ctx, "create_thread", http.MethodPost, "/api/threads",
		forum.CreateThreadRequest{Title: title}, &thread)
	return thread, err
}

// ListPosts returns the posts of a thread, oldest first.
func (c *APIClient) ListPosts(ctx context.Context, threadID int64) ([]forum.Post, error) {
	var posts []forum.Post
	path := fmt.Sprintf("/api/threads/%d/posts", threadID)
	if err := c.call(ctx, "list_posts", http.MethodGet, path, nil, &posts); err != nil {
		return nil, err
	}
	return posts, nil
}

// CreatePost adds a post to a thread. The server also pushes it to the
// thread's room.
func (c *APIClient) CreatePost(ctx context.Context, threadID int64, username, content string) (forum.Post, error) {
	var post forum.Post
	path := fmt.Sprintf("/api/threads/%d/posts", threadID)
	err := c.call(ctx, "create_post", http.MethodPost, path,
		forum.CreatePostRequest{Username: username, Content: content}, &post)
	return post, err
}

// DeleteThread removes a thread and its posts.
func (c *APIClient) DeleteThread(ctx context.Context, threadID int64) error {
	var status forum.StatusResponse
	path := fmt.Sprintf("/api/threads/%d", threadID)
	return c.call(ctx, "delete_thread", http.MethodDelete, path, nil, &status)
}

// WipeThreads removes every thread and post on the server.
func (c *APIClient) WipeThreads(ctx context.Context) error {
	var status forum.StatusResponse
	return c.call(ctx, "wipe_threads", http.MethodDelete, "/api/threads/wipe", nil, &status)
}

// call performs one JSON round trip. A 2xx body is decoded into out; any
// other status becomes an *APIError.
func (c *APIClient) call(ctx context.Context, op, method, path string, in, out interface{}) (err error) {
	start := time.Now()
	defer func() {
		c.metrics.ObserveRequest(op, start, err)
		if err != nil {
			c.logger.Warn().Err(err).Str("op", op).Str("path", path).Msg("api request failed")
		} else {
			c.logger.Debug().Str("op", op).Dur("took", time.Since(start)).Msg("api request")
		}
	}()

	var body io.Reader
	if in != nil {
		raw, err := json.Marshal(in)
		if err != nil {
			return errors.Wrapf(err, "marshal %s request", op)
		}
		body = bytes.NewReader(raw)
	}

	resp, err := c.do(ctx, method, path, body)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return decodeAPIError(resp)
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return errors.Wrapf(err, "decode %s response", op)
	}
	return nil
}

// do is the single helper for making API requests.
func (c *APIClient) do(ctx context.Context, method, path string, body io.Reader) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create API request")
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "server unavailable")
	}
	return resp, nil
}

func decodeAPIError(resp *http.Response) error {
	apiErr := &APIError{StatusCode: resp.StatusCode}
	raw, err := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err != nil {
		return apiErr
	}
	var payload forum.ErrorResponse
	if json.Unmarshal(raw, &payload) == nil {
		apiErr.Message = payload.Error
	}
	return apiErr
}

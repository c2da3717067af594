package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// DefaultBaseURL is where the backend listens in development.
const DefaultBaseURL = "http://localhost:8000"

const maxBodyBytes = 1 << 20

// Session is the credential attached to every request made through a Client.
type Session struct {
	Username string
	Token    string
}

// Authenticated reports whether the session carries a token.
func (s Session) Authenticated() bool {
	return s.Token != ""
}

// Client talks to the backend over HTTP. A Client is bound to one Session;
// use WithSession to derive a client for another credential.
type Client struct {
	baseURL    string
	session    Session
	httpClient *http.Client
	logger     *slog.Logger
}

// NewClient returns an unauthenticated client for baseURL.
func NewClient(baseURL string, logger *slog.Logger) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		logger: logger,
	}
}

// WithSession returns a copy of c that authenticates as s.
func (c *Client) WithSession(s Session) *Client {
	cp := *c
	cp.session = s
	return &cp
}

// WithTransport returns a copy of c sending requests through rt.
func (c *Client) WithTransport(rt http.RoundTripper) *Client {
	cp := *c
	hc := *c.httpClient
	hc.Transport = rt
	cp.httpClient = &hc
	return &cp
}

// Session returns the credential the client is bound to.
func (c *Client) Session() Session {
	return c.session
}

// BaseURL returns the backend root the client targets.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Login exchanges a username and password for a bearer token.
func (c *Client) Login(ctx context.Context, username, password string) (Session, error) {
	form := url.Values{}
	form.Set("username", username)
	form.Set("password", password)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/token", strings.NewReader(form.Encode()))
	if err != nil {
		return Session{}, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	var tok TokenResponse
	if err := c.do(req, &tok); err != nil {
		return Session{}, fmt.Errorf("login: %w", err)
	}
	if tok.AccessToken == "" {
		return Session{}, fmt.Errorf("login: empty access token")
	}
	return Session{Username: username, Token: tok.AccessToken}, nil
}

// ListVideos returns one page of videos.
func (c *Client) ListVideos(ctx context.Context, q ListQuery) ([]Video, error) {
	params := url.Values{}
	if q.Page > 0 {
		params.Set("page", strconv.Itoa(q.Page))
	}
	if q.Limit > 0 {
		params.Set("limit", strconv.Itoa(q.Limit))
	}
	if q.Search != "" {
		params.Set("search", q.Search)
	}
	if q.Status != nil {
		params.Set("status", q.Status.WireName())
	}

	path := "/videos/"
	if len(params) > 0 {
		path += "?" + params.Encode()
	}

	var videos []Video
	if err := c.call(ctx, http.MethodGet, path, nil, &videos); err != nil {
		return nil, fmt.Errorf("list videos: %w", err)
	}
	return videos, nil
}

// GetVideo fetches a single video.
func (c *Client) GetVideo(ctx context.Context, id ID) (*Video, error) {
	var v Video
	if err := c.call(ctx, http.MethodGet, "/videos/"+url.PathEscape(string(id)), nil, &v); err != nil {
		return nil, fmt.Errorf("get video %s: %w", id, err)
	}
	return &v, nil
}

// CreateVideo registers a new video.
func (c *Client) CreateVideo(ctx context.Context, in VideoCreate) (*Video, error) {
	if !c.session.Authenticated() {
		return nil, ErrUnauthenticated
	}
	var v Video
	if err := c.call(ctx, http.MethodPost, "/videos/", in, &v); err != nil {
		return nil, fmt.Errorf("create video: %w", err)
	}
	return &v, nil
}

// UpdateVideo changes the metadata of a video and returns the stored result.
func (c *Client) UpdateVideo(ctx context.Context, id ID, in VideoUpdate) (*Video, error) {
	if !c.session.Authenticated() {
		return nil, ErrUnauthenticated
	}
	var v Video
	if err := c.call(ctx, http.MethodPatch, "/videos/"+url.PathEscape(string(id)), in, &v); err != nil {
		return nil, fmt.Errorf("update video %s: %w", id, err)
	}
	return &v, nil
}

// SplitVideo starts an asynchronous split job. A nil error means the job was
// accepted, not that it finished.
func (c *Client) SplitVideo(ctx context.Context, id ID, segments []Range) (*SplitResponse, error) {
	if !c.session.Authenticated() {
		return nil, ErrUnauthenticated
	}
	var resp SplitResponse
	path := "/videos/" + url.PathEscape(string(id)) + "/split"
	if err := c.call(ctx, http.MethodPost, path, SplitRequest{Segments: segments}, &resp); err != nil {
		return nil, fmt.Errorf("split video %s: %w", id, err)
	}
	return &resp, nil
}

// ListSegments returns the segments produced for a video so far. A 404 means
// nothing has been produced yet and yields an empty list.
func (c *Client) ListSegments(ctx context.Context, id ID) ([]ProducedSegment, error) {
	var segs []ProducedSegment
	path := "/videos/" + url.PathEscape(string(id)) + "/segments"
	err := c.call(ctx, http.MethodGet, path, nil, &segs)
	if err != nil {
		var apiErr *Error
		if errors.As(err, &apiErr) && apiErr.IsNotFound() {
			return []ProducedSegment{}, nil
		}
		return nil, fmt.Errorf("list segments %s: %w", id, err)
	}
	if segs == nil {
		segs = []ProducedSegment{}
	}
	return segs, nil
}

func (c *Client) call(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	return c.do(req, out)
}

func (c *Client) do(req *http.Request, out any) error {
	req.Header.Set("X-Request-Id", uuid.NewString())
	if c.session.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.session.Token)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("http request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))

	c.logger.Debug("backend request",
		"method", req.Method,
		"path", req.URL.Path,
		"status", resp.StatusCode,
		"duration_ms", time.Since(start).Milliseconds(),
	)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return newError(resp.StatusCode, respBody)
	}
	if out == nil || len(bytes.TrimSpace(respBody)) == 0 {
		return nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("unmarshal response: %w", err)
	}
	return nil
}

// Package dribbble talks to the Dribbble v2 REST API: paced, paginated shot feeds,
// single shot lookups and image downloads.
package dribbble

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// ErrFeedUnavailable marks a non-success response from the API.
var ErrFeedUnavailable = errors.New("feed unavailable")

// ErrMissingAccessToken is returned when an API call is attempted without a token.
var ErrMissingAccessToken = errors.New("missing dribbble access token")

const maxBodyBytes = 10 * 1024 * 1024

// StatusError reports the HTTP status of a failed API call.
type StatusError struct {
	URL        string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("dribbble api %s: status %d", e.URL, e.StatusCode)
}

func (e *StatusError) Unwrap() error {
	return ErrFeedUnavailable
}

// HTTPClient is the interface for performing HTTP requests.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// Client is a thin Dribbble API client.
type Client struct {
	http        HTTPClient
	baseURL     string
	accessToken string
	userAgent   string
}

// NewClient creates a client. A nil HTTPClient uses http.DefaultClient; no per-request
// timeout is applied beyond the transport's own.
func NewClient(client HTTPClient, baseURL, accessToken string) *Client {
	if client == nil {
		client = http.DefaultClient
	}
	return &Client{
		http:        client,
		baseURL:     strings.TrimSuffix(baseURL, "/"),
		accessToken: accessToken,
		userAgent:   "dataset-manager/1.0",
	}
}

// WithAccessToken returns a copy of the client that authenticates with token.
func (c *Client) WithAccessToken(token string) *Client {
	clone := *c
	clone.accessToken = token
	return &clone
}

// HasAccessToken reports whether the client can make authenticated calls.
func (c *Client) HasAccessToken() bool {
	return c.accessToken != ""
}

// FeedURL builds the seed URL of a shot feed.
func (c *Client) FeedURL(feedPath string, perPage int) string {
	q := url.Values{}
	q.Set("page", "1")
	q.Set("per_page", strconv.Itoa(perPage))
	return c.baseURL + "/" + strings.TrimPrefix(feedPath, "/") + "?" + q.Encode()
}

// FetchPage fetches one page of a shot feed. A non-2xx response returns the page
// metadata together with a *StatusError.
func (c *Client) FetchPage(ctx context.Context, pageURL string) (*Page, error) {
	resp, err := c.get(ctx, pageURL)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	page := &Page{
		URL:        pageURL,
		StatusCode: resp.StatusCode,
		Links:      ParseLinkHeader(resp.Header.Get("Link")),
		FetchedAt:  time.Now(),
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return page, &StatusError{URL: pageURL, StatusCode: resp.StatusCode}
	}
	if err := decodeJSON(resp.Body, &page.Shots); err != nil {
		return page, fmt.Errorf("decode page %s: %w", pageURL, err)
	}
	return page, nil
}

// GetShot fetches a single shot by id.
func (c *Client) GetShot(ctx context.Context, id int64) (*Shot, error) {
	shotURL := c.baseURL + "/shots/" + strconv.FormatInt(id, 10)
	resp, err := c.get(ctx, shotURL)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &StatusError{URL: shotURL, StatusCode: resp.StatusCode}
	}
	var shot Shot
	if err := decodeJSON(resp.Body, &shot); err != nil {
		return nil, fmt.Errorf("decode shot %d: %w", id, err)
	}
	return &shot, nil
}

// ListUserShots returns the shots of the user owning the access token.
func (c *Client) ListUserShots(ctx context.Context) ([]Shot, error) {
	shotsURL := c.baseURL + "/user/shots"
	resp, err := c.get(ctx, shotsURL)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= 400 {
		return nil, &StatusError{URL: shotsURL, StatusCode: resp.StatusCode}
	}
	var shots []Shot
	if err := decodeJSON(resp.Body, &shots); err != nil {
		return nil, fmt.Errorf("decode user shots: %w", err)
	}
	return shots, nil
}

// DownloadImage stores imageURL as <outDir>/<baseName><ext> and returns the file path.
// The extension comes from the URL path, defaulting to .jpg.
func (c *Client) DownloadImage(ctx context.Context, imageURL, outDir, baseName string) (string, error) {
	parsed, err := url.Parse(imageURL)
	if err != nil {
		return "", fmt.Errorf("parse image url: %w", err)
	}
	ext := path.Ext(parsed.Path)
	if ext == "" {
		ext = ".jpg"
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, imageURL, nil)
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("download image: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode >= 400 {
		return "", &StatusError{URL: imageURL, StatusCode: resp.StatusCode}
	}

	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return "", fmt.Errorf("create download dir: %w", err)
	}
	filePath := filepath.Join(outDir, baseName+ext)
	f, err := os.Create(filePath)
	if err != nil {
		return "", fmt.Errorf("create image file: %w", err)
	}
	if _, err := io.Copy(f, resp.Body); err != nil {
		_ = f.Close()
		return "", fmt.Errorf("write image file: %w", err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("close image file: %w", err)
	}
	return filePath, nil
}

func (c *Client) get(ctx context.Context, rawURL string) (*http.Response, error) {
	if c.accessToken == "" {
		return nil, ErrMissingAccessToken
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.accessToken)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http get: %w", err)
	}
	return resp, nil
}

func decodeJSON(r io.Reader, v any) error {
	return json.NewDecoder(io.LimitReader(r, maxBodyBytes)).Decode(v)
}

package publisher

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/microcosm-cc/bluemonday"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"wp_article_publisher/config"
)

const (
	mediaPath   = "/wp-json/wp/v2/media"
	postsPath   = "/wp-json/wp/v2/posts"
	pluginsPath = "/wp-json/wp/v2/plugins"

	requestTimeout = 60 * time.Second
	detectTimeout  = 10 * time.Second

	maxErrorBody = 4 << 10
)

// errorPage strips markup from HTML error pages served by proxies and WAFs.
var errorPage = bluemonday.StrictPolicy().AddSpaceWhenStrippingTag(true)

// APIError is a non-2xx answer from the WordPress REST API.
type APIError struct {
	Op     string
	Status int
	Body   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("wordpress %s: status %d: %s", e.Op, e.Status, e.Body)
}

// Post is the JSON body sent to the posts endpoint.
type Post struct {
	Title         string            `json:"title"`
	Content       string            `json:"content"`
	Status        string            `json:"status"`
	Slug          string            `json:"slug,omitempty"`
	Categories    []int64           `json:"categories,omitempty"`
	FeaturedMedia int64             `json:"featured_media,omitempty"`
	Meta          map[string]string `json:"meta,omitempty"`
}

type createdResp struct {
	ID int64 `json:"id"`
}

type pluginResp struct {
	Plugin string `json:"plugin"`
	Status string `json:"status"`
}

// WPClient talks to one WordPress site with its application password.
// Media uploads go through a circuit breaker; post creation never does.
type WPClient struct {
	site   config.Site
	client *http.Client
	media  *gobreaker.CircuitBreaker
	log    *zap.Logger
}

// NewWPClient builds a client for site. A nil client gets a 60 second timeout.
func NewWPClient(site config.Site, client *http.Client, log *zap.Logger) *WPClient {
	if client == nil {
		client = &http.Client{Timeout: requestTimeout}
	}
	if log == nil {
		log = zap.NewNop()
	}
	log = log.With(zap.String("site", site.Key))

	settings := gobreaker.Settings{
		Name:        "wordpress-media-" + site.Key,
		MaxRequests: 1,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		IsSuccessful: siteHealthy,
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn("circuit breaker state changed",
				zap.String("circuit", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()))
		},
	}

	return &WPClient{
		site:   site,
		client: client,
		media:  gobreaker.NewCircuitBreaker(settings),
		log:    log,
	}
}

// siteHealthy reports whether err leaves the site looking reachable.
// Only transport faults and 5xx answers count against the breaker.
func siteHealthy(err error) bool {
	if err == nil {
		return true
	}
	if errors.Is(err, context.Canceled) {
		return true
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Status < http.StatusInternalServerError
	}
	var transportErr *transportError
	return !errors.As(err, &transportErr)
}

// transportError marks a request that never got an HTTP answer.
type transportError struct{ err error }

func (e *transportError) Error() string { return e.err.Error() }
func (e *transportError) Unwrap() error { return e.err }

// UploadMedia posts the file at path to the media library and returns its id.
func (c *WPClient) UploadMedia(ctx context.Context, path string) (int64, error) {
	file, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer file.Close()

	filename := filepath.Base(path)

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)

	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename=%q`, filename))
	header.Set("Content-Type", "image/webp")
	part, err := writer.CreatePart(header)
	if err != nil {
		return 0, err
	}
	if _, err := io.Copy(part, file); err != nil {
		return 0, err
	}
	if err := writer.WriteField("title", filename); err != nil {
		return 0, err
	}
	if err := writer.WriteField("status", "inherit"); err != nil {
		return 0, err
	}
	if err := writer.Close(); err != nil {
		return 0, err
	}

	res, err := c.media.Execute(func() (interface{}, error) {
		return c.create(ctx, "upload media", mediaPath, writer.FormDataContentType(), body.Bytes())
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return 0, fmt.Errorf("upload media: site %s unavailable: %w", c.site.Key, err)
		}
		return 0, err
	}
	id := res.(int64)
	c.log.Info("media uploaded", zap.String("file", filename), zap.Int64("media_id", id))
	return id, nil
}

// CreatePost creates a post and returns its id.
func (c *WPClient) CreatePost(ctx context.Context, post Post) (int64, error) {
	body, err := json.Marshal(post)
	if err != nil {
		return 0, err
	}
	id, err := c.create(ctx, "create post", postsPath, "application/json", body)
	if err != nil {
		return 0, err
	}
	c.log.Info("post created",
		zap.Int64("post_id", id),
		zap.String("slug", post.Slug),
		zap.String("status", post.Status),
		zap.String("url", fmt.Sprintf("%s/?p=%d", c.site.BaseURL(), id)),
	)
	return id, nil
}

// DetectSEOPlugin classifies the active SEO plugins of the site.
// Any transport fault or non-200 answer yields SEOPluginUnknown.
func (c *WPClient) DetectSEOPlugin(ctx context.Context) string {
	ctx, cancel := context.WithTimeout(ctx, detectTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.site.BaseURL()+pluginsPath, nil)
	if err != nil {
		return config.SEOPluginUnknown
	}
	req.SetBasicAuth(c.site.Username, c.site.AppPassword)

	resp, err := c.client.Do(req)
	if err != nil {
		c.log.Warn("plugin list request failed", zap.Error(err))
		return config.SEOPluginUnknown
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		c.log.Warn("plugin list unavailable", zap.Int("status", resp.StatusCode))
		return config.SEOPluginUnknown
	}

	var plugins []pluginResp
	if err := json.NewDecoder(resp.Body).Decode(&plugins); err != nil {
		c.log.Warn("plugin list undecodable", zap.Error(err))
		return config.SEOPluginUnknown
	}
	return classifySEOPlugins(plugins)
}

func (c *WPClient) create(ctx context.Context, op, path, contentType string, body []byte) (int64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.site.BaseURL()+path, bytes.NewReader(body))
	if err != nil {
		return 0, err
	}
	req.SetBasicAuth(c.site.Username, c.site.AppPassword)
	req.Header.Set("Content-Type", contentType)

	resp, err := c.client.Do(req)
	if err != nil {
		return 0, &transportError{err: fmt.Errorf("%s: %w", op, err)}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		text, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return 0, &APIError{Op: op, Status: resp.StatusCode, Body: errorBody(resp.Header.Get("Content-Type"), text)}
	}

	var data createdResp
	if err := json.NewDecoder(resp.Body).Decode(&data); err != nil {
		return 0, fmt.Errorf("decode %s response: %w", op, err)
	}
	if data.ID == 0 {
		return 0, fmt.Errorf("%s: response without id", op)
	}
	return data.ID, nil
}

// errorBody keeps JSON error bodies as sent and reduces HTML pages to their text.
func errorBody(contentType string, body []byte) string {
	if !strings.Contains(strings.ToLower(contentType), "text/html") {
		return string(body)
	}
	return strings.Join(strings.Fields(errorPage.Sanitize(string(body))), " ")
}

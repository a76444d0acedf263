package publisher

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wp_article_publisher/config"
	"wp_article_publisher/generator"
)

const stubContent = "<h2>Intro</h2><p>Body text</p><script>alert(1)</script>"

type stubGenerator struct {
	fail    map[string]error
	content string
	calls   int
}

func (s *stubGenerator) Generate(_ context.Context, topic, _ string) (generator.Article, error) {
	s.calls++
	if err := s.fail[topic]; err != nil {
		return generator.Article{}, err
	}
	content := s.content
	if content == "" {
		content = stubContent
	}
	return generator.Article{
		Title:           topic,
		MetaTitle:       "Meta " + topic,
		MetaDescription: "Description " + topic,
		Slug:            "model-slug",
		ContentHTML:     content,
		ImagePrompt:     "cover for " + topic,
	}, nil
}

type stubImages struct {
	err   error
	paths []string
}

func (s *stubImages) Make(_ context.Context, _ string, outPath string) (string, error) {
	s.paths = append(s.paths, outPath)
	if s.err != nil {
		return "", s.err
	}
	return outPath, os.WriteFile(outPath, []byte("RIFFwebp"), 0o600)
}

// fakeWordPress records what the pipeline sends to the REST API.
type fakeWordPress struct {
	mu          sync.Mutex
	hits        int
	mediaStatus int
	postStatus  int
	plugins     string
	posts       []map[string]any
	mediaForms  []string
}

func newFakeWordPress(t *testing.T) (*fakeWordPress, *httptest.Server) {
	t.Helper()
	wp := &fakeWordPress{mediaStatus: http.StatusCreated, postStatus: http.StatusCreated, plugins: "[]"}
	srv := httptest.NewServer(http.HandlerFunc(wp.serve))
	t.Cleanup(srv.Close)
	return wp, srv
}

func (f *fakeWordPress) serve(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.hits++

	if user, pass, ok := r.BasicAuth(); !ok || user != "editor" || pass != "app-pass" {
		w.WriteHeader(http.StatusUnauthorized)
		return
	}

	switch r.URL.Path {
	case mediaPath:
		if err := r.ParseMultipartForm(1 << 20); err == nil {
			f.mediaForms = append(f.mediaForms, r.FormValue("status"))
		}
		w.WriteHeader(f.mediaStatus)
		_, _ = io.WriteString(w, `{"id": 55}`)
	case postsPath:
		var body map[string]any
		_ = json.NewDecoder(r.Body).Decode(&body)
		f.posts = append(f.posts, body)
		w.WriteHeader(f.postStatus)
		if f.postStatus == http.StatusCreated {
			_, _ = io.WriteString(w, `{"id": 101}`)
		} else {
			_, _ = io.WriteString(w, `{"code":"rest_cannot_create"}`)
		}
	case pluginsPath:
		_, _ = io.WriteString(w, f.plugins)
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func testConfig(t *testing.T, url, seoPlugin string, defaultCategory int64) *config.Config {
	t.Helper()
	return &config.Config{
		Sites: map[string]config.Site{
			"gapola": {
				Key:               "gapola",
				WPURL:             url + "/",
				Username:          "editor",
				AppPassword:       "app-pass",
				DefaultCategoryID: defaultCategory,
				SEOPlugin:         seoPlugin,
				PromptProfile:     "default",
			},
		},
		Image: config.ImageConfig{WorkDir: t.TempDir()},
	}
}

func newTestPublisher(t *testing.T, cfg *config.Config, gen ArticleGenerator, images ImageMaker) *Publisher {
	t.Helper()
	p, err := New(cfg, gen, images, nil, nil, nil)
	require.NoError(t, err)
	return p
}

func TestPublish_FullPipeline(t *testing.T) {
	wp, srv := newFakeWordPress(t)
	cfg := testConfig(t, srv.URL, config.SEOPluginRankMath, 7)
	images := &stubImages{}
	p := newTestPublisher(t, cfg, &stubGenerator{}, images)

	res, err := p.Publish(context.Background(), "gapola", "Ставки на футбол: обзор", PublishOptions{})
	require.NoError(t, err)

	assert.Equal(t, OutcomeSuccess, res.Outcome)
	assert.True(t, res.Published)
	require.NotNil(t, res.PostID)
	assert.Equal(t, int64(101), *res.PostID)
	require.NotNil(t, res.MediaID)
	assert.Equal(t, int64(55), *res.MediaID)
	assert.Equal(t, "stavki-na-futbol", res.Slug)
	assert.Equal(t, StatusDraft, res.Status)
	assert.Equal(t, stubContent, res.ContentHTML)

	require.Len(t, wp.posts, 1)
	post := wp.posts[0]
	assert.Equal(t, stubContent, post["content"])
	assert.Equal(t, "draft", post["status"])
	assert.Equal(t, "stavki-na-futbol", post["slug"])
	assert.Equal(t, []any{float64(7)}, post["categories"])
	assert.Equal(t, float64(55), post["featured_media"])
	assert.Equal(t, map[string]any{
		"rank_math_title":       "Meta Ставки на футбол: обзор",
		"rank_math_description": "Description Ставки на футбол: обзор",
	}, post["meta"])
	assert.Equal(t, []string{"inherit"}, wp.mediaForms)

	require.Len(t, images.paths, 1)
	assert.NoFileExists(t, images.paths[0])
}

func TestPublish_ImageFailureStillPosts(t *testing.T) {
	wp, srv := newFakeWordPress(t)
	cfg := testConfig(t, srv.URL, config.SEOPluginNone, 0)
	p := newTestPublisher(t, cfg, &stubGenerator{}, &stubImages{err: errors.New("image model unavailable")})

	res, err := p.Publish(context.Background(), "gapola", "topic", PublishOptions{Publish: true})
	require.NoError(t, err)

	assert.Equal(t, OutcomeSuccess, res.Outcome)
	assert.Nil(t, res.MediaID)
	assert.Contains(t, res.CoverError, "image model unavailable")

	require.Len(t, wp.posts, 1)
	assert.Equal(t, "publish", wp.posts[0]["status"])
	assert.NotContains(t, wp.posts[0], "featured_media")
	assert.NotContains(t, wp.posts[0], "categories")
	assert.NotContains(t, wp.posts[0], "meta")
}

func TestPublish_UploadFailureStillPosts(t *testing.T) {
	wp, srv := newFakeWordPress(t)
	wp.mediaStatus = http.StatusInternalServerError
	cfg := testConfig(t, srv.URL, config.SEOPluginNone, 0)
	images := &stubImages{}
	p := newTestPublisher(t, cfg, &stubGenerator{}, images)

	res, err := p.Publish(context.Background(), "gapola", "topic", PublishOptions{})
	require.NoError(t, err)

	assert.Equal(t, OutcomeSuccess, res.Outcome)
	assert.Nil(t, res.MediaID)
	assert.Contains(t, res.CoverError, "status 500")
	require.Len(t, wp.posts, 1)
	assert.NotContains(t, wp.posts[0], "featured_media")
	assert.NoFileExists(t, images.paths[0])
}

func TestPublish_UnknownSiteMakesNoRemoteCalls(t *testing.T) {
	wp, srv := newFakeWordPress(t)
	gen := &stubGenerator{}
	images := &stubImages{}
	p := newTestPublisher(t, testConfig(t, srv.URL, config.SEOPluginNone, 0), gen, images)

	_, err := p.Publish(context.Background(), "missing", "topic", PublishOptions{})
	assert.ErrorIs(t, err, config.ErrUnknownSite)

	_, err = p.PublishBatch(context.Background(), "missing", []string{"a", "b"}, PublishOptions{})
	assert.ErrorIs(t, err, config.ErrUnknownSite)

	assert.Zero(t, gen.calls)
	assert.Empty(t, images.paths)
	assert.Zero(t, wp.hits)
}

func TestPublish_GenerationFailure(t *testing.T) {
	wp, srv := newFakeWordPress(t)
	cause := &generator.GenerationError{Topic: "topic", Attempts: 3}
	p := newTestPublisher(t, testConfig(t, srv.URL, config.SEOPluginNone, 0),
		&stubGenerator{fail: map[string]error{"topic": cause}}, &stubImages{})

	res, err := p.Publish(context.Background(), "gapola", "topic", PublishOptions{})
	assert.ErrorIs(t, err, generator.ErrGeneration)
	assert.Equal(t, OutcomeError, res.Outcome)
	assert.NotEmpty(t, res.Error)
	assert.Nil(t, res.PostID)
	assert.Zero(t, wp.hits)
}

func TestPublish_PostRejected(t *testing.T) {
	wp, srv := newFakeWordPress(t)
	wp.postStatus = http.StatusForbidden
	p := newTestPublisher(t, testConfig(t, srv.URL, config.SEOPluginNone, 0), &stubGenerator{}, nil)

	res, err := p.Publish(context.Background(), "gapola", "topic", PublishOptions{})
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, "create post", apiErr.Op)
	assert.Equal(t, http.StatusForbidden, apiErr.Status)
	assert.Contains(t, apiErr.Body, "rest_cannot_create")

	assert.Equal(t, OutcomePartial, res.Outcome)
	assert.False(t, res.Published)
	assert.Equal(t, "topic", res.Title)
}

func TestPublish_ContentPostedVerbatim(t *testing.T) {
	content := `<h2 class="lead" style="color:red">Коэффициенты</h2>` +
		`<p><a href="https://ex.com">link</a></p>` +
		`<table class="odds"><tr><td style="text-align:center">1.85</td></tr></table>`
	wp, srv := newFakeWordPress(t)
	p := newTestPublisher(t, testConfig(t, srv.URL, config.SEOPluginNone, 0), &stubGenerator{content: content}, nil)

	res, err := p.Publish(context.Background(), "gapola", "topic", PublishOptions{})
	require.NoError(t, err)

	assert.Equal(t, content, res.ContentHTML)
	require.Len(t, wp.posts, 1)
	assert.Equal(t, content, wp.posts[0]["content"])
}

func TestPublish_RejectedPostsDoNotBlockLaterTopics(t *testing.T) {
	wp, srv := newFakeWordPress(t)
	wp.postStatus = http.StatusBadRequest
	p := newTestPublisher(t, testConfig(t, srv.URL, config.SEOPluginNone, 0), &stubGenerator{}, nil)

	for i := 0; i < 5; i++ {
		res, err := p.Publish(context.Background(), "gapola", "rejected", PublishOptions{})
		var apiErr *APIError
		require.ErrorAs(t, err, &apiErr)
		assert.Equal(t, http.StatusBadRequest, apiErr.Status)
		assert.Equal(t, OutcomePartial, res.Outcome)
	}

	wp.mu.Lock()
	wp.postStatus = http.StatusCreated
	wp.mu.Unlock()

	res, err := p.Publish(context.Background(), "gapola", "accepted", PublishOptions{})
	require.NoError(t, err)
	assert.Equal(t, OutcomeSuccess, res.Outcome)
	assert.Len(t, wp.posts, 6)
}

func TestPublishBatch_FailingUploadsNeverSkipPosts(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		lastCover string
	}{
		{"client errors keep uploading", http.StatusForbidden, "status 403"},
		{"server errors open the media breaker", http.StatusInternalServerError, "unavailable"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			wp, srv := newFakeWordPress(t)
			wp.mediaStatus = tt.status
			p := newTestPublisher(t, testConfig(t, srv.URL, config.SEOPluginNone, 0), &stubGenerator{}, &stubImages{})

			topics := []string{"a", "b", "c", "d", "e", "f", "g"}
			results, err := p.PublishBatch(context.Background(), "gapola", topics, PublishOptions{})
			require.NoError(t, err)

			assert.Equal(t, len(topics), CountSuccess(results))
			assert.Len(t, wp.posts, len(topics))
			assert.Contains(t, results[len(results)-1].CoverError, tt.lastCover)
		})
	}
}

func TestPublish_CategoryPrecedence(t *testing.T) {
	wp, srv := newFakeWordPress(t)
	p := newTestPublisher(t, testConfig(t, srv.URL, config.SEOPluginNone, 7), &stubGenerator{}, nil)

	_, err := p.Publish(context.Background(), "gapola", "topic", PublishOptions{CategoryID: 12})
	require.NoError(t, err)
	assert.Equal(t, []any{float64(12)}, wp.posts[0]["categories"])
}

func TestPublish_AutoSEOPlugin(t *testing.T) {
	tests := []struct {
		name     string
		plugins  string
		wantMeta bool
	}{
		{"rank math active", `[{"plugin":"seo-by-rank-math/rank-math","status":"active"}]`, true},
		{"both active", `[{"plugin":"seo-by-rank-math/rank-math","status":"active"},{"plugin":"wordpress-seo/wp-seo","status":"active"}]`, true},
		{"rank math inactive", `[{"plugin":"seo-by-rank-math/rank-math","status":"inactive"}]`, false},
		{"yoast", `[{"plugin":"wordpress-seo/wp-seo","status":"active"}]`, false},
		{"broken listing", `not json`, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			wp, srv := newFakeWordPress(t)
			wp.plugins = tt.plugins
			p := newTestPublisher(t, testConfig(t, srv.URL, config.SEOPluginAuto, 0), &stubGenerator{}, nil)

			_, err := p.Publish(context.Background(), "gapola", "topic", PublishOptions{})
			require.NoError(t, err)
			require.Len(t, wp.posts, 1)
			_, hasMeta := wp.posts[0]["meta"]
			assert.Equal(t, tt.wantMeta, hasMeta)
		})
	}
}

func TestPublishBatch_ContinuesAfterFailures(t *testing.T) {
	_, srv := newFakeWordPress(t)
	gen := &stubGenerator{fail: map[string]error{"bad": &generator.GenerationError{Topic: "bad", Attempts: 3}}}
	p := newTestPublisher(t, testConfig(t, srv.URL, config.SEOPluginNone, 0), gen, nil)

	results, err := p.PublishBatch(context.Background(), "gapola", []string{"bad", "good"}, PublishOptions{})
	require.NoError(t, err)
	require.Len(t, results, 2)

	assert.Equal(t, 1, results[0].ID)
	assert.Equal(t, OutcomeError, results[0].Outcome)
	assert.Equal(t, OutcomeError, results[0].Status)
	assert.Equal(t, 2, results[1].ID)
	assert.Equal(t, OutcomeSuccess, results[1].Outcome)
	assert.Equal(t, StatusDraft, results[1].Status)
	assert.Equal(t, 1, CountSuccess(results))
	assert.Equal(t, 2, gen.calls)
}

func TestDetectSEOPlugin(t *testing.T) {
	wp, srv := newFakeWordPress(t)
	wp.plugins = `[{"plugin":"wordpress-seo/wp-seo","status":"active"},{"plugin":"akismet/akismet","status":"active"}]`
	p := newTestPublisher(t, testConfig(t, srv.URL, config.SEOPluginNone, 0), &stubGenerator{}, nil)

	client, err := p.Client("gapola")
	require.NoError(t, err)
	assert.Equal(t, config.SEOPluginYoast, client.DetectSEOPlugin(context.Background()))

	bad := NewWPClient(config.Site{Key: "x", WPURL: srv.URL + "/nowhere"}, nil, nil)
	assert.Equal(t, config.SEOPluginUnknown, bad.DetectSEOPlugin(context.Background()))

	_, err = p.Client("missing")
	assert.ErrorIs(t, err, config.ErrUnknownSite)
}

func TestClassifySEOPlugins(t *testing.T) {
	tests := []struct {
		plugins []pluginResp
		want    string
	}{
		{nil, config.SEOPluginNone},
		{[]pluginResp{{Plugin: "Seo-By-Rank-Math/rank-math", Status: "active"}}, config.SEOPluginRankMath},
		{[]pluginResp{{Plugin: "wordpress-seo/wp-seo", Status: "active"}}, config.SEOPluginYoast},
		{[]pluginResp{{Plugin: "rank-math", Status: "active"}, {Plugin: "yoast-premium", Status: "active"}}, config.SEOPluginBoth},
		{[]pluginResp{{Plugin: "rank-math", Status: "inactive"}}, config.SEOPluginNone},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, classifySEOPlugins(tt.plugins))
	}
}

func TestAPIError_Message(t *testing.T) {
	err := &APIError{Op: "upload media", Status: 413, Body: "too large"}
	assert.True(t, strings.Contains(err.Error(), "413"))
}

func TestCreatePost_ErrorBodies(t *testing.T) {
	tests := []struct {
		name        string
		contentType string
		body        string
		want        string
	}{
		{"json kept", "application/json", `{"code":"rest_invalid_param","message":"<b>bad</b>"}`, `{"code":"rest_invalid_param","message":"<b>bad</b>"}`},
		{"html page reduced to text", "text/html; charset=UTF-8", "<html><body><h1>Forbidden</h1>\n<p>Access denied</p><script>track()</script></body></html>", "Forbidden Access denied"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.Header().Set("Content-Type", tt.contentType)
				w.WriteHeader(http.StatusForbidden)
				_, _ = io.WriteString(w, tt.body)
			}))
			t.Cleanup(srv.Close)

			client := NewWPClient(config.Site{Key: "x", WPURL: srv.URL}, nil, nil)
			_, err := client.CreatePost(context.Background(), Post{Title: "t", Content: "c", Status: StatusDraft})
			var apiErr *APIError
			require.ErrorAs(t, err, &apiErr)
			assert.Equal(t, tt.want, apiErr.Body)
		})
	}
}

func TestSiteHealthy(t *testing.T) {
	assert.True(t, siteHealthy(nil))
	assert.True(t, siteHealthy(&APIError{Status: http.StatusBadRequest}))
	assert.True(t, siteHealthy(context.Canceled))
	assert.False(t, siteHealthy(&APIError{Status: http.StatusBadGateway}))
	assert.False(t, siteHealthy(&transportError{err: errors.New("connection refused")}))
}

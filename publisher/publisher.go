// Package publisher turns topics into WordPress posts: generate, slug, cover image, upload, post.
package publisher

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"wp_article_publisher/config"
	"wp_article_publisher/generator"
	"wp_article_publisher/metrics"
)

// Post statuses accepted by WordPress.
const (
	StatusDraft   = "draft"
	StatusPublish = "publish"
)

// Result outcomes.
const (
	OutcomeSuccess = "success"
	OutcomePartial = "partial"
	OutcomeError   = "error"
)

// ArticleGenerator is satisfied by *generator.Generator.
type ArticleGenerator interface {
	Generate(ctx context.Context, topic, profile string) (generator.Article, error)
}

// ImageMaker is satisfied by *imaging.Pipeline.
type ImageMaker interface {
	Make(ctx context.Context, prompt, outPath string) (string, error)
}

// PublishOptions control one publish call.
type PublishOptions struct {
	Publish    bool
	CategoryID int64
}

func (o PublishOptions) status() string {
	if o.Publish {
		return StatusPublish
	}
	return StatusDraft
}

// Result describes what happened to one topic.
type Result struct {
	ID              int       `json:"id"`
	Topic           string    `json:"topic"`
	SiteKey         string    `json:"site_key,omitempty"`
	Title           string    `json:"title,omitempty"`
	MetaTitle       string    `json:"meta_title,omitempty"`
	MetaDescription string    `json:"meta_description,omitempty"`
	Slug            string    `json:"slug,omitempty"`
	ContentHTML     string    `json:"content_html,omitempty"`
	ImagePrompt     string    `json:"image_prompt,omitempty"`
	Status          string    `json:"status"`
	PostID          *int64    `json:"wp_post_id"`
	MediaID         *int64    `json:"media_id,omitempty"`
	Published       bool      `json:"published"`
	Outcome         string    `json:"result"`
	Error           string    `json:"error,omitempty"`
	CoverError      string    `json:"cover_error,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
}

// Publisher runs the publish pipeline against the configured sites.
type Publisher struct {
	cfg     *config.Config
	gen     ArticleGenerator
	images  ImageMaker
	clients map[string]*WPClient
	workDir string
	log     *zap.Logger
	rec     metrics.Recorder
	now     func() time.Time
}

// New creates a Publisher with one WordPress client per configured site.
// images may be nil, in which case posts never carry a cover.
func New(cfg *config.Config, gen ArticleGenerator, images ImageMaker, client *http.Client, log *zap.Logger, rec metrics.Recorder) (*Publisher, error) {
	if cfg == nil {
		return nil, errors.New("config is required")
	}
	if gen == nil {
		return nil, errors.New("article generator is required")
	}
	if log == nil {
		log = zap.NewNop()
	}

	clients := make(map[string]*WPClient, len(cfg.Sites))
	for key, site := range cfg.Sites {
		site.Key = key
		clients[key] = NewWPClient(site, client, log)
	}

	workDir := cfg.Image.WorkDir
	if workDir == "" {
		workDir = os.TempDir()
	}

	return &Publisher{
		cfg:     cfg,
		gen:     gen,
		images:  images,
		clients: clients,
		workDir: workDir,
		log:     log,
		rec:     metrics.OrNop(rec),
		now:     time.Now,
	}, nil
}

// Client returns the WordPress client of a site.
func (p *Publisher) Client(siteKey string) (*WPClient, error) {
	if _, err := p.cfg.Site(siteKey); err != nil {
		return nil, err
	}
	return p.clients[siteKey], nil
}

// Publish processes one topic. An unknown site fails before any remote call.
// A generation failure returns an error result; a rejected post returns a
// partial result carrying the article. Both also return the cause.
func (p *Publisher) Publish(ctx context.Context, siteKey, topic string, opts PublishOptions) (Result, error) {
	site, err := p.cfg.Site(siteKey)
	if err != nil {
		return Result{}, err
	}
	wp := p.clients[siteKey]
	log := p.log.With(zap.String("site", siteKey), zap.String("topic", topic))

	res := Result{
		ID:        1,
		Topic:     topic,
		SiteKey:   siteKey,
		Status:    opts.status(),
		Outcome:   OutcomeError,
		CreatedAt: p.now(),
	}

	started := time.Now()
	article, err := p.gen.Generate(ctx, topic, site.PromptProfile)
	p.rec.Stage("generate", time.Since(started))
	if err != nil {
		log.Error("article generation failed", zap.Error(err))
		res.Error = err.Error()
		p.rec.Topic(res.Outcome)
		return res, err
	}

	article.Slug = generator.Slug(topic)
	res.fill(article)
	log.Info("article ready", zap.String("title", article.Title), zap.String("slug", article.Slug), zap.Int("words", article.WordCount()))

	if mediaID, coverErr := p.cover(ctx, wp, article, log); coverErr != nil {
		res.CoverError = coverErr.Error()
	} else if mediaID != 0 {
		res.MediaID = &mediaID
	}

	post := Post{
		Title:   article.Title,
		Content: article.ContentHTML,
		Status:  res.Status,
		Slug:    article.Slug,
		Meta:    seoMeta(wp.effectiveSEOPlugin(ctx), article.MetaTitle, article.MetaDescription),
	}
	if category := categoryFor(opts.CategoryID, site.DefaultCategoryID); category != 0 {
		post.Categories = []int64{category}
	}
	if res.MediaID != nil {
		post.FeaturedMedia = *res.MediaID
	}

	started = time.Now()
	postID, err := wp.CreatePost(ctx, post)
	p.rec.Stage("post", time.Since(started))
	if err != nil {
		log.Error("post creation failed", zap.Error(err))
		res.Outcome = OutcomePartial
		res.Error = err.Error()
		p.rec.Topic(res.Outcome)
		return res, err
	}

	res.PostID = &postID
	res.Published = true
	res.Outcome = OutcomeSuccess
	p.rec.Topic(res.Outcome)
	return res, nil
}

// PublishBatch processes topics one after another. Per-topic failures become
// error or partial results; only an unknown site aborts the batch.
func (p *Publisher) PublishBatch(ctx context.Context, siteKey string, topics []string, opts PublishOptions) ([]Result, error) {
	if _, err := p.cfg.Site(siteKey); err != nil {
		return nil, err
	}

	results := make([]Result, 0, len(topics))
	for i, topic := range topics {
		res, err := p.Publish(ctx, siteKey, topic, opts)
		if err != nil && res.Topic == "" {
			res = Result{Topic: topic, SiteKey: siteKey, Status: OutcomeError, Outcome: OutcomeError, Error: err.Error(), CreatedAt: p.now()}
		}
		if res.Outcome == OutcomeError {
			res.Status = OutcomeError
		}
		res.ID = i + 1
		results = append(results, res)
	}
	return results, nil
}

// CountSuccess returns how many results ended with a created post.
func CountSuccess(results []Result) int {
	n := 0
	for _, r := range results {
		if r.Outcome == OutcomeSuccess {
			n++
		}
	}
	return n
}

// cover generates and uploads the cover image. Failures are logged and
// returned for the result but never stop the pipeline.
func (p *Publisher) cover(ctx context.Context, wp *WPClient, article generator.Article, log *zap.Logger) (int64, error) {
	if p.images == nil || !p.cfg.Image.IsEnabled() {
		p.rec.Image("disabled")
		return 0, nil
	}

	path := filepath.Join(p.workDir, fmt.Sprintf("%s-%s.webp", article.Slug, uuid.NewString()))
	defer os.Remove(path)

	started := time.Now()
	_, err := p.images.Make(ctx, article.ImagePrompt, path)
	p.rec.Stage("image", time.Since(started))
	if err != nil {
		log.Warn("cover image failed, continuing without it", zap.Error(err))
		p.rec.Image("image_failed")
		return 0, err
	}

	started = time.Now()
	mediaID, err := wp.UploadMedia(ctx, path)
	p.rec.Stage("upload", time.Since(started))
	if err != nil {
		log.Warn("cover upload failed, continuing without it", zap.Error(err))
		p.rec.Image("upload_failed")
		return 0, err
	}
	p.rec.Image("uploaded")
	return mediaID, nil
}

func (r *Result) fill(a generator.Article) {
	r.Title = a.Title
	r.MetaTitle = a.MetaTitle
	r.MetaDescription = a.MetaDescription
	r.Slug = a.Slug
	r.ContentHTML = a.ContentHTML
	r.ImagePrompt = a.ImagePrompt
}

func categoryFor(explicit, siteDefault int64) int64 {
	if explicit != 0 {
		return explicit
	}
	return siteDefault
}

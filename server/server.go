// Package server exposes the article generation API.
package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"wp_article_publisher/config"
	"wp_article_publisher/generator"
	"wp_article_publisher/imaging"
	"wp_article_publisher/publisher"
)

const maxRequestBody = 1 << 20

// BatchPublisher is satisfied by *publisher.Publisher.
type BatchPublisher interface {
	PublishBatch(ctx context.Context, siteKey string, topics []string, opts publisher.PublishOptions) ([]publisher.Result, error)
}

type Server struct {
	cfg      *config.Config
	pub      BatchPublisher
	gatherer prometheus.Gatherer
	limiter  *rate.Limiter
	log      *zap.Logger
}

// New wires the API. A nil gatherer serves the default Prometheus registry.
func New(cfg *config.Config, pub BatchPublisher, gatherer prometheus.Gatherer, log *zap.Logger) (*Server, error) {
	if cfg == nil {
		return nil, errors.New("config required")
	}
	if pub == nil {
		return nil, errors.New("publisher required")
	}
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	if log == nil {
		log = zap.NewNop()
	}

	var limiter *rate.Limiter
	if cfg.RateLimit.RPS > 0 {
		burst := cfg.RateLimit.Burst
		if burst <= 0 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit.RPS), burst)
	}

	return &Server{cfg: cfg, pub: pub, gatherer: gatherer, limiter: limiter, log: log}, nil
}

func (s *Server) Routes() http.Handler {
	router := mux.NewRouter()
	router.Use(RequestID, Logging(s.log), Recoverer(s.log))

	router.HandleFunc("/", s.handleIndex).Methods(http.MethodGet)
	router.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	router.Handle("/articles", RateLimit(s.limiter)(http.HandlerFunc(s.handleCreateArticles))).Methods(http.MethodPost)
	router.HandleFunc("/articles", s.handleListArticles).Methods(http.MethodGet)
	router.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{})).Methods(http.MethodGet)

	c := cors.New(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type", RequestIDHeader},
	})
	return c.Handler(router)
}

// --- Handlers ---

type createArticlesReq struct {
	Topics     json.RawMessage `json:"topics"`
	SiteKey    string          `json:"site_key"`
	Status     string          `json:"status"`
	CategoryID int64           `json:"category_id"`
}

type createArticlesResp struct {
	Articles []publisher.Result `json:"articles"`
	Total    int                `json:"total"`
	Success  int                `json:"success"`
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	WriteJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"message": "Articles Generation API",
		"endpoints": map[string]string{
			"POST /articles": "generate and post articles for topics",
			"GET /articles":  "list articles",
			"GET /health":    "health check",
			"GET /metrics":   "prometheus metrics",
		},
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	WriteJSON(w, http.StatusOK, map[string]string{"status": "ok", "message": "API server is running"})
}

// handleListArticles is a stub: results are not stored.
func (s *Server) handleListArticles(w http.ResponseWriter, r *http.Request) {
	WriteJSON(w, http.StatusOK, map[string]any{
		"articles":    []publisher.Result{},
		"total":       0,
		"total_pages": 1,
	})
}

func (s *Server) handleCreateArticles(w http.ResponseWriter, r *http.Request) {
	raw, err := io.ReadAll(io.LimitReader(r.Body, maxRequestBody))
	if err != nil {
		badRequest(w, "cannot read request body")
		return
	}
	if len(bytes.TrimSpace(raw)) == 0 {
		badRequest(w, "request body is empty")
		return
	}

	var req createArticlesReq
	if err := json.Unmarshal(raw, &req); err != nil {
		badRequest(w, "request body is not valid JSON")
		return
	}

	topics, err := parseTopics(req.Topics)
	if err != nil {
		badRequest(w, err.Error())
		return
	}

	siteKey := strings.TrimSpace(req.SiteKey)
	if siteKey == "" {
		siteKey = s.cfg.DefaultSite
	}
	if siteKey == "" {
		badRequest(w, "site_key is required")
		return
	}
	if _, err := s.cfg.Site(siteKey); err != nil {
		badRequest(w, fmt.Sprintf("site %q is not configured", siteKey))
		return
	}

	opts := publisher.PublishOptions{CategoryID: req.CategoryID}
	switch req.Status {
	case "", publisher.StatusDraft:
	case publisher.StatusPublish:
		opts.Publish = true
	default:
		badRequest(w, fmt.Sprintf("status must be %q or %q", publisher.StatusDraft, publisher.StatusPublish))
		return
	}

	s.log.Info("article batch started",
		zap.String("request_id", RequestIDFrom(r.Context())),
		zap.String("site", siteKey),
		zap.Int("topics", len(topics)),
		zap.Bool("publish", opts.Publish),
	)

	// Remote calls already issued run to completion even if the caller goes away.
	ctx := context.WithoutCancel(r.Context())
	results, err := s.pub.PublishBatch(ctx, siteKey, topics, opts)
	if err != nil {
		s.log.Error("article batch failed", zap.Error(err))
		WriteJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "server error: " + err.Error(),
			"type":  errorKind(err),
		})
		return
	}

	resp := createArticlesResp{Articles: results, Total: len(results), Success: publisher.CountSuccess(results)}
	s.log.Info("article batch finished",
		zap.String("site", siteKey),
		zap.Int("total", resp.Total),
		zap.Int("success", resp.Success),
	)
	WriteJSON(w, http.StatusOK, resp)
}

// --- Helpers ---

// parseTopics accepts a single topic string or a list of topics.
func parseTopics(raw json.RawMessage) ([]string, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return nil, errors.New("topics are required")
	}

	var list []string
	if err := json.Unmarshal(raw, &list); err != nil {
		var one string
		if err := json.Unmarshal(raw, &one); err != nil {
			return nil, errors.New("topics must be a string or a list of strings")
		}
		list = []string{one}
	}

	topics := make([]string, 0, len(list))
	for _, t := range list {
		if t = strings.TrimSpace(t); t != "" {
			topics = append(topics, t)
		}
	}
	if len(topics) == 0 {
		return nil, errors.New("topics are required")
	}
	return topics, nil
}

func badRequest(w http.ResponseWriter, msg string) {
	WriteJSON(w, http.StatusBadRequest, map[string]string{"error": msg})
}

// errorKind labels an error for the "type" field of 500 responses.
func errorKind(err error) string {
	var apiErr *publisher.APIError
	switch {
	case errors.Is(err, config.ErrUnknownSite):
		return "ConfigurationError"
	case errors.Is(err, generator.ErrGeneration):
		return "GenerationFailure"
	case errors.Is(err, imaging.ErrImage):
		return "ImageFailure"
	case errors.As(err, &apiErr):
		return "PublishError"
	case errors.Is(err, context.DeadlineExceeded):
		return "Timeout"
	default:
		return "InternalError"
	}
}

package webhook

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"wp_article_publisher/config"
	"wp_article_publisher/metrics"
	"wp_article_publisher/server"
)

const (
	eventHeader     = "X-GitHub-Event"
	signatureHeader = "X-Hub-Signature-256"

	maxPayload = 25 << 20
)

type pushEvent struct {
	Ref string `json:"ref"`
}

type Server struct {
	cfg    config.WebhookConfig
	lock   *Lock
	syncer *Syncer
	log    *zap.Logger
	rec    metrics.Recorder
}

// New builds the sync service. A nil runner executes real git commands.
func New(cfg config.WebhookConfig, runner Runner, log *zap.Logger, rec metrics.Recorder) *Server {
	if runner == nil {
		runner = ExecRunner{}
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Server{
		cfg:    cfg,
		lock:   NewLock(cfg.LockFile, cfg.LockTTL),
		syncer: &Syncer{RepoPath: cfg.RepoPath, Branch: cfg.Branch, Runner: runner},
		log:    log,
		rec:    metrics.OrNop(rec),
	}
}

func (s *Server) Routes() http.Handler {
	router := mux.NewRouter()
	router.Use(server.RequestID, server.Logging(s.log), server.Recoverer(s.log))

	router.HandleFunc("/webhook", s.handleWebhook).Methods(http.MethodPost)
	router.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	router.HandleFunc("/", s.handleIndex).Methods(http.MethodGet)
	return router
}

func (s *Server) handleWebhook(w http.ResponseWriter, r *http.Request) {
	payload, err := io.ReadAll(io.LimitReader(r.Body, maxPayload))
	if err != nil {
		server.WriteJSON(w, http.StatusBadRequest, map[string]string{"status": "error", "message": "cannot read payload"})
		return
	}

	if err := VerifySignature(s.cfg.Secret, payload, r.Header.Get(signatureHeader)); err != nil {
		s.log.Warn("webhook rejected", zap.Error(err))
		s.rec.Sync("rejected")
		server.WriteJSON(w, http.StatusUnauthorized, map[string]string{"error": "Invalid signature"})
		return
	}

	event := r.Header.Get(eventHeader)
	if event != "push" {
		s.log.Info("event ignored", zap.String("event", event))
		s.rec.Sync("ignored")
		server.WriteJSON(w, http.StatusOK, map[string]string{"status": "ignored", "message": fmt.Sprintf("Event %s ignored", event)})
		return
	}

	var push pushEvent
	if err := json.Unmarshal(payload, &push); err != nil {
		server.WriteJSON(w, http.StatusBadRequest, map[string]string{"status": "error", "message": "invalid push payload"})
		return
	}
	if push.Ref != "refs/heads/"+s.cfg.Branch {
		s.log.Info("push to other branch ignored", zap.String("ref", push.Ref))
		s.rec.Sync("ignored")
		server.WriteJSON(w, http.StatusOK, map[string]string{"status": "ignored", "message": "Not the target branch"})
		return
	}

	release, err := s.lock.Acquire()
	if errors.Is(err, ErrLocked) {
		s.log.Info("update in progress, skipping", zap.String("lock", s.cfg.LockFile))
		s.rec.Sync("skipped")
		server.WriteJSON(w, http.StatusOK, map[string]string{"status": "skipped", "message": "Update already in progress"})
		return
	}
	if err != nil {
		s.log.Error("cannot create lock file", zap.Error(err))
		s.rec.Sync("error")
		server.WriteJSON(w, http.StatusInternalServerError, map[string]string{"status": "error", "message": "Cannot create lock file"})
		return
	}
	defer release()

	// The lock is considered abandoned after its TTL, so the sync must not outlive it.
	ctx, cancel := context.WithTimeout(context.WithoutCancel(r.Context()), s.cfg.LockTTL)
	defer cancel()

	s.log.Info("updating branch", zap.String("branch", s.cfg.Branch), zap.String("repo", s.cfg.RepoPath))
	out, err := s.syncer.Sync(ctx)
	if err != nil {
		resp := map[string]string{"status": "error", "message": "Git pull failed"}
		var syncErr *SyncError
		if errors.As(err, &syncErr) {
			resp["error"] = syncErr.Stderr
		}
		s.log.Error("update failed", zap.Error(err), zap.String("stderr", resp["error"]))
		s.rec.Sync("error")
		server.WriteJSON(w, http.StatusInternalServerError, resp)
		return
	}

	s.log.Info("update successful", zap.String("output", out))
	s.rec.Sync("success")
	server.WriteJSON(w, http.StatusOK, map[string]string{
		"status":  "success",
		"message": "Repository updated successfully",
		"output":  out,
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	server.WriteJSON(w, http.StatusOK, map[string]string{
		"status":    "ok",
		"repo_path": s.cfg.RepoPath,
		"branch":    s.cfg.Branch,
	})
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	server.WriteJSON(w, http.StatusOK, map[string]any{
		"service": "GitHub Webhook Server",
		"endpoints": map[string]string{
			"/webhook": "POST - GitHub webhook endpoint",
			"/health":  "GET - Health check",
		},
	})
}

package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"

	"wp_article_publisher/config"
	"wp_article_publisher/generator"
	"wp_article_publisher/imaging"
	"wp_article_publisher/logger"
	"wp_article_publisher/metrics"
	"wp_article_publisher/publisher"
	"wp_article_publisher/server"
	"wp_article_publisher/webhook"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to config.yaml")
	serve := flag.Bool("serve", false, "start the articles API")
	webhookMode := flag.Bool("webhook", false, "start the GitHub webhook sync service")
	addr := flag.String("addr", "", "listen address (overrides server_addr or webhook.addr)")
	topicsPath := flag.String("topics", "", "file with one topic per line")
	siteKey := flag.String("site", "", "site key for -topics (defaults to default_site)")
	publish := flag.Bool("publish", false, "publish immediately instead of saving drafts")
	category := flag.Int64("category", 0, "category id overriding the site default")
	detectSEO := flag.Bool("detect-seo", false, "print the active SEO plugin of every site")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	log, err := logger.New(cfg.Log)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	rec, err := metrics.New(reg)
	if err != nil {
		log.Fatal("metrics init failed", zap.Error(err))
	}

	switch {
	case *webhookMode:
		listen := cfg.Webhook.Addr
		if *addr != "" {
			listen = *addr
		}
		log.Info("webhook service",
			zap.String("repo", cfg.Webhook.RepoPath),
			zap.String("branch", cfg.Webhook.Branch),
			zap.Bool("signed", cfg.Webhook.Secret != ""),
		)
		srv := webhook.New(cfg.Webhook, nil, log, rec)
		if err := server.Serve(ctx, listen, srv.Routes(), log); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("webhook service stopped", zap.Error(err))
		}

	case *detectSEO:
		for _, key := range cfg.SiteKeys() {
			site, _ := cfg.Site(key)
			plugin := publisher.NewWPClient(site, nil, log).DetectSEOPlugin(ctx)
			fmt.Printf("%s: %s\n", key, plugin)
		}

	case *serve:
		pub, err := buildPublisher(cfg, log, rec)
		if err != nil {
			log.Fatal("publisher init failed", zap.Error(err))
		}
		srv, err := server.New(cfg, pub, reg, log)
		if err != nil {
			log.Fatal("server init failed", zap.Error(err))
		}
		listen := cfg.ServerAddr
		if *addr != "" {
			listen = *addr
		}
		if err := server.Serve(ctx, listen, srv.Routes(), log); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("api stopped", zap.Error(err))
		}

	case *topicsPath != "":
		key := *siteKey
		if key == "" {
			key = cfg.DefaultSite
		}
		topics, err := loadTopics(*topicsPath)
		if err != nil {
			log.Fatal("cannot read topics", zap.Error(err))
		}
		pub, err := buildPublisher(cfg, log, rec)
		if err != nil {
			log.Fatal("publisher init failed", zap.Error(err))
		}
		results, err := pub.PublishBatch(ctx, key, topics, publisher.PublishOptions{Publish: *publish, CategoryID: *category})
		if err != nil {
			log.Fatal("batch aborted", zap.Error(err))
		}
		printResults(os.Stdout, results)
		if publisher.CountSuccess(results) == 0 {
			os.Exit(1)
		}

	default:
		flag.Usage()
		os.Exit(2)
	}
}

func buildPublisher(cfg *config.Config, log *zap.Logger, rec metrics.Recorder) (*publisher.Publisher, error) {
	llm, err := generator.NewLLM(cfg.LLM)
	if err != nil {
		return nil, err
	}
	prompts, err := generator.NewPromptLibrary(cfg.PromptProfiles)
	if err != nil {
		return nil, err
	}
	gen, err := generator.New(llm, prompts, generator.Options{
		MinWords:   cfg.Generation.MinWords,
		MaxRetries: cfg.Generation.MaxRetries,
	}, log.Named("generator"), rec)
	if err != nil {
		return nil, err
	}

	images, err := buildImages(cfg, log)
	if err != nil {
		return nil, err
	}
	var maker publisher.ImageMaker
	if images != nil {
		maker = images
	}
	return publisher.New(cfg, gen, maker, nil, log.Named("publisher"), rec)
}

// buildImages returns nil when cover images are disabled or cannot be generated.
func buildImages(cfg *config.Config, log *zap.Logger) (*imaging.Pipeline, error) {
	if !cfg.Image.IsEnabled() || cfg.LLM.Provider == "mock" {
		return nil, nil
	}
	apiKey, baseURL := cfg.LLM.APIKey, cfg.LLM.BaseURL
	if cfg.LLM.Provider != "openai" {
		apiKey, baseURL = os.Getenv("OPENAI_API_KEY"), ""
	}
	remote, err := imaging.NewOpenAIImages(apiKey, baseURL, cfg.Image.Model, cfg.Image.Size)
	if err != nil {
		log.Warn("cover images disabled", zap.Error(err))
		return nil, nil
	}
	return imaging.NewPipeline(remote,
		&http.Client{Timeout: cfg.Image.DownloadTimeout},
		imaging.WebPEncoder{},
		imaging.CompressOptions{
			MaxBytes:       cfg.Image.MaxBytes,
			InitialQuality: cfg.Image.InitialQuality,
			MinQuality:     cfg.Image.MinQuality,
			Step:           cfg.Image.QualityStep,
		},
		log.Named("imaging"),
	)
}

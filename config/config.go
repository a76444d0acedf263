package config

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	openAIKeyEnv     = "OPENAI_API_KEY"
	anthropicKeyEnv  = "ANTHROPIC_API_KEY"
	webhookSecretEnv = "WEBHOOK_SECRET"
	apiPortEnv       = "API_PORT"
	webhookPortEnv   = "WEBHOOK_PORT"
	logModeEnv       = "LOG"
	logLevelEnv      = "LOGLEVEL"
)

// SEO plugin identifiers understood by the publisher.
const (
	SEOPluginRankMath = "rankmath"
	SEOPluginYoast    = "yoast"
	SEOPluginBoth     = "both"
	SEOPluginNone     = "none"
	SEOPluginAuto     = "auto"
	SEOPluginUnknown  = "unknown"
)

// DefaultTemperature is the sampling temperature used when none is configured.
const DefaultTemperature = 0.55

// ErrUnknownSite is returned when a site key is absent from the site table.
var ErrUnknownSite = errors.New("unknown site")

// Config is loaded once at startup and shared read-only afterwards.
type Config struct {
	ServerAddr     string            `yaml:"server_addr"`
	DefaultSite    string            `yaml:"default_site"`
	LLM            LLMConfig         `yaml:"llm"`
	Generation     GenerationConfig  `yaml:"generation"`
	Image          ImageConfig       `yaml:"image"`
	Sites          map[string]Site   `yaml:"sites"`
	PromptProfiles map[string]string `yaml:"prompt_profiles"`
	Webhook        WebhookConfig     `yaml:"webhook"`
	RateLimit      RateLimitConfig   `yaml:"rate_limit"`
	Log            LogConfig         `yaml:"log"`
}

// LLMConfig selects the text generation provider.
type LLMConfig struct {
	Provider string `yaml:"provider"`
	Model    string `yaml:"model"`
	APIKey   string `yaml:"api_key"`
	BaseURL  string `yaml:"base_url"`
	// Temperature is applied as given, 0 included. Absent means DefaultTemperature.
	Temperature *float64 `yaml:"temperature"`
	MaxTokens   int64    `yaml:"max_tokens"`
}

// GenerationConfig tunes the article retry loop.
type GenerationConfig struct {
	MinWords   int `yaml:"min_words"`
	MaxRetries int `yaml:"max_retries"`
}

// ImageConfig tunes the cover image stage.
type ImageConfig struct {
	Enabled         *bool         `yaml:"enabled"`
	Model           string        `yaml:"model"`
	Size            string        `yaml:"size"`
	MaxBytes        int           `yaml:"max_bytes"`
	InitialQuality  int           `yaml:"initial_quality"`
	MinQuality      int           `yaml:"min_quality"`
	QualityStep     int           `yaml:"quality_step"`
	DownloadTimeout time.Duration `yaml:"download_timeout"`
	WorkDir         string        `yaml:"work_dir"`
}

// IsEnabled reports whether cover images should be attempted.
func (c ImageConfig) IsEnabled() bool {
	return c.Enabled == nil || *c.Enabled
}

// Site is one WordPress destination.
type Site struct {
	Key               string `yaml:"-"`
	WPURL             string `yaml:"wp_url"`
	Username          string `yaml:"username"`
	AppPassword       string `yaml:"app_password"`
	DefaultCategoryID int64  `yaml:"default_category_id"`
	SEOPlugin         string `yaml:"seo_plugin"`
	PromptProfile     string `yaml:"prompt_profile"`
}

// BaseURL returns the site URL without a trailing slash.
func (s Site) BaseURL() string {
	return strings.TrimRight(s.WPURL, "/")
}

// WebhookConfig configures the repository sync service.
type WebhookConfig struct {
	Addr     string        `yaml:"addr"`
	Secret   string        `yaml:"secret"`
	RepoPath string        `yaml:"repo_path"`
	Branch   string        `yaml:"branch"`
	LockFile string        `yaml:"lock_file"`
	LockTTL  time.Duration `yaml:"lock_ttl"`
}

// RateLimitConfig limits POST /articles; zero RPS disables the limiter.
type RateLimitConfig struct {
	RPS   float64 `yaml:"rps"`
	Burst int     `yaml:"burst"`
}

// LogConfig mirrors the LOG/LOGLEVEL env switches.
type LogConfig struct {
	Mode  string `yaml:"mode"`
	Level string `yaml:"level"`
	Dir   string `yaml:"dir"`
}

// Load reads .env (if present), the YAML file at path, applies env overrides and defaults.
// An empty path yields a config built from defaults and the environment only.
func Load(path string) (*Config, error) {
	_ = godotenv.Load(".env")

	cfg := &Config{}
	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal([]byte(os.ExpandEnv(string(raw))), cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	cfg.applyEnvOverrides()
	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnvOverrides() {
	switch c.LLM.Provider {
	case "anthropic":
		if v := os.Getenv(anthropicKeyEnv); v != "" && c.LLM.APIKey == "" {
			c.LLM.APIKey = v
		}
	default:
		if v := os.Getenv(openAIKeyEnv); v != "" && c.LLM.APIKey == "" {
			c.LLM.APIKey = v
		}
	}
	if v := os.Getenv(webhookSecretEnv); v != "" {
		c.Webhook.Secret = v
	}
	if v := strings.TrimSpace(os.Getenv(apiPortEnv)); v != "" {
		c.ServerAddr = ":" + v
	}
	if v := strings.TrimSpace(os.Getenv(webhookPortEnv)); v != "" {
		c.Webhook.Addr = ":" + v
	}
	if v := strings.TrimSpace(os.Getenv(logModeEnv)); v != "" {
		c.Log.Mode = strings.ToLower(v)
	}
	if v := strings.TrimSpace(os.Getenv(logLevelEnv)); v != "" {
		c.Log.Level = strings.ToLower(v)
	}
}

func (c *Config) applyDefaults() {
	def := func(v *string, d string) {
		if strings.TrimSpace(*v) == "" {
			*v = d
		}
	}
	defInt := func(v *int, d int) {
		if *v <= 0 {
			*v = d
		}
	}

	def(&c.ServerAddr, ":5000")
	def(&c.LLM.Provider, "openai")
	def(&c.LLM.Model, "gpt-5.1")
	if c.LLM.Temperature == nil {
		t := DefaultTemperature
		c.LLM.Temperature = &t
	}
	if c.LLM.MaxTokens <= 0 {
		c.LLM.MaxTokens = 16000
	}

	defInt(&c.Generation.MinWords, 1000)
	defInt(&c.Generation.MaxRetries, 3)

	def(&c.Image.Model, "gpt-image-1")
	def(&c.Image.Size, "1024x1024")
	defInt(&c.Image.MaxBytes, 100_000)
	defInt(&c.Image.InitialQuality, 80)
	defInt(&c.Image.MinQuality, 40)
	defInt(&c.Image.QualityStep, 5)
	if c.Image.DownloadTimeout <= 0 {
		c.Image.DownloadTimeout = 60 * time.Second
	}

	def(&c.Webhook.Addr, ":5001")
	def(&c.Webhook.Branch, "main")
	def(&c.Webhook.RepoPath, ".")
	def(&c.Webhook.LockFile, c.Webhook.RepoPath+string(os.PathSeparator)+".git_update.lock")
	if c.Webhook.LockTTL <= 0 {
		c.Webhook.LockTTL = 300 * time.Second
	}

	def(&c.Log.Mode, "prod")
	def(&c.Log.Level, "info")
	def(&c.Log.Dir, "logs")

	for key, site := range c.Sites {
		site.Key = key
		def(&site.PromptProfile, "default")
		def(&site.SEOPlugin, SEOPluginNone)
		site.SEOPlugin = strings.ToLower(site.SEOPlugin)
		c.Sites[key] = site
	}
}

// Validate reports fatal configuration problems.
func (c *Config) Validate() error {
	for key, site := range c.Sites {
		if site.WPURL == "" {
			return fmt.Errorf("site %q: wp_url is required", key)
		}
		switch site.SEOPlugin {
		case SEOPluginRankMath, SEOPluginYoast, SEOPluginBoth, SEOPluginNone, SEOPluginAuto:
		default:
			return fmt.Errorf("site %q: unsupported seo_plugin %q", key, site.SEOPlugin)
		}
	}
	if c.DefaultSite != "" {
		if _, ok := c.Sites[c.DefaultSite]; !ok {
			return fmt.Errorf("default_site %q: %w", c.DefaultSite, ErrUnknownSite)
		}
	}
	if c.Image.MinQuality > c.Image.InitialQuality {
		return fmt.Errorf("image: min_quality %d above initial_quality %d", c.Image.MinQuality, c.Image.InitialQuality)
	}
	return nil
}

// Site looks up a destination by key.
func (c *Config) Site(key string) (Site, error) {
	site, ok := c.Sites[key]
	if !ok {
		return Site{}, fmt.Errorf("%w: %q", ErrUnknownSite, key)
	}
	return site, nil
}

// SiteKeys returns the configured keys in stable order.
func (c *Config) SiteKeys() []string {
	keys := make([]string, 0, len(c.Sites))
	for k := range c.Sites {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

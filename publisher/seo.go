package publisher

import (
	"context"
	"strings"

	"wp_article_publisher/config"
)

var (
	rankMathSlugs = []string{"rank-math", "seo-by-rank-math"}
	yoastSlugs    = []string{"yoast", "wordpress-seo"}
)

// classifySEOPlugins maps the active entries of a plugin listing to
// rankmath, yoast, both or none.
func classifySEOPlugins(plugins []pluginResp) string {
	var rankMath, yoast bool
	for _, p := range plugins {
		if p.Status != "active" {
			continue
		}
		slug := strings.ToLower(p.Plugin)
		rankMath = rankMath || containsAny(slug, rankMathSlugs)
		yoast = yoast || containsAny(slug, yoastSlugs)
	}

	switch {
	case rankMath && yoast:
		return config.SEOPluginBoth
	case rankMath:
		return config.SEOPluginRankMath
	case yoast:
		return config.SEOPluginYoast
	default:
		return config.SEOPluginNone
	}
}

func containsAny(s string, subs []string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

// effectiveSEOPlugin resolves "auto" through the plugin listing.
func (c *WPClient) effectiveSEOPlugin(ctx context.Context) string {
	if c.site.SEOPlugin != config.SEOPluginAuto {
		return c.site.SEOPlugin
	}
	detected := c.DetectSEOPlugin(ctx)
	if detected == config.SEOPluginBoth {
		return config.SEOPluginRankMath
	}
	return detected
}

// seoMeta returns the post meta for plugin; only Rank Math keys are written.
func seoMeta(plugin, title, description string) map[string]string {
	if plugin != config.SEOPluginRankMath {
		return nil
	}
	return map[string]string{
		"rank_math_title":       title,
		"rank_math_description": description,
	}
}

package generator

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"wp_article_publisher/metrics"
)

// Options bound the retry loop.
type Options struct {
	MinWords   int
	MaxRetries int
}

// DefaultOptions matches the editorial length target.
func DefaultOptions() Options {
	return Options{MinWords: 1000, MaxRetries: 3}
}

// Generator 负责根据主题生成稿件，带重试与择优。
type Generator struct {
	llm     LLMClient
	prompts *PromptLibrary
	opts    Options
	log     *zap.Logger
	metrics metrics.Recorder
}

func New(llm LLMClient, prompts *PromptLibrary, opts Options, log *zap.Logger, rec metrics.Recorder) (*Generator, error) {
	if llm == nil {
		return nil, errors.New("llm client is required")
	}
	if prompts == nil {
		var err error
		if prompts, err = NewPromptLibrary(nil); err != nil {
			return nil, err
		}
	}
	def := DefaultOptions()
	if opts.MinWords <= 0 {
		opts.MinWords = def.MinWords
	}
	if opts.MaxRetries <= 0 {
		opts.MaxRetries = def.MaxRetries
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Generator{llm: llm, prompts: prompts, opts: opts, log: log, metrics: metrics.OrNop(rec)}, nil
}

// Generate asks the model up to MaxRetries times. The first article reaching MinWords
// is returned immediately; otherwise the longest valid one is returned. It fails only
// when no attempt produced a complete article.
func (g *Generator) Generate(ctx context.Context, topic, profile string) (Article, error) {
	prompt := g.prompts.Build(profile, topic)
	log := g.log.With(zap.String("topic", topic), zap.String("profile", profile))

	attempts := make([]Attempt, 0, g.opts.MaxRetries)
	for n := 1; n <= g.opts.MaxRetries; n++ {
		if err := ctx.Err(); err != nil {
			return Article{}, fmt.Errorf("generate %q: %w", topic, err)
		}
		log.Debug("text generation attempt", zap.Int("attempt", n))

		raw, err := g.llm.Complete(ctx, prompt)
		att := evaluate(n, raw, err)
		attempts = append(attempts, att)

		if !att.Valid() {
			g.metrics.GenerationAttempt(outcomeOf(att.Err))
			log.Warn("attempt rejected", zap.Int("attempt", n), zap.Error(att.Err))
			continue
		}

		log.Debug("attempt word count", zap.Int("attempt", n), zap.Int("words", att.WordCount))
		if att.WordCount >= g.opts.MinWords {
			g.metrics.GenerationAttempt("ok")
			return *att.Article, nil
		}
		g.metrics.GenerationAttempt("short")
		log.Warn("article too short, retrying",
			zap.Int("attempt", n),
			zap.Int("words", att.WordCount),
			zap.Int("min_words", g.opts.MinWords),
		)
	}

	best, ok := SelectBest(attempts)
	if !ok {
		last := attempts[len(attempts)-1]
		return Article{}, &GenerationError{
			Topic:    topic,
			Attempts: len(attempts),
			LastRaw:  last.Raw,
			LastErr:  last.Err,
		}
	}

	log.Warn("no attempt reached min words, using the longest one",
		zap.Int("attempt", best.Number),
		zap.Int("words", best.WordCount),
		zap.Int("min_words", g.opts.MinWords),
	)
	return *best.Article, nil
}

// SelectBest returns the valid attempt with the most words; earlier attempts win ties
// and an empty body never qualifies.
func SelectBest(attempts []Attempt) (Attempt, bool) {
	var (
		best  Attempt
		found bool
	)
	for _, a := range attempts {
		if !a.Valid() {
			continue
		}
		if a.WordCount > best.WordCount {
			best = a
			found = true
		}
	}
	return best, found
}

func evaluate(n int, raw string, callErr error) Attempt {
	att := Attempt{Number: n, Raw: raw}
	if callErr != nil {
		att.Err = callErr
		return att
	}
	article, err := ParseArticle(raw)
	if err != nil {
		att.Err = err
		return att
	}
	att.Article = &article
	att.WordCount = article.WordCount()
	return att
}

func outcomeOf(err error) string {
	var missing *MissingFieldsError
	switch {
	case errors.Is(err, ErrInvalidJSON):
		return "invalid_json"
	case errors.As(err, &missing):
		return "missing_fields"
	default:
		return "error"
	}
}

// Package imaging produces compressed cover images for articles.
package imaging

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"net/http"
	"os"
	"time"

	"go.uber.org/zap"
)

// ErrImage matches every failure of the image stage.
var ErrImage = errors.New("image generation failed")

const maxDownloadBytes = 32 << 20

// Pipeline generates, downloads and compresses a cover image.
type Pipeline struct {
	remote  Remote
	client  *http.Client
	encoder Encoder
	opts    CompressOptions
	log     *zap.Logger
}

// NewPipeline wires a pipeline; nil client/encoder/logger get defaults.
func NewPipeline(remote Remote, client *http.Client, encoder Encoder, opts CompressOptions, log *zap.Logger) (*Pipeline, error) {
	if remote == nil {
		return nil, errors.New("image generator is required")
	}
	if client == nil {
		client = &http.Client{Timeout: 60 * time.Second}
	}
	if encoder == nil {
		encoder = WebPEncoder{}
	}
	if opts.MaxBytes <= 0 {
		opts = DefaultCompressOptions()
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Pipeline{remote: remote, client: client, encoder: encoder, opts: opts, log: log}, nil
}

// Make writes a compressed image for prompt to outPath and returns outPath.
// The caller owns the file.
func (p *Pipeline) Make(ctx context.Context, prompt, outPath string) (string, error) {
	gen, err := p.remote.Generate(ctx, prompt)
	if err != nil {
		return "", stageError("generate", err)
	}

	raw := gen.Data
	if len(raw) == 0 {
		if gen.URL == "" {
			return "", stageError("generate", errors.New("no image returned"))
		}
		if raw, err = p.download(ctx, gen.URL); err != nil {
			return "", stageError("download", err)
		}
	}

	img, format, err := image.Decode(bytes.NewReader(raw))
	if err != nil {
		return "", stageError("decode", err)
	}

	data, quality, err := Compress(toRGB(img), p.encoder, p.opts)
	if err != nil {
		return "", stageError("encode", err)
	}
	if err := os.WriteFile(outPath, data, 0o644); err != nil {
		return "", stageError("write", err)
	}

	p.log.Info("cover image ready",
		zap.String("path", outPath),
		zap.String("source_format", format),
		zap.Int("bytes", len(data)),
		zap.Int("quality", quality),
	)
	return outPath, nil
}

func (p *Pipeline) download(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	return io.ReadAll(io.LimitReader(resp.Body, maxDownloadBytes))
}

func stageError(stage string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrImage, stage, err)
}

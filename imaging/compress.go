package imaging

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"io"

	"github.com/gen2brain/webp"
)

// Encoder writes img in a lossy format at the given quality (0-100).
type Encoder interface {
	Encode(w io.Writer, img image.Image, quality int) error
}

// WebPEncoder encodes lossy WebP.
type WebPEncoder struct{}

func (WebPEncoder) Encode(w io.Writer, img image.Image, quality int) error {
	return webp.Encode(w, img, webp.Options{Quality: quality})
}

// CompressOptions bound the quality search.
type CompressOptions struct {
	MaxBytes       int
	InitialQuality int
	MinQuality     int
	Step           int
}

// DefaultCompressOptions keeps covers under 100 KB without dropping below quality 40.
func DefaultCompressOptions() CompressOptions {
	return CompressOptions{MaxBytes: 100_000, InitialQuality: 80, MinQuality: 40, Step: 5}
}

// Compress encodes img at the initial quality and lowers the quality by Step while
// the result exceeds MaxBytes and the quality is above MinQuality.
// It returns the last encoding and the quality used.
func Compress(img image.Image, enc Encoder, opts CompressOptions) ([]byte, int, error) {
	if opts.Step <= 0 {
		opts.Step = 1
	}
	quality := opts.InitialQuality

	var buf bytes.Buffer
	if err := enc.Encode(&buf, img, quality); err != nil {
		return nil, quality, fmt.Errorf("encode at quality %d: %w", quality, err)
	}

	for buf.Len() > opts.MaxBytes && quality > opts.MinQuality {
		quality -= opts.Step
		if quality < opts.MinQuality {
			quality = opts.MinQuality
		}
		buf.Reset()
		if err := enc.Encode(&buf, img, quality); err != nil {
			return nil, quality, fmt.Errorf("encode at quality %d: %w", quality, err)
		}
	}
	return buf.Bytes(), quality, nil
}

// toRGB drops the alpha channel, keeping the straight color values.
func toRGB(src image.Image) *image.NRGBA {
	b := src.Bounds()
	dst := image.NewNRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			c := color.NRGBAModel.Convert(src.At(x, y)).(color.NRGBA)
			c.A = 0xff
			dst.SetNRGBA(x-b.Min.X, y-b.Min.Y, c)
		}
	}
	return dst
}

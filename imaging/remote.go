package imaging

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"

	openai "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// Generated is a remote image result: a fetchable URL or the inline payload.
type Generated struct {
	URL  string
	Data []byte
}

// Remote generates an image for a prompt.
type Remote interface {
	Generate(ctx context.Context, prompt string) (Generated, error)
}

// OpenAIImages implements Remote with the images endpoint of openai-go.
type OpenAIImages struct {
	Model string
	Size  string
	Opts  []option.RequestOption
}

func NewOpenAIImages(apiKey, baseURL, model, size string) (*OpenAIImages, error) {
	if apiKey == "" {
		return nil, errors.New("openai api key missing for image generation")
	}
	opts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	return &OpenAIImages{Model: model, Size: size, Opts: opts}, nil
}

func (o *OpenAIImages) Generate(ctx context.Context, prompt string) (Generated, error) {
	client := openai.NewClient(o.Opts...)

	resp, err := client.Images.Generate(ctx, openai.ImageGenerateParams{
		Prompt: prompt,
		Model:  openai.ImageModel(o.Model),
		Size:   openai.ImageGenerateParamsSize(o.Size),
	})
	if err != nil {
		return Generated{}, err
	}
	if len(resp.Data) == 0 {
		return Generated{}, errors.New("openai: empty image data")
	}

	img := resp.Data[0]
	if img.URL != "" {
		return Generated{URL: img.URL}, nil
	}
	if img.B64JSON != "" {
		data, err := base64.StdEncoding.DecodeString(img.B64JSON)
		if err != nil {
			return Generated{}, fmt.Errorf("decode b64_json: %w", err)
		}
		return Generated{Data: data}, nil
	}
	return Generated{}, errors.New("openai: image has neither url nor b64_json")
}

package render

import (
	"context"

	"github.com/yungbote/hci-study-backend/internal/platform/openai"
)

const DefaultImageModel = "gpt-image-1"

type ImageClient interface {
	GenerateImage(ctx context.Context, req openai.ImageRequest) (openai.ImageGeneration, error)
}

// OpenAIBackend sends the compiled prompt to the images API and returns the
// decoded payload unchanged.
type OpenAIBackend struct {
	Client  ImageClient
	Model   string
	Size    string
	Quality string
}

func (b *OpenAIBackend) Name() string { return "openai" }

func (b *OpenAIBackend) Render(ctx context.Context, job Job) ([]byte, error) {
	model := b.Model
	if model == "" {
		model = DefaultImageModel
	}
	gen, err := b.Client.GenerateImage(ctx, openai.ImageRequest{
		Model:   model,
		Prompt:  job.Prompt,
		Size:    b.Size,
		Quality: b.Quality,
	})
	if err != nil {
		return nil, err
	}
	return gen.Bytes, nil
}

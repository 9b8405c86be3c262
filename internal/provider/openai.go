package provider

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// OpenAIAdapter serves OpenAI's synchronous image API.
type OpenAIAdapter struct {
	client openai.Client
}

func NewOpenAIAdapter(apiKey string) *OpenAIAdapter {
	return &OpenAIAdapter{client: openai.NewClient(option.WithAPIKey(apiKey))}
}

func (a *OpenAIAdapter) Name() string { return ProviderOpenAI }

// openaiSize maps canonical sizes onto OpenAI's pixel vocabulary.
func openaiSize(size string) string {
	switch size {
	case SizePortrait:
		return "1024x1792"
	case SizeLandscape:
		return "1792x1024"
	default:
		return "1024x1024"
	}
}

func (a *OpenAIAdapter) Submit(ctx context.Context, model string, prompt string, settings Settings) (*Submission, error) {
	resp, err := a.client.Images.Generate(ctx, openai.ImageGenerateParams{
		Prompt:         prompt,
		Model:          openai.ImageModel(model),
		N:              openai.Int(1),
		Size:           openai.ImageGenerateParamsSize(openaiSize(settings.Size)),
		Quality:        openai.ImageGenerateParamsQuality(settings.Quality),
		Style:          openai.ImageGenerateParamsStyle(settings.Style),
		ResponseFormat: openai.ImageGenerateParamsResponseFormatB64JSON,
	})
	if err != nil {
		return nil, classifyOpenAI(err)
	}
	if len(resp.Data) == 0 {
		return nil, Permanent(0, fmt.Errorf("openai returned no images"))
	}
	data, err := base64.StdEncoding.DecodeString(resp.Data[0].B64JSON)
	if err != nil {
		return nil, Permanent(0, fmt.Errorf("decode openai image payload: %w", err))
	}
	return &Submission{Result: &Result{
		Bytes: data,
		Metadata: map[string]any{
			"provider":       ProviderOpenAI,
			"model":          model,
			"revised_prompt": resp.Data[0].RevisedPrompt,
		},
	}}, nil
}

// classifyOpenAI maps SDK errors onto the shared taxonomy.
func classifyOpenAI(err error) error {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		if apiErr.StatusCode == 429 || apiErr.StatusCode >= 500 {
			return Transient(apiErr.StatusCode, err)
		}
		return Permanent(apiErr.StatusCode, err)
	}
	// No structured status: assume a network-level failure, retryable.
	return Transient(0, err)
}

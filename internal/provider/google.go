package provider

import (
	"context"
	"errors"
	"fmt"

	"google.golang.org/genai"
)

// GoogleAdapter serves Imagen models through the Gemini API. The API is
// synchronous: one call returns the image bytes.
type GoogleAdapter struct {
	apiKey string
}

func NewGoogleAdapter(apiKey string) *GoogleAdapter {
	return &GoogleAdapter{apiKey: apiKey}
}

func (a *GoogleAdapter) Name() string { return ProviderGoogle }

// googleAspectRatio maps canonical sizes onto Imagen aspect ratios.
func googleAspectRatio(size string) string {
	switch size {
	case SizePortrait:
		return "9:16"
	case SizeLandscape:
		return "16:9"
	default:
		return "1:1"
	}
}

func (a *GoogleAdapter) Submit(ctx context.Context, model string, prompt string, settings Settings) (*Submission, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  a.apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, Permanent(0, fmt.Errorf("create genai client: %w", err))
	}

	resp, err := client.Models.GenerateImages(ctx, model, prompt, &genai.GenerateImagesConfig{
		NumberOfImages: 1,
		AspectRatio:    googleAspectRatio(settings.Size),
	})
	if err != nil {
		return nil, classifyGoogle(err)
	}
	if len(resp.GeneratedImages) == 0 || resp.GeneratedImages[0].Image == nil {
		return nil, Permanent(0, fmt.Errorf("imagen returned no images"))
	}
	img := resp.GeneratedImages[0].Image
	return &Submission{Result: &Result{
		Bytes: img.ImageBytes,
		Metadata: map[string]any{
			"provider":     ProviderGoogle,
			"model":        model,
			"aspect_ratio": googleAspectRatio(settings.Size),
		},
	}}, nil
}

func classifyGoogle(err error) error {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		if apiErr.Code == 429 || apiErr.Code >= 500 {
			return Transient(apiErr.Code, err)
		}
		return Permanent(apiErr.Code, err)
	}
	return Transient(0, err)
}

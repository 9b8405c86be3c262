package provider

import (
	"errors"
	"testing"
)

func TestRegistryResolve(t *testing.T) {
	mock := NewMockAdapter()
	r := NewRegistry(mock)

	got, err := r.Resolve(ProviderMock)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if got != mock {
		t.Error("Resolve returned a different adapter")
	}
}

func TestRegistryResolveUnconfigured(t *testing.T) {
	r := NewRegistry()
	if _, err := r.Resolve(ProviderOpenAI); !errors.Is(err, ErrUnconfiguredProvider) {
		t.Fatalf("expected ErrUnconfiguredProvider, got: %v", err)
	}
}

func TestSettingsNormalizeAndValidate(t *testing.T) {
	s := Settings{}.Normalize()
	if s.Size != SizeSquare || s.Quality != QualityStandard || s.Style != StyleNatural {
		t.Errorf("defaults not applied: %+v", s)
	}
	if err := s.Validate(); err != nil {
		t.Errorf("normalized settings should validate: %v", err)
	}
	if err := (Settings{Size: "huge", Quality: QualityHD, Style: StyleVivid}).Validate(); err == nil {
		t.Error("invalid size should fail validation")
	}
	if err := (Settings{Size: SizeSquare, Quality: "ultra", Style: StyleVivid}).Validate(); err == nil {
		t.Error("invalid quality should fail validation")
	}
}

func TestSizeMappings(t *testing.T) {
	if got := openaiSize(SizePortrait); got != "1024x1792" {
		t.Errorf("openai portrait: got %s", got)
	}
	if got := googleAspectRatio(SizeLandscape); got != "16:9" {
		t.Errorf("google landscape: got %s", got)
	}
	w, h := fluxDimensions(SizeSquare)
	if w != 1024 || h != 1024 {
		t.Errorf("flux square: got %dx%d", w, h)
	}
}

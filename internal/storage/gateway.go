package storage

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"time"
)

// StoreRequest carries a finished image into durable storage. Exactly one
// of Bytes or SourceURL is set: synchronous providers return raw bytes,
// async ones hand back a short-lived delivery URL that must be copied out.
type StoreRequest struct {
	Bytes     []byte
	SourceURL string
	Filename  string
}

// Gateway persists generated images and returns a durable URL.
type Gateway interface {
	Store(ctx context.Context, req StoreRequest) (string, error)
}

// LocalGateway writes images under a base directory and serves them under a
// base URL. It is the default backend; S3-style backends satisfy the same
// interface.
type LocalGateway struct {
	baseDir    string
	baseURL    string
	httpClient *http.Client
}

func NewLocalGateway(baseDir, baseURL string) *LocalGateway {
	return &LocalGateway{
		baseDir:    baseDir,
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: 60 * time.Second},
	}
}

func (g *LocalGateway) Store(ctx context.Context, req StoreRequest) (string, error) {
	if req.Filename == "" {
		return "", fmt.Errorf("storage: filename is required")
	}
	data := req.Bytes
	if data == nil {
		if req.SourceURL == "" {
			return "", fmt.Errorf("storage: neither bytes nor source url given")
		}
		fetched, err := g.fetch(ctx, req.SourceURL)
		if err != nil {
			return "", err
		}
		data = fetched
	}

	if err := os.MkdirAll(g.baseDir, 0o755); err != nil {
		return "", fmt.Errorf("storage: create base dir: %w", err)
	}
	path := filepath.Join(g.baseDir, req.Filename)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("storage: write %q: %w", req.Filename, err)
	}

	u, err := url.JoinPath(g.baseURL, req.Filename)
	if err != nil {
		return "", fmt.Errorf("storage: join url: %w", err)
	}
	return u, nil
}

// fetch copies the provider's delivery URL before it expires.
func (g *LocalGateway) fetch(ctx context.Context, sourceURL string) ([]byte, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, sourceURL, nil)
	if err != nil {
		return nil, fmt.Errorf("storage: create fetch request: %w", err)
	}
	resp, err := g.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("storage: fetch source: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("storage: source returned %d", resp.StatusCode)
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("storage: read source body: %w", err)
	}
	return data, nil
}

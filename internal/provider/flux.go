package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

const defaultFluxBaseURL = "https://api.bfl.ml"

// FluxAdapter serves the asynchronous FLUX task API: a submit call returns
// a task id, and the result is fetched by polling. Submit never blocks on
// generation; the returned PendingTask carries the poll function.
type FluxAdapter struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
}

func NewFluxAdapter(apiKey string) *FluxAdapter {
	return &FluxAdapter{
		apiKey:     apiKey,
		baseURL:    defaultFluxBaseURL,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// NewFluxAdapterWithBaseURL is used by tests to point at a local server.
func NewFluxAdapterWithBaseURL(apiKey, baseURL string, client *http.Client) *FluxAdapter {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &FluxAdapter{apiKey: apiKey, baseURL: baseURL, httpClient: client}
}

func (a *FluxAdapter) Name() string { return ProviderFlux }

// fluxDimensions maps canonical sizes onto width/height pairs.
func fluxDimensions(size string) (width, height int) {
	switch size {
	case SizePortrait:
		return 768, 1344
	case SizeLandscape:
		return 1344, 768
	default:
		return 1024, 1024
	}
}

type fluxSubmitRequest struct {
	Prompt string `json:"prompt"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
}

type fluxSubmitResponse struct {
	ID string `json:"id"`
}

func (a *FluxAdapter) Submit(ctx context.Context, model string, prompt string, settings Settings) (*Submission, error) {
	width, height := fluxDimensions(settings.Size)
	body, err := json.Marshal(fluxSubmitRequest{Prompt: prompt, Width: width, Height: height})
	if err != nil {
		return nil, Permanent(0, fmt.Errorf("marshal flux request: %w", err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.baseURL+"/v1/"+model, bytes.NewReader(body))
	if err != nil {
		return nil, Permanent(0, fmt.Errorf("create flux request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-key", a.apiKey)

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return nil, Transient(0, fmt.Errorf("flux submit: %w", err))
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, classifyFluxStatus(resp)
	}

	var submitted fluxSubmitResponse
	if err := json.NewDecoder(resp.Body).Decode(&submitted); err != nil {
		return nil, Permanent(0, fmt.Errorf("decode flux submit response: %w", err))
	}
	if submitted.ID == "" {
		return nil, Permanent(0, fmt.Errorf("flux returned empty task id"))
	}

	return &Submission{Task: &PendingTask{
		TaskID:      submitted.ID,
		Provider:    ProviderFlux,
		SubmittedAt: time.Now(),
		Poll:        a.poll,
	}}, nil
}

type fluxResultResponse struct {
	ID     string `json:"id"`
	Status string `json:"status"`
	Result struct {
		Sample string `json:"sample"`
	} `json:"result"`
}

// poll checks one task. Transient transport failures are returned as errors
// for the poller to retry; a provider-reported failure is a terminal
// PollFailed status.
func (a *FluxAdapter) poll(ctx context.Context, taskID string) (*PollStatus, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.baseURL+"/v1/get_result?id="+taskID, nil)
	if err != nil {
		return nil, Permanent(0, fmt.Errorf("create flux poll request: %w", err))
	}
	req.Header.Set("x-key", a.apiKey)

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return nil, Transient(0, fmt.Errorf("flux poll: %w", err))
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, classifyFluxStatus(resp)
	}

	var result fluxResultResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, Transient(0, fmt.Errorf("decode flux poll response: %w", err))
	}

	switch result.Status {
	case "Ready":
		if result.Result.Sample == "" {
			return &PollStatus{State: PollFailed, Reason: "flux reported ready without a sample"}, nil
		}
		return &PollStatus{
			State: PollCompleted,
			Result: &Result{
				URL: result.Result.Sample,
				Metadata: map[string]any{
					"provider": ProviderFlux,
					"task_id":  taskID,
				},
			},
		}, nil
	case "Pending", "Request Moderated":
		return &PollStatus{State: PollPending}, nil
	default:
		// "Error", "Task not found", "Content Moderated" and anything new.
		return &PollStatus{State: PollFailed, Reason: "flux status: " + result.Status}, nil
	}
}

func classifyFluxStatus(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	err := fmt.Errorf("flux returned %d: %s", resp.StatusCode, bytes.TrimSpace(body))
	if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
		return Transient(resp.StatusCode, err)
	}
	return Permanent(resp.StatusCode, err)
}

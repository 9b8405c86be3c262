package provider

import (
	"context"
	"fmt"
	"time"
)

// Canonical settings vocabulary. Adapters translate these into their
// provider's own size/aspect-ratio/quality parameters; nothing above the
// adapter boundary knows a provider's wire vocabulary.
const (
	SizeSquare    = "square"
	SizePortrait  = "portrait"
	SizeLandscape = "landscape"

	QualityStandard = "standard"
	QualityHD       = "hd"

	StyleNatural = "natural"
	StyleVivid   = "vivid"
)

// Settings is the canonical generation request shape shared by all adapters.
type Settings struct {
	Size    string `json:"size"`
	Quality string `json:"quality"`
	Style   string `json:"style"`
}

// Normalize fills defaults for empty fields.
func (s Settings) Normalize() Settings {
	if s.Size == "" {
		s.Size = SizeSquare
	}
	if s.Quality == "" {
		s.Quality = QualityStandard
	}
	if s.Style == "" {
		s.Style = StyleNatural
	}
	return s
}

// Validate reports the first invalid field, if any.
func (s Settings) Validate() error {
	switch s.Size {
	case SizeSquare, SizePortrait, SizeLandscape:
	default:
		return fmt.Errorf("invalid size %q", s.Size)
	}
	switch s.Quality {
	case QualityStandard, QualityHD:
	default:
		return fmt.Errorf("invalid quality %q", s.Quality)
	}
	switch s.Style {
	case StyleNatural, StyleVivid:
	default:
		return fmt.Errorf("invalid style %q", s.Style)
	}
	return nil
}

// Result is a completed generation: exactly one of Bytes or URL is set.
type Result struct {
	Bytes    []byte
	URL      string
	Metadata map[string]any
}

// PollStatus states reported by an async provider.
const (
	PollPending   = "pending"
	PollCompleted = "completed"
	PollFailed    = "failed"
)

// PollStatus is one observation of an async provider task.
type PollStatus struct {
	State  string
	Result *Result // set when State == PollCompleted
	Reason string  // set when State == PollFailed
}

// PollFunc checks an async provider task. Supplied by the adapter that
// created the task and invoked only by the poller.
type PollFunc func(ctx context.Context, taskID string) (*PollStatus, error)

// PendingTask is an async provider's in-progress job handle.
type PendingTask struct {
	TaskID      string
	Provider    string
	SubmittedAt time.Time
	Poll        PollFunc
}

// Submission is the outcome of Submit: a synchronous Result or a
// PendingTask to hand to the poller, never both.
type Submission struct {
	Result *Result
	Task   *PendingTask
}

// Adapter normalizes one external generation provider.
type Adapter interface {
	// Name returns the provider identifier this adapter serves.
	Name() string

	// Submit starts a generation. Synchronous providers return a completed
	// Result; asynchronous providers return a PendingTask. Errors are
	// classified at this boundary (see Error).
	Submit(ctx context.Context, model string, prompt string, settings Settings) (*Submission, error)
}

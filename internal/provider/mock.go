package provider

import (
	"context"
	"sync"
	"time"
)

// MockAdapter returns scripted submissions for tests. If PollStatuses is
// set, Submit returns a PendingTask whose poll function replays the
// scripted statuses in order; otherwise Submit returns Result directly.
type MockAdapter struct {
	mu           sync.Mutex
	NameValue    string
	Result       *Result
	SubmitErr    error
	PollStatuses []*PollStatus
	PollErrs     []error
	SubmitCalls  int
	PollCalls    int
}

func NewMockAdapter() *MockAdapter {
	return &MockAdapter{
		NameValue: ProviderMock,
		Result:    &Result{Bytes: []byte("mock-image"), Metadata: map[string]any{"provider": ProviderMock}},
	}
}

func (a *MockAdapter) Name() string {
	if a.NameValue == "" {
		return ProviderMock
	}
	return a.NameValue
}

func (a *MockAdapter) Submit(_ context.Context, model string, prompt string, _ Settings) (*Submission, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.SubmitCalls++
	if a.SubmitErr != nil {
		return nil, a.SubmitErr
	}
	if len(a.PollStatuses) > 0 || len(a.PollErrs) > 0 {
		return &Submission{Task: &PendingTask{
			TaskID:      "mock-task",
			Provider:    a.Name(),
			SubmittedAt: time.Now(),
			Poll:        a.poll,
		}}, nil
	}
	return &Submission{Result: a.Result}, nil
}

// poll replays scripted errors first, then statuses. The final status
// repeats once both scripts are drained.
func (a *MockAdapter) poll(context.Context, string) (*PollStatus, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.PollCalls++
	if len(a.PollErrs) > 0 {
		err := a.PollErrs[0]
		a.PollErrs = a.PollErrs[1:]
		return nil, err
	}
	if len(a.PollStatuses) == 0 {
		return &PollStatus{State: PollPending}, nil
	}
	status := a.PollStatuses[0]
	if len(a.PollStatuses) > 1 {
		a.PollStatuses = a.PollStatuses[1:]
	}
	return status, nil
}

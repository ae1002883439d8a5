package temporal

import (
	"context"
	"fmt"
	"sync"
)

// MockDispatcher is a mock implementation of Dispatcher for testing.
type MockDispatcher struct {
	mu       sync.Mutex
	started  map[string]WithdrawalInput // map[workflowID]input
	results  map[string]*WithdrawalResult
	startErr error
}

// NewMockDispatcher creates a new MockDispatcher.
func NewMockDispatcher() *MockDispatcher {
	return &MockDispatcher{
		started: make(map[string]WithdrawalInput),
		results: make(map[string]*WithdrawalResult),
	}
}

// StartWithdrawal records that a workflow was started. Starting the same
// withdrawal twice fails, as it does against Temporal.
func (m *MockDispatcher) StartWithdrawal(ctx context.Context, input WithdrawalInput) (string, error) {
	if m.startErr != nil {
		return "", m.startErr
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	id := WorkflowID(input.Request.WithdrawalID)
	if _, exists := m.started[id]; exists {
		return "", fmt.Errorf("workflow %q already started", id)
	}
	m.started[id] = input
	return "run-" + input.Request.WithdrawalID, nil
}

// GetWithdrawalResult returns a result set with SetResult.
func (m *MockDispatcher) GetWithdrawalResult(ctx context.Context, withdrawalID string) (*WithdrawalResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	result, ok := m.results[WorkflowID(withdrawalID)]
	if !ok {
		return nil, fmt.Errorf("workflow %q not found", WorkflowID(withdrawalID))
	}
	return result, nil
}

// SetStartError makes StartWithdrawal return an error.
func (m *MockDispatcher) SetStartError(err error) {
	m.startErr = err
}

// SetResult sets the result returned for a withdrawal.
func (m *MockDispatcher) SetResult(withdrawalID string, result *WithdrawalResult) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.results[WorkflowID(withdrawalID)] = result
}

// Started returns the input a withdrawal was started with.
func (m *MockDispatcher) Started(withdrawalID string) (WithdrawalInput, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	input, ok := m.started[WorkflowID(withdrawalID)]
	return input, ok
}

// StartedCount returns the number of started workflows.
func (m *MockDispatcher) StartedCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.started)
}

// Reset clears all state and errors.
func (m *MockDispatcher) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.started = make(map[string]WithdrawalInput)
	m.results = make(map[string]*WithdrawalResult)
	m.startErr = nil
}

var _ Dispatcher = (*MockDispatcher)(nil)

package mqtt

import (
	"context"
	"fmt"
	"sync"

	coremqtt "github.com/kilianp07/showplan/core/mqtt"
)

// Publisher mirrors the core mqtt.Publisher interface.
type Publisher = coremqtt.Publisher

// MockPublisher records plan messages in memory. It is used in tests and by
// dry runs.
type MockPublisher struct {
	Messages map[string]coremqtt.PlanMessage
	FailPlan map[int]bool
	Closed   bool
	mu       sync.Mutex
}

// NewMockPublisher creates a new MockPublisher.
func NewMockPublisher() *MockPublisher {
	return &MockPublisher{
		Messages: make(map[string]coremqtt.PlanMessage),
		FailPlan: make(map[int]bool),
	}
}

// PublishPlan stores the message under its topic or fails if configured to.
func (m *MockPublisher) PublishPlan(_ context.Context, msg coremqtt.PlanMessage) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailPlan[msg.PlanID] {
		return fmt.Errorf("publish failed")
	}
	m.Messages[coremqtt.PlanTopic("", msg.PlanID)] = msg
	return nil
}

// Close marks the publisher closed.
func (m *MockPublisher) Close() {
	m.mu.Lock()
	m.Closed = true
	m.mu.Unlock()
}

// Count returns the number of stored messages.
func (m *MockPublisher) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Messages)
}

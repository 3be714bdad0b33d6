package testutil

import (
	"context"
	"fmt"
	"sync"

	"github.com/c360/semql/errors"
	"github.com/c360/semql/natsclient"
)

// MockNATSClient routes requests to reply handlers in-process. Handler errors
// reach the requester as *natsclient.RemoteError, as they do over a real
// connection.
type MockNATSClient struct {
	mu       sync.RWMutex
	handlers map[string]natsclient.Handler
	requests map[string]int
	closed   bool
}

// NewMockNATSClient creates an empty bus.
func NewMockNATSClient() *MockNATSClient {
	return &MockNATSClient{
		handlers: make(map[string]natsclient.Handler),
		requests: make(map[string]int),
	}
}

// Reply registers handler for subject. The queue group is ignored; a later
// registration replaces an earlier one.
func (c *MockNATSClient) Reply(ctx context.Context, subject, _ string, handler natsclient.Handler) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return natsclient.ErrNotConnected
	}
	c.handlers[subject] = handler
	return nil
}

// Request calls the handler registered for subject.
func (c *MockNATSClient) Request(ctx context.Context, subject string, data []byte) ([]byte, error) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil, natsclient.ErrNotConnected
	}
	h, ok := c.handlers[subject]
	c.requests[subject]++
	c.mu.Unlock()

	if !ok {
		return nil, fmt.Errorf("no responders for %s", subject)
	}
	out, err := h(ctx, data)
	if err != nil {
		return nil, &natsclient.RemoteError{
			Subject: subject,
			Message: err.Error(),
			Class:   errors.Classify(err).String(),
		}
	}
	return out, nil
}

// Requests returns how many requests were sent to subject.
func (c *MockNATSClient) Requests(subject string) int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.requests[subject]
}

// Close makes every later call fail with natsclient.ErrNotConnected.
func (c *MockNATSClient) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
}

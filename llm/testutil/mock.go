// Package testutil provides a scripted llm.Completer for tests.
package testutil

import (
	"context"
	"sync"

	"github.com/c360studio/rolefit/llm"
)

// Step is one scripted completion: either Content or Err.
type Step struct {
	Content string
	Err     error
}

// MockCompleter replays Steps in order, then repeats Default. It records
// every request it receives and is safe for concurrent use.
//
//	mock := &testutil.MockCompleter{Steps: []testutil.Step{
//	    {Content: "not json"},
//	    {Content: `{"text": "Describe a debugging approach"}`},
//	}}
//
// When Gate is non-nil each call blocks until a value is received from it
// or the context ends, which lets tests hold a call in flight.
type MockCompleter struct {
	Steps   []Step
	Default Step
	Gate    chan struct{}

	mu       sync.Mutex
	requests []llm.Request
	next     int
}

// Complete implements llm.Completer.
func (m *MockCompleter) Complete(ctx context.Context, req llm.Request) (*llm.Response, error) {
	m.mu.Lock()
	m.requests = append(m.requests, req)
	step := m.Default
	if m.next < len(m.Steps) {
		step = m.Steps[m.next]
		m.next++
	}
	gate := m.Gate
	m.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	if step.Err != nil {
		return nil, step.Err
	}
	return &llm.Response{Content: step.Content, Model: "mock"}, nil
}

// Calls returns how many times Complete was called.
func (m *MockCompleter) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.requests)
}

// Requests returns a copy of the recorded requests.
func (m *MockCompleter) Requests() []llm.Request {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]llm.Request(nil), m.requests...)
}

// LastRequest returns the most recent request, or the zero Request.
func (m *MockCompleter) LastRequest() llm.Request {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.requests) == 0 {
		return llm.Request{}
	}
	return m.requests[len(m.requests)-1]
}

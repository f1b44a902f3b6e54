package session

import (
	"context"
	"fmt"
	"sync"

	"github.com/c360studio/rolefit/assessment"
)

// fakeQuestions returns "Question N" for request N unless told to fail.
type fakeQuestions struct {
	mu       sync.Mutex
	requests []assessment.QuestionRequest
	failures map[int]error

	// When gate is set each call signals started and then waits on gate.
	gate    chan struct{}
	started chan int
}

func (f *fakeQuestions) Generate(ctx context.Context, req assessment.QuestionRequest) (*assessment.Question, error) {
	f.mu.Lock()
	f.requests = append(f.requests, req)
	err := f.failures[req.QuestionNumber]
	delete(f.failures, req.QuestionNumber)
	gate, started := f.gate, f.started
	f.mu.Unlock()

	if gate != nil {
		started <- req.QuestionNumber
		<-gate
	}
	if err != nil {
		return nil, err
	}

	return assessment.QuestionPayload{
		Text:            fmt.Sprintf("Question %d", req.QuestionNumber),
		PrimaryCategory: string(req.SelectedCategories[0]),
		Options:         []string{"A", "B", "C", "D"},
	}.Normalize(req.QuestionNumber), nil
}

func (f *fakeQuestions) failNext(number int, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failures == nil {
		f.failures = make(map[int]error)
	}
	f.failures[number] = err
}

func (f *fakeQuestions) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.requests)
}

func (f *fakeQuestions) last() assessment.QuestionRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.requests[len(f.requests)-1]
}

// fakeSuggestions answers with "<input> 1" .. "<input> n".
type fakeSuggestions struct {
	mu     sync.Mutex
	inputs []string
	n      int
	err    error

	// When gate is set each call signals started and then waits on gate
	// or its context.
	gate    chan struct{}
	started chan string
}

func (f *fakeSuggestions) Suggest(ctx context.Context, req assessment.SuggestionRequest) ([]string, error) {
	f.mu.Lock()
	f.inputs = append(f.inputs, req.UserInput)
	n, err := f.n, f.err
	gate, started := f.gate, f.started
	f.mu.Unlock()

	if gate != nil {
		started <- req.UserInput
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if err != nil {
		return nil, err
	}
	if n == 0 {
		n = 3
	}
	out := make([]string, n)
	for i := range out {
		out[i] = fmt.Sprintf("%s %d", req.UserInput, i+1)
	}
	return out, nil
}

func (f *fakeSuggestions) calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.inputs...)
}

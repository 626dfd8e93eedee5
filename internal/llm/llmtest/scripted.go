// Package llmtest provides scripted responders for tests.
package llmtest

import (
	"context"
	"errors"
	"sync"

	"github.com/ShayCichocki/stepwise/internal/llm"
)

// ErrExhausted is returned once every scripted reply has been consumed.
var ErrExhausted = errors.New("scripted responder exhausted")

// Reply is one scripted answer. A non-nil Err is returned instead of Text.
type Reply struct {
	Text string
	Err  error
}

// Scripted returns its replies in order and records every request.
type Scripted struct {
	mu       sync.Mutex
	replies  []Reply
	requests []llm.Request
}

// New creates a Scripted responder answering with texts in order.
func New(texts ...string) *Scripted {
	s := &Scripted{}
	for _, t := range texts {
		s.replies = append(s.replies, Reply{Text: t})
	}
	return s
}

// Push appends further replies.
func (s *Scripted) Push(replies ...Reply) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.replies = append(s.replies, replies...)
}

// Respond implements llm.Responder.
func (s *Scripted) Respond(ctx context.Context, req llm.Request) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.requests = append(s.requests, req)
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if len(s.replies) == 0 {
		return "", ErrExhausted
	}
	next := s.replies[0]
	s.replies = s.replies[1:]
	return next.Text, next.Err
}

// Requests returns a copy of the requests seen so far.
func (s *Scripted) Requests() []llm.Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]llm.Request{}, s.requests...)
}

var _ llm.Responder = (*Scripted)(nil)

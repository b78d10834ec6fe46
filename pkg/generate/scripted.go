package generate

import (
	"context"
	"fmt"
	"sync"
)

// ScriptedGenerator returns canned replies in order. It backs the
// "scripted" provider for local development and is the test double for the
// engine: enqueue replies or errors, then observe the requests it saw.
type ScriptedGenerator struct {
	mu      sync.Mutex
	replies []scripted
	// Requests records every call in order.
	Requests []Request
}

type scripted struct {
	reply Reply
	err   error
}

// NewScriptedGenerator returns an empty scripted generator. With no queued
// replies it echoes the last user message as a text-only reply.
func NewScriptedGenerator() *ScriptedGenerator {
	return &ScriptedGenerator{}
}

// Enqueue queues a successful reply.
func (s *ScriptedGenerator) Enqueue(r Reply) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.replies = append(s.replies, scripted{reply: r})
}

// EnqueueError queues a generation failure.
func (s *ScriptedGenerator) EnqueueError(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.replies = append(s.replies, scripted{err: err})
}

// Generate pops the next scripted result, honoring context cancellation.
func (s *ScriptedGenerator) Generate(ctx context.Context, req Request) (Reply, error) {
	if err := ctx.Err(); err != nil {
		return Reply{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Requests = append(s.Requests, req)
	if len(s.replies) == 0 {
		text := "ok"
		if n := len(req.History); n > 0 {
			text = fmt.Sprintf("echo: %s", req.History[n-1].Content)
		}
		return Reply{Text: text}, nil
	}
	next := s.replies[0]
	s.replies = s.replies[1:]
	if next.err != nil {
		return Reply{}, next.err
	}
	return next.reply, nil
}

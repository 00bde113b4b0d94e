package model

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/dusk-indust/deepresearch/internal/schema"
)

// Scripted replays queued responses per schema. It records every request it
// receives. When a queue runs dry the last response for that schema is
// repeated, which keeps long supervisor loops short to script.
type Scripted struct {
	mu        sync.Mutex
	responses map[schema.Name][]scripted
	last      map[schema.Name]scripted
	requests  []Request
}

type scripted struct {
	raw json.RawMessage
	err error
}

// NewScripted returns an empty script.
func NewScripted() *Scripted {
	return &Scripted{
		responses: make(map[schema.Name][]scripted),
		last:      make(map[schema.Name]scripted),
	}
}

// Reply queues a raw JSON response for name.
func (s *Scripted) Reply(name schema.Name, raw string) *Scripted {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.responses[name] = append(s.responses[name], scripted{raw: json.RawMessage(raw)})
	return s
}

// ReplyValue queues v, JSON-encoded, as a response for name.
func (s *Scripted) ReplyValue(name schema.Name, v any) *Scripted {
	return s.Reply(name, string(encode(v)))
}

// Fail queues an error for name.
func (s *Scripted) Fail(name schema.Name, err error) *Scripted {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.responses[name] = append(s.responses[name], scripted{err: err})
	return s
}

// Generate pops the next response for req.Schema.
func (s *Scripted) Generate(ctx context.Context, req Request) (json.RawMessage, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.requests = append(s.requests, req)

	queue := s.responses[req.Schema]
	var next scripted
	switch {
	case len(queue) > 0:
		next = queue[0]
		s.responses[req.Schema] = queue[1:]
		s.last[req.Schema] = next
	default:
		last, ok := s.last[req.Schema]
		if !ok {
			return nil, fmt.Errorf("model: no scripted response for %s", req.Schema)
		}
		next = last
	}
	if next.err != nil {
		return nil, next.err
	}
	out := make(json.RawMessage, len(next.raw))
	copy(out, next.raw)
	return out, nil
}

// Requests returns the requests received so far.
func (s *Scripted) Requests() []Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Request, len(s.requests))
	copy(out, s.requests)
	return out
}

// Calls counts the requests received for name.
func (s *Scripted) Calls(name schema.Name) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, r := range s.requests {
		if r.Schema == name {
			n++
		}
	}
	return n
}

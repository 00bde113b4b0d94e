// Package model is the port between the pipeline and the language model that
// makes its decisions. Every call names the structured-output contract it
// expects back; decoding and validation happen in internal/schema.
package model

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/dusk-indust/deepresearch/internal/schema"
	"github.com/dusk-indust/deepresearch/internal/state"
)

// ErrNoResponse is returned when a model produced no usable text.
var ErrNoResponse = errors.New("model: empty response")

// Request is one structured-output call.
type Request struct {
	// Schema names the contract the response must satisfy.
	Schema schema.Name
	// Messages is the conversation or supervisor log the decision is based on.
	Messages []state.Message
	// Input carries stage-specific text: the research brief, a sub-research
	// topic, or the distilled notes.
	Input string
}

// Model produces raw JSON for a structured-output request. Implementations
// must not validate the response; callers decode it through internal/schema
// so every adapter fails closed the same way.
type Model interface {
	Generate(ctx context.Context, req Request) (json.RawMessage, error)
}

// Func adapts a plain function to the Model interface.
type Func func(ctx context.Context, req Request) (json.RawMessage, error)

// Generate calls f.
func (f Func) Generate(ctx context.Context, req Request) (json.RawMessage, error) {
	return f(ctx, req)
}

// Compile-time interface checks.
var (
	_ Model = Func(nil)
	_ Model = (*Scripted)(nil)
	_ Model = (*Static)(nil)
	_ Model = (*Gemini)(nil)
)

// New builds a model from a provider name. "static" needs no credentials and
// is the default; "gemini" requires an API key.
func New(ctx context.Context, provider, name, apiKey string) (Model, error) {
	switch provider {
	case "", "static":
		return NewStatic(), nil
	case "gemini":
		g, err := NewGemini(ctx, apiKey, name)
		if err != nil {
			return nil, err
		}
		return g, nil
	default:
		return nil, fmt.Errorf("model: unknown provider %q", provider)
	}
}

func encode(v any) json.RawMessage {
	data, err := json.Marshal(v)
	if err != nil {
		// Only called with the plain structs from internal/schema.
		panic(fmt.Sprintf("model: encode %T: %v", v, err))
	}
	return data
}

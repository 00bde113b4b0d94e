package model

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"google.golang.org/genai"

	"github.com/dusk-indust/deepresearch/internal/schema"
	"github.com/dusk-indust/deepresearch/internal/state"
)

// DefaultGeminiModel is used when no model name is configured.
const DefaultGeminiModel = "gemini-2.5-flash"

// Gemini asks the Gemini API for JSON constrained by the contract's schema.
type Gemini struct {
	cli   *genai.Client
	model string
}

// NewGemini creates a Gemini-backed model. An empty apiKey lets the genai
// client fall back to GEMINI_API_KEY / GOOGLE_API_KEY.
func NewGemini(ctx context.Context, apiKey, modelName string) (*Gemini, error) {
	if modelName == "" {
		modelName = DefaultGeminiModel
	}
	cli, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("model: gemini client: %w", err)
	}
	return &Gemini{cli: cli, model: modelName}, nil
}

// Name returns the provider-qualified model name.
func (g *Gemini) Name() string { return "gemini:" + g.model }

// Generate sends the request and returns the model's JSON text unvalidated.
func (g *Gemini) Generate(ctx context.Context, req Request) (json.RawMessage, error) {
	js, err := schema.For(req.Schema)
	if err != nil {
		return nil, err
	}

	system, contents := buildContents(req)
	cfg := &genai.GenerateContentConfig{
		SystemInstruction:  genai.NewContentFromText(system, genai.RoleUser),
		ResponseMIMEType:   "application/json",
		ResponseJsonSchema: js,
	}

	resp, err := g.cli.Models.GenerateContent(ctx, g.model, contents, cfg)
	if err != nil {
		return nil, fmt.Errorf("model: gemini %s: %w", req.Schema, err)
	}
	text := strings.TrimSpace(resp.Text())
	if text == "" {
		return nil, fmt.Errorf("model: gemini %s: %w", req.Schema, ErrNoResponse)
	}
	return json.RawMessage(text), nil
}

// buildContents maps the message log onto genai turns. System messages are
// folded into the system instruction and tool output is presented as a user
// turn, since the API only knows user and model roles.
func buildContents(req Request) (string, []*genai.Content) {
	system := []string{instructions[req.Schema]}
	var contents []*genai.Content

	for _, m := range req.Messages {
		switch m.Role {
		case state.RoleSystem:
			system = append(system, m.Content)
		case state.RoleAssistant:
			contents = append(contents, genai.NewContentFromText(m.Content, genai.RoleModel))
		case state.RoleTool:
			label := "[research result]"
			if m.Name != "" {
				label = "[research result from " + m.Name + "]"
			}
			contents = append(contents, genai.NewContentFromText(label+"\n"+m.Content, genai.RoleUser))
		default:
			contents = append(contents, genai.NewContentFromText(m.Content, genai.RoleUser))
		}
	}

	if in := strings.TrimSpace(req.Input); in != "" {
		contents = append(contents, genai.NewContentFromText("[INPUT]\n"+in, genai.RoleUser))
	}
	if len(contents) == 0 {
		contents = append(contents, genai.NewContentFromText("Begin.", genai.RoleUser))
	}
	return strings.Join(system, "\n\n"), contents
}

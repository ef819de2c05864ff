package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"google.golang.org/genai"

	"github.com/lumenrobotics/go-aria/pkg/tools"
)

const providerGemini = "gemini"

// DefaultGeminiModel is used when no model is configured.
const DefaultGeminiModel = "gemini-2.0-flash"

// Gemini implements Provider on the google.golang.org/genai SDK. Gemini
// carries the system prompt as a SystemInstruction and tool calls as
// FunctionCall parts rather than serialized JSON.
type Gemini struct {
	client *genai.Client
	config *Config
	logger *slog.Logger
}

// NewGemini creates a Gemini provider.
func NewGemini(opts ...Option) (*Gemini, error) {
	cfg := DefaultConfig()
	cfg.BaseURL = ""
	cfg.Model = DefaultGeminiModel
	cfg.Apply(opts...)

	if cfg.APIKey == "" {
		return nil, WrapError(providerGemini, ErrNoAPIKey)
	}

	client, err := genai.NewClient(context.Background(), &genai.ClientConfig{
		APIKey: cfg.APIKey,
	})
	if err != nil {
		return nil, WrapError(providerGemini, err)
	}

	return &Gemini{
		client: client,
		config: cfg,
		logger: cfg.Logger.With("component", "llm.gemini"),
	}, nil
}

// Complete generates a chat completion.
func (g *Gemini) Complete(ctx context.Context, req *Request) (*Response, error) {
	start := time.Now()

	model := req.Model
	if model == "" {
		model = g.config.Model
	}

	maxTokens := req.MaxTokens
	if maxTokens == 0 {
		maxTokens = g.config.MaxTokens
	}
	temp := req.Temperature
	if temp == 0 {
		temp = g.config.Temperature
	}

	system, contents := g.convertMessages(req.Messages)

	genCfg := &genai.GenerateContentConfig{
		Temperature:     genai.Ptr(float32(temp)),
		MaxOutputTokens: int32(maxTokens),
	}
	if system != "" {
		genCfg.SystemInstruction = genai.NewContentFromText(system, genai.RoleUser)
	}
	if len(req.Schemas) > 0 {
		genCfg.Tools = []*genai.Tool{{
			FunctionDeclarations: g.convertSchemas(req.Schemas),
		}}
	}

	resp, err := g.client.Models.GenerateContent(ctx, model, contents, genCfg)
	if err != nil {
		return nil, classifyTransport(providerGemini, err)
	}

	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return nil, WrapError(providerGemini, fmt.Errorf("no response content"))
	}
	candidate := resp.Candidates[0]

	var content string
	var wireCalls []ToolCall
	var parsed []tools.Call
	for _, part := range candidate.Content.Parts {
		if part.Text != "" {
			content += part.Text
		}
		if fc := part.FunctionCall; fc != nil {
			id := fc.ID
			if id == "" {
				id = uuid.NewString()
			}
			wireCalls = append(wireCalls, ToolCall{
				ID:        id,
				Name:      fc.Name,
				Arguments: marshalArgs(fc.Args),
			})
			parsed = append(parsed, tools.Call{ID: id, Name: fc.Name, Args: fc.Args})
		}
	}

	usage := Usage{}
	if resp.UsageMetadata != nil {
		usage = Usage{
			PromptTokens:     int(resp.UsageMetadata.PromptTokenCount),
			CompletionTokens: int(resp.UsageMetadata.CandidatesTokenCount),
			TotalTokens:      int(resp.UsageMetadata.TotalTokenCount),
		}
	}

	return &Response{
		Message: Message{
			Role:      RoleAssistant,
			Content:   content,
			ToolCalls: wireCalls,
		},
		ToolCalls:    parsed,
		FinishReason: string(candidate.FinishReason),
		Usage:        usage,
		Model:        model,
		LatencyMs:    time.Since(start).Milliseconds(),
	}, nil
}

// Health checks API connectivity with a minimal request.
func (g *Gemini) Health(ctx context.Context) error {
	_, err := g.Complete(ctx, &Request{
		Messages:  []Message{NewUserMessage("test")},
		MaxTokens: 1,
	})
	return err
}

// Close releases resources.
func (g *Gemini) Close() error {
	return nil
}

// convertMessages splits out the system prompt and converts the history to
// genai contents. Tool results travel as function response parts.
func (g *Gemini) convertMessages(msgs []Message) (string, []*genai.Content) {
	var system string
	var contents []*genai.Content

	for _, msg := range msgs {
		switch msg.Role {
		case RoleSystem:
			system = msg.Content
		case RoleUser:
			contents = append(contents, genai.NewContentFromText(msg.Content, genai.RoleUser))
		case RoleAssistant:
			var parts []*genai.Part
			if msg.Content != "" {
				parts = append(parts, genai.NewPartFromText(msg.Content))
			}
			for _, tc := range msg.ToolCalls {
				args := map[string]any{}
				if tc.Arguments != "" {
					if err := json.Unmarshal([]byte(tc.Arguments), &args); err != nil {
						g.logger.Warn("malformed tool call arguments", "tool", tc.Name, "error", err)
					}
				}
				parts = append(parts, genai.NewPartFromFunctionCall(tc.Name, args))
			}
			if len(parts) > 0 {
				contents = append(contents, genai.NewContentFromParts(parts, genai.RoleModel))
			}
		case RoleTool:
			part := genai.NewPartFromFunctionResponse(msg.Name, map[string]any{
				"result": msg.Content,
			})
			contents = append(contents, genai.NewContentFromParts([]*genai.Part{part}, genai.RoleUser))
		}
	}

	return system, contents
}

// convertSchemas maps function schemas to genai declarations.
func (g *Gemini) convertSchemas(schemas []tools.Schema) []*genai.FunctionDeclaration {
	out := make([]*genai.FunctionDeclaration, len(schemas))
	for i, s := range schemas {
		properties := make(map[string]*genai.Schema, len(s.Params))
		var required []string
		for _, p := range s.Params {
			prop := &genai.Schema{
				Type:        genaiType(p.Type),
				Description: p.Description,
			}
			for _, e := range p.Enum {
				prop.Enum = append(prop.Enum, fmt.Sprint(e))
			}
			properties[p.Name] = prop
			if p.Required {
				required = append(required, p.Name)
			}
		}
		out[i] = &genai.FunctionDeclaration{
			Name:        s.Name,
			Description: s.Description,
			Parameters: &genai.Schema{
				Type:       genai.TypeObject,
				Properties: properties,
				Required:   required,
			},
		}
	}
	return out
}

func genaiType(t string) genai.Type {
	switch t {
	case "string":
		return genai.TypeString
	case "integer":
		return genai.TypeInteger
	case "number":
		return genai.TypeNumber
	case "boolean":
		return genai.TypeBoolean
	case "array":
		return genai.TypeArray
	case "object":
		return genai.TypeObject
	default:
		return genai.TypeString
	}
}

// Verify Gemini implements Provider at compile time.
var _ Provider = (*Gemini)(nil)

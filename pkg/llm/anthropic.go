package llm

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/lumenrobotics/go-aria/pkg/tools"
)

const providerAnthropic = "anthropic"

// DefaultAnthropicModel is used when no model is configured.
const DefaultAnthropicModel = "claude-3-5-haiku-latest"

// Anthropic implements Provider on the Messages API. The Anthropic wire
// format differs from the OpenAI one in two ways that matter here: the
// system prompt travels outside the message list, and tool results go back
// as user-role tool_result blocks.
type Anthropic struct {
	client *anthropic.Client
	config *Config
	logger *slog.Logger
}

// NewAnthropic creates an Anthropic provider.
func NewAnthropic(opts ...Option) (*Anthropic, error) {
	cfg := DefaultConfig()
	cfg.BaseURL = ""
	cfg.Model = DefaultAnthropicModel
	cfg.Apply(opts...)

	if cfg.APIKey == "" {
		return nil, WrapError(providerAnthropic, ErrNoAPIKey)
	}

	client := anthropic.NewClient(option.WithAPIKey(cfg.APIKey))

	return &Anthropic{
		client: &client,
		config: cfg,
		logger: cfg.Logger.With("component", "llm.anthropic"),
	}, nil
}

// Complete generates a chat completion.
func (a *Anthropic) Complete(ctx context.Context, req *Request) (*Response, error) {
	start := time.Now()

	model := req.Model
	if model == "" {
		model = a.config.Model
	}

	maxTokens := req.MaxTokens
	if maxTokens == 0 {
		maxTokens = a.config.MaxTokens
	}

	system, messages := a.convertMessages(req.Messages)

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(model),
		MaxTokens: int64(maxTokens),
		Messages:  messages,
	}
	if system != "" {
		params.System = []anthropic.TextBlockParam{{Text: system}}
	}
	if len(req.Schemas) > 0 {
		params.Tools = a.convertSchemas(req.Schemas)
	}

	resp, err := a.client.Messages.New(ctx, params)
	if err != nil {
		return nil, classifyTransport(providerAnthropic, err)
	}

	var content string
	var wireCalls []ToolCall
	for _, block := range resp.Content {
		switch block := block.AsAny().(type) {
		case anthropic.TextBlock:
			content += block.Text
		case anthropic.ToolUseBlock:
			args, _ := json.Marshal(block.Input)
			wireCalls = append(wireCalls, ToolCall{
				ID:        block.ID,
				Name:      block.Name,
				Arguments: string(args),
			})
		}
	}

	return &Response{
		Message: Message{
			Role:      RoleAssistant,
			Content:   content,
			ToolCalls: wireCalls,
		},
		ToolCalls:    parseCalls(wireCalls, a.logger),
		FinishReason: string(resp.StopReason),
		Usage: Usage{
			PromptTokens:     int(resp.Usage.InputTokens),
			CompletionTokens: int(resp.Usage.OutputTokens),
			TotalTokens:      int(resp.Usage.InputTokens + resp.Usage.OutputTokens),
		},
		Model:     model,
		LatencyMs: time.Since(start).Milliseconds(),
	}, nil
}

// Health checks API connectivity with a minimal request.
func (a *Anthropic) Health(ctx context.Context) error {
	_, err := a.Complete(ctx, &Request{
		Messages:  []Message{NewUserMessage("test")},
		MaxTokens: 1,
	})
	return err
}

// Close releases resources.
func (a *Anthropic) Close() error {
	return nil
}

// convertMessages splits out the system prompt and converts the rest to
// Anthropic message params. Tool results become user-role tool_result
// blocks per the Messages API contract.
func (a *Anthropic) convertMessages(msgs []Message) (string, []anthropic.MessageParam) {
	var system string
	var out []anthropic.MessageParam

	for _, msg := range msgs {
		switch msg.Role {
		case RoleSystem:
			system = msg.Content
		case RoleUser:
			out = append(out, anthropic.NewUserMessage(anthropic.NewTextBlock(msg.Content)))
		case RoleAssistant:
			blocks := []anthropic.ContentBlockParamUnion{}
			if msg.Content != "" {
				blocks = append(blocks, anthropic.ContentBlockParamUnion{
					OfText: &anthropic.TextBlockParam{Text: msg.Content},
				})
			}
			for _, tc := range msg.ToolCalls {
				blocks = append(blocks, anthropic.ContentBlockParamUnion{
					OfToolUse: &anthropic.ToolUseBlockParam{
						ID:    tc.ID,
						Name:  tc.Name,
						Input: json.RawMessage(tc.Arguments),
					},
				})
			}
			if len(blocks) > 0 {
				out = append(out, anthropic.NewAssistantMessage(blocks...))
			}
		case RoleTool:
			out = append(out, anthropic.NewUserMessage(anthropic.ContentBlockParamUnion{
				OfToolResult: &anthropic.ToolResultBlockParam{
					ToolUseID: msg.ToolCallID,
					Content: []anthropic.ToolResultBlockParamContentUnion{
						{OfText: &anthropic.TextBlockParam{Text: msg.Content}},
					},
				},
			}))
		}
	}

	return system, out
}

// convertSchemas maps function schemas to Anthropic tool params.
func (a *Anthropic) convertSchemas(schemas []tools.Schema) []anthropic.ToolUnionParam {
	out := make([]anthropic.ToolUnionParam, len(schemas))
	for i, s := range schemas {
		out[i] = anthropic.ToolUnionParam{
			OfTool: &anthropic.ToolParam{
				Name:        s.Name,
				Description: anthropic.String(s.Description),
				InputSchema: anthropic.ToolInputSchemaParam{
					Properties: s.JSONSchema()["properties"],
				},
			},
		}
	}
	return out
}

// Verify Anthropic implements Provider at compile time.
var _ Provider = (*Anthropic)(nil)

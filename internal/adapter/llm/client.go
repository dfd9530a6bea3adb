package llm

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/shared"

	"github.com/vinodsharma/lg-deepresearch-agent/internal/log"
)

// Options configure an OpenAI-compatible client.
type Options struct {
	APIKey      string
	BaseURL     string
	Model       string
	Temperature float64
	MaxTokens   int
	Reasoning   bool
}

// Client talks to an OpenAI-compatible chat completions endpoint such as OpenRouter.
type Client struct {
	client openai.Client
	opts   Options
}

// NewClient creates a chat completions client.
func NewClient(opts Options) *Client {
	var clientOpts []option.RequestOption
	if opts.APIKey != "" {
		clientOpts = append(clientOpts, option.WithAPIKey(opts.APIKey))
	}
	if opts.BaseURL != "" {
		clientOpts = append(clientOpts, option.WithBaseURL(opts.BaseURL))
	}
	return &Client{
		client: openai.NewClient(clientOpts...),
		opts:   opts,
	}
}

// Name returns the model name.
func (c *Client) Name() string {
	return c.opts.Model
}

// Generate sends a chat completion request.
func (c *Client) Generate(ctx context.Context, req *Request) (*Response, error) {
	params := openai.ChatCompletionNewParams{
		Model:       shared.ChatModel(c.opts.Model),
		Messages:    convertMessages(req.Messages),
		Tools:       convertTools(req.Tools),
		Temperature: openai.Float(c.opts.Temperature),
	}
	if c.opts.MaxTokens > 0 {
		params.MaxTokens = openai.Int(int64(c.opts.MaxTokens))
	}

	var reqOpts []option.RequestOption
	if c.opts.Reasoning {
		reqOpts = append(reqOpts, option.WithJSONSet("reasoning", map[string]any{"enabled": true}))
	}

	completion, err := c.client.Chat.Completions.New(ctx, params, reqOpts...)
	if err != nil {
		return nil, fmt.Errorf("chat completion failed: %w", err)
	}
	if len(completion.Choices) == 0 {
		return nil, fmt.Errorf("chat completion returned no choices")
	}

	msg := completion.Choices[0].Message
	out := &Response{
		Message: Message{Role: RoleAssistant, Content: msg.Content},
		Usage: Usage{
			PromptTokens:     int(completion.Usage.PromptTokens),
			CompletionTokens: int(completion.Usage.CompletionTokens),
			TotalTokens:      int(completion.Usage.TotalTokens),
		},
	}
	for _, tc := range msg.ToolCalls {
		out.Message.ToolCalls = append(out.Message.ToolCalls, ToolCall{
			ID:        tc.ID,
			Name:      tc.Function.Name,
			Arguments: tc.Function.Arguments,
		})
	}
	return out, nil
}

func convertMessages(messages []Message) []openai.ChatCompletionMessageParamUnion {
	result := make([]openai.ChatCompletionMessageParamUnion, 0, len(messages))
	for _, msg := range messages {
		switch msg.Role {
		case RoleSystem:
			result = append(result, openai.SystemMessage(msg.Content))
		case RoleAssistant:
			assistant := &openai.ChatCompletionAssistantMessageParam{}
			if msg.Content != "" {
				assistant.Content = openai.ChatCompletionAssistantMessageParamContentUnion{
					OfString: openai.String(msg.Content),
				}
			}
			for _, tc := range msg.ToolCalls {
				assistant.ToolCalls = append(assistant.ToolCalls, openai.ChatCompletionMessageToolCallParam{
					ID: tc.ID,
					Function: openai.ChatCompletionMessageToolCallFunctionParam{
						Name:      tc.Name,
						Arguments: tc.Arguments,
					},
				})
			}
			result = append(result, openai.ChatCompletionMessageParamUnion{OfAssistant: assistant})
		case RoleTool:
			result = append(result, openai.ChatCompletionMessageParamUnion{
				OfTool: &openai.ChatCompletionToolMessageParam{
					Content: openai.ChatCompletionToolMessageParamContentUnion{
						OfString: openai.String(msg.Content),
					},
					ToolCallID: msg.ToolCallID,
				},
			})
		default:
			result = append(result, openai.UserMessage(msg.Content))
		}
	}
	return result
}

func convertTools(tools []ToolDefinition) []openai.ChatCompletionToolParam {
	var result []openai.ChatCompletionToolParam
	for _, tool := range tools {
		schemaBytes, err := json.Marshal(tool.Parameters)
		if err != nil {
			log.Errorf("failed to marshal tool schema for %s: %v", tool.Name, err)
			continue
		}
		var parameters shared.FunctionParameters
		if err := json.Unmarshal(schemaBytes, &parameters); err != nil {
			log.Errorf("failed to unmarshal tool schema for %s: %v", tool.Name, err)
			continue
		}
		result = append(result, openai.ChatCompletionToolParam{
			Function: openai.FunctionDefinitionParam{
				Name:        tool.Name,
				Description: openai.String(tool.Description),
				Parameters:  parameters,
			},
		})
	}
	return result
}

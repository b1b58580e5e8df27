// Package agent answers questions about the Encompass developer
// documentation and loan pipeline by letting an LLM call tools.
package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/tmc/langchaingo/llms"
	"go.uber.org/zap"
)

const DefaultMaxSteps = 8

var ErrMaxSteps = errors.New("agent exceeded maximum tool steps")

type Agent struct {
	llm      llms.Model
	tools    map[string]Tool
	defs     []llms.Tool
	prompt   string
	maxSteps int
	logger   *zap.Logger
}

type Option func(*Agent)

func WithMaxSteps(n int) Option {
	return func(a *Agent) {
		if n > 0 {
			a.maxSteps = n
		}
	}
}

func WithSystemPrompt(prompt string) Option {
	return func(a *Agent) { a.prompt = prompt }
}

func New(llm llms.Model, tools []Tool, logger *zap.Logger, opts ...Option) *Agent {
	a := &Agent{
		llm:      llm,
		tools:    make(map[string]Tool, len(tools)),
		defs:     make([]llms.Tool, 0, len(tools)),
		prompt:   SystemPrompt(),
		maxSteps: DefaultMaxSteps,
		logger:   logger,
	}
	for _, t := range tools {
		a.tools[t.Definition.Name] = t
		a.defs = append(a.defs, t.llmTool())
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Run sends question to the model and executes the tool calls it asks for
// until it produces a final answer.
func (a *Agent) Run(ctx context.Context, question string) (string, error) {
	messages := []llms.MessageContent{
		llms.TextParts(llms.ChatMessageTypeSystem, a.prompt),
		llms.TextParts(llms.ChatMessageTypeHuman, question),
	}

	for step := 0; step < a.maxSteps; step++ {
		resp, err := a.llm.GenerateContent(ctx, messages, llms.WithTools(a.defs))
		if err != nil {
			return "", fmt.Errorf("generate content: %w", err)
		}
		if len(resp.Choices) == 0 {
			return "", fmt.Errorf("model returned no choices")
		}

		choice := resp.Choices[0]
		if len(choice.ToolCalls) == 0 {
			return choice.Content, nil
		}

		assistant := llms.MessageContent{Role: llms.ChatMessageTypeAI}
		if choice.Content != "" {
			assistant.Parts = append(assistant.Parts, llms.TextContent{Text: choice.Content})
		}
		for _, call := range choice.ToolCalls {
			assistant.Parts = append(assistant.Parts, call)
		}
		messages = append(messages, assistant)

		for _, call := range choice.ToolCalls {
			var name string
			if call.FunctionCall != nil {
				name = call.FunctionCall.Name
			}
			messages = append(messages, llms.MessageContent{
				Role: llms.ChatMessageTypeTool,
				Parts: []llms.ContentPart{llms.ToolCallResponse{
					ToolCallID: call.ID,
					Name:       name,
					Content:    a.execute(ctx, call),
				}},
			})
		}
	}
	return "", ErrMaxSteps
}

// execute runs one tool call. Failures are reported to the model as text
// so it can correct its arguments.
func (a *Agent) execute(ctx context.Context, call llms.ToolCall) string {
	if call.FunctionCall == nil {
		return "Error: tool call has no function"
	}
	name := call.FunctionCall.Name
	logger := a.logger.With(zap.String("tool", name), zap.String("call_id", call.ID))

	tool, ok := a.tools[name]
	if !ok {
		logger.Warn("model requested unknown tool")
		return fmt.Sprintf("Error: unknown tool %q", name)
	}

	out, err := tool.Call(ctx, json.RawMessage(call.FunctionCall.Arguments))
	if err != nil {
		logger.Warn("tool call failed", zap.Error(err))
		return "Error: " + err.Error()
	}
	logger.Debug("tool call succeeded", zap.Int("bytes", len(out)))
	return out
}

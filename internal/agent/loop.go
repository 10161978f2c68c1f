// internal/agent/loop.go
// Package agent runs the tool-calling conversation loop: inference turns
// interleaved with tool execution until the model answers without tool calls
// or the iteration ceiling is hit.
package agent

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/xkilldash9x/webpilot-cli/api/schemas"
)

const defaultMaxIterations = 50

// Executor owns one conversation loop: the inference client, the tool
// registry, and the optional session memory consulted for context and
// appended to after each invocation.
type Executor struct {
	llm           schemas.LLMClient
	registry      *Registry
	memory        *SessionMemory
	systemPrompt  string
	maxIterations int
	logger        *zap.Logger
}

// Result is the outcome of one Invoke call.
type Result struct {
	Input     string
	Output    string
	Messages  []schemas.Message
	Exhausted bool
}

func NewExecutor(llm schemas.LLMClient, registry *Registry, memory *SessionMemory, maxIterations int, logger *zap.Logger) *Executor {
	if maxIterations <= 0 {
		maxIterations = defaultMaxIterations
	}
	return &Executor{
		llm:           llm,
		registry:      registry,
		memory:        memory,
		systemPrompt:  systemPrompt,
		maxIterations: maxIterations,
		logger:        logger.Named("agent"),
	}
}

// Invoke runs the loop for one task. Tool failures become tool-result
// messages and the loop continues; only an inference failure or context
// cancellation aborts the invocation.
func (e *Executor) Invoke(ctx context.Context, input string) (Result, error) {
	system := e.systemPrompt
	if e.memory != nil {
		if recall := e.memory.ForLLM(); recall != "" {
			system += "\n\n## SESSION CONTEXT\n" + recall
		}
	}

	history := []schemas.Message{
		schemas.SystemMessage(system),
		schemas.UserMessage(input),
	}
	tools := e.registry.Schemas()

	for iteration := 1; iteration <= e.maxIterations; iteration++ {
		if err := ctx.Err(); err != nil {
			return Result{Input: input, Messages: history}, err
		}

		reply, err := e.llm.Chat(ctx, history, tools)
		if err != nil {
			return Result{Input: input, Messages: history}, fmt.Errorf("inference failed on iteration %d: %w", iteration, err)
		}
		history = append(history, reply)

		if len(reply.ToolCalls) == 0 {
			e.logger.Info("Task complete", zap.Int("iterations", iteration))
			if e.memory != nil {
				e.memory.AppendExchange(input, reply.Content, true)
			}
			return Result{Input: input, Output: reply.Content, Messages: history}, nil
		}

		for _, call := range reply.ToolCalls {
			history = append(history, e.dispatch(ctx, call))
		}
	}

	output := fmt.Sprintf("Max iterations (%d) reached without completion", e.maxIterations)
	e.logger.Warn("Iteration ceiling reached", zap.Int("max_iterations", e.maxIterations))
	if e.memory != nil {
		e.memory.AppendExchange(input, output, false)
	}
	return Result{Input: input, Output: output, Messages: history, Exhausted: true}, nil
}

// dispatch executes one tool call and always produces a tool-result message.
func (e *Executor) dispatch(ctx context.Context, call schemas.ToolCall) schemas.Message {
	tool, ok := e.registry.Lookup(call.Name)
	if !ok {
		e.logger.Warn("Unknown tool requested", zap.String("tool", call.Name))
		return schemas.ToolMessage(call.ID, call.Name, fmt.Sprintf("Tool %s not found", call.Name))
	}

	e.logger.Info("Executing tool", zap.String("tool", call.Name), zap.Any("args", call.Args))

	result, err := tool.Run(ctx, call.Args)
	if err != nil {
		e.logger.Warn("Tool execution failed", zap.String("tool", call.Name), zap.Error(err))
		return schemas.ToolMessage(call.ID, call.Name, fmt.Sprintf("Error executing %s: %v", call.Name, err))
	}
	return schemas.ToolMessage(call.ID, call.Name, result)
}

// Package openai adapts OpenAI's chat completions API to model.ChatModel.
package openai

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/shared"

	"github.com/forgeflow/forgeflow/model"
)

const defaultModel = "gpt-4o"

// ChatModel wraps the official openai-go client with a small transient
// error retry (rate limits, 5xx, network blips), since the pipeline's own
// retry supervisor only re-runs whole steps.
type ChatModel struct {
	client     *openai.Client
	modelName  string
	maxRetries int
	retryDelay time.Duration
}

// New creates a GPT-backed ChatModel. An empty modelName selects a
// sensible default.
func New(apiKey, modelName string) (*ChatModel, error) {
	if apiKey == "" {
		return nil, errors.New("openai: API key is required")
	}
	if modelName == "" {
		modelName = defaultModel
	}
	client := openai.NewClient(option.WithAPIKey(apiKey))
	return &ChatModel{
		client:     &client,
		modelName:  modelName,
		maxRetries: 3,
		retryDelay: time.Second,
	}, nil
}

// Chat implements model.ChatModel.
func (m *ChatModel) Chat(ctx context.Context, messages []model.Message) (model.ChatOut, error) {
	var lastErr error

	for attempt := 0; attempt < m.maxRetries; attempt++ {
		out, err := m.complete(ctx, messages)
		if err == nil {
			return out, nil
		}
		lastErr = err
		if !isTransient(err) {
			return model.ChatOut{}, err
		}

		select {
		case <-ctx.Done():
			return model.ChatOut{}, ctx.Err()
		case <-time.After(m.retryDelay * time.Duration(attempt+1)):
		}
	}
	return model.ChatOut{}, fmt.Errorf("openai: gave up after %d attempts: %w", m.maxRetries, lastErr)
}

func (m *ChatModel) complete(ctx context.Context, messages []model.Message) (model.ChatOut, error) {
	if err := ctx.Err(); err != nil {
		return model.ChatOut{}, err
	}

	completion, err := m.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model:    shared.ChatModel(m.modelName),
		Messages: convertMessages(messages),
	})
	if err != nil {
		return model.ChatOut{}, fmt.Errorf("openai: %w", err)
	}
	if len(completion.Choices) == 0 {
		return model.ChatOut{}, errors.New("openai: empty response")
	}

	return model.ChatOut{
		Text:       completion.Choices[0].Message.Content,
		TokensUsed: int(completion.Usage.TotalTokens),
	}, nil
}

func convertMessages(messages []model.Message) []openai.ChatCompletionMessageParamUnion {
	out := make([]openai.ChatCompletionMessageParamUnion, 0, len(messages))
	for _, msg := range messages {
		switch msg.Role {
		case model.RoleSystem:
			out = append(out, openai.SystemMessage(msg.Content))
		case model.RoleAssistant:
			out = append(out, openai.AssistantMessage(msg.Content))
		default:
			out = append(out, openai.UserMessage(msg.Content))
		}
	}
	return out
}

// isTransient reports whether an error is worth retrying: rate limits,
// server-side failures, and network trouble.
func isTransient(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	msg := strings.ToLower(err.Error())
	for _, pattern := range []string{"rate limit", "429", "500", "502", "503", "504", "timeout", "connection", "temporary"} {
		if strings.Contains(msg, pattern) {
			return true
		}
	}
	return false
}

// Package anthropic adapts Anthropic's Claude API to model.ChatModel.
package anthropic

import (
	"context"
	"errors"
	"fmt"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/forgeflow/forgeflow/model"
)

const defaultModel = "claude-sonnet-4-20250514"

// ChatModel wraps the official anthropic-sdk-go client. Anthropic expects
// the system prompt as a separate request parameter, so system messages
// are extracted from the conversation before sending.
type ChatModel struct {
	client    *anthropic.Client
	modelName string
	maxTokens int64
}

// New creates a Claude-backed ChatModel. An empty modelName selects a
// sensible default.
func New(apiKey, modelName string) (*ChatModel, error) {
	if apiKey == "" {
		return nil, errors.New("anthropic: API key is required")
	}
	if modelName == "" {
		modelName = defaultModel
	}
	client := anthropic.NewClient(option.WithAPIKey(apiKey))
	return &ChatModel{client: &client, modelName: modelName, maxTokens: 8192}, nil
}

// Chat implements model.ChatModel.
func (m *ChatModel) Chat(ctx context.Context, messages []model.Message) (model.ChatOut, error) {
	if err := ctx.Err(); err != nil {
		return model.ChatOut{}, err
	}

	system, conversation := splitSystemPrompt(messages)

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(m.modelName),
		MaxTokens: m.maxTokens,
		Messages:  conversation,
	}
	if system != "" {
		params.System = []anthropic.TextBlockParam{{Text: system}}
	}

	message, err := m.client.Messages.New(ctx, params)
	if err != nil {
		return model.ChatOut{}, fmt.Errorf("anthropic: %w", err)
	}

	var text string
	for _, block := range message.Content {
		if block.Type == "text" {
			text += block.Text
		}
	}

	return model.ChatOut{
		Text:       text,
		TokensUsed: int(message.Usage.InputTokens + message.Usage.OutputTokens),
	}, nil
}

// splitSystemPrompt separates system messages (concatenated, newline
// joined) from the user/assistant conversation.
func splitSystemPrompt(messages []model.Message) (string, []anthropic.MessageParam) {
	var system string
	conversation := make([]anthropic.MessageParam, 0, len(messages))

	for _, msg := range messages {
		switch msg.Role {
		case model.RoleSystem:
			if system != "" {
				system += "\n\n"
			}
			system += msg.Content
		case model.RoleAssistant:
			conversation = append(conversation, anthropic.NewAssistantMessage(anthropic.NewTextBlock(msg.Content)))
		default:
			conversation = append(conversation, anthropic.NewUserMessage(anthropic.NewTextBlock(msg.Content)))
		}
	}
	return system, conversation
}

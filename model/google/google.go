// Package google adapts Google's Gemini API to model.ChatModel.
package google

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"github.com/forgeflow/forgeflow/model"
)

const defaultModel = "gemini-1.5-pro"

// ChatModel wraps the official generative-ai-go client. Gemini takes the
// system prompt as a model-level instruction, not a conversation turn.
type ChatModel struct {
	apiKey    string
	modelName string
}

// New creates a Gemini-backed ChatModel. An empty modelName selects a
// sensible default.
func New(apiKey, modelName string) (*ChatModel, error) {
	if apiKey == "" {
		return nil, errors.New("google: API key is required")
	}
	if modelName == "" {
		modelName = defaultModel
	}
	return &ChatModel{apiKey: apiKey, modelName: modelName}, nil
}

// Chat implements model.ChatModel.
func (m *ChatModel) Chat(ctx context.Context, messages []model.Message) (model.ChatOut, error) {
	client, err := genai.NewClient(ctx, option.WithAPIKey(m.apiKey))
	if err != nil {
		return model.ChatOut{}, fmt.Errorf("google: create client: %w", err)
	}
	defer client.Close()

	gm := client.GenerativeModel(m.modelName)

	var parts []genai.Part
	for _, msg := range messages {
		if msg.Content == "" {
			continue
		}
		if msg.Role == model.RoleSystem {
			gm.SystemInstruction = &genai.Content{Parts: []genai.Part{genai.Text(msg.Content)}}
			continue
		}
		parts = append(parts, genai.Text(msg.Content))
	}

	resp, err := gm.GenerateContent(ctx, parts...)
	if err != nil {
		return model.ChatOut{}, fmt.Errorf("google: %w", err)
	}

	var text string
	for _, candidate := range resp.Candidates {
		if candidate.Content == nil {
			continue
		}
		for _, part := range candidate.Content.Parts {
			if t, ok := part.(genai.Text); ok {
				text += string(t)
			}
		}
		break
	}

	out := model.ChatOut{Text: text}
	if resp.UsageMetadata != nil {
		out.TokensUsed = int(resp.UsageMetadata.TotalTokenCount)
	}
	return out, nil
}

package ai

import (
	"context"
	"fmt"
	"log"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"
)

// ArkGateway backs the CompletionProvider with an eino chain over an Ark chat
// model, for deployments that hold Ark credentials instead of an OpenRouter
// key.
type ArkGateway struct {
	chain compose.Runnable[map[string]any, *schema.Message]
}

// NewArkGateway compiles the prompt chain around the given chat model.
func NewArkGateway(ctx context.Context, chatModel model.ChatModel) (*ArkGateway, error) {
	promptTemplate := prompt.FromMessages(
		schema.FString,
		schema.SystemMessage("{system}"),
		schema.UserMessage("{query}"),
	)

	chain := compose.NewChain[map[string]any, *schema.Message]()
	chain.AppendChatTemplate(promptTemplate)
	chain.AppendChatModel(chatModel)

	runnable, err := chain.Compile(ctx)
	if err != nil {
		return nil, fmt.Errorf("compile completion chain: %w", err)
	}
	return &ArkGateway{chain: runnable}, nil
}

var _ CompletionProvider = (*ArkGateway)(nil)

// Complete runs the chain with the fixed system preamble.
func (g *ArkGateway) Complete(ctx context.Context, prompt string) (string, error) {
	response, err := g.chain.Invoke(ctx, map[string]any{
		"system": SystemPrompt,
		"query":  prompt,
	})
	if err != nil {
		return "", fmt.Errorf("run completion chain: %w", err)
	}

	log.Printf("[ai] ark reply length=%d", len(response.Content))
	return response.Content, nil
}

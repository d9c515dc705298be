// Package generation adapts message content for an audience using an external model.
package generation

import (
	"context"
	"fmt"
	"strings"
	"time"

	anthropic "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/unclebandit/campaignhq-backend/internal/config"
	appErrors "github.com/unclebandit/campaignhq-backend/internal/errors"
)

// Generator rewrites content following the compiled audience instructions.
type Generator interface {
	Generate(ctx context.Context, instructions, content string) (string, error)
}

// AnthropicGenerator sends the instructions as the system prompt and the raw content
// as the user turn.
type AnthropicGenerator struct {
	client    anthropic.Client
	model     string
	maxTokens int64
	timeout   time.Duration
}

func NewAnthropic(cfg config.GenerationConfig) *AnthropicGenerator {
	return &AnthropicGenerator{
		client:    anthropic.NewClient(option.WithAPIKey(cfg.AnthropicAPIKey)),
		model:     cfg.Model,
		maxTokens: cfg.MaxTokens,
		timeout:   cfg.Timeout,
	}
}

func (g *AnthropicGenerator) Generate(ctx context.Context, instructions, content string) (string, error) {
	if g.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}

	msg, err := g.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(g.model),
		MaxTokens: g.maxTokens,
		System:    []anthropic.TextBlockParam{{Text: instructions}},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(content)),
		},
	})
	if err != nil {
		return "", fmt.Errorf("llm api call: %v: %w", err, appErrors.ErrGeneration)
	}

	var out strings.Builder
	for _, block := range msg.Content {
		if block.Type == "text" {
			out.WriteString(block.Text)
		}
	}
	text := strings.TrimSpace(out.String())
	if text == "" {
		return "", fmt.Errorf("empty response: %w", appErrors.ErrGeneration)
	}
	return text, nil
}

// Echo returns the content unchanged. Used when no API key is configured.
type Echo struct{}

func (Echo) Generate(ctx context.Context, instructions, content string) (string, error) {
	return content, nil
}

// FromConfig picks the Anthropic client when a key is set.
func FromConfig(cfg config.GenerationConfig) Generator {
	if cfg.AnthropicAPIKey == "" {
		return Echo{}
	}
	return NewAnthropic(cfg)
}

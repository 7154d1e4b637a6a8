package provider

import (
	"context"
	"fmt"
	"os"
	"strings"

	sdkanthropic "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

// Anthropic implements Completer over the Anthropic Messages API.
type Anthropic struct {
	client    *sdkanthropic.Client
	available bool
}

// Compile-time interface guard.
var _ Completer = (*Anthropic)(nil)

// NewAnthropic builds a client. The API key is taken from apiKey, falling
// back to the ANTHROPIC_API_KEY environment variable. baseURL overrides the
// default endpoint when non-empty. With no key at all the client is
// constructed but reports unavailable.
func NewAnthropic(apiKey, baseURL string) *Anthropic {
	if apiKey == "" {
		apiKey = os.Getenv("ANTHROPIC_API_KEY")
	}

	var opts []option.RequestOption
	if apiKey != "" {
		opts = append(opts, option.WithAPIKey(apiKey))
	}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}

	client := sdkanthropic.NewClient(opts...)
	return &Anthropic{client: &client, available: apiKey != ""}
}

// Available implements Completer.
func (a *Anthropic) Available() bool { return a.available }

// Complete implements Completer.
func (a *Anthropic) Complete(ctx context.Context, req Request) (string, error) {
	if !a.available {
		return "", ErrUnavailable
	}

	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 4096
	}

	params := sdkanthropic.MessageNewParams{
		Model:     sdkanthropic.Model(req.Model),
		MaxTokens: int64(maxTokens),
		Messages: []sdkanthropic.MessageParam{
			sdkanthropic.NewUserMessage(sdkanthropic.NewTextBlock(req.User)),
		},
	}
	if req.System != "" {
		params.System = []sdkanthropic.TextBlockParam{{Text: req.System}}
	}

	msg, err := a.client.Messages.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("provider: anthropic: %w", err)
	}

	var b strings.Builder
	for _, block := range msg.Content {
		if text, ok := block.AsAny().(sdkanthropic.TextBlock); ok {
			b.WriteString(text.Text)
		}
	}
	if b.Len() == 0 {
		return "", ErrEmptyResponse
	}
	return b.String(), nil
}

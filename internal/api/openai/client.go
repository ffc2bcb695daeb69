// Package openai turns an analysis report into a short plain-language
// commentary through the OpenAI chat completions API.
package openai

import (
	"context"
	"fmt"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/sashabaranov/go-openai"
)

// DefaultModel is used when no model is configured
const DefaultModel = "gpt-4o-mini"

// ErrEmptyResponse is returned when the API answers without choices
var ErrEmptyResponse = errors.New("openai returned no choices")

// Client wraps the OpenAI API client
type Client struct {
	client *openai.Client
	model  string
	logger zerolog.Logger
}

// ClientOptions holds options for creating a new client
type ClientOptions struct {
	APIKey  string
	Model   string
	BaseURL string // empty means the public endpoint
}

// NewClient creates a new OpenAI client
func NewClient(options ClientOptions) *Client {
	cfg := openai.DefaultConfig(options.APIKey)
	if options.BaseURL != "" {
		cfg.BaseURL = options.BaseURL
	}
	if options.Model == "" {
		options.Model = DefaultModel
	}
	return &Client{
		client: openai.NewClientWithConfig(cfg),
		model:  options.Model,
		logger: log.With().Str("component", "openai_client").Logger(),
	}
}

// GenerateCompletion sends a prompt and returns the first completion
func (c *Client) GenerateCompletion(ctx context.Context, prompt string) (string, error) {
	c.logger.Debug().Int("prompt_len", len(prompt)).Str("model", c.model).Msg("Sending prompt to OpenAI")

	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
		Temperature: 0.2,
	})
	if err != nil {
		c.logger.Error().Err(err).Msg("OpenAI API error")
		return "", errors.Wrap(err, "chat completion")
	}
	if len(resp.Choices) == 0 {
		return "", ErrEmptyResponse
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

// Commentary explains an analysis report of symbol in a few sentences
func (c *Client) Commentary(ctx context.Context, symbol, report string) (string, error) {
	return c.GenerateCompletion(ctx, FormatReportPrompt(symbol, report))
}

const systemPrompt = "You are a careful financial analyst. You explain model output to a non-specialist. " +
	"You never give investment advice."

// FormatReportPrompt asks for a summary of an analysis report
func FormatReportPrompt(symbol, report string) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Below is an automated analysis of %s daily prices.\n\n", strings.ToUpper(symbol))
	sb.WriteString(report)
	sb.WriteString(`

Summarize it in at most five sentences:
1. the recent trend and volatility,
2. whether the regression model beat the naive baseline and what that means,
3. the next-session forecast and how much weight it deserves.
`)
	return sb.String()
}

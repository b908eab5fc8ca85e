// Package ai talks to the generative model behind the assist features.
package ai

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"go.uber.org/zap"
)

var (
	ErrNotConfigured = errors.New("ai backend not configured")
	ErrEmptyResponse = errors.New("ai backend returned no content")
)

type Request struct {
	Prompt    string
	Image     []byte
	ImageMIME string
}

type Generator interface {
	Generate(ctx context.Context, req Request) (string, error)
}

type Options struct {
	APIKey  string
	BaseURL string
	Model   string
	Timeout time.Duration
}

// OpenAIGenerator calls an OpenAI-compatible chat completions endpoint.
// Gemini exposes one, which is the default target.
type OpenAIGenerator struct {
	client openai.Client
	model  string
	logger *zap.Logger
}

func NewOpenAIGenerator(opts Options, logger *zap.Logger) (*OpenAIGenerator, error) {
	if opts.APIKey == "" {
		return nil, ErrNotConfigured
	}

	reqOpts := []option.RequestOption{option.WithAPIKey(opts.APIKey)}
	if opts.BaseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(opts.BaseURL))
	}
	if opts.Timeout > 0 {
		reqOpts = append(reqOpts, option.WithRequestTimeout(opts.Timeout))
	}

	return &OpenAIGenerator{
		client: openai.NewClient(reqOpts...),
		model:  opts.Model,
		logger: logger,
	}, nil
}

func (g *OpenAIGenerator) Generate(ctx context.Context, req Request) (string, error) {
	var msg openai.ChatCompletionMessageParamUnion
	if len(req.Image) > 0 {
		dataURL := fmt.Sprintf("data:%s;base64,%s", req.ImageMIME, base64.StdEncoding.EncodeToString(req.Image))
		msg = openai.UserMessage([]openai.ChatCompletionContentPartUnionParam{
			openai.TextContentPart(req.Prompt),
			openai.ImageContentPart(openai.ChatCompletionContentPartImageImageURLParam{URL: dataURL}),
		})
	} else {
		msg = openai.UserMessage(req.Prompt)
	}

	started := time.Now()
	completion, err := g.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model:    g.model,
		Messages: []openai.ChatCompletionMessageParamUnion{msg},
	})
	if err != nil {
		return "", fmt.Errorf("chat completion: %w", err)
	}

	g.logger.Debug("ai completion",
		zap.String("model", g.model),
		zap.Bool("image", len(req.Image) > 0),
		zap.Duration("took", time.Since(started)),
	)

	if len(completion.Choices) == 0 {
		return "", ErrEmptyResponse
	}
	text := completion.Choices[0].Message.Content
	if strings.TrimSpace(text) == "" {
		return "", ErrEmptyResponse
	}
	return text, nil
}

// Unconfigured is used when no API key is set; every call fails with
// ErrNotConfigured so the rest of the server keeps working.
type Unconfigured struct{}

func (Unconfigured) Generate(context.Context, Request) (string, error) {
	return "", ErrNotConfigured
}

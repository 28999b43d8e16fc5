// Copyright 2026 Chronolens Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package openai

import (
	"context"
	"errors"
	"log/slog"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"

	"github.com/chronolens/chronolens/ai"
)

// ErrEmptyResponse is returned when the vision model produces no output.
var ErrEmptyResponse = errors.New("vision model returned empty response")

// Captioner implements ai.Captioner using OpenAI-compatible vision chat APIs.
type Captioner struct {
	client llms.Model
	logger *slog.Logger
}

// newCaptioner is an internal constructor that returns the concrete type.
// Used by Provider to manage the instance.
func newCaptioner(config *ai.Config) (*Captioner, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	// Use "none" as token for local OpenAI-compatible services that don't require authentication
	client, err := openai.New(
		openai.WithBaseURL(config.VisionHost),
		openai.WithToken("none"),
		openai.WithModel(config.VisionModel),
	)
	if err != nil {
		return nil, err
	}

	return &Captioner{
		client: client,
		logger: slog.Default().With("component", "openai-captioner"),
	}, nil
}

// NewCaptioner creates a new captioner using the provided configuration.
//
// Returns ai.Captioner interface to enforce abstraction.
func NewCaptioner(config *ai.Config) (ai.Captioner, error) {
	return newCaptioner(config)
}

// Caption generates a descriptive caption for the image.
func (c *Captioner) Caption(ctx context.Context, image []byte) (string, error) {
	c.logger.Debug("generating caption", "size_bytes", len(image))

	return c.describe(ctx, image, captionPrompt)
}

// AnswerQuestion answers a free-form question about the image.
func (c *Captioner) AnswerQuestion(ctx context.Context, image []byte, question string) (string, error) {
	c.logger.Debug("answering question about image", "size_bytes", len(image))

	return c.describe(ctx, image, buildQuestionPrompt(question))
}

// CompareImages describes both images and composes a comparison summary.
// The vision model sees one image at a time; the summary stitches the
// two descriptions together.
func (c *Captioner) CompareImages(ctx context.Context, image1, image2 []byte, question string) (*ai.Comparison, error) {
	prompt := buildComparisonCaptionPrompt(question)

	desc1, err := c.describe(ctx, image1, prompt)
	if err != nil {
		c.logger.Error("failed to describe first image", "err", err)
		return nil, err
	}

	desc2, err := c.describe(ctx, image2, prompt)
	if err != nil {
		c.logger.Error("failed to describe second image", "err", err)
		return nil, err
	}

	return &ai.Comparison{
		Description1: desc1,
		Description2: desc2,
		Summary:      buildComparisonSummary(desc1, desc2),
	}, nil
}

// describe sends the image and prompt through the vision chat API.
func (c *Captioner) describe(ctx context.Context, image []byte, prompt string) (string, error) {
	content := []llms.MessageContent{
		{
			Role: llms.ChatMessageTypeHuman,
			Parts: []llms.ContentPart{
				llms.BinaryPart("image/jpeg", image),
				llms.TextPart(prompt),
			},
		},
	}

	response, err := c.client.GenerateContent(ctx, content, llms.WithTemperature(0.0))
	if err != nil {
		c.logger.Error("vision generation failed", "err", err)
		return "", err
	}

	if len(response.Choices) == 0 {
		return "", ErrEmptyResponse
	}

	text := cleanCaption(response.Choices[0].Content)
	if text == "" {
		return "", ErrEmptyResponse
	}
	return text, nil
}

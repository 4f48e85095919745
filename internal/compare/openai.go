package compare

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
	"github.com/sashabaranov/go-openai"

	"docverify/internal/logger"
)

// analysisMaxTokens bounds the generation budget for the discrepancy analysis.
const analysisMaxTokens = 300

// Analyzer produces a natural-language discrepancy explanation for an
// extracted-text / expected-record pair.
type Analyzer interface {
	Analyze(ctx context.Context, extractedText string, expected []Field) (string, error)
}

// OpenAIAnalyzer implements Analyzer using a chat completion model.
type OpenAIAnalyzer struct {
	client *openai.Client
	model  string
	log    zerolog.Logger
}

// NewOpenAIAnalyzer creates an analyzer for the given API key and model.
func NewOpenAIAnalyzer(apiKey, model string) *OpenAIAnalyzer {
	return NewOpenAIAnalyzerWithClient(openai.NewClient(apiKey), model)
}

// NewOpenAIAnalyzerWithClient creates an analyzer with an explicit client (for testing).
func NewOpenAIAnalyzerWithClient(client *openai.Client, model string) *OpenAIAnalyzer {
	return &OpenAIAnalyzer{
		client: client,
		model:  model,
		log:    logger.WithComponent("compare-openai"),
	}
}

// Analyze sends the full extracted text and expected record to the model and
// returns the trimmed response text.
func (a *OpenAIAnalyzer) Analyze(ctx context.Context, extractedText string, expected []Field) (string, error) {
	const op = "Analyze"

	prompt := buildAnalysisPrompt(extractedText, expected)

	a.log.Debug().
		Int("prompt_length", len(prompt)).
		Str("model", a.model).
		Msg("requesting discrepancy analysis")

	resp, err := a.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: a.model,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleUser,
				Content: prompt,
			},
		},
		MaxTokens: analysisMaxTokens,
	})
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("%s: no response choices from model", op)
	}

	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

func buildAnalysisPrompt(extractedText string, expected []Field) string {
	var b strings.Builder
	b.WriteString("Extracted text:\n")
	b.WriteString(extractedText)
	b.WriteString("\n\nActual data:\n")
	for _, f := range expected {
		fmt.Fprintf(&b, "%s: %s\n", f.Field, f.Value)
	}
	b.WriteString("\nIdentify discrepancies and explain if the extracted text accurately reflects the actual data.")
	return b.String()
}

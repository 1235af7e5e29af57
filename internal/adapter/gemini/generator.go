package gemini

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"

	"paperchat/internal/apperr"
	"paperchat/internal/retry"
)

var (
	streamRetry = retry.Options{
		MaxAttempts:  4,
		InitialDelay: 2 * time.Second,
		MaxDelay:     15 * time.Second,
		Multiplier:   2,
	}
	generateRetry = retry.Options{
		MaxAttempts:  3,
		InitialDelay: 1500 * time.Millisecond,
		MaxDelay:     8 * time.Second,
		Multiplier:   2,
	}
)

type Generator struct {
	client *genai.Client
	model  string
}

func NewGenerator(ctx context.Context, apiKey, model string, opts ...option.ClientOption) (*Generator, error) {
	opts = append([]option.ClientOption{option.WithAPIKey(apiKey)}, opts...)
	client, err := genai.NewClient(ctx, opts...)
	if err != nil {
		return nil, err
	}
	return &Generator{client: client, model: model}, nil
}

// GenerateParams tunes one generation call.
type GenerateParams struct {
	System      string
	Temperature float32
	MaxTokens   int32
}

func (g *Generator) newModel(params GenerateParams) *genai.GenerativeModel {
	gm := g.client.GenerativeModel(g.model)
	if params.System != "" {
		gm.SystemInstruction = &genai.Content{Parts: []genai.Part{genai.Text(params.System)}}
	}
	gm.SetTemperature(params.Temperature)
	if params.MaxTokens > 0 {
		gm.SetMaxOutputTokens(params.MaxTokens)
	}
	return gm
}

func partsText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return ""
	}
	var b strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if text, ok := part.(genai.Text); ok {
			b.WriteString(string(text))
		}
	}
	return b.String()
}

// Stream generates a response and delivers text deltas to onDelta as they
// arrive, returning the full accumulated text. Failures before the first
// delta are retried as a whole; once any delta has been delivered the stream
// is committed and errors propagate to the caller.
func (g *Generator) Stream(ctx context.Context, prompt string, params GenerateParams, onDelta func(delta string) error) (string, error) {
	gm := g.newModel(params)

	var full strings.Builder
	delivered := false

	streamOnce := func(ctx context.Context) (struct{}, error) {
		iter := gm.GenerateContentStream(ctx, genai.Text(prompt))
		for {
			resp, err := iter.Next()
			if err == iterator.Done {
				return struct{}{}, nil
			}
			if err != nil {
				if delivered {
					// Mid-stream failure: a retry would replay already
					// delivered text, so surface it as non-retryable.
					return struct{}{}, apperr.Wrap(apperr.KindInternal, "generation stream interrupted", err)
				}
				return struct{}{}, err
			}
			delta := partsText(resp)
			if delta == "" {
				continue
			}
			delivered = true
			full.WriteString(delta)
			if err := onDelta(delta); err != nil {
				// Delivery failed after text went out: same rule as above,
				// a retry would replay the stream.
				return struct{}{}, apperr.Wrap(apperr.KindInternal, "delta delivery interrupted", err)
			}
		}
	}

	_, err := retry.Do(ctx, streamOnce, streamRetry)
	if err != nil {
		slog.ErrorContext(ctx, "generation stream failed", "model", g.model, "error", err)
		return full.String(), err
	}
	return full.String(), nil
}

// Generate produces a complete response in one call, with retries on
// transient failures.
func (g *Generator) Generate(ctx context.Context, prompt string, params GenerateParams) (string, error) {
	gm := g.newModel(params)

	resp, err := retry.Do(ctx, func(ctx context.Context) (*genai.GenerateContentResponse, error) {
		return gm.GenerateContent(ctx, genai.Text(prompt))
	}, generateRetry)
	if err != nil {
		slog.ErrorContext(ctx, "generation failed", "model", g.model, "error", err)
		return "", err
	}
	return partsText(resp), nil
}

func (g *Generator) Close() error {
	return g.client.Close()
}

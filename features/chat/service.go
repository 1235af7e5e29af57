package chat

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"paperchat/internal/adapter/gemini"
	weaviate "paperchat/internal/adapter/weaviate"
	"paperchat/internal/apperr"
	"paperchat/internal/citation"
)

const (
	defaultChatTopK       = 8
	defaultSuggestionTopK = 10

	// suggestionContextLimit caps the context stuffed into the suggestion
	// prompt, keeping the call cheap.
	suggestionContextLimit = 8000

	suggestionProbe = "Key topics, main sections, and important definitions in this document."
)

var answerSystemPrompt = strings.Join([]string{
	"You are a document-grounded assistant for PDF Q&A.",
	"Rules:",
	"- Use ONLY the provided context. Do NOT rely on external knowledge.",
	"- Prefer exact matches; quote short snippets when helpful.",
	"- Append a page citation [p.N] to every claim, number, or quoted snippet.",
	"- If the exact information is NOT present, begin with: 'Note: The exact information is not present in the document.'",
	"  Then provide the closest relevant information you can find, clearly labeled as 'Closest match', with citations.",
	"- If nothing relevant is found, say: 'I don't know based on the provided document.'",
	"- Be concise and use bullet points when helpful.",
	"- Preserve names, dates, and numbers exactly as they appear in the document.",
	"- If multiple pages support the answer, group logically and cite all relevant pages.",
	"- Never fabricate content or citations.",
	"Output structure (guideline):",
	"- Brief answer (1-3 bullets) with citations.",
	"- Optional details section with additional cited bullets.",
}, "\n")

type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

type Retriever interface {
	QueryTopK(ctx context.Context, docID string, queryVector []float32, k int) ([]weaviate.Record, error)
}

type Generator interface {
	Stream(ctx context.Context, prompt string, params gemini.GenerateParams, onDelta func(delta string) error) (string, error)
	Generate(ctx context.Context, prompt string, params gemini.GenerateParams) (string, error)
}

type Service struct {
	embedder       Embedder
	retriever      Retriever
	generator      Generator
	chatTopK       int
	suggestionTopK int
}

func NewService(embedder Embedder, retriever Retriever, generator Generator, chatTopK, suggestionTopK int) *Service {
	if chatTopK <= 0 {
		chatTopK = defaultChatTopK
	}
	if suggestionTopK <= 0 {
		suggestionTopK = defaultSuggestionTopK
	}
	return &Service{
		embedder:       embedder,
		retriever:      retriever,
		generator:      generator,
		chatTopK:       chatTopK,
		suggestionTopK: suggestionTopK,
	}
}

// Answer retrieves context for the question, streams a grounded answer
// through onDelta, and returns the full text with its parsed citations.
func (s *Service) Answer(ctx context.Context, docID, question string, onDelta func(delta string) error) (citation.Result, error) {
	if docID == "" {
		return citation.Result{}, apperr.New(apperr.KindValidation, "Missing docId")
	}
	if strings.TrimSpace(question) == "" {
		return citation.Result{}, apperr.New(apperr.KindValidation, "Missing user text")
	}

	queryVector, err := s.embedder.Embed(ctx, question)
	if err != nil {
		return citation.Result{}, fmt.Errorf("embed question: %w", err)
	}

	records, err := s.retriever.QueryTopK(ctx, docID, queryVector, s.chatTopK)
	if err != nil {
		return citation.Result{}, fmt.Errorf("retrieve context: %w", err)
	}
	slog.InfoContext(ctx, "context retrieved", "doc_id", docID, "chunks", len(records))

	blocks := make([]string, len(records))
	for i, r := range records {
		blocks[i] = fmt.Sprintf("\n[p.%d]\n%s", r.PageStart, r.Text)
	}
	prompt := fmt.Sprintf("Context:\n%s\n\nQuestion: %s", strings.Join(blocks, "\n\n"), question)

	full, err := s.generator.Stream(ctx, prompt, gemini.GenerateParams{System: answerSystemPrompt}, onDelta)
	if err != nil {
		return citation.Result{}, err
	}
	return citation.Parse(full), nil
}

// Suggestions proposes exactly three follow-up questions for the document.
func (s *Service) Suggestions(ctx context.Context, docID string) ([]string, error) {
	if docID == "" {
		return nil, apperr.New(apperr.KindValidation, "Missing docId")
	}

	queryVector, err := s.embedder.Embed(ctx, suggestionProbe)
	if err != nil {
		return nil, fmt.Errorf("embed probe: %w", err)
	}

	records, err := s.retriever.QueryTopK(ctx, docID, queryVector, s.suggestionTopK)
	if err != nil {
		return nil, fmt.Errorf("retrieve context: %w", err)
	}

	blocks := make([]string, len(records))
	for i, r := range records {
		blocks[i] = fmt.Sprintf("[p.%d] %s", r.PageStart, r.Text)
	}
	contextText := strings.Join(blocks, "\n\n")
	if len(contextText) > suggestionContextLimit {
		contextText = contextText[:suggestionContextLimit]
	}

	prompt := strings.Join([]string{
		"You are helping a user about a specific PDF.",
		"Given the following document chunks, propose exactly three short, diverse, helpful questions.",
		"Constraints:",
		"- 3 questions only; 8-80 characters each; not yes/no; must be answerable from context.",
		"- Avoid duplicates and near-duplicates; use document terminology.",
		"Context:",
		contextText,
		"Return ONLY a JSON array of 3 strings. No other text.",
	}, "\n")

	raw, err := s.generator.Generate(ctx, prompt, gemini.GenerateParams{
		Temperature: 0.7,
		MaxTokens:   200,
	})
	if err != nil {
		return nil, err
	}
	return ParseSuggestions(raw), nil
}

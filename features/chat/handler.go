package chat

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"paperchat/internal/apperr"
	"paperchat/internal/middleware"
)

type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type Handler struct {
	service *Service
}

func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// Chat answers the latest user question over SSE: `delta` events carry text
// as it is generated, a trailing `citations` event carries the parsed page
// references, and `done` closes the exchange.
func (h *Handler) Chat(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Messages []Message `json:"messages"`
		DocID    string    `json:"docId"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(r.Context(), w, apperr.KindValidation, "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.DocID == "" {
		h.writeError(r.Context(), w, apperr.KindValidation, "Missing docId", http.StatusBadRequest)
		return
	}
	if len(req.Messages) == 0 {
		h.writeError(r.Context(), w, apperr.KindValidation, "Missing messages", http.StatusBadRequest)
		return
	}

	question := lastUserText(req.Messages)
	if question == "" {
		h.writeError(r.Context(), w, apperr.KindValidation, "Missing user text", http.StatusBadRequest)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		h.writeError(r.Context(), w, apperr.KindInternal, "Streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	result, err := h.service.Answer(r.Context(), req.DocID, question, func(delta string) error {
		return writeEvent(w, flusher, "delta", map[string]string{"text": delta})
	})
	if err != nil {
		kind := apperr.KindOf(err)
		slog.ErrorContext(r.Context(), "chat failed", "doc_id", req.DocID, "kind", kind, "error", err)
		// Headers are already out; errors travel as a terminal SSE event.
		writeEvent(w, flusher, "error", map[string]string{
			"code":    string(kind),
			"message": userFacingMessage(kind),
		})
		return
	}

	writeEvent(w, flusher, "citations", result)
	writeEvent(w, flusher, "done", map[string]string{})
}

// Suggestions returns exactly three follow-up questions for a document.
func (h *Handler) Suggestions(w http.ResponseWriter, r *http.Request) {
	suggestions, err := h.service.Suggestions(r.Context(), r.PathValue("id"))
	if err != nil {
		kind := apperr.KindOf(err)
		slog.ErrorContext(r.Context(), "suggestions failed", "kind", kind, "error", err)
		h.writeError(r.Context(), w, kind, userFacingMessage(kind), apperr.HTTPStatus(kind))
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(map[string][]string{"suggestions": suggestions}); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

func lastUserText(messages []Message) string {
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Role == "user" {
			return strings.TrimSpace(messages[i].Content)
		}
	}
	return ""
}

func writeEvent(w http.ResponseWriter, flusher http.Flusher, event string, payload interface{}) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, data); err != nil {
		return err
	}
	flusher.Flush()
	return nil
}

// userFacingMessage keeps provider detail out of responses while still
// telling the client which failure family it hit.
func userFacingMessage(kind apperr.Kind) string {
	switch kind {
	case apperr.KindValidation:
		return "Invalid request"
	case apperr.KindNotFound:
		return "Document not found"
	case apperr.KindRateLimited:
		return "The model is rate limited right now, try again shortly"
	case apperr.KindOverloaded:
		return "The model is overloaded right now, try again shortly"
	case apperr.KindNetwork:
		return "Could not reach the model, check connectivity and retry"
	default:
		return "Something went wrong generating the answer"
	}
}

func (h *Handler) writeError(ctx context.Context, w http.ResponseWriter, kind apperr.Kind, message string, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	resp := map[string]interface{}{
		"error": map[string]string{
			"code":    string(kind),
			"message": message,
		},
		"correlationId": middleware.GetCorrelationID(ctx),
	}
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		slog.Error("failed to encode error response", "error", err)
	}
}

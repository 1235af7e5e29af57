package document

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"paperchat/internal/apperr"
	"paperchat/internal/middleware"
)

type Handler struct {
	service        *Service
	maxUploadBytes int64
}

func NewHandler(service *Service, maxUploadBytes int64) *Handler {
	return &Handler{service: service, maxUploadBytes: maxUploadBytes}
}

// Upload accepts a multipart PDF and responds with the new document id
// immediately; ingestion continues in the background and is observed through
// the status endpoint.
func (h *Handler) Upload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes)

	if err := r.ParseMultipartForm(h.maxUploadBytes); err != nil {
		h.writeError(r.Context(), w, apperr.KindValidation, "File too large or malformed form", http.StatusBadRequest)
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		h.writeError(r.Context(), w, apperr.KindValidation, "Missing file field", http.StatusBadRequest)
		return
	}
	defer file.Close()

	if header.Header.Get("Content-Type") != "application/pdf" {
		h.writeError(r.Context(), w, apperr.KindValidation, "File must be a PDF", http.StatusBadRequest)
		return
	}

	doc, err := h.service.Upload(r.Context(), header.Filename, file)
	if err != nil {
		slog.ErrorContext(r.Context(), "upload failed", "file_name", header.Filename, "error", err)
		h.writeError(r.Context(), w, apperr.KindInternal, "Failed to store upload", http.StatusInternalServerError)
		return
	}

	slog.InfoContext(r.Context(), "document uploaded", "doc_id", doc.DocID, "file_name", doc.OriginalName, "size", doc.FileSize)

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(map[string]string{"docId": doc.DocID}); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

func (h *Handler) Status(w http.ResponseWriter, r *http.Request) {
	doc, err := h.service.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		h.writeServiceError(r.Context(), w, err)
		return
	}

	resp := map[string]interface{}{
		"status": doc.Status,
		"progress": Progress{
			ProcessedPages: doc.ProcessedPages,
			TotalPages:     doc.TotalPages,
		},
	}
	if doc.Status == StatusError && doc.Error != nil {
		resp["error"] = *doc.Error
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

// File redirects to the route serving the stored PDF bytes.
func (h *Handler) File(w http.ResponseWriter, r *http.Request) {
	url, err := h.service.FileURL(r.Context(), r.PathValue("id"))
	if err != nil {
		h.writeServiceError(r.Context(), w, err)
		return
	}
	http.Redirect(w, r, url, http.StatusFound)
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	docs, err := h.service.List(r.Context())
	if err != nil {
		h.writeError(r.Context(), w, apperr.KindInternal, "Failed to list documents", http.StatusInternalServerError)
		return
	}

	type pdfSummary struct {
		Document
		Progress Progress `json:"progress"`
	}
	pdfs := make([]pdfSummary, 0, len(docs))
	for _, doc := range docs {
		pdfs = append(pdfs, pdfSummary{
			Document: doc,
			Progress: Progress{ProcessedPages: doc.ProcessedPages, TotalPages: doc.TotalPages},
		})
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(map[string]interface{}{"pdfs": pdfs}); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := h.service.Delete(r.Context(), id); err != nil {
		slog.ErrorContext(r.Context(), "delete failed", "doc_id", id, "error", err)
		h.writeServiceError(r.Context(), w, err)
		return
	}

	slog.InfoContext(r.Context(), "document deleted", "doc_id", id)
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(map[string]bool{"ok": true}); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

func (h *Handler) writeServiceError(ctx context.Context, w http.ResponseWriter, err error) {
	kind := apperr.KindOf(err)
	message := "Internal Server Error"
	var ae *apperr.Error
	if errors.As(err, &ae) {
		message = ae.Msg
	}
	h.writeError(ctx, w, kind, message, apperr.HTTPStatus(kind))
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

package health

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"
)

type DBPinger interface {
	PingContext(ctx context.Context) error
}

type BlobProber interface {
	Ready() bool
}

type VectorProber interface {
	Ready(ctx context.Context) bool
}

type Handler struct {
	db      DBPinger
	blobs   BlobProber
	vectors VectorProber
}

func NewHandler(db DBPinger, blobs BlobProber, vectors VectorProber) *Handler {
	return &Handler{db: db, blobs: blobs, vectors: vectors}
}

// Check reports per-dependency booleans. It always answers 200: a degraded
// dependency is data, not a handler failure.
func (h *Handler) Check(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	dbOK := h.db.PingContext(ctx) == nil
	blobOK := h.blobs.Ready()
	vectorOK := h.vectors.Ready(ctx)

	if !dbOK || !blobOK || !vectorOK {
		slog.WarnContext(r.Context(), "health check degraded", "db", dbOK, "blob", blobOK, "vector", vectorOK)
	}

	w.Header().Set("Content-Type", "application/json")
	resp := map[string]interface{}{
		"ok":                   true,
		"databaseConnected":    dbOK,
		"blobStorageConnected": blobOK,
		"vectorStoreConnected": vectorOK,
		"ready":                dbOK && blobOK && vectorOK,
	}
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

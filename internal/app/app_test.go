package app

import (
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	weaviateclient "github.com/weaviate/weaviate-go-client/v5/weaviate"

	"paperchat/internal/adapter/gemini"
	"paperchat/internal/blob"
	"paperchat/internal/config"
)

func TestNew(t *testing.T) {
	db, _, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"version": "1.19.0"}`))
	}))
	defer server.Close()

	wClient, err := weaviateclient.NewClient(weaviateclient.Config{
		Host:   server.URL[7:],
		Scheme: "http",
	})
	assert.NoError(t, err)

	ctx := context.Background()
	embedder, err := gemini.NewEmbedder(ctx, "test-key", "text-embedding-004")
	assert.NoError(t, err)
	generator, err := gemini.NewGenerator(ctx, "test-key", "gemini-1.5-flash")
	assert.NoError(t, err)

	blobs, err := blob.NewStore(t.TempDir())
	assert.NoError(t, err)

	cfg := &config.Config{
		ChunkTargetChars:  2000,
		ChunkOverlapChars: 300,
		ServerPort:        8081,
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	app, err := New(cfg, db, wClient, embedder, generator, blobs, logger)
	assert.NoError(t, err)
	assert.NotNil(t, app)
	assert.NotNil(t, app.Handler)
	assert.NotNil(t, app.DocumentService)

	req := httptest.NewRequest("GET", "/health", nil)
	w := httptest.NewRecorder()
	app.Handler.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
}

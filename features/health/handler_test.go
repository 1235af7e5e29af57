package health_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"paperchat/features/health"
)

type stubDB struct{ err error }

func (s stubDB) PingContext(ctx context.Context) error { return s.err }

type stubBlob struct{ ok bool }

func (s stubBlob) Ready() bool { return s.ok }

type stubVector struct{ ok bool }

func (s stubVector) Ready(ctx context.Context) bool { return s.ok }

func TestHandler_Check_AllHealthy(t *testing.T) {
	h := health.NewHandler(stubDB{}, stubBlob{ok: true}, stubVector{ok: true})

	rec := httptest.NewRecorder()
	h.Check(rec, httptest.NewRequest("GET", "/health", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	var resp map[string]interface{}
	assert.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, true, resp["databaseConnected"])
	assert.Equal(t, true, resp["blobStorageConnected"])
	assert.Equal(t, true, resp["vectorStoreConnected"])
	assert.Equal(t, true, resp["ready"])
}

func TestHandler_Check_DegradedStill200(t *testing.T) {
	h := health.NewHandler(stubDB{err: errors.New("dead")}, stubBlob{ok: true}, stubVector{ok: false})

	rec := httptest.NewRecorder()
	h.Check(rec, httptest.NewRequest("GET", "/health", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	var resp map[string]interface{}
	assert.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, false, resp["databaseConnected"])
	assert.Equal(t, false, resp["vectorStoreConnected"])
	assert.Equal(t, false, resp["ready"])
	assert.Equal(t, true, resp["ok"])
}

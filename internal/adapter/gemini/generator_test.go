package gemini_test

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"google.golang.org/api/option"

	"paperchat/internal/adapter/gemini"
	"paperchat/internal/apperr"
)

func generateResponse(text string) map[string]interface{} {
	return map[string]interface{}{
		"candidates": []map[string]interface{}{
			{
				"content": map[string]interface{}{
					"parts": []map[string]interface{}{{"text": text}},
					"role":  "model",
				},
			},
		},
	}
}

func TestGenerator_Generate(t *testing.T) {
	var body map[string]interface{}
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Contains(t, r.URL.Path, "generateContent")
		json.NewDecoder(r.Body).Decode(&body)
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(generateResponse(`["Q1","Q2","Q3"]`))
	}))
	defer ts.Close()

	gen, err := gemini.NewGenerator(context.Background(), "test-key", "gemini-1.5-flash", option.WithEndpoint(ts.URL))
	assert.NoError(t, err)

	out, err := gen.Generate(context.Background(), "Suggest questions.", gemini.GenerateParams{
		System:      "You write questions.",
		Temperature: 0.7,
		MaxTokens:   200,
	})
	assert.NoError(t, err)
	assert.Equal(t, `["Q1","Q2","Q3"]`, out)

	genCfg, ok := body["generationConfig"].(map[string]interface{})
	if assert.True(t, ok, "generationConfig missing from request") {
		assert.Equal(t, 0.7, genCfg["temperature"])
		assert.Equal(t, 200.0, genCfg["maxOutputTokens"])
	}
	assert.NotNil(t, body["systemInstruction"], "system instruction missing from request")
}

func TestGenerator_Generate_RetriesOverload(t *testing.T) {
	var requests int
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests++
		if requests < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte(`{"error": {"code": 503, "message": "try later"}}`))
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(generateResponse("eventually"))
	}))
	defer ts.Close()

	gen, err := gemini.NewGenerator(context.Background(), "test-key", "gemini-1.5-flash", option.WithEndpoint(ts.URL))
	assert.NoError(t, err)

	out, err := gen.Generate(context.Background(), "p", gemini.GenerateParams{})
	assert.NoError(t, err)
	assert.Equal(t, 3, requests)
	assert.Equal(t, "eventually", out)
}

// The streaming endpoint answers with a JSON array of response objects.
func streamBody(texts ...string) []map[string]interface{} {
	responses := make([]map[string]interface{}, len(texts))
	for i, text := range texts {
		responses[i] = generateResponse(text)
	}
	return responses
}

func TestGenerator_Stream_DeliversDeltasInOrder(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Contains(t, r.URL.Path, "streamGenerateContent")
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(streamBody("The total is ", "42 [p.3]."))
	}))
	defer ts.Close()

	gen, err := gemini.NewGenerator(context.Background(), "test-key", "gemini-1.5-flash", option.WithEndpoint(ts.URL))
	assert.NoError(t, err)

	var deltas []string
	full, err := gen.Stream(context.Background(), "What is the total?", gemini.GenerateParams{}, func(delta string) error {
		deltas = append(deltas, delta)
		return nil
	})
	assert.NoError(t, err)
	assert.Equal(t, []string{"The total is ", "42 [p.3]."}, deltas)
	assert.Equal(t, "The total is 42 [p.3].", full)
}

func TestGenerator_Stream_RetriesInitiation(t *testing.T) {
	var requests int
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests++
		if requests == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte(`{"error": {"code": 503, "message": "try later"}}`))
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(streamBody("eventually"))
	}))
	defer ts.Close()

	gen, err := gemini.NewGenerator(context.Background(), "test-key", "gemini-1.5-flash", option.WithEndpoint(ts.URL))
	assert.NoError(t, err)

	var deltas []string
	full, err := gen.Stream(context.Background(), "p", gemini.GenerateParams{}, func(delta string) error {
		deltas = append(deltas, delta)
		return nil
	})
	assert.NoError(t, err)
	assert.Equal(t, 2, requests)
	assert.Equal(t, []string{"eventually"}, deltas, "a failed initiation must not leak deltas")
	assert.Equal(t, "eventually", full)
}

func TestGenerator_Stream_NoRetryAfterDelivery(t *testing.T) {
	var requests int
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests++
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(streamBody("hello", " world"))
	}))
	defer ts.Close()

	gen, err := gemini.NewGenerator(context.Background(), "test-key", "gemini-1.5-flash", option.WithEndpoint(ts.URL))
	assert.NoError(t, err)

	// A transport-looking failure while writing a delta out: without the
	// non-retryable wrap this would re-establish the stream and replay
	// already-delivered text.
	writeErr := &net.OpError{Op: "write", Err: errors.New("broken pipe")}

	var deltas []string
	_, err = gen.Stream(context.Background(), "p", gemini.GenerateParams{}, func(delta string) error {
		deltas = append(deltas, delta)
		return writeErr
	})
	assert.Error(t, err)
	assert.ErrorIs(t, err, writeErr)
	assert.Equal(t, apperr.KindInternal, apperr.KindOf(err))
	assert.Equal(t, 1, requests, "a committed stream must never be re-established")
	assert.Equal(t, []string{"hello"}, deltas, "delivered text must never be replayed")
}

func TestGenerator_Generate_BadRequestNotRetried(t *testing.T) {
	var requests int
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests++
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"error": {"code": 400, "message": "invalid argument"}}`))
	}))
	defer ts.Close()

	gen, err := gemini.NewGenerator(context.Background(), "test-key", "gemini-1.5-flash", option.WithEndpoint(ts.URL))
	assert.NoError(t, err)

	_, err = gen.Generate(context.Background(), "p", gemini.GenerateParams{})
	assert.Error(t, err)
	assert.Equal(t, 1, requests, "client errors must not be retried")
}

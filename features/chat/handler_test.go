package chat_test

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"paperchat/features/chat"
	"paperchat/internal/apperr"
)

func newChatHandler(embedder *MockEmbedder, retriever *MockRetriever, generator *MockGenerator) *chat.Handler {
	return chat.NewHandler(chat.NewService(embedder, retriever, generator, 8, 10))
}

func TestHandler_Chat_Streams(t *testing.T) {
	embedder := new(MockEmbedder)
	retriever := new(MockRetriever)
	generator := &MockGenerator{StreamDeltas: []string{"Answer ", "with [p.3]."}}
	h := newChatHandler(embedder, retriever, generator)

	embedder.On("Embed", mock.Anything, mock.Anything).Return([]float32{0.1}, nil)
	retriever.On("QueryTopK", mock.Anything, "doc-1", mock.Anything, 8).Return(records(), nil)
	generator.On("Stream", mock.Anything, mock.Anything, mock.Anything).Return("", nil)

	body := `{"docId": "doc-1", "messages": [{"role": "user", "content": "What is the total?"}]}`
	req := httptest.NewRequest("POST", "/chat", strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.Chat(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/event-stream", rec.Header().Get("Content-Type"))

	out := rec.Body.String()
	assert.Contains(t, out, `event: delta`)
	assert.Contains(t, out, `{"text":"Answer "}`)
	assert.Contains(t, out, `{"text":"with [p.3]."}`)
	assert.Contains(t, out, `event: citations`)
	assert.Contains(t, out, `"page":3`)
	assert.Contains(t, out, `"cleanText":"Answer with ."`)
	assert.Contains(t, out, "event: done")
}

func TestHandler_Chat_Validation(t *testing.T) {
	h := newChatHandler(new(MockEmbedder), new(MockRetriever), new(MockGenerator))

	cases := []struct {
		name string
		body string
	}{
		{"Missing DocId", `{"messages": [{"role": "user", "content": "hi"}]}`},
		{"Missing Messages", `{"docId": "doc-1", "messages": []}`},
		{"No User Text", `{"docId": "doc-1", "messages": [{"role": "assistant", "content": "hello"}]}`},
		{"Garbage Body", `{not json`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest("POST", "/chat", strings.NewReader(tc.body))
			rec := httptest.NewRecorder()
			h.Chat(rec, req)

			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Contains(t, rec.Body.String(), "VALIDATION_ERROR")
		})
	}
}

func TestHandler_Chat_UsesLatestUserMessage(t *testing.T) {
	embedder := new(MockEmbedder)
	retriever := new(MockRetriever)
	generator := &MockGenerator{StreamDeltas: []string{"ok"}}
	h := newChatHandler(embedder, retriever, generator)

	embedder.On("Embed", mock.Anything, "second question").Return([]float32{0.1}, nil)
	retriever.On("QueryTopK", mock.Anything, "doc-1", mock.Anything, 8).Return(records(), nil)
	generator.On("Stream", mock.Anything, mock.Anything, mock.Anything).Return("", nil)

	body := `{"docId": "doc-1", "messages": [
		{"role": "user", "content": "first question"},
		{"role": "assistant", "content": "first answer"},
		{"role": "user", "content": "second question"}
	]}`
	req := httptest.NewRequest("POST", "/chat", strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.Chat(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	embedder.AssertCalled(t, "Embed", mock.Anything, "second question")
}

func TestHandler_Chat_StreamErrorEvent(t *testing.T) {
	embedder := new(MockEmbedder)
	retriever := new(MockRetriever)
	generator := new(MockGenerator)
	h := newChatHandler(embedder, retriever, generator)

	embedder.On("Embed", mock.Anything, mock.Anything).Return([]float32{0.1}, nil)
	retriever.On("QueryTopK", mock.Anything, "doc-1", mock.Anything, 8).Return(records(), nil)
	generator.On("Stream", mock.Anything, mock.Anything, mock.Anything).
		Return("", apperr.New(apperr.KindOverloaded, "model overloaded"))

	body := `{"docId": "doc-1", "messages": [{"role": "user", "content": "q"}]}`
	req := httptest.NewRequest("POST", "/chat", strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.Chat(rec, req)

	out := rec.Body.String()
	assert.Contains(t, out, "event: error")
	assert.Contains(t, out, "OVERLOADED")
	assert.NotContains(t, out, "event: done")
}

func TestHandler_Suggestions(t *testing.T) {
	embedder := new(MockEmbedder)
	retriever := new(MockRetriever)
	generator := new(MockGenerator)
	h := newChatHandler(embedder, retriever, generator)

	embedder.On("Embed", mock.Anything, mock.Anything).Return([]float32{0.5}, nil)
	retriever.On("QueryTopK", mock.Anything, "doc-1", mock.Anything, 10).Return(records(), nil)
	generator.On("Generate", mock.Anything, mock.Anything, mock.Anything).
		Return(`["A?", "B?", "C?"]`, nil)

	req := httptest.NewRequest("GET", "/doc/doc-1/suggestions", nil)
	req.SetPathValue("id", "doc-1")
	rec := httptest.NewRecorder()
	h.Suggestions(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"suggestions": ["A?", "B?", "C?"]}`, rec.Body.String())
}

func TestHandler_Suggestions_UpstreamFailure(t *testing.T) {
	embedder := new(MockEmbedder)
	h := newChatHandler(embedder, new(MockRetriever), new(MockGenerator))

	embedder.On("Embed", mock.Anything, mock.Anything).Return(nil, errors.New("provider down"))

	req := httptest.NewRequest("GET", "/doc/doc-1/suggestions", nil)
	req.SetPathValue("id", "doc-1")
	rec := httptest.NewRecorder()
	h.Suggestions(rec, req)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), "INTERNAL_ERROR")
}

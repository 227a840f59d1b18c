package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"

	"thailaw-council/internal/council"
	"thailaw-council/internal/retrieval"
	"thailaw-council/internal/storage"
)

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	os.Exit(m.Run())
}

// stubPipeline returns a scripted result or error.
type stubPipeline struct {
	result *council.Result
	err    error
	title  string
	events []council.Event
}

func (p *stubPipeline) Run(ctx context.Context, query string, emit func(council.Event)) (*council.Result, error) {
	if emit != nil {
		for _, e := range p.events {
			emit(e)
		}
	}
	return p.result, p.err
}

func (p *stubPipeline) GenerateTitle(ctx context.Context, userQuery string) (string, error) {
	if p.title == "" {
		return "", errors.New("no title")
	}
	return p.title, nil
}

func (p *stubPipeline) Config() council.Config {
	return council.Config{Members: []string{"model/a"}, Chairman: "chairman"}
}

func successResult() *council.Result {
	return &council.Result{
		Answer: "final answer",
		Chunks: []retrieval.Chunk{
			{Source: "Civil Code s.420", Content: strings.Repeat("x", 300), Score: 0.9},
		},
		Stage1: []council.Stage1Response{
			{Model: "model/a", Response: "answer a"},
			{Model: "model/b", Response: "answer b"},
		},
		Stage2: []council.Stage2Ranking{
			{Model: "model/a", ParsedRanking: []string{"Response A", "Response B"}, Valid: true},
		},
		Stage3: council.Stage3Response{Model: "chairman", Response: "final answer"},
		AggregateRankings: []council.AggregateRanking{
			{Model: "model/a", AverageRank: 1.0, RankingsCount: 1},
		},
		LabelToModel: map[string]string{"Response A": "model/a", "Response B": "model/b"},
	}
}

func newTestServer(t *testing.T, cfg Config, pipeline Pipeline) *Server {
	t.Helper()
	store, err := storage.NewStore(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	return New(cfg, store, pipeline)
}

func doJSON(t *testing.T, router *gin.Engine, method, path string, body interface{}, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatal(err)
		}
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestHealthCheck(t *testing.T) {
	srv := newTestServer(t, Config{}, &stubPipeline{})
	router := srv.Router()

	for _, path := range []string{"/", "/health"} {
		w := doJSON(t, router, http.MethodGet, path, nil, nil)
		if w.Code != http.StatusOK {
			t.Errorf("%s: expected 200, got %d", path, w.Code)
		}
		var body map[string]string
		if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
			t.Fatal(err)
		}
		if body["status"] != "ok" {
			t.Errorf("%s: unexpected body %v", path, body)
		}
	}
}

func TestChatSuccess(t *testing.T) {
	srv := newTestServer(t, Config{}, &stubPipeline{result: successResult()})
	router := srv.Router()

	w := doJSON(t, router, http.MethodPost, "/api/chat", ChatRequest{Message: "what is section 420"}, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	var resp ChatResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.Answer != "final answer" {
		t.Errorf("unexpected answer: %q", resp.Answer)
	}
	if resp.SessionID == "" {
		t.Error("expected a generated session id")
	}
	if len(resp.Sources) != 1 {
		t.Fatalf("expected 1 source, got %d", len(resp.Sources))
	}
	if got := len([]rune(resp.Sources[0].Excerpt)); got > 200 {
		t.Errorf("excerpt not truncated: %d runes", got)
	}
	if resp.CouncilMetadata.Chairman != "chairman" {
		t.Errorf("unexpected chairman: %q", resp.CouncilMetadata.Chairman)
	}
	if len(resp.CouncilMetadata.ModelsUsed) != 2 {
		t.Errorf("unexpected models used: %v", resp.CouncilMetadata.ModelsUsed)
	}
}

func TestChatPersistsTurn(t *testing.T) {
	srv := newTestServer(t, Config{}, &stubPipeline{result: successResult()})
	router := srv.Router()

	w := doJSON(t, router, http.MethodPost, "/api/chat", ChatRequest{Message: "question"}, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}

	var resp ChatResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}

	conversation, err := srv.store.Get(resp.SessionID)
	if err != nil {
		t.Fatal(err)
	}
	if conversation == nil || len(conversation.Turns) != 1 {
		t.Fatalf("expected persisted turn, got %+v", conversation)
	}
	if conversation.Turns[0].Query != "question" {
		t.Errorf("unexpected persisted query: %q", conversation.Turns[0].Query)
	}
}

func TestChatReusesSession(t *testing.T) {
	srv := newTestServer(t, Config{}, &stubPipeline{result: successResult()})
	router := srv.Router()

	first := doJSON(t, router, http.MethodPost, "/api/chat", ChatRequest{Message: "one"}, nil)
	var resp1 ChatResponse
	json.Unmarshal(first.Body.Bytes(), &resp1)

	second := doJSON(t, router, http.MethodPost, "/api/chat",
		ChatRequest{Message: "two", SessionID: resp1.SessionID}, nil)
	var resp2 ChatResponse
	json.Unmarshal(second.Body.Bytes(), &resp2)

	if resp2.SessionID != resp1.SessionID {
		t.Errorf("expected session reuse, got %q then %q", resp1.SessionID, resp2.SessionID)
	}

	conversation, _ := srv.store.Get(resp1.SessionID)
	if len(conversation.Turns) != 2 {
		t.Errorf("expected 2 turns, got %d", len(conversation.Turns))
	}
}

func TestChatEmptyMessage(t *testing.T) {
	srv := newTestServer(t, Config{}, &stubPipeline{result: successResult()})
	router := srv.Router()

	tests := []struct {
		name string
		body interface{}
	}{
		{"missing message", map[string]string{}},
		{"whitespace only", map[string]string{"message": "   "}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := doJSON(t, router, http.MethodPost, "/api/chat", tt.body, nil)
			if w.Code != http.StatusBadRequest {
				t.Errorf("expected 400, got %d", w.Code)
			}
		})
	}
}

func TestChatRejectsUnsafeSessionID(t *testing.T) {
	srv := newTestServer(t, Config{}, &stubPipeline{result: successResult()})
	router := srv.Router()

	w := doJSON(t, router, http.MethodPost, "/api/chat",
		ChatRequest{Message: "question", SessionID: "../outside/evil"}, nil)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d: %s", w.Code, w.Body.String())
	}

	var body map[string]string
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if body["error"] != "Invalid session id" {
		t.Errorf("unexpected error message: %q", body["error"])
	}
}

func TestChatPipelineFailure(t *testing.T) {
	srv := newTestServer(t, Config{}, &stubPipeline{
		err: council.ErrAllMembersFailed,
	})
	router := srv.Router()

	w := doJSON(t, router, http.MethodPost, "/api/chat", ChatRequest{Message: "question"}, nil)
	if w.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", w.Code)
	}

	var body map[string]string
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if body["code"] != "all_members_failed" {
		t.Errorf("expected diagnostic code, got %q", body["code"])
	}
	// The user-visible message stays generic.
	if strings.Contains(body["error"], "member") {
		t.Errorf("error message leaks internals: %q", body["error"])
	}
}

func TestAPIKeyEnforcement(t *testing.T) {
	srv := newTestServer(t, Config{APIKey: "secret-key"}, &stubPipeline{result: successResult()})
	router := srv.Router()

	t.Run("missing key rejected", func(t *testing.T) {
		w := doJSON(t, router, http.MethodPost, "/api/chat", ChatRequest{Message: "q"}, nil)
		if w.Code != http.StatusUnauthorized {
			t.Errorf("expected 401, got %d", w.Code)
		}
	})

	t.Run("wrong key rejected", func(t *testing.T) {
		w := doJSON(t, router, http.MethodPost, "/api/chat", ChatRequest{Message: "q"},
			map[string]string{"X-API-Key": "wrong"})
		if w.Code != http.StatusUnauthorized {
			t.Errorf("expected 401, got %d", w.Code)
		}
	})

	t.Run("correct key accepted", func(t *testing.T) {
		w := doJSON(t, router, http.MethodPost, "/api/chat", ChatRequest{Message: "q"},
			map[string]string{"X-API-Key": "secret-key"})
		if w.Code != http.StatusOK {
			t.Errorf("expected 200, got %d: %s", w.Code, w.Body.String())
		}
	})

	t.Run("conversations endpoints stay open", func(t *testing.T) {
		w := doJSON(t, router, http.MethodGet, "/api/conversations", nil, nil)
		if w.Code != http.StatusOK {
			t.Errorf("expected 200, got %d", w.Code)
		}
	})
}

func TestAPIKeyDisabled(t *testing.T) {
	srv := newTestServer(t, Config{}, &stubPipeline{result: successResult()})
	router := srv.Router()

	w := doJSON(t, router, http.MethodPost, "/api/chat", ChatRequest{Message: "q"}, nil)
	if w.Code != http.StatusOK {
		t.Errorf("expected validation skipped without configured key, got %d", w.Code)
	}
}

func TestConversationLifecycle(t *testing.T) {
	srv := newTestServer(t, Config{}, &stubPipeline{result: successResult(), title: "Generated Title"})
	router := srv.Router()

	// Create
	w := doJSON(t, router, http.MethodPost, "/api/conversations", nil, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("create: expected 200, got %d", w.Code)
	}
	var created storage.Conversation
	if err := json.Unmarshal(w.Body.Bytes(), &created); err != nil {
		t.Fatal(err)
	}
	if created.ID == "" {
		t.Fatal("create: expected an id")
	}

	// Get
	w = doJSON(t, router, http.MethodGet, "/api/conversations/"+created.ID, nil, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("get: expected 200, got %d", w.Code)
	}

	// Send message
	w = doJSON(t, router, http.MethodPost, "/api/conversations/"+created.ID+"/message",
		SendMessageRequest{Content: "question"}, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("message: expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var msgResp SendMessageResponse
	if err := json.Unmarshal(w.Body.Bytes(), &msgResp); err != nil {
		t.Fatal(err)
	}
	if len(msgResp.Stage1) != 2 {
		t.Errorf("expected 2 stage-1 responses, got %d", len(msgResp.Stage1))
	}
	if msgResp.Stage3.Response != "final answer" {
		t.Errorf("unexpected stage-3 response: %q", msgResp.Stage3.Response)
	}
	if len(msgResp.Metadata.LabelToModel) != 2 {
		t.Errorf("expected label mapping, got %v", msgResp.Metadata.LabelToModel)
	}

	// List
	w = doJSON(t, router, http.MethodGet, "/api/conversations", nil, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("list: expected 200, got %d", w.Code)
	}
	var listed []storage.Metadata
	if err := json.Unmarshal(w.Body.Bytes(), &listed); err != nil {
		t.Fatal(err)
	}
	if len(listed) != 1 || listed[0].TurnCount != 1 {
		t.Errorf("unexpected listing: %v", listed)
	}
}

func TestGetConversationNotFound(t *testing.T) {
	srv := newTestServer(t, Config{}, &stubPipeline{})
	router := srv.Router()

	w := doJSON(t, router, http.MethodGet, "/api/conversations/no-such-id", nil, nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", w.Code)
	}
}

func TestSendMessageConversationNotFound(t *testing.T) {
	srv := newTestServer(t, Config{}, &stubPipeline{result: successResult()})
	router := srv.Router()

	w := doJSON(t, router, http.MethodPost, "/api/conversations/ghost/message",
		SendMessageRequest{Content: "question"}, nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", w.Code)
	}
}

func TestChatStreamEvents(t *testing.T) {
	pipeline := &stubPipeline{
		result: successResult(),
		events: []council.Event{
			{Type: "rag_start"},
			{Type: "stage1_start"},
			{Type: "stage1_complete", Data: []council.Stage1Response{{Model: "model/a"}}},
			{Type: "stage2_start"},
			{Type: "stage2_complete"},
			{Type: "stage3_start"},
			{Type: "stage3_complete"},
		},
	}
	srv := newTestServer(t, Config{}, pipeline)
	router := srv.Router()

	w := doJSON(t, router, http.MethodPost, "/api/chat/stream", ChatRequest{Message: "question"}, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if ct := w.Header().Get("Content-Type"); ct != "text/event-stream" {
		t.Errorf("expected SSE content type, got %q", ct)
	}

	body := w.Body.String()
	for _, want := range []string{
		"Retrieving legal documents...",
		"Consulting legal experts...",
		"Evaluating responses...",
		"Synthesizing final answer...",
		`"type":"complete"`,
		"final answer",
	} {
		if !strings.Contains(body, want) {
			t.Errorf("stream missing %q in:\n%s", want, body)
		}
	}

	// Every frame uses SSE data framing.
	for _, line := range strings.Split(strings.TrimSpace(body), "\n") {
		if line == "" {
			continue
		}
		if !strings.HasPrefix(line, "data: ") {
			t.Errorf("non-SSE line in stream: %q", line)
		}
	}
}

func TestChatStreamPipelineFailure(t *testing.T) {
	srv := newTestServer(t, Config{}, &stubPipeline{err: council.ErrChairmanUnavailable})
	router := srv.Router()

	w := doJSON(t, router, http.MethodPost, "/api/chat/stream", ChatRequest{Message: "question"}, nil)
	body := w.Body.String()
	if !strings.Contains(body, `"type":"error"`) {
		t.Errorf("expected error event, got:\n%s", body)
	}
}

func TestCORSAllowedOrigin(t *testing.T) {
	srv := newTestServer(t, Config{AllowedOrigins: []string{"https://thailawonline.com"}}, &stubPipeline{})

	tests := []struct {
		origin string
		want   bool
	}{
		{"https://thailawonline.com", true},
		{"https://evil.example.com", false},
		{"http://localhost:3000", false},
	}
	for _, tt := range tests {
		if got := srv.allowOrigin(tt.origin); got != tt.want {
			t.Errorf("allowOrigin(%q) = %v, want %v", tt.origin, got, tt.want)
		}
	}
}

func TestCORSDevelopmentMode(t *testing.T) {
	srv := newTestServer(t, Config{}, &stubPipeline{})

	if !srv.allowOrigin("http://localhost:3000") {
		t.Error("development mode should allow localhost")
	}
	if srv.allowOrigin("https://evil.example.com") {
		t.Error("development mode should reject non-localhost origins")
	}
}

package provider_test

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"time"
)

// MockResponse is the canned reply for prompts containing a key.
type MockResponse struct {
	Content   string
	Reasoning string
	ToolCalls []MockToolCall
}

// MockToolCall is a tool call in a canned reply.
type MockToolCall struct {
	ID        string
	Name      string
	Arguments string
}

// MockRequest records one request received by the server.
type MockRequest struct {
	Path    string
	Body    map[string]any
	Headers http.Header
}

// MockLLMServer mimics the OpenAI chat completions, Anthropic messages and
// Copilot token exchange endpoints with deterministic streaming responses.
type MockLLMServer struct {
	server    *httptest.Server
	responses map[string]MockResponse
	fallback  string

	// CopilotToken is handed out by the token exchange endpoint.
	CopilotToken string

	mu       sync.Mutex
	requests []MockRequest
}

// NewMockLLMServer starts a mock server.
func NewMockLLMServer(responses map[string]MockResponse, fallback string) *MockLLMServer {
	m := &MockLLMServer{
		responses:    responses,
		fallback:     fallback,
		CopilotToken: "copilot-session-token",
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/v1/chat/completions", m.handleChatCompletions)
	mux.HandleFunc("/chat/completions", m.handleChatCompletions)
	mux.HandleFunc("/v1/messages", m.handleAnthropicMessages)
	mux.HandleFunc("/copilot_internal/v2/token", m.handleCopilotToken)

	m.server = httptest.NewServer(mux)
	return m
}

func (m *MockLLMServer) URL() string { return m.server.URL }

func (m *MockLLMServer) Close() { m.server.Close() }

// Requests returns the recorded requests.
func (m *MockLLMServer) Requests() []MockRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]MockRequest(nil), m.requests...)
}

// RequestsTo returns the recorded requests for path.
func (m *MockLLMServer) RequestsTo(path string) []MockRequest {
	var out []MockRequest
	for _, r := range m.Requests() {
		if r.Path == path {
			out = append(out, r)
		}
	}
	return out
}

func (m *MockLLMServer) record(r *http.Request) (map[string]any, bool) {
	var body map[string]any
	if r.Method == http.MethodPost {
		raw, err := io.ReadAll(r.Body)
		if err != nil {
			return nil, false
		}
		if err := json.Unmarshal(raw, &body); err != nil {
			return nil, false
		}
	}

	m.mu.Lock()
	m.requests = append(m.requests, MockRequest{Path: r.URL.Path, Body: body, Headers: r.Header.Clone()})
	m.mu.Unlock()
	return body, true
}

func (m *MockLLMServer) handleCopilotToken(w http.ResponseWriter, r *http.Request) {
	m.record(r)
	token := strings.TrimSpace(strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer"))
	if token == "" {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"endpoints":  map[string]any{"api": m.server.URL},
		"token":      m.CopilotToken,
		"expires_at": time.Now().Add(time.Hour).Unix(),
	})
}

func (m *MockLLMServer) handleChatCompletions(w http.ResponseWriter, r *http.Request) {
	body, ok := m.record(r)
	if !ok {
		http.Error(w, "invalid request", http.StatusBadRequest)
		return
	}
	resp := m.findResponse(lastUserText(body))

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	flusher := w.(http.Flusher)

	send := func(delta map[string]any, finish any, usage any) {
		chunk := map[string]any{
			"id":      "chatcmpl-mock",
			"object":  "chat.completion.chunk",
			"created": time.Now().Unix(),
			"model":   "mock-model",
			"choices": []map[string]any{{
				"index":         0,
				"delta":         delta,
				"finish_reason": finish,
			}},
		}
		if usage != nil {
			chunk["usage"] = usage
		}
		data, _ := json.Marshal(chunk)
		w.Write([]byte("data: " + string(data) + "\n\n"))
		flusher.Flush()
	}

	send(map[string]any{"role": "assistant"}, nil, nil)
	if resp.Reasoning != "" {
		send(map[string]any{"reasoning_content": resp.Reasoning}, nil, nil)
	}
	for _, word := range splitWords(resp.Content) {
		send(map[string]any{"content": word}, nil, nil)
	}
	for i, tc := range resp.ToolCalls {
		send(map[string]any{"tool_calls": []map[string]any{{
			"index":    i,
			"id":       tc.ID,
			"type":     "function",
			"function": map[string]any{"name": tc.Name, "arguments": ""},
		}}}, nil, nil)
		// arguments arrive in two fragments
		half := len(tc.Arguments) / 2
		for _, frag := range []string{tc.Arguments[:half], tc.Arguments[half:]} {
			send(map[string]any{"tool_calls": []map[string]any{{
				"index":    i,
				"function": map[string]any{"arguments": frag},
			}}}, nil, nil)
		}
	}

	finish := "stop"
	if len(resp.ToolCalls) > 0 {
		finish = "tool_calls"
	}
	send(map[string]any{}, finish, map[string]any{
		"prompt_tokens":     100,
		"completion_tokens": 50,
		"total_tokens":      150,
	})
	w.Write([]byte("data: [DONE]\n\n"))
	flusher.Flush()
}

func (m *MockLLMServer) handleAnthropicMessages(w http.ResponseWriter, r *http.Request) {
	body, ok := m.record(r)
	if !ok {
		http.Error(w, "invalid request", http.StatusBadRequest)
		return
	}
	resp := m.findResponse(lastUserText(body))

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	flusher := w.(http.Flusher)

	event := func(name string, payload map[string]any) {
		payload["type"] = name
		data, _ := json.Marshal(payload)
		w.Write([]byte("event: " + name + "\ndata: " + string(data) + "\n\n"))
		flusher.Flush()
	}

	event("message_start", map[string]any{"message": map[string]any{
		"id":      "msg_mock",
		"type":    "message",
		"role":    "assistant",
		"model":   "mock-claude",
		"content": []any{},
		"usage":   map[string]any{"input_tokens": 100, "output_tokens": 0},
	}})
	event("content_block_start", map[string]any{
		"index":         0,
		"content_block": map[string]any{"type": "text", "text": ""},
	})
	for _, word := range splitWords(resp.Content) {
		event("content_block_delta", map[string]any{
			"index": 0,
			"delta": map[string]any{"type": "text_delta", "text": word},
		})
	}
	event("content_block_stop", map[string]any{"index": 0})
	event("message_delta", map[string]any{
		"delta": map[string]any{"stop_reason": "end_turn", "stop_sequence": nil},
		"usage": map[string]any{"output_tokens": 50},
	})
	event("message_stop", map[string]any{})
}

func (m *MockLLMServer) findResponse(prompt string) MockResponse {
	prompt = strings.ToLower(prompt)
	for key, resp := range m.responses {
		if strings.Contains(prompt, strings.ToLower(key)) {
			return resp
		}
	}
	return MockResponse{Content: m.fallback}
}

// lastUserText extracts the last user text from either wire format.
func lastUserText(body map[string]any) string {
	messages, _ := body["messages"].([]any)
	for i := len(messages) - 1; i >= 0; i-- {
		msg, _ := messages[i].(map[string]any)
		if role, _ := msg["role"].(string); role != "user" {
			continue
		}
		switch content := msg["content"].(type) {
		case string:
			return content
		case []any:
			for _, item := range content {
				block, _ := item.(map[string]any)
				if text, ok := block["text"].(string); ok {
					return text
				}
			}
		}
	}
	return ""
}

func splitWords(s string) []string {
	words := strings.SplitAfter(s, " ")
	out := words[:0]
	for _, w := range words {
		if w != "" {
			out = append(out, w)
		}
	}
	return out
}

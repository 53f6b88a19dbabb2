package testutil

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"time"
)

// MockLLMServer mimics an OpenAI-compatible streaming chat completions API,
// answering from a Scenario.
type MockLLMServer struct {
	server   *httptest.Server
	scenario *Scenario

	mu       sync.Mutex
	requests []MockRequest
	nextID   int
}

// MockRequest records one completion request.
type MockRequest struct {
	Timestamp time.Time
	Path      string
	Model     string
	Stream    bool
	Messages  []ChatMessage
	Tools     []string
}

// ChatMessage is the part of an OpenAI message the mock inspects.
type ChatMessage struct {
	Role       string
	Content    string
	ToolCallID string
}

type chatRequest struct {
	Model    string `json:"model"`
	Stream   bool   `json:"stream"`
	Messages []struct {
		Role       string          `json:"role"`
		Content    json.RawMessage `json:"content"`
		ToolCallID string          `json:"tool_call_id"`
	} `json:"messages"`
	Tools []struct {
		Function struct {
			Name string `json:"name"`
		} `json:"function"`
	} `json:"tools"`
}

// NewMockLLMServer starts a server answering from scenario.
func NewMockLLMServer(scenario *Scenario) *MockLLMServer {
	m := &MockLLMServer{scenario: scenario}

	mux := http.NewServeMux()
	mux.HandleFunc("/v1/chat/completions", m.handleChatCompletions)
	mux.HandleFunc("/chat/completions", m.handleChatCompletions)
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"healthy"}`))
	})

	m.server = httptest.NewServer(mux)
	return m
}

// URL returns the server's base URL, suitable for BASE_URL.
func (m *MockLLMServer) URL() string {
	return m.server.URL + "/v1"
}

// Close shuts down the server.
func (m *MockLLMServer) Close() {
	m.server.Close()
}

// Requests returns the recorded requests.
func (m *MockLLMServer) Requests() []MockRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]MockRequest(nil), m.requests...)
}

func (m *MockLLMServer) handleChatCompletions(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, "Failed to read body", http.StatusBadRequest)
		return
	}
	defer r.Body.Close()

	var req chatRequest
	if err := json.Unmarshal(body, &req); err != nil {
		http.Error(w, "Invalid JSON", http.StatusBadRequest)
		return
	}

	recorded := MockRequest{
		Timestamp: time.Now(),
		Path:      r.URL.Path,
		Model:     req.Model,
		Stream:    req.Stream,
	}
	for _, msg := range req.Messages {
		recorded.Messages = append(recorded.Messages, ChatMessage{
			Role:       msg.Role,
			Content:    contentText(msg.Content),
			ToolCallID: msg.ToolCallID,
		})
	}
	for _, t := range req.Tools {
		recorded.Tools = append(recorded.Tools, t.Function.Name)
	}

	m.mu.Lock()
	m.requests = append(m.requests, recorded)
	m.mu.Unlock()

	source, text := latestInput(recorded.Messages)
	reply := m.reply(source, text)

	if !req.Stream {
		http.Error(w, "only streaming requests are supported", http.StatusBadRequest)
		return
	}
	m.writeStream(w, reply)
}

// contentText flattens string or content-part message bodies.
func contentText(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var parts []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	}
	if err := json.Unmarshal(raw, &parts); err == nil {
		var sb strings.Builder
		for _, p := range parts {
			sb.WriteString(p.Text)
		}
		return sb.String()
	}
	return string(raw)
}

// latestInput returns what the model is responding to: trailing tool
// results, or else the last user message.
func latestInput(messages []ChatMessage) (string, string) {
	var results []string
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Role != "tool" {
			break
		}
		results = append([]string{messages[i].Content}, results...)
	}
	if len(results) > 0 {
		return SourceToolResult, strings.Join(results, "\n")
	}

	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Role == "user" {
			return SourcePrompt, messages[i].Content
		}
	}
	return SourcePrompt, ""
}

type mockToolCall struct {
	id        string
	name      string
	arguments string
}

type mockReply struct {
	content   string
	toolCalls []mockToolCall
}

func (m *MockLLMServer) reply(source, text string) mockReply {
	rule := m.scenario.FindRule(source, text)
	if rule == nil {
		return mockReply{content: m.scenario.Defaults.Fallback}
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	reply := mockReply{content: rule.Response}
	for _, tc := range rule.ToolCalls {
		args, _ := json.Marshal(tc.Arguments)
		m.nextID++
		reply.toolCalls = append(reply.toolCalls, mockToolCall{
			id:        fmt.Sprintf("call_mock_%d", m.nextID),
			name:      tc.Tool,
			arguments: string(args),
		})
	}
	return reply
}

func (m *MockLLMServer) writeStream(w http.ResponseWriter, reply mockReply) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming not supported", http.StatusInternalServerError)
		return
	}

	delay := time.Duration(m.scenario.Settings.ChunkDelayMS) * time.Millisecond
	send := func(delta map[string]any, finish any, usage any) {
		chunk := map[string]any{
			"id":      "chatcmpl-mock",
			"object":  "chat.completion.chunk",
			"created": time.Now().Unix(),
			"model":   "mock-model",
			"choices": []map[string]any{
				{"index": 0, "delta": delta, "finish_reason": finish},
			},
		}
		if usage != nil {
			chunk["usage"] = usage
		}
		data, _ := json.Marshal(chunk)
		fmt.Fprintf(w, "data: %s\n\n", data)
		flusher.Flush()
		if delay > 0 {
			time.Sleep(delay)
		}
	}

	send(map[string]any{"role": "assistant"}, nil, nil)

	words := strings.Fields(reply.content)
	for i, word := range words {
		if i < len(words)-1 {
			word += " "
		}
		send(map[string]any{"content": word}, nil, nil)
	}

	for i, tc := range reply.toolCalls {
		send(map[string]any{
			"tool_calls": []map[string]any{{
				"index": i,
				"id":    tc.id,
				"type":  "function",
				"function": map[string]any{
					"name":      tc.name,
					"arguments": tc.arguments,
				},
			}},
		}, nil, nil)
	}

	finish := "stop"
	if len(reply.toolCalls) > 0 {
		finish = "tool_calls"
	}
	send(map[string]any{}, finish, map[string]int{
		"prompt_tokens":     1200,
		"completion_tokens": 34,
		"total_tokens":      1234,
	})

	fmt.Fprint(w, "data: [DONE]\n\n")
	flusher.Flush()
}

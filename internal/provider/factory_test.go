package provider_test

import (
	"context"
	"errors"
	"io"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/dhth/agx/internal/config"
	"github.com/dhth/agx/internal/provider"
	"github.com/dhth/agx/internal/tool"
	"github.com/dhth/agx/pkg/types"
)

func drain(stream provider.Stream) []provider.Chunk {
	defer stream.Close()
	var chunks []provider.Chunk
	for {
		c, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			return chunks
		}
		Expect(err).NotTo(HaveOccurred())
		chunks = append(chunks, c)
	}
}

func textOf(chunks []provider.Chunk) string {
	var s string
	for _, c := range chunks {
		if c.Kind == provider.ChunkText {
			s += c.Text
		}
	}
	return s
}

func toolCallsOf(chunks []provider.Chunk) []*types.ToolCallPart {
	var calls []*types.ToolCallPart
	for _, c := range chunks {
		if c.Kind == provider.ChunkToolCall {
			calls = append(calls, c.ToolCall)
		}
	}
	return calls
}

var _ = Describe("New", func() {
	var (
		ctx    context.Context
		server *MockLLMServer
	)

	BeforeEach(func() {
		ctx = context.Background()
		server = NewMockLLMServer(map[string]MockResponse{
			"hello": {Content: "Hello from the mock."},
			"readme": {
				Content: "Let me look.",
				ToolCalls: []MockToolCall{
					{ID: "call_1", Name: tool.NameReadFile, Arguments: `{"path":"README.md"}`},
					{ID: "call_2", Name: tool.NameReadDir, Arguments: `{"path":""}`},
				},
			},
		}, "I understand.")
	})

	AfterEach(func() {
		server.Close()
	})

	newProvider := func(id string) provider.Provider {
		p, err := provider.New(ctx, &config.Config{
			Provider: id,
			APIKey:   "test-key",
			Model:    "mock-model",
			BaseURL:  server.URL(),
		}, tool.Definitions())
		Expect(err).NotTo(HaveOccurred())
		return p
	}

	Describe("openai", func() {
		It("streams response text and ends with a done chunk", func() {
			p := newProvider(config.ProviderOpenAI)
			Expect(p.ID()).To(Equal("openai"))
			Expect(p.Model()).To(Equal("mock-model"))

			stream, err := p.Stream(ctx, &provider.Request{
				System: "you are a test",
				Prompt: types.UserText("hello there"),
			})
			Expect(err).NotTo(HaveOccurred())

			chunks := drain(stream)
			Expect(textOf(chunks)).To(Equal("Hello from the mock."))
			Expect(chunks[len(chunks)-1].Kind).To(Equal(provider.ChunkDone))
		})

		It("assembles streamed tool call fragments", func() {
			p := newProvider(config.ProviderOpenAI)
			stream, err := p.Stream(ctx, &provider.Request{Prompt: types.UserText("summarize the readme")})
			Expect(err).NotTo(HaveOccurred())

			chunks := drain(stream)
			Expect(textOf(chunks)).To(Equal("Let me look."))

			calls := toolCallsOf(chunks)
			Expect(calls).To(HaveLen(2))
			Expect(calls[0].ID).To(Equal("call_1"))
			Expect(calls[0].Name).To(Equal(tool.NameReadFile))
			Expect(calls[0].Arguments).To(Equal(`{"path":"README.md"}`))
			Expect(calls[1].Name).To(Equal(tool.NameReadDir))
		})

		It("sends the preamble first and advertises every tool", func() {
			p := newProvider(config.ProviderOpenAI)
			stream, err := p.Stream(ctx, &provider.Request{
				System:  "preamble",
				History: []types.Message{types.UserText("earlier"), types.Assistant("ok", nil)},
				Prompt:  types.UserText("hello"),
			})
			Expect(err).NotTo(HaveOccurred())
			drain(stream)

			reqs := server.RequestsTo("/chat/completions")
			if len(reqs) == 0 {
				reqs = server.RequestsTo("/v1/chat/completions")
			}
			Expect(reqs).To(HaveLen(1))

			messages := reqs[0].Body["messages"].([]any)
			Expect(messages).To(HaveLen(4))
			first := messages[0].(map[string]any)
			Expect(first["role"]).To(Equal("system"))
			Expect(first["content"]).To(Equal("preamble"))

			Expect(reqs[0].Body["tools"]).To(HaveLen(len(tool.Definitions())))
			Expect(reqs[0].Body["stream"]).To(BeTrue())
		})
	})

	Describe("github-copilot", func() {
		var original string

		BeforeEach(func() {
			original = provider.CopilotTokenURL
			provider.CopilotTokenURL = server.URL() + "/copilot_internal/v2/token"
		})

		AfterEach(func() {
			provider.CopilotTokenURL = original
		})

		It("exchanges the token and sends editor headers", func() {
			p, err := provider.New(ctx, &config.Config{
				Provider: config.ProviderGitHubCopilot,
				APIKey:   "gho-test",
				Model:    "gpt-4.1",
			}, nil)
			Expect(err).NotTo(HaveOccurred())

			stream, err := p.Stream(ctx, &provider.Request{Prompt: types.UserText("hello")})
			Expect(err).NotTo(HaveOccurred())
			Expect(textOf(drain(stream))).To(Equal("Hello from the mock."))

			exchange := server.RequestsTo("/copilot_internal/v2/token")
			Expect(exchange).To(HaveLen(1))
			Expect(exchange[0].Headers.Get("Authorization")).To(Equal("Bearer gho-test"))

			completions := server.RequestsTo("/chat/completions")
			Expect(completions).To(HaveLen(1))
			headers := completions[0].Headers
			Expect(headers.Get("Authorization")).To(Equal("Bearer copilot-session-token"))
			Expect(headers.Get("User-Agent")).To(Equal("GitHubCopilotChat/0.32.4"))
			Expect(headers.Get("Editor-Version")).To(Equal("vscode/1.105.1"))
			Expect(headers.Get("Editor-Plugin-Version")).To(Equal("copilot-chat/0.32.4"))
			Expect(headers.Get("Copilot-Integration-Id")).To(Equal("vscode-chat"))
		})

		It("fails when the exchange is rejected", func() {
			_, err := provider.New(ctx, &config.Config{
				Provider: config.ProviderGitHubCopilot,
				Model:    "gpt-4.1",
			}, nil)
			Expect(err).To(MatchError(ContainSubstring("short lived GitHub Copilot token")))
		})
	})

	Describe("anthropic", func() {
		It("streams text with the large output budget", func() {
			p := newProvider(config.ProviderAnthropic)
			stream, err := p.Stream(ctx, &provider.Request{
				System: "preamble",
				Prompt: types.UserText("hello"),
			})
			Expect(err).NotTo(HaveOccurred())

			chunks := drain(stream)
			Expect(textOf(chunks)).To(Equal("Hello from the mock."))
			Expect(chunks[len(chunks)-1].Kind).To(Equal(provider.ChunkDone))

			reqs := server.RequestsTo("/v1/messages")
			Expect(reqs).To(HaveLen(1))
			Expect(reqs[0].Body["max_tokens"]).To(BeNumerically("==", 50000))
		})
	})

	It("rejects unknown providers", func() {
		_, err := provider.New(ctx, &config.Config{Provider: "cohere", Model: "m"}, nil)
		Expect(err).To(MatchError(ContainSubstring(`invalid provider "cohere"`)))
	})
})

package session_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"time"

	"github.com/cenkalti/backoff/v4"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/onsi/gomega/gbytes"

	"github.com/dhth/agx/internal/cancel"
	"github.com/dhth/agx/internal/config"
	"github.com/dhth/agx/internal/event"
	"github.com/dhth/agx/internal/permission"
	"github.com/dhth/agx/internal/provider"
	"github.com/dhth/agx/internal/session"
	"github.com/dhth/agx/internal/tool"
	"github.com/dhth/agx/pkg/types"
)

func drainKinds(ch <-chan event.Event) []event.Kind {
	var kinds []event.Kind
	for {
		select {
		case e := <-ch:
			kinds = append(kinds, e.Kind)
		default:
			return kinds
		}
	}
}

func resultsOf(msg types.Message) []string {
	var out []string
	for _, r := range msg.ToolResults() {
		out = append(out, r.Content)
	}
	return out
}

var _ = Describe("Engine", func() {
	var (
		ctx        context.Context
		dir        string
		chatsDir   string
		prov       *scriptedProvider
		prompter   *scriptedPrompter
		coord      *cancel.Coordinator
		bus        *event.Bus
		events     <-chan event.Event
		unsub      func()
		out        *gbytes.Buffer
		record     *permission.Record
		skipHITL   bool
		engine     *session.Engine
		transcript *session.Transcript
	)

	BeforeEach(func() {
		ctx = context.Background()
		dir = GinkgoT().TempDir()
		chatsDir = GinkgoT().TempDir()
		prov = &scriptedProvider{}
		prompter = &scriptedPrompter{}
		coord = cancel.New()
		bus = event.NewBus(1024)
		events, unsub = bus.Subscribe()
		out = gbytes.NewBuffer()
		record = permission.NewRecord(nil)
		skipHITL = false
	})

	JustBeforeEach(func() {
		sandbox := tool.NewSandbox(dir, config.DefaultProtectedPaths)
		gate := permission.NewGate(record, sandbox, prompter, out, permission.WithSkipConfirmation(skipHITL))
		transcript = session.NewTranscript(chatsDir, time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC))
		engine = session.NewEngine(session.Config{
			Provider:   prov,
			Sandbox:    sandbox,
			Gate:       gate,
			Cancel:     coord,
			Bus:        bus,
			Transcript: transcript,
			ProjectDir: dir,
			Out:        out,
			NewBackOff: func() backoff.BackOff { return backoff.NewConstantBackOff(time.Millisecond) },
		})
	})

	AfterEach(func() {
		unsub()
		bus.Close()
	})

	expectPaired := func() {
		Expect(types.UnansweredToolCalls(engine.History())).To(BeEmpty())
	}

	Describe("a text-only turn", func() {
		BeforeEach(func() {
			prov.replies = []reply{textReply("Hi there.")}
		})

		It("commits the prompt and the response", func() {
			engine.RunTurn(ctx, "hello")

			history := engine.History()
			Expect(history).To(HaveLen(2))
			Expect(history[0].Role).To(Equal(types.RoleUser))
			Expect(history[0].Text()).To(Equal("hello"))
			Expect(history[1].Role).To(Equal(types.RoleAssistant))
			Expect(history[1].Text()).To(Equal("Hi there."))
			Expect(engine.Tokens()).To(Equal(1234))
			Expect(out).To(gbytes.Say("Hi there."))
		})

		It("publishes events in order", func() {
			engine.RunTurn(ctx, "hello")

			Expect(drainKinds(events)).To(Equal([]event.Kind{
				event.KindLLMRequest,
				event.KindAssistantText,
				event.KindStreamComplete,
				event.KindTurnComplete,
			}))
		})

		It("sends the preamble with the request", func() {
			engine.RunTurn(ctx, "hello")

			reqs := prov.Requests()
			Expect(reqs).To(HaveLen(1))
			Expect(reqs[0].System).To(HavePrefix(session.SystemPrompt()))
			Expect(reqs[0].System).To(ContainSubstring("Current directory: " + dir))
			Expect(reqs[0].History).To(BeEmpty())
			Expect(reqs[0].Prompt.Text()).To(Equal("hello"))
		})

		It("writes a transcript snapshot", func() {
			engine.RunTurn(ctx, "hello")

			snap, err := session.LatestSnapshot(ctx, chatsDir, transcript.Session())
			Expect(err).NotTo(HaveOccurred())
			Expect(snap.Turn).To(Equal(1))
			Expect(snap.History).To(HaveLen(2))
			Expect(snap.Tokens).To(Equal(1234))
		})
	})

	Describe("a tool round trip", func() {
		BeforeEach(func() {
			Expect(os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("remember the milk"), 0o644)).To(Succeed())
			prov.replies = []reply{
				callsReply("Let me read it.", call("c1", tool.NameReadFile, `{"path":"notes.txt"}`)),
				textReply("It says to remember the milk."),
			}
		})

		It("answers the call and asks the model again", func() {
			engine.RunTurn(ctx, "what do my notes say?")

			reqs := prov.Requests()
			Expect(reqs).To(HaveLen(2))
			Expect(resultsOf(reqs[1].Prompt)).To(Equal([]string{"remember the milk"}))
			Expect(reqs[1].History).To(HaveLen(2))

			history := engine.History()
			Expect(history).To(HaveLen(4))
			Expect(history[1].ToolCalls()).To(HaveLen(1))
			Expect(history[3].Text()).To(Equal("It says to remember the milk."))
			Expect(prompter.Asked()).To(BeZero())
			expectPaired()
		})

		It("publishes tool events", func() {
			engine.RunTurn(ctx, "what do my notes say?")

			kinds := drainKinds(events)
			Expect(kinds).To(ContainElements(event.KindToolCall, event.KindToolResult))
			Expect(kinds[len(kinds)-1]).To(Equal(event.KindTurnComplete))
		})
	})

	Describe("rejection", func() {
		BeforeEach(func() {
			prov.replies = []reply{callsReply("",
				call("c1", tool.NameCreateFile, `{"path":"a.txt","contents":"a"}`),
				call("c2", tool.NameCreateFile, `{"path":"b.txt","contents":"b"}`),
				call("c3", tool.NameReadDir, `{"path":""}`),
			)}
			prompter.answers = []string{"n"}
		})

		It("skips the rest of the batch and ends the turn", func() {
			engine.RunTurn(ctx, "make two files")

			Expect(prov.RequestCount()).To(Equal(1))
			Expect(out).To(gbytes.Say("conversation stopped"))

			history := engine.History()
			Expect(history).To(HaveLen(3))
			Expect(resultsOf(history[2])).To(Equal([]string{
				"user rejected tool call",
				"tool call skipped because user rejected a previous tool call",
				"tool call skipped because user rejected a previous tool call",
			}))
			Expect(filepath.Join(dir, "a.txt")).NotTo(BeAnExistingFile())
			Expect(filepath.Join(dir, "b.txt")).NotTo(BeAnExistingFile())
			expectPaired()
		})
	})

	Describe("feedback", func() {
		BeforeEach(func() {
			prov.replies = []reply{
				callsReply("",
					call("c1", tool.NameCreateFile, `{"path":"a.txt","contents":"a"}`),
					call("c2", tool.NameRunCommand, `{"command":"ls"}`),
				),
				textReply("Understood."),
			}
			prompter.answers = []string{"call it alpha.txt"}
		})

		It("sends the feedback to the model", func() {
			engine.RunTurn(ctx, "make a file")

			reqs := prov.Requests()
			Expect(reqs).To(HaveLen(2))
			Expect(resultsOf(reqs[1].Prompt)).To(Equal([]string{
				"user rejected tool call with feedback: call it alpha.txt",
				"tool call skipped because user provided feedback on a previous tool call",
			}))
			Expect(out).To(gbytes.Say("tool call rejected; providing feedback to LLM"))
			Expect(prompter.Asked()).To(Equal(1))
			expectPaired()
		})
	})

	Describe("approval", func() {
		BeforeEach(func() {
			prov.replies = []reply{
				callsReply("",
					call("c1", tool.NameCreateFile, `{"path":"a.txt","contents":"a"}`),
					call("c2", tool.NameCreateFile, `{"path":"b.txt","contents":"b"}`),
				),
				textReply("Done."),
			}
			prompter.answers = []string{"a"}
		})

		It("asks once for a batch of file changes", func() {
			engine.RunTurn(ctx, "make two files")

			Expect(prompter.Asked()).To(Equal(1))
			Expect(filepath.Join(dir, "a.txt")).To(BeAnExistingFile())
			Expect(filepath.Join(dir, "b.txt")).To(BeAnExistingFile())
			Expect(engine.Approvals().FileChangesApproved()).To(BeTrue())
			expectPaired()
		})
	})

	Describe("per-call failures", func() {
		BeforeEach(func() {
			prov.replies = []reply{
				callsReply("",
					call("c1", "read_fil", `{"path":"x"}`),
					call("c2", tool.NameReadFile, `{"path":"../outside"}`),
					call("c3", tool.NameEditFile, `{"path":"missing.txt","old_str":"a","new_str":"b"}`),
					call("c4", tool.NameReadDir, `{}`),
				),
				textReply("ok"),
			}
		})

		It("reports each failure and keeps going", func() {
			engine.RunTurn(ctx, "try things")

			reqs := prov.Requests()
			Expect(reqs).To(HaveLen(2))

			results := resultsOf(reqs[1].Prompt)
			Expect(results).To(HaveLen(4))
			Expect(results[0]).To(HavePrefix("failed to parse tool call: unknown tool: read_fil"))
			Expect(results[0]).To(ContainSubstring(`did you mean "read_file"`))
			Expect(results[1]).To(HavePrefix("error: "))
			Expect(results[2]).To(Equal("error: file does not exist"))
			Expect(results[3]).To(HavePrefix("["))

			Expect(prompter.Asked()).To(BeZero())
			expectPaired()
		})
	})

	Describe("the command deny-list", func() {
		BeforeEach(func() {
			record = permission.NewRecord([]permission.CmdPattern{{Binary: "rm"}})
			prov.replies = []reply{
				callsReply("", call("c1", tool.NameRunCommand, `{"command":"rm -rf build"}`)),
				textReply("ok"),
			}
		})

		It("overrides a recorded approval", func() {
			engine.RunTurn(ctx, "clean up")

			reqs := prov.Requests()
			Expect(reqs).To(HaveLen(2))
			Expect(resultsOf(reqs[1].Prompt)).To(Equal([]string{"error: command contains a forbidden pattern: rm -rf"}))
			Expect(prompter.Asked()).To(BeZero())
		})
	})

	Describe("skipping confirmation", func() {
		BeforeEach(func() {
			skipHITL = true
			prov.replies = []reply{
				callsReply("", call("c1", tool.NameRunCommand, `{"command":"echo hi"}`)),
				textReply("ok"),
			}
		})

		It("runs commands without asking", func() {
			engine.RunTurn(ctx, "say hi")

			results := resultsOf(prov.Requests()[1].Prompt)
			Expect(results).To(HaveLen(1))
			Expect(results[0]).To(ContainSubstring(`"stdout":"hi\n"`))
			Expect(prompter.Asked()).To(BeZero())
		})
	})

	Describe("interrupting the stream", func() {
		BeforeEach(func() {
			prov.replies = []reply{{
				chunks: []provider.Chunk{{Kind: provider.ChunkText, Text: "Thinking about"}},
				hang:   true,
			}}
		})

		It("discards the prompt", func() {
			done := make(chan struct{})
			go func() {
				defer close(done)
				engine.RunTurn(ctx, "long question")
			}()

			Eventually(prov.RequestCount).Should(Equal(1))
			Eventually(out).Should(gbytes.Say("Thinking about"))
			Expect(engine.Cancel()).To(BeTrue())
			Eventually(done).Should(BeClosed())

			Expect(out).To(gbytes.Say("interrupted \\(prompt discarded\\)"))
			Expect(engine.History()).To(BeEmpty())
			Expect(drainKinds(events)).To(ContainElement(event.KindInterrupted))
		})

		It("keeps results already owed to the model", func() {
			prov.replies = []reply{
				callsReply("", call("c1", tool.NameReadDir, `{}`)),
				{hang: true},
			}

			done := make(chan struct{})
			go func() {
				defer close(done)
				engine.RunTurn(ctx, "look around")
			}()

			Eventually(prov.RequestCount).Should(Equal(2))
			engine.Cancel()
			Eventually(done).Should(BeClosed())

			history := engine.History()
			Expect(history).To(HaveLen(3))
			Expect(history[2].ToolResults()).To(HaveLen(1))
			expectPaired()
		})
	})

	Describe("interrupting a running command", func() {
		BeforeEach(func() {
			prov.replies = []reply{callsReply("",
				call("c1", tool.NameRunCommand, `{"command":"sleep 10"}`),
				call("c2", tool.NameReadDir, `{}`),
			)}
			prompter.answers = []string{"y"}
			prompter.afterAnswer = func() {
				time.Sleep(200 * time.Millisecond)
				coord.Cancel()
			}
		})

		It("answers every call and does not ask the model again", func() {
			start := time.Now()
			engine.RunTurn(ctx, "wait a while")
			Expect(time.Since(start)).To(BeNumerically("<", 5*time.Second))

			Expect(prov.RequestCount()).To(Equal(1))
			Expect(out).To(gbytes.Say("interrupted"))

			history := engine.History()
			Expect(history).To(HaveLen(3))
			Expect(resultsOf(history[2])).To(Equal([]string{
				"tool call interrupted by user",
				"tool call skipped because user interrupted a previous tool call",
			}))
			Expect(drainKinds(events)).To(ContainElement(event.KindInterrupted))
			expectPaired()
		})

		It("clears the interrupt for the next turn", func() {
			engine.RunTurn(ctx, "wait a while")
			Expect(coord.IsCancelled()).To(BeTrue())

			prov.replies = []reply{textReply("fresh")}
			engine.RunTurn(ctx, "next")
			Expect(coord.IsCancelled()).To(BeFalse())
			Expect(engine.History()[len(engine.History())-1].Text()).To(Equal("fresh"))
		})
	})

	Describe("an interrupt between calls", func() {
		BeforeEach(func() {
			record.ApproveFileChanges()
			prov.replies = []reply{callsReply("",
				call("c1", tool.NameRunCommand, `{"command":"touch ran.txt"}`),
				call("c2", tool.NameCreateFile, `{"path":"later.txt","contents":"x"}`),
			)}
			prompter.answers = []string{"y"}
			prompter.onAnswer = func() { coord.Cancel() }
		})

		It("runs nothing once the interrupt is pending", func() {
			engine.RunTurn(ctx, "do two things")

			Expect(prov.RequestCount()).To(Equal(1))
			Expect(filepath.Join(dir, "ran.txt")).NotTo(BeAnExistingFile())
			Expect(filepath.Join(dir, "later.txt")).NotTo(BeAnExistingFile())

			history := engine.History()
			Expect(history).To(HaveLen(3))
			Expect(resultsOf(history[2])).To(Equal([]string{
				"tool call interrupted by user",
				"tool call skipped because user interrupted a previous tool call",
			}))
			Expect(drainKinds(events)).To(ContainElement(event.KindInterrupted))
			expectPaired()
		})
	})

	Describe("stream failures", func() {
		It("drops a turn whose stream breaks", func() {
			prov.replies = []reply{{
				chunks:  []provider.Chunk{{Kind: provider.ChunkText, Text: "partial"}},
				recvErr: errors.New("connection reset"),
			}}

			engine.RunTurn(ctx, "hello")

			Expect(engine.History()).To(BeEmpty())
			Expect(out).To(gbytes.Say("error: couldn't read completion stream: connection reset"))
		})

		It("retries opening the stream", func() {
			prov.replies = []reply{
				{openErr: errors.New("503")},
				{openErr: errors.New("503")},
				textReply("finally"),
			}

			engine.RunTurn(ctx, "hello")

			Expect(prov.RequestCount()).To(Equal(3))
			Expect(engine.History()).To(HaveLen(2))
		})

		It("gives up after the retries", func() {
			prov.replies = []reply{
				{openErr: errors.New("503")},
				{openErr: errors.New("503")},
				{openErr: errors.New("503")},
				textReply("never"),
			}

			engine.RunTurn(ctx, "hello")

			Expect(prov.RequestCount()).To(Equal(session.MaxStreamRetries + 1))
			Expect(engine.History()).To(BeEmpty())
			Expect(out).To(gbytes.Say("error: 503"))
		})
	})

	Describe("the round trip limit", func() {
		BeforeEach(func() {
			r := callsReply("", call("loop", tool.NameReadDir, `{}`))
			prov.fallback = &r
		})

		It("stops after the limit with every call answered", func() {
			engine.RunTurn(ctx, "never stop")

			Expect(prov.RequestCount()).To(Equal(session.MaxRoundTrips))
			Expect(engine.History()).To(HaveLen(2*session.MaxRoundTrips + 1))
			Expect(out).To(gbytes.Say("reached the limit of 30 model requests"))
			Expect(drainKinds(events)).To(ContainElement(event.KindTurnComplete))
		})
	})

	Describe("NewSession", func() {
		BeforeEach(func() {
			prov.replies = []reply{textReply("one"), textReply("two")}
		})

		It("starts from an empty history", func() {
			engine.RunTurn(ctx, "first")
			Expect(engine.History()).To(HaveLen(2))
			first := transcript.Session()

			engine.NewSession()
			Expect(engine.History()).To(BeEmpty())
			Expect(engine.Tokens()).To(BeZero())
			Expect(drainKinds(events)).To(ContainElement(event.KindNewSession))

			engine.RunTurn(ctx, "second")
			Expect(prov.Requests()[1].History).To(BeEmpty())

			sessions, err := session.ListSessions(ctx, chatsDir)
			Expect(err).NotTo(HaveOccurred())
			Expect(sessions).To(ContainElement(first))
		})
	})
})

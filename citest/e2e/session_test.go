package e2e_test

import (
	"context"
	"strings"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/onsi/gomega/gbytes"

	"github.com/dhth/agx/citest/testutil"
	"github.com/dhth/agx/internal/app"
	"github.com/dhth/agx/internal/config"
	"github.com/dhth/agx/internal/permission"
	"github.com/dhth/agx/internal/session"
)

var _ = Describe("Interactive sessions", func() {
	var (
		project  *testutil.Project
		stateDir string
		out      *gbytes.Buffer
		before   int
	)

	BeforeEach(func() {
		var err error
		project, err = testutil.NewProject(map[string]string{
			"README.md": "# Demo\n",
		})
		Expect(err).NotTo(HaveOccurred())
		stateDir = GinkgoT().TempDir()
		out = gbytes.NewBuffer()
		before = len(mockLLM.Requests())
	})

	AfterEach(func() {
		project.Cleanup()
	})

	run := func(lines ...string) {
		cfg := &config.Config{
			ProjectDir:     project.Dir,
			Provider:       config.ProviderOpenAI,
			APIKey:         "test-key",
			Model:          "mock-model",
			BaseURL:        mockLLM.URL(),
			LogLevel:       "ERROR",
			ProtectedPaths: config.DefaultProtectedPaths,
		}
		a, err := app.New(context.Background(), app.Options{
			Config: cfg,
			Paths:  &config.Paths{State: stateDir},
			In:     strings.NewReader(strings.Join(lines, "\n") + "\n"),
			Out:    out,
		})
		Expect(err).NotTo(HaveOccurred())
		defer a.Close()

		done := make(chan error, 1)
		go func() { done <- a.Run(context.Background()) }()
		Eventually(done, 10*time.Second).Should(Receive(BeNil()))
	}

	requests := func() []testutil.MockRequest {
		return mockLLM.Requests()[before:]
	}

	It("streams a plain answer", func() {
		run("hello", "/quit")

		Expect(string(out.Contents())).To(ContainSubstring("Hello! How can I help?"))
		Expect(string(out.Contents())).To(ContainSubstring("[openai/mock-model]  " + project.Dir))

		reqs := requests()
		Expect(reqs).To(HaveLen(1))
		Expect(reqs[0].Stream).To(BeTrue())
		Expect(reqs[0].Tools).To(ConsistOf("create_file", "edit_file", "read_file", "read_dir", "run_cmd"))
		Expect(reqs[0].Messages[0].Role).To(Equal("system"))
		Expect(reqs[0].Messages[0].Content).To(ContainSubstring("Current directory: " + project.Dir))
	})

	It("creates a file after confirmation", func() {
		run("create a greeting", "y", "/quit")

		content, err := project.ReadFile("greeting.txt")
		Expect(err).NotTo(HaveOccurred())
		Expect(content).To(Equal("hello world\n"))

		got := string(out.Contents())
		Expect(got).To(ContainSubstring("[request for tool-call]"))
		Expect(got).To(ContainSubstring("Created greeting.txt."))

		reqs := requests()
		Expect(reqs).To(HaveLen(2))
		last := reqs[1].Messages[len(reqs[1].Messages)-1]
		Expect(last.Role).To(Equal("tool"))
		Expect(last.ToolCallID).NotTo(BeEmpty())
	})

	It("stops the conversation when a change is rejected", func() {
		run("create a greeting", "n", "/quit")

		Expect(project.Exists("greeting.txt")).To(BeFalse())
		Expect(string(out.Contents())).To(ContainSubstring("conversation stopped"))
		Expect(requests()).To(HaveLen(1))
	})

	It("reads the project without asking", func() {
		run("list the project", "/quit")

		got := string(out.Contents())
		Expect(got).NotTo(ContainSubstring("[request for tool-call]"))
		Expect(got).To(ContainSubstring("The project has a README."))
	})

	It("persists a command approval", func() {
		run("run the tests", "a", "run the tests", "/quit")

		got := string(out.Contents())
		Expect(strings.Count(got, "[request for tool-call]")).To(Equal(1))
		Expect(strings.Count(got, "All tests passed.")).To(Equal(2))

		patterns, err := permission.NewStore(project.Dir).Load(context.Background())
		Expect(err).NotTo(HaveOccurred())
		Expect(patterns).To(HaveLen(1))
		Expect(patterns[0].Binary).To(Equal("echo"))
	})

	It("refuses forbidden commands without prompting", func() {
		run("delete everything", "/quit")

		got := string(out.Contents())
		Expect(got).NotTo(ContainSubstring("[request for tool-call]"))
		Expect(got).To(ContainSubstring("I am not allowed to do that."))
		Expect(project.Exists("README.md")).To(BeTrue())
	})

	It("sends AGENTS.md with the preamble", func() {
		Expect(project.WriteFile("AGENTS.md", "Always answer in haiku.\n")).To(Succeed())

		run("hello", "/quit")

		reqs := requests()
		Expect(reqs).To(HaveLen(1))
		Expect(reqs[0].Messages[0].Content).To(ContainSubstring("The following is context specific to this project:\n\nAlways answer in haiku."))
	})

	It("records a transcript per turn", func() {
		run("hello", "hello", "/quit")

		chatsDir := (&config.Paths{State: stateDir}).ChatsDir(project.Dir)
		sessions, err := session.ListSessions(context.Background(), chatsDir)
		Expect(err).NotTo(HaveOccurred())
		Expect(sessions).To(HaveLen(1))

		snap, err := session.LatestSnapshot(context.Background(), chatsDir, sessions[0])
		Expect(err).NotTo(HaveOccurred())
		Expect(snap.Turn).To(Equal(2))
		Expect(snap.History).To(HaveLen(4))
	})

	It("keeps input history", func() {
		run("hello", "/help", "/quit")

		history, err := testutil.ReadText((&config.Paths{State: stateDir}).HistoryFile(project.Dir))
		Expect(err).NotTo(HaveOccurred())
		Expect(history).To(Equal("hello\n"))
	})
})

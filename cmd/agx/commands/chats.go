package commands

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/dhth/agx/internal/config"
	"github.com/dhth/agx/internal/session"
	"github.com/dhth/agx/pkg/types"
)

// maxResultPreview caps how much of a tool result "chats show" prints.
const maxResultPreview = 200

var chatsCmd = &cobra.Command{
	Use:   "chats",
	Short: "List recorded chats for this project",
	RunE:  runChats,
}

var chatsShowCmd = &cobra.Command{
	Use:   "show <chat>",
	Short: "Print the latest snapshot of a chat",
	Args:  cobra.ExactArgs(1),
	RunE:  runChatsShow,
}

func init() {
	chatsCmd.AddCommand(chatsShowCmd)
}

func chatsDir() (string, error) {
	workDir, err := GetWorkDir(projectDir)
	if err != nil {
		return "", err
	}
	return config.GetPaths().ChatsDir(workDir), nil
}

func runChats(cmd *cobra.Command, args []string) error {
	dir, err := chatsDir()
	if err != nil {
		return err
	}

	sessions, err := session.ListSessions(cmd.Context(), dir)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if len(sessions) == 0 {
		fmt.Fprintln(out, "no chats recorded for this project")
		return nil
	}
	for _, s := range sessions {
		fmt.Fprintln(out, s)
	}
	return nil
}

func runChatsShow(cmd *cobra.Command, args []string) error {
	dir, err := chatsDir()
	if err != nil {
		return err
	}

	snap, err := session.LatestSnapshot(cmd.Context(), dir, args[0])
	if err != nil {
		return err
	}

	printSnapshot(cmd.OutOrStdout(), snap)
	return nil
}

func printSnapshot(w io.Writer, snap *session.Snapshot) {
	fmt.Fprintf(w, "chat %s, turn %d (saved %s)\n", snap.Session, snap.Turn, snap.SavedAt.Local().Format("2006-01-02 15:04:05"))
	if snap.Tokens > 0 {
		fmt.Fprintf(w, "~%s tokens\n", session.TokenRepr(snap.Tokens))
	}

	for _, msg := range snap.History {
		fmt.Fprintln(w)
		for _, part := range msg.Parts {
			switch p := part.(type) {
			case *types.TextPart:
				if msg.Role == types.RoleUser {
					fmt.Fprintln(w, color.HiBlueString("> %s", p.Text))
				} else {
					fmt.Fprintln(w, p.Text)
				}
			case *types.ReasoningPart:
				fmt.Fprintln(w, color.CyanString("[reasoning] %s", p.Text))
			case *types.ToolCallPart:
				fmt.Fprintln(w, color.YellowString("[tool-call] %s %s", p.Name, p.Arguments))
			case *types.ToolResultPart:
				fmt.Fprintln(w, color.GreenString("[tool-result] %s", preview(p.Content)))
			}
		}
	}
}

func preview(content string) string {
	content = strings.TrimSpace(content)
	if len(content) <= maxResultPreview {
		return content
	}
	return content[:maxResultPreview-3] + "..."
}

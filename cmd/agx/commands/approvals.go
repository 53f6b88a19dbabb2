package commands

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/dhth/agx/internal/permission"
)

var approvalsCmd = &cobra.Command{
	Use:   "approvals",
	Short: "Show commands approved for this project",
	Long: `Show the command patterns that run without confirmation in this project.
They are stored in .agx/config.local.json.`,
	RunE: runApprovals,
}

var approvalsResetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Forget all approved commands for this project",
	RunE:  runApprovalsReset,
}

func init() {
	approvalsCmd.AddCommand(approvalsResetCmd)
}

func runApprovals(cmd *cobra.Command, args []string) error {
	workDir, err := GetWorkDir(projectDir)
	if err != nil {
		return err
	}

	store := permission.NewStore(workDir)
	patterns, err := store.Load(cmd.Context())
	if err != nil {
		return err
	}

	printApprovals(cmd.OutOrStdout(), store.Path(), patterns)
	return nil
}

func printApprovals(w io.Writer, path string, patterns []permission.CmdPattern) {
	fmt.Fprintf(w, "approved commands (%s):", path)
	if len(patterns) == 0 {
		fmt.Fprintln(w, " none")
		return
	}
	fmt.Fprintln(w)
	for _, p := range patterns {
		fmt.Fprintf(w, "  - %s\n", p.String())
	}
}

func runApprovalsReset(cmd *cobra.Command, args []string) error {
	workDir, err := GetWorkDir(projectDir)
	if err != nil {
		return err
	}

	store := permission.NewStore(workDir)
	removed, err := store.Reset(cmd.Context())
	if err != nil {
		return err
	}
	if !removed {
		fmt.Fprintf(cmd.OutOrStdout(), "nothing to clear; %s does not exist\n", store.Path())
		return nil
	}

	fmt.Fprintf(cmd.OutOrStdout(), "cleared approved commands in %s\n", store.Path())
	return nil
}

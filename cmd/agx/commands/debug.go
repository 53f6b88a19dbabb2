package commands

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dhth/agx/internal/config"
	"github.com/dhth/agx/internal/permission"
)

var debugCmd = &cobra.Command{
	Use:   "debug",
	Short: "Debug utilities",
	Long:  `Debug utilities for troubleshooting agx configuration and setup.`,
}

var debugConfigCmd = &cobra.Command{
	Use:   "config",
	Short: "Show current configuration",
	RunE:  runDebugConfig,
}

var debugPathsCmd = &cobra.Command{
	Use:   "paths",
	Short: "Show system paths",
	RunE:  runDebugPaths,
}

func init() {
	debugCmd.AddCommand(debugConfigCmd)
	debugCmd.AddCommand(debugPathsCmd)
}

func runDebugConfig(cmd *cobra.Command, args []string) error {
	workDir, err := GetWorkDir(projectDir)
	if err != nil {
		return err
	}

	appConfig, err := config.Load(workDir)
	if err != nil {
		return err
	}
	if appConfig.APIKey != "" {
		appConfig.APIKey = "<redacted>"
	}

	data, err := json.MarshalIndent(appConfig, "", "  ")
	if err != nil {
		return err
	}

	fmt.Fprintln(cmd.OutOrStdout(), string(data))
	if err := appConfig.Validate(); err != nil {
		fmt.Fprintf(cmd.OutOrStdout(), "\ninvalid: %v\n", err)
	}
	return nil
}

func runDebugPaths(cmd *cobra.Command, args []string) error {
	workDir, err := GetWorkDir(projectDir)
	if err != nil {
		return err
	}
	paths := config.GetPaths()
	out := cmd.OutOrStdout()

	fmt.Fprintln(out, "agx paths:")
	fmt.Fprintln(out)
	fmt.Fprintf(out, "  Logs:          %s\n", paths.LogDir())
	fmt.Fprintf(out, "  Project logs:  %s\n", paths.ProjectLogDir(workDir))
	fmt.Fprintf(out, "  Chats:         %s\n", paths.ChatsDir(workDir))
	fmt.Fprintf(out, "  History:       %s\n", paths.HistoryFile(workDir))
	fmt.Fprintf(out, "  Approvals:     %s\n", permission.NewStore(workDir).Path())
	return nil
}

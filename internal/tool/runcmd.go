package tool

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"
	"unicode/utf8"
)

const (
	// SigkillTimeout is how long a cancelled command gets between SIGTERM and SIGKILL.
	SigkillTimeout = 200 * time.Millisecond
	// pipeDrainTimeout bounds waiting on output pipes held open by orphaned children.
	pipeDrainTimeout = time.Second
)

// BlockedCommandPatterns are substrings that make a command line invalid.
// This is a heuristic and not a security boundary.
var BlockedCommandPatterns = []string{
	"rm -rf",
	"sudo",
	"curl",
	"wget",
	"dd if=",
	"mkfs",
	"fdisk",
	"format",
	"deltree",
	"rmdir /s",
	"nc",
	"netcat",
	"telnet",
	"ssh-keygen",
	"passwd",
	"useradd",
	"userdel",
	"chmod 777",
	"chown root",
	"python -c",
	"perl -e",
	"ruby -e",
	"node -e",
}

type runCommandResponse struct {
	Success    bool   `json:"success"`
	StatusCode *int   `json:"status_code"`
	Stdout     string `json:"stdout"`
	Stderr     string `json:"stderr"`
}

func validateCommand(command string) error {
	if strings.TrimSpace(command) == "" {
		return newError(KindEmptyCommand, "command is empty")
	}
	for _, pattern := range BlockedCommandPatterns {
		if strings.Contains(command, pattern) {
			return newError(KindForbiddenCommand, fmt.Sprintf("command contains a forbidden pattern: %s", pattern))
		}
	}
	return nil
}

// runCommand runs the command through bash in the project directory. A
// non-zero exit status is a successful invocation; it is reported in the
// result. When ctx is cancelled the whole process group is terminated.
func (s *Sandbox) runCommand(ctx context.Context, i RunCommand) (*Result, error) {
	var stdout, stderr bytes.Buffer

	cmd := exec.Command("bash", "-c", i.Command)
	cmd.Dir = s.root
	cmd.Env = os.Environ()
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	cmd.WaitDelay = pipeDrainTimeout
	setProcessGroup(cmd)

	start := time.Now()
	if err := cmd.Start(); err != nil {
		return nil, wrapError(KindIO, "couldn't run command", err)
	}

	waitErr := make(chan error, 1)
	go func() { waitErr <- cmd.Wait() }()

	var err error
	select {
	case err = <-waitErr:
	case <-ctx.Done():
		killProcessGroup(cmd, waitErr)
		return nil, wrapError(KindIO, "command interrupted", ctx.Err())
	}

	var exitErr *exec.ExitError
	if err != nil && !errors.As(err, &exitErr) {
		return nil, wrapError(KindIO, "couldn't run command", err)
	}

	resp := runCommandResponse{
		Success: cmd.ProcessState.Success(),
		Stdout:  decodeOutput(stdout.Bytes(), "couldn't get command stdout"),
		Stderr:  decodeOutput(stderr.Bytes(), "couldn't get command stderr"),
	}
	if code := cmd.ProcessState.ExitCode(); code >= 0 {
		resp.StatusCode = &code
	}

	out, err := json.Marshal(resp)
	if err != nil {
		return nil, wrapError(KindIO, "couldn't serialise result", err)
	}

	summary := fmt.Sprintf("took %d ms", time.Since(start).Milliseconds())
	if resp.StatusCode != nil && *resp.StatusCode != 0 {
		summary += fmt.Sprintf("; exit code: %d", *resp.StatusCode)
	}

	return &Result{Output: string(out), Summary: summary, ExitCode: resp.StatusCode}, nil
}

func decodeOutput(b []byte, fallback string) string {
	if !utf8.Valid(b) {
		return fallback
	}
	return string(b)
}

package tool

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/dhth/agx/internal/logging"
)

// Result is the outcome of a successful invocation.
type Result struct {
	// Output is the text folded back into the conversation.
	Output string
	// Summary is a short status shown next to the invocation, e.g. "read 3 entries".
	Summary string
	// ExitCode is set for RunCommand.
	ExitCode *int
}

// Sandbox validates and executes invocations against one project directory.
type Sandbox struct {
	root      string
	protected []string
}

// NewSandbox creates a sandbox rooted at root. Paths matching any of the
// protected doublestar patterns may be read but never created or edited.
func NewSandbox(root string, protected []string) *Sandbox {
	return &Sandbox{root: root, protected: protected}
}

// Root returns the project directory.
func (s *Sandbox) Root() string {
	return s.root
}

// CheckPath rejects absolute paths and paths with a ".." component.
// The empty path and "." refer to the project directory itself.
func CheckPath(path string) error {
	if filepath.IsAbs(path) || strings.HasPrefix(path, "/") {
		return newError(KindOutsideWorkspace, "path is outside the workspace: absolute paths are not allowed")
	}
	for _, part := range strings.FieldsFunc(path, isSeparator) {
		if part == ".." {
			return newError(KindOutsideWorkspace, "path is outside the workspace: parent directory references are not allowed")
		}
	}
	return nil
}

func isSeparator(r rune) bool {
	return r == '/' || r == filepath.Separator
}

func (s *Sandbox) checkWritable(path string) error {
	if err := CheckPath(path); err != nil {
		return err
	}
	clean := filepath.ToSlash(filepath.Clean(path))
	for _, pattern := range s.protected {
		if ok, _ := doublestar.Match(pattern, clean); ok {
			return newError(KindProtectedPath, fmt.Sprintf("path is protected: %s", path))
		}
	}
	return nil
}

// Validate checks inv without touching the filesystem. A validation failure
// is never overridden by an approval.
func (s *Sandbox) Validate(inv Invocation) error {
	switch i := inv.(type) {
	case CreateFile:
		if i.Path == "" {
			return newError(KindInvalidInput, "invalid input provided: path cannot be empty")
		}
		return s.checkWritable(i.Path)
	case EditFile:
		if i.Path == "" {
			return newError(KindInvalidInput, "invalid input provided: path cannot be empty")
		}
		if i.OldStr == "" {
			return newError(KindInvalidInput, "invalid input provided: old_str cannot be empty")
		}
		if i.OldStr == i.NewStr {
			return newError(KindNoChangesRequested, "old string and new string are the same")
		}
		return s.checkWritable(i.Path)
	case ReadFile:
		if i.Path == "" {
			return newError(KindInvalidInput, "invalid input provided: path cannot be empty")
		}
		return CheckPath(i.Path)
	case ReadDir:
		return CheckPath(i.Path)
	case RunCommand:
		return validateCommand(i.Command)
	default:
		return newError(KindInvalidInput, fmt.Sprintf("unsupported invocation %T", inv))
	}
}

// Execute validates and runs inv. Cancelling ctx stops a running command.
func (s *Sandbox) Execute(ctx context.Context, inv Invocation) (*Result, error) {
	if err := s.Validate(inv); err != nil {
		return nil, err
	}

	logging.Debug().Str("tool", inv.Name()).Str("call", inv.Repr()).Msg("executing tool")

	switch i := inv.(type) {
	case CreateFile:
		return s.createFile(i)
	case EditFile:
		return s.editFile(i)
	case ReadFile:
		return s.readFile(i)
	case ReadDir:
		return s.readDir(i)
	case RunCommand:
		return s.runCommand(ctx, i)
	default:
		return nil, newError(KindInvalidInput, fmt.Sprintf("unsupported invocation %T", inv))
	}
}

// Preview renders what a mutating invocation will do: the full contents for
// CreateFile and a unified diff for EditFile. Other kinds have no preview.
func (s *Sandbox) Preview(inv Invocation) (string, error) {
	switch i := inv.(type) {
	case CreateFile:
		return i.Contents, nil
	case EditFile:
		before, after, err := s.planEdit(i)
		if err != nil {
			return "", err
		}
		return unifiedDiff(i.Path, before, after), nil
	default:
		return "", nil
	}
}

func (s *Sandbox) resolve(path string) string {
	return filepath.Join(s.root, path)
}

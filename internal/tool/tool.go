// Package tool implements the local capabilities the model can invoke:
// creating, editing and reading files, listing directories, and running
// shell commands inside the project directory.
package tool

import (
	"errors"
	"fmt"
)

// Tool names as exposed to the model.
const (
	NameCreateFile = "create_file"
	NameEditFile   = "edit_file"
	NameReadFile   = "read_file"
	NameReadDir    = "read_dir"
	NameRunCommand = "run_cmd"
)

// Names lists every tool the model can call.
var Names = []string{NameCreateFile, NameEditFile, NameReadFile, NameReadDir, NameRunCommand}

// Invocation is a parsed tool call. The set of implementations is closed:
// CreateFile, EditFile, ReadFile, ReadDir and RunCommand.
type Invocation interface {
	// Name returns the tool name the invocation was parsed from.
	Name() string
	// Repr returns a one-line description shown to the user.
	Repr() string

	invocation()
}

// CreateFile writes a new file. It never overwrites.
type CreateFile struct {
	Path     string `json:"path"`
	Contents string `json:"contents"`
}

// EditFile replaces every occurrence of OldStr with NewStr in an existing file.
type EditFile struct {
	Path   string `json:"path"`
	OldStr string `json:"old_str"`
	NewStr string `json:"new_str"`
}

// ReadFile returns the contents of a file.
type ReadFile struct {
	Path string `json:"path"`
}

// ReadDir lists the entries of a directory.
type ReadDir struct {
	Path string `json:"path"`
}

// RunCommand runs a command line through bash.
type RunCommand struct {
	Command string `json:"command"`
}

func (CreateFile) Name() string { return NameCreateFile }
func (EditFile) Name() string   { return NameEditFile }
func (ReadFile) Name() string   { return NameReadFile }
func (ReadDir) Name() string    { return NameReadDir }
func (RunCommand) Name() string { return NameRunCommand }

func (i CreateFile) Repr() string { return fmt.Sprintf("%s: %s", NameCreateFile, i.Path) }
func (i EditFile) Repr() string   { return fmt.Sprintf("%s: %s", NameEditFile, i.Path) }
func (i ReadFile) Repr() string   { return fmt.Sprintf("%s: %s", NameReadFile, i.Path) }
func (i RunCommand) Repr() string { return fmt.Sprintf("%s: %s", NameRunCommand, i.Command) }

func (i ReadDir) Repr() string {
	if i.Path == "" {
		return NameReadDir + ": ."
	}
	return fmt.Sprintf("%s: %s", NameReadDir, i.Path)
}

func (CreateFile) invocation() {}
func (EditFile) invocation()   {}
func (ReadFile) invocation()   {}
func (ReadDir) invocation()    {}
func (RunCommand) invocation() {}

// NeedsConfirmation reports whether inv mutates state and so goes through
// the confirmation gate.
func NeedsConfirmation(inv Invocation) bool {
	switch inv.(type) {
	case CreateFile, EditFile, RunCommand:
		return true
	default:
		return false
	}
}

// ErrorKind classifies tool failures.
type ErrorKind int

const (
	KindInvalidInput ErrorKind = iota
	KindOutsideWorkspace
	KindProtectedPath
	KindAlreadyExists
	KindIsADir
	KindNotAFile
	KindNotADir
	// KindNoChangesRequested means old_str equals new_str.
	KindNoChangesRequested
	// KindNothingChanged means old_str does not occur in the file.
	KindNothingChanged
	KindEmptyCommand
	KindForbiddenCommand
	KindIO
)

// Error is returned by validation and execution. Its message is what the
// model sees, prefixed with "error: ".
type Error struct {
	Kind ErrorKind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Msg, e.Err)
	}
	return e.Msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

func newError(kind ErrorKind, msg string) *Error {
	return &Error{Kind: kind, Msg: msg}
}

func wrapError(kind ErrorKind, msg string, err error) *Error {
	return &Error{Kind: kind, Msg: msg, Err: err}
}

// IsKind reports whether err is a tool *Error of the given kind.
func IsKind(err error, kind ErrorKind) bool {
	var te *Error
	return errors.As(err, &te) && te.Kind == kind
}

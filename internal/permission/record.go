package permission

import (
	"sort"
	"strings"
)

// Record holds the approvals granted during a session: a flag covering every
// file creation and edit, and a set of approved command patterns.
//
// A Record is owned by one session and is not safe for concurrent use.
type Record struct {
	fileChanges bool
	commands    map[CmdPattern]struct{}
}

// NewRecord creates a record seeded with previously persisted patterns.
// File changes always start unapproved.
func NewRecord(patterns []CmdPattern) *Record {
	r := &Record{commands: make(map[CmdPattern]struct{}, len(patterns))}
	for _, p := range patterns {
		r.commands[p] = struct{}{}
	}
	return r
}

// FileChangesApproved reports whether file creation and edits skip confirmation.
func (r *Record) FileChangesApproved() bool {
	return r.fileChanges
}

// ApproveFileChanges approves all file creation and edits for the session.
func (r *Record) ApproveFileChanges() {
	r.fileChanges = true
}

// IsCommandApproved reports whether every simple command in command matches
// an approved pattern, so "git status; rm -r src" needs both git/status and
// rm/-r. Commands that cannot be reduced to patterns are never approved.
func (r *Record) IsCommandApproved(command string) bool {
	if len(r.commands) == 0 {
		return false
	}
	approved := make([]CmdPattern, 0, len(r.commands))
	for p := range r.commands {
		approved = append(approved, p)
	}
	return coveredBy(command, approved)
}

// ApproveCommand adds the pattern of command to the record. It reports the
// pattern and whether it was newly added.
func (r *Record) ApproveCommand(command string) (CmdPattern, bool, error) {
	p, err := ParsePattern(command)
	if err != nil {
		return CmdPattern{}, false, err
	}
	if _, ok := r.commands[p]; ok {
		return p, false, nil
	}
	r.commands[p] = struct{}{}
	return p, true, nil
}

// Commands returns the approved patterns in display order.
func (r *Record) Commands() []CmdPattern {
	out := make([]CmdPattern, 0, len(r.commands))
	for p := range r.commands {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].String() < out[j].String()
	})
	return out
}

// Reset forgets every approval.
func (r *Record) Reset() {
	r.fileChanges = false
	r.commands = make(map[CmdPattern]struct{})
}

// String renders the record for the /approvals command.
func (r *Record) String() string {
	var sb strings.Builder
	sb.WriteString("approvals:\n")
	sb.WriteString("- create/edit files: ")
	if r.fileChanges {
		sb.WriteString("true\n")
	} else {
		sb.WriteString("false\n")
	}
	sb.WriteString("- approved commands: ")

	cmds := r.Commands()
	if len(cmds) == 0 {
		sb.WriteString("none\n")
		return sb.String()
	}
	for _, p := range cmds {
		sb.WriteString("\n  - ")
		sb.WriteString(p.String())
	}
	sb.WriteString("\n")
	return sb.String()
}

package permission

import (
	"errors"
	"fmt"
	"strings"

	"mvdan.cc/sh/v3/syntax"
)

// ErrEmptyCommand is returned when a command line holds no words.
var ErrEmptyCommand = errors.New("command is empty")

// CmdPattern is the coarse identity of a shell command: the binary and, when
// present, its first argument.
//
// A pattern without a first argument matches every invocation of the binary.
// A pattern with one matches only invocations sharing that exact argument.
type CmdPattern struct {
	Binary   string `json:"binary"`
	FirstArg string `json:"first_arg,omitempty"`
}

// ParsePattern reduces a shell command line to its CmdPattern.
//
// The first simple command of the line is used; for pipelines and lists
// that is the leftmost one ("git status && make" yields git/status). This
// is the pattern recorded on approval; checking a command line against
// recorded patterns looks at every simple command in it.
// Leading variable assignments count as words, so "FOO=1 make" does not
// reduce to make.
func ParsePattern(command string) (CmdPattern, error) {
	words, err := leadingWords(command)
	if err != nil {
		return CmdPattern{}, err
	}

	return patternOf(words), nil
}

func patternOf(words []string) CmdPattern {
	p := CmdPattern{Binary: words[0]}
	if len(words) > 1 {
		p.FirstArg = words[1]
	}
	return p
}

// Matches reports whether every simple command in command is covered by p.
func (p CmdPattern) Matches(command string) bool {
	return coveredBy(command, []CmdPattern{p})
}

// CommandPatterns reduces each simple command in a command line to its
// CmdPattern, in source order. Commands inside lists, pipelines, subshells
// and command substitutions are all included.
func CommandPatterns(command string) ([]CmdPattern, error) {
	file, err := parseCommand(command)
	if err != nil {
		return nil, err
	}

	var patterns []CmdPattern
	syntax.Walk(file, func(node syntax.Node) bool {
		if call, ok := node.(*syntax.CallExpr); ok {
			if words := callWords(call); len(words) > 0 && words[0] != "" {
				patterns = append(patterns, patternOf(words))
			}
		}
		return true
	})

	if len(patterns) == 0 {
		return nil, ErrEmptyCommand
	}
	return patterns, nil
}

// coveredBy reports whether each simple command in command matches one of
// approved.
func coveredBy(command string, approved []CmdPattern) bool {
	patterns, err := CommandPatterns(command)
	if err != nil {
		return false
	}
	for _, p := range patterns {
		ok := false
		for _, a := range approved {
			if a.covers(p) {
				ok = true
				break
			}
		}
		if !ok {
			return false
		}
	}
	return true
}

func (p CmdPattern) covers(other CmdPattern) bool {
	if p.Binary != other.Binary {
		return false
	}
	return p.FirstArg == "" || p.FirstArg == other.FirstArg
}

// String renders the pattern the way it is shown to users, e.g. "git commit .*".
func (p CmdPattern) String() string {
	if p.FirstArg != "" {
		return fmt.Sprintf("%s %s .*", p.Binary, p.FirstArg)
	}
	return fmt.Sprintf("%s .*", p.Binary)
}

func parseCommand(command string) (*syntax.File, error) {
	if strings.TrimSpace(command) == "" {
		return nil, ErrEmptyCommand
	}

	parser := syntax.NewParser(
		syntax.Variant(syntax.LangBash),
		syntax.KeepComments(false),
	)

	file, err := parser.Parse(strings.NewReader(command), "")
	if err != nil {
		return nil, fmt.Errorf("failed to parse command: %w", err)
	}
	if len(file.Stmts) == 0 {
		return nil, ErrEmptyCommand
	}
	return file, nil
}

func leadingWords(command string) ([]string, error) {
	file, err := parseCommand(command)
	if err != nil {
		return nil, err
	}

	cmd := file.Stmts[0].Cmd
	for {
		bin, ok := cmd.(*syntax.BinaryCmd)
		if !ok {
			break
		}
		cmd = bin.X.Cmd
	}

	call, ok := cmd.(*syntax.CallExpr)
	if !ok {
		return nil, fmt.Errorf("not a simple command: %q", command)
	}

	words := callWords(call)
	if len(words) == 0 || words[0] == "" {
		return nil, ErrEmptyCommand
	}
	return words, nil
}

// callWords returns the words of call, leading assignments included.
func callWords(call *syntax.CallExpr) []string {
	var words []string
	for _, assign := range call.Assigns {
		w := assign.Name.Value + "="
		if assign.Value != nil {
			w += wordToString(assign.Value)
		}
		words = append(words, w)
	}
	for _, arg := range call.Args {
		words = append(words, wordToString(arg))
	}
	return words
}

// wordToString converts a syntax.Word to a string.
func wordToString(word *syntax.Word) string {
	var sb strings.Builder
	for _, part := range word.Parts {
		switch p := part.(type) {
		case *syntax.Lit:
			sb.WriteString(p.Value)
		case *syntax.SglQuoted:
			sb.WriteString(p.Value)
		case *syntax.DblQuoted:
			for _, qp := range p.Parts {
				if lit, ok := qp.(*syntax.Lit); ok {
					sb.WriteString(lit.Value)
				}
			}
		case *syntax.ParamExp:
			// Variable expansion - return placeholder
			sb.WriteString("$" + p.Param.Value)
		case *syntax.CmdSubst:
			// Command substitution - ignore the content, mark as dynamic
			sb.WriteString("$()")
		}
	}
	return sb.String()
}

package tool

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/agnivade/levenshtein"
)

// ErrUnknownTool is returned by ParseCall for names outside Names.
var ErrUnknownTool = errors.New("unknown tool")

// ParseCall decodes a model tool call into an Invocation.
func ParseCall(name, arguments string) (Invocation, error) {
	if strings.TrimSpace(arguments) == "" {
		arguments = "{}"
	}

	var (
		inv Invocation
		err error
	)
	switch name {
	case NameCreateFile:
		var args CreateFile
		err = decodeArgs(arguments, &args)
		inv = args
	case NameEditFile:
		var args EditFile
		err = decodeArgs(arguments, &args)
		inv = args
	case NameReadFile:
		var args ReadFile
		err = decodeArgs(arguments, &args)
		inv = args
	case NameReadDir:
		var args ReadDir
		err = decodeArgs(arguments, &args)
		inv = args
	case NameRunCommand:
		var args RunCommand
		err = decodeArgs(arguments, &args)
		inv = args
	default:
		if s := suggest(name); s != "" {
			return nil, fmt.Errorf("%w: %s (did you mean %q?)", ErrUnknownTool, name, s)
		}
		return nil, fmt.Errorf("%w: %s", ErrUnknownTool, name)
	}

	if err != nil {
		return nil, err
	}
	return inv, nil
}

func decodeArgs(arguments string, v any) error {
	if err := json.Unmarshal([]byte(arguments), v); err != nil {
		return fmt.Errorf("invalid arguments: %w", err)
	}
	return nil
}

// suggest returns the closest known tool name, if any is close enough.
func suggest(name string) string {
	best, bestDist := "", 4
	for _, candidate := range Names {
		if d := levenshtein.ComputeDistance(name, candidate); d < bestDist {
			best, bestDist = candidate, d
		}
	}
	return best
}

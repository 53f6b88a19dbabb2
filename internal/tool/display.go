package tool

import (
	"fmt"
	"time"

	"github.com/fatih/color"
)

// StatusLine formats the line printed after an invocation finishes.
func StatusLine(inv Invocation, res *Result, err error, elapsed time.Duration) string {
	repr := color.CyanString("%s", inv.Repr())

	if err != nil {
		if _, ok := inv.(RunCommand); ok {
			return fmt.Sprintf("%s %s", repr, color.RedString("✗ (took %d ms)", elapsed.Milliseconds()))
		}
		return fmt.Sprintf("%s %s", repr, color.RedString("✗"))
	}

	return fmt.Sprintf("%s %s", repr, color.GreenString("✓ (%s)", res.Summary))
}

// ErrorContent is the text folded into the conversation for a failed invocation.
func ErrorContent(err error) string {
	return fmt.Sprintf("error: %s", err)
}

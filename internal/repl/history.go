package repl

import (
	"fmt"
	"os"
	"path/filepath"
)

// appendHistory adds one prompt to the project's input history file.
func appendHistory(path, prompt string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("couldn't create history directory: %w", err)
	}

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("couldn't open history file: %w", err)
	}
	defer f.Close()

	if _, err := fmt.Fprintln(f, prompt); err != nil {
		return fmt.Errorf("couldn't write history file: %w", err)
	}
	return nil
}

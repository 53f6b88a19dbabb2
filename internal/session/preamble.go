package session

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

//go:embed assets/system-prompt.txt
var systemPrompt string

const (
	// ProjectContextFile is read from the project root into the preamble.
	ProjectContextFile = "AGENTS.md"
	// MaxProjectContextSize is the largest AGENTS.md accepted.
	MaxProjectContextSize = 50 * 1024

	preambleTimeFormat = "Monday, January 02, 2006 15:04 UTC"
)

// ErrProjectContextTooLarge is returned for an AGENTS.md over MaxProjectContextSize.
var ErrProjectContextTooLarge = errors.New("AGENTS.md is too large; max size allowed is 50KB")

// SystemPrompt returns the built-in instructions sent ahead of every conversation.
func SystemPrompt() string {
	return systemPrompt
}

// BuildPreamble assembles the system message for one request.
func BuildPreamble(prompt, projectContext, projectDir string, now time.Time) string {
	if projectContext != "" {
		prompt = fmt.Sprintf("%s\n\nThe following is context specific to this project:\n\n%s", prompt, projectContext)
	}

	return fmt.Sprintf("%s\n\n---\nExtra information for you\nCurrent directory: %s\nCurrent date/time: %s\n",
		prompt,
		projectDir,
		now.UTC().Format(preambleTimeFormat),
	)
}

// ProjectContext holds the contents of the project's AGENTS.md. It is safe
// for concurrent use.
type ProjectContext struct {
	path string

	mu      sync.RWMutex
	content string
}

// LoadProjectContext reads AGENTS.md from projectDir. A missing file, or a
// directory in its place, yields an empty context.
func LoadProjectContext(projectDir string) (*ProjectContext, error) {
	c := &ProjectContext{path: filepath.Join(projectDir, ProjectContextFile)}
	if err := c.Reload(); err != nil {
		return nil, err
	}
	return c, nil
}

// Path returns the file the context is read from.
func (c *ProjectContext) Path() string {
	return c.path
}

// Content returns the current contents.
func (c *ProjectContext) Content() string {
	if c == nil {
		return ""
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.content
}

// Reload re-reads the file. On error the previous contents are kept.
func (c *ProjectContext) Reload() error {
	content, err := readProjectContext(c.path)
	if err != nil {
		return err
	}

	c.mu.Lock()
	c.content = content
	c.mu.Unlock()
	return nil
}

func readProjectContext(path string) (string, error) {
	info, err := os.Stat(path)
	if errors.Is(err, fs.ErrNotExist) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("couldn't determine metadata for %s: %w", ProjectContextFile, err)
	}
	if !info.Mode().IsRegular() {
		return "", nil
	}
	if info.Size() > MaxProjectContextSize {
		return "", ErrProjectContextTooLarge
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("couldn't read %s: %w", ProjectContextFile, err)
	}
	return strings.TrimSpace(string(data)), nil
}

// TokenRepr renders a token count the way the status line shows it:
// 950 stays "950", 12345 becomes "12.3k".
func TokenRepr(count int) string {
	if count >= 1000 {
		return fmt.Sprintf("%.1fk", float64(count)/1000)
	}
	return fmt.Sprintf("%d", count)
}

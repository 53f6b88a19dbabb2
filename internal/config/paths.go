package config

import (
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"unicode"
)

const appName = "agx"

// Paths contains the standard paths for agx data.
type Paths struct {
	State string // ~/.local/state/agx
}

// GetPaths returns the standard paths for agx data.
func GetPaths() *Paths {
	return &Paths{
		State: filepath.Join(getEnvOrDefault("XDG_STATE_HOME", defaultStateHome()), appName),
	}
}

// EnsurePaths creates all required directories.
func (p *Paths) EnsurePaths() error {
	return os.MkdirAll(p.State, 0o755)
}

// LogDir returns the directory holding the agx log file.
func (p *Paths) LogDir() string {
	return p.State
}

// ProjectLogDir returns the per-project directory for input history and chats.
func (p *Paths) ProjectLogDir(projectDir string) string {
	return filepath.Join(p.State, "projects", PathToDirname(projectDir))
}

// ChatsDir returns the directory holding chat transcripts for a project.
func (p *Paths) ChatsDir(projectDir string) string {
	return filepath.Join(p.ProjectLogDir(projectDir), "chats")
}

// HistoryFile returns the file prompts entered in a project are appended to.
func (p *Paths) HistoryFile(projectDir string) string {
	return filepath.Join(p.ProjectLogDir(projectDir), "history.txt")
}

// LocalConfigDir returns the project-local agx directory.
func LocalConfigDir(projectDir string) string {
	return filepath.Join(projectDir, ".agx")
}

// PathToDirname flattens an absolute path into a single directory name:
// path elements are joined with "-" and whitespace inside them becomes "-".
//
//	/Users/John Doe/projects/my app -> Users-John-Doe-projects-my-app
func PathToDirname(path string) string {
	path = filepath.ToSlash(filepath.Clean(path))
	if vol := filepath.VolumeName(path); vol != "" {
		path = strings.TrimPrefix(path, vol)
	}

	var parts []string
	for _, elem := range strings.Split(path, "/") {
		if elem == "" || elem == "." || elem == ".." {
			continue
		}
		parts = append(parts, strings.Map(func(r rune) rune {
			if unicode.IsSpace(r) {
				return '-'
			}
			return r
		}, elem))
	}

	return strings.Join(parts, "-")
}

// getEnvOrDefault returns the environment variable value or a default.
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func defaultStateHome() string {
	if runtime.GOOS == "windows" {
		return os.Getenv("APPDATA")
	}
	return filepath.Join(os.Getenv("HOME"), ".local", "state")
}

package testutil

import (
	"os"
	"path/filepath"
)

// Project is a throwaway project directory.
type Project struct {
	Dir string
}

// NewProject creates a project under a fresh temp dir holding files,
// keyed by relative path.
func NewProject(files map[string]string) (*Project, error) {
	dir, err := os.MkdirTemp("", "agx-citest-*")
	if err != nil {
		return nil, err
	}
	// macOS temp dirs are reached through a symlink.
	if resolved, err := filepath.EvalSymlinks(dir); err == nil {
		dir = resolved
	}

	p := &Project{Dir: dir}
	for name, content := range files {
		if err := p.WriteFile(name, content); err != nil {
			p.Cleanup()
			return nil, err
		}
	}
	return p, nil
}

// Path returns the absolute path of name.
func (p *Project) Path(name string) string {
	return filepath.Join(p.Dir, filepath.FromSlash(name))
}

// WriteFile writes name, creating parent directories.
func (p *Project) WriteFile(name, content string) error {
	path := p.Path(name)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, []byte(content), 0o644)
}

// ReadFile returns the contents of name.
func (p *Project) ReadFile(name string) (string, error) {
	data, err := os.ReadFile(p.Path(name))
	return string(data), err
}

// Exists reports whether name exists.
func (p *Project) Exists(name string) bool {
	_, err := os.Stat(p.Path(name))
	return err == nil
}

// Cleanup removes the project.
func (p *Project) Cleanup() {
	os.RemoveAll(p.Dir)
}

// ReadText returns the contents of the file at path.
func ReadText(path string) (string, error) {
	data, err := os.ReadFile(path)
	return string(data), err
}

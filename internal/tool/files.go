package tool

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

type writeResponse struct {
	Path            string `json:"path"`
	NumBytesWritten int    `json:"num_bytes_written"`
}

func writeResult(path string, n int) (*Result, error) {
	out, err := json.Marshal(writeResponse{Path: path, NumBytesWritten: n})
	if err != nil {
		return nil, wrapError(KindIO, "couldn't serialise result", err)
	}
	return &Result{Output: string(out), Summary: fmt.Sprintf("wrote %d bytes", n)}, nil
}

func (s *Sandbox) createFile(i CreateFile) (*Result, error) {
	target := s.resolve(i.Path)

	info, err := os.Stat(target)
	switch {
	case err == nil && info.IsDir():
		return nil, newError(KindIsADir, "a directory already exists at this path")
	case err == nil:
		return nil, newError(KindAlreadyExists, "file already exists")
	case !errors.Is(err, fs.ErrNotExist):
		return nil, wrapError(KindIO, "couldn't get metadata for path", err)
	}

	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return nil, wrapError(KindIO, "couldn't create directory", err)
	}
	if err := os.WriteFile(target, []byte(i.Contents), 0o644); err != nil {
		return nil, wrapError(KindIO, "couldn't write to file", err)
	}

	return writeResult(i.Path, len(i.Contents))
}

// planEdit computes the file contents before and after the edit without
// writing anything.
func (s *Sandbox) planEdit(i EditFile) (string, string, error) {
	if i.OldStr == i.NewStr {
		return "", "", newError(KindNoChangesRequested, "old string and new string are the same")
	}

	target := s.resolve(i.Path)
	info, err := os.Stat(target)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", "", newError(KindNotAFile, "file does not exist")
		}
		return "", "", wrapError(KindIO, "couldn't get metadata for file", err)
	}
	if !info.Mode().IsRegular() {
		return "", "", newError(KindNotAFile, "provided path is not a file")
	}

	data, err := os.ReadFile(target)
	if err != nil {
		return "", "", wrapError(KindIO, "couldn't read file", err)
	}

	before := string(data)
	after := strings.ReplaceAll(before, i.OldStr, i.NewStr)
	if before == after {
		return "", "", newError(KindNothingChanged, "old_str not found in file; nothing will change")
	}
	return before, after, nil
}

func (s *Sandbox) editFile(i EditFile) (*Result, error) {
	before, after, err := s.planEdit(i)
	if err != nil {
		return nil, err
	}

	target := s.resolve(i.Path)
	info, err := os.Stat(target)
	if err != nil {
		return nil, wrapError(KindIO, "couldn't get metadata for file", err)
	}
	if err := os.WriteFile(target, []byte(after), info.Mode().Perm()); err != nil {
		return nil, wrapError(KindIO, "couldn't write to file", err)
	}

	res, err := writeResult(i.Path, len(after))
	if err != nil {
		return nil, err
	}
	res.Summary += "; " + DiffSummary(before, after)
	return res, nil
}

func (s *Sandbox) readFile(i ReadFile) (*Result, error) {
	data, err := os.ReadFile(s.resolve(i.Path))
	if err != nil {
		return nil, wrapError(KindIO, "couldn't read file", err)
	}
	return &Result{Output: string(data), Summary: fmt.Sprintf("read %d bytes", len(data))}, nil
}

// DirEntry is one element of a ReadDir result.
type DirEntry struct {
	Name string `json:"name"`
	Kind string `json:"kind"`
	Size *int64 `json:"size,omitempty"`
}

func (s *Sandbox) readDir(i ReadDir) (*Result, error) {
	dir := s.resolve(i.Path)

	info, err := os.Stat(dir)
	if err != nil {
		return nil, wrapError(KindIO, "couldn't get metadata for path", err)
	}
	if !info.IsDir() {
		return nil, newError(KindNotADir, "path is not a directory")
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, wrapError(KindIO, "couldn't read directory", err)
	}

	out := make([]DirEntry, 0, len(entries))
	for _, entry := range entries {
		// follow symlinks the way a stat would
		entryInfo, err := os.Stat(filepath.Join(dir, entry.Name()))
		if err != nil {
			entryInfo, err = entry.Info()
			if err != nil {
				return nil, wrapError(KindIO, "couldn't get metadata for entry", err)
			}
		}

		e := DirEntry{Name: filepath.Join(i.Path, entry.Name()), Kind: "file"}
		if entryInfo.IsDir() {
			e.Kind = "dir"
		} else if entryInfo.Mode().IsRegular() {
			size := entryInfo.Size()
			e.Size = &size
		}
		out = append(out, e)
	}

	data, err := json.Marshal(out)
	if err != nil {
		return nil, wrapError(KindIO, "couldn't serialise result", err)
	}
	return &Result{Output: string(data), Summary: fmt.Sprintf("read %d entries", len(out))}, nil
}

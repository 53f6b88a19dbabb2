package storage

import (
	"fmt"
	"os"
	"sync"
	"syscall"
)

// FileLock serializes writers of one document, across goroutines through a
// mutex and across agx processes through flock on a sibling ".lock" file.
type FileLock struct {
	path string
	mu   sync.Mutex
}

// NewFileLock creates a new file lock for path.
func NewFileLock(path string) *FileLock {
	return &FileLock{path: path}
}

// With runs fn while holding the lock.
func (l *FileLock) With(fn func() error) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	lockPath := l.path + ".lock"
	f, err := os.OpenFile(lockPath, os.O_CREATE|os.O_RDWR, 0o600)
	if err != nil {
		return fmt.Errorf("failed to acquire lock: %w", err)
	}
	defer func() {
		f.Close()
		os.Remove(lockPath)
	}()

	if err := syscall.Flock(int(f.Fd()), syscall.LOCK_EX); err != nil {
		return fmt.Errorf("failed to acquire lock: %w", err)
	}
	defer syscall.Flock(int(f.Fd()), syscall.LOCK_UN)

	return fn()
}

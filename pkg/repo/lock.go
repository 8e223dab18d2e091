package repo

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"
)

const (
	lockRetryDelay = 5 * time.Millisecond
	lockWaitLimit  = 2 * time.Second
)

// lock acquires the repository-wide advisory lock .vctrl/lock. Every
// mutating operation holds it for its whole duration. The returned
// function releases the lock.
func (r *Repo) lock() (func(), error) {
	lockPath := filepath.Join(r.VctrlDir, "lock")
	f, err := acquireLockFile(lockPath, lockWaitLimit)
	if err != nil {
		return nil, err
	}
	f.WriteString(strconv.Itoa(os.Getpid()))
	f.Close()
	return func() { os.Remove(lockPath) }, nil
}

func acquireLockFile(lockPath string, wait time.Duration) (*os.File, error) {
	deadline := time.Now().Add(wait)
	for {
		f, err := os.OpenFile(lockPath, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
		if err == nil {
			return f, nil
		}
		if os.IsExist(err) {
			if time.Now().After(deadline) {
				return nil, fmt.Errorf("%w: timeout waiting for %s", ErrLocked, lockPath)
			}
			time.Sleep(lockRetryDelay)
			continue
		}
		return nil, fmt.Errorf("acquire lock %s: %w", lockPath, err)
	}
}

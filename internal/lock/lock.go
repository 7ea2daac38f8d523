// Package lock serializes publishes of the same image from one host.
//
// Two concurrent publishes of one repository race on the floating tags, so
// the publish command holds an exclusive lock file for the image while it
// runs. A lock whose owner process is gone, or that is older than
// StaleAfter, is taken over.
package lock

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/shirou/gopsutil/v4/process"
)

// StaleAfter is the age after which a lock is taken over regardless of
// its owner. Emulated multi-arch builds can run for a long time.
const StaleAfter = 2 * time.Hour

// ErrLocked is returned when another live process holds the lock.
var ErrLocked = errors.New("another publish holds the lock")

// Lock is an acquired lock file.
type Lock struct {
	path string
	file *os.File
}

// Dir is the default lock directory.
func Dir() string {
	return filepath.Join(os.TempDir(), "cookship")
}

// Name turns an image repository into a lock file name.
func Name(image string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(image) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '-', r == '.':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	return b.String() + ".lock"
}

// Acquire creates dir/name exclusively. O_CREATE|O_EXCL makes creation
// atomic; a stale lock is removed and creation retried once.
func Acquire(ctx context.Context, dir, name string) (*Lock, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("create lock directory: %w", err)
	}

	lockPath := filepath.Join(dir, name)

	file, err := os.OpenFile(lockPath, os.O_CREATE|os.O_EXCL|os.O_RDWR, 0o600)
	if err != nil {
		if !os.IsExist(err) {
			return nil, fmt.Errorf("create lock file: %w", err)
		}
		owner, stale := isStale(ctx, lockPath)
		if !stale {
			return nil, fmt.Errorf("%w: %s (pid %d)", ErrLocked, lockPath, owner)
		}
		os.Remove(lockPath)
		file, err = os.OpenFile(lockPath, os.O_CREATE|os.O_EXCL|os.O_RDWR, 0o600)
		if err != nil {
			return nil, fmt.Errorf("%w: %s", ErrLocked, lockPath)
		}
	}

	lockData := fmt.Sprintf("pid=%d\ntimestamp=%s\n", os.Getpid(), time.Now().UTC().Format(time.RFC3339))
	if _, err := file.WriteString(lockData); err != nil {
		file.Close()
		os.Remove(lockPath)
		return nil, fmt.Errorf("write lock data: %w", err)
	}

	if err := file.Sync(); err != nil {
		file.Close()
		os.Remove(lockPath)
		return nil, fmt.Errorf("sync lock file: %w", err)
	}

	return &Lock{path: lockPath, file: file}, nil
}

// Path returns the lock file path.
func (l *Lock) Path() string {
	return l.path
}

// Release removes the lock file. It is safe to call more than once.
func (l *Lock) Release() error {
	if l.file != nil {
		l.file.Close()
		l.file = nil
	}

	if l.path != "" {
		path := l.path
		l.path = ""
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("remove lock file: %w", err)
		}
	}

	return nil
}

// isStale reports the recorded owner pid and whether the lock can be taken
// over: it is too old, unreadable, or its owner no longer runs.
func isStale(ctx context.Context, lockPath string) (int32, bool) {
	info, err := os.Stat(lockPath)
	if err != nil {
		return 0, true
	}
	if time.Since(info.ModTime()) > StaleAfter {
		return 0, true
	}

	pid, err := readPID(lockPath)
	if err != nil {
		// A lock being written right now has no pid yet.
		return 0, false
	}

	alive, err := process.PidExistsWithContext(ctx, pid)
	if err != nil {
		return pid, false
	}
	return pid, !alive
}

func readPID(lockPath string) (int32, error) {
	f, err := os.Open(lockPath)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		value, ok := strings.CutPrefix(scanner.Text(), "pid=")
		if !ok {
			continue
		}
		pid, err := strconv.ParseInt(value, 10, 32)
		if err != nil {
			return 0, fmt.Errorf("parse pid: %w", err)
		}
		return int32(pid), nil
	}
	if err := scanner.Err(); err != nil {
		return 0, err
	}
	return 0, fmt.Errorf("no pid in %s", lockPath)
}

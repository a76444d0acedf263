package webhook

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"
)

// ErrLocked means another sync holds a fresh lock.
var ErrLocked = errors.New("update already in progress")

// Lock is an advisory lock file shared with other processes that update the checkout.
// A lock older than TTL is considered abandoned.
type Lock struct {
	Path string
	TTL  time.Duration

	now func() time.Time
}

func NewLock(path string, ttl time.Duration) *Lock {
	return &Lock{Path: path, TTL: ttl, now: time.Now}
}

// Acquire creates the lock file holding the current PID and returns its release func.
func (l *Lock) Acquire() (func(), error) {
	info, err := os.Stat(l.Path)
	switch {
	case err == nil:
		if l.now().Sub(info.ModTime()) < l.TTL {
			return nil, ErrLocked
		}
		if err := os.Remove(l.Path); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("remove stale lock: %w", err)
		}
	case !errors.Is(err, os.ErrNotExist):
		return nil, fmt.Errorf("stat lock: %w", err)
	}

	f, err := os.OpenFile(l.Path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		if errors.Is(err, os.ErrExist) {
			return nil, ErrLocked
		}
		return nil, fmt.Errorf("create lock: %w", err)
	}
	_, werr := f.WriteString(strconv.Itoa(os.Getpid()))
	cerr := f.Close()
	if err := errors.Join(werr, cerr); err != nil {
		_ = os.Remove(l.Path)
		return nil, fmt.Errorf("write lock: %w", err)
	}

	return func() { _ = os.Remove(l.Path) }, nil
}

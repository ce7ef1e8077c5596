package filelock

import (
	"crypto/sha256"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/NeverVane/shellhistory/internal/logger"
)

var (
	// ErrTimeout is returned when the lock could not be acquired in time.
	ErrTimeout = errors.New("timed out waiting for lock")

	// ErrAbandoned is returned when the lock was acquired but its previous
	// owner exited without releasing it. The caller owns the lock and must
	// release it.
	ErrAbandoned = errors.New("lock was abandoned by its previous owner")

	// ErrNotHeld is returned by Release when the lock is not held.
	ErrNotHeld = errors.New("lock not held")
)

// Locker is a lock shared by cooperating processes.
type Locker interface {
	// Acquire waits at most timeout for the lock. A nil error or ErrAbandoned
	// means the lock is now held by the caller.
	Acquire(timeout time.Duration) error

	// Release gives up a held lock.
	Release() error
}

// FileLock is a Locker backed by flock(2) on a lock file. The kernel drops
// the flock when its owner dies; the owner's pid left in the file is how an
// abandoned lock is detected.
type FileLock struct {
	path   string
	file   *os.File
	logger *logger.Logger
	locked bool
	mu     sync.Mutex
}

const retryInterval = 5 * time.Millisecond

// New creates a lock on the given lock file path. The file is created on
// first acquisition.
func New(lockPath string) *FileLock {
	return &FileLock{
		path:   lockPath,
		logger: logger.GetLogger().Lock(),
	}
}

// ForPath returns the named lock guarding target. All processes that name the
// same target share the same lock file in the system temp directory.
func ForPath(target string) *FileLock {
	return New(filepath.Join(os.TempDir(), Name(target)+".lock"))
}

// Name derives a stable lock name from a file path.
func Name(target string) string {
	if abs, err := filepath.Abs(target); err == nil {
		target = abs
	}
	sum := sha256.Sum256([]byte(strings.ToLower(target)))
	return fmt.Sprintf("shist-%x", sum[:8])
}

// Path returns the lock file path
func (fl *FileLock) Path() string {
	return fl.path
}

// Acquire acquires the lock, polling until timeout elapses
func (fl *FileLock) Acquire(timeout time.Duration) error {
	fl.mu.Lock()
	defer fl.mu.Unlock()

	if fl.locked {
		return fmt.Errorf("lock already acquired")
	}

	deadline := time.Now().Add(timeout)
	for {
		held, err := fl.tryLockOnce()
		if err != nil {
			return err
		}
		if held {
			return fl.claim()
		}
		if !time.Now().Before(deadline) {
			fl.logger.Debug().
				Str("lock_path", fl.path).
				Dur("timeout", timeout).
				Msg("Timed out waiting for file lock")
			return ErrTimeout
		}
		time.Sleep(retryInterval)
	}
}

// Release releases the lock and clears the owner pid
func (fl *FileLock) Release() error {
	fl.mu.Lock()
	defer fl.mu.Unlock()

	if !fl.locked {
		return ErrNotHeld
	}

	var err error
	if truncErr := fl.file.Truncate(0); truncErr != nil {
		err = fmt.Errorf("failed to clear lock owner: %w", truncErr)
	}
	if unlockErr := syscall.Flock(int(fl.file.Fd()), syscall.LOCK_UN); unlockErr != nil && err == nil {
		err = fmt.Errorf("failed to release file lock: %w", unlockErr)
	}
	if closeErr := fl.file.Close(); closeErr != nil && err == nil {
		err = fmt.Errorf("failed to close lock file: %w", closeErr)
	}

	fl.file = nil
	fl.locked = false

	fl.logger.Debug().Str("lock_path", fl.path).Msg("Released file lock")
	return err
}

// IsLocked returns whether the lock is currently held
func (fl *FileLock) IsLocked() bool {
	fl.mu.Lock()
	defer fl.mu.Unlock()
	return fl.locked
}

// tryLockOnce opens the lock file and attempts a non-blocking flock
func (fl *FileLock) tryLockOnce() (bool, error) {
	file, err := os.OpenFile(fl.path, os.O_CREATE|os.O_RDWR, 0644)
	if err != nil {
		return false, fmt.Errorf("failed to open lock file: %w", err)
	}

	if err := syscall.Flock(int(file.Fd()), syscall.LOCK_EX|syscall.LOCK_NB); err != nil {
		file.Close()
		if err == syscall.EWOULDBLOCK || err == syscall.EAGAIN {
			return false, nil
		}
		return false, fmt.Errorf("failed to acquire file lock: %w", err)
	}

	fl.file = file
	fl.locked = true
	return true, nil
}

// ownerFile is the part of the lock file claim needs
type ownerFile interface {
	io.Reader
	Truncate(size int64) error
	WriteAt(b []byte, off int64) (int, error)
}

// claim records this process as owner. A pid left behind by a previous
// owner means that owner never released the lock.
func (fl *FileLock) claim() error {
	prevPID := fl.recordOwner(fl.file)

	if prevPID > 0 {
		fl.logger.Warn().
			Str("lock_path", fl.path).
			Int("previous_pid", prevPID).
			Bool("previous_alive", IsProcessRunning(prevPID)).
			Msg("Acquired abandoned file lock")
		return ErrAbandoned
	}

	fl.logger.Debug().
		Str("lock_path", fl.path).
		Int("pid", os.Getpid()).
		Msg("Acquired file lock")
	return nil
}

// recordOwner replaces the pid in f with ours and returns the one it held.
// Failures only weaken abandoned-lock detection, so they are logged and the
// lock is kept.
func (fl *FileLock) recordOwner(f ownerFile) int {
	previous, err := io.ReadAll(f)
	if err != nil {
		fl.logger.Warn().Err(err).Str("lock_path", fl.path).Msg("Failed to read lock owner")
	}
	prevPID, _ := strconv.Atoi(strings.TrimSpace(string(previous)))

	if err := f.Truncate(0); err != nil {
		fl.logger.Warn().Err(err).Str("lock_path", fl.path).Msg("Failed to clear lock owner")
	}
	// WriteAt at offset 0 overwrites a stale pid even when the truncate failed
	pid := []byte(strconv.Itoa(os.Getpid()) + "\n")
	if _, err := f.WriteAt(pid, 0); err != nil {
		fl.logger.Warn().Err(err).Str("lock_path", fl.path).Msg("Failed to record lock owner")
	}
	return prevPID
}

// IsProcessRunning checks if a process with the given pid exists
func IsProcessRunning(pid int) bool {
	if pid <= 0 {
		return false
	}

	process, err := os.FindProcess(pid)
	if err != nil {
		return false
	}

	// Signal 0 only checks that the process can be signalled
	err = process.Signal(syscall.Signal(0))
	if err == nil {
		return true
	}

	var errno syscall.Errno
	if errors.As(err, &errno) && errno == syscall.EPERM {
		return true
	}
	return false
}

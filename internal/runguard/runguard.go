// Package runguard keeps two bootctl runs from overlapping on one host.
package runguard

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"golang.org/x/sys/unix"
	"gopkg.in/yaml.v3"

	"bootctl/pkg/logging"
)

const subsystem = "RunGuard"

// ErrLockCorrupt is returned when an existing lock file cannot be decoded.
var ErrLockCorrupt = errors.New("lock file is corrupt")

// Status is the result of Acquire.
type Status int

const (
	Acquired Status = iota
	AlreadyRunning
)

func (s Status) String() string {
	if s == AlreadyRunning {
		return "ALREADY_RUNNING"
	}
	return "ACQUIRED"
}

// Lock is the content of the lock file.
type Lock struct {
	PID        int       `yaml:"pid"`
	AcquiredAt time.Time `yaml:"acquiredAt"`
}

// Config holds the guard's file locations. PidFile is optional.
type Config struct {
	LockFile string
	PidFile  string
}

// Guard acquires the run lock.
type Guard struct {
	lockPath string
	pidPath  string
	pid      int

	alive    func(pid int) bool
	bootTime func() (time.Time, error)
	now      func() time.Time
}

// New returns a Guard for the current process.
func New(cfg Config) *Guard {
	return &Guard{
		lockPath: cfg.LockFile,
		pidPath:  cfg.PidFile,
		pid:      os.Getpid(),
		alive:    processAlive,
		bootTime: systemBootTime,
		now:      time.Now,
	}
}

// Handle releases an acquired lock. Release is safe to call more than once and
// from every exit path.
type Handle struct {
	guard *Guard
	lock  Lock
	once  sync.Once
	err   error
}

// Lock returns what was written to the lock file.
func (h *Handle) Lock() Lock {
	return h.lock
}

// Release removes the lock file and the pid file.
func (h *Handle) Release() error {
	h.once.Do(func() {
		var errs []error
		if err := os.Remove(h.guard.lockPath); err != nil && !errors.Is(err, fs.ErrNotExist) {
			errs = append(errs, fmt.Errorf("failed to remove lock %s: %w", h.guard.lockPath, err))
		}
		if h.guard.pidPath != "" {
			if err := os.Remove(h.guard.pidPath); err != nil && !errors.Is(err, fs.ErrNotExist) {
				errs = append(errs, fmt.Errorf("failed to remove pid file %s: %w", h.guard.pidPath, err))
			}
		}
		h.err = errors.Join(errs...)
		if h.err == nil {
			logging.Debug(subsystem, "Released run lock %s", h.guard.lockPath)
		}
	})
	return h.err
}

// Acquire takes the run lock. If another live process holds it, AlreadyRunning
// is returned with a nil handle. A lock left behind by a dead process, a corrupt
// lock and a lock older than the current boot are reclaimed with a warning.
func (g *Guard) Acquire() (*Handle, Status, error) {
	if err := os.MkdirAll(filepath.Dir(g.lockPath), 0o755); err != nil {
		return nil, Acquired, fmt.Errorf("failed to create lock directory: %w", err)
	}

	// Two tries: the second one follows a stale-lock removal.
	for try := 0; try < 2; try++ {
		lock := Lock{PID: g.pid, AcquiredAt: g.now().UTC()}
		err := g.create(lock)
		if err == nil {
			if err := g.writePidFile(); err != nil {
				_ = os.Remove(g.lockPath)
				return nil, Acquired, err
			}
			logging.Debug(subsystem, "Acquired run lock %s (pid %d)", g.lockPath, g.pid)
			return &Handle{guard: g, lock: lock}, Acquired, nil
		}
		if !errors.Is(err, fs.ErrExist) {
			return nil, Acquired, err
		}

		existing, readErr := g.read()
		switch {
		case errors.Is(readErr, fs.ErrNotExist):
			// Released between our create and read.
			continue
		case readErr != nil:
			logging.Warn(subsystem, "Reclaiming unreadable run lock %s: %v", g.lockPath, readErr)
		case g.held(existing):
			logging.Info(subsystem, "Another run (pid %d, since %s) holds %s", existing.PID, existing.AcquiredAt.Format(time.RFC3339), g.lockPath)
			return nil, AlreadyRunning, nil
		default:
			logging.Warn(subsystem, "Reclaiming stale run lock %s left by pid %d at %s", g.lockPath, existing.PID, existing.AcquiredAt.Format(time.RFC3339))
		}

		if err := os.Remove(g.lockPath); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, Acquired, fmt.Errorf("failed to remove stale lock %s: %w", g.lockPath, err)
		}
	}
	return nil, Acquired, fmt.Errorf("could not acquire %s: lock keeps reappearing", g.lockPath)
}

func (g *Guard) create(lock Lock) error {
	f, err := os.OpenFile(g.lockPath, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		if errors.Is(err, fs.ErrExist) {
			return err
		}
		return fmt.Errorf("failed to create lock %s: %w", g.lockPath, err)
	}

	data, err := yaml.Marshal(lock)
	if err == nil {
		_, err = f.Write(data)
	}
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		_ = os.Remove(g.lockPath)
		return fmt.Errorf("failed to write lock %s: %w", g.lockPath, err)
	}
	return nil
}

func (g *Guard) read() (Lock, error) {
	data, err := os.ReadFile(g.lockPath)
	if err != nil {
		return Lock{}, err
	}
	var lock Lock
	if err := yaml.Unmarshal(data, &lock); err != nil {
		return Lock{}, fmt.Errorf("%w: %v", ErrLockCorrupt, err)
	}
	if lock.PID <= 0 {
		return Lock{}, fmt.Errorf("%w: missing pid", ErrLockCorrupt)
	}
	return lock, nil
}

// held reports whether lock belongs to a process that is still running in
// this boot. Pids are reused across reboots.
func (g *Guard) held(lock Lock) bool {
	if !g.alive(lock.PID) {
		return false
	}
	booted, err := g.bootTime()
	if err != nil {
		return true
	}
	return !lock.AcquiredAt.Before(booted)
}

func (g *Guard) writePidFile() error {
	if g.pidPath == "" {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(g.pidPath), 0o755); err != nil {
		return fmt.Errorf("failed to create pid directory: %w", err)
	}
	if err := os.WriteFile(g.pidPath, []byte(strconv.Itoa(g.pid)+"\n"), 0o644); err != nil {
		return fmt.Errorf("failed to write pid file %s: %w", g.pidPath, err)
	}
	return nil
}

func processAlive(pid int) bool {
	if pid <= 0 {
		return false
	}
	err := unix.Kill(pid, 0)
	return err == nil || errors.Is(err, unix.EPERM)
}

// systemBootTime derives the kernel boot time from the uptime counter. The
// result is rounded down by a second since uptime has second resolution.
func systemBootTime() (time.Time, error) {
	var info unix.Sysinfo_t
	if err := unix.Sysinfo(&info); err != nil {
		return time.Time{}, fmt.Errorf("sysinfo: %w", err)
	}
	uptime := time.Duration(info.Uptime) * time.Second
	return time.Now().Add(-uptime - time.Second), nil
}

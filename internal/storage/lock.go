package storage

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"syscall"
	"time"
)

// WriterLock is the lock file format used to fence mutating access to a
// library. The exemption store is single-writer per library; holding this
// lock is how a dupfinder process claims that role. Read-only searches do
// not take the lock.
type WriterLock struct {
	Holder    string    `json:"holder"`
	PID       int       `json:"pid"`
	Hostname  string    `json:"hostname"`
	StartedAt time.Time `json:"started_at"`
	Version   string    `json:"version"`
}

const lockFileName = ".dupfinder-lock"

// AcquireWriterLock creates the writer lock file inside the library
// directory. A live lock held by another process is an error; a stale lock
// (dead PID on this host) is overwritten. Returns the lock path for
// ReleaseWriterLock.
func AcquireWriterLock(libraryPath, version string) (lockPath string, err error) {
	info, err := os.Stat(libraryPath)
	if err != nil {
		return "", fmt.Errorf("invalid library path: %w", err)
	}
	if !info.IsDir() {
		return "", fmt.Errorf("library path %q is not a directory", libraryPath)
	}

	lockPath = filepath.Join(libraryPath, lockFileName)

	if data, err := os.ReadFile(lockPath); err == nil {
		var existing WriterLock
		if json.Unmarshal(data, &existing) == nil {
			if isProcessAlive(existing.PID, existing.Hostname) {
				return "", fmt.Errorf("library is already locked for writing (PID %d on %s, started %s)",
					existing.PID, existing.Hostname, existing.StartedAt.Format(time.RFC3339))
			}
			// Stale lock - will overwrite
		}
	}

	hostname, err := os.Hostname()
	if err != nil {
		return "", fmt.Errorf("failed to get hostname: %w", err)
	}

	lock := WriterLock{
		Holder:    "dupfinder",
		PID:       os.Getpid(),
		Hostname:  hostname,
		StartedAt: time.Now(),
		Version:   version,
	}

	data, err := json.MarshalIndent(lock, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal lock: %w", err)
	}

	if err := os.WriteFile(lockPath, data, 0644); err != nil {
		return "", fmt.Errorf("failed to create writer lock: %w", err)
	}

	return lockPath, nil
}

// ReleaseWriterLock removes the lock file. Safe to call with an empty path
// or an already-removed lock (use defer).
func ReleaseWriterLock(lockPath string) error {
	if lockPath == "" {
		return nil
	}
	if err := os.Remove(lockPath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove writer lock: %w", err)
	}
	return nil
}

// isProcessAlive checks whether the lock holder still exists. Locks from
// other hosts cannot be verified and are assumed alive.
func isProcessAlive(pid int, hostname string) bool {
	currentHost, err := os.Hostname()
	if err != nil {
		return true
	}
	if !strings.EqualFold(hostname, currentHost) {
		return true
	}

	process, err := os.FindProcess(pid)
	if err != nil {
		return false
	}

	err = process.Signal(syscall.Signal(0))
	if err == nil {
		return true
	}
	// EPERM means the process exists but belongs to someone else
	if err == syscall.EPERM {
		return true
	}
	return false
}

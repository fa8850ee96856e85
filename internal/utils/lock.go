package utils

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"
	"github.com/sirupsen/logrus"
)

const (
	lockFileSuffix  = ".lock"
	lockRetryDelay  = 100 * time.Millisecond
	historyDirName  = "safequote"
	historyFileName = "safequote.sqlite"
)

// HistoryLock is a file lock next to the search history database. A running
// server and one-off CLI searches take it before writing. It satisfies
// storage.Locker.
type HistoryLock struct {
	flock *flock.Flock
	log   logrus.FieldLogger
}

// NewHistoryLock returns the lock guarding the database at dbPath.
// A nil log falls back to Log.
func NewHistoryLock(dbPath string, log logrus.FieldLogger) (*HistoryLock, error) {
	absPath, err := filepath.Abs(dbPath)
	if err != nil {
		return nil, fmt.Errorf("resolve history lock path: %w", err)
	}
	if log == nil {
		log = Log
	}
	return &HistoryLock{flock: flock.New(absPath + lockFileSuffix), log: log}, nil
}

// Path is the lock file.
func (l *HistoryLock) Path() string { return l.flock.Path() }

// Lock takes the lock, waiting for other writers until ctx is done.
func (l *HistoryLock) Lock(ctx context.Context) error {
	locked, err := l.flock.TryLock()
	if err != nil {
		return fmt.Errorf("lock %s: %w", l.Path(), err)
	}
	if locked {
		return nil
	}

	l.log.Infof("Another safequote process is writing search history, waiting...")
	locked, err = l.flock.TryLockContext(ctx, lockRetryDelay)
	if err != nil {
		return fmt.Errorf("lock %s after waiting: %w", l.Path(), err)
	}
	if !locked {
		return fmt.Errorf("lock %s: still held by another process", l.Path())
	}
	return nil
}

// Unlock releases the lock. Releasing a lock file that is gone is not an error.
func (l *HistoryLock) Unlock() error {
	if err := l.flock.Unlock(); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("unlock %s: %w", l.Path(), err)
	}
	return nil
}

// HistoryPath resolves the database path and creates its directory. An empty
// dbPath means ~/.config/safequote/safequote.sqlite.
func HistoryPath(dbPath string) (string, error) {
	if dbPath == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		dbPath = filepath.Join(home, ".config", historyDirName, historyFileName)
	}
	absPath, err := filepath.Abs(dbPath)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(filepath.Dir(absPath), 0o755); err != nil {
		return "", fmt.Errorf("create history directory: %w", err)
	}
	return absPath, nil
}

package store

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"
)

// lockRetryDelay is how often flock retries acquisition while the
// caller's context is still alive.
const lockRetryDelay = 10 * time.Millisecond

// File persists each key as a JSON file under a state directory.
//
// Writes are atomic: the value is written to a temporary file and renamed
// into place. A per-key flock guards against concurrent processes touching
// the same key; in-process concurrency is already serialized by the lock.
//
// File is safe for concurrent use by multiple goroutines.
type File struct {
	dir    string
	logger *slog.Logger
}

// NewFile creates a file-backed store rooted at dir.
// The directory is created if it does not exist (0750 permissions, matching
// the config directory).
func NewFile(dir string, logger *slog.Logger) (*File, error) {
	if dir == "" {
		return nil, fmt.Errorf("%w: state directory is empty", ErrInvalidKey)
	}
	if logger == nil {
		logger = slog.Default()
	}
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("creating state directory: %w", err)
	}
	return &File{dir: dir, logger: logger}, nil
}

// Get reads the stored value for key.
// Returns ErrNotFound when the key's file does not exist.
func (f *File) Get(ctx context.Context, key string) (string, error) {
	if err := ValidateKey(key); err != nil {
		return "", err
	}

	lock := flock.New(f.lockPath(key))
	locked, err := lock.TryRLockContext(ctx, lockRetryDelay)
	if err != nil {
		return "", fmt.Errorf("acquiring read lock for %s: %w", key, err)
	}
	if !locked {
		return "", fmt.Errorf("acquiring read lock for %s: not acquired", key)
	}
	defer func() {
		if err := lock.Unlock(); err != nil {
			f.logger.Warn("releasing read lock", "key", key, "error", err)
		}
	}()

	data, err := os.ReadFile(f.dataPath(key))
	if err != nil {
		if os.IsNotExist(err) {
			return "", ErrNotFound
		}
		return "", fmt.Errorf("reading %s: %w", key, err)
	}
	return string(data), nil
}

// Set writes value for key atomically (temp file + rename).
func (f *File) Set(ctx context.Context, key, value string) error {
	if err := ValidateKey(key); err != nil {
		return err
	}

	lock := flock.New(f.lockPath(key))
	locked, err := lock.TryLockContext(ctx, lockRetryDelay)
	if err != nil {
		return fmt.Errorf("acquiring write lock for %s: %w", key, err)
	}
	if !locked {
		return fmt.Errorf("acquiring write lock for %s: not acquired", key)
	}
	defer func() {
		if err := lock.Unlock(); err != nil {
			f.logger.Warn("releasing write lock", "key", key, "error", err)
		}
	}()

	tmp, err := os.CreateTemp(f.dir, key+".tmp-*")
	if err != nil {
		return fmt.Errorf("creating temp file for %s: %w", key, err)
	}
	tmpName := tmp.Name()
	// Remove the temp file on any failure before the rename.
	defer os.Remove(tmpName)

	if _, err := tmp.WriteString(value); err != nil {
		tmp.Close()
		return fmt.Errorf("writing temp file for %s: %w", key, err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("syncing temp file for %s: %w", key, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing temp file for %s: %w", key, err)
	}

	if err := os.Rename(tmpName, f.dataPath(key)); err != nil {
		return fmt.Errorf("renaming temp file for %s: %w", key, err)
	}

	f.logger.Debug("stored value", "key", key, "bytes", len(value))
	return nil
}

func (f *File) dataPath(key string) string {
	return filepath.Join(f.dir, key+".json")
}

func (f *File) lockPath(key string) string {
	return filepath.Join(f.dir, key+".lock")
}

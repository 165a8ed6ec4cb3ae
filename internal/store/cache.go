// Package store persists the component registry cache on the local
// filesystem.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/gofrs/flock"

	"github.com/stelliform/plughost/internal/extension"
	"github.com/stelliform/plughost/internal/host"
)

const (
	// CacheFileName is the name of the component cache file
	CacheFileName = "components.json"

	// lockFileName guards the cache against concurrent writers across
	// processes
	lockFileName = "components.lock"
)

// errCacheLocked signals a lock attempt that should be retried.
var errCacheLocked = errors.New("component cache is locked")

// FileStore implements extension.CacheStore using the local filesystem.
// The cache file is written atomically and guarded by a cross-process
// file lock, acquired with exponential backoff under contention.
type FileStore struct {
	basePath string
}

var _ extension.CacheStore = (*FileStore)(nil)

// NewFileStore creates a file-backed cache store rooted at basePath.
func NewFileStore(basePath string) *FileStore {
	return &FileStore{
		basePath: basePath,
	}
}

// Load returns the stored snapshot, or nil when no cache file exists.
func (f *FileStore) Load(ctx context.Context) (*extension.CacheSnapshot, error) {
	lock, err := f.acquire(ctx, true)
	if err != nil {
		return nil, err
	}
	defer func() { _ = lock.Unlock() }()

	filePath := filepath.Join(f.basePath, CacheFileName)

	// #nosec G304 -- filePath is constructed from the configured data directory
	data, err := os.ReadFile(filePath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read cache file: %w", err)
	}

	var snap extension.CacheSnapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("failed to unmarshal component cache: %w", err)
	}

	return &snap, nil
}

// Save writes the snapshot, replacing any previous one.
func (f *FileStore) Save(ctx context.Context, snap *extension.CacheSnapshot) error {
	lock, err := f.acquire(ctx, false)
	if err != nil {
		return err
	}
	defer func() { _ = lock.Unlock() }()

	// Marshal with pretty printing for readability
	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal component cache: %w", err)
	}

	filePath := filepath.Join(f.basePath, CacheFileName)

	// Write to temporary file first for atomic operation
	tempPath := filePath + ".tmp"
	if err := os.WriteFile(tempPath, data, 0600); err != nil {
		return fmt.Errorf("failed to write temporary cache file: %w", err)
	}

	// Atomic rename
	if err := os.Rename(tempPath, filePath); err != nil {
		// Clean up temp file on error
		_ = os.Remove(tempPath)
		return fmt.Errorf("failed to rename cache file: %w", err)
	}

	return nil
}

// ContributionsTimestamp derives a fingerprint of the module set from
// manifest modification times and module identifiers. XOR accumulation
// keeps the result independent of module order. Any manifest that
// cannot be inspected yields 0, which no valid snapshot matches, so a
// rescan follows.
func (*FileStore) ContributionsTimestamp(modules []host.Module) int64 {
	var result int64
	for _, mod := range modules {
		path := mod.ManifestPath()
		if path == "" {
			continue
		}
		info, err := os.Stat(path)
		if err != nil {
			return 0
		}
		result ^= info.ModTime().UnixMilli() + mod.ID()
	}
	return result
}

// acquire takes the cross-process cache lock, shared for reads and
// exclusive for writes, retrying with exponential backoff while
// another process holds it.
func (f *FileStore) acquire(ctx context.Context, shared bool) (*flock.Flock, error) {
	if err := os.MkdirAll(f.basePath, 0750); err != nil {
		return nil, fmt.Errorf("failed to create cache directory: %w", err)
	}

	fl := flock.New(filepath.Join(f.basePath, lockFileName))

	expBackoff := backoff.NewExponentialBackOff()
	expBackoff.InitialInterval = 10 * time.Millisecond
	expBackoff.MaxInterval = 250 * time.Millisecond

	lock, err := backoff.Retry(ctx, func() (*flock.Flock, error) {
		var ok bool
		var lockErr error
		if shared {
			ok, lockErr = fl.TryRLock()
		} else {
			ok, lockErr = fl.TryLock()
		}
		if lockErr != nil {
			return nil, backoff.Permanent(lockErr)
		}
		if !ok {
			return nil, errCacheLocked
		}
		return fl, nil
	}, backoff.WithBackOff(expBackoff), backoff.WithMaxElapsedTime(5*time.Second))
	if err != nil {
		return nil, fmt.Errorf("failed to acquire cache lock: %w", err)
	}

	return lock, nil
}
